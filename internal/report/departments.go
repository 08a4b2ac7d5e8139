package report

import (
	"regexp"
	"strconv"
	"strings"
)

// Dimensions are the five CEAI factors, in report order
var Dimensions = []string{
	"Management Support",
	"Autonomy",
	"Rewards",
	"Time Availability",
	"Organizational Boundaries",
}

// Department holds one department's averages from the DEPARTMENT BREAKDOWN section
type Department struct {
	Name   string             `json:"name"`
	Scores map[string]float64 `json:"scores"`
}

var averageLine = regexp.MustCompile(`^\s*(?:[-*]\s+)?([A-Za-z][A-Za-z ]*?)\s+Average\s*:\s*(-?[0-9]+(?:\.[0-9]+)?)`)

// ParseDepartments extracts the department breakdown from a report. Departments
// without any recognised score line are dropped; a report with no breakdown
// section yields nil.
func ParseDepartments(summary string) []Department {
	lines := strings.Split(summary, "\n")

	start := -1
	for i, line := range lines {
		if name, ok := sectionHeading(line); ok && strings.TrimSuffix(name, ":") == "DEPARTMENT BREAKDOWN" {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return nil
	}

	var departments []Department
	var current *Department
	flush := func() {
		if current != nil && len(current.Scores) > 0 {
			departments = append(departments, *current)
		}
		current = nil
	}

	for _, line := range lines[start:] {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if _, ok := sectionHeading(trimmed); ok {
			break
		}

		if m := averageLine.FindStringSubmatch(trimmed); m != nil {
			dim, ok := canonicalDimension(m[1])
			if !ok || current == nil {
				continue
			}
			score, err := strconv.ParseFloat(m[2], 64)
			if err != nil {
				continue
			}
			current.Scores[dim] = score
			continue
		}

		// a new heading-like line ending in a colon closes the breakdown
		if strings.HasSuffix(trimmed, ":") {
			break
		}

		flush()
		current = &Department{Name: trimmed, Scores: make(map[string]float64, len(Dimensions))}
	}
	flush()

	return departments
}

func canonicalDimension(name string) (string, bool) {
	name = strings.Join(strings.Fields(name), " ")
	for _, dim := range Dimensions {
		if strings.EqualFold(name, dim) {
			return dim, true
		}
	}
	return "", false
}
