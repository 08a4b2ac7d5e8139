package report

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const conformingReport = `CORPORATE ENTREPRENEURSHIP ASSESSMENT INSTRUMENT (CEAI) SURVEY ANALYSIS

OVERALL RESULTS
Respondents: 24

RELIABILITY ANALYSIS:
Cronbach's alpha is 0.82 across all items.

DEPARTMENT BREAKDOWN:

HR DEPARTMENT
Management Support Average: 3.9
Autonomy Average: 3.9
Rewards Average: 3.9
Time Availability Average: 3.7
Organizational Boundaries Average: 3.9

IT DEPARTMENT
Management Support Average: 4.3
Autonomy Average: 3.8
Rewards Average: 4.2
Time Availability Average: 3.7
Organizational Boundaries Average: 4.1

INTERPRETATION:
* IT reports the strongest management support.
* Time availability is the weakest dimension overall.

RECOMMENDATIONS:
- Protect time for unstructured work.
`

func TestAuditAcceptsConformingReport(t *testing.T) {
	assert.Empty(t, Audit(conformingReport))
}

func TestAuditFlagsMarkup(t *testing.T) {
	tests := []struct {
		name    string
		summary string
		rule    string
	}{
		{"atx heading", "# OVERALL RESULTS\nText", RuleHeading},
		{"bold", "Scores are **high** overall.", RuleEmphasis},
		{"italic", "Scores are *high* overall.", RuleEmphasis},
		{"fenced code", "```\nMean: 3.9\n```", RuleCode},
		{"inline code", "The `autonomy` column", RuleCode},
		{"html block", "<div>\nREPORT\n</div>", RuleHTML},
		{"lowercase heading", "Overall Results\nRespondents: 3", RuleLowercaseHeading},
		{"lowercase heading with colon", "Recommendations:\nMore time.", RuleLowercaseHeading},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			violations := Audit(tt.summary)
			require.NotEmpty(t, violations)

			var rules []string
			for _, v := range violations {
				rules = append(rules, v.Rule)
			}
			assert.Contains(t, rules, tt.rule)
		})
	}
}

func TestAuditDoesNotAlterSummary(t *testing.T) {
	summary := "# Heading\n**bold**"
	original := summary
	_ = Audit(summary)
	assert.Equal(t, original, summary)
}

func TestParseDepartments(t *testing.T) {
	got := ParseDepartments(conformingReport)

	want := []Department{
		{Name: "HR DEPARTMENT", Scores: map[string]float64{
			"Management Support": 3.9, "Autonomy": 3.9, "Rewards": 3.9,
			"Time Availability": 3.7, "Organizational Boundaries": 3.9,
		}},
		{Name: "IT DEPARTMENT", Scores: map[string]float64{
			"Management Support": 4.3, "Autonomy": 3.8, "Rewards": 4.2,
			"Time Availability": 3.7, "Organizational Boundaries": 4.1,
		}},
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseDepartments mismatch (-want +got):\n%s", diff)
	}
	for _, d := range got {
		assert.Len(t, d.Scores, len(Dimensions), d.Name)
	}
}

func TestParseDepartmentsWithoutBreakdown(t *testing.T) {
	assert.Nil(t, ParseDepartments("OVERALL RESULTS\nManagement Support Average: 4.0"))
}

func TestParseDepartmentsPartialScores(t *testing.T) {
	summary := "DEPARTMENT BREAKDOWN:\n\nSALES\nAutonomy Average: 2.5\nnotes without scores\n\nINTERPRETATION:\nSALES Average: 9"
	got := ParseDepartments(summary)

	require.Len(t, got, 1)
	assert.Equal(t, "SALES", got[0].Name)
	assert.Equal(t, map[string]float64{"Autonomy": 2.5}, got[0].Scores)
}
