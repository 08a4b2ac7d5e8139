package report

import (
	"regexp"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/parser"
)

// Rule names reported by Audit
const (
	RuleHeading          = "markdown_heading"
	RuleEmphasis         = "markdown_emphasis"
	RuleCode             = "markdown_code"
	RuleHTML             = "html"
	RuleLowercaseHeading = "lowercase_heading"
)

// SectionHeadings are the report sections the prompt asks the model to write
var SectionHeadings = []string{
	"OVERALL RESULTS",
	"OVERALL AVERAGES",
	"RELIABILITY ANALYSIS",
	"DEPARTMENT BREAKDOWN",
	"INTERPRETATION",
	"RECOMMENDATIONS",
}

// Violation is a formatting rule the report breaks
type Violation struct {
	Rule    string `json:"rule"`
	Snippet string `json:"snippet"`
}

var tagPattern = regexp.MustCompile(`^</?[a-zA-Z][a-zA-Z0-9]*[^>]*>$`)

// Audit checks a plain-text report for Markdown or HTML markup and for section
// headings that are not upper case. The report is never modified.
func Audit(summary string) []Violation {
	var violations []Violation

	p := parser.NewWithExtensions(parser.CommonExtensions)
	doc := markdown.Parse([]byte(summary), p)

	ast.WalkFunc(doc, func(node ast.Node, entering bool) ast.WalkStatus {
		if !entering {
			return ast.GoToNext
		}
		switch n := node.(type) {
		case *ast.Heading:
			violations = append(violations, Violation{Rule: RuleHeading, Snippet: nodeText(n)})
			return ast.SkipChildren
		case *ast.Emph, *ast.Strong:
			violations = append(violations, Violation{Rule: RuleEmphasis, Snippet: nodeText(n)})
			return ast.SkipChildren
		case *ast.CodeBlock:
			// indented blocks are ordinary report layout
			if n.IsFenced {
				violations = append(violations, Violation{Rule: RuleCode, Snippet: firstLine(string(n.Literal))})
			}
		case *ast.Code:
			violations = append(violations, Violation{Rule: RuleCode, Snippet: string(n.Literal)})
		case *ast.HTMLBlock:
			violations = append(violations, Violation{Rule: RuleHTML, Snippet: firstLine(string(n.Literal))})
		case *ast.HTMLSpan:
			if tagPattern.Match(n.Literal) {
				violations = append(violations, Violation{Rule: RuleHTML, Snippet: string(n.Literal)})
			}
		}
		return ast.GoToNext
	})

	for _, line := range strings.Split(summary, "\n") {
		if name, ok := sectionHeading(line); ok && name != strings.TrimSpace(line) {
			violations = append(violations, Violation{Rule: RuleLowercaseHeading, Snippet: strings.TrimSpace(line)})
		}
	}

	return violations
}

// sectionHeading reports whether line is one of the known section headings,
// ignoring case and a trailing colon, and returns it in canonical form.
func sectionHeading(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	bare := strings.TrimSuffix(trimmed, ":")
	for _, h := range SectionHeadings {
		if strings.EqualFold(bare, h) {
			if strings.HasSuffix(trimmed, ":") {
				return h + ":", true
			}
			return h, true
		}
	}
	return "", false
}

func nodeText(node ast.Node) string {
	var b strings.Builder
	ast.WalkFunc(node, func(n ast.Node, entering bool) ast.WalkStatus {
		if !entering {
			return ast.GoToNext
		}
		if leaf := n.AsLeaf(); leaf != nil {
			b.Write(leaf.Literal)
		}
		return ast.GoToNext
	})
	return strings.TrimSpace(b.String())
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
