package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/medassist-ai/report-interpreter-api/internal/labtests"
	"github.com/medassist-ai/report-interpreter-api/internal/models"
)

// NoValuesSummary is returned when no recognized lab value is present.
const NoValuesSummary = "No glucose or cholesterol values were detected in the report."

var whitespaceRe = regexp.MustCompile(`\s+`)

// testPatterns is built once from the recognized-test table. Each pattern is
// a label synonym alternation followed by a bounded window of non-digit
// characters and a numeric literal. The 12-character window tolerates OCR
// noise between a label and its value; it is a known precision limitation and
// is kept as-is so matching semantics stay stable.
var testPatterns = buildPatterns()

type testPattern struct {
	test labtests.Test
	re   *regexp.Regexp
}

func buildPatterns() []testPattern {
	patterns := make([]testPattern, 0, len(labtests.Recognized))
	for _, t := range labtests.Recognized {
		quoted := make([]string, len(t.Synonyms))
		for i, s := range t.Synonyms {
			quoted[i] = regexp.QuoteMeta(s)
		}
		re := regexp.MustCompile(`(?i)(` + strings.Join(quoted, "|") + `)[^0-9]{0,12}([0-9]+(?:\.[0-9]+)?)`)
		patterns = append(patterns, testPattern{test: t, re: re})
	}
	return patterns
}

// Result holds the structured tests found in a report plus a one-line summary.
type Result struct {
	Tests   []models.ExtractedTest
	Summary string
}

// Parse scans raw extracted text for recognized lab values. It never fails;
// text with no recognized values yields an empty test list and a fixed
// summary. Only the first mention of each test is taken.
func Parse(rawText string) Result {
	cleaned := whitespaceRe.ReplaceAllString(rawText, " ")

	var tests []models.ExtractedTest
	for _, p := range testPatterns {
		match := p.re.FindStringSubmatch(cleaned)
		if match == nil {
			continue
		}

		value, err := strconv.ParseFloat(match[2], 64)
		if err != nil {
			continue
		}

		status, r := labtests.Classify(p.test.Name, value)
		tests = append(tests, models.ExtractedTest{
			Name:   p.test.Name,
			Value:  value,
			Unit:   r.Unit,
			Status: status,
		})
	}

	return Result{
		Tests:   tests,
		Summary: summarize(tests),
	}
}

func summarize(tests []models.ExtractedTest) string {
	if len(tests) == 0 {
		return NoValuesSummary
	}

	parts := make([]string, len(tests))
	for i, t := range tests {
		parts[i] = fmt.Sprintf("%s is %s at %s %s", t.Name, t.Status, formatValue(t.Value), t.Unit)
	}
	return strings.Join(parts, "; ")
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
