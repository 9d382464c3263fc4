package explainer

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/medassist-ai/report-interpreter-api/internal/labtests"
	"github.com/medassist-ai/report-interpreter-api/internal/metrics"
	"github.com/medassist-ai/report-interpreter-api/internal/models"
	"github.com/medassist-ai/report-interpreter-api/internal/utils"
)

// ProviderFallback tags results produced by the deterministic local path.
const ProviderFallback = "fallback"

const (
	maxAdviceBullets  = 6
	maxSourceTextSize = 800
)

// Provider is an external text-generation service. Absence of a provider
// (nil) is a valid configuration, not an error.
type Provider interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Name() string
}

// Result is the outcome of explanation generation. Provider records which
// path produced it and is surfaced to the caller, never hidden.
type Result struct {
	Explanation string
	Advice      []string
	Provider    string
}

// Generator builds plain-language explanations for parsed lab results. All
// provider failures are soft: Generate always succeeds, degrading to the
// deterministic fallback when the external service is unavailable, slow, or
// returns unusable output.
type Generator struct {
	provider Provider
	logger   *utils.Logger
}

func NewGenerator(provider Provider, logger *utils.Logger) *Generator {
	return &Generator{provider: provider, logger: logger}
}

// ProviderName reports which path the next Generate call will try first.
// Used by the status endpoint.
func (g *Generator) ProviderName() string {
	if g.provider == nil {
		return ProviderFallback
	}
	return g.provider.Name()
}

func (g *Generator) Generate(ctx context.Context, tests []models.ExtractedTest, rawText string) Result {
	if g.provider != nil {
		prompt := buildPrompt(tests, rawText)

		text, err := g.provider.Generate(ctx, prompt)
		if err != nil {
			g.logger.Warn("Generation provider soft failure", "provider", g.provider.Name(), "error", err)
			metrics.ProviderSoftFailuresTotal.Inc()
		} else if result, ok := fromProviderText(text, g.provider.Name(), tests); ok {
			metrics.ExplanationsTotal.WithLabelValues(result.Provider).Inc()
			return result
		} else {
			g.logger.Warn("Generation provider returned unusable output", "provider", g.provider.Name())
			metrics.ProviderSoftFailuresTotal.Inc()
		}
	}

	result := fallback(tests)
	metrics.ExplanationsTotal.WithLabelValues(ProviderFallback).Inc()
	return result
}

func buildPrompt(tests []models.ExtractedTest, rawText string) string {
	testsText := "No values found"
	if len(tests) > 0 {
		parts := make([]string, len(tests))
		for i, t := range tests {
			parts[i] = fmt.Sprintf("%s: %s %s (%s)", t.Name, formatValue(t.Value), t.Unit, t.Status)
		}
		testsText = strings.Join(parts, " | ")
	}

	if len(rawText) > maxSourceTextSize {
		rawText = rawText[:maxSourceTextSize]
	}

	return fmt.Sprintf(`Summarize these lab results for a patient in plain language and at most 120 words.
Focus on glucose and cholesterol. Keep it reassuring, non-alarming.
Tests: %s

Based on the values, provide 3-5 short actionable bullet points (diet, exercise, hydration).
Source text (truncated): %s`, testsText, rawText)
}

var (
	lineSplitRe    = regexp.MustCompile(`\n+`)
	bulletMarkerRe = regexp.MustCompile(`^[\-\*\d\.\s]+`)
)

// fromProviderText splits a generated response into a first-line explanation
// and up to six advice bullets. Returns ok=false when the response carries no
// usable explanation at all.
func fromProviderText(text, providerName string, tests []models.ExtractedTest) (Result, bool) {
	lines := lineSplitRe.Split(strings.TrimSpace(text), -1)
	if len(lines) == 0 || strings.TrimSpace(lines[0]) == "" {
		return Result{}, false
	}

	var bullets []string
	for _, line := range lines[1:] {
		bullet := strings.TrimSpace(bulletMarkerRe.ReplaceAllString(line, ""))
		if bullet == "" {
			continue
		}
		bullets = append(bullets, bullet)
		if len(bullets) == maxAdviceBullets {
			break
		}
	}

	// A bare explanation with no bullets still needs advice attached.
	if len(bullets) == 0 {
		bullets = fallback(tests).Advice
	}

	return Result{
		Explanation: strings.TrimSpace(lines[0]),
		Advice:      bullets,
		Provider:    providerName,
	}, true
}

// fallback derives a deterministic explanation and advice list from the
// parsed tests alone. Identical input always yields identical output.
func fallback(tests []models.ExtractedTest) Result {
	var clauses []string
	for _, t := range tests {
		if t.Status == labtests.StatusNormal {
			continue
		}
		clauses = append(clauses, fmt.Sprintf("%s looks %s at %s %s", t.Name, t.Status, formatValue(t.Value), t.Unit))
	}

	explanation := strings.Join(clauses, "; ")
	if explanation == "" {
		explanation = "Your glucose and cholesterol values appear within the expected ranges. Keep up the healthy habits."
	}

	advice := []string{
		"Hydrate with water regularly throughout the day.",
		"Prioritize vegetables, lean protein, and whole grains.",
		"Aim for at least 30 minutes of brisk walking most days.",
	}
	if hasStatus(tests, "Glucose", labtests.StatusHigh) {
		advice = append(advice, "Reduce sugary drinks and refined carbs to help glucose control.")
	}
	if hasStatus(tests, "Cholesterol", labtests.StatusHigh) {
		advice = append(advice, "Swap fried/fast food for baked or grilled options to lower cholesterol.")
	}

	return Result{
		Explanation: explanation,
		Advice:      advice,
		Provider:    ProviderFallback,
	}
}

func hasStatus(tests []models.ExtractedTest, name string, status labtests.Status) bool {
	for _, t := range tests {
		if t.Name == name && t.Status == status {
			return true
		}
	}
	return false
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
