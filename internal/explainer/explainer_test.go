package explainer

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medassist-ai/report-interpreter-api/internal/labtests"
	"github.com/medassist-ai/report-interpreter-api/internal/models"
	"github.com/medassist-ai/report-interpreter-api/internal/utils"
)

type fakeProvider struct {
	text string
	err  error
}

func (f *fakeProvider) Generate(ctx context.Context, prompt string) (string, error) {
	return f.text, f.err
}

func (f *fakeProvider) Name() string { return "huggingface" }

func testLogger() *utils.Logger { return utils.NewLogger("error") }

var highCholesterol = []models.ExtractedTest{
	{Name: "Cholesterol", Value: 265, Unit: "mg/dL", Status: labtests.StatusHigh},
}

func TestGenerateFallbackWithoutProvider(t *testing.T) {
	g := NewGenerator(nil, testLogger())

	result := g.Generate(context.Background(), highCholesterol, "Total Cholesterol 265")

	assert.Equal(t, ProviderFallback, result.Provider)
	assert.Contains(t, result.Explanation, "Cholesterol looks high at 265 mg/dL")
	require.NotEmpty(t, result.Advice)

	var hasFriedFoodBullet bool
	for _, a := range result.Advice {
		if strings.Contains(a, "fried") {
			hasFriedFoodBullet = true
		}
	}
	assert.True(t, hasFriedFoodBullet, "advice should include a fried-food reduction bullet: %v", result.Advice)
}

func TestGenerateFallbackDeterministic(t *testing.T) {
	g := NewGenerator(nil, testLogger())
	tests := []models.ExtractedTest{
		{Name: "Glucose", Value: 140, Unit: "mg/dL", Status: labtests.StatusHigh},
		{Name: "Cholesterol", Value: 180, Unit: "mg/dL", Status: labtests.StatusNormal},
	}

	first := g.Generate(context.Background(), tests, "raw")
	second := g.Generate(context.Background(), tests, "raw")

	require.True(t, reflect.DeepEqual(first, second), "fallback output must be byte-identical across calls")
	assert.Equal(t, ProviderFallback, first.Provider)
}

func TestGenerateFallbackAllNormal(t *testing.T) {
	g := NewGenerator(nil, testLogger())
	tests := []models.ExtractedTest{
		{Name: "Glucose", Value: 92, Unit: "mg/dL", Status: labtests.StatusNormal},
	}

	result := g.Generate(context.Background(), tests, "Fasting Glucose: 92 mg/dL")

	assert.Equal(t, "Your glucose and cholesterol values appear within the expected ranges. Keep up the healthy habits.", result.Explanation)
	assert.Len(t, result.Advice, 3)
}

func TestGenerateFallbackNoTests(t *testing.T) {
	g := NewGenerator(nil, testLogger())

	result := g.Generate(context.Background(), nil, "illegible scan of something")

	assert.Equal(t, ProviderFallback, result.Provider)
	assert.Contains(t, result.Explanation, "within the expected ranges")
	assert.NotEmpty(t, result.Advice)
}

func TestGenerateProviderResponseParsed(t *testing.T) {
	provider := &fakeProvider{text: "Your cholesterol is a little above the usual range.\n- Eat more fiber.\n* Walk daily.\n3. Cut back on fried snacks.\n\n"}
	g := NewGenerator(provider, testLogger())

	result := g.Generate(context.Background(), highCholesterol, "Total Cholesterol 265")

	assert.Equal(t, "huggingface", result.Provider)
	assert.Equal(t, "Your cholesterol is a little above the usual range.", result.Explanation)
	assert.Equal(t, []string{"Eat more fiber.", "Walk daily.", "Cut back on fried snacks."}, result.Advice)
}

func TestGenerateProviderBulletsCapped(t *testing.T) {
	lines := []string{"Summary line."}
	for i := 0; i < 10; i++ {
		lines = append(lines, "- bullet point number "+strings.Repeat("x", i+1))
	}
	g := NewGenerator(&fakeProvider{text: strings.Join(lines, "\n")}, testLogger())

	result := g.Generate(context.Background(), highCholesterol, "raw")

	assert.Len(t, result.Advice, 6)
}

// A first line with zero usable bullets must borrow the fallback advice;
// external provider + empty advice is never a valid pairing.
func TestGenerateProviderNoBulletsUsesFallbackAdvice(t *testing.T) {
	g := NewGenerator(&fakeProvider{text: "Everything looks broadly fine."}, testLogger())

	result := g.Generate(context.Background(), highCholesterol, "raw")

	assert.Equal(t, "huggingface", result.Provider)
	assert.Equal(t, "Everything looks broadly fine.", result.Explanation)
	require.NotEmpty(t, result.Advice)
	assert.Equal(t, fallback(highCholesterol).Advice, result.Advice)
}

func TestGenerateProviderErrorFallsBack(t *testing.T) {
	g := NewGenerator(&fakeProvider{err: errors.New("connect timeout")}, testLogger())

	result := g.Generate(context.Background(), highCholesterol, "raw")

	assert.Equal(t, ProviderFallback, result.Provider)
	assert.Contains(t, result.Explanation, "Cholesterol looks high")
}

func TestGenerateProviderEmptyResponseFallsBack(t *testing.T) {
	g := NewGenerator(&fakeProvider{text: "   \n  "}, testLogger())

	result := g.Generate(context.Background(), highCholesterol, "raw")

	assert.Equal(t, ProviderFallback, result.Provider)
}

func TestBuildPromptTruncatesSourceText(t *testing.T) {
	long := strings.Repeat("a", 5000)
	prompt := buildPrompt(nil, long)

	assert.Less(t, len(prompt), 1200)
	assert.Contains(t, prompt, "No values found")
}

func TestBuildPromptRendersTests(t *testing.T) {
	prompt := buildPrompt([]models.ExtractedTest{
		{Name: "Glucose", Value: 92, Unit: "mg/dL", Status: labtests.StatusNormal},
		{Name: "Cholesterol", Value: 265, Unit: "mg/dL", Status: labtests.StatusHigh},
	}, "source")

	assert.Contains(t, prompt, "Glucose: 92 mg/dL (normal) | Cholesterol: 265 mg/dL (high)")
}

func TestHuggingFaceProviderGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "/models/google/flan-t5-base", r.URL.Path)
		w.Write([]byte(`[{"generated_text": "All good.\n- Keep walking."}]`))
	}))
	defer srv.Close()

	p := NewHuggingFaceProvider("test-key", "google/flan-t5-base", testLogger())
	p.baseURL = srv.URL

	text, err := p.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "All good.\n- Keep walking.", text)
}

func TestHuggingFaceProviderErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := NewHuggingFaceProvider("test-key", "google/flan-t5-base", testLogger())
	p.baseURL = srv.URL

	_, err := p.Generate(context.Background(), "prompt")
	assert.Error(t, err)
}

func TestParseGeneration(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{"array shape", `[{"generated_text": "hello"}]`, "hello", false},
		{"object shape", `{"generated_text": "hello"}`, "hello", false},
		{"empty array text", `[{"generated_text": ""}]`, "", true},
		{"malformed", `{"error": "loading"}`, "", true},
		{"not json", `<html>`, "", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseGeneration([]byte(tc.body))
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
