package explainer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/medassist-ai/report-interpreter-api/internal/utils"
)

const huggingFaceTimeout = 15 * time.Second

// HuggingFaceProvider calls the HuggingFace inference API for text
// generation. Errors (network, timeout, non-200, empty output) are returned
// to the Generator, which treats them as soft failures.
type HuggingFaceProvider struct {
	apiKey string
	model  string
	logger *utils.Logger
	client *http.Client

	// baseURL is overridable in tests.
	baseURL string
}

type hfRequest struct {
	Inputs     string       `json:"inputs"`
	Parameters hfParameters `json:"parameters"`
}

type hfParameters struct {
	MaxNewTokens int     `json:"max_new_tokens"`
	Temperature  float64 `json:"temperature"`
}

type hfGeneration struct {
	GeneratedText string `json:"generated_text"`
}

func NewHuggingFaceProvider(apiKey, model string, logger *utils.Logger) *HuggingFaceProvider {
	return &HuggingFaceProvider{
		apiKey: apiKey,
		model:  model,
		logger: logger,
		client: &http.Client{
			Timeout: huggingFaceTimeout,
		},
		baseURL: "https://api-inference.huggingface.co",
	}
}

func (p *HuggingFaceProvider) Name() string {
	return "huggingface"
}

func (p *HuggingFaceProvider) Generate(ctx context.Context, prompt string) (string, error) {
	reqBody := hfRequest{
		Inputs: prompt,
		Parameters: hfParameters{
			MaxNewTokens: 180,
			Temperature:  0.4,
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s", p.baseURL, p.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("huggingface API returned status %d", resp.StatusCode)
	}

	text, err := parseGeneration(body)
	if err != nil {
		return "", err
	}
	return text, nil
}

// parseGeneration handles both response shapes the inference API produces:
// text2text models return [{generated_text}], some models return a bare
// {generated_text}.
func parseGeneration(body []byte) (string, error) {
	var list []hfGeneration
	if err := json.Unmarshal(body, &list); err == nil && len(list) > 0 {
		if text := strings.TrimSpace(list[0].GeneratedText); text != "" {
			return text, nil
		}
		return "", fmt.Errorf("empty generated_text in response")
	}

	var single hfGeneration
	if err := json.Unmarshal(body, &single); err == nil {
		if text := strings.TrimSpace(single.GeneratedText); text != "" {
			return text, nil
		}
	}

	return "", fmt.Errorf("no generated_text in response")
}
