package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sheero-ai/sheero/internal/fusion"
)

// ollamaProvider implements Provider against an Ollama /api/generate
// endpoint.
type ollamaProvider struct {
	baseURL          string
	model            string
	temperature      float64
	maxTokens        int
	client           *http.Client
	maxResponseBytes int64
}

// NewOllama creates an Ollama-backed advisor.
func NewOllama(baseURL, model string, timeout time.Duration) Provider {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "mistral"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ollamaProvider{
		baseURL:          strings.TrimRight(baseURL, "/"),
		model:            model,
		temperature:      0.7,
		maxTokens:        500,
		maxResponseBytes: 1 << 20,
		client:           &http.Client{Timeout: timeout},
	}
}

type ollamaGenerateRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	System      string  `json:"system,omitempty"`
	Stream      bool    `json:"stream"`
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

func (p *ollamaProvider) Advise(ctx context.Context, state fusion.HazardState) (string, error) {
	prompt := BuildPrompt(state)
	if prompt == "" {
		return "", nil
	}

	body, err := json.Marshal(ollamaGenerateRequest{
		Model:       p.model,
		Prompt:      prompt,
		System:      systemPrompt,
		Stream:      false,
		Temperature: p.temperature,
		MaxTokens:   p.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal ollama request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create ollama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call ollama: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, p.maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("read ollama response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("ollama status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var gen ollamaGenerateResponse
	if err := json.Unmarshal(respBody, &gen); err != nil {
		return "", fmt.Errorf("decode ollama response: %w", err)
	}
	if gen.Error != "" {
		return "", fmt.Errorf("ollama error: %s", gen.Error)
	}

	tip := strings.TrimSpace(gen.Response)
	if tip == "" {
		return "", fmt.Errorf("ollama returned an empty advisory")
	}
	return tip, nil
}
