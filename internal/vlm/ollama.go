package vlm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	telem "github.com/timvw/shapeqa/internal/otel"
)

// OllamaBackend calls a local Ollama server's /api/generate endpoint with
// a multimodal model (llava, qwen2.5vl, ...).
type OllamaBackend struct {
	client    *http.Client
	baseURL   string
	model     string
	maxTokens int64
	keepAlive string
	metrics   *telem.Metrics
}

// OllamaConfig holds configuration for the Ollama backend.
type OllamaConfig struct {
	// BaseURL is the server address; defaults to http://localhost:11434.
	BaseURL string
	// Model is the model tag (e.g., "llava:7b").
	Model string
	// MaxTokens maps to options.num_predict.
	MaxTokens int64
	// KeepAlive keeps the model loaded between calls (e.g., "5m").
	KeepAlive string
	// LoadTimeout bounds the wait for response headers, which covers model
	// loading. Zero means no limit.
	LoadTimeout time.Duration
	// Metrics receives token usage; may be nil.
	Metrics *telem.Metrics
}

// NewOllamaBackend creates an Ollama backend.
func NewOllamaBackend(cfg OllamaConfig) *OllamaBackend {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = cfg.LoadTimeout

	return &OllamaBackend{
		client:    &http.Client{Transport: transport},
		baseURL:   baseURL,
		model:     cfg.Model,
		maxTokens: maxTokens,
		keepAlive: cfg.KeepAlive,
		metrics:   cfg.Metrics,
	}
}

// Provider returns "ollama".
func (b *OllamaBackend) Provider() string {
	return "ollama"
}

// Model returns the model name.
func (b *OllamaBackend) Model() string {
	return b.model
}

type ollamaGenerateRequest struct {
	Model     string         `json:"model"`
	Prompt    string         `json:"prompt"`
	Images    []string       `json:"images,omitempty"`
	Stream    bool           `json:"stream"`
	KeepAlive string         `json:"keep_alive,omitempty"`
	Options   map[string]any `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	DoneReason      string `json:"done_reason"`
	PromptEvalCount int64  `json:"prompt_eval_count"`
	EvalCount       int64  `json:"eval_count"`
	Error           string `json:"error"`
}

// Invoke runs a non-streaming generation.
func (b *OllamaBackend) Invoke(ctx context.Context, img *Image, prompt string) (string, error) {
	ctx, span := startGeneration(ctx, b.Provider(), b.model, b.maxTokens, img, prompt)
	defer span.End()

	payload := ollamaGenerateRequest{
		Model:     b.model,
		Prompt:    prompt,
		Stream:    false,
		KeepAlive: b.keepAlive,
		Options:   map[string]any{"num_predict": b.maxTokens},
	}
	if img != nil {
		payload.Images = []string{img.Base64()}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", inferenceError(b, fmt.Errorf("encode request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", inferenceError(b, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		failGeneration(span, "network_error")
		return "", inferenceError(b, fmt.Errorf("ollama request failed: %w", err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		failGeneration(span, "network_error")
		return "", inferenceError(b, fmt.Errorf("read response body: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		failGeneration(span, "api_error")
		return "", inferenceError(b, fmt.Errorf("ollama server error (%s): %s", resp.Status, strings.TrimSpace(string(data))))
	}

	var out ollamaGenerateResponse
	if err := json.Unmarshal(data, &out); err != nil {
		failGeneration(span, "invalid_response")
		return "", inferenceError(b, fmt.Errorf("ollama returned invalid JSON: %w (body: %s)", err, string(data)))
	}
	if out.Error != "" {
		failGeneration(span, "api_error")
		return "", inferenceError(b, fmt.Errorf("ollama API error: %s", out.Error))
	}

	finishGeneration(span, out.Response, out.PromptEvalCount, out.EvalCount, out.DoneReason)
	b.metrics.RecordTokens(ctx, b.Provider(), b.model, out.PromptEvalCount, out.EvalCount)

	return out.Response, nil
}
