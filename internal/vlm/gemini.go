package vlm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	telem "github.com/timvw/shapeqa/internal/otel"
)

// GeminiBackend calls the Google Gemini API.
type GeminiBackend struct {
	client    *genai.Client
	gm        *genai.GenerativeModel
	model     string
	maxTokens int64
	metrics   *telem.Metrics
}

// GeminiConfig holds configuration for the Gemini backend.
type GeminiConfig struct {
	// BaseURL overrides the API endpoint.
	BaseURL string
	// APIKey is the API key.
	APIKey string
	// Model is the model name (e.g., "gemini-2.0-flash").
	Model string
	// MaxTokens is the maximum number of output tokens.
	MaxTokens int64
	// Metrics receives token usage; may be nil.
	Metrics *telem.Metrics
}

// NewGeminiBackend creates a Gemini backend. Close releases the client.
func NewGeminiBackend(ctx context.Context, cfg GeminiConfig) (*GeminiBackend, error) {
	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(cfg.BaseURL))
	}
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	gm := client.GenerativeModel(cfg.Model)
	gm.SetMaxOutputTokens(int32(maxTokens))

	return &GeminiBackend{
		client:    client,
		gm:        gm,
		model:     cfg.Model,
		maxTokens: maxTokens,
		metrics:   cfg.Metrics,
	}, nil
}

// Provider returns "gemini".
func (b *GeminiBackend) Provider() string {
	return "gemini"
}

// Model returns the model name.
func (b *GeminiBackend) Model() string {
	return b.model
}

// Close releases the underlying client.
func (b *GeminiBackend) Close() error {
	return b.client.Close()
}

// Invoke sends the image blob (if any) followed by the prompt.
func (b *GeminiBackend) Invoke(ctx context.Context, img *Image, prompt string) (string, error) {
	ctx, span := startGeneration(ctx, b.Provider(), b.model, b.maxTokens, img, prompt)
	defer span.End()

	var parts []genai.Part
	if img != nil {
		parts = append(parts, genai.ImageData(strings.TrimPrefix(img.MIMEType, "image/"), img.Data))
	}
	parts = append(parts, genai.Text(prompt))

	resp, err := b.gm.GenerateContent(ctx, parts...)
	if err != nil {
		failGeneration(span, "api_error")
		return "", inferenceError(b, fmt.Errorf("gemini API call failed: %w", err))
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		failGeneration(span, "empty_response")
		return "", inferenceError(b, errors.New("gemini API returned empty response"))
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}

	var in, out int64
	if resp.UsageMetadata != nil {
		in = int64(resp.UsageMetadata.PromptTokenCount)
		out = int64(resp.UsageMetadata.CandidatesTokenCount)
	}
	finishGeneration(span, text.String(), in, out, resp.Candidates[0].FinishReason.String())
	b.metrics.RecordTokens(ctx, b.Provider(), b.model, in, out)

	return text.String(), nil
}
