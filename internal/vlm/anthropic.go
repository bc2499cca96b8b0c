package vlm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	telem "github.com/timvw/shapeqa/internal/otel"
)

// AnthropicBackend calls the Anthropic Messages API.
// Works with both direct Anthropic API and Azure AI Foundry.
type AnthropicBackend struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	metrics   *telem.Metrics
}

// AnthropicConfig holds configuration for the Anthropic backend.
type AnthropicConfig struct {
	// BaseURL is the API endpoint (e.g., "https://resource.services.ai.azure.com/anthropic/").
	BaseURL string
	// APIKey is the API key.
	APIKey string
	// Model is the model name (e.g., "claude-sonnet-4-5").
	Model string
	// MaxTokens is the maximum number of output tokens.
	MaxTokens int64
	// ExtraHeaders are additional HTTP headers (e.g., "api-key" for Azure).
	ExtraHeaders map[string]string
	// Metrics receives token usage; may be nil.
	Metrics *telem.Metrics
}

// NewAnthropicBackend creates a new Anthropic backend.
func NewAnthropicBackend(cfg AnthropicConfig) *AnthropicBackend {
	var opts []option.RequestOption
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	for k, v := range cfg.ExtraHeaders {
		opts = append(opts, option.WithHeader(k, v))
	}
	// Retries are owned by WithRetry.
	opts = append(opts, option.WithMaxRetries(0))

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	return &AnthropicBackend{
		client:    anthropic.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: maxTokens,
		metrics:   cfg.Metrics,
	}
}

// Provider returns "anthropic".
func (b *AnthropicBackend) Provider() string {
	return "anthropic"
}

// Model returns the model name.
func (b *AnthropicBackend) Model() string {
	return b.model
}

// Invoke sends the image (if any) followed by the prompt as one user turn.
func (b *AnthropicBackend) Invoke(ctx context.Context, img *Image, prompt string) (string, error) {
	ctx, span := startGeneration(ctx, b.Provider(), b.model, b.maxTokens, img, prompt)
	defer span.End()

	var blocks []anthropic.ContentBlockParamUnion
	if img != nil {
		blocks = append(blocks, anthropic.NewImageBlockBase64(img.MIMEType, img.Base64()))
	}
	blocks = append(blocks, anthropic.NewTextBlock(prompt))

	resp, err := b.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(b.model),
		MaxTokens: b.maxTokens,
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(blocks...)},
	})
	if err != nil {
		failGeneration(span, "api_error")
		return "", inferenceError(b, fmt.Errorf("anthropic API call failed: %w", err))
	}
	if len(resp.Content) == 0 {
		failGeneration(span, "empty_response")
		return "", inferenceError(b, errors.New("anthropic API returned empty response"))
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	finishGeneration(span, text.String(), resp.Usage.InputTokens, resp.Usage.OutputTokens, string(resp.StopReason))
	b.metrics.RecordTokens(ctx, b.Provider(), b.model, resp.Usage.InputTokens, resp.Usage.OutputTokens)

	return text.String(), nil
}
