package vlm

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	telem "github.com/timvw/shapeqa/internal/otel"
)

// OpenAIBackend calls an OpenAI-compatible Chat Completions API.
// Works with OpenAI, Azure OpenAI, and any OpenAI-compatible endpoint
// that accepts image_url content parts.
type OpenAIBackend struct {
	client    openai.Client
	model     string
	maxTokens int64
	metrics   *telem.Metrics
}

// OpenAIConfig holds configuration for the OpenAI backend.
type OpenAIConfig struct {
	// BaseURL is the API endpoint.
	BaseURL string
	// APIKey is the API key.
	APIKey string
	// Model is the model name (e.g., "gpt-4o-mini").
	Model string
	// MaxTokens is the maximum number of completion tokens.
	MaxTokens int64
	// ExtraHeaders are additional HTTP headers.
	ExtraHeaders map[string]string
	// Metrics receives token usage; may be nil.
	Metrics *telem.Metrics
}

// NewOpenAIBackend creates a new OpenAI-compatible backend.
func NewOpenAIBackend(cfg OpenAIConfig) *OpenAIBackend {
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
	opts = append(opts, option.WithMaxRetries(0))

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	return &OpenAIBackend{
		client:    openai.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: maxTokens,
		metrics:   cfg.Metrics,
	}
}

// Provider returns "openai".
func (b *OpenAIBackend) Provider() string {
	return "openai"
}

// Model returns the model name.
func (b *OpenAIBackend) Model() string {
	return b.model
}

// Invoke sends the image as a data URL part followed by the prompt.
func (b *OpenAIBackend) Invoke(ctx context.Context, img *Image, prompt string) (string, error) {
	ctx, span := startGeneration(ctx, b.Provider(), b.model, b.maxTokens, img, prompt)
	defer span.End()

	var parts []openai.ChatCompletionContentPartUnionParam
	if img != nil {
		parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
			URL: img.DataURL(),
		}))
	}
	parts = append(parts, openai.TextContentPart(prompt))

	resp, err := b.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               b.model,
		Messages:            []openai.ChatCompletionMessageParamUnion{openai.UserMessage(parts)},
		MaxCompletionTokens: openai.Int(b.maxTokens),
	})
	if err != nil {
		failGeneration(span, "api_error")
		return "", inferenceError(b, fmt.Errorf("openai API call failed: %w", err))
	}
	if len(resp.Choices) == 0 {
		failGeneration(span, "empty_response")
		return "", inferenceError(b, errors.New("openai API returned empty response"))
	}

	text := resp.Choices[0].Message.Content
	finishGeneration(span, text, resp.Usage.PromptTokens, resp.Usage.CompletionTokens, string(resp.Choices[0].FinishReason))
	b.metrics.RecordTokens(ctx, b.Provider(), b.model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

	return text, nil
}
