package cmd

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/timvw/shapeqa/internal/config"
	telem "github.com/timvw/shapeqa/internal/otel"
	"github.com/timvw/shapeqa/internal/vlm"
)

// backendSpec is one resolved provider selection.
type backendSpec struct {
	Provider  string
	Model     string
	BaseURL   string
	APIKey    string
	MaxTokens int64
}

// candidateSpec returns the backend the agents call.
func candidateSpec(cfg *config.Config) backendSpec {
	return backendSpec{
		Provider:  cfg.Provider,
		Model:     cfg.Model,
		BaseURL:   cfg.BaseURL,
		APIKey:    cfg.APIKey,
		MaxTokens: cfg.MaxTokens,
	}
}

// judgeSpec returns the judge backend. Unset judge fields inherit the
// candidate's; endpoint and key are only inherited when the provider is.
func judgeSpec(cfg *config.Config) backendSpec {
	spec := candidateSpec(cfg)
	if cfg.JudgeProvider != "" && cfg.JudgeProvider != cfg.Provider {
		spec = backendSpec{Provider: cfg.JudgeProvider}
	}
	if cfg.JudgeModel != "" {
		spec.Model = cfg.JudgeModel
	}
	if cfg.JudgeBaseURL != "" {
		spec.BaseURL = cfg.JudgeBaseURL
	}
	if cfg.JudgeAPIKey != "" {
		spec.APIKey = cfg.JudgeAPIKey
	}
	if cfg.JudgeMaxTokens > 0 {
		spec.MaxTokens = cfg.JudgeMaxTokens
	}
	return spec
}

// newBackend builds the provider client for spec with the configured call
// timeout. Retry is attached by the caller, see retryPolicy. The returned
// close function releases provider resources.
func newBackend(ctx context.Context, spec backendSpec, cfg *config.Config, metrics *telem.Metrics, log *zap.Logger) (vlm.Backend, func(), error) {
	var (
		b       vlm.Backend
		closeFn = func() {}
		err     error
	)
	switch spec.Provider {
	case "anthropic":
		b, err = newAnthropicBackend(spec, metrics)
	case "openai":
		b, err = newOpenAIBackend(spec, metrics)
	case "gemini":
		var gb *vlm.GeminiBackend
		gb, err = newGeminiBackend(ctx, spec, metrics)
		if gb != nil {
			b = gb
			closeFn = func() { _ = gb.Close() }
		}
	case "ollama":
		b = newOllamaBackend(spec, cfg, metrics)
	default:
		err = fmt.Errorf("unknown provider %q (supported: anthropic, openai, gemini, ollama)", spec.Provider)
	}
	if err != nil {
		return nil, nil, err
	}

	b = vlm.WithTimeout(b, cfg.CallTimeoutDuration)

	log.Debug("backend ready",
		zap.String("provider", b.Provider()),
		zap.String("model", b.Model()),
		zap.Duration("timeout", cfg.CallTimeoutDuration))
	return b, closeFn, nil
}

// retryPolicy is the per-call retry policy from cfg.
func retryPolicy(cfg *config.Config) vlm.RetryPolicy {
	return vlm.RetryPolicy{MaxRetries: uint(cfg.MaxRetries)}
}

func withRetry(b vlm.Backend, cfg *config.Config, log *zap.Logger) vlm.Backend {
	return vlm.WithRetry(b, retryPolicy(cfg), log)
}

func newAnthropicBackend(spec backendSpec, metrics *telem.Metrics) (vlm.Backend, error) {
	model := spec.Model
	if model == "" {
		model = "claude-sonnet-4-5"
	}

	baseURL := spec.BaseURL
	apiKey := spec.APIKey
	extraHeaders := map[string]string{}

	if baseURL == "" {
		if resourceName := os.Getenv("AZURE_RESOURCE_NAME"); resourceName != "" {
			// The SDK appends v1/messages.
			baseURL = fmt.Sprintf("https://%s.services.ai.azure.com/anthropic/", resourceName)
		}
	}
	if apiKey == "" {
		apiKey = os.Getenv("AZURE_OPENAI_API_KEY")
	}
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("no API key found. Set SHAPEQA_API_KEY, AZURE_OPENAI_API_KEY, or ANTHROPIC_API_KEY")
	}

	// Azure AI Foundry wants "api-key" next to the SDK's "x-api-key".
	if os.Getenv("AZURE_RESOURCE_NAME") != "" || config.IsAzureEndpoint(baseURL) {
		extraHeaders["api-key"] = apiKey
	}

	return vlm.NewAnthropicBackend(vlm.AnthropicConfig{
		BaseURL:      baseURL,
		APIKey:       apiKey,
		Model:        model,
		MaxTokens:    spec.MaxTokens,
		ExtraHeaders: extraHeaders,
		Metrics:      metrics,
	}), nil
}

func newOpenAIBackend(spec backendSpec, metrics *telem.Metrics) (vlm.Backend, error) {
	model := spec.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	baseURL := spec.BaseURL
	apiKey := spec.APIKey
	extraHeaders := map[string]string{}

	if baseURL == "" {
		if resourceName := os.Getenv("AZURE_RESOURCE_NAME"); resourceName != "" {
			baseURL = fmt.Sprintf("https://%s.openai.azure.com/openai/v1", resourceName)
		}
	}
	if apiKey == "" {
		apiKey = os.Getenv("AZURE_OPENAI_API_KEY")
	}
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("no API key found. Set SHAPEQA_API_KEY, AZURE_OPENAI_API_KEY, or OPENAI_API_KEY")
	}

	if os.Getenv("AZURE_RESOURCE_NAME") != "" || config.IsAzureEndpoint(baseURL) {
		extraHeaders["api-key"] = apiKey
	}

	return vlm.NewOpenAIBackend(vlm.OpenAIConfig{
		BaseURL:      baseURL,
		APIKey:       apiKey,
		Model:        model,
		MaxTokens:    spec.MaxTokens,
		ExtraHeaders: extraHeaders,
		Metrics:      metrics,
	}), nil
}

func newGeminiBackend(ctx context.Context, spec backendSpec, metrics *telem.Metrics) (*vlm.GeminiBackend, error) {
	model := spec.Model
	if model == "" {
		model = "gemini-1.5-flash"
	}
	apiKey := spec.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("no API key found. Set SHAPEQA_API_KEY or GEMINI_API_KEY")
	}

	return vlm.NewGeminiBackend(ctx, vlm.GeminiConfig{
		BaseURL:   spec.BaseURL,
		APIKey:    apiKey,
		Model:     model,
		MaxTokens: spec.MaxTokens,
		Metrics:   metrics,
	})
}

func newOllamaBackend(spec backendSpec, cfg *config.Config, metrics *telem.Metrics) vlm.Backend {
	model := spec.Model
	if model == "" {
		model = "llava"
	}
	return vlm.NewOllamaBackend(vlm.OllamaConfig{
		BaseURL:     spec.BaseURL,
		Model:       model,
		MaxTokens:   spec.MaxTokens,
		KeepAlive:   cfg.OllamaKeepAlive,
		LoadTimeout: cfg.CallTimeoutDuration,
		Metrics:     metrics,
	})
}
