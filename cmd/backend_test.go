package cmd

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/timvw/shapeqa/internal/config"
)

func TestJudgeSpec(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *config.Config)
		want   backendSpec
	}{
		{
			name: "inherits candidate",
			mutate: func(c *config.Config) {
				c.Provider, c.Model, c.BaseURL, c.APIKey = "openai", "gpt-4o", "http://proxy", "k"
			},
			want: backendSpec{Provider: "openai", Model: "gpt-4o", BaseURL: "http://proxy", APIKey: "k", MaxTokens: 16},
		},
		{
			name: "model override keeps endpoint",
			mutate: func(c *config.Config) {
				c.Provider, c.Model, c.APIKey = "anthropic", "big", "k"
				c.JudgeModel = "small"
			},
			want: backendSpec{Provider: "anthropic", Model: "small", APIKey: "k", MaxTokens: 16},
		},
		{
			name: "other provider drops candidate endpoint",
			mutate: func(c *config.Config) {
				c.Provider, c.Model, c.BaseURL, c.APIKey = "ollama", "llava", "http://gpu:11434", ""
				c.JudgeProvider = "openai"
				c.JudgeAPIKey = "judge-key"
			},
			want: backendSpec{Provider: "openai", APIKey: "judge-key", MaxTokens: 16},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Defaults()
			tt.mutate(cfg)
			if got := judgeSpec(cfg); got != tt.want {
				t.Errorf("judgeSpec: got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestNewBackend(t *testing.T) {
	for _, key := range []string{"AZURE_RESOURCE_NAME", "AZURE_OPENAI_API_KEY", "ANTHROPIC_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY"} {
		t.Setenv(key, "")
	}
	cfg := config.Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	log := zap.NewNop()

	b, closeFn, err := newBackend(ctx, backendSpec{Provider: "ollama"}, cfg, nil, log)
	if err != nil {
		t.Fatalf("ollama: %v", err)
	}
	defer closeFn()
	if b.Provider() != "ollama" || b.Model() != "llava" {
		t.Errorf("ollama defaults: got %s/%s", b.Provider(), b.Model())
	}

	b, _, err = newBackend(ctx, backendSpec{Provider: "openai", APIKey: "k"}, cfg, nil, log)
	if err != nil {
		t.Fatalf("openai: %v", err)
	}
	if b.Model() != "gpt-4o-mini" {
		t.Errorf("openai default model: got %q", b.Model())
	}

	t.Setenv("ANTHROPIC_API_KEY", "from-env")
	b, _, err = newBackend(ctx, backendSpec{Provider: "anthropic"}, cfg, nil, log)
	if err != nil {
		t.Fatalf("anthropic with env key: %v", err)
	}
	if b.Model() != "claude-sonnet-4-5" {
		t.Errorf("anthropic default model: got %q", b.Model())
	}

	errTests := []struct {
		spec    backendSpec
		wantErr string
	}{
		{backendSpec{Provider: "openai"}, "OPENAI_API_KEY"},
		{backendSpec{Provider: "gemini"}, "GEMINI_API_KEY"},
		{backendSpec{Provider: "bedrock"}, "unknown provider"},
	}
	for _, tt := range errTests {
		_, _, err := newBackend(ctx, tt.spec, cfg, nil, log)
		if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
			t.Errorf("newBackend(%s): got %v, want error containing %q", tt.spec.Provider, err, tt.wantErr)
		}
	}
}
