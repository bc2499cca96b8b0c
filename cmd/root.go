package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/timvw/shapeqa/internal/config"
)

var (
	// Global flags.
	flagConfig        string
	flagProvider      string
	flagModel         string
	flagBaseURL       string
	flagAPIKey        string
	flagMaxTokens     int64
	flagJudgeProvider string
	flagJudgeModel    string
	flagVerbose       bool
	flagTheme         string
)

var rootCmd = &cobra.Command{
	Use:   "shapeqa",
	Short: "Evaluate vision-language models on shape and color questions",
	Long: `shapeqa measures how well a vision-language model answers questions
about simple synthetic scenes of colored circles, squares and triangles.

Each question is answered by one of three agents:
  zero_shot  the raw question goes to the model with the image
  classic    a color/shape detector describes the scene, the model reads it
  dl         the model plans, extracts context, then synthesizes an answer

A judge model compares every answer to the ground truth and the run
reports accuracy per agent. Rows the judge cannot decide are excluded.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: .shapeqa.yaml, then ~/.config/shapeqa/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagProvider, "provider", "", "VLM provider: anthropic, openai, gemini, ollama")
	rootCmd.PersistentFlags().StringVar(&flagModel, "model", "", "VLM model name (default depends on provider)")
	rootCmd.PersistentFlags().StringVar(&flagBaseURL, "base-url", "", "override VLM API base URL")
	rootCmd.PersistentFlags().StringVar(&flagAPIKey, "api-key", "", "override VLM API key")
	rootCmd.PersistentFlags().Int64Var(&flagMaxTokens, "max-tokens", 0, "max completion tokens per call (default: 1024)")
	rootCmd.PersistentFlags().StringVar(&flagJudgeProvider, "judge-provider", "", "judge provider (default: same as --provider)")
	rootCmd.PersistentFlags().StringVar(&flagJudgeModel, "judge-model", "", "judge model (default: same as --model)")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "debug logging")
	rootCmd.PersistentFlags().StringVar(&flagTheme, "theme", "", "color theme: dark, light")
}

// loadConfig resolves defaults, config file and environment, then applies
// the flags the user actually set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("provider") {
		cfg.Provider = flagProvider
	}
	if flags.Changed("model") {
		cfg.Model = flagModel
	}
	if flags.Changed("base-url") {
		cfg.BaseURL = flagBaseURL
	}
	if flags.Changed("api-key") {
		cfg.APIKey = flagAPIKey
	}
	if flags.Changed("max-tokens") {
		cfg.MaxTokens = flagMaxTokens
	}
	if flags.Changed("judge-provider") {
		cfg.JudgeProvider = flagJudgeProvider
	}
	if flags.Changed("judge-model") {
		cfg.JudgeModel = flagJudgeModel
	}
	if flags.Changed("theme") {
		cfg.Theme = flagTheme
	}
	applyRunFlags(cmd, cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
