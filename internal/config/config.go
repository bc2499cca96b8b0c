// Package config loads shapeqa configuration from file and environment.
//
// Precedence (highest to lowest):
//  1. Command-line flags (applied by cmd after Load)
//  2. Environment variables (SHAPEQA_*)
//  3. Config file
//  4. Built-in defaults
//
// Config file search order:
//  1. the path given with --config
//  2. .shapeqa.yaml in current directory
//  3. ~/.config/shapeqa/config.yaml
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/timvw/shapeqa/internal/vision"
)

// Config holds all shapeqa configuration.
type Config struct {
	// Run settings
	Mode        string `yaml:"mode" validate:"oneof=zero_shot classic dl all show_sample"`
	SampleIndex int    `yaml:"sample_index" validate:"gte=0"`
	DatasetPath string `yaml:"dataset_path" validate:"required"`
	ImagesDir   string `yaml:"images_dir"`
	LogPath     string `yaml:"log_path"`
	OutputDir   string `yaml:"output_dir" validate:"required"`
	Theme       string `yaml:"theme" validate:"omitempty,oneof=dark light"`

	// Candidate VLM
	Provider  string `yaml:"provider" validate:"oneof=anthropic openai gemini ollama"`
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"`
	MaxTokens int64  `yaml:"max_tokens" validate:"gte=0"`

	// Judge VLM. Empty values inherit the candidate's.
	JudgeProvider  string `yaml:"judge_provider" validate:"omitempty,oneof=anthropic openai gemini ollama"`
	JudgeModel     string `yaml:"judge_model"`
	JudgeBaseURL   string `yaml:"judge_base_url"`
	JudgeAPIKey    string `yaml:"judge_api_key"`
	JudgeMaxTokens int64  `yaml:"judge_max_tokens" validate:"gte=0"`

	// Hardening
	CallTimeout   string `yaml:"call_timeout"`    // Go duration string, "0" disables
	MaxRetries    int    `yaml:"max_retries" validate:"gte=0,lte=10"`
	JudgeCacheTTL string `yaml:"judge_cache_ttl"` // Go duration string, "0" disables

	// Ollama
	OllamaKeepAlive string `yaml:"ollama_keep_alive"`

	// Detector thresholds
	Detector vision.Thresholds `yaml:"detector"`

	// OTEL
	OTELEndpoint string `yaml:"otel_endpoint"`
	OTELHeaders  string `yaml:"otel_headers"` // Comma-separated key=value pairs

	// Parsed durations (not from YAML, set by Validate)
	CallTimeoutDuration   time.Duration `yaml:"-"`
	JudgeCacheTTLDuration time.Duration `yaml:"-"`

	// ConfigFile is the path to the config file that was loaded (empty if none).
	ConfigFile string `yaml:"-"`
}

// Defaults returns a Config with all default values.
func Defaults() *Config {
	return &Config{
		Mode:           "all",
		DatasetPath:    filepath.Join("data", "dataset.csv"),
		ImagesDir:      filepath.Join("data", "images"),
		LogPath:        filepath.Join("logs", "evaluation.log"),
		OutputDir:      "results",
		Theme:          "dark",
		Provider:       "anthropic",
		MaxTokens:      1024,
		JudgeMaxTokens: 16,
		CallTimeout:    "0",
		JudgeCacheTTL:  "0",
		Detector:       vision.DefaultThresholds(),
	}
}

// Load reads configuration from file and environment variables. path
// selects the config file explicitly; when empty the default locations are
// searched and a missing file is fine. The result is not validated: apply
// flag overrides first, then call Validate.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path, data, err := findConfigFile(path); err == nil {
		var fileCfg Config
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
		cfg.ConfigFile = path
		mergeFile(cfg, &fileCfg)
		if err := mergeDetector(cfg, data); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	} else if !errors.Is(err, errNoConfigFile) {
		return nil, err
	}

	mergeEnv(cfg)
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and parses duration strings. Call it
// once all overrides are applied.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Detector.MinArea < 0 || c.Detector.EpsilonFactor <= 0 || c.Detector.SquareTolerance < 0 || c.Detector.Circularity <= 0 || c.Detector.Circularity > 1 {
		return fmt.Errorf("invalid detector thresholds: %+v", c.Detector)
	}

	var err error
	c.CallTimeoutDuration, err = parseDurationOrDisable(c.CallTimeout, 0)
	if err != nil {
		return fmt.Errorf("invalid call timeout %q: %w", c.CallTimeout, err)
	}
	c.JudgeCacheTTLDuration, err = parseDurationOrDisable(c.JudgeCacheTTL, 0)
	if err != nil {
		return fmt.Errorf("invalid judge cache TTL %q: %w", c.JudgeCacheTTL, err)
	}
	return nil
}

var errNoConfigFile = errors.New("no config file found")

// findConfigFile returns the explicit path's contents, or searches the
// default locations.
func findConfigFile(explicit string) (string, []byte, error) {
	if explicit != "" {
		data, err := os.ReadFile(explicit)
		if err != nil {
			return "", nil, fmt.Errorf("reading config file: %w", err)
		}
		return explicit, data, nil
	}

	// 1. Current directory
	if data, err := os.ReadFile(".shapeqa.yaml"); err == nil {
		return ".shapeqa.yaml", data, nil
	}

	// 2. ~/.config
	if home, err := os.UserHomeDir(); err == nil {
		path := filepath.Join(home, ".config", "shapeqa", "config.yaml")
		if data, err := os.ReadFile(path); err == nil {
			return path, data, nil
		}
	}

	return "", nil, errNoConfigFile
}

// mergeFile applies non-zero file values onto cfg.
func mergeFile(cfg *Config, file *Config) {
	setString(&cfg.Mode, file.Mode)
	if file.SampleIndex > 0 {
		cfg.SampleIndex = file.SampleIndex
	}
	setString(&cfg.DatasetPath, file.DatasetPath)
	setString(&cfg.ImagesDir, file.ImagesDir)
	setString(&cfg.LogPath, file.LogPath)
	setString(&cfg.OutputDir, file.OutputDir)
	setString(&cfg.Theme, file.Theme)

	setString(&cfg.Provider, file.Provider)
	setString(&cfg.Model, file.Model)
	setString(&cfg.BaseURL, file.BaseURL)
	setString(&cfg.APIKey, file.APIKey)
	if file.MaxTokens > 0 {
		cfg.MaxTokens = file.MaxTokens
	}

	setString(&cfg.JudgeProvider, file.JudgeProvider)
	setString(&cfg.JudgeModel, file.JudgeModel)
	setString(&cfg.JudgeBaseURL, file.JudgeBaseURL)
	setString(&cfg.JudgeAPIKey, file.JudgeAPIKey)
	if file.JudgeMaxTokens > 0 {
		cfg.JudgeMaxTokens = file.JudgeMaxTokens
	}

	setString(&cfg.CallTimeout, file.CallTimeout)
	if file.MaxRetries > 0 {
		cfg.MaxRetries = file.MaxRetries
	}
	setString(&cfg.JudgeCacheTTL, file.JudgeCacheTTL)
	setString(&cfg.OllamaKeepAlive, file.OllamaKeepAlive)

	setString(&cfg.OTELEndpoint, file.OTELEndpoint)
	setString(&cfg.OTELHeaders, file.OTELHeaders)
}

// mergeDetector decodes the detector section over the current thresholds,
// so keys present in the file win even when zero and absent keys keep
// their defaults.
func mergeDetector(cfg *Config, data []byte) error {
	overlay := struct {
		Detector vision.Thresholds `yaml:"detector"`
	}{Detector: cfg.Detector}
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return err
	}
	cfg.Detector = overlay.Detector
	return nil
}

// mergeEnv applies environment variables onto cfg. Env always wins over
// the file. Malformed numbers are ignored.
func mergeEnv(cfg *Config) {
	setString(&cfg.Mode, os.Getenv("SHAPEQA_MODE"))
	if v, err := strconv.Atoi(os.Getenv("SHAPEQA_SAMPLE_INDEX")); err == nil {
		cfg.SampleIndex = v
	}
	setString(&cfg.DatasetPath, os.Getenv("SHAPEQA_DATASET_PATH"))
	setString(&cfg.ImagesDir, os.Getenv("SHAPEQA_IMAGES_DIR"))
	setString(&cfg.LogPath, os.Getenv("SHAPEQA_LOG_PATH"))
	setString(&cfg.OutputDir, os.Getenv("SHAPEQA_OUTPUT_DIR"))
	setString(&cfg.Theme, os.Getenv("SHAPEQA_THEME"))

	setString(&cfg.Provider, os.Getenv("SHAPEQA_PROVIDER"))
	setString(&cfg.Model, os.Getenv("SHAPEQA_MODEL"))
	setString(&cfg.BaseURL, os.Getenv("SHAPEQA_BASE_URL"))
	setString(&cfg.APIKey, os.Getenv("SHAPEQA_API_KEY"))
	if v, err := strconv.ParseInt(os.Getenv("SHAPEQA_MAX_TOKENS"), 10, 64); err == nil {
		cfg.MaxTokens = v
	}

	setString(&cfg.JudgeProvider, os.Getenv("SHAPEQA_JUDGE_PROVIDER"))
	setString(&cfg.JudgeModel, os.Getenv("SHAPEQA_JUDGE_MODEL"))
	setString(&cfg.JudgeBaseURL, os.Getenv("SHAPEQA_JUDGE_BASE_URL"))
	setString(&cfg.JudgeAPIKey, os.Getenv("SHAPEQA_JUDGE_API_KEY"))
	if v, err := strconv.ParseInt(os.Getenv("SHAPEQA_JUDGE_MAX_TOKENS"), 10, 64); err == nil {
		cfg.JudgeMaxTokens = v
	}

	setString(&cfg.CallTimeout, os.Getenv("SHAPEQA_CALL_TIMEOUT"))
	if v, err := strconv.Atoi(os.Getenv("SHAPEQA_MAX_RETRIES")); err == nil {
		cfg.MaxRetries = v
	}
	setString(&cfg.JudgeCacheTTL, os.Getenv("SHAPEQA_JUDGE_CACHE_TTL"))
	setString(&cfg.OllamaKeepAlive, os.Getenv("SHAPEQA_OLLAMA_KEEP_ALIVE"))

	setFloat(&cfg.Detector.MinArea, os.Getenv("SHAPEQA_DETECTOR_MIN_AREA"))
	setFloat(&cfg.Detector.EpsilonFactor, os.Getenv("SHAPEQA_DETECTOR_EPSILON_FACTOR"))
	setFloat(&cfg.Detector.SquareTolerance, os.Getenv("SHAPEQA_DETECTOR_SQUARE_TOLERANCE"))
	setFloat(&cfg.Detector.Circularity, os.Getenv("SHAPEQA_DETECTOR_CIRCULARITY"))

	setString(&cfg.OTELEndpoint, os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	setString(&cfg.OTELHeaders, os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// setFloat parses v onto dst. Empty or malformed values are ignored.
func setFloat(dst *float64, v string) {
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		*dst = f
	}
}

// parseDurationOrDisable parses a duration string. "0", "off", "disable" return 0.
// Empty string returns the fallback value.
func parseDurationOrDisable(s string, fallback time.Duration) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}
	if s == "0" || s == "off" || s == "disable" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

// IsAzureEndpoint returns true if the URL is an Azure endpoint.
func IsAzureEndpoint(url string) bool {
	return strings.Contains(url, ".azure.com") || strings.Contains(url, ".azure.us")
}
