// Package config builds the process-wide configuration. A Config is
// constructed once at startup and passed by pointer; nothing mutates it after
// that.
package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config is the immutable runtime configuration.
type Config struct {
	// Judge endpoint. The base URL points at an OpenAI-compatible gateway.
	APIKey  string `env:"BACKLOGJUDGE_API_KEY"`
	BaseURL string `env:"BACKLOGJUDGE_BASE_URL"`
	Model   string `env:"BACKLOGJUDGE_MODEL, default=gpt-4o-mini"`

	// Server.
	Port int `env:"BACKLOGJUDGE_PORT, default=8040"`

	// Generation budgets.
	Temperature              float64 `env:"BACKLOGJUDGE_TEMPERATURE, default=0.6"`
	MaxTokensEvaluation      int64   `env:"BACKLOGJUDGE_MAX_TOKENS_EVALUATION, default=2000"`
	MaxTokensSummary         int64   `env:"BACKLOGJUDGE_MAX_TOKENS_SUMMARY, default=200"`
	MaxTokensRecommendations int64   `env:"BACKLOGJUDGE_MAX_TOKENS_RECOMMENDATIONS, default=300"`

	// Retry policy for a single metric evaluation.
	MaxRetries int           `env:"BACKLOGJUDGE_MAX_RETRIES, default=3"`
	RetryDelay time.Duration `env:"BACKLOGJUDGE_RETRY_DELAY, default=1s"`

	// RequestTimeout is the overall wall-clock ceiling per evaluation;
	// CallTimeout bounds each individual judge call.
	RequestTimeout time.Duration `env:"BACKLOGJUDGE_REQUEST_TIMEOUT, default=120s"`
	CallTimeout    time.Duration `env:"BACKLOGJUDGE_CALL_TIMEOUT, default=60s"`

	// EnableLibraryMetrics adds the automated library metrics to the
	// comprehensive set. They never carry weight.
	EnableLibraryMetrics bool `env:"BACKLOGJUDGE_LIBRARY_METRICS, default=false"`
}

// Load reads configuration from the environment.
func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFrom reads configuration from an explicit lookuper (used by tests).
func LoadFrom(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	})
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.MaxRetries < 1 {
		return fmt.Errorf("max retries must be at least 1, got %d", c.MaxRetries)
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("retry delay must not be negative, got %v", c.RetryDelay)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature %v outside [0,2]", c.Temperature)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %v", c.RequestTimeout)
	}
	return nil
}
