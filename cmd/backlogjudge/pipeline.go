package main

import (
	"context"
	"fmt"

	"github.com/backlogjudge/backlogjudge/internal/config"
	"github.com/backlogjudge/backlogjudge/internal/evaluator"
	"github.com/backlogjudge/backlogjudge/internal/judge"
	"github.com/backlogjudge/backlogjudge/internal/narrative"
	"github.com/backlogjudge/backlogjudge/internal/orchestrator"
	"github.com/backlogjudge/backlogjudge/internal/registry"
)

// buildOrchestrator wires the full evaluation pipeline from configuration.
// overridesPath optionally points at a YAML file adjusting metric weights
// and thresholds.
func buildOrchestrator(ctx context.Context, overridesPath string) (*orchestrator.Orchestrator, *config.Config, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, nil, err
	}

	client, err := judge.NewOpenAIClient(judge.ClientConfig{
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Model:       cfg.Model,
		CallTimeout: judge.CallTimeout(cfg.CallTimeout),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("building judge client: %w", err)
	}

	evalParams := judge.Params{Temperature: cfg.Temperature, MaxTokens: cfg.MaxTokensEvaluation}
	eval := evaluator.New(client, evalParams, cfg.MaxRetries, cfg.RetryDelay)

	gen := narrative.New(client,
		judge.Params{Temperature: cfg.Temperature, MaxTokens: cfg.MaxTokensSummary},
		judge.Params{Temperature: cfg.Temperature, MaxTokens: cfg.MaxTokensRecommendations})

	reg := registry.Comprehensive()
	if overridesPath != "" {
		reg, err = config.ApplyOverrides(reg, overridesPath)
		if err != nil {
			return nil, nil, fmt.Errorf("applying metric overrides: %w", err)
		}
	}

	opts := []orchestrator.Option{
		orchestrator.WithRegistry(reg),
		orchestrator.WithRequestTimeout(cfg.RequestTimeout),
	}
	if cfg.EnableLibraryMetrics {
		opts = append(opts, orchestrator.WithLibraryMetrics())
	}

	return orchestrator.New(eval, gen, cfg.Model, opts...), cfg, nil
}
