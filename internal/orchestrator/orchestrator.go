// Package orchestrator drives a full evaluation: it fans the active metric
// set out across workers, joins results in registry order, aggregates the
// weighted score, and attaches the narrative.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/backlogjudge/backlogjudge/internal/evaluator"
	"github.com/backlogjudge/backlogjudge/internal/models"
	"github.com/backlogjudge/backlogjudge/internal/narrative"
	"github.com/backlogjudge/backlogjudge/internal/registry"
	"github.com/backlogjudge/backlogjudge/internal/scoring"
)

const defaultRequestTimeout = 120 * time.Second

// Orchestrator owns one metric registry and the collaborators needed to run
// it. Stateless across requests; safe for concurrent use.
type Orchestrator struct {
	evaluator  *evaluator.Evaluator
	narrative  *narrative.Generator
	registry   *registry.Registry
	validation *registry.Registry
	model      string

	requestTimeout time.Duration

	// workers caps concurrent metric evaluations; 0 means one goroutine per
	// metric, so no metric ever waits on another's latency.
	workers int
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRegistry replaces the comprehensive metric set.
func WithRegistry(reg *registry.Registry) Option {
	return func(o *Orchestrator) {
		o.registry = reg
	}
}

// WithLibraryMetrics appends the automated metric set to the comprehensive
// one. Library metrics are reported but never weighted.
func WithLibraryMetrics() Option {
	return func(o *Orchestrator) {
		merged, err := registry.Merge(o.registry, registry.Library())
		if err != nil {
			// Only reachable if the two built-in sets collide, which is a
			// programming error.
			panic(err)
		}
		o.registry = merged
	}
}

// WithRequestTimeout sets the wall-clock ceiling for a whole evaluation.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.requestTimeout = d
		}
	}
}

// WithWorkers caps how many metrics evaluate concurrently. By default there
// is no cap and every metric in the registry runs at once.
func WithWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.workers = n
		}
	}
}

// New creates an orchestrator over the default comprehensive metric set.
// model is recorded in response metadata only.
func New(eval *evaluator.Evaluator, gen *narrative.Generator, model string, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		evaluator:      eval,
		narrative:      gen,
		registry:       registry.Comprehensive(),
		validation:     registry.Validation(),
		model:          model,
		requestTimeout: defaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Evaluate runs a comprehensive evaluation. Individual metric failures
// degrade; the evaluation as a whole fails only when every weighted metric
// degraded and there is nothing left to aggregate.
func (o *Orchestrator) Evaluate(ctx context.Context, req *models.EvaluationRequest) (*models.EvaluationResult, error) {
	start := time.Now()
	sessionID := sessionIDFor(req)

	ctx, cancel := context.WithTimeout(ctx, o.requestTimeout)
	defer cancel()

	defs := o.registry.Definitions()
	results := make([]models.MetricResult, len(defs))
	usages := make([]models.Usage, len(defs))

	var group errgroup.Group
	if o.workers > 0 {
		group.SetLimit(o.workers)
	}
	for i, def := range defs {
		group.Go(func() error {
			results[i], usages[i] = o.evaluator.Evaluate(ctx, def, req)
			return nil
		})
	}
	// Workers never return errors; failures arrive as degraded results.
	_ = group.Wait()

	totalUsage := models.Usage{}
	for _, u := range usages {
		totalUsage = totalUsage.Add(u)
	}

	overall, err := scoring.Aggregate(o.registry, results)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, err)
	}

	scoring.ApplyReasoningPolicy(results)

	// The two narrative calls are independent judge requests; overlap them.
	var summary string
	var recs []string
	var summaryUsage, recUsage models.Usage
	var narrativeGroup errgroup.Group
	narrativeGroup.Go(func() error {
		summary, summaryUsage = o.narrative.Summary(ctx, results, req.BacklogType, req.GeneratedContent.Title)
		return nil
	})
	narrativeGroup.Go(func() error {
		recs, recUsage = o.narrative.Recommendations(ctx, results, req.BacklogType)
		return nil
	})
	_ = narrativeGroup.Wait()
	totalUsage = totalUsage.Add(summaryUsage).Add(recUsage)

	slog.InfoContext(ctx, "evaluation complete",
		"session_id", sessionID,
		"overall_score", overall,
		"severity", models.SeverityFor(overall),
		"metrics", len(results),
		"duration_ms", time.Since(start).Milliseconds())

	return &models.EvaluationResult{
		SessionID:       sessionID,
		OverallScore:    overall,
		MetricScores:    results,
		Summary:         summary,
		Recommendations: strings.Join(recs, "\n"),
		Timestamp:       time.Now().UTC(),
		Metadata: models.EvaluationMetadata{
			TokensIn:         totalUsage.TokensIn,
			TokensOut:        totalUsage.TokensOut,
			EvaluationTimeMS: time.Since(start).Milliseconds(),
			Model:            o.model,
			Mode:             models.ModeComprehensive,
		},
	}, nil
}

// Validate runs the single binary template-compliance check. The verdict's
// reason is surfaced as the summary; the metric itself follows the usual
// reasoning presence rule.
func (o *Orchestrator) Validate(ctx context.Context, req *models.EvaluationRequest) (*models.EvaluationResult, error) {
	start := time.Now()
	sessionID := sessionIDFor(req)

	ctx, cancel := context.WithTimeout(ctx, o.requestTimeout)
	defer cancel()

	def := o.validation.Definitions()[0]
	result, usage := o.evaluator.EvaluateValidation(ctx, def, req)
	if result.Degraded {
		return nil, fmt.Errorf("session %s: %w", sessionID, scoring.ErrAggregationFailed)
	}

	summary := result.Reasoning
	results := []models.MetricResult{result}
	scoring.ApplyReasoningPolicy(results)

	slog.InfoContext(ctx, "validation complete",
		"session_id", sessionID,
		"proceed", result.Score >= def.Threshold,
		"duration_ms", time.Since(start).Milliseconds())

	return &models.EvaluationResult{
		SessionID:    sessionID,
		OverallScore: results[0].Score,
		MetricScores: results,
		Summary:      summary,
		Timestamp:    time.Now().UTC(),
		Metadata: models.EvaluationMetadata{
			TokensIn:         usage.TokensIn,
			TokensOut:        usage.TokensOut,
			EvaluationTimeMS: time.Since(start).Milliseconds(),
			Model:            o.model,
			Mode:             models.ModeValidation,
		},
	}, nil
}

// Registry exposes the active metric set for the catalog endpoint.
func (o *Orchestrator) Registry() *registry.Registry {
	return o.registry
}

// sessionIDFor returns the caller's session id, minting one when the request
// carries none. The request itself is never written to.
func sessionIDFor(req *models.EvaluationRequest) string {
	if req.SessionID != "" {
		return req.SessionID
	}
	return uuid.NewString()
}
