// Package evaluator runs a single metric to completion. Evaluate never
// returns an error to its caller: transient failures are retried with
// exponential backoff, and anything unrecoverable is converted into a
// degraded MetricResult the orchestrator can recognize.
package evaluator

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/backlogjudge/backlogjudge/internal/judge"
	"github.com/backlogjudge/backlogjudge/internal/library"
	"github.com/backlogjudge/backlogjudge/internal/models"
	"github.com/backlogjudge/backlogjudge/internal/prompts"
	"github.com/backlogjudge/backlogjudge/internal/registry"
	"github.com/backlogjudge/backlogjudge/internal/validation"
)

// Confidence values carried over from the service's original behavior:
// verdicts that deny in validation mode are held slightly less confidently
// than ones that proceed.
const (
	proceedConfidence = 0.9
	denyConfidence    = 0.8
)

// SleepFunc waits for the given duration or until the context is done.
// Injected in tests to observe backoff without real delays.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Evaluator evaluates metrics against their configured backend. It holds only
// read-only collaborators and is safe for concurrent use.
type Evaluator struct {
	judge      judge.Client
	library    library.Backend
	params     judge.Params
	maxRetries int
	retryDelay time.Duration
	sleep      SleepFunc
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithSleep replaces the backoff sleeper.
func WithSleep(sleep SleepFunc) Option {
	return func(e *Evaluator) {
		e.sleep = sleep
	}
}

// WithLibraryBackend replaces the automated-metric backend.
func WithLibraryBackend(backend library.Backend) Option {
	return func(e *Evaluator) {
		e.library = backend
	}
}

// New creates a metric evaluator. maxRetries is the total attempt budget per
// metric; retryDelay is the base of the exponential backoff.
func New(judgeClient judge.Client, params judge.Params, maxRetries int, retryDelay time.Duration, opts ...Option) *Evaluator {
	if maxRetries < 1 {
		maxRetries = 1
	}
	e := &Evaluator{
		judge:      judgeClient,
		library:    library.NewJudgeBacked(judgeClient, params),
		params:     params,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		sleep:      sleepContext,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Evaluate runs one metric and returns its final result plus the token usage
// consumed across all attempts.
func (e *Evaluator) Evaluate(ctx context.Context, def registry.Definition, req *models.EvaluationRequest) (models.MetricResult, models.Usage) {
	return e.retry(ctx, def, func(ctx context.Context) (models.MetricResult, models.Usage, error) {
		switch def.Kind {
		case registry.KindJudgePrompt:
			return e.evaluateJudgePrompt(ctx, def, req)
		case registry.KindLibraryMetric:
			return e.evaluateLibraryMetric(ctx, def, req)
		default:
			return models.MetricResult{}, models.Usage{}, judge.Permanent(fmt.Errorf("unknown metric kind %q", def.Kind))
		}
	})
}

// EvaluateValidation runs the single binary proceed/deny check. The caller's
// system prompt carries the validation instructions; the score is exactly 1.0
// or 0.0.
func (e *Evaluator) EvaluateValidation(ctx context.Context, def registry.Definition, req *models.EvaluationRequest) (models.MetricResult, models.Usage) {
	return e.retry(ctx, def, func(ctx context.Context) (models.MetricResult, models.Usage, error) {
		message, err := prompts.ForValidation(req)
		if err != nil {
			return models.MetricResult{}, models.Usage{}, judge.Permanent(err)
		}

		systemPrompt := req.SystemPrompt
		if systemPrompt == "" {
			systemPrompt = prompts.SystemEvaluation
		}

		completion, err := e.judge.Complete(ctx, systemPrompt, message, e.params)
		if err != nil {
			return models.MetricResult{}, completion.Usage, err
		}

		verdict, err := validation.ParseValidationVerdict(completion.Text)
		if err != nil {
			return models.MetricResult{}, completion.Usage, judge.Transient(err)
		}

		score, confidence := 0.0, denyConfidence
		if verdict.Proceed {
			score, confidence = 1.0, proceedConfidence
		}
		return models.MetricResult{
			Metric:     def.ID,
			Score:      score,
			Confidence: confidence,
			Reasoning:  verdict.Reason,
			Passed:     score >= def.Threshold,
		}, completion.Usage, nil
	})
}

// retry is the bounded attempt loop shared by every metric kind. Its three
// exits are success, permanent failure, and exhausted attempts; the latter
// two both produce a degraded result.
func (e *Evaluator) retry(ctx context.Context, def registry.Definition, attempt func(ctx context.Context) (models.MetricResult, models.Usage, error)) (models.MetricResult, models.Usage) {
	var totalUsage models.Usage
	var lastErr error

	attempts := 0
	for attempts < e.maxRetries {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}

		attempts++
		result, usage, err := attempt(ctx)
		totalUsage = totalUsage.Add(usage)

		if err == nil {
			result.Attempts = attempts
			return result, totalUsage
		}
		lastErr = err

		if judge.IsPermanent(err) {
			slog.WarnContext(ctx, "metric evaluation failed permanently",
				"metric", def.ID, "attempt", attempts, "error", err)
			break
		}

		slog.WarnContext(ctx, "metric evaluation attempt failed",
			"metric", def.ID, "attempt", attempts, "error", err)

		if attempts < e.maxRetries {
			delay := e.retryDelay * time.Duration(1<<(attempts-1))
			if err := e.sleep(ctx, delay); err != nil {
				lastErr = err
				break
			}
		}
	}

	return degraded(def, attempts, lastErr), totalUsage
}

// degraded builds the placeholder result for a metric that could not be
// evaluated.
func degraded(def registry.Definition, attempts int, cause error) models.MetricResult {
	msg := "evaluation failed"
	if cause != nil {
		msg = fmt.Sprintf("evaluation failed: %v", cause)
	}
	return models.MetricResult{
		Metric:     def.ID,
		Score:      0.0,
		Confidence: 0.0,
		Reasoning:  msg,
		Passed:     false,
		Degraded:   true,
		Attempts:   attempts,
	}
}

func (e *Evaluator) evaluateJudgePrompt(ctx context.Context, def registry.Definition, req *models.EvaluationRequest) (models.MetricResult, models.Usage, error) {
	prompt, err := prompts.ForMetric(def.ID, req)
	if err != nil {
		// A missing template is a registration bug; retrying cannot help.
		return models.MetricResult{}, models.Usage{}, judge.Permanent(err)
	}

	completion, err := e.judge.Complete(ctx, prompts.SystemEvaluation, prompt, e.params)
	if err != nil {
		return models.MetricResult{}, completion.Usage, err
	}

	verdict, err := validation.ParseVerdict(completion.Text)
	if err != nil {
		return models.MetricResult{}, completion.Usage, judge.Transient(err)
	}

	return buildResult(def, verdict.Score, verdict.Confidence, verdict.Reasoning), completion.Usage, nil
}

func (e *Evaluator) evaluateLibraryMetric(ctx context.Context, def registry.Definition, req *models.EvaluationRequest) (models.MetricResult, models.Usage, error) {
	res, err := e.library.Score(ctx, def.ID, req)
	if err != nil {
		return models.MetricResult{}, res.Usage, err
	}
	return buildResult(def, res.Score, res.Confidence, res.Reasoning), res.Usage, nil
}

// buildResult normalizes a backend verdict into a MetricResult: scores are
// clamped and rounded to two decimals, and a missing confidence falls back to
// the metric's documented baseline.
func buildResult(def registry.Definition, score float64, confidence *float64, reasoning string) models.MetricResult {
	clamped := round2(models.Clamp01(score))

	conf := def.BaselineConfidence
	if confidence != nil {
		conf = models.Clamp01(*confidence)
	}

	return models.MetricResult{
		Metric:     def.ID,
		Score:      clamped,
		Confidence: conf,
		Reasoning:  reasoning,
		Passed:     clamped >= def.Threshold,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
