package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/backlogjudge/backlogjudge/internal/evaluator"
	"github.com/backlogjudge/backlogjudge/internal/judge"
	"github.com/backlogjudge/backlogjudge/internal/models"
	"github.com/backlogjudge/backlogjudge/internal/narrative"
	"github.com/backlogjudge/backlogjudge/internal/prompts"
	"github.com/backlogjudge/backlogjudge/internal/registry"
	"github.com/backlogjudge/backlogjudge/internal/scoring"
)

func testRequest() *models.EvaluationRequest {
	return &models.EvaluationRequest{
		BacklogType: models.BacklogFeature,
		UserPrompt:  "Add SSO support",
		GeneratedContent: models.GeneratedContent{
			Title:           "SSO feature",
			FormattedOutput: "## Feature\nSingle sign-on via OIDC...",
		},
	}
}

// scriptedJudge answers metric calls with a fixed verdict and narrative calls
// with plain text, regardless of order.
func scriptedJudge(verdict string) *judge.StubClient {
	return &judge.StubClient{
		Reply: func(ctx context.Context, call int, system, user string) (judge.Completion, error) {
			switch system {
			case prompts.SystemSummary:
				return judge.Completion{Text: "Solid overall quality.", Usage: models.Usage{TokensIn: 5, TokensOut: 5}}, nil
			case prompts.SystemRecommendations:
				return judge.Completion{Text: "1. Tighten the acceptance criteria.\n2. Name the identity provider.", Usage: models.Usage{TokensIn: 5, TokensOut: 5}}, nil
			default:
				return judge.Completion{Text: verdict, Usage: models.Usage{TokensIn: 10, TokensOut: 2}}, nil
			}
		},
	}
}

func newTestOrchestrator(t *testing.T, client judge.Client, opts ...Option) *Orchestrator {
	t.Helper()
	noSleep := func(ctx context.Context, d time.Duration) error {
		return nil
	}
	eval := evaluator.New(client, judge.Params{}, 1, 0, evaluator.WithSleep(noSleep))
	gen := narrative.New(client, judge.Params{}, judge.Params{})
	return New(eval, gen, "test-model", opts...)
}

func TestEvaluateComprehensive(t *testing.T) {
	client := scriptedJudge(`{"score": 0.9, "reasoning": "strong", "confidence": 0.85}`)
	orch := newTestOrchestrator(t, client)

	result, err := orch.Evaluate(context.Background(), testRequest())
	require.NoError(t, err)

	require.Equal(t, 0.9, result.OverallScore)
	require.Len(t, result.MetricScores, registry.Comprehensive().Len())

	// Results join in registry order no matter how the workers interleave.
	for i, def := range registry.Comprehensive().Definitions() {
		require.Equal(t, def.ID, result.MetricScores[i].Metric)
		// High scores carry no reasoning.
		require.Empty(t, result.MetricScores[i].Reasoning)
	}

	require.Equal(t, "Solid overall quality.", result.Summary)
	require.NotEmpty(t, result.SessionID)
	require.Equal(t, models.ModeComprehensive, result.Metadata.Mode)
	require.Equal(t, "test-model", result.Metadata.Model)
	require.NotZero(t, result.Metadata.TokensIn)
	require.False(t, result.Timestamp.IsZero())
}

func TestEvaluateKeepsCallerSessionID(t *testing.T) {
	client := scriptedJudge(`{"score": 0.8, "confidence": 0.8}`)
	orch := newTestOrchestrator(t, client)

	req := testRequest()
	req.SessionID = "caller-supplied"
	result, err := orch.Evaluate(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, "caller-supplied", result.SessionID)
}

func TestEvaluateDoesNotMutateRequest(t *testing.T) {
	client := scriptedJudge(`{"score": 0.8, "confidence": 0.8}`)
	orch := newTestOrchestrator(t, client)

	req := testRequest()
	result, err := orch.Evaluate(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, result.SessionID)
	// The generated session id is carried in the result only; the caller's
	// request stays exactly as constructed.
	require.Equal(t, testRequest(), req)
}

func TestEvaluateIsDeterministic(t *testing.T) {
	// Against a deterministic judge, the same request evaluates to the same
	// result: scores, pass flags, and reasoning presence all repeat.
	reply := func(ctx context.Context, call int, system, user string) (judge.Completion, error) {
		switch system {
		case prompts.SystemSummary:
			return judge.Completion{Text: "Mixed quality."}, nil
		case prompts.SystemRecommendations:
			return judge.Completion{Text: "1. Clarify the flow."}, nil
		}
		if strings.Contains(user, "clarity and readability") {
			return judge.Completion{Text: `{"score": 0.4, "reasoning": "hard to follow", "confidence": 0.8}`}, nil
		}
		return judge.Completion{Text: `{"score": 0.9, "confidence": 0.85}`}, nil
	}

	first, err := newTestOrchestrator(t, &judge.StubClient{Reply: reply}).Evaluate(context.Background(), testRequest())
	require.NoError(t, err)
	second, err := newTestOrchestrator(t, &judge.StubClient{Reply: reply}).Evaluate(context.Background(), testRequest())
	require.NoError(t, err)

	require.Equal(t, first.OverallScore, second.OverallScore)
	require.Equal(t, first.Summary, second.Summary)
	require.Equal(t, first.Recommendations, second.Recommendations)
	require.Len(t, second.MetricScores, len(first.MetricScores))
	for i := range first.MetricScores {
		require.Equal(t, first.MetricScores[i].Metric, second.MetricScores[i].Metric)
		require.Equal(t, first.MetricScores[i].Score, second.MetricScores[i].Score)
		require.Equal(t, first.MetricScores[i].Passed, second.MetricScores[i].Passed)
		require.Equal(t, first.MetricScores[i].Reasoning, second.MetricScores[i].Reasoning)
	}
}

func TestEvaluateLowScoresCarryReasoningAndRecommendations(t *testing.T) {
	client := scriptedJudge(`{"score": 0.4, "reasoning": "misses the prompt", "confidence": 0.8}`)
	orch := newTestOrchestrator(t, client)

	result, err := orch.Evaluate(context.Background(), testRequest())
	require.NoError(t, err)

	require.Equal(t, 0.4, result.OverallScore)
	for _, m := range result.MetricScores {
		require.Equal(t, "misses the prompt", m.Reasoning)
		require.False(t, m.Passed)
	}
	require.Equal(t, "1. Tighten the acceptance criteria.\n2. Name the identity provider.", result.Recommendations)
}

func TestEvaluatePartialFailureRenormalizes(t *testing.T) {
	// Fail exactly the relevance metric; the remaining eight renormalize.
	client := &judge.StubClient{
		Reply: func(ctx context.Context, call int, system, user string) (judge.Completion, error) {
			switch system {
			case prompts.SystemSummary, prompts.SystemRecommendations:
				return judge.Completion{Text: "narrative"}, nil
			}
			if strings.Contains(user, "addresses the user's prompt") {
				return judge.Completion{}, judge.Permanent(fmt.Errorf("rejected"))
			}
			return judge.Completion{Text: `{"score": 0.8, "confidence": 0.8}`}, nil
		},
	}
	orch := newTestOrchestrator(t, client)

	result, err := orch.Evaluate(context.Background(), testRequest())
	require.NoError(t, err)
	require.Equal(t, 0.8, result.OverallScore)
	require.Len(t, result.MetricScores, 9)

	relevance := result.MetricScores[0]
	require.Equal(t, registry.MetricRelevance, relevance.Metric)
	require.Equal(t, 0.0, relevance.Score)
	require.Contains(t, relevance.Reasoning, "evaluation failed")
}

func TestEvaluateAllFailedReturnsAggregationError(t *testing.T) {
	client := &judge.StubClient{
		Reply: func(ctx context.Context, call int, system, user string) (judge.Completion, error) {
			return judge.Completion{}, judge.Permanent(fmt.Errorf("judge down"))
		},
	}
	orch := newTestOrchestrator(t, client)

	_, err := orch.Evaluate(context.Background(), testRequest())
	require.ErrorIs(t, err, scoring.ErrAggregationFailed)
}

func TestEvaluateConcurrencyOverlaps(t *testing.T) {
	// Each metric call takes ~50ms; nine sequential calls would need 450ms.
	// Out of the box every metric runs at once, so the whole evaluation must
	// finish in under two call latencies.
	client := &judge.StubClient{
		Reply: func(ctx context.Context, call int, system, user string) (judge.Completion, error) {
			switch system {
			case prompts.SystemSummary, prompts.SystemRecommendations:
				return judge.Completion{Text: "narrative"}, nil
			}
			time.Sleep(50 * time.Millisecond)
			return judge.Completion{Text: `{"score": 0.8, "confidence": 0.8}`}, nil
		},
	}
	orch := newTestOrchestrator(t, client)

	start := time.Now()
	_, err := orch.Evaluate(context.Background(), testRequest())
	require.NoError(t, err)
	require.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestEvaluateWorkerCapStillCompletes(t *testing.T) {
	client := scriptedJudge(`{"score": 0.8, "confidence": 0.8}`)
	orch := newTestOrchestrator(t, client, WithWorkers(2))

	result, err := orch.Evaluate(context.Background(), testRequest())
	require.NoError(t, err)
	require.Equal(t, 0.8, result.OverallScore)
	require.Len(t, result.MetricScores, registry.Comprehensive().Len())
}

func TestEvaluateDeadlineDegradesStragglers(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	client := &judge.StubClient{
		Reply: func(ctx context.Context, call int, system, user string) (judge.Completion, error) {
			switch system {
			case prompts.SystemSummary, prompts.SystemRecommendations:
				return judge.Completion{Text: "narrative"}, nil
			}
			if strings.Contains(user, "clarity and readability") {
				// Blocks until the request deadline cancels it.
				select {
				case <-release:
				case <-ctx.Done():
				}
				return judge.Completion{}, judge.Transient(ctx.Err())
			}
			return judge.Completion{Text: `{"score": 0.8, "confidence": 0.8}`}, nil
		},
	}
	orch := newTestOrchestrator(t, client, WithRequestTimeout(100*time.Millisecond))

	result, err := orch.Evaluate(context.Background(), testRequest())
	require.NoError(t, err)
	require.Equal(t, 0.8, result.OverallScore)

	var clarity *models.MetricResult
	for i := range result.MetricScores {
		if result.MetricScores[i].Metric == registry.MetricClarity {
			clarity = &result.MetricScores[i]
		}
	}
	require.NotNil(t, clarity)
	require.Contains(t, clarity.Reasoning, "evaluation failed")
}

func TestEvaluateWithLibraryMetrics(t *testing.T) {
	client := scriptedJudge(`{"score": 0.75, "confidence": 0.8}`)
	orch := newTestOrchestrator(t, client, WithLibraryMetrics())

	result, err := orch.Evaluate(context.Background(), testRequest())
	require.NoError(t, err)
	require.Len(t, result.MetricScores, 13)
	// Library metrics are reported but never weighted.
	require.Equal(t, 0.75, result.OverallScore)
}

func TestValidateProceed(t *testing.T) {
	client := &judge.StubClient{
		Reply: func(ctx context.Context, call int, system, user string) (judge.Completion, error) {
			return judge.Completion{Text: `{"proceed": true, "reason": "output matches the template"}`, Usage: models.Usage{TokensIn: 8, TokensOut: 4}}, nil
		},
	}
	orch := newTestOrchestrator(t, client)

	result, err := orch.Validate(context.Background(), testRequest())
	require.NoError(t, err)
	require.Equal(t, 1.0, result.OverallScore)
	require.Len(t, result.MetricScores, 1)
	require.True(t, result.MetricScores[0].Passed)
	// The metric itself follows the reasoning rule; the reason survives as
	// the summary.
	require.Empty(t, result.MetricScores[0].Reasoning)
	require.Equal(t, "output matches the template", result.Summary)
	require.Equal(t, models.ModeValidation, result.Metadata.Mode)
}

func TestValidateDeny(t *testing.T) {
	client := &judge.StubClient{
		Reply: func(ctx context.Context, call int, system, user string) (judge.Completion, error) {
			return judge.Completion{Text: `{"proceed": false, "reason": "sections are missing"}`}, nil
		},
	}
	orch := newTestOrchestrator(t, client)

	result, err := orch.Validate(context.Background(), testRequest())
	require.NoError(t, err)
	require.Equal(t, 0.0, result.OverallScore)
	require.False(t, result.MetricScores[0].Passed)
	require.Equal(t, "sections are missing", result.MetricScores[0].Reasoning)
	require.Equal(t, "sections are missing", result.Summary)
}

func TestValidateJudgeFailure(t *testing.T) {
	client := &judge.StubClient{
		Reply: func(ctx context.Context, call int, system, user string) (judge.Completion, error) {
			return judge.Completion{}, judge.Permanent(fmt.Errorf("bad credentials"))
		},
	}
	orch := newTestOrchestrator(t, client)

	_, err := orch.Validate(context.Background(), testRequest())
	require.ErrorIs(t, err, scoring.ErrAggregationFailed)
}
