package narrative

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/backlogjudge/backlogjudge/internal/judge"
	"github.com/backlogjudge/backlogjudge/internal/models"
	"github.com/backlogjudge/backlogjudge/internal/prompts"
)

func sampleScores(score float64) []models.MetricResult {
	return []models.MetricResult{
		{Metric: "relevance", Score: score},
		{Metric: "accuracy", Score: score},
	}
}

func TestSummary(t *testing.T) {
	client := &judge.StubClient{
		Reply: func(ctx context.Context, call int, system, user string) (judge.Completion, error) {
			require.Equal(t, prompts.SystemSummary, system)
			require.Contains(t, user, "relevance")
			require.Contains(t, user, "Login story")
			return judge.Completion{Text: "  The story is clear and well scoped.  ", Usage: models.Usage{TokensIn: 40, TokensOut: 15}}, nil
		},
	}
	gen := New(client, judge.Params{MaxTokens: 200}, judge.Params{MaxTokens: 300})

	summary, usage := gen.Summary(context.Background(), sampleScores(0.8), models.BacklogUserStory, "Login story")
	require.Equal(t, "The story is clear and well scoped.", summary)
	require.Equal(t, models.Usage{TokensIn: 40, TokensOut: 15}, usage)
}

func TestSummaryFallsBackOnError(t *testing.T) {
	client := &judge.StubClient{
		Reply: func(ctx context.Context, call int, system, user string) (judge.Completion, error) {
			return judge.Completion{}, judge.Transient(errors.New("judge down"))
		},
	}
	gen := New(client, judge.Params{}, judge.Params{})

	summary, _ := gen.Summary(context.Background(), sampleScores(0.8), models.BacklogEpic, "t")
	require.Equal(t, fallbackSummary, summary)
}

func TestSummaryFallsBackOnEmptyReply(t *testing.T) {
	client := &judge.StubClient{}
	gen := New(client, judge.Params{}, judge.Params{})

	summary, _ := gen.Summary(context.Background(), sampleScores(0.8), models.BacklogEpic, "t")
	require.Equal(t, fallbackSummary, summary)
}

func TestRecommendationsHealthyScoresSkipJudge(t *testing.T) {
	client := &judge.StubClient{
		Reply: func(ctx context.Context, call int, system, user string) (judge.Completion, error) {
			t.Error("no judge call expected when every metric is healthy")
			return judge.Completion{}, nil
		},
	}
	gen := New(client, judge.Params{}, judge.Params{})

	recs, usage := gen.Recommendations(context.Background(), sampleScores(0.9), models.BacklogFeature)
	require.Equal(t, []string{fallbackRecommendationsGood}, recs)
	require.Zero(t, usage)
}

func TestRecommendationsFromLowScores(t *testing.T) {
	client := &judge.StubClient{
		Reply: func(ctx context.Context, call int, system, user string) (judge.Completion, error) {
			require.Equal(t, prompts.SystemRecommendations, system)
			require.Contains(t, user, "relevance")
			return judge.Completion{Text: "# Recommendations\n1. Add acceptance criteria.\n\n2. Reference the context.\n"}, nil
		},
	}
	gen := New(client, judge.Params{}, judge.Params{})

	recs, _ := gen.Recommendations(context.Background(), sampleScores(0.5), models.BacklogFeature)
	require.Equal(t, []string{"1. Add acceptance criteria.", "2. Reference the context."}, recs)
}

func TestRecommendationsCappedAtFive(t *testing.T) {
	client := &judge.StubClient{
		Reply: func(ctx context.Context, call int, system, user string) (judge.Completion, error) {
			return judge.Completion{Text: "1. a\n2. b\n3. c\n4. d\n5. e\n6. f\n7. g"}, nil
		},
	}
	gen := New(client, judge.Params{}, judge.Params{})

	recs, _ := gen.Recommendations(context.Background(), sampleScores(0.5), models.BacklogFeature)
	require.Len(t, recs, 5)
	require.Equal(t, "5. e", recs[4])
}

func TestRecommendationsFallsBackOnError(t *testing.T) {
	client := &judge.StubClient{
		Reply: func(ctx context.Context, call int, system, user string) (judge.Completion, error) {
			return judge.Completion{}, judge.Transient(errors.New("timeout"))
		},
	}
	gen := New(client, judge.Params{}, judge.Params{})

	recs, _ := gen.Recommendations(context.Background(), sampleScores(0.2), models.BacklogFeature)
	require.Equal(t, []string{fallbackRecommendationsLow}, recs)
}
