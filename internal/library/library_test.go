package library

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/backlogjudge/backlogjudge/internal/judge"
	"github.com/backlogjudge/backlogjudge/internal/models"
	"github.com/backlogjudge/backlogjudge/internal/registry"
)

func testRequest() *models.EvaluationRequest {
	return &models.EvaluationRequest{
		UserPrompt: "Add password reset",
		GeneratedContent: models.GeneratedContent{
			Title:           "Password reset",
			FormattedOutput: "## User Story\nAs a user...",
		},
		Context: []models.ContextItem{{Content: "email service exists"}},
	}
}

func TestScore(t *testing.T) {
	client := &judge.StubClient{
		Reply: func(ctx context.Context, call int, system, user string) (judge.Completion, error) {
			require.Contains(t, user, "Add password reset")
			return judge.Completion{
				Text:  `{"score": 0.78, "reasoning": "mostly faithful", "confidence": 0.7}`,
				Usage: models.Usage{TokensIn: 30, TokensOut: 12},
			}, nil
		},
	}
	backend := NewJudgeBacked(client, judge.Params{MaxTokens: 500})

	res, err := backend.Score(context.Background(), registry.MetricFaithfulness, testRequest())
	require.NoError(t, err)
	require.Equal(t, 0.78, res.Score)
	require.NotNil(t, res.Confidence)
	require.Equal(t, 0.7, *res.Confidence)
	require.Equal(t, "mostly faithful", res.Reasoning)
	require.Equal(t, models.Usage{TokensIn: 30, TokensOut: 12}, res.Usage)
}

func TestScoreEachMetricHasARubric(t *testing.T) {
	client := &judge.StubClient{
		Reply: func(ctx context.Context, call int, system, user string) (judge.Completion, error) {
			return judge.Completion{Text: `{"score": 0.5}`}, nil
		},
	}
	backend := NewJudgeBacked(client, judge.Params{})

	for _, def := range registry.Library().Definitions() {
		_, err := backend.Score(context.Background(), def.ID, testRequest())
		require.NoError(t, err, def.ID)
	}
}

func TestScoreUnknownMetricIsPermanent(t *testing.T) {
	backend := NewJudgeBacked(&judge.StubClient{}, judge.Params{})

	_, err := backend.Score(context.Background(), "made_up_metric", testRequest())
	require.Error(t, err)
	require.True(t, judge.IsPermanent(err))
}

func TestScoreMalformedReplyIsTransient(t *testing.T) {
	client := &judge.StubClient{
		Reply: func(ctx context.Context, call int, system, user string) (judge.Completion, error) {
			return judge.Completion{Text: "cannot comply", Usage: models.Usage{TokensIn: 25, TokensOut: 3}}, nil
		},
	}
	backend := NewJudgeBacked(client, judge.Params{})

	res, err := backend.Score(context.Background(), registry.MetricAnswerRelevancy, testRequest())
	require.Error(t, err)
	require.True(t, judge.IsTransient(err))
	// The reply was unusable but the tokens were spent; retries must still
	// count them.
	require.Equal(t, models.Usage{TokensIn: 25, TokensOut: 3}, res.Usage)
}
