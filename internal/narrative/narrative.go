// Package narrative produces the human-readable half of an evaluation: the
// summary paragraph and the improvement recommendations. Both are judge
// calls with deterministic fallbacks, so an evaluation always carries a
// narrative even when the judge is unavailable.
package narrative

import (
	"context"
	"log/slog"
	"strings"

	"github.com/backlogjudge/backlogjudge/internal/judge"
	"github.com/backlogjudge/backlogjudge/internal/models"
	"github.com/backlogjudge/backlogjudge/internal/prompts"
	"github.com/backlogjudge/backlogjudge/internal/scoring"
)

// recommendationCutoff selects which metrics feed the improvement prompt.
const recommendationCutoff = 0.7

// maxRecommendations caps the lines returned to the caller.
const maxRecommendations = 5

// Deterministic fallbacks, worded as the service has always worded them.
const (
	fallbackSummary = "Evaluation completed with mixed results. Review individual metric scores for details."

	fallbackRecommendationsLow  = "Review content for accuracy and completeness. Improve clarity and structure. Ensure alignment with requirements."
	fallbackRecommendationsGood = "Content quality is good. Consider minor refinements based on specific project requirements."
)

// Generator writes summaries and recommendations. Safe for concurrent use.
type Generator struct {
	judge         judge.Client
	summaryParams judge.Params
	recParams     judge.Params
}

// New creates a narrative generator with separate token budgets for the
// summary and the recommendations calls.
func New(judgeClient judge.Client, summaryParams, recParams judge.Params) *Generator {
	return &Generator{
		judge:         judgeClient,
		summaryParams: summaryParams,
		recParams:     recParams,
	}
}

// Summary asks the judge for a short overall assessment of the metric
// breakdown. Judge failures degrade to the fixed fallback sentence.
func (g *Generator) Summary(ctx context.Context, scores []models.MetricResult, backlogType models.BacklogType, title string) (string, models.Usage) {
	prompt := prompts.ForSummary(scores, backlogType, title)

	completion, err := g.judge.Complete(ctx, prompts.SystemSummary, prompt, g.summaryParams)
	if err != nil {
		slog.WarnContext(ctx, "summary generation failed, using fallback", "error", err)
		return fallbackSummary, completion.Usage
	}

	text := strings.TrimSpace(completion.Text)
	if text == "" {
		return fallbackSummary, completion.Usage
	}
	return text, completion.Usage
}

// Recommendations asks the judge for improvement steps based on the metrics
// that missed the recommendation cutoff. When every metric is healthy, or
// the judge fails, a fixed recommendation set is returned instead.
func (g *Generator) Recommendations(ctx context.Context, scores []models.MetricResult, backlogType models.BacklogType) ([]string, models.Usage) {
	low := scoring.BelowThreshold(scores, recommendationCutoff)
	if len(low) == 0 {
		return []string{fallbackRecommendationsGood}, models.Usage{}
	}

	prompt := prompts.ForRecommendations(low, backlogType)

	completion, err := g.judge.Complete(ctx, prompts.SystemRecommendations, prompt, g.recParams)
	if err != nil {
		slog.WarnContext(ctx, "recommendation generation failed, using fallback", "error", err)
		return []string{fallbackRecommendationsLow}, completion.Usage
	}

	recs := splitRecommendations(completion.Text)
	if len(recs) == 0 {
		return []string{fallbackRecommendationsLow}, completion.Usage
	}
	return recs, completion.Usage
}

// splitRecommendations turns a judge reply into at most maxRecommendations
// clean lines, dropping blanks and markdown headings.
func splitRecommendations(text string) []string {
	var recs []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		recs = append(recs, line)
		if len(recs) == maxRecommendations {
			break
		}
	}
	return recs
}
