// Package library is the automated-scoring collaborator behind metrics of
// kind library-metric. The default backend drives the judge client internally
// with retrieval-style rubrics, mirroring how automated evaluation libraries
// implement these metrics.
package library

import (
	"context"
	"fmt"
	"strings"

	"github.com/backlogjudge/backlogjudge/internal/judge"
	"github.com/backlogjudge/backlogjudge/internal/models"
	"github.com/backlogjudge/backlogjudge/internal/registry"
	"github.com/backlogjudge/backlogjudge/internal/validation"
)

// Result is one automated metric score. Confidence stays a pointer so the
// evaluator can substitute the metric's documented baseline when omitted.
type Result struct {
	Score      float64
	Confidence *float64
	Reasoning  string
	Usage      models.Usage
}

// Backend scores content against one automated metric. Failures use the same
// transient/permanent taxonomy as the judge client.
type Backend interface {
	Score(ctx context.Context, metricID string, req *models.EvaluationRequest) (Result, error)
}

// rubrics describe what each automated metric measures. The reply contract is
// shared with the judge-prompt metrics.
var rubrics = map[string]string{
	registry.MetricAnswerRelevancy:     "how relevant the output is to the input prompt, penalizing off-topic or filler statements",
	registry.MetricFaithfulness:        "whether every claim in the output is supported by the retrieval context, penalizing contradictions",
	registry.MetricContextualPrecision: "how much of the retrieval context is actually relevant to answering the input prompt",
	registry.MetricContextualRecall:    "how much of the information needed by the output is attributable to the retrieval context",
}

// JudgeBacked implements Backend by delegating to the judge client.
type JudgeBacked struct {
	client judge.Client
	params judge.Params
}

var _ Backend = (*JudgeBacked)(nil)

// NewJudgeBacked constructs the default library backend.
func NewJudgeBacked(client judge.Client, params judge.Params) *JudgeBacked {
	return &JudgeBacked{client: client, params: params}
}

// Score implements [Backend].
func (b *JudgeBacked) Score(ctx context.Context, metricID string, req *models.EvaluationRequest) (Result, error) {
	rubric, ok := rubrics[metricID]
	if !ok {
		return Result{}, judge.Permanent(fmt.Errorf("unknown library metric %q", metricID))
	}

	completion, err := b.client.Complete(ctx, systemPrompt, buildPrompt(rubric, req), b.params)
	if err != nil {
		return Result{Usage: completion.Usage}, err
	}

	verdict, err := validation.ParseVerdict(completion.Text)
	if err != nil {
		// Malformed output is recoverable; let the evaluator retry. The
		// tokens were still spent, so the usage travels with the error.
		return Result{Usage: completion.Usage}, judge.Transient(err)
	}

	return Result{
		Score:      verdict.Score,
		Confidence: verdict.Confidence,
		Reasoning:  verdict.Reasoning,
		Usage:      completion.Usage,
	}, nil
}

const systemPrompt = "You are an automated evaluation metric. Score strictly according to the rubric and respond only in JSON."

func buildPrompt(rubric string, req *models.EvaluationRequest) string {
	var sb strings.Builder
	sb.WriteString("Measure ")
	sb.WriteString(rubric)
	sb.WriteString(".\n\n")
	sb.WriteString("Input: " + req.UserPrompt + "\n")
	sb.WriteString("Output: " + req.GeneratedContent.FormattedOutput + "\n")
	sb.WriteString("Retrieval Context:\n" + req.ContextText("\n") + "\n")
	sb.WriteString(`
Rate from 0.0 to 1.0.

Respond in JSON format:
{
    "score": <float>,
    "reasoning": "<brief explanation>",
    "confidence": <float>
}`)
	return sb.String()
}
