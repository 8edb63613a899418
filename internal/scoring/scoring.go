// Package scoring combines per-metric results into one weighted verdict and
// applies the reasoning presence policy.
package scoring

import (
	"errors"
	"math"

	"github.com/backlogjudge/backlogjudge/internal/models"
	"github.com/backlogjudge/backlogjudge/internal/registry"
)

// ErrAggregationFailed is returned when no weighted metric survived
// evaluation, so there is nothing to aggregate over.
var ErrAggregationFailed = errors.New("all weighted metrics failed evaluation")

// fallbackReasoning stands in when a low score arrives without a
// justification. Low scores always surface a reason to the caller.
const fallbackReasoning = "score below acceptable threshold"

// Aggregate computes the weighted overall score across the non-degraded
// weighted metrics, renormalizing their weights so the surviving subset still
// sums to 1.0. Zero-weight metrics (the supplemental automated set) never
// contribute. Results already degraded stay in the slice untouched; callers
// report them alongside the healthy ones.
func Aggregate(reg *registry.Registry, results []models.MetricResult) (float64, error) {
	weightSum := 0.0
	weighted := 0.0
	for _, res := range results {
		def, ok := reg.Get(res.Metric)
		if !ok || def.Weight == 0 || res.Degraded {
			continue
		}
		weightSum += def.Weight
		weighted += def.Weight * res.Score
	}
	if weightSum == 0 {
		return 0, ErrAggregationFailed
	}
	return round2(weighted / weightSum), nil
}

// ApplyReasoningPolicy enforces the presence rule in place: reasoning is kept
// exactly when the score is below the cutoff, and a low score with no
// justification from the judge gets the fallback text. High scores drop their
// reasoning even when the judge supplied one.
func ApplyReasoningPolicy(results []models.MetricResult) {
	for i := range results {
		if results[i].Score >= models.ReasoningCutoff {
			results[i].Reasoning = ""
			continue
		}
		if results[i].Reasoning == "" {
			results[i].Reasoning = fallbackReasoning
		}
	}
}

// BelowThreshold returns the results whose score missed the given cut line,
// preserving input order. Used to seed recommendations.
func BelowThreshold(results []models.MetricResult, cutoff float64) []models.MetricResult {
	var low []models.MetricResult
	for _, res := range results {
		if res.Score < cutoff {
			low = append(low, res)
		}
	}
	return low
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
