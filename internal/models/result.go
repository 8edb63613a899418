// Package models defines the request and result types shared by the
// evaluation pipeline. Entities are created fresh per request and discarded
// after the response is returned; nothing in here is cached across requests.
package models

import "time"

// ReasoningCutoff is the global score below which a metric's reasoning is
// included in the externally visible result. It is deliberately distinct from
// the per-metric pass thresholds (0.6-0.8).
const ReasoningCutoff = 0.65

// MetricResult is the normalized outcome of one metric evaluation.
// A retry produces a new candidate; only the final accepted result survives.
type MetricResult struct {
	Metric     string  `json:"metric"`
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`
	// Reasoning is present only when Score < ReasoningCutoff. The scoring
	// layer enforces that; evaluators always populate it when they have one.
	Reasoning string `json:"reasoning,omitempty"`
	Passed    bool   `json:"passed"`

	// Degraded marks a placeholder result substituted when the metric could
	// not be evaluated. Degraded results are excluded from the weighted
	// overall score.
	Degraded bool `json:"-"`
	// Attempts counts how many backend calls were made for this metric.
	Attempts int `json:"-"`
}

// Usage accumulates token counters across judge calls.
type Usage struct {
	TokensIn  int64 `json:"tokens_in"`
	TokensOut int64 `json:"tokens_out"`
}

// Add returns the element-wise sum of two usage counters.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		TokensIn:  u.TokensIn + other.TokensIn,
		TokensOut: u.TokensOut + other.TokensOut,
	}
}

// EvaluationMetadata records the cost and shape of one evaluation.
type EvaluationMetadata struct {
	TokensIn         int64  `json:"tokens_in"`
	TokensOut        int64  `json:"tokens_out"`
	EvaluationTimeMS int64  `json:"evaluation_time_ms"`
	Model            string `json:"model"`
	Mode             Mode   `json:"mode"`
}

// EvaluationResult is the complete outcome handed back to the caller.
type EvaluationResult struct {
	SessionID       string             `json:"session_id"`
	OverallScore    float64            `json:"overall_score"`
	MetricScores    []MetricResult     `json:"metric_scores"`
	Summary         string             `json:"summary"`
	Recommendations string             `json:"recommendations"`
	Timestamp       time.Time          `json:"evaluation_timestamp"`
	Metadata        EvaluationMetadata `json:"evaluation_metadata"`
}

// Severity buckets an overall score for narrative use.
type Severity string

const (
	SeverityExcellent        Severity = "excellent"
	SeverityGood             Severity = "good"
	SeverityNeedsImprovement Severity = "needs-improvement"
)

// SeverityFor buckets an overall score: >0.8 excellent, 0.7-0.8 good,
// anything lower needs improvement.
func SeverityFor(overallScore float64) Severity {
	switch {
	case overallScore > 0.8:
		return SeverityExcellent
	case overallScore >= 0.7:
		return SeverityGood
	default:
		return SeverityNeedsImprovement
	}
}

// Clamp01 clips v into [0,1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
