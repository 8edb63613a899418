// Package registry holds the static metric catalog: identifiers, weights,
// pass thresholds, and backend kinds. Definitions are immutable after
// construction; evaluators and the orchestrator only ever read them.
package registry

import (
	"fmt"
	"math"
)

// Kind selects which backend evaluates a metric.
type Kind string

const (
	// KindJudgePrompt sends a templated prompt to the judge client and
	// parses structured fields from the reply.
	KindJudgePrompt Kind = "judge-prompt"
	// KindLibraryMetric invokes the automated-scoring library collaborator,
	// which may drive the judge client internally.
	KindLibraryMetric Kind = "library-metric"
)

// Metric identifiers for the weighted comprehensive set.
const (
	MetricRelevance              = "relevance"
	MetricAccuracy               = "accuracy"
	MetricCompleteness           = "completeness"
	MetricClarity                = "clarity"
	MetricStructure              = "structure"
	MetricConsistency            = "consistency"
	MetricHallucinationDetection = "hallucination_detection"
	MetricContextAdherence       = "context_adherence"
	MetricFactualGrounding       = "factual_grounding"
)

// Library metric identifiers (automated scoring collaborator).
const (
	MetricAnswerRelevancy     = "answer_relevancy"
	MetricFaithfulness        = "faithfulness"
	MetricContextualPrecision = "contextual_precision"
	MetricContextualRecall    = "contextual_recall"
)

// MetricValidation is the single binary metric used in validation mode.
const MetricValidation = "validation"

// Pass thresholds. Most metrics pass at 0.7; hallucination detection is
// stricter and factual grounding more lenient.
const (
	defaultThreshold          = 0.7
	hallucinationThreshold    = 0.8
	factualGroundingThreshold = 0.6
	libraryThreshold          = 0.7
	defaultBaselineConfidence = 0.8
)

// Definition describes one metric: how it is evaluated and how its score is
// interpreted.
type Definition struct {
	ID        string
	Weight    float64
	Threshold float64
	Kind      Kind
	// BaselineConfidence is substituted when the backend produces a score but
	// no confidence. Documented per metric, never recomputed.
	BaselineConfidence float64
	Description        string
}

// Registry is an ordered, immutable set of metric definitions. Iteration
// order is the order definitions were registered in, which also fixes the
// order of metric_scores in every response.
type Registry struct {
	order []string
	byID  map[string]Definition
}

// New builds a registry from the given definitions, rejecting duplicates.
func New(defs ...Definition) (*Registry, error) {
	r := &Registry{byID: make(map[string]Definition, len(defs))}
	for _, def := range defs {
		if def.ID == "" {
			return nil, fmt.Errorf("metric definition missing id")
		}
		if _, exists := r.byID[def.ID]; exists {
			return nil, fmt.Errorf("duplicate metric id %q", def.ID)
		}
		if def.Weight < 0 || def.Weight > 1 {
			return nil, fmt.Errorf("metric %q: weight %v outside [0,1]", def.ID, def.Weight)
		}
		r.byID[def.ID] = def
		r.order = append(r.order, def.ID)
	}
	return r, nil
}

// Get returns the definition for a metric id.
func (r *Registry) Get(id string) (Definition, bool) {
	def, ok := r.byID[id]
	return def, ok
}

// Definitions returns all definitions in registry order.
func (r *Registry) Definitions() []Definition {
	defs := make([]Definition, 0, len(r.order))
	for _, id := range r.order {
		defs = append(defs, r.byID[id])
	}
	return defs
}

// Len returns the number of registered metrics.
func (r *Registry) Len() int {
	return len(r.order)
}

// ValidateWeights checks that the weights of all weighted metrics sum to 1.0
// within a small tolerance.
func (r *Registry) ValidateWeights() error {
	sum := 0.0
	for _, id := range r.order {
		sum += r.byID[id].Weight
	}
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("metric weights sum to %v, want 1.0", sum)
	}
	return nil
}

// Comprehensive returns the default weighted metric set: the nine judge-prompt
// metrics with the weights the service has always shipped with.
func Comprehensive() *Registry {
	r, err := New(
		Definition{
			ID: MetricRelevance, Weight: 0.18, Threshold: defaultThreshold,
			Kind: KindJudgePrompt, BaselineConfidence: defaultBaselineConfidence,
			Description: "How well the content addresses the user's prompt",
		},
		Definition{
			ID: MetricAccuracy, Weight: 0.15, Threshold: defaultThreshold,
			Kind: KindJudgePrompt, BaselineConfidence: defaultBaselineConfidence,
			Description: "Factual correctness and technical accuracy",
		},
		Definition{
			ID: MetricCompleteness, Weight: 0.15, Threshold: defaultThreshold,
			Kind: KindJudgePrompt, BaselineConfidence: defaultBaselineConfidence,
			Description: "Whether all necessary sections are included",
		},
		Definition{
			ID: MetricClarity, Weight: 0.12, Threshold: defaultThreshold,
			Kind: KindJudgePrompt, BaselineConfidence: defaultBaselineConfidence,
			Description: "Readability and professional language",
		},
		Definition{
			ID: MetricStructure, Weight: 0.08, Threshold: defaultThreshold,
			Kind: KindJudgePrompt, BaselineConfidence: defaultBaselineConfidence,
			Description: "Proper formatting and organization",
		},
		Definition{
			ID: MetricConsistency, Weight: 0.08, Threshold: defaultThreshold,
			Kind: KindJudgePrompt, BaselineConfidence: defaultBaselineConfidence,
			Description: "Internal consistency and alignment with context",
		},
		Definition{
			ID: MetricHallucinationDetection, Weight: 0.12, Threshold: hallucinationThreshold,
			Kind: KindJudgePrompt, BaselineConfidence: defaultBaselineConfidence,
			Description: "Identifies and penalizes fabricated or unsupported claims",
		},
		Definition{
			ID: MetricContextAdherence, Weight: 0.08, Threshold: defaultThreshold,
			Kind: KindJudgePrompt, BaselineConfidence: defaultBaselineConfidence,
			Description: "Alignment with provided contextual information",
		},
		Definition{
			ID: MetricFactualGrounding, Weight: 0.04, Threshold: factualGroundingThreshold,
			Kind: KindJudgePrompt, BaselineConfidence: defaultBaselineConfidence,
			Description: "Verification of claims against reliable sources",
		},
	)
	if err != nil {
		// Definitions above are compile-time constants; a failure here is a
		// programming error.
		panic(err)
	}
	return r
}

// Library returns the supplemental automated-metric set. These carry no
// weight: they appear in metric_scores when enabled but never contribute to
// the weighted overall score.
func Library() *Registry {
	r, err := New(
		Definition{
			ID: MetricAnswerRelevancy, Threshold: libraryThreshold,
			Kind: KindLibraryMetric, BaselineConfidence: defaultBaselineConfidence,
			Description: "Automated relevancy of the output to the input prompt",
		},
		Definition{
			ID: MetricFaithfulness, Threshold: libraryThreshold,
			Kind: KindLibraryMetric, BaselineConfidence: defaultBaselineConfidence,
			Description: "Automated faithfulness of the output to the retrieval context",
		},
		Definition{
			ID: MetricContextualPrecision, Threshold: libraryThreshold,
			Kind: KindLibraryMetric, BaselineConfidence: defaultBaselineConfidence,
			Description: "Automated precision of the retrieval context for the prompt",
		},
		Definition{
			ID: MetricContextualRecall, Threshold: libraryThreshold,
			Kind: KindLibraryMetric, BaselineConfidence: defaultBaselineConfidence,
			Description: "Automated recall of the retrieval context for the prompt",
		},
	)
	if err != nil {
		panic(err)
	}
	return r
}

// Validation returns the single-metric registry used by validation mode.
// The metric is binary: proceed scores 1.0, deny scores 0.0, so the midpoint
// threshold classifies it either way.
func Validation() *Registry {
	r, err := New(
		Definition{
			ID: MetricValidation, Weight: 1.0, Threshold: 0.5,
			Kind: KindJudgePrompt, BaselineConfidence: defaultBaselineConfidence,
			Description: "Binary proceed/deny template-compliance check",
		},
	)
	if err != nil {
		panic(err)
	}
	return r
}

// Merge returns a new registry containing a's definitions followed by b's.
func Merge(a, b *Registry) (*Registry, error) {
	defs := append(a.Definitions(), b.Definitions()...)
	return New(defs...)
}
