package models

import "strings"

// Mode selects which evaluation pipeline runs for a request.
type Mode string

const (
	// ModeComprehensive runs every weighted metric in the registry.
	ModeComprehensive Mode = "comprehensive"
	// ModeValidation runs a single binary proceed/deny judge call.
	ModeValidation Mode = "validation"
)

// BacklogType identifies the kind of software-delivery artifact being judged.
type BacklogType string

const (
	BacklogEpic               BacklogType = "epic"
	BacklogFeature            BacklogType = "feature"
	BacklogUserStory          BacklogType = "user_story"
	BacklogAcceptanceCriteria BacklogType = "acceptance_criteria"
)

// ParseBacklogType converts an inbound string to a BacklogType.
func ParseBacklogType(s string) (BacklogType, bool) {
	switch BacklogType(strings.ToLower(strings.TrimSpace(s))) {
	case BacklogEpic:
		return BacklogEpic, true
	case BacklogFeature:
		return BacklogFeature, true
	case BacklogUserStory:
		return BacklogUserStory, true
	case BacklogAcceptanceCriteria:
		return BacklogAcceptanceCriteria, true
	default:
		return "", false
	}
}

// GeneratedContent is the artifact under evaluation.
type GeneratedContent struct {
	Title           string `json:"title"`
	FormattedOutput string `json:"formatted_output"`
}

// ContextItem is one fragment of supporting context supplied with a request.
type ContextItem struct {
	Content string `json:"content"`
}

// EvaluationRequest carries everything needed to score one generated artifact.
// It is immutable once constructed; evaluators only ever read from it.
type EvaluationRequest struct {
	SessionID        string           `json:"session_id"`
	BacklogType      BacklogType      `json:"backlog_type"`
	UserPrompt       string           `json:"user_prompt"`
	GeneratedContent GeneratedContent `json:"generated_content"`
	Context          []ContextItem    `json:"context"`

	// SystemPrompt and Template are consumed only by validation mode, where
	// the caller supplies the judge instructions and the format template the
	// artifact was generated against.
	SystemPrompt string `json:"system_prompt,omitempty"`
	Template     string `json:"template,omitempty"`
}

// ContextText joins all context fragments with the given separator.
func (r *EvaluationRequest) ContextText(sep string) string {
	if len(r.Context) == 0 {
		return ""
	}
	parts := make([]string, 0, len(r.Context))
	for _, item := range r.Context {
		parts = append(parts, item.Content)
	}
	return strings.Join(parts, sep)
}
