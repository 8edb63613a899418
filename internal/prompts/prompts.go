// Package prompts builds the text sent to the judge model. Each metric has
// its own template rendered with the request fields; template wording is a
// content concern, so nothing else in the pipeline depends on it beyond the
// JSON reply contract.
package prompts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/backlogjudge/backlogjudge/internal/models"
	"github.com/backlogjudge/backlogjudge/internal/registry"
)

// System prompts per call site.
const (
	SystemEvaluation      = "You are an expert evaluator of software development artifacts. Provide precise, objective evaluations."
	SystemSummary         = "You are an expert at summarizing evaluation results."
	SystemRecommendations = "You are an expert at providing actionable improvement recommendations."
)

// replyContract is appended to every metric template so the judge answers in
// the shape the parser expects.
const replyContract = `
Rate from 0.0 to 1.0 and explain your reasoning in 1-2 sentences maximum.

Respond in JSON format:
{
    "score": <float>,
    "reasoning": "<brief 1-2 sentence explanation>",
    "confidence": <float>
}`

// Vars holds the request fields available to metric templates.
type Vars struct {
	UserPrompt  string
	Template    string
	BacklogType string
	Title       string
	Content     string
	Context     string
}

var metricTemplates = map[string]*template.Template{
	registry.MetricRelevance: mustParse(registry.MetricRelevance, `
Evaluate how well the generated content addresses the user's prompt and follows the provided template.

User Prompt: {{.UserPrompt}}
Template Instructions: {{.Template}}
Generated Title: {{.Title}}
Generated Content: {{.Content}}
Context: {{.Context}}

Consider:
- Does the generated content directly address what the user asked for?
- Is the title appropriate for the content?
- Does it match the requested backlog type ({{.BacklogType}})?
- Does it follow the format and structure specified in the template?`),

	registry.MetricAccuracy: mustParse(registry.MetricAccuracy, `
Evaluate the factual accuracy and technical correctness of the generated content.

Generated Content: {{.Content}}
Context: {{.Context}}
Backlog Type: {{.BacklogType}}

Consider:
- Are the technical details correct?
- Are the acceptance criteria realistic and testable?
- Are the non-functional requirements properly specified?
- Is the content consistent with the provided context?`),

	registry.MetricCompleteness: mustParse(registry.MetricCompleteness, `
Evaluate how complete the generated content is for the requested backlog type and template requirements.

User Prompt: {{.UserPrompt}}
Template Instructions: {{.Template}}
Generated Content: {{.Content}}
Backlog Type: {{.BacklogType}}

Consider:
- Does it include all necessary sections for a {{.BacklogType}}?
- Does it include all sections and elements specified in the template?
- Are acceptance criteria comprehensive?
- Is anything important missing from the template requirements?`),

	registry.MetricClarity: mustParse(registry.MetricClarity, `
Evaluate the clarity and readability of the generated content.

Generated Content: {{.Content}}

Consider:
- Is the language clear and professional?
- Are the requirements easy to understand?
- Is the structure logical and well-organized?
- Would stakeholders easily understand this content?`),

	registry.MetricStructure: mustParse(registry.MetricStructure, `
Evaluate the structure and format of the generated content against template requirements.

Template Instructions: {{.Template}}
Generated Content: {{.Content}}
Backlog Type: {{.BacklogType}}

Consider:
- Is the markdown formatting correct and consistent?
- Are sections properly organized according to the template?
- Does it follow standard {{.BacklogType}} format conventions?
- Is the hierarchy clear (headers, subheaders, etc.)?`),

	registry.MetricConsistency: mustParse(registry.MetricConsistency, `
Evaluate the consistency within the generated content and with the context.

Generated Content: {{.Content}}
Context: {{.Context}}
User Prompt: {{.UserPrompt}}

Consider:
- Is the content internally consistent?
- Does it align with the provided context?
- Are there any contradictions or inconsistencies?
- Is the tone and style consistent throughout?`),

	registry.MetricHallucinationDetection: mustParse(registry.MetricHallucinationDetection, `
Evaluate whether the generated content contains hallucinated information that is not supported by the provided context.

Generated Content: {{.Content}}
Context: {{.Context}}
User Prompt: {{.UserPrompt}}

Consider:
- Does the content make claims not supported by the context?
- Are there any fabricated technical details, requirements, or specifications?
- Are all factual statements verifiable against the provided context?

Rate from 0.0 (high hallucination) to 1.0 (no hallucination).`),

	registry.MetricContextAdherence: mustParse(registry.MetricContextAdherence, `
Evaluate how well the generated content adheres to and stays grounded in the provided context.

Generated Content: {{.Content}}
Context: {{.Context}}
Backlog Type: {{.BacklogType}}

Consider:
- Does the content strictly follow information from the context?
- Are all requirements and specifications derived from the context?
- Does it avoid introducing external assumptions or knowledge?`),

	registry.MetricFactualGrounding: mustParse(registry.MetricFactualGrounding, `
Evaluate the factual grounding and verifiability of claims made in the generated content.

Generated Content: {{.Content}}
Context: {{.Context}}
Backlog Type: {{.BacklogType}}

Consider:
- Are technical specifications and requirements factually grounded?
- Can all claims be traced back to the provided context?
- Does the content avoid speculative or unverifiable statements?`),
}

func mustParse(name, text string) *template.Template {
	return template.Must(template.New(name).Option("missingkey=error").Parse(strings.TrimSpace(text) + "\n" + replyContract))
}

// ForMetric renders the prompt for a judge-prompt metric.
func ForMetric(metricID string, req *models.EvaluationRequest) (string, error) {
	tmpl, ok := metricTemplates[metricID]
	if !ok {
		return "", fmt.Errorf("no prompt template for metric %q", metricID)
	}

	var buf bytes.Buffer
	err := tmpl.Execute(&buf, Vars{
		UserPrompt:  req.UserPrompt,
		Template:    req.Template,
		BacklogType: string(req.BacklogType),
		Title:       req.GeneratedContent.Title,
		Content:     req.GeneratedContent.FormattedOutput,
		Context:     req.ContextText(" | "),
	})
	if err != nil {
		return "", fmt.Errorf("rendering %s prompt: %w", metricID, err)
	}
	return buf.String(), nil
}

// ForValidation packages the request into the JSON document the validation
// judge expects, paired with the caller-supplied system prompt.
func ForValidation(req *models.EvaluationRequest) (string, error) {
	type contextItem struct {
		Content string `json:"content"`
	}
	doc := struct {
		Input struct {
			Context     []contextItem `json:"context"`
			Template    string        `json:"template"`
			UserRequest string        `json:"user_request"`
		} `json:"input"`
		Output struct {
			BacklogType      string                  `json:"backlog_type"`
			GeneratedContent models.GeneratedContent `json:"generated_content"`
		} `json:"output"`
	}{}

	doc.Input.Context = make([]contextItem, 0, len(req.Context))
	for _, item := range req.Context {
		doc.Input.Context = append(doc.Input.Context, contextItem{Content: item.Content})
	}
	doc.Input.Template = req.Template
	doc.Input.UserRequest = req.UserPrompt
	doc.Output.BacklogType = string(req.BacklogType)
	doc.Output.GeneratedContent = req.GeneratedContent

	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("building validation message: %w", err)
	}
	return string(raw), nil
}

// ForSummary builds the narrative summary prompt from the metric breakdown.
func ForSummary(scores []models.MetricResult, backlogType models.BacklogType, title string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Based on the following evaluation scores for a %s, provide a concise summary:\n\n", backlogType))
	for _, s := range scores {
		sb.WriteString(fmt.Sprintf("- %s: %.2f", s.Metric, s.Score))
		if s.Reasoning != "" {
			sb.WriteString(" - " + s.Reasoning)
		}
		sb.WriteString("\n")
	}
	sb.WriteString(fmt.Sprintf("\nGenerated Content Title: %s\n", title))
	sb.WriteString("\nProvide a 2-3 sentence summary of the overall quality and key strengths/weaknesses.\n")
	return sb.String()
}

// ForRecommendations builds the improvement prompt from low-scoring metrics.
func ForRecommendations(lowScores []models.MetricResult, backlogType models.BacklogType) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Based on these low-scoring evaluation metrics for a %s, provide 3-5 specific, actionable recommendations for improvement:\n\n", backlogType))
	for _, s := range lowScores {
		sb.WriteString(fmt.Sprintf("- %s (Score: %.2f)", s.Metric, s.Score))
		if s.Reasoning != "" {
			sb.WriteString(": " + s.Reasoning)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\nFocus on practical steps to improve the content quality.\n")
	return sb.String()
}
