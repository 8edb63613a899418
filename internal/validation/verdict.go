// Package validation parses and validates judge replies. Judges are asked for
// strict JSON but routinely wrap it in prose or code fences, so parsing first
// extracts the outermost JSON object, then validates it against an embedded
// schema before any field is trusted.
package validation

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/backlogjudge/backlogjudge/schemas"
)

// defaultPrinter is used to format schema validation error messages.
var defaultPrinter = message.NewPrinter(language.English)

var (
	verdictSchema    *jsonschema.Schema
	validationSchema *jsonschema.Schema
)

func init() {
	verdictSchema = mustCompileSchema(schemas.VerdictSchemaJSON, "verdict.schema.json")
	validationSchema = mustCompileSchema(schemas.ValidationSchemaJSON, "validation.schema.json")
}

func mustCompileSchema(raw string, name string) *jsonschema.Schema {
	var schemaDoc any
	if err := json.Unmarshal([]byte(raw), &schemaDoc); err != nil {
		panic(fmt.Sprintf("failed to parse embedded %s: %v", name, err))
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, schemaDoc); err != nil {
		panic(fmt.Sprintf("failed to add %s resource: %v", name, err))
	}

	sch, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("failed to compile %s: %v", name, err))
	}
	return sch
}

// Verdict is a per-metric judge reply. Confidence stays a pointer so callers
// can tell "omitted" apart from an explicit zero.
type Verdict struct {
	Score      float64  `json:"score"`
	Reasoning  string   `json:"reasoning"`
	Confidence *float64 `json:"confidence"`
}

// ValidationVerdict is the binary proceed/deny reply from validation mode.
type ValidationVerdict struct {
	Proceed bool   `json:"proceed"`
	Reason  string `json:"reason"`
}

// bareScoreConfidence is assigned when the judge ignores the reply contract
// and answers with a lone number. Lower than the structured-reply baseline
// because nothing corroborates the score.
const bareScoreConfidence = 0.7

// ParseVerdict extracts and validates a metric verdict from raw judge text.
// A reply that is a lone number is accepted as a score-only verdict.
func ParseVerdict(raw string) (Verdict, error) {
	var v Verdict
	if err := parseInto(verdictSchema, raw, &v); err != nil {
		if score, ok := parseBareScore(raw); ok {
			conf := bareScoreConfidence
			return Verdict{Score: score, Confidence: &conf}, nil
		}
		return Verdict{}, err
	}
	return v, nil
}

// parseBareScore accepts replies like "0.85" or "Score: 0.85" by taking the
// first token that parses as an in-range number. Replies containing any
// JSON punctuation are left to the schema path so truncated objects are
// retried rather than misread.
func parseBareScore(raw string) (float64, bool) {
	if strings.Contains(raw, "{") || strings.Contains(raw, "}") {
		return 0, false
	}
	for _, field := range strings.Fields(strings.TrimSpace(raw)) {
		field = strings.Trim(field, ",.;:")
		score, err := strconv.ParseFloat(field, 64)
		if err == nil && score >= 0 && score <= 1 {
			return score, true
		}
	}
	return 0, false
}

// ParseValidationVerdict extracts and validates a proceed/deny verdict.
func ParseValidationVerdict(raw string) (ValidationVerdict, error) {
	var v ValidationVerdict
	if err := parseInto(validationSchema, raw, &v); err != nil {
		return ValidationVerdict{}, err
	}
	return v, nil
}

func parseInto(schema *jsonschema.Schema, raw string, out any) error {
	jsonText, err := extractJSONObject(raw)
	if err != nil {
		return err
	}

	var instance any
	if err := json.Unmarshal([]byte(jsonText), &instance); err != nil {
		return fmt.Errorf("judge reply is not valid JSON: %w", err)
	}

	if err := schema.Validate(instance); err != nil {
		ve, ok := err.(*jsonschema.ValidationError)
		if !ok {
			return fmt.Errorf("schema: %w", err)
		}
		var errs []string
		collectSchemaErrors(ve, &errs)
		return fmt.Errorf("judge reply failed schema validation: %s", strings.Join(errs, "; "))
	}

	// Safe after schema validation; the instance round-trips cleanly.
	if err := json.Unmarshal([]byte(jsonText), out); err != nil {
		return fmt.Errorf("decoding judge reply: %w", err)
	}
	return nil
}

// extractJSONObject returns the substring between the first '{' and the last
// '}' of the reply, the same tolerant extraction the judges have always
// needed.
func extractJSONObject(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("empty judge reply")
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end <= start {
		return "", fmt.Errorf("no JSON object found in judge reply")
	}
	return trimmed[start : end+1], nil
}

func collectSchemaErrors(ve *jsonschema.ValidationError, errs *[]string) {
	if len(ve.Causes) == 0 {
		loc := "/"
		if len(ve.InstanceLocation) > 0 {
			loc = "/" + strings.Join(ve.InstanceLocation, "/")
		}
		*errs = append(*errs, fmt.Sprintf("%s: %s", loc, ve.ErrorKind.LocalizedString(defaultPrinter)))
		return
	}
	for _, c := range ve.Causes {
		collectSchemaErrors(c, errs)
	}
}
