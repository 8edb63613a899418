package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/backlogjudge/backlogjudge/internal/models"
)

func newEvaluateCommand() *cobra.Command {
	var overridesPath string
	var outputPath string
	var minScore float64

	cmd := &cobra.Command{
		Use:   "evaluate <request.json>",
		Short: "Run a single comprehensive evaluation",
		Long: `Run a single comprehensive evaluation from a request file.

The request file is the same JSON document the HTTP endpoint accepts:
session_id, backlog_type, user_prompt, generated_content and optional
context fragments. The result is printed as JSON.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := loadRequest(args[0])
			if err != nil {
				return err
			}

			orch, _, err := buildOrchestrator(cmd.Context(), overridesPath)
			if err != nil {
				return err
			}

			result, err := orch.Evaluate(cmd.Context(), req)
			if err != nil {
				return err
			}

			if err := writeResult(result, outputPath); err != nil {
				return err
			}

			if result.OverallScore < minScore {
				return &LowScoreError{
					Message: fmt.Sprintf("overall score %.2f below required %.2f", result.OverallScore, minScore),
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&overridesPath, "overrides", "", "YAML file with per-metric weight/threshold overrides")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output JSON file for the result (default: stdout)")
	cmd.Flags().Float64Var(&minScore, "min-score", 0, "Exit non-zero when the overall score is below this value")

	return cmd
}

func newValidateCommand() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "validate <request.json>",
		Short: "Run the binary template-compliance check",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := loadRequest(args[0])
			if err != nil {
				return err
			}

			orch, _, err := buildOrchestrator(cmd.Context(), "")
			if err != nil {
				return err
			}

			result, err := orch.Validate(cmd.Context(), req)
			if err != nil {
				return err
			}

			if err := writeResult(result, outputPath); err != nil {
				return err
			}

			if result.OverallScore < 1.0 {
				return &LowScoreError{Message: "validation denied: " + result.Summary}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output JSON file for the result (default: stdout)")

	return cmd
}

func loadRequest(path string) (*models.EvaluationRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading request file: %w", err)
	}
	var req models.EvaluationRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("parsing request file %s: %w", path, err)
	}
	if req.BacklogType == "" {
		req.BacklogType = models.BacklogUserStory
	} else if parsed, ok := models.ParseBacklogType(string(req.BacklogType)); ok {
		req.BacklogType = parsed
	} else {
		return nil, fmt.Errorf("unknown backlog_type %q", req.BacklogType)
	}
	return &req, nil
}

func writeResult(result *models.EvaluationResult, outputPath string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	data = append(data, '\n')

	if outputPath == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return fmt.Errorf("writing result file: %w", err)
	}
	return nil
}
