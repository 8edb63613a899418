package main

import (
	"errors"
	"fmt"
	"os"
)

// Exit codes for different failure modes
const (
	ExitSuccess  = 0 // Evaluation completed, content acceptable
	ExitLowScore = 1 // Evaluation completed, content below threshold
	ExitError    = 2 // Configuration or runtime error
)

// LowScoreError indicates the evaluation itself succeeded but the content
// missed the acceptance bar.
type LowScoreError struct {
	Message string
}

func (e *LowScoreError) Error() string {
	return e.Message
}

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)

		var lowScoreErr *LowScoreError
		if errors.As(err, &lowScoreErr) {
			os.Exit(ExitLowScore)
		}

		// All other errors are configuration/runtime errors
		os.Exit(ExitError)
	}
}
