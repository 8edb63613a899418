package judge

import (
	"context"
	"sync"
)

// StubCall records one Complete invocation on a StubClient.
type StubCall struct {
	SystemPrompt string
	UserPrompt   string
	Params       Params
}

// StubClient is a scripted Client for tests. Reply is invoked once per call
// with the 1-based call number; the zero value returns empty completions.
type StubClient struct {
	ModelID string
	Reply   func(ctx context.Context, call int, systemPrompt, userPrompt string) (Completion, error)

	mu    sync.Mutex
	calls []StubCall
}

var _ Client = (*StubClient)(nil)

func (s *StubClient) Complete(ctx context.Context, systemPrompt, userPrompt string, params Params) (Completion, error) {
	if err := ctx.Err(); err != nil {
		return Completion{}, Transient(err)
	}

	s.mu.Lock()
	s.calls = append(s.calls, StubCall{SystemPrompt: systemPrompt, UserPrompt: userPrompt, Params: params})
	call := len(s.calls)
	s.mu.Unlock()

	if s.Reply == nil {
		return Completion{}, nil
	}
	return s.Reply(ctx, call, systemPrompt, userPrompt)
}

func (s *StubClient) Model() string {
	if s.ModelID == "" {
		return "stub-model"
	}
	return s.ModelID
}

// Calls returns a copy of the recorded invocations.
func (s *StubClient) Calls() []StubCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]StubCall(nil), s.calls...)
}
