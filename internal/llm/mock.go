package llm

import (
	"context"
	"sync"

	"github.com/Zhanna110/worldsmith-v3/internal/types"
)

// MockCall records a request made against the mock provider.
type MockCall struct {
	Request Request
}

// Mock implements Provider for testing. It replays a scripted sequence of
// responses and records every request it receives.
type Mock struct {
	mu            sync.Mutex
	responses     []string
	responseIndex int
	calls         []MockCall
	err           error
	failuresLeft  int
}

// NewMock creates a mock provider that cycles through the given responses.
func NewMock(responses []string) *Mock {
	return &Mock{
		responses: responses,
		calls:     make([]MockCall, 0),
	}
}

// FailNext makes the next n calls return err before responses resume.
func (m *Mock) FailNext(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failuresLeft = n
	m.err = err
}

// Name returns the provider name.
func (m *Mock) Name() string {
	return "mock"
}

// Complete replays the next scripted response.
func (m *Mock) Complete(ctx context.Context, req Request) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, MockCall{Request: req})

	if m.failuresLeft > 0 {
		m.failuresLeft--
		return nil, m.err
	}

	if len(m.responses) == 0 {
		return nil, types.NewError(types.GENERATE_FAILED, "mock provider has no responses configured")
	}

	text := m.responses[m.responseIndex%len(m.responses)]
	m.responseIndex++

	prompt := EstimateTokens(req.System) + EstimateTokens(req.Prompt)
	completion := EstimateTokens(text)
	return &Response{
		Text: text,
		Usage: TokenUsage{
			PromptTokens:     prompt,
			CompletionTokens: completion,
			TotalTokens:      prompt + completion,
		},
	}, nil
}

// Calls returns a copy of all recorded calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}
