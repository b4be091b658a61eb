package model

import (
	"context"
	"sync"
)

// MockGenerator is a test implementation of Generator.
//
// Use MockGenerator in tests to verify pipeline behavior without making
// actual LLM API calls. It provides:
//   - Configurable responses (sequential, repeating the last)
//   - Call history tracking
//   - Error injection
//   - Thread-safe operation
//
// Example usage:
//
//	mock := &MockGenerator{
//	    Responses: []string{`{"vibe_score": 0.9}`},
//	}
//	text, err := mock.Generate(ctx, model.Request{Prompt: "..."})
//
// Example with error injection:
//
//	mock := &MockGenerator{Err: errors.New("API error")}
type MockGenerator struct {
	// Responses contains the sequence of responses to return.
	// Each call to Generate() returns the next response in order.
	// If all responses are consumed, the last response repeats.
	Responses []string

	// Err, if set, will be returned by Generate() instead of a response.
	Err error

	// Calls tracks the history of all Generate() invocations.
	Calls []Request

	mu        sync.Mutex // Protects Calls and the response index
	callIndex int
}

// Generate implements the Generator interface.
//
// Always records the call in Calls history regardless of success/failure.
func (m *MockGenerator) Generate(ctx context.Context, req Request) (string, error) {
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, req)

	if m.Err != nil {
		return "", m.Err
	}

	if len(m.Responses) == 0 {
		return "", nil
	}

	idx := m.callIndex
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	} else {
		m.callIndex++
	}

	return m.Responses[idx], nil
}

// CallCount returns how many Generate calls have been recorded.
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
