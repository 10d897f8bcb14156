package llm

import (
	"context"
	"sync"
	"time"
)

// Mock implements Provider for testing.
type Mock struct {
	// GenerateFunc is called when Generate is invoked.
	GenerateFunc func(ctx context.Context, req *Request) (*Result, error)

	// StreamFunc is called when Stream is invoked. When nil, Stream falls
	// back to GenerateFunc and buffers the reply.
	StreamFunc func(ctx context.Context, req *Request) (Stream, error)

	// HealthFunc is called when Health is invoked.
	HealthFunc func(ctx context.Context) error

	// CloseFunc is called when Close is invoked.
	CloseFunc func() error

	mu    sync.Mutex
	calls []MockCall
}

// MockCall records a method invocation.
type MockCall struct {
	Method string
	Input  string
	Time   time.Time
}

// NewMock creates a mock provider that replies with canned text.
func NewMock() *Mock {
	return &Mock{
		GenerateFunc: func(ctx context.Context, req *Request) (*Result, error) {
			return &Result{
				Text:         "Mock response",
				Model:        "mock",
				FinishReason: "stop",
				Usage:        Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
				LatencyMs:    10,
			}, nil
		},
		HealthFunc: func(ctx context.Context) error {
			return nil
		},
	}
}

// Generate calls GenerateFunc and records the call.
func (m *Mock) Generate(ctx context.Context, req *Request) (*Result, error) {
	m.record("Generate", req.UserInput)
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, req)
	}
	return nil, ErrProviderUnavailable
}

// Stream calls StreamFunc and records the call.
func (m *Mock) Stream(ctx context.Context, req *Request) (Stream, error) {
	m.record("Stream", req.UserInput)
	if m.StreamFunc != nil {
		return m.StreamFunc(ctx, req)
	}
	if m.GenerateFunc != nil {
		result, err := m.GenerateFunc(ctx, req)
		if err != nil {
			return nil, err
		}
		return &bufferedStream{text: result.Text, finish: result.FinishReason}, nil
	}
	return nil, ErrProviderUnavailable
}

// Health calls HealthFunc and records the call.
func (m *Mock) Health(ctx context.Context) error {
	m.record("Health", "")
	if m.HealthFunc != nil {
		return m.HealthFunc(ctx)
	}
	return nil
}

// Close calls CloseFunc and records the call.
func (m *Mock) Close() error {
	m.record("Close", "")
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

func (m *Mock) record(method, input string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{
		Method: method,
		Input:  input,
		Time:   time.Now(),
	})
}

// Calls returns all recorded method calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of times a method was called.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, c := range m.calls {
		if c.Method == method {
			count++
		}
	}
	return count
}

// LastCall returns the most recent call, or nil if none.
func (m *Mock) LastCall() *MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return nil
	}
	call := m.calls[len(m.calls)-1]
	return &call
}

// Reset clears all recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// WithError returns a mock whose every method fails with err.
func WithError(err error) *Mock {
	return &Mock{
		GenerateFunc: func(ctx context.Context, req *Request) (*Result, error) {
			return nil, err
		},
		StreamFunc: func(ctx context.Context, req *Request) (Stream, error) {
			return nil, err
		},
		HealthFunc: func(ctx context.Context) error {
			return err
		},
	}
}

// WithLatency wraps m's Generate in an artificial delay, honoring context
// cancellation.
func WithLatency(m *Mock, delay time.Duration) *Mock {
	original := m.GenerateFunc
	m.GenerateFunc = func(ctx context.Context, req *Request) (*Result, error) {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if original != nil {
			return original(ctx, req)
		}
		return nil, ErrProviderUnavailable
	}
	return m
}

// Verify Mock implements Provider at compile time.
var _ Provider = (*Mock)(nil)
