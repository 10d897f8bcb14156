package tts

import (
	"context"
	"sync"
	"time"
)

// Mock implements Provider for testing.
// All methods can be customized via function fields.
type Mock struct {
	// SynthesizeFunc is called when Synthesize is invoked.
	// If nil, returns ErrProviderUnavailable.
	SynthesizeFunc func(ctx context.Context, req *Request) (*Result, error)

	// StreamFunc is called when Stream is invoked.
	// If nil, falls back to SynthesizeFunc buffered as a stream.
	StreamFunc func(ctx context.Context, req *Request) (AudioStream, error)

	// HealthFunc is called when Health is invoked.
	// If nil, returns nil (healthy).
	HealthFunc func(ctx context.Context) error

	// CloseFunc is called when Close is invoked.
	// If nil, returns nil.
	CloseFunc func() error

	mu    sync.Mutex
	calls []MockCall
}

// MockCall records a method invocation for verification.
type MockCall struct {
	Method string
	Text   string
	Voice  string
	Time   time.Time
}

// NewMock creates a mock provider that synthesizes silence.
func NewMock() *Mock {
	return &Mock{
		SynthesizeFunc: func(ctx context.Context, req *Request) (*Result, error) {
			// ~20ms of 16kHz PCM16 silence per character, roughly
			// natural speech pacing.
			const bytesPerChar = 640
			silence := make([]byte, len(req.Text)*bytesPerChar)

			format := AudioFormat{
				Encoding:   EncodingPCM16,
				SampleRate: 16000,
				Channels:   1,
				BitDepth:   16,
			}
			return &Result{
				Audio:     silence,
				MIME:      MIMEFromEncoding(format.Encoding),
				Format:    format,
				Duration:  time.Duration(len(req.Text)) * 20 * time.Millisecond,
				CharCount: len(req.Text),
				LatencyMs: 10,
			}, nil
		},
		HealthFunc: func(ctx context.Context) error {
			return nil
		},
	}
}

// Synthesize calls SynthesizeFunc and records the call.
func (m *Mock) Synthesize(ctx context.Context, req *Request) (*Result, error) {
	m.recordCall("Synthesize", req)
	if m.SynthesizeFunc != nil {
		return m.SynthesizeFunc(ctx, req)
	}
	return nil, ErrProviderUnavailable
}

// Stream calls StreamFunc and records the call.
func (m *Mock) Stream(ctx context.Context, req *Request) (AudioStream, error) {
	m.recordCall("Stream", req)
	if m.StreamFunc != nil {
		return m.StreamFunc(ctx, req)
	}
	if m.SynthesizeFunc != nil {
		result, err := m.SynthesizeFunc(ctx, req)
		if err != nil {
			return nil, err
		}
		return &bufferStream{data: result.Audio, format: result.Format}, nil
	}
	return nil, ErrProviderUnavailable
}

// Health calls HealthFunc and records the call.
func (m *Mock) Health(ctx context.Context) error {
	m.recordCall("Health", nil)
	if m.HealthFunc != nil {
		return m.HealthFunc(ctx)
	}
	return nil
}

// Close calls CloseFunc and records the call.
func (m *Mock) Close() error {
	m.recordCall("Close", nil)
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// recordCall adds a call to the tracking list.
func (m *Mock) recordCall(method string, req *Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	call := MockCall{Method: method, Time: time.Now()}
	if req != nil {
		call.Text = req.Text
		call.Voice = req.Voice
	}
	m.calls = append(m.calls, call)
}

// Calls returns all recorded method calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]MockCall, len(m.calls))
	copy(result, m.calls)
	return result
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

// WithError returns a mock that always returns the given error.
func WithError(err error) *Mock {
	return &Mock{
		SynthesizeFunc: func(ctx context.Context, req *Request) (*Result, error) {
			return nil, err
		},
		StreamFunc: func(ctx context.Context, req *Request) (AudioStream, error) {
			return nil, err
		},
		HealthFunc: func(ctx context.Context) error {
			return err
		},
	}
}

// WithLatency wraps a mock to add artificial latency.
func WithLatency(m *Mock, delay time.Duration) *Mock {
	original := m.SynthesizeFunc
	m.SynthesizeFunc = func(ctx context.Context, req *Request) (*Result, error) {
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
