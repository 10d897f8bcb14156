// Package llm provides a unified interface for response-generation providers.
//
// The package supports multiple chat backends (OpenAI, Anthropic, and any
// OpenAI-compatible endpoint such as a local Ollama daemon). All providers
// implement the Provider interface, enabling runtime switching without
// changing caller code.
//
// Example usage:
//
//	p, _ := llm.NewOpenAI(
//	    llm.WithAPIKey(os.Getenv("OPENAI_API_KEY")),
//	)
//	defer p.Close()
//
//	result, _ := p.Generate(ctx, &llm.Request{UserInput: "What time is it?"})
//	// result.Text contains the assistant reply
package llm

import (
	"context"
)

// Provider defines the response-generation provider interface.
// Implementations perform exactly one vendor call per Generate and never
// retry internally; retry policy belongs to the caller.
type Provider interface {
	// Generate produces an assistant reply from user input, optional
	// context, and bounded conversation history.
	Generate(ctx context.Context, req *Request) (*Result, error)

	// Stream produces the reply incrementally where the vendor supports
	// it; otherwise the full reply arrives as a single chunk.
	Stream(ctx context.Context, req *Request) (Stream, error)

	// Health checks provider connectivity and credential validity.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// Request is the canonical generation request.
type Request struct {
	// UserInput is the user's current utterance or typed input.
	UserInput string

	// Context carries optional ambient facts as ordered key/value pairs,
	// rendered into the prompt ahead of the conversation history.
	Context []ContextItem

	// History is the recent conversation, oldest first. Callers bound its
	// length; adapters send it as-is.
	History []Message
}

// ContextItem is one ambient fact attached to a request. Order is
// preserved in the rendered prompt.
type ContextItem struct {
	Key   string
	Value string
}

// Result is the canonical generation result.
type Result struct {
	// Text is the assistant reply, whitespace-trimmed.
	Text string

	// Model that produced the reply, as reported by the vendor.
	Model string

	// FinishReason indicates why generation stopped (stop, length).
	FinishReason string

	// Usage tracks token consumption.
	Usage Usage

	// LatencyMs is the vendor call duration in milliseconds.
	LatencyMs int64
}

// Usage tracks token consumption for billing and limits.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Stream is an incremental generation response.
type Stream interface {
	// Recv returns the next chunk. The final chunk has Done set; later
	// calls keep returning a bare Done chunk.
	Recv() (*Chunk, error)

	// Close stops the stream and releases resources.
	Close() error
}

// Chunk is one piece of a streamed reply.
type Chunk struct {
	// Delta is the incremental text content.
	Delta string

	// FinishReason indicates why generation stopped, set on the last chunk.
	FinishReason string

	// Done is true once the reply is complete.
	Done bool
}

// bufferedStream yields one complete reply as a single chunk. Providers
// without an incremental transport return it from Stream.
type bufferedStream struct {
	text   string
	finish string
	done   bool
	closed bool
}

func (s *bufferedStream) Recv() (*Chunk, error) {
	if s.closed {
		return nil, ErrStreamClosed
	}
	if s.done {
		return &Chunk{Done: true}, nil
	}
	s.done = true
	return &Chunk{Delta: s.text, FinishReason: s.finish, Done: true}, nil
}

func (s *bufferedStream) Close() error {
	s.closed = true
	return nil
}
