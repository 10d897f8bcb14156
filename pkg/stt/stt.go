// Package stt provides a unified interface for speech-to-text providers.
//
// The package supports multiple transcription backends (OpenAI Whisper,
// Google Cloud Speech, Azure Speech). All providers implement the Provider
// interface, enabling runtime switching without changing caller code.
//
// Example usage:
//
//	p, _ := stt.NewOpenAI(
//	    stt.WithAPIKey(os.Getenv("OPENAI_API_KEY")),
//	)
//	defer p.Close()
//
//	result, _ := p.Transcribe(ctx, &stt.Request{Audio: wav, Encoding: "wav"})
//	// result.Text contains the transcript
package stt

import (
	"context"
)

// Provider defines the speech-to-text provider interface.
// Implementations perform exactly one vendor call per Transcribe and never
// retry internally; retry policy belongs to the caller.
type Provider interface {
	// Transcribe converts spoken audio to text.
	Transcribe(ctx context.Context, req *Request) (*Result, error)

	// Health checks provider connectivity and credential validity.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// Request is the canonical transcription request.
type Request struct {
	// Audio is the encoded audio payload.
	Audio []byte

	// Encoding hints at the payload container: "wav", "mp3", "flac".
	// Empty means "wav".
	Encoding string

	// Language optionally hints the spoken language (BCP-47, e.g. "en-US").
	Language string
}

// Result is the canonical transcription result.
type Result struct {
	// Text is the transcript.
	Text string

	// Language is the detected language, or the request hint when the
	// vendor does not report one.
	Language string

	// LatencyMs is the vendor call duration in milliseconds.
	LatencyMs int64
}

// ContainerEncoding normalizes a request encoding hint to a container name.
func ContainerEncoding(hint string) string {
	switch hint {
	case "", "wav", "wave":
		return "wav"
	case "mp3", "mpeg":
		return "mp3"
	case "flac":
		return "flac"
	default:
		return hint
	}
}
