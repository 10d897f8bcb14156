// Package tts provides a unified interface for text-to-speech providers.
//
// The package supports multiple synthesis backends (OpenAI, Google Cloud,
// Azure Speech, ElevenLabs). All providers implement the Provider interface,
// enabling runtime switching without changing caller code.
//
// Example usage:
//
//	p, _ := tts.NewElevenLabs(
//	    tts.WithAPIKey(os.Getenv("ELEVENLABS_API_KEY")),
//	    tts.WithVoice("adam"),
//	)
//	defer p.Close()
//
//	result, _ := p.Synthesize(ctx, &tts.Request{Text: "Hello world"})
//	// result.Audio contains the encoded audio bytes
package tts

import (
	"context"
	"strings"
	"time"
)

// Provider defines the text-to-speech provider interface.
// Implementations perform exactly one vendor call per Synthesize and never
// retry internally; retry policy belongs to the caller.
type Provider interface {
	// Synthesize converts text to audio, returning the complete buffer.
	Synthesize(ctx context.Context, req *Request) (*Result, error)

	// Stream converts text to audio with streaming output. Providers
	// without a streaming endpoint buffer the full result.
	Stream(ctx context.Context, req *Request) (AudioStream, error)

	// Health checks provider connectivity and credential validity.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// Request is the canonical synthesis request.
type Request struct {
	// Text is the text to speak.
	Text string

	// Voice optionally overrides the configured voice for this request.
	// ElevenLabs also accepts the preset names in ElevenLabsVoices.
	Voice string
}

// Result is the canonical synthesis result.
type Result struct {
	// Audio contains the encoded audio bytes.
	Audio []byte

	// MIME is the media type of Audio, e.g. "audio/wav".
	MIME string

	// Format describes the audio encoding and sample rate.
	Format AudioFormat

	// Duration is the estimated playback duration.
	Duration time.Duration

	// CharCount is the number of characters synthesized.
	CharCount int

	// LatencyMs is the vendor call duration in milliseconds.
	LatencyMs int64
}

// AudioStream represents a streaming audio response.
// Callers should read until Read returns nil, then call Close.
type AudioStream interface {
	// Read returns the next audio chunk.
	// Returns nil when the stream is complete (not an error).
	Read() ([]byte, error)

	// Close stops the stream and releases resources.
	Close() error

	// Format returns the audio format metadata.
	Format() AudioFormat
}

// AudioFormat describes the audio encoding parameters.
type AudioFormat struct {
	// Encoding specifies the audio codec (e.g. wav, pcm_16000).
	Encoding Encoding

	// SampleRate in Hz (e.g. 16000, 24000, 44100).
	SampleRate int

	// Channels is 1 for mono, 2 for stereo.
	Channels int

	// BitDepth for PCM formats (e.g. 16 for PCM16).
	BitDepth int
}

// Encoding represents audio encoding types. The pcm and mp3 values match
// ElevenLabs output format names.
type Encoding string

const (
	// EncodingWAV is a RIFF container around PCM16 samples.
	EncodingWAV Encoding = "wav"

	// PCM formats (raw audio, lowest latency)
	EncodingPCM16 Encoding = "pcm_16000" // 16kHz mono PCM16
	EncodingPCM22 Encoding = "pcm_22050" // 22.05kHz mono PCM16
	EncodingPCM24 Encoding = "pcm_24000" // 24kHz mono PCM16
	EncodingPCM44 Encoding = "pcm_44100" // 44.1kHz mono PCM16

	// Compressed formats
	EncodingMP3  Encoding = "mp3_44100_128" // MP3 128kbps
	EncodingOpus Encoding = "opus"          // Opus codec
	EncodingULaw Encoding = "ulaw_8000"     // μ-law 8kHz (telephony)
)

// SampleRateFromEncoding extracts the sample rate from an encoding type.
// WAV containers carry the rate in their header; adapters that emit WAV set
// the rate on the AudioFormat directly.
func SampleRateFromEncoding(enc Encoding) int {
	switch enc {
	case EncodingPCM16:
		return 16000
	case EncodingPCM22:
		return 22050
	case EncodingPCM24:
		return 24000
	case EncodingPCM44, EncodingMP3:
		return 44100
	case EncodingULaw:
		return 8000
	default:
		return 24000
	}
}

// MIMEFromEncoding returns the media type for an encoding.
func MIMEFromEncoding(enc Encoding) string {
	switch enc {
	case EncodingWAV:
		return "audio/wav"
	case EncodingMP3:
		return "audio/mpeg"
	case EncodingPCM16, EncodingPCM22, EncodingPCM24, EncodingPCM44:
		return "audio/pcm"
	case EncodingOpus:
		return "audio/opus"
	case EncodingULaw:
		return "audio/basic"
	default:
		return "application/octet-stream"
	}
}

// FileExt returns a filename extension (without the dot) for an encoding.
func FileExt(enc Encoding) string {
	switch enc {
	case EncodingWAV:
		return "wav"
	case EncodingMP3:
		return "mp3"
	case EncodingOpus:
		return "opus"
	case EncodingULaw:
		return "ulaw"
	default:
		return "pcm"
	}
}

// VoiceSettings controls voice characteristics for providers that support
// them (ElevenLabs). These settings affect the expressiveness and
// consistency of the generated speech.
type VoiceSettings struct {
	// Stability controls voice consistency (0.0-1.0).
	// Lower values = more expressive/variable, higher = more consistent.
	Stability float64

	// SimilarityBoost controls how closely the voice matches the original
	// sample (0.0-1.0).
	SimilarityBoost float64

	// Style controls style exaggeration (0.0-1.0).
	// Only supported by ElevenLabs v2 models.
	Style float64

	// SpeakerBoost enhances speaker clarity.
	SpeakerBoost bool
}

// DefaultVoiceSettings returns sensible defaults for voice synthesis.
func DefaultVoiceSettings() VoiceSettings {
	return VoiceSettings{
		Stability:       0.5,
		SimilarityBoost: 0.75,
		Style:           0.0,
		SpeakerBoost:    true,
	}
}

// estimateDuration estimates playback duration from the byte length of an
// audio buffer. Opus has no fixed bitrate, so it reports zero.
func estimateDuration(n int, f AudioFormat) time.Duration {
	switch f.Encoding {
	case EncodingMP3:
		// 128 kbps constant bitrate
		return time.Duration(float64(n*8) / 128000 * float64(time.Second))
	case EncodingOpus:
		return 0
	case EncodingWAV:
		if n > 44 {
			n -= 44 // container header
		}
	}
	if f.SampleRate == 0 || f.Channels == 0 {
		return 0
	}
	bytesPerSample := f.BitDepth / 8
	if bytesPerSample == 0 {
		bytesPerSample = 2
	}
	samples := n / (bytesPerSample * f.Channels)
	seconds := float64(samples) / float64(f.SampleRate)
	return time.Duration(seconds * float64(time.Second))
}

// voiceLanguage derives a BCP-47 language code from a vendor voice name
// ("en-US-JennyNeural" -> "en-US"). Returns fallback when the name carries
// no language prefix.
func voiceLanguage(voice, fallback string) string {
	parts := strings.SplitN(voice, "-", 3)
	if len(parts) >= 2 && len(parts[0]) == 2 {
		return parts[0] + "-" + parts[1]
	}
	return fallback
}
