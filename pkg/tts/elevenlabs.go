package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/lumenlabs/go-wren/internal/httpc"
	"github.com/lumenlabs/go-wren/pkg/provider"
)

const (
	elevenLabsBaseURL  = "https://api.elevenlabs.io/v1"
	ProviderElevenLabs = "elevenlabs"

	// elevenLabsMaxTextChars bounds a single synthesis request.
	elevenLabsMaxTextChars = 5000
)

// ElevenLabs model IDs
const (
	// ModelTurboV2_5 is the fastest English model (~200ms latency).
	ModelTurboV2_5 = "eleven_turbo_v2_5"

	// ModelFlashV2_5 is the fastest multilingual model (~150ms latency).
	ModelFlashV2_5 = "eleven_flash_v2_5"

	// ModelMultilingualV2 is the highest quality multilingual model (~300ms latency).
	ModelMultilingualV2 = "eleven_multilingual_v2"

	// ModelMonolingualV1 is the legacy English model.
	ModelMonolingualV1 = "eleven_monolingual_v1"
)

// ElevenLabs implements Provider for ElevenLabs text-to-speech.
// Text above 5000 characters is rejected before the request.
type ElevenLabs struct {
	config  *Config
	client  *http.Client
	logger  *slog.Logger
	baseURL string
}

// NewElevenLabs creates a new ElevenLabs synthesis provider.
func NewElevenLabs(opts ...Option) (*ElevenLabs, error) {
	cfg := DefaultConfig()
	cfg.ModelID = ModelMonolingualV1
	cfg.VoiceID = DefaultElevenLabsVoice
	cfg.OutputFormat = EncodingMP3
	cfg.MaxTextChars = elevenLabsMaxTextChars
	cfg.Apply(opts...)

	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if cfg.VoiceID == "" {
		return nil, ErrNoVoiceID
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = elevenLabsBaseURL
	}

	return &ElevenLabs{
		config:  cfg,
		client:  httpc.Client,
		logger:  cfg.Logger.With("component", "tts.elevenlabs"),
		baseURL: baseURL,
	}, nil
}

func newElevenLabsAdapter(d provider.Descriptor) (Provider, error) {
	opts := []Option{
		WithAPIKey(d.Credential("api_key")),
	}
	if v := d.Param("voice"); v != "" {
		opts = append(opts, WithVoice(v))
	}
	if v := d.Param("model"); v != "" {
		opts = append(opts, WithModel(v))
	}
	if v := d.Param("format"); v != "" {
		opts = append(opts, WithOutputFormat(Encoding(v)))
	}
	if v := d.Param("base_url"); v != "" {
		opts = append(opts, WithBaseURL(v))
	}

	settings := DefaultVoiceSettings()
	settings.Stability = d.ParamFloat("stability", settings.Stability)
	settings.SimilarityBoost = d.ParamFloat("similarity_boost", settings.SimilarityBoost)
	opts = append(opts, WithVoiceSettings(settings))

	return NewElevenLabs(opts...)
}

// Synthesize converts text to audio, returning the complete buffer.
func (e *ElevenLabs) Synthesize(ctx context.Context, req *Request) (*Result, error) {
	if req.Text == "" {
		return nil, ErrEmptyText
	}
	if len(req.Text) > e.config.MaxTextChars {
		return nil, oversizeError(ProviderElevenLabs, len(req.Text), e.config.MaxTextChars)
	}

	start := time.Now()

	url := fmt.Sprintf("%s/text-to-speech/%s?output_format=%s",
		e.baseURL, e.voiceFor(req), apiOutputFormat(e.config.OutputFormat))

	body, err := json.Marshal(e.buildPayload(req.Text))
	if err != nil {
		return nil, fmt.Errorf("tts: marshal payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("tts: create request: %w", err)
	}
	e.setHeaders(httpReq)

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, requestError(ProviderElevenLabs, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, vendorError(ProviderElevenLabs, resp)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, requestError(ProviderElevenLabs, err)
	}

	latency := time.Since(start).Milliseconds()
	e.logger.Debug("synthesized audio",
		"chars", len(req.Text),
		"bytes", len(audio),
		"latency_ms", latency,
		"model", e.config.ModelID,
	)

	format := e.outputFormat()
	return &Result{
		Audio:     audio,
		MIME:      MIMEFromEncoding(format.Encoding),
		Format:    format,
		Duration:  estimateDuration(len(audio), format),
		CharCount: len(req.Text),
		LatencyMs: latency,
	}, nil
}

// Stream converts text to audio with chunked output for lower latency to
// first byte.
func (e *ElevenLabs) Stream(ctx context.Context, req *Request) (AudioStream, error) {
	if req.Text == "" {
		return nil, ErrEmptyText
	}
	if len(req.Text) > e.config.MaxTextChars {
		return nil, oversizeError(ProviderElevenLabs, len(req.Text), e.config.MaxTextChars)
	}

	url := fmt.Sprintf("%s/text-to-speech/%s/stream?output_format=%s",
		e.baseURL, e.voiceFor(req), apiOutputFormat(e.config.OutputFormat))

	body, err := json.Marshal(e.buildPayload(req.Text))
	if err != nil {
		return nil, fmt.Errorf("tts: marshal payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("tts: create request: %w", err)
	}
	e.setHeaders(httpReq)

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, requestError(ProviderElevenLabs, err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, vendorError(ProviderElevenLabs, resp)
	}

	return &httpStream{
		body:   resp.Body,
		format: e.outputFormat(),
	}, nil
}

// Health checks API connectivity and API key validity.
func (e *ElevenLabs) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", e.baseURL+"/user", nil)
	if err != nil {
		return fmt.Errorf("tts: create request: %w", err)
	}
	req.Header.Set("xi-api-key", e.config.APIKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return requestError(ProviderElevenLabs, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return vendorError(ProviderElevenLabs, resp)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

// Close releases resources. The HTTP client is shared, so there is
// nothing to tear down.
func (e *ElevenLabs) Close() error {
	return nil
}

// voiceFor resolves the voice for a request: the per-request override wins,
// and preset names map to voice IDs.
func (e *ElevenLabs) voiceFor(req *Request) string {
	voice := req.Voice
	if voice == "" {
		voice = e.config.VoiceID
	}
	return ResolveElevenLabsVoice(voice)
}

// buildPayload constructs the API request payload.
func (e *ElevenLabs) buildPayload(text string) map[string]interface{} {
	return map[string]interface{}{
		"text":     text,
		"model_id": e.config.ModelID,
		"voice_settings": map[string]interface{}{
			"stability":         e.config.VoiceSettings.Stability,
			"similarity_boost":  e.config.VoiceSettings.SimilarityBoost,
			"style":             e.config.VoiceSettings.Style,
			"use_speaker_boost": e.config.VoiceSettings.SpeakerBoost,
		},
	}
}

// setHeaders sets required HTTP headers.
func (e *ElevenLabs) setHeaders(req *http.Request) {
	req.Header.Set("xi-api-key", e.config.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", MIMEFromEncoding(e.config.OutputFormat))
}

// outputFormat reports the format actually requested from the API, which
// may differ from the configured encoding when the API does not offer it.
func (e *ElevenLabs) outputFormat() AudioFormat {
	enc := Encoding(apiOutputFormat(e.config.OutputFormat))
	return AudioFormat{
		Encoding:   enc,
		SampleRate: SampleRateFromEncoding(enc),
		Channels:   1,
		BitDepth:   16,
	}
}

// apiOutputFormat converts an encoding to the ElevenLabs output_format
// parameter. Encodings the API does not offer fall back to 24 kHz PCM.
func apiOutputFormat(enc Encoding) string {
	switch enc {
	case EncodingPCM16, EncodingPCM22, EncodingPCM24, EncodingPCM44, EncodingMP3, EncodingULaw:
		return string(enc)
	default:
		return string(EncodingPCM24)
	}
}

// httpStream wraps an HTTP response body as AudioStream.
type httpStream struct {
	body   io.ReadCloser
	format AudioFormat
	closed bool
	buf    [4096]byte
}

// Read returns the next audio chunk.
func (s *httpStream) Read() ([]byte, error) {
	if s.closed {
		return nil, ErrStreamClosed
	}
	n, err := s.body.Read(s.buf[:])
	if n > 0 {
		chunk := make([]byte, n)
		copy(chunk, s.buf[:n])
		return chunk, nil
	}
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte{}, nil
}

// Close stops the stream.
func (s *httpStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}

// Format returns the audio format.
func (s *httpStream) Format() AudioFormat {
	return s.format
}

// Verify ElevenLabs implements Provider at compile time.
var _ Provider = (*ElevenLabs)(nil)
