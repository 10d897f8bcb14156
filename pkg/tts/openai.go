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
	openAITTSURL   = "https://api.openai.com/v1"
	ProviderOpenAI = "openai"

	// openAIMaxTextChars is OpenAI's documented input limit.
	openAIMaxTextChars = 4096
)

// OpenAI voice options
const (
	VoiceAlloy   = "alloy"   // Neutral voice
	VoiceEcho    = "echo"    // Male voice
	VoiceFable   = "fable"   // British accent
	VoiceOnyx    = "onyx"    // Deep male voice
	VoiceNova    = "nova"    // Female voice
	VoiceShimmer = "shimmer" // Soft female voice
)

// OpenAI model options
const (
	ModelTTS1   = "tts-1"    // Standard quality, faster
	ModelTTS1HD = "tts-1-hd" // Higher quality, slower
)

// OpenAI implements Provider for OpenAI text-to-speech.
// Text above 4096 characters is rejected before the request.
type OpenAI struct {
	config  *Config
	client  *http.Client
	logger  *slog.Logger
	baseURL string
}

// NewOpenAI creates a new OpenAI synthesis provider.
func NewOpenAI(opts ...Option) (*OpenAI, error) {
	cfg := DefaultConfig()
	cfg.ModelID = ModelTTS1
	cfg.VoiceID = VoiceAlloy
	cfg.OutputFormat = EncodingWAV
	cfg.MaxTextChars = openAIMaxTextChars
	cfg.Apply(opts...)

	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = openAITTSURL
	}

	return &OpenAI{
		config:  cfg,
		client:  httpc.Client,
		logger:  cfg.Logger.With("component", "tts.openai"),
		baseURL: baseURL,
	}, nil
}

func newOpenAIAdapter(d provider.Descriptor) (Provider, error) {
	opts := []Option{
		WithAPIKey(d.Credential("api_key")),
	}
	if v := d.Param("model"); v != "" {
		opts = append(opts, WithModel(v))
	}
	if v := d.Param("voice"); v != "" {
		opts = append(opts, WithVoice(v))
	}
	if v := d.Param("format"); v != "" {
		opts = append(opts, WithOutputFormat(Encoding(v)))
	}
	if v := d.Param("base_url"); v != "" {
		opts = append(opts, WithBaseURL(v))
	}
	return NewOpenAI(opts...)
}

// Synthesize converts text to audio, returning the complete buffer.
func (o *OpenAI) Synthesize(ctx context.Context, req *Request) (*Result, error) {
	if req.Text == "" {
		return nil, ErrEmptyText
	}
	if len(req.Text) > o.config.MaxTextChars {
		return nil, oversizeError(ProviderOpenAI, len(req.Text), o.config.MaxTextChars)
	}

	start := time.Now()

	voice := req.Voice
	if voice == "" {
		voice = o.config.VoiceID
	}

	payload := map[string]interface{}{
		"model":           o.config.ModelID,
		"voice":           voice,
		"input":           req.Text,
		"response_format": openAIResponseFormat(o.config.OutputFormat),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("tts: marshal payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", o.baseURL+"/audio/speech", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("tts: create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+o.config.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, requestError(ProviderOpenAI, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, vendorError(ProviderOpenAI, resp)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, requestError(ProviderOpenAI, err)
	}

	latency := time.Since(start).Milliseconds()
	o.logger.Debug("synthesized audio",
		"chars", len(req.Text),
		"bytes", len(audio),
		"latency_ms", latency,
		"voice", voice,
	)

	format := o.outputFormat()
	return &Result{
		Audio:     audio,
		MIME:      MIMEFromEncoding(format.Encoding),
		Format:    format,
		Duration:  estimateDuration(len(audio), format),
		CharCount: len(req.Text),
		LatencyMs: latency,
	}, nil
}

// Stream converts text to audio. OpenAI has no streaming endpoint, so the
// full result is buffered.
func (o *OpenAI) Stream(ctx context.Context, req *Request) (AudioStream, error) {
	result, err := o.Synthesize(ctx, req)
	if err != nil {
		return nil, err
	}
	return &bufferStream{data: result.Audio, format: result.Format}, nil
}

// Health checks API connectivity using the models endpoint.
func (o *OpenAI) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", o.baseURL+"/models", nil)
	if err != nil {
		return fmt.Errorf("tts: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+o.config.APIKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return requestError(ProviderOpenAI, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return vendorError(ProviderOpenAI, resp)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

// Close releases resources. The HTTP client is shared, so there is
// nothing to tear down.
func (o *OpenAI) Close() error {
	return nil
}

// outputFormat describes the configured output. OpenAI renders WAV and PCM
// at 24 kHz mono.
func (o *OpenAI) outputFormat() AudioFormat {
	rate := 24000
	if o.config.OutputFormat == EncodingMP3 {
		rate = 44100
	}
	return AudioFormat{
		Encoding:   o.config.OutputFormat,
		SampleRate: rate,
		Channels:   1,
		BitDepth:   16,
	}
}

// openAIResponseFormat maps an encoding to the response_format field.
func openAIResponseFormat(enc Encoding) string {
	switch enc {
	case EncodingMP3:
		return "mp3"
	case EncodingOpus:
		return "opus"
	case EncodingPCM16, EncodingPCM22, EncodingPCM24, EncodingPCM44:
		return "pcm"
	default:
		return "wav"
	}
}

// bufferStream wraps a byte slice as AudioStream.
type bufferStream struct {
	data   []byte
	offset int
	closed bool
	format AudioFormat
}

// Read returns the next audio chunk. The whole buffer comes back in one
// read since nothing arrives incrementally.
func (s *bufferStream) Read() ([]byte, error) {
	if s.closed {
		return nil, ErrStreamClosed
	}
	if s.offset >= len(s.data) {
		return nil, nil
	}
	chunk := s.data[s.offset:]
	s.offset = len(s.data)
	return chunk, nil
}

// Close releases resources.
func (s *bufferStream) Close() error {
	s.closed = true
	return nil
}

// Format returns the audio format.
func (s *bufferStream) Format() AudioFormat {
	return s.format
}

// Verify OpenAI implements Provider at compile time.
var _ Provider = (*OpenAI)(nil)
