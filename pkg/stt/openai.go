package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/lumenlabs/go-wren/internal/httpc"
	"github.com/lumenlabs/go-wren/pkg/provider"
)

const (
	openAISTTURL   = "https://api.openai.com/v1"
	ProviderOpenAI = "openai"

	// ModelWhisper1 is the default transcription model.
	ModelWhisper1 = "whisper-1"

	// openAIMaxAudioBytes is OpenAI's documented upload limit (25 MB).
	openAIMaxAudioBytes = 25 << 20
)

// OpenAI implements Provider for OpenAI Whisper transcription.
// Payloads above 25 MB are rejected before the upload.
type OpenAI struct {
	config  *Config
	client  *http.Client
	logger  *slog.Logger
	baseURL string
}

// NewOpenAI creates a new OpenAI transcription provider.
func NewOpenAI(opts ...Option) (*OpenAI, error) {
	cfg := DefaultConfig()
	cfg.Model = ModelWhisper1
	cfg.MaxAudioBytes = openAIMaxAudioBytes
	cfg.Apply(opts...)

	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = openAISTTURL
	}

	return &OpenAI{
		config:  cfg,
		client:  httpc.Client,
		logger:  cfg.Logger.With("component", "stt.openai"),
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
	if v := d.Param("language"); v != "" {
		opts = append(opts, WithLanguage(v))
	}
	if v := d.Param("base_url"); v != "" {
		opts = append(opts, WithBaseURL(v))
	}
	return NewOpenAI(opts...)
}

// Transcribe uploads the audio as a multipart form and returns the
// transcript.
func (o *OpenAI) Transcribe(ctx context.Context, req *Request) (*Result, error) {
	if len(req.Audio) == 0 {
		return nil, ErrEmptyAudio
	}
	if len(req.Audio) > o.config.MaxAudioBytes {
		return nil, oversizeError(ProviderOpenAI, len(req.Audio), o.config.MaxAudioBytes)
	}

	start := time.Now()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", "audio."+ContainerEncoding(req.Encoding))
	if err != nil {
		return nil, fmt.Errorf("stt: create form file: %w", err)
	}
	if _, err := part.Write(req.Audio); err != nil {
		return nil, fmt.Errorf("stt: write form file: %w", err)
	}
	if err := w.WriteField("model", o.config.Model); err != nil {
		return nil, fmt.Errorf("stt: write model field: %w", err)
	}
	if lang := whisperLanguage(req.Language, o.config.Language); lang != "" {
		if err := w.WriteField("language", lang); err != nil {
			return nil, fmt.Errorf("stt: write language field: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("stt: close multipart writer: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", o.baseURL+"/audio/transcriptions", &buf)
	if err != nil {
		return nil, fmt.Errorf("stt: create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+o.config.APIKey)
	httpReq.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, requestError(ProviderOpenAI, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, vendorError(ProviderOpenAI, resp)
	}

	var decoded struct {
		Text     string `json:"text"`
		Language string `json:"language"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, malformedError(ProviderOpenAI, err)
	}

	latency := time.Since(start).Milliseconds()
	o.logger.Debug("transcribed audio",
		"bytes", len(req.Audio),
		"chars", len(decoded.Text),
		"latency_ms", latency,
	)

	language := decoded.Language
	if language == "" {
		language = req.Language
	}

	return &Result{
		Text:      decoded.Text,
		Language:  language,
		LatencyMs: latency,
	}, nil
}

// Health checks API connectivity using the models endpoint.
func (o *OpenAI) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", o.baseURL+"/models", nil)
	if err != nil {
		return fmt.Errorf("stt: create request: %w", err)
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

// whisperLanguage converts a BCP-47 hint to the ISO-639-1 code Whisper
// expects ("en-US" -> "en").
func whisperLanguage(reqLang, cfgLang string) string {
	lang := reqLang
	if lang == "" {
		lang = cfgLang
	}
	if len(lang) > 2 && lang[2] == '-' {
		return lang[:2]
	}
	return lang
}

// Verify OpenAI implements Provider at compile time.
var _ Provider = (*OpenAI)(nil)
