package tts

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/lumenlabs/go-wren/internal/httpc"
	"github.com/lumenlabs/go-wren/pkg/provider"
)

const (
	ProviderAzure = "azure"

	// azureMaxTextChars bounds a single synthesis request; the service
	// rejects SSML bodies much longer than this.
	azureMaxTextChars = 3000

	// azureOutputFormat matches the canonical 16 kHz mono PCM pipeline.
	azureOutputFormat = "riff-16khz-16bit-mono-pcm"

	// DefaultAzureVoice is the default neural voice.
	DefaultAzureVoice = "en-US-JennyNeural"
)

// Azure implements Provider for the Azure Speech REST API.
// Text above 3000 characters is rejected before the request.
type Azure struct {
	config   *Config
	client   *http.Client
	logger   *slog.Logger
	endpoint string
	tokenURL string
}

// NewAzure creates a new Azure Speech synthesis provider.
func NewAzure(opts ...Option) (*Azure, error) {
	cfg := DefaultConfig()
	cfg.VoiceID = DefaultAzureVoice
	cfg.MaxTextChars = azureMaxTextChars
	cfg.Apply(opts...)

	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if cfg.Region == "" && cfg.BaseURL == "" {
		return nil, ErrNoRegion
	}

	endpoint := cfg.BaseURL + "/cognitiveservices/v1"
	tokenURL := cfg.BaseURL + "/sts/v1.0/issueToken"
	if cfg.BaseURL == "" {
		endpoint = fmt.Sprintf("https://%s.tts.speech.microsoft.com/cognitiveservices/v1", cfg.Region)
		tokenURL = fmt.Sprintf("https://%s.api.cognitive.microsoft.com/sts/v1.0/issueToken", cfg.Region)
	}

	return &Azure{
		config:   cfg,
		client:   httpc.Client,
		logger:   cfg.Logger.With("component", "tts.azure"),
		endpoint: endpoint,
		tokenURL: tokenURL,
	}, nil
}

func newAzureAdapter(d provider.Descriptor) (Provider, error) {
	opts := []Option{
		WithAPIKey(d.Credential("api_key")),
		WithRegion(d.Credential("region")),
	}
	if v := d.Param("voice"); v != "" {
		opts = append(opts, WithVoice(v))
	}
	if v := d.Param("base_url"); v != "" {
		opts = append(opts, WithBaseURL(v))
	}
	return NewAzure(opts...)
}

// Synthesize posts an SSML document and returns the rendered WAV audio.
func (a *Azure) Synthesize(ctx context.Context, req *Request) (*Result, error) {
	if req.Text == "" {
		return nil, ErrEmptyText
	}
	if len(req.Text) > a.config.MaxTextChars {
		return nil, oversizeError(ProviderAzure, len(req.Text), a.config.MaxTextChars)
	}

	start := time.Now()

	voice := req.Voice
	if voice == "" {
		voice = a.config.VoiceID
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", a.endpoint,
		bytes.NewReader([]byte(azureSSML(voice, req.Text))))
	if err != nil {
		return nil, fmt.Errorf("tts: create request: %w", err)
	}
	httpReq.Header.Set("Ocp-Apim-Subscription-Key", a.config.APIKey)
	httpReq.Header.Set("Content-Type", "application/ssml+xml")
	httpReq.Header.Set("X-Microsoft-OutputFormat", azureOutputFormat)
	httpReq.Header.Set("User-Agent", "go-wren")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, requestError(ProviderAzure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, vendorError(ProviderAzure, resp)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, requestError(ProviderAzure, err)
	}

	latency := time.Since(start).Milliseconds()
	a.logger.Debug("synthesized audio",
		"chars", len(req.Text),
		"bytes", len(audio),
		"latency_ms", latency,
		"voice", voice,
	)

	format := AudioFormat{
		Encoding:   EncodingWAV,
		SampleRate: 16000,
		Channels:   1,
		BitDepth:   16,
	}
	return &Result{
		Audio:     audio,
		MIME:      MIMEFromEncoding(format.Encoding),
		Format:    format,
		Duration:  estimateDuration(len(audio), format),
		CharCount: len(req.Text),
		LatencyMs: latency,
	}, nil
}

// Stream converts text to audio. The REST endpoint has no chunked
// synthesis mode, so the full result is buffered.
func (a *Azure) Stream(ctx context.Context, req *Request) (AudioStream, error) {
	result, err := a.Synthesize(ctx, req)
	if err != nil {
		return nil, err
	}
	return &bufferStream{data: result.Audio, format: result.Format}, nil
}

// Health validates the subscription key against the token endpoint.
func (a *Azure) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "POST", a.tokenURL, nil)
	if err != nil {
		return fmt.Errorf("tts: create request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", a.config.APIKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return requestError(ProviderAzure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return vendorError(ProviderAzure, resp)
	}
	return nil
}

// Close releases resources.
func (a *Azure) Close() error {
	return nil
}

// azureSSML builds the SSML request body. Text is XML-escaped; the document
// language follows the voice name.
func azureSSML(voice, text string) string {
	var esc bytes.Buffer
	xml.EscapeText(&esc, []byte(text))

	lang := voiceLanguage(voice, "en-US")
	return fmt.Sprintf("<speak version='1.0' xml:lang='%s'><voice name='%s'>%s</voice></speak>",
		lang, voice, esc.String())
}

// Verify Azure implements Provider at compile time.
var _ Provider = (*Azure)(nil)
