package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/lumenlabs/go-wren/internal/httpc"
	"github.com/lumenlabs/go-wren/pkg/provider"
)

const (
	ProviderAzure = "azure"

	// azureMaxAudioBytes bounds the conversation endpoint, which accepts
	// at most 60 seconds of audio (~1.9 MB of 16 kHz PCM plus header).
	azureMaxAudioBytes = 2 << 20
)

// Azure implements Provider for the Azure Speech REST API.
// Audio longer than 60 seconds (2 MB WAV) is rejected.
type Azure struct {
	config   *Config
	client   *http.Client
	logger   *slog.Logger
	endpoint string
	tokenURL string
}

// NewAzure creates a new Azure Speech transcription provider.
func NewAzure(opts ...Option) (*Azure, error) {
	cfg := DefaultConfig()
	cfg.MaxAudioBytes = azureMaxAudioBytes
	cfg.Apply(opts...)

	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if cfg.Region == "" && cfg.BaseURL == "" {
		return nil, ErrNoRegion
	}

	endpoint := cfg.BaseURL
	tokenURL := cfg.BaseURL + "/sts/v1.0/issueToken"
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.stt.speech.microsoft.com", cfg.Region)
		tokenURL = fmt.Sprintf("https://%s.api.cognitive.microsoft.com/sts/v1.0/issueToken", cfg.Region)
	}

	return &Azure{
		config:   cfg,
		client:   httpc.Client,
		logger:   cfg.Logger.With("component", "stt.azure"),
		endpoint: endpoint,
		tokenURL: tokenURL,
	}, nil
}

func newAzureAdapter(d provider.Descriptor) (Provider, error) {
	opts := []Option{
		WithAPIKey(d.Credential("api_key")),
		WithRegion(d.Credential("region")),
	}
	if v := d.Param("language"); v != "" {
		opts = append(opts, WithLanguage(v))
	}
	if v := d.Param("base_url"); v != "" {
		opts = append(opts, WithBaseURL(v))
	}
	return NewAzure(opts...)
}

// Transcribe posts raw WAV audio to the conversation endpoint.
func (a *Azure) Transcribe(ctx context.Context, req *Request) (*Result, error) {
	if len(req.Audio) == 0 {
		return nil, ErrEmptyAudio
	}
	if len(req.Audio) > a.config.MaxAudioBytes {
		return nil, oversizeError(ProviderAzure, len(req.Audio), a.config.MaxAudioBytes)
	}

	start := time.Now()

	language := req.Language
	if language == "" {
		language = a.config.Language
	}

	u := fmt.Sprintf("%s/speech/recognition/conversation/cognitiveservices/v1?language=%s&format=simple",
		a.endpoint, url.QueryEscape(language))

	httpReq, err := http.NewRequestWithContext(ctx, "POST", u, bytes.NewReader(req.Audio))
	if err != nil {
		return nil, fmt.Errorf("stt: create request: %w", err)
	}
	httpReq.Header.Set("Ocp-Apim-Subscription-Key", a.config.APIKey)
	httpReq.Header.Set("Content-Type", "audio/wav; codecs=audio/pcm; samplerate=16000")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, requestError(ProviderAzure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, vendorError(ProviderAzure, resp)
	}

	var decoded struct {
		RecognitionStatus string `json:"RecognitionStatus"`
		DisplayText       string `json:"DisplayText"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, malformedError(ProviderAzure, err)
	}

	switch decoded.RecognitionStatus {
	case "Success":
	case "NoMatch", "InitialSilenceTimeout":
		// No speech recognized; an empty transcript, not a failure.
		decoded.DisplayText = ""
	default:
		return nil, provider.Errorf(provider.Transcription, ProviderAzure,
			provider.KindUpstreamRejected, "recognition status %s", decoded.RecognitionStatus)
	}

	latency := time.Since(start).Milliseconds()
	a.logger.Debug("transcribed audio",
		"bytes", len(req.Audio),
		"chars", len(decoded.DisplayText),
		"latency_ms", latency,
	)

	return &Result{
		Text:      decoded.DisplayText,
		Language:  language,
		LatencyMs: latency,
	}, nil
}

// Health validates the subscription key against the token endpoint.
func (a *Azure) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "POST", a.tokenURL, nil)
	if err != nil {
		return fmt.Errorf("stt: create request: %w", err)
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

// Verify Azure implements Provider at compile time.
var _ Provider = (*Azure)(nil)
