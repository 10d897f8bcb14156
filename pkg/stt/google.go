package stt

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	speech "google.golang.org/api/speech/v1"

	"github.com/lumenlabs/go-wren/pkg/provider"
)

const (
	ProviderGoogle = "google"

	// googleMaxAudioBytes is the inline-content limit for synchronous
	// recognition (10 MB, roughly one minute of 16 kHz PCM).
	googleMaxAudioBytes = 10 << 20
)

// Google implements Provider for Google Cloud Speech-to-Text.
// Requests above 10 MB are rejected; synchronous recognition does not
// accept longer audio inline.
type Google struct {
	config *Config
	svc    *speech.Service
	logger *slog.Logger
}

// NewGoogle creates a new Google Cloud transcription provider.
// Credentials resolve in order: inline JSON, credentials file, then
// application default credentials.
func NewGoogle(opts ...Option) (*Google, error) {
	cfg := DefaultConfig()
	cfg.MaxAudioBytes = googleMaxAudioBytes
	cfg.Apply(opts...)

	ctx := context.Background()
	clientOpts, err := googleClientOptions(ctx, cfg)
	if err != nil {
		return nil, err
	}

	svc, err := speech.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("stt: create speech service: %w", err)
	}

	return &Google{
		config: cfg,
		svc:    svc,
		logger: cfg.Logger.With("component", "stt.google"),
	}, nil
}

func newGoogleAdapter(d provider.Descriptor) (Provider, error) {
	opts := []Option{}
	if v := d.Credential("credentials_file"); v != "" {
		opts = append(opts, WithCredentialsFile(v))
	}
	if v := d.Credential("credentials_json"); v != "" {
		opts = append(opts, WithCredentialsJSON(v))
	}
	if v := d.Param("language"); v != "" {
		opts = append(opts, WithLanguage(v))
	}
	if v := d.Param("model"); v != "" {
		opts = append(opts, WithModel(v))
	}
	if v := d.Param("base_url"); v != "" {
		opts = append(opts, WithBaseURL(v))
	}
	return NewGoogle(opts...)
}

// googleClientOptions builds the API client options for the configured
// credential source. An explicit BaseURL disables authentication; that
// path exists for tests against a local fake.
func googleClientOptions(ctx context.Context, cfg *Config) ([]option.ClientOption, error) {
	if cfg.BaseURL != "" {
		return []option.ClientOption{
			option.WithEndpoint(cfg.BaseURL),
			option.WithoutAuthentication(),
		}, nil
	}

	if cfg.CredentialsJSON != "" {
		creds, err := google.CredentialsFromJSON(ctx, []byte(cfg.CredentialsJSON), speech.CloudPlatformScope)
		if err != nil {
			return nil, fmt.Errorf("stt: parse google credentials: %w", err)
		}
		return []option.ClientOption{option.WithTokenSource(creds.TokenSource)}, nil
	}

	if cfg.CredentialsFile != "" {
		if _, err := os.Stat(cfg.CredentialsFile); err != nil {
			return nil, fmt.Errorf("stt: google credentials file: %w", err)
		}
		return []option.ClientOption{option.WithCredentialsFile(cfg.CredentialsFile)}, nil
	}

	// Application default credentials.
	return nil, nil
}

// Transcribe performs synchronous recognition on the audio payload.
func (g *Google) Transcribe(ctx context.Context, req *Request) (*Result, error) {
	if len(req.Audio) == 0 {
		return nil, ErrEmptyAudio
	}
	if len(req.Audio) > g.config.MaxAudioBytes {
		return nil, oversizeError(ProviderGoogle, len(req.Audio), g.config.MaxAudioBytes)
	}

	start := time.Now()

	language := req.Language
	if language == "" {
		language = g.config.Language
	}

	recognizeReq := &speech.RecognizeRequest{
		Config: &speech.RecognitionConfig{
			Encoding:        googleEncoding(req.Encoding),
			SampleRateHertz: 16000,
			LanguageCode:    language,
			Model:           g.config.Model,
		},
		Audio: &speech.RecognitionAudio{
			Content: base64.StdEncoding.EncodeToString(req.Audio),
		},
	}

	resp, err := g.svc.Speech.Recognize(recognizeReq).Context(ctx).Do()
	if err != nil {
		return nil, googleError(err)
	}

	var sb strings.Builder
	for _, res := range resp.Results {
		if len(res.Alternatives) == 0 {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(res.Alternatives[0].Transcript)
	}

	latency := time.Since(start).Milliseconds()
	g.logger.Debug("transcribed audio",
		"bytes", len(req.Audio),
		"chars", sb.Len(),
		"latency_ms", latency,
	)

	return &Result{
		Text:      sb.String(),
		Language:  language,
		LatencyMs: latency,
	}, nil
}

// Health reports whether the service handle is usable. Credential problems
// surface on the first recognition call; there is no free ping endpoint.
func (g *Google) Health(ctx context.Context) error {
	if g.svc == nil {
		return errors.New("stt: google service not initialized")
	}
	return nil
}

// Close releases resources.
func (g *Google) Close() error {
	return nil
}

// googleEncoding maps a container hint to a RecognitionConfig encoding.
// WAV payloads carry their own header, which the API reads itself.
func googleEncoding(hint string) string {
	switch ContainerEncoding(hint) {
	case "flac":
		return "FLAC"
	case "mp3":
		return "MP3"
	default:
		return "LINEAR16"
	}
}

// googleError converts a googleapi error into a typed error.
func googleError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return provider.NewError(provider.Transcription, ProviderGoogle,
			provider.Classify(gerr.Code), gerr.Message)
	}
	return requestError(ProviderGoogle, err)
}

// Verify Google implements Provider at compile time.
var _ Provider = (*Google)(nil)
