package tts

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	texttospeech "google.golang.org/api/texttospeech/v1"

	"github.com/lumenlabs/go-wren/pkg/provider"
)

const (
	ProviderGoogle = "google"

	// googleMaxTextChars is the documented input limit for a single
	// synthesize call.
	googleMaxTextChars = 5000
)

// Google implements Provider for Google Cloud Text-to-Speech.
// Text above 5000 characters is rejected before the request.
type Google struct {
	config *Config
	svc    *texttospeech.Service
	logger *slog.Logger
}

// NewGoogle creates a new Google Cloud synthesis provider.
// Credentials resolve in order: inline JSON, credentials file, then
// application default credentials.
func NewGoogle(opts ...Option) (*Google, error) {
	cfg := DefaultConfig()
	cfg.OutputFormat = EncodingWAV
	cfg.MaxTextChars = googleMaxTextChars
	cfg.Apply(opts...)

	ctx := context.Background()
	clientOpts, err := googleClientOptions(ctx, cfg)
	if err != nil {
		return nil, err
	}

	svc, err := texttospeech.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("tts: create texttospeech service: %w", err)
	}

	return &Google{
		config: cfg,
		svc:    svc,
		logger: cfg.Logger.With("component", "tts.google"),
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
	if v := d.Param("voice"); v != "" {
		opts = append(opts, WithVoice(v))
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
		creds, err := google.CredentialsFromJSON(ctx, []byte(cfg.CredentialsJSON), texttospeech.CloudPlatformScope)
		if err != nil {
			return nil, fmt.Errorf("tts: parse google credentials: %w", err)
		}
		return []option.ClientOption{option.WithTokenSource(creds.TokenSource)}, nil
	}

	if cfg.CredentialsFile != "" {
		if _, err := os.Stat(cfg.CredentialsFile); err != nil {
			return nil, fmt.Errorf("tts: google credentials file: %w", err)
		}
		return []option.ClientOption{option.WithCredentialsFile(cfg.CredentialsFile)}, nil
	}

	// Application default credentials.
	return nil, nil
}

// Synthesize renders the text as 16 kHz LINEAR16 audio. The API wraps
// LINEAR16 responses in a WAV header.
func (g *Google) Synthesize(ctx context.Context, req *Request) (*Result, error) {
	if req.Text == "" {
		return nil, ErrEmptyText
	}
	if len(req.Text) > g.config.MaxTextChars {
		return nil, oversizeError(ProviderGoogle, len(req.Text), g.config.MaxTextChars)
	}

	start := time.Now()

	voice := req.Voice
	if voice == "" {
		voice = g.config.VoiceID
	}

	synthReq := &texttospeech.SynthesizeSpeechRequest{
		Input: &texttospeech.SynthesisInput{Text: req.Text},
		Voice: &texttospeech.VoiceSelectionParams{
			LanguageCode: voiceLanguage(voice, "en-US"),
			Name:         voice,
		},
		AudioConfig: &texttospeech.AudioConfig{
			AudioEncoding:   "LINEAR16",
			SampleRateHertz: 16000,
		},
	}

	resp, err := g.svc.Text.Synthesize(synthReq).Context(ctx).Do()
	if err != nil {
		return nil, googleError(err)
	}

	audio, err := base64.StdEncoding.DecodeString(resp.AudioContent)
	if err != nil {
		return nil, malformedError(ProviderGoogle, err)
	}

	latency := time.Since(start).Milliseconds()
	g.logger.Debug("synthesized audio",
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

// Stream converts text to audio. The REST API has no streaming endpoint,
// so the full result is buffered.
func (g *Google) Stream(ctx context.Context, req *Request) (AudioStream, error) {
	result, err := g.Synthesize(ctx, req)
	if err != nil {
		return nil, err
	}
	return &bufferStream{data: result.Audio, format: result.Format}, nil
}

// Health lists voices, which validates both connectivity and credentials.
func (g *Google) Health(ctx context.Context) error {
	_, err := g.svc.Voices.List().LanguageCode("en-US").Context(ctx).Do()
	if err != nil {
		return googleError(err)
	}
	return nil
}

// Close releases resources.
func (g *Google) Close() error {
	return nil
}

// googleError converts a googleapi error into a typed error.
func googleError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return provider.NewError(provider.Synthesis, ProviderGoogle,
			provider.Classify(gerr.Code), gerr.Message)
	}
	return requestError(ProviderGoogle, err)
}

// Verify Google implements Provider at compile time.
var _ Provider = (*Google)(nil)
