package tts

import (
	"log/slog"
)

// Config holds provider configuration.
type Config struct {
	// Connection
	BaseURL string // API base URL override (tests, proxies)
	APIKey  string // API key (not used by Google, which takes credentials)
	Region  string // Azure region, e.g. "eastus"

	// Google credentials (service account file or inline JSON).
	CredentialsFile string
	CredentialsJSON string

	// Voice configuration
	VoiceID       string
	ModelID       string
	VoiceSettings VoiceSettings

	// Audio output
	OutputFormat Encoding

	// Limits
	MaxTextChars int // reject longer text before calling out

	// Observability
	Logger *slog.Logger
}

// Option is a functional option for configuring providers.
type Option func(*Config)

// WithBaseURL overrides the API base URL.
func WithBaseURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(c *Config) { c.APIKey = key }
}

// WithRegion sets the service region.
func WithRegion(region string) Option {
	return func(c *Config) { c.Region = region }
}

// WithCredentialsFile sets a service-account credentials file path.
func WithCredentialsFile(path string) Option {
	return func(c *Config) { c.CredentialsFile = path }
}

// WithCredentialsJSON sets inline service-account credentials.
func WithCredentialsJSON(raw string) Option {
	return func(c *Config) { c.CredentialsJSON = raw }
}

// WithVoice sets the voice ID.
func WithVoice(voiceID string) Option {
	return func(c *Config) { c.VoiceID = voiceID }
}

// WithModel sets the model ID.
func WithModel(modelID string) Option {
	return func(c *Config) { c.ModelID = modelID }
}

// WithVoiceSettings sets voice characteristics.
func WithVoiceSettings(settings VoiceSettings) Option {
	return func(c *Config) { c.VoiceSettings = settings }
}

// WithOutputFormat sets the audio output format.
func WithOutputFormat(format Encoding) Option {
	return func(c *Config) { c.OutputFormat = format }
}

// WithMaxTextChars overrides the text length limit.
func WithMaxTextChars(n int) Option {
	return func(c *Config) { c.MaxTextChars = n }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// DefaultConfig returns sensible defaults. Providers layer their own model,
// voice, and format defaults on top before applying options.
func DefaultConfig() *Config {
	return &Config{
		VoiceSettings: DefaultVoiceSettings(),
		Logger:        slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}
