package stt

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

	// Recognition
	Model    string // vendor model name
	Language string // BCP-47 language hint

	// Limits
	MaxAudioBytes int // reject payloads larger than this before calling out

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

// WithModel sets the recognition model.
func WithModel(model string) Option {
	return func(c *Config) { c.Model = model }
}

// WithLanguage sets the language hint.
func WithLanguage(lang string) Option {
	return func(c *Config) { c.Language = lang }
}

// WithMaxAudioBytes overrides the payload size limit.
func WithMaxAudioBytes(n int) Option {
	return func(c *Config) { c.MaxAudioBytes = n }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Language: "en-US",
		Logger:   slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}
