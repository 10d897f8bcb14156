package llm

import (
	"log/slog"
)

// defaultMaxInputChars bounds user input per request, well inside every
// supported model's context window.
const defaultMaxInputChars = 32000

// Config holds provider configuration.
type Config struct {
	// BaseURL is the API base URL. Each provider supplies its own default.
	BaseURL string

	// APIKey authenticates against the vendor. Optional for local
	// providers like Ollama.
	APIKey string

	// Model is the chat model identifier.
	Model string

	// MaxTokens limits the reply length.
	MaxTokens int

	// Temperature controls randomness (0.0-2.0).
	Temperature float64

	// SystemPrompt steers the assistant persona. See prompts.go for the
	// named presets.
	SystemPrompt string

	// MaxInputChars bounds the user input length accepted per request.
	MaxInputChars int

	// Logger receives structured logs. Defaults to slog.Default().
	Logger *slog.Logger
}

// Option is a functional option for configuring providers.
type Option func(*Config)

// WithBaseURL sets the API base URL.
// Examples: "https://api.openai.com/v1", "http://localhost:11434/v1".
func WithBaseURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(c *Config) { c.APIKey = key }
}

// WithModel sets the chat model.
func WithModel(model string) Option {
	return func(c *Config) { c.Model = model }
}

// WithMaxTokens sets the reply length limit.
func WithMaxTokens(n int) Option {
	return func(c *Config) { c.MaxTokens = n }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(c *Config) { c.Temperature = t }
}

// WithSystemPrompt sets the assistant persona.
func WithSystemPrompt(prompt string) Option {
	return func(c *Config) { c.SystemPrompt = prompt }
}

// WithMaxInputChars sets the per-request input length limit.
func WithMaxInputChars(n int) Option {
	return func(c *Config) { c.MaxInputChars = n }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// DefaultConfig returns the shared generation defaults. Providers overlay
// their own endpoint and model before applying options.
func DefaultConfig() *Config {
	return &Config{
		MaxTokens:     150,
		Temperature:   0.7,
		SystemPrompt:  DefaultSystemPrompt,
		MaxInputChars: defaultMaxInputChars,
		Logger:        slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}
