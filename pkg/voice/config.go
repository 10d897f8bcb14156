package voice

import "log/slog"

const (
	// DefaultHistoryCap bounds the conversation history a session keeps,
	// counted in messages (one turn adds two).
	DefaultHistoryCap = 20

	// DefaultSampleRate is assumed for audio chunks that omit one.
	DefaultSampleRate = 16000
)

// Config holds hub and session settings.
type Config struct {
	// HistoryCap bounds the per-session conversation history; older
	// messages are dropped first. Zero disables the cap.
	HistoryCap int

	// Logger for hub and session events.
	Logger *slog.Logger
}

// Option configures the hub and the sessions it spawns.
type Option func(*Config)

// WithHistoryCap bounds the per-session conversation history.
func WithHistoryCap(n int) Option {
	return func(c *Config) { c.HistoryCap = n }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}

// DefaultConfig returns the default voice configuration.
func DefaultConfig() *Config {
	return &Config{
		HistoryCap: DefaultHistoryCap,
		Logger:     slog.Default(),
	}
}

// Apply applies the given options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}
