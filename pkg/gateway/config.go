package gateway

import (
	"log/slog"
	"time"

	"github.com/lumenlabs/go-wren/pkg/provider"
)

const (
	// DefaultTimeout bounds an adapter invocation when no per-capability
	// timeout is configured.
	DefaultTimeout = 30 * time.Second

	// DefaultRetryBackoff is the base delay before the single retry of a
	// transient failure.
	DefaultRetryBackoff = 500 * time.Millisecond

	// DefaultHistoryCap is the maximum number of conversation turns
	// forwarded to the generation adapter.
	DefaultHistoryCap = 20
)

// Config holds gateway service settings.
type Config struct {
	// DefaultTimeout bounds each adapter invocation unless Timeouts
	// overrides it for the capability.
	DefaultTimeout time.Duration

	// Timeouts overrides the invocation deadline per capability.
	Timeouts map[provider.Capability]time.Duration

	// RetryBackoff is the base delay before the single retry of a
	// retryable failure.
	RetryBackoff time.Duration

	// HistoryCap bounds the conversation history forwarded to the
	// generation adapter; older turns are dropped first. Zero disables
	// the cap.
	HistoryCap int

	// Logger for request-scoped records.
	Logger *slog.Logger
}

// Option configures the gateway service.
type Option func(*Config)

// WithDefaultTimeout sets the invocation deadline used when no
// per-capability timeout is configured.
func WithDefaultTimeout(d time.Duration) Option {
	return func(c *Config) { c.DefaultTimeout = d }
}

// WithTimeout sets the invocation deadline for one capability.
func WithTimeout(capability provider.Capability, d time.Duration) Option {
	return func(c *Config) {
		if c.Timeouts == nil {
			c.Timeouts = make(map[provider.Capability]time.Duration)
		}
		c.Timeouts[capability] = d
	}
}

// WithRetryBackoff sets the base delay before the single retry.
func WithRetryBackoff(d time.Duration) Option {
	return func(c *Config) { c.RetryBackoff = d }
}

// WithHistoryCap bounds the conversation history forwarded to the
// generation adapter.
func WithHistoryCap(n int) Option {
	return func(c *Config) { c.HistoryCap = n }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}

// DefaultConfig returns the default gateway configuration.
func DefaultConfig() *Config {
	return &Config{
		DefaultTimeout: DefaultTimeout,
		RetryBackoff:   DefaultRetryBackoff,
		HistoryCap:     DefaultHistoryCap,
		Logger:         slog.Default(),
	}
}

// Apply applies the given options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// timeoutFor returns the invocation deadline for a capability.
func (c *Config) timeoutFor(capability provider.Capability) time.Duration {
	if d, ok := c.Timeouts[capability]; ok && d > 0 {
		return d
	}
	return c.DefaultTimeout
}
