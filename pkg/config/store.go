package config

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/lumenlabs/go-wren/pkg/gateway"
	"github.com/lumenlabs/go-wren/pkg/llm"
	"github.com/lumenlabs/go-wren/pkg/provider"
	"github.com/lumenlabs/go-wren/pkg/stt"
	"github.com/lumenlabs/go-wren/pkg/tts"
)

// Store owns the active configuration. All mutation goes through Apply,
// which validates the whole update, constructs the new adapter set, and
// publishes it to the registry before returning; a failed update leaves
// the active configuration and the registry untouched.
type Store struct {
	mu       sync.Mutex
	active   ActiveConfiguration
	registry *gateway.Registry
	logger   *slog.Logger
}

// Option configures the store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// NewStore creates a store publishing into registry. The store starts
// at version zero with nothing published; the boot seed is the first
// Apply.
func NewStore(registry *gateway.Registry, opts ...Option) *Store {
	s := &Store{
		registry: registry,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "config")
	return s
}

// Active returns a copy of the active configuration.
func (s *Store) Active() ActiveConfiguration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active.clone()
}

// Version returns the active configuration version.
func (s *Store) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active.Version
}

// Apply validates and applies a partial update. On success the version
// increments by exactly one and the new snapshot is visible in the
// registry before Apply returns. A base version that no longer matches
// the active one fails with a ConflictError; exactly one of two racing
// updates from the same base wins.
func (s *Store) Apply(u Update) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.BaseVersion != s.active.Version {
		return 0, &provider.ConflictError{
			Attempted: u.BaseVersion + 1,
			Current:   s.active.Version,
		}
	}

	next := s.active.clone()
	next.Version++
	mergeSection(&next.Transcription, u.Transcription)
	mergeSection(&next.Synthesis, u.Synthesis)
	mergeSection(&next.Generation, u.Generation)

	if err := validate(next); err != nil {
		return 0, err
	}

	snap, err := buildSnapshot(next)
	if err != nil {
		return 0, err
	}

	if err := s.registry.Publish(snap); err != nil {
		snap.Close()
		return 0, err
	}
	s.active = next

	s.logger.Info("configuration applied",
		"version", next.Version,
		"transcription", next.Transcription.Provider,
		"synthesis", next.Synthesis.Provider,
		"generation", next.Generation.Provider,
	)
	return next.Version, nil
}

// mergeSection folds an update section into the active section. A
// provider switch replaces credentials and params with the update's
// values; a same-provider update merges entries by key.
func mergeSection(active *CapabilityConfig, u *CapabilityUpdate) {
	if u == nil {
		return
	}
	if u.Provider != "" && u.Provider != active.Provider {
		active.Provider = u.Provider
		active.Credentials = copyStringMap(u.Credentials)
		active.Params = copyStringMap(u.Params)
		return
	}
	for k, v := range u.Credentials {
		if active.Credentials == nil {
			active.Credentials = make(map[string]string)
		}
		active.Credentials[k] = v
	}
	for k, v := range u.Params {
		if active.Params == nil {
			active.Params = make(map[string]string)
		}
		active.Params[k] = v
	}
}

// section pairs a capability with its factory checks for validation.
type section struct {
	field    string
	config   CapabilityConfig
	known    func(string) bool
	names    func() []string
	required func(string) []string
}

func sections(c ActiveConfiguration) []section {
	return []section{
		{"transcription", c.Transcription, stt.Known, stt.Names, stt.RequiredCredentials},
		{"synthesis", c.Synthesis, tts.Known, tts.Names, tts.RequiredCredentials},
		{"generation", c.Generation, llm.Known, llm.Names, llm.RequiredCredentials},
	}
}

// validate checks the merged configuration in three phases: structure,
// provider existence, required credentials. The first failure aborts
// with the failing field named.
func validate(c ActiveConfiguration) error {
	secs := sections(c)

	for _, sec := range secs {
		if sec.config.Provider == "" {
			return &provider.ValidationError{
				Field:   sec.field + ".provider",
				Message: "required",
			}
		}
	}

	for _, sec := range secs {
		if !sec.known(sec.config.Provider) {
			return &provider.ValidationError{
				Field: sec.field + ".provider",
				Message: fmt.Sprintf("unknown provider %q (known: %s)",
					sec.config.Provider, strings.Join(sec.names(), ", ")),
			}
		}
	}

	for _, sec := range secs {
		for _, cred := range sec.required(sec.config.Provider) {
			if sec.config.Credentials[cred] == "" {
				return &provider.ValidationError{
					Field:   fmt.Sprintf("%s.credentials.%s", sec.field, cred),
					Message: fmt.Sprintf("required by provider %q", sec.config.Provider),
				}
			}
		}
	}

	return nil
}

// buildSnapshot constructs the full adapter set for c. A constructor
// failure closes the adapters built so far and surfaces as a validation
// error naming the capability; nothing has been published at that point.
func buildSnapshot(c ActiveConfiguration) (*gateway.Snapshot, error) {
	transcription, err := stt.New(c.Transcription.descriptor(provider.Transcription))
	if err != nil {
		return nil, &provider.ValidationError{Field: "transcription", Message: err.Error()}
	}
	synthesis, err := tts.New(c.Synthesis.descriptor(provider.Synthesis))
	if err != nil {
		transcription.Close()
		return nil, &provider.ValidationError{Field: "synthesis", Message: err.Error()}
	}
	generation, err := llm.New(c.Generation.descriptor(provider.Generation))
	if err != nil {
		transcription.Close()
		synthesis.Close()
		return nil, &provider.ValidationError{Field: "generation", Message: err.Error()}
	}

	return &gateway.Snapshot{
		Version:       c.Version,
		Transcription: transcription,
		Synthesis:     synthesis,
		Generation:    generation,
		Providers: map[provider.Capability]string{
			provider.Transcription: c.Transcription.Provider,
			provider.Synthesis:     c.Synthesis.Provider,
			provider.Generation:    c.Generation.Provider,
		},
	}, nil
}
