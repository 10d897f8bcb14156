// Package gateway routes capability requests to the active provider
// adapters. A Registry holds the adapter set behind an atomic snapshot;
// a Service wraps it with request validation, per-capability timeouts, a
// single retry for transient failures, and health recording.
//
// Example usage:
//
//	registry := gateway.NewRegistry()
//	svc := gateway.NewService(registry)
//	// ... the config store publishes a snapshot into the registry ...
//	result, err := svc.Generate(ctx, &llm.Request{UserInput: "hello"})
package gateway

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lumenlabs/go-wren/pkg/llm"
	"github.com/lumenlabs/go-wren/pkg/provider"
	"github.com/lumenlabs/go-wren/pkg/stt"
	"github.com/lumenlabs/go-wren/pkg/tts"
)

// maxAttempts is one initial invocation plus the single retry.
const maxAttempts = 2

// Service implements the three gateway operations over the registry's
// active snapshot. All three share one algorithm: validate the request,
// resolve the adapter, invoke it under a bounded timeout, retry once on a
// transient failure, record health, and propagate the typed error
// unmodified. There is no fallback to another provider.
type Service struct {
	registry *Registry
	health   *StatusReporter
	config   *Config
	logger   *slog.Logger
}

// NewService creates a gateway service over registry.
func NewService(registry *Registry, opts ...Option) *Service {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	return &Service{
		registry: registry,
		health:   NewStatusReporter(),
		config:   cfg,
		logger:   cfg.Logger.With("component", "gateway"),
	}
}

// Status returns the per-capability health records.
func (s *Service) Status() map[provider.Capability]CapabilityHealth {
	return s.health.Report()
}

// Transcribe converts spoken audio to text using the active
// transcription adapter.
func (s *Service) Transcribe(ctx context.Context, req *stt.Request) (*stt.Result, error) {
	if req == nil || len(req.Audio) == 0 {
		return nil, &provider.RequestError{Reason: "empty audio payload"}
	}
	snap, err := s.resolve(provider.Transcription)
	if err != nil {
		return nil, err
	}

	var result *stt.Result
	err = s.invoke(ctx, provider.Transcription, snap.ProviderName(provider.Transcription), func(ctx context.Context) error {
		var callErr error
		result, callErr = snap.Transcription.Transcribe(ctx, req)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Synthesize converts text to audio using the active synthesis adapter.
func (s *Service) Synthesize(ctx context.Context, req *tts.Request) (*tts.Result, error) {
	if req == nil || req.Text == "" {
		return nil, &provider.RequestError{Reason: "empty text"}
	}
	snap, err := s.resolve(provider.Synthesis)
	if err != nil {
		return nil, err
	}

	var result *tts.Result
	err = s.invoke(ctx, provider.Synthesis, snap.ProviderName(provider.Synthesis), func(ctx context.Context) error {
		var callErr error
		result, callErr = snap.Synthesis.Synthesize(ctx, req)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Generate produces an assistant reply using the active generation
// adapter. History beyond the configured cap is dropped oldest-first
// before the adapter sees it.
func (s *Service) Generate(ctx context.Context, req *llm.Request) (*llm.Result, error) {
	if req == nil || req.UserInput == "" {
		return nil, &provider.RequestError{Reason: "empty user input"}
	}
	snap, err := s.resolve(provider.Generation)
	if err != nil {
		return nil, err
	}

	capped := *req
	if n := s.config.HistoryCap; n > 0 && len(capped.History) > n {
		capped.History = capped.History[len(capped.History)-n:]
	}

	var result *llm.Result
	err = s.invoke(ctx, provider.Generation, snap.ProviderName(provider.Generation), func(ctx context.Context) error {
		var callErr error
		result, callErr = snap.Generation.Generate(ctx, &capped)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// resolve returns the active snapshot, verifying it carries an adapter
// for the capability.
func (s *Service) resolve(capability provider.Capability) (*Snapshot, error) {
	snap := s.registry.Current()
	if snap == nil {
		return nil, provider.NewError(capability, "", provider.KindNetworkUnavailable,
			"no configuration published")
	}
	var missing bool
	switch capability {
	case provider.Transcription:
		missing = snap.Transcription == nil
	case provider.Synthesis:
		missing = snap.Synthesis == nil
	case provider.Generation:
		missing = snap.Generation == nil
	}
	if missing {
		return nil, provider.Errorf(capability, "", provider.KindNetworkUnavailable,
			"no %s adapter in active configuration", capability)
	}
	return snap, nil
}

// invoke runs one adapter call with the shared timeout, retry, and
// health-recording policy. Retries happen at most once and only for
// transient kinds; the adapter itself never retries.
func (s *Service) invoke(ctx context.Context, capability provider.Capability, providerName string, call func(context.Context) error) error {
	log := s.logger.With(
		"request_id", uuid.NewString(),
		"capability", capability,
		"provider", providerName,
	)

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			backoff := s.config.RetryBackoff << (attempt - 2)
			kind, _ := provider.KindOf(err)
			log.Warn("retrying after transient failure",
				"kind", kind,
				"backoff", backoff,
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		start := time.Now()
		err = s.attempt(ctx, capability, providerName, call)
		if err == nil {
			s.health.RecordSuccess(capability, providerName)
			log.Debug("call completed",
				"attempt", attempt,
				"duration_ms", time.Since(start).Milliseconds(),
			)
			return nil
		}
		if ctx.Err() != nil {
			// The caller went away; not a provider failure.
			return err
		}
		if kind, ok := provider.KindOf(err); !ok || !kind.Retryable() {
			break
		}
	}

	s.health.RecordFailure(capability, providerName, err)
	kind, _ := provider.KindOf(err)
	log.Warn("call failed", "kind", kind, "error", err)
	return err
}

// attempt runs the call under the per-capability deadline. A blown
// deadline surfaces as a typed upstream timeout; caller cancellation
// passes through untyped.
func (s *Service) attempt(ctx context.Context, capability provider.Capability, providerName string, call func(context.Context) error) error {
	timeout := s.config.timeoutFor(capability)
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := call(callCtx)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if callCtx.Err() != nil && !isTyped(err) {
		return provider.Errorf(capability, providerName, provider.KindUpstreamTimeout,
			"no response within %s", timeout)
	}
	return err
}

// isTyped reports whether err already carries a failure kind.
func isTyped(err error) bool {
	_, ok := provider.KindOf(err)
	return ok
}
