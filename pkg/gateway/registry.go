package gateway

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/lumenlabs/go-wren/pkg/llm"
	"github.com/lumenlabs/go-wren/pkg/provider"
	"github.com/lumenlabs/go-wren/pkg/stt"
	"github.com/lumenlabs/go-wren/pkg/tts"
)

// Snapshot is one immutable generation of the active adapter set: the
// configuration version plus the constructed adapter per capability.
// The config store builds snapshots and publishes them here; a published
// snapshot is never mutated.
type Snapshot struct {
	// Version is the configuration version that produced this snapshot.
	Version uint64

	// Transcription, Synthesis, and Generation are the active adapters.
	Transcription stt.Provider
	Synthesis     tts.Provider
	Generation    llm.Provider

	// Providers maps each capability to its active provider name.
	Providers map[provider.Capability]string
}

// ProviderName returns the active provider name for a capability.
func (s *Snapshot) ProviderName(c provider.Capability) string {
	return s.Providers[c]
}

// Close closes every adapter the snapshot owns. Called at shutdown on the
// active snapshot; replaced snapshots are left for in-flight requests to
// finish with and are then garbage collected.
func (s *Snapshot) Close() error {
	var errs []error
	if s.Transcription != nil {
		if err := s.Transcription.Close(); err != nil {
			errs = append(errs, fmt.Errorf("transcription: %w", err))
		}
	}
	if s.Synthesis != nil {
		if err := s.Synthesis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("synthesis: %w", err))
		}
	}
	if s.Generation != nil {
		if err := s.Generation.Close(); err != nil {
			errs = append(errs, fmt.Errorf("generation: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Registry holds the active snapshot behind a single atomic pointer.
// The request path resolves adapters with one pointer load and no lock;
// readers observe either the previous snapshot or the new one, never a
// mix of the two.
type Registry struct {
	current atomic.Pointer[Snapshot]
}

// NewRegistry creates an empty registry. Current returns nil until the
// first Publish.
func NewRegistry() *Registry {
	return &Registry{}
}

// Current returns the active snapshot, or nil before the first publish.
func (r *Registry) Current() *Snapshot {
	return r.current.Load()
}

// Version returns the active configuration version, zero before the
// first publish.
func (r *Registry) Version() uint64 {
	if snap := r.current.Load(); snap != nil {
		return snap.Version
	}
	return 0
}

// Publish atomically installs snap as the active snapshot. The version
// must be strictly greater than the current one; a stale snapshot is
// rejected with a ConflictError and the active snapshot stays in place.
func (r *Registry) Publish(snap *Snapshot) error {
	for {
		old := r.current.Load()
		var current uint64
		if old != nil {
			current = old.Version
		}
		if snap.Version <= current {
			return &provider.ConflictError{Attempted: snap.Version, Current: current}
		}
		if r.current.CompareAndSwap(old, snap) {
			return nil
		}
	}
}
