package gateway

import (
	"sync"
	"time"

	"github.com/lumenlabs/go-wren/pkg/provider"
)

// CapabilityHealth is the health record for one capability: which
// provider served it last and when calls last succeeded or failed. A
// capability that has not served a call yet reports zero timestamps and
// an empty error kind.
type CapabilityHealth struct {
	// Capability the record describes.
	Capability provider.Capability

	// Provider that served the most recent call.
	Provider string

	// LastSuccess is when a call last completed, zero if never.
	LastSuccess time.Time

	// LastFailure is when a call last failed, zero if never.
	LastFailure time.Time

	// LastErrorKind is the kind of the most recent failure, empty if no
	// call has failed yet.
	LastErrorKind provider.Kind
}

// State summarizes the record: "ok" after a fresh success, "failed"
// after a fresh failure, "unused" before any call.
func (h CapabilityHealth) State() string {
	switch {
	case h.LastSuccess.IsZero() && h.LastFailure.IsZero():
		return "unused"
	case !h.LastSuccess.IsZero() && !h.LastSuccess.Before(h.LastFailure):
		return "ok"
	default:
		return "failed"
	}
}

// StatusReporter tracks per-capability health. Records are created at
// the first completed call for a capability and updated after every
// completion; the freshest completion wins. Reading a report never
// blocks gateway calls beyond a map copy.
type StatusReporter struct {
	mu      sync.RWMutex
	records map[provider.Capability]*CapabilityHealth
}

// NewStatusReporter creates an empty reporter.
func NewStatusReporter() *StatusReporter {
	return &StatusReporter{
		records: make(map[provider.Capability]*CapabilityHealth, len(provider.Capabilities())),
	}
}

// RecordSuccess notes a completed call for capability served by
// providerName.
func (r *StatusReporter) RecordSuccess(capability provider.Capability, providerName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.record(capability)
	rec.Provider = providerName
	rec.LastSuccess = time.Now()
}

// RecordFailure notes a failed call for capability served by
// providerName, keeping the failure kind.
func (r *StatusReporter) RecordFailure(capability provider.Capability, providerName string, err error) {
	kind, _ := provider.KindOf(err)
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.record(capability)
	rec.Provider = providerName
	rec.LastFailure = time.Now()
	rec.LastErrorKind = kind
}

// record returns the mutable record for capability, creating it on
// first use. Callers must hold mu.
func (r *StatusReporter) record(capability provider.Capability) *CapabilityHealth {
	rec, ok := r.records[capability]
	if !ok {
		rec = &CapabilityHealth{Capability: capability}
		r.records[capability] = rec
	}
	return rec
}

// Report returns a point-in-time copy of every capability's health.
// Capabilities with no completed calls report a zero record.
func (r *StatusReporter) Report() map[provider.Capability]CapabilityHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[provider.Capability]CapabilityHealth, len(provider.Capabilities()))
	for _, c := range provider.Capabilities() {
		if rec, ok := r.records[c]; ok {
			out[c] = *rec
		} else {
			out[c] = CapabilityHealth{Capability: c}
		}
	}
	return out
}
