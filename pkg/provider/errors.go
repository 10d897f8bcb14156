package provider

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a gateway failure. Kinds are surfaced verbatim to callers
// and recorded in capability health; they are the only part of a failure a
// caller may branch on.
type Kind string

const (
	// Adapter kinds: the only failures a vendor adapter may raise.

	// KindInvalidCredentials means the vendor rejected the credentials.
	KindInvalidCredentials Kind = "invalid_credentials"

	// KindQuotaExceeded means the vendor throttled or exhausted the quota.
	KindQuotaExceeded Kind = "quota_exceeded"

	// KindUpstreamTimeout means the vendor call exceeded its deadline.
	KindUpstreamTimeout Kind = "upstream_timeout"

	// KindUpstreamRejected means the vendor refused the request.
	KindUpstreamRejected Kind = "upstream_rejected"

	// KindMalformedResponse means the vendor response could not be decoded.
	KindMalformedResponse Kind = "malformed_upstream_response"

	// KindNetworkUnavailable means the vendor could not be reached.
	KindNetworkUnavailable Kind = "network_unavailable"

	// Configuration kinds, raised before any state changes.

	// KindConfigValidation means a configuration update failed validation.
	KindConfigValidation Kind = "config_validation_failed"

	// KindConfigConflict means a configuration update lost a version race.
	KindConfigConflict Kind = "config_conflict"

	// Request kind, raised by the gateway before resolving an adapter.

	// KindRequestValidation means the request shape was invalid.
	KindRequestValidation Kind = "request_validation_failed"
)

// Retryable reports whether the gateway may retry a failure of this kind.
// Only transient transport conditions qualify.
func (k Kind) Retryable() bool {
	return k == KindUpstreamTimeout || k == KindNetworkUnavailable
}

// Error is a typed failure from a vendor adapter. Detail may carry the
// vendor's own error text as an opaque diagnostic; callers must not parse
// or branch on it.
type Error struct {
	// Capability the failing adapter serves.
	Capability Capability

	// Provider is the adapter's provider name.
	Provider string

	// Kind classifies the failure.
	Kind Kind

	// Detail is an opaque diagnostic, typically the vendor's error text.
	Detail string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s [%s]: %s: %s", e.Capability, e.Provider, e.Kind, e.Detail)
	}
	return fmt.Sprintf("%s [%s]: %s", e.Capability, e.Provider, e.Kind)
}

// ErrorKind returns the failure kind.
func (e *Error) ErrorKind() Kind { return e.Kind }

// Retryable reports whether the gateway may retry this failure.
func (e *Error) Retryable() bool { return e.Kind.Retryable() }

// NewError builds a typed adapter error.
func NewError(capability Capability, provider string, kind Kind, detail string) *Error {
	return &Error{Capability: capability, Provider: provider, Kind: kind, Detail: detail}
}

// Errorf builds a typed adapter error with a formatted diagnostic.
func Errorf(capability Capability, provider string, kind Kind, format string, args ...interface{}) *Error {
	return NewError(capability, provider, kind, fmt.Sprintf(format, args...))
}

// ValidationError reports which field of a configuration update failed
// validation. Raised before any state changes.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ErrorKind returns KindConfigValidation.
func (e *ValidationError) ErrorKind() Kind { return KindConfigValidation }

// ConflictError reports a lost configuration version race: the update was
// built against a version that is no longer current.
type ConflictError struct {
	Attempted uint64
	Current   uint64
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("config: version conflict: attempted %d, current %d", e.Attempted, e.Current)
}

// ErrorKind returns KindConfigConflict.
func (e *ConflictError) ErrorKind() Kind { return KindConfigConflict }

// RequestError reports an invalid gateway request, raised before any
// adapter is resolved.
type RequestError struct {
	Reason string
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	return fmt.Sprintf("request: %s", e.Reason)
}

// ErrorKind returns KindRequestValidation.
func (e *RequestError) ErrorKind() Kind { return KindRequestValidation }

// kinder is implemented by every error in the taxonomy.
type kinder interface {
	ErrorKind() Kind
}

// KindOf extracts the failure kind from err or any error it wraps.
func KindOf(err error) (Kind, bool) {
	var k kinder
	if errors.As(err, &k) {
		return k.ErrorKind(), true
	}
	return "", false
}

// Classify maps a vendor HTTP status to a failure kind.
func Classify(status int) Kind {
	switch {
	case status == 401 || status == 403:
		return KindInvalidCredentials
	case status == 429:
		return KindQuotaExceeded
	case status == 408 || status == 504:
		return KindUpstreamTimeout
	case status == 502 || status == 503:
		return KindNetworkUnavailable
	default:
		return KindUpstreamRejected
	}
}

// FromRequest converts a transport-level error from a vendor call into a
// typed error. Caller cancellation passes through untyped: it is not a
// vendor failure.
func FromRequest(capability Capability, provider string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(capability, provider, KindUpstreamTimeout, err.Error())
	}
	return NewError(capability, provider, KindNetworkUnavailable, err.Error())
}
