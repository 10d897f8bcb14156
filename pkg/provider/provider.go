// Package provider defines the vendor-neutral vocabulary shared by every
// capability package: the capability kinds, the adapter descriptor, and the
// typed error taxonomy surfaced to gateway callers.
//
// The capability packages (stt, tts, llm) build on these types; nothing in
// this package talks to a vendor.
package provider

import (
	"strconv"
)

// Capability identifies one of the three gateway operations.
// The set is fixed; providers register adapters per capability.
type Capability string

const (
	// Transcription converts speech audio to text.
	Transcription Capability = "transcription"

	// Synthesis converts text to speech audio.
	Synthesis Capability = "synthesis"

	// Generation produces an assistant reply from user input.
	Generation Capability = "generation"
)

// Capabilities returns all capabilities in stable order.
func Capabilities() []Capability {
	return []Capability{Transcription, Synthesis, Generation}
}

// Valid reports whether c is one of the known capabilities.
func (c Capability) Valid() bool {
	switch c {
	case Transcription, Synthesis, Generation:
		return true
	}
	return false
}

// Descriptor describes one adapter registration: which vendor serves which
// capability, with what credentials and endpoint parameters. Descriptors are
// immutable once built; reconfiguration constructs a new descriptor and a
// new adapter, it never mutates credentials in place.
type Descriptor struct {
	// Capability the adapter serves.
	Capability Capability

	// Name is the provider name, e.g. "openai", "elevenlabs".
	Name string

	// Credentials holds opaque credential material keyed by name
	// (api_key, region, credentials_file). Never logged.
	Credentials map[string]string

	// Params holds opaque endpoint parameters keyed by name
	// (model, voice, temperature, max_tokens).
	Params map[string]string
}

// Clone returns a deep copy so callers can build a new descriptor without
// aliasing the maps of the old one.
func (d Descriptor) Clone() Descriptor {
	out := Descriptor{
		Capability:  d.Capability,
		Name:        d.Name,
		Credentials: make(map[string]string, len(d.Credentials)),
		Params:      make(map[string]string, len(d.Params)),
	}
	for k, v := range d.Credentials {
		out.Credentials[k] = v
	}
	for k, v := range d.Params {
		out.Params[k] = v
	}
	return out
}

// Credential returns the named credential or "".
func (d Descriptor) Credential(key string) string {
	return d.Credentials[key]
}

// Param returns the named parameter or "".
func (d Descriptor) Param(key string) string {
	return d.Params[key]
}

// ParamInt returns the named parameter parsed as an int, or def when the
// parameter is absent or unparseable.
func (d Descriptor) ParamInt(key string, def int) int {
	v, ok := d.Params[key]
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// ParamFloat returns the named parameter parsed as a float64, or def when
// the parameter is absent or unparseable.
func (d Descriptor) ParamFloat(key string, def float64) float64 {
	v, ok := d.Params[key]
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
