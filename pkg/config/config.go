// Package config owns the versioned gateway configuration: which
// provider serves each capability, with what credentials and endpoint
// parameters. A Store validates partial updates against the registered
// provider factories, bumps the version, and publishes the resulting
// adapter snapshot into the gateway registry before the update call
// returns.
//
// Configuration is seeded at boot from three layers merged in order:
// built-in defaults, an optional YAML file (with ${VAR} expansion), and
// conventional environment variables for provider credentials.
package config

import (
	"strings"

	"github.com/lumenlabs/go-wren/pkg/provider"
)

// CapabilityConfig selects the provider for one capability and carries
// its credential and parameter material.
type CapabilityConfig struct {
	// Provider is the registered provider name, e.g. "openai".
	Provider string `yaml:"provider" json:"provider"`

	// Credentials holds opaque credential material keyed by name.
	// Masked in sanitized views, never logged.
	Credentials map[string]string `yaml:"credentials,omitempty" json:"credentials,omitempty"`

	// Params holds opaque endpoint parameters keyed by name
	// (model, voice, temperature, ...).
	Params map[string]string `yaml:"params,omitempty" json:"params,omitempty"`
}

// clone returns a deep copy.
func (c CapabilityConfig) clone() CapabilityConfig {
	return CapabilityConfig{
		Provider:    c.Provider,
		Credentials: copyStringMap(c.Credentials),
		Params:      copyStringMap(c.Params),
	}
}

// descriptor builds the adapter descriptor for capability.
func (c CapabilityConfig) descriptor(capability provider.Capability) provider.Descriptor {
	return provider.Descriptor{
		Capability:  capability,
		Name:        c.Provider,
		Credentials: copyStringMap(c.Credentials),
		Params:      copyStringMap(c.Params),
	}
}

// ActiveConfiguration is one immutable generation of the gateway
// configuration. The store hands out copies; callers never see shared
// mutable state.
type ActiveConfiguration struct {
	// Version is the monotonic configuration version, zero before the
	// boot seed.
	Version uint64 `json:"version"`

	Transcription CapabilityConfig `json:"transcription"`
	Synthesis     CapabilityConfig `json:"synthesis"`
	Generation    CapabilityConfig `json:"generation"`
}

// clone returns a deep copy.
func (a ActiveConfiguration) clone() ActiveConfiguration {
	return ActiveConfiguration{
		Version:       a.Version,
		Transcription: a.Transcription.clone(),
		Synthesis:     a.Synthesis.clone(),
		Generation:    a.Generation.clone(),
	}
}

// Capability returns a copy of the section for c.
func (a ActiveConfiguration) Capability(c provider.Capability) CapabilityConfig {
	switch c {
	case provider.Transcription:
		return a.Transcription.clone()
	case provider.Synthesis:
		return a.Synthesis.clone()
	default:
		return a.Generation.clone()
	}
}

// Sanitized returns a copy safe for status responses and logs: values
// under keys that contain "key", "secret", "token", or "password" are
// replaced with a mask.
func (a ActiveConfiguration) Sanitized() ActiveConfiguration {
	out := a.clone()
	for _, section := range []*CapabilityConfig{&out.Transcription, &out.Synthesis, &out.Generation} {
		maskSensitive(section.Credentials)
		maskSensitive(section.Params)
	}
	return out
}

// sensitiveKeywords flag map keys whose values must never leave the
// process unmasked.
var sensitiveKeywords = []string{"key", "secret", "token", "password"}

func maskSensitive(m map[string]string) {
	for k := range m {
		lower := strings.ToLower(k)
		for _, word := range sensitiveKeywords {
			if strings.Contains(lower, word) {
				m[k] = "***"
				break
			}
		}
	}
}

// CapabilityUpdate changes one capability's section. An empty provider
// inherits the active one; credential and param entries merge by key.
// Naming a different provider replaces the section wholesale instead of
// merging, so the new vendor starts from only what the update carries.
type CapabilityUpdate struct {
	Provider    string            `yaml:"provider,omitempty" json:"provider,omitempty"`
	Credentials map[string]string `yaml:"credentials,omitempty" json:"credentials,omitempty"`
	Params      map[string]string `yaml:"params,omitempty" json:"params,omitempty"`
}

// Update is a partial configuration change built against a base
// version. Nil sections leave the active capability untouched.
type Update struct {
	// BaseVersion is the version the caller built the update against.
	// Apply rejects the update when it no longer matches.
	BaseVersion uint64 `json:"base_version"`

	Transcription *CapabilityUpdate `json:"transcription,omitempty"`
	Synthesis     *CapabilityUpdate `json:"synthesis,omitempty"`
	Generation    *CapabilityUpdate `json:"generation,omitempty"`
}

func copyStringMap(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
