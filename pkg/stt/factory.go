package stt

import (
	"fmt"
	"sort"
	"sync"

	"github.com/lumenlabs/go-wren/pkg/provider"
)

// Factory constructs a configured Provider from an adapter descriptor.
type Factory func(d provider.Descriptor) (Provider, error)

type registration struct {
	factory Factory
	creds   []string // required credential keys
}

var (
	factoriesMu sync.RWMutex
	factories   = map[string]registration{
		ProviderOpenAI: {factory: newOpenAIAdapter, creds: []string{"api_key"}},
		ProviderGoogle: {factory: newGoogleAdapter},
		ProviderAzure:  {factory: newAzureAdapter, creds: []string{"api_key", "region"}},
	}
)

// Register makes a factory available under the given provider name,
// declaring which credential keys it requires. Built-in providers are
// pre-registered; Register is for external extensions.
func Register(name string, f Factory, requiredCreds ...string) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = registration{factory: f, creds: requiredCreds}
}

// Known reports whether a factory is registered under name.
func Known(name string) bool {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	_, ok := factories[name]
	return ok
}

// Names returns all registered provider names, sorted.
func Names() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	out := make([]string, 0, len(factories))
	for name := range factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// RequiredCredentials returns the credential keys the named provider needs.
func RequiredCredentials(name string) []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	return factories[name].creds
}

// New constructs the adapter described by d.
func New(d provider.Descriptor) (Provider, error) {
	factoriesMu.RLock()
	reg, ok := factories[d.Name]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("stt: unknown provider %q", d.Name)
	}
	return reg.factory(d)
}
