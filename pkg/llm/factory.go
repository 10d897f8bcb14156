package llm

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
		ProviderOpenAI:    {factory: newOpenAIAdapter, creds: []string{"api_key"}},
		ProviderAnthropic: {factory: newAnthropicAdapter, creds: []string{"api_key"}},
		ProviderOllama:    {factory: newOllamaAdapter},
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
		return nil, fmt.Errorf("llm: unknown provider %q", d.Name)
	}
	return reg.factory(d)
}

// descriptorOptions translates the endpoint parameters every generation
// provider understands. The system prompt wins over a preset name.
func descriptorOptions(d provider.Descriptor) []Option {
	var opts []Option
	if v := d.Param("model"); v != "" {
		opts = append(opts, WithModel(v))
	}
	if v := d.Param("base_url"); v != "" {
		opts = append(opts, WithBaseURL(v))
	}
	if v := d.Param("system_prompt"); v != "" {
		opts = append(opts, WithSystemPrompt(v))
	} else if v := d.Param("preset"); v != "" {
		opts = append(opts, WithSystemPrompt(ResolvePreset(v)))
	}
	if v := d.ParamInt("max_tokens", 0); v > 0 {
		opts = append(opts, WithMaxTokens(v))
	}
	if v := d.ParamFloat("temperature", -1); v >= 0 {
		opts = append(opts, WithTemperature(v))
	}
	return opts
}
