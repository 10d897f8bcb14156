package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/lumenlabs/go-wren/pkg/llm"
	"github.com/lumenlabs/go-wren/pkg/stt"
	"github.com/lumenlabs/go-wren/pkg/tts"
)

// File is the YAML seed file shape: one optional section per
// capability, layered over the built-in defaults.
//
//	generation:
//	  provider: anthropic
//	  credentials:
//	    api_key: ${ANTHROPIC_API_KEY}
//	  params:
//	    preset: casual
type File struct {
	Transcription *CapabilityUpdate `yaml:"transcription"`
	Synthesis     *CapabilityUpdate `yaml:"synthesis"`
	Generation    *CapabilityUpdate `yaml:"generation"`
}

// LoadFile reads a YAML seed file. ${VAR} references are expanded from
// the environment before parsing; unset variables expand to the empty
// string.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal([]byte(expandEnv(string(data))), &f); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &f, nil
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnv(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envPattern.FindStringSubmatch(match)[1])
	})
}

// envCredentialKeys maps provider name to credential key to the
// conventional environment variable carrying it.
var envCredentialKeys = map[string]map[string]string{
	stt.ProviderOpenAI:     {"api_key": "OPENAI_API_KEY"},
	llm.ProviderAnthropic:  {"api_key": "ANTHROPIC_API_KEY"},
	tts.ProviderElevenLabs: {"api_key": "ELEVENLABS_API_KEY"},
	stt.ProviderAzure:      {"api_key": "AZURE_SPEECH_KEY", "region": "AZURE_SPEECH_REGION"},
	stt.ProviderGoogle:     {"credentials_file": "GOOGLE_APPLICATION_CREDENTIALS"},
}

// EnvCredentials returns the provider credentials present in the
// process environment, e.g. api_key from OPENAI_API_KEY for "openai".
func EnvCredentials(providerName string) map[string]string {
	var out map[string]string
	for key, envVar := range envCredentialKeys[providerName] {
		if v := os.Getenv(envVar); v != "" {
			if out == nil {
				out = make(map[string]string)
			}
			out[key] = v
		}
	}
	return out
}

// DefaultSeed returns the built-in boot configuration: OpenAI for all
// three capabilities, credentials left to the later layers.
func DefaultSeed() Update {
	return Update{
		Transcription: &CapabilityUpdate{Provider: stt.ProviderOpenAI},
		Synthesis:     &CapabilityUpdate{Provider: tts.ProviderOpenAI},
		Generation:    &CapabilityUpdate{Provider: llm.ProviderOpenAI},
	}
}

// Seed builds the boot configuration from the three layers (built-in
// defaults, optional YAML file, process environment) and applies it to
// the store as one update against version zero.
func Seed(store *Store, path string) (uint64, error) {
	u := DefaultSeed()
	if path != "" {
		f, err := LoadFile(path)
		if err != nil {
			return 0, err
		}
		overlay(u.Transcription, f.Transcription)
		overlay(u.Synthesis, f.Synthesis)
		overlay(u.Generation, f.Generation)
	}
	for _, section := range []*CapabilityUpdate{u.Transcription, u.Synthesis, u.Generation} {
		fillEnvCredentials(section)
	}

	u.BaseVersion = 0
	return store.Apply(u)
}

// overlay folds a file section over the defaults, with the same
// switch-replaces semantics as a runtime update.
func overlay(dst, src *CapabilityUpdate) {
	if src == nil {
		return
	}
	if src.Provider != "" && src.Provider != dst.Provider {
		dst.Provider = src.Provider
		dst.Credentials = copyStringMap(src.Credentials)
		dst.Params = copyStringMap(src.Params)
		return
	}
	for k, v := range src.Credentials {
		if dst.Credentials == nil {
			dst.Credentials = make(map[string]string)
		}
		dst.Credentials[k] = v
	}
	for k, v := range src.Params {
		if dst.Params == nil {
			dst.Params = make(map[string]string)
		}
		dst.Params[k] = v
	}
}

// fillEnvCredentials applies the environment layer: conventional
// variables override file and default values for the chosen provider.
func fillEnvCredentials(u *CapabilityUpdate) {
	for key, value := range EnvCredentials(u.Provider) {
		if u.Credentials == nil {
			u.Credentials = make(map[string]string)
		}
		u.Credentials[key] = value
	}
}
