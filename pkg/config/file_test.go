package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lumenlabs/go-wren/pkg/config"
	"github.com/lumenlabs/go-wren/pkg/gateway"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wren.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write seed file: %v", err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	t.Setenv("WREN_TEST_ANTHROPIC_KEY", "ant-key")
	path := writeFile(t, `
generation:
  provider: anthropic
  credentials:
    api_key: ${WREN_TEST_ANTHROPIC_KEY}
  params:
    preset: casual
synthesis:
  provider: elevenlabs
  credentials:
    api_key: el-key
`)

	f, err := config.LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if f.Generation == nil || f.Generation.Provider != "anthropic" {
		t.Fatal("expected the generation section to parse")
	}
	if got := f.Generation.Credentials["api_key"]; got != "ant-key" {
		t.Errorf("expected ${VAR} expansion, got %q", got)
	}
	if got := f.Generation.Params["preset"]; got != "casual" {
		t.Errorf("preset = %q, want casual", got)
	}
	if f.Synthesis == nil || f.Synthesis.Credentials["api_key"] != "el-key" {
		t.Error("expected the synthesis section to parse")
	}
	if f.Transcription != nil {
		t.Error("expected the absent section to stay nil")
	}
}

func TestLoadFileUnsetVariable(t *testing.T) {
	path := writeFile(t, `
transcription:
  provider: openai
  credentials:
    api_key: ${WREN_TEST_UNSET_VARIABLE}
`)

	f, err := config.LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := f.Transcription.Credentials["api_key"]; got != "" {
		t.Errorf("unset variable must expand empty, got %q", got)
	}
}

func TestLoadFileErrors(t *testing.T) {
	if _, err := config.LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
	path := writeFile(t, "generation: [not, a, mapping")
	if _, err := config.LoadFile(path); err == nil {
		t.Error("expected an error for malformed YAML")
	}
}

func TestSeedDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")
	store := config.NewStore(gateway.NewRegistry())

	version, err := config.Seed(store, "")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if version != 1 {
		t.Errorf("expected version 1, got %d", version)
	}

	active := store.Active()
	for name, section := range map[string]config.CapabilityConfig{
		"transcription": active.Transcription,
		"synthesis":     active.Synthesis,
		"generation":    active.Generation,
	} {
		if section.Provider != "openai" {
			t.Errorf("%s provider = %q, want the openai default", name, section.Provider)
		}
		if section.Credentials["api_key"] != "sk-env" {
			t.Errorf("%s: expected the environment credential", name)
		}
	}
}

func TestSeedFileOverridesDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")
	path := writeFile(t, `
generation:
  provider: ollama
  params:
    model: llama3
`)
	store := config.NewStore(gateway.NewRegistry())

	if _, err := config.Seed(store, path); err != nil {
		t.Fatalf("seed: %v", err)
	}

	active := store.Active()
	if active.Generation.Provider != "ollama" {
		t.Errorf("generation provider = %q, want the file's ollama", active.Generation.Provider)
	}
	if active.Generation.Params["model"] != "llama3" {
		t.Error("expected the file's params")
	}
	if active.Transcription.Provider != "openai" {
		t.Error("capabilities absent from the file must keep the defaults")
	}
	if active.Transcription.Credentials["api_key"] != "sk-env" {
		t.Error("expected the environment credential for the default provider")
	}
}

func TestSeedEnvOverridesFile(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "env-key")
	path := writeFile(t, `
transcription:
  provider: openai
  credentials:
    api_key: file-key
`)
	store := config.NewStore(gateway.NewRegistry())

	if _, err := config.Seed(store, path); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if got := store.Active().Transcription.Credentials["api_key"]; got != "env-key" {
		t.Errorf("api_key = %q, the environment layer must win over the file", got)
	}
}

func TestSeedMissingCredential(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	store := config.NewStore(gateway.NewRegistry())

	if _, err := config.Seed(store, ""); err == nil {
		t.Fatal("expected the seed to fail without credentials")
	}
	if store.Version() != 0 {
		t.Errorf("a failed seed must leave the version at 0, got %d", store.Version())
	}
}

func TestSeedMissingFile(t *testing.T) {
	store := config.NewStore(gateway.NewRegistry())
	if _, err := config.Seed(store, filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected an error for a missing seed file")
	}
}

func TestEnvCredentials(t *testing.T) {
	t.Setenv("AZURE_SPEECH_KEY", "az-key")
	t.Setenv("AZURE_SPEECH_REGION", "westeurope")

	creds := config.EnvCredentials("azure")
	if creds["api_key"] != "az-key" || creds["region"] != "westeurope" {
		t.Errorf("unexpected azure credentials %v", creds)
	}
	if config.EnvCredentials("unknown-vendor") != nil {
		t.Error("expected nil for a provider with no conventional variables")
	}
}
