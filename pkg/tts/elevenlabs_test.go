package tts_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lumenlabs/go-wren/pkg/provider"
	"github.com/lumenlabs/go-wren/pkg/tts"
)

func TestElevenLabsSynthesize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Default voice preset "adam" resolves to its voice ID.
		if r.URL.Path != "/text-to-speech/pNInz6obpgDQGcFmaJgB" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("output_format"); got != "mp3_44100_128" {
			t.Errorf("expected mp3_44100_128, got %s", got)
		}
		if key := r.Header.Get("xi-api-key"); key != "test-key" {
			t.Errorf("expected xi-api-key test-key, got %s", key)
		}

		var payload struct {
			Text          string `json:"text"`
			ModelID       string `json:"model_id"`
			VoiceSettings struct {
				Stability       float64 `json:"stability"`
				SimilarityBoost float64 `json:"similarity_boost"`
			} `json:"voice_settings"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if payload.Text != "Hello world" {
			t.Errorf("expected text, got %q", payload.Text)
		}
		if payload.ModelID != "eleven_monolingual_v1" {
			t.Errorf("expected default model, got %s", payload.ModelID)
		}
		if payload.VoiceSettings.Stability != 0.5 {
			t.Errorf("expected stability 0.5, got %f", payload.VoiceSettings.Stability)
		}

		w.Write([]byte("mp3-bytes"))
	}))
	defer server.Close()

	p, err := tts.NewElevenLabs(
		tts.WithAPIKey("test-key"),
		tts.WithBaseURL(server.URL),
	)
	if err != nil {
		t.Fatalf("create provider: %v", err)
	}
	defer p.Close()

	result, err := p.Synthesize(context.Background(), &tts.Request{Text: "Hello world"})
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if string(result.Audio) != "mp3-bytes" {
		t.Error("expected audio bytes passed through")
	}
	if result.MIME != "audio/mpeg" {
		t.Errorf("expected audio/mpeg, got %s", result.MIME)
	}
	if result.Format.SampleRate != 44100 {
		t.Errorf("expected 44100 sample rate, got %d", result.Format.SampleRate)
	}
}

func TestElevenLabsVoicePreset(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "21m00Tcm4TlvDq8ikWAM") {
			t.Errorf("expected rachel voice ID in path, got %s", r.URL.Path)
		}
		w.Write([]byte("audio"))
	}))
	defer server.Close()

	p, _ := tts.NewElevenLabs(tts.WithAPIKey("k"), tts.WithBaseURL(server.URL))
	_, err := p.Synthesize(context.Background(), &tts.Request{Text: "Hi", Voice: "rachel"})
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
}

func TestElevenLabsErrors(t *testing.T) {
	t.Run("requires api key", func(t *testing.T) {
		_, err := tts.NewElevenLabs()
		if err != tts.ErrNoAPIKey {
			t.Errorf("expected ErrNoAPIKey, got %v", err)
		}
	})

	t.Run("empty text", func(t *testing.T) {
		p, _ := tts.NewElevenLabs(tts.WithAPIKey("k"))
		_, err := p.Synthesize(context.Background(), &tts.Request{})
		if err != tts.ErrEmptyText {
			t.Errorf("expected ErrEmptyText, got %v", err)
		}
	})

	t.Run("detail shape becomes opaque diagnostic", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]any{
				"detail": map[string]any{"message": "Invalid API key", "status": "invalid_api_key"},
			})
		}))
		defer server.Close()

		p, _ := tts.NewElevenLabs(tts.WithAPIKey("bad"), tts.WithBaseURL(server.URL))
		_, err := p.Synthesize(context.Background(), &tts.Request{Text: "Hi"})

		var perr *provider.Error
		if !errors.As(err, &perr) {
			t.Fatalf("expected *provider.Error, got %T", err)
		}
		if perr.Kind != provider.KindInvalidCredentials {
			t.Errorf("expected invalid_credentials, got %s", perr.Kind)
		}
		if perr.Detail != "Invalid API key" {
			t.Errorf("expected vendor message as detail, got %q", perr.Detail)
		}
		if perr.Provider != "elevenlabs" {
			t.Errorf("expected elevenlabs, got %s", perr.Provider)
		}
	})

	t.Run("oversized text rejected locally", func(t *testing.T) {
		called := false
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))
		defer server.Close()

		p, _ := tts.NewElevenLabs(
			tts.WithAPIKey("k"),
			tts.WithBaseURL(server.URL),
			tts.WithMaxTextChars(8),
		)
		_, err := p.Synthesize(context.Background(), &tts.Request{Text: "123456789"})

		kind, _ := provider.KindOf(err)
		if kind != provider.KindUpstreamRejected {
			t.Errorf("expected upstream_rejected, got %v", err)
		}
		if called {
			t.Error("oversized text must not reach the vendor")
		}
	})
}

func TestElevenLabsStreamHTTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/stream") {
			t.Errorf("expected stream path, got %s", r.URL.Path)
		}
		w.Write([]byte("chunk-one-chunk-two"))
	}))
	defer server.Close()

	p, _ := tts.NewElevenLabs(
		tts.WithAPIKey("k"),
		tts.WithBaseURL(server.URL),
		tts.WithOutputFormat(tts.EncodingPCM16),
	)
	stream, err := p.Stream(context.Background(), &tts.Request{Text: "Hi"})
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	defer stream.Close()

	if stream.Format().Encoding != tts.EncodingPCM16 {
		t.Errorf("expected pcm_16000, got %s", stream.Format().Encoding)
	}

	var total []byte
	for {
		chunk, err := stream.Read()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if chunk == nil {
			break
		}
		total = append(total, chunk...)
	}
	if string(total) != "chunk-one-chunk-two" {
		t.Errorf("expected streamed bytes, got %q", total)
	}
}

func TestElevenLabsHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/user" {
			t.Errorf("expected /user, got %s", r.URL.Path)
		}
		if key := r.Header.Get("xi-api-key"); key != "k" {
			t.Errorf("expected xi-api-key, got %s", key)
		}
		json.NewEncoder(w).Encode(map[string]any{"subscription": map[string]any{}})
	}))
	defer server.Close()

	p, _ := tts.NewElevenLabs(tts.WithAPIKey("k"), tts.WithBaseURL(server.URL))
	if err := p.Health(context.Background()); err != nil {
		t.Errorf("health: %v", err)
	}
}
