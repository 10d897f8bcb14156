package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lumenlabs/go-wren/pkg/client"
	"github.com/lumenlabs/go-wren/pkg/config"
)

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("path = %q, want /health", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"status":"healthy","timestamp":"2026-01-02T15:04:05Z"}`)
	}))
	defer srv.Close()

	c := client.New(srv.URL)
	info, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if info.Status != "healthy" {
		t.Errorf("status = %q, want healthy", info.Status)
	}
}

func TestStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/status" {
			t.Errorf("path = %q, want /api/status", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"capabilities": {
				"transcription": {"provider": "openai", "state": "ok", "last_success": "2026-01-02T15:04:05Z"},
				"synthesis": {"provider": "elevenlabs", "state": "failed", "last_error_kind": "quota_exceeded"},
				"generation": {"provider": "openai", "state": "unused"}
			},
			"config_version": 7,
			"uptime_seconds": 120,
			"sessions": {"active_sessions": 2, "total_sessions": 9, "messages_received": 40, "messages_sent": 38}
		}`)
	}))
	defer srv.Close()

	c := client.New(srv.URL)
	status, err := c.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.ConfigVersion != 7 {
		t.Errorf("config version = %d, want 7", status.ConfigVersion)
	}
	synth := status.Capabilities["synthesis"]
	if synth.State != "failed" || synth.LastErrorKind != "quota_exceeded" {
		t.Errorf("synthesis status = %+v", synth)
	}
	if status.Sessions.ActiveSessions != 2 {
		t.Errorf("active sessions = %d, want 2", status.Sessions.ActiveSessions)
	}
}

func TestGetConfig(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"version": 3,
			"transcription": {"provider": "openai", "credentials": {"api_key": "***"}},
			"synthesis": {"provider": "elevenlabs", "credentials": {"api_key": "***"}},
			"generation": {"provider": "openai", "params": {"model": "gpt-4o-mini"}}
		}`)
	}))
	defer srv.Close()

	c := client.New(srv.URL)
	active, err := c.GetConfig(context.Background())
	if err != nil {
		t.Fatalf("GetConfig: %v", err)
	}
	if active.Version != 3 {
		t.Errorf("version = %d, want 3", active.Version)
	}
	if got := active.Transcription.Credentials["api_key"]; got != "***" {
		t.Errorf("api_key = %q, want masked", got)
	}
	if got := active.Generation.Params["model"]; got != "gpt-4o-mini" {
		t.Errorf("model = %q", got)
	}
}

func TestSetConfig(t *testing.T) {
	var received config.Update
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/config" {
			t.Errorf("got %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode update: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"version": 4}`)
	}))
	defer srv.Close()

	c := client.New(srv.URL)
	version, err := c.SetConfig(context.Background(), config.Update{
		BaseVersion: 3,
		Generation: &config.CapabilityUpdate{
			Provider: "azure",
			Params:   map[string]string{"model": "gpt-4o"},
		},
	})
	if err != nil {
		t.Fatalf("SetConfig: %v", err)
	}
	if version != 4 {
		t.Errorf("version = %d, want 4", version)
	}
	if received.BaseVersion != 3 {
		t.Errorf("sent base_version = %d, want 3", received.BaseVersion)
	}
	if received.Generation == nil || received.Generation.Provider != "azure" {
		t.Errorf("sent generation = %+v", received.Generation)
	}
	if received.Transcription != nil {
		t.Error("untouched capability should be omitted from the update")
	}
}

func TestSetConfigConflict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		io.WriteString(w, `{"error":{"kind":"config_conflict","message":"configuration version changed: have 5, update based on 3"}}`)
	}))
	defer srv.Close()

	c := client.New(srv.URL)
	_, err := c.SetConfig(context.Background(), config.Update{BaseVersion: 3})
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T, want *client.APIError", err)
	}
	if apiErr.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409", apiErr.StatusCode)
	}
	if apiErr.Kind != "config_conflict" {
		t.Errorf("kind = %q, want config_conflict", apiErr.Kind)
	}
}

func TestTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		file, header, err := r.FormFile("audio")
		if err != nil {
			t.Fatalf("audio field: %v", err)
		}
		defer file.Close()
		if header.Filename != "clip.wav" {
			t.Errorf("filename = %q, want clip.wav", header.Filename)
		}
		body, _ := io.ReadAll(file)
		if string(body) != "wav-bytes" {
			t.Errorf("audio body = %q", body)
		}
		if lang := r.FormValue("language"); lang != "en-US" {
			t.Errorf("language = %q, want en-US", lang)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"text":"turn on the lights","language":"en-US"}`)
	}))
	defer srv.Close()

	c := client.New(srv.URL)
	tr, err := c.Transcribe(context.Background(), []byte("wav-bytes"), "clip.wav", "en-US")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if tr.Text != "turn on the lights" || tr.Language != "en-US" {
		t.Errorf("transcript = %+v", tr)
	}
}

func TestSynthesize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Text  string `json:"text"`
			Voice string `json:"voice"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Text != "hello" || req.Voice != "alloy" {
			t.Errorf("request = %+v", req)
		}
		w.Header().Set("Content-Type", "audio/wav")
		w.Header().Set("Content-Disposition", `attachment; filename=speech.wav`)
		w.Write([]byte("riff-data"))
	}))
	defer srv.Close()

	c := client.New(srv.URL)
	speech, err := c.Synthesize(context.Background(), "hello", "alloy")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(speech.Audio) != "riff-data" {
		t.Errorf("audio = %q", speech.Audio)
	}
	if speech.MIME != "audio/wav" {
		t.Errorf("mime = %q", speech.MIME)
	}
	if speech.Filename != "speech.wav" {
		t.Errorf("filename = %q, want speech.wav", speech.Filename)
	}
}

func TestSynthesizeUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		io.WriteString(w, `{"error":{"kind":"invalid_credentials","message":"synthesis/elevenlabs: invalid_credentials: api key rejected"}}`)
	}))
	defer srv.Close()

	c := client.New(srv.URL)
	_, err := c.Synthesize(context.Background(), "hello", "")
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T, want *client.APIError", err)
	}
	if apiErr.Kind != "invalid_credentials" || apiErr.StatusCode != http.StatusBadGateway {
		t.Errorf("error = %+v", apiErr)
	}
}

func TestGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			UserInput string `json:"user_input"`
			History   []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"history"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.UserInput != "and in french?" {
			t.Errorf("user_input = %q", req.UserInput)
		}
		if len(req.History) != 2 || req.History[0].Role != "user" || req.History[1].Role != "assistant" {
			t.Errorf("history = %+v", req.History)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"response":"bonjour"}`)
	}))
	defer srv.Close()

	c := client.New(srv.URL)
	reply, err := c.Generate(context.Background(), "and in french?", []client.HistoryMessage{
		{Role: "user", Content: "say hello"},
		{Role: "assistant", Content: "hello"},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if reply != "bonjour" {
		t.Errorf("reply = %q, want bonjour", reply)
	}
}

func TestErrorBodyFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, "upstream proxy exploded")
	}))
	defer srv.Close()

	c := client.New(srv.URL)
	_, err := c.Status(context.Background())
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T, want *client.APIError", err)
	}
	if apiErr.Kind != "" {
		t.Errorf("kind = %q, want empty for untyped body", apiErr.Kind)
	}
	if apiErr.Message != "upstream proxy exploded" {
		t.Errorf("message = %q", apiErr.Message)
	}
}
