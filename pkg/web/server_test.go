package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lumenlabs/go-wren/pkg/config"
	"github.com/lumenlabs/go-wren/pkg/gateway"
	"github.com/lumenlabs/go-wren/pkg/llm"
	"github.com/lumenlabs/go-wren/pkg/provider"
	"github.com/lumenlabs/go-wren/pkg/stt"
	"github.com/lumenlabs/go-wren/pkg/tts"
	"github.com/lumenlabs/go-wren/pkg/web"
)

// backends holds the mock adapters behind a test server.
type backends struct {
	stt *stt.Mock
	tts *tts.Mock
	llm *llm.Mock
}

// setupServer builds a server over a store seeded with mock providers
// registered under the name webmock.
func setupServer(t *testing.T) (*web.Server, *backends) {
	t.Helper()

	b := &backends{stt: stt.NewMock(), tts: tts.NewMock(), llm: llm.NewMock()}
	stt.Register("webmock", func(d provider.Descriptor) (stt.Provider, error) { return b.stt, nil })
	tts.Register("webmock", func(d provider.Descriptor) (tts.Provider, error) { return b.tts, nil })
	llm.Register("webmock", func(d provider.Descriptor) (llm.Provider, error) { return b.llm, nil })

	registry := gateway.NewRegistry()
	store := config.NewStore(registry)
	service := gateway.NewService(registry, gateway.WithRetryBackoff(time.Millisecond))

	_, err := store.Apply(config.Update{
		Transcription: &config.CapabilityUpdate{
			Provider:    "webmock",
			Credentials: map[string]string{"api_key": "stt-secret"},
		},
		Synthesis:  &config.CapabilityUpdate{Provider: "webmock"},
		Generation: &config.CapabilityUpdate{Provider: "webmock"},
	})
	if err != nil {
		t.Fatalf("seed store: %v", err)
	}

	return web.NewServer(service, store), b
}

func doJSON(t *testing.T, srv *web.Server, method, path string, body interface{}) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := srv.App().Test(req, 5000)
	if err != nil {
		t.Fatalf("request %s %s: %v", method, path, err)
	}
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

type errorBody struct {
	Error struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"error"`
}

func TestHealth(t *testing.T) {
	srv, _ := setupServer(t)

	resp := doJSON(t, srv, "GET", "/health", nil)
	if resp.StatusCode != 200 {
		t.Fatalf("Status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		Status    string `json:"status"`
		Timestamp string `json:"timestamp"`
	}
	decodeJSON(t, resp, &body)
	if body.Status != "healthy" {
		t.Errorf("status = %q, want healthy", body.Status)
	}
	if _, err := time.Parse(time.RFC3339, body.Timestamp); err != nil {
		t.Errorf("timestamp %q not RFC3339: %v", body.Timestamp, err)
	}
}

type statusBody struct {
	Capabilities map[string]struct {
		Provider      string `json:"provider"`
		State         string `json:"state"`
		LastSuccess   string `json:"last_success"`
		LastFailure   string `json:"last_failure"`
		LastErrorKind string `json:"last_error_kind"`
	} `json:"capabilities"`
	ConfigVersion uint64 `json:"config_version"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

func TestStatusBeforeAnyCall(t *testing.T) {
	srv, _ := setupServer(t)

	resp := doJSON(t, srv, "GET", "/api/status", nil)
	if resp.StatusCode != 200 {
		t.Fatalf("Status = %d, want 200", resp.StatusCode)
	}

	var body statusBody
	decodeJSON(t, resp, &body)

	if body.ConfigVersion != 1 {
		t.Errorf("config_version = %d, want 1", body.ConfigVersion)
	}
	for _, name := range []string{"transcription", "synthesis", "generation"} {
		entry, ok := body.Capabilities[name]
		if !ok {
			t.Fatalf("capability %s missing from status", name)
		}
		if entry.Provider != "webmock" {
			t.Errorf("%s provider = %q, want webmock", name, entry.Provider)
		}
		if entry.State != "unused" {
			t.Errorf("%s state = %q, want unused", name, entry.State)
		}
		if entry.LastSuccess != "" || entry.LastFailure != "" {
			t.Errorf("%s should have no timestamps before any call", name)
		}
	}
}

func TestStatusAfterCalls(t *testing.T) {
	srv, b := setupServer(t)

	resp := doJSON(t, srv, "POST", "/api/generate", map[string]string{"user_input": "hi"})
	resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("generate status = %d, want 200", resp.StatusCode)
	}

	b.tts.SynthesizeFunc = func(ctx context.Context, req *tts.Request) (*tts.Result, error) {
		return nil, provider.NewError(provider.Synthesis, "webmock", provider.KindInvalidCredentials, "bad key")
	}
	resp = doJSON(t, srv, "POST", "/api/tts", map[string]string{"text": "hello"})
	resp.Body.Close()
	if resp.StatusCode != 502 {
		t.Fatalf("tts status = %d, want 502", resp.StatusCode)
	}

	var body statusBody
	resp = doJSON(t, srv, "GET", "/api/status", nil)
	decodeJSON(t, resp, &body)

	if got := body.Capabilities["generation"].State; got != "ok" {
		t.Errorf("generation state = %q, want ok", got)
	}
	if got := body.Capabilities["synthesis"].State; got != "failed" {
		t.Errorf("synthesis state = %q, want failed", got)
	}
	if got := body.Capabilities["synthesis"].LastErrorKind; got != "invalid_credentials" {
		t.Errorf("synthesis last_error_kind = %q", got)
	}
	if _, err := time.Parse(time.RFC3339, body.Capabilities["generation"].LastSuccess); err != nil {
		t.Errorf("last_success not RFC3339: %v", err)
	}
}

func TestTranscribe(t *testing.T) {
	srv, b := setupServer(t)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("audio", "clip.wav")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	fw.Write([]byte("RIFF-fake-wav-bytes"))
	w.WriteField("language", "en-US")
	w.Close()

	req := httptest.NewRequest("POST", "/api/stt", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := srv.App().Test(req, 5000)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("Status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		Text     string `json:"text"`
		Language string `json:"language"`
	}
	decodeJSON(t, resp, &body)
	if body.Text != "mock transcript" {
		t.Errorf("text = %q", body.Text)
	}
	if body.Language != "en-US" {
		t.Errorf("language = %q, want en-US", body.Language)
	}

	if b.stt.CallCount("Transcribe") != 1 {
		t.Errorf("Transcribe calls = %d, want 1", b.stt.CallCount("Transcribe"))
	}
}

func TestTranscribeMissingFile(t *testing.T) {
	srv, _ := setupServer(t)

	resp := doJSON(t, srv, "POST", "/api/stt", nil)
	if resp.StatusCode != 400 {
		t.Fatalf("Status = %d, want 400", resp.StatusCode)
	}

	var body errorBody
	decodeJSON(t, resp, &body)
	if body.Error.Kind != "request_validation_failed" {
		t.Errorf("kind = %q", body.Error.Kind)
	}
}

func TestSynthesize(t *testing.T) {
	srv, b := setupServer(t)

	b.tts.SynthesizeFunc = func(ctx context.Context, req *tts.Request) (*tts.Result, error) {
		return &tts.Result{
			Audio: []byte("wav-bytes"),
			MIME:  "audio/wav",
			Format: tts.AudioFormat{
				Encoding:   tts.EncodingWAV,
				SampleRate: 16000,
				Channels:   1,
				BitDepth:   16,
			},
			CharCount: len(req.Text),
		}, nil
	}

	resp := doJSON(t, srv, "POST", "/api/tts", map[string]string{"text": "hello", "voice": "alloy"})
	if resp.StatusCode != 200 {
		t.Fatalf("Status = %d, want 200", resp.StatusCode)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("Content-Type"); got != "audio/wav" {
		t.Errorf("Content-Type = %q, want audio/wav", got)
	}
	if got := resp.Header.Get("Content-Disposition"); got != "attachment; filename=speech.wav" {
		t.Errorf("Content-Disposition = %q", got)
	}

	audio, _ := io.ReadAll(resp.Body)
	if string(audio) != "wav-bytes" {
		t.Errorf("body = %q, want raw audio bytes", audio)
	}

	calls := b.tts.Calls()
	if len(calls) != 1 || calls[0].Voice != "alloy" {
		t.Errorf("synthesize calls = %+v, want one with voice alloy", calls)
	}
}

func TestGenerate(t *testing.T) {
	srv, b := setupServer(t)

	payload := map[string]interface{}{
		"user_input": "What time is it?",
		"history": []map[string]string{
			{"role": "user", "content": "hello"},
			{"role": "assistant", "content": "hi"},
		},
	}
	resp := doJSON(t, srv, "POST", "/api/generate", payload)
	if resp.StatusCode != 200 {
		t.Fatalf("Status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		Response string `json:"response"`
	}
	decodeJSON(t, resp, &body)
	if body.Response != "Mock response" {
		t.Errorf("response = %q", body.Response)
	}

	if b.llm.CallCount("Generate") != 1 {
		t.Errorf("Generate calls = %d, want 1", b.llm.CallCount("Generate"))
	}
}

func TestGenerateEmptyInput(t *testing.T) {
	srv, _ := setupServer(t)

	resp := doJSON(t, srv, "POST", "/api/generate", map[string]string{"user_input": ""})
	if resp.StatusCode != 400 {
		t.Fatalf("Status = %d, want 400", resp.StatusCode)
	}

	var body errorBody
	decodeJSON(t, resp, &body)
	if body.Error.Kind != "request_validation_failed" {
		t.Errorf("kind = %q", body.Error.Kind)
	}
}

func TestGetConfigMasksCredentials(t *testing.T) {
	srv, _ := setupServer(t)

	resp := doJSON(t, srv, "GET", "/api/config", nil)
	if resp.StatusCode != 200 {
		t.Fatalf("Status = %d, want 200", resp.StatusCode)
	}

	var body config.ActiveConfiguration
	decodeJSON(t, resp, &body)

	if body.Version != 1 {
		t.Errorf("version = %d, want 1", body.Version)
	}
	if got := body.Transcription.Credentials["api_key"]; got != "***" {
		t.Errorf("api_key = %q, want masked", got)
	}
	if body.Transcription.Provider != "webmock" {
		t.Errorf("provider = %q", body.Transcription.Provider)
	}
}

func TestSetConfig(t *testing.T) {
	srv, _ := setupServer(t)

	update := map[string]interface{}{
		"base_version": 1,
		"generation": map[string]interface{}{
			"params": map[string]string{"temperature": "0.9"},
		},
	}
	resp := doJSON(t, srv, "POST", "/api/config", update)
	if resp.StatusCode != 200 {
		t.Fatalf("Status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		Version uint64 `json:"version"`
	}
	decodeJSON(t, resp, &body)
	if body.Version != 2 {
		t.Errorf("version = %d, want 2", body.Version)
	}

	var active config.ActiveConfiguration
	resp = doJSON(t, srv, "GET", "/api/config", nil)
	decodeJSON(t, resp, &active)
	if got := active.Generation.Params["temperature"]; got != "0.9" {
		t.Errorf("temperature = %q, want 0.9", got)
	}
}

func TestSetConfigConflict(t *testing.T) {
	srv, _ := setupServer(t)

	update := map[string]interface{}{
		"base_version": 99,
		"generation":   map[string]interface{}{"params": map[string]string{"model": "x"}},
	}
	resp := doJSON(t, srv, "POST", "/api/config", update)
	if resp.StatusCode != 409 {
		t.Fatalf("Status = %d, want 409", resp.StatusCode)
	}

	var body errorBody
	decodeJSON(t, resp, &body)
	if body.Error.Kind != "config_conflict" {
		t.Errorf("kind = %q", body.Error.Kind)
	}
}

func TestSetConfigUnknownProvider(t *testing.T) {
	srv, _ := setupServer(t)

	update := map[string]interface{}{
		"base_version": 1,
		"synthesis":    map[string]interface{}{"provider": "nonexistent"},
	}
	resp := doJSON(t, srv, "POST", "/api/config", update)
	if resp.StatusCode != 400 {
		t.Fatalf("Status = %d, want 400", resp.StatusCode)
	}

	var body errorBody
	decodeJSON(t, resp, &body)
	if body.Error.Kind != "config_validation_failed" {
		t.Errorf("kind = %q", body.Error.Kind)
	}
	if !strings.Contains(body.Error.Message, "nonexistent") {
		t.Errorf("message = %q, want provider name", body.Error.Message)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	tests := []struct {
		kind   provider.Kind
		status int
	}{
		{provider.KindQuotaExceeded, 429},
		{provider.KindInvalidCredentials, 502},
		{provider.KindUpstreamRejected, 502},
		{provider.KindMalformedResponse, 502},
		{provider.KindNetworkUnavailable, 503},
		{provider.KindUpstreamTimeout, 504},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			srv, b := setupServer(t)
			b.llm.GenerateFunc = func(ctx context.Context, req *llm.Request) (*llm.Result, error) {
				return nil, provider.NewError(provider.Generation, "webmock", tt.kind, "boom")
			}

			resp := doJSON(t, srv, "POST", "/api/generate", map[string]string{"user_input": "hi"})
			if resp.StatusCode != tt.status {
				t.Errorf("Status = %d, want %d", resp.StatusCode, tt.status)
			}

			var body errorBody
			decodeJSON(t, resp, &body)
			if body.Error.Kind != string(tt.kind) {
				t.Errorf("kind = %q, want %q", body.Error.Kind, tt.kind)
			}
		})
	}
}
