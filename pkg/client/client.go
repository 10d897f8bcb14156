// Package client is a typed HTTP client for the backend API. It mirrors
// the server's endpoints one method per operation and surfaces the
// server's typed error kinds as APIError values.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/lumenlabs/go-wren/internal/httpc"
	"github.com/lumenlabs/go-wren/pkg/config"
)

// DefaultTimeout bounds one API call end to end. Synthesis of long
// text is the slowest operation this client performs.
const DefaultTimeout = 60 * time.Second

// Client talks to one backend instance.
type Client struct {
	base string
	http *http.Client
}

// Option configures the client.
type Option func(*Client)

// WithTimeout sets the hard per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http = httpc.NewClient(d) }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New creates a client for the API at base, e.g. "http://localhost:8080".
func New(base string, opts ...Option) *Client {
	c := &Client{
		base: strings.TrimRight(base, "/"),
		http: httpc.NewClient(DefaultTimeout),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is a failure reported by the server, carrying the typed
// error kind from the response body.
type APIError struct {
	StatusCode int
	Kind       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("%s: %s (http %d)", e.Kind, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
}

// HealthInfo is the liveness probe response.
type HealthInfo struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// Health checks server liveness.
func (c *Client) Health(ctx context.Context) (*HealthInfo, error) {
	var out HealthInfo
	if err := c.getJSON(ctx, "/health", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CapabilityStatus is one capability's slice of the status report.
type CapabilityStatus struct {
	Provider      string `json:"provider"`
	State         string `json:"state"`
	LastSuccess   string `json:"last_success,omitempty"`
	LastFailure   string `json:"last_failure,omitempty"`
	LastErrorKind string `json:"last_error_kind,omitempty"`
}

// SessionStats mirrors the voice hub counters.
type SessionStats struct {
	ActiveSessions   int    `json:"active_sessions"`
	TotalSessions    uint64 `json:"total_sessions"`
	MessagesReceived uint64 `json:"messages_received"`
	MessagesSent     uint64 `json:"messages_sent"`
}

// Status is the full status report.
type Status struct {
	Capabilities  map[string]CapabilityStatus `json:"capabilities"`
	ConfigVersion uint64                      `json:"config_version"`
	UptimeSeconds int64                       `json:"uptime_seconds"`
	Sessions      SessionStats                `json:"sessions"`
}

// Status fetches the per-capability health report.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	var out Status
	if err := c.getJSON(ctx, "/api/status", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetConfig fetches the active configuration with credentials masked.
func (c *Client) GetConfig(ctx context.Context) (*config.ActiveConfiguration, error) {
	var out config.ActiveConfiguration
	if err := c.getJSON(ctx, "/api/config", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetConfig applies a partial configuration update and returns the new
// version.
func (c *Client) SetConfig(ctx context.Context, update config.Update) (uint64, error) {
	var out struct {
		Version uint64 `json:"version"`
	}
	if err := c.postJSON(ctx, "/api/config", update, &out); err != nil {
		return 0, err
	}
	return out.Version, nil
}

// Transcript is the transcription response.
type Transcript struct {
	Text     string `json:"text"`
	Language string `json:"language,omitempty"`
}

// Transcribe uploads audio for transcription. The filename's extension
// hints the container format; language may be empty.
func (c *Client) Transcribe(ctx context.Context, audio []byte, filename, language string) (*Transcript, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("audio", filename)
	if err != nil {
		return nil, fmt.Errorf("client: build upload: %w", err)
	}
	if _, err := fw.Write(audio); err != nil {
		return nil, fmt.Errorf("client: build upload: %w", err)
	}
	if language != "" {
		if err := w.WriteField("language", language); err != nil {
			return nil, fmt.Errorf("client: build upload: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("client: build upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/stt", &buf)
	if err != nil {
		return nil, fmt.Errorf("client: build request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var out Transcript
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Speech is synthesized audio with its format metadata.
type Speech struct {
	Audio    []byte
	MIME     string
	Filename string
}

// Synthesize converts text to speech; voice may be empty for the
// provider default.
func (c *Client) Synthesize(ctx context.Context, text, voice string) (*Speech, error) {
	payload, err := json.Marshal(map[string]string{"text": text, "voice": voice})
	if err != nil {
		return nil, fmt.Errorf("client: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/tts", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("client: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("client: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, readAPIError(resp)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("client: read audio: %w", err)
	}

	speech := &Speech{
		Audio: audio,
		MIME:  resp.Header.Get("Content-Type"),
	}
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		speech.Filename = params["filename"]
	}
	return speech, nil
}

// HistoryMessage is one prior conversation turn sent with a generation
// request.
type HistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Generate produces one assistant reply.
func (c *Client) Generate(ctx context.Context, userInput string, history []HistoryMessage) (string, error) {
	payload := struct {
		UserInput string           `json:"user_input"`
		History   []HistoryMessage `json:"history,omitempty"`
	}{UserInput: userInput, History: history}

	var out struct {
		Response string `json:"response"`
	}
	if err := c.postJSON(ctx, "/api/generate", payload, &out); err != nil {
		return "", err
	}
	return out.Response, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return fmt.Errorf("client: build request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, path string, in, out interface{}) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("client: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("client: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("client: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return readAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decode response: %w", err)
	}
	return nil
}

// readAPIError extracts the typed error body, falling back to the raw
// payload when the body is not the expected shape.
func readAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var parsed struct {
		Error struct {
			Kind    string `json:"kind"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Kind != "" {
		return &APIError{
			StatusCode: resp.StatusCode,
			Kind:       parsed.Error.Kind,
			Message:    parsed.Error.Message,
		}
	}
	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    strings.TrimSpace(string(body)),
	}
}
