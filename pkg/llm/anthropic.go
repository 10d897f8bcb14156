package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/lumenlabs/go-wren/internal/httpc"
	"github.com/lumenlabs/go-wren/pkg/provider"
)

const (
	anthropicBaseURL = "https://api.anthropic.com/v1"

	// anthropicVersion pins the messages API revision.
	anthropicVersion = "2023-06-01"

	// ProviderAnthropic is the registry name for the Anthropic API.
	ProviderAnthropic = "anthropic"

	// ModelClaude35Sonnet is the default Anthropic chat model.
	ModelClaude35Sonnet = "claude-3-5-sonnet-latest"
)

// Anthropic implements Provider for the Anthropic messages API. The API is
// not OpenAI-compatible, so it is implemented directly: the system prompt
// is a top-level field and history carries only user/assistant turns.
type Anthropic struct {
	config  *Config
	client  *http.Client
	logger  *slog.Logger
	baseURL string
}

// NewAnthropic creates an Anthropic generation provider.
func NewAnthropic(opts ...Option) (*Anthropic, error) {
	cfg := DefaultConfig()
	cfg.BaseURL = anthropicBaseURL
	cfg.Model = ModelClaude35Sonnet
	cfg.Apply(opts...)

	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}

	return &Anthropic{
		config:  cfg,
		client:  httpc.Client,
		logger:  cfg.Logger.With("component", "llm.anthropic"),
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
	}, nil
}

func newAnthropicAdapter(d provider.Descriptor) (Provider, error) {
	opts := append([]Option{WithAPIKey(d.Credential("api_key"))}, descriptorOptions(d)...)
	return NewAnthropic(opts...)
}

// Generate produces an assistant reply via the messages endpoint.
func (a *Anthropic) Generate(ctx context.Context, req *Request) (*Result, error) {
	if req.UserInput == "" {
		return nil, ErrEmptyInput
	}
	if len(req.UserInput) > a.config.MaxInputChars {
		return nil, oversizeError(ProviderAnthropic, len(req.UserInput), a.config.MaxInputChars)
	}

	start := time.Now()

	body, err := json.Marshal(a.buildPayload(req))
	if err != nil {
		return nil, fmt.Errorf("llm: marshal payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", a.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("llm: create request: %w", err)
	}
	a.setHeaders(httpReq)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, requestError(ProviderAnthropic, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, vendorError(ProviderAnthropic, resp)
	}

	var result anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, malformedError(ProviderAnthropic, err)
	}
	if len(result.Content) == 0 {
		return nil, provider.Errorf(provider.Generation, ProviderAnthropic,
			provider.KindMalformedResponse, "no content blocks returned")
	}

	var text strings.Builder
	for _, block := range result.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	latency := time.Since(start).Milliseconds()
	a.logger.Debug("generated reply",
		"model", result.Model,
		"tokens", result.Usage.InputTokens+result.Usage.OutputTokens,
		"finish", result.StopReason,
		"latency_ms", latency,
	)

	return &Result{
		Text:         strings.TrimSpace(text.String()),
		Model:        result.Model,
		FinishReason: result.StopReason,
		Usage: Usage{
			PromptTokens:     result.Usage.InputTokens,
			CompletionTokens: result.Usage.OutputTokens,
			TotalTokens:      result.Usage.InputTokens + result.Usage.OutputTokens,
		},
		LatencyMs: latency,
	}, nil
}

// Stream generates the full reply, then yields it as a single chunk.
func (a *Anthropic) Stream(ctx context.Context, req *Request) (Stream, error) {
	result, err := a.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	return &bufferedStream{text: result.Text, finish: result.FinishReason}, nil
}

// Health checks API connectivity and key validity via the models listing.
func (a *Anthropic) Health(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, "GET", a.baseURL+"/models", nil)
	if err != nil {
		return fmt.Errorf("llm: create request: %w", err)
	}
	a.setHeaders(httpReq)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return requestError(ProviderAnthropic, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return vendorError(ProviderAnthropic, resp)
	}
	return nil
}

// Close releases resources. The HTTP client is shared, so this is a no-op.
func (a *Anthropic) Close() error {
	return nil
}

// buildPayload constructs the messages API request body. The system prompt
// and any context block ride in the top-level system field; history keeps
// only user and assistant turns.
func (a *Anthropic) buildPayload(req *Request) map[string]interface{} {
	system := a.config.SystemPrompt
	if len(req.Context) > 0 {
		system += "\n\n" + FormatContext(req.Context)
	}

	messages := make([]map[string]string, 0, len(req.History)+1)
	for _, m := range req.History {
		if m.Role != RoleUser && m.Role != RoleAssistant {
			continue
		}
		messages = append(messages, map[string]string{
			"role":    string(m.Role),
			"content": m.Content,
		})
	}
	messages = append(messages, map[string]string{
		"role":    "user",
		"content": req.UserInput,
	})

	// max_tokens is mandatory on this API.
	payload := map[string]interface{}{
		"model":      a.config.Model,
		"max_tokens": a.config.MaxTokens,
		"messages":   messages,
	}
	if system != "" {
		payload["system"] = system
	}
	if a.config.Temperature > 0 {
		payload["temperature"] = a.config.Temperature
	}
	return payload
}

func (a *Anthropic) setHeaders(req *http.Request) {
	req.Header.Set("x-api-key", a.config.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	req.Header.Set("Content-Type", "application/json")
}

// anthropicResponse is the messages API wire format.
type anthropicResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Verify Anthropic implements Provider at compile time.
var _ Provider = (*Anthropic)(nil)
