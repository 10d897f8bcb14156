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
	openAIBaseURL = "https://api.openai.com/v1"
	ollamaBaseURL = "http://localhost:11434/v1"

	// ProviderOpenAI is the registry name for the hosted OpenAI API.
	ProviderOpenAI = "openai"

	// ProviderOllama is the registry name for a local Ollama daemon, which
	// serves the same OpenAI-compatible API without credentials.
	ProviderOllama = "ollama"

	// ModelGPT4oMini is the default hosted chat model.
	ModelGPT4oMini = "gpt-4o-mini"

	// ModelLlama3 is the default local model.
	ModelLlama3 = "llama3"
)

// Client implements Provider against any OpenAI-compatible chat API
// (OpenAI, Ollama, vLLM, Together, Groq). User input above the configured
// character limit is rejected before the request.
type Client struct {
	name    string
	baseURL string
	config  *Config
	client  *http.Client
	logger  *slog.Logger
}

// NewOpenAI creates a hosted OpenAI generation provider.
func NewOpenAI(opts ...Option) (*Client, error) {
	cfg := DefaultConfig()
	cfg.BaseURL = openAIBaseURL
	cfg.Model = ModelGPT4oMini
	cfg.Apply(opts...)

	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	return newClient(ProviderOpenAI, cfg), nil
}

// NewOllama creates a generation provider for a local Ollama daemon.
// No API key is required.
func NewOllama(opts ...Option) (*Client, error) {
	cfg := DefaultConfig()
	cfg.BaseURL = ollamaBaseURL
	cfg.Model = ModelLlama3
	cfg.Apply(opts...)

	return newClient(ProviderOllama, cfg), nil
}

func newClient(name string, cfg *Config) *Client {
	return &Client{
		name:    name,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		config:  cfg,
		client:  httpc.Client,
		logger:  cfg.Logger.With("component", "llm."+name),
	}
}

func newOpenAIAdapter(d provider.Descriptor) (Provider, error) {
	opts := append([]Option{WithAPIKey(d.Credential("api_key"))}, descriptorOptions(d)...)
	return NewOpenAI(opts...)
}

func newOllamaAdapter(d provider.Descriptor) (Provider, error) {
	return NewOllama(descriptorOptions(d)...)
}

// Generate produces an assistant reply via the chat completions endpoint.
func (c *Client) Generate(ctx context.Context, req *Request) (*Result, error) {
	if req.UserInput == "" {
		return nil, ErrEmptyInput
	}
	if len(req.UserInput) > c.config.MaxInputChars {
		return nil, oversizeError(c.name, len(req.UserInput), c.config.MaxInputChars)
	}

	start := time.Now()

	resp, err := c.post(ctx, "/chat/completions", c.buildPayload(req, false))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, vendorError(c.name, resp)
	}

	var result chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, malformedError(c.name, err)
	}
	if len(result.Choices) == 0 {
		return nil, provider.Errorf(provider.Generation, c.name,
			provider.KindMalformedResponse, "no choices returned")
	}

	choice := result.Choices[0]
	latency := time.Since(start).Milliseconds()
	c.logger.Debug("generated reply",
		"model", result.Model,
		"tokens", result.Usage.TotalTokens,
		"finish", choice.FinishReason,
		"latency_ms", latency,
	)

	return &Result{
		Text:         strings.TrimSpace(choice.Message.Content),
		Model:        result.Model,
		FinishReason: choice.FinishReason,
		Usage: Usage{
			PromptTokens:     result.Usage.PromptTokens,
			CompletionTokens: result.Usage.CompletionTokens,
			TotalTokens:      result.Usage.TotalTokens,
		},
		LatencyMs: latency,
	}, nil
}

// Health checks API connectivity and key validity.
func (c *Client) Health(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/models", nil)
	if err != nil {
		return fmt.Errorf("llm: create request: %w", err)
	}
	if c.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return requestError(c.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return vendorError(c.name, resp)
	}
	return nil
}

// Close releases resources. The HTTP client is shared, so this is a no-op.
func (c *Client) Close() error {
	return nil
}

// buildPayload constructs the chat completions request body.
func (c *Client) buildPayload(req *Request, stream bool) map[string]interface{} {
	msgs := buildMessages(c.config.SystemPrompt, req)
	messages := make([]map[string]string, len(msgs))
	for i, m := range msgs {
		messages[i] = map[string]string{
			"role":    string(m.Role),
			"content": m.Content,
		}
	}

	payload := map[string]interface{}{
		"model":    c.config.Model,
		"messages": messages,
	}
	if stream {
		payload["stream"] = true
	}
	if c.config.MaxTokens > 0 {
		payload["max_tokens"] = c.config.MaxTokens
	}
	if c.config.Temperature > 0 {
		payload["temperature"] = c.config.Temperature
	}
	return payload
}

// post issues one JSON POST; no retries.
func (c *Client) post(ctx context.Context, path string, payload interface{}) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("llm: marshal payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("llm: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, requestError(c.name, err)
	}
	return resp, nil
}

// chatCompletionResponse is the chat completions wire format.
type chatCompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Verify Client implements Provider at compile time.
var _ Provider = (*Client)(nil)
