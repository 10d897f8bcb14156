package llm

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/lumenlabs/go-wren/pkg/provider"
)

// Sentinel errors for common conditions.
var (
	// ErrNoAPIKey is returned when the API key is missing.
	ErrNoAPIKey = errors.New("llm: API key required")

	// ErrEmptyInput is returned when the request carries no user input.
	ErrEmptyInput = errors.New("llm: empty user input")

	// ErrProviderUnavailable is returned when no provider can serve a call.
	ErrProviderUnavailable = errors.New("llm: no provider available")

	// ErrStreamClosed is returned when reading from a closed stream.
	ErrStreamClosed = errors.New("llm: stream closed")
)

// vendorError converts a non-2xx vendor response into a typed error.
// OpenAI-compatible and Anthropic error bodies both nest the message under
// "error"; the message rides along as an opaque diagnostic only.
func vendorError(name string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	detail := string(body)
	var errShape struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &errShape) == nil && errShape.Error.Message != "" {
		detail = errShape.Error.Message
	}

	return provider.NewError(provider.Generation, name, provider.Classify(resp.StatusCode), detail)
}

// oversizeError rejects input that exceeds the provider's documented limit,
// before any vendor call is made.
func oversizeError(name string, chars, limit int) error {
	return provider.Errorf(provider.Generation, name, provider.KindUpstreamRejected,
		"input length %d chars exceeds provider limit of %d chars", chars, limit)
}

// requestError converts a transport-level failure into a typed error.
func requestError(name string, err error) error {
	return provider.FromRequest(provider.Generation, name, err)
}

// malformedError reports an undecodable vendor response.
func malformedError(name string, err error) error {
	return provider.Errorf(provider.Generation, name, provider.KindMalformedResponse,
		"decode response: %v", err)
}
