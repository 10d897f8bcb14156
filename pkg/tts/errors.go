package tts

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
	ErrNoAPIKey = errors.New("tts: API key required")

	// ErrNoRegion is returned when a region-scoped provider has no region.
	ErrNoRegion = errors.New("tts: region required")

	// ErrNoVoiceID is returned when a required voice ID is missing.
	ErrNoVoiceID = errors.New("tts: voice ID required")

	// ErrEmptyText is returned when the request carries no text.
	ErrEmptyText = errors.New("tts: empty text")

	// ErrStreamClosed is returned when reading from a closed stream.
	ErrStreamClosed = errors.New("tts: stream closed")

	// ErrNotConnected is returned when a streaming connection is used
	// before Connect.
	ErrNotConnected = errors.New("tts: stream not connected")

	// ErrProviderUnavailable is returned when no providers are available.
	ErrProviderUnavailable = errors.New("tts: no providers available")
)

// vendorError converts a non-2xx vendor response into a typed error.
// The vendor's own message rides along as an opaque diagnostic only.
func vendorError(name string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	detail := string(body)
	var openaiShape struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	var elevenShape struct {
		Detail struct {
			Message string `json:"message"`
		} `json:"detail"`
	}
	if json.Unmarshal(body, &openaiShape) == nil && openaiShape.Error.Message != "" {
		detail = openaiShape.Error.Message
	} else if json.Unmarshal(body, &elevenShape) == nil && elevenShape.Detail.Message != "" {
		detail = elevenShape.Detail.Message
	}

	return provider.NewError(provider.Synthesis, name, provider.Classify(resp.StatusCode), detail)
}

// oversizeError rejects text that exceeds the provider's documented limit,
// before any vendor call is made.
func oversizeError(name string, chars, limit int) error {
	return provider.Errorf(provider.Synthesis, name, provider.KindUpstreamRejected,
		"text length %d chars exceeds provider limit of %d chars", chars, limit)
}

// requestError converts a transport-level failure into a typed error.
func requestError(name string, err error) error {
	return provider.FromRequest(provider.Synthesis, name, err)
}

// malformedError reports an undecodable vendor response.
func malformedError(name string, err error) error {
	return provider.Errorf(provider.Synthesis, name, provider.KindMalformedResponse,
		"decode response: %v", err)
}
