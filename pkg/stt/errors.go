package stt

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
	ErrNoAPIKey = errors.New("stt: API key required")

	// ErrNoRegion is returned when a region-scoped provider has no region.
	ErrNoRegion = errors.New("stt: region required")

	// ErrEmptyAudio is returned when the request carries no audio.
	ErrEmptyAudio = errors.New("stt: empty audio payload")
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
	if json.Unmarshal(body, &openaiShape) == nil && openaiShape.Error.Message != "" {
		detail = openaiShape.Error.Message
	}

	return provider.NewError(provider.Transcription, name, provider.Classify(resp.StatusCode), detail)
}

// oversizeError rejects a payload that exceeds the provider's documented
// limit, before any vendor call is made.
func oversizeError(name string, size, limit int) error {
	return provider.Errorf(provider.Transcription, name, provider.KindUpstreamRejected,
		"audio payload %d bytes exceeds provider limit of %d bytes", size, limit)
}

// requestError converts a transport-level failure into a typed error.
func requestError(name string, err error) error {
	return provider.FromRequest(provider.Transcription, name, err)
}

// malformedError reports an undecodable vendor response.
func malformedError(name string, err error) error {
	return provider.Errorf(provider.Transcription, name, provider.KindMalformedResponse,
		"decode response: %v", err)
}
