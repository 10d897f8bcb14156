package web

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/lumenlabs/go-wren/pkg/config"
	"github.com/lumenlabs/go-wren/pkg/llm"
	"github.com/lumenlabs/go-wren/pkg/provider"
	"github.com/lumenlabs/go-wren/pkg/stt"
	"github.com/lumenlabs/go-wren/pkg/tts"
)

// handleHealth is the liveness probe.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// capabilityStatus is one capability's slice of the status response.
type capabilityStatus struct {
	Provider      string `json:"provider,omitempty"`
	State         string `json:"state"`
	LastSuccess   string `json:"last_success,omitempty"`
	LastFailure   string `json:"last_failure,omitempty"`
	LastErrorKind string `json:"last_error_kind,omitempty"`
}

// handleStatus reports the active providers, their health records, the
// configuration version, and server uptime.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	active := s.store.Active()
	health := s.service.Status()

	capabilities := make(map[string]capabilityStatus, len(health))
	for _, capability := range provider.Capabilities() {
		record := health[capability]
		entry := capabilityStatus{
			Provider: active.Capability(capability).Provider,
			State:    record.State(),
		}
		if !record.LastSuccess.IsZero() {
			entry.LastSuccess = record.LastSuccess.UTC().Format(time.RFC3339)
		}
		if !record.LastFailure.IsZero() {
			entry.LastFailure = record.LastFailure.UTC().Format(time.RFC3339)
			entry.LastErrorKind = string(record.LastErrorKind)
		}
		capabilities[string(capability)] = entry
	}

	return c.JSON(fiber.Map{
		"capabilities":   capabilities,
		"config_version": s.store.Version(),
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
		"sessions":       s.hub.GetStats(),
	})
}

// handleTranscribe accepts a multipart upload in the audio field and
// returns the transcript.
func (s *Server) handleTranscribe(c *fiber.Ctx) error {
	file, err := c.FormFile("audio")
	if err != nil {
		return s.fail(c, &provider.RequestError{Reason: "missing audio file field"})
	}

	f, err := file.Open()
	if err != nil {
		return s.fail(c, &provider.RequestError{Reason: fmt.Sprintf("open upload: %v", err)})
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return s.fail(c, &provider.RequestError{Reason: fmt.Sprintf("read upload: %v", err)})
	}

	result, err := s.service.Transcribe(c.UserContext(), &stt.Request{
		Audio:    data,
		Encoding: stt.ContainerEncoding(strings.TrimPrefix(filepath.Ext(file.Filename), ".")),
		Language: c.FormValue("language"),
	})
	if err != nil {
		return s.fail(c, err)
	}

	resp := fiber.Map{"text": result.Text}
	if result.Language != "" {
		resp["language"] = result.Language
	}
	return c.JSON(resp)
}

type synthesizeRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice,omitempty"`
}

// handleSynthesize returns synthesized speech as a binary download in
// the vendor's output format.
func (s *Server) handleSynthesize(c *fiber.Ctx) error {
	var req synthesizeRequest
	if err := c.BodyParser(&req); err != nil {
		return s.fail(c, &provider.RequestError{Reason: fmt.Sprintf("invalid request body: %v", err)})
	}

	result, err := s.service.Synthesize(c.UserContext(), &tts.Request{
		Text:  req.Text,
		Voice: req.Voice,
	})
	if err != nil {
		return s.fail(c, err)
	}

	c.Set(fiber.HeaderContentType, result.MIME)
	c.Set(fiber.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=speech.%s", tts.FileExt(result.Format.Encoding)))
	return c.Send(result.Audio)
}

type generateRequest struct {
	UserInput string `json:"user_input"`
	Context   []struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	} `json:"context,omitempty"`
	History []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"history,omitempty"`
}

// handleGenerate produces one assistant reply.
func (s *Server) handleGenerate(c *fiber.Ctx) error {
	var req generateRequest
	if err := c.BodyParser(&req); err != nil {
		return s.fail(c, &provider.RequestError{Reason: fmt.Sprintf("invalid request body: %v", err)})
	}

	gen := &llm.Request{UserInput: req.UserInput}
	for _, item := range req.Context {
		gen.Context = append(gen.Context, llm.ContextItem{Key: item.Key, Value: item.Value})
	}
	for _, m := range req.History {
		gen.History = append(gen.History, llm.Message{Role: llm.Role(m.Role), Content: m.Content})
	}

	result, err := s.service.Generate(c.UserContext(), gen)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fiber.Map{"response": result.Text})
}

// handleGetConfig returns the active configuration with credential
// values masked.
func (s *Server) handleGetConfig(c *fiber.Ctx) error {
	return c.JSON(s.store.Active().Sanitized())
}

// handleSetConfig applies a partial configuration update and returns
// the new version.
func (s *Server) handleSetConfig(c *fiber.Ctx) error {
	var update config.Update
	if err := c.BodyParser(&update); err != nil {
		return s.fail(c, &provider.RequestError{Reason: fmt.Sprintf("invalid request body: %v", err)})
	}

	version, err := s.store.Apply(update)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fiber.Map{"version": version})
}

// httpStatus maps a typed error kind to its HTTP status.
func httpStatus(kind provider.Kind) int {
	switch kind {
	case provider.KindRequestValidation, provider.KindConfigValidation:
		return fiber.StatusBadRequest
	case provider.KindConfigConflict:
		return fiber.StatusConflict
	case provider.KindQuotaExceeded:
		return fiber.StatusTooManyRequests
	case provider.KindInvalidCredentials, provider.KindUpstreamRejected, provider.KindMalformedResponse:
		return fiber.StatusBadGateway
	case provider.KindNetworkUnavailable:
		return fiber.StatusServiceUnavailable
	case provider.KindUpstreamTimeout:
		return fiber.StatusGatewayTimeout
	default:
		return fiber.StatusInternalServerError
	}
}

// fail renders a typed error as {error: {kind, message}}. Untyped
// errors are not expected here and map to 500.
func (s *Server) fail(c *fiber.Ctx, err error) error {
	kind, ok := provider.KindOf(err)
	if !ok {
		s.logger.Error("unclassified handler error", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": fiber.Map{"kind": "internal", "message": err.Error()},
		})
	}
	return c.Status(httpStatus(kind)).JSON(fiber.Map{
		"error": fiber.Map{"kind": string(kind), "message": err.Error()},
	})
}
