// Package web exposes the gateway over HTTP: liveness and status
// probes, one-shot capability endpoints, configuration management, and
// the realtime voice WebSocket.
package web

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/lumenlabs/go-wren/pkg/config"
	"github.com/lumenlabs/go-wren/pkg/gateway"
	"github.com/lumenlabs/go-wren/pkg/voice"
)

// DefaultBodyLimit accepts the largest transcription upload any
// registered provider takes (25 MB) plus multipart overhead.
const DefaultBodyLimit = 32 << 20

// Config holds server settings.
type Config struct {
	// BodyLimit caps request bodies, sized for audio uploads.
	BodyLimit int

	// Logger for request handling events.
	Logger *slog.Logger

	// VoiceOptions are passed through to the voice hub.
	VoiceOptions []voice.Option
}

// Option configures the server.
type Option func(*Config)

// WithBodyLimit caps request body size.
func WithBodyLimit(n int) Option {
	return func(c *Config) { c.BodyLimit = n }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}

// WithVoiceOptions forwards options to the voice session hub.
func WithVoiceOptions(opts ...voice.Option) Option {
	return func(c *Config) { c.VoiceOptions = append(c.VoiceOptions, opts...) }
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() *Config {
	return &Config{
		BodyLimit: DefaultBodyLimit,
		Logger:    slog.Default(),
	}
}

// Server is the HTTP front of the backend.
type Server struct {
	app     *fiber.App
	service *gateway.Service
	store   *config.Store
	hub     *voice.Hub
	logger  *slog.Logger
	started time.Time
}

// NewServer wires the API around the gateway service and config store.
func NewServer(service *gateway.Service, store *config.Store, opts ...Option) *Server {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	s := &Server{
		service: service,
		store:   store,
		logger:  cfg.Logger.With("component", "web"),
		started: time.Now(),
	}

	app := fiber.New(fiber.Config{
		AppName:               "wren",
		DisableStartupMessage: true,
		BodyLimit:             cfg.BodyLimit,
	})

	app.Use(cors.New())

	app.Get("/health", s.handleHealth)

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Post("/stt", s.handleTranscribe)
	api.Post("/tts", s.handleSynthesize)
	api.Post("/generate", s.handleGenerate)
	api.Get("/config", s.handleGetConfig)
	api.Post("/config", s.handleSetConfig)

	voiceOpts := append([]voice.Option{voice.WithLogger(cfg.Logger)}, cfg.VoiceOptions...)
	s.hub = voice.NewHub(service, voiceOpts...)
	s.hub.RegisterRoutes(app)

	s.app = app
	return s
}

// Listen serves the API on addr, blocking until shutdown.
func (s *Server) Listen(addr string) error {
	s.logger.Info("listening", "addr", addr)
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Hub returns the voice session hub.
func (s *Server) Hub() *voice.Hub {
	return s.hub
}
