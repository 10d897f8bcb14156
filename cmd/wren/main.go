// wren: voice assistant backend
// Serves the provider gateway over HTTP and realtime voice over WebSocket
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lumenlabs/go-wren/internal/log"
	"github.com/lumenlabs/go-wren/pkg/config"
	"github.com/lumenlabs/go-wren/pkg/gateway"
	"github.com/lumenlabs/go-wren/pkg/web"
)

var (
	version    = "0.2.0"
	addr       = flag.String("addr", envOr("WREN_ADDR", ":8080"), "HTTP listen address")
	configPath = flag.String("config", os.Getenv("WREN_CONFIG"), "Path to YAML seed config (optional)")
	logLevel   = flag.String("log-level", envOr("WREN_LOG_LEVEL", "info"), "Log level: debug, info, warn, error")
)

func main() {
	flag.Parse()
	log.Init(*logLevel)

	fmt.Println()
	fmt.Println("🎙  wren v" + version)
	fmt.Println("   voice assistant backend")
	fmt.Println()

	registry := gateway.NewRegistry()
	store := config.NewStore(registry, config.WithLogger(log.Component("config")))

	seedVersion, err := config.Seed(store, *configPath)
	if err != nil {
		log.Error("configuration seed failed", "error", err)
		os.Exit(1)
	}
	active := store.Active()
	log.Info("configuration seeded",
		"version", seedVersion,
		"transcription", active.Transcription.Provider,
		"synthesis", active.Synthesis.Provider,
		"generation", active.Generation.Provider,
	)

	service := gateway.NewService(registry, gateway.WithLogger(log.L()))
	server := web.NewServer(service, store, web.WithLogger(log.L()))

	go func() {
		log.Info("endpoints",
			"voice", "ws://"+hostFor(*addr)+"/ws/voice",
			"api", "http://"+hostFor(*addr)+"/api",
			"health", "http://"+hostFor(*addr)+"/health",
		)
		if err := server.Listen(*addr); err != nil {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info("shutting down")
	if err := server.Shutdown(); err != nil {
		log.Warn("server shutdown", "error", err)
	}
	if snap := registry.Current(); snap != nil {
		if err := snap.Close(); err != nil {
			log.Warn("provider shutdown", "error", err)
		}
	}
	log.Info("shutdown complete")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// hostFor makes a bare ":8080" listen address printable.
func hostFor(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "localhost" + addr
	}
	return addr
}
