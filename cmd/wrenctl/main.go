// Command wrenctl drives a running wren backend from the terminal.
//
// Usage:
//
//	wrenctl status
//	wrenctl config get
//	wrenctl config set generation anthropic model=claude-sonnet-4-5
//	wrenctl stt recording.wav
//	wrenctl tts "hello there" -o hello.wav
//	wrenctl chat "what time is it?"
//	wrenctl chat -i
//
// The server address comes from -server or WREN_SERVER, defaulting to
// http://localhost:8080. Provider credentials for config set are read
// from the conventional environment variables (OPENAI_API_KEY,
// ELEVENLABS_API_KEY, AZURE_SPEECH_KEY, ...), never from arguments.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/lumenlabs/go-wren/pkg/client"
	"github.com/lumenlabs/go-wren/pkg/config"
)

var version = "0.2.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "status":
		runStatus(os.Args[2:])
	case "config":
		runConfig(os.Args[2:])
	case "stt":
		runTranscribe(os.Args[2:])
	case "tts":
		runSynthesize(os.Args[2:])
	case "chat":
		runChat(os.Args[2:])
	case "health":
		runHealth(os.Args[2:])
	case "version":
		fmt.Printf("wrenctl %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// newFlagSet builds a subcommand flag set carrying the flags every
// subcommand shares.
func newFlagSet(name string) (*flag.FlagSet, *string, *time.Duration) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	server := fs.String("server", envOr("WREN_SERVER", "http://localhost:8080"), "Backend address")
	timeout := fs.Duration("timeout", client.DefaultTimeout, "Request timeout")
	return fs, server, timeout
}

func newClient(server string, timeout time.Duration) *client.Client {
	return client.New(server, client.WithTimeout(timeout))
}

func runHealth(args []string) {
	fs, server, timeout := newFlagSet("health")
	fs.Parse(args)

	info, err := newClient(*server, *timeout).Health(context.Background())
	if err != nil {
		fatal(err)
	}
	fmt.Println(info.Status)
}

func runStatus(args []string) {
	fs, server, timeout := newFlagSet("status")
	fs.Parse(args)

	status, err := newClient(*server, *timeout).Status(context.Background())
	if err != nil {
		fatal(err)
	}

	fmt.Printf("config version %d, up %s\n\n", status.ConfigVersion, formatUptime(status.UptimeSeconds))
	for _, capability := range []string{"transcription", "synthesis", "generation"} {
		cs := status.Capabilities[capability]
		fmt.Printf("%s %-13s %-12s", stateMarker(cs.State), capability, cs.Provider)
		switch {
		case cs.State == "failed" && cs.LastErrorKind != "":
			fmt.Printf(" %s (last failure %s)", cs.LastErrorKind, formatTimestamp(cs.LastFailure))
		case cs.LastSuccess != "":
			fmt.Printf(" last success %s", formatTimestamp(cs.LastSuccess))
		}
		fmt.Println()
	}
	fmt.Printf("\nsessions: %d active, %d total, %d msgs in / %d out\n",
		status.Sessions.ActiveSessions, status.Sessions.TotalSessions,
		status.Sessions.MessagesReceived, status.Sessions.MessagesSent)
}

func stateMarker(state string) string {
	switch state {
	case "ok":
		return "✅"
	case "failed":
		return "❌"
	default:
		return "⚪"
	}
}

func runConfig(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: wrenctl config <get|set> ...")
		os.Exit(1)
	}
	switch args[0] {
	case "get":
		runConfigGet(args[1:])
	case "set":
		runConfigSet(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown config subcommand: %s\n", args[0])
		os.Exit(1)
	}
}

func runConfigGet(args []string) {
	fs, server, timeout := newFlagSet("config get")
	fs.Parse(args)

	active, err := newClient(*server, *timeout).GetConfig(context.Background())
	if err != nil {
		fatal(err)
	}

	fmt.Printf("version %d\n\n", active.Version)
	printCapability("transcription", active.Transcription)
	printCapability("synthesis", active.Synthesis)
	printCapability("generation", active.Generation)
}

func printCapability(name string, cc config.CapabilityConfig) {
	fmt.Printf("%s: %s\n", name, cc.Provider)
	for _, k := range sortedKeys(cc.Credentials) {
		fmt.Printf("  %s: %s\n", k, cc.Credentials[k])
	}
	for _, k := range sortedKeys(cc.Params) {
		fmt.Printf("  %s: %s\n", k, cc.Params[k])
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// capabilityAliases maps short names to the API capability names.
var capabilityAliases = map[string]string{
	"stt": "transcription", "transcription": "transcription",
	"tts": "synthesis", "synthesis": "synthesis",
	"llm": "generation", "generation": "generation",
}

func runConfigSet(args []string) {
	fs, server, timeout := newFlagSet("config set")
	fs.Parse(args)
	rest := fs.Args()

	if len(rest) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: wrenctl config set <capability> <provider> [param=value ...]")
		os.Exit(1)
	}
	capability, ok := capabilityAliases[rest[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown capability %q (want transcription, synthesis or generation)\n", rest[0])
		os.Exit(1)
	}
	providerName := rest[1]

	params := make(map[string]string)
	for _, kv := range rest[2:] {
		k, v, found := strings.Cut(kv, "=")
		if !found || k == "" {
			fmt.Fprintf(os.Stderr, "Bad parameter %q (want key=value)\n", kv)
			os.Exit(1)
		}
		params[k] = v
	}

	section := &config.CapabilityUpdate{
		Provider:    providerName,
		Credentials: config.EnvCredentials(providerName),
		Params:      params,
	}
	if len(params) == 0 {
		section.Params = nil
	}

	ctx := context.Background()
	c := newClient(*server, *timeout)

	active, err := c.GetConfig(ctx)
	if err != nil {
		fatal(err)
	}

	update := config.Update{BaseVersion: active.Version}
	switch capability {
	case "transcription":
		update.Transcription = section
	case "synthesis":
		update.Synthesis = section
	case "generation":
		update.Generation = section
	}

	newVersion, err := c.SetConfig(ctx, update)
	if err != nil {
		fatal(err)
	}
	fmt.Printf("✅ %s → %s (version %d)\n", capability, providerName, newVersion)
}

func runTranscribe(args []string) {
	fs, server, timeout := newFlagSet("stt")
	language := fs.String("language", "", "BCP-47 language hint, e.g. en-US")
	fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: wrenctl stt [-language en-US] <audio-file>")
		os.Exit(1)
	}
	path := fs.Arg(0)
	audio, err := os.ReadFile(path)
	if err != nil {
		fatal(err)
	}

	tr, err := newClient(*server, *timeout).Transcribe(context.Background(), audio, filepath.Base(path), *language)
	if err != nil {
		fatal(err)
	}
	fmt.Println(tr.Text)
	if tr.Language != "" {
		fmt.Fprintf(os.Stderr, "language: %s\n", tr.Language)
	}
}

func runSynthesize(args []string) {
	fs, server, timeout := newFlagSet("tts")
	out := fs.String("o", "", "Output file (default: server-suggested name)")
	voice := fs.String("voice", "", "Voice name or ID (provider default when empty)")
	fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, `Usage: wrenctl tts [-o out.wav] [-voice alloy] "text to speak"`)
		os.Exit(1)
	}

	speech, err := newClient(*server, *timeout).Synthesize(context.Background(), fs.Arg(0), *voice)
	if err != nil {
		fatal(err)
	}

	path := *out
	if path == "" {
		path = speech.Filename
	}
	if path == "" {
		path = "speech.wav"
	}
	if err := os.WriteFile(path, speech.Audio, 0o644); err != nil {
		fatal(err)
	}
	fmt.Printf("🔊 wrote %s (%s, %s)\n", path, formatSize(len(speech.Audio)), speech.MIME)
}

func runChat(args []string) {
	fs, server, timeout := newFlagSet("chat")
	interactive := fs.Bool("i", false, "Interactive conversation (reads stdin)")
	fs.Parse(args)

	c := newClient(*server, *timeout)

	if !*interactive {
		if fs.NArg() != 1 {
			fmt.Fprintln(os.Stderr, `Usage: wrenctl chat "prompt"  or  wrenctl chat -i`)
			os.Exit(1)
		}
		reply, err := c.Generate(context.Background(), fs.Arg(0), nil)
		if err != nil {
			fatal(err)
		}
		fmt.Println(reply)
		return
	}

	fmt.Println("💬 Interactive chat. Empty line or Ctrl-D to quit.")
	var history []client.HistoryMessage
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("you> ")
		if !scanner.Scan() {
			fmt.Println()
			return
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" || input == "exit" || input == "quit" {
			return
		}

		reply, err := c.Generate(context.Background(), input, history)
		if err != nil {
			printError(err)
			continue
		}
		fmt.Printf("wren> %s\n", reply)
		history = append(history,
			client.HistoryMessage{Role: "user", Content: input},
			client.HistoryMessage{Role: "assistant", Content: reply},
		)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func formatUptime(seconds int64) string {
	d := time.Duration(seconds) * time.Second
	if d < time.Minute {
		return fmt.Sprintf("%ds", seconds)
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), seconds%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}

func formatTimestamp(ts string) string {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ts
	}
	return t.Local().Format("15:04:05")
}

func formatSize(n int) string {
	if n < 1024 {
		return fmt.Sprintf("%d B", n)
	}
	return fmt.Sprintf("%.1f KB", float64(n)/1024)
}

func printError(err error) {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.Kind != "" {
		fmt.Fprintf(os.Stderr, "❌ %s: %s\n", apiErr.Kind, apiErr.Message)
		return
	}
	fmt.Fprintf(os.Stderr, "❌ %v\n", err)
}

func fatal(err error) {
	printError(err)
	os.Exit(1)
}

func printUsage() {
	fmt.Println(`wrenctl - control a running wren backend

Usage:
  wrenctl <command> [options]

Commands:
  status    Show per-capability provider health
  config    Inspect or change the active provider configuration
  stt       Transcribe an audio file
  tts       Synthesize speech to a file
  chat      One-shot or interactive text conversation
  health    Liveness probe
  version   Show version
  help      Show this help message

Common options:
  -server <url>      Backend address (default http://localhost:8080, env WREN_SERVER)
  -timeout <dur>     Request timeout (default 60s)

Examples:
  wrenctl status
  wrenctl config get
  wrenctl config set generation anthropic model=claude-sonnet-4-5
  wrenctl stt -language en-US recording.wav
  wrenctl tts -o hello.wav "hello there"
  wrenctl chat "what time is it?"
  wrenctl chat -i`)
}
