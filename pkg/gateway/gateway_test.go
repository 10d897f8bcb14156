package gateway_test

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/lumenlabs/go-wren/pkg/gateway"
	"github.com/lumenlabs/go-wren/pkg/llm"
	"github.com/lumenlabs/go-wren/pkg/provider"
	"github.com/lumenlabs/go-wren/pkg/stt"
	"github.com/lumenlabs/go-wren/pkg/tts"
)

// publish installs a snapshot or fails the test.
func publish(t *testing.T, registry *gateway.Registry, snap *gateway.Snapshot) {
	t.Helper()
	if err := registry.Publish(snap); err != nil {
		t.Fatalf("publish v%d: %v", snap.Version, err)
	}
}

func TestServiceNotConfigured(t *testing.T) {
	svc := gateway.NewService(gateway.NewRegistry())
	ctx := context.Background()

	if _, err := svc.Transcribe(ctx, &stt.Request{Audio: []byte("riff")}); err == nil {
		t.Error("expected transcribe to fail without configuration")
	} else if kind, _ := provider.KindOf(err); kind != provider.KindNetworkUnavailable {
		t.Errorf("expected kind %q, got %q", provider.KindNetworkUnavailable, kind)
	}

	if _, err := svc.Synthesize(ctx, &tts.Request{Text: "hi"}); err == nil {
		t.Error("expected synthesize to fail without configuration")
	}
	if _, err := svc.Generate(ctx, &llm.Request{UserInput: "hi"}); err == nil {
		t.Error("expected generate to fail without configuration")
	}
}

func TestServiceRequestValidation(t *testing.T) {
	// Validation runs before adapter resolution, so even an empty
	// registry reports the request error, not a resolution error.
	svc := gateway.NewService(gateway.NewRegistry())
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
	}{
		{"empty audio", func() error {
			_, err := svc.Transcribe(ctx, &stt.Request{})
			return err
		}},
		{"nil transcribe request", func() error {
			_, err := svc.Transcribe(ctx, nil)
			return err
		}},
		{"empty text", func() error {
			_, err := svc.Synthesize(ctx, &tts.Request{})
			return err
		}},
		{"empty user input", func() error {
			_, err := svc.Generate(ctx, &llm.Request{})
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if err == nil {
				t.Fatal("expected a validation error")
			}
			var reqErr *provider.RequestError
			if !errors.As(err, &reqErr) {
				t.Fatalf("expected RequestError, got %T: %v", err, err)
			}
			if kind, _ := provider.KindOf(err); kind != provider.KindRequestValidation {
				t.Errorf("expected kind %q, got %q", provider.KindRequestValidation, kind)
			}
		})
	}
}

func TestServiceTranscribe(t *testing.T) {
	registry := gateway.NewRegistry()
	mock := stt.NewMock()
	mock.TranscribeFunc = func(ctx context.Context, req *stt.Request) (*stt.Result, error) {
		return &stt.Result{Text: "turn on the lights", Language: req.Language}, nil
	}
	publish(t, registry, &gateway.Snapshot{
		Version:       1,
		Transcription: mock,
		Providers:     map[provider.Capability]string{provider.Transcription: "openai"},
	})

	svc := gateway.NewService(registry)
	result, err := svc.Transcribe(context.Background(), &stt.Request{
		Audio:    []byte("fake wav"),
		Language: "en-US",
	})
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if result.Text != "turn on the lights" {
		t.Errorf("unexpected transcript %q", result.Text)
	}
	if result.Language != "en-US" {
		t.Errorf("expected language hint to pass through, got %q", result.Language)
	}
}

func TestServiceSynthesize(t *testing.T) {
	registry := gateway.NewRegistry()
	mock := tts.NewMock()
	mock.SynthesizeFunc = func(ctx context.Context, req *tts.Request) (*tts.Result, error) {
		return &tts.Result{
			Audio:     []byte("audio-bytes"),
			MIME:      "audio/wav",
			CharCount: len(req.Text),
		}, nil
	}
	publish(t, registry, &gateway.Snapshot{
		Version:   1,
		Synthesis: mock,
		Providers: map[provider.Capability]string{provider.Synthesis: "azure"},
	})

	svc := gateway.NewService(registry)
	result, err := svc.Synthesize(context.Background(), &tts.Request{Text: "hello"})
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if string(result.Audio) != "audio-bytes" {
		t.Error("unexpected audio payload")
	}
	if result.MIME != "audio/wav" {
		t.Errorf("unexpected MIME %q", result.MIME)
	}
	if result.CharCount != 5 {
		t.Errorf("expected char count 5, got %d", result.CharCount)
	}
}

func TestServiceGenerateStub(t *testing.T) {
	registry := gateway.NewRegistry()
	mock := llm.NewMock()
	mock.GenerateFunc = func(ctx context.Context, req *llm.Request) (*llm.Result, error) {
		return &llm.Result{Text: "It is 3 PM.", FinishReason: "stop"}, nil
	}
	publish(t, registry, &gateway.Snapshot{
		Version:    1,
		Generation: mock,
		Providers:  map[provider.Capability]string{provider.Generation: "openai"},
	})

	svc := gateway.NewService(registry)
	result, err := svc.Generate(context.Background(), &llm.Request{UserInput: "What time is it?"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if result.Text != "It is 3 PM." {
		t.Errorf("expected the stub reply verbatim, got %q", result.Text)
	}
}

func TestServiceHistoryCap(t *testing.T) {
	registry := gateway.NewRegistry()
	var seen []llm.Message
	mock := llm.NewMock()
	mock.GenerateFunc = func(ctx context.Context, req *llm.Request) (*llm.Result, error) {
		seen = append([]llm.Message(nil), req.History...)
		return &llm.Result{Text: "ok"}, nil
	}
	publish(t, registry, &gateway.Snapshot{Version: 1, Generation: mock})

	history := []llm.Message{
		llm.NewUserMessage("turn 1"),
		llm.NewAssistantMessage("turn 2"),
		llm.NewUserMessage("turn 3"),
		llm.NewAssistantMessage("turn 4"),
		llm.NewUserMessage("turn 5"),
		llm.NewAssistantMessage("turn 6"),
		llm.NewUserMessage("turn 7"),
	}
	svc := gateway.NewService(registry, gateway.WithHistoryCap(5))
	if _, err := svc.Generate(context.Background(), &llm.Request{
		UserInput: "now",
		History:   history,
	}); err != nil {
		t.Fatalf("generate: %v", err)
	}

	if !reflect.DeepEqual(seen, history[2:]) {
		t.Errorf("expected the 5 most recent turns, got %v", seen)
	}
	if len(history) != 7 {
		t.Error("capping must not mutate the caller's history")
	}
}

func TestServiceTimeoutRetry(t *testing.T) {
	registry := gateway.NewRegistry()
	mock := llm.NewMock()
	mock.GenerateFunc = func(ctx context.Context, req *llm.Request) (*llm.Result, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	publish(t, registry, &gateway.Snapshot{
		Version:    1,
		Generation: mock,
		Providers:  map[provider.Capability]string{provider.Generation: "openai"},
	})

	svc := gateway.NewService(registry,
		gateway.WithTimeout(provider.Generation, 20*time.Millisecond),
		gateway.WithRetryBackoff(5*time.Millisecond),
	)
	_, err := svc.Generate(context.Background(), &llm.Request{UserInput: "hello"})
	if err == nil {
		t.Fatal("expected a timeout error")
	}
	if kind, _ := provider.KindOf(err); kind != provider.KindUpstreamTimeout {
		t.Errorf("expected kind %q, got %q", provider.KindUpstreamTimeout, kind)
	}
	if got := mock.CallCount("Generate"); got != 2 {
		t.Errorf("expected exactly 2 invocations of an always-timing-out adapter, got %d", got)
	}

	health := svc.Status()[provider.Generation]
	if health.State() != "failed" {
		t.Errorf("expected failed state, got %q", health.State())
	}
	if health.LastErrorKind != provider.KindUpstreamTimeout {
		t.Errorf("expected recorded kind %q, got %q", provider.KindUpstreamTimeout, health.LastErrorKind)
	}
}

func TestServiceRetryRecovers(t *testing.T) {
	registry := gateway.NewRegistry()
	var calls int
	mock := llm.NewMock()
	mock.GenerateFunc = func(ctx context.Context, req *llm.Request) (*llm.Result, error) {
		calls++
		if calls == 1 {
			return nil, provider.NewError(provider.Generation, "openai",
				provider.KindNetworkUnavailable, "connection refused")
		}
		return &llm.Result{Text: "recovered"}, nil
	}
	publish(t, registry, &gateway.Snapshot{
		Version:    1,
		Generation: mock,
		Providers:  map[provider.Capability]string{provider.Generation: "openai"},
	})

	svc := gateway.NewService(registry, gateway.WithRetryBackoff(time.Millisecond))
	result, err := svc.Generate(context.Background(), &llm.Request{UserInput: "hello"})
	if err != nil {
		t.Fatalf("expected the retry to recover, got %v", err)
	}
	if result.Text != "recovered" {
		t.Errorf("unexpected reply %q", result.Text)
	}
	if calls != 2 {
		t.Errorf("expected 2 invocations, got %d", calls)
	}
	if health := svc.Status()[provider.Generation]; health.State() != "ok" {
		t.Errorf("expected ok state after recovery, got %q", health.State())
	}
}

func TestServiceNoRetryOnPermanentFailure(t *testing.T) {
	registry := gateway.NewRegistry()
	vendorErr := provider.NewError(provider.Generation, "anthropic",
		provider.KindInvalidCredentials, "invalid x-api-key")
	mock := llm.NewMock()
	mock.GenerateFunc = func(ctx context.Context, req *llm.Request) (*llm.Result, error) {
		return nil, vendorErr
	}
	publish(t, registry, &gateway.Snapshot{
		Version:    1,
		Generation: mock,
		Providers:  map[provider.Capability]string{provider.Generation: "anthropic"},
	})

	svc := gateway.NewService(registry)
	_, err := svc.Generate(context.Background(), &llm.Request{UserInput: "hello"})

	var typed *provider.Error
	if !errors.As(err, &typed) {
		t.Fatalf("expected a typed error, got %T", err)
	}
	if typed != vendorErr {
		t.Error("expected the adapter error to propagate unmodified")
	}
	if got := mock.CallCount("Generate"); got != 1 {
		t.Errorf("expected no retry on invalid credentials, got %d invocations", got)
	}
}

func TestServiceSwitchProvider(t *testing.T) {
	registry := gateway.NewRegistry()
	alpha := llm.NewMock()
	alpha.GenerateFunc = func(ctx context.Context, req *llm.Request) (*llm.Result, error) {
		return &llm.Result{Text: "from alpha"}, nil
	}
	beta := llm.NewMock()
	beta.GenerateFunc = func(ctx context.Context, req *llm.Request) (*llm.Result, error) {
		return &llm.Result{Text: "from beta"}, nil
	}

	publish(t, registry, &gateway.Snapshot{
		Version:    1,
		Generation: alpha,
		Providers:  map[provider.Capability]string{provider.Generation: "alpha"},
	})
	svc := gateway.NewService(registry)

	result, err := svc.Generate(context.Background(), &llm.Request{UserInput: "hi"})
	if err != nil {
		t.Fatalf("generate via alpha: %v", err)
	}
	if result.Text != "from alpha" {
		t.Errorf("unexpected reply %q", result.Text)
	}

	publish(t, registry, &gateway.Snapshot{
		Version:    2,
		Generation: beta,
		Providers:  map[provider.Capability]string{provider.Generation: "beta"},
	})

	result, err = svc.Generate(context.Background(), &llm.Request{UserInput: "hi"})
	if err != nil {
		t.Fatalf("generate via beta: %v", err)
	}
	if result.Text != "from beta" {
		t.Errorf("expected the next generate to resolve the new adapter, got %q", result.Text)
	}
	if alpha.CallCount("Generate") != 1 {
		t.Error("expected the replaced adapter to receive no further calls")
	}
}

func TestServiceCallerCancellation(t *testing.T) {
	registry := gateway.NewRegistry()
	mock := llm.NewMock()
	mock.GenerateFunc = func(ctx context.Context, req *llm.Request) (*llm.Result, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	publish(t, registry, &gateway.Snapshot{Version: 1, Generation: mock})

	svc := gateway.NewService(registry)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := svc.Generate(ctx, &llm.Request{UserInput: "hello"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if _, ok := provider.KindOf(err); ok {
		t.Error("caller cancellation must stay untyped")
	}
	if got := mock.CallCount("Generate"); got != 1 {
		t.Errorf("expected no retry after cancellation, got %d invocations", got)
	}
	if health := svc.Status()[provider.Generation]; health.State() != "unused" {
		t.Errorf("cancellation must not record a vendor failure, got %q", health.State())
	}
}

func TestServiceMissingAdapter(t *testing.T) {
	registry := gateway.NewRegistry()
	publish(t, registry, &gateway.Snapshot{
		Version:    1,
		Generation: llm.NewMock(),
	})

	svc := gateway.NewService(registry)
	_, err := svc.Transcribe(context.Background(), &stt.Request{Audio: []byte("riff")})
	if err == nil {
		t.Fatal("expected an error for the unconfigured capability")
	}
	if kind, _ := provider.KindOf(err); kind != provider.KindNetworkUnavailable {
		t.Errorf("expected kind %q, got %q", provider.KindNetworkUnavailable, kind)
	}
}
