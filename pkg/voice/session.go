// Package voice implements realtime conversation sessions over
// WebSocket. A Session buffers utterance audio, runs one
// transcribe, generate, synthesize turn per commit, and keeps a bounded
// conversation history. A Hub upgrades connections into sessions and
// tracks them.
//
// The wire protocol is JSON text frames with base64 audio payloads:
//
//	client → server: audio, commit, text, reset, ping
//	server → client: transcript, reply, speak, error, pong
package voice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/lumenlabs/go-wren/pkg/audio"
	"github.com/lumenlabs/go-wren/pkg/llm"
	"github.com/lumenlabs/go-wren/pkg/provider"
	"github.com/lumenlabs/go-wren/pkg/stt"
	"github.com/lumenlabs/go-wren/pkg/tts"
)

// Gateway is the slice of the capability gateway a session drives.
// *gateway.Service implements it.
type Gateway interface {
	Transcribe(ctx context.Context, req *stt.Request) (*stt.Result, error)
	Generate(ctx context.Context, req *llm.Request) (*llm.Result, error)
	Synthesize(ctx context.Context, req *tts.Request) (*tts.Result, error)
}

// SendFunc delivers one server message to the client.
type SendFunc func(*Message) error

// Session is one realtime voice conversation. Frames are handled
// sequentially by the connection's read loop; accessors may be called
// from other goroutines.
type Session struct {
	id         string
	gw         Gateway
	send       SendFunc
	logger     *slog.Logger
	historyCap int
	connected  time.Time

	mu          sync.Mutex
	pending     []byte
	pendingRate int
	opus        *audio.OpusDecoder
	history     []llm.Message
	turns       int
}

// NewSession creates a session writing responses through send.
func NewSession(id string, gw Gateway, send SendFunc, opts ...Option) *Session {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	return &Session{
		id:         id,
		gw:         gw,
		send:       send,
		logger:     cfg.Logger.With("session_id", id),
		historyCap: cfg.HistoryCap,
		connected:  time.Now(),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Connected returns when the session was established.
func (s *Session) Connected() time.Time { return s.connected }

// Turns returns the number of completed conversation turns.
func (s *Session) Turns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turns
}

// Handle processes one client frame.
func (s *Session) Handle(ctx context.Context, raw []byte) {
	msg, err := ParseMessage(raw)
	if err != nil {
		s.reject(fmt.Sprintf("malformed message: %v", err))
		return
	}

	switch msg.Type {
	case TypeAudio:
		s.handleAudio(msg)
	case TypeCommit:
		s.handleCommit(ctx)
	case TypeText:
		s.handleText(ctx, msg)
	case TypeReset:
		s.handleReset()
	case TypePing:
		s.handlePing(msg)
	default:
		s.reject(fmt.Sprintf("unknown message type %q", msg.Type))
	}
}

// handleAudio appends one chunk to the pending utterance. Opus frames
// are decoded to PCM16 on arrival; pcm16 and wav chunks are buffered
// as sent.
func (s *Session) handleAudio(msg *Message) {
	chunk, err := msg.GetAudioData()
	if err != nil {
		s.reject(fmt.Sprintf("bad audio payload: %v", err))
		return
	}
	data, err := chunk.Decode()
	if err != nil {
		s.reject(fmt.Sprintf("bad audio encoding: %v", err))
		return
	}
	if len(data) == 0 {
		s.reject("empty audio chunk")
		return
	}

	rate := chunk.SampleRate
	if rate <= 0 {
		rate = DefaultSampleRate
	}

	var pcm []byte
	switch chunk.Format {
	case FormatPCM16, FormatWAV:
		pcm = data
	case FormatOpus:
		dec, err := s.opusDecoder(rate)
		if err != nil {
			s.reject(fmt.Sprintf("opus decoder: %v", err))
			return
		}
		pcm, err = dec.DecodePCM16(data)
		if err != nil {
			s.reject(fmt.Sprintf("bad opus frame: %v", err))
			return
		}
	default:
		s.reject(fmt.Sprintf("unsupported audio format %q", chunk.Format))
		return
	}

	s.mu.Lock()
	if s.pendingRate == 0 {
		s.pendingRate = rate
	}
	s.pending = append(s.pending, pcm...)
	s.mu.Unlock()
}

// handleCommit closes the pending utterance and runs a full turn:
// transcript, reply, then speak.
func (s *Session) handleCommit(ctx context.Context) {
	buffered, rate := s.takePending()
	if len(buffered) == 0 {
		s.reject("commit with no buffered audio")
		return
	}

	timer := NewTurnTimer()

	wav := buffered
	if !audio.IsWAV(wav) {
		wav = audio.FromPCM16(buffered, rate, audio.Channels)
	}

	tr, err := s.gw.Transcribe(ctx, &stt.Request{Audio: wav, Encoding: "wav"})
	if err != nil {
		s.fail(err)
		return
	}
	timer.MarkTranscript()

	if msg, err := NewTranscriptMessage(tr.Text, tr.Language); err == nil {
		s.push(msg)
	}

	s.completeTurn(ctx, timer, tr.Text)
}

// handleText runs a turn from typed input, skipping transcription.
func (s *Session) handleText(ctx context.Context, msg *Message) {
	input, err := msg.GetTextData()
	if err != nil {
		s.reject(fmt.Sprintf("bad text payload: %v", err))
		return
	}
	if strings.TrimSpace(input.Text) == "" {
		s.reject("empty text input")
		return
	}
	s.completeTurn(ctx, NewTurnTimer(), input.Text)
}

// completeTurn generates a reply from the user text, speaks it, and
// records the exchange in the session history.
func (s *Session) completeTurn(ctx context.Context, timer *TurnTimer, userText string) {
	reply, err := s.gw.Generate(ctx, &llm.Request{
		UserInput: userText,
		History:   s.historySnapshot(),
	})
	if err != nil {
		s.fail(err)
		return
	}
	timer.MarkReply()

	if msg, err := NewReplyMessage(reply.Text); err == nil {
		s.push(msg)
	}
	s.remember(userText, reply.Text)

	synth, err := s.gw.Synthesize(ctx, &tts.Request{Text: reply.Text})
	if err != nil {
		s.fail(err)
		return
	}
	timer.MarkAudio()

	metrics := timer.Metrics()
	msg, err := NewSpeakMessage(string(synth.Format.Encoding), synth.Format.SampleRate, synth.MIME, synth.Audio, metrics)
	if err != nil {
		s.logger.Error("speak message", "error", err)
		return
	}
	s.push(msg)

	s.logger.Info("turn complete",
		"stt_ms", metrics.SttMs,
		"llm_ms", metrics.LlmMs,
		"tts_ms", metrics.TtsMs,
		"total_ms", metrics.TotalMs,
	)
}

// handleReset clears the conversation history and any buffered audio.
func (s *Session) handleReset() {
	s.mu.Lock()
	s.history = nil
	s.pending = nil
	s.pendingRate = 0
	s.opus = nil
	s.mu.Unlock()
	s.logger.Debug("session reset")
}

// handlePing answers with a pong echoing the ping's id and timestamp.
func (s *Session) handlePing(msg *Message) {
	var ping PingData
	if msg.Data != nil {
		if err := msg.ParseData(&ping); err != nil {
			s.reject(fmt.Sprintf("bad ping payload: %v", err))
			return
		}
	}
	pong, err := NewPongMessage(ping.ID, ping.Timestamp, time.Now().UnixMilli())
	if err != nil {
		return
	}
	s.push(pong)
}

// opusDecoder lazily creates the session's Opus decoder. The decoder
// is stateful per stream and persists across utterances until a reset.
func (s *Session) opusDecoder(rate int) (*audio.OpusDecoder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.opus == nil {
		dec, err := audio.NewOpusDecoder(rate, audio.Channels)
		if err != nil {
			return nil, err
		}
		s.opus = dec
	}
	return s.opus, nil
}

// takePending returns and clears the buffered utterance.
func (s *Session) takePending() ([]byte, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	buffered, rate := s.pending, s.pendingRate
	s.pending, s.pendingRate = nil, 0
	if rate == 0 {
		rate = DefaultSampleRate
	}
	return buffered, rate
}

func (s *Session) historySnapshot() []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.history) == 0 {
		return nil
	}
	out := make([]llm.Message, len(s.history))
	copy(out, s.history)
	return out
}

// remember appends one completed exchange, dropping the oldest
// messages beyond the cap.
func (s *Session) remember(user, assistant string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, llm.NewUserMessage(user), llm.NewAssistantMessage(assistant))
	if n := s.historyCap; n > 0 && len(s.history) > n {
		s.history = s.history[len(s.history)-n:]
	}
	s.turns++
}

// reject reports a client input problem without involving the gateway.
func (s *Session) reject(reason string) {
	s.fail(&provider.RequestError{Reason: reason})
}

// fail forwards a typed failure to the client. Untyped errors come
// from connection teardown and are not reported.
func (s *Session) fail(err error) {
	kind, ok := provider.KindOf(err)
	if !ok {
		if !errors.Is(err, context.Canceled) {
			s.logger.Debug("unreported session error", "error", err)
		}
		return
	}
	s.logger.Warn("session turn failed", "kind", string(kind), "error", err)
	if msg, merr := NewErrorMessage(string(kind), err.Error()); merr == nil {
		s.push(msg)
	}
}

// push writes one message to the client.
func (s *Session) push(msg *Message) {
	if err := s.send(msg); err != nil {
		s.logger.Warn("send failed", "type", string(msg.Type), "error", err)
	}
}
