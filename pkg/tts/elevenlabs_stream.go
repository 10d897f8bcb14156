package tts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	elevenLabsWSBaseURL = "wss://api.elevenlabs.io/v1/text-to-speech"
	keepaliveInterval   = 30 * time.Second
	reconnectBaseDelay  = 1 * time.Second
	reconnectMaxDelay   = 30 * time.Second
)

// ElevenLabsStream synthesizes incrementally over a WebSocket for the
// lowest latency to first audio. Text chunks go in as they are produced
// (for example from a streaming language model); PCM chunks come back via
// the OnAudio callback. It is not a Provider; callers that need
// incremental audio compose it directly, like Chain.
type ElevenLabsStream struct {
	config *Config
	logger *slog.Logger

	conn      *websocket.Conn
	connMu    sync.Mutex
	connected bool

	// Callbacks, set before Connect.
	OnAudio      func(pcm []byte) // called for each audio chunk
	OnError      func(err error)  // called on read/write failures
	OnConnected  func()           // called when connected
	OnDisconnect func()           // called when disconnected

	ctx          context.Context
	cancel       context.CancelFunc
	sendCh       chan string
	closeCh      chan struct{}
	closeOnce    sync.Once
	reconnecting bool
}

// NewElevenLabsStream creates a WebSocket-based ElevenLabs synthesizer.
func NewElevenLabsStream(opts ...Option) (*ElevenLabsStream, error) {
	cfg := DefaultConfig()
	cfg.ModelID = ModelTurboV2_5
	cfg.VoiceID = DefaultElevenLabsVoice
	cfg.OutputFormat = EncodingPCM16
	cfg.Apply(opts...)

	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if cfg.VoiceID == "" {
		return nil, ErrNoVoiceID
	}

	return &ElevenLabsStream{
		config:  cfg,
		logger:  cfg.Logger.With("component", "tts.elevenlabs_stream"),
		sendCh:  make(chan string, 100),
		closeCh: make(chan struct{}),
	}, nil
}

// Connect establishes the WebSocket connection (pre-warms for low latency).
func (e *ElevenLabsStream) Connect(ctx context.Context) error {
	e.ctx, e.cancel = context.WithCancel(ctx)

	if err := e.dial(); err != nil {
		return err
	}

	go e.readLoop()
	go e.writeLoop()
	go e.keepaliveLoop()

	return nil
}

// dial establishes the WebSocket connection and sends the begin-of-stream
// message.
func (e *ElevenLabsStream) dial() error {
	e.connMu.Lock()
	defer e.connMu.Unlock()

	base := e.config.BaseURL
	if base == "" {
		base = elevenLabsWSBaseURL
	}
	base = strings.TrimSuffix(base, "/")

	url := fmt.Sprintf("%s/%s/stream-input?model_id=%s&output_format=%s",
		base, ResolveElevenLabsVoice(e.config.VoiceID), e.config.ModelID,
		apiOutputFormat(e.config.OutputFormat))

	headers := http.Header{}
	headers.Set("xi-api-key", e.config.APIKey)

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, resp, err := dialer.DialContext(e.ctx, url, headers)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("tts: websocket dial failed (status %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("tts: websocket dial failed: %w", err)
	}

	e.conn = conn
	e.connected = true

	bos := map[string]interface{}{
		"text": " ", // space initializes the stream
		"voice_settings": map[string]interface{}{
			"stability":        e.config.VoiceSettings.Stability,
			"similarity_boost": e.config.VoiceSettings.SimilarityBoost,
		},
		"generation_config": map[string]interface{}{
			"chunk_length_schedule": []int{120, 160, 250, 290},
		},
	}
	if err := conn.WriteJSON(bos); err != nil {
		conn.Close()
		e.conn = nil
		e.connected = false
		return fmt.Errorf("tts: send BOS: %w", err)
	}

	e.logger.Info("websocket connected", "voice", e.config.VoiceID, "model", e.config.ModelID)

	if e.OnConnected != nil {
		e.OnConnected()
	}

	return nil
}

// SendText queues a text chunk for synthesis (non-blocking).
func (e *ElevenLabsStream) SendText(chunk string) error {
	if chunk == "" {
		return nil
	}
	if e.ctx == nil {
		return ErrNotConnected
	}

	select {
	case e.sendCh <- chunk:
		return nil
	case <-e.ctx.Done():
		return e.ctx.Err()
	default:
		// Channel full; dropping is preferable to blocking the producer.
		e.logger.Warn("send channel full, dropping text chunk")
		return nil
	}
}

// Flush signals end of input so the service renders any buffered text.
func (e *ElevenLabsStream) Flush() error {
	e.connMu.Lock()
	defer e.connMu.Unlock()

	if !e.connected || e.conn == nil {
		return ErrNotConnected
	}

	eos := map[string]interface{}{
		"text": "",
	}
	if err := e.conn.WriteJSON(eos); err != nil {
		return fmt.Errorf("tts: send EOS: %w", err)
	}

	return nil
}

// readLoop reads audio chunks from the WebSocket.
func (e *ElevenLabsStream) readLoop() {
	for {
		select {
		case <-e.ctx.Done():
			return
		case <-e.closeCh:
			return
		default:
		}

		e.connMu.Lock()
		conn := e.conn
		e.connMu.Unlock()

		if conn == nil {
			time.Sleep(100 * time.Millisecond)
			continue
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				e.logger.Error("websocket read error", "error", err)
				if e.OnError != nil {
					e.OnError(err)
				}
			}
			e.handleDisconnect()
			continue
		}

		var resp struct {
			Audio   string `json:"audio"`
			IsFinal bool   `json:"isFinal"`
		}
		if err := json.Unmarshal(message, &resp); err != nil {
			e.logger.Warn("failed to parse response", "error", err)
			continue
		}

		if resp.Audio != "" && e.OnAudio != nil {
			audio, err := base64.StdEncoding.DecodeString(resp.Audio)
			if err != nil {
				e.logger.Warn("failed to decode audio", "error", err)
				continue
			}
			e.OnAudio(audio)
		}
	}
}

// writeLoop sends queued text chunks.
func (e *ElevenLabsStream) writeLoop() {
	for {
		select {
		case <-e.ctx.Done():
			return
		case <-e.closeCh:
			return
		case text := <-e.sendCh:
			e.connMu.Lock()
			conn := e.conn
			connected := e.connected
			e.connMu.Unlock()

			if !connected || conn == nil {
				continue
			}

			msg := map[string]interface{}{
				"text": text,
			}
			if err := conn.WriteJSON(msg); err != nil {
				e.logger.Error("failed to send text", "error", err)
				if e.OnError != nil {
					e.OnError(err)
				}
				e.handleDisconnect()
			}
		}
	}
}

// keepaliveLoop sends periodic pings to hold the connection open.
func (e *ElevenLabsStream) keepaliveLoop() {
	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-e.closeCh:
			return
		case <-ticker.C:
			e.connMu.Lock()
			conn := e.conn
			connected := e.connected
			e.connMu.Unlock()

			if !connected || conn == nil {
				continue
			}

			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				e.logger.Warn("keepalive ping failed", "error", err)
				e.handleDisconnect()
			}
		}
	}
}

// handleDisconnect tears down a dead connection and starts one
// reconnection goroutine.
func (e *ElevenLabsStream) handleDisconnect() {
	e.connMu.Lock()
	if e.conn != nil {
		e.conn.Close()
		e.conn = nil
	}
	e.connected = false
	wasReconnecting := e.reconnecting
	e.reconnecting = true
	e.connMu.Unlock()

	if e.OnDisconnect != nil {
		e.OnDisconnect()
	}

	if !wasReconnecting {
		go e.reconnectLoop()
	}
}

// reconnectLoop redials with exponential backoff.
func (e *ElevenLabsStream) reconnectLoop() {
	delay := reconnectBaseDelay

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-e.closeCh:
			return
		default:
		}

		e.logger.Info("attempting to reconnect", "delay", delay)

		select {
		case <-time.After(delay):
		case <-e.closeCh:
			return
		case <-e.ctx.Done():
			return
		}

		if err := e.dial(); err != nil {
			e.logger.Error("reconnect failed", "error", err)
			delay *= 2
			if delay > reconnectMaxDelay {
				delay = reconnectMaxDelay
			}
			continue
		}

		e.connMu.Lock()
		e.reconnecting = false
		e.connMu.Unlock()
		e.logger.Info("reconnected")
		return
	}
}

// IsConnected reports whether the WebSocket is connected.
func (e *ElevenLabsStream) IsConnected() bool {
	e.connMu.Lock()
	defer e.connMu.Unlock()
	return e.connected
}

// Close terminates the WebSocket connection. Safe to call more than once.
func (e *ElevenLabsStream) Close() error {
	if e.cancel != nil {
		e.cancel()
	}

	e.closeOnce.Do(func() { close(e.closeCh) })

	e.connMu.Lock()
	defer e.connMu.Unlock()

	if e.conn != nil {
		e.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		e.conn.Close()
		e.conn = nil
	}
	e.connected = false

	return nil
}
