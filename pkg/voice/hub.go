package voice

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// clientConn is one upgraded WebSocket connection. Writes are
// serialized under the mutex; the read loop runs in handleConn.
type clientConn struct {
	session *Session
	ws      *websocket.Conn

	mu       sync.Mutex
	lastSeen time.Time
}

func (c *clientConn) write(msg *Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *clientConn) touch() {
	c.mu.Lock()
	c.lastSeen = time.Now()
	c.mu.Unlock()
}

// Hub upgrades WebSocket connections into voice sessions and tracks
// them for the lifetime of the connection.
type Hub struct {
	gw     Gateway
	config *Config
	logger *slog.Logger

	mu    sync.RWMutex
	conns map[string]*clientConn

	onConnect    func(sessionID string)
	onDisconnect func(sessionID string)

	messagesReceived atomic.Uint64
	messagesSent     atomic.Uint64
	sessionsTotal    atomic.Uint64
}

// NewHub creates a hub dispatching session turns to gw.
func NewHub(gw Gateway, opts ...Option) *Hub {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	return &Hub{
		gw:     gw,
		config: cfg,
		logger: cfg.Logger.With("component", "voice"),
		conns:  make(map[string]*clientConn),
	}
}

// OnConnect sets the callback invoked when a session starts.
func (h *Hub) OnConnect(callback func(sessionID string)) {
	h.mu.Lock()
	h.onConnect = callback
	h.mu.Unlock()
}

// OnDisconnect sets the callback invoked when a session ends.
func (h *Hub) OnDisconnect(callback func(sessionID string)) {
	h.mu.Lock()
	h.onDisconnect = callback
	h.mu.Unlock()
}

// RegisterRoutes registers the WebSocket routes on a Fiber app.
func (h *Hub) RegisterRoutes(app *fiber.App) {
	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/voice", websocket.New(h.handleConn))
}

// handleConn owns one connection: it registers a session, pumps frames
// into it, and unregisters on disconnect.
func (h *Hub) handleConn(ws *websocket.Conn) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	id := uuid.NewString()
	cc := &clientConn{ws: ws, lastSeen: time.Now()}
	cc.session = NewSession(id, h.gw, func(msg *Message) error {
		h.messagesSent.Add(1)
		return cc.write(msg)
	}, WithHistoryCap(h.config.HistoryCap), WithLogger(h.logger))

	h.mu.Lock()
	h.conns[id] = cc
	active := len(h.conns)
	h.mu.Unlock()
	h.sessionsTotal.Add(1)

	h.logger.Info("session connected", "session_id", id, "active", active)
	if cb := h.connectCallback(); cb != nil {
		cb(id)
	}

	defer func() {
		h.mu.Lock()
		delete(h.conns, id)
		active := len(h.conns)
		h.mu.Unlock()

		h.logger.Info("session disconnected",
			"session_id", id,
			"active", active,
			"turns", cc.session.Turns(),
		)
		if cb := h.disconnectCallback(); cb != nil {
			cb(id)
		}
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			h.logger.Debug("read loop ended", "session_id", id, "error", err)
			return
		}
		cc.touch()
		h.messagesReceived.Add(1)
		cc.session.Handle(ctx, data)
	}
}

func (h *Hub) connectCallback() func(string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.onConnect
}

func (h *Hub) disconnectCallback() func(string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.onDisconnect
}

// Session returns a live session by id, or nil.
func (h *Hub) Session(id string) *Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if cc, ok := h.conns[id]; ok {
		return cc.session
	}
	return nil
}

// SessionCount returns the number of live sessions.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// SessionInfo describes a live session.
type SessionInfo struct {
	ID        string    `json:"id"`
	Connected time.Time `json:"connected"`
	LastSeen  time.Time `json:"last_seen"`
	Turns     int       `json:"turns"`
}

// Sessions lists the live sessions.
func (h *Hub) Sessions() []SessionInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()

	infos := make([]SessionInfo, 0, len(h.conns))
	for _, cc := range h.conns {
		cc.mu.Lock()
		lastSeen := cc.lastSeen
		cc.mu.Unlock()
		infos = append(infos, SessionInfo{
			ID:        cc.session.ID(),
			Connected: cc.session.Connected(),
			LastSeen:  lastSeen,
			Turns:     cc.session.Turns(),
		})
	}
	return infos
}

// Stats contains hub counters.
type Stats struct {
	ActiveSessions   int    `json:"active_sessions"`
	TotalSessions    uint64 `json:"total_sessions"`
	MessagesReceived uint64 `json:"messages_received"`
	MessagesSent     uint64 `json:"messages_sent"`
}

// GetStats returns hub counters.
func (h *Hub) GetStats() Stats {
	return Stats{
		ActiveSessions:   h.SessionCount(),
		TotalSessions:    h.sessionsTotal.Load(),
		MessagesReceived: h.messagesReceived.Load(),
		MessagesSent:     h.messagesSent.Load(),
	}
}
