package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
)

const defaultWriteTimeout = 10 * time.Second

// wsConn adapts a websocket connection to Conn.
type wsConn struct {
	id        string
	ws        *websocket.Conn
	done      chan struct{}
	closeOnce sync.Once
	timeout   time.Duration
	lastRead  atomic.Int64 // unix nanos of the last inbound frame, or of accept
}

func (c *wsConn) ID() string { return c.id }

func (c *wsConn) Done() <-chan struct{} { return c.done }

// Emit writes one envelope. The websocket library serializes concurrent writers.
func (c *wsConn) Emit(ctx context.Context, event string, payload any) error {
	env, err := NewEnvelope(event, payload)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return wsjson.Write(ctx, c.ws, env)
}

func (c *wsConn) touch(t time.Time) { c.lastRead.Store(t.UnixNano()) }

func (c *wsConn) markClosed() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Hub accepts tutor websocket connections and feeds their events to a Router.
type Hub struct {
	router        *Router
	allowedOrigin string
	isDev         bool

	mu    sync.RWMutex
	conns map[string]*wsConn
}

// NewHub creates a hub. allowedOrigin restricts browser origins outside dev mode.
func NewHub(router *Router, allowedOrigin string, isDev bool) *Hub {
	return &Hub{
		router:        router,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
		conns:         make(map[string]*wsConn),
	}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "ip", r.RemoteAddr)
		return
	}

	conn := &wsConn{
		id:      uuid.NewString(),
		ws:      ws,
		done:    make(chan struct{}),
		timeout: defaultWriteTimeout,
	}
	conn.touch(time.Now())
	h.register(conn)
	slog.Info("Tutor client connected", "conn_id", conn.id, "ip", r.RemoteAddr)

	ctx, cancel := context.WithCancel(r.Context())
	defer func() {
		cancel()
		conn.markClosed()
		h.unregister(conn)
		h.router.Disconnect(conn)
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "conn_id", conn.id)
		}
		slog.Info("Tutor client disconnected", "conn_id", conn.id)
	}()

	h.readLoop(ctx, conn)
}

func (h *Hub) readLoop(ctx context.Context, conn *wsConn) {
	for {
		_, message, err := conn.ws.Read(ctx)
		if err != nil {
			switch {
			case websocket.CloseStatus(err) != -1:
				slog.Debug("WebSocket closed by client", "conn_id", conn.id)
			case errors.Is(err, context.Canceled):
				slog.Debug("WebSocket read cancelled", "conn_id", conn.id)
			default:
				slog.Warn("WebSocket read error", "error", err, "conn_id", conn.id)
			}
			return
		}
		conn.touch(time.Now())

		var env Envelope
		if err := json.Unmarshal(message, &env); err != nil || env.Event == "" {
			if err == nil {
				err = errors.New("frame has no event name")
			}
			go h.router.Reject(ctx, conn, err)
			continue
		}

		go h.router.Handle(ctx, conn, env)
	}
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *Hub) register(c *wsConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c.id] = c
}

func (h *Hub) unregister(c *wsConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, c.id)
}

func (h *Hub) snapshot() []*wsConn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*wsConn, 0, len(h.conns))
	for _, c := range h.conns {
		out = append(out, c)
	}
	return out
}

// Connections returns the number of open websocket connections.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// IdleSince returns the ids of open connections that have not sent a frame
// since cutoff. It covers sockets that never produced a session row.
func (h *Hub) IdleSince(cutoff time.Time) []string {
	limit := cutoff.UnixNano()
	var ids []string
	for _, c := range h.snapshot() {
		if c.lastRead.Load() < limit {
			ids = append(ids, c.id)
		}
	}
	return ids
}

// Broadcast sends event to every open connection and returns how many
// writes succeeded.
func (h *Hub) Broadcast(ctx context.Context, event string, payload any) int {
	sent := 0
	for _, c := range h.snapshot() {
		if err := c.Emit(ctx, event, payload); err != nil {
			slog.Debug("Broadcast write failed", "conn_id", c.id, "error", err)
			continue
		}
		sent++
	}
	return sent
}

// CloseConn closes the connection with the given id. The read loop then runs
// the usual disconnect path.
func (h *Hub) CloseConn(connID, reason string) bool {
	h.mu.RLock()
	c, ok := h.conns[connID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	c.markClosed()
	// Close waits for the peer's close frame; don't hold the caller.
	go func() {
		if err := c.ws.Close(websocket.StatusGoingAway, reason); err != nil {
			slog.Debug("Failed to close websocket", "error", err, "conn_id", connID)
		}
	}()
	return true
}

// Shutdown closes every open connection.
func (h *Hub) Shutdown() {
	for _, c := range h.snapshot() {
		h.CloseConn(c.id, "server shutting down")
	}
}
