// Package client is the consuming side of the tutor websocket: it connects,
// keeps the connection alive, sends chat/typing/help events and hands
// responses to registered callbacks.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/ashureev/goalpath/internal/realtime"
	"github.com/ashureev/goalpath/internal/tutor"
)

var (
	// ErrNotConnected is returned by send operations while no connection is up.
	ErrNotConnected = errors.New("tutor client not connected")
	// ErrAlreadyConnected is returned by Connect while a connection is up or being dialed.
	ErrAlreadyConnected = errors.New("tutor client already connected")
)

// Status is the connection state surfaced to callers.
type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
)

// Message is an outgoing chat message. Empty optional fields are omitted.
type Message struct {
	Text        string
	UserID      string
	GoalID      string
	CurrentWeek string
	MessageType string
}

// Options configures a Client. Zero values pick defaults.
type Options struct {
	Store     SessionStore
	Header    http.Header // sent on every handshake, e.g. Authorization
	RedialMin time.Duration
	RedialMax time.Duration
	Logger    *slog.Logger
}

// Client is the tutor session facade.
type Client struct {
	store  SessionStore
	opts   Options
	logger *slog.Logger

	mu         sync.RWMutex
	sessionID  string
	connected  bool
	dialing    bool
	t          *redialer
	cancel     context.CancelFunc
	done       chan struct{}
	onResponse []func(tutor.Response)
	onTyping   []func(bool)
	onStatus   []func(Status)
}

// New creates a disconnected client.
func New(opts Options) *Client {
	if opts.Store == nil {
		opts.Store = &MemoryStore{}
	}
	if opts.RedialMin <= 0 {
		opts.RedialMin = defaultRedialMin
	}
	if opts.RedialMax < opts.RedialMin {
		opts.RedialMax = max(defaultRedialMax, opts.RedialMin)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Client{store: opts.Store, opts: opts, logger: opts.Logger}
}

// Connect dials url and returns once the first handshake succeeds, or with
// the dial error. Later drops are retried in the background.
func (c *Client) Connect(ctx context.Context, url string) error {
	c.mu.Lock()
	if c.t != nil || c.dialing {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.dialing = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.dialing = false
		c.mu.Unlock()
	}()

	t := &redialer{
		url:       url,
		header:    c.opts.Header,
		redialMin: c.opts.RedialMin,
		redialMax: c.opts.RedialMax,
		logger:    c.logger,
		onFrame:   c.dispatch,
		onStatus:  c.setStatus,
	}

	c.setStatus(StatusConnecting)
	conn, err := t.dial(ctx)
	if err != nil {
		c.setStatus(StatusDisconnected)
		return fmt.Errorf("connect to tutor: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	t.setConn(conn)

	c.mu.Lock()
	c.t = t
	c.cancel = cancel
	c.done = done
	c.mu.Unlock()

	c.setStatus(StatusConnected)
	go func() {
		defer close(done)
		t.run(runCtx, conn)
	}()
	return nil
}

// Disconnect closes the connection and stops reconnecting.
func (c *Client) Disconnect() {
	c.mu.Lock()
	t, cancel, done := c.t, c.cancel, c.done
	c.t, c.cancel, c.done = nil, nil, nil
	c.mu.Unlock()
	if t == nil {
		return
	}

	t.close()
	cancel()
	<-done
	c.setStatus(StatusDisconnected)
}

// Connected reports whether a connection is currently up.
func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// SessionID returns the client session id, creating and persisting it on
// first use.
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessionID != "" {
		return c.sessionID
	}

	id, err := c.store.Load()
	if err != nil {
		c.logger.Warn("Failed to load session id", "error", err)
	}
	if id == "" {
		id = NewSessionID(time.Now())
		if err := c.store.Save(id); err != nil {
			c.logger.Warn("Failed to persist session id", "error", err)
		}
	}
	c.sessionID = id
	return id
}

// SendMessage sends a chat message as ai_tutor_message.
func (c *Client) SendMessage(ctx context.Context, m Message) error {
	msg := realtime.ChatMessage{
		Text:        m.Text,
		UserID:      m.UserID,
		GoalID:      optional(m.GoalID),
		CurrentWeek: optional(m.CurrentWeek),
		MessageType: m.MessageType,
		Timestamp:   tutor.FormatTimestamp(time.Now()),
		SessionID:   c.SessionID(),
	}
	return c.send(ctx, realtime.EventTutorMessage, msg)
}

// SendTypingIndicator tells the server whether the user is typing.
func (c *Client) SendTypingIndicator(ctx context.Context, isTyping bool) error {
	return c.send(ctx, realtime.EventUserTyping, realtime.TypingSignal{
		IsTyping:  isTyping,
		SessionID: c.SessionID(),
	})
}

// RequestHelp asks for theory, practice or example content on topic.
func (c *Client) RequestHelp(ctx context.Context, topic string, helpType tutor.Intent) error {
	return c.send(ctx, realtime.EventRequestHelp, realtime.HelpRequest{
		Topic:     topic,
		HelpType:  string(helpType),
		SessionID: c.SessionID(),
		Timestamp: tutor.FormatTimestamp(time.Now()),
	})
}

// OnResponse registers a callback for tutor responses.
func (c *Client) OnResponse(fn func(tutor.Response)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onResponse = append(c.onResponse, fn)
}

// OnTyping registers a callback for the tutor's typing indicator.
func (c *Client) OnTyping(fn func(bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onTyping = append(c.onTyping, fn)
}

// OnStatusChange registers a callback for connection status transitions.
func (c *Client) OnStatusChange(fn func(Status)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onStatus = append(c.onStatus, fn)
}

func (c *Client) send(ctx context.Context, event string, payload any) error {
	c.mu.RLock()
	t, connected := c.t, c.connected
	c.mu.RUnlock()
	if t == nil || !connected {
		return ErrNotConnected
	}
	return t.write(ctx, event, payload)
}

func (c *Client) setStatus(s Status) {
	c.mu.Lock()
	c.connected = s == StatusConnected
	callbacks := append([]func(Status){}, c.onStatus...)
	c.mu.Unlock()

	for _, fn := range callbacks {
		fn(s)
	}
}

// dispatch runs on the read goroutine.
func (c *Client) dispatch(env realtime.Envelope) {
	switch env.Event {
	case realtime.EventTutorResponse:
		var resp tutor.Response
		if err := json.Unmarshal(env.Data, &resp); err != nil {
			c.logger.Warn("Dropping malformed tutor response", "error", err)
			return
		}
		c.mu.RLock()
		callbacks := append([]func(tutor.Response){}, c.onResponse...)
		c.mu.RUnlock()
		for _, fn := range callbacks {
			fn(resp)
		}
	case realtime.EventTyping:
		var typing bool
		if err := json.Unmarshal(env.Data, &typing); err != nil {
			c.logger.Warn("Dropping malformed typing event", "error", err)
			return
		}
		c.mu.RLock()
		callbacks := append([]func(bool){}, c.onTyping...)
		c.mu.RUnlock()
		for _, fn := range callbacks {
			fn(typing)
		}
	default:
		c.logger.Debug("Ignoring tutor event", "event", env.Event)
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
