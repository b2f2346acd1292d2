package client

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/ashureev/goalpath/internal/realtime"
)

const (
	defaultRedialMin   = 500 * time.Millisecond
	defaultRedialMax   = 10 * time.Second
	defaultDialTimeout = 20 * time.Second
	writeTimeout       = 10 * time.Second
)

// redialer owns one websocket at a time and re-dials with exponential
// backoff whenever the connection drops.
type redialer struct {
	url       string
	header    http.Header
	redialMin time.Duration
	redialMax time.Duration
	logger    *slog.Logger

	onFrame  func(realtime.Envelope)
	onStatus func(Status)

	closing atomic.Bool
	mu      sync.Mutex
	conn    *websocket.Conn
}

func (t *redialer) dial(ctx context.Context) (*websocket.Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultDialTimeout)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, t.url, &websocket.DialOptions{HTTPHeader: t.header})
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (t *redialer) setConn(c *websocket.Conn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.conn = c
}

func (t *redialer) current() *websocket.Conn {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn
}

// run reads from conn until ctx ends, re-dialing after every drop.
func (t *redialer) run(ctx context.Context, conn *websocket.Conn) {
	for {
		t.setConn(conn)
		t.readLoop(ctx, conn)
		t.setConn(nil)
		_ = conn.CloseNow()

		if ctx.Err() != nil || t.closing.Load() {
			return
		}
		t.onStatus(StatusDisconnected)

		conn = t.redial(ctx)
		if conn == nil {
			return
		}
		t.onStatus(StatusConnected)
	}
}

func (t *redialer) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var env realtime.Envelope
		if err := wsjson.Read(ctx, conn, &env); err != nil {
			if ctx.Err() == nil {
				t.logger.Debug("Tutor connection dropped", "error", err)
			}
			return
		}
		t.onFrame(env)
	}
}

// redial blocks until a new connection is up or ctx ends (nil).
func (t *redialer) redial(ctx context.Context) *websocket.Conn {
	delay := t.redialMin
	for {
		t.onStatus(StatusConnecting)
		conn, err := t.dial(ctx)
		if err == nil {
			if t.closing.Load() {
				_ = conn.CloseNow()
				return nil
			}
			return conn
		}
		t.logger.Debug("Reconnect failed", "error", err, "retry_in", delay)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		delay = min(delay*2, t.redialMax)
	}
}

func (t *redialer) write(ctx context.Context, event string, payload any) error {
	conn := t.current()
	if conn == nil {
		return ErrNotConnected
	}
	env, err := realtime.NewEnvelope(event, payload)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := wsjson.Write(ctx, conn, env); err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return errors.Join(ErrNotConnected, err)
	}
	return nil
}

func (t *redialer) close() {
	t.closing.Store(true)
	if conn := t.current(); conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "client disconnect")
	}
}
