package realtime

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/ashureev/goalpath/internal/session"
)

// Default idle reaper settings.
const (
	DefaultIdleTTL      = 30 * time.Minute
	DefaultReapInterval = 5 * time.Minute
)

// Closer closes a connection by id and reports connections that have been
// silent at the transport level.
type Closer interface {
	CloseConn(connID, reason string) bool
	IdleSince(cutoff time.Time) []string
}

// StartReaper runs a background goroutine that periodically closes
// connections that have been idle for longer than ttl. Idle means the session
// row has seen no activity, or the socket has sent no frame at all. Closing
// goes through the normal disconnect path, which removes the session row.
func StartReaper(ctx context.Context, registry *session.Registry, closer Closer, ttl, interval time.Duration) {
	if ttl <= 0 {
		ttl = DefaultIdleTTL
	}
	if interval <= 0 {
		interval = DefaultReapInterval
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Idle session reaper started", "interval", interval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				reapIdle(registry, closer, ttl, time.Now())
			case <-ctx.Done():
				slog.Info("Idle session reaper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func reapIdle(registry *session.Registry, closer Closer, ttl time.Duration, now time.Time) int {
	cutoff := now.Add(-ttl)
	idle := registry.IdleSince(cutoff)
	for _, id := range closer.IdleSince(cutoff) {
		if !slices.Contains(idle, id) {
			idle = append(idle, id)
		}
	}
	if len(idle) == 0 {
		return 0
	}

	slog.Info("Reaper found idle sessions", "count", len(idle))

	closed := 0
	for _, id := range idle {
		if closer.CloseConn(id, "idle timeout") {
			closed++
			continue
		}
		// No live connection behind the row; drop it directly.
		if registry.Remove(id) {
			slog.Warn("Reaper removed orphaned session", "conn_id", id)
		}
	}

	slog.Info("Reaper cleanup completed", "closed", closed)
	return closed
}
