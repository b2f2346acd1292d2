// Package session keeps the per-connection state of realtime tutor sessions.
package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/goalpath/internal/domain"
)

// Fields is a partial update. Nil fields leave the stored value untouched.
type Fields struct {
	SessionID    *string
	GoalID       *string
	CurrentWeek  *string
	LastActivity *time.Time
}

// String returns a pointer to s, for building Fields.
func String(s string) *string { return &s }

// Time returns a pointer to t, for building Fields.
func Time(t time.Time) *time.Time { return &t }

// Registry maps connection ids to session state.
type Registry struct {
	mu     sync.RWMutex
	active map[string]domain.TutorSession
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		active: make(map[string]domain.TutorSession),
	}
}

// Upsert creates the row for connID if needed and overwrites every supplied field.
func (r *Registry) Upsert(connID string, f Fields) domain.TutorSession {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, exists := r.active[connID]
	if !exists {
		s = domain.TutorSession{ConnectionID: connID}
	}
	if f.SessionID != nil {
		s.SessionID = *f.SessionID
	}
	if f.GoalID != nil {
		s.GoalID = *f.GoalID
	}
	if f.CurrentWeek != nil {
		s.CurrentWeek = *f.CurrentWeek
	}
	if f.LastActivity != nil {
		s.LastActivity = *f.LastActivity
	}
	r.active[connID] = s

	if !exists {
		slog.Debug("Tutor session created", "conn_id", connID, "session_id", s.SessionID)
	}
	return s
}

// Get returns the session for connID.
func (r *Registry) Get(connID string) (domain.TutorSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.active[connID]
	return s, ok
}

// Remove deletes the session for connID and reports whether it existed.
func (r *Registry) Remove(connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.active[connID]
	if !ok {
		return false
	}
	delete(r.active, connID)
	slog.Debug("Tutor session removed", "conn_id", connID, "session_id", s.SessionID)
	return true
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.active)
}

// IdleSince returns the connection ids whose last activity is before cutoff.
func (r *Registry) IdleSince(cutoff time.Time) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []string
	for id, s := range r.active {
		if s.LastActivity.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids
}
