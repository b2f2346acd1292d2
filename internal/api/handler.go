// Package api provides HTTP handlers for the goalpath API.
//
//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/ashureev/goalpath/internal/goals"
	"github.com/ashureev/goalpath/internal/identity"
	"github.com/ashureev/goalpath/internal/store"
)

// SessionCounter reports how many tutor sessions are live.
type SessionCounter interface {
	Count() int
}

// Handler provides the REST endpoints and their shared dependencies.
type Handler struct {
	repo       store.Repository
	planner    *goals.Planner
	tokens     *identity.Tokens
	limiter    *RateLimiter
	sessions   SessionCounter
	bcryptCost int
	now        func() time.Time
}

// Options carries the Handler's dependencies.
type Options struct {
	Repo     store.Repository
	Planner  *goals.Planner
	Tokens   *identity.Tokens
	Limiter  *RateLimiter
	Sessions SessionCounter
}

// NewHandler creates a new Handler.
func NewHandler(opts Options) *Handler {
	return &Handler{
		repo:       opts.Repo,
		planner:    opts.Planner,
		tokens:     opts.Tokens,
		limiter:    opts.Limiter,
		sessions:   opts.Sessions,
		bcryptCost: bcrypt.DefaultCost,
		now:        time.Now,
	}
}

// envelope is the response shape of the goal and user endpoints.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to encode response", "error", err)
	}
}

// Error writes a failed envelope.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, envelope{Success: false, Message: message})
}

// OK writes a successful envelope.
func OK(w http.ResponseWriter, status int, message string, data any) {
	JSON(w, status, envelope{Success: true, Message: message, Data: data})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	return json.NewDecoder(r.Body).Decode(v)
}
