// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"

	"github.com/ashureev/goalpath/internal/domain"
)

var (
	// ErrNotFound is returned when a record does not exist or belongs to another user.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateEmail is returned when signing up with a registered email.
	ErrDuplicateEmail = errors.New("email already registered")
)

// Repository defines the interface for persisting users and goals.
type Repository interface {
	// CreateUser inserts a new user. Returns ErrDuplicateEmail on conflict.
	CreateUser(ctx context.Context, user *domain.User) error

	// GetUser retrieves a user by ID.
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// GetUserByEmail retrieves a user by email (case-insensitive).
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)

	// CreateGoal inserts a goal with its roadmap.
	CreateGoal(ctx context.Context, goal *domain.Goal) error

	// ListGoals returns a user's goals, newest first.
	ListGoals(ctx context.Context, userID string) ([]*domain.Goal, error)

	// GetGoal returns one goal owned by userID.
	GetGoal(ctx context.Context, userID, goalID string) (*domain.Goal, error)

	// UpdateGoal overwrites the goal's fields and replaces its roadmap.
	UpdateGoal(ctx context.Context, goal *domain.Goal) error

	// SetWeekCompleted updates one week and recomputes the goal's progress.
	SetWeekCompleted(ctx context.Context, userID, goalID, weekID string, completed bool) (*domain.Goal, error)

	// DeleteGoal removes a goal and its roadmap.
	DeleteGoal(ctx context.Context, userID, goalID string) error

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
