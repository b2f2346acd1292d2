package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/goalpath/internal/domain"
	"github.com/ashureev/goalpath/internal/shared"
	_ "modernc.org/sqlite"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db      *sql.DB
	writeMu sync.Mutex // serializes roadmap transactions to avoid SQLITE_BUSY
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE COLLATE NOCASE,
		password_hash TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS goals (
		goal_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		duration TEXT NOT NULL DEFAULT '',
		complexity TEXT NOT NULL DEFAULT '',
		progress INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_goals_user ON goals(user_id, created_at);

	CREATE TABLE IF NOT EXISTS weeks (
		week_id TEXT PRIMARY KEY,
		goal_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		week INTEGER NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		completed INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_weeks_goal ON weeks(goal_id, position);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// CreateUser inserts a new user.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *domain.User) error {
	query := `
	INSERT INTO users (user_id, name, email, password_hash, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)`

	err := shared.RetryOnConflict(ctx, "create user", func() error {
		_, err := s.db.ExecContext(ctx, query,
			user.UserID, user.Name, strings.ToLower(user.Email), user.PasswordHash,
			user.CreatedAt.UnixMilli(), user.UpdatedAt.UnixMilli(),
		)
		return err
	})
	if shared.IsSQLiteUniqueError(err) {
		return ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by ID.
func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	return s.getUser(ctx, `WHERE user_id = ?`, userID)
}

// GetUserByEmail retrieves a user by email.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.getUser(ctx, `WHERE email = ?`, strings.ToLower(strings.TrimSpace(email)))
}

func (s *SQLiteStore) getUser(ctx context.Context, where string, arg string) (*domain.User, error) {
	query := `
		SELECT user_id, name, email, password_hash, created_at, updated_at
		FROM users ` + where

	var user domain.User
	var createdAt, updatedAt int64
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&user.UserID, &user.Name, &user.Email, &user.PasswordHash, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}

	user.CreatedAt = time.UnixMilli(createdAt)
	user.UpdatedAt = time.UnixMilli(updatedAt)
	return &user, nil
}

// CreateGoal inserts a goal with its roadmap.
func (s *SQLiteStore) CreateGoal(ctx context.Context, goal *domain.Goal) error {
	return s.inTx(ctx, "create goal", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO goals (goal_id, user_id, title, duration, complexity, progress, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			goal.ID, goal.UserID, goal.Title, goal.Duration, string(goal.Complexity), goal.Progress,
			goal.CreatedAt.UnixMilli(), goal.UpdatedAt.UnixMilli(),
		)
		if err != nil {
			return fmt.Errorf("insert goal: %w", err)
		}
		return insertWeeks(ctx, tx, goal.ID, goal.Roadmap)
	})
}

// ListGoals returns a user's goals, newest first.
func (s *SQLiteStore) ListGoals(ctx context.Context, userID string) ([]*domain.Goal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT goal_id, user_id, title, duration, complexity, progress, created_at, updated_at
		FROM goals WHERE user_id = ? ORDER BY created_at DESC, rowid DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query goals: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close goal rows", "error", closeErr)
		}
	}()

	goals := []*domain.Goal{}
	for rows.Next() {
		goal, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan goal row: %w", err)
		}
		goals = append(goals, goal)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate goals: %w", err)
	}

	for _, goal := range goals {
		if goal.Roadmap, err = loadWeeks(ctx, s.db, goal.ID); err != nil {
			return nil, err
		}
	}
	return goals, nil
}

// GetGoal returns one goal owned by userID.
func (s *SQLiteStore) GetGoal(ctx context.Context, userID, goalID string) (*domain.Goal, error) {
	return loadGoal(ctx, s.db, userID, goalID)
}

// UpdateGoal overwrites the goal's fields and replaces its roadmap.
func (s *SQLiteStore) UpdateGoal(ctx context.Context, goal *domain.Goal) error {
	return s.inTx(ctx, "update goal", func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE goals SET title = ?, duration = ?, complexity = ?, progress = ?, updated_at = ?
			WHERE goal_id = ? AND user_id = ?`,
			goal.Title, goal.Duration, string(goal.Complexity), goal.Progress, goal.UpdatedAt.UnixMilli(),
			goal.ID, goal.UserID,
		)
		if err != nil {
			return fmt.Errorf("update goal: %w", err)
		}
		if err := expectRow(result); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM weeks WHERE goal_id = ?`, goal.ID); err != nil {
			return fmt.Errorf("clear weeks: %w", err)
		}
		return insertWeeks(ctx, tx, goal.ID, goal.Roadmap)
	})
}

// SetWeekCompleted updates one week and recomputes the goal's progress.
func (s *SQLiteStore) SetWeekCompleted(ctx context.Context, userID, goalID, weekID string, completed bool) (*domain.Goal, error) {
	var goal *domain.Goal
	err := s.inTx(ctx, "set week completed", func(tx *sql.Tx) error {
		g, err := loadGoal(ctx, tx, userID, goalID)
		if err != nil {
			return err
		}
		i := g.FindWeek(weekID)
		if i < 0 {
			return ErrNotFound
		}

		g.Roadmap[i].Completed = completed
		g.RecomputeProgress()
		g.UpdatedAt = time.Now()

		if _, err := tx.ExecContext(ctx, `UPDATE weeks SET completed = ? WHERE week_id = ? AND goal_id = ?`,
			completed, weekID, goalID); err != nil {
			return fmt.Errorf("update week: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE goals SET progress = ?, updated_at = ? WHERE goal_id = ?`,
			g.Progress, g.UpdatedAt.UnixMilli(), goalID); err != nil {
			return fmt.Errorf("update progress: %w", err)
		}
		goal = g
		return nil
	})
	if err != nil {
		return nil, err
	}
	return goal, nil
}

// DeleteGoal removes a goal and its roadmap.
func (s *SQLiteStore) DeleteGoal(ctx context.Context, userID, goalID string) error {
	return s.inTx(ctx, "delete goal", func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM goals WHERE goal_id = ? AND user_id = ?`, goalID, userID)
		if err != nil {
			return fmt.Errorf("delete goal: %w", err)
		}
		if err := expectRow(result); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM weeks WHERE goal_id = ?`, goalID); err != nil {
			return fmt.Errorf("delete weeks: %w", err)
		}
		return nil
	})
}

// inTx runs fn in a transaction, retrying the whole transaction on SQLITE_BUSY.
func (s *SQLiteStore) inTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return shared.RetryOnConflict(ctx, op, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		if err := fn(tx); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				slog.Warn("failed to roll back transaction", "op", op, "error", rbErr)
			}
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit transaction: %w", err)
		}
		return nil
	})
}

func expectRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGoal(row rowScanner) (*domain.Goal, error) {
	var goal domain.Goal
	var complexity string
	var createdAt, updatedAt int64
	if err := row.Scan(
		&goal.ID, &goal.UserID, &goal.Title, &goal.Duration, &complexity,
		&goal.Progress, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}
	goal.Complexity = domain.Complexity(complexity)
	goal.CreatedAt = time.UnixMilli(createdAt)
	goal.UpdatedAt = time.UnixMilli(updatedAt)
	return &goal, nil
}

func loadGoal(ctx context.Context, q querier, userID, goalID string) (*domain.Goal, error) {
	row := q.QueryRowContext(ctx, `
		SELECT goal_id, user_id, title, duration, complexity, progress, created_at, updated_at
		FROM goals WHERE goal_id = ? AND user_id = ?`, goalID, userID)

	goal, err := scanGoal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan goal row: %w", err)
	}

	if goal.Roadmap, err = loadWeeks(ctx, q, goal.ID); err != nil {
		return nil, err
	}
	return goal, nil
}

func loadWeeks(ctx context.Context, q querier, goalID string) ([]domain.Week, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT week_id, week, title, description, completed
		FROM weeks WHERE goal_id = ? ORDER BY position`, goalID)
	if err != nil {
		return nil, fmt.Errorf("query weeks: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close week rows", "error", closeErr)
		}
	}()

	weeks := []domain.Week{}
	for rows.Next() {
		var w domain.Week
		if err := rows.Scan(&w.ID, &w.Week, &w.Title, &w.Description, &w.Completed); err != nil {
			return nil, fmt.Errorf("scan week row: %w", err)
		}
		weeks = append(weeks, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate weeks: %w", err)
	}
	return weeks, nil
}

func insertWeeks(ctx context.Context, tx *sql.Tx, goalID string, weeks []domain.Week) error {
	for i, w := range weeks {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO weeks (week_id, goal_id, position, week, title, description, completed)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			w.ID, goalID, i, w.Week, w.Title, w.Description, w.Completed,
		); err != nil {
			return fmt.Errorf("insert week %d: %w", i, err)
		}
	}
	return nil
}
