// Package storage holds the repository contracts and their Postgres and
// SQLite implementations. Repositories translate rows to domain values and
// nothing more: transactions are opened, committed, and rolled back by the
// service layer, which passes them in.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/EQSP-Task-Manager/backend-draft/internal/models"
)

var (
	ErrEmailTaken   = errors.New("email already registered")
	ErrUserNotFound = errors.New("user not found")
)

// Repository is the task and revision store, scoped to one user per call.
// Every method runs against the supplied transaction.
type Repository interface {
	// GetTasks returns the user's tasks ordered by created_at, then id.
	GetTasks(ctx context.Context, tx *sql.Tx, userID string) ([]models.Task, error)

	// AddTask inserts one task. Returns apperrors.ConflictError if the id
	// already exists for this user.
	AddTask(ctx context.Context, tx *sql.Tx, userID string, task models.Task) error

	// AddTasks inserts a batch. Any failure leaves the transaction poisoned
	// for the caller to roll back, so the batch is all-or-nothing.
	AddTasks(ctx context.Context, tx *sql.Tx, userID string, tasks []models.Task) error

	// UpdateTask overwrites the task with the same id. Reports whether a
	// row existed.
	UpdateTask(ctx context.Context, tx *sql.Tx, userID string, task models.Task) (bool, error)

	// DeleteTask removes one task by id. Reports whether a row existed.
	DeleteTask(ctx context.Context, tx *sql.Tx, userID string, id uuid.UUID) (bool, error)

	// DeleteTasks removes every task for the user and returns the count.
	DeleteTasks(ctx context.Context, tx *sql.Tx, userID string) (int64, error)

	// GetRevision returns the user's revision, or 0 if the user has none.
	GetRevision(ctx context.Context, tx *sql.Tx, userID string) (int64, error)

	// GetRevisionForUpdate reads the revision while taking the write lock
	// that serializes concurrent check-and-replace attempts for this user.
	// The row must exist (see SetInitRevision), otherwise there is nothing
	// to lock.
	GetRevisionForUpdate(ctx context.Context, tx *sql.Tx, userID string) (int64, error)

	// SetInitRevision creates the revision row at 0 if the user has none.
	// Idempotent.
	SetInitRevision(ctx context.Context, tx *sql.Tx, userID string) error

	// IncrementRevision bumps the counter by one. Must run in the same
	// transaction as the data mutation it versions.
	IncrementRevision(ctx context.Context, tx *sql.Tx, userID string) error
}

// UserDirectory is the account store behind the auth endpoints. It lives
// outside the sync protocol, so its methods run in implicit single-statement
// transactions.
type UserDirectory interface {
	// CreateUser registers an account. Returns ErrEmailTaken on a duplicate
	// email.
	CreateUser(ctx context.Context, db *sql.DB, email, passwordHash string) (models.User, error)

	// UserByEmail returns the account for an email, or ErrUserNotFound.
	UserByEmail(ctx context.Context, db *sql.DB, email string) (models.User, error)
}

// Backend bundles an opened connection pool with the repository that speaks
// its dialect.
type Backend struct {
	DB    *sql.DB
	Tasks Repository
	Users UserDirectory
}

// Open connects to the store named by dsn and initializes the schema.
// postgres:// and postgresql:// URLs select the Postgres backend; anything
// else is treated as a SQLite path or DSN.
func Open(dsn string) (*Backend, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return OpenPostgres(dsn)
	}
	return OpenSQLite(dsn)
}
