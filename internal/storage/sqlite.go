package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/EQSP-Task-Manager/backend-draft/internal/apperrors"
	"github.com/EQSP-Task-Manager/backend-draft/internal/models"
)

//go:embed schema_sqlite.sql
var sqliteSchema string

// OpenSQLite opens (creating if needed) a SQLite database and ensures the
// schema. _txlock=immediate makes every transaction take the write lock at
// BEGIN: SQLite has no row-level locks, so this is what serializes the
// revision check-and-increment between concurrent writers.
func OpenSQLite(path string) (*Backend, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?"
	} else {
		dsn += "&"
	}
	dsn += "_txlock=immediate&_busy_timeout=5000&_foreign_keys=on"

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init sqlite schema: %w", err)
	}
	repo := &sqliteRepository{}
	return &Backend{DB: db, Tasks: repo, Users: repo}, nil
}

// sqliteRepository stores timestamps as unix seconds and tags as a JSON
// array, since SQLite has neither a timestamp nor an array type.
type sqliteRepository struct{}

// isConstraintViolation matches duplicate-key failures only: another
// constraint class (not-null, check) must not masquerade as a conflict.
func isConstraintViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	raw, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("encode tags: %w", err)
	}
	return string(raw), nil
}

func (r *sqliteRepository) GetTasks(ctx context.Context, tx *sql.Tx, userID string) ([]models.Task, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, title, description, done, tags, created_at, changed_at, importance, deadline, color
		FROM tasks
		WHERE user_id = ?
		ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("select tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]models.Task, 0)
	for rows.Next() {
		var (
			t         models.Task
			id        string
			rawTags   string
			createdAt int64
			changedAt int64
			deadline  sql.NullInt64
			color     sql.NullString
		)
		err = rows.Scan(&id, &t.Title, &t.Description, &t.Done, &rawTags,
			&createdAt, &changedAt, &t.Importance, &deadline, &color)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		t.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("parse task id %q: %w", id, err)
		}
		if err := json.Unmarshal([]byte(rawTags), &t.Tags); err != nil {
			return nil, fmt.Errorf("decode tags: %w", err)
		}
		if t.Tags == nil {
			t.Tags = []string{}
		}
		t.CreatedAt = models.NewTime(time.Unix(createdAt, 0).UTC())
		t.ChangedAt = models.NewTime(time.Unix(changedAt, 0).UTC())
		if deadline.Valid {
			d := models.NewTime(time.Unix(deadline.Int64, 0).UTC())
			t.Deadline = &d
		}
		if color.Valid {
			t.Color = &color.String
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return tasks, nil
}

func (r *sqliteRepository) AddTask(ctx context.Context, tx *sql.Tx, userID string, task models.Task) error {
	rawTags, err := encodeTags(task.Tags)
	if err != nil {
		return err
	}
	var deadline sql.NullInt64
	if task.Deadline != nil {
		deadline = sql.NullInt64{Int64: task.Deadline.Unix(), Valid: true}
	}
	var color sql.NullString
	if task.Color != nil {
		color = sql.NullString{String: *task.Color, Valid: true}
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO tasks (user_id, id, title, description, done, tags, created_at, changed_at, importance, deadline, color)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		userID, task.ID.String(), task.Title, task.Description, task.Done, rawTags,
		task.CreatedAt.Unix(), task.ChangedAt.Unix(), string(task.Importance), deadline, color)
	if isConstraintViolation(err) {
		return apperrors.ConflictError{TaskID: task.ID}
	}
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func (r *sqliteRepository) AddTasks(ctx context.Context, tx *sql.Tx, userID string, tasks []models.Task) error {
	for _, task := range tasks {
		if err := r.AddTask(ctx, tx, userID, task); err != nil {
			return err
		}
	}
	return nil
}

func (r *sqliteRepository) UpdateTask(ctx context.Context, tx *sql.Tx, userID string, task models.Task) (bool, error) {
	rawTags, err := encodeTags(task.Tags)
	if err != nil {
		return false, err
	}
	var deadline sql.NullInt64
	if task.Deadline != nil {
		deadline = sql.NullInt64{Int64: task.Deadline.Unix(), Valid: true}
	}
	var color sql.NullString
	if task.Color != nil {
		color = sql.NullString{String: *task.Color, Valid: true}
	}
	result, err := tx.ExecContext(ctx, `
		UPDATE tasks
		SET title = ?, description = ?, done = ?, tags = ?, created_at = ?,
		    changed_at = ?, importance = ?, deadline = ?, color = ?
		WHERE user_id = ? AND id = ?`,
		task.Title, task.Description, task.Done, rawTags, task.CreatedAt.Unix(),
		task.ChangedAt.Unix(), string(task.Importance), deadline, color, userID, task.ID.String())
	if err != nil {
		return false, fmt.Errorf("update task: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update task: %w", err)
	}
	return affected > 0, nil
}

func (r *sqliteRepository) DeleteTask(ctx context.Context, tx *sql.Tx, userID string, id uuid.UUID) (bool, error) {
	result, err := tx.ExecContext(ctx, "DELETE FROM tasks WHERE user_id = ? AND id = ?", userID, id.String())
	if err != nil {
		return false, fmt.Errorf("delete task: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete task: %w", err)
	}
	return affected > 0, nil
}

func (r *sqliteRepository) DeleteTasks(ctx context.Context, tx *sql.Tx, userID string) (int64, error) {
	result, err := tx.ExecContext(ctx, "DELETE FROM tasks WHERE user_id = ?", userID)
	if err != nil {
		return 0, fmt.Errorf("delete tasks: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete tasks: %w", err)
	}
	return affected, nil
}

func (r *sqliteRepository) GetRevision(ctx context.Context, tx *sql.Tx, userID string) (int64, error) {
	var revision int64
	err := tx.QueryRowContext(ctx, "SELECT revision FROM revisions WHERE user_id = ?", userID).Scan(&revision)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("select revision: %w", err)
	}
	return revision, nil
}

// GetRevisionForUpdate is the same read as GetRevision: with
// _txlock=immediate the whole transaction already holds the database write
// lock, which subsumes a per-row lock.
func (r *sqliteRepository) GetRevisionForUpdate(ctx context.Context, tx *sql.Tx, userID string) (int64, error) {
	return r.GetRevision(ctx, tx, userID)
}

func (r *sqliteRepository) SetInitRevision(ctx context.Context, tx *sql.Tx, userID string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO revisions (user_id, revision) VALUES (?, 0)
		ON CONFLICT (user_id) DO NOTHING`, userID)
	if err != nil {
		return fmt.Errorf("init revision: %w", err)
	}
	return nil
}

func (r *sqliteRepository) IncrementRevision(ctx context.Context, tx *sql.Tx, userID string) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE revisions SET revision = revision + 1 WHERE user_id = ?", userID)
	if err != nil {
		return fmt.Errorf("increment revision: %w", err)
	}
	return nil
}

func (r *sqliteRepository) CreateUser(ctx context.Context, db *sql.DB, email, passwordHash string) (models.User, error) {
	user := models.User{
		ID:        uuid.New(),
		Email:     email,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO users (id, email, password, created_at)
		VALUES (?, ?, ?, ?)`,
		user.ID.String(), email, passwordHash, user.CreatedAt.Unix())
	if isConstraintViolation(err) {
		return models.User{}, ErrEmailTaken
	}
	if err != nil {
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

func (r *sqliteRepository) UserByEmail(ctx context.Context, db *sql.DB, email string) (models.User, error) {
	var (
		user      models.User
		id        string
		createdAt int64
	)
	row := db.QueryRowContext(ctx,
		"SELECT id, email, password, created_at FROM users WHERE email = ?", email)
	err := row.Scan(&id, &user.Email, &user.Password, &createdAt)
	if err == sql.ErrNoRows {
		return models.User{}, ErrUserNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("select user: %w", err)
	}
	user.ID, err = uuid.Parse(id)
	if err != nil {
		return models.User{}, fmt.Errorf("parse user id %q: %w", id, err)
	}
	user.CreatedAt = time.Unix(createdAt, 0).UTC()
	return user, nil
}
