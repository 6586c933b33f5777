package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/EQSP-Task-Manager/backend-draft/internal/apperrors"
	"github.com/EQSP-Task-Manager/backend-draft/internal/models"
)

//go:embed schema_postgres.sql
var postgresSchema string

// OpenPostgres connects to a Postgres database and ensures the schema.
func OpenPostgres(dsn string) (*Backend, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if _, err := db.Exec(postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init postgres schema: %w", err)
	}
	repo := &postgresRepository{}
	return &Backend{DB: db, Tasks: repo, Users: repo}, nil
}

// postgresRepository relies on row-level locks for per-user serialization:
// GetRevisionForUpdate takes FOR UPDATE on the revision row, so two
// concurrent replaces for the same user queue behind each other while other
// users proceed unblocked.
type postgresRepository struct{}

func isUniqueViolation(err error) bool {
	pqErr, ok := err.(*pq.Error)
	return ok && pqErr.Code.Name() == "unique_violation"
}

func (r *postgresRepository) GetTasks(ctx context.Context, tx *sql.Tx, userID string) ([]models.Task, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, title, description, done, tags, created_at, changed_at, importance, deadline, color
		FROM tasks
		WHERE user_id = $1
		ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("select tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]models.Task, 0)
	for rows.Next() {
		var (
			t         models.Task
			tags      []string
			createdAt time.Time
			changedAt time.Time
			deadline  sql.NullTime
			color     sql.NullString
		)
		err = rows.Scan(&t.ID, &t.Title, &t.Description, &t.Done, pq.Array(&tags),
			&createdAt, &changedAt, &t.Importance, &deadline, &color)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		t.Tags = tags
		if t.Tags == nil {
			t.Tags = []string{}
		}
		t.CreatedAt = models.NewTime(createdAt)
		t.ChangedAt = models.NewTime(changedAt)
		if deadline.Valid {
			d := models.NewTime(deadline.Time)
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

func (r *postgresRepository) AddTask(ctx context.Context, tx *sql.Tx, userID string, task models.Task) error {
	var deadline sql.NullTime
	if task.Deadline != nil {
		deadline = sql.NullTime{Time: task.Deadline.Time, Valid: true}
	}
	var color sql.NullString
	if task.Color != nil {
		color = sql.NullString{String: *task.Color, Valid: true}
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO tasks (user_id, id, title, description, done, tags, created_at, changed_at, importance, deadline, color)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		userID, task.ID, task.Title, task.Description, task.Done, pq.Array(task.Tags),
		task.CreatedAt.Time, task.ChangedAt.Time, string(task.Importance), deadline, color)
	if isUniqueViolation(err) {
		return apperrors.ConflictError{TaskID: task.ID}
	}
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func (r *postgresRepository) AddTasks(ctx context.Context, tx *sql.Tx, userID string, tasks []models.Task) error {
	for _, task := range tasks {
		if err := r.AddTask(ctx, tx, userID, task); err != nil {
			return err
		}
	}
	return nil
}

func (r *postgresRepository) UpdateTask(ctx context.Context, tx *sql.Tx, userID string, task models.Task) (bool, error) {
	var deadline sql.NullTime
	if task.Deadline != nil {
		deadline = sql.NullTime{Time: task.Deadline.Time, Valid: true}
	}
	var color sql.NullString
	if task.Color != nil {
		color = sql.NullString{String: *task.Color, Valid: true}
	}
	result, err := tx.ExecContext(ctx, `
		UPDATE tasks
		SET title = $1, description = $2, done = $3, tags = $4, created_at = $5,
		    changed_at = $6, importance = $7, deadline = $8, color = $9
		WHERE user_id = $10 AND id = $11`,
		task.Title, task.Description, task.Done, pq.Array(task.Tags), task.CreatedAt.Time,
		task.ChangedAt.Time, string(task.Importance), deadline, color, userID, task.ID)
	if err != nil {
		return false, fmt.Errorf("update task: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update task: %w", err)
	}
	return affected > 0, nil
}

func (r *postgresRepository) DeleteTask(ctx context.Context, tx *sql.Tx, userID string, id uuid.UUID) (bool, error) {
	result, err := tx.ExecContext(ctx, "DELETE FROM tasks WHERE user_id = $1 AND id = $2", userID, id)
	if err != nil {
		return false, fmt.Errorf("delete task: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete task: %w", err)
	}
	return affected > 0, nil
}

func (r *postgresRepository) DeleteTasks(ctx context.Context, tx *sql.Tx, userID string) (int64, error) {
	result, err := tx.ExecContext(ctx, "DELETE FROM tasks WHERE user_id = $1", userID)
	if err != nil {
		return 0, fmt.Errorf("delete tasks: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete tasks: %w", err)
	}
	return affected, nil
}

func (r *postgresRepository) GetRevision(ctx context.Context, tx *sql.Tx, userID string) (int64, error) {
	var revision int64
	err := tx.QueryRowContext(ctx, "SELECT revision FROM revisions WHERE user_id = $1", userID).Scan(&revision)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("select revision: %w", err)
	}
	return revision, nil
}

func (r *postgresRepository) GetRevisionForUpdate(ctx context.Context, tx *sql.Tx, userID string) (int64, error) {
	var revision int64
	err := tx.QueryRowContext(ctx,
		"SELECT revision FROM revisions WHERE user_id = $1 FOR UPDATE", userID).Scan(&revision)
	if err == sql.ErrNoRows {
		// No row means nothing was locked; callers create the row first.
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("select revision for update: %w", err)
	}
	return revision, nil
}

func (r *postgresRepository) SetInitRevision(ctx context.Context, tx *sql.Tx, userID string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO revisions (user_id, revision) VALUES ($1, 0)
		ON CONFLICT (user_id) DO NOTHING`, userID)
	if err != nil {
		return fmt.Errorf("init revision: %w", err)
	}
	return nil
}

func (r *postgresRepository) IncrementRevision(ctx context.Context, tx *sql.Tx, userID string) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE revisions SET revision = revision + 1 WHERE user_id = $1", userID)
	if err != nil {
		return fmt.Errorf("increment revision: %w", err)
	}
	return nil
}

func (r *postgresRepository) CreateUser(ctx context.Context, db *sql.DB, email, passwordHash string) (models.User, error) {
	user := models.User{}
	row := db.QueryRowContext(ctx, `
		INSERT INTO users (id, email, password, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, email, created_at`,
		uuid.New(), email, passwordHash, time.Now().UTC())
	err := row.Scan(&user.ID, &user.Email, &user.CreatedAt)
	if isUniqueViolation(err) {
		return models.User{}, ErrEmailTaken
	}
	if err != nil {
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

func (r *postgresRepository) UserByEmail(ctx context.Context, db *sql.DB, email string) (models.User, error) {
	user := models.User{}
	row := db.QueryRowContext(ctx,
		"SELECT id, email, password, created_at FROM users WHERE email = $1", email)
	err := row.Scan(&user.ID, &user.Email, &user.Password, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return models.User{}, ErrUserNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("select user: %w", err)
	}
	return user, nil
}
