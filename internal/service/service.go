// Package service implements the revision protocol over the task store.
// It is the only component that advances a user's revision counter or
// rejects a write for staleness. Each public operation runs in exactly one
// transaction, so the counter and the data it versions are never observably
// out of sync.
package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/EQSP-Task-Manager/backend-draft/internal/apperrors"
	"github.com/EQSP-Task-Manager/backend-draft/internal/models"
	"github.com/EQSP-Task-Manager/backend-draft/internal/storage"
)

type Service struct {
	db   *sql.DB
	repo storage.Repository
}

func New(db *sql.DB, repo storage.Repository) *Service {
	return &Service{db: db, repo: repo}
}

// inTx runs fn inside one transaction, committing on success and rolling
// back on any error, panic, or context cancellation.
func (s *Service) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// bump ensures the revision row exists, increments it, and returns the new
// value. Must run in the same transaction as the mutation it versions.
func (s *Service) bump(ctx context.Context, tx *sql.Tx, userID string) (int64, error) {
	if err := s.repo.SetInitRevision(ctx, tx, userID); err != nil {
		return 0, err
	}
	if err := s.repo.IncrementRevision(ctx, tx, userID); err != nil {
		return 0, err
	}
	return s.repo.GetRevision(ctx, tx, userID)
}

func validateTask(task *models.Task) error {
	task.ApplyDefaults()
	if verr := task.Validate(); verr != nil {
		return verr
	}
	return nil
}

// GetTasks returns the user's full list and its current revision. A user
// that has never written reads as an empty list at revision 0.
func (s *Service) GetTasks(ctx context.Context, userID string) ([]models.Task, int64, error) {
	var (
		tasks    []models.Task
		revision int64
	)
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		if tasks, err = s.repo.GetTasks(ctx, tx, userID); err != nil {
			return err
		}
		revision, err = s.repo.GetRevision(ctx, tx, userID)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return tasks, revision, nil
}

// AddTask inserts one task and returns the new revision. A duplicate id
// surfaces as apperrors.ConflictError with the revision untouched.
func (s *Service) AddTask(ctx context.Context, userID string, task models.Task) (int64, error) {
	if err := validateTask(&task); err != nil {
		return 0, err
	}
	var revision int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.repo.AddTask(ctx, tx, userID, task); err != nil {
			return err
		}
		var err error
		revision, err = s.bump(ctx, tx, userID)
		return err
	})
	if err != nil {
		return 0, err
	}
	return revision, nil
}

// DeleteTask removes a task by id and returns the new revision. Deleting an
// id that is not present is not an error: the revision still advances, so a
// device that re-sends a delete after losing the response converges the
// same way.
func (s *Service) DeleteTask(ctx context.Context, userID string, id uuid.UUID) (int64, error) {
	var revision int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.repo.DeleteTask(ctx, tx, userID, id); err != nil {
			return err
		}
		var err error
		revision, err = s.bump(ctx, tx, userID)
		return err
	})
	if err != nil {
		return 0, err
	}
	return revision, nil
}

// UpdateTask overwrites the task with the same id and returns the new
// revision. Same stance as DeleteTask: an absent id still advances the
// revision.
func (s *Service) UpdateTask(ctx context.Context, userID string, task models.Task) (int64, error) {
	if err := validateTask(&task); err != nil {
		return 0, err
	}
	var revision int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.repo.UpdateTask(ctx, tx, userID, task); err != nil {
			return err
		}
		var err error
		revision, err = s.bump(ctx, tx, userID)
		return err
	})
	if err != nil {
		return 0, err
	}
	return revision, nil
}

// UpdateTasks atomically replaces the user's whole list, conditioned on the
// caller holding the current revision: a compare-and-swap at list
// granularity. The compare and the swap happen under the same transaction
// and the same lock on the revision row, otherwise two callers could both
// pass the check and silently overwrite each other.
func (s *Service) UpdateTasks(ctx context.Context, userID string, tasks []models.Task, expectedRevision int64) (int64, error) {
	verr := &models.ValidationError{}
	for i := range tasks {
		tasks[i].ApplyDefaults()
		if itemErr := tasks[i].Validate(); itemErr != nil {
			for _, f := range itemErr.Fields {
				verr.Add(fmt.Sprintf("list[%d].%s", i, f.Field), f.Message)
			}
		}
	}
	if len(verr.Fields) > 0 {
		return 0, verr
	}

	var revision int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		// The row must exist before the locked read, or there is nothing
		// for a fresh user's first replace to lock.
		if err := s.repo.SetInitRevision(ctx, tx, userID); err != nil {
			return err
		}
		current, err := s.repo.GetRevisionForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		if current != expectedRevision {
			return apperrors.OutdatedRevisionError{Expected: expectedRevision, Actual: current}
		}
		if _, err := s.repo.DeleteTasks(ctx, tx, userID); err != nil {
			return err
		}
		if err := s.repo.AddTasks(ctx, tx, userID, tasks); err != nil {
			return err
		}
		if err := s.repo.IncrementRevision(ctx, tx, userID); err != nil {
			return err
		}
		revision, err = s.repo.GetRevision(ctx, tx, userID)
		return err
	})
	if err != nil {
		return 0, err
	}
	return revision, nil
}
