// Package apperrors defines the failures that are part of the sync
// protocol surface, as opposed to storage faults, which stay opaque.
package apperrors

import (
	"fmt"

	"github.com/google/uuid"
)

// ConflictError reports an insert with a task id that already exists for
// the user.
type ConflictError struct {
	TaskID uuid.UUID
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("task %s already exists", e.TaskID)
}

// OutdatedRevisionError is the expected outcome of a bulk replace whose
// caller holds a stale view of the list. Actual lets the caller refetch
// and reconcile.
type OutdatedRevisionError struct {
	Expected int64
	Actual   int64
}

func (e OutdatedRevisionError) Error() string {
	return fmt.Sprintf("outdated revision: %d, actual revision: %d", e.Expected, e.Actual)
}
