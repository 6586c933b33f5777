package models

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Importance is the task priority level.
type Importance string

const (
	ImportanceLow       Importance = "low"
	ImportanceBasic     Importance = "basic"
	ImportanceImportant Importance = "important"
)

func (i Importance) Valid() bool {
	switch i {
	case ImportanceLow, ImportanceBasic, ImportanceImportant:
		return true
	}
	return false
}

func (i *Importance) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("importance must be a string")
	}
	*i = Importance(s)
	return nil
}

// Task is one entry in a user's list. The id is chosen by whichever side
// creates the task and never changes afterwards. Description is a pointer
// so that an absent key is distinguishable from an empty text: the field
// is required, empty is allowed.
type Task struct {
	ID          uuid.UUID  `json:"id"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Done        bool       `json:"done"`
	Tags        []string   `json:"tags"`
	CreatedAt   Time       `json:"created_at"`
	ChangedAt   Time       `json:"changed_at"`
	Importance  Importance `json:"importance,omitempty"`
	Deadline    *Time      `json:"deadline,omitempty"`
	Color       *string    `json:"color,omitempty"`
}

// UnmarshalJSON decodes field by field so that every type-level violation
// (a non-text tag, a malformed or out-of-range timestamp) comes back as a
// ValidationError naming the field, not as a bare codec error.
func (t *Task) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	verr := &ValidationError{}
	decodeField := func(field string, target any, message string) {
		value, ok := raw[field]
		if !ok {
			return
		}
		if err := json.Unmarshal(value, target); err != nil {
			if message == "" {
				message = err.Error()
			}
			verr.Add(field, message)
		}
	}

	decodeField("id", &t.ID, "must be a UUID string")
	decodeField("title", &t.Title, "must be a string")
	decodeField("description", &t.Description, "must be a string")
	decodeField("done", &t.Done, "must be a boolean")
	decodeField("tags", &t.Tags, "must be an array of strings")
	decodeField("created_at", &t.CreatedAt, "")
	decodeField("changed_at", &t.ChangedAt, "")
	decodeField("importance", &t.Importance, "must be a string")
	decodeField("deadline", &t.Deadline, "")
	decodeField("color", &t.Color, "must be a string")

	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

// ApplyDefaults fills optional fields that were absent from the input.
func (t *Task) ApplyDefaults() {
	if t.Importance == "" {
		t.Importance = ImportanceBasic
	}
	if t.Tags == nil {
		t.Tags = []string{}
	}
}

// Validate reports every field-level violation at once. It never touches
// storage.
func (t *Task) Validate() *ValidationError {
	verr := &ValidationError{}
	if t.ID == uuid.Nil {
		verr.Add("id", "must be a non-nil UUID")
	}
	if t.Title == "" {
		verr.Add("title", "must not be empty")
	}
	if t.Description == nil {
		verr.Add("description", "must be present")
	}
	if !t.Importance.Valid() {
		verr.Add("importance", fmt.Sprintf("must be one of %q, %q, %q", ImportanceLow, ImportanceBasic, ImportanceImportant))
	}
	if t.CreatedAt.IsZero() {
		verr.Add("created_at", "must be set")
	}
	if t.ChangedAt.IsZero() {
		verr.Add("changed_at", "must be set")
	} else if !t.CreatedAt.IsZero() && t.ChangedAt.Unix() < t.CreatedAt.Unix() {
		verr.Add("changed_at", "must not precede created_at")
	}
	if len(verr.Fields) == 0 {
		return nil
	}
	return verr
}

// TaskList is the wire shape of a whole list read: every task plus the
// revision that versions them as a unit.
type TaskList struct {
	List     []Task `json:"list"`
	Revision int64  `json:"revision"`
}

// FieldError is a single validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects all field violations found in one input value.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
