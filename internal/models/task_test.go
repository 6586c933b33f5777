package models_test

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/EQSP-Task-Manager/backend-draft/internal/models"
)

func validTask() models.Task {
	now := models.NewTime(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	description := "two liters"
	return models.Task{
		ID:          uuid.New(),
		Title:       "buy milk",
		Description: &description,
		Done:        false,
		Tags:        []string{"errands", "home"},
		CreatedAt:   now,
		ChangedAt:   now,
		Importance:  models.ImportanceBasic,
	}
}

func TestValidateOK(t *testing.T) {
	task := validTask()
	if verr := task.Validate(); verr != nil {
		t.Fatalf("expected valid task, got %v", verr)
	}
}

func TestValidateCollectsEveryViolation(t *testing.T) {
	task := models.Task{
		ID:         uuid.Nil,
		Title:      "",
		Importance: models.Importance("urgent"),
	}

	verr := task.Validate()
	if verr == nil {
		t.Fatal("expected validation error")
	}

	want := map[string]bool{
		"id":          false,
		"title":       false,
		"description": false,
		"importance":  false,
		"created_at":  false,
		"changed_at":  false,
	}
	for _, f := range verr.Fields {
		if _, ok := want[f.Field]; !ok {
			t.Errorf("unexpected field error: %+v", f)
			continue
		}
		want[f.Field] = true
	}
	for field, seen := range want {
		if !seen {
			t.Errorf("expected a violation for %q", field)
		}
	}
}

func TestValidateChangedAtBeforeCreatedAt(t *testing.T) {
	task := validTask()
	task.ChangedAt = models.NewTime(task.CreatedAt.Add(-time.Hour))

	verr := task.Validate()
	if verr == nil {
		t.Fatal("expected validation error")
	}
	if len(verr.Fields) != 1 || verr.Fields[0].Field != "changed_at" {
		t.Fatalf("expected a single changed_at violation, got %v", verr.Fields)
	}
}

func TestValidateMissingDescription(t *testing.T) {
	task := validTask()
	task.Description = nil

	verr := task.Validate()
	if verr == nil {
		t.Fatal("expected validation error")
	}
	if len(verr.Fields) != 1 || verr.Fields[0].Field != "description" {
		t.Fatalf("expected a single description violation, got %v", verr.Fields)
	}

	empty := ""
	task.Description = &empty
	if verr := task.Validate(); verr != nil {
		t.Errorf("empty description must be valid, got %v", verr)
	}
}

func TestTaskUnmarshalCollectsDecodeViolations(t *testing.T) {
	raw := `{
		"id": "not-a-uuid",
		"title": "typed",
		"description": "",
		"done": false,
		"tags": ["ok", 1],
		"created_at": 999999999999999,
		"changed_at": "yesterday"
	}`

	var task models.Task
	err := json.Unmarshal([]byte(raw), &task)
	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	want := map[string]bool{
		"id":         false,
		"tags":       false,
		"created_at": false,
		"changed_at": false,
	}
	for _, f := range verr.Fields {
		if _, ok := want[f.Field]; !ok {
			t.Errorf("unexpected field error: %+v", f)
			continue
		}
		want[f.Field] = true
	}
	for field, seen := range want {
		if !seen {
			t.Errorf("expected a decode violation for %q", field)
		}
	}
}

func TestTaskUnmarshalNullTimestamp(t *testing.T) {
	raw := `{"id": "` + uuid.NewString() + `", "title": "t", "description": "", "created_at": null, "changed_at": 1714564800}`

	var task models.Task
	err := json.Unmarshal([]byte(raw), &task)
	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(verr.Fields) != 1 || verr.Fields[0].Field != "created_at" {
		t.Fatalf("expected a single created_at violation, got %v", verr.Fields)
	}
}

func TestApplyDefaults(t *testing.T) {
	task := models.Task{}
	task.ApplyDefaults()

	if task.Importance != models.ImportanceBasic {
		t.Errorf("expected importance %q, got %q", models.ImportanceBasic, task.Importance)
	}
	if task.Tags == nil {
		t.Error("expected tags to default to an empty slice")
	}
}

func TestTimeUnmarshalEpochSeconds(t *testing.T) {
	var ts models.Time
	if err := json.Unmarshal([]byte("1714564800"), &ts); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got := ts.Unix(); got != 1714564800 {
		t.Errorf("expected unix 1714564800, got %d", got)
	}
}

func TestTimeUnmarshalRFC3339(t *testing.T) {
	var ts models.Time
	if err := json.Unmarshal([]byte(`"2024-05-01T12:00:00Z"`), &ts); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	if !ts.Time.Equal(want) {
		t.Errorf("expected %v, got %v", want, ts.Time)
	}
}

func TestTimeUnmarshalOutOfRange(t *testing.T) {
	var ts models.Time
	err := json.Unmarshal([]byte("999999999999999"), &ts)
	if err == nil {
		t.Fatal("expected an error for an out-of-range timestamp")
	}
	if !strings.Contains(err.Error(), "out of range") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestTimeUnmarshalRejectsOtherTypes(t *testing.T) {
	var ts models.Time
	if err := json.Unmarshal([]byte("[1714564800]"), &ts); err == nil {
		t.Fatal("expected an error for a non-scalar timestamp")
	}
}

func TestTimeMarshalsAsEpochSeconds(t *testing.T) {
	ts := models.NewTime(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	raw, err := json.Marshal(ts)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != "1714564800" {
		t.Errorf("expected epoch seconds on the wire, got %s", raw)
	}
}

func TestImportanceUnmarshalRejectsNonString(t *testing.T) {
	var imp models.Importance
	if err := json.Unmarshal([]byte("3"), &imp); err == nil {
		t.Fatal("expected an error for a numeric importance")
	}
}

func TestTaskJSONRoundTrip(t *testing.T) {
	deadline := models.NewTime(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	color := "#ff0000"
	task := validTask()
	task.Deadline = &deadline
	task.Color = &color

	raw, err := json.Marshal(task)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded models.Task
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(task, decoded) {
		t.Errorf("round trip changed the task:\n before %+v\n after  %+v", task, decoded)
	}
}
