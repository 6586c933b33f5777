package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Clients exchange timestamps as integer unix seconds, so the decoder has
// to reject values that would not survive a round trip through that
// representation.
const (
	minUnixSeconds = -62135596800 // year 1
	maxUnixSeconds = 253402300799 // year 9999
)

// Time is a time.Time whose JSON representation is integer unix seconds.
// Decoding also accepts RFC 3339 strings.
type Time struct {
	time.Time
}

func NewTime(t time.Time) Time {
	return Time{Time: t.Truncate(time.Second)}
}

func (t Time) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Unix())
}

func (t *Time) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return fmt.Errorf("timestamp must not be null")
	}
	var seconds int64
	if err := json.Unmarshal(data, &seconds); err == nil {
		if seconds < minUnixSeconds || seconds > maxUnixSeconds {
			return fmt.Errorf("unix timestamp %d out of range", seconds)
		}
		t.Time = time.Unix(seconds, 0).UTC()
		return nil
	}

	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return fmt.Errorf("timestamp must be unix seconds or an RFC 3339 string")
	}
	parsed, err := time.Parse(time.RFC3339, text)
	if err != nil {
		return fmt.Errorf("invalid timestamp %q: %w", text, err)
	}
	t.Time = parsed
	return nil
}

// Equal compares at second precision, the resolution of the wire format.
func (t Time) Equal(other Time) bool {
	return t.Unix() == other.Unix()
}
