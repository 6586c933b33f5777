package models

import (
	"time"

	"github.com/google/uuid"
)

// User is an account at the auth boundary. Task rows are scoped by the
// string form of its id.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Password  string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}
