package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// User represents a user entity
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Never serialize password hash
	FirstName    string    `json:"first_name"`
	MiddleName   *string   `json:"middle_name,omitempty"`
	LastName     *string   `json:"last_name,omitempty"`
	PhotoKey     *string   `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// FullName joins the non-empty name parts with single spaces.
func (u User) FullName() string {
	parts := []string{u.FirstName}
	if u.MiddleName != nil {
		parts = append(parts, *u.MiddleName)
	}
	if u.LastName != nil {
		parts = append(parts, *u.LastName)
	}
	return JoinNameParts(parts...)
}

// JoinNameParts skips empty parts and collapses inner whitespace.
func JoinNameParts(parts ...string) string {
	var out []string
	for _, p := range parts {
		for _, f := range strings.Fields(p) {
			out = append(out, f)
		}
	}
	return strings.Join(out, " ")
}
