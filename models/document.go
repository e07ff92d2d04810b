package models

import (
	"time"

	"github.com/google/uuid"
)

// Document represents a cuadro de firmas: a versioned document moving through
// the sign-off chain.
type Document struct {
	ID          uuid.UUID  `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Version     string     `json:"version"`
	Code        string     `json:"code"`
	StatusID    int        `json:"status_id"`
	StatusName  string     `json:"status"`
	CompanyID   *uuid.UUID `json:"company_id,omitempty"`
	CreatedBy   uuid.UUID  `json:"created_by"`
	HTMLSource  *string    `json:"-"`
	Filename    string     `json:"filename"`
	StorageKey  string     `json:"-"`
	Active      bool       `json:"active"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// SupervisionFilter narrows the supervision listing.
type SupervisionFilter struct {
	StatusName string
	CompanyID  *uuid.UUID
	Active     *bool
	Query      string
}
