package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SignState is the explicit form of the nullable esta_firmado column.
type SignState int

const (
	SignNotApplicable SignState = iota
	SignPending
	SignSigned
)

// SignStateFromNullable maps the column value: NULL, false, true.
func SignStateFromNullable(v *bool) SignState {
	switch {
	case v == nil:
		return SignNotApplicable
	case *v:
		return SignSigned
	default:
		return SignPending
	}
}

// Nullable returns the column representation of the state.
func (s SignState) Nullable() *bool {
	switch s {
	case SignPending:
		v := false
		return &v
	case SignSigned:
		v := true
		return &v
	default:
		return nil
	}
}

func (s SignState) String() string {
	switch s {
	case SignPending:
		return "pending"
	case SignSigned:
		return "signed"
	default:
		return "not_applicable"
	}
}

// MarshalJSON implements json.Marshaler
func (s SignState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON implements json.Unmarshaler
func (s *SignState) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw {
	case "pending":
		*s = SignPending
	case "signed":
		*s = SignSigned
	case "not_applicable", "":
		*s = SignNotApplicable
	default:
		return fmt.Errorf("unknown sign state %q", raw)
	}
	return nil
}

// Assignee is a desired (user, responsibility) pair on a document.
type Assignee struct {
	UserID           uuid.UUID
	ResponsibilityID int
}

// SignerAssignment is a cuadro_firma_user row joined with its user and
// responsibility.
type SignerAssignment struct {
	DocumentID     uuid.UUID      `json:"document_id"`
	UserID         uuid.UUID      `json:"user_id"`
	Responsibility Responsibility `json:"responsibility"`
	State          SignState      `json:"state"`
	SignedAt       *time.Time     `json:"signed_at,omitempty"`
	User           User           `json:"user"`
}

// Key returns the composite identity of the row.
func (a SignerAssignment) Key() Assignee {
	return Assignee{UserID: a.UserID, ResponsibilityID: a.Responsibility.ID}
}

// UserAssignment is a signer assignment seen from the signer's inbox.
type UserAssignment struct {
	Document       Document       `json:"document"`
	Responsibility Responsibility `json:"responsibility"`
	State          SignState      `json:"state"`
	SignedAt       *time.Time     `json:"signed_at,omitempty"`
}

// FirmanteResumen is the display projection of a signer.
type FirmanteResumen struct {
	ID                 uuid.UUID `json:"id"`
	FullName           string    `json:"full_name"`
	Initials           string    `json:"initials"`
	PhotoURL           string    `json:"photo_url,omitempty"`
	ResponsibilityName string    `json:"responsibility"`
	State              SignState `json:"state"`
}
