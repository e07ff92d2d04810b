package repository

import (
	"context"
	"errors"
	"time"

	"cuadrofirma-backend/models"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a referenced row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrTransient marks connection-class failures that survived the local retries.
	ErrTransient = errors.New("transient database failure")
)

// Store is the unit-of-work entry point over the sign-off tables.
type Store interface {
	// WithTx runs fn inside a read-write transaction. A non-nil error from fn
	// rolls back every write made through tx.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// View runs fn against a read-only view.
	View(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx exposes the per-table operations bound to one unit of work.
type Tx interface {
	Documents
	Responsibilities
	Statuses
	Signers
	History
	Users
}

// Documents manages cuadro_firma rows.
type Documents interface {
	GetDocument(ctx context.Context, id uuid.UUID) (*models.Document, error)
	// LockDocument reads the document and holds a row lock until the unit of work ends.
	LockDocument(ctx context.Context, id uuid.UUID) (*models.Document, error)
	CreateDocument(ctx context.Context, doc *models.Document) error
	SetDocumentStatus(ctx context.Context, id uuid.UUID, statusID int, active bool) error
	ListSupervision(ctx context.Context, filter models.SupervisionFilter, p models.Pagination) ([]models.Document, int, error)
}

// Responsibilities reads the responsabilidad_firma catalog.
type Responsibilities interface {
	ResponsibilityByName(ctx context.Context, name string) (*models.Responsibility, error)
	// ListResponsibilities returns the catalog ordered by orden, unranked rows last.
	ListResponsibilities(ctx context.Context) ([]models.Responsibility, error)
}

// Statuses reads the estado_firma catalog.
type Statuses interface {
	StatusByID(ctx context.Context, id int) (*models.Status, error)
	StatusByName(ctx context.Context, name string) (*models.Status, error)
}

// Signers manages cuadro_firma_user rows.
type Signers interface {
	// ListAssignments returns the document's rows ordered by responsibility orden.
	ListAssignments(ctx context.Context, documentID uuid.UUID) ([]models.SignerAssignment, error)
	GetAssignment(ctx context.Context, documentID, userID uuid.UUID, responsibilityID int) (*models.SignerAssignment, error)
	CountPending(ctx context.Context, documentID uuid.UUID, responsibilityID int) (int, error)
	// MarkSigned flips a pending row to signed. It reports false when the row
	// was not pending, leaving it untouched.
	MarkSigned(ctx context.Context, documentID, userID uuid.UUID, responsibilityID int, at time.Time) (bool, error)
	CreateAssignment(ctx context.Context, documentID uuid.UUID, a models.Assignee) error
	ResetAssignment(ctx context.Context, documentID uuid.UUID, a models.Assignee) error
	DeleteAssignment(ctx context.Context, documentID uuid.UUID, a models.Assignee) error
	ListAssignmentsByUser(ctx context.Context, userID uuid.UUID, p models.Pagination) ([]models.UserAssignment, int, error)
}

// History appends to and reads cuadro_firma_estado_historial.
type History interface {
	AppendHistory(ctx context.Context, entry *models.HistoryEntry) error
	ListHistory(ctx context.Context, documentID uuid.UUID) ([]models.HistoryEntry, error)
}

// Users reads signer identities.
type Users interface {
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
}
