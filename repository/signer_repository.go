package repository

import (
	"context"
	"time"

	"cuadrofirma-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SignerRepository handles database operations for cuadro_firma_user
type SignerRepository struct {
	q Querier
}

// NewSignerRepository creates a new signer repository
func NewSignerRepository(q Querier) *SignerRepository {
	return &SignerRepository{q: q}
}

const assignmentColumns = `
	cu.cuadro_firma_id, cu.user_id, cu.esta_firmado, cu.fecha_firma,
	r.id, r.nombre, r.orden,
	u.id, u.email, u.first_name, u.middle_name, u.last_name, u.photo_key, u.created_at, u.updated_at`

const assignmentFrom = `
	FROM cuadro_firma_user cu
	JOIN responsabilidad_firma r ON r.id = cu.responsabilidad_id
	JOIN users u ON u.id = cu.user_id`

func scanAssignment(row pgx.Row) (*models.SignerAssignment, error) {
	var (
		a      models.SignerAssignment
		signed *bool
	)
	err := row.Scan(
		&a.DocumentID,
		&a.UserID,
		&signed,
		&a.SignedAt,
		&a.Responsibility.ID,
		&a.Responsibility.Name,
		&a.Responsibility.Orden,
		&a.User.ID,
		&a.User.Email,
		&a.User.FirstName,
		&a.User.MiddleName,
		&a.User.LastName,
		&a.User.PhotoKey,
		&a.User.CreatedAt,
		&a.User.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	a.State = models.SignStateFromNullable(signed)
	return &a, nil
}

// ListAssignments retrieves every signer row of a document ordered by rank
func (r *SignerRepository) ListAssignments(ctx context.Context, documentID uuid.UUID) ([]models.SignerAssignment, error) {
	query := `SELECT` + assignmentColumns + assignmentFrom + `
		WHERE cu.cuadro_firma_id = $1
		ORDER BY r.orden ASC NULLS LAST, u.first_name ASC, cu.user_id ASC`

	rows, err := r.q.Query(ctx, query, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.SignerAssignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// GetAssignment retrieves one signer row by its composite key
func (r *SignerRepository) GetAssignment(ctx context.Context, documentID, userID uuid.UUID, responsibilityID int) (*models.SignerAssignment, error) {
	query := `SELECT` + assignmentColumns + assignmentFrom + `
		WHERE cu.cuadro_firma_id = $1 AND cu.user_id = $2 AND cu.responsabilidad_id = $3`
	return scanAssignment(r.q.QueryRow(ctx, query, documentID, userID, responsibilityID))
}

// CountPending counts rows still waiting for a signature at a responsibility
func (r *SignerRepository) CountPending(ctx context.Context, documentID uuid.UUID, responsibilityID int) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM cuadro_firma_user
		WHERE cuadro_firma_id = $1 AND responsabilidad_id = $2 AND esta_firmado = FALSE`

	var n int
	err := r.q.QueryRow(ctx, query, documentID, responsibilityID).Scan(&n)
	return n, err
}

// MarkSigned flips esta_firmado from false to true
func (r *SignerRepository) MarkSigned(ctx context.Context, documentID, userID uuid.UUID, responsibilityID int, at time.Time) (bool, error) {
	query := `
		UPDATE cuadro_firma_user SET
			esta_firmado = TRUE,
			fecha_firma = $4
		WHERE cuadro_firma_id = $1 AND user_id = $2 AND responsabilidad_id = $3
			AND esta_firmado = FALSE`

	tag, err := r.q.Exec(ctx, query, documentID, userID, responsibilityID, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// CreateAssignment inserts a pending signer row
func (r *SignerRepository) CreateAssignment(ctx context.Context, documentID uuid.UUID, a models.Assignee) error {
	query := `
		INSERT INTO cuadro_firma_user (cuadro_firma_id, user_id, responsabilidad_id, esta_firmado, fecha_firma)
		VALUES ($1, $2, $3, FALSE, NULL)
		ON CONFLICT (cuadro_firma_id, user_id, responsabilidad_id)
		DO UPDATE SET esta_firmado = FALSE, fecha_firma = NULL`

	_, err := r.q.Exec(ctx, query, documentID, a.UserID, a.ResponsibilityID)
	return err
}

// ResetAssignment sets an existing row back to pending
func (r *SignerRepository) ResetAssignment(ctx context.Context, documentID uuid.UUID, a models.Assignee) error {
	query := `
		UPDATE cuadro_firma_user SET
			esta_firmado = FALSE,
			fecha_firma = NULL
		WHERE cuadro_firma_id = $1 AND user_id = $2 AND responsabilidad_id = $3`

	tag, err := r.q.Exec(ctx, query, documentID, a.UserID, a.ResponsibilityID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAssignment removes a signer row
func (r *SignerRepository) DeleteAssignment(ctx context.Context, documentID uuid.UUID, a models.Assignee) error {
	query := `
		DELETE FROM cuadro_firma_user
		WHERE cuadro_firma_id = $1 AND user_id = $2 AND responsabilidad_id = $3`

	tag, err := r.q.Exec(ctx, query, documentID, a.UserID, a.ResponsibilityID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListAssignmentsByUser retrieves a user's signer rows, newest document first
func (r *SignerRepository) ListAssignmentsByUser(ctx context.Context, userID uuid.UUID, p models.Pagination) ([]models.UserAssignment, int, error) {
	p = p.Normalize()

	var total int
	err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM cuadro_firma_user WHERE user_id = $1`, userID).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	query := `SELECT` + documentColumns + `,
			cu.esta_firmado, cu.fecha_firma, r.id, r.nombre, r.orden
		FROM cuadro_firma_user cu
		JOIN cuadro_firma d ON d.id = cu.cuadro_firma_id
		JOIN estado_firma e ON e.id = d.estado_firma_id
		JOIN responsabilidad_firma r ON r.id = cu.responsabilidad_id
		WHERE cu.user_id = $1
		ORDER BY d.add_date DESC, r.orden ASC NULLS LAST
		LIMIT $2 OFFSET $3`

	rows, err := r.q.Query(ctx, query, userID, p.Limit, p.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []models.UserAssignment
	for rows.Next() {
		var (
			ua     models.UserAssignment
			signed *bool
		)
		d := &ua.Document
		err := rows.Scan(
			&d.ID, &d.Title, &d.Description, &d.Version, &d.Code,
			&d.StatusID, &d.StatusName, &d.CompanyID, &d.CreatedBy, &d.HTMLSource,
			&d.Filename, &d.StorageKey, &d.Active, &d.CreatedAt, &d.UpdatedAt,
			&signed, &ua.SignedAt,
			&ua.Responsibility.ID, &ua.Responsibility.Name, &ua.Responsibility.Orden,
		)
		if err != nil {
			return nil, 0, err
		}
		ua.State = models.SignStateFromNullable(signed)
		out = append(out, ua)
	}
	return out, total, rows.Err()
}
