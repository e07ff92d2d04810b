package repository

import (
	"context"

	"cuadrofirma-backend/models"

	"github.com/google/uuid"
)

// HistoryRepository appends to and reads cuadro_firma_estado_historial
type HistoryRepository struct {
	q Querier
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(q Querier) *HistoryRepository {
	return &HistoryRepository{q: q}
}

// AppendHistory inserts a ledger entry. ID and ObservedAt are server-assigned.
func (r *HistoryRepository) AppendHistory(ctx context.Context, entry *models.HistoryEntry) error {
	query := `
		INSERT INTO cuadro_firma_estado_historial (cuadro_firma_id, user_id, estado_firma_id, observacion)
		VALUES ($1, $2, $3, $4)
		RETURNING id, fecha_observacion`

	return r.q.QueryRow(ctx, query,
		entry.DocumentID,
		entry.UserID,
		entry.StatusID,
		entry.Observation,
	).Scan(&entry.ID, &entry.ObservedAt)
}

// ListHistory retrieves a document's ledger in insertion order
func (r *HistoryRepository) ListHistory(ctx context.Context, documentID uuid.UUID) ([]models.HistoryEntry, error) {
	query := `
		SELECT h.id, h.cuadro_firma_id, h.user_id, h.estado_firma_id, e.nombre, h.observacion, h.fecha_observacion
		FROM cuadro_firma_estado_historial h
		JOIN estado_firma e ON e.id = h.estado_firma_id
		WHERE h.cuadro_firma_id = $1
		ORDER BY h.fecha_observacion ASC, h.id ASC`

	rows, err := r.q.Query(ctx, query, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.HistoryEntry
	for rows.Next() {
		var h models.HistoryEntry
		if err := rows.Scan(&h.ID, &h.DocumentID, &h.UserID, &h.StatusID, &h.StatusName, &h.Observation, &h.ObservedAt); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
