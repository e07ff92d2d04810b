package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Workflow status names seeded in estado_firma.
const (
	StatusPendiente  = "Pendiente"
	StatusEnProgreso = "En Progreso"
	StatusRechazado  = "Rechazado"
	StatusCompletado = "Completado"
	// StatusFinalizado is accepted as an alias of Completado when reading legacy rows.
	StatusFinalizado = "Finalizado"
)

// Status is an estado_firma row.
type Status struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// IsRejected reports whether the name denotes the rejected state.
func IsRejected(name string) bool {
	return strings.EqualFold(strings.TrimSpace(name), StatusRechazado)
}

// IsCompleted reports whether the name denotes the completed state.
func IsCompleted(name string) bool {
	n := strings.TrimSpace(name)
	return strings.EqualFold(n, StatusCompletado) || strings.EqualFold(n, StatusFinalizado)
}

// IsTerminal reports whether no further transition may leave the state.
func IsTerminal(name string) bool {
	return IsRejected(name) || IsCompleted(name)
}

// HistoryEntry is an append-only cuadro_firma_estado_historial row.
type HistoryEntry struct {
	ID          int64     `json:"id"`
	DocumentID  uuid.UUID `json:"document_id"`
	UserID      uuid.UUID `json:"user_id"`
	StatusID    int       `json:"status_id"`
	StatusName  string    `json:"status"`
	Observation string    `json:"observation"`
	ObservedAt  time.Time `json:"observed_at"`
}
