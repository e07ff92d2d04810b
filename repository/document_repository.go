package repository

import (
	"context"
	"fmt"
	"strings"

	"cuadrofirma-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const documentColumns = `
	d.id, d.titulo, d.descripcion, d.version, d.codigo,
	d.estado_firma_id, e.nombre, d.empresa_id, d.creado_por, d.html,
	d.nombre_archivo, d.storage_key, d.active, d.add_date, d.updated_at`

// DocumentRepository handles database operations for cuadro_firma
type DocumentRepository struct {
	q Querier
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(q Querier) *DocumentRepository {
	return &DocumentRepository{q: q}
}

func scanDocument(row pgx.Row) (*models.Document, error) {
	doc := &models.Document{}
	err := row.Scan(
		&doc.ID,
		&doc.Title,
		&doc.Description,
		&doc.Version,
		&doc.Code,
		&doc.StatusID,
		&doc.StatusName,
		&doc.CompanyID,
		&doc.CreatedBy,
		&doc.HTMLSource,
		&doc.Filename,
		&doc.StorageKey,
		&doc.Active,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return doc, nil
}

// GetDocument retrieves a document by ID
func (r *DocumentRepository) GetDocument(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	query := `SELECT` + documentColumns + `
		FROM cuadro_firma d
		JOIN estado_firma e ON e.id = d.estado_firma_id
		WHERE d.id = $1`
	return scanDocument(r.q.QueryRow(ctx, query, id))
}

// LockDocument retrieves a document by ID holding its row lock
func (r *DocumentRepository) LockDocument(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	query := `SELECT` + documentColumns + `
		FROM cuadro_firma d
		JOIN estado_firma e ON e.id = d.estado_firma_id
		WHERE d.id = $1
		FOR UPDATE OF d`
	return scanDocument(r.q.QueryRow(ctx, query, id))
}

// CreateDocument inserts a new document
func (r *DocumentRepository) CreateDocument(ctx context.Context, doc *models.Document) error {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	query := `
		INSERT INTO cuadro_firma (
			id, titulo, descripcion, version, codigo, estado_firma_id,
			empresa_id, creado_por, html, nombre_archivo, storage_key, active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING add_date, updated_at`

	return r.q.QueryRow(
		ctx, query,
		doc.ID,
		doc.Title,
		doc.Description,
		doc.Version,
		doc.Code,
		doc.StatusID,
		doc.CompanyID,
		doc.CreatedBy,
		doc.HTMLSource,
		doc.Filename,
		doc.StorageKey,
		doc.Active,
	).Scan(&doc.CreatedAt, &doc.UpdatedAt)
}

// SetDocumentStatus updates the status reference and the active flag
func (r *DocumentRepository) SetDocumentStatus(ctx context.Context, id uuid.UUID, statusID int, active bool) error {
	query := `
		UPDATE cuadro_firma SET
			estado_firma_id = $2,
			active = $3,
			updated_at = NOW()
		WHERE id = $1`

	tag, err := r.q.Exec(ctx, query, id, statusID, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListSupervision lists documents matching the filter, newest first
func (r *DocumentRepository) ListSupervision(ctx context.Context, filter models.SupervisionFilter, p models.Pagination) ([]models.Document, int, error) {
	p = p.Normalize()

	var (
		conds []string
		args  []any
	)
	if filter.StatusName != "" {
		args = append(args, filter.StatusName)
		conds = append(conds, fmt.Sprintf("LOWER(e.nombre) = LOWER($%d)", len(args)))
	}
	if filter.CompanyID != nil {
		args = append(args, *filter.CompanyID)
		conds = append(conds, fmt.Sprintf("d.empresa_id = $%d", len(args)))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		conds = append(conds, fmt.Sprintf("d.active = $%d", len(args)))
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		args = append(args, "%"+q+"%")
		conds = append(conds, fmt.Sprintf("(d.titulo ILIKE $%d OR d.codigo ILIKE $%d)", len(args), len(args)))
	}

	from := `
		FROM cuadro_firma d
		JOIN estado_firma e ON e.id = d.estado_firma_id`
	if len(conds) > 0 {
		from += "\n\t\tWHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.q.QueryRow(ctx, "SELECT COUNT(*)"+from, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := "SELECT" + documentColumns + from +
		fmt.Sprintf("\n\t\tORDER BY d.add_date DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, p.Limit, p.Offset())

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, 0, err
		}
		docs = append(docs, *doc)
	}
	return docs, total, rows.Err()
}
