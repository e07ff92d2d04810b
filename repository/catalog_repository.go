package repository

import (
	"context"

	"cuadrofirma-backend/models"
)

// CatalogRepository reads the responsabilidad_firma and estado_firma reference data
type CatalogRepository struct {
	q Querier
}

// NewCatalogRepository creates a new catalog repository
func NewCatalogRepository(q Querier) *CatalogRepository {
	return &CatalogRepository{q: q}
}

// ResponsibilityByName retrieves a responsibility by case-insensitive name
func (r *CatalogRepository) ResponsibilityByName(ctx context.Context, name string) (*models.Responsibility, error) {
	resp := &models.Responsibility{}
	query := `
		SELECT id, nombre, orden
		FROM responsabilidad_firma
		WHERE LOWER(nombre) = LOWER($1)`

	if err := r.q.QueryRow(ctx, query, name).Scan(&resp.ID, &resp.Name, &resp.Orden); err != nil {
		return nil, notFound(err)
	}
	return resp, nil
}

// ListResponsibilities retrieves the catalog ordered by rank
func (r *CatalogRepository) ListResponsibilities(ctx context.Context) ([]models.Responsibility, error) {
	query := `
		SELECT id, nombre, orden
		FROM responsabilidad_firma
		ORDER BY orden ASC NULLS LAST, id ASC`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Responsibility
	for rows.Next() {
		var resp models.Responsibility
		if err := rows.Scan(&resp.ID, &resp.Name, &resp.Orden); err != nil {
			return nil, err
		}
		out = append(out, resp)
	}
	return out, rows.Err()
}

// StatusByID retrieves a status by ID
func (r *CatalogRepository) StatusByID(ctx context.Context, id int) (*models.Status, error) {
	st := &models.Status{}
	err := r.q.QueryRow(ctx, `SELECT id, nombre FROM estado_firma WHERE id = $1`, id).Scan(&st.ID, &st.Name)
	if err != nil {
		return nil, notFound(err)
	}
	return st, nil
}

// StatusByName retrieves a status by case-insensitive name
func (r *CatalogRepository) StatusByName(ctx context.Context, name string) (*models.Status, error) {
	st := &models.Status{}
	err := r.q.QueryRow(ctx, `SELECT id, nombre FROM estado_firma WHERE LOWER(nombre) = LOWER($1)`, name).Scan(&st.ID, &st.Name)
	if err != nil {
		return nil, notFound(err)
	}
	return st, nil
}
