package repository

import (
	"context"

	"cuadrofirma-backend/models"

	"github.com/google/uuid"
)

// UserRepository handles database operations for users
type UserRepository struct {
	q Querier
}

// NewUserRepository creates a new user repository
func NewUserRepository(q Querier) *UserRepository {
	return &UserRepository{q: q}
}

// GetUser retrieves a user by ID
func (r *UserRepository) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user := &models.User{}
	query := `
		SELECT id, email, first_name, middle_name, last_name, photo_key, created_at, updated_at
		FROM users
		WHERE id = $1`

	err := r.q.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.Email,
		&user.FirstName,
		&user.MiddleName,
		&user.LastName,
		&user.PhotoKey,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return user, nil
}
