package service

import (
	"context"
	"errors"
	"fmt"

	"cuadrofirma-backend/models"
	"cuadrofirma-backend/repository"

	"github.com/google/uuid"
)

// ValidateSigningOrder checks whether signers holding responsibilityName may
// sign the document now. It fails with *OrderViolationError naming the
// earliest responsibility that still has pending signatures.
func (s *WorkflowService) ValidateSigningOrder(ctx context.Context, documentID uuid.UUID, responsibilityName string) error {
	if err := s.requireStore(); err != nil {
		return err
	}
	return s.store.View(ctx, func(ctx context.Context, tx repository.Tx) error {
		if _, err := tx.GetDocument(ctx, documentID); err != nil {
			return notFound(err, "document %s", documentID)
		}
		_, err := checkOrder(ctx, tx, documentID, responsibilityName)
		return err
	})
}

// checkOrder resolves the responsibility and verifies that every ranked
// responsibility with a strictly lower orden has no pending assignment on
// the document. Signers sharing a rank are not ordered among themselves.
func checkOrder(ctx context.Context, tx repository.Tx, documentID uuid.UUID, responsibilityName string) (*models.Responsibility, error) {
	resp, err := tx.ResponsibilityByName(ctx, responsibilityName)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: unknown responsibility %q", ErrInvalidResponsibility, responsibilityName)
	}
	if err != nil {
		return nil, err
	}
	if !resp.Ranked() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidResponsibility, resp.Name)
	}

	catalog, err := tx.ListResponsibilities(ctx)
	if err != nil {
		return nil, err
	}
	for _, earlier := range catalog {
		if !earlier.Ranked() || *earlier.Orden >= *resp.Orden {
			continue
		}
		pending, err := tx.CountPending(ctx, documentID, earlier.ID)
		if err != nil {
			return nil, err
		}
		if pending > 0 {
			return nil, &OrderViolationError{Responsibility: earlier.Name}
		}
	}
	return resp, nil
}
