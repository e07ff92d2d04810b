package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cuadrofirma-backend/models"
	"cuadrofirma-backend/repository"
	"cuadrofirma-backend/storage"

	"github.com/google/uuid"
)

// CreateDocumentRequest represents a request to open a new cuadro de firmas
type CreateDocumentRequest struct {
	Title       string
	Description string
	Version     string
	Code        string
	CompanyID   *uuid.UUID
	CreatedBy   uuid.UUID
	Filename    string
	PDF         []byte
	HTMLSource  *string
	Elabora     uuid.UUID
	Revisa      []uuid.UUID
	Aprueba     []uuid.UUID
}

// CreateDocument stores the PDF, inserts the document as Pendiente with its
// first history entry and assigns the responsibles. A failed insert removes
// the uploaded object again.
func (s *WorkflowService) CreateDocument(ctx context.Context, req CreateDocumentRequest) (*models.Document, error) {
	if err := s.requireStore(); err != nil {
		return nil, err
	}
	if s.storage == nil {
		return nil, errors.New("storage not set")
	}
	if strings.TrimSpace(req.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if len(req.PDF) == 0 {
		return nil, fmt.Errorf("%w: pdf is required", ErrInvalidInput)
	}
	if req.CreatedBy == uuid.Nil {
		return nil, fmt.Errorf("%w: creator is required", ErrInvalidInput)
	}

	id := uuid.New()
	key := storage.DocumentKey(id, req.Filename)
	if _, err := s.storage.Put(ctx, key, req.PDF, "application/pdf"); err != nil {
		return nil, fmt.Errorf("%w: upload document: %w", ErrStorage, err)
	}

	var (
		doc    *models.Document
		result *ReconcileResult
	)
	err := s.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		pending, err := tx.StatusByName(ctx, models.StatusPendiente)
		if err != nil {
			return notFound(err, "status %q", models.StatusPendiente)
		}
		if _, err := tx.GetUser(ctx, req.CreatedBy); err != nil {
			return notFound(err, "user %s", req.CreatedBy)
		}

		d := &models.Document{
			ID:          id,
			Title:       strings.TrimSpace(req.Title),
			Description: req.Description,
			Version:     req.Version,
			Code:        req.Code,
			StatusID:    pending.ID,
			StatusName:  pending.Name,
			CompanyID:   req.CompanyID,
			CreatedBy:   req.CreatedBy,
			HTMLSource:  req.HTMLSource,
			Filename:    req.Filename,
			StorageKey:  key,
			Active:      true,
		}
		if err := tx.CreateDocument(ctx, d); err != nil {
			return err
		}
		if err := tx.AppendHistory(ctx, &models.HistoryEntry{
			DocumentID:  id,
			UserID:      req.CreatedBy,
			StatusID:    pending.ID,
			StatusName:  pending.Name,
			Observation: "documento creado",
		}); err != nil {
			return err
		}

		desired, err := desiredAssignees(ctx, tx, req.Elabora, req.Revisa, req.Aprueba)
		if err != nil {
			return err
		}
		if result, err = reconcileTx(ctx, tx, id, desired); err != nil {
			return err
		}
		doc = d
		return nil
	})
	if err != nil {
		if derr := s.storage.Delete(context.WithoutCancel(ctx), key); derr != nil {
			s.log.Errorw("failed to remove orphaned upload", "storage_key", key, "error", derr)
		}
		s.log.Warnw("document creation failed", "document_id", id, "error", err)
		return nil, err
	}

	s.log.Infow("document created", "document_id", id, "created_by", req.CreatedBy, "signers", len(result.Added))
	s.afterReconcile(ctx, id, result)
	return doc, nil
}
