package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cuadrofirma-backend/models"
	"cuadrofirma-backend/repository"

	"github.com/google/uuid"
)

// GetDocumentDetail returns the document with days elapsed, progress and the
// signer summary.
func (s *WorkflowService) GetDocumentDetail(ctx context.Context, documentID uuid.UUID) (*models.DocumentDetail, error) {
	if err := s.requireStore(); err != nil {
		return nil, err
	}

	var (
		doc  *models.Document
		rows []models.SignerAssignment
	)
	err := s.store.View(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		if doc, err = tx.GetDocument(ctx, documentID); err != nil {
			return notFound(err, "document %s", documentID)
		}
		rows, err = tx.ListAssignments(ctx, documentID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &models.DocumentDetail{
		DocumentStatusView: s.statusView(*doc, rows),
		Firmantes:          FirmantesResumen(rows, func(u models.User) string { return s.photoURL(ctx, u) }),
	}, nil
}

func (s *WorkflowService) statusView(doc models.Document, rows []models.SignerAssignment) models.DocumentStatusView {
	return models.DocumentStatusView{
		Document:        doc,
		DaysElapsed:     DaysElapsed(doc, s.now()),
		ProgressPercent: ProgressPercent(rows),
	}
}

func (s *WorkflowService) photoURL(ctx context.Context, u models.User) string {
	if u.PhotoKey == nil || *u.PhotoKey == "" || s.storage == nil {
		return ""
	}
	url, err := s.storage.PresignedURL(ctx, *u.PhotoKey, s.presignTTL)
	if err != nil {
		s.log.Debugw("photo url unavailable", "user_id", u.ID, "error", err)
		return ""
	}
	return url
}

// ListHistory returns the document's status history, oldest first.
func (s *WorkflowService) ListHistory(ctx context.Context, documentID uuid.UUID) ([]models.HistoryEntry, error) {
	if err := s.requireStore(); err != nil {
		return nil, err
	}

	var entries []models.HistoryEntry
	err := s.store.View(ctx, func(ctx context.Context, tx repository.Tx) error {
		if _, err := tx.GetDocument(ctx, documentID); err != nil {
			return notFound(err, "document %s", documentID)
		}
		var err error
		entries, err = tx.ListHistory(ctx, documentID)
		return err
	})
	return entries, err
}

// DocumentURL is a time-limited link to the stored PDF
type DocumentURL struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// GetDocumentURL presigns the document's PDF.
func (s *WorkflowService) GetDocumentURL(ctx context.Context, documentID uuid.UUID) (*DocumentURL, error) {
	if err := s.requireStore(); err != nil {
		return nil, err
	}
	if s.storage == nil {
		return nil, errors.New("storage not set")
	}

	var key string
	err := s.store.View(ctx, func(ctx context.Context, tx repository.Tx) error {
		doc, err := tx.GetDocument(ctx, documentID)
		if err != nil {
			return notFound(err, "document %s", documentID)
		}
		key = doc.StorageKey
		return nil
	})
	if err != nil {
		return nil, err
	}

	expires := s.now().Add(s.presignTTL)
	url, err := s.storage.PresignedURL(ctx, key, s.presignTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: presign: %w", ErrStorage, err)
	}
	return &DocumentURL{URL: url, ExpiresAt: expires}, nil
}

// GetAsignacionesByUser lists the signer rows assigned to userID.
func (s *WorkflowService) GetAsignacionesByUser(ctx context.Context, userID uuid.UUID, p models.Pagination) (*models.Page[models.UserAssignment], error) {
	if err := s.requireStore(); err != nil {
		return nil, err
	}
	p = p.Normalize()

	var (
		items []models.UserAssignment
		total int
	)
	err := s.store.View(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		items, total, err = tx.ListAssignmentsByUser(ctx, userID, p)
		return err
	})
	if err != nil {
		return nil, err
	}
	page := models.NewPage(items, p, total)
	return &page, nil
}

// ListSupervision lists documents matching filter with their derived status.
func (s *WorkflowService) ListSupervision(ctx context.Context, filter models.SupervisionFilter, p models.Pagination) (*models.Page[models.DocumentStatusView], error) {
	if err := s.requireStore(); err != nil {
		return nil, err
	}
	p = p.Normalize()

	var (
		items []models.DocumentStatusView
		total int
	)
	err := s.store.View(ctx, func(ctx context.Context, tx repository.Tx) error {
		docs, n, err := tx.ListSupervision(ctx, filter, p)
		if err != nil {
			return err
		}
		items = make([]models.DocumentStatusView, 0, len(docs))
		for _, d := range docs {
			rows, err := tx.ListAssignments(ctx, d.ID)
			if err != nil {
				return err
			}
			items = append(items, s.statusView(d, rows))
		}
		total = n
		return nil
	})
	if err != nil {
		return nil, err
	}
	page := models.NewPage(items, p, total)
	return &page, nil
}
