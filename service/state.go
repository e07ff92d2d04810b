package service

import (
	"context"
	"fmt"
	"strings"

	"cuadrofirma-backend/models"
	"cuadrofirma-backend/notify"
	"cuadrofirma-backend/repository"

	"github.com/google/uuid"
)

// AdvanceStateRequest represents a request to move a document to a new status
type AdvanceStateRequest struct {
	DocumentID  uuid.UUID
	StatusID    int
	ActorID     uuid.UUID
	Observation string
}

// AdvanceStateResult represents the result of a status change
type AdvanceStateResult struct {
	Document *models.Document
	Entry    *models.HistoryEntry
}

// AdvanceState changes the document's status and appends the matching
// history entry in one transaction. Moving to Rechazado also deactivates
// the document.
func (s *WorkflowService) AdvanceState(ctx context.Context, req AdvanceStateRequest) (*AdvanceStateResult, error) {
	if err := s.requireStore(); err != nil {
		return nil, err
	}

	var (
		result     *AdvanceStateResult
		recipients []uuid.UUID
	)
	err := s.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		doc, err := tx.LockDocument(ctx, req.DocumentID)
		if err != nil {
			return notFound(err, "document %s", req.DocumentID)
		}
		status, err := tx.StatusByID(ctx, req.StatusID)
		if err != nil {
			return notFound(err, "status %d", req.StatusID)
		}
		entry, err := advanceTx(ctx, tx, doc, status, req.ActorID, req.Observation)
		if err != nil {
			return err
		}
		updated, err := tx.GetDocument(ctx, doc.ID)
		if err != nil {
			return err
		}
		rows, err := tx.ListAssignments(ctx, doc.ID)
		if err != nil {
			return err
		}

		result = &AdvanceStateResult{Document: updated, Entry: entry}
		recipients = []uuid.UUID{doc.CreatedBy}
		for _, a := range rows {
			recipients = append(recipients, a.UserID)
		}
		return nil
	})
	if err != nil {
		s.log.Warnw("state transition rejected",
			"document_id", req.DocumentID, "status_id", req.StatusID, "actor_id", req.ActorID, "error", err)
		return nil, err
	}

	s.metrics.StateTransition(result.Document.StatusName)
	s.log.Infow("state transition applied",
		"document_id", req.DocumentID,
		"status", result.Document.StatusName,
		"actor_id", req.ActorID,
		"active", result.Document.Active,
	)
	s.notifyAll(ctx, uniqueIDs(recipients, req.ActorID), notify.Event{
		Kind:       notify.KindStatus,
		DocumentID: req.DocumentID,
		Status:     result.Document.StatusName,
	})
	return result, nil
}

// RejectDocumentRequest represents a request to reject a document
type RejectDocumentRequest struct {
	DocumentID  uuid.UUID
	ActorID     uuid.UUID
	Observation string
}

// RejectDocument moves the document to Rechazado. An observation is required.
func (s *WorkflowService) RejectDocument(ctx context.Context, req RejectDocumentRequest) (*AdvanceStateResult, error) {
	if err := s.requireStore(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Observation) == "" {
		return nil, fmt.Errorf("%w: a rejection requires an observation", ErrInvalidInput)
	}

	var statusID int
	err := s.store.View(ctx, func(ctx context.Context, tx repository.Tx) error {
		st, err := tx.StatusByName(ctx, models.StatusRechazado)
		if err != nil {
			return notFound(err, "status %q", models.StatusRechazado)
		}
		statusID = st.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.AdvanceState(ctx, AdvanceStateRequest{
		DocumentID:  req.DocumentID,
		StatusID:    statusID,
		ActorID:     req.ActorID,
		Observation: req.Observation,
	})
}

// advanceTx applies a transition on a document already locked by tx.
func advanceTx(ctx context.Context, tx repository.Tx, doc *models.Document, status *models.Status, actorID uuid.UUID, observation string) (*models.HistoryEntry, error) {
	if !doc.Active {
		return nil, fmt.Errorf("%w: %s", ErrDocumentInactive, doc.ID)
	}
	if models.IsCompleted(doc.StatusName) {
		return nil, fmt.Errorf("%w: document %s is already %s", ErrInvalidTransition, doc.ID, doc.StatusName)
	}

	active := !models.IsRejected(status.Name)
	if err := tx.SetDocumentStatus(ctx, doc.ID, status.ID, active); err != nil {
		return nil, err
	}

	observation = strings.TrimSpace(observation)
	if observation == "" {
		observation = "workflow advanced to state " + status.Name
	}
	entry := &models.HistoryEntry{
		DocumentID:  doc.ID,
		UserID:      actorID,
		StatusID:    status.ID,
		StatusName:  status.Name,
		Observation: observation,
	}
	if err := tx.AppendHistory(ctx, entry); err != nil {
		return nil, err
	}

	doc.StatusID = status.ID
	doc.StatusName = status.Name
	doc.Active = active
	return entry, nil
}
