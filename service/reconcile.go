package service

import (
	"context"
	"fmt"

	"cuadrofirma-backend/models"
	"cuadrofirma-backend/notify"
	"cuadrofirma-backend/repository"

	"github.com/google/uuid"
)

// ReconcileResult lists what a reconciliation changed
type ReconcileResult struct {
	Added   []models.Assignee
	Reset   []models.Assignee
	Removed []models.Assignee
}

// ReconcileResponsibles makes the document's signer rows equal to desired.
// Rows outside desired are deleted, surviving rows go back to pending and
// missing rows are created pending. Applying the same set twice leaves the
// same rows.
func (s *WorkflowService) ReconcileResponsibles(ctx context.Context, documentID uuid.UUID, desired []models.Assignee) (*ReconcileResult, error) {
	if err := s.requireStore(); err != nil {
		return nil, err
	}

	var result *ReconcileResult
	err := s.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		doc, err := lockMutable(ctx, tx, documentID)
		if err != nil {
			return err
		}
		result, err = reconcileTx(ctx, tx, doc.ID, desired)
		return err
	})
	if err != nil {
		s.log.Warnw("reconcile rejected", "document_id", documentID, "error", err)
		return nil, err
	}

	s.afterReconcile(ctx, documentID, result)
	return result, nil
}

// SetResponsiblesRequest names the signers of each responsibility
type SetResponsiblesRequest struct {
	DocumentID uuid.UUID
	Elabora    uuid.UUID
	Revisa     []uuid.UUID
	Aprueba    []uuid.UUID
}

// SetResponsibles resolves the elabora/revisa/aprueba lists against the
// catalog and reconciles the document's signer rows to them.
func (s *WorkflowService) SetResponsibles(ctx context.Context, req SetResponsiblesRequest) (*ReconcileResult, error) {
	if err := s.requireStore(); err != nil {
		return nil, err
	}

	var result *ReconcileResult
	err := s.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		doc, err := lockMutable(ctx, tx, req.DocumentID)
		if err != nil {
			return err
		}
		desired, err := desiredAssignees(ctx, tx, req.Elabora, req.Revisa, req.Aprueba)
		if err != nil {
			return err
		}
		result, err = reconcileTx(ctx, tx, doc.ID, desired)
		return err
	})
	if err != nil {
		s.log.Warnw("reconcile rejected", "document_id", req.DocumentID, "error", err)
		return nil, err
	}

	s.afterReconcile(ctx, req.DocumentID, result)
	return result, nil
}

func (s *WorkflowService) afterReconcile(ctx context.Context, documentID uuid.UUID, result *ReconcileResult) {
	s.metrics.Reconciled()
	s.log.Infow("responsibles reconciled",
		"document_id", documentID,
		"added", len(result.Added),
		"reset", len(result.Reset),
		"removed", len(result.Removed),
	)

	added := make([]uuid.UUID, 0, len(result.Added))
	for _, a := range result.Added {
		added = append(added, a.UserID)
	}
	s.notifyAll(ctx, uniqueIDs(added, uuid.Nil), notify.Event{
		Kind:       notify.KindAssigned,
		DocumentID: documentID,
	})
}

// lockMutable locks the document and checks that its signers may still change.
func lockMutable(ctx context.Context, tx repository.Tx, documentID uuid.UUID) (*models.Document, error) {
	doc, err := tx.LockDocument(ctx, documentID)
	if err != nil {
		return nil, notFound(err, "document %s", documentID)
	}
	if !doc.Active {
		return nil, fmt.Errorf("%w: %s", ErrDocumentInactive, doc.ID)
	}
	if models.IsCompleted(doc.StatusName) {
		return nil, fmt.Errorf("%w: document %s is already %s", ErrInvalidTransition, doc.ID, doc.StatusName)
	}
	return doc, nil
}

// desiredAssignees builds the desired set from the three role lists.
func desiredAssignees(ctx context.Context, tx repository.Tx, elabora uuid.UUID, revisa, aprueba []uuid.UUID) ([]models.Assignee, error) {
	if elabora == uuid.Nil {
		return nil, fmt.Errorf("%w: elabora is required", ErrInvalidInput)
	}

	groups := []struct {
		name  string
		users []uuid.UUID
	}{
		{models.ResponsibilityElabora, []uuid.UUID{elabora}},
		{models.ResponsibilityRevisa, revisa},
		{models.ResponsibilityAprueba, aprueba},
	}

	var desired []models.Assignee
	for _, g := range groups {
		if len(g.users) == 0 {
			continue
		}
		resp, err := tx.ResponsibilityByName(ctx, g.name)
		if err != nil {
			return nil, notFound(err, "responsibility %q", g.name)
		}
		for _, u := range g.users {
			desired = append(desired, models.Assignee{UserID: u, ResponsibilityID: resp.ID})
		}
	}
	return desired, nil
}

// reconcileTx diffs the current rows against desired on a locked document.
func reconcileTx(ctx context.Context, tx repository.Tx, documentID uuid.UUID, desired []models.Assignee) (*ReconcileResult, error) {
	want := make(map[models.Assignee]struct{}, len(desired))
	var ordered []models.Assignee
	for _, a := range desired {
		if a.UserID == uuid.Nil {
			return nil, fmt.Errorf("%w: assignment without user", ErrInvalidInput)
		}
		if _, dup := want[a]; dup {
			continue
		}
		want[a] = struct{}{}
		ordered = append(ordered, a)
	}

	ranked := make(map[int]bool)
	for _, a := range ordered {
		if _, seen := ranked[a.ResponsibilityID]; seen {
			continue
		}
		ranked[a.ResponsibilityID] = false
	}
	catalog, err := tx.ListResponsibilities(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range catalog {
		if _, used := ranked[r.ID]; used {
			ranked[r.ID] = r.Ranked()
		}
	}
	for id, ok := range ranked {
		if !ok {
			return nil, fmt.Errorf("%w: responsibility %d", ErrInvalidResponsibility, id)
		}
	}

	current, err := tx.ListAssignments(ctx, documentID)
	if err != nil {
		return nil, err
	}
	have := make(map[models.Assignee]struct{}, len(current))
	result := &ReconcileResult{}

	for _, row := range current {
		key := row.Key()
		have[key] = struct{}{}
		if _, keep := want[key]; keep {
			if err := tx.ResetAssignment(ctx, documentID, key); err != nil {
				return nil, err
			}
			result.Reset = append(result.Reset, key)
			continue
		}
		if err := tx.DeleteAssignment(ctx, documentID, key); err != nil {
			return nil, err
		}
		result.Removed = append(result.Removed, key)
	}

	for _, a := range ordered {
		if _, ok := have[a]; ok {
			continue
		}
		if _, err := tx.GetUser(ctx, a.UserID); err != nil {
			return nil, notFound(err, "user %s", a.UserID)
		}
		if err := tx.CreateAssignment(ctx, documentID, a); err != nil {
			return nil, err
		}
		result.Added = append(result.Added, a)
	}
	return result, nil
}
