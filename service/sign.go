package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cuadrofirma-backend/models"
	"cuadrofirma-backend/notify"
	"cuadrofirma-backend/render"
	"cuadrofirma-backend/repository"

	"github.com/google/uuid"
)

// SignRequest represents a signer stamping their signature on a document
type SignRequest struct {
	DocumentID         uuid.UUID
	UserID             uuid.UUID
	ResponsibilityName string
	SignatureImage     []byte
}

// SignResult represents the outcome of a signature
type SignResult struct {
	Document *models.Document
	// Transitioned is set when the signature moved the document to a new status.
	Transitioned bool
}

type signPlan struct {
	doc         *models.Document
	resp        *models.Responsibility
	signerName  string
	placeholder string
}

// SignDocument validates the signing order, stamps the signature image on
// the stored PDF, overwrites it, marks the assignment signed and advances the
// workflow when the signer's rank (or the whole chain) is complete.
func (s *WorkflowService) SignDocument(ctx context.Context, req SignRequest) (*SignResult, error) {
	result, err := s.signDocument(ctx, req)
	if err != nil {
		s.metrics.SignOutcome(signOutcome(err))
		s.log.Warnw("sign rejected",
			"document_id", req.DocumentID,
			"user_id", req.UserID,
			"responsibility", req.ResponsibilityName,
			"error", err,
		)
		return nil, err
	}
	s.metrics.SignOutcome("signed")
	return result, nil
}

func (s *WorkflowService) signDocument(ctx context.Context, req SignRequest) (*SignResult, error) {
	if err := s.requireStore(); err != nil {
		return nil, err
	}
	if s.storage == nil || s.renderer == nil {
		return nil, errors.New("storage or renderer not set")
	}
	if len(req.SignatureImage) == 0 {
		return nil, fmt.Errorf("%w: signature image is empty", ErrInvalidInput)
	}
	if strings.TrimSpace(req.ResponsibilityName) == "" {
		return nil, fmt.Errorf("%w: responsibility is required", ErrInvalidInput)
	}

	// The blob is read, stamped and written back as a whole, so signers of
	// the same document take turns here.
	unlock, err := s.docLocks.Lock(ctx, req.DocumentID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var plan *signPlan
	err = s.store.View(ctx, func(ctx context.Context, tx repository.Tx) error {
		p, err := planSignature(ctx, tx, req)
		plan = p
		return err
	})
	if err != nil {
		return nil, err
	}

	original, err := s.storage.GetBlob(ctx, plan.doc.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch document: %w", ErrStorage, err)
	}
	signedAt := s.now()
	stamped, err := s.renderer.RenderSignature(ctx, original, req.SignatureImage, plan.placeholder, signedAt)
	if err != nil {
		if errors.Is(err, render.ErrPlaceholderNotFound) {
			return nil, fmt.Errorf("%w: placeholder %q not found", ErrSignatureRender, plan.placeholder)
		}
		return nil, fmt.Errorf("%w: %w", ErrSignatureRender, err)
	}
	if _, err := s.storage.Put(ctx, plan.doc.StorageKey, stamped, "application/pdf"); err != nil {
		return nil, fmt.Errorf("%w: overwrite document: %w", ErrStorage, err)
	}

	var (
		result     *SignResult
		recipients []uuid.UUID
	)
	err = s.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		r, next, err := commitSignature(ctx, tx, req, signedAt)
		result, recipients = r, next
		return err
	})
	if err != nil {
		s.restoreBlob(ctx, plan.doc, original, stamped)
		return nil, err
	}

	s.log.Infow("document signed",
		"document_id", req.DocumentID,
		"user_id", req.UserID,
		"responsibility", plan.resp.Name,
		"status", result.Document.StatusName,
		"transitioned", result.Transitioned,
	)
	if result.Transitioned {
		s.metrics.StateTransition(result.Document.StatusName)
	}
	s.notifyAll(ctx, uniqueIDs(recipients, req.UserID), notify.Event{
		Kind:       notify.KindSigned,
		DocumentID: req.DocumentID,
		Status:     result.Document.StatusName,
		ActorName:  plan.signerName,
	})
	return result, nil
}

// planSignature runs the read-only preconditions of a signature.
func planSignature(ctx context.Context, tx repository.Tx, req SignRequest) (*signPlan, error) {
	doc, err := tx.GetDocument(ctx, req.DocumentID)
	if err != nil {
		return nil, notFound(err, "document %s", req.DocumentID)
	}
	if !doc.Active {
		return nil, fmt.Errorf("%w: %s", ErrDocumentInactive, doc.ID)
	}
	resp, err := checkOrder(ctx, tx, doc.ID, req.ResponsibilityName)
	if err != nil {
		return nil, err
	}
	a, err := pendingAssignment(ctx, tx, doc.ID, req.UserID, resp)
	if err != nil {
		return nil, err
	}
	name := a.User.FullName()
	return &signPlan{
		doc:         doc,
		resp:        resp,
		signerName:  name,
		placeholder: render.Placeholder(resp.Name, name),
	}, nil
}

func pendingAssignment(ctx context.Context, tx repository.Tx, documentID, userID uuid.UUID, resp *models.Responsibility) (*models.SignerAssignment, error) {
	a, err := tx.GetAssignment(ctx, documentID, userID, resp.ID)
	if err != nil {
		return nil, notFound(err, "user %s is not a %s signer of document %s", userID, resp.Name, documentID)
	}
	switch a.State {
	case models.SignSigned:
		return nil, fmt.Errorf("%w: user %s already signed as %s", ErrAlreadySigned, userID, resp.Name)
	case models.SignNotApplicable:
		return nil, fmt.Errorf("%w: no signature required from user %s as %s", ErrNotFound, userID, resp.Name)
	}
	return a, nil
}

// commitSignature re-validates under the document lock, flips the
// assignment and applies the resulting transition. It returns the users to
// notify: the creator and the signers of the lowest rank still pending.
func commitSignature(ctx context.Context, tx repository.Tx, req SignRequest, signedAt time.Time) (*SignResult, []uuid.UUID, error) {
	doc, err := tx.LockDocument(ctx, req.DocumentID)
	if err != nil {
		return nil, nil, notFound(err, "document %s", req.DocumentID)
	}
	if !doc.Active {
		return nil, nil, fmt.Errorf("%w: %s", ErrDocumentInactive, doc.ID)
	}
	resp, err := checkOrder(ctx, tx, doc.ID, req.ResponsibilityName)
	if err != nil {
		return nil, nil, err
	}

	flipped, err := tx.MarkSigned(ctx, doc.ID, req.UserID, resp.ID, signedAt)
	if err != nil {
		return nil, nil, err
	}
	if !flipped {
		if _, err := pendingAssignment(ctx, tx, doc.ID, req.UserID, resp); err != nil {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("%w: user %s as %s", ErrAlreadySigned, req.UserID, resp.Name)
	}

	rows, err := tx.ListAssignments(ctx, doc.ID)
	if err != nil {
		return nil, nil, err
	}
	var (
		pendingTotal  int
		pendingAtRank int
		nextRank      *int
		next          []uuid.UUID
	)
	for _, a := range rows {
		if a.State != models.SignPending {
			continue
		}
		pendingTotal++
		if a.Responsibility.ID == resp.ID {
			pendingAtRank++
		}
		if o := a.Responsibility.Orden; o != nil && (nextRank == nil || *o < *nextRank) {
			nextRank = o
		}
	}
	for _, a := range rows {
		if a.State == models.SignPending && nextRank != nil && a.Responsibility.Orden != nil && *a.Responsibility.Orden == *nextRank {
			next = append(next, a.UserID)
		}
	}

	var target string
	switch {
	case models.IsCompleted(doc.StatusName):
	case pendingTotal == 0:
		target = models.StatusCompletado
	case pendingAtRank == 0 && !strings.EqualFold(doc.StatusName, models.StatusEnProgreso):
		target = models.StatusEnProgreso
	}

	result := &SignResult{}
	if target != "" {
		status, err := tx.StatusByName(ctx, target)
		if err != nil {
			return nil, nil, notFound(err, "status %q", target)
		}
		if _, err := advanceTx(ctx, tx, doc, status, req.UserID, ""); err != nil {
			return nil, nil, err
		}
		result.Transitioned = true
	}

	updated, err := tx.GetDocument(ctx, doc.ID)
	if err != nil {
		return nil, nil, err
	}
	result.Document = updated
	return result, append([]uuid.UUID{doc.CreatedBy}, next...), nil
}

// restoreBlob puts back the unsigned PDF after the database rejected the
// signature. It leaves the object alone when it no longer holds our stamp.
func (s *WorkflowService) restoreBlob(ctx context.Context, doc *models.Document, original, stamped []byte) {
	ctx = context.WithoutCancel(ctx)
	current, err := s.storage.GetBlob(ctx, doc.StorageKey)
	if err != nil || !bytes.Equal(current, stamped) {
		s.log.Warnw("document changed after rejected signature, not restoring",
			"document_id", doc.ID, "storage_key", doc.StorageKey, "error", err)
		return
	}
	if _, err := s.storage.Put(ctx, doc.StorageKey, original, "application/pdf"); err != nil {
		s.log.Errorw("failed to restore document after rejected signature",
			"document_id", doc.ID, "storage_key", doc.StorageKey, "error", err)
	}
}

func signOutcome(err error) string {
	switch {
	case errors.Is(err, ErrOrderViolation):
		return "order_violation"
	case errors.Is(err, ErrAlreadySigned):
		return "already_signed"
	case errors.Is(err, ErrDocumentInactive):
		return "inactive"
	case errors.Is(err, ErrSignatureRender):
		return "render_error"
	case errors.Is(err, ErrStorage):
		return "storage_error"
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrInvalidResponsibility):
		return "not_found"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrTransient):
		return "transient"
	default:
		return "error"
	}
}
