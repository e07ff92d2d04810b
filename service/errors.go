package service

import (
	"errors"
	"fmt"

	"cuadrofirma-backend/repository"
)

var (
	ErrNotFound              = errors.New("not found")
	ErrInvalidResponsibility = errors.New("responsibility has no signing order")
	ErrOrderViolation        = errors.New("signing order violated")
	ErrDocumentInactive      = errors.New("document is inactive")
	ErrAlreadySigned         = errors.New("already signed")
	ErrSignatureRender       = errors.New("signature render failed")
	ErrStorage               = errors.New("storage failure")
	ErrInvalidTransition     = errors.New("invalid state transition")
	ErrInvalidInput          = errors.New("invalid input")
	// ErrTransient is the persistence layer's error once its retries ran out.
	ErrTransient = repository.ErrTransient
)

// OrderViolationError names the earlier responsibility that still has
// pending signatures.
type OrderViolationError struct {
	Responsibility string
}

func (e *OrderViolationError) Error() string {
	return fmt.Sprintf("%s: %s has pending signatures", ErrOrderViolation, e.Responsibility)
}

// Is makes errors.Is(err, ErrOrderViolation) hold.
func (e *OrderViolationError) Is(target error) bool {
	return target == ErrOrderViolation
}

// notFound maps the repository's missing-row error to ErrNotFound naming what
// was looked up, and passes every other error through.
func notFound(err error, format string, args ...any) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
	}
	return err
}
