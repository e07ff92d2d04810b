package service

import (
	"context"
	"errors"
	"time"

	"cuadrofirma-backend/metrics"
	"cuadrofirma-backend/notify"
	"cuadrofirma-backend/render"
	"cuadrofirma-backend/repository"
	"cuadrofirma-backend/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WorkflowService coordinates the sign-off workflow of cuadros de firmas
type WorkflowService struct {
	store      repository.Store
	storage    storage.Storage
	renderer   render.Renderer
	notifier   notify.Notifier
	log        *zap.SugaredLogger
	metrics    *metrics.Metrics
	now        func() time.Time
	presignTTL time.Duration
	docLocks   *keyedMutex
}

// WorkflowServiceOption is a functional option for WorkflowService
type WorkflowServiceOption func(*WorkflowService)

// WithStore sets the persistence store
func WithStore(store repository.Store) WorkflowServiceOption {
	return func(s *WorkflowService) {
		s.store = store
	}
}

// WithStorage sets the object storage
func WithStorage(st storage.Storage) WorkflowServiceOption {
	return func(s *WorkflowService) {
		s.storage = st
	}
}

// WithRenderer sets the PDF signature renderer
func WithRenderer(r render.Renderer) WorkflowServiceOption {
	return func(s *WorkflowService) {
		s.renderer = r
	}
}

// WithNotifier sets the notification sink
func WithNotifier(n notify.Notifier) WorkflowServiceOption {
	return func(s *WorkflowService) {
		s.notifier = n
	}
}

// WithLogger sets the logger
func WithLogger(log *zap.SugaredLogger) WorkflowServiceOption {
	return func(s *WorkflowService) {
		s.log = log
	}
}

// WithMetrics sets the metrics collectors
func WithMetrics(m *metrics.Metrics) WorkflowServiceOption {
	return func(s *WorkflowService) {
		s.metrics = m
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) WorkflowServiceOption {
	return func(s *WorkflowService) {
		s.now = now
	}
}

// WithPresignTTL sets the lifetime of presigned document URLs
func WithPresignTTL(ttl time.Duration) WorkflowServiceOption {
	return func(s *WorkflowService) {
		s.presignTTL = ttl
	}
}

// NewWorkflowService creates a new workflow service
func NewWorkflowService(opts ...WorkflowServiceOption) *WorkflowService {
	s := &WorkflowService{
		notifier:   notify.Nop{},
		log:        zap.NewNop().Sugar(),
		now:        time.Now,
		presignTTL: 15 * time.Minute,
		docLocks:   newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *WorkflowService) requireStore() error {
	if s.store == nil {
		return errors.New("store not set")
	}
	return nil
}

// notifyAll delivers one event per recipient. Failures are logged and dropped.
func (s *WorkflowService) notifyAll(ctx context.Context, recipients []uuid.UUID, evt notify.Event) {
	// delivery must not be cut short by the request that triggered it
	ctx = context.WithoutCancel(ctx)
	evt.At = s.now().UTC()
	for _, userID := range recipients {
		evt.UserID = userID
		evt.ID = ""
		if err := s.notifier.Notify(ctx, evt); err != nil {
			s.log.Warnw("notification failed",
				"kind", evt.Kind, "document_id", evt.DocumentID, "user_id", userID, "error", err)
		}
	}
}

func uniqueIDs(ids []uuid.UUID, skip uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	var out []uuid.UUID
	for _, id := range ids {
		if id == uuid.Nil || id == skip {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
