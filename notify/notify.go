package notify

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// Kind names a notification event.
type Kind string

const (
	KindSigned   Kind = "documento.firmado"
	KindStatus   Kind = "documento.estado"
	KindAssigned Kind = "documento.asignado"
)

// Event is delivered to a single recipient.
type Event struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	DocumentID uuid.UUID `json:"document_id"`
	UserID     uuid.UUID `json:"user_id"`
	Status     string    `json:"status,omitempty"`
	ActorName  string    `json:"actor_name,omitempty"`
	At         time.Time `json:"at"`
}

// Notifier delivers events fire-and-forget. Implementations must not block
// the caller on slow recipients.
type Notifier interface {
	Notify(ctx context.Context, evt Event) error
}

// Nop discards every event.
type Nop struct{}

// Notify implements Notifier
func (Nop) Notify(context.Context, Event) error { return nil }

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
)

// NewEventID returns a lexically sortable event identifier.
func NewEventID(at time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(at), entropy).String()
}

// Hub fans events out to the subscribers of each recipient.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uuid.UUID]map[int]chan Event
	next   int
	buffer int
	log    *zap.SugaredLogger
}

// NewHub creates an empty hub. buffer is the per-subscriber queue length.
func NewHub(buffer int, log *zap.SugaredLogger) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Hub{
		subs:   make(map[uuid.UUID]map[int]chan Event),
		buffer: buffer,
		log:    log,
	}
}

// Subscribe registers a subscriber for userID. The channel is closed when
// ctx ends.
func (h *Hub) Subscribe(ctx context.Context, userID uuid.UUID) <-chan Event {
	ch := make(chan Event, h.buffer)

	h.mu.Lock()
	id := h.next
	h.next++
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[int]chan Event)
	}
	h.subs[userID][id] = ch
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs[userID], id)
		if len(h.subs[userID]) == 0 {
			delete(h.subs, userID)
		}
		close(ch)
		h.mu.Unlock()
	}()

	return ch
}

// Subscribers returns the number of live subscriptions for userID.
func (h *Hub) Subscribers(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}

// Notify implements Notifier
func (h *Hub) Notify(_ context.Context, evt Event) error {
	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}
	if evt.ID == "" {
		evt.ID = NewEventID(evt.At)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs[evt.UserID] {
		select {
		case ch <- evt:
		default:
			h.log.Warnw("dropping notification for slow subscriber",
				"event_id", evt.ID, "kind", evt.Kind, "user_id", evt.UserID)
		}
	}
	return nil
}
