package notify

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestHubDeliversToRecipientOnly(t *testing.T) {
	h := NewHub(4, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	alice, bob := uuid.New(), uuid.New()
	aliceCh := h.Subscribe(ctx, alice)
	bobCh := h.Subscribe(ctx, bob)

	doc := uuid.New()
	if err := h.Notify(ctx, Event{Kind: KindSigned, DocumentID: doc, UserID: alice}); err != nil {
		t.Fatal(err)
	}

	select {
	case evt := <-aliceCh:
		if evt.DocumentID != doc || evt.ID == "" || evt.At.IsZero() {
			t.Fatalf("unexpected event %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("alice did not receive the event")
	}
	select {
	case evt := <-bobCh:
		t.Fatalf("bob received %+v", evt)
	default:
	}
}

func TestHubDropsWhenSubscriberIsSlow(t *testing.T) {
	h := NewHub(1, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	u := uuid.New()
	ch := h.Subscribe(ctx, u)
	for i := 0; i < 3; i++ {
		_ = h.Notify(ctx, Event{Kind: KindStatus, UserID: u})
	}
	if got := len(ch); got != 1 {
		t.Fatalf("expected 1 buffered event, got %d", got)
	}
}

func TestHubUnsubscribesOnCancel(t *testing.T) {
	h := NewHub(1, nil)
	ctx, cancel := context.WithCancel(context.Background())
	u := uuid.New()
	ch := h.Subscribe(ctx, u)
	if h.Subscribers(u) != 1 {
		t.Fatal("expected one subscriber")
	}

	cancel()
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
	if h.Subscribers(u) != 0 {
		t.Fatal("subscriber not removed")
	}
}

func TestNewEventIDIsMonotonic(t *testing.T) {
	at := time.Now()
	a, b := NewEventID(at), NewEventID(at)
	if a >= b {
		t.Fatalf("expected increasing ids, got %s then %s", a, b)
	}
}
