package repository

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cuadrofirma-backend/models"

	"github.com/google/uuid"
)

func seededStore(t *testing.T) (*MemoryStore, models.Document, models.User) {
	t.Helper()
	s := NewMemoryStore()
	s.SeedCatalog()
	u := s.AddUser(models.User{Email: "ana@example.com", FirstName: "Ana"})

	doc := models.Document{Title: "Manual", StatusID: 1, CreatedBy: u.ID, Active: true}
	err := s.WithTx(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.CreateDocument(ctx, &doc)
	})
	if err != nil {
		t.Fatal(err)
	}
	return s, doc, u
}

func TestMemoryStoreRollsBackOnError(t *testing.T) {
	s, doc, u := seededStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.SetDocumentStatus(ctx, doc.ID, 3, false); err != nil {
			return err
		}
		if err := tx.CreateAssignment(ctx, doc.ID, models.Assignee{UserID: u.ID, ResponsibilityID: 1}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	_ = s.View(ctx, func(ctx context.Context, tx Tx) error {
		got, err := tx.GetDocument(ctx, doc.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.StatusID != 1 || !got.Active {
			t.Fatalf("status leaked from rolled back tx: %+v", got)
		}
		rows, _ := tx.ListAssignments(ctx, doc.ID)
		if len(rows) != 0 {
			t.Fatalf("assignment leaked from rolled back tx: %d rows", len(rows))
		}
		return nil
	})
}

func TestMemoryStoreViewIsReadOnly(t *testing.T) {
	s, doc, _ := seededStore(t)
	err := s.View(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.SetDocumentStatus(ctx, doc.ID, 2, true)
	})
	if !errors.Is(err, errReadOnly) {
		t.Fatalf("expected errReadOnly, got %v", err)
	}
}

func TestMemoryStoreMarkSignedIsCompareAndSet(t *testing.T) {
	s, doc, u := seededStore(t)
	ctx := context.Background()
	key := models.Assignee{UserID: u.ID, ResponsibilityID: 1}

	if err := s.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.CreateAssignment(ctx, doc.ID, key)
	}); err != nil {
		t.Fatal(err)
	}

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.WithTx(ctx, func(ctx context.Context, tx Tx) error {
				ok, err := tx.MarkSigned(ctx, doc.ID, u.ID, 1, time.Now())
				if ok {
					wins.Add(1)
				}
				return err
			})
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Fatalf("expected exactly one successful flip, got %d", wins.Load())
	}
}

func TestMemoryStoreCountPendingSkipsSignedRows(t *testing.T) {
	s, doc, u := seededStore(t)
	ctx := context.Background()
	other := s.AddUser(models.User{Email: "beto@example.com", FirstName: "Beto"})

	err := s.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		for _, id := range []uuid.UUID{u.ID, other.ID} {
			if err := tx.CreateAssignment(ctx, doc.ID, models.Assignee{UserID: id, ResponsibilityID: 2}); err != nil {
				return err
			}
		}
		_, err := tx.MarkSigned(ctx, doc.ID, u.ID, 2, time.Now())
		return err
	})
	if err != nil {
		t.Fatal(err)
	}

	_ = s.View(ctx, func(ctx context.Context, tx Tx) error {
		n, err := tx.CountPending(ctx, doc.ID, 2)
		if err != nil {
			t.Fatal(err)
		}
		if n != 1 {
			t.Fatalf("expected 1 pending, got %d", n)
		}
		return nil
	})
}

func TestMemoryStoreHistoryOrder(t *testing.T) {
	s, doc, u := seededStore(t)
	ctx := context.Background()
	fixed := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return fixed })

	for _, st := range []int{2, 4} {
		err := s.WithTx(ctx, func(ctx context.Context, tx Tx) error {
			return tx.AppendHistory(ctx, &models.HistoryEntry{DocumentID: doc.ID, UserID: u.ID, StatusID: st})
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	_ = s.View(ctx, func(ctx context.Context, tx Tx) error {
		h, _ := tx.ListHistory(ctx, doc.ID)
		if len(h) != 2 {
			t.Fatalf("expected 2 entries, got %d", len(h))
		}
		if h[0].StatusName != models.StatusEnProgreso || h[1].StatusName != models.StatusCompletado {
			t.Fatalf("ties must break by insertion order: %+v", h)
		}
		return nil
	})
}

func TestMemoryStoreCancelledContextRollsBack(t *testing.T) {
	s, doc, _ := seededStore(t)
	ctx, cancel := context.WithCancel(context.Background())

	err := s.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.SetDocumentStatus(ctx, doc.ID, 2, true); err != nil {
			return err
		}
		cancel()
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	_ = s.View(context.Background(), func(ctx context.Context, tx Tx) error {
		got, _ := tx.GetDocument(ctx, doc.ID)
		if got.StatusID != 1 {
			t.Fatalf("write survived cancellation: %+v", got)
		}
		return nil
	})
}
