package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"cuadrofirma-backend/models"
	"cuadrofirma-backend/notify"
	"cuadrofirma-backend/render"
	"cuadrofirma-backend/repository"
	"cuadrofirma-backend/storage"

	"github.com/google/uuid"
)

var errBoom = errors.New("boom")

// memBlobs is an in-memory storage.Storage.
type memBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	failPut bool
}

func newMemBlobs() *memBlobs {
	return &memBlobs{objects: make(map[string][]byte)}
}

func (m *memBlobs) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPut {
		return "", errBoom
	}
	m.objects[key] = append([]byte(nil), data...)
	return key, nil
}

func (m *memBlobs) GetBlob(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return append([]byte(nil), b...), nil
}

func (m *memBlobs) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok, nil
}

func (m *memBlobs) PresignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	return fmt.Sprintf("https://blobs.test/%s?ttl=%d", key, int(ttl.Seconds())), nil
}

func (m *memBlobs) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memBlobs) get(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return string(m.objects[key])
}

// stampRenderer appends "|<placeholder>" to the document.
type stampRenderer struct {
	mu      sync.Mutex
	missing map[string]bool
	calls   int
}

func (r *stampRenderer) RenderSignature(ctx context.Context, doc, _ []byte, placeholder string, _ time.Time) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.missing[placeholder] {
		return nil, render.ErrPlaceholderNotFound
	}
	return append(append([]byte(nil), doc...), []byte("|"+placeholder)...), nil
}

func (r *stampRenderer) RenderMultipleSignatures(ctx context.Context, doc []byte, stamps []render.Stamp) ([]byte, error) {
	out := doc
	for _, s := range stamps {
		next, err := r.RenderSignature(ctx, out, s.Image, s.Placeholder, s.StampedAt)
		if err != nil {
			return nil, err
		}
		out = next
	}
	return out, nil
}

// recorder captures notifications.
type recorder struct {
	mu     sync.Mutex
	events []notify.Event
	fail   bool
}

func (r *recorder) Notify(_ context.Context, evt notify.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	if r.fail {
		return errBoom
	}
	return nil
}

func (r *recorder) recipients(kind notify.Kind) map[uuid.UUID]bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[uuid.UUID]bool)
	for _, e := range r.events {
		if e.Kind == kind {
			out[e.UserID] = true
		}
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// faultyStore injects failures into read-write units of work.
type faultyStore struct {
	repository.Store
	failHistory    bool
	failStatus     bool
	failMarkSigned bool
}

func (f *faultyStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	return f.Store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		return fn(ctx, &faultyTx{Tx: tx, f: f})
	})
}

type faultyTx struct {
	repository.Tx
	f *faultyStore
}

func (t *faultyTx) AppendHistory(ctx context.Context, e *models.HistoryEntry) error {
	if t.f.failHistory {
		return errBoom
	}
	return t.Tx.AppendHistory(ctx, e)
}

func (t *faultyTx) SetDocumentStatus(ctx context.Context, id uuid.UUID, statusID int, active bool) error {
	if t.f.failStatus {
		return errBoom
	}
	return t.Tx.SetDocumentStatus(ctx, id, statusID, active)
}

func (t *faultyTx) MarkSigned(ctx context.Context, doc, user uuid.UUID, resp int, at time.Time) (bool, error) {
	if t.f.failMarkSigned {
		return false, errBoom
	}
	return t.Tx.MarkSigned(ctx, doc, user, resp, at)
}

var fixedNow = time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC)

type fixture struct {
	store    *repository.MemoryStore
	blobs    *memBlobs
	renderer *stampRenderer
	notes    *recorder
	svc      *WorkflowService
	creator  models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    repository.NewMemoryStore(),
		blobs:    newMemBlobs(),
		renderer: &stampRenderer{missing: map[string]bool{}},
		notes:    &recorder{},
	}
	f.store.SetClock(func() time.Time { return fixedNow })
	f.store.SeedCatalog()
	f.creator = f.user("Carla", "Creadora")
	f.svc = f.service(f.store)
	return f
}

func (f *fixture) service(store repository.Store) *WorkflowService {
	return NewWorkflowService(
		WithStore(store),
		WithStorage(f.blobs),
		WithRenderer(f.renderer),
		WithNotifier(f.notes),
		WithClock(func() time.Time { return fixedNow }),
	)
}

func (f *fixture) user(first, last string) models.User {
	return f.store.AddUser(models.User{
		Email:     strings.ToLower(first) + "@example.com",
		FirstName: first,
		LastName:  &last,
	})
}

func (f *fixture) document(t *testing.T, elabora models.User, revisa, aprueba []models.User) *models.Document {
	t.Helper()
	ids := func(us []models.User) []uuid.UUID {
		out := make([]uuid.UUID, 0, len(us))
		for _, u := range us {
			out = append(out, u.ID)
		}
		return out
	}
	doc, err := f.svc.CreateDocument(context.Background(), CreateDocumentRequest{
		Title:     "Manual de calidad",
		Version:   "1.0",
		Code:      "MC-001",
		CreatedBy: f.creator.ID,
		Filename:  "manual.pdf",
		PDF:       []byte("pdf"),
		Elabora:   elabora.ID,
		Revisa:    ids(revisa),
		Aprueba:   ids(aprueba),
	})
	if err != nil {
		t.Fatalf("create document: %v", err)
	}
	f.notes.reset()
	return doc
}

func (f *fixture) sign(doc *models.Document, u models.User, responsibility string) (*SignResult, error) {
	return f.svc.SignDocument(context.Background(), SignRequest{
		DocumentID:         doc.ID,
		UserID:             u.ID,
		ResponsibilityName: responsibility,
		SignatureImage:     []byte("png"),
	})
}

func (f *fixture) rows(t *testing.T, docID uuid.UUID) []models.SignerAssignment {
	t.Helper()
	var rows []models.SignerAssignment
	err := f.store.View(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		var err error
		rows, err = tx.ListAssignments(ctx, docID)
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	return rows
}

func (f *fixture) doc(t *testing.T, docID uuid.UUID) *models.Document {
	t.Helper()
	var doc *models.Document
	err := f.store.View(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		var err error
		doc, err = tx.GetDocument(ctx, docID)
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

func (f *fixture) statusID(t *testing.T, name string) int {
	t.Helper()
	var id int
	err := f.store.View(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		st, err := tx.StatusByName(ctx, name)
		if err != nil {
			return err
		}
		id = st.ID
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return id
}
