package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"cuadrofirma-backend/models"
	"cuadrofirma-backend/notify"
)

func TestSignOffScenario(t *testing.T) {
	f := newFixture(t)
	ela := f.user("Elena", "Ruiz")
	revA := f.user("Ramon", "Alba")
	revB := f.user("Rosa", "Bravo")
	apr := f.user("Andres", "Paz")
	doc := f.document(t, ela, []models.User{revA, revB}, []models.User{apr})

	res, err := f.sign(doc, ela, models.ResponsibilityElabora)
	if err != nil {
		t.Fatalf("elabora sign: %v", err)
	}
	if !res.Transitioned || res.Document.StatusName != models.StatusEnProgreso {
		t.Fatalf("expected transition to En Progreso, got %+v", res)
	}

	if _, err := f.sign(doc, revA, models.ResponsibilityRevisa); err != nil {
		t.Fatalf("revisa A sign: %v", err)
	}

	_, err = f.sign(doc, apr, models.ResponsibilityAprueba)
	var ov *OrderViolationError
	if !errors.As(err, &ov) || ov.Responsibility != models.ResponsibilityRevisa {
		t.Fatalf("expected order violation naming Revisa, got %v", err)
	}
	if !errors.Is(err, ErrOrderViolation) {
		t.Fatalf("order violation must match ErrOrderViolation: %v", err)
	}

	res, err = f.sign(doc, revB, models.ResponsibilityRevisa)
	if err != nil {
		t.Fatalf("revisa B sign: %v", err)
	}
	if res.Document.StatusName != models.StatusEnProgreso || res.Transitioned {
		t.Fatalf("rank 2 completion should keep En Progreso without a new entry, got %+v", res)
	}

	res, err = f.sign(doc, apr, models.ResponsibilityAprueba)
	if err != nil {
		t.Fatalf("aprueba sign: %v", err)
	}
	if res.Document.StatusName != models.StatusCompletado || !res.Document.Active {
		t.Fatalf("expected active Completado document, got %+v", res.Document)
	}

	detail, err := f.svc.GetDocumentDetail(context.Background(), doc.ID)
	if err != nil {
		t.Fatal(err)
	}
	if detail.ProgressPercent != 100 {
		t.Fatalf("expected progress 100, got %d", detail.ProgressPercent)
	}
	if detail.DaysElapsed != nil {
		t.Fatalf("days elapsed must be nil once completed, got %d", *detail.DaysElapsed)
	}

	history, err := f.svc.ListHistory(context.Background(), doc.ID)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, h := range history {
		names = append(names, h.StatusName)
	}
	want := []string{models.StatusPendiente, models.StatusEnProgreso, models.StatusCompletado}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected history %v", names)
	}

	blob := f.blobs.get(doc.StorageKey)
	for _, ph := range []string{"ELABORA_Elena Ruiz", "REVISA_Ramon Alba", "REVISA_Rosa Bravo", "APRUEBA_Andres Paz"} {
		if !strings.Contains(blob, "|"+ph) {
			t.Errorf("stored document lacks stamp %s: %q", ph, blob)
		}
	}
}

func TestRankTwoBlockedUntilRankOneSigned(t *testing.T) {
	f := newFixture(t)
	ela := f.user("Elena", "Ruiz")
	rev := f.user("Ramon", "Alba")
	doc := f.document(t, ela, []models.User{rev}, nil)

	_, err := f.sign(doc, rev, models.ResponsibilityRevisa)
	var ov *OrderViolationError
	if !errors.As(err, &ov) || ov.Responsibility != models.ResponsibilityElabora {
		t.Fatalf("expected order violation naming Elabora, got %v", err)
	}
	if f.renderer.calls != 0 {
		t.Fatalf("renderer must not run on order violation")
	}

	if _, err := f.sign(doc, ela, models.ResponsibilityElabora); err != nil {
		t.Fatal(err)
	}
	if _, err := f.sign(doc, rev, models.ResponsibilityRevisa); err != nil {
		t.Fatalf("rank 2 should sign once rank 1 is complete: %v", err)
	}
}

func TestSignTwiceFailsAlreadySigned(t *testing.T) {
	f := newFixture(t)
	ela := f.user("Elena", "Ruiz")
	doc := f.document(t, ela, nil, nil)

	if _, err := f.sign(doc, ela, models.ResponsibilityElabora); err != nil {
		t.Fatal(err)
	}
	if _, err := f.sign(doc, ela, models.ResponsibilityElabora); !errors.Is(err, ErrAlreadySigned) {
		t.Fatalf("expected ErrAlreadySigned, got %v", err)
	}
}

func TestConcurrentDoubleSign(t *testing.T) {
	f := newFixture(t)
	ela := f.user("Elena", "Ruiz")
	rev := f.user("Ramon", "Alba")
	doc := f.document(t, ela, []models.User{rev}, nil)

	// two services share the store but not their in-process locks, like two
	// replicas behind a load balancer
	services := []*WorkflowService{f.svc, f.service(f.store)}

	const attempts = 8
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		ok     int
		signed int
		other  []error
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(svc *WorkflowService) {
			defer wg.Done()
			_, err := svc.SignDocument(context.Background(), SignRequest{
				DocumentID:         doc.ID,
				UserID:             ela.ID,
				ResponsibilityName: models.ResponsibilityElabora,
				SignatureImage:     []byte("png"),
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrAlreadySigned):
				signed++
			default:
				other = append(other, err)
			}
		}(services[i%2])
	}
	wg.Wait()

	if ok != 1 || signed != attempts-1 || len(other) != 0 {
		t.Fatalf("expected 1 success and %d ErrAlreadySigned, got ok=%d already=%d other=%v", attempts-1, ok, signed, other)
	}

	history, _ := f.svc.ListHistory(context.Background(), doc.ID)
	if len(history) != 2 {
		t.Fatalf("expected exactly one transition entry after creation, got %d entries", len(history))
	}
}

func TestSameRankSignersDoNotLoseStamps(t *testing.T) {
	f := newFixture(t)
	ela := f.user("Elena", "Ruiz")
	revisores := []models.User{f.user("Ana", "Uno"), f.user("Bea", "Dos"), f.user("Cruz", "Tres"), f.user("Dario", "Cuatro")}
	doc := f.document(t, ela, revisores, nil)
	if _, err := f.sign(doc, ela, models.ResponsibilityElabora); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(revisores))
	for _, u := range revisores {
		wg.Add(1)
		go func(u models.User) {
			defer wg.Done()
			if _, err := f.sign(doc, u, models.ResponsibilityRevisa); err != nil {
				errs <- err
			}
		}(u)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent same-rank sign failed: %v", err)
	}

	blob := f.blobs.get(doc.StorageKey)
	for _, u := range revisores {
		if !strings.Contains(blob, "REVISA_"+u.FullName()) {
			t.Errorf("stamp of %s lost: %q", u.FullName(), blob)
		}
	}
	if got := f.doc(t, doc.ID).StatusName; got != models.StatusCompletado {
		t.Fatalf("expected Completado, got %s", got)
	}
}

func TestRejectedDocumentCannotBeSigned(t *testing.T) {
	f := newFixture(t)
	ela := f.user("Elena", "Ruiz")
	doc := f.document(t, ela, nil, nil)

	res, err := f.svc.RejectDocument(context.Background(), RejectDocumentRequest{
		DocumentID:  doc.ID,
		ActorID:     f.creator.ID,
		Observation: "faltan anexos",
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Document.Active || res.Document.StatusName != models.StatusRechazado {
		t.Fatalf("expected inactive Rechazado document, got %+v", res.Document)
	}

	if _, err := f.sign(doc, ela, models.ResponsibilityElabora); !errors.Is(err, ErrDocumentInactive) {
		t.Fatalf("expected ErrDocumentInactive, got %v", err)
	}
}

func TestRenderFailureLeavesStateUntouched(t *testing.T) {
	f := newFixture(t)
	ela := f.user("Elena", "Ruiz")
	doc := f.document(t, ela, nil, nil)
	f.renderer.missing["ELABORA_Elena Ruiz"] = true

	_, err := f.sign(doc, ela, models.ResponsibilityElabora)
	if !errors.Is(err, ErrSignatureRender) {
		t.Fatalf("expected ErrSignatureRender, got %v", err)
	}
	if rows := f.rows(t, doc.ID); rows[0].State != models.SignPending {
		t.Fatalf("assignment changed after render failure: %v", rows[0].State)
	}
	if got := f.blobs.get(doc.StorageKey); got != "pdf" {
		t.Fatalf("blob changed after render failure: %q", got)
	}
}

func TestStorageFailureLeavesStateUntouched(t *testing.T) {
	f := newFixture(t)
	ela := f.user("Elena", "Ruiz")
	doc := f.document(t, ela, nil, nil)
	f.blobs.failPut = true

	if _, err := f.sign(doc, ela, models.ResponsibilityElabora); !errors.Is(err, ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
	if rows := f.rows(t, doc.ID); rows[0].State != models.SignPending {
		t.Fatalf("assignment changed after storage failure: %v", rows[0].State)
	}
	if got := f.doc(t, doc.ID).StatusName; got != models.StatusPendiente {
		t.Fatalf("status changed after storage failure: %s", got)
	}
}

func TestCommitFailureRestoresBlob(t *testing.T) {
	f := newFixture(t)
	ela := f.user("Elena", "Ruiz")
	doc := f.document(t, ela, nil, nil)

	faulty := &faultyStore{Store: f.store, failMarkSigned: true}
	svc := f.service(faulty)
	_, err := svc.SignDocument(context.Background(), SignRequest{
		DocumentID:         doc.ID,
		UserID:             ela.ID,
		ResponsibilityName: models.ResponsibilityElabora,
		SignatureImage:     []byte("png"),
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected injected failure, got %v", err)
	}
	if got := f.blobs.get(doc.StorageKey); got != "pdf" {
		t.Fatalf("blob not restored: %q", got)
	}
}

func TestSignWithoutAssignment(t *testing.T) {
	f := newFixture(t)
	ela := f.user("Elena", "Ruiz")
	stranger := f.user("Sergio", "Ajeno")
	doc := f.document(t, ela, nil, nil)

	if _, err := f.sign(doc, stranger, models.ResponsibilityElabora); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSignNotifiesCreatorAndNextRank(t *testing.T) {
	f := newFixture(t)
	ela := f.user("Elena", "Ruiz")
	revA := f.user("Ramon", "Alba")
	revB := f.user("Rosa", "Bravo")
	apr := f.user("Andres", "Paz")
	doc := f.document(t, ela, []models.User{revA, revB}, []models.User{apr})

	if _, err := f.sign(doc, ela, models.ResponsibilityElabora); err != nil {
		t.Fatal(err)
	}
	got := f.notes.recipients(notify.KindSigned)
	if !got[f.creator.ID] || !got[revA.ID] || !got[revB.ID] {
		t.Fatalf("expected creator and revisa signers notified, got %v", got)
	}
	if got[ela.ID] || got[apr.ID] {
		t.Fatalf("actor and later ranks must not be notified, got %v", got)
	}
}

func TestNotifierFailureDoesNotFailSign(t *testing.T) {
	f := newFixture(t)
	ela := f.user("Elena", "Ruiz")
	doc := f.document(t, ela, nil, nil)
	f.notes.fail = true

	if _, err := f.sign(doc, ela, models.ResponsibilityElabora); err != nil {
		t.Fatalf("notification failure leaked: %v", err)
	}
}

func TestSignRejectsEmptyImage(t *testing.T) {
	f := newFixture(t)
	ela := f.user("Elena", "Ruiz")
	doc := f.document(t, ela, nil, nil)

	_, err := f.svc.SignDocument(context.Background(), SignRequest{
		DocumentID:         doc.ID,
		UserID:             ela.ID,
		ResponsibilityName: models.ResponsibilityElabora,
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
