package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestLocalStoragePutOverwrites(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir(), "http://files.test/")
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	key := "cuadros/abc/manual.pdf"

	if _, err := s.Put(ctx, key, []byte("v1"), "application/pdf"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Put(ctx, key, []byte("v2"), "application/pdf"); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetBlob(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "v2" {
		t.Fatalf("expected overwritten blob, got %q", got)
	}
}

func TestLocalStorageMissingKey(t *testing.T) {
	s, _ := NewLocalStorage(t.TempDir(), "http://files.test")
	ctx := context.Background()

	if _, err := s.GetBlob(ctx, "nope.pdf"); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}
	ok, err := s.Exists(ctx, "nope.pdf")
	if err != nil || ok {
		t.Fatalf("expected missing object, got ok=%v err=%v", ok, err)
	}
	if _, err := s.PresignedURL(ctx, "nope.pdf", time.Minute); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}
	if err := s.Delete(ctx, "nope.pdf"); err != nil {
		t.Fatalf("delete of missing object should succeed, got %v", err)
	}
}

func TestLocalStorageKeysStayInsideBasePath(t *testing.T) {
	dir := t.TempDir()
	s, _ := NewLocalStorage(dir, "http://files.test")

	p, err := s.path("../../etc/passwd")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(p, dir) {
		t.Fatalf("path escaped base dir: %s", p)
	}
}

func TestLocalStoragePresignedURL(t *testing.T) {
	s, _ := NewLocalStorage(t.TempDir(), "http://files.test/")
	s.now = func() time.Time { return time.Unix(1000, 0) }
	ctx := context.Background()

	if _, err := s.Put(ctx, "a/b.pdf", []byte("x"), ""); err != nil {
		t.Fatal(err)
	}
	u, err := s.PresignedURL(ctx, "a/b.pdf", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if u != "http://files.test/a/b.pdf?expires=1060" {
		t.Fatalf("unexpected url %s", u)
	}
}

func TestDocumentKey(t *testing.T) {
	id := uuid.MustParse("11111111-2222-3333-4444-555555555555")
	tests := []struct {
		name     string
		filename string
		want     string
	}{
		{"plain", "Manual Calidad.PDF", "cuadros/" + id.String() + "/Manual_Calidad.pdf"},
		{"no extension", "acta", "cuadros/" + id.String() + "/acta.pdf"},
		{"path stripped", "../x/y.pdf", "cuadros/" + id.String() + "/y.pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DocumentKey(id, tt.filename); got != tt.want {
				t.Fatalf("DocumentKey(%q) = %q, want %q", tt.filename, got, tt.want)
			}
		})
	}
}
