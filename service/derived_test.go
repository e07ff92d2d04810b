package service

import (
	"testing"
	"time"

	"cuadrofirma-backend/models"

	"github.com/google/uuid"
)

func TestDaysElapsed(t *testing.T) {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	now := time.Date(2024, 3, 4, 11, 59, 0, 0, time.UTC)

	tests := []struct {
		status string
		now    time.Time
		want   *int
	}{
		{models.StatusPendiente, now, intPtr(2)},
		{models.StatusEnProgreso, created.Add(72 * time.Hour), intPtr(3)},
		{models.StatusPendiente, created.Add(-time.Hour), intPtr(0)},
		{models.StatusCompletado, now, nil},
		{"finalizado", now, nil},
		{"RECHAZADO", now, nil},
	}
	for _, tt := range tests {
		got := DaysElapsed(models.Document{StatusName: tt.status, CreatedAt: created}, tt.now)
		switch {
		case tt.want == nil && got != nil:
			t.Errorf("%s: expected nil, got %d", tt.status, *got)
		case tt.want != nil && (got == nil || *got != *tt.want):
			t.Errorf("%s: expected %d, got %v", tt.status, *tt.want, got)
		}
	}
}

func intPtr(v int) *int { return &v }

func rowsWith(states ...models.SignState) []models.SignerAssignment {
	rows := make([]models.SignerAssignment, 0, len(states))
	for _, s := range states {
		rows = append(rows, models.SignerAssignment{State: s})
	}
	return rows
}

func TestProgressPercent(t *testing.T) {
	tests := []struct {
		name string
		rows []models.SignerAssignment
		want int
	}{
		{"no rows", nil, 0},
		{"one of three", rowsWith(models.SignSigned, models.SignPending, models.SignPending), 33},
		{"two of three", rowsWith(models.SignSigned, models.SignSigned, models.SignPending), 67},
		{"all signed", rowsWith(models.SignSigned, models.SignSigned), 100},
		{"not applicable ignored", rowsWith(models.SignSigned, models.SignNotApplicable), 100},
		{"only not applicable", rowsWith(models.SignNotApplicable), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ProgressPercent(tt.rows); got != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestInitials(t *testing.T) {
	tests := map[string]string{
		"ana maría lópez garcía": "AML",
		"Élodie":                 "É",
		"  ":                     "",
		"juan  perez":            "JP",
	}
	for in, want := range tests {
		if got := Initials(in); got != want {
			t.Errorf("Initials(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFirmantesResumenOrdersByRank(t *testing.T) {
	one, two := 1, 2
	middle := "María"
	rows := []models.SignerAssignment{
		{UserID: uuid.New(), Responsibility: models.Responsibility{Name: "Revisa", Orden: &two}, User: models.User{FirstName: "Beto"}},
		{UserID: uuid.New(), Responsibility: models.Responsibility{Name: "Extra"}, User: models.User{FirstName: "Zoe"}},
		{UserID: uuid.New(), Responsibility: models.Responsibility{Name: "Elabora", Orden: &one}, User: models.User{FirstName: "Ana", MiddleName: &middle}},
	}

	got := FirmantesResumen(rows, func(u models.User) string { return "https://img/" + u.FirstName })
	if len(got) != 3 {
		t.Fatalf("expected 3 items, got %d", len(got))
	}
	if got[0].FullName != "Ana María" || got[0].Initials != "AM" || got[0].ResponsibilityName != "Elabora" {
		t.Fatalf("unexpected first item %+v", got[0])
	}
	if got[1].ResponsibilityName != "Revisa" || got[2].ResponsibilityName != "Extra" {
		t.Fatalf("unexpected order %+v", got)
	}
	if got[0].PhotoURL != "https://img/Ana" {
		t.Fatalf("photo url not resolved: %q", got[0].PhotoURL)
	}
}
