package service

import (
	"math"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"cuadrofirma-backend/models"
)

// DaysElapsed returns whole days since the document was created, or nil once
// the document is in a terminal status.
func DaysElapsed(doc models.Document, now time.Time) *int {
	if models.IsTerminal(doc.StatusName) {
		return nil
	}
	d := int(math.Floor(now.Sub(doc.CreatedAt).Hours() / 24))
	if d < 0 {
		d = 0
	}
	return &d
}

// ProgressPercent is the rounded share of signed rows among rows that require
// a signature.
func ProgressPercent(rows []models.SignerAssignment) int {
	var total, signed int
	for _, a := range rows {
		switch a.State {
		case models.SignSigned:
			signed++
			total++
		case models.SignPending:
			total++
		}
	}
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(signed) / float64(total)))
}

// Initials takes the first letter of up to three name tokens, uppercased.
func Initials(fullName string) string {
	var b strings.Builder
	for i, tok := range strings.Fields(fullName) {
		if i == 3 {
			break
		}
		r, _ := utf8.DecodeRuneInString(tok)
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

// FirmantesResumen projects signer rows for display, ordered by rank.
// photoURL resolves a user's photo and may return "".
func FirmantesResumen(rows []models.SignerAssignment, photoURL func(models.User) string) []models.FirmanteResumen {
	sorted := append([]models.SignerAssignment(nil), rows...)
	sort.SliceStable(sorted, func(i, j int) bool {
		oi, oj := sorted[i].Responsibility.Orden, sorted[j].Responsibility.Orden
		switch {
		case oi == nil:
			return false
		case oj == nil:
			return true
		}
		return *oi < *oj
	})

	out := make([]models.FirmanteResumen, 0, len(sorted))
	for _, a := range sorted {
		name := a.User.FullName()
		item := models.FirmanteResumen{
			ID:                 a.UserID,
			FullName:           name,
			Initials:           Initials(name),
			ResponsibilityName: a.Responsibility.Name,
			State:              a.State,
		}
		if photoURL != nil {
			item.PhotoURL = photoURL(a.User)
		}
		out = append(out, item)
	}
	return out
}
