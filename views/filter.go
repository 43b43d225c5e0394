// Package views holds the read-only admin renderings of registrations and
// attendance: local search filtering, terminal tables and CSV export. Nothing
// here writes to the store.
package views

import (
	"strings"

	"conference-portal/models"

	"github.com/gosimple/unidecode"
	"golang.org/x/text/cases"
)

// Fold normalises s for matching: accents are transliterated and case is
// folded, so "José" matches "jose".
func Fold(s string) string {
	return cases.Fold().String(unidecode.Unidecode(strings.TrimSpace(s)))
}

// matches reports whether query (already folded) is a substring of any field.
func matches(query string, fields ...string) bool {
	if query == "" {
		return true
	}
	for _, f := range fields {
		if strings.Contains(Fold(f), query) {
			return true
		}
	}
	return false
}

// FilterAttendance keeps records whose attendee name, ticket code or email
// contains query. An empty query keeps everything. Order is preserved.
func FilterAttendance(records []models.AttendanceRecord, query string) []models.AttendanceRecord {
	q := Fold(query)
	out := make([]models.AttendanceRecord, 0, len(records))
	for _, r := range records {
		if matches(q, r.AttendeeName, r.TicketCode, r.AttendeeEmail) {
			out = append(out, r)
		}
	}
	return out
}

// FilterRegistrations applies the same search to registrations. The full
// name is matched as well as the display name so a middle name can be found.
func FilterRegistrations(regs []models.Registration, query string) []models.Registration {
	q := Fold(query)
	out := make([]models.Registration, 0, len(regs))
	for _, r := range regs {
		full := strings.Join([]string{r.FirstName, r.MiddleName, r.LastName}, " ")
		if matches(q, r.DisplayName(), full, r.LookupCode(), r.Email) {
			out = append(out, r)
		}
	}
	return out
}
