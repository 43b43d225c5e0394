package views

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"conference-portal/models"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

const timeLayout = "2006-01-02 15:04"

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(mutedStyle).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

// AttendanceTable renders records as a terminal table in local time.
func AttendanceTable(records []models.AttendanceRecord, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	t := newTable("Time", "Name", "Email", "Ticket", "Method", "Scanned by")
	for _, r := range records {
		t.Row(r.Timestamp.In(loc).Format(timeLayout), r.AttendeeName, r.AttendeeEmail, r.TicketCode, string(r.Method), r.ScannedBy)
	}
	return t.String()
}

// RegistrationTable renders registrations as a terminal table.
func RegistrationTable(regs []models.Registration) string {
	t := newTable("Name", "Email", "Status", "Organization", "ID")
	for _, r := range regs {
		t.Row(r.DisplayName(), r.Email, string(r.Status), r.Organization, r.ID)
	}
	return t.String()
}

// StatsSummary is the one-line summary printed under the attendance table.
func StatsSummary(stats models.AttendanceStats) string {
	line := fmt.Sprintf("%d checked in (scan %d, manual %d)",
		stats.Total, stats.ByMethod[models.MethodScan], stats.ByMethod[models.MethodManual])

	statuses := make([]string, 0, len(stats.ByStatus))
	for status := range stats.ByStatus {
		statuses = append(statuses, string(status))
	}
	sort.Strings(statuses)
	for _, s := range statuses {
		line += fmt.Sprintf(", %s %d", s, stats.ByStatus[models.RegistrationStatus(s)])
	}
	return mutedStyle.Render(line)
}

// WriteAttendanceCSV writes records with a header row. Timestamps are UTC
// RFC 3339.
func WriteAttendanceCSV(w io.Writer, records []models.AttendanceRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "registration_id", "ticket_code", "timestamp", "method", "scanned_by", "attendee_name", "attendee_email", "status"}); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			r.ID,
			r.RegistrationID,
			r.TicketCode,
			r.Timestamp.UTC().Format(time.RFC3339),
			string(r.Method),
			r.ScannedBy,
			r.AttendeeName,
			r.AttendeeEmail,
			string(r.Status),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// CountLabel formats "n record(s)".
func CountLabel(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return strconv.Itoa(n) + " " + noun + "s"
}
