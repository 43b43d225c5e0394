package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"conference-portal/models"
	"conference-portal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type failingStore struct{}

func (failingStore) Put(context.Context, string, []byte, string) (string, error) {
	return "", errors.New("bucket unavailable")
}

func newRegistrationService(t *testing.T, store utils.ObjectStore) *RegistrationService {
	t.Helper()
	logger := zaptest.NewLogger(t)
	db := newTestDB(t)
	attendance := NewAttendanceService(db, nil, nil, logger)
	svc := NewRegistrationService(db, attendance, staticSettings{models.DefaultSettings()}, store, nil, "CONF2026", logger)
	svc.Now = func() time.Time { return fixedNow }
	return svc
}

func validInput() RegistrationInput {
	return RegistrationInput{
		FirstName: " Ana ",
		LastName:  "Reyes",
		Email:     " Ana@Example.com ",
	}
}

func TestCreateRegistration(t *testing.T) {
	dir := t.TempDir()
	store, err := utils.NewLocalStore(dir, "/uploads")
	require.NoError(t, err)
	svc := newRegistrationService(t, store)

	reg, err := svc.CreateRegistration(context.Background(), validInput())
	require.NoError(t, err)

	assert.NotEmpty(t, reg.ID)
	assert.Equal(t, models.RegistrationPending, reg.Status)
	assert.Equal(t, "Ana", reg.FirstName)
	assert.Equal(t, "ana@example.com", reg.Email)
	assert.Equal(t, utils.TicketPayload("CONF2026", reg.ID, "ana@example.com"), reg.TicketCode)
	assert.Equal(t, "/uploads/tickets/"+reg.ID+".png", reg.TicketQRURL)

	_, err = os.Stat(filepath.Join(dir, "tickets", reg.ID+".png"))
	assert.NoError(t, err)

	stored, err := svc.Get(context.Background(), reg.ID)
	require.NoError(t, err)
	assert.Equal(t, reg.TicketQRURL, stored.TicketQRURL)
}

func TestCreateRegistrationSurvivesStoreFailure(t *testing.T) {
	svc := newRegistrationService(t, failingStore{})

	reg, err := svc.CreateRegistration(context.Background(), validInput())
	require.NoError(t, err)
	assert.Empty(t, reg.TicketQRURL)
}

func TestCreateRegistrationDuplicateEmail(t *testing.T) {
	svc := newRegistrationService(t, nil)

	_, err := svc.CreateRegistration(context.Background(), validInput())
	require.NoError(t, err)

	in := validInput()
	in.Email = "ANA@example.com"
	_, err = svc.CreateRegistration(context.Background(), in)
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestCreateRegistrationValidation(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*RegistrationInput)
		field string
	}{
		{name: "no first name", edit: func(in *RegistrationInput) { in.FirstName = "  " }, field: "first_name"},
		{name: "no last name", edit: func(in *RegistrationInput) { in.LastName = "" }, field: "last_name"},
		{name: "no email", edit: func(in *RegistrationInput) { in.Email = "" }, field: "email"},
		{name: "bad email", edit: func(in *RegistrationInput) { in.Email = "not-an-email" }, field: "email"},
		{name: "display name email", edit: func(in *RegistrationInput) { in.Email = "Ana <ana@example.com>" }, field: "email"},
		{name: "pipe in email", edit: func(in *RegistrationInput) { in.Email = `"a|b"@example.com` }, field: "email"},
	}

	svc := newRegistrationService(t, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.edit(&in)
			_, err := svc.CreateRegistration(context.Background(), in)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestCreateRegistrationClosed(t *testing.T) {
	svc := newRegistrationService(t, nil)
	closed := models.DefaultSettings()
	closed.RegistrationOpen = false
	svc.Settings = staticSettings{closed}

	_, err := svc.CreateRegistration(context.Background(), validInput())
	assert.ErrorIs(t, err, ErrRegistrationClosed)

	past := fixedNow.Add(-time.Hour)
	expired := models.DefaultSettings()
	expired.RegistrationClosesAt = &past
	svc.Settings = staticSettings{expired}

	_, err = svc.CreateRegistration(context.Background(), validInput())
	assert.ErrorIs(t, err, ErrRegistrationClosed)
}

func TestUpdateStatusThenCheckIn(t *testing.T) {
	svc := newRegistrationService(t, nil)
	ctx := context.Background()

	reg, err := svc.CreateRegistration(ctx, validInput())
	require.NoError(t, err)

	pending := svc.Attendance.RecordAttendance(ctx, reg.TicketCode, models.MethodScan, "op")
	assert.False(t, pending.Success)
	assert.Contains(t, pending.Message, "pending")

	updated, err := svc.UpdateStatus(ctx, reg.ID, models.RegistrationConfirmed, "admin1")
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationConfirmed, updated.Status)
	assert.Equal(t, "admin1", updated.ReviewedBy)

	res := svc.Attendance.RecordAttendance(ctx, reg.TicketCode, models.MethodScan, "op")
	require.True(t, res.Success, res.Message)
	assert.Equal(t, reg.ID, res.Record.RegistrationID)

	_, err = svc.UpdateStatus(ctx, reg.ID, "approved", "admin1")
	assert.ErrorIs(t, err, ErrInvalidStatus)
	_, err = svc.UpdateStatus(ctx, "missing", models.RegistrationRejected, "admin1")
	assert.ErrorIs(t, err, ErrRegistrationNotFound)
}

func TestListFiltersByStatus(t *testing.T) {
	svc := newRegistrationService(t, nil)
	ctx := context.Background()

	a, err := svc.CreateRegistration(ctx, validInput())
	require.NoError(t, err)
	in := validInput()
	in.Email = "ben@example.com"
	_, err = svc.CreateRegistration(ctx, in)
	require.NoError(t, err)
	_, err = svc.UpdateStatus(ctx, a.ID, models.RegistrationConfirmed, "admin")
	require.NoError(t, err)

	all, err := svc.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	confirmed, err := svc.List(ctx, models.RegistrationConfirmed)
	require.NoError(t, err)
	require.Len(t, confirmed, 1)
	assert.Equal(t, a.ID, confirmed[0].ID)

	_, err = svc.List(ctx, "bogus")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestDeleteRegistrationCascadesAttendance(t *testing.T) {
	svc := newRegistrationService(t, nil)
	ctx := context.Background()

	reg, err := svc.CreateRegistration(ctx, validInput())
	require.NoError(t, err)
	_, err = svc.UpdateStatus(ctx, reg.ID, models.RegistrationConfirmed, "admin")
	require.NoError(t, err)
	require.True(t, svc.Attendance.RecordAttendance(ctx, reg.ID, models.MethodManual, "op").Success)

	require.NoError(t, svc.Delete(ctx, reg.ID))

	_, err = svc.Get(ctx, reg.ID)
	assert.ErrorIs(t, err, ErrRegistrationNotFound)
	records, err := svc.Attendance.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)

	assert.ErrorIs(t, svc.Delete(ctx, reg.ID), ErrRegistrationNotFound)
}

func TestRegistrationStats(t *testing.T) {
	svc := newRegistrationService(t, nil)
	ctx := context.Background()

	var ids []string
	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com", "d@example.com"} {
		in := validInput()
		in.Email = email
		reg, err := svc.CreateRegistration(ctx, in)
		require.NoError(t, err)
		ids = append(ids, reg.ID)
	}
	for _, id := range ids[:2] {
		_, err := svc.UpdateStatus(ctx, id, models.RegistrationConfirmed, "admin")
		require.NoError(t, err)
	}
	_, err := svc.UpdateStatus(ctx, ids[2], models.RegistrationRejected, "admin")
	require.NoError(t, err)
	require.True(t, svc.Attendance.RecordAttendance(ctx, ids[0], models.MethodScan, "op").Success)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationStats{Total: 4, Pending: 1, Confirmed: 2, Rejected: 1, CheckedIn: 1}, stats)
}
