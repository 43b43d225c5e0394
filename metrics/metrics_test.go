package metrics

import (
	"testing"

	"conference-portal/models"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveCheckIn(t *testing.T) {
	m := New()
	m.ObserveCheckIn(OutcomeSuccess, models.MethodScan)
	m.ObserveCheckIn(OutcomeSuccess, models.MethodScan)
	m.ObserveCheckIn(OutcomeDuplicate, models.MethodManual)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.checkIns.WithLabelValues(OutcomeSuccess, "scan")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.checkIns.WithLabelValues(OutcomeDuplicate, "manual")))
}

func TestGauges(t *testing.T) {
	m := New()
	m.SetAttendance(models.AttendanceStats{ByMethod: map[models.CheckInMethod]int64{models.MethodScan: 4}})
	m.SetRegistrations(models.RegistrationStats{Pending: 2, Confirmed: 5, CheckedIn: 4})

	assert.Equal(t, 4.0, testutil.ToFloat64(m.attendance.WithLabelValues("scan")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.attendance.WithLabelValues("manual")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.registrations.WithLabelValues("confirmed")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.registrations.WithLabelValues("checked_in")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveCheckIn(OutcomeError, models.MethodScan)
		m.SetAttendance(models.AttendanceStats{})
		m.SetRegistrations(models.RegistrationStats{})
	})
}
