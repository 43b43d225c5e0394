// Package metrics exposes check-in and registration counters to Prometheus.
package metrics

import (
	"net/http"

	"conference-portal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Check-in outcomes used as the "outcome" label.
const (
	OutcomeSuccess    = "success"
	OutcomeNotFound   = "not_found"
	OutcomeIneligible = "ineligible"
	OutcomeDuplicate  = "duplicate"
	OutcomeError      = "error"
)

// Metrics methods are safe on a nil receiver so tests and CLI commands can
// run without a registry.
type Metrics struct {
	Registry      *prometheus.Registry
	checkIns      *prometheus.CounterVec
	attendance    *prometheus.GaugeVec
	registrations *prometheus.GaugeVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		checkIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "conference",
			Name:      "checkins_total",
			Help:      "Check-in attempts by outcome and method.",
		}, []string{"outcome", "method"}),
		attendance: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "conference",
			Name:      "attendance_records",
			Help:      "Attendance records by check-in method.",
		}, []string{"method"}),
		registrations: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "conference",
			Name:      "registrations",
			Help:      "Registrations by status.",
		}, []string{"status"}),
	}
	reg.MustRegister(
		m.checkIns,
		m.attendance,
		m.registrations,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) ObserveCheckIn(outcome string, method models.CheckInMethod) {
	if m == nil {
		return
	}
	m.checkIns.WithLabelValues(outcome, string(method)).Inc()
}

// CheckInCounter returns the counter for one outcome and method.
func (m *Metrics) CheckInCounter(outcome string, method models.CheckInMethod) prometheus.Counter {
	return m.checkIns.WithLabelValues(outcome, string(method))
}

func (m *Metrics) SetAttendance(stats models.AttendanceStats) {
	if m == nil {
		return
	}
	for _, method := range []models.CheckInMethod{models.MethodScan, models.MethodManual} {
		m.attendance.WithLabelValues(string(method)).Set(float64(stats.ByMethod[method]))
	}
}

func (m *Metrics) SetRegistrations(stats models.RegistrationStats) {
	if m == nil {
		return
	}
	m.registrations.WithLabelValues(string(models.RegistrationPending)).Set(float64(stats.Pending))
	m.registrations.WithLabelValues(string(models.RegistrationConfirmed)).Set(float64(stats.Confirmed))
	m.registrations.WithLabelValues(string(models.RegistrationRejected)).Set(float64(stats.Rejected))
	m.registrations.WithLabelValues("checked_in").Set(float64(stats.CheckedIn))
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
