// Package metrics provides Prometheus metrics for ward, bed and admission flow.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker"
)

// Metrics holds all application metrics
type Metrics struct {
	AdmissionsTotal     prometheus.Counter
	AdmissionsRejected  *prometheus.CounterVec
	DischargesTotal     prometheus.Counter
	DischargesBlocked   prometheus.Counter
	CapacityShortfall   prometheus.Counter
	BedOverrides        prometheus.Counter
	AuditFailures       prometheus.Counter
	BillingBreakerState prometheus.Gauge
}

// New creates all metrics and registers them with reg.
// A nil reg leaves the metrics unregistered.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AdmissionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "admissions_total",
			Help: "Total patients admitted",
		}),
		AdmissionsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "admissions_rejected_total",
			Help: "Admissions refused, by reason",
		}, []string{"reason"}),
		DischargesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "discharges_total",
			Help: "Total patients discharged",
		}),
		DischargesBlocked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "discharges_blocked_total",
			Help: "Discharges refused because of pending charges",
		}),
		CapacityShortfall: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ward_capacity_shortfall_beds_total",
			Help: "Beds that could not be removed on capacity reduction because they were occupied",
		}),
		BedOverrides: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bed_manual_overrides_total",
			Help: "Manual bed occupancy overrides",
		}),
		AuditFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "audit_write_failures_total",
			Help: "Audit log writes that failed and were dropped",
		}),
		BillingBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "billing_circuit_breaker_state",
			Help: "Billing circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.AdmissionsTotal,
			m.AdmissionsRejected,
			m.DischargesTotal,
			m.DischargesBlocked,
			m.CapacityShortfall,
			m.BedOverrides,
			m.AuditFailures,
			m.BillingBreakerState,
		)
	}

	return m
}

// ObserveBreaker records a circuit breaker transition
func (m *Metrics) ObserveBreaker(_ string, _, to gobreaker.State) {
	switch to {
	case gobreaker.StateClosed:
		m.BillingBreakerState.Set(0)
	case gobreaker.StateOpen:
		m.BillingBreakerState.Set(1)
	case gobreaker.StateHalfOpen:
		m.BillingBreakerState.Set(2)
	}
}

// Handler returns the Prometheus HTTP handler for the given gatherer
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
