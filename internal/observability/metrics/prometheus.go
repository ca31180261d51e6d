// Package metrics provides Prometheus metrics for the adjudication engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics
type Metrics struct {
	ClaimsProcessed      *prometheus.CounterVec
	ClaimsRejected       *prometheus.CounterVec
	DURAlerts            *prometheus.CounterVec
	DuplicateClaims      prometheus.Counter
	ClaimReversals       prometheus.Counter
	AdjudicationDuration prometheus.Histogram
	MembersEnrolled      prometheus.Gauge
	BatchClaimsInFlight  prometheus.Gauge
}

// New creates and registers all metrics
func New() *Metrics {
	m := &Metrics{
		ClaimsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "claims_processed_total",
			Help: "Total claims adjudicated by status and transaction code",
		}, []string{"status", "transaction"}),
		ClaimsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "claims_rejected_total",
			Help: "Total rejected claims by NCPDP reject code",
		}, []string{"code"}),
		DURAlerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dur_alerts_total",
			Help: "Total DUR alerts raised by conflict type and severity",
		}, []string{"type", "severity"}),
		DuplicateClaims: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "duplicate_claims_total",
			Help: "Total claims returned as duplicates",
		}),
		ClaimReversals: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "claim_reversals_total",
			Help: "Total claim reversals accepted",
		}),
		AdjudicationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "adjudication_duration_seconds",
			Help:    "Claim adjudication duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		MembersEnrolled: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "members_enrolled",
			Help: "Members currently enrolled in the store",
		}),
		BatchClaimsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "batch_claims_in_flight",
			Help: "Claims currently being adjudicated by batch workers",
		}),
	}

	prometheus.MustRegister(
		m.ClaimsProcessed,
		m.ClaimsRejected,
		m.DURAlerts,
		m.DuplicateClaims,
		m.ClaimReversals,
		m.AdjudicationDuration,
		m.MembersEnrolled,
		m.BatchClaimsInFlight,
	)

	return m
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
