// Package metrics exposes Prometheus counters, gauges, and histograms for
// the scrape/coordination cycle, stop detection, and escalation calls.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the global metrics container, initialized once at startup.
type Metrics struct {
	CyclesTotal         *prometheus.CounterVec
	CycleDuration       prometheus.Histogram
	ProvidersRunTotal   prometheus.Counter
	CoordsInsertedTotal prometheus.Counter
	ProvidersDue        prometheus.Gauge

	StopDetectionsTotal *prometheus.CounterVec
	CallsPlacedTotal    *prometheus.CounterVec
	CallDuration        *prometheus.HistogramVec

	SchedulerInFlight prometheus.Gauge
}

var defaultMetrics *Metrics

// Init creates and registers every metric under namespace.
func Init(namespace string) *Metrics {
	m := &Metrics{
		CyclesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "coordinator_cycles_total",
				Help:      "Total number of coordinator cycles, by outcome",
			},
			[]string{"outcome"},
		),

		CycleDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "coordinator_cycle_duration_seconds",
				Help:      "Duration of a coordinator cycle",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
		),

		ProvidersRunTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "providers_run_total",
				Help:      "Total number of providers fetched across all cycles",
			},
		),

		CoordsInsertedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "coordinates_inserted_total",
				Help:      "Total number of coordinate rows inserted",
			},
		),

		ProvidersDue: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "providers_due",
				Help:      "Number of providers due for a scrape on the last tick",
			},
		),

		StopDetectionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stop_detections_total",
				Help:      "Total number of confirmed stop events, by debounce outcome",
			},
			[]string{"outcome"},
		),

		CallsPlacedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ai_calls_placed_total",
				Help:      "Total number of AI voice calls placed, by role and outcome",
			},
			[]string{"role", "outcome"},
		),

		CallDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "ai_call_duration_seconds",
				Help:      "Duration of AI voice calls",
				Buckets:   []float64{5, 10, 30, 60, 120, 300},
			},
			[]string{"role"},
		),

		SchedulerInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "scheduler_cycle_in_flight",
				Help:      "1 while a coordinator cycle is running, 0 otherwise",
			},
		),
	}

	defaultMetrics = m
	return m
}

// Get returns the global metrics container, initializing it with the
// default namespace on first use.
func Get() *Metrics {
	if defaultMetrics == nil {
		return Init("tracker")
	}
	return defaultMetrics
}

// RecordCycle records the outcome and duration of a coordinator cycle.
func (m *Metrics) RecordCycle(outcome string, duration time.Duration, providersRun, coordsInserted int) {
	m.CyclesTotal.WithLabelValues(outcome).Inc()
	m.CycleDuration.Observe(duration.Seconds())
	m.ProvidersRunTotal.Add(float64(providersRun))
	m.CoordsInsertedTotal.Add(float64(coordsInserted))
}

// RecordStopDetection records a stop-event outcome ("confirmed" or
// "debounced").
func (m *Metrics) RecordStopDetection(outcome string) {
	m.StopDetectionsTotal.WithLabelValues(outcome).Inc()
}

// RecordCall records an AI voice call outcome for a given contact role.
func (m *Metrics) RecordCall(role, outcome string, duration time.Duration) {
	m.CallsPlacedTotal.WithLabelValues(role, outcome).Inc()
	m.CallDuration.WithLabelValues(role).Observe(duration.Seconds())
}

// Handler returns the HTTP handler that serves /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
