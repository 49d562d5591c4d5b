// Package metrics exposes dispatcher counters to Prometheus.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bjaus/pushdispatch"
)

// Metrics records event, delivery and token hygiene counts.
type Metrics struct {
	events     *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	deliveries *prometheus.CounterVec
	pruned     prometheus.Counter
	duplicates prometheus.Counter
}

// New registers the dispatcher collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		events: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pushdispatch_events_total",
			Help: "Events handled, by route and outcome.",
		}, []string{"route", "outcome"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pushdispatch_event_duration_seconds",
			Help:    "Duration of event handling.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		deliveries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pushdispatch_deliveries_total",
			Help: "Per-token delivery results, by mode and result.",
		}, []string{"mode", "result"}),
		pruned: f.NewCounter(prometheus.CounterOpts{
			Name: "pushdispatch_tokens_pruned_total",
			Help: "Device tokens removed after the gateway rejected them.",
		}),
		duplicates: f.NewCounter(prometheus.CounterOpts{
			Name: "pushdispatch_duplicate_events_total",
			Help: "Events dropped because their id was already claimed.",
		}),
	}
}

// OnResult is a router hook counting every handled event.
func (m *Metrics) OnResult(_ context.Context, route string, res pushdispatch.Result, d time.Duration) {
	m.events.WithLabelValues(route, res.Outcome.String()).Inc()
	if d > 0 {
		m.duration.WithLabelValues(route).Observe(d.Seconds())
	}
}

// ObserveDelivery counts delivery results for one send.
func (m *Metrics) ObserveDelivery(mode string, success, failure int) {
	if success > 0 {
		m.deliveries.WithLabelValues(mode, "success").Add(float64(success))
	}
	if failure > 0 {
		m.deliveries.WithLabelValues(mode, "failure").Add(float64(failure))
	}
}

// ObservePrune counts one removed token.
func (m *Metrics) ObservePrune() {
	m.pruned.Inc()
}

// ObserveDuplicate counts one dropped duplicate event.
func (m *Metrics) ObserveDuplicate() {
	m.duplicates.Inc()
}
