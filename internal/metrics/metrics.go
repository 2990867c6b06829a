// Package metrics exposes line activity as Prometheus metrics. Metrics is an
// events.Sink, so every counter is driven by bus events.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AaronLay10/EspressoLine/internal/events"
)

// Metrics holds the line collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	EventsTotal    *prometheus.CounterVec
	CheckFailures  *prometheus.CounterVec
	OrdersAdmitted prometheus.Counter
	OrdersRejected prometheus.Counter
	StageCompleted *prometheus.CounterVec
	StageDropped   *prometheus.CounterVec
	StageCrashed   *prometheus.CounterVec
	TransportFails prometheus.Counter
	RunsTotal      prometheus.Counter
	StagesActive   prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		EventsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "espresso_events_total",
			Help: "Events emitted on the line bus",
		}, []string{"event"}),
		CheckFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "espresso_admission_check_failures_total",
			Help: "Failed admission checks",
		}, []string{"subsystem", "kind"}),
		OrdersAdmitted: f.NewCounter(prometheus.CounterOpts{
			Name: "espresso_orders_admitted_total",
			Help: "Orders that passed admission",
		}),
		OrdersRejected: f.NewCounter(prometheus.CounterOpts{
			Name: "espresso_orders_rejected_total",
			Help: "Orders rejected at admission",
		}),
		StageCompleted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "espresso_stage_completed_total",
			Help: "Orders completed by a stage",
		}, []string{"stage"}),
		StageDropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "espresso_stage_dropped_total",
			Help: "Orders dropped by a stage re-check",
		}, []string{"stage"}),
		StageCrashed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "espresso_stage_crashed_total",
			Help: "Stage workers that recovered from a panic",
		}, []string{"stage"}),
		TransportFails: f.NewCounter(prometheus.CounterOpts{
			Name: "espresso_transport_failures_total",
			Help: "Sends that found no consumer",
		}),
		RunsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "espresso_runs_total",
			Help: "Batches run through the line",
		}),
		StagesActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "espresso_stages_active",
			Help: "Stage workers started and not yet drained",
		}),
	}
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Write implements events.Sink.
func (m *Metrics) Write(e events.Event) error {
	m.EventsTotal.WithLabelValues(e.Name).Inc()

	switch e.Name {
	case "check.failed":
		m.CheckFailures.WithLabelValues(field(e, "subsystem"), field(e, "kind")).Inc()
	case "order.admitted":
		m.OrdersAdmitted.Inc()
	case "order.rejected":
		m.OrdersRejected.Inc()
	case "stage.started":
		m.StagesActive.Inc()
	case "stage.drained":
		m.StagesActive.Dec()
	case "stage.completed":
		m.StageCompleted.WithLabelValues(field(e, "stage")).Inc()
	case "order.dropped":
		m.StageDropped.WithLabelValues(field(e, "stage")).Inc()
	case "stage.crashed":
		m.StageCrashed.WithLabelValues(field(e, "stage")).Inc()
		m.StagesActive.Dec()
	case "transport.failed":
		m.TransportFails.Inc()
	case "pipeline.started":
		m.RunsTotal.Inc()
	}
	return nil
}

func field(e events.Event, key string) string {
	if v, ok := e.Fields[key].(string); ok {
		return v
	}
	return "unknown"
}
