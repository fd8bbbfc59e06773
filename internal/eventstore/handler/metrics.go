package handler

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Projection Engine health metrics named in SPEC_FULL.md §4 ("Tracing/
// metrics"): events processed per projection, handler latency, and the
// failed-event backlog gauge. Registered against the default registry
// so a process embedding this core only needs to expose
// promhttp.Handler() once, the standard client_golang wiring pattern.
var (
	eventsProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "core",
		Subsystem: "projection",
		Name:      "events_processed_total",
		Help:      "Events successfully applied by a projection, by projection name.",
	}, []string{"projection"})

	handlerLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "core",
		Subsystem: "projection",
		Name:      "handler_duration_seconds",
		Help:      "Time spent applying one event's reducer and row mutation(s).",
		Buckets:   prometheus.DefBuckets,
	}, []string{"projection"})

	failedEventsBacklog = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "core",
		Subsystem: "projection",
		Name:      "failed_events_backlog",
		Help:      "Events with an open failed-event record (backing off or quarantined), by projection name.",
	}, []string{"projection"})
)

func init() {
	prometheus.MustRegister(eventsProcessed, handlerLatency, failedEventsBacklog)
}
