package command

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Command Engine retry metrics named in SPEC_FULL.md §4 ("Tracing/
// metrics"): how often pushWithRetry has to retry a ConcurrencyConflict,
// and how often it gives up after exhausting retry.MaxAttempts.
var (
	commandRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "core",
		Subsystem: "command",
		Name:      "concurrency_retries_total",
		Help:      "Command Engine retries triggered by a ConcurrencyConflict on push.",
	})

	commandRetriesExhausted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "core",
		Subsystem: "command",
		Name:      "concurrency_retries_exhausted_total",
		Help:      "Commands that still failed with ConcurrencyConflict after retry.MaxAttempts.",
	})
)

func init() {
	prometheus.MustRegister(commandRetries, commandRetriesExhausted)
}
