package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the dispatcher.
	Registry = prometheus.NewRegistry()

	// Deliveries counts delivery outcomes by event type and status.
	Deliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Webhook deliveries by event type and status."},
		[]string{"event_type", "status"},
	)
	// Attempts counts individual HTTP attempts, including retries.
	Attempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_delivery_attempts_total", Help: "Individual webhook HTTP attempts by event type."},
		[]string{"event_type"},
	)
	// Latency tracks end-to-end delivery duration in seconds, retries included.
	Latency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "webhook_delivery_duration_seconds", Help: "Webhook delivery duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"event_type", "status"},
	)
)

var regOnce sync.Once

// Register adds all dispatcher collectors plus Go/process collectors to Registry.
func Register() {
	regOnce.Do(func() {
		Registry.MustRegister(Deliveries)
		Registry.MustRegister(Attempts)
		Registry.MustRegister(Latency)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}
