package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "campusrooms",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "campusrooms",
			Name:      "reservation_transitions_total",
			Help:      "Lifecycle transitions by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)

	bulkTasks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "campusrooms",
			Name:      "bulk_tasks_total",
			Help:      "Bulk runner task outcomes by final status.",
		},
		[]string{"status"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, transitions, bulkTasks)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// IncTransition counts one lifecycle transition attempt by outcome.
func IncTransition(operation, outcome string) {
	transitions.WithLabelValues(operation, outcome).Inc()
}

// IncBulkTask counts one finished bulk task by final status.
func IncBulkTask(status string) {
	bulkTasks.WithLabelValues(status).Inc()
}
