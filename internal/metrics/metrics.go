package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tameer",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	submittedRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tameer",
			Name:      "requests_submitted_total",
			Help:      "Service requests accepted by the intake flow, by state.",
		},
		[]string{"location"},
	)

	statusTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tameer",
			Name:      "status_transitions_total",
			Help:      "Triage actions applied on the dashboard.",
		},
		[]string{"action"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, submittedRequests, statusTransitions)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// IncSubmitted counts one accepted submission.
func IncSubmitted(location string) {
	submittedRequests.WithLabelValues(location).Inc()
}

// IncTransition counts one applied triage action.
func IncTransition(action string) {
	statusTransitions.WithLabelValues(action).Inc()
}
