// Package metrics exposes front-desk counters on a private prometheus
// registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the service updates.
type Metrics struct {
	Registry *prometheus.Registry

	MessagesIngested  *prometheus.CounterVec // by direction
	DuplicateMessages prometheus.Counter
	LeaveRequests     prometheus.Counter
	JobTransitions    *prometheus.CounterVec // by target state
	DispatchFailures  *prometheus.CounterVec // by failure kind
	HoldsExpired      prometheus.Counter
	AlertsSent        *prometheus.CounterVec // by adapter and outcome
	DraftLatency      *prometheus.HistogramVec
}

// New registers a fresh set of collectors on their own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		MessagesIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "frontdesk",
			Name:      "messages_total",
			Help:      "Messages stored, by direction.",
		}, []string{"direction"}),
		DuplicateMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "frontdesk",
			Name:      "duplicate_messages_total",
			Help:      "Inbound messages ignored because their ID was already stored.",
		}),
		LeaveRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "frontdesk",
			Name:      "leave_requests_total",
			Help:      "Leave requests detected from employee messages.",
		}),
		JobTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "frontdesk",
			Name:      "job_transitions_total",
			Help:      "Successful job state transitions, by target state.",
		}, []string{"state"}),
		DispatchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "frontdesk",
			Name:      "dispatch_failures_total",
			Help:      "Rejected dispatch operations, by failure kind.",
		}, []string{"kind"}),
		HoldsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "frontdesk",
			Name:      "holds_expired_total",
			Help:      "Holds reverted to open by the expiry sweeper.",
		}),
		AlertsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "frontdesk",
			Name:      "alerts_total",
			Help:      "Operator alerts, by adapter and outcome.",
		}, []string{"adapter", "outcome"}),
		DraftLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "frontdesk",
			Name:      "draft_seconds",
			Help:      "Reply drafting latency, by backend.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"backend"}),
	}
	reg.MustRegister(
		m.MessagesIngested,
		m.DuplicateMessages,
		m.LeaveRequests,
		m.JobTransitions,
		m.DispatchFailures,
		m.HoldsExpired,
		m.AlertsSent,
		m.DraftLatency,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
