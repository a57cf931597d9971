// Package metrics exposes Prometheus collectors for the generation pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"studio/internal/domain"
)

// Metrics holds the collectors shared by the API and the worker.
type Metrics struct {
	registry *prometheus.Registry

	jobsSubmitted *prometheus.CounterVec
	jobsCompleted *prometheus.CounterVec
	pollAttempts  prometheus.Counter
	materializeBy *prometheus.CounterVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		jobsSubmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "studio_jobs_submitted_total",
			Help: "Generation jobs accepted for processing.",
		}, []string{"kind", "provider"}),
		jobsCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "studio_jobs_completed_total",
			Help: "Generation jobs that reached a terminal status.",
		}, []string{"kind", "status"}),
		pollAttempts: factory.NewCounter(prometheus.CounterOpts{
			Name: "studio_poll_attempts_total",
			Help: "Upstream status checks issued by the worker.",
		}),
		materializeBy: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "studio_materializations_total",
			Help: "Result materializations by delivery route.",
		}, []string{"route"}),
	}
}

// JobSubmitted records an accepted job.
func (m *Metrics) JobSubmitted(kind domain.JobKind, provider string) {
	m.jobsSubmitted.WithLabelValues(string(kind), provider).Inc()
}

// JobCompleted records a job reaching a terminal status.
func (m *Metrics) JobCompleted(kind domain.JobKind, status domain.JobStatus) {
	m.jobsCompleted.WithLabelValues(string(kind), string(status)).Inc()
}

// PollAttempt records one upstream status check.
func (m *Metrics) PollAttempt() {
	m.pollAttempts.Inc()
}

// Materialized records which fallback route delivered a result.
func (m *Metrics) Materialized(route string) {
	m.materializeBy.WithLabelValues(route).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
