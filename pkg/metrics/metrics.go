package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "election_board"

// Poll outcomes
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeStale   = "stale"
)

// Metrics tracks board performance. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	registry *prometheus.Registry

	polls        *prometheus.CounterVec
	pollLatency  prometheus.Histogram
	lastSuccess  prometheus.Gauge
	framesPushed prometheus.Counter
	clients      prometheus.Gauge
	tasksSkipped *prometheus.CounterVec
}

// New creates a Metrics instance backed by its own registry
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "Results endpoint polls by outcome.",
		}, []string{"outcome"}),
		pollLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_duration_seconds",
			Help:      "Time from request to decoded snapshot.",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last applied snapshot.",
		}),
		framesPushed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_rendered_total",
			Help:      "Dashboard frames that differed from the previous one.",
		}),
		clients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Connected live display clients.",
		}),
		tasksSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_runs_skipped_total",
			Help:      "Task runs dropped because the worker pool was full.",
		}, []string{"task"}),
	}

	reg.MustRegister(
		m.polls,
		m.pollLatency,
		m.lastSuccess,
		m.framesPushed,
		m.clients,
		m.tasksSkipped,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// ObservePoll records one finished poll
func (m *Metrics) ObservePoll(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.polls.WithLabelValues(outcome).Inc()
	if outcome != OutcomeStale {
		m.pollLatency.Observe(duration.Seconds())
	}
}

// MarkSuccess records the time a snapshot was applied
func (m *Metrics) MarkSuccess(at time.Time) {
	if m == nil {
		return
	}
	m.lastSuccess.Set(float64(at.Unix()))
}

// IncrementFrames counts a changed dashboard frame
func (m *Metrics) IncrementFrames() {
	if m == nil {
		return
	}
	m.framesPushed.Inc()
}

// SetClients sets the live client gauge
func (m *Metrics) SetClients(n int) {
	if m == nil {
		return
	}
	m.clients.Set(float64(n))
}

// IncrementSkipped counts a task run dropped by the scheduler
func (m *Metrics) IncrementSkipped(taskID string) {
	if m == nil {
		return
	}
	m.tasksSkipped.WithLabelValues(taskID).Inc()
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
