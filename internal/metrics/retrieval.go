package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RetrievalMetrics counts searches, attempts, corrections and errors.
type RetrievalMetrics struct {
	registry *prometheus.Registry

	searchesTotal   *prometheus.CounterVec
	attemptsTotal   *prometheus.CounterVec
	attemptDuration *prometheus.HistogramVec
	correctionTotal *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
}

func NewRetrievalMetrics() *RetrievalMetrics {
	registry := prometheus.NewRegistry()

	searchesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "surveysearch",
			Subsystem: "retrieval",
			Name:      "searches_total",
			Help:      "Completed searches by final strategy and fallback tag.",
		},
		[]string{"strategy", "fallback"},
	)
	attemptsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "surveysearch",
			Subsystem: "retrieval",
			Name:      "attempts_total",
			Help:      "Strategy attempts by strategy and terminal state.",
		},
		[]string{"strategy", "state"},
	)
	attemptDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "surveysearch",
			Subsystem: "retrieval",
			Name:      "attempt_duration_seconds",
			Help:      "Strategy attempt duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
		},
		[]string{"strategy"},
	)
	correctionTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "surveysearch",
			Subsystem: "retrieval",
			Name:      "corrections_total",
			Help:      "Keywords lifted into structured filters by slot.",
		},
		[]string{"slot"},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "surveysearch",
			Subsystem: "retrieval",
			Name:      "errors_total",
			Help:      "Failed searches by error kind.",
		},
		[]string{"kind"},
	)

	registry.MustRegister(searchesTotal, attemptsTotal, attemptDuration, correctionTotal, errorsTotal)

	return &RetrievalMetrics{
		registry:        registry,
		searchesTotal:   searchesTotal,
		attemptsTotal:   attemptsTotal,
		attemptDuration: attemptDuration,
		correctionTotal: correctionTotal,
		errorsTotal:     errorsTotal,
	}
}

func (m *RetrievalMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *RetrievalMetrics) ObserveSearch(strategy, fallback string) {
	if fallback == "" {
		fallback = "none"
	}
	m.searchesTotal.WithLabelValues(strategy, fallback).Inc()
}

func (m *RetrievalMetrics) ObserveAttempt(strategy, state string, duration time.Duration) {
	m.attemptsTotal.WithLabelValues(strategy, state).Inc()
	m.attemptDuration.WithLabelValues(strategy).Observe(duration.Seconds())
}

func (m *RetrievalMetrics) ObserveCorrection(slot string) {
	m.correctionTotal.WithLabelValues(slot).Inc()
}

func (m *RetrievalMetrics) ObserveError(kind string) {
	m.errorsTotal.WithLabelValues(kind).Inc()
}
