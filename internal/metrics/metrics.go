// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gabai"

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route pattern and status code.",
		},
		[]string{"method", "route", "code"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	chatTurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_turns_total",
			Help:      "Conversation turns by result.",
		},
		[]string{"result"},
	)

	actionOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "action_outcomes_total",
			Help:      "Dispatched assistant actions by type and status.",
		},
		[]string{"type", "status"},
	)

	categorizeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "categorize_total",
			Help:      "Item categorizations by list type and source (llm, keyword, fallback).",
		},
		[]string{"list_type", "source"},
	)

	llmRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "request_duration_seconds",
			Help:      "Upstream model call latency by operation and outcome.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 32},
		},
		[]string{"operation", "outcome"},
	)

	jobsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "jobs_processed_total",
			Help:      "Background jobs by type and result.",
		},
		[]string{"type", "result"},
	)
)

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

func ObserveHTTP(method, route string, code int, d time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func ChatTurn(result string) {
	chatTurnsTotal.WithLabelValues(result).Inc()
}

func ActionOutcome(actionType, status string) {
	actionOutcomesTotal.WithLabelValues(actionType, status).Inc()
}

func Categorized(listType, source string) {
	categorizeTotal.WithLabelValues(listType, source).Inc()
}

// ObserveLLM records an upstream call; outcome is "ok" or "error".
func ObserveLLM(operation string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	llmRequestDuration.WithLabelValues(operation, outcome).Observe(time.Since(start).Seconds())
}

func JobProcessed(jobType, result string) {
	jobsProcessedTotal.WithLabelValues(jobType, result).Inc()
}
