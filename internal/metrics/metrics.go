// Package metrics holds the Prometheus collectors of the research agent.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "researcher_runs_total",
			Help: "Total number of research runs",
		},
		[]string{"status"},
	)
	RunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "researcher_run_duration_seconds",
			Help:    "Duration of research runs",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)
	RoundsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "researcher_rounds_total",
			Help: "Total number of completed web research rounds",
		},
	)
	SearchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "researcher_web_searches_total",
			Help: "Total number of web searches",
		},
		[]string{"status"},
	)
	LLMCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "researcher_llm_calls_total",
			Help: "Total number of language model calls",
		},
		[]string{"step", "status"},
	)
	LLMCostUSD = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "researcher_llm_cost_usd_total",
			Help: "Accumulated language model cost in USD",
		},
		[]string{"model"},
	)
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "researcher_http_requests_total",
			Help: "Total number of HTTP API requests",
		},
		[]string{"route", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "researcher_http_request_duration_seconds",
			Help: "Duration of HTTP API requests",
		},
		[]string{"route"},
	)
)

// Label values
const (
	StatusOK     = "ok"
	StatusError  = "error"
	StatusFailed = "failed"
)

func init() {
	prometheus.MustRegister(
		RunsTotal,
		RunDuration,
		RoundsTotal,
		SearchesTotal,
		LLMCallsTotal,
		LLMCostUSD,
		HTTPRequestsTotal,
		HTTPRequestDuration,
	)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
