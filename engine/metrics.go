package engine

import "github.com/prometheus/client_golang/prometheus"

var highlightRequests = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "highlightserver",
	Subsystem: "engine",
	Name:      "requests_total",
	Help:      "Total number of document highlight requests processed.",
})

var highlightEmptyResults = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "highlightserver",
	Subsystem: "engine",
	Name:      "empty_results_total",
	Help:      "Total number of highlight requests that produced no spans.",
})

var collaboratorFailures = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "highlightserver",
	Subsystem: "engine",
	Name:      "collaborator_failures_total",
	Help:      "Total number of per-document or per-location collaborator contributions dropped due to errors.",
})

func init() {
	prometheus.MustRegister(highlightRequests)
	prometheus.MustRegister(highlightEmptyResults)
	prometheus.MustRegister(collaboratorFailures)
}
