package middleware

import "github.com/prometheus/client_golang/prometheus"

var (
	requestPanics = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fitlog",
		Subsystem: "http",
		Name:      "request_panics_total",
		Help:      "Handler panics recovered by the HTTP server.",
	})

	requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitlog",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests served, labelled by method and status.",
	}, []string{"method", "status"})

	requestDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "fitlog",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Time spent serving HTTP requests.",
		Buckets:   prometheus.DefBuckets,
	})

	rateLimited = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitlog",
		Subsystem: "http",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the rate limiter, labelled by route.",
	}, []string{"route"})

	rateLimiterErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitlog",
		Subsystem: "http",
		Name:      "rate_limiter_errors_total",
		Help:      "Requests let through because the rate limiter failed, labelled by route.",
	}, []string{"route"})
)

func init() {
	prometheus.MustRegister(requestPanics, requestsTotal, requestDuration, rateLimited, rateLimiterErrors)
}
