// Package metrics exposes Prometheus instrumentation for Pawbase
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pawbase_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pawbase_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	loginAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pawbase_login_attempts_total",
			Help: "Total number of login attempts by outcome",
		},
		[]string{"outcome"},
	)

	visitTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pawbase_visit_transitions_total",
			Help: "Total number of visit status transitions",
		},
		[]string{"to"},
	)
)

// Middleware records request counts and latencies per route
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path, status).
			Observe(time.Since(start).Seconds())
	}
}

// Handler serves the Prometheus scrape endpoint
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

// RecordLogin increments the login counter with an outcome label
func RecordLogin(outcome string) {
	loginAttemptsTotal.WithLabelValues(outcome).Inc()
}

// RecordVisitTransition increments the transition counter
func RecordVisitTransition(to string) {
	visitTransitionsTotal.WithLabelValues(to).Inc()
}
