package metrics

import (
	"strconv"
	"time"

	"localeloop/internal/apperr"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "localeloop_http_requests_total",
			Help: "Total HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "localeloop_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// LoopOperations counts lifecycle calls: create, update, delete, reorder.
	LoopOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "localeloop_loop_operations_total",
			Help: "Loop lifecycle operations by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	// Toggles counts like / comment-like flips by target and resulting state.
	Toggles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "localeloop_toggles_total",
			Help: "Like and comment-like toggles by target and result",
		},
		[]string{"target", "result"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "localeloop_cache_lookups_total",
			Help: "Derived-data cache lookups by key and result",
		},
		[]string{"key", "result"},
	)
)

// Outcome maps an error to the "outcome" label.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return apperr.KindOf(err).String()
}

// Middleware records request count and latency keyed by the route template.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
