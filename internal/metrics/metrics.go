package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rollbook_http_requests_total",
		Help: "HTTP requests by route, method and status.",
	}, []string{"route", "method", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rollbook_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})

	// AttendanceSaves counts committed attendance sheets by outcome.
	AttendanceSaves = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rollbook_attendance_saves_total",
		Help: "Attendance save attempts by outcome.",
	}, []string{"outcome"})

	// ReportsGenerated counts monthly reports by output format.
	ReportsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rollbook_reports_generated_total",
		Help: "Monthly reports rendered by format.",
	}, []string{"format"})

	// QueueMessages counts change events handled by consumers.
	QueueMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rollbook_queue_messages_total",
		Help: "Queue messages handled by type and outcome.",
	}, []string{"type", "outcome"})
)

// Outcome returns the label used for success or failure.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Gin records request counts and latency keyed by the matched route template.
func Gin() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		httpRequests.WithLabelValues(route, method, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
	}
}
