package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	// 引擎业务指标
	AttemptsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quiz_attempts_created_total",
			Help: "Total number of quiz attempts created",
		},
	)

	AttemptsGraded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_attempts_graded_total",
			Help: "Total number of quiz attempts graded",
		},
		[]string{"passed"},
	)

	LocksApplied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_locks_total",
			Help: "Total number of quiz locks applied",
		},
		[]string{"reason"},
	)

	Unlocks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_unlocks_total",
			Help: "Total number of quiz unlocks granted",
		},
		[]string{"tier"},
	)

	Violations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_violations_total",
			Help: "Total number of classified security violations",
		},
		[]string{"severity"},
	)

	StaleAttempts = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "quiz_attempts_stale",
			Help: "Open attempts past their time limit plus grace window",
		},
	)
)

func Init() {
	prometheus.MustRegister(RequestCounter)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(AttemptsCreated)
	prometheus.MustRegister(AttemptsGraded)
	prometheus.MustRegister(LocksApplied)
	prometheus.MustRegister(Unlocks)
	prometheus.MustRegister(Violations)
	prometheus.MustRegister(StaleAttempts)
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
