package monitor

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result label values.
const (
	ResultSuccess     = "success"
	ResultFailure     = "failure"
	ResultUnavailable = "provider_unavailable"
	ResultRejected    = "not_connected"
	ResultMalformed   = "malformed"
)

// Metrics holds the bridge collectors. A nil *Metrics records nothing.
type Metrics struct {
	connectTotal        *prometheus.CounterVec
	disconnectTotal     *prometheus.CounterVec
	transactionsTotal   *prometheus.CounterVec
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		connectTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "near_bridge_connect_total",
				Help: "Wallet connect attempts by result.",
			},
			[]string{"result"},
		),
		disconnectTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "near_bridge_disconnect_total",
				Help: "Wallet disconnects by remote sign-out outcome.",
			},
			[]string{"remote"},
		),
		transactionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "near_bridge_transactions_total",
				Help: "Sign-and-send requests by result.",
			},
			[]string{"result"},
		),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "near_bridge_http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "near_bridge_http_request_duration_seconds",
				Help:    "HTTP request latency distributions.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 30.0, 120.0},
			},
			[]string{"method", "path"},
		),
	}

	reg.MustRegister(
		m.connectTotal,
		m.disconnectTotal,
		m.transactionsTotal,
		m.httpRequestsTotal,
		m.httpRequestDuration,
	)
	return m
}

func (m *Metrics) ConnectResult(result string) {
	if m == nil {
		return
	}
	m.connectTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) DisconnectResult(remote string) {
	if m == nil {
		return
	}
	m.disconnectTotal.WithLabelValues(remote).Inc()
}

func (m *Metrics) TransactionResult(result string) {
	if m == nil {
		return
	}
	m.transactionsTotal.WithLabelValues(result).Inc()
}

// GinMiddleware records request counts and latency per route template.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		path := c.FullPath()

		c.Next()

		// unmatched routes have no template
		if path == "" {
			return
		}
		status := strconv.Itoa(c.Writer.Status())
		m.httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		m.httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
