package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the HTTP and stock domain collectors.
type Metrics struct {
	requestCounter   *prometheus.CounterVec
	requestLatency   *prometheus.HistogramVec
	deliveries       *prometheus.CounterVec
	alertsCreated    *prometheus.CounterVec
	stockMovements   *prometheus.CounterVec
	realtimeFailures prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		requestLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		deliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stock_deliveries_processed_total",
				Help: "Deliveries moved out of pending, by outcome",
			},
			[]string{"status"},
		),
		alertsCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stock_alerts_created_total",
				Help: "Stock alerts raised by the alert engine",
			},
			[]string{"alert_type"},
		),
		stockMovements: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stock_transactions_total",
				Help: "Stock ledger rows written, by transaction type",
			},
			[]string{"type"},
		),
		realtimeFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "realtime_publish_failures_total",
				Help: "Realtime events that could not be published",
			},
		),
	}

	reg.MustRegister(m.requestCounter, m.requestLatency, m.deliveries, m.alertsCreated, m.stockMovements, m.realtimeFailures)
	return m
}

// Middleware records request count and latency per route template.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requestCounter.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.requestLatency.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// DeliveryProcessed counts a delivery leaving the pending state.
func (m *Metrics) DeliveryProcessed(status string) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(status).Inc()
}

// AlertCreated counts a newly raised alert.
func (m *Metrics) AlertCreated(alertType string) {
	if m == nil {
		return
	}
	m.alertsCreated.WithLabelValues(alertType).Inc()
}

// StockMovement counts a ledger row.
func (m *Metrics) StockMovement(txnType string) {
	if m == nil {
		return
	}
	m.stockMovements.WithLabelValues(txnType).Inc()
}

// RealtimeFailure counts a dropped realtime event.
func (m *Metrics) RealtimeFailure() {
	if m == nil {
		return
	}
	m.realtimeFailures.Inc()
}
