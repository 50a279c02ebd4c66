// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Trading metrics
	TradesExecuted   *prometheus.CounterVec
	TradesRejected   *prometheus.CounterVec
	TradeVolume      *prometheus.CounterVec
	TradeLatency     *prometheus.HistogramVec
	CurvesMigrated   prometheus.Counter
	TokensLaunched   prometheus.Counter
	AgentsRegistered prometheus.Counter

	// Event metrics
	EventsPublished *prometheus.CounterVec
	EventsFailed    *prometheus.CounterVec
	StreamClients   prometheus.Gauge

	// HTTP metrics
	HTTPRequests    *prometheus.CounterVec
	HTTPRateLimited prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer, namespace)
}

// NewMetricsWith registers metrics on reg instead of the default registry.
func NewMetricsWith(reg prometheus.Registerer, namespace string) *Metrics {
	if namespace == "" {
		namespace = "agent_pump"
	}
	f := promauto.With(reg)

	return &Metrics{
		// Trading metrics
		TradesExecuted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "trades_executed_total",
			Help:      "Total number of executed trades by side",
		}, []string{"side"}),
		TradesRejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "trades_rejected_total",
			Help:      "Total number of rejected trades by side and reason",
		}, []string{"side", "reason"}),
		TradeVolume: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "volume_sol_total",
			Help:      "Total traded value in SOL by side",
		}, []string{"side"}),
		TradeLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "execution_latency_seconds",
			Help:      "Trade execution latency in seconds, including persistence",
			Buckets:   prometheus.DefBuckets,
		}, []string{"side"}),
		CurvesMigrated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "curves_migrated_total",
			Help:      "Total number of curves that crossed their migration threshold",
		}),
		TokensLaunched: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "launch",
			Name:      "tokens_launched_total",
			Help:      "Total number of tokens launched",
		}),
		AgentsRegistered: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "launch",
			Name:      "agents_registered_total",
			Help:      "Total number of agents registered",
		}),

		// Event metrics
		EventsPublished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Total number of fill events published by sink",
		}, []string{"sink"}),
		EventsFailed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "failed_total",
			Help:      "Total number of fill events that failed to publish by sink",
		}, []string{"sink"}),
		StreamClients: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "stream_clients",
			Help:      "Number of connected fill stream clients",
		}),

		// HTTP metrics
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by route and status code",
		}, []string{"route", "code"}),
		HTTPRateLimited: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Total number of requests rejected by the rate limiter",
		}),

		// Database metrics
		DBQueryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordTradeExecuted records a successful trade and its value in SOL.
func RecordTradeExecuted(side string, volumeSOL float64, latencySeconds float64) {
	DefaultMetrics.TradesExecuted.WithLabelValues(side).Inc()
	DefaultMetrics.TradeVolume.WithLabelValues(side).Add(volumeSOL)
	DefaultMetrics.TradeLatency.WithLabelValues(side).Observe(latencySeconds)
}

// RecordTradeRejected records a rejected trade.
func RecordTradeRejected(side, reason string) {
	DefaultMetrics.TradesRejected.WithLabelValues(side, reason).Inc()
}

// RecordMigration increments the migrated curves counter.
func RecordMigration() {
	DefaultMetrics.CurvesMigrated.Inc()
}

// RecordLaunch increments the launched tokens counter.
func RecordLaunch() {
	DefaultMetrics.TokensLaunched.Inc()
}

// RecordAgentRegistered increments the registered agents counter.
func RecordAgentRegistered() {
	DefaultMetrics.AgentsRegistered.Inc()
}

// RecordEventPublished records a publish attempt for a sink.
func RecordEventPublished(sink string, err error) {
	if err != nil {
		DefaultMetrics.EventsFailed.WithLabelValues(sink).Inc()
		return
	}
	DefaultMetrics.EventsPublished.WithLabelValues(sink).Inc()
}

// SetStreamClients sets the number of connected stream clients.
func SetStreamClients(n int) {
	DefaultMetrics.StreamClients.Set(float64(n))
}

// RecordHTTPRequest records a served HTTP request.
func RecordHTTPRequest(route string, code int) {
	DefaultMetrics.HTTPRequests.WithLabelValues(route, statusLabel(code)).Inc()
}

// RecordRateLimited increments the rate limited counter.
func RecordRateLimited() {
	DefaultMetrics.HTTPRateLimited.Inc()
}

// RecordDBQuery records database query duration.
func RecordDBQuery(database, operation string, durationSeconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(durationSeconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

func statusLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
