package observability

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Authorization metrics
	AuthzDecisionsTotal   *prometheus.CounterVec
	AuthzCheckDuration    *prometheus.HistogramVec
	ClosureCacheHits      prometheus.Counter
	ClosureCacheMisses    prometheus.Counter
	GrantMutationsTotal   *prometheus.CounterVec
	ReconcileRepairsTotal *prometheus.CounterVec

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge

	// Business metrics
	UsersTotal  prometheus.Gauge
	RolesTotal  prometheus.Gauge
	GroupsTotal prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "warden_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "warden_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),

		AuthzDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_authz_decisions_total",
				Help: "Total number of authorization decisions by effect",
			},
			[]string{"domain", "effect"},
		),
		AuthzCheckDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "warden_authz_check_duration_seconds",
				Help:    "Authorization check duration in seconds",
				Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
			},
			[]string{"domain"},
		),
		ClosureCacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "warden_authz_closure_cache_hits_total",
				Help: "Subject closure cache hits",
			},
		),
		ClosureCacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "warden_authz_closure_cache_misses_total",
				Help: "Subject closure cache misses",
			},
		),
		GrantMutationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_authz_grant_mutations_total",
				Help: "Total number of grant mutations by kind",
			},
			[]string{"kind"},
		),
		ReconcileRepairsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_reconcile_repairs_total",
				Help: "Grants repaired by the reconciliation pass",
			},
			[]string{"action"},
		),

		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "warden_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "warden_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),

		UsersTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "warden_users_total",
				Help: "Total number of non-deleted users",
			},
		),
		RolesTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "warden_roles_total",
				Help: "Total number of roles",
			},
		),
		GroupsTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "warden_groups_total",
				Help: "Total number of groups",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPResponseSize,
		m.AuthzDecisionsTotal,
		m.AuthzCheckDuration,
		m.ClosureCacheHits,
		m.ClosureCacheMisses,
		m.GrantMutationsTotal,
		m.ReconcileRepairsTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
		m.UsersTotal,
		m.RolesTotal,
		m.GroupsTotal,
	)

	return m
}

// CollectDBStats copies sql.DB pool stats into the connection gauges.
func (m *Metrics) CollectDBStats(db *sql.DB) {
	stats := db.Stats()
	m.DBConnectionsActive.Set(float64(stats.InUse))
	m.DBConnectionsIdle.Set(float64(stats.Idle))
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
			metrics.HTTPResponseSize.WithLabelValues(r.Method, r.URL.Path).Observe(float64(rw.bytesWritten))
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
