// Package observability provides structured logging, Prometheus metrics,
// health checks, and OpenTelemetry tracing for Warden.
//
// # Structured Logging
//
// Configure the process-wide logrus logger once at startup:
//
//	observability.SetupLogging("info")
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	router.Use(observability.HTTPMetricsMiddleware(metrics))
//
// The AuthzDecisionsTotal counter is handed to the enforcer so every
// permission check is counted by effect.
//
// # Health Checks
//
// HealthChecker pings postgres and redis; Redis being down degrades the
// service rather than failing readiness, since the rate limiter fails open.
package observability
