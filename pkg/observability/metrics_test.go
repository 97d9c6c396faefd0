package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsRegistersWithoutPanic(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)
	require.NotNil(t, m)

	// Registering the same metrics twice must panic via MustRegister.
	assert.Panics(t, func() {
		NewMetrics(registry)
	})
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	handler := HTTPMetricsMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/brew", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusTeapot, rec.Code)
	count := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/brew", "418"))
	assert.Equal(t, float64(1), count)
}

func TestAuthzDecisionCounter(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	m.AuthzDecisionsTotal.WithLabelValues("api", "allow").Inc()
	m.AuthzDecisionsTotal.WithLabelValues("api", "deny").Inc()
	m.AuthzDecisionsTotal.WithLabelValues("api", "deny").Inc()

	assert.Equal(t, float64(1), testutil.ToFloat64(m.AuthzDecisionsTotal.WithLabelValues("api", "allow")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.AuthzDecisionsTotal.WithLabelValues("api", "deny")))
}

func TestRegisterMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	NewMetrics(registry)

	mux := http.NewServeMux()
	RegisterMetricsEndpoint(mux, registry)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "warden_authz_closure_cache_hits_total")
}
