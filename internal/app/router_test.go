package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/qbportal/internal/observability"
	overviewhttp "github.com/odyssey-erp/qbportal/internal/overview/http"
	"github.com/odyssey-erp/qbportal/internal/shared"
	"github.com/odyssey-erp/qbportal/jobs"
	_ "github.com/odyssey-erp/qbportal/testing"
)

func newTestRouter(t *testing.T, readiness ...ReadinessCheck) (http.Handler, *observability.Metrics) {
	t.Helper()
	metrics := observability.NewMetrics()
	verifier := shared.NewIdentityVerifier("secret", nil)
	return NewRouter(RouterParams{
		Config:          &Config{AppEnv: "development"},
		Metrics:         metrics,
		RequireUser:     verifier.Middleware,
		OverviewHandler: overviewhttp.NewHandler(nil, nil),
		JobHandler:      jobs.NewHandler(nil, nil),
		Readiness:       readiness,
	}), metrics
}

func TestHealthzAndSecurityHeaders(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
	assert.Equal(t, "default-src 'none'; frame-ancestors 'none'", rr.Header().Get("Content-Security-Policy"))
}

func TestReadiness(t *testing.T) {
	router, _ := newTestRouter(t,
		ReadinessCheck{Name: "redis", Check: func(context.Context) error { return nil }},
		ReadinessCheck{Name: "postgres", Check: func(context.Context) error { return errors.New("down") }},
	)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.JSONEq(t, `{"redis":"ok","postgres":"unavailable"}`, rr.Body.String())
}

func TestOverviewRequiresBearerToken(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/overview", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Header().Get("WWW-Authenticate"), "Bearer")
}

func TestMetricsEndpointAndJobs(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), "qbportal_http_requests_total"))
}
