package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/compensation/internal/bonus"
	jobmetrics "github.com/odyssey-erp/compensation/internal/jobs"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestMetricsHandlerExposesRegisteredCollectors(t *testing.T) {
	metrics := NewMetrics()
	jobs := jobmetrics.NewMetrics(metrics.Registerer())
	engine := bonus.NewMetrics(metrics.Registerer())

	require.NoError(t, jobs.Track("bonus_snapshot").End(nil))
	engine.RecordCacheLookup("hit")

	body := scrape(t, metrics)
	assert.Contains(t, body, `compensation_jobs_total{job="bonus_snapshot",status="success"} 1`)
	assert.Contains(t, body, `compensation_report_cache_lookups_total{result="hit"} 1`)
	assert.Contains(t, body, "go_goroutines")
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/test")
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusTeapot, rr.Code)

	body := scrape(t, metrics)
	assert.True(t, strings.Contains(body, `compensation_http_requests_total{code="418",route="/test"} 1`), body)
	assert.Contains(t, body, `compensation_http_request_duration_seconds_bucket{route="/test"`)
}

func TestNilMetricsIsUnavailable(t *testing.T) {
	var metrics *Metrics
	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
