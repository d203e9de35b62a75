package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/compensation/internal/auth"
	"github.com/odyssey-erp/compensation/internal/observability"
	"github.com/odyssey-erp/compensation/internal/rbac"
	"github.com/odyssey-erp/compensation/internal/shared"
	"github.com/odyssey-erp/compensation/jobs"
)

func newTestRouter(t *testing.T) (http.Handler, *auth.TokenService) {
	t.Helper()
	tokens, err := auth.NewTokenService("0123456789abcdef0123456789abcdef", "compensation", time.Hour)
	require.NoError(t, err)
	cfg := &Config{AppRequestTimeout: 5 * time.Second, RateLimitPerMinute: 1000}
	rbacService := rbac.NewService(nil)
	router := NewRouter(RouterParams{
		Logger:             nil,
		Config:             cfg,
		Auth:               auth.Middleware{Tokens: tokens},
		RBACMiddleware:     rbac.Middleware{Service: rbacService},
		PermissionsHandler: rbac.NewPermissionsHandler(nil, rbacService),
		JobHandler:         jobs.NewHandler(nil, nil),
		Metrics:            observability.NewMetrics(),
	})
	return router, tokens
}

func bearer(t *testing.T, tokens *auth.TokenService, role string) string {
	t.Helper()
	raw, _, err := tokens.Issue(shared.Principal{UserID: 1, Username: "ops", Role: role})
	require.NoError(t, err)
	return "Bearer " + raw
}

func TestHealthzIsPublic(t *testing.T) {
	router, _ := newTestRouter(t)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get(requestIDHeader))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
}

func TestRequestIDIsPropagated(t *testing.T) {
	router, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, "abc-123", rr.Header().Get(requestIDHeader))
}

func TestAPIRequiresToken(t *testing.T) {
	router, _ := newTestRouter(t)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/permissions/", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestPermissionsWithToken(t *testing.T) {
	router, tokens := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/permissions/", nil)
	req.Header.Set("Authorization", bearer(t, tokens, shared.RoleUser))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var body struct {
		Permissions []string `json:"permissions"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, []string{shared.PermReportView}, body.Permissions)
}

func TestJobsHealthRequiresJobsPermission(t *testing.T) {
	router, tokens := newTestRouter(t)

	for role, want := range map[string]int{shared.RoleAdmin: http.StatusOK, shared.RoleUser: http.StatusForbidden} {
		req := httptest.NewRequest(http.MethodGet, "/jobs/health", nil)
		req.Header.Set("Authorization", bearer(t, tokens, role))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, want, rr.Code, role)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `compensation_http_requests_total{code="200",route="/healthz"}`)
}
