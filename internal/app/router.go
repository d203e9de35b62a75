package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/odyssey-erp/compensation/internal/auth"
	bonushttp "github.com/odyssey-erp/compensation/internal/bonus/http"
	"github.com/odyssey-erp/compensation/internal/observability"
	"github.com/odyssey-erp/compensation/internal/platform/httpx"
	"github.com/odyssey-erp/compensation/internal/rbac"
	"github.com/odyssey-erp/compensation/internal/shared"
	"github.com/odyssey-erp/compensation/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	Auth               auth.Middleware
	RBACMiddleware     rbac.Middleware
	BonusHandler       *bonushttp.Handler
	PermissionsHandler *rbac.PermissionsHandler
	JobHandler         *jobs.Handler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with the service defaults.
func NewRouter(params RouterParams) http.Handler {
	if params.Logger == nil {
		params.Logger = slog.Default()
	}
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}
	r.Use(chimw.Logger)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusMethodNotAllowed, "Method Not Allowed", "")
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		r.Route("/jobs", func(r chi.Router) {
			r.Use(params.Auth.Authenticate, params.RBACMiddleware.RequireAny(shared.PermJobsView))
			params.JobHandler.MountRoutes(r)
		})
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(params.Auth.Authenticate)
		if params.BonusHandler != nil {
			params.BonusHandler.MountRoutes(r)
		}
		if params.PermissionsHandler != nil {
			r.Route("/permissions", params.PermissionsHandler.MountRoutes)
		}
	})

	return r
}
