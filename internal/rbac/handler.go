package rbac

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/compensation/internal/platform/httpx"
	"github.com/odyssey-erp/compensation/internal/shared"
)

// PermissionsHandler reports the permissions of the calling principal.
type PermissionsHandler struct {
	logger  *slog.Logger
	service *Service
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(logger *slog.Logger, service *Service) *PermissionsHandler {
	return &PermissionsHandler{logger: logger, service: service}
}

// MountRoutes registers permission routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Get("/", h.listPermissions)
}

type permissionsResponse struct {
	UserID      int64    `json:"user_id"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

func (h *PermissionsHandler) listPermissions(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	perms, err := h.service.EffectivePermissions(r.Context(), principal)
	if err != nil {
		h.logger.Error("list permissions", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, permissionsResponse{UserID: principal.UserID, Role: principal.Role, Permissions: perms})
}
