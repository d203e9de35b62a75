package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/odyssey-erp/compensation/internal/platform/httpx"
	"github.com/odyssey-erp/compensation/internal/shared"
)

// Middleware authenticates requests carrying a bearer token.
type Middleware struct {
	Tokens *TokenService
	Logger *slog.Logger
}

// Authenticate rejects requests without a valid token and stores the
// principal in the request context otherwise.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			unauthorized(w, shared.ErrMissingToken.Error())
			return
		}
		principal, err := m.Tokens.Verify(raw)
		if err != nil {
			if m.Logger != nil {
				m.Logger.Debug("token rejected", slog.String("path", r.URL.Path), slog.Any("error", err))
			}
			unauthorized(w, shared.ErrInvalidToken.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithPrincipal(r.Context(), principal)))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="compensation"`)
	httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", detail)
}
