package auth

import (
	"net/http"
	"strings"

	"github.com/opencolegio/opencolegio/internal/platform/httpx"
	"github.com/opencolegio/opencolegio/internal/shared"
)

// RequireAuth resolves the Authorization bearer token and injects the acting
// user's ID into the request context. Handlers behind it never see the raw
// credential, only the resolved identity.
func RequireAuth(service *Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				httpx.Message(w, http.StatusUnauthorized, "No autenticado.")
				return
			}
			userID, err := service.VerifyToken(r.Context(), token)
			if err != nil {
				httpx.Message(w, http.StatusUnauthorized, "No autenticado.")
				return
			}
			next.ServeHTTP(w, r.WithContext(shared.ContextWithActor(r.Context(), userID)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}
