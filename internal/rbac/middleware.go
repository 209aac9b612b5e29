package rbac

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/opencolegio/opencolegio/internal/platform/httpx"
	"github.com/opencolegio/opencolegio/internal/shared"
)

// Middleware wires authorization helpers for HTTP handlers. It expects the
// auth middleware to have resolved the acting user into the request context.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// RequireAny ensures the acting user holds at least one of the permissions.
func (m Middleware) RequireAny(perms ...string) func(http.Handler) http.Handler {
	required := normalizePermissions(perms)
	return m.middleware(required, hasAnyPermission)
}

// RequireAll ensures the acting user holds all of the permissions.
func (m Middleware) RequireAll(perms ...string) func(http.Handler) http.Handler {
	required := normalizePermissions(perms)
	return m.middleware(required, hasAllPermissions)
}

func (m Middleware) middleware(required []string, allowed func(granted, required []string) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(required) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			userID, ok := shared.ActorFromContext(r.Context())
			if !ok {
				httpx.Message(w, http.StatusForbidden, "forbidden")
				return
			}
			perms, err := m.Service.UserPermissions(r.Context(), userID)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("resolve permissions", slog.Int64("user_id", userID), slog.Any("error", err))
				}
				httpx.Message(w, http.StatusInternalServerError, "internal error")
				return
			}
			granted := make([]string, len(perms))
			for i, p := range perms {
				granted[i] = strings.ToLower(p.Name)
			}
			if allowed(granted, required) {
				next.ServeHTTP(w, r)
				return
			}
			httpx.Message(w, http.StatusForbidden, "forbidden")
		})
	}
}

func normalizePermissions(perms []string) []string {
	unique := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		p = strings.TrimSpace(strings.ToLower(p))
		if p == "" {
			continue
		}
		unique[p] = struct{}{}
	}
	normalized := make([]string, 0, len(unique))
	for p := range unique {
		normalized = append(normalized, p)
	}
	return normalized
}

func hasAnyPermission(granted, required []string) bool {
	set := make(map[string]struct{}, len(granted))
	for _, p := range granted {
		set[p] = struct{}{}
	}
	for _, r := range required {
		if _, ok := set[r]; ok {
			return true
		}
	}
	return false
}

func hasAllPermissions(granted, required []string) bool {
	set := make(map[string]struct{}, len(granted))
	for _, p := range granted {
		set[p] = struct{}{}
	}
	for _, r := range required {
		if _, ok := set[r]; !ok {
			return false
		}
	}
	return true
}
