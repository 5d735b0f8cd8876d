package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/document-management/internal"
	"github.com/frahmantamala/document-management/internal/auth"
)

// RequirePermission gates a route on one permission key. The check runs
// against the caller's token snapshot; denial means the wrapped handler never
// executes, so a forbidden request can have no side effects.
func RequirePermission(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := auth.UserFromContext(r.Context())
			if !ok || user == nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			if !user.Permissions.Allows(key) {
				slog.WarnContext(r.Context(), "access denied: missing permission",
					"user_id", user.ID,
					"required_permission", key,
					"user_permissions", user.Permissions.Keys())
				writeForbidden(w, key)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAnyPermission gates a route on a set of alternatives, e.g. the
// owner-scoped key or its _all variant. Ownership itself is checked in the
// service layer where the resource owner is known.
func RequireAnyPermission(keys ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := auth.UserFromContext(r.Context())
			if !ok || user == nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			for _, key := range keys {
				if user.Permissions.Allows(key) {
					next.ServeHTTP(w, r)
					return
				}
			}

			slog.WarnContext(r.Context(), "access denied: missing permission",
				"user_id", user.ID,
				"required_permissions", keys,
				"user_permissions", user.Permissions.Keys())
			writeForbidden(w, keys[0])
		})
	}
}

// writeForbidden emits the denial as the same JSON error envelope the
// handlers use. The message names the primary key the route requires.
func writeForbidden(w http.ResponseWriter, key string) {
	appErr := internal.NewMissingPermissionError(key)
	status, body := appErr.ToHTTPResponse()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
