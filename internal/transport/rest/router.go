package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/document-management/internal/audit"
	"github.com/frahmantamala/document-management/internal/auth"
	"github.com/frahmantamala/document-management/internal/document"
	"github.com/frahmantamala/document-management/internal/role"
	"github.com/frahmantamala/document-management/internal/transport/middleware"
	"github.com/frahmantamala/document-management/internal/transport/swagger"
	"github.com/frahmantamala/document-management/internal/user"
)

type Handlers struct {
	Auth     *auth.Handler
	User     *user.Handler
	Role     *role.Handler
	Document *document.Handler
	Audit    *audit.Handler
}

type RouterConfig struct {
	AllowedOrigins string
	StorageRoot    string
	OpenAPIPath    string
}

// RegisterAllRoutes wires the full API surface. Every protected route sits
// behind AuthMiddleware plus a permission gate keyed on the catalog; routes
// with an owner-scoped and an all-scoped variant accept either key and leave
// ownership narrowing to the service layer.
func RegisterAllRoutes(router *chi.Mux, db *sql.DB, h Handlers, cfg RouterConfig, logger *slog.Logger) {
	healthHandler := NewHealthHandler(db, cfg.StorageRoot)

	router.Use(middleware.RequestID)
	router.Use(middleware.CORSWithOrigins(cfg.AllowedOrigins))
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.RecoveryMiddleware(logger))

	// OpenAPI document and Swagger UI live outside the API prefix.
	if doc := swagger.SpecHandler(cfg.OpenAPIPath, logger); doc != nil {
		router.Get("/openapi.json", doc)
		router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
			http.ServeFile(w, r, cfg.OpenAPIPath)
		})
		router.Handle("/swagger/*", swagger.UIHandler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		r.Route("/auth", func(sr chi.Router) {
			sr.Post("/login", h.Auth.Login)
			sr.Post("/refresh", h.Auth.RefreshToken)
			sr.Post("/logout", h.Auth.Logout)
		})

		r.Group(func(pr chi.Router) {
			pr.Use(h.Auth.AuthMiddleware)

			pr.Get("/users/me", h.User.GetCurrentUser)

			pr.Route("/documents", func(dr chi.Router) {
				dr.With(middleware.RequirePermission(auth.PermDocumentsCreate)).
					Post("/", h.Document.Upload)

				viewGate := middleware.RequireAnyPermission(auth.PermDocumentsView, auth.PermDocumentsViewAll)
				dr.With(viewGate).Get("/", h.Document.List)
				dr.With(viewGate).Get("/{id}", h.Document.Get)
				dr.With(viewGate).Get("/{id}/download", h.Document.Download)
				dr.With(viewGate).Get("/{id}/versions", h.Document.ListVersions)

				dr.With(middleware.RequireAnyPermission(auth.PermDocumentsUpdate, auth.PermDocumentsUpdateAll)).
					Post("/{id}/versions", h.Document.UploadVersion)

				dr.With(middleware.RequireAnyPermission(auth.PermDocumentsDelete, auth.PermDocumentsDeleteAll)).
					Delete("/{id}", h.Document.Delete)
			})

			pr.Route("/users", func(ur chi.Router) {
				ur.With(middleware.RequirePermission(auth.PermUsersCreate)).
					Post("/", h.User.Create)
				ur.With(middleware.RequirePermission(auth.PermUsersView)).
					Get("/", h.User.List)
				ur.With(middleware.RequirePermission(auth.PermUsersUpdate)).
					Patch("/{id}/role", h.User.AssignRole)
				ur.With(middleware.RequirePermission(auth.PermUsersDelete)).
					Delete("/{id}", h.User.Deactivate)
			})

			pr.Route("/roles", func(rr chi.Router) {
				rr.With(middleware.RequirePermission(auth.PermRolesView)).
					Get("/", h.Role.List)
				rr.With(middleware.RequirePermission(auth.PermRolesView)).
					Get("/{id}", h.Role.Get)
				rr.With(middleware.RequirePermission(auth.PermRolesView)).
					Get("/permissions", h.Role.ListPermissions)
				rr.With(middleware.RequirePermission(auth.PermRolesCreate)).
					Post("/", h.Role.Create)
				rr.With(middleware.RequirePermission(auth.PermRolesUpdate)).
					Put("/{id}/permissions", h.Role.UpdatePermissions)
				rr.With(middleware.RequirePermission(auth.PermRolesDelete)).
					Delete("/{id}", h.Role.Deactivate)
			})

			pr.With(middleware.RequirePermission(auth.PermAuditView)).
				Get("/audit-logs", h.Audit.Search)
		})
	})
}
