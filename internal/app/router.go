package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	audithttp "github.com/backlog-dim/backlog-dim/internal/audit/http"
	"github.com/backlog-dim/backlog-dim/internal/auth"
	"github.com/backlog-dim/backlog-dim/internal/metadata"
	"github.com/backlog-dim/backlog-dim/internal/observability"
	"github.com/backlog-dim/backlog-dim/internal/platform/httpx"
	"github.com/backlog-dim/backlog-dim/internal/processos"
	"github.com/backlog-dim/backlog-dim/internal/profiles"
	"github.com/backlog-dim/backlog-dim/internal/rbac"
	"github.com/backlog-dim/backlog-dim/internal/shared"
	"github.com/backlog-dim/backlog-dim/internal/users"
	"github.com/backlog-dim/backlog-dim/jobs"
)

// RouterParams groups dependencies for building the HTTP router. Nil handlers
// are not mounted.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	SessionManager   *shared.SessionManager
	AuthHandler      *auth.Handler
	ProcessosHandler *processos.Handler
	MetadataHandlers []*metadata.Handler
	ProfilesHandler  *profiles.Handler
	UsersHandler     *users.Handler
	AuditHandler     *audithttp.Handler
	JobHandler       *jobs.Handler
	RBACMiddleware   *rbac.Middleware
	Metrics          *observability.Metrics
	Ready            func(r *http.Request) error
}

// NewRouter constructs the chi.Router with the service defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()
	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Error(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Error(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if params.Ready != nil {
			if err := params.Ready(r); err != nil {
				logger.Warn("readiness check failed", slog.Any("error", err))
				httpx.Error(w, http.StatusServiceUnavailable, "not ready")
				return
			}
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		for _, mw := range MiddlewareStack(MiddlewareConfig{
			Logger:         logger,
			Config:         params.Config,
			SessionManager: params.SessionManager,
			Metrics:        params.Metrics,
		}) {
			r.Use(mw)
		}

		if params.AuthHandler != nil {
			r.Route("/auth", params.AuthHandler.MountRoutes)
		}
		r.Route("/api", func(r chi.Router) {
			if params.ProcessosHandler != nil {
				r.Route("/processos", params.ProcessosHandler.MountRoutes)
			}
			for _, h := range params.MetadataHandlers {
				if h == nil {
					continue
				}
				r.Route("/"+h.Kind().Slug, h.MountRoutes)
			}
			if params.ProfilesHandler != nil {
				r.Route("/perfis", params.ProfilesHandler.MountRoutes)
			}
			if params.UsersHandler != nil {
				r.Route("/usuarios", params.UsersHandler.MountRoutes)
			}
			if params.AuditHandler != nil {
				r.Route("/auditoria", params.AuditHandler.MountRoutes)
			}
			if params.JobHandler != nil && params.RBACMiddleware != nil {
				r.With(params.RBACMiddleware.RequireAny(
					rbac.Requirement{Action: rbac.ActionExibir, Resource: rbac.ResourceAuditLog},
				)).Route("/jobs", params.JobHandler.MountRoutes)
			}
		})
	})

	return r
}
