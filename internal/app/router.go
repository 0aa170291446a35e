package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clubforge/clubforge/internal/access"
	"github.com/clubforge/clubforge/internal/auth"
	"github.com/clubforge/clubforge/internal/catalog"
	"github.com/clubforge/clubforge/internal/members"
	"github.com/clubforge/clubforge/internal/observability"
	"github.com/clubforge/clubforge/internal/roles"
	"github.com/clubforge/clubforge/internal/shared"
	"github.com/clubforge/clubforge/internal/users"
	"github.com/clubforge/clubforge/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	AuthHandler    *auth.Handler
	UsersHandler   *users.Handler
	AccessHandler  *access.Handler
	RolesHandler   *roles.Handler
	CatalogHandler *catalog.Handler
	MembersHandler *members.Handler
	JobHandler     *jobs.Handler
	Pool           *pgxpool.Pool
	Metrics        *observability.Metrics
}

// NewRouter constructs the chi.Router with ClubForge defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", params.AuthHandler.MountRoutes)
		r.Route("/users", func(r chi.Router) {
			params.UsersHandler.MountRoutes(r)
			params.AccessHandler.MountRoutes(r)
		})
		r.Route("/roles", params.RolesHandler.MountRoutes)
		r.Route("/permissions", params.CatalogHandler.MountRoutes)
		r.Route("/members", params.MembersHandler.MountRoutes)
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	return r
}
