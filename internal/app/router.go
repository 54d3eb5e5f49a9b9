package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kis-labs/webbuilder/internal/auth"
	"github.com/kis-labs/webbuilder/internal/observability"
	"github.com/kis-labs/webbuilder/internal/platform/db"
	"github.com/kis-labs/webbuilder/internal/platform/httpx"
	"github.com/kis-labs/webbuilder/internal/projects"
	"github.com/kis-labs/webbuilder/internal/users"
	"github.com/kis-labs/webbuilder/jobs"
)

// StateReporter reports the lifecycle state of the database connection.
type StateReporter interface {
	State() db.State
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	Database        StateReporter
	AuthHandler     *auth.Handler
	AuthLimiter     func(http.Handler) http.Handler
	UsersHandler    *users.Handler
	ProjectsHandler *projects.Handler
	JobHandler      *jobs.Handler
	// JobGuard wraps /internal/jobs; wbapi passes an ADMIN-only gate.
	JobGuard        func(http.Handler) http.Handler
	Metrics         *observability.Metrics
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// NewRouter constructs the chi.Router with API defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Error(w, http.StatusNotFound, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Error(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		body := healthResponse{Status: "ok", Database: db.StateUninitialized.String()}
		if params.Database != nil {
			body.Database = params.Database.State().String()
		}
		status := http.StatusOK
		if body.Database == db.StateFailed.String() {
			body.Status = "degraded"
			status = http.StatusServiceUnavailable
		}
		httpx.JSON(w, status, body)
	})

	if params.AuthHandler != nil {
		r.Route("/auth", func(r chi.Router) {
			if params.AuthLimiter != nil {
				r.Use(params.AuthLimiter)
			}
			params.AuthHandler.MountRoutes(r)
		})
	}
	if params.UsersHandler != nil {
		r.Route("/api/users", params.UsersHandler.MountRoutes)
	}
	if params.ProjectsHandler != nil {
		r.Route("/api/projects", params.ProjectsHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/internal/jobs", func(r chi.Router) {
			if params.JobGuard != nil {
				r.Use(params.JobGuard)
			}
			params.JobHandler.MountRoutes(r)
		})
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
