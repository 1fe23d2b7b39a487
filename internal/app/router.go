package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/qbportal/internal/observability"
	overviewhttp "github.com/odyssey-erp/qbportal/internal/overview/http"
	"github.com/odyssey-erp/qbportal/internal/platform/httpx"
	tokenhttp "github.com/odyssey-erp/qbportal/internal/tokens/http"
	"github.com/odyssey-erp/qbportal/jobs"
)

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	Metrics         *observability.Metrics
	RequireUser     func(http.Handler) http.Handler
	TokenHandler    *tokenhttp.Handler
	OverviewHandler *overviewhttp.Handler
	JobHandler      *jobs.Handler
	Readiness       []ReadinessCheck
}

// NewRouter constructs the chi.Router with portal defaults.
func NewRouter(params RouterParams) http.Handler {
	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", readyHandler(logger, params.Readiness))

	if params.TokenHandler != nil {
		r.Route("/qbo", func(r chi.Router) {
			params.TokenHandler.MountRoutes(r, params.RequireUser)
		})
	}
	if params.OverviewHandler != nil {
		r.Route("/api", func(r chi.Router) {
			params.OverviewHandler.MountRoutes(r, params.RequireUser)
		})
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	return r
}

func readyHandler(logger *slog.Logger, checks []ReadinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		status := make(map[string]string, len(checks))
		ready := true
		for _, c := range checks {
			if err := c.Check(ctx); err != nil {
				logger.Warn("readiness check failed", slog.String("check", c.Name), slog.Any("error", err))
				status[c.Name] = "unavailable"
				ready = false
				continue
			}
			status[c.Name] = "ok"
		}
		code := http.StatusOK
		if !ready {
			code = http.StatusServiceUnavailable
		}
		httpx.JSON(w, code, status)
	}
}
