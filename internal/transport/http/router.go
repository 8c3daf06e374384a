// Package httptransport assembles the public HTTP surface: shared middleware,
// health and metrics endpoints, and the authenticated API routes.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"amsf/internal/platform/metrics"
	"amsf/pkg/platform/httputil"
	"amsf/pkg/platform/middleware/identity"
	"amsf/pkg/platform/middleware/request"
	"amsf/pkg/platform/middleware/requesttime"
)

// Registrar mounts a module's routes.
type Registrar interface {
	Register(r chi.Router)
}

// Check reports the health of one dependency.
type Check func(ctx context.Context) error

type Options struct {
	Logger      *slog.Logger
	Production  bool
	Metrics     *metrics.Metrics
	Gatherer    prometheus.Gatherer
	CORSOrigins []string
	// Checks are reported by /health. A failing check degrades the
	// response without failing it.
	Checks map[string]Check
}

const healthTimeout = 2 * time.Second

// NewRouter wires middleware and mounts every registrar behind identity.RequireUser.
func NewRouter(opts Options, registrars ...Registrar) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(httplog.RequestLogger(accessLogger(opts.Production)))
	r.Use(chimw.Recoverer)
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Middleware)
	}
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   opts.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Content-Type", identity.HeaderUserID},
			ExposedHeaders:   []string{"Content-Disposition", "X-Request-ID", "X-Artifact-Location"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/health", healthHandler(opts.Checks))
	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(identity.RequireUser(logger))
		for _, reg := range registrars {
			reg.Register(r)
		}
	})
	return r
}

func accessLogger(production bool) *httplog.Logger {
	level := slog.LevelDebug
	if production {
		level = slog.LevelInfo
	}
	return httplog.NewLogger("amsf", httplog.Options{
		LogLevel:         level,
		JSON:             production,
		Concise:          true,
		MessageFieldName: "msg",
	})
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(checks map[string]Check) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		resp := healthResponse{Status: "ok"}
		if len(checks) > 0 {
			resp.Checks = make(map[string]string, len(checks))
		}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				resp.Checks[name] = "unavailable"
				resp.Status = "degraded"
				continue
			}
			resp.Checks[name] = "ok"
		}
		httputil.WriteJSON(w, http.StatusOK, resp)
	}
}
