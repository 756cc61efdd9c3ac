// Package httpapi assembles the public HTTP surface: middleware chain,
// feature routes, health and metrics endpoints.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	gatehandler "proofid/internal/gate/handler"
	identityhandler "proofid/internal/identity/handler"
	"proofid/internal/platform/metrics"
	ratelimit "proofid/internal/ratelimit/middleware"
	recordshandler "proofid/internal/records/handler"
	"proofid/pkg/platform/httputil"
	authmw "proofid/pkg/platform/middleware/auth"
	"proofid/pkg/platform/middleware/request"
	"proofid/pkg/platform/middleware/requesttime"
)

// HealthCheck reports whether a backing dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Dependencies are the handlers and cross-cutting services the router mounts.
type Dependencies struct {
	Logger   *slog.Logger
	Tokens   authmw.TokenValidator
	Identity *identityhandler.Handler
	Gate     *gatehandler.Handler
	Records  *recordshandler.Handler
	// Metrics is optional; when nil no HTTP metrics are recorded.
	Metrics *metrics.Metrics
	// RateLimit is optional; when nil no request budgets are enforced.
	RateLimit *ratelimit.Middleware
	Health    map[string]HealthCheck
}

// NewRouter wires all public endpoints.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Recovery(deps.Logger))
	r.Use(request.Logger(deps.Logger))
	r.Use(requesttime.Middleware)
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware)
	}

	r.Get("/healthz", healthz(deps.Health))
	r.Handle("/metrics", promhttp.Handler())

	api := chi.Router(r)
	requireAuth := authmw.RequireAuth(deps.Tokens, deps.Logger)
	if deps.RateLimit != nil {
		api = r.With(deps.RateLimit.ByClient)
		authenticate := requireAuth
		requireAuth = func(next http.Handler) http.Handler {
			return authenticate(deps.RateLimit.ByPrincipal(next))
		}
	}
	deps.Identity.Register(api, requireAuth)
	deps.Gate.Register(api)
	deps.Records.Register(api, requireAuth)

	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthz(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok"}
		status := http.StatusOK
		if len(checks) > 0 {
			resp.Checks = make(map[string]string, len(checks))
		}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
