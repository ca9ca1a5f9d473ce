// Package httptransport assembles the HTTP surface: shared middleware, the
// KYC routes, the admin gate, health and metrics.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"presale/internal/platform/metrics"
	"presale/pkg/platform/httputil"
	"presale/pkg/platform/middleware/metadata"
	"presale/pkg/platform/middleware/request"
	"presale/pkg/platform/middleware/requesttime"
)

// RouteRegistrar is implemented by feature handlers.
type RouteRegistrar interface {
	Register(r chi.Router)
	RegisterAdmin(r chi.Router)
}

// HealthCheck reports whether a backing service is reachable.
type HealthCheck func(ctx context.Context) error

// Config wires the router.
type Config struct {
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	RequestTimeout time.Duration
	// AdminGate wraps the operator routes; nil leaves them unregistered.
	AdminGate func(http.Handler) http.Handler
	Checks    map[string]HealthCheck
	// TrustedProxies may set the client address through forwarding headers.
	TrustedProxies metadata.TrustedProxies
}

// NewRouter returns the service's root handler.
func NewRouter(cfg Config, handlers ...RouteRegistrar) http.Handler {
	r := chi.NewRouter()
	r.Use(request.Recovery(cfg.Logger))
	r.Use(request.RequestID)
	r.Use(metadata.ClientMetadata(cfg.TrustedProxies))
	r.Use(requesttime.Middleware)
	r.Use(request.AccessLog(cfg.Logger))
	r.Use(cfg.Metrics.Middleware)
	if cfg.RequestTimeout > 0 {
		r.Use(chimw.Timeout(cfg.RequestTimeout))
	}

	r.Get("/health", healthHandler(cfg.Checks))
	r.Handle("/metrics", metrics.Handler())

	for _, h := range handlers {
		h.Register(r)
	}
	if cfg.AdminGate != nil {
		r.Group(func(r chi.Router) {
			r.Use(cfg.AdminGate)
			for _, h := range handlers {
				h.RegisterAdmin(r)
			}
		})
	}
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok"}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				if resp.Checks == nil {
					resp.Checks = make(map[string]string)
				}
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
			}
		}

		status := http.StatusOK
		if resp.Status != "ok" {
			status = http.StatusServiceUnavailable
		}
		httputil.WriteJSON(w, status, resp)
	}
}
