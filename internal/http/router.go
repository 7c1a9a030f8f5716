package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/robertarktes/seat-holds-and-sales/internal/observability"
	"github.com/robertarktes/seat-holds-and-sales/internal/ratelimit"
)

func SetupRouter(h *Handlers, wsHandler http.Handler, logger observability.Logger, rl *ratelimit.Limiter) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(logger))
	r.Use(TracingMiddleware)
	r.Use(MetricsMiddleware)

	r.Get("/v1/seats", h.ListSeats)
	r.Get("/v1/stats", h.GetStats)
	r.Get("/v1/events/ws", wsHandler.ServeHTTP)
	r.Get("/v1/healthz", h.Healthz)
	r.Get("/v1/readyz", h.Readyz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Group(func(r chi.Router) {
		r.Use(RateLimitMiddleware(rl))
		r.Post("/v1/holds", h.CreateHold)
		r.Post("/v1/releases", h.ReleaseHolds)
		r.Post("/v1/purchases", h.ConfirmPurchase)
	})

	r.Group(func(r chi.Router) {
		r.Use(RateLimitMiddleware(rl))
		r.Use(AdminTokenMiddleware(h.cfg.AdminToken))
		r.Patch("/v1/admin/seats/{seatID}", h.AdminUpdateSeat)
		r.Post("/v1/admin/seats/bulk", h.AdminBulkUpdateSeats)
	})

	return r
}
