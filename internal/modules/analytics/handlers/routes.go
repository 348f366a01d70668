package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the analytics routes. The snapshot routes live
// under /portfolios/{id} and are registered by the portfolio router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/analytics/portfolio/{id}", func(r chi.Router) {
		r.Get("/", h.HandleCompute)
		r.Get("/timeseries", h.HandleTimeSeries)
	})
}
