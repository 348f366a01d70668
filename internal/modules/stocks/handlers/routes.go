package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all stock data routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/stocks", func(r chi.Router) {
		r.Get("/quote/{symbol}", h.HandleQuote)
		r.Get("/historical/{symbol}", h.HandleHistorical)
	})
}
