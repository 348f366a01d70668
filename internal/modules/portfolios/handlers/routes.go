package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// SnapshotHandlers is the part of the analytics handler that serves the
// snapshot endpoints nested under a portfolio.
type SnapshotHandlers interface {
	HandleCreateSnapshot(w http.ResponseWriter, r *http.Request)
	HandleListSnapshots(w http.ResponseWriter, r *http.Request)
}

// RegisterRoutes registers all portfolio, holding, and snapshot routes
func (h *Handler) RegisterRoutes(r chi.Router, snapshots SnapshotHandlers) {
	r.Route("/portfolios", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Post("/", h.HandleCreate)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.HandleGet)
			r.Put("/", h.HandleUpdate)
			r.Delete("/", h.HandleDelete)
			r.Get("/holdings", h.HandleListHoldings)
			r.Post("/holdings", h.HandleCreateHolding)
			r.Get("/holdings/{holdingId}", h.HandleGetHolding)
			r.Put("/holdings/{holdingId}", h.HandleUpdateHolding)
			r.Delete("/holdings/{holdingId}", h.HandleDeleteHolding)
			r.Post("/snapshots", snapshots.HandleCreateSnapshot)
			r.Get("/snapshots", snapshots.HandleListSnapshots)
		})
	})
}
