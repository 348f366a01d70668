// Package handlers provides HTTP handlers for stock quote lookups.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/folioapp/folio/internal/clients/yahoo"
)

// maxHistoricalSpan caps historical lookups to roughly ten years.
const maxHistoricalSpan = 3650 * 24 * time.Hour

// Handler handles stock data HTTP requests
type Handler struct {
	client *yahoo.Client
	log    zerolog.Logger
}

// NewHandler creates a new stocks handler
func NewHandler(client *yahoo.Client, log zerolog.Logger) *Handler {
	return &Handler{
		client: client,
		log:    log.With().Str("handler", "stocks").Logger(),
	}
}

// HandleQuote handles GET /api/v1/stocks/quote/{symbol}
func (h *Handler) HandleQuote(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	quote, err := h.client.GetQuote(r.Context(), symbol)
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Quote lookup failed")
		http.Error(w, "quote lookup failed", http.StatusBadGateway)
		return
	}
	if quote == nil {
		http.Error(w, "symbol not found", http.StatusNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, quote)
}

// HandleHistorical handles GET /api/v1/stocks/historical/{symbol}
func (h *Handler) HandleHistorical(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	to := time.Now().UTC()
	from := to.AddDate(0, -1, 0)

	if v := r.URL.Query().Get("startDate"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			http.Error(w, "invalid startDate", http.StatusBadRequest)
			return
		}
		from = parsed
	}
	if v := r.URL.Query().Get("endDate"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			http.Error(w, "invalid endDate", http.StatusBadRequest)
			return
		}
		to = parsed.Add(24*time.Hour - time.Second)
	}

	if to.Before(from) {
		http.Error(w, "endDate must not be before startDate", http.StatusBadRequest)
		return
	}
	if to.Sub(from) > maxHistoricalSpan {
		http.Error(w, "date range too large", http.StatusBadRequest)
		return
	}

	bars, err := h.client.GetHistorical(r.Context(), symbol, from, to)
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Historical lookup failed")
		http.Error(w, "historical lookup failed", http.StatusBadGateway)
		return
	}
	h.writeJSON(w, http.StatusOK, bars)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
