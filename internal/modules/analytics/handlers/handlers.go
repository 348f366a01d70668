// Package handlers provides HTTP handlers for portfolio analytics and
// snapshot operations.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/folioapp/folio/internal/auth"
	"github.com/folioapp/folio/internal/clients/ecb"
	"github.com/folioapp/folio/internal/modules/analytics"
)

// Handler handles analytics HTTP requests
type Handler struct {
	service *analytics.Service
	log     zerolog.Logger
}

// NewHandler creates a new analytics handler
func NewHandler(service *analytics.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "analytics").Logger(),
	}
}

// HandleCompute handles GET /api/v1/analytics/portfolio/{id}
func (h *Handler) HandleCompute(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	result, err := h.service.Compute(r.Context(), id, auth.UserID(r.Context()))
	if err != nil {
		h.writeComputeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// HandleCreateSnapshot handles POST /api/v1/portfolios/{id}/snapshots
func (h *Handler) HandleCreateSnapshot(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	snapshot, err := h.service.CreateSnapshot(r.Context(), id, auth.UserID(r.Context()))
	if err != nil {
		h.writeComputeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, snapshot)
}

// HandleListSnapshots handles GET /api/v1/portfolios/{id}/snapshots
func (h *Handler) HandleListSnapshots(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	from, to, err := timeRange(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	list, err := h.service.Snapshots(id, auth.UserID(r.Context()), from, to)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list snapshots")
		http.Error(w, "failed to list snapshots", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, list)
}

// HandleTimeSeries handles GET /api/v1/analytics/portfolio/{id}/timeseries
func (h *Handler) HandleTimeSeries(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	from, to, err := timeRange(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	points, err := h.service.TimeSeries(id, auth.UserID(r.Context()), from, to)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to build time series")
		http.Error(w, "failed to build time series", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, points)
}

func (h *Handler) writeComputeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, analytics.ErrPortfolioNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ecb.ErrRatesUnavailable):
		http.Error(w, err.Error(), http.StatusBadGateway)
	default:
		h.log.Error().Err(err).Msg("Analytics computation failed")
		http.Error(w, "analytics computation failed", http.StatusInternalServerError)
	}
}

// timeRange parses optional from/to query parameters. Date-only values for
// "to" extend to the end of that day so the bound stays inclusive.
func timeRange(r *http.Request) (*time.Time, *time.Time, error) {
	from, err := parseTime(r.URL.Query().Get("from"), false)
	if err != nil {
		return nil, nil, err
	}
	to, err := parseTime(r.URL.Query().Get("to"), true)
	if err != nil {
		return nil, nil, err
	}
	return from, to, nil
}

func parseTime(value string, endOfDay bool) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		ts = ts.UTC()
		return &ts, nil
	}
	ts, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, errors.New("invalid time value: " + value)
	}
	if endOfDay {
		ts = ts.Add(24*time.Hour - time.Second)
	}
	return &ts, nil
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid portfolio id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
