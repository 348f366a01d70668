// Package handlers provides HTTP handlers for portfolio and holding operations.
package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/folioapp/folio/internal/auth"
	"github.com/folioapp/folio/internal/modules/groups"
	"github.com/folioapp/folio/internal/modules/holdings"
	"github.com/folioapp/folio/internal/modules/portfolios"
)

// Handler handles portfolio HTTP requests
type Handler struct {
	portfolios *portfolios.Repository
	holdings   *holdings.Repository
	groups     *groups.Service
	log        zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(
	portfolioRepo *portfolios.Repository,
	holdingRepo *holdings.Repository,
	groupService *groups.Service,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		portfolios: portfolioRepo,
		holdings:   holdingRepo,
		groups:     groupService,
		log:        log.With().Str("handler", "portfolios").Logger(),
	}
}

type portfolioRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// HandleList handles GET /api/v1/portfolios
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.portfolios.ListByUser(auth.UserID(r.Context()))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list portfolios")
		http.Error(w, "failed to list portfolios", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, list)
}

// HandleCreate handles POST /api/v1/portfolios
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req portfolioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	portfolio, err := h.portfolios.Create(auth.UserID(r.Context()), req.Name, req.Description)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.writeJSON(w, http.StatusCreated, portfolio)
}

// HandleGet handles GET /api/v1/portfolios/{id}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	portfolio, ok := h.ownedPortfolio(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, portfolio)
}

// HandleUpdate handles PUT /api/v1/portfolios/{id}
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	var req portfolioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	userID := auth.UserID(r.Context())
	if err := h.portfolios.Update(id, userID, req.Name, req.Description); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "portfolio not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	portfolio, err := h.portfolios.FindOwned(id, userID)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to reload portfolio")
		http.Error(w, "failed to get portfolio", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, portfolio)
}

// HandleDelete handles DELETE /api/v1/portfolios/{id}
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.portfolios.Delete(id, auth.UserID(r.Context())); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "portfolio not found", http.StatusNotFound)
			return
		}
		h.log.Error().Err(err).Msg("Failed to delete portfolio")
		http.Error(w, "failed to delete portfolio", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleListHoldings handles GET /api/v1/portfolios/{id}/holdings
func (h *Handler) HandleListHoldings(w http.ResponseWriter, r *http.Request) {
	portfolio, ok := h.ownedPortfolio(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, portfolio.Holdings)
}

// HandleGetHolding handles GET /api/v1/portfolios/{id}/holdings/{holdingId}
func (h *Handler) HandleGetHolding(w http.ResponseWriter, r *http.Request) {
	portfolio, ok := h.ownedPortfolio(w, r)
	if !ok {
		return
	}

	holdingID, ok := h.pathID(w, r, "holdingId")
	if !ok {
		return
	}

	holding, err := h.holdings.GetByID(holdingID, portfolio.ID)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get holding")
		http.Error(w, "failed to get holding", http.StatusInternalServerError)
		return
	}
	if holding == nil {
		http.Error(w, "holding not found", http.StatusNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, holding)
}

// HandleCreateHolding handles POST /api/v1/portfolios/{id}/holdings
func (h *Handler) HandleCreateHolding(w http.ResponseWriter, r *http.Request) {
	portfolio, ok := h.ownedPortfolio(w, r)
	if !ok {
		return
	}

	input, ok := h.holdingInput(w, r)
	if !ok {
		return
	}

	holding, err := h.holdings.Create(portfolio.ID, *input)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to create holding")
		http.Error(w, "failed to create holding", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusCreated, holding)
}

// HandleUpdateHolding handles PUT /api/v1/portfolios/{id}/holdings/{holdingId}
func (h *Handler) HandleUpdateHolding(w http.ResponseWriter, r *http.Request) {
	portfolio, ok := h.ownedPortfolio(w, r)
	if !ok {
		return
	}

	holdingID, ok := h.pathID(w, r, "holdingId")
	if !ok {
		return
	}

	input, ok := h.holdingInput(w, r)
	if !ok {
		return
	}

	if err := h.holdings.Update(holdingID, portfolio.ID, *input); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "holding not found", http.StatusNotFound)
			return
		}
		h.log.Error().Err(err).Msg("Failed to update holding")
		http.Error(w, "failed to update holding", http.StatusInternalServerError)
		return
	}

	holding, err := h.holdings.GetByID(holdingID, portfolio.ID)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to reload holding")
		http.Error(w, "failed to get holding", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, holding)
}

// HandleDeleteHolding handles DELETE /api/v1/portfolios/{id}/holdings/{holdingId}
func (h *Handler) HandleDeleteHolding(w http.ResponseWriter, r *http.Request) {
	portfolio, ok := h.ownedPortfolio(w, r)
	if !ok {
		return
	}

	holdingID, ok := h.pathID(w, r, "holdingId")
	if !ok {
		return
	}

	if err := h.holdings.Delete(holdingID, portfolio.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "holding not found", http.StatusNotFound)
			return
		}
		h.log.Error().Err(err).Msg("Failed to delete holding")
		http.Error(w, "failed to delete holding", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// holdingInput decodes, validates, and resolves the group for a holding
// payload. A zero group ID means the default group.
func (h *Handler) holdingInput(w http.ResponseWriter, r *http.Request) (*holdings.Input, bool) {
	var input holdings.Input
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return nil, false
	}

	userID := auth.UserID(r.Context())
	if input.GroupID == 0 {
		def, err := h.groups.EnsureDefault(userID)
		if err != nil {
			h.log.Error().Err(err).Msg("Failed to ensure default group")
			http.Error(w, "failed to resolve group", http.StatusInternalServerError)
			return nil, false
		}
		input.GroupID = def.ID
	} else {
		if _, err := h.groups.Get(input.GroupID, userID); err != nil {
			http.Error(w, "group not found", http.StatusBadRequest)
			return nil, false
		}
	}

	if err := input.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	return &input, true
}

// ownedPortfolio loads the {id} portfolio and enforces ownership. Writes a
// 404 when the portfolio is missing or owned by another user.
func (h *Handler) ownedPortfolio(w http.ResponseWriter, r *http.Request) (*portfolios.Portfolio, bool) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return nil, false
	}

	portfolio, err := h.portfolios.FindOwned(id, auth.UserID(r.Context()))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get portfolio")
		http.Error(w, "failed to get portfolio", http.StatusInternalServerError)
		return nil, false
	}
	if portfolio == nil {
		http.Error(w, "portfolio not found", http.StatusNotFound)
		return nil, false
	}
	return portfolio, true
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil {
		http.Error(w, "invalid "+param, http.StatusBadRequest)
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
