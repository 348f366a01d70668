// Package handlers provides HTTP handlers for holding group operations.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/folioapp/folio/internal/auth"
	"github.com/folioapp/folio/internal/modules/groups"
)

// Handler handles group HTTP requests
type Handler struct {
	service *groups.Service
	log     zerolog.Logger
}

// NewHandler creates a new group handler
func NewHandler(service *groups.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "groups").Logger(),
	}
}

type groupRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// HandleList handles GET /api/v1/groups
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(auth.UserID(r.Context()))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list groups")
		http.Error(w, "failed to list groups", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, list)
}

// HandleCreate handles POST /api/v1/groups
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req groupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	group, err := h.service.Create(auth.UserID(r.Context()), req.Name, req.Description)
	if err != nil {
		if errors.Is(err, groups.ErrNameTaken) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.writeJSON(w, http.StatusCreated, group)
}

// HandleGet handles GET /api/v1/groups/{id}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.groupID(w, r)
	if !ok {
		return
	}

	group, err := h.service.Get(id, auth.UserID(r.Context()))
	if err != nil {
		if errors.Is(err, groups.ErrNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		h.log.Error().Err(err).Msg("Failed to get group")
		http.Error(w, "failed to get group", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, group)
}

// HandleUpdate handles PUT /api/v1/groups/{id}
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.groupID(w, r)
	if !ok {
		return
	}

	var req groupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	group, err := h.service.Update(id, auth.UserID(r.Context()), req.Name, req.Description)
	if err != nil {
		switch {
		case errors.Is(err, groups.ErrNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, groups.ErrDefaultGroupLocked):
			http.Error(w, err.Error(), http.StatusForbidden)
		case errors.Is(err, groups.ErrNameTaken):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
		return
	}
	h.writeJSON(w, http.StatusOK, group)
}

// HandleDelete handles DELETE /api/v1/groups/{id}
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.groupID(w, r)
	if !ok {
		return
	}

	err := h.service.Delete(id, auth.UserID(r.Context()))
	if err != nil {
		switch {
		case errors.Is(err, groups.ErrNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, groups.ErrDefaultGroupLocked):
			http.Error(w, err.Error(), http.StatusForbidden)
		default:
			h.log.Error().Err(err).Msg("Failed to delete group")
			http.Error(w, "failed to delete group", http.StatusInternalServerError)
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) groupID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid group id", http.StatusBadRequest)
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
