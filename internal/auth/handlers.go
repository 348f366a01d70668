package auth

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/folioapp/folio/internal/modules/users"
)

// Handler handles auth HTTP requests
type Handler struct {
	service *Service
	log     zerolog.Logger
}

// NewHandler creates a new auth handler
func NewHandler(service *Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "auth").Logger(),
	}
}

// RegisterRoutes registers auth routes. These are public.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.HandleRegister)
		r.Post("/login", h.HandleLogin)
	})
}

// RegisterAccountRoutes registers the profile routes. These require an
// authenticated user in the request context.
func (h *Handler) RegisterAccountRoutes(r chi.Router) {
	r.Route("/account", func(r chi.Router) {
		r.Get("/me", h.HandleMe)
		r.Put("/me", h.HandleUpdateMe)
		r.Put("/password", h.HandleChangePassword)
	})
}

type credentialsRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	BaseCurrency string `json:"baseCurrency,omitempty"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  *users.User `json:"user"`
}

// HandleRegister handles POST /api/v1/auth/register
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	user, token, err := h.service.Register(req.Email, req.Password, req.BaseCurrency)
	if err != nil {
		if errors.Is(err, users.ErrEmailTaken) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.writeJSON(w, http.StatusCreated, authResponse{Token: token, User: user})
}

// HandleLogin handles POST /api/v1/auth/login
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	user, token, err := h.service.Login(req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		h.log.Error().Err(err).Msg("Login failed")
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}

type profileRequest struct {
	BaseCurrency string `json:"baseCurrency"`
}

type passwordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// HandleMe handles GET /api/v1/account/me
func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.Profile(UserID(r.Context()))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load profile")
		http.Error(w, "failed to load profile", http.StatusInternalServerError)
		return
	}
	if user == nil {
		http.Error(w, "user not found", http.StatusUnauthorized)
		return
	}
	h.writeJSON(w, http.StatusOK, user)
}

// HandleUpdateMe handles PUT /api/v1/account/me
func (h *Handler) HandleUpdateMe(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	user, err := h.service.UpdateBaseCurrency(UserID(r.Context()), req.BaseCurrency)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "user not found", http.StatusUnauthorized)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.writeJSON(w, http.StatusOK, user)
}

// HandleChangePassword handles PUT /api/v1/account/password
func (h *Handler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.service.ChangePassword(UserID(r.Context()), req.CurrentPassword, req.NewPassword); err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
