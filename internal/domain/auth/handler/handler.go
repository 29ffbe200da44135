// Package handler exposes account registration, login and profile routes.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/donorflow/donorflow/internal/domain/auth/repository"
	"github.com/donorflow/donorflow/internal/domain/auth/service"
	"github.com/donorflow/donorflow/internal/middleware"
)

// Handler serves the auth routes.
type Handler struct {
	svc    *service.AuthService
	logger *slog.Logger
}

// NewHandler creates the auth handler.
func NewHandler(svc *service.AuthService, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// AuthRoutes mounts the public register/login endpoints.
func (h *Handler) AuthRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	return r
}

// ProfileRoutes mounts the authenticated profile endpoints.
func (h *Handler) ProfileRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/profile", h.Profile)
	r.Put("/profile", h.UpdateProfile)
	return r
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID              int64  `json:"id"`
	Username        string `json:"username"`
	Email           string `json:"email"`
	FullName        string `json:"full_name,omitempty"`
	ProfilePhotoURL string `json:"profile_photo_url,omitempty"`
	Phone           string `json:"phone,omitempty"`
	BirthDate       string `json:"birth_date,omitempty"`
	City            string `json:"city,omitempty"`
	Address         string `json:"address,omitempty"`
}

func toUserResponse(u *repository.User) userResponse {
	return userResponse{
		ID:              u.ID,
		Username:        u.Username,
		Email:           u.Email,
		FullName:        u.FullName,
		ProfilePhotoURL: u.ProfilePhotoURL,
		Phone:           u.Phone,
		BirthDate:       u.BirthDate,
		City:            u.City,
		Address:         u.Address,
	}
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	result, err := h.svc.Register(r.Context(), service.RegisterParams{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	switch {
	case errors.Is(err, service.ErrMissingFields), errors.Is(err, service.ErrWeakPassword):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, repository.ErrUserExists):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		h.serverError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"user":  toUserResponse(result.User),
		"token": result.Token,
	})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	result, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if errors.Is(err, service.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if err != nil {
		h.serverError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user":  toUserResponse(result.User),
		"token": result.Token,
	})
}

func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.svc.Profile(r.Context(), userID)
	if errors.Is(err, repository.ErrUserNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		h.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

type profileUpdateRequest struct {
	FullName        *string `json:"full_name"`
	ProfilePhotoURL *string `json:"profile_photo_url"`
	Phone           *string `json:"phone"`
	BirthDate       *string `json:"birth_date"`
	City            *string `json:"city"`
	Address         *string `json:"address"`
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req profileUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	user, err := h.svc.UpdateProfile(r.Context(), userID, repository.ProfileUpdate{
		FullName:        req.FullName,
		ProfilePhotoURL: req.ProfilePhotoURL,
		Phone:           req.Phone,
		BirthDate:       req.BirthDate,
		City:            req.City,
		Address:         req.Address,
	})
	if errors.Is(err, repository.ErrUserNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		h.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (h *Handler) serverError(w http.ResponseWriter, err error) {
	h.logger.Error("request failed", slog.Any("error", err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
