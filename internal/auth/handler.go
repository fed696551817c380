package auth

import (
	"log/slog"
	"net/http"

	"github.com/ayush/research-hub/internal/apperr"
	"github.com/ayush/research-hub/internal/httpx"
	"github.com/ayush/research-hub/internal/models"
)

// Handler holds auth-related HTTP handlers.
type Handler struct {
	svc    *Service
	logger *slog.Logger
}

func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Signup creates a new user and returns a token.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req models.SignupRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	session, err := h.svc.Signup(r.Context(), req)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, models.AuthResponse{
		Message: "Signup successful",
		Token:   session.Token,
		User:    session.User,
	})
}

// Login authenticates a user and returns a token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	session, err := h.svc.Login(r.Context(), req)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, models.AuthResponse{
		Message: "Login successful",
		Token:   session.Token,
		User:    session.User,
	})
}

// Logout revokes the bearer token of the request.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Logout(r.Context(), BearerToken(r)); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteMessage(w, http.StatusOK, "Logged out successfully.")
}

// Me returns the currently authenticated user.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, h.logger, apperr.Unauthenticated("Access denied. No token provided."))
		return
	}

	user, err := h.svc.Me(r.Context(), claims.UserID)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, user)
}
