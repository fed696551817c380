// Package social serves researcher profiles and the follow graph between them.
package social

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ayush/research-hub/internal/apperr"
	"github.com/ayush/research-hub/internal/auth"
	"github.com/ayush/research-hub/internal/httpx"
	"github.com/ayush/research-hub/internal/models"
)

// MaxStatusIDs caps the ids accepted by one follow-status query.
const MaxStatusIDs = 100

// FollowStore persists follow relations.
type FollowStore interface {
	Follow(ctx context.Context, followerID, followingID string) (*models.Follow, error)
	Unfollow(ctx context.Context, followerID, followingID string) error
	Following(ctx context.Context, userID string) ([]models.Follow, error)
	Followers(ctx context.Context, userID string) ([]models.Follow, error)
	FollowStatus(ctx context.Context, followerID string, ids []string) (map[string]bool, error)
}

// UserLookup resolves researchers by id.
type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUsersByIDs(ctx context.Context, ids []string) (map[string]models.User, error)
}

// Handler holds follow HTTP handlers.
type Handler struct {
	follows FollowStore
	users   UserLookup
	logger  *slog.Logger
}

func NewHandler(follows FollowStore, users UserLookup, logger *slog.Logger) *Handler {
	return &Handler{follows: follows, users: users, logger: logger}
}

// Follow makes the caller follow the researcher in the body.
func (h *Handler) Follow(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}

	var req models.FollowRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	target := strings.TrimSpace(req.FollowingID)
	switch {
	case target == "":
		httpx.WriteError(w, h.logger, apperr.Validation("followingId is required"))
		return
	case target == claims.UserID:
		httpx.WriteError(w, h.logger, apperr.Validation("You cannot follow yourself"))
		return
	}

	if _, err := h.users.GetUserByID(r.Context(), target); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	follow, err := h.follows.Follow(r.Context(), claims.UserID, target)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, follow)
}

// Unfollow removes the caller's follow of {userId}. It succeeds whether or
// not the relation existed.
func (h *Handler) Unfollow(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}
	if err := h.follows.Unfollow(r.Context(), claims.UserID, chi.URLParam(r, "userId")); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteMessage(w, http.StatusOK, "Unfollowed successfully.")
}

// Following lists who {userId} follows, with each followed user's profile.
func (h *Handler) Following(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.follows.Following, func(f models.Follow) string { return f.FollowingID })
}

// Followers lists who follows {userId}, with each follower's profile.
func (h *Handler) Followers(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.follows.Followers, func(f models.Follow) string { return f.FollowerID })
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request,
	find func(context.Context, string) ([]models.Follow, error), other func(models.Follow) string,
) {
	follows, err := find(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	ids := make([]string, 0, len(follows))
	for _, f := range follows {
		ids = append(ids, other(f))
	}
	users, err := h.users.GetUsersByIDs(r.Context(), ids)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	entries := make([]models.FollowEntry, 0, len(follows))
	for _, f := range follows {
		entry := models.FollowEntry{Follow: f}
		if u, ok := users[other(f)]; ok {
			entry.User = u.Profile()
		}
		entries = append(entries, entry)
	}
	httpx.WriteJSON(w, http.StatusOK, entries)
}

// Profile returns the public profile of {id}.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetUserByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, user.Profile())
}

// Status reports, for each researcher id, whether the caller follows them.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}

	var req models.FollowStatusRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	if req.ResearcherIDs == nil {
		httpx.WriteError(w, h.logger, apperr.Validation("researcherIds must be an array"))
		return
	}
	if len(req.ResearcherIDs) > MaxStatusIDs {
		httpx.WriteError(w, h.logger, apperr.Validation("Too many researcherIds"))
		return
	}

	status, err := h.follows.FollowStatus(r.Context(), claims.UserID, req.ResearcherIDs)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]map[string]bool{"following": status})
}

func (h *Handler) claims(w http.ResponseWriter, r *http.Request) (*auth.Claims, bool) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, h.logger, apperr.Unauthenticated("Access denied. No token provided."))
	}
	return claims, ok
}
