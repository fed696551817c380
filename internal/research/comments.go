package research

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ayush/research-hub/internal/apperr"
	"github.com/ayush/research-hub/internal/httpx"
	"github.com/ayush/research-hub/internal/models"
	"github.com/ayush/research-hub/internal/validate"
)

// ListComments returns the comments on a post, newest first.
func (h *Handler) ListComments(w http.ResponseWriter, r *http.Request) {
	post, err := h.store.GetPost(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	comments, err := h.store.ListComments(r.Context(), post.ID)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, nonNil(comments))
}

// AddComment posts a comment as the caller.
func (h *Handler) AddComment(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}

	var req models.CreateCommentRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	body := strings.TrimSpace(req.Body)
	if !validate.Comment(body) {
		httpx.WriteError(w, h.logger, apperr.Validation("Comment must be 1-2000 characters long"))
		return
	}

	post, err := h.store.GetPost(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	comment, err := h.store.InsertComment(r.Context(), &models.Comment{
		PostID:         post.ID,
		AuthorID:       claims.UserID,
		AuthorUsername: claims.Username,
		Body:           body,
	})
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, comment)
}

// DeleteComment removes a comment written by the caller.
func (h *Handler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}

	comment, err := h.store.GetComment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	if comment.AuthorID != claims.UserID {
		httpx.WriteError(w, h.logger, apperr.Forbidden("You can only delete your own comments"))
		return
	}

	if err := h.store.DeleteComment(r.Context(), comment.ID); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteMessage(w, http.StatusOK, "Comment deleted successfully")
}
