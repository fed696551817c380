package research

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ayush/research-hub/internal/httpx"
	"github.com/ayush/research-hub/internal/models"
)

// SaveBookmark saves a post for the caller.
func (h *Handler) SaveBookmark(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}
	post, err := h.store.GetPost(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	if err := h.store.AddBookmark(r.Context(), claims.UserID, post.ID); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteMessage(w, http.StatusCreated, "Research saved")
}

// RemoveBookmark unsaves a post.
func (h *Handler) RemoveBookmark(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}
	postID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		// Unparseable ids can never have been saved.
		postID = primitive.NilObjectID
	}

	if err := h.store.RemoveBookmark(r.Context(), claims.UserID, postID); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteMessage(w, http.StatusOK, "Research removed from saved")
}

// BookmarkStatus reports whether the caller saved a post.
func (h *Handler) BookmarkStatus(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}
	saved := false
	if postID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id")); err == nil {
		if saved, err = h.store.IsBookmarked(r.Context(), claims.UserID, postID); err != nil {
			httpx.WriteError(w, h.logger, err)
			return
		}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]bool{"saved": saved})
}

// ListBookmarks returns the caller's saved posts, most recently saved first.
// Bookmarks whose post has since been deleted are skipped.
func (h *Handler) ListBookmarks(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}

	bookmarks, err := h.store.ListBookmarks(r.Context(), claims.UserID)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	ids := make([]primitive.ObjectID, 0, len(bookmarks))
	for _, b := range bookmarks {
		ids = append(ids, b.PostID)
	}

	found, err := h.store.GetPostsByIDs(r.Context(), ids)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	posts := make([]models.Post, 0, len(found))
	for _, id := range ids {
		if p, ok := found[id]; ok {
			posts = append(posts, p)
		}
	}
	httpx.WriteJSON(w, http.StatusOK, posts)
}
