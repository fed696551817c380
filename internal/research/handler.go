// Package research serves research posts, their comments and bookmarks, and
// the AI endpoints that analyze them.
package research

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ayush/research-hub/internal/apperr"
	"github.com/ayush/research-hub/internal/auth"
	"github.com/ayush/research-hub/internal/httpx"
	"github.com/ayush/research-hub/internal/models"
	"github.com/ayush/research-hub/internal/validate"
)

const (
	analysisFailed = "AI Analysis failed"
	summaryType    = "text/markdown; charset=utf-8"
)

// ResearchStore defines the interface for research persistence.
type ResearchStore interface {
	InsertPost(ctx context.Context, post *models.Post) (*models.Post, error)
	ListPosts(ctx context.Context, f models.PostFilter) ([]models.Post, error)
	SearchPosts(ctx context.Context, q string, limit int64) ([]models.Post, error)
	GetPost(ctx context.Context, id string) (*models.Post, error)
	GetPostsByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Post, error)
	DeletePost(ctx context.Context, id primitive.ObjectID) error
	SetSummaryKey(ctx context.Context, id primitive.ObjectID, key string) error

	InsertComment(ctx context.Context, c *models.Comment) (*models.Comment, error)
	ListComments(ctx context.Context, postID primitive.ObjectID) ([]models.Comment, error)
	GetComment(ctx context.Context, id string) (*models.Comment, error)
	DeleteComment(ctx context.Context, id primitive.ObjectID) error

	AddBookmark(ctx context.Context, userID string, postID primitive.ObjectID) error
	RemoveBookmark(ctx context.Context, userID string, postID primitive.ObjectID) error
	IsBookmarked(ctx context.Context, userID string, postID primitive.ObjectID) (bool, error)
	ListBookmarks(ctx context.Context, userID string) ([]models.Bookmark, error)
}

// FileStore defines the interface for file storage.
type FileStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	Download(ctx context.Context, key string) ([]byte, string, error)
	Remove(ctx context.Context, key string) error
}

// Analyzer produces AI text about research.
type Analyzer interface {
	Analyze(ctx context.Context, content string) (string, error)
	Summarize(ctx context.Context, post *models.Post) (string, error)
	Ask(ctx context.Context, post *models.Post, question string) (string, error)
}

// Handler holds research HTTP handlers.
type Handler struct {
	store  ResearchStore
	files  FileStore
	ai     Analyzer
	logger *slog.Logger
}

func NewHandler(store ResearchStore, files FileStore, ai Analyzer, logger *slog.Logger) *Handler {
	return &Handler{store: store, files: files, ai: ai, logger: logger}
}

// Create stores a new post authored by the caller.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}

	var req models.CreatePostRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	title := validate.SanitizeText(req.Title, validate.TitleMax+1)
	content := strings.TrimSpace(req.Content)
	category := validate.SanitizeText(req.Category, validate.CategoryMax+1)
	switch {
	case !validate.Title(title):
		httpx.WriteError(w, h.logger, apperr.Validation("Title must be 3-200 characters long"))
		return
	case !validate.ResearchContent(content):
		httpx.WriteError(w, h.logger, apperr.Validation("Content must be 10-50000 characters long"))
		return
	case !validate.Category(category):
		httpx.WriteError(w, h.logger, apperr.Validation("Category must be 2-50 characters long"))
		return
	}

	post, err := h.store.InsertPost(r.Context(), &models.Post{
		AuthorID:       claims.UserID,
		AuthorUsername: claims.Username,
		Title:          title,
		Content:        content,
		Category:       strings.ToUpper(category),
	})
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, post)
}

// List returns posts newest first, optionally filtered by category or author.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	q := r.URL.Query()
	posts, err := h.store.ListPosts(r.Context(), models.PostFilter{
		Category: strings.ToUpper(strings.TrimSpace(q.Get("category"))),
		AuthorID: strings.TrimSpace(q.Get("author")),
		Limit:    limit,
	})
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, nonNil(posts))
}

// Search matches ?q= against title, content and category.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := validate.SanitizeText(r.URL.Query().Get("q"), validate.SearchMax+1)
	if !validate.SearchQuery(q) {
		httpx.WriteError(w, h.logger, apperr.Validation("Search query must be 2-100 characters long"))
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	posts, err := h.store.SearchPosts(r.Context(), q, limit)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, nonNil(posts))
}

// Get returns a single post.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	post, err := h.store.GetPost(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, post)
}

// Delete removes a post owned by the caller, along with its archived summary.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}

	post, err := h.store.GetPost(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	if post.AuthorID != claims.UserID {
		httpx.WriteError(w, h.logger, apperr.Forbidden("You can only delete your own research"))
		return
	}

	if err := h.store.DeletePost(r.Context(), post.ID); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	if post.SummaryKey != "" {
		if err := h.files.Remove(r.Context(), post.SummaryKey); err != nil {
			h.logger.WarnContext(r.Context(), "summary cleanup failed", "key", post.SummaryKey, "error", err)
		}
	}
	httpx.WriteMessage(w, http.StatusOK, "Research deleted successfully")
}

// Analyze runs an ad-hoc AI analysis of submitted content.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req models.AnalyzeRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	content := strings.TrimSpace(req.Content)
	if !validate.ResearchContent(content) {
		httpx.WriteError(w, h.logger, apperr.Validation("Content must be 10-50000 characters long"))
		return
	}

	summary, err := h.ai.Analyze(r.Context(), content)
	if err != nil {
		httpx.WriteError(w, h.logger, apperr.Upstream(analysisFailed, err))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"summary": summary})
}

// Summarize generates a markdown summary of a post and archives it in
// object storage, replacing any previous one.
func (h *Handler) Summarize(w http.ResponseWriter, r *http.Request) {
	post, err := h.store.GetPost(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	summary, err := h.ai.Summarize(r.Context(), post)
	if err != nil {
		httpx.WriteError(w, h.logger, apperr.Upstream(analysisFailed, err))
		return
	}

	key := fmt.Sprintf("summaries/%s-%s.md", post.ID.Hex(), uuid.NewString())
	if err := h.files.Upload(r.Context(), key, []byte(summary), summaryType); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	if err := h.store.SetSummaryKey(r.Context(), post.ID, key); err != nil {
		if rmErr := h.files.Remove(r.Context(), key); rmErr != nil {
			h.logger.WarnContext(r.Context(), "orphaned summary cleanup failed", "key", key, "error", rmErr)
		}
		httpx.WriteError(w, h.logger, err)
		return
	}
	if post.SummaryKey != "" {
		if err := h.files.Remove(r.Context(), post.SummaryKey); err != nil {
			h.logger.WarnContext(r.Context(), "stale summary cleanup failed", "key", post.SummaryKey, "error", err)
		}
	}

	httpx.WriteJSON(w, http.StatusCreated, map[string]string{"summary": summary, "summary_key": key})
}

// DownloadSummary streams the archived summary of a post.
func (h *Handler) DownloadSummary(w http.ResponseWriter, r *http.Request) {
	post, err := h.store.GetPost(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	if post.SummaryKey == "" {
		httpx.WriteError(w, h.logger, apperr.NotFound("Summary not found"))
		return
	}

	data, _, err := h.files.Download(r.Context(), post.SummaryKey)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	w.Header().Set("Content-Type", summaryType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=summary-%s.md", post.ID.Hex()))
	_, _ = w.Write(data)
}

// Ask answers a question about a post.
func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	var req models.AskRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	question := validate.SanitizeText(req.Question, validate.QuestionMax+1)
	if !validate.Question(question) {
		httpx.WriteError(w, h.logger, apperr.Validation("Question must be 3-1000 characters long"))
		return
	}

	post, err := h.store.GetPost(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	answer, err := h.ai.Ask(r.Context(), post, question)
	if err != nil {
		httpx.WriteError(w, h.logger, apperr.Upstream(analysisFailed, err))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"answer": answer})
}

func (h *Handler) claims(w http.ResponseWriter, r *http.Request) (*auth.Claims, bool) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, h.logger, apperr.Unauthenticated("Access denied. No token provided."))
	}
	return claims, ok
}

func parseLimit(r *http.Request) (int64, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || limit < 1 {
		return 0, apperr.Validation("Limit must be a positive integer")
	}
	return limit, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
