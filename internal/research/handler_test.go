package research

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayush/research-hub/internal/auth"
	"github.com/ayush/research-hub/internal/httpx"
	"github.com/ayush/research-hub/internal/models"
)

type testEnv struct {
	store  *fakeStore
	files  *fakeFiles
	router chi.Router
}

func newTestEnv(t *testing.T, aiStatus int, aiReply string) *testEnv {
	t.Helper()
	srv, _ := newAIServer(t, aiStatus, aiReply)
	env := &testEnv{store: newFakeStore(), files: newFakeFiles()}
	h := NewHandler(env.store, env.files, NewAIClient(srv.URL+"/v1", "sk-test", ""), slog.New(slog.NewTextHandler(io.Discard, nil)))

	r := chi.NewRouter()
	r.Get("/api/research", h.List)
	r.Get("/api/research/search", h.Search)
	r.Post("/api/research", h.Create)
	r.Get("/api/research/{id}", h.Get)
	r.Delete("/api/research/{id}", h.Delete)
	r.Get("/api/research/{id}/comments", h.ListComments)
	r.Post("/api/research/{id}/comments", h.AddComment)
	r.Delete("/api/comments/{id}", h.DeleteComment)
	r.Get("/api/bookmarks", h.ListBookmarks)
	r.Post("/api/research/{id}/bookmark", h.SaveBookmark)
	r.Delete("/api/research/{id}/bookmark", h.RemoveBookmark)
	r.Get("/api/research/{id}/bookmark", h.BookmarkStatus)
	r.Post("/api/analyze-research", h.Analyze)
	r.Post("/api/research/{id}/summary", h.Summarize)
	r.Get("/api/research/{id}/summary", h.DownloadSummary)
	r.Post("/api/research/{id}/ask", h.Ask)
	env.router = r
	return env
}

// do serves a request as userID; an empty userID sends it unauthenticated.
func (e *testEnv) do(method, path, body, userID string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if userID != "" {
		req = req.WithContext(auth.WithClaims(req.Context(), &auth.Claims{UserID: userID, Username: "user_" + userID}))
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) createPost(t *testing.T, userID, title, category string) models.Post {
	t.Helper()
	body := `{"title":"` + title + `","content":"Findings about ` + title + ` in detail.","category":"` + category + `"}`
	rec := e.do(http.MethodPost, "/api/research", body, userID)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var post models.Post
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&post))
	return post
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) httpx.ErrorBody {
	t.Helper()
	var body httpx.ErrorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestCreate(t *testing.T) {
	env := newTestEnv(t, http.StatusOK, "")

	post := env.createPost(t, "u1", "Graphene <b>sheets</b>", "materials")
	assert.Equal(t, "Graphene bsheets/b", post.Title)
	assert.Equal(t, "MATERIALS", post.Category)
	assert.Equal(t, "u1", post.AuthorID)
	assert.Equal(t, "user_u1", post.AuthorUsername)
	assert.False(t, post.ID.IsZero())
}

func TestCreate_Validation(t *testing.T) {
	env := newTestEnv(t, http.StatusOK, "")
	long := strings.Repeat("x", 201)

	tests := []struct {
		name string
		body string
		msg  string
	}{
		{"short title", `{"title":"ab","content":"long enough content","category":"bio"}`, "Title must be 3-200 characters long"},
		{"long title", `{"title":"` + long + `","content":"long enough content","category":"bio"}`, "Title must be 3-200 characters long"},
		{"short content", `{"title":"abc","content":"tiny","category":"bio"}`, "Content must be 10-50000 characters long"},
		{"short category", `{"title":"abc","content":"long enough content","category":"b"}`, "Category must be 2-50 characters long"},
		{"bad json", `{"title":`, "Invalid request body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(http.MethodPost, "/api/research", tt.body, "u1")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.msg, decodeError(t, rec).Error)
		})
	}
}

func TestCreate_RequiresClaims(t *testing.T) {
	env := newTestEnv(t, http.StatusOK, "")
	rec := env.do(http.MethodPost, "/api/research", `{}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestList_FiltersAndOrder(t *testing.T) {
	env := newTestEnv(t, http.StatusOK, "")
	first := env.createPost(t, "u1", "Protein folding", "biology")
	second := env.createPost(t, "u2", "Dark matter", "physics")
	third := env.createPost(t, "u1", "Gene editing", "biology")

	var posts []models.Post
	rec := env.do(http.MethodGet, "/api/research", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&posts))
	require.Len(t, posts, 3)
	assert.Equal(t, []string{third.Title, second.Title, first.Title}, []string{posts[0].Title, posts[1].Title, posts[2].Title})

	rec = env.do(http.MethodGet, "/api/research?category=biology&author=u1", "", "")
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&posts))
	assert.Len(t, posts, 2)

	rec = env.do(http.MethodGet, "/api/research?category=chemistry", "", "")
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = env.do(http.MethodGet, "/api/research?limit=zero", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearch(t *testing.T) {
	env := newTestEnv(t, http.StatusOK, "")
	env.createPost(t, "u1", "Protein folding", "biology")
	env.createPost(t, "u1", "Dark matter", "physics")

	var posts []models.Post
	rec := env.do(http.MethodGet, "/api/research/search?q=PROTEIN", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&posts))
	require.Len(t, posts, 1)
	assert.Equal(t, "Protein folding", posts[0].Title)

	rec = env.do(http.MethodGet, "/api/research/search?q=a", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Search query must be 2-100 characters long", decodeError(t, rec).Error)
}

func TestGet_NotFound(t *testing.T) {
	env := newTestEnv(t, http.StatusOK, "")
	for _, id := range []string{"not-an-id", "64b7f0c2a1b2c3d4e5f60718"} {
		rec := env.do(http.MethodGet, "/api/research/"+id, "", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "NOT_FOUND", decodeError(t, rec).Code)
	}
}

func TestDelete_OwnerOnly(t *testing.T) {
	env := newTestEnv(t, http.StatusOK, "")
	post := env.createPost(t, "u1", "Protein folding", "biology")
	path := "/api/research/" + post.ID.Hex()

	rec := env.do(http.MethodDelete, path, "", "u2")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", decodeError(t, rec).Code)

	rec = env.do(http.MethodDelete, path, "", "u1")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodGet, path, "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestComments(t *testing.T) {
	env := newTestEnv(t, http.StatusOK, "")
	post := env.createPost(t, "u1", "Protein folding", "biology")
	base := "/api/research/" + post.ID.Hex() + "/comments"

	rec := env.do(http.MethodPost, base, `{"body":"   "}`, "u2")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPost, base, `{"body":"First!"}`, "u2")
	require.Equal(t, http.StatusCreated, rec.Code)
	var first models.Comment
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&first))
	assert.Equal(t, post.ID, first.PostID)

	rec = env.do(http.MethodPost, base, `{"body":"Second"}`, "u3")
	require.Equal(t, http.StatusCreated, rec.Code)

	var comments []models.Comment
	rec = env.do(http.MethodGet, base, "", "")
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&comments))
	require.Len(t, comments, 2)
	assert.Equal(t, "Second", comments[0].Body)

	rec = env.do(http.MethodDelete, "/api/comments/"+first.ID.Hex(), "", "u3")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = env.do(http.MethodDelete, "/api/comments/"+first.ID.Hex(), "", "u2")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodPost, "/api/research/64b7f0c2a1b2c3d4e5f60718/comments", `{"body":"orphan"}`, "u2")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBookmarks(t *testing.T) {
	env := newTestEnv(t, http.StatusOK, "")
	a := env.createPost(t, "u1", "Protein folding", "biology")
	b := env.createPost(t, "u1", "Dark matter", "physics")
	c := env.createPost(t, "u1", "Gene editing", "biology")

	for _, p := range []models.Post{b, a, c} {
		rec := env.do(http.MethodPost, "/api/research/"+p.ID.Hex()+"/bookmark", "", "u2")
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	rec := env.do(http.MethodPost, "/api/research/"+a.ID.Hex()+"/bookmark", "", "u2")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Research already saved", decodeError(t, rec).Error)

	rec = env.do(http.MethodGet, "/api/research/"+a.ID.Hex()+"/bookmark", "", "u2")
	assert.JSONEq(t, `{"saved":true}`, rec.Body.String())
	rec = env.do(http.MethodGet, "/api/research/"+a.ID.Hex()+"/bookmark", "", "u3")
	assert.JSONEq(t, `{"saved":false}`, rec.Body.String())

	// Deleted posts drop out of the saved list.
	require.Equal(t, http.StatusOK, env.do(http.MethodDelete, "/api/research/"+c.ID.Hex(), "", "u1").Code)

	var saved []models.Post
	rec = env.do(http.MethodGet, "/api/bookmarks", "", "u2")
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&saved))
	require.Len(t, saved, 2)
	assert.Equal(t, a.ID, saved[0].ID)
	assert.Equal(t, b.ID, saved[1].ID)

	rec = env.do(http.MethodDelete, "/api/research/"+a.ID.Hex()+"/bookmark", "", "u2")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(http.MethodDelete, "/api/research/"+a.ID.Hex()+"/bookmark", "", "u2")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Research not saved", decodeError(t, rec).Error)
}

func TestAnalyze(t *testing.T) {
	env := newTestEnv(t, http.StatusOK, "Insightful.")

	rec := env.do(http.MethodPost, "/api/analyze-research", `{"content":"short"}`, "u1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPost, "/api/analyze-research", `{"content":"A long enough research abstract."}`, "u1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"summary":"Insightful."}`, rec.Body.String())
}

func TestAnalyze_UpstreamFailure(t *testing.T) {
	env := newTestEnv(t, http.StatusBadGateway, "")

	rec := env.do(http.MethodPost, "/api/analyze-research", `{"content":"A long enough research abstract."}`, "u1")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "AI Analysis failed", body.Error)
	assert.Equal(t, "UPSTREAM", body.Code)
	assert.NotContains(t, rec.Body.String(), "overloaded")
}

func TestSummary_ArchiveAndDownload(t *testing.T) {
	env := newTestEnv(t, http.StatusOK, "# Summary\nGood work.")
	post := env.createPost(t, "u1", "Protein folding", "biology")
	path := "/api/research/" + post.ID.Hex() + "/summary"

	rec := env.do(http.MethodGet, path, "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(http.MethodPost, path, "", "u2")
	require.Equal(t, http.StatusCreated, rec.Code)
	var created map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	assert.Equal(t, "# Summary\nGood work.", created["summary"])
	assert.True(t, strings.HasPrefix(created["summary_key"], "summaries/"+post.ID.Hex()+"-"))

	// Regenerating replaces the archived object.
	rec = env.do(http.MethodPost, path, "", "u2")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Len(t, env.files.objects, 1)

	rec = env.do(http.MethodGet, path, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/markdown; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "# Summary\nGood work.", rec.Body.String())

	require.Equal(t, http.StatusOK, env.do(http.MethodDelete, "/api/research/"+post.ID.Hex(), "", "u1").Code)
	assert.Empty(t, env.files.objects)
}

func TestSummary_RecordFailureRemovesUpload(t *testing.T) {
	env := newTestEnv(t, http.StatusOK, "# Summary")
	post := env.createPost(t, "u1", "Protein folding", "biology")
	env.store.setSummaryErr = errors.New("mongo: write failed")

	rec := env.do(http.MethodPost, "/api/research/"+post.ID.Hex()+"/summary", "", "u2")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, env.files.objects)
}

func TestAsk(t *testing.T) {
	env := newTestEnv(t, http.StatusOK, "It folds.")
	post := env.createPost(t, "u1", "Protein folding", "biology")
	path := "/api/research/" + post.ID.Hex() + "/ask"

	rec := env.do(http.MethodPost, path, `{"question":"ok"}`, "u2")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Question must be 3-1000 characters long", decodeError(t, rec).Error)

	rec = env.do(http.MethodPost, path, `{"question":"What does it do?"}`, "u2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"answer":"It folds."}`, rec.Body.String())

	rec = env.do(http.MethodPost, "/api/research/64b7f0c2a1b2c3d4e5f60718/ask", `{"question":"Anyone?"}`, "u2")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
