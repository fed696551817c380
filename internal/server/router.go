// Package server assembles the HTTP router.
package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ayush/research-hub/internal/auth"
	"github.com/ayush/research-hub/internal/httpx"
	"github.com/ayush/research-hub/internal/logging"
	"github.com/ayush/research-hub/internal/observability"
	"github.com/ayush/research-hub/internal/ratelimit"
	"github.com/ayush/research-hub/internal/research"
	"github.com/ayush/research-hub/internal/social"
)

// Deps are the handlers and middleware the router mounts.
type Deps struct {
	Auth     *auth.Handler
	Research *research.Handler
	Social   *social.Handler

	RequireAuth func(http.Handler) http.Handler
	Limiters    *ratelimit.Limiters
	Metrics     *observability.Metrics
	Logger      *slog.Logger
	CORSOrigins []string

	// TrustProxyHeaders keys rate limits and logs on X-Forwarded-For /
	// X-Real-IP instead of the socket address.
	TrustProxyHeaders bool
}

// NewRouter builds the API router. Rate limits run before authentication, so
// a throttled client is rejected without touching the token.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(chimw.RequestID)
	if d.TrustProxyHeaders {
		// Forwarded headers are client-controlled unless a proxy sets them.
		r.Use(chimw.RealIP)
	}
	r.Use(logging.RequestLogger(d.Logger))
	r.Use(d.Metrics.Middleware)
	r.Use(chimw.Recoverer)

	r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(d.Limiters.General)

		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Route("/auth", func(r chi.Router) {
			r.Use(d.Limiters.Auth)
			r.Post("/signup", d.Auth.Signup)
			r.Post("/login", d.Auth.Login)
			r.Post("/logout", d.Auth.Logout)
			r.With(d.RequireAuth).Get("/me", d.Auth.Me)
		})

		r.Route("/api", func(r chi.Router) {
			r.Get("/research", d.Research.List)
			r.Get("/research/search", d.Research.Search)
			r.Get("/research/{id}", d.Research.Get)
			r.Get("/research/{id}/comments", d.Research.ListComments)
			r.Get("/research/{id}/summary", d.Research.DownloadSummary)
			r.Get("/following/{userId}", d.Social.Following)
			r.Get("/followers/{userId}", d.Social.Followers)
			r.Get("/users/{id}", d.Social.Profile)

			r.Group(func(r chi.Router) {
				r.Use(d.RequireAuth)
				r.Post("/research", d.Research.Create)
				r.Delete("/research/{id}", d.Research.Delete)
				r.Post("/research/{id}/comments", d.Research.AddComment)
				r.Delete("/comments/{id}", d.Research.DeleteComment)

				r.Get("/bookmarks", d.Research.ListBookmarks)
				r.Post("/research/{id}/bookmark", d.Research.SaveBookmark)
				r.Delete("/research/{id}/bookmark", d.Research.RemoveBookmark)
				r.Get("/research/{id}/bookmark", d.Research.BookmarkStatus)

				r.Post("/follow", d.Social.Follow)
				r.Post("/follow/status", d.Social.Status)
				r.Delete("/follow/{userId}", d.Social.Unfollow)
			})

			r.Group(func(r chi.Router) {
				r.Use(d.Limiters.AI, d.RequireAuth)
				r.Post("/analyze-research", d.Research.Analyze)
				r.Post("/research/{id}/summary", d.Research.Summarize)
				r.Post("/research/{id}/ask", d.Research.Ask)
			})
		})
	})

	return r
}
