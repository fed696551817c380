// Package middleware holds the bearer-token access control applied to
// protected routes.
package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ayush/research-hub/internal/apperr"
	"github.com/ayush/research-hub/internal/auth"
	"github.com/ayush/research-hub/internal/httpx"
)

// TokenVerifier checks a token's signature and expiry.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// Option configures RequireAuth.
type Option func(*guard)

// WithUniformStatus makes every authentication failure answer 401.
func WithUniformStatus(uniform bool) Option {
	return func(g *guard) { g.uniform = uniform }
}

// WithLogger sets the logger for revocation-store failures.
func WithLogger(logger *slog.Logger) Option {
	return func(g *guard) { g.logger = logger }
}

// WithEvents reports rejected revoked tokens.
func WithEvents(events auth.EventRecorder) Option {
	return func(g *guard) { g.events = events }
}

type guard struct {
	tokens  TokenVerifier
	revoked auth.RevocationStore
	uniform bool
	logger  *slog.Logger
	events  auth.EventRecorder
}

// RequireAuth is middleware that validates the bearer token and attaches
// its claims to the request context. Checks run in order: token missing,
// token revoked, token invalid or expired.
func RequireAuth(tokens TokenVerifier, revoked auth.RevocationStore, opts ...Option) func(http.Handler) http.Handler {
	g := &guard{tokens: tokens, revoked: revoked, logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := auth.BearerToken(r)
			if token == "" {
				g.reject(w, apperr.Unauthenticated("Access denied. No token provided."))
				return
			}

			isRevoked, err := g.revoked.IsRevoked(r.Context(), token)
			if err != nil {
				httpx.WriteError(w, g.logger, err)
				return
			}
			if isRevoked {
				if g.events != nil {
					g.events.RecordAuthEvent(auth.EventRevokedRejected)
				}
				g.reject(w, apperr.TokenRevoked())
				return
			}

			claims, err := g.tokens.Verify(token)
			if err != nil {
				g.reject(w, apperr.InvalidOrExpired())
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
		})
	}
}

func (g *guard) reject(w http.ResponseWriter, err error) {
	if !g.uniform {
		httpx.WriteError(w, g.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusUnauthorized, httpx.ErrorBody{
		Error: apperr.PublicMessage(err),
		Code:  apperr.Code(err),
	})
}

// ClaimsFromContext returns the claims of the authenticated caller.
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	return auth.ClaimsFromContext(ctx)
}

// UserIDFromContext returns the authenticated caller's user id, or "".
func UserIDFromContext(ctx context.Context) string {
	if claims, ok := auth.ClaimsFromContext(ctx); ok {
		return claims.UserID
	}
	return ""
}
