// Package ratelimit provides the fixed-window, per-client request limits
// applied at the API boundary.
package ratelimit

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/ayush/research-hub/internal/apperr"
	"github.com/ayush/research-hub/internal/httpx"
)

// Policy is one independent limit.
type Policy struct {
	Name    string
	Limit   int
	Window  time.Duration
	Message string
}

var (
	// General applies to every route.
	General = Policy{
		Name:    "general",
		Limit:   100,
		Window:  15 * time.Minute,
		Message: "Too many requests from this IP, please try again later.",
	}
	// Auth applies to /auth routes.
	Auth = Policy{
		Name:    "auth",
		Limit:   5,
		Window:  15 * time.Minute,
		Message: "Too many authentication attempts, please try again later.",
	}
	// AI applies to routes that call the AI service.
	AI = Policy{
		Name:    "ai",
		Limit:   10,
		Window:  15 * time.Minute,
		Message: "Too many AI requests, please try again later.",
	}
)

// CounterFactory returns a fresh counter for the named policy.
type CounterFactory func(policy string) httprate.LimitCounter

// MemoryCounters keeps counts in process memory.
func MemoryCounters() CounterFactory {
	return func(string) httprate.LimitCounter { return NewMemoryCounter() }
}

// RedisCounters keeps counts in Redis under "ratelimit:<policy>:".
func RedisCounters(rdb *redis.Client) CounterFactory {
	return func(policy string) httprate.LimitCounter {
		return NewRedisCounter(rdb, "ratelimit:"+policy+":")
	}
}

// Limiters holds one middleware per policy.
type Limiters struct {
	General func(http.Handler) http.Handler
	Auth    func(http.Handler) http.Handler
	AI      func(http.Handler) http.Handler
}

// NewLimiters builds the three standard limiters.
func NewLimiters(counters CounterFactory, logger *slog.Logger) *Limiters {
	return &Limiters{
		General: Middleware(General, counters(General.Name), logger),
		Auth:    Middleware(Auth, counters(Auth.Name), logger),
		AI:      Middleware(AI, counters(AI.Name), logger),
	}
}

// Middleware enforces p per client address. The client address is the
// request's RemoteAddr, which chi's RealIP middleware rewrites upstream only
// when proxy headers are trusted.
// Rejected requests get a 429 JSON body and never reach next.
func Middleware(p Policy, counter httprate.LimitCounter, logger *slog.Logger) func(http.Handler) http.Handler {
	return httprate.Limit(p.Limit, p.Window,
		httprate.WithKeyFuncs(httprate.Key(p.Name), httprate.KeyByIP),
		httprate.WithLimitCounter(counter),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			httpx.WriteJSON(w, http.StatusTooManyRequests, httpx.ErrorBody{
				Error: p.Message,
				Code:  apperr.CodeRateLimited,
			})
		}),
		httprate.WithErrorHandler(func(w http.ResponseWriter, _ *http.Request, err error) {
			httpx.WriteError(w, logger, oops.In("ratelimit").With("policy", p.Name).Wrap(err))
		}),
	)
}
