package server

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/omrelabs/omre/internal/shared"
)

type contextKey string

const userIDKey contextKey = "user_id"

// UserID returns the authenticated user id stored by [Authed].
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// statusRecorder captures the status code written by the wrapped
// handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// RequestLogger logs one line per request with method, path, status,
// and duration.
func RequestLogger(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(recorder, r)

			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", recorder.status,
				"duration", time.Since(start))
		})
	}
}

// CORS allows cross-origin requests from any origin. The dashboard is
// consumed by mobile webviews on opaque origins.
func CORS() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit throttles each client address to rps requests per second
// with the given burst. Limiters for idle clients are dropped after an
// hour.
func RateLimit(rps float64, burst int) Middleware {
	type client struct {
		limiter  *rate.Limiter
		lastSeen time.Time
	}

	var (
		mu      sync.Mutex
		clients = make(map[string]*client)
	)

	lookup := func(addr string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()

		c, ok := clients[addr]
		if !ok {
			c = &client{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
			clients[addr] = c

			for key, other := range clients {
				if time.Since(other.lastSeen) > time.Hour {
					delete(clients, key)
				}
			}
		}
		c.lastSeen = time.Now()
		return c.limiter
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			addr := r.RemoteAddr
			if host, _, err := net.SplitHostPort(addr); err == nil {
				addr = host
			}

			if !lookup(addr).Allow() {
				http.Error(w, "Too many requests", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// authedHandler guards a Handler with bearer-token authentication.
type authedHandler struct {
	next   Handler
	secret string
}

// Authed wraps a handler so every route requires a valid bearer token.
// The user id from the token is placed in the request context.
func Authed(secret string, next Handler) Handler {
	return &authedHandler{next: next, secret: secret}
}

func (h *authedHandler) Routes() []string { return h.next.Routes() }

func (h *authedHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	header := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		writeError(w, shared.ErrNotAuthenticated)
		return
	}

	userID, err := shared.ParseToken(h.secret, token)
	if err != nil {
		writeError(w, err)
		return
	}

	ctx := context.WithValue(r.Context(), userIDKey, userID)
	h.next.ServeHTTP(w, r.WithContext(ctx))
}
