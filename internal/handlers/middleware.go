package handlers

import (
	"context"
	"net/http"
	"time"

	"cvquest/internal/logger"
	"cvquest/internal/security"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const ClientContextKey ContextKey = "client"

// Middleware holds dependencies for middleware functions
type Middleware struct {
	limiter *security.RateLimiter
	csrf    *security.CSRFGenerator
	log     *logger.Logger
	now     func() time.Time
}

func NewMiddleware(limiter *security.RateLimiter, csrf *security.CSRFGenerator, log *logger.Logger) *Middleware {
	return &Middleware{limiter: limiter, csrf: csrf, log: log, now: time.Now}
}

// Client makes sure the browser carries a client cookie and puts its id in
// the request context. The id selects the origin storage of the browser.
func (m *Middleware) Client(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var clientID string
		if cookie, err := r.Cookie(security.ClientCookieName); err == nil && security.ValidClientID(cookie.Value) {
			clientID = cookie.Value
		} else {
			clientID = security.GenerateClientID()
			m.log.Debug("New client", "client_id", clientID)
		}
		// refreshed on every visit so active students keep their storage
		http.SetCookie(w, security.CreateClientCookie(r, clientID, m.now().Add(security.ClientCookieTTL)))

		ctx := context.WithValue(r.Context(), ClientContextKey, clientID)
		next(w, r.WithContext(ctx))
	}
}

// CSRFProtect rejects state-changing requests without the client's token,
// read from the X-CSRF-Token header or the csrf_token form field.
func (m *Middleware) CSRFProtect(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get(CSRFHeaderName)
		if token == "" {
			token = r.FormValue(CSRFFormField)
		}
		clientID := ClientIDFromContext(r.Context())
		if !m.csrf.ValidateToken(clientID, token) {
			m.log.Warn("CSRF token rejected", "path", r.URL.Path, "client_id", clientID)
			http.Error(w, ErrForbidden, http.StatusForbidden)
			return
		}
		next(w, r)
	}
}

// RateLimit limits requests per client IP
func (m *Middleware) RateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := security.GetClientIP(r)
		if !m.limiter.Allow(ip) {
			m.log.Warn("Rate limit exceeded", "ip", ip, "path", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, ErrTooManyRequests, http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}

// CSRFToken returns the token a page should send back on POST
func (m *Middleware) CSRFToken(r *http.Request) string {
	token, err := m.csrf.GenerateToken(ClientIDFromContext(r.Context()))
	if err != nil {
		return ""
	}
	return token
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Logging logs every request with its status and duration
func Logging(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			log.Info("HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration", time.Since(start),
			)
		})
	}
}

// ClientIDFromContext retrieves the client id set by Middleware.Client
func ClientIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ClientContextKey).(string)
	return id
}
