package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/smartcafe/storefront/internal/backend"
	"github.com/smartcafe/storefront/internal/domain"
	"github.com/smartcafe/storefront/internal/guard"
	"github.com/smartcafe/storefront/internal/session"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	visitorIDKey
	sessionKey
)

// RequestIDMiddleware keeps an incoming X-Request-ID or mints one, echoes it
// on the response and forwards it to backend calls.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		ctx = backend.WithRequestID(ctx, requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// VisitorMiddleware identifies the browser by an opaque cookie, issuing
// one on the first visit.
func VisitorMiddleware(cookieName string, secure bool, ttl time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			visitorID := ""
			if c, err := r.Cookie(cookieName); err == nil {
				if _, err := uuid.Parse(c.Value); err == nil {
					visitorID = c.Value
				}
			}
			if visitorID == "" {
				visitorID = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     cookieName,
					Value:    visitorID,
					Path:     "/",
					MaxAge:   int(ttl.Seconds()),
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			ctx := context.WithValue(r.Context(), visitorIDKey, visitorID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionMiddleware opens the visitor's session and hands its token to
// backend calls made while serving the request.
func SessionMiddleware(manager *session.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			store := manager.Open(r.Context(), getVisitorID(r.Context()))

			ctx := context.WithValue(r.Context(), sessionKey, store)
			if token := store.Token(); token != "" {
				ctx = backend.WithToken(ctx, token)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LoggerMiddleware logs one line per request once the response is written.
func LoggerMiddleware(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			event := log.Info()
			if status >= http.StatusInternalServerError {
				event = log.Error()
			}
			event.
				Str("request_id", getRequestID(r.Context())).
				Str("visitor", getVisitorID(r.Context())).
				Str("method", r.Method).
				Str("url", r.URL.String()).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("request completed")
		})
	}
}

// RequireRole gates a route group behind guard.Decide, evaluated on every request.
func RequireRole(role domain.Role, render *Renderer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			store := getSession(r.Context())
			if store == nil {
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}
			switch guard.Decide(role, store, time.Now()) {
			case guard.Wait:
				w.Header().Set("Retry-After", "1")
				render.Page(w, r, http.StatusServiceUnavailable, "loading", nil)
			case guard.RedirectLogin:
				setFlash(w, flashError, "Please sign in to continue")
				http.Redirect(w, r, "/login", http.StatusSeeOther)
			case guard.RedirectHome:
				setFlash(w, flashError, "You do not have access to that page")
				http.Redirect(w, r, "/", http.StatusSeeOther)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

func getRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDKey).(string); ok {
		return requestID
	}
	return ""
}

func getVisitorID(ctx context.Context) string {
	if visitorID, ok := ctx.Value(visitorIDKey).(string); ok {
		return visitorID
	}
	return ""
}

func getSession(ctx context.Context) *session.Store {
	if s, ok := ctx.Value(sessionKey).(*session.Store); ok {
		return s
	}
	return nil
}
