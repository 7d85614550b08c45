package httpapi

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hugo617/healthcare-admin-sub001/internal/client"
	"github.com/hugo617/healthcare-admin-sub001/internal/platform/authctx"
)

// Authenticator runs the shared verification chain over a transport-neutral request.
type Authenticator interface {
	Authenticate(ctx context.Context, req client.Request, ip string) (context.Context, *authctx.Principal, error)
}

// EchoRequestID copies the request id assigned by middleware.RequestID onto the response.
func EchoRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			w.Header().Set(middleware.RequestIDHeader, id)
		}
		next.ServeHTTP(w, r)
	})
}

// AccessLog logs one line per request with status and duration.
func AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("client_type", string(client.Detect(client.FromHTTP(r)))),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

// Authenticate requires a valid bearer token bound to an active session. On success the
// principal, client type, client IP and current tenant are stored on the request context.
func Authenticate(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, _, err := auth.Authenticate(r.Context(), client.FromHTTP(r), ClientIP(r))
			if err != nil {
				writeError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientIP returns the host part of RemoteAddr. When proxy headers are trusted,
// middleware.RealIP has already rewritten RemoteAddr from X-Forwarded-For or X-Real-IP.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// OptionalAuthenticate stores the principal when the request carries a token bound to an
// active session and otherwise passes the request through unchanged. A session whose tenant
// cannot be entered still yields its principal, without a current tenant.
func OptionalAuthenticate(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, p, err := auth.Authenticate(r.Context(), client.FromHTTP(r), ClientIP(r))
			if err != nil {
				if p == nil {
					next.ServeHTTP(w, r)
					return
				}
				ctx = authctx.WithPrincipal(ctx, p)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
