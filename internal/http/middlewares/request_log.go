package middlewares

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/dropDatabas3/portero/internal/domain/repository"
)

// RequestLogger recibe un registro por request autenticado. No debe
// bloquear. *audit.Dispatcher lo implementa.
type RequestLogger interface {
	LogRequest(l repository.APIRequestLog)
}

// WithRequestLog entrega un APIRequestLog al terminar cada request que
// llegó a autenticarse (incluidos los 429). Va por fuera de RequireAuth.
func WithRequestLog(sink RequestLogger) Middleware {
	return func(next http.Handler) http.Handler {
		if sink == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx, ri := ensureRequestInfo(r.Context())
			rec := recorder(w)

			next.ServeHTTP(rec, r.WithContext(ctx))

			if ri.clientID == "" {
				return
			}
			sink.LogRequest(repository.APIRequestLog{
				ClientID:     ri.clientID,
				TenantID:     ri.tenantID,
				Method:       r.Method,
				Endpoint:     r.URL.Path,
				IP:           clientIP(r),
				UserAgent:    r.UserAgent(),
				Status:       rec.status,
				DurationMs:   time.Since(start).Milliseconds(),
				RateLimitHit: ri.rateLimited,
				ErrorMessage: ri.errMsg,
				CreatedAt:    start.UTC(),
			})
		})
	}
}

// clientIP toma el primer salto de X-Forwarded-For o RemoteAddr.
func clientIP(r *http.Request) string {
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		first, _, _ := strings.Cut(xf, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}
