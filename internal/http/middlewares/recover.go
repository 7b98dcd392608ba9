package middlewares

import (
	"net/http"

	"github.com/dropDatabas3/portero/internal/http/errors"
	"github.com/dropDatabas3/portero/internal/observability/logger"
)

// WithRecover captura panics y responde 500 server_error.
func WithRecover() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.From(r.Context()).Error("panic recovered",
						logger.Op("recover"),
						logger.Any("panic", rec),
					)
					markError(r.Context(), "panic")
					errors.WriteError(w, errors.ErrInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
