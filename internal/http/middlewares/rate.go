package middlewares

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/dropDatabas3/portero/internal/http/services/oauth"
	"github.com/dropDatabas3/portero/internal/metrics"
	"github.com/dropDatabas3/portero/internal/observability/logger"
	"github.com/dropDatabas3/portero/internal/rate"
)

// RateChecker decide si un (tenant, cliente) tiene presupuesto.
// *rate.Limiter lo implementa.
type RateChecker interface {
	Check(ctx context.Context, tenantID, clientID string, limits rate.Limits) (rate.Decision, error)
	Backend() string
}

// ClientLimits resuelve los límites efectivos: override del cliente o tier
// del plan del tenant.
func ClientLimits(ac *oauth.AuthContext) rate.Limits {
	return rate.Resolve(ac.Tenant.PlanID, (*rate.Limits)(ac.Client.RateOverride))
}

// rateLimitBody es el cuerpo del 429.
type rateLimitBody struct {
	Success    bool   `json:"success"`
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int64  `json:"retryAfter"`
	ResetAt    string `json:"resetAt"`
}

// WithRateLimit aplica el límite por ventanas al cliente autenticado. Va
// siempre después de RequireAuth: un token inválido nunca consume
// presupuesto. Si el backend falla el request sigue (fail-open).
func WithRateLimit(l RateChecker) Middleware {
	return func(next http.Handler) http.Handler {
		if l == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac := GetAuth(r.Context())
			if ac == nil {
				next.ServeHTTP(w, r)
				return
			}
			log := logger.From(r.Context())

			d, err := l.Check(r.Context(), ac.Tenant.ID, ac.Client.ID, ClientLimits(ac))
			if err != nil {
				metrics.RateBackendErrors.WithLabelValues(l.Backend()).Inc()
				log.Warn("rate limit backend error, allowing request",
					logger.Component("rate"), logger.String("backend", l.Backend()), logger.Err(err))
				next.ServeHTTP(w, r)
				return
			}

			m := d.Minute()
			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.FormatInt(m.Limit, 10))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(m.Remaining, 10))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(ceilUnix(m.ResetAt), 10))

			if d.Allowed {
				metrics.RateDecisions.WithLabelValues(d.Governing.Window.Name, "allowed").Inc()
				next.ServeHTTP(w, r)
				return
			}

			g := d.Governing
			metrics.RateDecisions.WithLabelValues(g.Window.Name, "limited").Inc()
			markRateLimited(r.Context())
			retry := int64(d.RetryAfter / time.Second)
			log.Info("rate limit exceeded",
				logger.Window(g.Window.Name),
				logger.Int64("limit", g.Limit),
				logger.Int64("count", g.Count),
			)

			h.Set("Retry-After", strconv.FormatInt(retry, 10))
			h.Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(rateLimitBody{
				Success:    false,
				Error:      "rate_limit_exceeded",
				Message:    fmt.Sprintf("Rate limit of %d requests per %s exceeded", g.Limit, g.Window.Name),
				RetryAfter: retry,
				ResetAt:    g.ResetAt.UTC().Format(time.RFC3339),
			})
		})
	}
}

func ceilUnix(t time.Time) int64 {
	s := t.Unix()
	if t.Nanosecond() > 0 {
		s++
	}
	return s
}
