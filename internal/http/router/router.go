// Package router arma el árbol de rutas chi del API.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	healthctrl "github.com/dropDatabas3/portero/internal/http/controllers/health"
	oauthctrl "github.com/dropDatabas3/portero/internal/http/controllers/oauth"
	"github.com/dropDatabas3/portero/internal/http/errors"
	mw "github.com/dropDatabas3/portero/internal/http/middlewares"
)

// PingScope es el scope que exige el recurso de ejemplo /api/v1/ping.
const PingScope = "read:documents"

// Deps contiene todo lo que el router necesita. Limiter y RequestLog son
// opcionales; Metrics/MetricsHandler también.
type Deps struct {
	OAuth  *oauthctrl.Controllers
	Health *healthctrl.Controllers

	Validator  mw.TokenValidator
	Limiter    mw.RateChecker
	RequestLog mw.RequestLogger

	// Instrumentación HTTP (prometheus) y handler de /metrics.
	Metrics        mw.Middleware
	MetricsHandler http.Handler

	MaxBodyBytes int64
}

// New construye el handler raíz.
func New(d Deps) http.Handler {
	r := chi.NewRouter()

	base := []mw.Middleware{
		mw.WithRecover(),
		mw.WithRequestID(),
	}
	if d.Metrics != nil {
		base = append(base, d.Metrics)
	}
	base = append(base, mw.WithLogging())
	r.Use(mw.Group(base...)...)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		errors.WriteError(w, errors.ErrRouteNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		errors.WriteError(w, errors.ErrMethodNotAllowed)
	})

	if d.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", d.MetricsHandler)
	}
	r.Get("/.well-known/jwks.json", d.OAuth.JWKS.JWKS)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", d.Health.Health.Health)

		// Emisión: sin bearer, sin rate limit por cliente.
		r.Group(func(r chi.Router) {
			r.Use(mw.Group(mw.WithNoStore(), mw.WithMaxBody(d.MaxBodyBytes))...)
			r.Post("/auth/token", d.OAuth.Token.Token)
			r.Post("/auth/refresh", d.OAuth.Token.Refresh)
		})

		// Protegidas: request log → auth → rate.
		r.Group(func(r chi.Router) {
			r.Use(mw.Group(protected(d)...)...)

			r.With(mw.WithMaxBody(d.MaxBodyBytes)).Post("/auth/revoke", d.OAuth.Revoke.Revoke)
			r.Get("/auth/me", d.OAuth.Me.Me)
			r.Get("/rate-limit", d.OAuth.Me.RateLimitStats)
			r.With(mw.RequireScope(PingScope)).Get("/ping", d.Health.Health.Ping)
		})
	})

	return r
}

// protected es la cadena común de las rutas con bearer.
func protected(d Deps) []mw.Middleware {
	chain := []mw.Middleware{
		mw.WithRequestLog(d.RequestLog),
		mw.RequireAuth(d.Validator),
	}
	if d.Limiter != nil {
		chain = append(chain, mw.WithRateLimit(d.Limiter))
	}
	return chain
}
