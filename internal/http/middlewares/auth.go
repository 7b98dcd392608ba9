package middlewares

import (
	"context"
	"net/http"
	"strings"

	"github.com/dropDatabas3/portero/internal/http/errors"
	"github.com/dropDatabas3/portero/internal/http/services/oauth"
	jwtx "github.com/dropDatabas3/portero/internal/jwt"
	"github.com/dropDatabas3/portero/internal/observability/logger"
)

// TokenValidator valida un bearer token. *oauth.Validator lo implementa.
type TokenValidator interface {
	Validate(ctx context.Context, raw string, kind jwtx.Kind) (*oauth.AuthContext, error)
}

// BearerToken extrae el token de "Authorization: Bearer <token>".
// ok=false con header presente significa formato inválido.
func BearerToken(r *http.Request) (token string, present, ok bool) {
	ah := strings.TrimSpace(r.Header.Get("Authorization"))
	if ah == "" {
		return "", false, false
	}
	parts := strings.Fields(ah)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", true, false
	}
	return parts[1], true, true
}

// RequireAuth exige un access token válido y deja el AuthContext en el
// contexto. Contrato: sin header → 401 unauthorized; formato inválido →
// 401 invalid_request; token rechazado → 401 invalid_token. Un fallo del
// store responde 500 y nunca deja pasar el request.
func RequireAuth(v TokenValidator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, present, ok := BearerToken(r)
			if !present {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
				markError(r.Context(), "missing authorization")
				errors.WriteError(w, errors.ErrUnauthorized)
				return
			}
			if !ok {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_request"`)
				markError(r.Context(), "malformed authorization")
				errors.WriteError(w, errors.ErrMalformedAuthorization)
				return
			}

			ac, err := v.Validate(r.Context(), raw, jwtx.KindAccess)
			if err != nil {
				log := logger.From(r.Context())
				if oauth.IsTokenRejection(err) {
					// la causa exacta queda en el log, afuera todo es invalid_token
					log.Info("bearer token rejected", logger.Err(err))
					w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token"`)
					markError(r.Context(), "invalid token")
					errors.WriteError(w, errors.ErrTokenInvalid)
					return
				}
				log.Error("bearer validation failed", logger.Err(err))
				markError(r.Context(), "token validation backend error")
				errors.WriteError(w, errors.ErrInternalServerError)
				return
			}

			ctx := WithAuth(r.Context(), ac)
			markAuthenticated(ctx, ac)
			ctx = logger.ToContext(ctx, logger.From(ctx).With(
				logger.ClientID(ac.Client.ClientID),
				logger.TenantID(ac.Tenant.ID),
			))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
