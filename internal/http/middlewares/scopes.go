package middlewares

import (
	"net/http"
	"strings"

	"github.com/dropDatabas3/portero/internal/http/errors"
	"github.com/dropDatabas3/portero/internal/http/services/oauth"
)

// Los scopes no son secretos: el 403 devuelve los requeridos y los que el
// token tiene.

// RequireScope exige un scope. Debe usarse después de RequireAuth.
func RequireScope(scope string) Middleware {
	scope = strings.TrimSpace(scope)
	return scopeGuard(func(have []string) bool { return oauth.HasScope(have, scope) },
		func(e *errors.AppError) *errors.AppError {
			return e.WithField("required_scope", scope)
		}, scope)
}

// RequireAnyScope exige al menos uno de los scopes.
func RequireAnyScope(scopes ...string) Middleware {
	need := normalize(scopes)
	return scopeGuard(func(have []string) bool { return len(need) == 0 || oauth.HasAnyScope(have, need) },
		func(e *errors.AppError) *errors.AppError {
			return e.WithField("required_scopes", need).WithDetail("requires any of the listed scopes")
		}, strings.Join(need, " "))
}

// RequireAllScopes exige todos los scopes.
func RequireAllScopes(scopes ...string) Middleware {
	need := normalize(scopes)
	return scopeGuard(func(have []string) bool { return oauth.HasAllScopes(have, need) },
		func(e *errors.AppError) *errors.AppError {
			return e.WithField("required_scopes", need).WithDetail("requires all of the listed scopes")
		}, strings.Join(need, " "))
}

func scopeGuard(allowed func([]string) bool, decorate func(*errors.AppError) *errors.AppError, wwwScope string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac := GetAuth(r.Context())
			if ac == nil {
				errors.WriteError(w, errors.ErrUnauthorized)
				return
			}
			if !allowed(ac.Scopes) {
				available := ac.Scopes
				if available == nil {
					available = []string{}
				}
				w.Header().Set("WWW-Authenticate", `Bearer error="insufficient_scope", scope="`+wwwScope+`"`)
				markError(r.Context(), "insufficient scope")
				errors.WriteError(w, decorate(errors.ErrInsufficientScopes).WithField("available_scopes", available))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func normalize(scopes []string) []string {
	out := make([]string, 0, len(scopes))
	for _, s := range scopes {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
