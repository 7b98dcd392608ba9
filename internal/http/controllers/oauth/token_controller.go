// Package oauth contiene los controllers de los endpoints de token y de
// los recursos del cliente autenticado.
package oauth

import (
	"context"
	"errors"
	"net/http"

	"github.com/dropDatabas3/portero/internal/http/helpers"
	svc "github.com/dropDatabas3/portero/internal/http/services/oauth"
	"github.com/dropDatabas3/portero/internal/observability/logger"
)

// TokenController maneja POST /api/v1/auth/token y /api/v1/auth/refresh.
type TokenController struct {
	auth   *svc.Authenticator
	tokens *svc.TokenService
}

func NewTokenController(auth *svc.Authenticator, tokens *svc.TokenService) *TokenController {
	return &TokenController{auth: auth, tokens: tokens}
}

// Token acepta JSON o form. grant_type=client_credentials emite un par;
// grant_type=refresh_token se acepta también aquí como en RFC 6749 §6.
func (c *TokenController) Token(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("oauth.token"))

	params, err := helpers.BodyParams(r)
	if err != nil {
		log.Debug("unreadable token request", logger.Err(err))
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "Request body must be JSON or form-encoded")
		return
	}

	switch params["grant_type"] {
	case svc.GrantClientCredentials:
		c.clientCredentials(ctx, w, r, params)
	case svc.GrantRefreshToken:
		c.refresh(ctx, w, params)
	default:
		writeOAuthError(w, http.StatusBadRequest, "unsupported_grant_type", "Only client_credentials grant type is supported")
	}
}

// Refresh maneja el endpoint dedicado de refresh; solo acepta
// grant_type=refresh_token.
func (c *TokenController) Refresh(w http.ResponseWriter, r *http.Request) {
	params, err := helpers.BodyParams(r)
	if err != nil {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "Request body must be JSON or form-encoded")
		return
	}
	if params["grant_type"] != svc.GrantRefreshToken {
		writeOAuthError(w, http.StatusBadRequest, "unsupported_grant_type", "Only refresh_token grant type is supported for this endpoint")
		return
	}
	c.refresh(r.Context(), w, params)
}

func (c *TokenController) clientCredentials(ctx context.Context, w http.ResponseWriter, r *http.Request, params map[string]string) {
	clientID, secret := params["client_id"], params["client_secret"]
	// client_secret_basic (RFC 6749 §2.3.1) si el body no trae credenciales
	if clientID == "" && secret == "" {
		if u, p, ok := r.BasicAuth(); ok {
			clientID, secret = u, p
		}
	}
	if clientID == "" || secret == "" {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "client_id and client_secret are required")
		return
	}

	client, _, err := c.auth.Authenticate(ctx, clientID, secret)
	if err != nil {
		c.handleServiceError(ctx, w, err)
		return
	}
	resp, err := c.tokens.Issue(ctx, client, svc.ParseScopes(params["scope"]))
	if err != nil {
		c.handleServiceError(ctx, w, err)
		return
	}
	writeTokenResponse(w, resp)
}

func (c *TokenController) refresh(ctx context.Context, w http.ResponseWriter, params map[string]string) {
	rt := params["refresh_token"]
	if rt == "" {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "refresh_token is required")
		return
	}
	resp, err := c.tokens.Refresh(ctx, rt)
	if err != nil {
		c.handleServiceError(ctx, w, err)
		return
	}
	writeTokenResponse(w, resp)
}

func (c *TokenController) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, svc.ErrInvalidClient):
		writeOAuthError(w, http.StatusUnauthorized, "invalid_client", "Client authentication failed")
	case errors.Is(err, svc.ErrInvalidGrant):
		writeOAuthError(w, http.StatusUnauthorized, "invalid_grant", "Invalid or expired refresh token")
	case errors.Is(err, svc.ErrInvalidRequest):
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "Missing or invalid parameters")
	default:
		logger.From(ctx).Error("token endpoint error", logger.Layer("controller"), logger.Err(err))
		writeOAuthError(w, http.StatusInternalServerError, "server_error", "Internal server error")
	}
}
