package oauth

import (
	"net/http"

	dto "github.com/dropDatabas3/portero/internal/http/dto/oauth"
	"github.com/dropDatabas3/portero/internal/http/helpers"
	mw "github.com/dropDatabas3/portero/internal/http/middlewares"
	svc "github.com/dropDatabas3/portero/internal/http/services/oauth"
	"github.com/dropDatabas3/portero/internal/observability/logger"
)

// RevokeController maneja POST /api/v1/auth/revoke (requiere bearer).
type RevokeController struct {
	tokens *svc.TokenService
}

func NewRevokeController(tokens *svc.TokenService) *RevokeController {
	return &RevokeController{tokens: tokens}
}

// Revoke revoca un token del propio cliente. Un token inexistente, ajeno o
// ya revocado responde 400 invalid_request.
func (c *RevokeController) Revoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ac := mw.GetAuth(ctx)
	if ac == nil {
		writeOAuthError(w, http.StatusUnauthorized, "unauthorized", "Authorization header is required")
		return
	}

	params, err := helpers.BodyParams(r)
	if err != nil {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "Request body must be JSON or form-encoded")
		return
	}
	token := params["token"]
	if token == "" {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "token is required")
		return
	}

	ok, err := c.tokens.RevokeForClient(ctx, ac.Client.ID, token, params["token_type_hint"])
	if err != nil {
		logger.From(ctx).Error("revoke failed", logger.Layer("controller"), logger.Err(err))
		writeOAuthError(w, http.StatusInternalServerError, "server_error", "Internal server error")
		return
	}
	if !ok {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "Token not found or already revoked")
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.RevokeResponse{Success: true, Message: "Token revoked successfully"})
}
