package oauth

import (
	"net/http"

	"github.com/dropDatabas3/portero/internal/http/errors"
	jwtx "github.com/dropDatabas3/portero/internal/jwt"
)

// JWKSController sirve /.well-known/jwks.json cuando la firma es EdDSA.
type JWKSController struct {
	codec *jwtx.Codec
}

func NewJWKSController(codec *jwtx.Codec) *JWKSController {
	return &JWKSController{codec: codec}
}

func (c *JWKSController) JWKS(w http.ResponseWriter, _ *http.Request) {
	doc, ok := c.codec.JWKS()
	if !ok {
		errors.WriteError(w, errors.ErrNotFound.WithDetail("tokens are signed with a symmetric key"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}
