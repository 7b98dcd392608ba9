package oauth

import (
	svc "github.com/dropDatabas3/portero/internal/http/services/oauth"
	jwtx "github.com/dropDatabas3/portero/internal/jwt"
)

// Controllers agrupa los controllers del dominio OAuth.
type Controllers struct {
	Token  *TokenController
	Revoke *RevokeController
	Me     *MeController
	JWKS   *JWKSController
}

// NewControllers crea el agregador. usage puede ser nil si el rate
// limiting está deshabilitado.
func NewControllers(s svc.Services, usage RateUsage, codec *jwtx.Codec) *Controllers {
	return &Controllers{
		Token:  NewTokenController(s.Auth, s.Token),
		Revoke: NewRevokeController(s.Token),
		Me:     NewMeController(usage),
		JWKS:   NewJWKSController(codec),
	}
}
