package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Kind es el valor del claim "type".
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

var (
	// ErrMalformed cubre firma inválida, iss/aud incorrectos y tokens ilegibles.
	ErrMalformed = errors.New("jwt: malformed or unverifiable token")
	// ErrExpired indica exp vencido (con firma válida).
	ErrExpired = errors.New("jwt: token expired")
)

// Claims del par emitido. Scopes solo viaja en el access token.
type Claims struct {
	ClientID string   `json:"cid"`
	TenantID string   `json:"tid"`
	Scopes   []string `json:"scopes,omitempty"`
	Type     Kind     `json:"type"`
	jwtv5.RegisteredClaims
}

// Codec firma y verifica tokens con un único algoritmo configurado.
type Codec struct {
	Issuer   string
	Audience string

	method    jwtv5.SigningMethod
	signKey   any
	verifyKey any
	keys      *KeySet

	now func() time.Time
}

// NewHS256 crea un codec simétrico.
func NewHS256(secret []byte, issuer, audience string) (*Codec, error) {
	if len(secret) == 0 {
		return nil, errors.New("jwt: empty HS256 secret")
	}
	return &Codec{
		Issuer:    issuer,
		Audience:  audience,
		method:    jwtv5.SigningMethodHS256,
		signKey:   secret,
		verifyKey: secret,
		now:       time.Now,
	}, nil
}

// NewEdDSA crea un codec asimétrico; habilita JWKS.
func NewEdDSA(ks *KeySet, issuer, audience string) *Codec {
	return &Codec{
		Issuer:    issuer,
		Audience:  audience,
		method:    jwtv5.SigningMethodEdDSA,
		signKey:   ks.Priv,
		verifyKey: ed25519.PublicKey(ks.Pub),
		keys:      ks,
		now:       time.Now,
	}
}

// WithClock reemplaza el reloj (tests).
func (c *Codec) WithClock(now func() time.Time) *Codec {
	cp := *c
	cp.now = now
	return &cp
}

// Now es el reloj del codec; los servicios lo comparten para que iat/exp
// y los vencimientos persistidos coincidan.
func (c *Codec) Now() time.Time { return c.now() }

// Alg retorna el nombre del algoritmo ("HS256" | "EdDSA").
func (c *Codec) Alg() string { return c.method.Alg() }

// Sign completa iss/aud/iat/exp/jti y firma. Retorna el token y su exp.
func (c *Codec) Sign(claims Claims, issuedAt time.Time, ttl time.Duration) (string, time.Time, error) {
	exp := issuedAt.Add(ttl)
	claims.Issuer = c.Issuer
	claims.Audience = jwtv5.ClaimStrings{c.Audience}
	claims.IssuedAt = jwtv5.NewNumericDate(issuedAt)
	claims.ExpiresAt = jwtv5.NewNumericDate(exp)
	claims.ID = uuid.NewString()

	tk := jwtv5.NewWithClaims(c.method, &claims)
	tk.Header["typ"] = "JWT"
	if c.keys != nil {
		tk.Header["kid"] = c.keys.KID
	}
	signed, err := tk.SignedString(c.signKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("jwt: sign: %w", err)
	}
	return signed, exp, nil
}

// Parse verifica firma, iss, aud y exp. No consulta el store.
func (c *Codec) Parse(raw string) (*Claims, error) {
	var claims Claims
	p := jwtv5.NewParser(
		jwtv5.WithValidMethods([]string{c.method.Alg()}),
		jwtv5.WithIssuer(c.Issuer),
		jwtv5.WithAudience(c.Audience),
		jwtv5.WithExpirationRequired(),
		jwtv5.WithIssuedAt(),
		jwtv5.WithTimeFunc(c.now),
	)
	_, err := p.ParseWithClaims(raw, &claims, func(*jwtv5.Token) (any, error) {
		return c.verifyKey, nil
	})
	switch {
	case err == nil:
		return &claims, nil
	case errors.Is(err, jwtv5.ErrTokenExpired):
		return nil, fmt.Errorf("%w: %v", ErrExpired, err)
	default:
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}

// JWKS retorna el documento JWKS; false si el codec es simétrico.
func (c *Codec) JWKS() ([]byte, bool) {
	if c.keys == nil {
		return nil, false
	}
	return c.keys.JWKSJSON(), true
}
