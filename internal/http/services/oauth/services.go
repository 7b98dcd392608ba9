// Package oauth contiene los services del servidor client_credentials:
// autenticación de clientes, emisión, validación, refresh y revocación de
// pares de tokens, y la administración de clientes.
package oauth

import (
	"time"

	"github.com/dropDatabas3/portero/internal/domain/repository"
	jwtx "github.com/dropDatabas3/portero/internal/jwt"
	"github.com/dropDatabas3/portero/internal/security/password"
)

// Async es el lado "best effort" que corre fuera del camino de respuesta.
// *audit.Dispatcher lo implementa.
type Async interface {
	IncrementUsage(clientID string, at time.Time)
	TouchToken(pairID string, at time.Time)
}

type noopAsync struct{}

func (noopAsync) IncrementUsage(string, time.Time) {}
func (noopAsync) TouchToken(string, time.Time)     {}

// Deps contiene las dependencias para crear los services OAuth.
type Deps struct {
	Tenants repository.TenantRepository
	Clients repository.ClientRepository
	Tokens  repository.TokenRepository
	Logs    repository.RequestLogRepository // opcional; stats de cliente

	Codec  *jwtx.Codec
	Hasher password.Hasher
	Async  Async

	AccessTTL     time.Duration // default 1h
	RefreshTTL    time.Duration // default 7 días
	DefaultScopes []string      // scopes de clientes nuevos sin scopes explícitos
}

// Services agrupa todos los services del dominio OAuth.
type Services struct {
	Auth      *Authenticator
	Token     *TokenService
	Validator *Validator
	Clients   *ClientAdmin
}

// NewServices crea el agregador de services OAuth.
func NewServices(d Deps) Services {
	if d.Async == nil {
		d.Async = noopAsync{}
	}
	if d.Hasher == nil {
		d.Hasher = password.Bcrypt{}
	}
	if d.AccessTTL <= 0 {
		d.AccessTTL = time.Hour
	}
	if d.RefreshTTL <= 0 {
		d.RefreshTTL = 7 * 24 * time.Hour
	}

	validator := NewValidator(ValidatorDeps{
		Tenants: d.Tenants,
		Clients: d.Clients,
		Tokens:  d.Tokens,
		Codec:   d.Codec,
		Async:   d.Async,
	})
	token := NewTokenService(TokenDeps{
		Tokens:     d.Tokens,
		Codec:      d.Codec,
		Validator:  validator,
		AccessTTL:  d.AccessTTL,
		RefreshTTL: d.RefreshTTL,
	})
	// El hash dummy usa el mismo hasher que los secrets reales para que su
	// costo coincida.
	var dummy string
	if h, err := d.Hasher.Hash(dummySecret); err == nil {
		dummy = h
	}
	return Services{
		Auth: NewAuthenticator(AuthDeps{
			Tenants:   d.Tenants,
			Clients:   d.Clients,
			Async:     d.Async,
			Now:       d.Codec.Now,
			DummyHash: dummy,
		}),
		Token:     token,
		Validator: validator,
		Clients: NewClientAdmin(ClientAdminDeps{
			Tenants:       d.Tenants,
			Clients:       d.Clients,
			Logs:          d.Logs,
			Hasher:        d.Hasher,
			Revoker:       token,
			DefaultScopes: d.DefaultScopes,
			Now:           d.Codec.Now,
		}),
	}
}
