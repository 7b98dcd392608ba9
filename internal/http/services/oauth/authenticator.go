package oauth

import (
	"context"
	"fmt"
	"time"

	"github.com/dropDatabas3/portero/internal/domain/repository"
	"github.com/dropDatabas3/portero/internal/observability/logger"
	"github.com/dropDatabas3/portero/internal/security/password"
)

// dummySecret nunca coincide con un secret generado (prefijo secret_).
const dummySecret = "portero-unknown-client"

// AuthDeps contiene las dependencias del Authenticator.
type AuthDeps struct {
	Tenants repository.TenantRepository
	Clients repository.ClientRepository
	Async   Async
	Now     func() time.Time
	// DummyHash se verifica cuando no hay hash real, así todo fallo paga el
	// mismo costo que un secret incorrecto. Vacío usa password.DummyHash.
	DummyHash string
	// Verify default password.Verify.
	Verify func(plain, encoded string) bool
}

// Authenticator valida pares client_id/client_secret.
type Authenticator struct {
	deps AuthDeps
}

func NewAuthenticator(deps AuthDeps) *Authenticator {
	if deps.Async == nil {
		deps.Async = noopAsync{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.DummyHash == "" {
		deps.DummyHash = password.DummyHash()
	}
	if deps.Verify == nil {
		deps.Verify = password.Verify
	}
	return &Authenticator{deps: deps}
}

// Authenticate retorna el cliente y su tenant. Cliente inexistente o
// inactivo, tenant inactivo y secret incorrecto retornan ErrInvalidClient
// sin distinguir, ni en el error ni en el tiempo: siempre se verifica un
// hash. Un fallo del store retorna ErrBackendUnavailable.
func (a *Authenticator) Authenticate(ctx context.Context, clientID, secret string) (*repository.Client, *repository.Tenant, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.authenticate"))

	client, tenant, reason, err := a.lookup(ctx, clientID)
	if err != nil {
		log.Error("client lookup failed", logger.Err(err))
		return nil, nil, err
	}

	hash := a.deps.DummyHash
	if reason == "" {
		hash = client.SecretHash
		log = log.With(logger.ClientID(client.ClientID), logger.TenantID(client.TenantID))
	}
	ok := a.deps.Verify(secret, hash)
	if reason == "" && !ok {
		reason = "bad_secret"
	}
	if reason != "" {
		log.Info("client authentication failed", logger.String("reason", reason))
		return nil, nil, ErrInvalidClient
	}

	a.deps.Async.IncrementUsage(client.ID, a.deps.Now())
	client.SecretHash = ""
	return client, tenant, nil
}

// lookup resuelve cliente y tenant. reason no vacío indica un rechazo; err
// solo se usa para fallos del store.
func (a *Authenticator) lookup(ctx context.Context, clientID string) (*repository.Client, *repository.Tenant, string, error) {
	if clientID == "" {
		return nil, nil, "missing_client_id", nil
	}
	client, err := a.deps.Clients.GetByClientID(ctx, clientID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, nil, "not_found", nil
		}
		return nil, nil, "", fmt.Errorf("%w: client lookup: %v", ErrBackendUnavailable, err)
	}
	if !client.Active {
		return nil, nil, "client_inactive", nil
	}
	tenant, err := a.deps.Tenants.GetByID(ctx, client.TenantID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, nil, "tenant_not_found", nil
		}
		return nil, nil, "", fmt.Errorf("%w: tenant lookup: %v", ErrBackendUnavailable, err)
	}
	if !tenant.Active {
		return nil, nil, "tenant_inactive", nil
	}
	return client, tenant, "", nil
}
