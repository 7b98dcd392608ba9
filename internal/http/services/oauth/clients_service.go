package oauth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/portero/internal/domain/repository"
	"github.com/dropDatabas3/portero/internal/observability/logger"
	"github.com/dropDatabas3/portero/internal/security/password"
	tokens "github.com/dropDatabas3/portero/internal/security/token"
	"github.com/dropDatabas3/portero/internal/validation"
)

// Revoker revoca en bloque los pares de un cliente.
type Revoker interface {
	RevokeAllForClient(ctx context.Context, clientID string) (int64, error)
}

// ClientAdminDeps contiene las dependencias de ClientAdmin.
type ClientAdminDeps struct {
	Tenants       repository.TenantRepository
	Clients       repository.ClientRepository
	Logs          repository.RequestLogRepository
	Hasher        password.Hasher
	Revoker       Revoker
	DefaultScopes []string
	Now           func() time.Time
}

// ClientAdmin gestiona el ciclo de vida de los clientes OAuth.
type ClientAdmin struct {
	deps ClientAdminDeps
}

func NewClientAdmin(deps ClientAdminDeps) *ClientAdmin {
	if deps.Hasher == nil {
		deps.Hasher = password.Bcrypt{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &ClientAdmin{deps: deps}
}

// CreateClientInput son los datos de alta.
type CreateClientInput struct {
	TenantID      string
	Name          string
	Description   string
	AllowedScopes []string // vacío => DefaultScopes
	RateOverride  *repository.RateLimits
}

// ClientWithSecret se retorna solo al crear o regenerar: es la única vez
// que el secret en claro sale del sistema.
type ClientWithSecret struct {
	Client *repository.Client
	Secret string
}

// Create da de alta un cliente activo con client_id y secret generados.
func (a *ClientAdmin) Create(ctx context.Context, in CreateClientInput) (*ClientWithSecret, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("clients.create"), logger.TenantID(in.TenantID))

	in.Name = strings.TrimSpace(in.Name)
	if in.TenantID == "" || in.Name == "" {
		return nil, fmt.Errorf("%w: tenant and name are required", ErrInvalidInput)
	}
	if err := validateOverride(in.RateOverride); err != nil {
		return nil, err
	}
	if err := validation.CheckScopes(in.AllowedScopes); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if _, err := a.deps.Tenants.GetByID(ctx, in.TenantID); err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrTenantNotFound
		}
		return nil, fmt.Errorf("%w: tenant lookup: %v", ErrBackendUnavailable, err)
	}

	scopes := in.AllowedScopes
	if len(scopes) == 0 {
		scopes = a.deps.DefaultScopes
	}

	clientID, err := tokens.NewClientID()
	if err != nil {
		return nil, err
	}
	secret, hash, err := a.newSecret()
	if err != nil {
		return nil, err
	}

	now := a.deps.Now()
	c := &repository.Client{
		ID:            uuid.NewString(),
		TenantID:      in.TenantID,
		ClientID:      clientID,
		SecretHash:    hash,
		Name:          in.Name,
		Description:   in.Description,
		AllowedScopes: append([]string(nil), scopes...),
		Active:        true,
		RateOverride:  in.RateOverride,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := a.deps.Clients.Create(ctx, c); err != nil {
		log.Error("create client failed", logger.Err(err))
		return nil, fmt.Errorf("create client: %w", err)
	}

	log.Info("client created", logger.ClientID(c.ClientID))
	c.SecretHash = ""
	return &ClientWithSecret{Client: c, Secret: secret}, nil
}

// Get busca por client_id público.
func (a *ClientAdmin) Get(ctx context.Context, clientID string) (*repository.Client, error) {
	c, err := a.deps.Clients.GetByClientID(ctx, clientID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrClientNotFound
		}
		return nil, fmt.Errorf("%w: client lookup: %v", ErrBackendUnavailable, err)
	}
	c.SecretHash = ""
	return c, nil
}

// List lista los clientes de un tenant (vacío = todos) sin hashes.
func (a *ClientAdmin) List(ctx context.Context, tenantID string) ([]repository.Client, error) {
	list, err := a.deps.Clients.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("%w: list clients: %v", ErrBackendUnavailable, err)
	}
	for i := range list {
		list[i].SecretHash = ""
	}
	return list, nil
}

// UpdateClientInput: campos nil no se tocan. ClearOverride vuelve al tier.
type UpdateClientInput struct {
	Name          *string
	Description   *string
	AllowedScopes []string
	RateOverride  *repository.RateLimits
	ClearOverride bool
}

// Update modifica metadata, scopes u override. Los pares ya emitidos
// conservan sus scopes.
func (a *ClientAdmin) Update(ctx context.Context, clientID string, in UpdateClientInput) (*repository.Client, error) {
	c, err := a.Get(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name cannot be empty", ErrInvalidInput)
		}
		c.Name = name
	}
	if in.Description != nil {
		c.Description = *in.Description
	}
	if in.AllowedScopes != nil {
		if err := validation.CheckScopes(in.AllowedScopes); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		c.AllowedScopes = append([]string(nil), in.AllowedScopes...)
	}
	switch {
	case in.ClearOverride:
		c.RateOverride = nil
	case in.RateOverride != nil:
		if err := validateOverride(in.RateOverride); err != nil {
			return nil, err
		}
		c.RateOverride = in.RateOverride
	}
	c.UpdatedAt = a.deps.Now()
	if err := a.deps.Clients.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("%w: update client: %v", ErrBackendUnavailable, err)
	}
	return c, nil
}

// SetActive activa o desactiva. Desactivar invalida de inmediato todos los
// tokens del cliente porque el validador consulta el flag.
func (a *ClientAdmin) SetActive(ctx context.Context, clientID string, active bool) error {
	c, err := a.Get(ctx, clientID)
	if err != nil {
		return err
	}
	if err := a.deps.Clients.SetActive(ctx, c.ID, active); err != nil {
		return fmt.Errorf("%w: set active: %v", ErrBackendUnavailable, err)
	}
	logger.From(ctx).Info("client active flag changed",
		logger.Layer("service"), logger.ClientID(clientID), logger.Bool("active", active))
	return nil
}

// RegenerateSecret reemplaza el secret y revoca todos los pares vivos.
//
// Revoca antes de tocar el secret: si eso falla el cliente queda como
// estaba. Después del cambio hace un segundo barrido por los pares emitidos
// con el secret viejo en el medio; si ese barrido falla retorna el secret
// nuevo junto con el error, porque el viejo ya no sirve.
func (a *ClientAdmin) RegenerateSecret(ctx context.Context, clientID string) (*ClientWithSecret, int64, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("clients.regenerate_secret"), logger.ClientID(clientID))

	c, err := a.Get(ctx, clientID)
	if err != nil {
		return nil, 0, err
	}
	secret, hash, err := a.newSecret()
	if err != nil {
		return nil, 0, err
	}

	revoked, err := a.revokeAll(ctx, c.ID)
	if err != nil {
		log.Error("revoke tokens before secret rotation failed", logger.Err(err))
		return nil, 0, err
	}
	if err := a.deps.Clients.UpdateSecret(ctx, c.ID, hash); err != nil {
		return nil, revoked, fmt.Errorf("%w: update secret: %v", ErrBackendUnavailable, err)
	}
	out := &ClientWithSecret{Client: c, Secret: secret}

	late, err := a.revokeAll(ctx, c.ID)
	revoked += late
	if err != nil {
		log.Error("revoke tokens after secret rotation failed", logger.Err(err))
		return out, revoked, err
	}
	log.Info("client secret regenerated", logger.Int64("revoked_pairs", revoked))
	return out, revoked, nil
}

func (a *ClientAdmin) revokeAll(ctx context.Context, id string) (int64, error) {
	if a.deps.Revoker == nil {
		return 0, nil
	}
	return a.deps.Revoker.RevokeAllForClient(ctx, id)
}

// Delete elimina el cliente y sus pares.
func (a *ClientAdmin) Delete(ctx context.Context, clientID string) error {
	c, err := a.Get(ctx, clientID)
	if err != nil {
		return err
	}
	if err := a.deps.Clients.Delete(ctx, c.ID); err != nil {
		if repository.IsNotFound(err) {
			return ErrClientNotFound
		}
		return fmt.Errorf("%w: delete client: %v", ErrBackendUnavailable, err)
	}
	logger.From(ctx).Info("client deleted", logger.Layer("service"), logger.ClientID(clientID))
	return nil
}

// Stats agrega los logs de requests del cliente desde since.
func (a *ClientAdmin) Stats(ctx context.Context, clientID string, since time.Time) (*repository.ClientStats, error) {
	if a.deps.Logs == nil {
		return &repository.ClientStats{}, nil
	}
	c, err := a.Get(ctx, clientID)
	if err != nil {
		return nil, err
	}
	st, err := a.deps.Logs.StatsForClient(ctx, c.ID, since)
	if err != nil {
		return nil, fmt.Errorf("%w: client stats: %v", ErrBackendUnavailable, err)
	}
	return st, nil
}

func (a *ClientAdmin) newSecret() (secret, hash string, err error) {
	secret, err = tokens.NewClientSecret()
	if err != nil {
		return "", "", err
	}
	hash, err = a.deps.Hasher.Hash(secret)
	if err != nil {
		return "", "", fmt.Errorf("hash secret: %w", err)
	}
	return secret, hash, nil
}

func validateOverride(o *repository.RateLimits) error {
	if o == nil {
		return nil
	}
	if o.PerMinute <= 0 || o.PerHour <= 0 || o.PerDay <= 0 {
		return fmt.Errorf("%w: rate override values must be positive", ErrInvalidInput)
	}
	return nil
}
