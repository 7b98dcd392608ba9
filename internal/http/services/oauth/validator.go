package oauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/dropDatabas3/portero/internal/domain/repository"
	jwtx "github.com/dropDatabas3/portero/internal/jwt"
	"github.com/dropDatabas3/portero/internal/metrics"
	"github.com/dropDatabas3/portero/internal/observability/logger"
	tokens "github.com/dropDatabas3/portero/internal/security/token"
)

// AuthContext es lo que queda en el contexto del request tras validar un
// bearer token.
type AuthContext struct {
	Scopes []string
	Client *repository.Client
	Tenant *repository.Tenant
	Claims *jwtx.Claims
	Pair   *repository.TokenPair
}

// ValidatorDeps contiene las dependencias del Validator.
type ValidatorDeps struct {
	Tenants repository.TenantRepository
	Clients repository.ClientRepository
	Tokens  repository.TokenRepository
	Codec   *jwtx.Codec
	Async   Async
}

// Validator verifica tokens contra la firma y contra el store. La consulta
// al store es obligatoria: es lo único que permite revocar un JWT.
type Validator struct {
	deps ValidatorDeps
}

func NewValidator(deps ValidatorDeps) *Validator {
	if deps.Async == nil {
		deps.Async = noopAsync{}
	}
	return &Validator{deps: deps}
}

// Validate verifica raw como token de tipo kind. Pasos, cada uno con su
// error: firma/iss/aud/exp, tipo, par en el store, revocado, vencimiento
// persistido, cliente y tenant activos.
func (v *Validator) Validate(ctx context.Context, raw string, kind jwtx.Kind) (*AuthContext, error) {
	ac, err := v.validate(ctx, raw, kind)
	metrics.TokenValidations.WithLabelValues(validationResult(err)).Inc()
	return ac, err
}

func (v *Validator) validate(ctx context.Context, raw string, kind jwtx.Kind) (*AuthContext, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.validate"), logger.String("kind", string(kind)))

	claims, err := v.deps.Codec.Parse(raw)
	if err != nil {
		if errors.Is(err, jwtx.ErrExpired) {
			return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
	if claims.Type != kind {
		log.Debug("token type mismatch", logger.String("type", string(claims.Type)))
		return nil, fmt.Errorf("%w: expected %s token", ErrTokenInvalid, kind)
	}

	hash := tokens.SHA256Base64URL(raw)
	var pair *repository.TokenPair
	if kind == jwtx.KindRefresh {
		pair, err = v.deps.Tokens.GetByRefreshHash(ctx, hash)
	} else {
		pair, err = v.deps.Tokens.GetByAccessHash(ctx, hash)
	}
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrTokenInvalid
		}
		log.Error("token lookup failed", logger.Err(err))
		return nil, fmt.Errorf("%w: token lookup: %v", ErrBackendUnavailable, err)
	}
	log = log.With(logger.TokenID(pair.ID))

	if pair.ClientID != claims.ClientID {
		log.Warn("token claims do not match stored pair")
		return nil, ErrTokenInvalid
	}
	if pair.Revoked {
		return nil, ErrTokenRevoked
	}

	now := v.deps.Codec.Now()
	expiresAt := pair.AccessExpiresAt
	if kind == jwtx.KindRefresh {
		expiresAt = pair.RefreshExpiresAt
	}
	if now.After(expiresAt) {
		return nil, ErrTokenExpired
	}

	client, err := v.deps.Clients.GetByID(ctx, pair.ClientID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrClientInactive
		}
		log.Error("client lookup failed", logger.Err(err))
		return nil, fmt.Errorf("%w: client lookup: %v", ErrBackendUnavailable, err)
	}
	if !client.Active {
		return nil, ErrClientInactive
	}
	tenant, err := v.deps.Tenants.GetByID(ctx, client.TenantID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrClientInactive
		}
		log.Error("tenant lookup failed", logger.Err(err))
		return nil, fmt.Errorf("%w: tenant lookup: %v", ErrBackendUnavailable, err)
	}
	if !tenant.Active {
		return nil, ErrClientInactive
	}

	if kind == jwtx.KindAccess {
		v.deps.Async.TouchToken(pair.ID, now)
	}
	client.SecretHash = ""

	return &AuthContext{
		Scopes: pair.Scopes,
		Client: client,
		Tenant: tenant,
		Claims: claims,
		Pair:   pair,
	}, nil
}

func validationResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTokenMalformed):
		return "malformed"
	case errors.Is(err, ErrTokenExpired):
		return "expired"
	case errors.Is(err, ErrTokenRevoked):
		return "revoked"
	case errors.Is(err, ErrClientInactive):
		return "inactive"
	case errors.Is(err, ErrBackendUnavailable):
		return "backend"
	default:
		return "invalid"
	}
}
