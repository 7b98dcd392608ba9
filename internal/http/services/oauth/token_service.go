package oauth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/portero/internal/domain/repository"
	jwtx "github.com/dropDatabas3/portero/internal/jwt"
	"github.com/dropDatabas3/portero/internal/metrics"
	"github.com/dropDatabas3/portero/internal/observability/logger"
	tokens "github.com/dropDatabas3/portero/internal/security/token"
)

// Grant types soportados.
const (
	GrantClientCredentials = "client_credentials"
	GrantRefreshToken      = "refresh_token"
)

// TokenResponse es el sobre OAuth2 del token endpoint.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
}

// TokenDeps contiene las dependencias del TokenService.
type TokenDeps struct {
	Tokens     repository.TokenRepository
	Codec      *jwtx.Codec
	Validator  *Validator
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// TokenService emite, rota y revoca pares de tokens.
type TokenService struct {
	deps TokenDeps
}

func NewTokenService(deps TokenDeps) *TokenService {
	if deps.AccessTTL <= 0 {
		deps.AccessTTL = time.Hour
	}
	if deps.RefreshTTL <= 0 {
		deps.RefreshTTL = 7 * 24 * time.Hour
	}
	return &TokenService{deps: deps}
}

// Issue emite un par para un cliente ya autenticado. Los scopes otorgados
// son requested ∩ allowed, o allowed completo si la intersección es vacía.
func (s *TokenService) Issue(ctx context.Context, client *repository.Client, requested []string) (*TokenResponse, error) {
	granted := GrantScopes(requested, client.AllowedScopes)
	return s.issuePair(ctx, client, granted, GrantClientCredentials)
}

// Refresh consume un refresh token: lo valida, revoca su par y emite uno
// nuevo con exactamente los mismos scopes. Un refresh token consumido no
// vuelve a servir.
func (s *TokenService) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.token.refresh"))

	if refreshToken == "" {
		return nil, ErrInvalidRequest
	}
	ac, err := s.deps.Validator.Validate(ctx, refreshToken, jwtx.KindRefresh)
	if err != nil {
		if IsTokenRejection(err) {
			log.Info("refresh rejected", logger.Err(err))
			return nil, fmt.Errorf("%w: %w", ErrInvalidGrant, err)
		}
		return nil, err
	}

	now := s.deps.Codec.Now()
	revoked, err := s.deps.Tokens.RevokeByID(ctx, ac.Pair.ID, now)
	if err != nil {
		log.Error("revoke consumed pair failed", logger.TokenID(ac.Pair.ID), logger.Err(err))
		return nil, fmt.Errorf("%w: revoke consumed pair: %v", ErrBackendUnavailable, err)
	}
	if !revoked {
		// otro refresh concurrente lo consumió primero
		return nil, fmt.Errorf("%w: %w", ErrInvalidGrant, ErrTokenRevoked)
	}

	return s.issuePair(ctx, ac.Client, ac.Pair.Scopes, GrantRefreshToken)
}

func (s *TokenService) issuePair(ctx context.Context, client *repository.Client, scopes []string, grant string) (*TokenResponse, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Op("oauth.token.issue"),
		logger.GrantType(grant),
		logger.ClientID(client.ClientID),
		logger.TenantID(client.TenantID),
	)

	now := s.deps.Codec.Now()
	access, accessExp, err := s.deps.Codec.Sign(jwtx.Claims{
		ClientID: client.ID,
		TenantID: client.TenantID,
		Scopes:   scopes,
		Type:     jwtx.KindAccess,
	}, now, s.deps.AccessTTL)
	if err != nil {
		log.Error("sign access token failed", logger.Err(err))
		return nil, fmt.Errorf("%w: %v", ErrServerError, err)
	}
	refresh, refreshExp, err := s.deps.Codec.Sign(jwtx.Claims{
		ClientID: client.ID,
		TenantID: client.TenantID,
		Type:     jwtx.KindRefresh,
	}, now, s.deps.RefreshTTL)
	if err != nil {
		log.Error("sign refresh token failed", logger.Err(err))
		return nil, fmt.Errorf("%w: %v", ErrServerError, err)
	}

	pair := &repository.TokenPair{
		ID:               uuid.NewString(),
		ClientID:         client.ID,
		AccessTokenHash:  tokens.SHA256Base64URL(access),
		RefreshTokenHash: tokens.SHA256Base64URL(refresh),
		TokenType:        "Bearer",
		Scopes:           scopes,
		IssuedAt:         now,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}
	if err := s.deps.Tokens.Create(ctx, pair); err != nil {
		log.Error("persist token pair failed", logger.Err(err))
		return nil, fmt.Errorf("%w: persist token pair: %v", ErrBackendUnavailable, err)
	}

	metrics.TokensIssued.WithLabelValues(grant).Inc()
	log.Info("token pair issued", logger.TokenID(pair.ID), logger.Scopes(scopes))

	return &TokenResponse{
		AccessToken:  access,
		TokenType:    "Bearer",
		ExpiresIn:    expiresIn(s.deps.AccessTTL),
		RefreshToken: refresh,
		Scope:        strings.Join(scopes, " "),
	}, nil
}

// Revoke revoca el par que contenga token, ya sea como access o como
// refresh. hint ("access_token" | "refresh_token") solo cambia el orden de
// búsqueda. Retorna false, nil si no había un par vivo con ese token.
// No hay cascada: el par entero queda revocado, nada más.
func (s *TokenService) Revoke(ctx context.Context, token, hint string) (bool, error) {
	return s.revoke(ctx, "", token, hint)
}

// RevokeForClient es Revoke restringido a pares del cliente owner (id
// interno). Un token ajeno se reporta como no encontrado.
func (s *TokenService) RevokeForClient(ctx context.Context, owner, token, hint string) (bool, error) {
	return s.revoke(ctx, owner, token, hint)
}

func (s *TokenService) revoke(ctx context.Context, owner, token, hint string) (bool, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.revoke"))

	if token == "" {
		return false, ErrInvalidRequest
	}
	hash := tokens.SHA256Base64URL(token)
	lookups := []func(context.Context, string) (*repository.TokenPair, error){
		s.deps.Tokens.GetByAccessHash,
		s.deps.Tokens.GetByRefreshHash,
	}
	if hint == "refresh_token" {
		lookups[0], lookups[1] = lookups[1], lookups[0]
	}

	for _, lookup := range lookups {
		pair, err := lookup(ctx, hash)
		if err != nil {
			if repository.IsNotFound(err) {
				continue
			}
			log.Error("token lookup failed", logger.Err(err))
			return false, fmt.Errorf("%w: token lookup: %v", ErrBackendUnavailable, err)
		}
		if pair.Revoked || (owner != "" && pair.ClientID != owner) {
			continue
		}
		ok, err := s.deps.Tokens.RevokeByID(ctx, pair.ID, s.deps.Codec.Now())
		if err != nil {
			log.Error("revoke failed", logger.TokenID(pair.ID), logger.Err(err))
			return false, fmt.Errorf("%w: revoke: %v", ErrBackendUnavailable, err)
		}
		if ok {
			metrics.TokensRevoked.Inc()
			log.Info("token pair revoked", logger.TokenID(pair.ID))
			return true, nil
		}
	}
	return false, nil
}

// RevokeAllForClient revoca todos los pares vivos del cliente (id interno).
func (s *TokenService) RevokeAllForClient(ctx context.Context, clientID string) (int64, error) {
	n, err := s.deps.Tokens.RevokeAllByClient(ctx, clientID, s.deps.Codec.Now())
	if err != nil {
		return 0, fmt.Errorf("%w: revoke all: %v", ErrBackendUnavailable, err)
	}
	metrics.TokensRevoked.Add(float64(n))
	return n, nil
}

// expiresIn redondea hacia arriba a segundos.
func expiresIn(d time.Duration) int64 {
	s := int64(d / time.Second)
	if d%time.Second != 0 {
		s++
	}
	return s
}
