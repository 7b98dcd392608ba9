package repository

import (
	"context"
	"time"
)

// TokenPair es el par access+refresh emitido en una sola operación.
// Inmutable salvo Revoked/RevokedAt/LastUsedAt.
type TokenPair struct {
	ID               string
	ClientID         string // Client.ID (interno)
	AccessTokenHash  string
	RefreshTokenHash string
	TokenType        string
	Scopes           []string
	IssuedAt         time.Time
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	Revoked          bool
	RevokedAt        *time.Time
	LastUsedAt       *time.Time
}

// TokenRepository define operaciones sobre pares de tokens.
type TokenRepository interface {
	// Create persiste el par. ErrConflict si algún hash ya existe.
	Create(ctx context.Context, p *TokenPair) error

	// GetByAccessHash y GetByRefreshHash retornan el par aunque esté
	// revocado; la decisión es del llamador. ErrNotFound si no existe.
	GetByAccessHash(ctx context.Context, hash string) (*TokenPair, error)
	GetByRefreshHash(ctx context.Context, hash string) (*TokenPair, error)

	// RevokeByID marca el par revocado. Retorna false si no había un
	// par vivo con ese id (inexistente o ya revocado).
	RevokeByID(ctx context.Context, id string, at time.Time) (bool, error)

	// RevokeAllByClient revoca todos los pares vivos del cliente.
	RevokeAllByClient(ctx context.Context, clientID string, at time.Time) (int64, error)

	TouchLastUsed(ctx context.Context, id string, at time.Time) error

	// DeleteExpired borra pares cuyo refresh expiró antes de cutoff.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}
