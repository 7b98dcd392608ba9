package pg

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dropDatabas3/portero/internal/domain/repository"
)

type tokenRepo struct{ db DB }

const pairColumns = `id, client_id, access_token_hash, refresh_token_hash, token_type, scopes,
	issued_at, access_expires_at, refresh_expires_at, revoked, revoked_at, last_used_at`

func scanPair(row pgx.Row) (*repository.TokenPair, error) {
	var p repository.TokenPair
	err := row.Scan(&p.ID, &p.ClientID, &p.AccessTokenHash, &p.RefreshTokenHash, &p.TokenType, &p.Scopes,
		&p.IssuedAt, &p.AccessExpiresAt, &p.RefreshExpiresAt, &p.Revoked, &p.RevokedAt, &p.LastUsedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (r *tokenRepo) Create(ctx context.Context, p *repository.TokenPair) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	const q = `
		INSERT INTO oauth_token_pairs (id, client_id, access_token_hash, refresh_token_hash, token_type,
			scopes, issued_at, access_expires_at, refresh_expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.db.Exec(ctx, q, p.ID, p.ClientID, p.AccessTokenHash, p.RefreshTokenHash, p.TokenType,
		p.Scopes, p.IssuedAt, p.AccessExpiresAt, p.RefreshExpiresAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("token pair: %w", repository.ErrConflict)
	}
	return err
}

func (r *tokenRepo) GetByAccessHash(ctx context.Context, hash string) (*repository.TokenPair, error) {
	return scanPair(r.db.QueryRow(ctx, `SELECT `+pairColumns+` FROM oauth_token_pairs WHERE access_token_hash = $1`, hash))
}

func (r *tokenRepo) GetByRefreshHash(ctx context.Context, hash string) (*repository.TokenPair, error) {
	return scanPair(r.db.QueryRow(ctx, `SELECT `+pairColumns+` FROM oauth_token_pairs WHERE refresh_token_hash = $1`, hash))
}

func (r *tokenRepo) RevokeByID(ctx context.Context, id string, at time.Time) (bool, error) {
	const q = `UPDATE oauth_token_pairs SET revoked = TRUE, revoked_at = $2 WHERE id = $1 AND NOT revoked`
	tag, err := r.db.Exec(ctx, q, id, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *tokenRepo) RevokeAllByClient(ctx context.Context, clientID string, at time.Time) (int64, error) {
	const q = `UPDATE oauth_token_pairs SET revoked = TRUE, revoked_at = $2 WHERE client_id = $1 AND NOT revoked`
	tag, err := r.db.Exec(ctx, q, clientID, at)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *tokenRepo) TouchLastUsed(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.Exec(ctx, `UPDATE oauth_token_pairs SET last_used_at = $2 WHERE id = $1`, id, at)
	return err
}

func (r *tokenRepo) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM oauth_token_pairs WHERE refresh_expires_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
