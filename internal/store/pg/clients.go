package pg

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dropDatabas3/portero/internal/domain/repository"
)

type clientRepo struct{ db DB }

const clientColumns = `id, tenant_id, client_id, client_secret_hash, name, description,
	allowed_scopes, active, rate_limit_override, total_requests, last_used_at, created_at, updated_at`

func scanClient(row pgx.Row) (*repository.Client, error) {
	var c repository.Client
	var override []byte
	err := row.Scan(&c.ID, &c.TenantID, &c.ClientID, &c.SecretHash, &c.Name, &c.Description,
		&c.AllowedScopes, &c.Active, &override, &c.TotalRequests, &c.LastUsedAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(override) > 0 && string(override) != "null" {
		var rl repository.RateLimits
		if err := json.Unmarshal(override, &rl); err != nil {
			return nil, fmt.Errorf("client %s: rate_limit_override: %w", c.ClientID, err)
		}
		c.RateOverride = &rl
	}
	return &c, nil
}

func encodeOverride(rl *repository.RateLimits) ([]byte, error) {
	if rl == nil {
		return nil, nil
	}
	return json.Marshal(rl)
}

func (r *clientRepo) GetByClientID(ctx context.Context, clientID string) (*repository.Client, error) {
	c, err := scanClient(r.db.QueryRow(ctx, `SELECT `+clientColumns+` FROM oauth_clients WHERE client_id = $1`, clientID))
	return c, notFound(err)
}

func (r *clientRepo) GetByID(ctx context.Context, id string) (*repository.Client, error) {
	c, err := scanClient(r.db.QueryRow(ctx, `SELECT `+clientColumns+` FROM oauth_clients WHERE id = $1`, id))
	return c, notFound(err)
}

func (r *clientRepo) ListByTenant(ctx context.Context, tenantID string) ([]repository.Client, error) {
	q := `SELECT ` + clientColumns + ` FROM oauth_clients`
	var args []any
	if tenantID != "" {
		q += ` WHERE tenant_id = $1`
		args = append(args, tenantID)
	}
	q += ` ORDER BY created_at`

	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []repository.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (r *clientRepo) Create(ctx context.Context, c *repository.Client) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	override, err := encodeOverride(c.RateOverride)
	if err != nil {
		return err
	}
	const q = `
		INSERT INTO oauth_clients (id, tenant_id, client_id, client_secret_hash, name, description,
			allowed_scopes, active, rate_limit_override)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`
	err = r.db.QueryRow(ctx, q, c.ID, c.TenantID, c.ClientID, c.SecretHash, c.Name, c.Description,
		c.AllowedScopes, c.Active, override).Scan(&c.CreatedAt, &c.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("client %s: %w", c.ClientID, repository.ErrConflict)
	}
	return err
}

func (r *clientRepo) Update(ctx context.Context, c *repository.Client) error {
	override, err := encodeOverride(c.RateOverride)
	if err != nil {
		return err
	}
	const q = `
		UPDATE oauth_clients
		SET name = $2, description = $3, allowed_scopes = $4, rate_limit_override = $5, updated_at = NOW()
		WHERE id = $1`
	tag, err := r.db.Exec(ctx, q, c.ID, c.Name, c.Description, c.AllowedScopes, override)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *clientRepo) SetActive(ctx context.Context, id string, active bool) error {
	return r.execOne(ctx, `UPDATE oauth_clients SET active = $2, updated_at = NOW() WHERE id = $1`, id, active)
}

func (r *clientRepo) UpdateSecret(ctx context.Context, id, secretHash string) error {
	return r.execOne(ctx, `UPDATE oauth_clients SET client_secret_hash = $2, updated_at = NOW() WHERE id = $1`, id, secretHash)
}

// Delete: oauth_token_pairs tiene ON DELETE CASCADE.
func (r *clientRepo) Delete(ctx context.Context, id string) error {
	return r.execOne(ctx, `DELETE FROM oauth_clients WHERE id = $1`, id)
}

func (r *clientRepo) IncrementUsage(ctx context.Context, id string, at time.Time) error {
	return r.execOne(ctx, `UPDATE oauth_clients SET total_requests = total_requests + 1, last_used_at = $2 WHERE id = $1`, id, at)
}

func (r *clientRepo) execOne(ctx context.Context, q string, args ...any) error {
	tag, err := r.db.Exec(ctx, q, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
