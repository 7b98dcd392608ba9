package pg

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dropDatabas3/portero/internal/domain/repository"
)

type tenantRepo struct{ db DB }

func (r *tenantRepo) GetByID(ctx context.Context, id string) (*repository.Tenant, error) {
	const q = `SELECT id, slug, name, active, plan_id, created_at FROM tenants WHERE id = $1`
	var t repository.Tenant
	err := r.db.QueryRow(ctx, q, id).Scan(&t.ID, &t.Slug, &t.Name, &t.Active, &t.PlanID, &t.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func (r *tenantRepo) Create(ctx context.Context, t *repository.Tenant) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	const q = `
		INSERT INTO tenants (id, slug, name, active, plan_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`
	err := r.db.QueryRow(ctx, q, t.ID, t.Slug, t.Name, t.Active, t.PlanID).Scan(&t.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("tenant %s: %w", t.Slug, repository.ErrConflict)
	}
	return err
}

func (r *tenantRepo) SetActive(ctx context.Context, id string, active bool) error {
	tag, err := r.db.Exec(ctx, `UPDATE tenants SET active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
