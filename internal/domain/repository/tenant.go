package repository

import (
	"context"
	"time"
)

// Tenant es la organización dueña de los clientes.
type Tenant struct {
	ID        string
	Slug      string
	Name      string
	Active    bool
	PlanID    string // ej. "plan_pro"; decide el tier de rate limit
	CreatedAt time.Time
}

// TenantRepository define operaciones sobre tenants.
type TenantRepository interface {
	// GetByID retorna ErrNotFound si no existe.
	GetByID(ctx context.Context, id string) (*Tenant, error)

	// Create inserta un tenant (seed y CLI). ID vacío => se genera.
	Create(ctx context.Context, t *Tenant) error

	SetActive(ctx context.Context, id string, active bool) error
}
