package repository

import (
	"context"
	"time"
)

// RateLimits es un override de límites por ventana.
type RateLimits struct {
	PerMinute int64 `json:"minute"`
	PerHour   int64 `json:"hour"`
	PerDay    int64 `json:"day"`
}

// Client es un consumidor máquina-a-máquina de la API.
type Client struct {
	ID            string
	TenantID      string
	ClientID      string // identificador público
	SecretHash    string
	Name          string
	Description   string
	AllowedScopes []string
	Active        bool
	// RateOverride reemplaza por completo el tier del plan. nil => tier.
	RateOverride  *RateLimits
	TotalRequests int64
	LastUsedAt    *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ClientRepository define operaciones sobre clientes OAuth.
type ClientRepository interface {
	// GetByClientID busca por client_id público. ErrNotFound si no existe.
	GetByClientID(ctx context.Context, clientID string) (*Client, error)

	// GetByID busca por id interno. ErrNotFound si no existe.
	GetByID(ctx context.Context, id string) (*Client, error)

	// ListByTenant lista clientes de un tenant; tenantID vacío lista todos.
	ListByTenant(ctx context.Context, tenantID string) ([]Client, error)

	// Create inserta el cliente. ErrConflict si el client_id ya existe.
	Create(ctx context.Context, c *Client) error

	// Update persiste nombre, descripción, scopes y override.
	Update(ctx context.Context, c *Client) error

	SetActive(ctx context.Context, id string, active bool) error

	// UpdateSecret reemplaza el hash del secret.
	UpdateSecret(ctx context.Context, id, secretHash string) error

	// Delete elimina el cliente y, en cascada, sus pares de tokens.
	Delete(ctx context.Context, id string) error

	// IncrementUsage suma 1 a total_requests y actualiza last_used_at.
	IncrementUsage(ctx context.Context, id string, at time.Time) error
}
