package repository

import (
	"context"
	"time"
)

// APIRequestLog es un registro por llamada autenticada.
type APIRequestLog struct {
	ID           string    `json:"id"`
	ClientID     string    `json:"client_id"`
	TenantID     string    `json:"tenant_id"`
	Method       string    `json:"method"`
	Endpoint     string    `json:"endpoint"`
	IP           string    `json:"ip"`
	UserAgent    string    `json:"user_agent"`
	Status       int       `json:"status"`
	DurationMs   int64     `json:"duration_ms"`
	RateLimitHit bool      `json:"rate_limit_hit"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// ClientStats resume el uso de un cliente en un período.
type ClientStats struct {
	TotalRequests     int64   `json:"totalRequests"`
	SuccessRequests   int64   `json:"successRequests"`
	ErrorRequests     int64   `json:"errorRequests"`
	RateLimitedCount  int64   `json:"rateLimitedCount"`
	AvgResponseTimeMs float64 `json:"avgResponseTimeMs"`
}

// RequestLogRepository persiste y agrega logs de requests.
type RequestLogRepository interface {
	Insert(ctx context.Context, l *APIRequestLog) error

	// StatsForClient agrega los logs del cliente desde since.
	StatsForClient(ctx context.Context, clientID string, since time.Time) (*ClientStats, error)
}
