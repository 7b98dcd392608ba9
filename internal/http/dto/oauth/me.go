package oauth

import "time"

// MeTenant es la vista pública del tenant.
type MeTenant struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
	Plan string `json:"plan"`
}

// RateLimitView son límites por ventana.
type RateLimitView struct {
	RequestsPerMinute int64 `json:"requestsPerMinute"`
	RequestsPerHour   int64 `json:"requestsPerHour"`
	RequestsPerDay    int64 `json:"requestsPerDay"`
}

// MeResponse describe al cliente dueño del token.
type MeResponse struct {
	ClientID        string         `json:"clientId"`
	Name            string         `json:"name"`
	Description     string         `json:"description,omitempty"`
	TenantID        string         `json:"tenantId"`
	Tenant          MeTenant       `json:"tenant"`
	Scopes          []string       `json:"scopes"`
	TokenExpiry     time.Time      `json:"tokenExpiry"`
	CustomRateLimit bool           `json:"customRateLimit"`
	RateLimit       *RateLimitView `json:"rateLimit"`
	Tier            string         `json:"tier"`
}

// WindowUsage es el uso de una ventana del rate limiter.
type WindowUsage struct {
	Limit     int64     `json:"limit"`
	Used      int64     `json:"used"`
	Remaining int64     `json:"remaining"`
	ResetAt   time.Time `json:"resetAt"`
}

// RateLimitStatsResponse es la respuesta de GET /api/v1/rate-limit.
type RateLimitStatsResponse struct {
	Success bool                   `json:"success"`
	Backend string                 `json:"backend"`
	Windows map[string]WindowUsage `json:"windows"`
}
