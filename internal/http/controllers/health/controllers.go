// Package health contiene los controllers de health check y el recurso
// de prueba protegido.
package health

import (
	"net/http"
	"time"

	"github.com/dropDatabas3/portero/internal/http/helpers"
	mw "github.com/dropDatabas3/portero/internal/http/middlewares"
	svc "github.com/dropDatabas3/portero/internal/http/services/health"
)

// Controllers agrupa todos los controllers del dominio health.
type Controllers struct {
	Health *HealthController
}

// NewControllers crea el agregador de controllers health.
func NewControllers(s *svc.HealthService) *Controllers {
	return &Controllers{Health: &HealthController{service: s}}
}

// HealthController maneja GET /api/v1/health y GET /api/v1/ping.
type HealthController struct {
	service *svc.HealthService
}

// Health es liveness sin autenticación; siempre 200.
func (c *HealthController) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	helpers.WriteJSON(w, http.StatusOK, c.service.Check(r.Context()))
}

// Ping es un recurso protegido de ejemplo (auth → rate → scope).
func (c *HealthController) Ping(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"success":   true,
		"message":   "pong",
		"timestamp": time.Now().UTC(),
	}
	if ac := mw.GetAuth(r.Context()); ac != nil {
		body["client_id"] = ac.Client.ClientID
		body["tenant_id"] = ac.Tenant.ID
	}
	helpers.WriteJSON(w, http.StatusOK, body)
}
