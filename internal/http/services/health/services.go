// Package health contiene el service de health check.
package health

import (
	"context"
	"time"

	dto "github.com/dropDatabas3/portero/internal/http/dto/health"
	"github.com/dropDatabas3/portero/internal/observability/logger"
)

// Check es una sonda de un componente. nil => componente deshabilitado.
type Check func(ctx context.Context) error

// Deps contiene las dependencias inyectables para el health service.
type Deps struct {
	Service string
	Version string
	// Checks por nombre de componente ("storage", "rate_backend", ...).
	Checks map[string]Check
	// Critical lista los componentes cuyo fallo marca "degraded".
	Critical []string
	Timeout  time.Duration
}

// HealthService arma el estado de los componentes.
type HealthService struct {
	deps Deps
}

func NewHealthService(deps Deps) *HealthService {
	if deps.Timeout <= 0 {
		deps.Timeout = 2 * time.Second
	}
	return &HealthService{deps: deps}
}

// Check nunca falla: reporta cada componente y un estado global.
func (s *HealthService) Check(ctx context.Context) dto.HealthResponse {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("health"))

	resp := dto.HealthResponse{
		Success:    true,
		Status:     "healthy",
		Service:    s.deps.Service,
		Version:    s.deps.Version,
		Components: make(map[string]dto.HealthStatus, len(s.deps.Checks)),
		Timestamp:  time.Now().UTC(),
	}

	critical := make(map[string]bool, len(s.deps.Critical))
	for _, c := range s.deps.Critical {
		critical[c] = true
	}

	for name, check := range s.deps.Checks {
		if check == nil {
			resp.Components[name] = dto.HealthStatus{Status: "disabled"}
			continue
		}
		cctx, cancel := context.WithTimeout(ctx, s.deps.Timeout)
		err := check(cctx)
		cancel()
		if err != nil {
			log.Warn("health component failing", logger.String("component", name), logger.Err(err))
			resp.Components[name] = dto.HealthStatus{Status: "error", Message: err.Error()}
			if critical[name] {
				resp.Status = "degraded"
			}
			continue
		}
		resp.Components[name] = dto.HealthStatus{Status: "ok"}
	}
	return resp
}
