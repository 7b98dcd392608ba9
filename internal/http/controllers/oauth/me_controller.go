package oauth

import (
	"context"
	"net/http"

	dto "github.com/dropDatabas3/portero/internal/http/dto/oauth"
	"github.com/dropDatabas3/portero/internal/http/errors"
	"github.com/dropDatabas3/portero/internal/http/helpers"
	mw "github.com/dropDatabas3/portero/internal/http/middlewares"
	"github.com/dropDatabas3/portero/internal/observability/logger"
	"github.com/dropDatabas3/portero/internal/rate"
)

// RateUsage consulta el uso sin consumir presupuesto. *rate.Limiter lo
// implementa.
type RateUsage interface {
	Usage(ctx context.Context, tenantID, clientID string, limits rate.Limits) ([3]rate.WindowState, error)
	Backend() string
}

// MeController expone la identidad y el uso del cliente autenticado.
type MeController struct {
	usage RateUsage
}

func NewMeController(usage RateUsage) *MeController {
	return &MeController{usage: usage}
}

// Me maneja GET /api/v1/auth/me.
func (c *MeController) Me(w http.ResponseWriter, r *http.Request) {
	ac := mw.GetAuth(r.Context())
	if ac == nil {
		errors.WriteError(w, errors.ErrUnauthorized)
		return
	}

	resp := dto.MeResponse{
		ClientID:    ac.Client.ClientID,
		Name:        ac.Client.Name,
		Description: ac.Client.Description,
		TenantID:    ac.Tenant.ID,
		Tenant: dto.MeTenant{
			Name: ac.Tenant.Name,
			Slug: ac.Tenant.Slug,
			Plan: ac.Tenant.PlanID,
		},
		Scopes:          ac.Scopes,
		TokenExpiry:     ac.Pair.AccessExpiresAt.UTC(),
		CustomRateLimit: ac.Client.RateOverride != nil,
		Tier:            rate.TierForPlan(ac.Tenant.PlanID).String(),
	}
	if o := ac.Client.RateOverride; o != nil {
		resp.RateLimit = &dto.RateLimitView{
			RequestsPerMinute: o.PerMinute,
			RequestsPerHour:   o.PerHour,
			RequestsPerDay:    o.PerDay,
		}
	}
	if resp.Scopes == nil {
		resp.Scopes = []string{}
	}
	helpers.WriteJSON(w, http.StatusOK, resp)
}

// RateLimitStats maneja GET /api/v1/rate-limit. Leer el uso no cuenta
// como hit.
func (c *MeController) RateLimitStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ac := mw.GetAuth(ctx)
	if ac == nil {
		errors.WriteError(w, errors.ErrUnauthorized)
		return
	}
	if c.usage == nil {
		errors.WriteError(w, errors.ErrServiceUnavailable.WithDetail("rate limiting disabled"))
		return
	}

	states, err := c.usage.Usage(ctx, ac.Tenant.ID, ac.Client.ID, mw.ClientLimits(ac))
	if err != nil {
		logger.From(ctx).Warn("rate usage lookup failed", logger.Layer("controller"), logger.Err(err))
		errors.WriteError(w, errors.ErrServiceUnavailable.WithCause(err))
		return
	}

	resp := dto.RateLimitStatsResponse{
		Success: true,
		Backend: c.usage.Backend(),
		Windows: make(map[string]dto.WindowUsage, len(states)),
	}
	for _, s := range states {
		resp.Windows[s.Window.Name] = dto.WindowUsage{
			Limit:     s.Limit,
			Used:      s.Count,
			Remaining: s.Remaining,
			ResetAt:   s.ResetAt.UTC(),
		}
	}
	helpers.WriteJSON(w, http.StatusOK, resp)
}
