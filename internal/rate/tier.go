package rate

import (
	"strings"
	"time"
)

// Window es una ventana deslizante con nombre.
type Window struct {
	Name     string
	Duration time.Duration
}

var (
	Minute = Window{Name: "minute", Duration: time.Minute}
	Hour   = Window{Name: "hour", Duration: time.Hour}
	Day    = Window{Name: "day", Duration: 24 * time.Hour}
)

// Windows en orden de evaluación; la primera violada gobierna el rechazo.
var Windows = [3]Window{Minute, Hour, Day}

// Limits es el máximo de requests por ventana. Misma forma que
// repository.RateLimits para poder convertir directo.
type Limits struct {
	PerMinute int64
	PerHour   int64
	PerDay    int64
}

// For retorna el límite de la ventana w.
func (l Limits) For(w Window) int64 {
	switch w.Name {
	case Minute.Name:
		return l.PerMinute
	case Hour.Name:
		return l.PerHour
	default:
		return l.PerDay
	}
}

// Tier es el nivel de plan del tenant.
type Tier int

const (
	TierFree Tier = iota
	TierPro
	TierEnterprise
)

func (t Tier) String() string {
	switch t {
	case TierPro:
		return "PRO"
	case TierEnterprise:
		return "ENTERPRISE"
	default:
		return "FREE"
	}
}

// Limits es total sobre Tier: cualquier valor fuera de rango cae en FREE.
func (t Tier) Limits() Limits {
	switch t {
	case TierPro:
		return Limits{PerMinute: 60, PerHour: 1000, PerDay: 10000}
	case TierEnterprise:
		return Limits{PerMinute: 300, PerHour: 10000, PerDay: 100000}
	default:
		return Limits{PerMinute: 10, PerHour: 100, PerDay: 500}
	}
}

// TierForPlan mapea el plan del tenant a un tier. Planes desconocidos o
// vacíos son FREE.
func TierForPlan(planID string) Tier {
	switch strings.ToLower(strings.TrimSpace(planID)) {
	case "plan_pro":
		return TierPro
	case "plan_enterprise":
		return TierEnterprise
	default:
		return TierFree
	}
}

// Resolve aplica la regla de precedencia: un override del cliente
// reemplaza el tier completo, no se mezcla campo a campo.
func Resolve(planID string, override *Limits) Limits {
	if override != nil {
		return *override
	}
	return TierForPlan(planID).Limits()
}
