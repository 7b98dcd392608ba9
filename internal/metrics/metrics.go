// Package metrics define las métricas de dominio. Vive aparte para que rate,
// oauth y audit puedan instrumentarse sin importar el paquete http.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// RateDecisions cuenta decisiones por ventana gobernante y resultado (allowed|limited).
	RateDecisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "portero_rate_decisions_total",
		Help: "Decisiones del rate limiter",
	}, []string{"window", "result"})

	// RateBackendErrors cuenta fallos del backend de ventanas (fail-open).
	RateBackendErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "portero_rate_backend_errors_total",
		Help: "Errores del backend de rate limit; el request se dejó pasar",
	}, []string{"backend"})

	TokensIssued = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "portero_tokens_issued_total",
		Help: "Pares de tokens emitidos por grant",
	}, []string{"grant"})

	// TokenValidations cuenta validaciones por resultado (ok|malformed|expired|invalid|revoked|inactive|backend).
	TokenValidations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "portero_token_validations_total",
		Help: "Validaciones de bearer tokens por resultado",
	}, []string{"result"})

	TokensRevoked = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "portero_tokens_revoked_total",
		Help: "Pares revocados explícitamente",
	})

	TokensPurged = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "portero_tokens_purged_total",
		Help: "Pares expirados borrados por el job de limpieza",
	})

	AuditDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "portero_audit_dropped_total",
		Help: "Eventos de auditoría descartados por cola llena",
	})

	AuditFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "portero_audit_failures_total",
		Help: "Fallos de sinks de auditoría",
	}, []string{"sink"})
)

// Register registra las métricas de dominio (default registry si reg es nil).
// Registrar dos veces no es error.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{
		RateDecisions, RateBackendErrors, TokensIssued, TokenValidations,
		TokensRevoked, TokensPurged, AuditDropped, AuditFailures,
	} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return err
			}
		}
	}
	return nil
}
