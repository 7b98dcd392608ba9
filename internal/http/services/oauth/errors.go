package oauth

import "errors"

// Autenticación de cliente. Todas las causas (no existe, inactivo, tenant
// inactivo, secret incorrecto) colapsan en ErrInvalidClient.
var (
	ErrInvalidClient = errors.New("invalid_client")
	// ErrBackendUnavailable envuelve fallos del store. Nunca autentica.
	ErrBackendUnavailable = errors.New("backend unavailable")
)

// Validación de tokens. Externamente todos son invalid_token; internamente
// se distinguen para diagnóstico y métricas.
var (
	ErrTokenMalformed = errors.New("token malformed")
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenInvalid   = errors.New("token invalid")
	ErrTokenRevoked   = errors.New("token revoked")
	ErrClientInactive = errors.New("client or tenant inactive")
)

// Errores del token endpoint (RFC 6749 §5.2).
var (
	ErrInvalidRequest       = errors.New("invalid_request")
	ErrUnsupportedGrantType = errors.New("unsupported_grant_type")
	ErrInvalidGrant         = errors.New("invalid_grant")
	ErrServerError          = errors.New("server_error")
)

// Administración de clientes.
var (
	ErrClientNotFound = errors.New("client not found")
	ErrTenantNotFound = errors.New("tenant not found")
	ErrInvalidInput   = errors.New("invalid input")
)

// IsTokenRejection indica si err es uno de los rechazos de validación
// (no un fallo de backend).
func IsTokenRejection(err error) bool {
	return errors.Is(err, ErrTokenMalformed) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrTokenInvalid) ||
		errors.Is(err, ErrTokenRevoked) ||
		errors.Is(err, ErrClientInactive)
}
