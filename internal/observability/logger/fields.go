package logger

import (
	"time"

	"go.uber.org/zap"
)

// =================================================================================
// HTTP
// =================================================================================

func RequestID(v string) zap.Field { return zap.String("request_id", v) }
func Method(v string) zap.Field { return zap.String("method", v) }
func Path(v string) zap.Field { return zap.String("path", v) }
func Status(v int) zap.Field { return zap.Int("status", v) }
func DurationMs(v int64) zap.Field { return zap.Int64("duration_ms", v) }
func Bytes(v int) zap.Field { return zap.Int("bytes", v) }
func ClientIP(v string) zap.Field { return zap.String("client_ip", v) }
func UserAgent(v string) zap.Field { return zap.String("user_agent", v) }
func Duration(v time.Duration) zap.Field { return zap.Duration("duration", v) }

// =================================================================================
// DOMINIO
// =================================================================================

// TenantID identifica el tenant dueño del cliente.
func TenantID(v string) zap.Field { return zap.String("tenant_id", v) }

// ClientID es el client_id público (nunca el secret).
func ClientID(v string) zap.Field { return zap.String("client_id", v) }

// TokenID es el id del par persistido o el jti; nunca el valor del token.
func TokenID(v string) zap.Field { return zap.String("token_id", v) }

func GrantType(v string) zap.Field { return zap.String("grant_type", v) }
func Scopes(v []string) zap.Field { return zap.Strings("scopes", v) }
func Window(v string) zap.Field { return zap.String("window", v) }
func Tier(v string) zap.Field { return zap.String("tier", v) }

// =================================================================================
// ESTRUCTURA
// =================================================================================

func Component(v string) zap.Field { return zap.String("component", v) }
func Layer(v string) zap.Field { return zap.String("layer", v) }
func Op(v string) zap.Field { return zap.String("op", v) }

// Err agrega el error bajo la key "error". nil no agrega nada útil.
func Err(err error) zap.Field { return zap.Error(err) }

func String(k, v string) zap.Field { return zap.String(k, v) }
func Int(k string, v int) zap.Field { return zap.Int(k, v) }
func Int64(k string, v int64) zap.Field { return zap.Int64(k, v) }
func Bool(k string, v bool) zap.Field { return zap.Bool(k, v) }
func Any(k string, v any) zap.Field { return zap.Any(k, v) }
