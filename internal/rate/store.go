package rate

import (
	"context"
	"time"
)

// Store guarda el log de timestamps por key.
//
// Hit registra now, descarta lo que quedó fuera de (now-window, now] y
// devuelve cuántos quedan, todo como una operación atómica por key.
// Count hace lo mismo sin registrar (consultas de uso).
type Store interface {
	Hit(ctx context.Context, key string, now time.Time, window time.Duration) (int64, error)
	Count(ctx context.Context, key string, now time.Time, window time.Duration) (int64, error)
	Name() string
}
