package rate

import (
	"context"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/errgroup"
)

// WindowState es la foto de una ventana tras evaluar (o consultar) una key.
type WindowState struct {
	Window    Window
	Limit     int64
	Count     int64
	Remaining int64
	ResetAt   time.Time
}

// Exceeded indica si la ventana superó su límite.
func (s WindowState) Exceeded() bool { return s.Count > s.Limit }

// Decision es el resultado de Check.
type Decision struct {
	Allowed bool
	// Governing es la primera ventana violada (minute→hour→day) o, si se
	// permitió, la de minuto. Sus números alimentan la respuesta 429.
	Governing  WindowState
	RetryAfter time.Duration
	Windows    [3]WindowState
}

// Minute retorna el estado de la ventana de minuto (headers X-RateLimit-*).
func (d Decision) Minute() WindowState { return d.Windows[0] }

// Limiter evalúa las tres ventanas de un (tenant, cliente) sobre un Store.
type Limiter struct {
	store  Store
	prefix string
	now    func() time.Time
}

// NewLimiter crea un limiter. prefix vacío usa "ratelimit:".
func NewLimiter(store Store, prefix string) *Limiter {
	if prefix == "" {
		prefix = "ratelimit:"
	}
	return &Limiter{store: store, prefix: prefix, now: time.Now}
}

// WithClock reemplaza el reloj (tests).
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	cp := *l
	cp.now = now
	return &cp
}

// Backend retorna el nombre del store subyacente.
func (l *Limiter) Backend() string { return l.store.Name() }

// Key arma la key de contador: {prefix}{tenant}:{client}:{window}.
func (l *Limiter) Key(tenantID, clientID string, w Window) string {
	return fmt.Sprintf("%s%s:%s:%s", l.prefix, tenantID, clientID, w.Name)
}

// Check registra el hit en las tres ventanas en paralelo y decide.
// Cualquier error del store se devuelve tal cual; la política (fail-open)
// es del llamador.
func (l *Limiter) Check(ctx context.Context, tenantID, clientID string, limits Limits) (Decision, error) {
	now := l.now()
	counts, err := l.collect(ctx, tenantID, clientID, func(ctx context.Context, key string, w Window) (int64, error) {
		return l.store.Hit(ctx, key, now, w.Duration)
	})
	if err != nil {
		return Decision{}, err
	}

	d := Decision{Allowed: true}
	for i, w := range Windows {
		d.Windows[i] = state(w, limits.For(w), counts[i], now)
	}
	d.Governing = d.Windows[0]
	for _, s := range d.Windows {
		if s.Exceeded() {
			d.Allowed = false
			d.Governing = s
			d.RetryAfter = retryAfter(s.ResetAt, now)
			break
		}
	}
	return d, nil
}

// Usage consulta el estado de las ventanas sin consumir presupuesto.
func (l *Limiter) Usage(ctx context.Context, tenantID, clientID string, limits Limits) ([3]WindowState, error) {
	now := l.now()
	counts, err := l.collect(ctx, tenantID, clientID, func(ctx context.Context, key string, w Window) (int64, error) {
		return l.store.Count(ctx, key, now, w.Duration)
	})
	var out [3]WindowState
	if err != nil {
		return out, err
	}
	for i, w := range Windows {
		out[i] = state(w, limits.For(w), counts[i], now)
	}
	return out, nil
}

func (l *Limiter) collect(ctx context.Context, tenantID, clientID string, op func(context.Context, string, Window) (int64, error)) ([3]int64, error) {
	var counts [3]int64
	g, gctx := errgroup.WithContext(ctx)
	for i, w := range Windows {
		key := l.Key(tenantID, clientID, w)
		g.Go(func() error {
			n, err := op(gctx, key, w)
			if err != nil {
				return fmt.Errorf("rate: %s window: %w", w.Name, err)
			}
			counts[i] = n
			return nil
		})
	}
	return counts, g.Wait()
}

func state(w Window, limit, count int64, now time.Time) WindowState {
	rem := limit - count
	if rem < 0 {
		rem = 0
	}
	return WindowState{
		Window:    w,
		Limit:     limit,
		Count:     count,
		Remaining: rem,
		// el log deslizante se vacía del todo, a más tardar, una ventana después
		ResetAt: now.Add(w.Duration),
	}
}

func retryAfter(reset, now time.Time) time.Duration {
	secs := math.Ceil(reset.Sub(now).Seconds())
	if secs < 1 {
		secs = 1
	}
	return time.Duration(secs) * time.Second
}
