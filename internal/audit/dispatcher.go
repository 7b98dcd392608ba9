// Package audit corre fuera del camino de respuesta todo lo que es
// "best effort": logs de requests, contador de uso del cliente y
// last_used_at de los tokens. Nunca bloquea al llamador y nunca propaga
// errores; cada fallo deja una línea de log y una métrica.
package audit

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/dropDatabas3/portero/internal/domain/repository"
	"github.com/dropDatabas3/portero/internal/metrics"
	"github.com/dropDatabas3/portero/internal/observability/logger"
)

// Sink recibe cada log de request.
type Sink interface {
	Name() string
	Write(ctx context.Context, l *repository.APIRequestLog) error
}

type Config struct {
	QueueSize int
	Workers   int
	// Timeout por tarea. Default 5s.
	Timeout time.Duration
}

type Deps struct {
	Clients repository.ClientRepository
	Tokens  repository.TokenRepository
	Sinks   []Sink
}

type task struct {
	name string
	fn   func(ctx context.Context) error
}

// Dispatcher es una cola acotada con un pool fijo de workers.
type Dispatcher struct {
	cfg  Config
	deps Deps

	queue chan task
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	dropWarn rate.Sometimes
}

func New(cfg Config, deps Deps) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	d := &Dispatcher{
		cfg:      cfg,
		deps:     deps,
		queue:    make(chan task, cfg.QueueSize),
		dropWarn: rate.Sometimes{First: 1, Interval: 10 * time.Second},
	}
	for i := 0; i < cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for t := range d.queue {
		d.run(t)
	}
}

func (d *Dispatcher) run(t task) {
	log := logger.L().With(logger.Component("audit"), logger.Op(t.name))
	defer func() {
		if r := recover(); r != nil {
			log.Error("audit task panic", logger.Any("panic", r))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.Timeout)
	defer cancel()
	if err := t.fn(ctx); err != nil {
		metrics.AuditFailures.WithLabelValues(t.name).Inc()
		log.Warn("audit task failed", logger.Err(err))
	}
}

// Submit encola fn sin bloquear. Con la cola llena (o cerrada) la tarea se
// descarta y retorna false.
func (d *Dispatcher) Submit(name string, fn func(ctx context.Context) error) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false
	}
	select {
	case d.queue <- task{name: name, fn: fn}:
		return true
	default:
		metrics.AuditDropped.Inc()
		d.dropWarn.Do(func() {
			logger.L().Warn("audit queue full, dropping tasks",
				logger.Component("audit"), logger.Int("queue_size", d.cfg.QueueSize))
		})
		return false
	}
}

// LogRequest envía el log a todos los sinks. El fallo de un sink no
// impide que los demás lo reciban.
func (d *Dispatcher) LogRequest(l repository.APIRequestLog) {
	if len(d.deps.Sinks) == 0 {
		return
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	d.Submit("request_log", func(ctx context.Context) error {
		var errs []error
		for _, s := range d.deps.Sinks {
			if err := s.Write(ctx, &l); err != nil {
				metrics.AuditFailures.WithLabelValues(s.Name()).Inc()
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}

// IncrementUsage suma un uso al cliente (id interno).
func (d *Dispatcher) IncrementUsage(clientID string, at time.Time) {
	if d.deps.Clients == nil {
		return
	}
	d.Submit("client_usage", func(ctx context.Context) error {
		return d.deps.Clients.IncrementUsage(ctx, clientID, at)
	})
}

// TouchToken actualiza last_used_at del par.
func (d *Dispatcher) TouchToken(pairID string, at time.Time) {
	if d.deps.Tokens == nil {
		return
	}
	d.Submit("token_touch", func(ctx context.Context) error {
		return d.deps.Tokens.TouchLastUsed(ctx, pairID, at)
	})
}

// Close deja de aceptar tareas y espera a que se vacíe la cola o a que
// venza ctx.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
