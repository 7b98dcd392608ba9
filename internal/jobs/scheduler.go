// Package jobs corre las tareas periódicas del servicio.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/dropDatabas3/portero/internal/domain/repository"
	"github.com/dropDatabas3/portero/internal/metrics"
	"github.com/dropDatabas3/portero/internal/observability/logger"
)

// TokenPurgeJob es el nombre del job que borra pares expirados.
const TokenPurgeJob = "token-purge"

type Config struct {
	// TokenPurgeInterval 0 deshabilita el purge.
	TokenPurgeInterval time.Duration
	// Timeout de cada corrida. Default 1m.
	Timeout time.Duration
}

// Scheduler envuelve un gocron.Scheduler con los jobs de portero.
type Scheduler struct {
	scheduler gocron.Scheduler
	tokens    repository.TokenRepository
	now       func() time.Time
	timeout   time.Duration
	jobs      map[string]gocron.Job
	started   bool
}

type jobSpec struct {
	name string
	def  gocron.JobDefinition
	task func(js *Scheduler) gocron.Task
}

// New registra los jobs pero no arranca el scheduler.
func New(cfg Config, tokens repository.TokenRepository) (*Scheduler, error) {
	var specs []jobSpec
	if cfg.TokenPurgeInterval > 0 {
		specs = append(specs, jobSpec{
			name: TokenPurgeJob,
			def:  gocron.DurationJob(cfg.TokenPurgeInterval),
			task: func(js *Scheduler) gocron.Task { return gocron.NewTask(js.purgeExpiredTokens) },
		})
	}
	return newScheduler(cfg, tokens, specs)
}

// newScheduler apaga el scheduler de gocron si algún job no se registra.
func newScheduler(cfg Config, tokens repository.TokenRepository, specs []jobSpec) (*Scheduler, error) {
	s, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("jobs: scheduler: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Minute
	}

	js := &Scheduler{
		scheduler: s,
		tokens:    tokens,
		now:       time.Now,
		timeout:   cfg.Timeout,
		jobs:      make(map[string]gocron.Job),
	}

	for _, spec := range specs {
		job, err := s.NewJob(
			spec.def,
			spec.task(js),
			gocron.WithName(spec.name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			if serr := s.Shutdown(); serr != nil {
				logger.L().Warn("jobs: shutdown after failed register", logger.Err(serr))
			}
			return nil, fmt.Errorf("jobs: register %s: %w", spec.name, err)
		}
		js.jobs[spec.name] = job
	}

	logger.L().Info("jobs registered", logger.Int("count", len(js.jobs)))
	return js, nil
}

func (js *Scheduler) Start() {
	js.scheduler.Start()
	js.started = true
}

// Stop espera a que terminen las corridas en curso. Sin Start previo no
// hace nada.
func (js *Scheduler) Stop() error {
	if !js.started {
		return nil
	}
	js.started = false
	return js.scheduler.Shutdown()
}

// Jobs lista los nombres registrados.
func (js *Scheduler) Jobs() []string {
	out := make([]string, 0, len(js.jobs))
	for name := range js.jobs {
		out = append(out, name)
	}
	return out
}

// purgeExpiredTokens borra los pares cuyo refresh ya venció. Un par con
// refresh vencido no puede volver a usarse por ninguna de sus dos mitades.
func (js *Scheduler) purgeExpiredTokens() (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), js.timeout)
	defer cancel()

	log := logger.L().With(logger.Component("jobs"), logger.Op(TokenPurgeJob))
	n, err := js.tokens.DeleteExpired(ctx, js.now())
	if err != nil {
		log.Warn("token purge failed", logger.Err(err))
		return 0, err
	}
	metrics.TokensPurged.Add(float64(n))
	if n > 0 {
		log.Info("expired token pairs purged", logger.Int64("deleted", n))
	}
	return n, nil
}
