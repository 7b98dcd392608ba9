// Package app arma el contenedor de dependencias a partir de la config.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	rdb "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dropDatabas3/portero/internal/audit"
	"github.com/dropDatabas3/portero/internal/config"
	"github.com/dropDatabas3/portero/internal/domain/repository"
	httpx "github.com/dropDatabas3/portero/internal/http"
	healthctrl "github.com/dropDatabas3/portero/internal/http/controllers/health"
	oauthctrl "github.com/dropDatabas3/portero/internal/http/controllers/oauth"
	mw "github.com/dropDatabas3/portero/internal/http/middlewares"
	"github.com/dropDatabas3/portero/internal/http/router"
	healthsvc "github.com/dropDatabas3/portero/internal/http/services/health"
	"github.com/dropDatabas3/portero/internal/http/services/oauth"
	"github.com/dropDatabas3/portero/internal/jobs"
	jwtx "github.com/dropDatabas3/portero/internal/jwt"
	"github.com/dropDatabas3/portero/internal/observability/logger"
	"github.com/dropDatabas3/portero/internal/rate"
	"github.com/dropDatabas3/portero/internal/security/password"
	"github.com/dropDatabas3/portero/internal/store/memory"
	"github.com/dropDatabas3/portero/internal/store/pg"
)

// Repos es lo que expone cualquier backend de storage.
type Repos interface {
	Tenants() repository.TenantRepository
	Clients() repository.ClientRepository
	Tokens() repository.TokenRepository
	RequestLogs() repository.RequestLogRepository
}

// Storage es el backend abierto según storage.driver.
type Storage struct {
	Repos
	// PG es nil con el driver memory.
	PG      *pgxpool.Pool
	pgStore *pg.Store
}

// OpenStorage abre Postgres o el store en memoria.
func OpenStorage(ctx context.Context, cfg *config.Config) (*Storage, error) {
	if strings.EqualFold(cfg.Storage.Driver, "postgres") {
		st, err := pg.New(ctx, cfg.Storage.DSN, pg.PoolConfig{
			MaxConns:        cfg.Storage.Postgres.MaxConns,
			MinConns:        cfg.Storage.Postgres.MinConns,
			ConnMaxLifetime: cfg.Storage.Postgres.ConnMaxLifetime,
		})
		if err != nil {
			return nil, err
		}
		return &Storage{Repos: st, PG: st.Pool(), pgStore: st}, nil
	}
	logger.L().Warn("using in-memory storage; data is lost on restart")
	return &Storage{Repos: memory.New()}, nil
}

// Postgres retorna el store pg (migraciones). nil con memory.
func (s *Storage) Postgres() *pg.Store { return s.pgStore }

// Ping es el check de health del storage; nil con memory.
func (s *Storage) Ping() healthsvc.Check {
	if s.pgStore == nil {
		return nil
	}
	return s.pgStore.Ping
}

func (s *Storage) Close() {
	if s.pgStore != nil {
		s.pgStore.Close()
	}
}

// NewCodec construye el codec según jwt.alg. EdDSA sin seed genera una
// clave efímera (Validate ya lo prohíbe en prod).
func NewCodec(cfg *config.Config) (*jwtx.Codec, error) {
	switch cfg.JWT.Alg {
	case "EdDSA":
		var (
			ks  *jwtx.KeySet
			err error
		)
		if cfg.JWT.EdDSASeed != "" {
			ks, err = jwtx.NewEd25519FromSeed(cfg.JWT.EdDSASeed, cfg.JWT.KeyID)
		} else {
			logger.L().Warn("jwt.eddsa_seed empty; using an ephemeral signing key")
			ks, err = jwtx.NewDevEd25519(cfg.JWT.KeyID)
		}
		if err != nil {
			return nil, err
		}
		return jwtx.NewEdDSA(ks, cfg.JWT.Issuer, cfg.JWT.Audience), nil
	default:
		secret := cfg.JWT.Secret
		if secret == "" {
			logger.L().Warn("jwt.secret empty; using an insecure development secret")
			secret = "portero-dev-secret-change-me-0123456789"
		}
		return jwtx.NewHS256([]byte(secret), cfg.JWT.Issuer, cfg.JWT.Audience)
	}
}

// NewServices arma los servicios OAuth sobre el storage.
func NewServices(cfg *config.Config, st *Storage, codec *jwtx.Codec, async oauth.Async) oauth.Services {
	return oauth.NewServices(oauth.Deps{
		Tenants:       st.Tenants(),
		Clients:       st.Clients(),
		Tokens:        st.Tokens(),
		Logs:          st.RequestLogs(),
		Codec:         codec,
		Hasher:        password.Bcrypt{},
		Async:         async,
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		DefaultScopes: cfg.OAuth.DefaultScopes,
	})
}

// App es el proceso servidor completo.
type App struct {
	Config   *config.Config
	Storage  *Storage
	Codec    *jwtx.Codec
	Services oauth.Services
	// Limiter es nil con rate.enabled=false.
	Limiter *rate.Limiter
	Audit   *audit.Dispatcher
	Jobs    *jobs.Scheduler
	Handler http.Handler

	redis *rdb.Client
	amqp  *audit.AMQPConn
}

// New construye el App. Ante error libera lo que alcanzó a abrir.
func New(ctx context.Context, cfg *config.Config, version string) (*App, error) {
	a := &App{Config: cfg}
	if err := a.build(ctx, version); err != nil {
		_ = a.Close(context.Background())
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context, version string) (err error) {
	cfg := a.Config
	log := logger.L().With(logger.Component("app"))

	if a.Storage, err = OpenStorage(ctx, cfg); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if a.Codec, err = NewCodec(cfg); err != nil {
		return fmt.Errorf("jwt: %w", err)
	}

	sinks := []audit.Sink{audit.LogSink{}}
	if cfg.Audit.Postgres && a.Storage.PG != nil {
		sinks = append(sinks, audit.RepoSink{Repo: a.Storage.RequestLogs()})
	}
	if cfg.Audit.AMQP.URL != "" {
		conn, derr := audit.DialAMQP(cfg.Audit.AMQP.URL, cfg.Audit.AMQP.Exchange)
		if derr != nil {
			// El audit es best-effort: sin broker seguimos con los demás sinks.
			log.Warn("amqp audit sink disabled", logger.Err(derr))
		} else {
			a.amqp = conn
			sinks = append(sinks, &audit.AMQPSink{
				Pub:        conn.Channel,
				Exchange:   cfg.Audit.AMQP.Exchange,
				RoutingKey: cfg.Audit.AMQP.RoutingKey,
			})
		}
	}
	a.Audit = audit.New(audit.Config{
		QueueSize: cfg.Audit.QueueSize,
		Workers:   cfg.Audit.Workers,
	}, audit.Deps{
		Clients: a.Storage.Clients(),
		Tokens:  a.Storage.Tokens(),
		Sinks:   sinks,
	})

	a.Services = NewServices(cfg, a.Storage, a.Codec, a.Audit)

	var rateCheck healthsvc.Check
	if cfg.Rate.Enabled {
		store := a.rateStore(ctx, log)
		if a.redis != nil {
			rateCheck = func(ctx context.Context) error { return a.redis.Ping(ctx).Err() }
		}
		a.Limiter = rate.NewLimiter(store, cfg.Rate.KeyPrefix)
		log.Info("rate limiter ready", zap.String("backend", a.Limiter.Backend()))
	}

	metricsHandler, err := httpx.RegisterMetrics(httpx.MetricsConfig{Pool: func() *pgxpool.Pool { return a.Storage.PG }})
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	health := healthsvc.NewHealthService(healthsvc.Deps{
		Service:  cfg.App.Name,
		Version:  version,
		Checks:   map[string]healthsvc.Check{"storage": a.Storage.Ping(), "rate_backend": rateCheck},
		Critical: []string{"storage"},
	})

	deps := router.Deps{
		Health:         healthctrl.NewControllers(health),
		Validator:      a.Services.Validator,
		RequestLog:     a.Audit,
		Metrics:        httpx.WithMetrics,
		MetricsHandler: metricsHandler,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
	}
	// Un *rate.Limiter nil dentro de la interfaz no es nil: solo se asigna
	// cuando existe.
	var usage oauthctrl.RateUsage
	if a.Limiter != nil {
		usage = a.Limiter
		deps.Limiter = a.Limiter
	}
	deps.OAuth = oauthctrl.NewControllers(a.Services, usage, a.Codec)
	a.Handler = router.New(deps)

	a.Jobs, err = jobs.New(jobs.Config{TokenPurgeInterval: cfg.Jobs.TokenPurgeInterval}, a.Storage.Tokens())
	return err
}

// rateStore elige Redis si responde; si no, la ventana en memoria local.
func (a *App) rateStore(ctx context.Context, log *zap.Logger) rate.Store {
	if !strings.EqualFold(a.Config.Cache.Kind, "redis") {
		return rate.NewMemoryStore()
	}
	client := rdb.NewClient(&rdb.Options{
		Addr:     a.Config.Cache.Redis.Addr,
		Password: a.Config.Cache.Redis.Password,
		DB:       a.Config.Cache.Redis.DB,
	})
	pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		log.Warn("redis unavailable; rate limiting falls back to local memory", logger.Err(err))
		_ = client.Close()
		return rate.NewMemoryStore()
	}
	a.redis = client
	return rate.NewRedisStore(client)
}

// Run sirve HTTP y los jobs hasta que ctx se cancele.
func (a *App) Run(ctx context.Context) error {
	a.Jobs.Start()
	srv := httpx.NewServer(httpx.ServerConfig{
		Addr:         a.Config.Server.Addr,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
	}, a.Handler)
	return httpx.Start(ctx, srv, 0)
}

// Close libera recursos en orden inverso: jobs, audit (drena la cola),
// brokers y por último el storage que usan los workers.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Jobs != nil {
		errs = append(errs, a.Jobs.Stop())
	}
	if a.Audit != nil {
		errs = append(errs, a.Audit.Close(ctx))
	}
	if a.amqp != nil {
		errs = append(errs, a.amqp.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.Storage != nil {
		a.Storage.Close()
	}
	return errors.Join(errs...)
}

var _ mw.RequestLogger = (*audit.Dispatcher)(nil)
