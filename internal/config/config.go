package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		// dev | staging | prod
		Env      string `yaml:"env"`
		LogLevel string `yaml:"log_level"`
		Name     string `yaml:"name"`
	} `yaml:"app"`

	Server struct {
		Addr         string        `yaml:"addr"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
		MaxBodyBytes int64         `yaml:"max_body_bytes"`
	} `yaml:"server"`

	Storage struct {
		// postgres | memory
		Driver   string `yaml:"driver"`
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxConns        int32         `yaml:"max_conns"`
			MinConns        int32         `yaml:"min_conns"`
			ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Cache struct {
		// memory | redis. Decide el backend del rate limiter.
		Kind  string `yaml:"kind"`
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	JWT struct {
		Issuer   string `yaml:"issuer"`
		Audience string `yaml:"audience"`
		// HS256 | EdDSA
		Alg    string `yaml:"alg"`
		Secret string `yaml:"secret"`
		// Seed ed25519 en base64 (32 bytes). Vacío con EdDSA => clave efímera.
		EdDSASeed  string        `yaml:"eddsa_seed"`
		KeyID      string        `yaml:"kid"`
		AccessTTL  time.Duration `yaml:"access_ttl"`
		RefreshTTL time.Duration `yaml:"refresh_ttl"`
	} `yaml:"jwt"`

	OAuth struct {
		// Scopes con los que se crean los clientes si no se indican otros.
		DefaultScopes []string `yaml:"default_scopes"`
	} `yaml:"oauth"`

	Rate struct {
		Enabled   bool   `yaml:"enabled"`
		KeyPrefix string `yaml:"key_prefix"`
	} `yaml:"rate"`

	Audit struct {
		QueueSize int  `yaml:"queue_size"`
		Workers   int  `yaml:"workers"`
		Postgres  bool `yaml:"postgres"`
		AMQP      struct {
			URL        string `yaml:"url"`
			Exchange   string `yaml:"exchange"`
			RoutingKey string `yaml:"routing_key"`
		} `yaml:"amqp"`
	} `yaml:"audit"`

	Jobs struct {
		TokenPurgeInterval time.Duration `yaml:"token_purge_interval"`
	} `yaml:"jobs"`
}

// Default retorna la configuración base. Load la usa como punto de partida
// antes de decodificar el YAML, así los campos omitidos conservan su default.
func Default() *Config {
	var c Config
	c.App.Env = "dev"
	c.App.LogLevel = "info"
	c.App.Name = "portero"

	c.Server.Addr = ":8080"
	c.Server.ReadTimeout = 10 * time.Second
	c.Server.WriteTimeout = 30 * time.Second
	c.Server.MaxBodyBytes = 64 << 10

	c.Storage.Driver = "memory"
	c.Storage.Postgres.MaxConns = 10
	c.Storage.Postgres.ConnMaxLifetime = 30 * time.Minute

	c.Cache.Kind = "memory"
	c.Cache.Redis.Addr = "localhost:6379"

	c.JWT.Issuer = "parse-api"
	c.JWT.Audience = "parse-public-api"
	c.JWT.Alg = "HS256"
	c.JWT.AccessTTL = time.Hour
	c.JWT.RefreshTTL = 7 * 24 * time.Hour

	c.OAuth.DefaultScopes = []string{"read:documents", "write:documents", "read:files"}

	c.Rate.Enabled = true
	c.Rate.KeyPrefix = "ratelimit:"

	c.Audit.QueueSize = 1024
	c.Audit.Workers = 2
	c.Audit.AMQP.Exchange = "portero.audit"
	c.Audit.AMQP.RoutingKey = "api.request"

	c.Jobs.TokenPurgeInterval = time.Hour
	return &c
}

// Load lee el YAML (si path no es vacío), aplica overrides por env y valida.
func Load(path string) (*Config, error) {
	c := Default()
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	c.applyEnvOverrides()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// IsProd indica si el entorno es producción.
func (c *Config) IsProd() bool { return strings.EqualFold(c.App.Env, "prod") }

// Validate rechaza combinaciones que dejarían el servicio inseguro o roto.
func (c *Config) Validate() error {
	var errs []error

	switch strings.ToLower(c.Storage.Driver) {
	case "memory":
	case "postgres":
		if strings.TrimSpace(c.Storage.DSN) == "" {
			errs = append(errs, errors.New("storage.dsn is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q not supported", c.Storage.Driver))
	}

	switch strings.ToLower(c.Cache.Kind) {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("cache.kind %q not supported", c.Cache.Kind))
	}

	switch c.JWT.Alg {
	case "HS256":
		if c.JWT.Secret == "" && c.IsProd() {
			errs = append(errs, errors.New("jwt.secret is required in prod"))
		}
		if c.JWT.Secret != "" && len(c.JWT.Secret) < 32 {
			errs = append(errs, errors.New("jwt.secret must be at least 32 bytes"))
		}
	case "EdDSA":
		if c.JWT.EdDSASeed == "" && c.IsProd() {
			errs = append(errs, errors.New("jwt.eddsa_seed is required in prod"))
		}
	default:
		errs = append(errs, fmt.Errorf("jwt.alg %q not supported", c.JWT.Alg))
	}
	if c.JWT.AccessTTL <= 0 {
		errs = append(errs, errors.New("jwt.access_ttl must be positive"))
	}
	if c.JWT.RefreshTTL <= 0 {
		errs = append(errs, errors.New("jwt.refresh_ttl must be positive"))
	}

	if c.Audit.QueueSize <= 0 || c.Audit.Workers <= 0 {
		errs = append(errs, errors.New("audit.queue_size and audit.workers must be positive"))
	}
	if c.Jobs.TokenPurgeInterval < 0 {
		errs = append(errs, errors.New("jobs.token_purge_interval must not be negative"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
