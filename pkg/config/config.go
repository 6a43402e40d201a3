package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "PURCHASE_CONFIGURATOR"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv           = "PURCHASE_CONFIGURATOR_APP_ENV"
	EnvPort             = "PURCHASE_CONFIGURATOR_APP_PORT"
	EnvLogLevel         = "PURCHASE_CONFIGURATOR_LOG_LEVEL"
	EnvLogFormat        = "PURCHASE_CONFIGURATOR_LOG_FORMAT"
	EnvBackendURL       = "PURCHASE_CONFIGURATOR_BACKEND_URL"
	EnvBackendDatabase  = "PURCHASE_CONFIGURATOR_BACKEND_DATABASE"
	EnvBackendAPIKey    = "PURCHASE_CONFIGURATOR_BACKEND_API_KEY"
	EnvBackendTimeout   = "PURCHASE_CONFIGURATOR_BACKEND_TIMEOUT"
	EnvRedisEnabled     = "PURCHASE_CONFIGURATOR_REDIS_ENABLED"
	EnvRedisURL         = "PURCHASE_CONFIGURATOR_REDIS_URL"
	EnvRedisAddr        = "PURCHASE_CONFIGURATOR_REDIS_ADDR"
	EnvLockTTL          = "PURCHASE_CONFIGURATOR_LOCK_TTL"
	EnvMatrixEnabled    = "PURCHASE_CONFIGURATOR_MATRIX_ENABLED"
	EnvSessionIdleTTL   = "PURCHASE_CONFIGURATOR_SESSION_IDLE_TTL"
	EnvCORSAllowOrigins = "PURCHASE_CONFIGURATOR_CORS_ALLOWED_ORIGINS"
)

type Config struct {
	App          AppConfig
	Backend      BackendConfig
	Redis        RedisConfig
	Configurator ConfiguratorConfig
	CORS         CORSConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Backend.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Redis.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Configurator.validate(cfg.Redis.Enabled); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"PURCHASE_CONFIGURATOR_APP_ENV" required:"true"`
	Port         string `envconfig:"PURCHASE_CONFIGURATOR_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"PURCHASE_CONFIGURATOR_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"PURCHASE_CONFIGURATOR_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"PURCHASE_CONFIGURATOR_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// BackendConfig points at the ERP server that owns products, templates and pricelists.
type BackendConfig struct {
	BaseURL  string        `envconfig:"PURCHASE_CONFIGURATOR_BACKEND_URL" required:"true"`
	Database string        `envconfig:"PURCHASE_CONFIGURATOR_BACKEND_DATABASE"`
	APIKey   string        `envconfig:"PURCHASE_CONFIGURATOR_BACKEND_API_KEY"`
	Timeout  time.Duration `envconfig:"PURCHASE_CONFIGURATOR_BACKEND_TIMEOUT" default:"15s"`
}

func (b BackendConfig) validate() error {
	u, err := url.Parse(b.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", EnvBackendURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must be an http(s) url, got %q", EnvBackendURL, b.BaseURL)
	}
	if b.Timeout <= 0 {
		return fmt.Errorf("%s must be positive", EnvBackendTimeout)
	}
	return nil
}

// RedisConfig is only used when Enabled; without it line locks stay in process.
type RedisConfig struct {
	Enabled      bool          `envconfig:"PURCHASE_CONFIGURATOR_REDIS_ENABLED" default:"false"`
	URL          string        `envconfig:"PURCHASE_CONFIGURATOR_REDIS_URL"`
	Address      string        `envconfig:"PURCHASE_CONFIGURATOR_REDIS_ADDR"`
	Password     string        `envconfig:"PURCHASE_CONFIGURATOR_REDIS_PASSWORD"`
	DB           int           `envconfig:"PURCHASE_CONFIGURATOR_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PURCHASE_CONFIGURATOR_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PURCHASE_CONFIGURATOR_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PURCHASE_CONFIGURATOR_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PURCHASE_CONFIGURATOR_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PURCHASE_CONFIGURATOR_REDIS_WRITE_TIMEOUT" default:"5s"`
}

func (r RedisConfig) validate() error {
	if !r.Enabled {
		return nil
	}
	if r.URL == "" && r.Address == "" {
		return fmt.Errorf("either %s or %s is required when %s is set", EnvRedisURL, EnvRedisAddr, EnvRedisEnabled)
	}
	return nil
}

type ConfiguratorConfig struct {
	LockTTL        time.Duration `envconfig:"PURCHASE_CONFIGURATOR_LOCK_TTL" default:"30m"`
	MatrixEnabled  bool          `envconfig:"PURCHASE_CONFIGURATOR_MATRIX_ENABLED" default:"true"`
	SessionIdleTTL time.Duration `envconfig:"PURCHASE_CONFIGURATOR_SESSION_IDLE_TTL" default:"30m"`
	ConfirmLabel   string        `envconfig:"PURCHASE_CONFIGURATOR_LABEL_CONFIRM" default:"Confirm"`
	BackLabel      string        `envconfig:"PURCHASE_CONFIGURATOR_LABEL_BACK" default:"Back"`
	TitleLabel     string        `envconfig:"PURCHASE_CONFIGURATOR_LABEL_TITLE" default:"Configure"`
}

// With shared locks an idle dialog has to give up before its lock runs out.
func (c ConfiguratorConfig) validate(sharedLocks bool) error {
	if !sharedLocks {
		return nil
	}
	if c.LockTTL <= 0 {
		return fmt.Errorf("%s must be positive", EnvLockTTL)
	}
	if c.SessionIdleTTL <= 0 || c.SessionIdleTTL > c.LockTTL {
		return fmt.Errorf("%s must be between 0 and %s (%v) when %s is set", EnvSessionIdleTTL, EnvLockTTL, c.LockTTL, EnvRedisEnabled)
	}
	return nil
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"PURCHASE_CONFIGURATOR_CORS_ALLOWED_ORIGINS" default:"*"`
}
