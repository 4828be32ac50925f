package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// DevJWTSecret is the signing key used when JWT_SECRET is unset. It is
// refused in production.
const DevJWTSecret = "dev-secret-change-in-production"

var (
	ErrDevSecretInProduction        = errors.New("JWT_SECRET must be set in production environment")
	ErrResetCodeLoggingInProduction = errors.New("LOG_RESET_CODES must be false in production environment")
)

type Config struct {
	Port           string `env:"PORT"            envDefault:"8080"`
	Env            string `env:"ENV"             envDefault:"development"`
	DatabaseDriver string `env:"DATABASE_DRIVER" envDefault:"mysql"`
	DatabaseDSN    string `env:"DATABASE_DSN"    envDefault:"root:password@tcp(127.0.0.1:3306)/hocusfocus"`
	RedisURL       string `env:"REDIS_URL"`

	JWTSecret string        `env:"JWT_SECRET" envDefault:"dev-secret-change-in-production"`
	TokenTTL  time.Duration `env:"TOKEN_TTL"  envDefault:"1h"`

	ResetCodeTTL       time.Duration `env:"RESET_CODE_TTL"       envDefault:"15m"`
	ResetMaxAttempts   int           `env:"RESET_MAX_ATTEMPTS"   envDefault:"5"`
	ResetSweepInterval time.Duration `env:"RESET_SWEEP_INTERVAL" envDefault:"10m"`
	LogResetCodes      bool          `env:"LOG_RESET_CODES"      envDefault:"true"`

	AuthRateLimitRPS   float64 `env:"AUTH_RATE_LIMIT_RPS"   envDefault:"5"`
	AuthRateLimitBurst int     `env:"AUTH_RATE_LIMIT_BURST" envDefault:"10"`

	LogLevel     string `env:"LOG_LEVEL"                   envDefault:"info"`
	OTELEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c Config) Validate() error {
	if c.IsProduction() && c.JWTSecret == DevJWTSecret {
		return ErrDevSecretInProduction
	}
	if c.IsProduction() && c.LogResetCodes {
		return ErrResetCodeLoggingInProduction
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET must not be empty")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive, got %s", c.TokenTTL)
	}
	if c.ResetCodeTTL <= 0 {
		return fmt.Errorf("RESET_CODE_TTL must be positive, got %s", c.ResetCodeTTL)
	}
	if c.ResetMaxAttempts < 1 {
		return fmt.Errorf("RESET_MAX_ATTEMPTS must be at least 1, got %d", c.ResetMaxAttempts)
	}
	if c.ResetSweepInterval <= 0 {
		return fmt.Errorf("RESET_SWEEP_INTERVAL must be positive, got %s", c.ResetSweepInterval)
	}
	switch c.DatabaseDriver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("DATABASE_DRIVER must be mysql, postgres or sqlite, got %q", c.DatabaseDriver)
	}
	return nil
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}
