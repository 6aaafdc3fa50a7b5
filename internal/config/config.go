package config

import (
	"fmt"
	"strings"
	"time"

	env "github.com/caarlos0/env/v11"
)

type Config struct {
	DatabaseURL string        `env:"DATABASE_URL,required,notEmpty"`
	JWTSecret   string        `env:"JWT_SECRET,required,notEmpty"`
	JWTExpiry   time.Duration `env:"JWT_EXPIRY" envDefault:"12h"`
	Port        int           `env:"PORT" envDefault:"8080"`
	LogLevel    string        `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv      string        `env:"APP_ENV" envDefault:"production"`

	CompanyAccount       string `env:"COMPANY_ACCOUNT" envDefault:"COMPANY"`
	TrackedPairPrimary   string `env:"TRACKED_PAIR_PRIMARY" envDefault:"USDT"`
	TrackedPairSecondary string `env:"TRACKED_PAIR_SECONDARY" envDefault:"MYR"`

	IdempotencyTTL           time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`
	IdempotencySweepInterval time.Duration `env:"IDEMPOTENCY_SWEEP_INTERVAL" envDefault:"10m"`
	MetricsEnabled           bool          `env:"METRICS_ENABLED" envDefault:"true"`

	DBMaxOpenConns     int `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns     int `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeS int `env:"DB_CONN_MAX_LIFETIME_S" envDefault:"300"`
	DBConnMaxIdleTimeS int `env:"DB_CONN_MAX_IDLE_TIME_S" envDefault:"60"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	c.CompanyAccount = strings.TrimSpace(c.CompanyAccount)
	if c.CompanyAccount == "" {
		return fmt.Errorf("COMPANY_ACCOUNT must not be empty")
	}
	c.TrackedPairPrimary = strings.ToUpper(strings.TrimSpace(c.TrackedPairPrimary))
	c.TrackedPairSecondary = strings.ToUpper(strings.TrimSpace(c.TrackedPairSecondary))
	if c.TrackedPairPrimary == c.TrackedPairSecondary {
		return fmt.Errorf("tracked pair needs two distinct currencies, got %s twice", c.TrackedPairPrimary)
	}
	if c.DBMaxOpenConns == 1 {
		return fmt.Errorf("DB_MAX_OPEN_CONNS must be at least 2 or 0 for unbounded")
	}
	if c.IdempotencyTTL <= 0 {
		return fmt.Errorf("IDEMPOTENCY_TTL must be positive")
	}
	return nil
}
