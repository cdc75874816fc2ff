// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/vncsmyrnk/votecast/internal/core/domain"
	"github.com/vncsmyrnk/votecast/internal/core/integrity"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	VotingSecret         string        `env:"VOTING_SECRET"`
	JWTSecret            string        `env:"JWT_SECRET"`
	HTTPAddr             string        `env:"HTTP_ADDR" envDefault:"0.0.0.0:8080"`
	StorageDriver        string        `env:"STORAGE_DRIVER" envDefault:"postgres"`
	DatabaseURL          string        `env:"DATABASE_URL"`
	Postgres             PostgresEnv   `envPrefix:"POSTGRES_"`
	VerificationCodeCost int           `env:"VERIFICATION_CODE_COST" envDefault:"10"`
	CastTimeout          time.Duration `env:"CAST_TIMEOUT" envDefault:"10s"`
	VerifyConcurrency    int           `env:"VERIFY_CONCURRENCY" envDefault:"8"`
	MemorySeedFile       string        `env:"MEMORY_SEED_FILE"`
}

type PostgresEnv struct {
	Host     string `env:"HOST" envDefault:"localhost"`
	Port     string `env:"PORT" envDefault:"5432"`
	User     string `env:"USER"`
	Password string `env:"PASSWORD"`
	DB       string `env:"DB"`
}

// LoadDotEnv reads .env when present. A missing file is not an error.
func LoadDotEnv(paths ...string) error {
	err := godotenv.Load(paths...)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// Load parses the environment and validates it. Errors wrap
// domain.ErrConfiguration.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: parse env: %v", domain.ErrConfiguration, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadIntegrity parses the master secret and the Postgres settings. Offline
// jobs use it because they do not serve HTTP.
func LoadIntegrity() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: parse env: %v", domain.ErrConfiguration, err)
	}
	if err := cfg.validateSecret(); err != nil {
		return Config{}, err
	}
	// Offline jobs read the stored chain, which only Postgres persists.
	cfg.StorageDriver = DriverPostgres
	if err := cfg.validateStorage(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadDatabase parses only the Postgres connection settings.
func LoadDatabase() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: parse env: %v", domain.ErrConfiguration, err)
	}
	cfg.StorageDriver = DriverPostgres
	if err := cfg.validateStorage(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if err := c.validateSecret(); err != nil {
		return err
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("%w: JWT_SECRET is not set", domain.ErrConfiguration)
	}
	if c.VerificationCodeCost < 4 || c.VerificationCodeCost > 31 {
		return fmt.Errorf("%w: VERIFICATION_CODE_COST must be between 4 and 31", domain.ErrConfiguration)
	}
	if c.CastTimeout <= 0 {
		return fmt.Errorf("%w: CAST_TIMEOUT must be positive", domain.ErrConfiguration)
	}
	if c.VerifyConcurrency <= 0 {
		return fmt.Errorf("%w: VERIFY_CONCURRENCY must be positive", domain.ErrConfiguration)
	}
	return c.validateStorage()
}

func (c Config) validateSecret() error {
	if c.VotingSecret == "" {
		return fmt.Errorf("%w: VOTING_SECRET is not set", domain.ErrConfiguration)
	}
	if len(c.VotingSecret) < integrity.MinSecretLength {
		return fmt.Errorf("%w: VOTING_SECRET must be at least %d characters", domain.ErrConfiguration, integrity.MinSecretLength)
	}
	return nil
}

func (c Config) validateStorage() error {
	switch c.StorageDriver {
	case DriverMemory:
		return nil
	case DriverPostgres:
		if c.DatabaseURL == "" && (c.Postgres.User == "" || c.Postgres.DB == "") {
			return fmt.Errorf("%w: DATABASE_URL or POSTGRES_USER and POSTGRES_DB are required", domain.ErrConfiguration)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown STORAGE_DRIVER %q", domain.ErrConfiguration, c.StorageDriver)
	}
}

// DSN returns DATABASE_URL, or a URL built from the POSTGRES_* variables.
func (c Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Postgres.User, c.Postgres.Password),
		Host:     c.Postgres.Host + ":" + c.Postgres.Port,
		Path:     "/" + c.Postgres.DB,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// String is safe to log: secrets are omitted and the DSN password masked.
func (c Config) String() string {
	dsn := "-"
	if c.StorageDriver == DriverPostgres {
		dsn = maskDSN(c.DSN())
	}
	return fmt.Sprintf("addr=%s storage=%s dsn=%s code_cost=%d cast_timeout=%s seed=%q",
		c.HTTPAddr, c.StorageDriver, dsn, c.VerificationCodeCost, c.CastTimeout, c.MemorySeedFile)
}

func maskDSN(dsn string) string {
	if u, err := url.Parse(dsn); err == nil && u.Scheme != "" {
		if u.User != nil {
			if _, ok := u.User.Password(); ok {
				u.User = url.UserPassword(u.User.Username(), "xxxxx")
			}
		}
		return u.String()
	}
	parts := strings.Fields(dsn)
	for i, p := range parts {
		if strings.HasPrefix(strings.ToLower(p), "password=") {
			parts[i] = "password=***"
		}
	}
	return strings.Join(parts, " ")
}
