// Package config loads the server configuration: defaults, then an optional
// YAML file, then .env files, then environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kiumaa/kixikila-sub001/internal/cycle"
)

// ConfigPathEnv names the environment variable holding the YAML config path.
const ConfigPathEnv = "KIXIKILA_CONFIG"

// Config is the complete server configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Auth    AuthConfig    `yaml:"auth"`
	Ledger  LedgerConfig  `yaml:"ledger"`
	Cycle   CycleConfig   `yaml:"cycle"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

type ServerConfig struct {
	Addr              string        `yaml:"addr" env:"KIXIKILA_ADDR"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" env:"KIXIKILA_READ_HEADER_TIMEOUT"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout" env:"KIXIKILA_SHUTDOWN_TIMEOUT"`
}

type StorageConfig struct {
	// Driver is sqlite or postgres.
	Driver   string `yaml:"driver" env:"STORAGE_DRIVER"`
	Path     string `yaml:"path" env:"DB_PATH"`
	URL      string `yaml:"url" env:"DATABASE_URL"`
	MaxConns int32  `yaml:"max_conns" env:"DB_MAX_CONNS"`
	MinConns int32  `yaml:"min_conns" env:"DB_MIN_CONNS"`
}

type AuthConfig struct {
	JWTSecret     string        `yaml:"jwt_secret" env:"JWT_SECRET"`
	TokenDuration time.Duration `yaml:"token_duration" env:"JWT_TOKEN_DURATION"`
	BcryptCost    int           `yaml:"bcrypt_cost" env:"BCRYPT_COST"`
}

type LedgerConfig struct {
	// Driver is store (wallets persisted next to the groups) or memory.
	Driver  string        `yaml:"driver" env:"LEDGER_DRIVER"`
	Timeout time.Duration `yaml:"timeout" env:"LEDGER_TIMEOUT"`
}

type CycleConfig struct {
	CompletionPolicy string `yaml:"completion_policy" env:"CYCLE_COMPLETION_POLICY"`
}

type LoggingConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL"`
	// Format is tint for colored development output or json.
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" env:"METRICS_ENABLED"`
	Path    string `yaml:"path" env:"METRICS_PATH"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   15 * time.Second,
		},
		Storage: StorageConfig{
			Driver:   "sqlite",
			Path:     "./data/kixikila.db",
			MaxConns: 20,
			MinConns: 2,
		},
		Auth: AuthConfig{
			TokenDuration: 24 * time.Hour,
		},
		Ledger: LedgerConfig{
			Driver:  "store",
			Timeout: 10 * time.Second,
		},
		Cycle: CycleConfig{
			CompletionPolicy: string(cycle.CompleteNever),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "tint",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Load builds the configuration. configPath may be empty; a missing file is
// an error only when configPath is set. Missing env files are skipped.
func Load(configPath string, envFiles ...string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	if err := processStructFields(cfg); err != nil {
		return nil, fmt.Errorf("failed to load from environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server address is required")
	}

	switch c.Storage.Driver {
	case "sqlite":
		if c.Storage.Path == "" {
			return errors.New("storage path is required for sqlite")
		}
	case "postgres":
		if c.Storage.URL == "" {
			return errors.New("storage url is required for postgres")
		}
		if c.Storage.MinConns > c.Storage.MaxConns {
			return fmt.Errorf("min_conns %d exceeds max_conns %d", c.Storage.MinConns, c.Storage.MaxConns)
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	if c.Auth.JWTSecret == "" {
		return errors.New("JWT secret is required")
	}
	if c.Auth.TokenDuration <= 0 {
		return errors.New("token duration must be positive")
	}
	if c.Auth.BcryptCost != 0 && (c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31) {
		return fmt.Errorf("bcrypt cost %d out of range", c.Auth.BcryptCost)
	}

	if c.Ledger.Driver != "store" && c.Ledger.Driver != "memory" {
		return fmt.Errorf("unknown ledger driver %q", c.Ledger.Driver)
	}
	if c.Ledger.Timeout <= 0 {
		return errors.New("ledger timeout must be positive")
	}

	if _, err := cycle.ParseCompletionPolicy(c.Cycle.CompletionPolicy); err != nil {
		return err
	}

	if c.Logging.Format != "tint" && c.Logging.Format != "json" {
		return fmt.Errorf("unknown log format %q", c.Logging.Format)
	}
	return nil
}
