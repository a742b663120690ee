package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron/v3"

	"github.com/example/workstation-scheduler/internal/persistence/sqlite/migration"
)

// Prefix is prepended to every environment variable name.
const Prefix = "SCHEDULER"

// Storage backends.
const (
	StorageSQLite = "sqlite"
	StorageMemory = "memory"
)

// Config captures environment driven configuration values for the scheduler service.
type Config struct {
	HTTPPort  int    `envconfig:"HTTP_PORT" default:"8080"`
	Storage   string `envconfig:"STORAGE" default:"sqlite"`
	SQLiteDSN string `envconfig:"SQLITE_DSN" default:"scheduler.db"`
	// Timezone decides which calendar day "today" is.
	Timezone string `envconfig:"TIMEZONE" default:"Local"`

	// RedisURL selects the shared availability cache; empty keeps it in process.
	RedisURL string        `envconfig:"REDIS_URL"`
	CacheTTL time.Duration `envconfig:"CACHE_TTL" default:"30s"`

	// AMQPURL selects the AMQP event publisher; empty logs events instead.
	AMQPURL      string `envconfig:"AMQP_URL"`
	AMQPExchange string `envconfig:"AMQP_EXCHANGE" default:"workstation.reservations"`

	ExpirySweepCron   string        `envconfig:"EXPIRY_SWEEP_CRON" default:"5 0 * * *"`
	HeartbeatCron     string        `envconfig:"HEARTBEAT_CRON" default:"0 */6 * * *"`
	ExpiryWarningCron string        `envconfig:"EXPIRY_WARNING_CRON" default:"0 9 * * *"`
	HeartbeatGrace    time.Duration `envconfig:"HEARTBEAT_GRACE" default:"24h"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads optional dotenv files, then parses configuration values from the
// process environment. Variables already set in the environment win over the
// files. Without arguments ".env" is tried; missing files are skipped.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", file, err)
		}
	}

	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid value in one error naming the variables.
func (c Config) Validate() error {
	invalid := make([]string, 0, 4)
	name := func(key string) string { return Prefix + "_" + key }

	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		invalid = append(invalid, name("HTTP_PORT"))
	}
	switch c.Storage {
	case StorageSQLite:
		if strings.TrimSpace(c.SQLiteDSN) == "" {
			invalid = append(invalid, name("SQLITE_DSN"))
		}
	case StorageMemory:
	default:
		invalid = append(invalid, name("STORAGE"))
	}
	if _, err := c.Location(); err != nil {
		invalid = append(invalid, name("TIMEZONE"))
	}
	if c.CacheTTL <= 0 {
		invalid = append(invalid, name("CACHE_TTL"))
	}
	if c.AMQPURL != "" && strings.TrimSpace(c.AMQPExchange) == "" {
		invalid = append(invalid, name("AMQP_EXCHANGE"))
	}
	for key, spec := range map[string]string{
		"EXPIRY_SWEEP_CRON":   c.ExpirySweepCron,
		"HEARTBEAT_CRON":      c.HeartbeatCron,
		"EXPIRY_WARNING_CRON": c.ExpiryWarningCron,
	} {
		if spec == "" {
			continue
		}
		if _, err := cron.ParseStandard(spec); err != nil {
			invalid = append(invalid, name(key))
		}
	}
	if c.HeartbeatGrace <= 0 {
		invalid = append(invalid, name("HEARTBEAT_GRACE"))
	}
	if _, err := c.SlogLevel(); err != nil {
		invalid = append(invalid, name("LOG_LEVEL"))
	}

	if len(invalid) > 0 {
		slices.Sort(invalid)
		return fmt.Errorf("invalid environment values: %s", strings.Join(invalid, ", "))
	}
	return nil
}

// Location resolves Timezone.
func (c Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// SlogLevel parses LogLevel ("debug", "info", "warn", "error").
func (c Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(c.LogLevel))
	return level, err
}

// SQLite returns the connection settings for the configured database file.
func (c Config) SQLite() migration.SQLiteConfig {
	return migration.DefaultSQLiteConfig(c.SQLiteDSN)
}
