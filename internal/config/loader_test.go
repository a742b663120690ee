package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var allKeys = []string{
	"HTTP_PORT", "STORAGE", "SQLITE_DSN", "TIMEZONE", "REDIS_URL", "CACHE_TTL",
	"AMQP_URL", "AMQP_EXCHANGE", "EXPIRY_SWEEP_CRON", "HEARTBEAT_CRON",
	"EXPIRY_WARNING_CRON", "HEARTBEAT_GRACE", "LOG_LEVEL",
}

// clearEnv unsets every scheduler variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range allKeys {
		name := Prefix + "_" + key
		t.Setenv(name, "")
		if err := os.Unsetenv(name); err != nil {
			t.Fatalf("failed to unset %s: %v", name, err)
		}
	}
}

func missingEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "absent.env")
}

func TestLoader_ParseEnvironment(t *testing.T) {

	t.Run("applies defaults when variables are missing", func(t *testing.T) {
		clearEnv(t)

		cfg, err := Load(missingEnvFile(t))
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		if cfg.HTTPPort != 8080 {
			t.Fatalf("expected default HTTP port 8080, got %d", cfg.HTTPPort)
		}
		if cfg.Storage != StorageSQLite || cfg.SQLiteDSN != "scheduler.db" {
			t.Fatalf("unexpected default storage: %q %q", cfg.Storage, cfg.SQLiteDSN)
		}
		if cfg.CacheTTL != 30*time.Second || cfg.HeartbeatGrace != 24*time.Hour {
			t.Fatalf("unexpected default durations: %v %v", cfg.CacheTTL, cfg.HeartbeatGrace)
		}
		if cfg.AMQPExchange != "workstation.reservations" || cfg.ExpirySweepCron != "5 0 * * *" {
			t.Fatalf("unexpected defaults: %+v", cfg)
		}
		if cfg.RedisURL != "" || cfg.AMQPURL != "" {
			t.Fatalf("expected optional integrations to be disabled, got %+v", cfg)
		}
	})

	t.Run("parses custom values", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SCHEDULER_HTTP_PORT", "9090")
		t.Setenv("SCHEDULER_STORAGE", "memory")
		t.Setenv("SCHEDULER_TIMEZONE", "Asia/Tokyo")
		t.Setenv("SCHEDULER_CACHE_TTL", "2m")
		t.Setenv("SCHEDULER_HEARTBEAT_GRACE", "36h")
		t.Setenv("SCHEDULER_LOG_LEVEL", "debug")
		t.Setenv("SCHEDULER_HEARTBEAT_CRON", "")

		cfg, err := Load(missingEnvFile(t))
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if cfg.HTTPPort != 9090 || cfg.Storage != StorageMemory {
			t.Fatalf("unexpected values: %+v", cfg)
		}
		if cfg.CacheTTL != 2*time.Minute || cfg.HeartbeatGrace != 36*time.Hour {
			t.Fatalf("unexpected durations: %v %v", cfg.CacheTTL, cfg.HeartbeatGrace)
		}
		loc, err := cfg.Location()
		if err != nil || loc.String() != "Asia/Tokyo" {
			t.Fatalf("expected Asia/Tokyo, got %v (%v)", loc, err)
		}
		if level, _ := cfg.SlogLevel(); level != slog.LevelDebug {
			t.Fatalf("expected debug level, got %v", level)
		}
	})

	t.Run("reads a dotenv file without overriding the environment", func(t *testing.T) {
		clearEnv(t)
		path := filepath.Join(t.TempDir(), ".env")
		content := "SCHEDULER_HTTP_PORT=7070\nSCHEDULER_SQLITE_DSN=/tmp/desk.db\n"
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("failed to write env file: %v", err)
		}
		t.Setenv("SCHEDULER_HTTP_PORT", "6060")
		t.Cleanup(func() { _ = os.Unsetenv("SCHEDULER_SQLITE_DSN") })

		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if cfg.HTTPPort != 6060 {
			t.Fatalf("expected environment to win, got %d", cfg.HTTPPort)
		}
		if cfg.SQLiteDSN != "/tmp/desk.db" {
			t.Fatalf("expected DSN from file, got %q", cfg.SQLiteDSN)
		}
	})

	t.Run("reports invalid values", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SCHEDULER_HTTP_PORT", "70000")
		t.Setenv("SCHEDULER_STORAGE", "postgres")
		t.Setenv("SCHEDULER_TIMEZONE", "Mars/Olympus")
		t.Setenv("SCHEDULER_EXPIRY_SWEEP_CRON", "every day")
		t.Setenv("SCHEDULER_LOG_LEVEL", "loud")

		_, err := Load(missingEnvFile(t))
		if err == nil {
			t.Fatal("expected error for invalid values")
		}
		for _, key := range []string{"HTTP_PORT", "STORAGE", "TIMEZONE", "EXPIRY_SWEEP_CRON", "LOG_LEVEL"} {
			if !strings.Contains(err.Error(), "SCHEDULER_"+key) {
				t.Fatalf("expected error to mention SCHEDULER_%s, got %v", key, err)
			}
		}
	})

	t.Run("rejects unparsable numbers", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SCHEDULER_HTTP_PORT", "eighty")

		if _, err := Load(missingEnvFile(t)); err == nil {
			t.Fatal("expected error for non-numeric port")
		}
	})
}

func TestConfigSQLite(t *testing.T) {
	cfg := Config{SQLiteDSN: "desk.db"}
	sqliteCfg := cfg.SQLite()
	if sqliteCfg.DSN != "desk.db" || !sqliteCfg.EnableForeignKeys {
		t.Fatalf("unexpected sqlite config: %+v", sqliteCfg)
	}
	if err := sqliteCfg.Validate(); err != nil {
		t.Fatalf("expected valid sqlite config, got %v", err)
	}
}
