package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of
// the built-in defaults, applies REVLOOP_* environment overrides, and
// returns the final Config. An empty path skips the file and uses
// defaults plus environment only. The returned Config has NOT been
// validated; the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known REVLOOP_* environment variables
// and overwrites the corresponding Config fields when a variable is
// set. This lets operators inject secrets at deploy time without
// touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Loop ──
	setDuration(&cfg.Loop.ExecTimeout, "REVLOOP_LOOP_EXEC_TIMEOUT")
	setDuration(&cfg.Loop.ErrorBackoff, "REVLOOP_LOOP_ERROR_BACKOFF")

	// ── Evolution ──
	setFloat64(&cfg.Evolution.LearningRate, "REVLOOP_EVOLUTION_LEARNING_RATE")
	setInt(&cfg.Evolution.AdaptationThreshold, "REVLOOP_EVOLUTION_ADAPTATION_THRESHOLD")
	setFloat64(&cfg.Evolution.MutationRate, "REVLOOP_EVOLUTION_MUTATION_RATE")
	setFloat64(&cfg.Evolution.CrossoverRate, "REVLOOP_EVOLUTION_CROSSOVER_RATE")
	setBool(&cfg.Evolution.GeneticAlgorithm, "REVLOOP_EVOLUTION_GENETIC_ALGORITHM")

	// ── Task pool ──
	setFloat64(&cfg.TaskPool.DailyTarget, "REVLOOP_TASKPOOL_DAILY_TARGET")
	// Operational alias used by deploy scripts.
	setFloat64(&cfg.TaskPool.DailyTarget, "DAILY_REVENUE_TARGET")

	// ── Ledger ──
	setStr(&cfg.Ledger.Backend, "REVLOOP_LEDGER_BACKEND")
	setStr(&cfg.Ledger.Dir, "REVLOOP_LEDGER_DIR")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "REVLOOP_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "REVLOOP_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "REVLOOP_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "REVLOOP_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "REVLOOP_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "REVLOOP_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "REVLOOP_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "REVLOOP_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "REVLOOP_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "REVLOOP_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "REVLOOP_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "REVLOOP_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "REVLOOP_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "REVLOOP_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "REVLOOP_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "REVLOOP_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "REVLOOP_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "REVLOOP_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "REVLOOP_S3_REGION")
	setStr(&cfg.S3.Bucket, "REVLOOP_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "REVLOOP_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "REVLOOP_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "REVLOOP_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "REVLOOP_S3_FORCE_PATH_STYLE")

	// ── Archiver ──
	setBool(&cfg.Archiver.Enabled, "REVLOOP_ARCHIVER_ENABLED")
	setDuration(&cfg.Archiver.Interval, "REVLOOP_ARCHIVER_INTERVAL")
	setDuration(&cfg.Archiver.Retention, "REVLOOP_ARCHIVER_RETENTION")

	// ── Monitor ──
	setBool(&cfg.Monitor.Enabled, "REVLOOP_MONITOR_ENABLED")
	setDuration(&cfg.Monitor.Interval, "REVLOOP_MONITOR_INTERVAL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "REVLOOP_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "REVLOOP_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "REVLOOP_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "REVLOOP_SERVER_API_KEY")

	// ── Notify ──
	setStr(&cfg.Notify.WebhookURL, "REVLOOP_NOTIFY_WEBHOOK_URL")
	setStr(&cfg.Notify.TelegramToken, "REVLOOP_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "REVLOOP_NOTIFY_TELEGRAM_CHAT_ID")
	setStringSlice(&cfg.Notify.Events, "REVLOOP_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "REVLOOP_MODE")
	setStr(&cfg.LogLevel, "REVLOOP_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
