// Package config defines the top-level configuration for the revenue
// loop and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from
// a TOML file and then optionally overridden by REVLOOP_* environment
// variables.
type Config struct {
	Loop      LoopConfig      `toml:"loop"`
	Risk      RiskConfig      `toml:"risk"`
	Evolution EvolutionConfig `toml:"evolution"`
	TaskPool  TaskPoolConfig  `toml:"taskpool"`
	Ledger    LedgerConfig    `toml:"ledger"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Archiver  ArchiverConfig  `toml:"archiver"`
	Monitor   MonitorConfig   `toml:"monitor"`
	Server    ServerConfig    `toml:"server"`
	Notify    NotifyConfig    `toml:"notify"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// LoopConfig holds control-loop parameters.
type LoopConfig struct {
	ExecTimeout  duration `toml:"exec_timeout"`
	ErrorBackoff duration `toml:"error_backoff"`
	// SuccessRates overrides the simulated per-strategy success rates.
	SuccessRates map[string]float64 `toml:"success_rates"`
}

// RiskConfig holds risk-monitor parameters. Thresholds merge over the
// built-in defaults.
type RiskConfig struct {
	Thresholds map[string]float64 `toml:"thresholds"`
}

// EvolutionConfig holds evolution-engine parameters.
type EvolutionConfig struct {
	LearningRate        float64 `toml:"learning_rate"`
	AdaptationThreshold int     `toml:"adaptation_threshold"`
	MutationRate        float64 `toml:"mutation_rate"`
	CrossoverRate       float64 `toml:"crossover_rate"`
	GeneticAlgorithm    bool    `toml:"genetic_algorithm"`
}

// TaskPoolConfig holds task-pool parameters.
type TaskPoolConfig struct {
	DailyTarget float64 `toml:"daily_target"`
}

// LedgerConfig selects and configures the ledger's persistence backend.
type LedgerConfig struct {
	// Backend is "file" or "postgres".
	Backend string `toml:"backend"`
	// Dir holds the JSON documents for the file backend.
	Dir string `toml:"dir"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters. When disabled the loop
// runs without the signal bus and leader lock.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ArchiverConfig holds cold-archive parameters.
type ArchiverConfig struct {
	Enabled   bool     `toml:"enabled"`
	Interval  duration `toml:"interval"`
	Retention duration `toml:"retention"`
}

// MonitorConfig holds opportunity-monitor parameters. Thresholds merge
// over the built-in defaults.
type MonitorConfig struct {
	Enabled    bool               `toml:"enabled"`
	Interval   duration           `toml:"interval"`
	Thresholds map[string]float64 `toml:"thresholds"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	WebhookURL     string   `toml:"webhook_url"`
	TelegramToken  string   `toml:"telegram_token"`
	TelegramChatID string   `toml:"telegram_chat_id"`
	Events         []string `toml:"events"`
}

// duration wraps time.Duration so the TOML decoder can parse strings
// like "5m" or "30s".
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Loop: LoopConfig{
			ExecTimeout:  duration{2 * time.Minute},
			ErrorBackoff: duration{60 * time.Second},
			SuccessRates: map[string]float64{},
		},
		Risk: RiskConfig{
			Thresholds: map[string]float64{},
		},
		Evolution: EvolutionConfig{
			LearningRate:        0.1,
			AdaptationThreshold: 10,
			MutationRate:        0.05,
			CrossoverRate:       0.8,
			GeneticAlgorithm:    true,
		},
		TaskPool: TaskPoolConfig{
			DailyTarget: 200,
		},
		Ledger: LedgerConfig{
			Backend: "file",
			Dir:     "data",
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "revloop",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "revloop-data",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Archiver: ArchiverConfig{
			Enabled:   false,
			Interval:  duration{1 * time.Hour},
			Retention: duration{24 * time.Hour},
		},
		Monitor: MonitorConfig{
			Enabled:    true,
			Interval:   duration{10 * time.Second},
			Thresholds: map[string]float64{},
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Notify: NotifyConfig{
			Events: []string{"risk_alert", "opportunity"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"loop":    true,
	"monitor": true,
	"server":  true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validLedgerBackends enumerates the accepted ledger backends.
var validLedgerBackends = map[string]bool{
	"file":     true,
	"postgres": true,
}

// Validate checks Config for obviously invalid or missing values and
// returns a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: loop, monitor, server, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Loop
	if c.Loop.ExecTimeout.Duration <= 0 {
		errs = append(errs, "loop: exec_timeout must be > 0")
	}
	if c.Loop.ErrorBackoff.Duration <= 0 {
		errs = append(errs, "loop: error_backoff must be > 0")
	}
	for name, rate := range c.Loop.SuccessRates {
		if rate < 0 || rate > 1 {
			errs = append(errs, fmt.Sprintf("loop: success rate for %s must be in [0, 1], got %g", name, rate))
		}
	}

	// Risk
	for metric, value := range c.Risk.Thresholds {
		if value <= 0 {
			errs = append(errs, fmt.Sprintf("risk: threshold for %s must be > 0, got %g", metric, value))
		}
	}

	// Evolution
	if c.Evolution.LearningRate <= 0 || c.Evolution.LearningRate > 1 {
		errs = append(errs, "evolution: learning_rate must be in (0, 1]")
	}
	if c.Evolution.AdaptationThreshold < 1 {
		errs = append(errs, "evolution: adaptation_threshold must be >= 1")
	}
	if c.Evolution.MutationRate < 0 || c.Evolution.MutationRate > 1 {
		errs = append(errs, "evolution: mutation_rate must be in [0, 1]")
	}
	if c.Evolution.CrossoverRate < 0 || c.Evolution.CrossoverRate > 1 {
		errs = append(errs, "evolution: crossover_rate must be in [0, 1]")
	}

	// Task pool
	if c.TaskPool.DailyTarget <= 0 {
		errs = append(errs, "taskpool: daily_target must be > 0")
	}

	// Ledger backend
	backend := strings.ToLower(c.Ledger.Backend)
	if !validLedgerBackends[backend] {
		errs = append(errs, fmt.Sprintf("ledger: unknown backend %q (valid: file, postgres)", c.Ledger.Backend))
	}
	if backend == "file" && strings.TrimSpace(c.Ledger.Dir) == "" {
		errs = append(errs, "ledger: dir must not be empty for the file backend")
	}
	if backend == "postgres" {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty when enabled")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// Archiver needs S3.
	if c.Archiver.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when the archiver is enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when the archiver is enabled")
		}
		if c.Archiver.Interval.Duration <= 0 {
			errs = append(errs, "archiver: interval must be > 0")
		}
		if c.Archiver.Retention.Duration <= 0 {
			errs = append(errs, "archiver: retention must be > 0")
		}
	}

	// Monitor
	if c.Monitor.Enabled && c.Monitor.Interval.Duration <= 0 {
		errs = append(errs, "monitor: interval must be > 0 when enabled")
	}
	for metric, value := range c.Monitor.Thresholds {
		if value <= 0 {
			errs = append(errs, fmt.Sprintf("monitor: threshold for %s must be > 0, got %g", metric, value))
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	// Notify — Telegram fields must be set together.
	tt := c.Notify.TelegramToken != ""
	tc := c.Notify.TelegramChatID != ""
	if tt != tc {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
