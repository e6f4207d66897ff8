package app

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	s3blob "github.com/phindlabs/revloop/internal/blob/s3"
	"github.com/phindlabs/revloop/internal/cache/redis"
	"github.com/phindlabs/revloop/internal/config"
	"github.com/phindlabs/revloop/internal/domain"
	"github.com/phindlabs/revloop/internal/evolution"
	"github.com/phindlabs/revloop/internal/ledger"
	"github.com/phindlabs/revloop/internal/monitor"
	"github.com/phindlabs/revloop/internal/notify"
	"github.com/phindlabs/revloop/internal/risk"
	"github.com/phindlabs/revloop/internal/scheduler"
	"github.com/phindlabs/revloop/internal/store/jsonfile"
	"github.com/phindlabs/revloop/internal/store/postgres"
	"github.com/phindlabs/revloop/internal/strategy"
	"github.com/phindlabs/revloop/internal/taskpool"
)

// defaultSuccessRates drive the simulated executors; the loop section
// of the config can override any of them.
var defaultSuccessRates = map[string]float64{
	"arbitrage_trading": 0.75,
	"yield_farming":     0.85,
	"grant_writing":     0.30,
	"content_creation":  0.70,
	"market_making":     0.80,
}

// Dependencies bundles everything the application modes need. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Ledger    *ledger.Ledger
	Risk      *risk.Monitor
	Evolution *evolution.Engine
	TaskPool  *taskpool.Manager
	Registry  *strategy.Registry
	Scheduler *scheduler.Scheduler
	Monitor   *monitor.Monitor
	Notifier  *notify.Notifier

	SignalBus   domain.SignalBus
	LockManager domain.LockManager
	Archiver    *s3blob.Archiver
}

// taskHandoff adapts the task pool's Submit to the opportunity
// monitor's narrower contract.
type taskHandoff struct {
	pool *taskpool.Manager
}

func (h taskHandoff) Submit(ctx context.Context, description, userID string) error {
	_, err := h.pool.Submit(ctx, description, userID)
	return err
}

// leaderLockTTL bounds how long a crashed loop holds the leader lock.
const leaderLockTTL = time.Minute

// Wire constructs all concrete dependencies from the configuration and
// returns them with a cleanup function for shutdown.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Ledger store backend ---
	var store domain.LedgerStore
	switch cfg.Ledger.Backend {
	case "postgres":
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}
		store = postgres.NewLedgerStore(pgClient)
	default:
		fileStore, err := jsonfile.New(cfg.Ledger.Dir)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: ledger store: %w", err)
		}
		store = fileStore
	}

	// --- Redis (optional signal bus + leader lock) ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.SignalBus = redis.NewSignalBus(redisClient)
		deps.LockManager = redis.NewLockManager(redisClient, leaderLockTTL)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.WebhookURL != "" {
		senders = append(senders, notify.NewWebhookSender(cfg.Notify.WebhookURL))
	}
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Ledger ---
	ledgerOpts := []ledger.Option{}
	if deps.SignalBus != nil {
		ledgerOpts = append(ledgerOpts, ledger.WithSignalBus(deps.SignalBus))
	}
	deps.Ledger = ledger.New(ledger.Config{DailyTarget: cfg.TaskPool.DailyTarget}, store, logger, ledgerOpts...)
	if err := deps.Ledger.Load(ctx); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: ledger load: %w", err)
	}
	closers = append(closers, func() { _ = store.Close() })

	// --- Risk monitor ---
	riskOpts := []risk.Option{
		risk.WithAlerter(notify.NewRiskAlerter(deps.Notifier)),
	}
	if deps.SignalBus != nil {
		riskOpts = append(riskOpts, risk.WithSignalBus(deps.SignalBus))
	}
	deps.Risk = risk.NewMonitor(cfg.Risk.Thresholds, logger, riskOpts...)

	// --- Evolution engine ---
	deps.Evolution = evolution.New(evolution.Config{
		LearningRate:        cfg.Evolution.LearningRate,
		AdaptationThreshold: cfg.Evolution.AdaptationThreshold,
		MutationRate:        cfg.Evolution.MutationRate,
		CrossoverRate:       cfg.Evolution.CrossoverRate,
		GeneticAlgorithm:    cfg.Evolution.GeneticAlgorithm,
	}, logger)

	// --- Task pool ---
	deps.TaskPool = taskpool.NewManager(
		taskpool.Config{DailyTarget: cfg.TaskPool.DailyTarget},
		logger,
		taskpool.WithIncomeRecorder(deps.Ledger),
	)

	// --- Strategy registry ---
	deps.Registry = strategy.NewRegistry()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	for _, st := range evolution.StrategyOrder {
		rate, ok := cfg.Loop.SuccessRates[st]
		if !ok {
			rate = defaultSuccessRates[st]
		}
		deps.Registry.Register(st, strategy.NewSimulated(st, rate, rng))
	}

	// --- Scheduler ---
	deps.Scheduler = scheduler.New(
		deps.Registry,
		deps.Risk,
		deps.Evolution,
		deps.Ledger,
		scheduler.Config{
			ExecTimeout:  cfg.Loop.ExecTimeout.Duration,
			ErrorBackoff: cfg.Loop.ErrorBackoff.Duration,
		},
		logger,
	)

	// --- Opportunity monitor ---
	// Always constructed so the API can serve its endpoints; the
	// background loop only starts when cfg.Monitor.Enabled.
	feedRng := rand.New(rand.NewSource(time.Now().UnixNano() + 1))
	deps.Monitor = monitor.New(
		monitor.NewSimulatedFeed(feedRng),
		monitor.Config{
			Interval:   cfg.Monitor.Interval.Duration,
			Thresholds: cfg.Monitor.Thresholds,
		},
		logger,
		monitor.WithAlertSink(notify.NewOpportunitySink(deps.Notifier)),
		monitor.WithTaskHandoff(taskHandoff{pool: deps.TaskPool}),
	)

	// --- S3 cold archive ---
	if cfg.Archiver.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}

		deps.Archiver = s3blob.NewArchiver(
			s3blob.NewWriter(s3Client),
			deps.Ledger,
			deps.Risk,
			s3blob.ArchiverConfig{
				Interval:  cfg.Archiver.Interval.Duration,
				Retention: cfg.Archiver.Retention.Duration,
			},
			logger,
		)
	}

	return deps, cleanup, nil
}
