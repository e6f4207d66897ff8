package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/phindlabs/revloop/internal/domain"
	"github.com/phindlabs/revloop/internal/server"
	"github.com/phindlabs/revloop/internal/server/handler"
	"github.com/phindlabs/revloop/internal/server/ws"
)

// leaderLockKey is the shared lock gating the control loop when Redis
// is enabled. Only one loop may drive a shared ledger.
const leaderLockKey = "revloop:leader"

// LoopMode runs the control loop (and archiver) without the
// opportunity monitor or API server.
func (a *App) LoopMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting loop mode")

	g, ctx := errgroup.WithContext(ctx)
	if err := a.startLoop(ctx, g, deps); err != nil {
		return err
	}
	return g.Wait()
}

// MonitorMode runs the opportunity monitor and the API server, without
// the control loop.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	g, ctx := errgroup.WithContext(ctx)

	if a.cfg.Monitor.Enabled {
		deps.Monitor.Start(ctx)
		g.Go(func() error {
			<-ctx.Done()
			deps.Monitor.Stop()
			return ctx.Err()
		})
	}

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps)
	}

	return g.Wait()
}

// ServerMode runs only the API server over the wired dependencies.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	return g.Wait()
}

// FullMode runs everything: control loop, opportunity monitor,
// archiver, and API server.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	if err := a.startLoop(ctx, g, deps); err != nil {
		return err
	}

	if a.cfg.Monitor.Enabled {
		deps.Monitor.Start(ctx)
		g.Go(func() error {
			<-ctx.Done()
			deps.Monitor.Stop()
			return ctx.Err()
		})
	}

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps)
	}

	return g.Wait()
}

// startLoop acquires the leader lock when a lock manager is wired,
// then starts the scheduler and archiver goroutines.
func (a *App) startLoop(ctx context.Context, g *errgroup.Group, deps *Dependencies) error {
	if deps.LockManager != nil {
		release, err := a.acquireLeaderLock(ctx, deps.LockManager)
		if err != nil {
			return err
		}
		g.Go(func() error {
			<-ctx.Done()
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := release(releaseCtx); err != nil {
				a.logger.Warn("leader lock release failed",
					slog.String("error", err.Error()),
				)
			}
			return ctx.Err()
		})
	}

	g.Go(func() error {
		return deps.Scheduler.Run(ctx)
	})

	if deps.Archiver != nil {
		g.Go(func() error {
			return deps.Archiver.Run(ctx)
		})
	}
	return nil
}

// acquireLeaderLock polls until the leader lock is free or the context
// is cancelled.
func (a *App) acquireLeaderLock(ctx context.Context, locks domain.LockManager) (func(context.Context) error, error) {
	for {
		release, err := locks.Acquire(ctx, leaderLockKey)
		if err == nil {
			a.logger.InfoContext(ctx, "leader lock acquired")
			return release, nil
		}
		if !errors.Is(err, domain.ErrLockHeld) {
			return nil, err
		}

		a.logger.InfoContext(ctx, "leader lock held elsewhere, waiting")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Second):
		}
	}
}

// startHTTPServer builds the handler set and adds the API server (and
// WebSocket hub when a signal bus is wired) to the errgroup.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	handlers := server.Handlers{
		Health:        handler.NewHealthHandler(a.logger),
		Status:        handler.NewStatusHandler(deps.Scheduler, a.logger),
		Tasks:         handler.NewTaskHandler(deps.TaskPool, a.logger),
		Profit:        handler.NewProfitHandler(deps.Ledger, a.logger),
		Risk:          handler.NewRiskHandler(deps.Risk, a.logger),
		Opportunities: handler.NewOpportunityHandler(deps.Monitor, a.logger),
		Evolution:     handler.NewEvolutionHandler(deps.Evolution, deps.Scheduler, a.logger),
	}

	var hub *ws.Hub
	if deps.SignalBus != nil {
		hub = ws.NewHub(deps.SignalBus, a.logger, ws.Config{
			Mode:      a.cfg.Mode,
			StartedAt: time.Now().UTC(),
		})
		g.Go(func() error {
			return hub.Run(ctx)
		})
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
	}, handlers, hub, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("server shutdown failed",
				slog.String("error", err.Error()),
			)
		}
		return ctx.Err()
	})
}
