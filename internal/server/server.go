// Package server assembles the HTTP + WebSocket API for the control
// loop: route registration, middleware chain, and lifecycle.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/phindlabs/revloop/internal/server/handler"
	"github.com/phindlabs/revloop/internal/server/middleware"
	"github.com/phindlabs/revloop/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled
}

// Handlers aggregates every handler the server registers.
type Handlers struct {
	Health        *handler.HealthHandler
	Status        *handler.StatusHandler
	Tasks         *handler.TaskHandler
	Profit        *handler.ProfitHandler
	Risk          *handler.RiskHandler
	Opportunities *handler.OpportunityHandler
	Evolution     *handler.EvolutionHandler
}

// Server is the headless API server for the control loop.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered and the
// middleware chain (auth, logging, CORS) applied.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required for the rest of the chain either;
	// auth applies uniformly when configured).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Control-loop status.
	mux.HandleFunc("GET /api/status", handlers.Status.GetStatus)

	// Task pool.
	mux.HandleFunc("POST /api/tasks", handlers.Tasks.SubmitTask)
	mux.HandleFunc("GET /api/tasks/performance", handlers.Tasks.GetPerformance)

	// Profit ledger.
	mux.HandleFunc("GET /api/profit", handlers.Profit.GetProfit)
	mux.HandleFunc("GET /api/profit/summary", handlers.Profit.GetSummary)
	mux.HandleFunc("POST /api/profit/expenses", handlers.Profit.RecordExpense)

	// Risk monitor.
	mux.HandleFunc("GET /api/risk", handlers.Risk.GetStatus)
	mux.HandleFunc("GET /api/risk/violations", handlers.Risk.ListViolations)
	mux.HandleFunc("PUT /api/risk/thresholds", handlers.Risk.UpdateThresholds)

	// Opportunity alerts.
	mux.HandleFunc("GET /api/opportunities", handlers.Opportunities.ListOpportunities)
	mux.HandleFunc("GET /api/opportunities/summary", handlers.Opportunities.GetSummary)
	mux.HandleFunc("POST /api/opportunities/{id}/action", handlers.Opportunities.MarkActioned)
	mux.HandleFunc("PUT /api/opportunities/thresholds", handlers.Opportunities.UpdateThresholds)

	// Evolution engine.
	mux.HandleFunc("GET /api/evolution", handlers.Evolution.GetSummary)
	mux.HandleFunc("GET /api/evolution/state", handlers.Evolution.ExportState)
	mux.HandleFunc("PUT /api/evolution/state", handlers.Evolution.ImportState)

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey)(h)
	h = middleware.Logging(logger)(h)
	h = corsMiddleware(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening and blocks until the server stops.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

// corsMiddleware sets CORS headers for the allowed origins. An empty
// list allows all origins.
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if origin != "" {
				allowed := len(allowedOrigins) == 0
				for _, o := range allowedOrigins {
					if strings.EqualFold(o, "*") || strings.EqualFold(o, origin) {
						allowed = true
						break
					}
				}

				if allowed {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
					w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")
					w.Header().Set("Access-Control-Max-Age", "86400")
				}
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
