// Package server exposes the control-plane HTTP and WebSocket API: ledger
// reads, the recommendation approval gate, operator controls, and
// Prometheus metrics.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Nostem/Auto-Trading-Bot/internal/server/handler"
	"github.com/Nostem/Auto-Trading-Bot/internal/server/middleware"
	"github.com/Nostem/Auto-Trading-Bot/internal/server/ws"
)

// Config holds the HTTP server parameters.
type Config struct {
	Port        int
	CORSOrigins []string
}

// Handlers aggregates everything the server registers.
type Handlers struct {
	Health          *handler.HealthHandler
	Status          *handler.StatusHandler
	Trades          *handler.TradeHandler
	Positions       *handler.PositionHandler
	Reflections     *handler.ReflectionHandler
	Recommendations *handler.RecommendationHandler
	Controls        *handler.ControlHandler
}

// Server is the control-plane HTTP + WebSocket server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers all routes and builds the middleware chain.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.HandleFunc("GET /api/status", handlers.Status.GetStatus)

	mux.HandleFunc("GET /api/trades", handlers.Trades.ListTrades)
	mux.HandleFunc("GET /api/trades/{id}", handlers.Trades.GetTrade)

	mux.HandleFunc("GET /api/positions", handlers.Positions.ListPositions)

	mux.HandleFunc("GET /api/reflections", handlers.Reflections.ListReflections)
	mux.HandleFunc("GET /api/reports/weekly", handlers.Reflections.ListWeeklyReports)

	mux.HandleFunc("GET /api/recommendations", handlers.Recommendations.ListRecommendations)
	mux.HandleFunc("POST /api/recommendations/{id}/approve", handlers.Recommendations.ApproveRecommendation)
	mux.HandleFunc("POST /api/recommendations/{id}/deny", handlers.Recommendations.DenyRecommendation)

	mux.HandleFunc("POST /api/controls/pause", handlers.Controls.Pause)
	mux.HandleFunc("POST /api/controls/resume", handlers.Controls.Resume)
	mux.HandleFunc("POST /api/controls/reset-breaker", handlers.Controls.ResetBreaker)
	mux.HandleFunc("GET /api/settings", handlers.Controls.GetSettings)
	mux.HandleFunc("PUT /api/settings/{key}", handlers.Controls.PutSetting)

	mux.Handle("GET /metrics", promhttp.Handler())

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      h,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger.With("component", "server"),
	}
}

// Start blocks serving requests until Shutdown or a listener error.
func (s *Server) Start() error {
	s.logger.Info("starting", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
