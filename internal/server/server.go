// Package server exposes the session's derived state over a local HTTP API
// and forwards chaos commands to the simulation-control backend. It is the
// headless stand-in for the browser dashboard panels.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/flowpay/opsdeck/internal/feed"
	"github.com/flowpay/opsdeck/internal/stream"
)

// Feed is the read side of the stream session.
type Feed interface {
	State() stream.State
	Metrics() feed.SystemMetrics
	Logs() []stream.LogEntry
	Transactions() []feed.Transaction
	History() []stream.MetricsHistoryPoint
	Connected() bool
}

// ChaosController triggers simulated faults against the backend.
type ChaosController interface {
	Inject(ctx context.Context, bank string, failureRate float64) error
	Reset(ctx context.Context) error
}

// HistoryReader serves persisted telemetry older than the in-memory buffers.
type HistoryReader interface {
	RecentTransactions(ctx context.Context, limit int) ([]feed.Transaction, error)
	RecentLogs(ctx context.Context, limit int) ([]stream.LogEntry, error)
}

// Server is the local dashboard API.
type Server struct {
	Router  *chi.Mux
	Port    int
	logger  *slog.Logger
	feed    Feed
	chaos   ChaosController
	history HistoryReader
}

// New builds the router. history may be nil when persistence is disabled;
// its endpoints then respond 404.
func New(port int, logger *slog.Logger, f Feed, c ChaosController, h HistoryReader) *Server {
	s := &Server{
		Router:  chi.NewRouter(),
		Port:    port,
		logger:  logger,
		feed:    f,
		chaos:   c,
		history: h,
	}

	r := s.Router
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(TimeoutMiddleware(30 * time.Second))
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "opsdeck")
	})

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/state", s.handleState)
		r.Get("/metrics", s.handleMetrics)
		r.Get("/logs", s.handleLogs)
		r.Get("/transactions", s.handleTransactions)
		r.Get("/history", s.handleHistorySeries)
		r.Get("/history/transactions", s.handleHistoryTransactions)
		r.Get("/history/logs", s.handleHistoryLogs)
		r.Post("/chaos/reset", s.handleChaosReset)
		r.Post("/chaos/{bank}", s.handleChaosInject)
	})

	return s
}

// Start blocks serving the API.
func (s *Server) Start() error {
	s.logger.Info("starting dashboard api", slog.Int("port", s.Port))
	return http.ListenAndServe(fmt.Sprintf(":%d", s.Port), s.Router)
}
