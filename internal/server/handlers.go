package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"connected": s.feed.Connected(),
	})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.feed.State())
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.feed.Metrics())
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, orEmpty(s.feed.Logs()))
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, orEmpty(s.feed.Transactions()))
}

func (s *Server) handleHistorySeries(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, orEmpty(s.feed.History()))
}

func (s *Server) handleHistoryTransactions(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		http.NotFound(w, r)
		return
	}
	txns, err := s.history.RecentTransactions(r.Context(), limitParam(r))
	if err != nil {
		s.logger.Error("history query failed", slog.String("error", err.Error()))
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(txns))
}

func (s *Server) handleHistoryLogs(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		http.NotFound(w, r)
		return
	}
	entries, err := s.history.RecentLogs(r.Context(), limitParam(r))
	if err != nil {
		s.logger.Error("history query failed", slog.String("error", err.Error()))
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(entries))
}

type chaosRequest struct {
	FailureRate float64 `json:"failure_rate"`
}

// Chaos commands are fire and forget: the handler acknowledges with 202 and
// a downstream failure is only logged, never surfaced as an error state.
func (s *Server) handleChaosInject(w http.ResponseWriter, r *http.Request) {
	bank := chi.URLParam(r, "bank")

	// Empty body keeps the default failure rate.
	req := chaosRequest{FailureRate: 0.8}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.chaos.Inject(r.Context(), bank, req.FailureRate); err != nil {
		s.logger.Warn("chaos inject failed",
			slog.String("bank", bank),
			slog.String("error", err.Error()))
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":       "chaos_requested",
		"bank":         bank,
		"failure_rate": req.FailureRate,
	})
}

func (s *Server) handleChaosReset(w http.ResponseWriter, r *http.Request) {
	if err := s.chaos.Reset(r.Context()); err != nil {
		s.logger.Warn("chaos reset failed", slog.String("error", err.Error()))
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "chaos_reset_requested"})
}

func limitParam(r *http.Request) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return 0
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// orEmpty keeps JSON responses as [] instead of null for empty buffers.
func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
