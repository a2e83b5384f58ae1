// Package history persists observed transactions and audit log entries to
// SQLite so the dashboard API can serve telemetry older than the in-memory
// buffers.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/flowpay/opsdeck/internal/feed"
	"github.com/flowpay/opsdeck/internal/stream"
)

// Store is a SQLite-backed stream.Recorder.
type Store struct {
	db *sql.DB
}

var _ stream.Recorder = (*Store)(nil)

// Open opens (or creates) the database at path. Use ":memory:" in tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS transactions (
			id TEXT NOT NULL,
			amount REAL NOT NULL,
			currency TEXT NOT NULL,
			merchant_id TEXT NOT NULL,
			bank_name TEXT NOT NULL,
			payment_method TEXT NOT NULL,
			status TEXT NOT NULL,
			error_code TEXT,
			latency_ms INTEGER NOT NULL,
			occurred_at TEXT NOT NULL,
			recorded_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS log_entries (
			id TEXT PRIMARY KEY,
			category TEXT NOT NULL,
			message TEXT NOT NULL,
			agent TEXT,
			action TEXT,
			confidence REAL,
			bank_name TEXT,
			status TEXT,
			amount REAL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_recorded ON transactions(recorded_at)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_bank ON transactions(bank_name)`,
		`CREATE INDEX IF NOT EXISTS idx_log_entries_created ON log_entries(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_log_entries_category ON log_entries(category)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}

// RecordTransaction appends one observed transaction.
func (s *Store) RecordTransaction(ctx context.Context, txn *feed.Transaction) error {
	query := `INSERT INTO transactions
	          (id, amount, currency, merchant_id, bank_name, payment_method, status, error_code, latency_ms, occurred_at, recorded_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		txn.ID, txn.Amount, txn.Currency, txn.MerchantID, txn.BankName,
		string(txn.PaymentMethod), string(txn.Status), txn.ErrorCode,
		txn.LatencyMs, txn.Timestamp, time.Now())

	if err != nil {
		return fmt.Errorf("failed to record transaction: %w", err)
	}
	return nil
}

// RecordLog appends one audit log entry.
func (s *Store) RecordLog(ctx context.Context, entry *stream.LogEntry) error {
	query := `INSERT INTO log_entries
	          (id, category, message, agent, action, confidence, bank_name, status, amount, created_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		entry.ID, entry.Category, entry.Message, entry.Agent, entry.Action,
		entry.Confidence, entry.BankName, entry.Status, entry.Amount, entry.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to record log entry: %w", err)
	}
	return nil
}

// RecentTransactions returns the most recently recorded transactions,
// newest first.
func (s *Store) RecentTransactions(ctx context.Context, limit int) ([]feed.Transaction, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT id, amount, currency, merchant_id, bank_name, payment_method, status, error_code, latency_ms, occurred_at
	          FROM transactions ORDER BY recorded_at DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txns []feed.Transaction
	for rows.Next() {
		var txn feed.Transaction
		var errorCode sql.NullString
		if err := rows.Scan(&txn.ID, &txn.Amount, &txn.Currency, &txn.MerchantID,
			&txn.BankName, &txn.PaymentMethod, &txn.Status, &errorCode,
			&txn.LatencyMs, &txn.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		if errorCode.Valid {
			txn.ErrorCode = errorCode.String
		}
		txns = append(txns, txn)
	}

	return txns, rows.Err()
}

// RecentLogs returns the most recently recorded log entries, newest first.
func (s *Store) RecentLogs(ctx context.Context, limit int) ([]stream.LogEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT id, category, message, agent, action, confidence, bank_name, status, amount, created_at
	          FROM log_entries ORDER BY created_at DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query log entries: %w", err)
	}
	defer rows.Close()

	var entries []stream.LogEntry
	for rows.Next() {
		var e stream.LogEntry
		var agent, action, bank, status sql.NullString
		var confidence, amount sql.NullFloat64
		if err := rows.Scan(&e.ID, &e.Category, &e.Message, &agent, &action,
			&confidence, &bank, &status, &amount, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan log entry: %w", err)
		}
		e.Agent = agent.String
		e.Action = action.String
		e.Confidence = confidence.Float64
		e.BankName = bank.String
		e.Status = status.String
		e.Amount = amount.Float64
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
