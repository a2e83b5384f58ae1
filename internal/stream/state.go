package stream

import (
	"time"

	"github.com/flowpay/opsdeck/internal/feed"
)

// Buffer caps. Oldest entries are evicted silently once a cap is reached.
const (
	maxLogEntries   = 100
	maxTransactions = 50
	maxHistory      = 60
)

// LogEntry is one human-readable audit line derived from a stream frame.
type LogEntry struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	Category   string    `json:"category"`
	Message    string    `json:"message"`
	Agent      string    `json:"agent,omitempty"`
	Action     string    `json:"action,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
	BankName   string    `json:"bank_name,omitempty"`
	Status     string    `json:"status,omitempty"`
	Amount     float64   `json:"amount,omitempty"`
}

// Log entry categories.
const (
	CategorySystem      = "system"
	CategoryTransaction = "transaction"
	CategoryDecision    = "decision"
	CategoryEscalation  = "escalation"
)

// MetricsHistoryPoint is one chart sample derived from a metrics frame.
type MetricsHistoryPoint struct {
	TimeLabel          string  `json:"time"`
	SuccessRatePercent float64 `json:"success_rate_pct"`
}

// Escalation is the currently active council debate, if any. It expires
// automatically unless superseded by a newer debate first.
type Escalation struct {
	feed.CouncilDebate
	ReceivedAt time.Time `json:"received_at"`
}

// State is a point-in-time read of everything the session derives from the
// stream. Slices are replaced wholesale on every update, so a State handed
// to a consumer is never mutated underneath it.
type State struct {
	Connected    bool                  `json:"connected"`
	Metrics      feed.SystemMetrics    `json:"metrics"`
	Logs         []LogEntry            `json:"logs"`
	Transactions []feed.Transaction    `json:"transactions"`
	History      []MetricsHistoryPoint `json:"history"`
	Escalation   *Escalation           `json:"escalation,omitempty"`
}

// defaultMetrics is the snapshot exposed before the first metrics frame
// arrives. Success rate starts at 1 so the dashboard reads healthy, not
// failing, while waiting for data.
func defaultMetrics() feed.SystemMetrics {
	return feed.SystemMetrics{SuccessRate: 1}
}
