// Package stream maintains the live session to the payment ops feed: it
// owns the connect/reconnect lifecycle, decodes incoming frames, and
// reduces them into bounded snapshots for consumers to read.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flowpay/opsdeck/internal/feed"
)

// Recorder persists observed events as they arrive. Recording is best
// effort: the session logs failures and moves on.
type Recorder interface {
	RecordTransaction(ctx context.Context, txn *feed.Transaction) error
	RecordLog(ctx context.Context, entry *LogEntry) error
}

type connState int

const (
	stateIdle connState = iota
	stateConnecting
	stateOpen
	stateClosed
)

// Session is a reconnecting client for the feed. All derived state is
// guarded by one mutex; every frame is handled to completion under it, so
// consumers always observe either the pre- or post-frame snapshot.
type Session struct {
	url            string
	dial           DialFunc
	logger         *slog.Logger
	reconnectDelay time.Duration
	escalationTTL  time.Duration
	recorder       Recorder

	mu             sync.Mutex
	state          connState
	wantConnected  bool
	conn           Conn
	connGen        uint64
	reconnectTimer *time.Timer

	metrics       feed.SystemMetrics
	logs          []LogEntry
	transactions  []feed.Transaction
	history       []MetricsHistoryPoint
	escalation    *Escalation
	escalationGen uint64
}

// New creates a session for the given feed URL. The session is idle until
// Connect is called.
func New(url string, opts ...Option) (*Session, error) {
	if url == "" {
		return nil, fmt.Errorf("feed url required")
	}

	s := &Session{
		url:            url,
		dial:           DialWebSocket,
		logger:         slog.Default(),
		reconnectDelay: 3 * time.Second,
		escalationTTL:  10 * time.Second,
		metrics:        defaultMetrics(),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Connect begins the open-seeking cycle. It is idempotent: calling it while
// a connection attempt is in flight or a session is open does nothing.
func (s *Session) Connect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.wantConnected = true
	if s.state == stateConnecting || s.state == stateOpen {
		return
	}
	s.startLocked()
}

// Disconnect tears down the session: it cancels any pending reconnect,
// closes the transport if open, and keeps the session idle until Connect
// is called again. Idempotent.
func (s *Session) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.wantConnected = false
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	// Invalidate any in-flight dial or read loop.
	s.connGen++
	s.state = stateIdle
}

// startLocked begins a connection attempt. Caller holds s.mu.
func (s *Session) startLocked() {
	s.state = stateConnecting
	s.connGen++
	go s.run(s.connGen)
}

// run dials and then pumps frames until the connection dies. One run
// goroutine exists per connection generation; stale generations bail out
// without touching session state.
func (s *Session) run(gen uint64) {
	conn, err := s.dial(context.Background(), s.url)

	s.mu.Lock()
	if gen != s.connGen || !s.wantConnected {
		s.mu.Unlock()
		if err == nil {
			conn.Close()
		}
		return
	}
	if err != nil {
		s.logger.Warn("feed dial failed", slog.String("url", s.url), slog.String("error", err.Error()))
		s.scheduleReconnectLocked()
		s.mu.Unlock()
		return
	}
	s.conn = conn
	s.state = stateOpen
	s.appendLogLocked(&LogEntry{
		Category: CategorySystem,
		Message:  "Connected to payment ops feed",
	})
	s.logger.Info("feed connected", slog.String("url", s.url))
	s.mu.Unlock()

	for {
		data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		s.handleFrame(data)
	}

	s.mu.Lock()
	if gen == s.connGen {
		s.conn = nil
		s.appendLogLocked(&LogEntry{
			Category: CategorySystem,
			Message:  "Disconnected from payment ops feed",
		})
		s.logger.Warn("feed disconnected", slog.String("url", s.url))
		s.scheduleReconnectLocked()
	}
	s.mu.Unlock()
}

// scheduleReconnectLocked arms the fixed-delay reconnect timer, or parks
// the session in idle if Disconnect was requested. Caller holds s.mu.
func (s *Session) scheduleReconnectLocked() {
	if !s.wantConnected {
		s.state = stateIdle
		return
	}
	s.state = stateClosed
	s.reconnectTimer = time.AfterFunc(s.reconnectDelay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if !s.wantConnected || s.state == stateConnecting || s.state == stateOpen {
			return
		}
		s.startLocked()
	})
}

// handleFrame decodes and routes one raw message. Failures never propagate:
// a frame that cannot be decoded is dropped with a diagnostic, and an
// unknown kind is dropped silently so newer servers stay compatible.
func (s *Session) handleFrame(raw []byte) {
	frame, err := feed.ParseFrame(raw)
	if err != nil {
		s.logger.Warn("dropping malformed frame", slog.String("error", err.Error()))
		return
	}
	if !frame.Type.Known() {
		return
	}

	switch frame.Type {
	case feed.KindTransaction:
		s.handleTransaction(frame)
	case feed.KindDecision:
		s.handleDecision(frame)
	case feed.KindMetrics:
		s.handleMetrics(frame)
	case feed.KindCouncilDebate:
		s.handleCouncilDebate(frame)
	}
}

func (s *Session) handleTransaction(frame *feed.Frame) {
	var txn feed.Transaction
	if err := decodePayload(frame, &txn); err != nil {
		s.logger.Warn("dropping transaction frame", slog.String("error", err.Error()))
		return
	}

	msg := fmt.Sprintf("%s via %s: %s %.2f %s", txn.BankName, txn.PaymentMethod, txn.Currency, txn.Amount, txn.Status)
	if txn.ErrorCode != "" {
		msg += fmt.Sprintf(" (%s)", txn.ErrorCode)
	}
	entry := &LogEntry{
		Category: CategoryTransaction,
		Message:  msg,
		BankName: txn.BankName,
		Status:   string(txn.Status),
		Amount:   txn.Amount,
	}

	s.mu.Lock()
	s.transactions = prepend(s.transactions, txn, maxTransactions)
	s.appendLogLocked(entry)
	s.mu.Unlock()

	s.record(func(ctx context.Context, r Recorder) error {
		if err := r.RecordTransaction(ctx, &txn); err != nil {
			return err
		}
		return r.RecordLog(ctx, entry)
	})
}

func (s *Session) handleDecision(frame *feed.Frame) {
	var ev feed.DecisionEvent
	if err := decodePayload(frame, &ev); err != nil {
		s.logger.Warn("dropping decision frame", slog.String("error", err.Error()))
		return
	}

	entry := &LogEntry{
		Category:   CategoryDecision,
		Message:    fmt.Sprintf("%s decided %s (%.0f%% confidence)", ev.Decision.AgentSource, ev.Decision.Action, ev.Decision.ConfidenceScore*100),
		Agent:      string(ev.Decision.AgentSource),
		Action:     string(ev.Decision.Action),
		Confidence: ev.Decision.ConfidenceScore,
	}

	s.mu.Lock()
	s.appendLogLocked(entry)
	s.mu.Unlock()

	s.record(func(ctx context.Context, r Recorder) error {
		return r.RecordLog(ctx, entry)
	})
}

func (s *Session) handleMetrics(frame *feed.Frame) {
	var m feed.SystemMetrics
	if err := decodePayload(frame, &m); err != nil {
		s.logger.Warn("dropping metrics frame", slog.String("error", err.Error()))
		return
	}

	point := MetricsHistoryPoint{
		TimeLabel:          time.Now().Format("15:04:05"),
		SuccessRatePercent: m.SuccessRate * 100,
	}

	s.mu.Lock()
	s.metrics = m
	history := make([]MetricsHistoryPoint, 0, len(s.history)+1)
	history = append(history, s.history...)
	history = append(history, point)
	if len(history) > maxHistory {
		history = history[len(history)-maxHistory:]
	}
	s.history = history
	s.mu.Unlock()
}

func (s *Session) handleCouncilDebate(frame *feed.Frame) {
	var debate feed.CouncilDebate
	if err := decodePayload(frame, &debate); err != nil {
		s.logger.Warn("dropping council_debate frame", slog.String("error", err.Error()))
		return
	}

	entry := &LogEntry{
		Category: CategoryEscalation,
		Message:  fmt.Sprintf("Council decided %s after %dms debate", debate.FinalDecision.Action, debate.DurationMs),
		Agent:    string(feed.SourceTeacher),
		Action:   string(debate.FinalDecision.Action),
	}

	s.mu.Lock()
	// Last write wins: an active escalation is replaced without ceremony,
	// and the generation counter keeps its stale timer from clearing us.
	s.escalationGen++
	gen := s.escalationGen
	s.escalation = &Escalation{CouncilDebate: debate, ReceivedAt: time.Now()}
	s.appendLogLocked(entry)
	s.mu.Unlock()

	s.record(func(ctx context.Context, r Recorder) error {
		return r.RecordLog(ctx, entry)
	})

	time.AfterFunc(s.escalationTTL, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if gen == s.escalationGen {
			s.escalation = nil
		}
	})
}

// appendLogLocked prepends a log entry, assigning its identity, and evicts
// the oldest entry past the cap. Caller holds s.mu.
func (s *Session) appendLogLocked(entry *LogEntry) {
	entry.ID = uuid.New().String()
	entry.CreatedAt = time.Now()
	s.logs = prepend(s.logs, *entry, maxLogEntries)
}

// record invokes the recorder, if configured, outside the session lock.
func (s *Session) record(fn func(context.Context, Recorder) error) {
	if s.recorder == nil {
		return
	}
	if err := fn(context.Background(), s.recorder); err != nil {
		s.logger.Warn("record failed", slog.String("error", err.Error()))
	}
}

// prepend returns a new slice with v first, truncated to cap entries. The
// original slice is never mutated, so snapshots handed out earlier stay
// valid.
func prepend[T any](buf []T, v T, max int) []T {
	out := make([]T, 0, min(len(buf)+1, max))
	out = append(out, v)
	if len(buf) >= max {
		buf = buf[:max-1]
	}
	return append(out, buf...)
}

// Connected reports whether a live transport is open.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == stateOpen
}

// Metrics returns the latest metrics snapshot.
func (s *Session) Metrics() feed.SystemMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metrics
}

// Logs returns the audit log, newest first.
func (s *Session) Logs() []LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logs
}

// Transactions returns the observed transaction buffer, newest first.
func (s *Session) Transactions() []feed.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transactions
}

// History returns the success-rate chart series in chronological order.
func (s *Session) History() []MetricsHistoryPoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history
}

// Escalation returns the active council debate, or nil.
func (s *Session) Escalation() *Escalation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.escalation
}

// State returns a combined snapshot of everything the session tracks.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		Connected:    s.state == stateOpen,
		Metrics:      s.metrics,
		Logs:         s.logs,
		Transactions: s.transactions,
		History:      s.history,
		Escalation:   s.escalation,
	}
}

func decodePayload(frame *feed.Frame, v any) error {
	if len(frame.Data) == 0 {
		return fmt.Errorf("%s frame has no payload", frame.Type)
	}
	if err := json.Unmarshal(frame.Data, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", frame.Type, err)
	}
	return nil
}
