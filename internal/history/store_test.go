package history

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/flowpay/opsdeck/internal/feed"
	"github.com/flowpay/opsdeck/internal/stream"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestTransactionRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	txn := &feed.Transaction{
		ID:            "txn-1",
		Amount:        999.99,
		Currency:      "INR",
		MerchantID:    "merch-7",
		BankName:      "SBI",
		PaymentMethod: feed.MethodNetBanking,
		Status:        feed.StatusFailed,
		ErrorCode:     "GATEWAY_5XX",
		LatencyMs:     2100,
		Timestamp:     "2026-08-29T11:00:00.000000",
	}
	if err := store.RecordTransaction(ctx, txn); err != nil {
		t.Fatalf("RecordTransaction() error = %v", err)
	}

	got, err := store.RecentTransactions(ctx, 10)
	if err != nil {
		t.Fatalf("RecentTransactions() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0] != *txn {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got[0], *txn)
	}
}

func TestRecentTransactionsOrderAndLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		txn := &feed.Transaction{
			ID:            fmt.Sprintf("txn-%d", i),
			Amount:        float64(i),
			Currency:      "INR",
			MerchantID:    "m",
			BankName:      "HDFC",
			PaymentMethod: feed.MethodUPI,
			Status:        feed.StatusSuccess,
			LatencyMs:     10,
			Timestamp:     "2026-08-29T11:00:00",
		}
		if err := store.RecordTransaction(ctx, txn); err != nil {
			t.Fatalf("RecordTransaction() error = %v", err)
		}
		// recorded_at granularity must separate the rows
		time.Sleep(2 * time.Millisecond)
	}

	got, err := store.RecentTransactions(ctx, 3)
	if err != nil {
		t.Fatalf("RecentTransactions() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0].ID != "txn-4" {
		t.Errorf("newest = %s, want txn-4", got[0].ID)
	}
}

func TestLogRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entry := &stream.LogEntry{
		ID:         uuid.New().String(),
		CreatedAt:  time.Now().UTC().Truncate(time.Second),
		Category:   stream.CategoryDecision,
		Message:    "student decided switch_gateway (92% confidence)",
		Agent:      "student",
		Action:     "switch_gateway",
		Confidence: 0.92,
	}
	if err := store.RecordLog(ctx, entry); err != nil {
		t.Fatalf("RecordLog() error = %v", err)
	}

	got, err := store.RecentLogs(ctx, 10)
	if err != nil {
		t.Fatalf("RecentLogs() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].Message != entry.Message || got[0].Agent != "student" || got[0].Confidence != 0.92 {
		t.Errorf("round trip mismatch: got %+v", got[0])
	}
}

func TestEmptyStore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	txns, err := store.RecentTransactions(ctx, 10)
	if err != nil {
		t.Fatalf("RecentTransactions() error = %v", err)
	}
	if len(txns) != 0 {
		t.Errorf("len = %d, want 0", len(txns))
	}

	logs, err := store.RecentLogs(ctx, 10)
	if err != nil {
		t.Fatalf("RecentLogs() error = %v", err)
	}
	if len(logs) != 0 {
		t.Errorf("len = %d, want 0", len(logs))
	}
}
