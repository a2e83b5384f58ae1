package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/flowpay/opsdeck/internal/feed"
	"github.com/flowpay/opsdeck/internal/stream"
)

type stubFeed struct {
	state stream.State
}

func (f *stubFeed) State() stream.State                   { return f.state }
func (f *stubFeed) Metrics() feed.SystemMetrics           { return f.state.Metrics }
func (f *stubFeed) Logs() []stream.LogEntry               { return f.state.Logs }
func (f *stubFeed) Transactions() []feed.Transaction      { return f.state.Transactions }
func (f *stubFeed) History() []stream.MetricsHistoryPoint { return f.state.History }
func (f *stubFeed) Connected() bool                       { return f.state.Connected }

type stubChaos struct {
	mu      sync.Mutex
	injects []string
	resets  int
	err     error
}

func (c *stubChaos) Inject(ctx context.Context, bank string, rate float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.injects = append(c.injects, bank)
	return c.err
}

func (c *stubChaos) Reset(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resets++
	return c.err
}

type stubHistory struct {
	txns []feed.Transaction
	logs []stream.LogEntry
	err  error
}

func (h *stubHistory) RecentTransactions(ctx context.Context, limit int) ([]feed.Transaction, error) {
	return h.txns, h.err
}

func (h *stubHistory) RecentLogs(ctx context.Context, limit int) ([]stream.LogEntry, error) {
	return h.logs, h.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(f Feed, c ChaosController, h HistoryReader) *httptest.Server {
	return httptest.NewServer(New(0, testLogger(), f, c, h).Router)
}

func getJSON(t *testing.T, url string, v any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp
}

func TestStateEndpoint(t *testing.T) {
	f := &stubFeed{state: stream.State{
		Connected: true,
		Metrics:   feed.SystemMetrics{TotalTransactions: 12, SuccessRate: 0.75},
		Transactions: []feed.Transaction{
			{ID: "txn-1", BankName: "HDFC", Status: feed.StatusFailed},
		},
	}}
	ts := newTestServer(f, &stubChaos{}, nil)
	defer ts.Close()

	var got stream.State
	resp := getJSON(t, ts.URL+"/api/state", &got)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if !got.Connected {
		t.Error("connected = false, want true")
	}
	if got.Metrics.SuccessRate != 0.75 {
		t.Errorf("success rate = %v, want 0.75", got.Metrics.SuccessRate)
	}
	if len(got.Transactions) != 1 || got.Transactions[0].ID != "txn-1" {
		t.Errorf("transactions = %+v", got.Transactions)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}

func TestEmptyBuffersSerializeAsArrays(t *testing.T) {
	ts := newTestServer(&stubFeed{}, &stubChaos{}, nil)
	defer ts.Close()

	for _, path := range []string{"/api/logs", "/api/transactions", "/api/history"} {
		t.Run(path, func(t *testing.T) {
			resp, err := http.Get(ts.URL + path)
			if err != nil {
				t.Fatalf("GET %s: %v", path, err)
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				t.Fatalf("read body: %v", err)
			}
			if got := strings.TrimSpace(string(body)); got != "[]" {
				t.Errorf("body = %q, want [] not null", got)
			}
		})
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(&stubFeed{state: stream.State{Connected: true}}, &stubChaos{}, nil)
	defer ts.Close()

	var got map[string]any
	resp := getJSON(t, ts.URL+"/health", &got)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if got["status"] != "healthy" {
		t.Errorf("status field = %v, want healthy", got["status"])
	}
	if got["connected"] != true {
		t.Errorf("connected field = %v, want true", got["connected"])
	}
}

func TestChaosInject(t *testing.T) {
	c := &stubChaos{}
	ts := newTestServer(&stubFeed{}, c, nil)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/chaos/HDFC", "application/json",
		strings.NewReader(`{"failure_rate":0.6}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("status = %d, want 202", resp.StatusCode)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.injects) != 1 || c.injects[0] != "HDFC" {
		t.Errorf("injects = %v, want [HDFC]", c.injects)
	}
}

func TestChaosInjectDownstreamFailureStillAccepted(t *testing.T) {
	c := &stubChaos{err: errors.New("backend down")}
	ts := newTestServer(&stubFeed{}, c, nil)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/chaos/HDFC", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()

	// Fire and forget: a downstream failure is logged, not surfaced.
	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("status = %d, want 202", resp.StatusCode)
	}
}

func TestChaosReset(t *testing.T) {
	c := &stubChaos{}
	ts := newTestServer(&stubFeed{}, c, nil)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/chaos/reset", "application/json", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("status = %d, want 202", resp.StatusCode)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.resets != 1 {
		t.Errorf("resets = %d, want 1", c.resets)
	}
}

func TestHistoryEndpoints(t *testing.T) {
	h := &stubHistory{
		txns: []feed.Transaction{{ID: "txn-old", BankName: "SBI"}},
		logs: []stream.LogEntry{{ID: "log-1", Category: stream.CategorySystem, Message: "hello"}},
	}
	ts := newTestServer(&stubFeed{}, &stubChaos{}, h)
	defer ts.Close()

	var txns []feed.Transaction
	getJSON(t, ts.URL+"/api/history/transactions?limit=5", &txns)
	if len(txns) != 1 || txns[0].ID != "txn-old" {
		t.Errorf("history transactions = %+v", txns)
	}

	var logs []stream.LogEntry
	getJSON(t, ts.URL+"/api/history/logs", &logs)
	if len(logs) != 1 || logs[0].Message != "hello" {
		t.Errorf("history logs = %+v", logs)
	}
}

func TestHistoryDisabled(t *testing.T) {
	ts := newTestServer(&stubFeed{}, &stubChaos{}, nil)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/history/transactions")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404 when persistence disabled", resp.StatusCode)
	}
}

func TestHistoryQueryFailure(t *testing.T) {
	h := &stubHistory{err: errors.New("db locked")}
	ts := newTestServer(&stubFeed{}, &stubChaos{}, h)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/history/logs")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
}
