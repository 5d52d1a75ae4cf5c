package web

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/papertrade/internal/domain"
	"github.com/vadiminshakov/papertrade/internal/session"
	"github.com/vadiminshakov/papertrade/internal/storage/ledgerstate"
	"github.com/vadiminshakov/papertrade/internal/storage/tradelog"
)

type stubMarket struct {
	mu      sync.Mutex
	prices  map[string]decimal.Decimal
	assets  []domain.Asset
	history []domain.PricePoint
}

func (m *stubMarket) ListAssets(context.Context) ([]domain.Asset, error) {
	return m.assets, nil
}

func (m *stubMarket) CurrentPrice(_ context.Context, id string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prices[id]
	if !ok {
		return decimal.Zero, errors.New("no ticker")
	}
	return p, nil
}

func (m *stubMarket) PriceHistory(_ context.Context, _ string, days int) ([]domain.PricePoint, error) {
	if days > len(m.history) {
		return m.history, nil
	}
	return m.history[:days], nil
}

// memJournal keeps entries in memory with WAL-like 1-based indexes.
type memJournal struct {
	mu      sync.Mutex
	entries []tradelog.Entry
}

func (j *memJournal) Append(e tradelog.Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, e)
	return nil
}

func (j *memJournal) RecordsAfter(index uint64) ([]tradelog.Record, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []tradelog.Record
	for i := index; i < uint64(len(j.entries)); i++ {
		out = append(out, tradelog.Record{Index: i + 1, Entry: j.entries[i]})
	}
	return out, nil
}

func newTestServer(t *testing.T) (*Server, *memJournal) {
	t.Helper()

	market := &stubMarket{
		prices: map[string]decimal.Decimal{"BTC": decimal.NewFromInt(100)},
		assets: []domain.Asset{{ID: "BTC", Symbol: "BTCUSDT", Name: "BTC"}},
		history: []domain.PricePoint{
			{Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Price: decimal.NewFromInt(90)},
			{Timestamp: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Price: decimal.NewFromInt(100)},
		},
	}
	journal := &memJournal{}
	svc := session.NewService(ledgerstate.NewMemoryStore(), market, session.WithJournal(journal))

	s := NewServer(":0", svc, journal, 7, nil)
	s.pollInterval = 10 * time.Millisecond
	s.heartbeatInterval = time.Hour
	return s, journal
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestLedger_NewUserGetsStartingBalance(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s.Handler(), http.MethodGet, "/api/users/alice/ledger", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ledgerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "alice", resp.User)
	assert.True(t, resp.Wallet.Equal(domain.StartingBalance))
	assert.Empty(t, resp.Holdings)
	assert.Empty(t, resp.Recent)
}

func TestTrade_BuyThenSell(t *testing.T) {
	s, journal := newTestServer(t)
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/api/users/alice/trades", `{"action":"buy","asset_id":"btc","quantity":"0.5"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var buy tradeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &buy))
	assert.Equal(t, domain.ActionBuy, buy.Transaction.Action)
	assert.Nil(t, buy.Transaction.Profit)
	assert.True(t, buy.Wallet.Equal(decimal.NewFromInt(9950)), buy.Wallet.String())
	require.NotNil(t, buy.Holding)
	assert.True(t, buy.Holding.Quantity.Equal(decimal.RequireFromString("0.5")))

	rec = do(t, h, http.MethodPost, "/api/users/alice/trades", `{"action":"SELL","asset_id":"BTC","quantity":0.5}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var sell tradeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sell))
	require.NotNil(t, sell.Transaction.Profit, "sell always carries profit")
	assert.True(t, sell.Transaction.Profit.IsZero())
	assert.Nil(t, sell.Holding)
	assert.True(t, sell.Wallet.Equal(domain.StartingBalance))

	assert.Len(t, journal.entries, 2)

	rec = do(t, h, http.MethodGet, "/api/users/alice/ledger", "")
	var view ledgerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Len(t, view.Recent, 2)
	assert.Equal(t, domain.ActionSell, view.Recent[0].Action, "newest first")
}

func TestTrade_ErrorStatuses(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{name: "bad json", body: `{`, status: http.StatusBadRequest},
		{name: "unknown action", body: `{"action":"hold","asset_id":"BTC","quantity":"1"}`, status: http.StatusBadRequest},
		{name: "zero quantity", body: `{"action":"buy","asset_id":"BTC","quantity":"0"}`, status: http.StatusBadRequest},
		{name: "too many places", body: `{"action":"buy","asset_id":"BTC","quantity":"0.00001"}`, status: http.StatusBadRequest},
		{name: "insufficient funds", body: `{"action":"buy","asset_id":"BTC","quantity":"1000"}`, status: http.StatusConflict},
		{name: "insufficient holdings", body: `{"action":"sell","asset_id":"BTC","quantity":"1"}`, status: http.StatusConflict},
		{name: "price unavailable", body: `{"action":"buy","asset_id":"NOPE","quantity":"1"}`, status: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/users/bob/trades", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())

			var resp errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Error)
		})
	}

	rec := do(t, h, http.MethodGet, "/api/users/bob/ledger", "")
	var view ledgerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.True(t, view.Wallet.Equal(domain.StartingBalance), "rejected trades leave the ledger untouched")
}

func TestMarketEndpoints(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/api/assets", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var assets []domain.Asset
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &assets))
	assert.Equal(t, "BTC", assets[0].ID)

	rec = do(t, h, http.MethodGet, "/api/assets/btc/price", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"asset_id":"BTC"`)

	rec = do(t, h, http.MethodGet, "/api/assets/doge/price", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/assets/BTC/history?days=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var points []domain.PricePoint
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &points))
	assert.Len(t, points, 1)

	rec = do(t, h, http.MethodGet, "/api/assets/BTC/history?days=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthIndexAndMetrics(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "EventSource('/trades/stream')")

	rec = do(t, h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "papertrade_http_requests_total")
}

func readEvents(t *testing.T, url string, header http.Header, want int) []string {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	var events []string
	scanner := bufio.NewScanner(resp.Body)
	for len(events) < want && scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "event: ") || strings.HasPrefix(line, "id: ") {
			events = append(events, line)
		}
	}
	return events
}

func TestTradeStream(t *testing.T) {
	s, journal := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	t.Run("empty journal", func(t *testing.T) {
		events := readEvents(t, srv.URL+"/trades/stream", nil, 1)
		assert.Equal(t, []string{"event: no_data"}, events)
	})

	require.NoError(t, journal.Append(tradelog.Entry{User: "alice", ID: "1", Action: domain.ActionBuy, AssetID: "BTC"}))
	require.NoError(t, journal.Append(tradelog.Entry{User: "bob", ID: "2", Action: domain.ActionBuy, AssetID: "BTC"}))
	require.NoError(t, journal.Append(tradelog.Entry{User: "alice", ID: "3", Action: domain.ActionSell, AssetID: "BTC"}))

	t.Run("replays from the start", func(t *testing.T) {
		events := readEvents(t, srv.URL+"/trades/stream", nil, 6)
		assert.Equal(t, []string{"id: 1", "event: trade", "id: 2", "event: trade", "id: 3", "event: trade"}, events)
	})

	t.Run("resumes after last event id", func(t *testing.T) {
		events := readEvents(t, srv.URL+"/trades/stream", http.Header{"Last-Event-Id": {"2"}}, 2)
		assert.Equal(t, []string{"id: 3", "event: trade"}, events)
	})

	t.Run("filters by user", func(t *testing.T) {
		events := readEvents(t, srv.URL+"/trades/stream?user=%20bob%20", nil, 2)
		assert.Equal(t, []string{"id: 2", "event: trade"}, events)
	})

	t.Run("pushes new trades", func(t *testing.T) {
		go func() {
			time.Sleep(50 * time.Millisecond)
			_ = journal.Append(tradelog.Entry{User: "carol", ID: "4", Action: domain.ActionBuy, AssetID: "ETH"})
		}()
		events := readEvents(t, srv.URL+"/trades/stream?last_event_id=3", nil, 3)
		assert.Equal(t, []string{"event: no_data", "id: 4", "event: trade"}, events)
	})
}

func TestTradeStream_NoJournal(t *testing.T) {
	svc := session.NewService(ledgerstate.NewMemoryStore(), &stubMarket{})
	s := NewServer(":0", svc, nil, 7, nil)

	rec := do(t, s.Handler(), http.MethodGet, "/trades/stream", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
