package ledgerstate

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/papertrade/internal/domain"
)

type ledgerStore interface {
	Load(ctx context.Context, key string) (domain.Ledger, error)
	Save(ctx context.Context, key string, l domain.Ledger) error
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func sampleLedger() domain.Ledger {
	ts := time.Date(2024, 3, 9, 10, 11, 12, 345000000, time.UTC)
	l := domain.NewLedger()
	l.Wallet = d("10340.00")
	l.Holdings["BTC"] = domain.Holding{Quantity: d("1"), AvgPrice: d("150")}
	l.Holdings["ETH"] = domain.Holding{Quantity: d("0.0001"), AvgPrice: d("3333.3333333333333333")}
	l.History = append(l.History,
		domain.Transaction{ID: "1", Timestamp: ts, Action: domain.ActionBuy, AssetID: "BTC", Quantity: d("2"), Price: d("100")},
		domain.Transaction{ID: "2", Timestamp: ts.Add(time.Minute), Action: domain.ActionBuy, AssetID: "BTC", Quantity: d("2"), Price: d("200")},
		domain.Transaction{ID: "3", Timestamp: ts.Add(2 * time.Minute), Action: domain.ActionSell, AssetID: "BTC", Quantity: d("3"), Price: d("180"), Profit: decimal.NewNullDecimal(d("90"))},
		domain.Transaction{ID: "4", Timestamp: ts.Add(3 * time.Minute), Action: domain.ActionSell, AssetID: "SOL", Quantity: d("1"), Price: d("10"), Profit: decimal.NewNullDecimal(decimal.Zero)},
	)
	l.RealizedProfit = d("90")
	return l
}

func storesUnderTest(t *testing.T) map[string]ledgerStore {
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	return map[string]ledgerStore{
		"file":   fs,
		"memory": NewMemoryStore(),
	}
}

func TestStores_DefaultBootstrap(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			l, err := store.Load(context.Background(), "never-seen")
			require.NoError(t, err)

			assert.True(t, l.Wallet.Equal(d("10000.00")))
			assert.Empty(t, l.Holdings)
			assert.Empty(t, l.History)
			assert.True(t, l.RealizedProfit.IsZero())
		})
	}
}

func TestStores_RoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			want := sampleLedger()
			require.NoError(t, store.Save(ctx, "alice", want))

			got, err := store.Load(ctx, "alice")
			require.NoError(t, err)
			assert.True(t, want.Equal(got))
			assert.True(t, got.History[3].Profit.Valid, "zero profit must survive the round trip")
			assert.False(t, got.History[0].Profit.Valid)

			// save(load) then load reproduces the same ledger
			require.NoError(t, store.Save(ctx, "alice", got))
			again, err := store.Load(ctx, "alice")
			require.NoError(t, err)
			assert.True(t, want.Equal(again))
		})
	}
}

func TestStores_OverwriteAndIsolation(t *testing.T) {
	ctx := context.Background()
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Save(ctx, "alice", sampleLedger()))
			require.NoError(t, store.Save(ctx, "alice", domain.NewLedger()))

			got, err := store.Load(ctx, "alice")
			require.NoError(t, err)
			assert.True(t, got.Equal(domain.NewLedger()))

			require.NoError(t, store.Save(ctx, "bob", sampleLedger()))
			alice, err := store.Load(ctx, "alice")
			require.NoError(t, err)
			assert.Empty(t, alice.History)
		})
	}
}

func TestStores_EmptyKey(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Load(context.Background(), " \t ")
			var perr *domain.PersistenceError
			require.ErrorAs(t, err, &perr)

			err = store.Save(context.Background(), "", domain.NewLedger())
			require.ErrorAs(t, err, &perr)
		})
	}
}

func TestFileStore_CorruptRecord(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	tests := []struct {
		name    string
		payload string
	}{
		{name: "not json", payload: "{wallet"},
		{name: "bad number", payload: `{"wallet": "ten"}`},
		{name: "negative wallet", payload: `{"wallet": -5, "holdings": {}, "history": [], "realized_profit": 0}`},
		{name: "profit mismatch", payload: `{"wallet": 1, "holdings": {}, "history": [], "realized_profit": 7}`},
		{name: "empty object", payload: "{}"},
		{name: "null", payload: "null"},
		{name: "missing realized profit", payload: `{"wallet": 1, "holdings": {}, "history": []}`},
		{name: "missing avg price", payload: `{"wallet": 1, "holdings": {"BTC": {"quantity": 1}}, "history": [], "realized_profit": 0}`},
		{name: "missing trade price", payload: `{"wallet": 1, "holdings": {}, "history": [{"timestamp": "2024-01-01T00:00:00Z", "action": "BUY", "asset_id": "BTC", "quantity": 1}], "realized_profit": 0}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, err := store.Path("carol")
			require.NoError(t, err)
			require.NoError(t, os.WriteFile(path, []byte(tt.payload), 0o644))

			_, err = store.Load(context.Background(), "carol")
			var perr *domain.PersistenceError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, "load", perr.Op)
		})
	}
}

func TestFileStore_WritesNumbers(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), "Dave Smith", sampleLedger()))

	path, err := store.Path("Dave Smith")
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))
	payload, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(payload), `"wallet": 10340`)
	assert.Contains(t, string(payload), `"avg_price": 150`)
	assert.Contains(t, string(payload), `"profit": 0`)
	assert.Contains(t, string(payload), `"action": "SELL"`)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestFileStore_AcceptsQuotedNumbers(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	payload := `{"wallet": "9800", "holdings": {"BTC": {"quantity": "2", "avg_price": "100"}},
	"history": [{"timestamp": "2024-01-01T00:00:00Z", "action": "BUY", "asset_id": "BTC", "quantity": 2, "price": 100}],
	"realized_profit": 0}`
	path, err := store.Path("erin")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o644))

	l, err := store.Load(context.Background(), "erin")
	require.NoError(t, err)
	assert.True(t, l.Wallet.Equal(d("9800")))
	assert.True(t, l.Holdings["BTC"].AvgPrice.Equal(d("100")))
}

func TestFileStore_FailedSaveKeepsPriorState(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}

	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	prior := sampleLedger()
	require.NoError(t, store.Save(ctx, "frank", prior))

	require.NoError(t, os.Chmod(dir, 0o500))
	t.Cleanup(func() { _ = os.Chmod(dir, 0o755) })

	err = store.Save(ctx, "frank", domain.NewLedger())
	var perr *domain.PersistenceError
	require.ErrorAs(t, err, &perr)

	got, err := store.Load(ctx, "frank")
	require.NoError(t, err)
	assert.True(t, prior.Equal(got))
}

func TestStores_SimilarKeysDoNotCollide(t *testing.T) {
	ctx := context.Background()
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Save(ctx, "alice.smith", sampleLedger()))

			for _, other := range []string{"alice_smith", "Alice.Smith", "alice smith", "用户", "пользователь"} {
				got, err := store.Load(ctx, other)
				require.NoError(t, err, other)
				assert.True(t, got.Equal(domain.NewLedger()), other)
			}

			require.NoError(t, store.Save(ctx, "用户", domain.NewLedger()))
			got, err := store.Load(ctx, "alice.smith")
			require.NoError(t, err)
			assert.True(t, got.Equal(sampleLedger()))

			// surrounding whitespace is not part of the key
			got, err = store.Load(ctx, "  alice.smith\n")
			require.NoError(t, err)
			assert.True(t, got.Equal(sampleLedger()))
		})
	}
}
