package tradelog

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/papertrade/internal/domain"
)

func testTx(id string, action domain.Action, profit *decimal.Decimal) domain.Transaction {
	tx := domain.Transaction{
		ID:        id,
		Timestamp: time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC),
		Action:    action,
		AssetID:   "BTC",
		Quantity:  decimal.RequireFromString("0.5"),
		Price:     decimal.NewFromInt(60000),
	}
	if profit != nil {
		tx.Profit = decimal.NewNullDecimal(*profit)
	}
	return tx
}

func TestWALStore_AppendAndRecordsAfter(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, uint64(0), store.CurrentIndex())

	zero := decimal.Zero
	require.NoError(t, store.Append(NewEntry("alice", testTx("b1", domain.ActionBuy, nil), "-")))
	require.NoError(t, store.Append(NewEntry("bob", testTx("b2", domain.ActionBuy, nil), "-")))
	require.NoError(t, store.Append(NewEntry("alice", testTx("s1", domain.ActionSell, &zero), "-")))

	assert.Equal(t, uint64(3), store.CurrentIndex())

	all, err := store.RecordsAfter(0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, uint64(1), all[0].Index)
	assert.Equal(t, "alice", all[0].Entry.User)
	assert.Equal(t, "0.5", all[0].Entry.Quantity)
	assert.Empty(t, all[0].Entry.Profit)
	assert.Equal(t, "0", all[2].Entry.Profit)

	tail, err := store.RecordsAfter(2)
	require.NoError(t, err)
	require.Len(t, tail, 1)
	assert.Equal(t, "s1", tail[0].Entry.ID)
	assert.Equal(t, domain.ActionSell, tail[0].Entry.Action)

	none, err := store.RecordsAfter(3)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestWALStore_RequiresUser(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	err = store.Append(NewEntry("", testTx("b1", domain.ActionBuy, nil), "0"))
	assert.Error(t, err)
}

func TestWALStore_ReopenKeepsEntries(t *testing.T) {
	dir := t.TempDir()
	store, err := NewWALStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Append(NewEntry("alice", testTx("b1", domain.ActionBuy, nil), "9000")))
	require.NoError(t, store.Close())

	reopened, err := NewWALStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	records, err := reopened.RecordsAfter(0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "9000", records[0].Entry.Wallet)
}

func TestWALStore_NilSafe(t *testing.T) {
	var store *WALStore
	assert.Equal(t, uint64(0), store.CurrentIndex())
	_, err := store.RecordsAfter(0)
	assert.Error(t, err)
	assert.Error(t, store.Append(Entry{User: "x"}))
}
