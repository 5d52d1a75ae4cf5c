package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func sellTx(id string, qty, price, profit string) Transaction {
	return Transaction{
		ID:        id,
		Timestamp: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Action:    ActionSell,
		AssetID:   "BTC",
		Quantity:  d(qty),
		Price:     d(price),
		Profit:    decimal.NewNullDecimal(d(profit)),
	}
}

func TestNewLedger(t *testing.T) {
	l := NewLedger()

	assert.True(t, l.Wallet.Equal(d("10000.00")))
	assert.Empty(t, l.Holdings)
	assert.Empty(t, l.History)
	assert.True(t, l.RealizedProfit.IsZero())
	require.NoError(t, l.Validate())
}

func TestLedger_CloneDoesNotAlias(t *testing.T) {
	l := NewLedger()
	l.Holdings["BTC"] = Holding{Quantity: d("1"), AvgPrice: d("100")}
	l.History = append(l.History, Transaction{ID: "a", Action: ActionBuy, AssetID: "BTC", Quantity: d("1"), Price: d("100")})

	clone := l.Clone()
	clone.Holdings["ETH"] = Holding{Quantity: d("2"), AvgPrice: d("10")}
	clone.History[0].AssetID = "ETH"

	assert.Len(t, l.Holdings, 1)
	assert.Equal(t, "BTC", l.History[0].AssetID)
}

func TestLedger_Recent(t *testing.T) {
	l := NewLedger()
	for i := 0; i < 12; i++ {
		l.History = append(l.History, Transaction{ID: string(rune('a' + i))})
	}

	recent := l.Recent(10)
	require.Len(t, recent, 10)
	assert.Equal(t, "l", recent[0].ID)
	assert.Equal(t, "c", recent[9].ID)

	assert.Len(t, l.Recent(50), 12)
	assert.Nil(t, l.Recent(0))
	assert.Nil(t, NewLedger().Recent(10))
}

func TestLedger_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(l *Ledger)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(l *Ledger) {},
		},
		{
			name:    "negative wallet",
			mutate:  func(l *Ledger) { l.Wallet = d("-0.01") },
			wantErr: "wallet is negative",
		},
		{
			name:    "zero quantity holding",
			mutate:  func(l *Ledger) { l.Holdings["BTC"] = Holding{Quantity: decimal.Zero, AvgPrice: d("1")} },
			wantErr: "non-positive quantity",
		},
		{
			name:    "zero avg price holding",
			mutate:  func(l *Ledger) { l.Holdings["BTC"] = Holding{Quantity: d("1"), AvgPrice: decimal.Zero} },
			wantErr: "non-positive average price",
		},
		{
			name: "profit mismatch",
			mutate: func(l *Ledger) {
				l.History = append(l.History, sellTx("s1", "1", "120", "20"))
				l.RealizedProfit = d("10")
			},
			wantErr: "does not match",
		},
		{
			name: "sell without profit",
			mutate: func(l *Ledger) {
				tx := sellTx("s1", "1", "120", "0")
				tx.Profit = decimal.NullDecimal{}
				l.History = append(l.History, tx)
			},
			wantErr: "has no profit",
		},
		{
			name: "profit matches history",
			mutate: func(l *Ledger) {
				l.History = append(l.History, sellTx("s1", "1", "120", "20"), sellTx("s2", "1", "90", "-10.5"))
				l.RealizedProfit = d("9.5")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLedger()
			tt.mutate(&l)
			err := l.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLedger_EqualIgnoresScale(t *testing.T) {
	a := NewLedger()
	a.Wallet = d("9800.00")
	a.Holdings["BTC"] = Holding{Quantity: d("2"), AvgPrice: d("100.0")}
	a.History = append(a.History, sellTx("s1", "1", "120", "0"))

	b := a.Clone()
	b.Wallet = d("9800")
	b.Holdings["BTC"] = Holding{Quantity: d("2.000"), AvgPrice: d("100")}

	assert.True(t, a.Equal(b))

	b.History[0].Profit = decimal.NullDecimal{}
	assert.False(t, a.Equal(b))
}

func TestLedger_Equity(t *testing.T) {
	l := NewLedger()
	l.Wallet = d("500")
	l.Holdings["BTC"] = Holding{Quantity: d("2"), AvgPrice: d("100")}
	l.Holdings["ETH"] = Holding{Quantity: d("1"), AvgPrice: d("50")}

	equity := l.Equity(map[string]decimal.Decimal{"BTC": d("150")})

	// 500 + 2*150 + 1*50 (cost basis fallback)
	assert.True(t, equity.Equal(d("850")), equity.String())
}

func TestTransaction_String(t *testing.T) {
	tx := sellTx("s1", "1", "150", "0")
	assert.Equal(t, "[2024-01-02T03:04:05] SELL 1.0000 BTC @ 150.0000 | Profit: 0.00", tx.String())

	tx.Action = ActionBuy
	tx.Profit = decimal.NullDecimal{}
	assert.Equal(t, "[2024-01-02T03:04:05] BUY 1.0000 BTC @ 150.0000", tx.String())
}

func TestParseAction(t *testing.T) {
	a, err := ParseAction(" buy ")
	require.NoError(t, err)
	assert.Equal(t, ActionBuy, a)

	a, err = ParseAction("Sell")
	require.NoError(t, err)
	assert.Equal(t, ActionSell, a)

	_, err = ParseAction("hold")
	assert.Error(t, err)
}

func TestIsBusinessError(t *testing.T) {
	assert.True(t, IsBusinessError(ErrInsufficientFunds))
	assert.True(t, IsBusinessError(ErrInsufficientHoldings))
	assert.False(t, IsBusinessError(ErrPriceUnavailable))
	assert.False(t, IsBusinessError(NewPersistenceError("save", "bob", ErrInvalidOrder)))
	assert.Nil(t, NewPersistenceError("save", "bob", nil))
}
