package domain

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// StartingBalance is the cash every new ledger begins with.
var StartingBalance = decimal.NewFromInt(10000)

// Holding is a weighted-average cost basis position in one asset.
type Holding struct {
	Quantity decimal.Decimal
	AvgPrice decimal.Decimal
}

// Value returns the market value of the holding at price.
func (h Holding) Value(price decimal.Decimal) decimal.Decimal {
	return h.Quantity.Mul(price)
}

// UnrealizedPnL returns the profit the holding would book if sold at price.
func (h Holding) UnrealizedPnL(price decimal.Decimal) decimal.Decimal {
	return price.Sub(h.AvgPrice).Mul(h.Quantity)
}

// Transaction is an immutable record of one executed buy or sell.
type Transaction struct {
	ID        string
	Timestamp time.Time
	Action    Action
	AssetID   string
	Quantity  decimal.Decimal
	Price     decimal.Decimal
	// Profit is valid only for SELL transactions, zero included.
	Profit decimal.NullDecimal
}

// Total returns quantity times price.
func (t Transaction) Total() decimal.Decimal {
	return t.Quantity.Mul(t.Price)
}

// String returns a human-readable string representation.
func (t Transaction) String() string {
	s := fmt.Sprintf("[%s] %s %s %s @ %s",
		t.Timestamp.UTC().Format("2006-01-02T15:04:05"),
		t.Action, t.Quantity.StringFixed(4), t.AssetID, t.Price.StringFixed(4))
	if t.Profit.Valid {
		s += " | Profit: " + t.Profit.Decimal.StringFixed(2)
	}
	return s
}

// Ledger is the full trading state of one user.
type Ledger struct {
	Wallet         decimal.Decimal
	Holdings       map[string]Holding
	History        []Transaction
	RealizedProfit decimal.Decimal
}

// NewLedger returns the default ledger for a user seen for the first time.
func NewLedger() Ledger {
	return Ledger{
		Wallet:         StartingBalance,
		Holdings:       make(map[string]Holding),
		History:        make([]Transaction, 0),
		RealizedProfit: decimal.Zero,
	}
}

// Clone returns a deep copy so transitions never alias the caller's maps and slices.
func (l Ledger) Clone() Ledger {
	holdings := make(map[string]Holding, len(l.Holdings))
	for id, h := range l.Holdings {
		holdings[id] = h
	}
	history := make([]Transaction, len(l.History))
	copy(history, l.History)

	return Ledger{
		Wallet:         l.Wallet,
		Holdings:       holdings,
		History:        history,
		RealizedProfit: l.RealizedProfit,
	}
}

// Holding returns the position in assetID, if any.
func (l Ledger) Holding(assetID string) (Holding, bool) {
	h, ok := l.Holdings[assetID]
	return h, ok
}

// Recent returns up to n most recent transactions, newest first.
func (l Ledger) Recent(n int) []Transaction {
	if n <= 0 || len(l.History) == 0 {
		return nil
	}
	if n > len(l.History) {
		n = len(l.History)
	}
	out := make([]Transaction, 0, n)
	for i := len(l.History) - 1; i >= len(l.History)-n; i-- {
		out = append(out, l.History[i])
	}
	return out
}

// Equity returns wallet plus holdings valued at the given prices.
// Assets missing from prices are valued at their cost basis.
func (l Ledger) Equity(prices map[string]decimal.Decimal) decimal.Decimal {
	total := l.Wallet
	for id, h := range l.Holdings {
		price, ok := prices[id]
		if !ok {
			price = h.AvgPrice
		}
		total = total.Add(h.Value(price))
	}
	return total
}

// Validate checks the ledger invariants.
func (l Ledger) Validate() error {
	if l.Wallet.IsNegative() {
		return errors.Errorf("wallet is negative: %s", l.Wallet.String())
	}

	for id, h := range l.Holdings {
		if !h.Quantity.IsPositive() {
			return errors.Errorf("holding %s has non-positive quantity %s", id, h.Quantity.String())
		}
		if !h.AvgPrice.IsPositive() {
			return errors.Errorf("holding %s has non-positive average price %s", id, h.AvgPrice.String())
		}
	}

	profit := decimal.Zero
	for i, tx := range l.History {
		if !tx.Action.IsValid() {
			return errors.Errorf("transaction %d has unknown action %q", i, tx.Action)
		}
		if !tx.Quantity.IsPositive() || !tx.Price.IsPositive() {
			return errors.Errorf("transaction %d has non-positive quantity or price", i)
		}
		if tx.Action == ActionSell {
			if !tx.Profit.Valid {
				return errors.Errorf("sell transaction %d has no profit", i)
			}
			profit = profit.Add(tx.Profit.Decimal)
		}
	}
	if !profit.Equal(l.RealizedProfit) {
		return errors.Errorf("realized profit %s does not match history total %s",
			l.RealizedProfit.String(), profit.String())
	}

	return nil
}

// Equal compares two ledgers numerically, ignoring decimal scale.
func (l Ledger) Equal(other Ledger) bool {
	if !l.Wallet.Equal(other.Wallet) || !l.RealizedProfit.Equal(other.RealizedProfit) {
		return false
	}
	if len(l.Holdings) != len(other.Holdings) || len(l.History) != len(other.History) {
		return false
	}
	for id, h := range l.Holdings {
		o, ok := other.Holdings[id]
		if !ok || !h.Quantity.Equal(o.Quantity) || !h.AvgPrice.Equal(o.AvgPrice) {
			return false
		}
	}
	for i, tx := range l.History {
		if !tx.Equal(other.History[i]) {
			return false
		}
	}
	return true
}

// Equal compares two transactions numerically.
func (t Transaction) Equal(other Transaction) bool {
	if t.ID != other.ID || t.Action != other.Action || t.AssetID != other.AssetID {
		return false
	}
	if !t.Timestamp.Equal(other.Timestamp) {
		return false
	}
	if !t.Quantity.Equal(other.Quantity) || !t.Price.Equal(other.Price) {
		return false
	}
	if t.Profit.Valid != other.Profit.Valid {
		return false
	}
	return !t.Profit.Valid || t.Profit.Decimal.Equal(other.Profit.Decimal)
}
