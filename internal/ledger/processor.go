// Package ledger implements the buy and sell state transitions of a paper trading ledger.
//
// Transitions are pure: they never modify the ledger passed in and return a new value,
// so a rejected trade leaves the caller's ledger untouched.
package ledger

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/papertrade/internal/domain"
)

// Processor executes market buys and sells against a ledger.
type Processor struct {
	now   func() time.Time
	newID func() string
}

// Option configures a Processor.
type Option func(*Processor)

// WithClock sets the clock used to timestamp transactions.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) {
		p.now = now
	}
}

// WithIDGenerator sets the transaction ID generator.
func WithIDGenerator(newID func() string) Option {
	return func(p *Processor) {
		p.newID = newID
	}
}

// NewProcessor creates a Processor stamping transactions with UTC wall time and UUIDs.
func NewProcessor(opts ...Option) *Processor {
	p := &Processor{
		now:   time.Now,
		newID: func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Execute dispatches to Buy or Sell.
func (p *Processor) Execute(l domain.Ledger, action domain.Action, assetID string, quantity, price decimal.Decimal) (domain.Ledger, domain.Transaction, error) {
	switch action {
	case domain.ActionBuy:
		return p.Buy(l, assetID, quantity, price)
	case domain.ActionSell:
		return p.Sell(l, assetID, quantity, price)
	default:
		return l, domain.Transaction{}, errors.Wrapf(domain.ErrInvalidOrder, "unknown action %q", action)
	}
}

// Buy spends quantity*price of the wallet on assetID and moves the cost basis toward price.
func (p *Processor) Buy(l domain.Ledger, assetID string, quantity, price decimal.Decimal) (domain.Ledger, domain.Transaction, error) {
	if err := checkOrder(assetID, quantity, price); err != nil {
		return l, domain.Transaction{}, err
	}

	total := quantity.Mul(price)
	if total.GreaterThan(l.Wallet) {
		return l, domain.Transaction{}, errors.Wrapf(domain.ErrInsufficientFunds,
			"have %s need %s", l.Wallet.String(), total.String())
	}

	next := l.Clone()
	next.Wallet = next.Wallet.Sub(total)

	if held, ok := next.Holdings[assetID]; ok {
		newQty := held.Quantity.Add(quantity)
		newAvg := held.AvgPrice.Mul(held.Quantity).Add(price.Mul(quantity)).Div(newQty)
		next.Holdings[assetID] = domain.Holding{Quantity: newQty, AvgPrice: newAvg}
	} else {
		next.Holdings[assetID] = domain.Holding{Quantity: quantity, AvgPrice: price}
	}

	tx := p.record(domain.ActionBuy, assetID, quantity, price, decimal.NullDecimal{})
	next.History = append(next.History, tx)

	return next, tx, nil
}

// Sell books (price - avg) * quantity as realized profit and credits the proceeds.
// Selling the whole position removes the holding; the average price of a partial
// remainder does not change.
func (p *Processor) Sell(l domain.Ledger, assetID string, quantity, price decimal.Decimal) (domain.Ledger, domain.Transaction, error) {
	if err := checkOrder(assetID, quantity, price); err != nil {
		return l, domain.Transaction{}, err
	}

	held, ok := l.Holdings[assetID]
	if !ok {
		return l, domain.Transaction{}, errors.Wrapf(domain.ErrInsufficientHoldings, "%s is not held", assetID)
	}
	if held.Quantity.LessThan(quantity) {
		return l, domain.Transaction{}, errors.Wrapf(domain.ErrInsufficientHoldings,
			"have %s %s need %s", held.Quantity.String(), assetID, quantity.String())
	}

	profit := price.Sub(held.AvgPrice).Mul(quantity)

	next := l.Clone()
	next.RealizedProfit = next.RealizedProfit.Add(profit)
	next.Wallet = next.Wallet.Add(quantity.Mul(price))

	remaining := held.Quantity.Sub(quantity)
	if remaining.LessThanOrEqual(decimal.Zero) {
		delete(next.Holdings, assetID)
	} else {
		next.Holdings[assetID] = domain.Holding{Quantity: remaining, AvgPrice: held.AvgPrice}
	}

	tx := p.record(domain.ActionSell, assetID, quantity, price, decimal.NewNullDecimal(profit))
	next.History = append(next.History, tx)

	return next, tx, nil
}

func (p *Processor) record(action domain.Action, assetID string, quantity, price decimal.Decimal, profit decimal.NullDecimal) domain.Transaction {
	return domain.Transaction{
		ID:        p.newID(),
		Timestamp: p.now().UTC(),
		Action:    action,
		AssetID:   assetID,
		Quantity:  quantity,
		Price:     price,
		Profit:    profit,
	}
}

func checkOrder(assetID string, quantity, price decimal.Decimal) error {
	if strings.TrimSpace(assetID) == "" {
		return errors.Wrap(domain.ErrInvalidOrder, "asset id is empty")
	}
	if !quantity.IsPositive() {
		return errors.Wrapf(domain.ErrInvalidOrder, "quantity must be positive, got %s", quantity.String())
	}
	if !price.IsPositive() {
		return errors.Wrapf(domain.ErrInvalidOrder, "price must be positive, got %s", price.String())
	}
	return nil
}
