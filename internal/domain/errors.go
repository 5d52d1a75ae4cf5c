package domain

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrInsufficientFunds buy total exceeds the wallet.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrInsufficientHoldings sell quantity exceeds the held quantity or the asset is not held.
	ErrInsufficientHoldings = errors.New("insufficient holdings")
	// ErrPriceUnavailable the market could not supply a current price.
	ErrPriceUnavailable = errors.New("price unavailable")
	// ErrInvalidOrder order arguments violate preconditions (non-positive quantity or price, empty ids).
	ErrInvalidOrder = errors.New("invalid order")
)

// IsBusinessError reports whether err is an expected, recoverable trade rejection.
func IsBusinessError(err error) bool {
	return errors.Is(err, ErrInsufficientFunds) || errors.Is(err, ErrInsufficientHoldings)
}

// PersistenceError is returned when a ledger record cannot be read or written.
type PersistenceError struct {
	Op  string
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("ledger %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// NewPersistenceError wraps err, returning nil for a nil err.
func NewPersistenceError(op, key string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Key: key, Err: err}
}

// MarketDataError is returned when the asset catalog or a price history cannot be fetched.
type MarketDataError struct {
	Op  string
	Err error
}

func (e *MarketDataError) Error() string {
	return fmt.Sprintf("market data %s: %v", e.Op, e.Err)
}

func (e *MarketDataError) Unwrap() error { return e.Err }
