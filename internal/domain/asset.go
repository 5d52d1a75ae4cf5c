package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Asset is one tradable entry of the market catalog.
type Asset struct {
	// ID identifier used for trading and as holdings key, e.g. BTC.
	ID string `json:"id"`
	// Symbol exchange ticker, e.g. BTCUSDT.
	Symbol string `json:"symbol"`
	// Name human readable label.
	Name string `json:"name"`
}

// Label returns "SYMBOL - Name" for selection lists.
func (a Asset) Label() string {
	if a.Name == "" || a.Name == a.Symbol {
		return a.Symbol
	}
	return a.Symbol + " - " + a.Name
}

// PricePoint is a single sample of an asset price history.
type PricePoint struct {
	Timestamp time.Time       `json:"ts"`
	Price     decimal.Decimal `json:"price"`
}
