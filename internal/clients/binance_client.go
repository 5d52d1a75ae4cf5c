package clients

import (
	"github.com/adshao/go-binance/v2"
)

// NewBinanceClient creates a client without API keys; only public market endpoints are used.
func NewBinanceClient() *binance.Client {
	return binance.NewClient("", "")
}
