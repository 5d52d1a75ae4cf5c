package clients

import (
	"github.com/hirokisan/bybit/v2"
)

// NewBybitClient creates an unauthenticated client for V5 market endpoints.
func NewBybitClient() *bybit.Client {
	return bybit.NewClient()
}
