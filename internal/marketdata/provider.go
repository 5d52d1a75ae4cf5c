// Package marketdata supplies the asset catalog, current prices and price history from an exchange.
package marketdata

import (
	"context"
	"sort"
	"strings"
	"time"

	binance "github.com/adshao/go-binance/v2"
	bybit "github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/papertrade/internal/clients"
	"github.com/vadiminshakov/papertrade/internal/domain"
)

// Cache and metric kinds.
const (
	KindCatalog = "catalog"
	KindPrice   = "price"
	KindHistory = "history"
)

const (
	DefaultQuote       = "USDT"
	DefaultCatalogSize = 100
	maxHistoryDays     = 1000
)

// Provider is the market data collaborator.
type Provider interface {
	// ListAssets returns the tradable catalog.
	ListAssets(ctx context.Context) ([]domain.Asset, error)
	// CurrentPrice returns the latest unit price of assetID in the quote currency.
	CurrentPrice(ctx context.Context, assetID string) (decimal.Decimal, error)
	// PriceHistory returns prices over the last days, oldest first.
	PriceHistory(ctx context.Context, assetID string, days int) ([]domain.PricePoint, error)
}

// NewProvider creates a provider for the given exchange client.
// This is the single point of truth for dispatching to exchange-specific implementations.
func NewProvider(client any, quote string, catalogSize int) (Provider, error) {
	if quote == "" {
		quote = DefaultQuote
	}
	if catalogSize <= 0 {
		catalogSize = DefaultCatalogSize
	}

	switch c := client.(type) {
	case *binance.Client:
		return NewBinanceProvider(c, quote, catalogSize), nil
	case *bybit.Client:
		return NewBybitProvider(c, quote, catalogSize), nil
	case *clients.HyperliquidClient:
		return NewHyperliquidProvider(c.Info(), catalogSize), nil
	default:
		return nil, errors.Errorf("unsupported client type: %T", client)
	}
}

// NormalizeID upper-cases and trims an asset identifier.
func NormalizeID(assetID string) string {
	return strings.ToUpper(strings.TrimSpace(assetID))
}

// window is the candle granularity used for a history request of days.
type window struct {
	step  time.Duration
	limit int
}

// historyWindow picks hourly candles up to a week, 4h candles up to 90 days and daily beyond.
func historyWindow(days int) window {
	if days < 1 {
		days = 1
	}
	if days > maxHistoryDays {
		days = maxHistoryDays
	}

	switch {
	case days <= 7:
		return window{step: time.Hour, limit: days * 24}
	case days <= 90:
		return window{step: 4 * time.Hour, limit: days * 6}
	default:
		return window{step: 24 * time.Hour, limit: days}
	}
}

// span returns the [start, end] range in unix milliseconds ending at now.
func (w window) span(now time.Time) (int64, int64) {
	end := now.UnixMilli()
	start := end - int64(w.limit)*w.step.Milliseconds()
	return start, end
}

func sortPoints(points []domain.PricePoint) {
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})
}

// rankedAsset is a catalog candidate ordered by 24h quote volume.
type rankedAsset struct {
	asset  domain.Asset
	volume decimal.Decimal
}

func topAssets(candidates []rankedAsset, n int) []domain.Asset {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].volume.GreaterThan(candidates[j].volume)
	})
	if len(candidates) > n {
		candidates = candidates[:n]
	}

	assets := make([]domain.Asset, len(candidates))
	for i, c := range candidates {
		assets[i] = c.asset
	}
	return assets
}
