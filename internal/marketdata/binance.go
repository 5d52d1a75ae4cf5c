package marketdata

import (
	"context"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/papertrade/internal/domain"
)

// BinanceProvider reads public spot market data from Binance.
type BinanceProvider struct {
	client      *binance.Client
	quote       string
	catalogSize int
}

// NewBinanceProvider creates a provider quoting assets against quote.
func NewBinanceProvider(client *binance.Client, quote string, catalogSize int) *BinanceProvider {
	return &BinanceProvider{
		client:      client,
		quote:       NormalizeID(quote),
		catalogSize: catalogSize,
	}
}

func (p *BinanceProvider) symbol(assetID string) string {
	return NormalizeID(assetID) + p.quote
}

// ListAssets returns the catalogSize most traded <BASE><QUOTE> pairs by 24h quote volume.
func (p *BinanceProvider) ListAssets(ctx context.Context) ([]domain.Asset, error) {
	stats, err := p.client.NewListPriceChangeStatsService().Do(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch 24h ticker stats from Binance")
	}

	candidates := make([]rankedAsset, 0, len(stats))
	for _, s := range stats {
		base := strings.TrimSuffix(s.Symbol, p.quote)
		if base == "" || base == s.Symbol {
			continue
		}
		last, err := decimal.NewFromString(s.LastPrice)
		if err != nil || !last.IsPositive() {
			continue
		}
		volume, err := decimal.NewFromString(s.QuoteVolume)
		if err != nil {
			continue
		}
		candidates = append(candidates, rankedAsset{
			asset:  domain.Asset{ID: base, Symbol: s.Symbol, Name: base + "/" + p.quote},
			volume: volume,
		})
	}

	return topAssets(candidates, p.catalogSize), nil
}

// CurrentPrice returns the last traded price of assetID.
func (p *BinanceProvider) CurrentPrice(ctx context.Context, assetID string) (decimal.Decimal, error) {
	prices, err := p.client.NewListPricesService().Symbol(p.symbol(assetID)).Do(ctx)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "failed to fetch price from Binance for %s", p.symbol(assetID))
	}
	if len(prices) == 0 {
		return decimal.Zero, errors.Errorf("binance API returned empty prices for %s", p.symbol(assetID))
	}

	return decimal.NewFromString(prices[0].Price)
}

// PriceHistory returns candle close prices covering the last days.
func (p *BinanceProvider) PriceHistory(ctx context.Context, assetID string, days int) ([]domain.PricePoint, error) {
	w := historyWindow(days)
	symbol := p.symbol(assetID)

	klines, err := p.client.NewKlinesService().
		Symbol(symbol).
		Interval(binanceInterval(w.step)).
		Limit(w.limit).
		Do(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch klines from Binance for %s", symbol)
	}

	points := make([]domain.PricePoint, 0, len(klines))
	for i, k := range klines {
		closePrice, err := decimal.NewFromString(k.Close)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse close price at index %d", i)
		}
		points = append(points, domain.PricePoint{
			Timestamp: time.UnixMilli(k.OpenTime).UTC(),
			Price:     closePrice,
		})
	}
	sortPoints(points)

	return points, nil
}

func binanceInterval(step time.Duration) string {
	switch step {
	case time.Hour:
		return "1h"
	case 4 * time.Hour:
		return "4h"
	default:
		return "1d"
	}
}
