package marketdata

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/papertrade/internal/domain"
)

const bybitCategory = "spot"

// BybitProvider reads V5 spot market data from Bybit.
type BybitProvider struct {
	client      *bybit.Client
	quote       string
	catalogSize int
	now         func() time.Time
}

// NewBybitProvider creates a provider quoting assets against quote.
func NewBybitProvider(client *bybit.Client, quote string, catalogSize int) *BybitProvider {
	return &BybitProvider{
		client:      client,
		quote:       NormalizeID(quote),
		catalogSize: catalogSize,
		now:         time.Now,
	}
}

func (p *BybitProvider) symbol(assetID string) bybit.SymbolV5 {
	return bybit.SymbolV5(NormalizeID(assetID) + p.quote)
}

// ListAssets returns the catalogSize spot pairs with the highest 24h turnover.
func (p *BybitProvider) ListAssets(_ context.Context) ([]domain.Asset, error) {
	result, err := p.client.V5().Market().GetTickers(bybit.V5GetTickersParam{
		Category: bybitCategory,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get tickers from Bybit")
	}

	return topAssets(rankSpotTickers(result.Result.Spot.List, p.quote), p.catalogSize), nil
}

// rankSpotTickers keeps priced pairs quoted in quote, weighted by 24h turnover.
func rankSpotTickers(tickers []bybit.V5GetTickersSpotItem, quote string) []rankedAsset {
	candidates := make([]rankedAsset, 0, len(tickers))
	for _, t := range tickers {
		symbol := string(t.Symbol)
		base := strings.TrimSuffix(symbol, quote)
		if base == "" || base == symbol {
			continue
		}
		last, err := decimal.NewFromString(t.LastPrice)
		if err != nil || !last.IsPositive() {
			continue
		}
		turnover, err := decimal.NewFromString(t.Turnover24H)
		if err != nil {
			continue
		}
		candidates = append(candidates, rankedAsset{
			asset:  domain.Asset{ID: base, Symbol: symbol, Name: base + "/" + quote},
			volume: turnover,
		})
	}

	return candidates
}

// CurrentPrice returns the last traded price of assetID.
func (p *BybitProvider) CurrentPrice(_ context.Context, assetID string) (decimal.Decimal, error) {
	symbol := p.symbol(assetID)

	result, err := p.client.V5().Market().GetTickers(bybit.V5GetTickersParam{
		Category: bybitCategory,
		Symbol:   &symbol,
	})
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "failed to get ticker from Bybit for %s", symbol)
	}

	if len(result.Result.Spot.List) == 0 {
		return decimal.Zero, errors.Errorf("bybit API returned empty prices for %s", symbol)
	}

	return decimal.NewFromString(result.Result.Spot.List[0].LastPrice)
}

// PriceHistory returns candle close prices covering the last days.
func (p *BybitProvider) PriceHistory(_ context.Context, assetID string, days int) ([]domain.PricePoint, error) {
	w := historyWindow(days)
	startTime, endTime := w.span(p.now())
	limit := w.limit

	klines, err := p.client.V5().Market().GetKline(bybit.V5GetKlineParam{
		Category: bybitCategory,
		Symbol:   p.symbol(assetID),
		Interval: bybitInterval(w.step),
		Start:    &startTime,
		End:      &endTime,
		Limit:    &limit,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get klines from Bybit")
	}

	points := make([]domain.PricePoint, 0, len(klines.Result.List))
	for _, k := range klines.Result.List {
		closePrice, err := decimal.NewFromString(k.Close)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse close price: %s", k.Close)
		}
		startMs, err := strconv.ParseInt(k.StartTime, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse start time: %s", k.StartTime)
		}
		points = append(points, domain.PricePoint{
			Timestamp: time.UnixMilli(startMs).UTC(),
			Price:     closePrice,
		})
	}
	// bybit lists candles newest first
	sortPoints(points)

	return points, nil
}

func bybitInterval(step time.Duration) bybit.Interval {
	switch step {
	case time.Hour:
		return bybit.Interval("60")
	case 4 * time.Hour:
		return bybit.Interval("240")
	default:
		return bybit.Interval("D")
	}
}
