package marketdata

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	hyperliquid "github.com/sonirico/go-hyperliquid"

	"github.com/vadiminshakov/papertrade/internal/domain"
)

// HyperliquidProvider reads mid prices and candles from the Hyperliquid Info API.
// Prices are quoted in USD and assets are keyed by coin name.
type HyperliquidProvider struct {
	info        *hyperliquid.Info
	catalogSize int
	now         func() time.Time
}

// NewHyperliquidProvider creates a provider over info.
func NewHyperliquidProvider(info *hyperliquid.Info, catalogSize int) *HyperliquidProvider {
	return &HyperliquidProvider{info: info, catalogSize: catalogSize, now: time.Now}
}

// ListAssets returns listed perpetual coins by descending 24h notional volume.
func (p *HyperliquidProvider) ListAssets(ctx context.Context) ([]domain.Asset, error) {
	if p.info == nil {
		return nil, errors.New("hyperliquid info client is nil")
	}

	meta, err := p.info.MetaAndAssetCtxs(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch asset contexts from Hyperliquid")
	}

	return topAssets(rankByDayVolume(meta), p.catalogSize), nil
}

// rankByDayVolume pairs universe entries with their contexts by position.
func rankByDayVolume(meta *hyperliquid.MetaAndAssetCtxs) []rankedAsset {
	if meta == nil {
		return nil
	}

	candidates := make([]rankedAsset, 0, len(meta.Universe))
	for i, info := range meta.Universe {
		if info.IsDelisted || i >= len(meta.Ctxs) {
			continue
		}
		volume, err := decimal.NewFromString(meta.Ctxs[i].DayNtlVlm)
		if err != nil {
			continue
		}
		candidates = append(candidates, rankedAsset{
			asset:  domain.Asset{ID: NormalizeID(info.Name), Symbol: info.Name, Name: info.Name + "/USD"},
			volume: volume,
		})
	}

	return candidates
}

// CurrentPrice returns the mid price of assetID.
func (p *HyperliquidProvider) CurrentPrice(ctx context.Context, assetID string) (decimal.Decimal, error) {
	if p.info == nil {
		return decimal.Zero, errors.New("hyperliquid info client is nil")
	}

	mids, err := p.info.AllMids(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	coin, ok := resolveCoin(mids, assetID)
	if !ok || mids[coin] == "" {
		return decimal.Zero, errors.Errorf("hyperliquid API returned empty mid price for %s", NormalizeID(assetID))
	}
	return decimal.NewFromString(mids[coin])
}

// resolveCoin finds the exchange spelling of assetID among mids keys.
// Coin names are case-sensitive on Hyperliquid ("kPEPE") while asset ids are upper-cased.
func resolveCoin(mids map[string]string, assetID string) (string, bool) {
	id := strings.TrimSpace(assetID)
	if _, ok := mids[id]; ok {
		return id, true
	}
	for coin := range mids {
		// spot pairs are keyed by index, e.g. "@107"
		if strings.HasPrefix(coin, "@") {
			continue
		}
		if strings.EqualFold(coin, id) {
			return coin, true
		}
	}
	return "", false
}

// PriceHistory returns candle close prices covering the last days.
func (p *HyperliquidProvider) PriceHistory(ctx context.Context, assetID string, days int) ([]domain.PricePoint, error) {
	if p.info == nil {
		return nil, errors.New("hyperliquid info client is nil")
	}

	w := historyWindow(days)
	startMs, endMs := w.span(p.now())
	mids, err := p.info.AllMids(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch mids from Hyperliquid")
	}
	coin, ok := resolveCoin(mids, assetID)
	if !ok {
		return nil, errors.Errorf("unknown Hyperliquid coin %s", NormalizeID(assetID))
	}

	candles, err := p.info.CandlesSnapshot(ctx, coin, hyperliquidInterval(w.step), startMs, endMs)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch candles from Hyperliquid for %s", coin)
	}

	points := make([]domain.PricePoint, 0, len(candles))
	for i, c := range candles {
		closePrice, err := decimal.NewFromString(c.Close)
		if err != nil {
			return nil, errors.Wrapf(err, "parse close at %d", i)
		}
		points = append(points, domain.PricePoint{
			Timestamp: time.UnixMilli(c.TimeOpen).UTC(),
			Price:     closePrice,
		})
	}
	sortPoints(points)

	return points, nil
}

func hyperliquidInterval(step time.Duration) string {
	switch step {
	case time.Hour:
		return "1h"
	case 4 * time.Hour:
		return "4h"
	default:
		return "1d"
	}
}
