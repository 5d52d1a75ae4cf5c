package marketdata

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/gopkg/collection/skipmap"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/papertrade/internal/domain"
	"github.com/vadiminshakov/papertrade/internal/metrics"
	"github.com/vadiminshakov/papertrade/pkg/retrier"
)

// TTLs bounds the staleness of each kind of cached market data.
type TTLs struct {
	Catalog time.Duration
	Price   time.Duration
	History time.Duration
}

// DefaultTTLs returns catalog 1h, price 1m, history 5m.
func DefaultTTLs() TTLs {
	return TTLs{
		Catalog: time.Hour,
		Price:   time.Minute,
		History: 5 * time.Minute,
	}
}

type entry struct {
	mu      sync.Mutex
	value   interface{}
	expires time.Time
	valid   bool
}

// CachedProvider wraps a Provider with per-key TTL entries. Expired entries are
// refreshed on the caller's path; nothing runs in the background.
//
// Catalog and history fetches are retried with backoff and fail with
// domain.MarketDataError. Current prices are fetched once and fail with
// domain.ErrPriceUnavailable.
type CachedProvider struct {
	upstream Provider
	entries  *skipmap.StringMap
	ttl      TTLs
	retrier  *retrier.Retrier
	timeout  time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

// CacheOption configures a CachedProvider.
type CacheOption func(*CachedProvider)

// WithTTLs sets entry lifetimes. A non-positive TTL disables caching for that kind.
func WithTTLs(ttl TTLs) CacheOption {
	return func(c *CachedProvider) {
		c.ttl = ttl
	}
}

// WithRetrier sets the retrier used for catalog and history fetches.
func WithRetrier(r *retrier.Retrier) CacheOption {
	return func(c *CachedProvider) {
		c.retrier = r
	}
}

// WithRequestTimeout bounds every upstream call.
func WithRequestTimeout(d time.Duration) CacheOption {
	return func(c *CachedProvider) {
		c.timeout = d
	}
}

// WithClock sets the clock used for expiry.
func WithClock(now func() time.Time) CacheOption {
	return func(c *CachedProvider) {
		c.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) CacheOption {
	return func(c *CachedProvider) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCachedProvider wraps upstream.
func NewCachedProvider(upstream Provider, opts ...CacheOption) *CachedProvider {
	c := &CachedProvider{
		upstream: upstream,
		entries:  skipmap.NewString(),
		ttl:      DefaultTTLs(),
		now:      time.Now,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retrier == nil {
		c.retrier = defaultRetrier(c.logger)
	}
	return c
}

func defaultRetrier(logger *zap.Logger) *retrier.Retrier {
	return retrier.New(
		retrier.WithInitialInterval(200*time.Millisecond),
		retrier.WithMaxInterval(2*time.Second),
		retrier.WithMaxRetries(2),
		retrier.WithRetryIf(retryable),
		retrier.WithOnRetry(func(attempt int, err error, wait time.Duration) {
			logger.Debug("retrying market data fetch",
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
				zap.Error(err))
		}),
	)
}

func retryable(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// ListAssets returns the cached catalog.
func (c *CachedProvider) ListAssets(ctx context.Context) ([]domain.Asset, error) {
	v, err := c.load(ctx, KindCatalog, KindCatalog, c.ttl.Catalog, true, func(ctx context.Context) (interface{}, error) {
		return c.upstream.ListAssets(ctx)
	})
	if err != nil {
		return nil, &domain.MarketDataError{Op: "list assets", Err: err}
	}

	assets := v.([]domain.Asset)
	return append([]domain.Asset(nil), assets...), nil
}

// CurrentPrice returns the cached price of assetID.
func (c *CachedProvider) CurrentPrice(ctx context.Context, assetID string) (decimal.Decimal, error) {
	id := NormalizeID(assetID)
	if id == "" {
		return decimal.Zero, errors.Wrap(domain.ErrPriceUnavailable, "asset id is empty")
	}

	v, err := c.load(ctx, KindPrice, KindPrice+":"+id, c.ttl.Price, false, func(ctx context.Context) (interface{}, error) {
		price, err := c.upstream.CurrentPrice(ctx, id)
		if err != nil {
			return nil, err
		}
		if !price.IsPositive() {
			return nil, errors.Errorf("non-positive price %s", price.String())
		}
		return price, nil
	})
	if err != nil {
		return decimal.Zero, errors.Wrapf(domain.ErrPriceUnavailable, "%s: %v", id, err)
	}

	return v.(decimal.Decimal), nil
}

// PriceHistory returns the cached history of assetID over days.
func (c *CachedProvider) PriceHistory(ctx context.Context, assetID string, days int) ([]domain.PricePoint, error) {
	id := NormalizeID(assetID)
	key := fmt.Sprintf("%s:%s:%d", KindHistory, id, days)

	v, err := c.load(ctx, KindHistory, key, c.ttl.History, true, func(ctx context.Context) (interface{}, error) {
		return c.upstream.PriceHistory(ctx, id, days)
	})
	if err != nil {
		return nil, &domain.MarketDataError{Op: "price history " + id, Err: err}
	}

	points := v.([]domain.PricePoint)
	return append([]domain.PricePoint(nil), points...), nil
}

// Invalidate drops every cached entry.
func (c *CachedProvider) Invalidate() {
	c.entries.Range(func(key string, _ interface{}) bool {
		c.entries.Delete(key)
		return true
	})
}

// load returns the entry at key, fetching it when missing or expired. The entry lock
// is held during the fetch so concurrent callers share one upstream request.
func (c *CachedProvider) load(
	ctx context.Context,
	kind, key string,
	ttl time.Duration,
	retry bool,
	fetch func(context.Context) (interface{}, error),
) (interface{}, error) {
	v, _ := c.entries.LoadOrStoreLazy(key, func() interface{} { return &entry{} })
	e := v.(*entry)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.valid && c.now().Before(e.expires) {
		metrics.ObserveCache(kind, true)
		return e.value, nil
	}
	metrics.ObserveCache(kind, false)

	start := time.Now()
	value, err := c.fetch(ctx, retry, fetch)
	metrics.ObserveFetch(kind, start)
	if err != nil {
		c.logger.Warn("market data fetch failed",
			zap.String("kind", kind),
			zap.String("key", key),
			zap.Error(err))
		return nil, err
	}

	e.value = value
	e.valid = ttl > 0
	e.expires = c.now().Add(ttl)

	return value, nil
}

func (c *CachedProvider) fetch(ctx context.Context, retry bool, fetch func(context.Context) (interface{}, error)) (interface{}, error) {
	call := func(ctx context.Context) (interface{}, error) {
		if c.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}
		return fetch(ctx)
	}

	if !retry {
		return call(ctx)
	}
	return retrier.DoWithData(c.retrier, ctx, call)
}
