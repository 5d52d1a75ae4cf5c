// Package session runs one user interaction against a ledger: price lookup, transition,
// persistence and journaling.
package session

import (
	"context"
	"strings"
	"sync"

	"github.com/bytedance/gopkg/collection/skipmap"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/papertrade/internal/domain"
	"github.com/vadiminshakov/papertrade/internal/ledger"
	"github.com/vadiminshakov/papertrade/internal/marketdata"
	"github.com/vadiminshakov/papertrade/internal/metrics"
	"github.com/vadiminshakov/papertrade/internal/storage/ledgerstate"
	"github.com/vadiminshakov/papertrade/internal/storage/tradelog"
)

// DefaultRecentTransactions is how many transactions a View carries.
const DefaultRecentTransactions = 10

// LedgerStore loads and saves ledgers by user key.
type LedgerStore interface {
	Load(ctx context.Context, key string) (domain.Ledger, error)
	Save(ctx context.Context, key string, l domain.Ledger) error
}

// Journal records executed transactions.
type Journal interface {
	Append(entry tradelog.Entry) error
}

// TradeResult is the outcome of Trade. On a rejected trade Ledger is the unchanged
// persisted ledger and Transaction is empty.
type TradeResult struct {
	Ledger      domain.Ledger
	Transaction domain.Transaction
	Price       decimal.Decimal
}

// View is the state shown to a user.
type View struct {
	User   string
	Ledger domain.Ledger
	// Recent holds the latest transactions, newest first.
	Recent []domain.Transaction
	// Prices holds current prices of held assets that could be fetched.
	Prices map[string]decimal.Decimal
	// Equity is the wallet plus holdings valued at Prices, or at cost when a price is missing.
	Equity decimal.Decimal
}

// Service serializes interactions per user key inside the process.
type Service struct {
	store     LedgerStore
	market    marketdata.Provider
	processor *ledger.Processor
	journal   Journal
	logger    *zap.Logger
	locks     *skipmap.StringMap
	recent    int
}

// Option configures a Service.
type Option func(*Service)

// WithJournal appends every executed transaction to j.
func WithJournal(j Journal) Option {
	return func(s *Service) {
		s.journal = j
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithProcessor replaces the transaction processor.
func WithProcessor(p *ledger.Processor) Option {
	return func(s *Service) {
		s.processor = p
	}
}

// WithRecentTransactions sets how many transactions View returns.
func WithRecentTransactions(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.recent = n
		}
	}
}

// NewService creates a Service.
func NewService(store LedgerStore, market marketdata.Provider, opts ...Option) *Service {
	s := &Service{
		store:     store,
		market:    market,
		processor: ledger.NewProcessor(),
		logger:    zap.NewNop(),
		locks:     skipmap.NewString(),
		recent:    DefaultRecentTransactions,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Trade executes a market order for user at the current price of assetID.
//
// Business rejections (domain.IsBusinessError) come back with the unchanged ledger.
// Price lookups are not retried: a missing price fails with domain.ErrPriceUnavailable.
func (s *Service) Trade(ctx context.Context, user string, action domain.Action, assetID string, quantity decimal.Decimal) (TradeResult, error) {
	key := ledgerstate.NormalizeKey(user)
	assetID = marketdata.NormalizeID(assetID)

	if err := checkTrade(key, action, assetID, quantity); err != nil {
		metrics.ObserveTrade(action.String(), metrics.ResultRejected)
		return TradeResult{}, err
	}

	price, err := s.market.CurrentPrice(ctx, assetID)
	if err != nil {
		metrics.ObserveTrade(action.String(), metrics.ResultError)
		if !errors.Is(err, domain.ErrPriceUnavailable) {
			err = errors.Wrapf(domain.ErrPriceUnavailable, "%s: %v", assetID, err)
		}
		s.logger.Warn("price unavailable", zap.String("asset", assetID), zap.Error(err))
		return TradeResult{}, err
	}

	unlock := s.lock(key)
	defer unlock()

	current, err := s.store.Load(ctx, user)
	if err != nil {
		metrics.ObserveTrade(action.String(), metrics.ResultError)
		s.logger.Error("failed to load ledger", zap.String("user", key), zap.Error(err))
		return TradeResult{}, err
	}

	next, tx, err := s.processor.Execute(current, action, assetID, quantity, price)
	if err != nil {
		metrics.ObserveTrade(action.String(), metrics.ResultRejected)
		s.logger.Info("trade rejected",
			zap.String("user", key),
			zap.String("action", action.String()),
			zap.String("asset", assetID),
			zap.String("quantity", quantity.String()),
			zap.String("price", price.String()),
			zap.Error(err))
		return TradeResult{Ledger: current, Price: price}, err
	}

	if err := s.store.Save(ctx, user, next); err != nil {
		metrics.ObserveTrade(action.String(), metrics.ResultError)
		s.logger.Error("failed to save ledger", zap.String("user", key), zap.Error(err))
		return TradeResult{Ledger: current, Price: price}, err
	}

	s.appendJournal(key, tx, next.Wallet)

	metrics.ObserveTrade(action.String(), metrics.ResultOK)
	s.logger.Info("trade executed",
		zap.String("user", key),
		zap.String("id", tx.ID),
		zap.String("action", action.String()),
		zap.String("asset", assetID),
		zap.String("quantity", quantity.String()),
		zap.String("price", price.String()),
		zap.String("wallet", next.Wallet.String()))

	return TradeResult{Ledger: next, Transaction: tx, Price: price}, nil
}

// View loads the ledger of user and values its holdings at current prices.
func (s *Service) View(ctx context.Context, user string) (View, error) {
	key := ledgerstate.NormalizeKey(user)
	if key == "" {
		return View{}, errors.Wrap(domain.ErrInvalidOrder, "user is empty")
	}

	l, err := s.store.Load(ctx, user)
	if err != nil {
		return View{}, err
	}

	prices := make(map[string]decimal.Decimal, len(l.Holdings))
	for id := range l.Holdings {
		price, err := s.market.CurrentPrice(ctx, id)
		if err != nil {
			s.logger.Debug("holding price unavailable", zap.String("asset", id), zap.Error(err))
			continue
		}
		prices[id] = price
	}

	return View{
		User:   key,
		Ledger: l,
		Recent: l.Recent(s.recent),
		Prices: prices,
		Equity: l.Equity(prices),
	}, nil
}

// Assets returns the catalog, or an empty list when market data is unavailable.
func (s *Service) Assets(ctx context.Context) []domain.Asset {
	assets, err := s.market.ListAssets(ctx)
	if err != nil {
		s.logger.Warn("asset catalog unavailable", zap.Error(err))
		return []domain.Asset{}
	}
	return assets
}

// History returns the price history of assetID, or an empty series when market data is unavailable.
func (s *Service) History(ctx context.Context, assetID string, days int) []domain.PricePoint {
	points, err := s.market.PriceHistory(ctx, marketdata.NormalizeID(assetID), days)
	if err != nil {
		s.logger.Warn("price history unavailable",
			zap.String("asset", assetID),
			zap.Int("days", days),
			zap.Error(err))
		return []domain.PricePoint{}
	}
	return points
}

// Quote returns the current price of assetID.
func (s *Service) Quote(ctx context.Context, assetID string) (decimal.Decimal, error) {
	id := marketdata.NormalizeID(assetID)
	if id == "" {
		return decimal.Zero, errors.Wrap(domain.ErrInvalidOrder, "asset id is empty")
	}

	price, err := s.market.CurrentPrice(ctx, id)
	if err != nil && !errors.Is(err, domain.ErrPriceUnavailable) {
		err = errors.Wrapf(domain.ErrPriceUnavailable, "%s: %v", id, err)
	}
	return price, err
}

func (s *Service) appendJournal(user string, tx domain.Transaction, wallet decimal.Decimal) {
	if s.journal == nil {
		return
	}
	if err := s.journal.Append(tradelog.NewEntry(user, tx, wallet.String())); err != nil {
		s.logger.Warn("failed to journal transaction", zap.String("id", tx.ID), zap.Error(err))
	}
}

func (s *Service) lock(key string) func() {
	v, _ := s.locks.LoadOrStoreLazy(key, func() interface{} { return &sync.Mutex{} })
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func checkTrade(key string, action domain.Action, assetID string, quantity decimal.Decimal) error {
	switch {
	case key == "":
		return errors.Wrap(domain.ErrInvalidOrder, "user is empty")
	case !action.IsValid():
		return errors.Wrapf(domain.ErrInvalidOrder, "unknown action %q", action)
	case strings.TrimSpace(assetID) == "":
		return errors.Wrap(domain.ErrInvalidOrder, "asset id is empty")
	case !quantity.IsPositive():
		return errors.Wrapf(domain.ErrInvalidOrder, "quantity must be positive, got %s", quantity.String())
	}
	return nil
}
