package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/vadiminshakov/papertrade/config"
	"github.com/vadiminshakov/papertrade/internal/clients"
	"github.com/vadiminshakov/papertrade/internal/marketdata"
	"github.com/vadiminshakov/papertrade/internal/session"
	"github.com/vadiminshakov/papertrade/internal/storage/ledgerstate"
	"github.com/vadiminshakov/papertrade/internal/storage/tradelog"
)

// runtime bundles everything a command needs.
type runtime struct {
	cfg     config.Config
	logger  *zap.Logger
	svc     *session.Service
	journal *tradelog.WALStore
	closers []func() error
}

func openRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, err
	}

	logger, err := cfg.Log.NewLogger()
	if err != nil {
		return nil, err
	}

	rt := &runtime{cfg: cfg, logger: logger}

	store, err := rt.openStore(ctx)
	if err != nil {
		rt.Close()
		return nil, err
	}

	market, err := newMarket(cfg.Market, logger)
	if err != nil {
		rt.Close()
		return nil, err
	}

	opts := []session.Option{
		session.WithLogger(logger),
		session.WithRecentTransactions(cfg.RecentTransactions),
	}
	if cfg.JournalDir != "" {
		journal, err := tradelog.NewWALStore(cfg.JournalDir)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.journal = journal
		rt.closers = append(rt.closers, journal.Close)
		opts = append(opts, session.WithJournal(journal))
	}

	rt.svc = session.NewService(store, market, opts...)
	return rt, nil
}

func (rt *runtime) openStore(ctx context.Context) (session.LedgerStore, error) {
	switch rt.cfg.Storage {
	case config.StorageRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     rt.cfg.Redis.Addr,
			Password: rt.cfg.Redis.Password,
			DB:       rt.cfg.Redis.DB,
		})
		store := ledgerstate.NewRedisStore(rdb, rt.cfg.Redis.KeyPrefix)
		rt.closers = append(rt.closers, store.Close)
		if err := store.Ping(ctx); err != nil {
			return nil, errors.Wrapf(err, "connect to redis at %s", rt.cfg.Redis.Addr)
		}
		return store, nil
	case config.StorageMemory:
		rt.logger.Warn("using in-memory ledger storage, state is lost on exit")
		return ledgerstate.NewMemoryStore(), nil
	default:
		return ledgerstate.NewFileStore(rt.cfg.DataDir)
	}
}

func newMarket(cfg config.MarketConfig, logger *zap.Logger) (marketdata.Provider, error) {
	var client any
	switch cfg.Provider {
	case config.ProviderBybit:
		client = clients.NewBybitClient()
	case config.ProviderHyperliquid:
		hl, err := clients.NewHyperliquidClient(cfg.HyperliquidPrivateKey, cfg.HyperliquidURL)
		if err != nil {
			return nil, err
		}
		client = hl
	default:
		client = clients.NewBinanceClient()
	}

	upstream, err := marketdata.NewProvider(client, cfg.Quote, cfg.CatalogSize)
	if err != nil {
		return nil, err
	}

	return marketdata.NewCachedProvider(upstream,
		marketdata.WithTTLs(marketdata.TTLs{
			Catalog: cfg.CatalogTTL,
			Price:   cfg.PriceTTL,
			History: cfg.HistoryTTL,
		}),
		marketdata.WithRequestTimeout(cfg.RequestTimeout),
		marketdata.WithLogger(logger),
	), nil
}

// Close releases storage handles and flushes the logger.
func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			rt.logger.Warn("close resource", zap.Error(err))
		}
	}
	_ = rt.logger.Sync()
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}
