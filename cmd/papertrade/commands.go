package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/subcommands"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/papertrade/internal/domain"
	"github.com/vadiminshakov/papertrade/internal/marketdata"
	"github.com/vadiminshakov/papertrade/internal/render"
	"github.com/vadiminshakov/papertrade/internal/session"
	"github.com/vadiminshakov/papertrade/internal/tui"
	"github.com/vadiminshakov/papertrade/internal/web"
)

// tradeCmd runs the interactive loop.
type tradeCmd struct {
	user string
}

func (*tradeCmd) Name() string     { return "trade" }
func (*tradeCmd) Synopsis() string { return "trade interactively in the terminal" }
func (*tradeCmd) Usage() string {
	return `papertrade trade [--user <name>]

  Shows the ledger and loops over trade and chart menus until you quit.
  The username is asked for when --user is not set.
`
}

func (c *tradeCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "user", "", "Ledger owner")
}

func (c *tradeCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	rt, err := openRuntime(ctx)
	if err != nil {
		fail("Error: %v", err)
		return subcommands.ExitFailure
	}
	defer rt.Close()

	app := tui.NewApp(rt.svc, tui.HuhPrompter{}, os.Stdout, rt.logger, c.user, rt.cfg.Market.HistoryDays)
	if err := app.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fail("Error: %v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// orderCmd executes a single buy or sell.
type orderCmd struct {
	action string
	user   string
	asset  string
	qty    string
}

func (c *orderCmd) Name() string { return c.action }
func (c *orderCmd) Synopsis() string {
	return fmt.Sprintf("%s an asset at the current market price", c.action)
}
func (c *orderCmd) Usage() string {
	return fmt.Sprintf(`papertrade %s --user <name> --asset <id> --qty <quantity>

  Quantity is at least 0.0001 with up to 4 decimal places.
`, c.action)
}

func (c *orderCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "user", "", "Ledger owner")
	f.StringVar(&c.asset, "asset", "", "Asset identifier, e.g. BTC")
	f.StringVar(&c.qty, "qty", "", "Quantity to trade")
}

func (c *orderCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	action, err := domain.ParseAction(c.action)
	if err != nil {
		fail("Error: %v", err)
		return subcommands.ExitUsageError
	}
	if strings.TrimSpace(c.user) == "" || strings.TrimSpace(c.asset) == "" {
		fail("Error: --user and --asset are required")
		return subcommands.ExitUsageError
	}
	qty, err := session.ParseQuantity(c.qty)
	if err != nil {
		fail("Error: %v", err)
		return subcommands.ExitUsageError
	}

	rt, err := openRuntime(ctx)
	if err != nil {
		fail("Error: %v", err)
		return subcommands.ExitFailure
	}
	defer rt.Close()

	res, err := rt.svc.Trade(ctx, c.user, action, c.asset, qty)
	switch {
	case err == nil:
		fmt.Println(render.TradeResult(res, marketdata.NormalizeID(c.asset)))
		return subcommands.ExitSuccess
	case errors.Is(err, domain.ErrInsufficientFunds):
		fmt.Println(render.Warning("Insufficient funds."))
	case errors.Is(err, domain.ErrInsufficientHoldings):
		fmt.Println(render.Warning("Not enough holdings."))
	case errors.Is(err, domain.ErrPriceUnavailable):
		fmt.Println(render.Warning("Unable to fetch price."))
	case errors.Is(err, domain.ErrInvalidOrder):
		fmt.Println(render.Warning(err.Error()))
		return subcommands.ExitUsageError
	default:
		rt.logger.Error("trade failed", zap.String("user", c.user), zap.Error(err))
		fail("Error: %v", err)
	}
	return subcommands.ExitFailure
}

// showCmd prints a ledger.
type showCmd struct {
	user string
}

func (*showCmd) Name() string     { return "show" }
func (*showCmd) Synopsis() string { return "display wallet, holdings and recent transactions" }
func (*showCmd) Usage() string {
	return `papertrade show --user <name>
`
}

func (c *showCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "user", "", "Ledger owner")
}

func (c *showCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if strings.TrimSpace(c.user) == "" {
		fail("Error: --user is required")
		return subcommands.ExitUsageError
	}

	rt, err := openRuntime(ctx)
	if err != nil {
		fail("Error: %v", err)
		return subcommands.ExitFailure
	}
	defer rt.Close()

	view, err := rt.svc.View(ctx, c.user)
	if err != nil {
		fail("Error loading ledger: %v", err)
		return subcommands.ExitFailure
	}
	fmt.Println(render.Ledger(view))
	return subcommands.ExitSuccess
}

// assetsCmd lists the tradable catalog.
type assetsCmd struct{}

func (*assetsCmd) Name() string     { return "assets" }
func (*assetsCmd) Synopsis() string { return "list tradable assets" }
func (*assetsCmd) Usage() string {
	return `papertrade assets
`
}

func (*assetsCmd) SetFlags(*flag.FlagSet) {}

func (*assetsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	rt, err := openRuntime(ctx)
	if err != nil {
		fail("Error: %v", err)
		return subcommands.ExitFailure
	}
	defer rt.Close()

	assets := rt.svc.Assets(ctx)
	if len(assets) == 0 {
		fmt.Println(render.Warning("Asset list is unavailable, try again later."))
		return subcommands.ExitFailure
	}
	fmt.Println(render.Assets(assets))
	return subcommands.ExitSuccess
}

// chartCmd prints a price history summary.
type chartCmd struct {
	asset string
	days  int
}

func (*chartCmd) Name() string     { return "chart" }
func (*chartCmd) Synopsis() string { return "chart the price history of an asset" }
func (*chartCmd) Usage() string {
	return `papertrade chart --asset <id> [--days <n>]
`
}

func (c *chartCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.asset, "asset", "", "Asset identifier, e.g. BTC")
	f.IntVar(&c.days, "days", 0, "History window in days (defaults to market.history_days)")
}

func (c *chartCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if strings.TrimSpace(c.asset) == "" {
		fail("Error: --asset is required")
		return subcommands.ExitUsageError
	}

	rt, err := openRuntime(ctx)
	if err != nil {
		fail("Error: %v", err)
		return subcommands.ExitFailure
	}
	defer rt.Close()

	days := c.days
	if days <= 0 {
		days = rt.cfg.Market.HistoryDays
	}

	id := marketdata.NormalizeID(c.asset)
	fmt.Println(render.Chart(id, rt.svc.History(ctx, id, days), render.DefaultChartWidth))
	return subcommands.ExitSuccess
}

// serveCmd runs the HTTP dashboard.
type serveCmd struct {
	addr string
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "serve the web dashboard and metrics" }
func (*serveCmd) Usage() string {
	return `papertrade serve [--addr <host:port>]

  Serves HTTPS with Let's Encrypt certificates when dashboard.tls_domains is configured.
`
}

func (c *serveCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.addr, "addr", "", "Listen address (defaults to dashboard.addr)")
}

func (c *serveCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	rt, err := openRuntime(ctx)
	if err != nil {
		fail("Error: %v", err)
		return subcommands.ExitFailure
	}
	defer rt.Close()

	addr := c.addr
	if addr == "" {
		addr = rt.cfg.Dashboard.Addr
	}

	// a nil *WALStore must not reach the server as a non-nil interface
	var srv *web.Server
	if rt.journal != nil {
		srv = web.NewServer(addr, rt.svc, rt.journal, rt.cfg.Market.HistoryDays, rt.logger)
	} else {
		srv = web.NewServer(addr, rt.svc, nil, rt.cfg.Market.HistoryDays, rt.logger)
	}

	if len(rt.cfg.Dashboard.TLSDomains) > 0 {
		err = srv.StartWithAutoTLS(ctx, rt.cfg.Dashboard.TLSDomains, rt.cfg.Dashboard.CertCache)
	} else {
		err = srv.Start(ctx)
	}
	if err != nil {
		rt.logger.Error("dashboard stopped", zap.Error(err))
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
