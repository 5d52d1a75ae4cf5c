// Command papertrade is a paper trading ledger for crypto assets: virtual cash, real
// market prices, persistent per-user holdings.
//
// Usage:
//
//	papertrade [--config config.yaml] <command> [flags]
//
// Commands: trade (interactive), buy, sell, show, assets, chart, serve.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/subcommands"
)

var configPath = flag.String("config", "", "Path to the YAML config file (defaults are used when empty)")

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")

	subcommands.Register(&tradeCmd{}, "ledger")
	subcommands.Register(&orderCmd{action: "buy"}, "ledger")
	subcommands.Register(&orderCmd{action: "sell"}, "ledger")
	subcommands.Register(&showCmd{}, "ledger")

	subcommands.Register(&assetsCmd{}, "market")
	subcommands.Register(&chartCmd{}, "market")

	subcommands.Register(&serveCmd{}, "dashboard")

	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	status := subcommands.Execute(ctx)
	stop()

	os.Exit(int(status))
}
