// Package tui runs the interactive trading loop in the terminal.
package tui

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/huh"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/papertrade/internal/domain"
	"github.com/vadiminshakov/papertrade/internal/render"
	"github.com/vadiminshakov/papertrade/internal/session"
)

// App is one interactive session of a user.
type App struct {
	svc      *session.Service
	prompter Prompter
	out      io.Writer
	logger   *zap.Logger
	user     string
	days     int
	width    int
}

// NewApp creates an App. An empty user is asked for on start.
func NewApp(svc *session.Service, prompter Prompter, out io.Writer, logger *zap.Logger, user string, historyDays int) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{
		svc:      svc,
		prompter: prompter,
		out:      out,
		logger:   logger,
		user:     user,
		days:     historyDays,
		width:    render.DefaultChartWidth,
	}
}

// Run loops until the user quits. Business rejections and market data failures are
// shown and the loop continues; persistence failures end the session.
func (a *App) Run(ctx context.Context) error {
	a.println(render.Header())

	if a.user == "" {
		user, err := a.prompter.Username()
		if err != nil {
			return quitOrErr(err)
		}
		a.user = user
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		view, err := a.svc.View(ctx, a.user)
		if err != nil {
			return errors.Wrap(err, "load ledger")
		}
		a.println(render.Ledger(view))

		choice, err := a.prompter.Menu()
		if err != nil {
			return quitOrErr(err)
		}

		switch choice {
		case ChoiceQuit:
			return nil
		case ChoiceRefresh:
			continue
		case ChoiceChart:
			if err := a.chart(ctx); err != nil {
				return quitOrErr(err)
			}
		case ChoiceTrade:
			if err := a.trade(ctx); err != nil {
				return quitOrErr(err)
			}
		}
	}
}

func (a *App) chooseAsset(ctx context.Context) (domain.Asset, bool, error) {
	assets := a.svc.Assets(ctx)
	if len(assets) == 0 {
		a.println(render.Warning("Asset list is unavailable, try again later."))
		return domain.Asset{}, false, nil
	}

	asset, err := a.prompter.Asset(assets)
	if err != nil {
		return domain.Asset{}, false, err
	}
	return asset, asset.ID != "", nil
}

func (a *App) chart(ctx context.Context) error {
	asset, ok, err := a.chooseAsset(ctx)
	if err != nil || !ok {
		return err
	}

	points := a.svc.History(ctx, asset.ID, a.days)
	a.println(render.Chart(asset.Label(), points, a.width))
	return nil
}

func (a *App) trade(ctx context.Context) error {
	asset, ok, err := a.chooseAsset(ctx)
	if err != nil || !ok {
		return err
	}

	price, err := a.svc.Quote(ctx, asset.ID)
	if err != nil {
		a.println(render.Warning("Unable to fetch price."))
		return nil
	}
	a.println(render.Quote(asset.Label(), price))

	order, err := a.prompter.Order(asset, price)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidOrder) {
			a.println(render.Warning(err.Error()))
			return nil
		}
		return err
	}
	if !order.Confirmed {
		return nil
	}

	res, err := a.svc.Trade(ctx, a.user, order.Action, asset.ID, order.Quantity)
	switch {
	case err == nil:
		a.println(render.TradeResult(res, asset.Label()))
		return nil
	case errors.Is(err, domain.ErrInsufficientFunds):
		a.println(render.Warning("Insufficient funds."))
		return nil
	case errors.Is(err, domain.ErrInsufficientHoldings):
		a.println(render.Warning("Not enough holdings."))
		return nil
	case errors.Is(err, domain.ErrPriceUnavailable):
		a.println(render.Warning("Unable to fetch price."))
		return nil
	case errors.Is(err, domain.ErrInvalidOrder):
		a.println(render.Warning(err.Error()))
		return nil
	default:
		a.logger.Error("trade failed", zap.String("user", a.user), zap.Error(err))
		return err
	}
}

func (a *App) println(s string) {
	fmt.Fprintln(a.out, s)
}

func quitOrErr(err error) error {
	if errors.Is(err, huh.ErrUserAborted) {
		return nil
	}
	return err
}
