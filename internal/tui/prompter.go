package tui

import (
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/papertrade/internal/domain"
	"github.com/vadiminshakov/papertrade/internal/session"
)

// Menu choices.
const (
	ChoiceTrade   = "trade"
	ChoiceChart   = "chart"
	ChoiceRefresh = "refresh"
	ChoiceQuit    = "quit"
)

// Order is the trade the user asked for.
type Order struct {
	Action    domain.Action
	Quantity  decimal.Decimal
	Confirmed bool
}

// Prompter collects user input.
type Prompter interface {
	Username() (string, error)
	Menu() (string, error)
	Asset(assets []domain.Asset) (domain.Asset, error)
	Order(asset domain.Asset, price decimal.Decimal) (Order, error)
}

// HuhPrompter asks with charmbracelet/huh forms.
type HuhPrompter struct{}

func (HuhPrompter) Username() (string, error) {
	var user string
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Enter your username to start").
				Value(&user).
				Validate(func(s string) error {
					if s == "" {
						return fmt.Errorf("username cannot be empty")
					}
					return nil
				}),
		),
	).Run()
	return user, err
}

func (HuhPrompter) Menu() (string, error) {
	var choice string
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("What next?").
				Options(
					huh.NewOption("Trade", ChoiceTrade),
					huh.NewOption("Price chart", ChoiceChart),
					huh.NewOption("Refresh", ChoiceRefresh),
					huh.NewOption("Quit", ChoiceQuit),
				).
				Value(&choice),
		),
	).Run()
	return choice, err
}

func (HuhPrompter) Asset(assets []domain.Asset) (domain.Asset, error) {
	options := make([]huh.Option[string], len(assets))
	byID := make(map[string]domain.Asset, len(assets))
	for i, a := range assets {
		options[i] = huh.NewOption(a.Label(), a.ID)
		byID[a.ID] = a
	}

	var id string
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Choose a coin").
				Options(options...).
				Height(12).
				Value(&id),
		),
	).Run()
	if err != nil {
		return domain.Asset{}, err
	}
	return byID[id], nil
}

func (HuhPrompter) Order(asset domain.Asset, price decimal.Decimal) (Order, error) {
	var (
		action    string
		qtyStr    string
		confirmed bool
	)

	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Action").
				Options(
					huh.NewOption("Buy", string(domain.ActionBuy)),
					huh.NewOption("Sell", string(domain.ActionSell)),
				).
				Value(&action),
			huh.NewInput().
				Title("Quantity").
				Description(fmt.Sprintf("%s at $%s, min %s", asset.Label(), price.StringFixed(4), session.MinQuantity.StringFixed(session.QuantityPlaces))).
				Value(&qtyStr).
				Validate(func(s string) error {
					_, err := session.ParseQuantity(s)
					return err
				}),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Place order?").
				Affirmative("Yes").
				Negative("No").
				Value(&confirmed),
		),
	).Run()
	if err != nil {
		return Order{}, err
	}

	qty, err := session.ParseQuantity(qtyStr)
	if err != nil {
		return Order{}, err
	}

	return Order{Action: domain.Action(action), Quantity: qty, Confirmed: confirmed}, nil
}
