package domain

import (
	"fmt"
	"strings"
)

// Action is the side of an executed trade.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

// ParseAction converts user input ("buy", "Sell", "BUY") into an Action.
func ParseAction(s string) (Action, error) {
	switch Action(strings.ToUpper(strings.TrimSpace(s))) {
	case ActionBuy:
		return ActionBuy, nil
	case ActionSell:
		return ActionSell, nil
	}
	return "", fmt.Errorf("unknown action %q, expected buy or sell", s)
}

// IsValid reports whether a is BUY or SELL.
func (a Action) IsValid() bool {
	return a == ActionBuy || a == ActionSell
}

// String returns the string representation of the action
func (a Action) String() string {
	return string(a)
}
