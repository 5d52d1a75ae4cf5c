// Package render formats ledgers, transactions and price charts for the terminal.
package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/papertrade/internal/domain"
	"github.com/vadiminshakov/papertrade/internal/session"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	danger    = lipgloss.AdaptiveColor{Light: "#D7263D", Dark: "#FF5F6D"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(0, 2).
			Bold(true)

	sectionStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1)

	mutedStyle = lipgloss.NewStyle().Foreground(subtle)
	gainStyle  = lipgloss.NewStyle().Foreground(special)
	lossStyle  = lipgloss.NewStyle().Foreground(danger)
	warnStyle  = lipgloss.NewStyle().Foreground(danger).Bold(true)
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(highlight).Padding(0, 1)
)

// Header returns the application banner.
func Header() string {
	return headerStyle.Render("PAPERTRADE") + "\n" + mutedStyle.Render("Trade. Learn. Dominate.")
}

// Money formats v as $1234.56.
func Money(v decimal.Decimal) string {
	if v.IsNegative() {
		return "-$" + v.Neg().StringFixed(2)
	}
	return "$" + v.StringFixed(2)
}

// Signed colors v green when positive and red when negative.
func Signed(v decimal.Decimal) string {
	switch {
	case v.IsPositive():
		return gainStyle.Render(Money(v))
	case v.IsNegative():
		return lossStyle.Render(Money(v))
	default:
		return Money(v)
	}
}

// Warning renders a rejected action message.
func Warning(msg string) string {
	return warnStyle.Render(msg)
}

// Success renders a confirmation message.
func Success(msg string) string {
	return gainStyle.Render(msg)
}

// Ledger renders wallet, holdings, realized profit and recent transactions of v.
func Ledger(v session.View) string {
	var b strings.Builder

	b.WriteString(sectionStyle.Render("User: "+v.User) + "\n")
	b.WriteString(fmt.Sprintf("Wallet Balance:  %s\n", Money(v.Ledger.Wallet)))
	b.WriteString(fmt.Sprintf("Realized Profit: %s\n", Signed(v.Ledger.RealizedProfit)))
	b.WriteString(fmt.Sprintf("Equity:          %s\n", Money(v.Equity)))

	b.WriteString(sectionStyle.Render("Holdings") + "\n")
	b.WriteString(Holdings(v.Ledger, v.Prices) + "\n")

	b.WriteString(sectionStyle.Render("Recent Transactions") + "\n")
	b.WriteString(Transactions(v.Recent))

	return boxStyle.Render(b.String())
}

// Holdings lists positions sorted by asset id, with unrealized profit where a price is known.
func Holdings(l domain.Ledger, prices map[string]decimal.Decimal) string {
	if len(l.Holdings) == 0 {
		return mutedStyle.Render("No holdings yet.")
	}

	ids := make([]string, 0, len(l.Holdings))
	for id := range l.Holdings {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	lines := make([]string, 0, len(ids))
	for _, id := range ids {
		h := l.Holdings[id]
		line := fmt.Sprintf("%s: %s @ %s", id, h.Quantity.StringFixed(4), Money(h.AvgPrice))
		if price, ok := prices[id]; ok {
			line += fmt.Sprintf("  now %s  P/L %s", Money(price), Signed(h.UnrealizedPnL(price)))
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// Transaction formats tx as [YYYY-MM-DDTHH:MM:SS] SELL 1.0000 BTC @ $150.0000 | Profit: $0.00.
func Transaction(tx domain.Transaction) string {
	s := fmt.Sprintf("[%s] %s %s %s @ $%s",
		tx.Timestamp.UTC().Format("2006-01-02T15:04:05"),
		tx.Action, tx.Quantity.StringFixed(4), tx.AssetID, tx.Price.StringFixed(4))
	if tx.Action == domain.ActionSell && tx.Profit.Valid {
		s += " | Profit: " + Money(tx.Profit.Decimal)
	}
	return s
}

// Transactions renders txs one per line in the given order.
func Transactions(txs []domain.Transaction) string {
	if len(txs) == 0 {
		return mutedStyle.Render("No transactions yet.")
	}

	lines := make([]string, len(txs))
	for i, tx := range txs {
		lines[i] = Transaction(tx)
	}
	return strings.Join(lines, "\n")
}

// TradeResult renders the confirmation of an executed trade.
func TradeResult(res session.TradeResult, label string) string {
	tx := res.Transaction
	if label == "" {
		label = tx.AssetID
	}

	if tx.Action == domain.ActionSell {
		return Success(fmt.Sprintf("Sold %s %s | Profit: %s", tx.Quantity.StringFixed(4), label, Money(tx.Profit.Decimal)))
	}
	return Success(fmt.Sprintf("Bought %s %s", tx.Quantity.StringFixed(4), label))
}

// Quote renders the current price line of an asset.
func Quote(label string, price decimal.Decimal) string {
	return sectionStyle.Render(fmt.Sprintf("%s: $%s", label, price.StringFixed(4)))
}

// Assets lists the catalog as "ID  SYMBOL - Name".
func Assets(assets []domain.Asset) string {
	if len(assets) == 0 {
		return mutedStyle.Render("No assets available.")
	}

	lines := make([]string, len(assets))
	for i, a := range assets {
		lines[i] = fmt.Sprintf("%-8s %s", a.ID, a.Label())
	}
	return strings.Join(lines, "\n")
}
