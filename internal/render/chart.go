package render

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/papertrade/internal/domain"
	"github.com/vadiminshakov/papertrade/pkg/indicators"
)

// DefaultChartWidth is the sparkline width in cells.
const DefaultChartWidth = 60

var sparkLevels = []rune("▁▂▃▄▅▆▇█")

// Chart renders a price summary and a sparkline of points.
func Chart(label string, points []domain.PricePoint, width int) string {
	title := sectionStyle.Render(label + " Price Chart")

	summary, err := indicators.Summarize(points, indicators.DefaultEMAPeriod, indicators.DefaultRSIPeriod)
	if err != nil {
		return title + "\n" + mutedStyle.Render("No chart data available.")
	}

	var b strings.Builder
	b.WriteString(title + "\n")
	b.WriteString(fmt.Sprintf("%s → %s  (%d points)\n",
		points[0].Timestamp.UTC().Format("2006-01-02 15:04"),
		points[len(points)-1].Timestamp.UTC().Format("2006-01-02 15:04"),
		summary.Points))
	b.WriteString(gainStyle.Render(Sparkline(points, width)) + "\n")
	b.WriteString(fmt.Sprintf("Last %s  Min %s  Max %s  Change %s\n",
		priceFixed(summary.Last), priceFixed(summary.Min), priceFixed(summary.Max), percent(summary.ChangePct)))

	var extra []string
	if summary.EMA.Valid {
		extra = append(extra, fmt.Sprintf("EMA%d %s", indicators.DefaultEMAPeriod, priceFixed(summary.EMA.Decimal)))
	}
	if summary.RSI.Valid {
		extra = append(extra, fmt.Sprintf("RSI%d %s", indicators.DefaultRSIPeriod, summary.RSI.Decimal.StringFixed(1)))
	}
	if summary.MACD.Valid {
		extra = append(extra, fmt.Sprintf("MACD %s", summary.MACD.Decimal.StringFixed(4)))
	}
	if len(extra) > 0 {
		b.WriteString(mutedStyle.Render(strings.Join(extra, "  ")) + "\n")
	}

	return b.String()
}

// Sparkline draws points as block characters, averaging buckets down to width cells.
func Sparkline(points []domain.PricePoint, width int) string {
	if len(points) == 0 {
		return ""
	}
	if width <= 0 {
		width = DefaultChartWidth
	}

	values := resample(points, width)

	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = decimal.Min(lo, v)
		hi = decimal.Max(hi, v)
	}
	span := hi.Sub(lo)
	top := decimal.NewFromInt(int64(len(sparkLevels) - 1))

	var b strings.Builder
	for _, v := range values {
		idx := 0
		if span.IsPositive() {
			idx = int(v.Sub(lo).Div(span).Mul(top).Round(0).IntPart())
		}
		b.WriteRune(sparkLevels[idx])
	}
	return b.String()
}

func resample(points []domain.PricePoint, width int) []decimal.Decimal {
	if len(points) <= width {
		out := make([]decimal.Decimal, len(points))
		for i, p := range points {
			out[i] = p.Price
		}
		return out
	}

	out := make([]decimal.Decimal, width)
	for i := 0; i < width; i++ {
		start := i * len(points) / width
		end := (i + 1) * len(points) / width
		sum := decimal.Zero
		for _, p := range points[start:end] {
			sum = sum.Add(p.Price)
		}
		out[i] = sum.Div(decimal.NewFromInt(int64(end - start)))
	}
	return out
}

func priceFixed(v decimal.Decimal) string {
	return "$" + v.StringFixed(4)
}

func percent(v decimal.Decimal) string {
	s := v.StringFixed(2) + "%"
	switch {
	case v.IsPositive():
		return gainStyle.Render("+" + s)
	case v.IsNegative():
		return lossStyle.Render(s)
	default:
		return s
	}
}
