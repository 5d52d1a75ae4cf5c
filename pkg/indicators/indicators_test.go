package indicators

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/papertrade/internal/domain"
)

func series(values ...float64) []domain.PricePoint {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	points := make([]domain.PricePoint, len(values))
	for i, v := range values {
		points[i] = domain.PricePoint{Timestamp: start.Add(time.Duration(i) * time.Hour), Price: decimal.NewFromFloat(v)}
	}
	return points
}

func constant(n int, v float64) []decimal.Decimal {
	out := make([]decimal.Decimal, n)
	for i := range out {
		out[i] = decimal.NewFromFloat(v)
	}
	return out
}

func TestCalculateEMA_ConstantSeries(t *testing.T) {
	ema, err := CalculateEMA(constant(30, 42), 9)
	require.NoError(t, err)
	require.NotEmpty(t, ema)

	for _, v := range ema {
		f, _ := v.Float64()
		assert.InDelta(t, 42.0, f, 1e-9)
	}
}

func TestCalculateEMA_NotEnoughData(t *testing.T) {
	_, err := CalculateEMA(constant(3, 1), 9)
	assert.True(t, errors.Is(err, ErrNotEnoughData))

	_, err = CalculateRSI(constant(14, 1), 14)
	assert.True(t, errors.Is(err, ErrNotEnoughData))

	_, err = CalculateMACD(constant(25, 1))
	assert.True(t, errors.Is(err, ErrNotEnoughData))
}

func TestCalculateRSI_Bounds(t *testing.T) {
	closes := make([]decimal.Decimal, 0, 40)
	price := 100.0
	for i := 0; i < 40; i++ {
		if i%2 == 0 {
			price += 2
		} else {
			price--
		}
		closes = append(closes, decimal.NewFromFloat(price))
	}

	rsi, err := CalculateRSI(closes, 14)
	require.NoError(t, err)
	require.NotEmpty(t, rsi)

	last := rsi[len(rsi)-1]
	assert.True(t, last.GreaterThan(decimal.NewFromInt(50)), last.String())
	assert.True(t, last.LessThan(decimal.NewFromInt(100)), last.String())
}

func TestSummarize(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		_, err := Summarize(nil, DefaultEMAPeriod, DefaultRSIPeriod)
		assert.True(t, errors.Is(err, ErrNotEnoughData))
	})

	t.Run("short series has range only", func(t *testing.T) {
		s, err := Summarize(series(100, 120, 80, 110), DefaultEMAPeriod, DefaultRSIPeriod)
		require.NoError(t, err)

		assert.True(t, s.First.Equal(decimal.NewFromInt(100)))
		assert.True(t, s.Last.Equal(decimal.NewFromInt(110)))
		assert.True(t, s.Min.Equal(decimal.NewFromInt(80)))
		assert.True(t, s.Max.Equal(decimal.NewFromInt(120)))
		assert.True(t, s.ChangePct.Equal(decimal.NewFromInt(10)), s.ChangePct.String())
		assert.Equal(t, 4, s.Points)
		assert.False(t, s.EMA.Valid)
		assert.False(t, s.RSI.Valid)
		assert.False(t, s.MACD.Valid)
	})

	t.Run("long series has indicators", func(t *testing.T) {
		values := make([]float64, 60)
		for i := range values {
			values[i] = 100 + float64(i%5)
		}
		s, err := Summarize(series(values...), DefaultEMAPeriod, DefaultRSIPeriod)
		require.NoError(t, err)

		require.True(t, s.EMA.Valid)
		require.True(t, s.RSI.Valid)
		require.True(t, s.MACD.Valid)
		assert.True(t, s.EMA.Decimal.GreaterThanOrEqual(s.Min))
		assert.True(t, s.EMA.Decimal.LessThanOrEqual(s.Max))
	})
}
