// Package indicators provides technical analysis indicators (EMA, MACD, RSI) over price series.
package indicators

import (
	"math"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/momentum"
	"github.com/cinar/indicator/v2/trend"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/papertrade/internal/domain"
)

const (
	DefaultEMAPeriod = 9
	DefaultRSIPeriod = 14
	macdSlowPeriod   = 26
)

// ErrNotEnoughData is returned when a series is shorter than the indicator warmup.
var ErrNotEnoughData = errors.New("not enough data points")

// Summary describes a price series for chart headers.
type Summary struct {
	First     decimal.Decimal
	Last      decimal.Decimal
	Min       decimal.Decimal
	Max       decimal.Decimal
	ChangePct decimal.Decimal
	EMA       decimal.NullDecimal
	RSI       decimal.NullDecimal
	MACD      decimal.NullDecimal
	Points    int
}

// CalculateEMA calculates the Exponential Moving Average for the given period.
func CalculateEMA(closes []decimal.Decimal, period int) ([]decimal.Decimal, error) {
	if period <= 0 || len(closes) < period {
		return nil, errors.Wrapf(ErrNotEnoughData, "ema%d: need %d, got %d", period, period, len(closes))
	}

	closesFloat := decimalsToFloat64(closes)

	ema := trend.NewEmaWithPeriod[float64](period)
	inputChan := helper.SliceToChan(closesFloat)
	outputChan := ema.Compute(inputChan)
	emaFloat := helper.ChanToSlice(outputChan)

	return float64ToDecimals(emaFloat), nil
}

// CalculateMACD calculates MACD line values.
func CalculateMACD(closes []decimal.Decimal) ([]decimal.Decimal, error) {
	if len(closes) < macdSlowPeriod {
		return nil, errors.Wrapf(ErrNotEnoughData, "macd: need %d, got %d", macdSlowPeriod, len(closes))
	}

	closesFloat := decimalsToFloat64(closes)

	macd := trend.NewMacd[float64]()
	inputChan := helper.SliceToChan(closesFloat)
	macdChan, signalChan := macd.Compute(inputChan)
	// drain signal channel to prevent blocking
	go func() {
		for range signalChan {
		}
	}()
	macdFloat := helper.ChanToSlice(macdChan)

	return float64ToDecimals(macdFloat), nil
}

// CalculateRSI calculates the Relative Strength Index for the given period.
func CalculateRSI(closes []decimal.Decimal, period int) ([]decimal.Decimal, error) {
	if period <= 0 || len(closes) < period+1 {
		return nil, errors.Wrapf(ErrNotEnoughData, "rsi%d: need %d, got %d", period, period+1, len(closes))
	}

	closesFloat := decimalsToFloat64(closes)

	rsi := momentum.NewRsiWithPeriod[float64](period)
	inputChan := helper.SliceToChan(closesFloat)
	outputChan := rsi.Compute(inputChan)
	rsiFloat := helper.ChanToSlice(outputChan)

	return float64ToDecimals(rsiFloat), nil
}

// Summarize computes range statistics of points and the latest EMA, RSI and MACD
// values when the series is long enough for them. Points must be oldest first.
func Summarize(points []domain.PricePoint, emaPeriod, rsiPeriod int) (Summary, error) {
	if len(points) == 0 {
		return Summary{}, errors.Wrap(ErrNotEnoughData, "empty price series")
	}

	closes := make([]decimal.Decimal, len(points))
	for i, p := range points {
		closes[i] = p.Price
	}

	s := Summary{
		First:  closes[0],
		Last:   closes[len(closes)-1],
		Min:    decimal.Min(closes[0], closes[1:]...),
		Max:    decimal.Max(closes[0], closes[1:]...),
		Points: len(closes),
	}
	if s.First.IsPositive() {
		s.ChangePct = s.Last.Sub(s.First).Div(s.First).Mul(decimal.NewFromInt(100))
	}

	if ema, err := CalculateEMA(closes, emaPeriod); err == nil {
		s.EMA = lastValue(ema)
	}
	if rsi, err := CalculateRSI(closes, rsiPeriod); err == nil {
		s.RSI = lastValue(rsi)
	}
	if macd, err := CalculateMACD(closes); err == nil {
		s.MACD = lastValue(macd)
	}

	return s, nil
}

func lastValue(values []decimal.Decimal) decimal.NullDecimal {
	if len(values) == 0 {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(values[len(values)-1])
}

// decimalsToFloat64 converts a slice of decimal.Decimal to []float64.
func decimalsToFloat64(decimals []decimal.Decimal) []float64 {
	result := make([]float64, len(decimals))
	for i, d := range decimals {
		result[i], _ = d.Float64()
	}
	return result
}

// float64ToDecimals converts a slice of float64 to []decimal.Decimal, dropping
// NaN and infinite warmup values.
func float64ToDecimals(floats []float64) []decimal.Decimal {
	result := make([]decimal.Decimal, 0, len(floats))
	for _, f := range floats {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			continue
		}
		result = append(result, decimal.NewFromFloat(f))
	}
	return result
}
