package calculator

import (
	"math"

	"SignalSentinel/internal/model"
)

// RSIValues computes RSI for every close using simple moving averages of gains
// and losses over the trailing period deltas. The window starts at length 1, so
// early values are partial averages rather than NaN. The first delta is taken as 0
// and the first RSI is defined as 50. A window with no gains and no losses yields NaN.
func RSIValues(closes []float64, period int) []float64 {
	out := nanSlice(len(closes))
	if period <= 0 || len(closes) == 0 {
		return out
	}

	gains := make([]float64, len(closes))
	losses := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains[i] = change
		} else {
			losses[i] = -change
		}
	}

	out[0] = 50
	for i := 1; i < len(closes); i++ {
		start := i - period + 1
		if start < 0 {
			start = 0
		}
		avgGain := mean(gains[start : i+1])
		avgLoss := mean(losses[start : i+1])
		switch {
		case avgLoss == 0 && avgGain == 0:
			// undefined, left NaN
		case avgLoss == 0:
			out[i] = 100
		default:
			rs := avgGain / avgLoss
			out[i] = 100 - 100/(1+rs)
		}
	}
	return out
}

// RSI computes the relaxed-window RSI aligned with the series.
func RSI(series model.PriceSeries, period int) ([]model.IndicatorValue, error) {
	if err := check(series, period); err != nil {
		return nil, err
	}
	return align(series, RSIValues(series.Closes(), period)), nil
}

// LatestRSI returns the RSI at the newest point of the series.
func LatestRSI(series model.PriceSeries, period int) (float64, error) {
	if err := check(series, period); err != nil {
		return math.NaN(), err
	}
	values := RSIValues(series.Closes(), period)
	return values[len(values)-1], nil
}

// LatestValue returns the newest non-NaN value of an indicator sequence.
func LatestValue(values []model.IndicatorValue) (model.IndicatorValue, bool) {
	for i := len(values) - 1; i >= 0; i-- {
		if !math.IsNaN(values[i].Value) {
			return values[i], true
		}
	}
	return model.IndicatorValue{}, false
}

func check(series model.PriceSeries, periods ...int) error {
	for _, p := range periods {
		if p <= 0 {
			return ErrInvalidPeriod
		}
	}
	if series.Len() == 0 {
		return ErrEmptySeries
	}
	return nil
}

func align(series model.PriceSeries, values []float64) []model.IndicatorValue {
	out := make([]model.IndicatorValue, len(values))
	for i, v := range values {
		out[i] = model.IndicatorValue{Time: series.Points[i].Time, Value: v}
	}
	return out
}
