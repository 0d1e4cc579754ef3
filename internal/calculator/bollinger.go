package calculator

import (
	"math"

	"SignalSentinel/internal/model"
)

// BollingerValues returns the lower and upper bands: SMA -/+ mult * population std.
// Both are NaN until period closes are available.
func BollingerValues(closes []float64, period int, mult float64) (lower, upper []float64) {
	middle := SMA(closes, period)
	std := RollingStd(closes, period)
	lower = nanSlice(len(closes))
	upper = nanSlice(len(closes))
	for i := range closes {
		if math.IsNaN(middle[i]) {
			continue
		}
		lower[i] = middle[i] - mult*std[i]
		upper[i] = middle[i] + mult*std[i]
	}
	return lower, upper
}

// BollingerBands computes the bands aligned with the series.
func BollingerBands(series model.PriceSeries, period int, mult float64) (lower, upper []model.IndicatorValue, err error) {
	if err := check(series, period); err != nil {
		return nil, nil, err
	}
	l, u := BollingerValues(series.Closes(), period, mult)
	return align(series, l), align(series, u), nil
}
