package calculator

import "SignalSentinel/internal/model"

// MACDValues returns EMA(fast) - EMA(slow) and its EMA(signal) line.
// Values before slow closes are stabilizing and should be read as low-confidence.
func MACDValues(closes []float64, fast, slow, signal int) (macdLine, signalLine []float64) {
	fastEMA := EMA(closes, fast)
	slowEMA := EMA(closes, slow)
	macdLine = make([]float64, len(closes))
	for i := range closes {
		macdLine[i] = fastEMA[i] - slowEMA[i]
	}
	return macdLine, EMA(macdLine, signal)
}

// MACD computes the MACD and signal lines aligned with the series.
func MACD(series model.PriceSeries, fast, slow, signal int) (macdLine, signalLine []model.IndicatorValue, err error) {
	if err := check(series, fast, slow, signal); err != nil {
		return nil, nil, err
	}
	m, s := MACDValues(series.Closes(), fast, slow, signal)
	return align(series, m), align(series, s), nil
}
