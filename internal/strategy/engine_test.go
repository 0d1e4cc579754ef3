package strategy

import (
	"math"
	"testing"
	"time"

	"SignalSentinel/internal/calculator"
	"SignalSentinel/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func flatThenDrop() model.PriceSeries {
	closes := make([]float64, 26)
	for i := range closes {
		closes[i] = 100
	}
	closes[25] = 80
	return model.NewPriceSeries("XBI", day0, closes...)
}

func sameFloat(a, b float64) bool {
	return a == b || (math.IsNaN(a) && math.IsNaN(b))
}

func assertRowsEqual(t *testing.T, want, got []model.SignalRow) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		w, g := want[i], got[i]
		assert.True(t, sameFloat(w.RSI, g.RSI), "row %d rsi", i)
		assert.True(t, sameFloat(w.BollingerLower, g.BollingerLower), "row %d lower", i)
		assert.True(t, sameFloat(w.BollingerUpper, g.BollingerUpper), "row %d upper", i)
		assert.True(t, sameFloat(w.MACD, g.MACD), "row %d macd", i)
		assert.True(t, sameFloat(w.MACDSignal, g.MACDSignal), "row %d macd signal", i)
		w.RSI, g.RSI = 0, 0
		w.BollingerLower, g.BollingerLower = 0, 0
		w.BollingerUpper, g.BollingerUpper = 0, 0
		w.MACD, g.MACD = 0, 0
		w.MACDSignal, g.MACDSignal = 0, 0
		assert.Equal(t, w, g, "row %d", i)
	}
}

func TestNewGenerator_Errors(t *testing.T) {
	_, err := NewGenerator(model.PriceSeries{Symbol: "XBI"}, DefaultConfig())
	assert.ErrorIs(t, err, calculator.ErrEmptySeries)

	cfg := DefaultConfig()
	cfg.MACDSlow = 0
	_, err = NewGenerator(flatThenDrop(), cfg)
	assert.ErrorIs(t, err, calculator.ErrInvalidPeriod)

	cfg = DefaultConfig()
	cfg.RSILower, cfg.RSIUpper = 70, 30
	_, err = NewGenerator(flatThenDrop(), cfg)
	assert.Error(t, err)
}

func TestGetFinalSignals_ConstantSeries(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 10
	}
	g, err := NewGenerator(model.NewPriceSeries("SPY", day0, closes...), DefaultConfig())
	require.NoError(t, err)

	rows := g.GetFinalSignals()
	require.Len(t, rows, 20)
	assert.Equal(t, 50.0, rows[0].RSI)
	for i, r := range rows {
		if i > 0 {
			assert.True(t, math.IsNaN(r.RSI), "row %d", i)
		}
		assert.False(t, r.RSIBuy || r.RSISell, "row %d", i)
		assert.False(t, r.MACDBuy || r.MACDSell, "row %d", i)
		assert.False(t, r.CompositeBuy, "row %d", i)
		assert.False(t, r.CompositeSell, "row %d", i)
	}

	last := rows[19]
	assert.Equal(t, 10.0, last.BollingerLower)
	assert.Equal(t, 10.0, last.BollingerUpper)
	// touching a band counts, so a collapsed band fires both sides
	assert.True(t, last.BollingerBuy)
	assert.True(t, last.BollingerSell)
	assert.InDelta(t, 0.3, last.CompositeBuyScore, 1e-12)
	assert.InDelta(t, 0.3, last.CompositeSellScore, 1e-12)
}

func TestGetFinalSignals_CompositeBuy(t *testing.T) {
	g, err := NewGenerator(flatThenDrop(), DefaultConfig())
	require.NoError(t, err)

	rows := g.GetFinalSignals()
	last := rows[len(rows)-1]
	assert.Equal(t, 0.0, last.RSI)
	assert.True(t, last.RSIBuy)
	assert.True(t, last.BollingerBuy)
	assert.False(t, last.BollingerSell)
	assert.True(t, last.MACDSell, "macd drops below its signal line")
	assert.InDelta(t, 0.7, last.CompositeBuyScore, 1e-12)
	assert.InDelta(t, 0.3, last.CompositeSellScore, 1e-12)
	assert.True(t, last.CompositeBuy)
	assert.False(t, last.CompositeSell)
	assert.Equal(t, last, g.Latest())

	for i, r := range rows[:len(rows)-1] {
		assert.False(t, r.CompositeBuy || r.CompositeSell, "row %d", i)
	}
}

func TestGetFinalSignals_Idempotent(t *testing.T) {
	g, err := NewGenerator(flatThenDrop(), DefaultConfig())
	require.NoError(t, err)
	first := g.GetFinalSignals()
	second := g.GetFinalSignals()
	assertRowsEqual(t, first, second)
}

func TestCompositeNeverBothWithDefaultWeights(t *testing.T) {
	closes := []float64{50, 52, 49, 47, 51, 55, 60, 58, 54, 50, 45, 44, 46, 49, 53, 58, 61, 59, 57, 52,
		48, 46, 45, 47, 50, 54, 57, 60, 62, 58, 53, 49, 47, 46, 48, 51, 55, 59, 63, 66}
	g, err := NewGenerator(model.NewPriceSeries("VRTX", day0, closes...), DefaultConfig())
	require.NoError(t, err)
	for i, r := range g.GetFinalSignals() {
		if r.RSIBuy && r.RSISell || r.BollingerBuy && r.BollingerSell || r.MACDBuy && r.MACDSell {
			continue
		}
		assert.False(t, r.CompositeBuy && r.CompositeSell, "row %d", i)
	}
}

func TestCalculateMACDSignals_Crossovers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal = 2, 4, 2
	g, err := NewGenerator(model.NewPriceSeries("REGN", day0, 10, 9, 8, 7, 6, 7, 8, 9, 10, 11), cfg)
	require.NoError(t, err)

	g.CalculateMACDSignals()
	rows := g.Rows()
	for i, r := range rows {
		assert.Equal(t, i == 5, r.MACDBuy, "buy at row %d", i)
		assert.Equal(t, i == 1, r.MACDSell, "sell at row %d", i)
	}
	assert.False(t, rows[0].MACDBuy || rows[0].MACDSell)
}

func TestStagesOnlyTouchOwnColumns(t *testing.T) {
	g, err := NewGenerator(flatThenDrop(), DefaultConfig())
	require.NoError(t, err)

	g.CalculateCompositeSignal()
	for _, r := range g.Rows() {
		assert.False(t, r.CompositeBuy || r.CompositeSell)
	}

	g.CalculateRSISignals()
	rows := g.Rows()
	last := rows[len(rows)-1]
	assert.True(t, last.RSIBuy)
	assert.True(t, math.IsNaN(last.BollingerLower))
	assert.True(t, math.IsNaN(last.MACD))

	g.CalculateBollingerSignals()
	before := g.Rows()
	g.CalculateRSISignals()
	assertRowsEqual(t, before, g.Rows())
}

func TestCustomWeights(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Weights = Weights{RSI: 0, Bollinger: 0.6, MACD: 0.4}
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 10
	}
	g, err := NewGenerator(model.NewPriceSeries("SPY", day0, closes...), cfg)
	require.NoError(t, err)

	last := g.GetFinalSignals()[19]
	// a collapsed band alone clears the trigger on both sides under this weighting
	assert.True(t, last.CompositeBuy)
	assert.True(t, last.CompositeSell)
}

func TestGeneratorDoesNotMutateSeries(t *testing.T) {
	series := flatThenDrop()
	before := append([]model.PricePoint(nil), series.Points...)
	g, err := NewGenerator(series, DefaultConfig())
	require.NoError(t, err)
	g.GetFinalSignals()
	assert.Equal(t, before, series.Points)
	assert.Equal(t, "XBI", g.Symbol())
}
