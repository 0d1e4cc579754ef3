package strategy

import (
	"fmt"
	"math"

	"SignalSentinel/internal/calculator"
	"SignalSentinel/internal/model"
)

// Weights sets how much each indicator contributes to the composite score.
type Weights struct {
	RSI       float64 `yaml:"rsi"`
	Bollinger float64 `yaml:"bollinger"`
	MACD      float64 `yaml:"macd"`
}

// Config holds the indicator periods and signal policy for a Generator.
type Config struct {
	RSIPeriod        int
	RSILower         float64
	RSIUpper         float64
	BollingerPeriod  int
	BollingerDev     float64
	MACDFast         int
	MACDSlow         int
	MACDSignal       int
	Weights          Weights
	CompositeTrigger float64
}

// DefaultConfig returns the standard 14/20/12-26-9 setup with 0.4/0.3/0.3 weights.
func DefaultConfig() Config {
	return Config{
		RSIPeriod:        14,
		RSILower:         30,
		RSIUpper:         70,
		BollingerPeriod:  20,
		BollingerDev:     2,
		MACDFast:         12,
		MACDSlow:         26,
		MACDSignal:       9,
		Weights:          Weights{RSI: 0.4, Bollinger: 0.3, MACD: 0.3},
		CompositeTrigger: 0.5,
	}
}

// Validate rejects non-positive periods and inverted RSI thresholds.
func (c Config) Validate() error {
	if c.RSIPeriod <= 0 || c.BollingerPeriod <= 0 || c.MACDFast <= 0 || c.MACDSlow <= 0 || c.MACDSignal <= 0 {
		return calculator.ErrInvalidPeriod
	}
	if c.RSILower >= c.RSIUpper {
		return fmt.Errorf("rsi lower threshold %.1f must be below upper %.1f", c.RSILower, c.RSIUpper)
	}
	return nil
}

// Generator derives per-indicator and composite buy/sell signals for a series.
// Each stage only writes its own columns, so stages can be rerun in any order;
// the composite stage reads whatever the other stages last wrote.
type Generator struct {
	cfg    Config
	series model.PriceSeries
	rows   []model.SignalRow
}

// NewGenerator copies the series and prepares one row per point.
func NewGenerator(series model.PriceSeries, cfg Config) (*Generator, error) {
	if series.Len() == 0 {
		return nil, calculator.ErrEmptySeries
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	points := make([]model.PricePoint, series.Len())
	copy(points, series.Points)
	g := &Generator{
		cfg:    cfg,
		series: model.PriceSeries{Symbol: series.Symbol, Points: points},
		rows:   make([]model.SignalRow, len(points)),
	}
	for i, p := range points {
		g.rows[i] = model.SignalRow{
			Time:           p.Time,
			Close:          p.Close,
			RSI:            math.NaN(),
			BollingerLower: math.NaN(),
			BollingerUpper: math.NaN(),
			MACD:           math.NaN(),
			MACDSignal:     math.NaN(),
		}
	}
	return g, nil
}

// Symbol returns the symbol of the underlying series.
func (g *Generator) Symbol() string { return g.series.Symbol }

// CalculateRSISignals fills the RSI column and its threshold flags.
func (g *Generator) CalculateRSISignals() []float64 {
	rsi := calculator.RSIValues(g.series.Closes(), g.cfg.RSIPeriod)
	for i := range g.rows {
		g.rows[i].RSI = rsi[i]
		g.rows[i].RSIBuy = rsi[i] < g.cfg.RSILower
		g.rows[i].RSISell = rsi[i] > g.cfg.RSIUpper
	}
	return rsi
}

// CalculateBollingerSignals fills the band columns. Touching a band counts.
func (g *Generator) CalculateBollingerSignals() (lower, upper []float64) {
	lower, upper = calculator.BollingerValues(g.series.Closes(), g.cfg.BollingerPeriod, g.cfg.BollingerDev)
	for i := range g.rows {
		c := g.rows[i].Close
		g.rows[i].BollingerLower = lower[i]
		g.rows[i].BollingerUpper = upper[i]
		g.rows[i].BollingerBuy = c <= lower[i]
		g.rows[i].BollingerSell = c >= upper[i]
	}
	return lower, upper
}

// CalculateMACDSignals fills the MACD columns and crossover flags.
func (g *Generator) CalculateMACDSignals() (macdLine, signalLine []float64) {
	macdLine, signalLine = calculator.MACDValues(g.series.Closes(), g.cfg.MACDFast, g.cfg.MACDSlow, g.cfg.MACDSignal)
	for i := range g.rows {
		g.rows[i].MACD = macdLine[i]
		g.rows[i].MACDSignal = signalLine[i]
		g.rows[i].MACDBuy = false
		g.rows[i].MACDSell = false
		if i == 0 {
			continue
		}
		prevM, prevS := macdLine[i-1], signalLine[i-1]
		g.rows[i].MACDBuy = prevM <= prevS && macdLine[i] > signalLine[i]
		g.rows[i].MACDSell = prevM >= prevS && macdLine[i] < signalLine[i]
	}
	return macdLine, signalLine
}

// CalculateCompositeSignal combines the indicator flags into weighted scores.
func (g *Generator) CalculateCompositeSignal() {
	w := g.cfg.Weights
	for i := range g.rows {
		r := &g.rows[i]
		r.CompositeBuyScore = w.RSI*flag(r.RSIBuy) + w.Bollinger*flag(r.BollingerBuy) + w.MACD*flag(r.MACDBuy)
		r.CompositeSellScore = w.RSI*flag(r.RSISell) + w.Bollinger*flag(r.BollingerSell) + w.MACD*flag(r.MACDSell)
		r.CompositeBuy = r.CompositeBuyScore > g.cfg.CompositeTrigger
		r.CompositeSell = r.CompositeSellScore > g.cfg.CompositeTrigger
	}
}

// GetFinalSignals runs RSI, Bollinger, MACD and then the composite stage,
// returning a copy of the full table.
func (g *Generator) GetFinalSignals() []model.SignalRow {
	g.CalculateRSISignals()
	g.CalculateBollingerSignals()
	g.CalculateMACDSignals()
	g.CalculateCompositeSignal()
	return g.Rows()
}

// Rows returns a copy of the current table without recomputing anything.
func (g *Generator) Rows() []model.SignalRow {
	out := make([]model.SignalRow, len(g.rows))
	copy(out, g.rows)
	return out
}

// Latest returns the newest row of the current table.
func (g *Generator) Latest() model.SignalRow {
	return g.rows[len(g.rows)-1]
}

func flag(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
