// Package alert turns the latest indicator readings into AlertEvents.
// Every check is a pure function of its arguments and the Policy.
package alert

import (
	"fmt"
	"math"
	"time"

	"SignalSentinel/internal/calculator"
	"SignalSentinel/internal/model"
)

// Policy holds the alert thresholds.
type Policy struct {
	AlertThresholdPercent      float64
	RSIOversold                float64
	RSIOverbought              float64
	DivergenceThresholdPercent float64
}

// DefaultPolicy returns 5% moves, RSI 30/70 zones and a 10 point divergence.
func DefaultPolicy() Policy {
	return Policy{
		AlertThresholdPercent:      5,
		RSIOversold:                30,
		RSIOverbought:              70,
		DivergenceThresholdPercent: 10,
	}
}

// Evaluator applies a Policy.
type Evaluator struct {
	Policy Policy
}

// NewEvaluator creates an Evaluator for the given policy.
func NewEvaluator(p Policy) *Evaluator {
	return &Evaluator{Policy: p}
}

// PriceMove reports a move from lastPrice to currentPrice of at least the alert threshold.
// A zero lastPrice has no defined percentage change and never alerts.
func (e *Evaluator) PriceMove(symbol string, at time.Time, lastPrice, currentPrice float64) (model.AlertEvent, bool) {
	change, err := calculator.PercentageChange(lastPrice, currentPrice)
	if err != nil {
		return model.AlertEvent{}, false
	}
	if math.Abs(change) < e.Policy.AlertThresholdPercent {
		return model.AlertEvent{}, false
	}
	dir := model.DirectionOf(change)
	msg := fmt.Sprintf("%s went %s by %.2f%% (%.2f -> %.2f)", symbol, dir, math.Abs(change), lastPrice, currentPrice)
	return model.NewAlertEvent(symbol, model.KindPriceMove, dir, at, math.Abs(change), msg), true
}

// RSIZone reports an overbought or oversold reading. NaN never alerts.
func (e *Evaluator) RSIZone(symbol string, at time.Time, rsi float64) (model.AlertEvent, bool) {
	switch {
	case math.IsNaN(rsi):
		return model.AlertEvent{}, false
	case rsi > e.Policy.RSIOverbought:
		msg := fmt.Sprintf("%s is OVERBOUGHT (RSI %.2f > %.0f)", symbol, rsi, e.Policy.RSIOverbought)
		return model.NewAlertEvent(symbol, model.KindRSIOverbought, model.DirectionUp, at, rsi, msg), true
	case rsi < e.Policy.RSIOversold:
		msg := fmt.Sprintf("%s is OVERSOLD (RSI %.2f < %.0f)", symbol, rsi, e.Policy.RSIOversold)
		return model.NewAlertEvent(symbol, model.KindRSIOversold, model.DirectionDown, at, rsi, msg), true
	}
	return model.AlertEvent{}, false
}

// Divergence compares a ticker's percentage change with its benchmark's over the same window.
// Direction is the ticker relative to the benchmark; BenchmarkDirection is the benchmark's own move.
func (e *Evaluator) Divergence(symbol, benchmark string, at time.Time, tickerChange, benchmarkChange float64) (model.AlertEvent, bool) {
	diff := math.Abs(tickerChange - benchmarkChange)
	if math.IsNaN(diff) || diff < e.Policy.DivergenceThresholdPercent {
		return model.AlertEvent{}, false
	}
	dir := model.DirectionDown
	if tickerChange > benchmarkChange {
		dir = model.DirectionUp
	}
	benchDir := model.DirectionOf(benchmarkChange)
	msg := fmt.Sprintf("%s is %s by %.2f%% while benchmark %s is %s by %.2f%%",
		symbol, dir, tickerChange, benchmark, benchDir, benchmarkChange)
	evt := model.NewAlertEvent(symbol, model.KindDivergence, dir, at, diff, msg)
	evt.Benchmark = benchmark
	evt.BenchmarkDirection = benchDir
	return evt, true
}

// Composite reports the composite flags of a signal row.
func (e *Evaluator) Composite(symbol string, row model.SignalRow) []model.AlertEvent {
	var events []model.AlertEvent
	if row.CompositeBuy {
		msg := fmt.Sprintf("%s composite BUY (score %.2f, close %.2f)", symbol, row.CompositeBuyScore, row.Close)
		events = append(events, model.NewAlertEvent(symbol, model.KindCompositeBuy, model.DirectionUp, row.Time, row.CompositeBuyScore, msg))
	}
	if row.CompositeSell {
		msg := fmt.Sprintf("%s composite SELL (score %.2f, close %.2f)", symbol, row.CompositeSellScore, row.Close)
		events = append(events, model.NewAlertEvent(symbol, model.KindCompositeSell, model.DirectionDown, row.Time, row.CompositeSellScore, msg))
	}
	return events
}

// Input is one symbol's window for Evaluate.
type Input struct {
	Symbol string
	// LastPrice is the previously observed price; nil skips the price-move check.
	LastPrice *float64
	Series    model.PriceSeries
	RSIPeriod int
	// Signal, when set, adds composite alerts for that row.
	Signal *model.SignalRow
}

// Evaluate runs the price-move, RSI and composite checks against the newest point.
func (e *Evaluator) Evaluate(in Input) []model.AlertEvent {
	latest, ok := in.Series.Latest()
	if !ok {
		return nil
	}
	var events []model.AlertEvent
	if in.LastPrice != nil {
		if evt, ok := e.PriceMove(in.Symbol, latest.Time, *in.LastPrice, latest.Close); ok {
			events = append(events, evt)
		}
	}
	if in.RSIPeriod > 0 {
		if rsi, err := calculator.LatestRSI(in.Series, in.RSIPeriod); err == nil {
			if evt, ok := e.RSIZone(in.Symbol, latest.Time, rsi); ok {
				events = append(events, evt)
			}
		}
	}
	if in.Signal != nil {
		events = append(events, e.Composite(in.Symbol, *in.Signal)...)
	}
	return events
}
