package model

import (
	"time"

	"github.com/google/uuid"
)

// AlertKind identifies which policy produced an alert.
type AlertKind string

const (
	KindPriceMove     AlertKind = "PRICE_MOVE"
	KindRSIOverbought AlertKind = "RSI_OVERBOUGHT"
	KindRSIOversold   AlertKind = "RSI_OVERSOLD"
	KindCompositeBuy  AlertKind = "COMPOSITE_BUY"
	KindCompositeSell AlertKind = "COMPOSITE_SELL"
	KindDivergence    AlertKind = "DIVERGENCE"
)

// Direction of a price change.
type Direction string

const (
	DirectionUp   Direction = "UP"
	DirectionDown Direction = "DOWN"
	DirectionFlat Direction = "FLAT"
)

// DirectionOf maps the sign of a change to a Direction.
func DirectionOf(change float64) Direction {
	switch {
	case change > 0:
		return DirectionUp
	case change < 0:
		return DirectionDown
	default:
		return DirectionFlat
	}
}

// AlertEvent is produced by the evaluator and consumed by notifiers.
// Treat it as immutable once created.
type AlertEvent struct {
	ID        string
	Symbol    string
	Kind      AlertKind
	Direction Direction
	Time      time.Time
	Magnitude float64
	Message   string

	// Only set for divergence alerts.
	Benchmark          string
	BenchmarkDirection Direction
}

// NewAlertEvent stamps a fresh ID on the event.
func NewAlertEvent(symbol string, kind AlertKind, dir Direction, t time.Time, magnitude float64, msg string) AlertEvent {
	return AlertEvent{
		ID:        uuid.NewString(),
		Symbol:    symbol,
		Kind:      kind,
		Direction: dir,
		Time:      t,
		Magnitude: magnitude,
		Message:   msg,
	}
}
