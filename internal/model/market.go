package model

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

var symbolPattern = regexp.MustCompile(`^[A-Za-z0-9._^=-]{1,32}$`)

// ValidSymbol reports whether symbol looks like a ticker: 1 to 32 letters,
// digits or one of "._^=-".
func ValidSymbol(symbol string) bool {
	return symbolPattern.MatchString(symbol)
}

// OHLCV represents a single daily bar as stored per ticker.
type OHLCV struct {
	Time     time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	AdjClose float64
	Volume   float64
}

// PricePoint is one closing price observation.
type PricePoint struct {
	Time  time.Time
	Close float64
}

// PriceSeries is an ordered close series for one symbol, oldest first.
type PriceSeries struct {
	Symbol string
	Points []PricePoint
}

// ErrUnordered is returned by Validate when timestamps are not strictly increasing.
var ErrUnordered = errors.New("price series timestamps not strictly increasing")

// NewPriceSeries builds a series from closes stamped one day apart starting at start.
func NewPriceSeries(symbol string, start time.Time, closes ...float64) PriceSeries {
	points := make([]PricePoint, len(closes))
	for i, c := range closes {
		points[i] = PricePoint{Time: start.AddDate(0, 0, i), Close: c}
	}
	return PriceSeries{Symbol: symbol, Points: points}
}

// Len returns the number of points.
func (s PriceSeries) Len() int { return len(s.Points) }

// Closes returns a fresh slice of closing prices.
func (s PriceSeries) Closes() []float64 {
	closes := make([]float64, len(s.Points))
	for i, p := range s.Points {
		closes[i] = p.Close
	}
	return closes
}

// Latest returns the newest point. ok is false for an empty series.
func (s PriceSeries) Latest() (p PricePoint, ok bool) {
	if len(s.Points) == 0 {
		return PricePoint{}, false
	}
	return s.Points[len(s.Points)-1], true
}

// First returns the oldest point. ok is false for an empty series.
func (s PriceSeries) First() (p PricePoint, ok bool) {
	if len(s.Points) == 0 {
		return PricePoint{}, false
	}
	return s.Points[0], true
}

// Validate checks that timestamps are strictly increasing.
func (s PriceSeries) Validate() error {
	for i := 1; i < len(s.Points); i++ {
		if !s.Points[i].Time.After(s.Points[i-1].Time) {
			return fmt.Errorf("%s at index %d: %w", s.Symbol, i, ErrUnordered)
		}
	}
	return nil
}

// IndicatorValue is one indicator output aligned with a PricePoint.
// Value is NaN while the indicator window has insufficient history.
type IndicatorValue struct {
	Time  time.Time
	Value float64
}
