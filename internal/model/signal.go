package model

import "time"

// SignalRow holds every indicator column and derived flag for one timestamp.
type SignalRow struct {
	Time  time.Time
	Close float64

	RSI     float64
	RSIBuy  bool
	RSISell bool

	BollingerLower float64
	BollingerUpper float64
	BollingerBuy   bool
	BollingerSell  bool

	MACD       float64
	MACDSignal float64
	MACDBuy    bool
	MACDSell   bool

	CompositeBuyScore  float64
	CompositeSellScore float64
	CompositeBuy       bool
	CompositeSell      bool
}
