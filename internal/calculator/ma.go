package calculator

import (
	"errors"
	"math"
)

var (
	// ErrInvalidPeriod is returned when a window length is not positive.
	ErrInvalidPeriod = errors.New("period must be positive")
	// ErrEmptySeries is returned when an indicator is asked to run on no data.
	ErrEmptySeries = errors.New("price series is empty")
)

// SMA returns the trailing simple moving average for every index.
// Indices before the window fills are NaN.
func SMA(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 {
		return out
	}
	for i := period - 1; i < len(values); i++ {
		out[i] = mean(values[i-period+1 : i+1])
	}
	return out
}

// RollingStd returns the trailing population standard deviation for every index.
// Indices before the window fills are NaN.
func RollingStd(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 {
		return out
	}
	for i := period - 1; i < len(values); i++ {
		window := values[i-period+1 : i+1]
		m := mean(window)
		variance := 0.0
		for _, v := range window {
			variance += (v - m) * (v - m)
		}
		out[i] = math.Sqrt(variance / float64(period))
	}
	return out
}

// EMA returns the exponential moving average with smoothing 2/(period+1),
// seeded with the first value. Early values are low-confidence but defined.
func EMA(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	if period <= 0 {
		return nanSlice(len(values))
	}
	alpha := 2.0 / float64(period+1)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = out[i-1] + alpha*(values[i]-out[i-1])
	}
	return out
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
