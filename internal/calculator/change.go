package calculator

import "errors"

// ErrDivisionByZero is returned when a percentage change is taken from a zero base.
var ErrDivisionByZero = errors.New("percentage change from zero base")

// PercentageChange returns ((end - start) / start) * 100.
func PercentageChange(start, end float64) (float64, error) {
	if start == 0 {
		return 0, ErrDivisionByZero
	}
	return ((end - start) / start) * 100, nil
}
