package num

import "math"

// Round2 rounds to two decimal places, half to even. Every publicly
// returned percentage and amount uses this convention; intermediate
// values stay full precision.
func Round2(v float64) float64 {
	return math.RoundToEven(v*100) / 100
}

// Clip bounds v to [lo, hi].
func Clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
