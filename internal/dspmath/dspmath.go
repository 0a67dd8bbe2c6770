// Package dspmath holds scalar helpers shared by the loops and deframers.
package dspmath

import "math"

const (
	// Pi as float32.
	Pi = float32(math.Pi)
	// TwoPi as float32.
	TwoPi = 2 * Pi
)

// Phasor returns the unit complex number at angle phase.
func Phasor(phase float32) complex64 {
	s, c := math.Sincos(float64(phase))
	return complex(float32(c), float32(s))
}

// Phase returns the argument of v in (-π, π].
func Phase(v complex64) float32 {
	return float32(math.Atan2(float64(imag(v)), float64(real(v))))
}

// Conj returns the complex conjugate of v.
func Conj(v complex64) complex64 {
	return complex(real(v), -imag(v))
}

// NormPhaseDiff wraps a phase difference into (-π, π].
func NormPhaseDiff(diff float32) float32 {
	if diff > Pi {
		diff -= TwoPi
	} else if diff <= -Pi {
		diff += TwoPi
	}
	return diff
}

// Step returns 1 for positive values and -1 otherwise.
func Step(v float32) float32 {
	if v > 0 {
		return 1
	}
	return -1
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float32) float32 {
	if v > hi {
		return hi
	}
	if v < lo {
		return lo
	}
	return v
}

// Abs returns absolute value of v.
func Abs(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
