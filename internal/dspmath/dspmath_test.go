package dspmath_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"pipelined.dev/radio/internal/dspmath"
)

func TestNormPhaseDiff(t *testing.T) {
	tests := []struct {
		in       float32
		expected float32
	}{
		{in: 0, expected: 0},
		{in: dspmath.Pi, expected: dspmath.Pi},
		{in: -dspmath.Pi, expected: dspmath.Pi},
		{in: 1.5 * dspmath.Pi, expected: -0.5 * dspmath.Pi},
		{in: -1.5 * dspmath.Pi, expected: 0.5 * dspmath.Pi},
	}
	for _, test := range tests {
		assert.InDelta(t, test.expected, dspmath.NormPhaseDiff(test.in), 1e-5)
	}
}

func TestPhasor(t *testing.T) {
	for _, phase := range []float32{0, 0.5, -2, 3} {
		v := dspmath.Phasor(phase)
		assert.InDelta(t, 1.0, math.Hypot(float64(real(v)), float64(imag(v))), 1e-6)
		assert.InDelta(t, phase, dspmath.Phase(v), 1e-5)
	}
}

func TestStepClamp(t *testing.T) {
	assert.Equal(t, float32(1), dspmath.Step(0.1))
	assert.Equal(t, float32(-1), dspmath.Step(0))
	assert.Equal(t, float32(-1), dspmath.Step(-3))
	assert.Equal(t, float32(1), dspmath.Clamp(5, -1, 1))
	assert.Equal(t, float32(-1), dspmath.Clamp(-5, -1, 1))
	assert.Equal(t, float32(0.25), dspmath.Clamp(0.25, -1, 1))
	assert.Equal(t, float32(2), dspmath.Abs(-2))
}
