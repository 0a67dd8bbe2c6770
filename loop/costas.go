package loop

import (
	"fmt"
	"math"

	"pipelined.dev/radio/block"
	"pipelined.dev/radio/internal/dspmath"
	"pipelined.dev/radio/stream"
)

// Order is the number of constellation points tracked by Costas loop.
type Order int

// Supported orders.
const (
	Order2 Order = 2
	Order4 Order = 4
	Order8 Order = 8
)

// k8 is tan(π/8).
var k8 = float32(math.Sqrt2 - 1)

func (o Order) detector() func(complex64) float32 {
	switch o {
	case Order2:
		return func(v complex64) float32 {
			return real(v) * imag(v)
		}
	case Order4:
		return func(v complex64) float32 {
			return dspmath.Step(real(v))*imag(v) - dspmath.Step(imag(v))*real(v)
		}
	case Order8:
		return func(v complex64) float32 {
			re, im := real(v), imag(v)
			if dspmath.Abs(re) >= dspmath.Abs(im) {
				return dspmath.Step(re)*im - dspmath.Step(im)*re*k8
			}
			return dspmath.Step(re)*im*k8 - dspmath.Step(im)*re
		}
	}
	panic(fmt.Sprintf("loop: unsupported costas order %d", o))
}

// Costas recovers suppressed carrier of PSK signals. It outputs the input
// mixed with the conjugate of the local oscillator.
type Costas struct {
	block.Processor[complex64, complex64]
	snapshot
	order  Order
	detect func(complex64) float32
	pcl    *PhaseControlLoop[float32]
}

// NewCostas returns Costas loop of provided order with the loop bandwidth
// in radians per sample. It panics if the order isn't supported.
func NewCostas(in *stream.Stream[complex64], order Order, bandwidth float32, options ...block.Option) *Costas {
	alpha, beta := CriticallyDamped(bandwidth)
	c := &Costas{
		order:  order,
		detect: order.detector(),
		pcl:    NewPhaseControlLoop(alpha, beta, 0, -dspmath.TwoPi, dspmath.TwoPi, 0, -1, 1),
	}
	c.Init(c, in, options...)
	c.store(c.pcl)
	return c
}

// Order returns the order of the loop.
func (c *Costas) Order() Order {
	return c.order
}

// SetBandwidth recomputes loop gains.
func (c *Costas) SetBandwidth(bandwidth float32) {
	c.Reconfigure(func() {
		c.pcl.SetCoefficients(CriticallyDamped(bandwidth))
	})
}

// Reset returns the oscillator to zero phase and frequency.
func (c *Costas) Reset() {
	c.Reconfigure(func() {
		c.pcl.SetPhase(0)
		c.pcl.SetFreq(0)
		c.store(c.pcl)
	})
}

// Process runs the loop over in and writes corrected samples to out.
func (c *Costas) Process(in, out []complex64) int {
	for i, v := range in {
		x := v * dspmath.Phasor(-c.pcl.Phase())
		out[i] = x
		c.pcl.Advance(dspmath.Clamp(c.detect(x), -1, 1))
	}
	c.store(c.pcl)
	return len(in)
}

// Run processes one buffer.
func (c *Costas) Run() int {
	return c.Transform(c.Process)
}
