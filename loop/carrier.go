package loop

import (
	"pipelined.dev/radio/block"
	"pipelined.dev/radio/internal/dspmath"
	"pipelined.dev/radio/stream"
)

// Sample is the output type of CarrierTrackingPLL.
type Sample interface {
	float32 | complex64
}

// CarrierTrackingPLL removes the carrier from the input. With complex64
// output it emits the corrected samples, with float32 output it emits
// their instantaneous phase. Unlike Costas, the phase error isn't clamped.
type CarrierTrackingPLL[T Sample] struct {
	block.Processor[complex64, T]
	snapshot
	pcl *PhaseControlLoop[float32]
}

// NewCarrierTrackingPLL returns a loop with the bandwidth in radians per
// sample.
func NewCarrierTrackingPLL[T Sample](in *stream.Stream[complex64], bandwidth float32, options ...block.Option) *CarrierTrackingPLL[T] {
	alpha, beta := CriticallyDamped(bandwidth)
	p := &CarrierTrackingPLL[T]{
		pcl: NewPhaseControlLoop(alpha, beta, 0, -dspmath.TwoPi, dspmath.TwoPi, 0, -1, 1),
	}
	p.Init(p, in, options...)
	p.store(p.pcl)
	return p
}

// SetBandwidth recomputes loop gains.
func (p *CarrierTrackingPLL[T]) SetBandwidth(bandwidth float32) {
	p.Reconfigure(func() {
		p.pcl.SetCoefficients(CriticallyDamped(bandwidth))
	})
}

// Reset returns the oscillator to zero phase and frequency.
func (p *CarrierTrackingPLL[T]) Reset() {
	p.Reconfigure(func() {
		p.pcl.SetPhase(0)
		p.pcl.SetFreq(0)
		p.store(p.pcl)
	})
}

// Process runs the loop over in and writes the output to out.
func (p *CarrierTrackingPLL[T]) Process(in []complex64, out []T) int {
	switch o := any(out).(type) {
	case []complex64:
		for i, v := range in {
			o[i] = p.mix(v)
		}
	case []float32:
		for i, v := range in {
			o[i] = dspmath.Phase(p.mix(v))
		}
	}
	p.store(p.pcl)
	return len(in)
}

func (p *CarrierTrackingPLL[T]) mix(v complex64) complex64 {
	x := v * dspmath.Phasor(-p.pcl.Phase())
	p.pcl.Advance(dspmath.NormPhaseDiff(dspmath.Phase(v) - p.pcl.Phase()))
	return x
}

// Run processes one buffer.
func (p *CarrierTrackingPLL[T]) Run() int {
	return p.Transform(p.Process)
}
