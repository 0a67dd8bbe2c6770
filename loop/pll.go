package loop

import (
	"math"
	"sync/atomic"

	"pipelined.dev/radio/block"
	"pipelined.dev/radio/internal/dspmath"
	"pipelined.dev/radio/stream"
)

// snapshot publishes loop state to readers outside of the worker.
type snapshot struct {
	phase atomic.Uint32
	freq  atomic.Uint32
}

func (s *snapshot) store(l *PhaseControlLoop[float32]) {
	s.phase.Store(math.Float32bits(l.Phase()))
	s.freq.Store(math.Float32bits(l.Freq()))
}

// Phase returns oscillator phase after the last processed buffer.
func (s *snapshot) Phase() float32 {
	return math.Float32frombits(s.phase.Load())
}

// Freq returns oscillator frequency after the last processed buffer, in
// radians per sample.
func (s *snapshot) Freq() float32 {
	return math.Float32frombits(s.freq.Load())
}

// PLL locks the local oscillator to the phase of the input and outputs
// the oscillator phasor.
type PLL struct {
	block.Processor[complex64, complex64]
	snapshot
	pcl       *PhaseControlLoop[float32]
	initPhase float32
	initFreq  float32
}

// NewPLL returns a PLL with the loop bandwidth in radians per sample.
// Frequency is limited to [-π, π].
func NewPLL(in *stream.Stream[complex64], bandwidth float32, options ...block.Option) *PLL {
	alpha, beta := CriticallyDamped(bandwidth)
	p := &PLL{
		pcl: NewPhaseControlLoop(alpha, beta, 0, -dspmath.Pi, dspmath.Pi, 0, -dspmath.Pi, dspmath.Pi),
	}
	p.Init(p, in, options...)
	p.store(p.pcl)
	return p
}

// SetBandwidth recomputes loop gains.
func (p *PLL) SetBandwidth(bandwidth float32) {
	p.Reconfigure(func() {
		p.pcl.SetCoefficients(CriticallyDamped(bandwidth))
	})
}

// SetInitialPhase sets the phase applied by Reset.
func (p *PLL) SetInitialPhase(phase float32) {
	p.Reconfigure(func() {
		p.initPhase = phase
	})
}

// SetInitialFreq sets the frequency applied by Reset.
func (p *PLL) SetInitialFreq(freq float32) {
	p.Reconfigure(func() {
		p.initFreq = freq
	})
}

// SetFrequencyLimits limits the oscillator frequency.
func (p *PLL) SetFrequencyLimits(minFreq, maxFreq float32) {
	p.Reconfigure(func() {
		p.pcl.SetFreqLimits(minFreq, maxFreq)
		p.store(p.pcl)
	})
}

// Reset returns the oscillator to its initial phase and frequency.
func (p *PLL) Reset() {
	p.Reconfigure(func() {
		p.pcl.SetPhase(p.initPhase)
		p.pcl.SetFreq(p.initFreq)
		p.store(p.pcl)
	})
}

// Process runs the loop over in and writes oscillator phasors to out.
func (p *PLL) Process(in, out []complex64) int {
	for i, v := range in {
		out[i] = dspmath.Phasor(p.pcl.Phase())
		p.pcl.Advance(dspmath.NormPhaseDiff(dspmath.Phase(v) - p.pcl.Phase()))
	}
	p.store(p.pcl)
	return len(in)
}

// Run processes one buffer.
func (p *PLL) Run() int {
	return p.Transform(p.Process)
}
