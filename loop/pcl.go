// Package loop implements phase-locked loops used for carrier recovery.
//
// All loops share the second order PhaseControlLoop. Its proportional and
// integral gains are derived from the loop bandwidth for a critically
// damped response. Loops differ in the phase error detector: PLL and
// CarrierTrackingPLL compare the phase of the input with the local
// oscillator, Costas uses a modulation-aware detector which tolerates
// BPSK, QPSK and 8PSK symbols.
package loop

import (
	"math"
)

// Float is the set of types the control loop can operate on.
type Float interface {
	~float32 | ~float64
}

// dampingFactor gives critically damped response.
const dampingFactor = math.Sqrt2 / 2

// CriticallyDamped returns proportional and integral gains for the loop
// bandwidth given in radians per sample.
func CriticallyDamped[T Float](bandwidth T) (alpha, beta T) {
	bw := float64(bandwidth)
	denominator := 1 + 2*dampingFactor*bw + bw*bw
	alpha = T(4 * dampingFactor * bw / denominator)
	beta = T(4 * bw * bw / denominator)
	return
}

// PhaseControlLoop is a second order loop filter with an integrated
// oscillator phase. Frequency is clamped to its limits, phase is wrapped
// into its limits.
type PhaseControlLoop[T Float] struct {
	alpha, beta        T
	phase, freq        T
	minPhase, maxPhase T
	minFreq, maxFreq   T
	phaseDelta         T
}

// NewPhaseControlLoop returns initialized loop. It panics if limits are
// empty.
func NewPhaseControlLoop[T Float](alpha, beta, phase, minPhase, maxPhase, freq, minFreq, maxFreq T) *PhaseControlLoop[T] {
	l := &PhaseControlLoop[T]{
		alpha: alpha,
		beta:  beta,
		phase: phase,
		freq:  freq,
	}
	l.SetPhaseLimits(minPhase, maxPhase)
	l.SetFreqLimits(minFreq, maxFreq)
	return l
}

// SetCoefficients replaces loop gains.
func (l *PhaseControlLoop[T]) SetCoefficients(alpha, beta T) {
	l.alpha, l.beta = alpha, beta
}

// Coefficients returns loop gains.
func (l *PhaseControlLoop[T]) Coefficients() (alpha, beta T) {
	return l.alpha, l.beta
}

// SetPhaseLimits sets the phase range and wraps current phase into it.
func (l *PhaseControlLoop[T]) SetPhaseLimits(minPhase, maxPhase T) {
	if maxPhase <= minPhase {
		panic("loop: invalid phase limits")
	}
	l.minPhase, l.maxPhase = minPhase, maxPhase
	l.phaseDelta = maxPhase - minPhase
	l.wrapPhase()
}

// SetFreqLimits sets the frequency range and clamps current frequency.
func (l *PhaseControlLoop[T]) SetFreqLimits(minFreq, maxFreq T) {
	if maxFreq <= minFreq {
		panic("loop: invalid frequency limits")
	}
	l.minFreq, l.maxFreq = minFreq, maxFreq
	l.clampFreq()
}

// Advance integrates the phase error.
func (l *PhaseControlLoop[T]) Advance(err T) {
	l.freq += l.beta * err
	l.clampFreq()
	l.phase += l.freq + l.alpha*err
	l.wrapPhase()
}

// Phase returns the oscillator phase.
func (l *PhaseControlLoop[T]) Phase() T {
	return l.phase
}

// Freq returns the oscillator frequency.
func (l *PhaseControlLoop[T]) Freq() T {
	return l.freq
}

// SetPhase sets the oscillator phase.
func (l *PhaseControlLoop[T]) SetPhase(phase T) {
	l.phase = phase
	l.wrapPhase()
}

// SetFreq sets the oscillator frequency.
func (l *PhaseControlLoop[T]) SetFreq(freq T) {
	l.freq = freq
	l.clampFreq()
}

func (l *PhaseControlLoop[T]) clampFreq() {
	if l.freq > l.maxFreq {
		l.freq = l.maxFreq
	} else if l.freq < l.minFreq {
		l.freq = l.minFreq
	}
}

func (l *PhaseControlLoop[T]) wrapPhase() {
	for l.phase > l.maxPhase {
		l.phase -= l.phaseDelta
	}
	for l.phase < l.minPhase {
		l.phase += l.phaseDelta
	}
}
