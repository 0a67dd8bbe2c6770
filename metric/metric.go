// Package metric publishes per-block counters through expvar.
//
// Every block gets its own expvar map named radio.blocks.<id>, so two
// blocks of the same kind are measured separately. The map also carries
// the block name.
package metric

import (
	"expvar"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const prefix = "radio.blocks."

const (
	// NameLabel holds the block name.
	NameLabel = "Name"
	// MessageCounter measures number of processed buffers.
	MessageCounter = "Messages"
	// SampleCounter measures number of samples.
	SampleCounter = "Samples"
	// LatencyCounter measures latency between worker iterations.
	LatencyCounter = "Latency"
	// DurationCounter counts what's the duration of signal.
	DurationCounter = "Duration"
	// StartCounter counts worker starts, resumes after reconfiguration
	// included.
	StartCounter = "Starts"
)

var registry = struct {
	sync.Mutex
	m map[string]*meter
}{
	m: make(map[string]*meter),
}

// ResetFunc returns new Measure closure. It's called every time the block
// worker is started.
type ResetFunc func() MeasureFunc

// MeasureFunc captures metrics when buffer is processed.
type MeasureFunc func(samples int64)

// Meter registers counters of the block with provided id. Zero sample
// rate disables duration accounting. Metering the same id again
// continues its counters.
func Meter(id, name string, sampleRate int) ResetFunc {
	m := register(id, name)
	return func() MeasureFunc {
		m.starts.Add(1)
		calledAt := time.Now()
		var (
			bufferSize     int64
			bufferDuration time.Duration
		)
		return func(s int64) {
			m.latency.set(time.Since(calledAt))
			m.messages.Add(1)
			m.samples.Add(s)
			if bufferSize != s {
				bufferSize = s
				bufferDuration = durationOf(sampleRate, s)
			}
			m.duration.add(bufferDuration)
			calledAt = time.Now()
		}
	}
}

// Get returns counters of the block with provided id or nil if the block
// isn't metered.
func Get(id string) map[string]string {
	registry.Lock()
	m, ok := registry.m[id]
	registry.Unlock()
	if !ok {
		return nil
	}
	return m.values()
}

// GetAll returns counters of all metered blocks keyed by block id.
func GetAll() map[string]map[string]string {
	registry.Lock()
	defer registry.Unlock()
	all := make(map[string]map[string]string, len(registry.m))
	for id, m := range registry.m {
		all[id] = m.values()
	}
	return all
}

// durationOf returns time duration of samples at this sample rate.
func durationOf(sampleRate int, samples int64) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(samples) / float64(sampleRate) * float64(time.Second))
}

type meter struct {
	vars     *expvar.Map
	name     expvar.String
	messages expvar.Int
	samples  expvar.Int
	starts   expvar.Int
	latency  duration
	duration duration
}

func register(id, name string) *meter {
	registry.Lock()
	defer registry.Unlock()
	if m, ok := registry.m[id]; ok {
		return m
	}
	m := &meter{
		vars: expvar.NewMap(prefix + id),
	}
	m.name.Set(name)
	m.vars.Set(NameLabel, &m.name)
	m.vars.Set(MessageCounter, &m.messages)
	m.vars.Set(SampleCounter, &m.samples)
	m.vars.Set(StartCounter, &m.starts)
	m.vars.Set(LatencyCounter, &m.latency)
	m.vars.Set(DurationCounter, &m.duration)
	registry.m[id] = m
	return m
}

func (m *meter) values() map[string]string {
	values := make(map[string]string)
	m.vars.Do(func(kv expvar.KeyValue) {
		values[kv.Key] = kv.Value.String()
	})
	values[NameLabel] = m.name.Value()
	values[LatencyCounter] = m.latency.value().String()
	values[DurationCounter] = m.duration.value().String()
	return values
}

// duration allows to format time.Duration metric values.
type duration struct {
	d atomic.Int64
}

// String returns the duration as a JSON string.
func (v *duration) String() string {
	return fmt.Sprintf("%q", v.value().String())
}

func (v *duration) value() time.Duration {
	return time.Duration(v.d.Load())
}

func (v *duration) add(delta time.Duration) {
	v.d.Add(int64(delta))
}

func (v *duration) set(value time.Duration) {
	v.d.Store(int64(value))
}
