// Package ring provides a blocking circular buffer with a latency ceiling.
//
// RingBuffer decouples a producer and a consumer running at independent
// rates. Unlike stream.Stream, which holds at most one buffer ahead, the
// ring buffer admits writes until the amount of readable data reaches
// maxLatency. Writes beyond that block until the reader catches up, so a
// lagging consumer never accumulates unbounded samples.
package ring

import (
	"sync"
)

// DefaultSize is the capacity of a ring buffer unless WithSize is provided.
const DefaultSize = 1000000

// Option configures a ring buffer.
type Option func(*config)

type config struct {
	size int
}

// WithSize sets the capacity of the ring buffer.
func WithSize(size int) Option {
	return func(c *config) {
		c.size = size
	}
}

// RingBuffer is a single-producer single-consumer circular buffer.
type RingBuffer[T any] struct {
	mu         sync.Mutex
	canRead    *sync.Cond
	canWrite   *sync.Cond
	buffer     []T
	readc      int
	writec     int
	readable   int
	writable   int
	maxLatency int
	stopReader bool
	stopWriter bool
}

// New returns a ring buffer with provided latency ceiling. Non-positive
// latency would block writers forever and causes a panic.
func New[T any](maxLatency int, options ...Option) *RingBuffer[T] {
	c := config{size: DefaultSize}
	for _, option := range options {
		option(&c)
	}
	if c.size <= 0 {
		panic("ring: size must be positive")
	}
	mustBePositive(maxLatency)
	r := &RingBuffer[T]{
		buffer:     make([]T, c.size),
		writable:   c.size,
		maxLatency: maxLatency,
	}
	r.canRead = sync.NewCond(&r.mu)
	r.canWrite = sync.NewCond(&r.mu)
	return r
}

// Size returns capacity of the buffer.
func (r *RingBuffer[T]) Size() int {
	return len(r.buffer)
}

// Read blocks until len(data) elements are copied into data. Returns
// len(data) or -1 if the reader was stopped.
func (r *RingBuffer[T]) Read(data []T) int {
	if r.consume(data, len(data)) < 0 {
		return -1
	}
	return len(data)
}

// ReadAndSkip reads len(data) elements and then discards skip more.
// Returns len(data) or -1 if the reader was stopped.
func (r *RingBuffer[T]) ReadAndSkip(data []T, skip int) int {
	if r.consume(data, len(data)) < 0 {
		return -1
	}
	if r.consume(nil, skip) < 0 {
		return -1
	}
	return len(data)
}

// consume takes n elements off the buffer. Elements are copied into dst
// unless it's nil.
func (r *RingBuffer[T]) consume(dst []T, n int) int {
	done := 0
	for done < n {
		toRead := r.WaitUntilReadable()
		if toRead < 0 {
			return -1
		}
		toRead = min(toRead, n-done)

		// readc is only advanced by the reader, copy outside of the lock.
		if dst != nil {
			size := len(r.buffer)
			if r.readc+toRead > size {
				first := size - r.readc
				copy(dst[done:], r.buffer[r.readc:])
				copy(dst[done+first:done+toRead], r.buffer[:toRead-first])
			} else {
				copy(dst[done:done+toRead], r.buffer[r.readc:r.readc+toRead])
			}
		}
		done += toRead

		r.mu.Lock()
		r.readable -= toRead
		r.writable += toRead
		r.readc = (r.readc + toRead) % len(r.buffer)
		r.mu.Unlock()
		r.canWrite.Signal()
	}
	return done
}

// Write blocks until all of data is copied into the buffer. Returns
// len(data) or -1 if the writer was stopped.
func (r *RingBuffer[T]) Write(data []T) int {
	written := 0
	for written < len(data) {
		toWrite := r.WaitUntilWritable()
		if toWrite < 0 {
			return -1
		}
		toWrite = min(toWrite, len(data)-written)

		size := len(r.buffer)
		if r.writec+toWrite > size {
			first := size - r.writec
			copy(r.buffer[r.writec:], data[written:written+first])
			copy(r.buffer[:toWrite-first], data[written+first:written+toWrite])
		} else {
			copy(r.buffer[r.writec:r.writec+toWrite], data[written:written+toWrite])
		}
		written += toWrite

		r.mu.Lock()
		r.readable += toWrite
		r.writable -= toWrite
		r.writec = (r.writec + toWrite) % len(r.buffer)
		r.mu.Unlock()
		r.canRead.Signal()
	}
	return len(data)
}

// WaitUntilReadable blocks until there is data to read. Returns number of
// readable elements or -1 if the reader was stopped.
func (r *RingBuffer[T]) WaitUntilReadable() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	for r.readable == 0 && !r.stopReader {
		r.canRead.Wait()
	}
	if r.stopReader {
		return -1
	}
	return r.readable
}

// WaitUntilWritable blocks until there is space to write within the
// latency ceiling. Returns number of writable elements or -1 if the
// writer was stopped.
func (r *RingBuffer[T]) WaitUntilWritable() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	for r.writableLocked() == 0 && !r.stopWriter {
		r.canWrite.Wait()
	}
	if r.stopWriter {
		return -1
	}
	return r.writableLocked()
}

// Readable returns number of elements available for reading.
func (r *RingBuffer[T]) Readable() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.readable
}

// Writable returns number of elements which can be written without
// blocking, bounded by the latency ceiling.
func (r *RingBuffer[T]) Writable() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writableLocked()
}

func (r *RingBuffer[T]) writableLocked() int {
	return max(min(r.writable, r.maxLatency-r.readable), 0)
}

// StopReader wakes up the blocked reader. Subsequent reads return -1
// until ClearReadStop is called.
func (r *RingBuffer[T]) StopReader() {
	r.mu.Lock()
	r.stopReader = true
	r.mu.Unlock()
	r.canRead.Broadcast()
}

// StopWriter wakes up the blocked writer. Subsequent writes return -1
// until ClearWriteStop is called.
func (r *RingBuffer[T]) StopWriter() {
	r.mu.Lock()
	r.stopWriter = true
	r.mu.Unlock()
	r.canWrite.Broadcast()
}

// ClearReadStop re-arms the reader side.
func (r *RingBuffer[T]) ClearReadStop() {
	r.mu.Lock()
	r.stopReader = false
	r.mu.Unlock()
}

// ClearWriteStop re-arms the writer side.
func (r *RingBuffer[T]) ClearWriteStop() {
	r.mu.Lock()
	r.stopWriter = false
	r.mu.Unlock()
}

// ReadStopped returns true if the reader side is stopped.
func (r *RingBuffer[T]) ReadStopped() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopReader
}

// WriteStopped returns true if the writer side is stopped.
func (r *RingBuffer[T]) WriteStopped() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopWriter
}

// SetMaxLatency changes the latency ceiling. Raising it wakes up a
// blocked writer. Non-positive latency causes a panic.
func (r *RingBuffer[T]) SetMaxLatency(maxLatency int) {
	mustBePositive(maxLatency)
	r.mu.Lock()
	r.maxLatency = maxLatency
	r.mu.Unlock()
	r.canWrite.Broadcast()
}

func mustBePositive(maxLatency int) {
	if maxLatency <= 0 {
		panic("ring: max latency must be positive")
	}
}
