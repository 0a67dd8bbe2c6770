// Package mock provides blocks for integration tests of pipelines.
package mock

import (
	"sync"

	"pipelined.dev/radio/block"
	"pipelined.dev/radio/stream"
)

// counter counts messages and samples.
type counter struct {
	mu       sync.Mutex
	messages int
	samples  int
}

func (c *counter) advance(size int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages++
	c.samples += size
}

func (c *counter) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages, c.samples = 0, 0
}

// Count returns messages and samples metrics.
func (c *counter) Count() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.messages, c.samples
}

// Source writes Data to its output in chunks of Chunk elements. When all
// data is written, Done is closed and the worker exits.
type Source[T any] struct {
	block.Source[T]
	counter
	data  []T
	chunk int
	pos   int
	done  chan struct{}
	ended bool
}

// NewSource returns a source of data. Non-positive chunk means output
// buffer size.
func NewSource[T any](data []T, chunk int, options ...block.Option) *Source[T] {
	s := &Source[T]{
		data: data,
		done: make(chan struct{}),
	}
	s.Init(s, options...)
	if chunk <= 0 || chunk > s.Out.BufferSize() {
		chunk = s.Out.BufferSize()
	}
	s.chunk = chunk
	return s
}

// Done is closed when all data is written.
func (s *Source[T]) Done() <-chan struct{} {
	return s.done
}

// Reset rewinds the source.
func (s *Source[T]) Reset() {
	s.Reconfigure(func() {
		s.pos = 0
		s.done = make(chan struct{})
		s.ended = false
		s.Discard()
		s.reset()
	})
}

// Run writes one chunk.
func (s *Source[T]) Run() int {
	if !s.Resume() {
		return -1
	}
	if s.pos >= len(s.data) {
		if !s.ended {
			close(s.done)
			s.ended = true
		}
		return -1
	}
	n := copy(s.Out.WriteBuf()[:s.chunk], s.data[s.pos:])
	s.pos += n
	s.advance(n)
	if !s.Publish(n) {
		return -1
	}
	return n
}

// Sink collects everything it reads. With discard set it only counts samples.
type Sink[T any] struct {
	block.Sink[T]
	counter
	discard bool
	mu      sync.Mutex
	data    []T
}

// NewSink returns a new sink.
func NewSink[T any](in *stream.Stream[T], discard bool, options ...block.Option) *Sink[T] {
	s := &Sink[T]{discard: discard}
	s.Init(s, in, options...)
	return s
}

// Data returns a copy of collected samples.
func (s *Sink[T]) Data() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]T(nil), s.data...)
}

// Reset drops collected samples.
func (s *Sink[T]) Reset() {
	s.Reconfigure(func() {
		s.mu.Lock()
		s.data = nil
		s.mu.Unlock()
		s.reset()
	})
}

// Run collects one buffer.
func (s *Sink[T]) Run() int {
	in := s.In()
	count := in.Read()
	if count < 0 {
		return -1
	}
	if !s.discard {
		s.mu.Lock()
		s.data = append(s.data, in.ReadBuf()[:count]...)
		s.mu.Unlock()
	}
	in.Flush()
	s.advance(count)
	return count
}
