// Package stream provides the typed double-buffered channel which links
// blocks together.
//
// A Stream has exactly one writer and one reader. The writer fills
// WriteBuf in place and publishes it with Swap; the reader waits with
// Read, consumes ReadBuf and hands the buffer back with Flush. Swap waits
// until the previous buffer was flushed, so the writer is never more than
// one buffer ahead of the reader.
//
// Both sides can be cancelled: StopReader and StopWriter wake up any call
// blocked in Read, Swap, Write or ReadInto and make it return a failure
// sentinel. Stops persist until cleared with ClearReadStop and
// ClearWriteStop.
package stream

import (
	"sync"
)

// DefaultBufferSize is the capacity of each of the stream buffers.
const DefaultBufferSize = 1000000

// Untyped is the part of a stream API which doesn't depend on the element
// type. Blocks use it to cancel their inputs and outputs.
type Untyped interface {
	StopReader()
	ClearReadStop()
	StopWriter()
	ClearWriteStop()
}

// Option configures a stream.
type Option func(*config)

type config struct {
	bufferSize int
	maxLatency int
}

// WithBufferSize sets the capacity of stream buffers.
func WithBufferSize(size int) Option {
	return func(c *config) {
		c.bufferSize = size
	}
}

// WithMaxLatency sets the maximum number of elements Write publishes with a
// single swap.
func WithMaxLatency(maxLatency int) Option {
	return func(c *config) {
		c.maxLatency = maxLatency
	}
}

// Stream is a single-producer single-consumer double-buffered channel.
type Stream[T any] struct {
	mu         sync.Mutex
	swapCond   *sync.Cond
	readyCond  *sync.Cond
	writeBuf   []T
	readBuf    []T
	dataSize   int
	canSwap    bool
	dataReady  bool
	readerStop bool
	writerStop bool
	maxLatency int

	// readOff is the position of ReadInto inside of the current read buffer.
	readOff int
}

// New returns a new stream.
func New[T any](options ...Option) *Stream[T] {
	c := config{bufferSize: DefaultBufferSize}
	for _, option := range options {
		option(&c)
	}
	if c.bufferSize <= 0 {
		panic("stream: buffer size must be positive")
	}
	if c.maxLatency <= 0 || c.maxLatency > c.bufferSize {
		c.maxLatency = c.bufferSize
	}
	s := &Stream[T]{
		writeBuf:   make([]T, c.bufferSize),
		readBuf:    make([]T, c.bufferSize),
		canSwap:    true,
		maxLatency: c.maxLatency,
	}
	s.swapCond = sync.NewCond(&s.mu)
	s.readyCond = sync.NewCond(&s.mu)
	return s
}

// BufferSize returns capacity of stream buffers.
func (s *Stream[T]) BufferSize() int {
	return len(s.writeBuf)
}

// WriteBuf returns the buffer owned by the writer.
func (s *Stream[T]) WriteBuf() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeBuf
}

// ReadBuf returns the buffer owned by the reader. It's only valid between
// Read and Flush.
func (s *Stream[T]) ReadBuf() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readBuf
}

// Swap publishes count elements of the write buffer to the reader. It
// blocks until the reader flushed the previously published buffer.
// Returns false if the writer was stopped.
func (s *Stream[T]) Swap(count int) bool {
	s.mu.Lock()
	for !s.canSwap && !s.writerStop {
		s.swapCond.Wait()
	}
	if s.writerStop {
		s.mu.Unlock()
		return false
	}
	s.dataSize = count
	s.writeBuf, s.readBuf = s.readBuf, s.writeBuf
	s.canSwap = false
	s.dataReady = true
	s.mu.Unlock()
	s.readyCond.Broadcast()
	return true
}

// Read blocks until data is published. Returns number of elements in the
// read buffer or -1 if the reader was stopped.
func (s *Stream[T]) Read() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for !s.dataReady && !s.readerStop {
		s.readyCond.Wait()
	}
	if s.readerStop {
		return -1
	}
	return s.dataSize
}

// Flush marks the read buffer as consumed and unblocks the writer.
func (s *Stream[T]) Flush() {
	s.mu.Lock()
	s.dataReady = false
	s.canSwap = true
	s.mu.Unlock()
	s.swapCond.Broadcast()
}

// Write copies data into the stream. Data is published in chunks of at
// most MaxLatency elements. Returns len(data) or -1 if the writer was
// stopped.
func (s *Stream[T]) Write(data []T) int {
	for pos := 0; pos < len(data); {
		n := min(s.MaxLatency(), len(data)-pos)
		copy(s.WriteBuf()[:n], data[pos:pos+n])
		if !s.Swap(n) {
			return -1
		}
		pos += n
	}
	return len(data)
}

// ReadInto blocks until len(data) elements are copied from the stream.
// Returns len(data) or -1 if the reader was stopped. ReadInto keeps its
// position inside of the published buffer between calls, it must not be
// mixed with Read and Flush on the same stream.
func (s *Stream[T]) ReadInto(data []T) int {
	for done := 0; done < len(data); {
		count := s.Read()
		if count < 0 {
			return -1
		}
		n := min(count-s.readOff, len(data)-done)
		copy(data[done:done+n], s.ReadBuf()[s.readOff:s.readOff+n])
		done += n
		s.readOff += n
		if s.readOff >= count {
			s.readOff = 0
			s.Flush()
		}
	}
	return len(data)
}

// StopReader makes blocked and future reads return -1.
func (s *Stream[T]) StopReader() {
	s.mu.Lock()
	s.readerStop = true
	s.mu.Unlock()
	s.readyCond.Broadcast()
}

// ClearReadStop re-arms the reader side.
func (s *Stream[T]) ClearReadStop() {
	s.mu.Lock()
	s.readerStop = false
	s.mu.Unlock()
}

// StopWriter makes blocked and future swaps fail.
func (s *Stream[T]) StopWriter() {
	s.mu.Lock()
	s.writerStop = true
	s.mu.Unlock()
	s.swapCond.Broadcast()
}

// ClearWriteStop re-arms the writer side.
func (s *Stream[T]) ClearWriteStop() {
	s.mu.Lock()
	s.writerStop = false
	s.mu.Unlock()
}

// SetMaxLatency changes the chunk size used by Write. Values outside of
// (0, BufferSize] are replaced with BufferSize.
func (s *Stream[T]) SetMaxLatency(maxLatency int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if maxLatency <= 0 || maxLatency > len(s.writeBuf) {
		maxLatency = len(s.writeBuf)
	}
	s.maxLatency = maxLatency
}

// MaxLatency returns the chunk size used by Write.
func (s *Stream[T]) MaxLatency() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxLatency
}
