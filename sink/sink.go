// Package sink provides blocks which consume streams.
package sink

import (
	"sync/atomic"

	"pipelined.dev/radio/block"
	"pipelined.dev/radio/stream"
)

// Handler calls the function for every buffer read from the input. The
// slice passed to the function is only valid until it returns.
type Handler[T any] struct {
	block.Sink[T]
	handle func([]T)
}

// NewHandler returns a new handler sink.
func NewHandler[T any](in *stream.Stream[T], handle func([]T), options ...block.Option) *Handler[T] {
	h := &Handler[T]{handle: handle}
	h.Init(h, in, options...)
	return h
}

// SetHandler replaces the function.
func (h *Handler[T]) SetHandler(handle func([]T)) {
	h.Reconfigure(func() {
		h.handle = handle
	})
}

// Run handles one buffer.
func (h *Handler[T]) Run() int {
	in := h.In()
	count := in.Read()
	if count < 0 {
		return -1
	}
	h.handle(in.ReadBuf()[:count])
	in.Flush()
	return count
}

// Null discards everything it reads.
type Null[T any] struct {
	block.Sink[T]
	samples atomic.Int64
}

// NewNull returns a new null sink.
func NewNull[T any](in *stream.Stream[T], options ...block.Option) *Null[T] {
	n := &Null[T]{}
	n.Init(n, in, options...)
	return n
}

// Samples returns number of discarded samples.
func (n *Null[T]) Samples() int64 {
	return n.samples.Load()
}

// Run discards one buffer.
func (n *Null[T]) Run() int {
	in := n.In()
	count := in.Read()
	if count < 0 {
		return -1
	}
	in.Flush()
	n.samples.Add(int64(count))
	return count
}
