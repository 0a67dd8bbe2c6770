// Package routing provides blocks which move samples between streams.
package routing

import (
	"errors"

	"pipelined.dev/radio/block"
	"pipelined.dev/radio/stream"
)

var (
	// ErrAlreadyBound is returned when the stream is bound twice.
	ErrAlreadyBound = errors.New("stream is already bound")
	// ErrNotBound is returned when unbinding a stream which isn't bound.
	ErrNotBound = errors.New("stream is not bound")
)

// Splitter copies every input buffer to all bound streams.
type Splitter[T any] struct {
	block.Sink[T]
	streams []*stream.Stream[T]
	// served are the outputs which already got the partial input buffer.
	partial *stream.Stream[T]
	served  []*stream.Stream[T]
}

// NewSplitter returns a splitter without outputs.
func NewSplitter[T any](in *stream.Stream[T], options ...block.Option) *Splitter[T] {
	s := &Splitter[T]{}
	s.Init(s, in, options...)
	return s
}

// BindStream adds the output stream.
func (s *Splitter[T]) BindStream(out *stream.Stream[T]) error {
	var err error
	s.Reconfigure(func() {
		if s.index(out) >= 0 {
			err = ErrAlreadyBound
			return
		}
		s.streams = append(s.streams, out)
		s.RegisterOutput(out)
	})
	return err
}

// UnbindStream removes the output stream.
func (s *Splitter[T]) UnbindStream(out *stream.Stream[T]) error {
	var err error
	s.Reconfigure(func() {
		i := s.index(out)
		if i < 0 {
			err = ErrNotBound
			return
		}
		s.UnregisterOutput(out)
		s.streams = append(s.streams[:i], s.streams[i+1:]...)
	})
	return err
}

func (s *Splitter[T]) index(out *stream.Stream[T]) int {
	for i, v := range s.streams {
		if v == out {
			return i
		}
	}
	return -1
}

// Run copies one buffer to every output. If the worker is stopped before
// all outputs got the buffer, it's not flushed and the remaining outputs
// get it when the worker is started again.
func (s *Splitter[T]) Run() int {
	in := s.In()
	count := in.Read()
	if count < 0 {
		return -1
	}
	if s.partial != in {
		s.partial, s.served = in, s.served[:0]
	}
	data := in.ReadBuf()[:count]
	for _, out := range s.streams {
		if s.isServed(out) {
			continue
		}
		copy(out.WriteBuf(), data)
		if !out.Swap(count) {
			return -1
		}
		s.served = append(s.served, out)
	}
	in.Flush()
	s.partial, s.served = nil, s.served[:0]
	return count
}

func (s *Splitter[T]) isServed(out *stream.Stream[T]) bool {
	for _, v := range s.served {
		if v == out {
			return true
		}
	}
	return false
}
