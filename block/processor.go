package block

import (
	"pipelined.dev/radio/stream"
)

// output is the stream owned by a block together with a buffer which
// couldn't be published because the worker was paused or stopped.
type output[O any] struct {
	Out       *stream.Stream[O]
	heldCount int
	held      bool
}

// Publish swaps n elements of the output write buffer. If the writer is
// stopped, the write buffer is kept intact and published by the next
// Resume.
func (o *output[O]) Publish(n int) bool {
	if !o.Out.Swap(n) {
		o.heldCount, o.held = n, true
		return false
	}
	return true
}

// Resume publishes the buffer held by a failed Publish. Run must call it
// before the output write buffer is filled again.
func (o *output[O]) Resume() bool {
	if !o.held {
		return true
	}
	if !o.Out.Swap(o.heldCount) {
		return false
	}
	o.heldCount, o.held = 0, false
	return true
}

// Discard drops the held buffer.
func (o *output[O]) Discard() {
	o.heldCount, o.held = 0, false
}

// Processor is a block with one input and one output stream. The input is
// owned by the pipeline, the output is owned by the processor.
type Processor[I, O any] struct {
	Block
	output[O]
	in *stream.Stream[I]
}

// Init binds the runner, allocates the output stream and registers both
// streams. Input can be nil and bound later with SetInput.
func (p *Processor[I, O]) Init(r Runner, in *stream.Stream[I], options ...Option) {
	p.Block.Init(r, options...)
	p.Out = stream.New[O](stream.WithBufferSize(p.BufferSize()))
	p.in = in
	if in != nil {
		p.RegisterInput(in)
	}
	p.RegisterOutput(p.Out)
}

// In returns the input stream.
func (p *Processor[I, O]) In() *stream.Stream[I] {
	return p.in
}

// Transform reads one buffer from the input, applies fn to it and
// publishes the result. fn returns the number of output elements. It's a
// helper for Run of processors which produce output for every input
// buffer. The result is never lost when the worker is paused: it's
// published as soon as the worker is resumed.
func (p *Processor[I, O]) Transform(fn func(in []I, out []O) int) int {
	if !p.Resume() {
		return -1
	}
	count := p.in.Read()
	if count < 0 {
		return -1
	}
	n := fn(p.in.ReadBuf()[:count], p.Out.WriteBuf())
	p.in.Flush()
	if !p.Publish(n) {
		return -1
	}
	return count
}

// SetInput rewires the processor to a new input stream.
func (p *Processor[I, O]) SetInput(in *stream.Stream[I]) {
	p.Reconfigure(func() {
		if p.in != nil {
			p.UnregisterInput(p.in)
		}
		p.in = in
		p.RegisterInput(in)
	})
}

// Sink is a block with one input stream and no outputs.
type Sink[I any] struct {
	Block
	in *stream.Stream[I]
}

// Init binds the runner and registers the input stream. Input can be nil
// and bound later with SetInput.
func (s *Sink[I]) Init(r Runner, in *stream.Stream[I], options ...Option) {
	s.Block.Init(r, options...)
	s.in = in
	if in != nil {
		s.RegisterInput(in)
	}
}

// In returns the input stream.
func (s *Sink[I]) In() *stream.Stream[I] {
	return s.in
}

// SetInput rewires the sink to a new input stream.
func (s *Sink[I]) SetInput(in *stream.Stream[I]) {
	s.Reconfigure(func() {
		if s.in != nil {
			s.UnregisterInput(s.in)
		}
		s.in = in
		s.RegisterInput(in)
	})
}

// Source is a block with one output stream and no inputs.
type Source[O any] struct {
	Block
	output[O]
}

// Init binds the runner, allocates and registers the output stream.
func (s *Source[O]) Init(r Runner, options ...Option) {
	s.Block.Init(r, options...)
	s.Out = stream.New[O](stream.WithBufferSize(s.BufferSize()))
	s.RegisterOutput(s.Out)
}
