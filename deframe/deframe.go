// Package deframe extracts fixed length frames from symbol streams.
//
// A deframer scans its input for a sync word. When the window at the
// current position matches, the sync word is skipped and the following
// frameLen symbols are collected into a frame. Once the frame is complete
// it is published to the output stream and scanning resumes right after
// it. The last symbols of every block are carried over to the next one,
// so sync words spanning block boundaries are detected. Every symbol is
// examined once.
//
// In sequential mode the deframer assumes that frames follow each other
// back to back. When the window right after a frame doesn't match, it's
// still treated as a sync word, at most five times in a row. A real match
// resets the count.
//
// Desynchronization is silent: no frames are emitted until the next match.
package deframe

import (
	"sync/atomic"

	"pipelined.dev/radio/block"
	"pipelined.dev/radio/stream"
)

// maxErrors is the number of mismatched symbols tolerated by the
// Hamming distance matchers.
const maxErrors = 2

// maxAssumedFrames limits consecutive frames accepted without a matching
// sync word in sequential mode.
const maxAssumedFrames = 5

// Option configures a deframer.
type Option func(*options)

type options struct {
	sequential bool
	block      []block.Option
}

// WithSequential enables the assumption that frames are back to back.
func WithSequential(enabled bool) Option {
	return func(o *options) {
		o.sequential = enabled
	}
}

// WithBlockOptions passes options to the underlying block.
func WithBlockOptions(opts ...block.Option) Option {
	return func(o *options) {
		o.block = append(o.block, opts...)
	}
}

// deframer is the scanner shared by all variants. I is the input symbol
// type, O is the frame element type.
type deframer[I, O any] struct {
	block.Processor[I, O]
	window     int
	frameLen   int
	sequential bool
	match      func(window []I) bool
	put        func(frame []O, i int, v I)

	work       []I
	frame      []O
	reading    atomic.Bool
	symbols    int
	expectSync bool
	badFrames  int
}

func (d *deframer[I, O]) init(r block.Runner, in *stream.Stream[I], window, frameLen, frameSize int, match func([]I) bool, put func([]O, int, I), opts []Option) {
	if window <= 0 {
		panic("deframe: empty sync word")
	}
	if frameLen <= 0 {
		panic("deframe: frame length must be positive")
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	d.window = window
	d.frameLen = frameLen
	d.sequential = o.sequential
	d.match = match
	d.put = put
	d.work = make([]I, 0, window)
	d.frame = make([]O, frameSize)
	d.badFrames = maxAssumedFrames
	d.Init(r, in, o.block...)
	if frameSize > d.Out.BufferSize() {
		panic("deframe: frame doesn't fit output buffer")
	}
}

// Syncing returns true while the deframer is looking for a sync word.
func (d *deframer[I, O]) Syncing() bool {
	return !d.reading.Load()
}

// SetSequential toggles the back to back frames assumption.
func (d *deframer[I, O]) SetSequential(enabled bool) {
	d.Reconfigure(func() {
		d.sequential = enabled
		d.expectSync = false
	})
}

// Reset drops carried symbols and the partial frame and returns to
// syncing.
func (d *deframer[I, O]) Reset() {
	d.Reconfigure(func() {
		d.work = d.work[:0]
		d.reading.Store(false)
		d.symbols = 0
		d.expectSync = false
		d.badFrames = maxAssumedFrames
	})
}

// Process scans in and calls emit for every completed frame. The frame
// passed to emit is only valid until it returns. Process stops and returns
// false if emit returns false.
func (d *deframer[I, O]) Process(in []I, emit func(frame []O) bool) bool {
	d.work = append(d.work, in...)
	pos, ok := d.scan(emit)
	d.work = d.work[:copy(d.work, d.work[pos:])]
	return ok
}

func (d *deframer[I, O]) scan(emit func([]O) bool) (int, bool) {
	pos := 0
	for {
		if d.reading.Load() {
			n := min(d.frameLen-d.symbols, len(d.work)-pos)
			for _, v := range d.work[pos : pos+n] {
				d.put(d.frame, d.symbols, v)
				d.symbols++
			}
			pos += n
			if d.symbols < d.frameLen {
				return pos, true
			}
			d.reading.Store(false)
			d.expectSync = d.sequential
			if !emit(d.frame) {
				return pos, false
			}
			continue
		}
		if pos+d.window > len(d.work) {
			return pos, true
		}
		if d.match(d.work[pos : pos+d.window]) {
			d.badFrames = 0
			pos = d.startFrame(pos)
			continue
		}
		if d.expectSync {
			d.expectSync = false
			if d.badFrames < maxAssumedFrames {
				d.badFrames++
				pos = d.startFrame(pos)
				continue
			}
		}
		pos++
	}
}

func (d *deframer[I, O]) startFrame(pos int) int {
	d.reading.Store(true)
	d.symbols = 0
	return pos + d.window
}

func (d *deframer[I, O]) publish(frame []O) bool {
	n := copy(d.Out.WriteBuf(), frame)
	return d.Publish(n)
}

// Run processes one buffer. A frame which couldn't be published and the
// symbols after it are kept while the worker is paused, they are handled
// before the next buffer is read.
func (d *deframer[I, O]) Run() int {
	if !d.Resume() || !d.Process(nil, d.publish) {
		return -1
	}
	in := d.In()
	count := in.Read()
	if count < 0 {
		return -1
	}
	ok := d.Process(in.ReadBuf()[:count], d.publish)
	in.Flush()
	if !ok {
		return -1
	}
	return count
}
