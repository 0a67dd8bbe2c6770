package deframe

import (
	"bytes"

	"pipelined.dev/radio/stream"
)

// Deframer extracts frames from a stream of hard bits. Sync word must
// match exactly. Frames are packed into bytes, MSB first, the last byte is
// padded with zeros.
type Deframer struct {
	deframer[uint8, uint8]
}

// New returns a deframer for frames of frameLen bits which follow the
// sync word. Bits are 0 or 1 values. It panics if the sync word is empty
// or frame length isn't positive.
func New(in *stream.Stream[uint8], frameLen int, syncWord []uint8, options ...Option) *Deframer {
	sync := bytes.Clone(syncWord)
	d := &Deframer{}
	d.init(d, in, len(sync), frameLen, (frameLen+7)/8,
		func(window []uint8) bool {
			return bytes.Equal(window, sync)
		},
		packBit,
		options,
	)
	return d
}

func packBit(frame []uint8, i int, bit uint8) {
	if i%8 == 0 {
		frame[i/8] = 0
	}
	frame[i/8] |= (bit & 1) << (7 - i%8)
}

// SymbolDeframer extracts frames from a stream of hard symbols. Sync word
// is matched with up to two symbol errors. Frames are emitted as symbols.
type SymbolDeframer struct {
	deframer[uint8, uint8]
}

// NewSymbolDeframer returns a deframer for frames of frameLen symbols
// which follow the sync word.
func NewSymbolDeframer(in *stream.Stream[uint8], frameLen int, syncWord []uint8, options ...Option) *SymbolDeframer {
	sync := bytes.Clone(syncWord)
	d := &SymbolDeframer{}
	d.init(d, in, len(sync), frameLen, frameLen,
		func(window []uint8) bool {
			errs := 0
			for i, v := range window {
				if v != sync[i] {
					errs++
					if errs > maxErrors {
						return false
					}
				}
			}
			return true
		},
		putSymbol[uint8],
		options,
	)
	return d
}

func putSymbol[T any](frame []T, i int, v T) {
	frame[i] = v
}

// ManchesterDeframer extracts frames from a stream of Manchester encoded
// soft symbols. Every bit of the sync word takes two symbols, a pair
// (a, b) is decoded as 1 when a > b. Decoded sync word is matched with up
// to two bit errors. Frames are emitted as soft symbols.
type ManchesterDeframer struct {
	deframer[float32, float32]
}

// NewManchesterDeframer returns a deframer for frames of frameLen symbols
// which follow the Manchester encoded sync word.
func NewManchesterDeframer(in *stream.Stream[float32], frameLen int, syncWord []uint8, options ...Option) *ManchesterDeframer {
	sync := bytes.Clone(syncWord)
	d := &ManchesterDeframer{}
	d.init(d, in, 2*len(sync), frameLen, frameLen,
		func(window []float32) bool {
			errs := 0
			for i, bit := range sync {
				if manchesterBit(window[2*i], window[2*i+1]) != bit {
					errs++
					if errs > maxErrors {
						return false
					}
				}
			}
			return true
		},
		putSymbol[float32],
		options,
	)
	return d
}

func manchesterBit(a, b float32) uint8 {
	if a > b {
		return 1
	}
	return 0
}
