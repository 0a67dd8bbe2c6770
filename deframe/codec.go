package deframe

import (
	"pipelined.dev/radio/block"
	"pipelined.dev/radio/stream"
)

// ManchesterDecoder converts pairs of soft symbols into bits. A pair
// (a, b) is decoded as 1 when a > b, or when b > a if inverted. Odd
// symbol at the end of a buffer is paired with the first symbol of the
// next one.
type ManchesterDecoder struct {
	block.Processor[float32, uint8]
	inverted   bool
	pending    float32
	hasPending bool
}

// NewManchesterDecoder returns a new decoder.
func NewManchesterDecoder(in *stream.Stream[float32], inverted bool, options ...block.Option) *ManchesterDecoder {
	d := &ManchesterDecoder{inverted: inverted}
	d.Init(d, in, options...)
	return d
}

// SetInverted changes the polarity of decoded bits.
func (d *ManchesterDecoder) SetInverted(inverted bool) {
	d.Reconfigure(func() {
		d.inverted = inverted
	})
}

// Process decodes in and returns number of bits written to out.
func (d *ManchesterDecoder) Process(in []float32, out []uint8) int {
	n := 0
	for _, v := range in {
		if !d.hasPending {
			d.pending, d.hasPending = v, true
			continue
		}
		if d.inverted {
			out[n] = manchesterBit(v, d.pending)
		} else {
			out[n] = manchesterBit(d.pending, v)
		}
		n++
		d.hasPending = false
	}
	return n
}

// Run processes one buffer.
func (d *ManchesterDecoder) Run() int {
	return d.Transform(d.Process)
}

// BitPacker packs bits into bytes, MSB first. Bits which don't fill a
// byte are carried to the next buffer.
type BitPacker struct {
	block.Processor[uint8, uint8]
	acc  uint8
	bits int
}

// NewBitPacker returns a new packer.
func NewBitPacker(in *stream.Stream[uint8], options ...block.Option) *BitPacker {
	p := &BitPacker{}
	p.Init(p, in, options...)
	return p
}

// Process packs in and returns number of bytes written to out.
func (p *BitPacker) Process(in, out []uint8) int {
	n := 0
	for _, bit := range in {
		p.acc = p.acc<<1 | bit&1
		p.bits++
		if p.bits == 8 {
			out[n] = p.acc
			n++
			p.acc, p.bits = 0, 0
		}
	}
	return n
}

// Run processes one buffer.
func (p *BitPacker) Run() int {
	return p.Transform(p.Process)
}
