// Package wav reads and writes IQ recordings stored in stereo WAV files.
// In-phase component is stored in the left channel, quadrature component
// in the right one.
package wav

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"sync"
	"sync/atomic"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"pipelined.dev/radio/block"
	"pipelined.dev/radio/ring"
	"pipelined.dev/radio/stream"
)

const (
	numChannels = 2
	bitDepth    = 16
	pcmFormat   = 1
	// ringSize is the capacity of the sink buffer between the block worker
	// and the file writer.
	ringSize = 1 << 17
	// writeChunk is the max number of samples encoded at once.
	writeChunk = 4096
)

var (
	// ErrInvalidFile is returned when the file isn't a valid WAV file.
	ErrInvalidFile = errors.New("wav is not valid")
	// ErrNotStereo is returned when the file doesn't have two channels.
	ErrNotStereo = errors.New("wav must have two channels")
	// ErrUnsupportedBitDepth is returned when unsupported bit depth is used.
	ErrUnsupportedBitDepth = errors.New("only 16, 24 and 32 bit depth is supported")
)

// Source reads IQ samples from the file. When the file is read, EOF is
// closed and the worker exits.
type Source struct {
	block.Source[complex64]
	file       *os.File
	decoder    *wav.Decoder
	ib         *audio.IntBuffer
	scale      float32
	sampleRate int
	samples    atomic.Int64
	eof        chan struct{}
	ended      bool
}

// NewSource opens the file and validates its format.
func NewSource(path string, options ...block.Option) (*Source, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("wav source: %w", err)
	}
	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		return nil, closeOnError(file, fmt.Errorf("%s: %w", path, ErrInvalidFile))
	}
	if decoder.NumChans != numChannels {
		return nil, closeOnError(file, fmt.Errorf("%s has %d channels: %w", path, decoder.NumChans, ErrNotStereo))
	}
	switch decoder.BitDepth {
	case 16, 24, 32:
	default:
		return nil, closeOnError(file, fmt.Errorf("%s has %d bits: %w", path, decoder.BitDepth, ErrUnsupportedBitDepth))
	}

	s := &Source{
		file:       file,
		decoder:    decoder,
		scale:      1 / float32(int64(1)<<(decoder.BitDepth-1)),
		sampleRate: int(decoder.SampleRate),
		eof:        make(chan struct{}),
	}
	s.Init(s, append([]block.Option{block.WithSampleRate(s.sampleRate)}, options...)...)
	s.ib = &audio.IntBuffer{
		Format:         decoder.Format(),
		Data:           make([]int, s.BufferSize()*numChannels),
		SourceBitDepth: int(decoder.BitDepth),
	}
	s.Logger().WithField("path", path).Debugf("opened %d Hz %d bit", s.sampleRate, decoder.BitDepth)
	return s, nil
}

func closeOnError(file *os.File, err error) error {
	if cerr := file.Close(); cerr != nil {
		return fmt.Errorf("%w, failed to close the file: %v", err, cerr)
	}
	return err
}

// SampleRate returns sample rate of the file.
func (s *Source) SampleRate() int {
	return s.sampleRate
}

// Samples returns number of samples written to the output.
func (s *Source) Samples() int64 {
	return s.samples.Load()
}

// EOF is closed when the whole file is read.
func (s *Source) EOF() <-chan struct{} {
	return s.eof
}

// Close closes the file. The block must be stopped.
func (s *Source) Close() error {
	s.Stop()
	return s.file.Close()
}

// Run reads one buffer from the file.
func (s *Source) Run() int {
	if !s.Resume() {
		return -1
	}
	n, err := s.decoder.PCMBuffer(s.ib)
	if err != nil {
		s.Logger().WithError(err).Error("read failed")
		s.end()
		return -1
	}
	frames := n / numChannels
	if frames == 0 {
		s.end()
		return -1
	}
	out := s.Out.WriteBuf()
	for i := 0; i < frames; i++ {
		out[i] = complex(
			float32(s.ib.Data[2*i])*s.scale,
			float32(s.ib.Data[2*i+1])*s.scale,
		)
	}
	s.samples.Add(int64(frames))
	if !s.Publish(frames) {
		return -1
	}
	return frames
}

func (s *Source) end() {
	if !s.ended {
		s.ended = true
		close(s.eof)
		s.Logger().Debugf("eof after %d samples", s.samples.Load())
	}
}

// Sink writes IQ samples to the file as 16 bit PCM. The block worker
// pushes samples into a ring buffer, a separate goroutine encodes them,
// so slow disk doesn't stall the pipeline until the ring is full.
type Sink struct {
	block.Sink[complex64]
	file     *os.File
	encoder  *wav.Encoder
	buffer   *ring.RingBuffer[complex64]
	accepted atomic.Int64
	done     chan struct{}
	// partial is the input buffer pushed up to offset.
	partial *stream.Stream[complex64]
	offset  int

	mu      sync.Mutex
	written int64
	notify  chan struct{}
	err     error
	closed  bool
}

// NewSink creates the file and starts the file writer.
func NewSink(path string, sampleRate int, in *stream.Stream[complex64], options ...block.Option) (*Sink, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("wav sink: %w", err)
	}
	s := &Sink{
		file:    file,
		encoder: wav.NewEncoder(file, sampleRate, bitDepth, numChannels, pcmFormat),
		buffer:  ring.New[complex64](ringSize, ring.WithSize(ringSize)),
		done:    make(chan struct{}),
		notify:  make(chan struct{}),
	}
	s.Init(s, in, append([]block.Option{block.WithSampleRate(sampleRate)}, options...)...)
	s.RegisterOutput(s.buffer)
	go s.write(sampleRate)
	return s, nil
}

// Run pushes one buffer into the ring buffer. If the worker is stopped
// in the middle of the buffer, it's not flushed and the rest of it is
// pushed when the worker is started again.
func (s *Sink) Run() int {
	in := s.In()
	count := in.Read()
	if count < 0 {
		return -1
	}
	if s.partial != in {
		s.partial, s.offset = in, 0
	}
	for s.offset < count {
		n := s.buffer.WaitUntilWritable()
		if n < 0 {
			return -1
		}
		n = min(n, count-s.offset)
		// single writer, n elements fit without blocking.
		if s.buffer.Write(in.ReadBuf()[s.offset:s.offset+n]) < 0 {
			return -1
		}
		s.offset += n
		s.accepted.Add(int64(n))
	}
	in.Flush()
	s.partial, s.offset = nil, 0
	return count
}

func (s *Sink) write(sampleRate int) {
	defer close(s.done)
	samples := make([]complex64, writeChunk)
	ib := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: numChannels,
			SampleRate:  sampleRate,
		},
		Data:           make([]int, writeChunk*numChannels),
		SourceBitDepth: bitDepth,
	}
	for {
		n := s.buffer.WaitUntilReadable()
		if n < 0 {
			return
		}
		n = min(n, writeChunk)
		if s.buffer.Read(samples[:n]) < 0 {
			return
		}
		for i, v := range samples[:n] {
			ib.Data[2*i] = toInt(real(v))
			ib.Data[2*i+1] = toInt(imag(v))
		}
		ib.Data = ib.Data[:2*n]
		err := s.encoder.Write(ib)
		ib.Data = ib.Data[:cap(ib.Data)]
		s.advance(int64(n), err)
	}
}

func toInt(v float32) int {
	const maxValue = 1<<(bitDepth-1) - 1
	v = max(min(v, 1), -1)
	return int(math.Round(float64(v) * maxValue))
}

func (s *Sink) advance(n int64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil && s.err == nil {
		s.err = fmt.Errorf("wav sink: %w", err)
		s.Logger().WithError(err).Error("write failed")
	}
	s.written += n
	close(s.notify)
	s.notify = make(chan struct{})
}

// Samples returns number of samples passed to the encoder.
func (s *Sink) Samples() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written
}

// WaitSamples blocks until n samples are passed to the encoder or the
// context is done.
func (s *Sink) WaitSamples(ctx context.Context, n int64) error {
	for {
		s.mu.Lock()
		written, notify := s.written, s.notify
		s.mu.Unlock()
		if written >= n {
			return nil
		}
		select {
		case <-notify:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close stops the block, writes buffered samples and finalizes the file.
// It returns the first write error, if any.
func (s *Sink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return s.err
	}
	s.closed = true
	s.mu.Unlock()

	s.Stop()
	if err := s.WaitSamples(context.Background(), s.accepted.Load()); err != nil {
		return err
	}
	s.buffer.StopReader()
	<-s.done

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.encoder.Close(); err != nil && s.err == nil {
		s.err = fmt.Errorf("wav sink: %w", err)
	}
	if err := s.file.Close(); err != nil && s.err == nil {
		s.err = fmt.Errorf("wav sink: %w", err)
	}
	return s.err
}
