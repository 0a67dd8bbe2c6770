// Package block runs DSP stages in their own goroutines.
//
// A stage implements Runner. Block wraps it with a fixed lifecycle: Start
// spawns the worker which calls Run until it returns a negative value,
// Stop cancels every registered input and output stream, waits for the
// worker and re-arms the streams so the block can be started again.
//
// Structural changes, such as rewiring inputs or resizing internal state,
// must be done through Reconfigure. It stops the worker, applies the
// change and restarts it, so no iteration observes a half-updated
// configuration.
package block

import (
	"sync"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"

	"pipelined.dev/radio/log"
	"pipelined.dev/radio/metric"
	"pipelined.dev/radio/stream"
)

var defaultLogger = log.GetLogger()

// Runner is implemented by every stage. Run processes one buffer and
// returns number of processed samples. Negative value ends the worker.
type Runner interface {
	Run() int
}

// Option configures a block.
type Option func(*Block)

// WithName sets the name used in log records.
func WithName(name string) Option {
	return func(b *Block) {
		b.name = name
	}
}

// WithLogger sets the block logger.
func WithLogger(l log.Logger) Option {
	return func(b *Block) {
		b.logger = l
	}
}

// WithSampleRate sets the sample rate used to account signal duration in
// block metrics.
func WithSampleRate(sampleRate int) Option {
	return func(b *Block) {
		b.sampleRate = sampleRate
	}
}

// WithBufferSize sets the buffer size of output streams allocated by the
// block.
func WithBufferSize(size int) Option {
	return func(b *Block) {
		b.bufferSize = size
	}
}

// Block is the worker lifecycle shared by all stages. The zero value is
// uninitialized, Init must be called before Start.
type Block struct {
	// ctrl serializes reconfigurations.
	ctrl sync.Mutex
	// mu guards the lifecycle fields below. It's never taken by the worker.
	mu sync.Mutex

	id         string
	name       string
	runner     Runner
	logger     log.Logger
	entry      *logrus.Entry
	meter      metric.ResetFunc
	sampleRate int
	bufferSize int

	inputs  []stream.Untyped
	outputs []stream.Untyped

	initialized   bool
	running       bool
	stopped       bool
	tempStopped   bool
	tempStopDepth int
	done          chan struct{}
}

// Init binds the runner to the block. It must be called once by the
// stage constructor, before any stream is registered.
func (b *Block) Init(r Runner, options ...Option) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.id = xid.New().String()
	b.runner = r
	b.logger = defaultLogger
	b.bufferSize = stream.DefaultBufferSize
	for _, option := range options {
		option(b)
	}
	b.entry = b.logger.WithField("block", b.id)
	if b.name != "" {
		b.entry = b.entry.WithField("name", b.name)
	}
	b.meter = metric.Meter(b.id, b.name, b.sampleRate)
	b.initialized = true
}

// ID returns unique id of the block.
func (b *Block) ID() string {
	return b.id
}

// Name returns name of the block.
func (b *Block) Name() string {
	return b.name
}

// BufferSize returns the size of output buffers allocated by the block.
func (b *Block) BufferSize() int {
	return b.bufferSize
}

// Logger returns the block log entry.
func (b *Block) Logger() *logrus.Entry {
	return b.entry
}

// RegisterInput adds the stream to the set of inputs which are stopped
// together with the block.
func (b *Block) RegisterInput(s stream.Untyped) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inputs = append(b.inputs, s)
}

// UnregisterInput removes the stream from the set of inputs.
func (b *Block) UnregisterInput(s stream.Untyped) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inputs = remove(b.inputs, s)
}

// RegisterOutput adds the stream to the set of outputs which are stopped
// together with the block.
func (b *Block) RegisterOutput(s stream.Untyped) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.outputs = append(b.outputs, s)
}

// UnregisterOutput removes the stream from the set of outputs.
func (b *Block) UnregisterOutput(s stream.Untyped) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.outputs = remove(b.outputs, s)
}

func remove(streams []stream.Untyped, s stream.Untyped) []stream.Untyped {
	result := streams[:0]
	for _, v := range streams {
		if v != s {
			result = append(result, v)
		}
	}
	return result
}

// Start spawns the worker. It's a no-op if the block is already running.
// Starting a block which wasn't initialized or has no streams is a
// programming error and causes a panic.
func (b *Block) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mustBeInitialized()
	if b.running {
		return
	}
	b.mustHaveStreams()
	b.running = true
	b.stopped = false
	if b.tempStopDepth > 0 {
		// reconfiguration is in progress, TempStart will spawn the worker.
		b.tempStopped = true
		return
	}
	b.doStart()
	b.entry.Debug("started")
}

// Stop cancels the worker and waits for it to exit. Stream stops are
// cleared afterwards, so the block can be started again.
func (b *Block) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mustBeInitialized()
	if !b.running {
		return
	}
	if !b.tempStopped {
		b.doStop()
	}
	b.running = false
	b.tempStopped = false
	b.stopped = true
	b.entry.Debug("stopped")
}

// TempStop pauses the worker for a structural change. Calls nest, the
// worker is resumed by the outermost TempStart.
func (b *Block) TempStop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mustBeInitialized()
	b.tempStopDepth++
	if b.tempStopDepth > 1 {
		return
	}
	if b.running && !b.tempStopped {
		b.doStop()
		b.tempStopped = true
		b.entry.Debug("paused")
	}
}

// TempStart resumes the worker paused by TempStop.
func (b *Block) TempStart() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mustBeInitialized()
	if b.tempStopDepth == 0 {
		return
	}
	b.tempStopDepth--
	if b.tempStopDepth > 0 {
		return
	}
	if b.tempStopped {
		b.doStart()
		b.tempStopped = false
		b.entry.Debug("resumed")
	}
}

// Reconfigure applies fn while the worker is paused. Concurrent
// reconfigurations are serialized. fn must not call Reconfigure on the
// same block.
func (b *Block) Reconfigure(fn func()) {
	b.ctrl.Lock()
	defer b.ctrl.Unlock()
	b.TempStop()
	defer b.TempStart()
	fn()
}

// Running returns true if the block was started and not stopped.
func (b *Block) Running() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

// State returns current lifecycle state of the block.
func (b *Block) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case !b.initialized:
		return Uninitialized
	case b.running && b.tempStopped:
		return Paused
	case b.running:
		return Running
	case b.stopped:
		return Stopped
	}
	return Initialized
}

func (b *Block) mustBeInitialized() {
	if !b.initialized {
		panic("block: not initialized")
	}
}

func (b *Block) mustHaveStreams() {
	if len(b.inputs) == 0 && len(b.outputs) == 0 {
		panic("block: no streams registered")
	}
}

func (b *Block) doStart() {
	done := make(chan struct{})
	b.done = done
	measure := b.meter()
	go func() {
		defer close(done)
		for {
			n := b.runner.Run()
			if n < 0 {
				return
			}
			measure(int64(n))
		}
	}()
}

func (b *Block) doStop() {
	for _, in := range b.inputs {
		in.StopReader()
	}
	for _, out := range b.outputs {
		out.StopWriter()
	}
	<-b.done
	for _, in := range b.inputs {
		in.ClearReadStop()
	}
	for _, out := range b.outputs {
		out.ClearWriteStop()
	}
}
