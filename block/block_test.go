package block_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"pipelined.dev/radio/block"
	"pipelined.dev/radio/log"
	"pipelined.dev/radio/stream"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const bufferSize = 8

type passthrough struct {
	block.Processor[int, int]
}

func newPassthrough(in *stream.Stream[int]) *passthrough {
	p := &passthrough{}
	p.Init(p, in,
		block.WithName("passthrough"),
		block.WithLogger(log.Silent()),
		block.WithBufferSize(bufferSize),
	)
	return p
}

func (p *passthrough) Run() int {
	return p.Transform(func(in, out []int) int {
		return copy(out, in)
	})
}

// drain discards everything it reads.
type drain struct {
	block.Sink[int]
}

func (d *drain) Run() int {
	count := d.In().Read()
	if count < 0 {
		return -1
	}
	d.In().Flush()
	return count
}

func series(from, to int) []int {
	result := make([]int, 0, to-from+1)
	for i := from; i <= to; i++ {
		result = append(result, i)
	}
	return result
}

// exiting ends the worker on the first iteration.
type exiting struct {
	block.Source[int]
}

func (*exiting) Run() int {
	return -1
}

func newStream() *stream.Stream[int] {
	return stream.New[int](stream.WithBufferSize(bufferSize))
}

func transfer(t *testing.T, in, out *stream.Stream[int], data []int) {
	t.Helper()
	require.Equal(t, len(data), in.Write(data))
	result := make([]int, len(data))
	require.Equal(t, len(data), out.ReadInto(result))
	assert.Equal(t, data, result)
}

func TestUninitialized(t *testing.T) {
	var b block.Block
	assert.Equal(t, block.Uninitialized, b.State())
	assert.Panics(t, b.Start)
	assert.Panics(t, b.Stop)

	// initialized block without streams can't be started either.
	e := &exiting{}
	e.Block.Init(e)
	assert.Panics(t, e.Start)
}

func TestLifecycle(t *testing.T) {
	in := newStream()
	p := newPassthrough(in)
	assert.NotEmpty(t, p.ID())
	assert.Equal(t, "passthrough", p.Name())
	assert.Equal(t, bufferSize, p.Out.BufferSize())
	assert.Equal(t, block.Initialized, p.State())
	assert.False(t, p.Running())

	p.Start()
	// second start is a no-op.
	p.Start()
	assert.Equal(t, block.Running, p.State())
	assert.True(t, p.Running())
	transfer(t, in, p.Out, []int{1, 2, 3})

	p.Stop()
	p.Stop()
	assert.Equal(t, block.Stopped, p.State())
	assert.False(t, p.Running())

	// block can be restarted after stop.
	p.Start()
	assert.Equal(t, block.Running, p.State())
	transfer(t, in, p.Out, []int{4, 5, 6, 7})
	p.Stop()
}

func TestStopBlockedWorker(t *testing.T) {
	tests := []struct {
		name string
		fill bool
	}{
		{
			name: "blocked on input",
		},
		{
			name: "blocked on output",
			fill: true,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			in := newStream()
			p := newPassthrough(in)
			p.Start()
			if test.fill {
				// nobody reads the output, so the second buffer blocks the
				// worker in swap.
				require.Equal(t, 2, in.Write([]int{1, 2}))
				require.Equal(t, 2, in.Write([]int{3, 4}))
			}
			done := make(chan struct{})
			go func() {
				p.Stop()
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(time.Second):
				t.Fatal("stop didn't return")
			}
			assert.Equal(t, block.Stopped, p.State())
		})
	}
}

func TestWorkerExit(t *testing.T) {
	e := &exiting{}
	e.Init(e, block.WithLogger(log.Silent()), block.WithBufferSize(bufferSize))
	e.Start()
	assert.True(t, e.Running())
	// stop joins the finished worker without blocking.
	e.Stop()
	assert.Equal(t, block.Stopped, e.State())
}

func TestTempStop(t *testing.T) {
	in := newStream()
	p := newPassthrough(in)
	p.Start()

	p.TempStop()
	assert.Equal(t, block.Paused, p.State())
	p.TempStop()
	p.TempStart()
	assert.Equal(t, block.Paused, p.State())
	p.TempStart()
	assert.Equal(t, block.Running, p.State())
	// unbalanced start is ignored.
	p.TempStart()
	assert.Equal(t, block.Running, p.State())
	transfer(t, in, p.Out, []int{1, 2})

	// start during reconfiguration is deferred until it's done.
	p.Stop()
	p.TempStop()
	p.Start()
	assert.Equal(t, block.Paused, p.State())
	p.TempStart()
	assert.Equal(t, block.Running, p.State())
	transfer(t, in, p.Out, []int{3})

	// stop during reconfiguration cancels the deferred start.
	p.TempStop()
	p.Stop()
	p.TempStart()
	assert.Equal(t, block.Stopped, p.State())
}

func TestTempStopBlockedOutput(t *testing.T) {
	in := newStream()
	p := newPassthrough(in)
	p.Start()
	defer p.Stop()

	require.Equal(t, bufferSize, in.Write(series(1, bufferSize)))
	require.Equal(t, bufferSize, p.Out.Read())
	// output isn't flushed, the worker blocks publishing the second buffer.
	require.Equal(t, bufferSize, in.Write(series(bufferSize+1, 2*bufferSize)))
	require.Equal(t, 1, in.Write([]int{2*bufferSize + 1}))

	p.TempStop()
	p.TempStart()

	assert.Equal(t, series(1, bufferSize), p.Out.ReadBuf()[:bufferSize])
	p.Out.Flush()
	result := make([]int, bufferSize+1)
	require.Equal(t, len(result), p.Out.ReadInto(result))
	assert.Equal(t, series(bufferSize+1, 2*bufferSize+1), result)
}

func TestSinkLateInput(t *testing.T) {
	d := &drain{}
	d.Init(d, nil, block.WithLogger(log.Silent()))
	assert.Nil(t, d.In())
	assert.Panics(t, d.Start)
	assert.Equal(t, block.Initialized, d.State())

	in := newStream()
	assert.NotPanics(t, func() { d.SetInput(in) })
	assert.Equal(t, in, d.In())
	assert.Equal(t, block.Initialized, d.State())

	d.Start()
	require.Equal(t, 3, in.Write([]int{1, 2, 3}))
	require.Equal(t, 2, in.Write([]int{4, 5}))
	d.Stop()
	assert.Equal(t, block.Stopped, d.State())
}

func TestReconfigure(t *testing.T) {
	first, second := newStream(), newStream()
	p := newPassthrough(first)
	p.Start()
	defer p.Stop()
	transfer(t, first, p.Out, []int{1, 2, 3})

	p.SetInput(second)
	assert.Equal(t, second, p.In())
	assert.Equal(t, block.Running, p.State())
	transfer(t, second, p.Out, []int{4, 5})

	// rewiring to the same stream is idempotent.
	p.SetInput(second)
	p.SetInput(second)
	transfer(t, second, p.Out, []int{6})

	calls := 0
	p.Reconfigure(func() {
		calls++
		assert.Equal(t, block.Paused, p.State())
	})
	assert.Equal(t, 1, calls)
	assert.Equal(t, block.Running, p.State())
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state    block.State
		expected string
	}{
		{block.Uninitialized, "uninitialized"},
		{block.Initialized, "initialized"},
		{block.Running, "running"},
		{block.Paused, "paused"},
		{block.Stopped, "stopped"},
		{block.State(42), "unknown"},
	}
	for _, test := range tests {
		assert.Equal(t, test.expected, test.state.String())
	}
}

func TestHier(t *testing.T) {
	in := newStream()
	first := newPassthrough(in)
	second := newPassthrough(first.Out)

	var h block.Hier
	h.Register(first, second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() {
		done <- h.Run(ctx)
	}()
	assert.Eventually(t, func() bool {
		return first.Running() && second.Running()
	}, time.Second, time.Millisecond)
	transfer(t, in, second.Out, []int{1, 2, 3})

	h.TempStop()
	assert.Equal(t, block.Paused, first.State())
	assert.Equal(t, block.Paused, second.State())
	h.TempStart()
	assert.Equal(t, block.Running, first.State())
	transfer(t, in, second.Out, []int{4})

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.False(t, h.Running())
	assert.Equal(t, block.Stopped, first.State())
	assert.Equal(t, block.Stopped, second.State())

	h.Unregister(second)
	h.Start()
	assert.True(t, first.Running())
	assert.False(t, second.Running())
	h.Stop()
}
