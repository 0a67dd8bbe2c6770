package routing_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"pipelined.dev/radio/block"
	"pipelined.dev/radio/log"
	"pipelined.dev/radio/routing"
	"pipelined.dev/radio/stream"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const bufferSize = 8

func newStream() *stream.Stream[int] {
	return stream.New[int](stream.WithBufferSize(bufferSize))
}

func read(t *testing.T, s *stream.Stream[int], n int) []int {
	t.Helper()
	result := make([]int, n)
	require.Equal(t, n, s.ReadInto(result))
	return result
}

func TestSplitter(t *testing.T) {
	in := newStream()
	s := routing.NewSplitter(in, block.WithLogger(log.Silent()))
	first, second := newStream(), newStream()
	require.NoError(t, s.BindStream(first))
	require.NoError(t, s.BindStream(second))
	assert.ErrorIs(t, s.BindStream(first), routing.ErrAlreadyBound)

	s.Start()
	defer s.Stop()

	require.Equal(t, 3, in.Write([]int{1, 2, 3}))
	assert.Equal(t, []int{1, 2, 3}, read(t, first, 3))
	assert.Equal(t, []int{1, 2, 3}, read(t, second, 3))

	require.NoError(t, s.UnbindStream(second))
	assert.ErrorIs(t, s.UnbindStream(second), routing.ErrNotBound)
	assert.Equal(t, block.Running, s.State())

	require.Equal(t, 2, in.Write([]int{4, 5}))
	assert.Equal(t, []int{4, 5}, read(t, first, 2))

	// bound again while running.
	require.NoError(t, s.BindStream(second))
	require.Equal(t, 1, in.Write([]int{6}))
	assert.Equal(t, []int{6}, read(t, first, 1))
	assert.Equal(t, []int{6}, read(t, second, 1))
}

func TestSplitterStopBlockedOutput(t *testing.T) {
	in := newStream()
	s := routing.NewSplitter(in, block.WithLogger(log.Silent()))
	out := newStream()
	require.NoError(t, s.BindStream(out))
	s.Start()

	// nobody reads the output, the splitter blocks on the second buffer.
	require.Equal(t, 1, in.Write([]int{1}))
	require.Equal(t, 1, in.Write([]int{2}))
	s.Stop()
	assert.Equal(t, block.Stopped, s.State())
}

func TestSplitterPausedDelivery(t *testing.T) {
	in := newStream()
	s := routing.NewSplitter(in, block.WithLogger(log.Silent()))
	first, second := newStream(), newStream()
	require.NoError(t, s.BindStream(first))
	require.NoError(t, s.BindStream(second))
	s.Start()
	defer s.Stop()

	require.Equal(t, 2, in.Write([]int{1, 2}))
	assert.Equal(t, []int{1, 2}, read(t, first, 2))
	// second isn't read, the splitter blocks delivering 3 to it.
	require.Equal(t, 1, in.Write([]int{3}))
	assert.Equal(t, []int{3}, read(t, first, 1))

	s.TempStop()
	s.TempStart()

	assert.Equal(t, []int{1, 2, 3}, read(t, second, 3))
	// first got 3 once.
	require.Equal(t, 1, in.Write([]int{4}))
	assert.Equal(t, []int{4}, read(t, first, 1))
	assert.Equal(t, []int{4}, read(t, second, 1))
}
