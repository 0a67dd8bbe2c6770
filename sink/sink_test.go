package sink_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"pipelined.dev/radio/block"
	"pipelined.dev/radio/log"
	"pipelined.dev/radio/sink"
	"pipelined.dev/radio/stream"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestHandler(t *testing.T) {
	in := stream.New[float32](stream.WithBufferSize(4))
	var (
		mu       sync.Mutex
		received []float32
	)
	h := sink.NewHandler(in, func(data []float32) {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, data...)
	}, block.WithLogger(log.Silent()))
	h.Start()
	defer h.Stop()

	require.Equal(t, 6, in.Write([]float32{1, 2, 3, 4, 5, 6}))
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 6
	}, time.Second, time.Millisecond)
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, received)

	calls := make(chan int, 1)
	h.SetHandler(func(data []float32) {
		calls <- len(data)
	})
	require.Equal(t, 2, in.Write([]float32{7, 8}))
	assert.Equal(t, 2, <-calls)
}

func TestNull(t *testing.T) {
	in := stream.New[complex64](stream.WithBufferSize(16))
	n := sink.NewNull(in, block.WithLogger(log.Silent()))
	n.Start()
	defer n.Stop()

	require.Equal(t, 100, in.Write(make([]complex64, 100)))
	assert.Eventually(t, func() bool {
		return n.Samples() == 100
	}, time.Second, time.Millisecond)
}

func TestNullBoundLater(t *testing.T) {
	n := sink.NewNull[complex64](nil, block.WithLogger(log.Silent()))
	in := stream.New[complex64](stream.WithBufferSize(16))
	n.SetInput(in)
	n.Start()
	defer n.Stop()

	require.Equal(t, 20, in.Write(make([]complex64, 20)))
	assert.Eventually(t, func() bool {
		return n.Samples() == 20
	}, time.Second, time.Millisecond)
}
