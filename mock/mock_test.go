package mock_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"

	"pipelined.dev/radio/block"
	"pipelined.dev/radio/log"
	"pipelined.dev/radio/mock"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func sequence(n int) []int {
	s := make([]int, n)
	for i := range s {
		s[i] = i
	}
	return s
}

func TestPipe(t *testing.T) {
	tests := []struct {
		name     string
		samples  int
		chunk    int
		discard  bool
		messages int
	}{
		{
			name:     "even chunks",
			samples:  100,
			chunk:    10,
			messages: 10,
		},
		{
			name:     "short last chunk",
			samples:  105,
			chunk:    10,
			messages: 11,
		},
		{
			name:     "buffer size chunks",
			samples:  40,
			messages: 5,
		},
		{
			name:     "discard",
			samples:  40,
			chunk:    3,
			discard:  true,
			messages: 14,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			data := sequence(test.samples)
			source := mock.NewSource(data, test.chunk,
				block.WithLogger(log.Silent()),
				block.WithBufferSize(8),
			)
			sink := mock.NewSink(source.Out, test.discard, block.WithLogger(log.Silent()))

			var h block.Hier
			h.Register(source, sink)
			h.Start()
			<-source.Done()
			assert.Eventually(t, func() bool {
				_, samples := sink.Count()
				return samples == test.samples
			}, time.Second, time.Millisecond)
			h.Stop()

			messages, samples := source.Count()
			assert.Equal(t, test.messages, messages)
			assert.Equal(t, test.samples, samples)
			messages, samples = sink.Count()
			assert.Equal(t, test.messages, messages)
			assert.Equal(t, test.samples, samples)
			if test.discard {
				assert.Empty(t, sink.Data())
			} else {
				assert.Equal(t, data, sink.Data())
			}
		})
	}
}

func TestReset(t *testing.T) {
	source := mock.NewSource([]int{1, 2, 3}, 2, block.WithLogger(log.Silent()), block.WithBufferSize(4))
	sink := mock.NewSink(source.Out, false, block.WithLogger(log.Silent()))
	var h block.Hier
	h.Register(source, sink)

	for i := 0; i < 2; i++ {
		h.Start()
		<-source.Done()
		assert.Eventually(t, func() bool {
			_, samples := sink.Count()
			return samples == 3
		}, time.Second, time.Millisecond)
		h.Stop()
		assert.Equal(t, []int{1, 2, 3}, sink.Data())

		source.Reset()
		sink.Reset()
		messages, samples := sink.Count()
		assert.Zero(t, messages)
		assert.Zero(t, samples)
	}
}
