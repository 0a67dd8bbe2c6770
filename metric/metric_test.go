package metric_test

import (
	"encoding/json"
	"expvar"
	"sync"
	"testing"

	"github.com/rs/xid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipelined.dev/radio/metric"
)

func TestMeter(t *testing.T) {
	sampleRate := 48000
	// two costas loops share the name, but are measured separately.
	var tests = []struct {
		id               string
		name             string
		starts           int
		buffers          int
		bufferSize       int64
		expectedSamples  string
		expectedDuration string
	}{
		{
			id:               xid.New().String(),
			name:             "costas",
			starts:           2,
			buffers:          10,
			bufferSize:       480,
			expectedSamples:  "9600",
			expectedDuration: "200ms",
		},
		{
			id:               xid.New().String(),
			name:             "costas",
			starts:           1,
			buffers:          3,
			bufferSize:       4800,
			expectedSamples:  "14400",
			expectedDuration: "300ms",
		},
		{
			id:               xid.New().String(),
			name:             "deframer",
			starts:           3,
			buffers:          1,
			bufferSize:       96,
			expectedSamples:  "288",
			expectedDuration: "6ms",
		},
	}

	for _, c := range tests {
		reset := metric.Meter(c.id, c.name, sampleRate)
		wg := &sync.WaitGroup{}
		wg.Add(c.starts)
		for i := 0; i < c.starts; i++ {
			go func() {
				defer wg.Done()
				measure := reset()
				for j := 0; j < c.buffers; j++ {
					measure(c.bufferSize)
				}
			}()
		}
		wg.Wait()
	}

	for _, c := range tests {
		values := metric.Get(c.id)
		assert.Equal(t, c.name, values[metric.NameLabel])
		assert.Equal(t, c.expectedSamples, values[metric.SampleCounter])
		assert.Equal(t, c.expectedDuration, values[metric.DurationCounter])
		assert.Equal(t, int64(c.starts), toInt(t, values[metric.StartCounter]))
		assert.Equal(t, int64(c.starts*c.buffers), toInt(t, values[metric.MessageCounter]))
	}

	all := metric.GetAll()
	for _, c := range tests {
		assert.Contains(t, all, c.id)
	}
	assert.Nil(t, metric.Get("missing"))
}

func TestMeterSameID(t *testing.T) {
	id := xid.New().String()
	metric.Meter(id, "pll", 0)()(100)
	// meter of a restarted block continues counting.
	metric.Meter(id, "pll", 0)()(50)

	values := metric.Get(id)
	assert.Equal(t, "150", values[metric.SampleCounter])
	assert.Equal(t, "2", values[metric.StartCounter])
	assert.Equal(t, "0s", values[metric.DurationCounter])
}

func TestExpvar(t *testing.T) {
	id := xid.New().String()
	metric.Meter(id, "splitter", 1000)()(10)

	v := expvar.Get("radio.blocks." + id)
	require.NotNil(t, v)
	var published map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(v.String()), &published))
	assert.Equal(t, "splitter", published[metric.NameLabel])
	assert.Equal(t, float64(10), published[metric.SampleCounter])
	assert.Equal(t, "10ms", published[metric.DurationCounter])
}

func toInt(t *testing.T, s string) int64 {
	t.Helper()
	var v int64
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}
