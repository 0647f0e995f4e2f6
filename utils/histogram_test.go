package utils

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLatency(t *testing.T) {
	ls := NewLatencyStatus(1, 1000)

	for i := 0; i < 100; i++ {
		require.Nil(t, ls.Record(10))
	}
	require.Nil(t, ls.Record(800))
	require.Equal(t, int64(101), ls.Count())

	var buf bytes.Buffer
	ret, err := ls.Histogram([]float64{50, 99.9}, &buf)
	require.Nil(t, err)
	require.Equal(t, int64(10), ret[0])
	require.InDelta(t, 800, ret[1], 1)

	var results []Result
	require.Nil(t, json.Unmarshal(buf.Bytes(), &results))
	require.NotEmpty(t, results)

	require.NotNil(t, ls.Record(5000))
}
