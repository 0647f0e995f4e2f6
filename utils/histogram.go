package utils

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// HistogramStatus records latencies from concurrent workers.
type HistogramStatus struct {
	sync.Mutex
	histogram *hdrhistogram.Histogram
}

func NewLatencyStatus(start int64, end int64) *HistogramStatus {
	return &HistogramStatus{
		histogram: hdrhistogram.New(start, end, 3),
	}
}

func (ls *HistogramStatus) Record(n int64) error {
	ls.Lock()
	defer ls.Unlock()
	return ls.histogram.RecordValue(n)
}

func (ls *HistogramStatus) Count() int64 {
	ls.Lock()
	defer ls.Unlock()
	return ls.histogram.TotalCount()
}

type Result struct {
	Percentage float64
	Latency    float64
}

// Histogram returns the value at each requested percentile (0-100) and, if
// w is not nil, writes the cumulative distribution to w as JSON.
func (ls *HistogramStatus) Histogram(percentiles []float64, w io.Writer) ([]int64, error) {
	ls.Lock()
	defer ls.Unlock()
	ret := make([]int64, len(percentiles))
	for i := range percentiles {
		ret[i] = ls.histogram.ValueAtQuantile(percentiles[i])
	}
	if w != nil {
		brackets := ls.histogram.CumulativeDistribution()
		results := make([]Result, len(brackets))
		for i := range brackets {
			results[i] = Result{
				Percentage: brackets[i].Quantile,
				Latency:    float64(brackets[i].ValueAt),
			}
		}
		data, err := json.Marshal(results)
		if err != nil {
			return ret, err
		}
		if _, err = w.Write(data); err != nil {
			return ret, err
		}
	}
	return ret, nil
}
