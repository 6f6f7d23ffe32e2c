package util

import (
	"math"
	"sync"
	"testing"
)

func TestNewStats(t *testing.T) {
	tests := map[string]struct {
		values []float64
		want   Stats
	}{
		"empty": {
			values: nil,
			want:   Stats{},
		},
		"single": {
			values: []float64{4},
			want:   Stats{Count: 1, Min: 4, Max: 4, Mean: 4},
		},
		"spread": {
			values: []float64{2, 4, 4, 4, 5, 5, 7, 9},
			want:   Stats{Count: 8, StdDeviation: 2, Min: 2, Max: 9, Mean: 5},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got := NewStats(tc.values)
			if got.Count != tc.want.Count || got.Min != tc.want.Min || got.Max != tc.want.Max {
				t.Errorf("got %+v, want %+v", got, tc.want)
			}
			if math.Abs(got.Mean-tc.want.Mean) > 1e-9 || math.Abs(got.StdDeviation-tc.want.StdDeviation) > 1e-9 {
				t.Errorf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestSizeHistogram(t *testing.T) {
	h := NewSizeHistogram()

	if h.Mean() != 0 || h.Percentile(50) != 0 {
		t.Fatal("empty histogram should report zero")
	}

	for i := 0; i < 90; i++ {
		h.Observe(20) // (16, 64]
	}
	for i := 0; i < 10; i++ {
		h.Observe(16404) // (16384, 65536]
	}

	if h.Count() != 100 {
		t.Errorf("expected 100 samples, got %d", h.Count())
	}
	if h.Max() != 16404 {
		t.Errorf("expected max 16404, got %d", h.Max())
	}
	if got := h.Percentile(50); got != (16+64)/2 {
		t.Errorf("p50: got %d, want %d", got, (16+64)/2)
	}
	if got := h.Percentile(99); got != (16384+65536)/2 {
		t.Errorf("p99: got %d, want %d", got, (16384+65536)/2)
	}
	if got := h.Percentile(101); got != 0 {
		t.Errorf("invalid percentile should return 0, got %d", got)
	}

	h.Reset()
	if h.Count() != 0 || h.Max() != 0 {
		t.Error("Reset should clear all data")
	}
}

func TestSizeHistogramBuckets(t *testing.T) {
	tests := map[int]int{
		0:        0,
		16:       0,
		17:       1,
		64:       1,
		65:       2,
		1024:     3,
		1025:     4,
		16777216: 10,
		16777217: 11,
		1 << 30:  11,
	}
	for size, want := range tests {
		if got := bucketOf(size); got != want {
			t.Errorf("bucketOf(%d) = %d, want %d", size, got, want)
		}
	}
}

func TestSizeHistogramConcurrent(t *testing.T) {
	h := NewSizeHistogram()
	var wg sync.WaitGroup
	for g := 1; g <= 8; g++ {
		wg.Add(1)
		go func(size int) {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				h.Observe(size)
			}
		}(g * 100)
	}
	wg.Wait()

	if h.Count() != 8000 {
		t.Errorf("expected 8000 samples, got %d", h.Count())
	}
	if h.Max() != 800 {
		t.Errorf("expected max 800, got %d", h.Max())
	}
	if h.Mean() != 450 {
		t.Errorf("expected mean 450, got %d", h.Mean())
	}
}

func TestHashString(t *testing.T) {
	if HashString("kv", 0) != HashString("kv", 0) {
		t.Error("hash must be deterministic")
	}
	if HashString("kv", 0) == HashString("lock", 0) {
		t.Error("different inputs should not collide here")
	}
	if HashString("kv", 0) == HashString("kv", 1) {
		t.Error("seed must change the hash")
	}
}
