package util

import (
	"math"
	"math/bits"
	"sync/atomic"
)

// ----------------------------------------------------------------------------
// Stats
// ----------------------------------------------------------------------------

// Stats holds summary values of a sample
type Stats struct {
	Count        int     `json:"count"`
	StdDeviation float64 `json:"std_deviation"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Mean         float64 `json:"mean"`
}

// NewStats computes count, mean, standard deviation, minimum and maximum of values
func NewStats(values []float64) Stats {
	if len(values) == 0 {
		return Stats{}
	}

	min := values[0]
	max := values[0]

	var sum float64
	for _, v := range values {
		sum += v
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	mean := sum / float64(len(values))

	// population standard deviation
	var sumSquaredDiffs float64
	for _, v := range values {
		diff := v - mean
		sumSquaredDiffs += diff * diff
	}

	return Stats{
		Count:        len(values),
		StdDeviation: math.Sqrt(sumSquaredDiffs / float64(len(values))),
		Min:          min,
		Max:          max,
		Mean:         mean,
	}
}

// ----------------------------------------------------------------------------
// SizeHistogram
// ----------------------------------------------------------------------------

// sizeBuckets is the number of bounded buckets. Bucket i holds sizes up to
// 16 << 2i bytes, the last bounded bucket ends at 16 MiB.
const sizeBuckets = 11

// SizeHistogram counts sizes in power of four buckets. It is updated with
// atomics only, so frame readers of many connections can share one instance.
type SizeHistogram struct {
	buckets [sizeBuckets + 1]atomic.Int64 // last one is the overflow bucket
	count   atomic.Int64
	sum     atomic.Int64
	max     atomic.Int64
}

// NewSizeHistogram returns an empty histogram
func NewSizeHistogram() *SizeHistogram {
	return &SizeHistogram{}
}

func bucketOf(size int) int {
	if size <= 16 {
		return 0
	}
	return min((bits.Len(uint(size-1))-3)/2, sizeBuckets)
}

func bucketUpper(i int) int {
	return 16 << (2 * i)
}

// Observe records one size
func (h *SizeHistogram) Observe(size int) {
	h.buckets[bucketOf(size)].Add(1)
	h.count.Add(1)
	h.sum.Add(int64(size))
	for {
		cur := h.max.Load()
		if int64(size) <= cur || h.max.CompareAndSwap(cur, int64(size)) {
			return
		}
	}
}

// Count is the number of observed sizes
func (h *SizeHistogram) Count() int64 { return h.count.Load() }

// Max is the largest observed size
func (h *SizeHistogram) Max() int { return int(h.max.Load()) }

// Mean is the average observed size, 0 when empty
func (h *SizeHistogram) Mean() int {
	n := h.count.Load()
	if n == 0 {
		return 0
	}
	return int(h.sum.Load() / n)
}

// Percentile estimates the p-th percentile (0-100) as the midpoint of the
// bucket it falls into. Sizes in the overflow bucket estimate as 32 MiB.
func (h *SizeHistogram) Percentile(p int) int {
	n := h.count.Load()
	if n == 0 || p < 0 || p > 100 {
		return 0
	}

	target := int64(math.Ceil(float64(n) * float64(p) / 100))
	var seen int64
	for i := range h.buckets {
		seen += h.buckets[i].Load()
		if seen < target {
			continue
		}
		switch {
		case i == 0:
			return bucketUpper(0) / 2
		case i == sizeBuckets:
			return bucketUpper(sizeBuckets-1) * 2
		default:
			return (bucketUpper(i-1) + bucketUpper(i)) / 2
		}
	}
	return h.Mean()
}

// Reset drops all observations. Concurrent Observe calls may survive partially.
func (h *SizeHistogram) Reset() {
	for i := range h.buckets {
		h.buckets[i].Store(0)
	}
	h.count.Store(0)
	h.sum.Store(0)
	h.max.Store(0)
}
