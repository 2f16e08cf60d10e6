// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package telemetry

import (
	"math"
	"sort"
)

// Statistics is the order-statistics summary of a bounded sample set.
// Values are never mutated after construction and may be shared freely.
type Statistics struct {
	Count  int
	Min    float64
	Max    float64
	Mean   float64
	Median float64
	P90    float64
	P95    float64
	P99    float64
	P999   float64
	StdDev float64
}

// ComputeStatistics summarizes a finite sample set. The input slice is not
// modified; an empty input yields the zero value without any division.
//
// Percentiles use linear interpolation between the floor and ceiling of
// index (n-1)*p, clamped to the last element. The standard deviation is
// the population form (divide by n, not n-1).
func ComputeStatistics(samples []float64) Statistics {
	var s Statistics
	n := len(samples)
	if n == 0 {
		return s
	}

	sorted := make([]float64, n)
	copy(sorted, samples)
	sort.Float64s(sorted)

	s.Count = n
	s.Min = sorted[0]
	s.Max = sorted[n-1]

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	s.Mean = sum / float64(n)

	if n%2 == 1 {
		s.Median = sorted[n/2]
	} else {
		s.Median = (sorted[n/2-1] + sorted[n/2]) / 2
	}

	s.P90 = percentile(sorted, 0.90)
	s.P95 = percentile(sorted, 0.95)
	s.P99 = percentile(sorted, 0.99)
	s.P999 = percentile(sorted, 0.999)

	var sq float64
	for _, v := range sorted {
		d := v - s.Mean
		sq += d * d
	}
	s.StdDev = math.Sqrt(sq / float64(n))
	return s
}

// percentile interpolates linearly at rank (n-1)*p of an ascending-sorted
// slice. The slice must be non-empty.
func percentile(sorted []float64, p float64) float64 {
	pos := float64(len(sorted)-1) * p
	lower := int(pos)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	frac := pos - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*frac
}
