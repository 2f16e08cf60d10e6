// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package telemetry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeStatistics(t *testing.T) {
	t.Run("empty input yields zero value", func(t *testing.T) {
		s := ComputeStatistics(nil)
		assert.Equal(t, Statistics{}, s)

		s = ComputeStatistics([]float64{})
		assert.Equal(t, Statistics{}, s)
	})

	t.Run("five known samples", func(t *testing.T) {
		s := ComputeStatistics([]float64{10, 20, 30, 40, 50})

		assert.Equal(t, 5, s.Count)
		assert.InDelta(t, 10.0, s.Min, 1e-9)
		assert.InDelta(t, 50.0, s.Max, 1e-9)
		assert.InDelta(t, 30.0, s.Mean, 1e-9)
		assert.InDelta(t, 30.0, s.Median, 1e-9)
		// p90 interpolates at index (5-1)*0.9 = 3.6 between 40 and 50.
		assert.InDelta(t, 46.0, s.P90, 1e-9)
		// Population stddev of {10..50} step 10 is sqrt(200).
		assert.InDelta(t, math.Sqrt(200), s.StdDev, 1e-9)
	})

	t.Run("even count median averages midpoints", func(t *testing.T) {
		s := ComputeStatistics([]float64{1, 2, 3, 4})
		assert.InDelta(t, 2.5, s.Median, 1e-9)
	})

	t.Run("single sample", func(t *testing.T) {
		s := ComputeStatistics([]float64{42})

		assert.Equal(t, 1, s.Count)
		assert.InDelta(t, 42.0, s.Min, 1e-9)
		assert.InDelta(t, 42.0, s.Max, 1e-9)
		assert.InDelta(t, 42.0, s.Median, 1e-9)
		assert.InDelta(t, 42.0, s.P999, 1e-9)
		assert.Zero(t, s.StdDev)
	})

	t.Run("percentile ordering", func(t *testing.T) {
		samples := []float64{983, 12, 55, 7, 130, 42, 999, 3, 77, 250, 18, 66}

		s := ComputeStatistics(samples)

		require.Positive(t, s.Count)
		assert.LessOrEqual(t, s.Min, s.Median)
		assert.LessOrEqual(t, s.Median, s.P90)
		assert.LessOrEqual(t, s.P90, s.P95)
		assert.LessOrEqual(t, s.P95, s.P99)
		assert.LessOrEqual(t, s.P99, s.P999)
		assert.LessOrEqual(t, s.P999, s.Max)
	})

	t.Run("input not mutated", func(t *testing.T) {
		samples := []float64{5, 1, 3}
		ComputeStatistics(samples)
		assert.Equal(t, []float64{5, 1, 3}, samples)
	})
}
