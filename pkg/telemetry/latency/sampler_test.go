// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package latency

import (
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigApplyDefaults(t *testing.T) {
	t.Run("budget floor enforced", func(t *testing.T) {
		c := Config{Budget: time.Millisecond}
		c.ApplyDefaults()
		assert.Equal(t, MinBudget, c.Budget)
	})

	t.Run("zero values filled", func(t *testing.T) {
		var c Config
		c.ApplyDefaults()
		assert.Equal(t, MinBudget, c.Budget)
		assert.Equal(t, DefaultSleepTarget, c.SleepTarget)
		assert.Equal(t, 8192, c.MaxSamples)
	})

	t.Run("explicit values kept", func(t *testing.T) {
		c := Config{Budget: time.Second, SleepTarget: 200 * time.Microsecond, MaxSamples: 100}
		c.ApplyDefaults()
		assert.Equal(t, time.Second, c.Budget)
		assert.Equal(t, 200*time.Microsecond, c.SleepTarget)
		assert.Equal(t, 100, c.MaxSamples)
	})
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name        string
		priority    int
		expectError bool
	}{
		{name: "no elevation", priority: 0, expectError: false},
		{name: "minimum rt priority", priority: 1, expectError: false},
		{name: "maximum rt priority", priority: 99, expectError: false},
		{name: "above maximum", priority: 100, expectError: true},
		{name: "negative", priority: -1, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Config{Priority: tt.priority}
			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSamplerRun(t *testing.T) {
	t.Run("unelevated run produces statistics", func(t *testing.T) {
		sampler, err := NewSampler(logr.Discard(), Config{
			Budget:      50 * time.Millisecond,
			SleepTarget: time.Millisecond,
		})
		require.NoError(t, err)

		result := sampler.Run()

		assert.False(t, result.ElevationRequested)
		assert.False(t, result.Elevated)
		require.Positive(t, result.Samples)
		assert.Equal(t, result.Samples, result.Stats.Count)

		// Sleeps never return early, so every sample is at least the
		// target.
		assert.GreaterOrEqual(t, result.Stats.Min, result.TargetNs)
		assert.LessOrEqual(t, result.Stats.Min, result.Stats.P99)
		assert.LessOrEqual(t, result.Stats.P99, result.Stats.Max)
	})

	t.Run("sample cap stops the loop early", func(t *testing.T) {
		sampler, err := NewSampler(logr.Discard(), Config{
			SleepTarget: 100 * time.Microsecond,
			MaxSamples:  5,
		})
		require.NoError(t, err)

		result := sampler.Run()

		assert.Equal(t, 5, result.Samples)
	})

	t.Run("absolute deadline mode", func(t *testing.T) {
		sampler, err := NewSampler(logr.Discard(), Config{
			Budget:              50 * time.Millisecond,
			SleepTarget:         time.Millisecond,
			UseAbsoluteDeadline: true,
		})
		require.NoError(t, err)

		result := sampler.Run()

		require.Positive(t, result.Samples)
		assert.GreaterOrEqual(t, result.Stats.Min, result.TargetNs)
	})

	t.Run("invalid priority rejected", func(t *testing.T) {
		_, err := NewSampler(logr.Discard(), Config{Priority: 150})
		assert.Error(t, err)
	})
}

func TestJitter(t *testing.T) {
	assert.Equal(t, 500.0, jitter(1500, 1000))
	assert.Zero(t, jitter(900, 1000), "early wakeups clamp to zero jitter")
}

func TestScoreJitter(t *testing.T) {
	tests := []struct {
		name        string
		p99JitterNs float64
		maxJitterNs float64
		expected    int
	}{
		{name: "sub-microsecond is perfect", p99JitterNs: 500, maxJitterNs: 800, expected: 100},
		{name: "10us jitter", p99JitterNs: 10_000, maxJitterNs: 20_000, expected: 67},
		{name: "100us jitter", p99JitterNs: 100_000, maxJitterNs: 200_000, expected: 33},
		{name: "millisecond is unusable", p99JitterNs: 1_000_000, maxJitterNs: 2_000_000, expected: 0},
		{name: "outlier stalls cost extra", p99JitterNs: 10_000, maxJitterNs: 500_000, expected: 57},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, scoreJitter(tt.p99JitterNs, tt.maxJitterNs))
		})
	}
}
