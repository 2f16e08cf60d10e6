// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package latency measures sleep/wakeup jitter to assess the host's
// real-time readiness. It drives repeated sleep-and-measure cycles,
// optionally under elevated SCHED_FIFO priority, and summarizes the
// observed durations with the telemetry statistics engine.
package latency

import (
	"fmt"
	"math"
	"runtime"
	"time"

	"github.com/go-logr/logr"

	"github.com/antimetal/rtscope/pkg/telemetry"
	"github.com/antimetal/rtscope/pkg/telemetry/collectors"
)

const (
	// MinBudget is the floor on the measurement wall-time budget. Shorter
	// budgets produce too few samples for the tail percentiles to mean
	// anything.
	MinBudget = 50 * time.Millisecond

	// DefaultSleepTarget is the per-sample target sleep duration.
	DefaultSleepTarget = time.Millisecond

	// GoodP99JitterNs is the classification threshold: a p99 wakeup
	// jitter under 100 microseconds is considered good for RT use.
	GoodP99JitterNs = 100_000.0
)

// Config controls one sampler run.
type Config struct {
	// Budget is the total measurement wall time. Values below MinBudget
	// are raised to it.
	Budget time.Duration

	// SleepTarget is the per-sample target sleep duration.
	SleepTarget time.Duration

	// UseAbsoluteDeadline computes each wakeup as now+target on
	// CLOCK_MONOTONIC instead of chaining relative sleeps, which removes
	// the drift the relative form accumulates.
	UseAbsoluteDeadline bool

	// Priority requests SCHED_FIFO elevation: 0 means no elevation,
	// 1-99 is the requested real-time priority. Failure to elevate (for
	// example when CAP_SYS_NICE is missing) is recorded, not fatal.
	Priority int

	// MaxSamples bounds the observation buffer. Zero means
	// telemetry.MaxLatencySamples.
	MaxSamples int
}

// ApplyDefaults fills in zero values with defaults and enforces the
// budget floor.
func (c *Config) ApplyDefaults() {
	if c.Budget < MinBudget {
		c.Budget = MinBudget
	}
	if c.SleepTarget <= 0 {
		c.SleepTarget = DefaultSleepTarget
	}
	if c.MaxSamples <= 0 || c.MaxSamples > telemetry.MaxLatencySamples {
		c.MaxSamples = telemetry.MaxLatencySamples
	}
}

// Validate rejects priorities outside the SCHED_FIFO range.
func (c *Config) Validate() error {
	if c.Priority < 0 || c.Priority > 99 {
		return fmt.Errorf("priority must be 0 (no elevation) or 1-99, got %d", c.Priority)
	}
	return nil
}

// Result is the outcome of a sampler run. Sample values and derived
// statistics are in nanoseconds.
type Result struct {
	Stats   telemetry.Statistics
	Samples int

	// ElevationRequested and Elevated record whether SCHED_FIFO was asked
	// for and whether it actually took effect.
	ElevationRequested bool
	Elevated           bool

	TargetNs    float64
	P99JitterNs float64 // p99 minus target; lower is better
	MaxJitterNs float64 // max minus target

	// Score is a 0-100 heuristic summarizing RT suitability.
	Score int
	// RTReady is true when the p99 jitter is under GoodP99JitterNs.
	RTReady bool
}

// Sampler runs sleep-and-measure cycles. It is single-use state-free: one
// Run call performs the whole Idle → Sampling → Reported cycle.
type Sampler struct {
	logger logr.Logger
	config Config
}

func NewSampler(logger logr.Logger, config Config) (*Sampler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.ApplyDefaults()
	return &Sampler{
		logger: logger.WithName("latency"),
		config: config,
	}, nil
}

// Run blocks for roughly the configured budget, collecting one sleep
// duration per cycle, then reports statistics and jitter derivations.
//
// If elevation was requested it is restored on every exit path; the
// deferred guard runs even if sampling ends early. There is no external
// cancellation: callers needing interruptibility must not call this.
func (s *Sampler) Run() Result {
	result := Result{
		TargetNs:           float64(s.config.SleepTarget.Nanoseconds()),
		ElevationRequested: s.config.Priority > 0,
	}

	// The scheduling policy is per-thread state; pin the goroutine so the
	// elevation, the sleeps, and the restoration all happen on one thread.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if s.config.Priority > 0 {
		restore, elevated := elevatePriority(s.config.Priority, s.logger)
		defer restore()
		result.Elevated = elevated
		if !elevated {
			s.logger.Info("priority elevation failed, sampling unelevated",
				"requestedPriority", s.config.Priority)
		}
	}

	samples := s.sample()
	result.Samples = len(samples)
	result.Stats = telemetry.ComputeStatistics(samples)

	result.P99JitterNs = jitter(result.Stats.P99, result.TargetNs)
	result.MaxJitterNs = jitter(result.Stats.Max, result.TargetNs)
	result.Score = scoreJitter(result.P99JitterNs, result.MaxJitterNs)
	result.RTReady = result.Samples > 0 && result.P99JitterNs < GoodP99JitterNs

	s.logger.V(1).Info("sampling complete",
		"samples", result.Samples,
		"p99JitterUs", result.P99JitterNs/1e3,
		"maxJitterUs", result.MaxJitterNs/1e3,
		"score", result.Score)
	return result
}

// sample collects raw sleep durations until the budget is exhausted or
// the buffer is full. Samples are strictly sequential; sleeps never
// overlap.
func (s *Sampler) sample() []float64 {
	samples := make([]float64, 0, s.config.MaxSamples)
	targetNs := s.config.SleepTarget.Nanoseconds()
	budgetEnd := collectors.MonotonicNow() + s.config.Budget.Nanoseconds()

	for {
		t0 := collectors.MonotonicNow()
		if s.config.UseAbsoluteDeadline {
			sleepUntil(t0 + targetNs)
		} else {
			sleepFor(s.config.SleepTarget)
		}
		t1 := collectors.MonotonicNow()

		samples = append(samples, float64(t1-t0))
		if t1 >= budgetEnd || len(samples) >= s.config.MaxSamples {
			return samples
		}
	}
}

func jitter(observedNs, targetNs float64) float64 {
	j := observedNs - targetNs
	if j < 0 {
		return 0
	}
	return j
}

// scoreJitter maps p99 jitter onto 0-100 on a log scale: 1µs or less
// scores 100, 1ms or more scores 0. A max jitter far beyond the p99
// (greater than ten times) indicates outlier stalls and costs an extra
// ten points.
func scoreJitter(p99JitterNs, maxJitterNs float64) int {
	const (
		floorNs   = 1_000.0     // 1µs
		ceilingNs = 1_000_000.0 // 1ms
	)
	var score float64
	switch {
	case p99JitterNs <= floorNs:
		score = 100
	case p99JitterNs >= ceilingNs:
		score = 0
	default:
		score = 100 * (1 - math.Log10(p99JitterNs/floorNs)/3)
	}
	if p99JitterNs > 0 && maxJitterNs > 10*p99JitterNs {
		score -= 10
	}
	if score < 0 {
		score = 0
	}
	return int(math.Round(score))
}
