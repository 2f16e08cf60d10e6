// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/antimetal/rtscope/pkg/telemetry/capabilities"
	"github.com/antimetal/rtscope/pkg/telemetry/latency"
)

var (
	latencyBudget   time.Duration
	latencyTarget   time.Duration
	latencyPriority int
	latencyAbsolute bool
)

var latencyCmd = &cobra.Command{
	Use:   "latency",
	Short: "Measure scheduler wakeup jitter and score real-time readiness",
	Long: `Run sleep-and-measure cycles for the given budget and report the
wakeup jitter distribution. With --priority the sampler requests
SCHED_FIFO, which needs CAP_SYS_NICE (or root); without it the run
measures the default scheduling class.`,
	RunE: runLatency,
}

func init() {
	latencyCmd.Flags().DurationVar(&latencyBudget, "budget", time.Second,
		"Total sampling time")
	latencyCmd.Flags().DurationVar(&latencyTarget, "target", time.Millisecond,
		"Sleep target per cycle")
	latencyCmd.Flags().IntVar(&latencyPriority, "priority", 0,
		"SCHED_FIFO priority to request, 0 disables elevation")
	latencyCmd.Flags().BoolVar(&latencyAbsolute, "absolute", false,
		"Use absolute deadlines instead of relative sleeps")
	rootCmd.AddCommand(latencyCmd)
}

func runLatency(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}

	if latencyPriority > 0 {
		ok, err := capabilities.HasAnyCapability(capabilities.SchedulingCapabilities())
		if err != nil {
			logger.V(1).Info("Could not check capabilities", "error", err)
		} else if !ok {
			fmt.Println("warning: SCHED_FIFO requested without CAP_SYS_NICE; elevation will likely fail")
		}
	}

	sampler, err := latency.NewSampler(logger, latency.Config{
		Budget:              latencyBudget,
		SleepTarget:         latencyTarget,
		Priority:            latencyPriority,
		UseAbsoluteDeadline: latencyAbsolute,
	})
	if err != nil {
		return err
	}

	result := sampler.Run()

	fmt.Printf("Samples:      %d (target %.0f us)\n", result.Samples, result.TargetNs/1e3)
	if result.ElevationRequested {
		fmt.Printf("SCHED_FIFO:   requested, elevated=%v\n", result.Elevated)
	} else {
		fmt.Println("SCHED_FIFO:   not requested")
	}
	fmt.Printf("Latency (us): min %.1f  mean %.1f  p90 %.1f  p99 %.1f  max %.1f\n",
		result.Stats.Min/1e3, result.Stats.Mean/1e3,
		result.Stats.P90/1e3, result.Stats.P99/1e3, result.Stats.Max/1e3)
	fmt.Printf("Jitter (us):  p99 %.1f  max %.1f\n",
		result.P99JitterNs/1e3, result.MaxJitterNs/1e3)
	fmt.Printf("RT score:     %d/100", result.Score)
	if result.RTReady {
		fmt.Println("  (ready for real-time workloads)")
	} else {
		fmt.Println()
	}

	return nil
}
