// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/antimetal/rtscope/pkg/telemetry"
)

// Single-domain variants of snapshot, for when only one reading matters.
var (
	domainInterval time.Duration
	domainDevices  []string
	domainPerCPU   bool
	domainCPUIndex int32
)

var cpuCmd = &cobra.Command{
	Use:   "cpu",
	Short: "Print CPU utilization over a short interval",
	RunE: func(cmd *cobra.Command, args []string) error {
		set, err := newCollectorSet()
		if err != nil {
			return err
		}
		before := set.cpu.Capture()
		time.Sleep(domainInterval)
		snapshotPerCPU = domainPerCPU
		printCPU(before, set.cpu.Capture())
		return nil
	},
}

var idleCmd = &cobra.Command{
	Use:   "idle",
	Short: "Print C-state residency over a short interval",
	RunE: func(cmd *cobra.Command, args []string) error {
		set, err := newCollectorSet()
		if err != nil {
			return err
		}
		before := set.idle.Capture(domainCPUIndex)
		time.Sleep(domainInterval)
		printIdle(before, set.idle.Capture(domainCPUIndex))
		return nil
	},
}

var netCmd = &cobra.Command{
	Use:   "net",
	Short: "Print interface rates over a short interval",
	RunE: func(cmd *cobra.Command, args []string) error {
		set, err := newCollectorSet()
		if err != nil {
			return err
		}
		before := set.net.Capture()
		time.Sleep(domainInterval)
		printNet(before, set.net.Capture())
		return nil
	},
}

var diskCmd = &cobra.Command{
	Use:   "disk",
	Short: "Print block device rates over a short interval",
	RunE: func(cmd *cobra.Command, args []string) error {
		set, err := newCollectorSet()
		if err != nil {
			return err
		}
		devices := set.resolveDevices(domainDevices)
		before := make(map[string]telemetry.IoSnapshot, len(devices))
		for _, device := range devices {
			before[device] = set.disk.Capture(device)
		}
		time.Sleep(domainInterval)
		for _, device := range devices {
			printDisk(before[device], set.disk.Capture(device))
		}
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{cpuCmd, idleCmd, netCmd, diskCmd} {
		cmd.Flags().DurationVar(&domainInterval, "interval", time.Second,
			"Time between the two captures")
		rootCmd.AddCommand(cmd)
	}
	cpuCmd.Flags().BoolVar(&domainPerCPU, "per-cpu", false,
		"Print per-core CPU utilization")
	idleCmd.Flags().Int32Var(&domainCPUIndex, "cpu", 0,
		"CPU index to read C-states from")
	diskCmd.Flags().StringSliceVar(&domainDevices, "devices", nil,
		"Block devices to report (empty = auto-discover)")
}
