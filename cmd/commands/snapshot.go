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

	"github.com/antimetal/rtscope/pkg/telemetry"
	"github.com/antimetal/rtscope/pkg/telemetry/collectors"
)

var (
	snapshotInterval time.Duration
	snapshotDevices  []string
	snapshotPerCPU   bool
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Take one reading and print derived rates",
	Long: `Capture kernel counters twice across a short interval and print
the derived CPU utilization, C-state residency, interface rates, and
disk rates.`,
	RunE: runSnapshot,
}

func init() {
	snapshotCmd.Flags().DurationVar(&snapshotInterval, "interval", time.Second,
		"Time between the two captures")
	snapshotCmd.Flags().StringSliceVar(&snapshotDevices, "devices", nil,
		"Block devices to report (empty = auto-discover)")
	snapshotCmd.Flags().BoolVar(&snapshotPerCPU, "per-cpu", false,
		"Print per-core CPU utilization")
	rootCmd.AddCommand(snapshotCmd)
}

// collectorSet bundles the four capture collaborators for the one-shot
// commands.
type collectorSet struct {
	cpu  *collectors.CPUCollector
	idle *collectors.CPUIdleCollector
	net  *collectors.NetworkCollector
	disk *collectors.DiskCollector
}

func newCollectorSet() (*collectorSet, error) {
	logger, err := newLogger()
	if err != nil {
		return nil, err
	}

	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	collectorCfg := collectors.Config{
		HostProcPath: cfg.HostProcPath,
		HostSysPath:  cfg.HostSysPath,
	}

	set := &collectorSet{}
	if set.cpu, err = collectors.NewCPUCollector(logger, collectorCfg); err != nil {
		return nil, err
	}
	if set.idle, err = collectors.NewCPUIdleCollector(logger, collectorCfg); err != nil {
		return nil, err
	}
	if set.net, err = collectors.NewNetworkCollector(logger, collectorCfg); err != nil {
		return nil, err
	}
	if set.disk, err = collectors.NewDiskCollector(logger, collectorCfg); err != nil {
		return nil, err
	}
	return set, nil
}

func (s *collectorSet) resolveDevices(requested []string) []string {
	if len(requested) > 0 {
		return requested
	}
	return s.disk.Devices(false)
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	set, err := newCollectorSet()
	if err != nil {
		return err
	}

	devices := set.resolveDevices(snapshotDevices)

	cpuBefore := set.cpu.Capture()
	idleBefore := set.idle.Capture(0)
	netBefore := set.net.Capture()
	diskBefore := make(map[string]telemetry.IoSnapshot, len(devices))
	for _, device := range devices {
		diskBefore[device] = set.disk.Capture(device)
	}

	time.Sleep(snapshotInterval)

	cpuAfter := set.cpu.Capture()
	idleAfter := set.idle.Capture(0)
	netAfter := set.net.Capture()

	printCPU(cpuBefore, cpuAfter)
	printIdle(idleBefore, idleAfter)
	printNet(netBefore, netAfter)
	for _, device := range devices {
		after := set.disk.Capture(device)
		before := diskBefore[device]
		printDisk(before, after)
	}

	return nil
}

func printCPU(before, after telemetry.CPUSnapshot) {
	delta := telemetry.ComputeCPUDelta(&before, &after)
	if !delta.Valid {
		fmt.Println("cpu: no valid reading")
		return
	}
	set := telemetry.DeriveCPUUtilization(&delta)

	fmt.Println("CPU utilization (%):")
	fmt.Printf("  %-9s user %6.1f  system %6.1f  idle %6.1f  iowait %6.1f  active %6.1f\n",
		"aggregate",
		set.Aggregate.UserPercent, set.Aggregate.SystemPercent,
		set.Aggregate.IdlePercent, set.Aggregate.IOWaitPercent,
		set.Aggregate.ActivePercent)
	if snapshotPerCPU {
		for i := 0; i < set.NumCPUs; i++ {
			u := set.PerCPU[i]
			fmt.Printf("  cpu%-6d user %6.1f  system %6.1f  idle %6.1f  iowait %6.1f  active %6.1f\n",
				i, u.UserPercent, u.SystemPercent, u.IdlePercent, u.IOWaitPercent, u.ActivePercent)
		}
	}
}

func printIdle(before, after telemetry.CPUIdleSnapshot) {
	delta := telemetry.ComputeIdleDelta(&before, &after)
	if !delta.Valid {
		return
	}
	result := telemetry.DeriveIdleResidency(&delta)
	if result.NumStates == 0 {
		return
	}

	fmt.Printf("C-state residency (cpu%d):\n", result.CPUIndex)
	for i := 0; i < result.NumStates; i++ {
		s := result.States[i]
		fmt.Printf("  %-10s %6.1f%%  %8.1f entries/s  %8.1f us/entry\n",
			s.Name, s.ResidencyPercent, s.EntriesPerSec, s.AvgSojournUs)
	}
}

func printNet(before, after telemetry.NetSnapshot) {
	delta := telemetry.ComputeNetDelta(&before, &after)
	if !delta.Valid {
		fmt.Println("network: no valid reading")
		return
	}
	result := telemetry.DeriveNetRates(&delta)

	fmt.Println("Network rates:")
	for i := 0; i < result.NumInterfaces; i++ {
		r := result.Interfaces[i]
		fmt.Printf("  %-12s rx %8.2f Mbps (%8.1f pkt/s)  tx %8.2f Mbps (%8.1f pkt/s)\n",
			r.Name, r.RxMbps, r.RxPacketsPerSec, r.TxMbps, r.TxPacketsPerSec)
	}
}

func printDisk(before, after telemetry.IoSnapshot) {
	delta := telemetry.ComputeIoDelta(&before, &after)
	if !delta.Valid {
		return
	}
	r := telemetry.DeriveIoRates(&delta)

	fmt.Printf("Disk %s: %.1f IOPS (r %.1f / w %.1f)  read %.1f KiB/s  write %.1f KiB/s  util %.1f%%  qdepth %.2f\n",
		r.Device, r.IOPS, r.ReadIOPS, r.WriteIOPS,
		r.ReadBytesPerSec/1024, r.WriteBytesPerSec/1024,
		r.UtilizationPercent, r.AvgQueueDepth)
}
