// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package collectors

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-logr/logr"

	"github.com/antimetal/rtscope/pkg/cpu"
	"github.com/antimetal/rtscope/pkg/telemetry"
)

// CPUIdleCollector captures cpuidle C-state counters from
// /sys/devices/system/cpu/cpuN/cpuidle/stateM/.
//
// Each state directory exposes: name, usage (entry count), time
// (cumulative microseconds in state), latency (exit latency in
// microseconds) and disable.
type CPUIdleCollector struct {
	logger      logr.Logger
	cpuBasePath string
}

func NewCPUIdleCollector(logger logr.Logger, config Config) (*CPUIdleCollector, error) {
	if err := config.Validate(ValidateOptions{RequireHostSysPath: true}); err != nil {
		return nil, err
	}
	return &CPUIdleCollector{
		logger:      logger.WithName("cpuidle"),
		cpuBasePath: filepath.Join(config.HostSysPath, "devices", "system", "cpu"),
	}, nil
}

// Capture reads the idle-state counters of one CPU. A missing cpuidle
// directory (cpuidle disabled, or virtualized guest without C-states)
// yields the sentinel snapshot.
func (c *CPUIdleCollector) Capture(cpuIndex int32) telemetry.CPUIdleSnapshot {
	snap := telemetry.CPUIdleSnapshot{CPUIndex: cpuIndex}

	idleDir := filepath.Join(c.cpuBasePath, fmt.Sprintf("cpu%d", cpuIndex), "cpuidle")
	if _, err := os.Stat(idleDir); err != nil {
		c.logger.V(1).Info("capture failed", "path", idleDir, "error", err)
		return telemetry.CPUIdleSnapshot{CPUIndex: cpuIndex}
	}

	// State directories are stateN with N dense from 0; iterate in index
	// order so before/after snapshots line up positionally.
	for state := 0; state < telemetry.MaxIdleStates; state++ {
		stateDir := filepath.Join(idleDir, fmt.Sprintf("state%d", state))
		if _, err := os.Stat(stateDir); err != nil {
			break
		}
		sc := &snap.States[snap.NumStates]
		sc.Name = readSysString(stateDir, "name")
		sc.UsageCount = readSysUint(stateDir, "usage")
		sc.TimeUs = readSysUint(stateDir, "time")
		sc.LatencyUs = readSysUint(stateDir, "latency")
		sc.Disabled = readSysUint(stateDir, "disable") != 0
		snap.NumStates++
	}

	if snap.NumStates == 0 {
		c.logger.V(1).Info("no idle states found", "path", idleDir)
		return telemetry.CPUIdleSnapshot{CPUIndex: cpuIndex}
	}

	snap.TimestampNs = MonotonicNow()
	return snap
}

// OnlineCPUs returns the CPU indices listed in the sysfs online file
// (e.g. "0-3,6"). Falls back to all cpuN directories when the file is
// missing or malformed.
func (c *CPUIdleCollector) OnlineCPUs() []int32 {
	if list := readSysString(c.cpuBasePath, "online"); list != "" {
		if cpus, err := cpu.ParseCPUList(list); err == nil && len(cpus) > 0 {
			return cpus
		}
	}

	n := c.CPUCount()
	cpus := make([]int32, 0, n)
	for i := 0; i < n; i++ {
		cpus = append(cpus, int32(i))
	}
	return cpus
}

// CPUCount returns the number of cpuN directories under the sysfs CPU
// base, or 0 if the directory cannot be read.
func (c *CPUIdleCollector) CPUCount() int {
	entries, err := os.ReadDir(c.cpuBasePath)
	if err != nil {
		return 0
	}
	count := 0
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "cpu") {
			continue
		}
		suffix := name[3:]
		if suffix == "" || suffix[0] < '0' || suffix[0] > '9' {
			continue
		}
		count++
	}
	return count
}

func readSysString(dir, file string) string {
	data, err := os.ReadFile(filepath.Join(dir, file))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func readSysUint(dir, file string) uint64 {
	v, err := strconv.ParseUint(readSysString(dir, file), 10, 64)
	if err != nil {
		return 0
	}
	return v
}
