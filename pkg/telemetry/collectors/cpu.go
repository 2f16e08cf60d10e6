// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package collectors

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-logr/logr"

	"github.com/antimetal/rtscope/pkg/telemetry"
)

// CPUCollector captures CPU time counters from /proc/stat.
//
// CPU times are in "jiffies" (USER_HZ units, typically 100/s). The
// aggregate "cpu" line is the sum over all cores; "cpuN" lines are stored
// per core up to telemetry.MaxCPUs.
//
// Reference: https://www.kernel.org/doc/html/latest/filesystems/proc.html#proc-stat
type CPUCollector struct {
	logger   logr.Logger
	statPath string
}

func NewCPUCollector(logger logr.Logger, config Config) (*CPUCollector, error) {
	if err := config.Validate(ValidateOptions{RequireHostProcPath: true}); err != nil {
		return nil, err
	}
	return &CPUCollector{
		logger:   logger.WithName("cpu"),
		statPath: filepath.Join(config.HostProcPath, "stat"),
	}, nil
}

// Capture reads /proc/stat and returns a CPU snapshot. On any read
// failure it returns the sentinel snapshot; it never blocks indefinitely
// and is safe to call repeatedly.
func (c *CPUCollector) Capture() telemetry.CPUSnapshot {
	var snap telemetry.CPUSnapshot

	data, err := os.ReadFile(c.statPath)
	if err != nil {
		c.logger.V(1).Info("capture failed", "path", c.statPath, "error", err)
		return snap
	}

	maxIndex := -1
	haveAggregate := false
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "cpu") {
			continue
		}
		fields := strings.Fields(line)
		// Need at least: cpu user nice system idle iowait irq softirq
		if len(fields) < 8 {
			continue
		}

		name := fields[0]
		index := int32(-1)
		if name != "cpu" {
			// Must be "cpu" followed by a number, not "cpufreq" etc.
			numStr := strings.TrimPrefix(name, "cpu")
			num, err := strconv.ParseInt(numStr, 10, 32)
			if err != nil {
				continue
			}
			index = int32(num)
		}

		counters := parseCPUTimes(fields)
		if index < 0 {
			snap.Aggregate = counters
			haveAggregate = true
			continue
		}
		if index >= telemetry.MaxCPUs {
			c.logger.V(1).Info("CPU index beyond tracked maximum, skipping",
				"cpuIndex", index, "max", telemetry.MaxCPUs)
			continue
		}
		snap.PerCPU[index] = counters
		if int(index) > maxIndex {
			maxIndex = int(index)
		}
	}

	if !haveAggregate {
		c.logger.V(1).Info("no aggregate cpu line found", "path", c.statPath)
		return telemetry.CPUSnapshot{}
	}

	snap.NumCPUs = maxIndex + 1
	snap.TimestampNs = MonotonicNow()
	return snap
}

// parseCPUTimes parses the numeric fields of a /proc/stat cpu line.
// Steal, guest and guest_nice are absent on older kernels and default to
// zero; individual parse failures also default to zero rather than
// failing the capture.
func parseCPUTimes(fields []string) telemetry.CPUTimeCounters {
	var c telemetry.CPUTimeCounters
	parse := func(i int) uint64 {
		if i >= len(fields) {
			return 0
		}
		v, err := strconv.ParseUint(fields[i], 10, 64)
		if err != nil {
			return 0
		}
		return v
	}
	c.User = parse(1)
	c.Nice = parse(2)
	c.System = parse(3)
	c.Idle = parse(4)
	c.IOWait = parse(5)
	c.IRQ = parse(6)
	c.SoftIRQ = parse(7)
	c.Steal = parse(8)
	c.Guest = parse(9)
	c.GuestNice = parse(10)
	return c
}
