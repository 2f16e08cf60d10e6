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

// /sys/block/<dev>/stat field counts by kernel generation: 11 fields
// through 4.17, 15 with discard counters (4.18), 17 with flush counters
// (5.5). Sectors are 512 bytes regardless of the device block size.
//
// Reference: https://www.kernel.org/doc/Documentation/block/stat.txt
const (
	ioStatMinFields = 11
	ioStatMaxFields = 17
)

// DiskCollector captures per-device I/O counters from /sys/block.
type DiskCollector struct {
	logger    logr.Logger
	blockPath string
}

func NewDiskCollector(logger logr.Logger, config Config) (*DiskCollector, error) {
	if err := config.Validate(ValidateOptions{RequireHostSysPath: true}); err != nil {
		return nil, err
	}
	return &DiskCollector{
		logger:    logger.WithName("disk"),
		blockPath: filepath.Join(config.HostSysPath, "block"),
	}, nil
}

// Capture reads /sys/block/<device>/stat and returns an I/O snapshot for
// that device. Kernels exposing only 11 or 15 fields are accepted; the
// missing trailing discard/flush counters stay zero. Fewer than 11
// parseable fields is a capture failure and yields the sentinel.
func (c *DiskCollector) Capture(device string) telemetry.IoSnapshot {
	snap := telemetry.IoSnapshot{Device: device}

	statPath := filepath.Join(c.blockPath, device, "stat")
	data, err := os.ReadFile(statPath)
	if err != nil {
		c.logger.V(1).Info("capture failed", "path", statPath, "error", err)
		return telemetry.IoSnapshot{Device: device}
	}

	fields := strings.Fields(string(data))
	if len(fields) < ioStatMinFields {
		c.logger.V(1).Info("too few stat fields", "path", statPath, "fields", len(fields))
		return telemetry.IoSnapshot{Device: device}
	}
	if len(fields) > ioStatMaxFields {
		fields = fields[:ioStatMaxFields]
	}

	values := make([]uint64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseUint(f, 10, 64)
		if err != nil {
			if i < ioStatMinFields {
				c.logger.V(1).Info("unparseable stat field", "path", statPath,
					"field", i, "value", f)
				return telemetry.IoSnapshot{Device: device}
			}
			// Trailing fields degrade to zero.
			v = 0
		}
		values[i] = v
	}

	at := func(i int) uint64 {
		if i < len(values) {
			return values[i]
		}
		return 0
	}

	co := &snap.Counters
	co.ReadOps = at(0)
	co.ReadMerged = at(1)
	co.ReadSectors = at(2)
	co.ReadTimeMs = at(3)
	co.WriteOps = at(4)
	co.WriteMerged = at(5)
	co.WriteSectors = at(6)
	co.WriteTimeMs = at(7)
	co.IOsInFlight = at(8)
	co.IOTimeMs = at(9)
	co.WeightedIOTimeMs = at(10)
	co.DiscardOps = at(11)
	co.DiscardMerged = at(12)
	co.DiscardSectors = at(13)
	co.DiscardTimeMs = at(14)
	co.FlushOps = at(15)
	co.FlushTimeMs = at(16)

	snap.TimestampNs = MonotonicNow()
	return snap
}

// Devices lists the block devices under /sys/block, capped at
// telemetry.MaxDisks. Virtual devices (loop, ram, zram) are skipped
// unless includeVirtual is set. /sys/block only lists whole devices, so
// no partition filtering is needed.
func (c *DiskCollector) Devices(includeVirtual bool) []string {
	entries, err := os.ReadDir(c.blockPath)
	if err != nil {
		c.logger.V(1).Info("device listing failed", "path", c.blockPath, "error", err)
		return nil
	}

	var devices []string
	for _, e := range entries {
		name := e.Name()
		if !includeVirtual && isVirtualDevice(name) {
			continue
		}
		devices = append(devices, name)
		if len(devices) >= telemetry.MaxDisks {
			break
		}
	}
	return devices
}

func isVirtualDevice(name string) bool {
	for _, prefix := range []string{"loop", "ram", "zram"} {
		if strings.HasPrefix(name, prefix) {
			rest := name[len(prefix):]
			if rest == "" {
				continue
			}
			if rest[0] >= '0' && rest[0] <= '9' {
				return true
			}
		}
	}
	return false
}
