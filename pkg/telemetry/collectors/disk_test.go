// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package collectors_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antimetal/rtscope/pkg/telemetry/collectors"
)

func createTestDiskCollector(t *testing.T, devices map[string]string) *collectors.DiskCollector {
	t.Helper()
	sysPath := filepath.Join(t.TempDir(), "sys")
	require.NoError(t, os.MkdirAll(filepath.Join(sysPath, "block"), 0755))
	for device, stat := range devices {
		devDir := filepath.Join(sysPath, "block", device)
		require.NoError(t, os.MkdirAll(devDir, 0755))
		if stat != "" {
			require.NoError(t, os.WriteFile(filepath.Join(devDir, "stat"), []byte(stat), 0644))
		}
	}

	collector, err := collectors.NewDiskCollector(logr.Discard(), collectors.Config{HostSysPath: sysPath})
	require.NoError(t, err)
	return collector
}

func TestDiskCollector_Capture(t *testing.T) {
	t.Run("modern kernel with 17 fields", func(t *testing.T) {
		stat := "  1000 50 8000 200   500 25 4000 150   3 700 900   10 1 80 5   20 15\n"
		collector := createTestDiskCollector(t, map[string]string{"nvme0n1": stat})

		snap := collector.Capture("nvme0n1")

		require.True(t, snap.Valid())
		assert.Equal(t, "nvme0n1", snap.Device)
		c := snap.Counters
		assert.Equal(t, uint64(1000), c.ReadOps)
		assert.Equal(t, uint64(50), c.ReadMerged)
		assert.Equal(t, uint64(8000), c.ReadSectors)
		assert.Equal(t, uint64(200), c.ReadTimeMs)
		assert.Equal(t, uint64(500), c.WriteOps)
		assert.Equal(t, uint64(4000), c.WriteSectors)
		assert.Equal(t, uint64(150), c.WriteTimeMs)
		assert.Equal(t, uint64(3), c.IOsInFlight)
		assert.Equal(t, uint64(700), c.IOTimeMs)
		assert.Equal(t, uint64(900), c.WeightedIOTimeMs)
		assert.Equal(t, uint64(10), c.DiscardOps)
		assert.Equal(t, uint64(80), c.DiscardSectors)
		assert.Equal(t, uint64(20), c.FlushOps)
		assert.Equal(t, uint64(15), c.FlushTimeMs)
	})

	t.Run("4.18 kernel with 15 fields", func(t *testing.T) {
		stat := "1000 50 8000 200 500 25 4000 150 3 700 900 10 1 80 5\n"
		collector := createTestDiskCollector(t, map[string]string{"sda": stat})

		snap := collector.Capture("sda")

		require.True(t, snap.Valid())
		assert.Equal(t, uint64(10), snap.Counters.DiscardOps)
		assert.Zero(t, snap.Counters.FlushOps)
		assert.Zero(t, snap.Counters.FlushTimeMs)
	})

	t.Run("old kernel with 11 fields", func(t *testing.T) {
		stat := "1000 50 8000 200 500 25 4000 150 3 700 900\n"
		collector := createTestDiskCollector(t, map[string]string{"sda": stat})

		snap := collector.Capture("sda")

		require.True(t, snap.Valid())
		assert.Equal(t, uint64(1000), snap.Counters.ReadOps)
		assert.Equal(t, uint64(900), snap.Counters.WeightedIOTimeMs)
		assert.Zero(t, snap.Counters.DiscardOps)
		assert.Zero(t, snap.Counters.FlushOps)
	})

	t.Run("fewer than 11 fields yields sentinel", func(t *testing.T) {
		collector := createTestDiskCollector(t, map[string]string{"sda": "1 2 3 4 5\n"})

		snap := collector.Capture("sda")

		assert.False(t, snap.Valid())
		assert.Equal(t, "sda", snap.Device)
	})

	t.Run("missing device yields sentinel", func(t *testing.T) {
		collector := createTestDiskCollector(t, map[string]string{})

		snap := collector.Capture("sdz")

		assert.False(t, snap.Valid())
	})
}

func TestDiskCollector_Devices(t *testing.T) {
	stat := "1 0 8 1 1 0 8 1 0 1 1\n"
	collector := createTestDiskCollector(t, map[string]string{
		"sda":     stat,
		"nvme0n1": stat,
		"loop0":   stat,
		"zram0":   stat,
	})

	t.Run("virtual devices skipped by default", func(t *testing.T) {
		devices := collector.Devices(false)
		assert.ElementsMatch(t, []string{"sda", "nvme0n1"}, devices)
	})

	t.Run("virtual devices included on request", func(t *testing.T) {
		devices := collector.Devices(true)
		assert.ElementsMatch(t, []string{"sda", "nvme0n1", "loop0", "zram0"}, devices)
	})
}
