// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antimetal/rtscope/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rtscope.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
host_proc: /host/proc
node_name: worker-1
monitor:
  interval: 10s
  devices: [sda, nvme0n1]
  per_cpu_idle: true
consumers:
  debug: true
  csv_dir: /var/lib/rtscope
latency:
  budget: 2s
  priority: 50
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/host/proc", cfg.HostProcPath)
	assert.Equal(t, "/sys", cfg.HostSysPath) // default preserved
	assert.Equal(t, "worker-1", cfg.NodeName)
	assert.Equal(t, 10*time.Second, time.Duration(cfg.Monitor.Interval))
	assert.Equal(t, []string{"sda", "nvme0n1"}, cfg.Monitor.Devices)
	assert.True(t, cfg.Monitor.PerCPUIdle)
	assert.True(t, cfg.Consumers.Debug)
	assert.Equal(t, "/var/lib/rtscope", cfg.Consumers.CSVDir)
	assert.Equal(t, 2*time.Second, time.Duration(cfg.Latency.Budget))
	assert.Equal(t, 50, cfg.Latency.Priority)
	// Unset latency sleep target falls back to the default
	assert.Equal(t, time.Millisecond, time.Duration(cfg.Latency.SleepTarget))
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "malformed yaml",
			content: "monitor: [",
		},
		{
			name:    "bad duration",
			content: "monitor:\n  interval: fast\n",
		},
		{
			name:    "bad drop policy",
			content: "monitor:\n  drop_policy: sometimes\n",
		},
		{
			name:    "priority out of range",
			content: "latency:\n  priority: 120\n",
		},
		{
			name:    "otel enabled without endpoint",
			content: "consumers:\n  otel:\n    enabled: true\n    endpoint: \"\"\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			_, err := config.Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "/proc", cfg.HostProcPath)
	assert.Equal(t, "/sys", cfg.HostSysPath)
	assert.Equal(t, 5*time.Second, time.Duration(cfg.Monitor.Interval))
	assert.Equal(t, "oldest", cfg.Monitor.DropPolicy)
}
