// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package monitor_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antimetal/rtscope/internal/config"
	"github.com/antimetal/rtscope/internal/monitor"
	"github.com/antimetal/rtscope/pkg/metrics"
)

// capturingPublisher records every published event.
type capturingPublisher struct {
	mu     sync.Mutex
	events []metrics.MetricEvent
}

func (p *capturingPublisher) Publish(event metrics.MetricEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturingPublisher) PublishBatch(events []metrics.MetricEvent) error {
	for _, e := range events {
		if err := p.Publish(e); err != nil {
			return err
		}
	}
	return nil
}

func (p *capturingPublisher) domains() map[metrics.Domain]int {
	p.mu.Lock()
	defer p.mu.Unlock()
	counts := make(map[metrics.Domain]int)
	for _, e := range p.events {
		counts[e.Domain]++
	}
	return counts
}

// fakeHost builds minimal /proc and /sys trees for one CPU, one
// interface, and one disk.
func fakeHost(t *testing.T) (procPath, sysPath string) {
	t.Helper()
	root := t.TempDir()
	procPath = filepath.Join(root, "proc")
	sysPath = filepath.Join(root, "sys")

	require.NoError(t, os.MkdirAll(filepath.Join(procPath, "net"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(procPath, "stat"), []byte(
		"cpu  100 0 50 800 10 0 5 0 0 0\n"+
			"cpu0 100 0 50 800 10 0 5 0 0 0\n"+
			"intr 0\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(procPath, "net", "dev"), []byte(
		"Inter-|   Receive                                                |  Transmit\n"+
			" face |bytes    packets errs drop fifo frame compressed multicast|bytes    packets errs drop fifo colls carrier compressed\n"+
			"  eth0: 1000 10 0 0 0 0 0 0 2000 20 0 0 0 0 0 0\n"), 0o644))

	stateDir := filepath.Join(sysPath, "devices", "system", "cpu", "cpu0", "cpuidle", "state0")
	require.NoError(t, os.MkdirAll(stateDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(stateDir, "name"), []byte("POLL\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(stateDir, "usage"), []byte("100\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(stateDir, "time"), []byte("5000\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(stateDir, "latency"), []byte("0\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(stateDir, "disable"), []byte("0\n"), 0o644))

	diskDir := filepath.Join(sysPath, "block", "sda")
	require.NoError(t, os.MkdirAll(diskDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(diskDir, "stat"), []byte(
		"100 0 800 50 200 0 1600 100 0 120 150\n"), 0o644))

	return procPath, sysPath
}

func testConfig(procPath, sysPath string) config.Config {
	cfg := config.Default()
	cfg.HostProcPath = procPath
	cfg.HostSysPath = sysPath
	cfg.NodeName = "test-node"
	cfg.Monitor.Interval = config.Duration(20 * time.Millisecond)
	cfg.Monitor.PerCPUIdle = true
	return cfg
}

func TestMonitor_PublishesAllDomains(t *testing.T) {
	procPath, sysPath := fakeHost(t)

	publisher := &capturingPublisher{}
	m, err := monitor.New(logr.Discard(), testConfig(procPath, sysPath), publisher)
	require.NoError(t, err)
	assert.NotEmpty(t, m.SessionID())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	require.NoError(t, m.Run(ctx))

	counts := publisher.domains()
	assert.Greater(t, counts[metrics.DomainCPU], 0)
	assert.Greater(t, counts[metrics.DomainIdle], 0)
	assert.Greater(t, counts[metrics.DomainNetwork], 0)
	assert.Greater(t, counts[metrics.DomainDisk], 0)
}

func TestMonitor_StampsSessionAndNode(t *testing.T) {
	procPath, sysPath := fakeHost(t)

	publisher := &capturingPublisher{}
	m, err := monitor.New(logr.Discard(), testConfig(procPath, sysPath), publisher)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	require.NoError(t, m.Run(ctx))

	publisher.mu.Lock()
	defer publisher.mu.Unlock()
	require.NotEmpty(t, publisher.events)
	for _, e := range publisher.events {
		assert.Equal(t, m.SessionID(), e.SessionID)
		assert.Equal(t, "test-node", e.NodeName)
		assert.False(t, e.Timestamp.IsZero())
	}
}

func TestMonitor_ExplicitDeviceList(t *testing.T) {
	procPath, sysPath := fakeHost(t)

	cfg := testConfig(procPath, sysPath)
	cfg.Monitor.Devices = []string{"missing"}

	publisher := &capturingPublisher{}
	m, err := monitor.New(logr.Discard(), cfg, publisher)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	require.NoError(t, m.Run(ctx))

	// A device with no stat file yields sentinel snapshots and no events
	counts := publisher.domains()
	assert.Equal(t, 0, counts[metrics.DomainDisk])
	assert.Greater(t, counts[metrics.DomainCPU], 0)
}
