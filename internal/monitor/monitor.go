// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package monitor runs the periodic capture loop: take counter
// snapshots, compute deltas against the previous cycle, derive rates,
// and publish the results.
package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/antimetal/rtscope/internal/config"
	"github.com/antimetal/rtscope/pkg/metrics"
	"github.com/antimetal/rtscope/pkg/telemetry"
	"github.com/antimetal/rtscope/pkg/telemetry/collectors"
)

// Monitor owns the collectors and the previous cycle's snapshots. The
// first cycle only captures; rates start flowing on the second.
type Monitor struct {
	logger    logr.Logger
	cfg       config.MonitorConfig
	publisher metrics.Publisher
	nodeName  string
	sessionID string

	cpu  *collectors.CPUCollector
	idle *collectors.CPUIdleCollector
	net  *collectors.NetworkCollector
	disk *collectors.DiskCollector

	devices  []string
	idleCPUs []int32

	prevCPU  telemetry.CPUSnapshot
	prevIdle map[int32]telemetry.CPUIdleSnapshot
	prevNet  telemetry.NetSnapshot
	prevDisk map[string]telemetry.IoSnapshot
}

func New(logger logr.Logger, cfg config.Config, publisher metrics.Publisher) (*Monitor, error) {
	collectorCfg := collectors.Config{
		HostProcPath: cfg.HostProcPath,
		HostSysPath:  cfg.HostSysPath,
	}

	cpu, err := collectors.NewCPUCollector(logger, collectorCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create cpu collector: %w", err)
	}
	idle, err := collectors.NewCPUIdleCollector(logger, collectorCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create cpuidle collector: %w", err)
	}
	net, err := collectors.NewNetworkCollector(logger, collectorCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create network collector: %w", err)
	}
	disk, err := collectors.NewDiskCollector(logger, collectorCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create disk collector: %w", err)
	}

	devices := cfg.Monitor.Devices
	if len(devices) == 0 {
		devices = disk.Devices(cfg.Monitor.IncludeVirtual)
	}

	idleCPUs := []int32{0}
	if cfg.Monitor.PerCPUIdle {
		if online := idle.OnlineCPUs(); len(online) > 0 {
			idleCPUs = online
		}
	}

	return &Monitor{
		logger:    logger.WithName("monitor"),
		cfg:       cfg.Monitor,
		publisher: publisher,
		nodeName:  cfg.NodeName,
		sessionID: uuid.NewString(),
		cpu:       cpu,
		idle:      idle,
		net:       net,
		disk:      disk,
		devices:   devices,
		idleCPUs:  idleCPUs,
		prevIdle:  make(map[int32]telemetry.CPUIdleSnapshot),
		prevDisk:  make(map[string]telemetry.IoSnapshot),
	}, nil
}

// SessionID returns the identifier stamped on every event from this run.
func (m *Monitor) SessionID() string {
	return m.sessionID
}

// Run executes capture cycles until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	interval := time.Duration(m.cfg.Interval)
	m.logger.Info("Starting monitor",
		"session", m.sessionID,
		"interval", interval,
		"devices", m.devices,
		"idle_cpus", m.idleCPUs)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Prime the previous snapshots so the first tick already yields rates
	m.capture()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Monitor stopped", "session", m.sessionID)
			return nil
		case <-ticker.C:
			m.cycle()
		}
	}
}

// cycle captures new snapshots, publishes derived results against the
// previous ones, and rotates.
func (m *Monitor) cycle() {
	now := time.Now()

	cpuSnap := m.cpu.Capture()
	if m.prevCPU.Valid() && cpuSnap.Valid() {
		delta := telemetry.ComputeCPUDelta(&m.prevCPU, &cpuSnap)
		if delta.Valid {
			m.publish(now, metrics.DomainCPU, telemetry.DeriveCPUUtilization(&delta))
		}
	}

	for _, cpuIndex := range m.idleCPUs {
		idleSnap := m.idle.Capture(cpuIndex)
		if prev, ok := m.prevIdle[cpuIndex]; ok && prev.Valid() && idleSnap.Valid() {
			delta := telemetry.ComputeIdleDelta(&prev, &idleSnap)
			if delta.Valid {
				m.publish(now, metrics.DomainIdle, telemetry.DeriveIdleResidency(&delta))
			}
		}
		m.prevIdle[cpuIndex] = idleSnap
	}

	netSnap := m.net.Capture()
	if m.prevNet.Valid() && netSnap.Valid() {
		delta := telemetry.ComputeNetDelta(&m.prevNet, &netSnap)
		if delta.Valid {
			m.publish(now, metrics.DomainNetwork, telemetry.DeriveNetRates(&delta))
		}
	}

	for _, device := range m.devices {
		diskSnap := m.disk.Capture(device)
		if prev, ok := m.prevDisk[device]; ok && prev.Valid() && diskSnap.Valid() {
			delta := telemetry.ComputeIoDelta(&prev, &diskSnap)
			if delta.Valid {
				m.publish(now, metrics.DomainDisk, telemetry.DeriveIoRates(&delta))
			}
		}
		m.prevDisk[device] = diskSnap
	}

	m.prevCPU = cpuSnap
	m.prevNet = netSnap
}

// capture takes snapshots without publishing, priming the delta baseline.
func (m *Monitor) capture() {
	m.prevCPU = m.cpu.Capture()
	for _, cpuIndex := range m.idleCPUs {
		m.prevIdle[cpuIndex] = m.idle.Capture(cpuIndex)
	}
	m.prevNet = m.net.Capture()
	for _, device := range m.devices {
		m.prevDisk[device] = m.disk.Capture(device)
	}
}

func (m *Monitor) publish(ts time.Time, domain metrics.Domain, data any) {
	event := metrics.MetricEvent{
		Timestamp: ts,
		SessionID: m.sessionID,
		NodeName:  m.nodeName,
		Domain:    domain,
		Data:      data,
	}
	if err := m.publisher.Publish(event); err != nil {
		m.logger.V(1).Info("Failed to publish event", "domain", domain, "error", err)
	}
}
