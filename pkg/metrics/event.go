// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package metrics

import (
	"time"
)

// Domain identifies which telemetry domain produced an event.
type Domain string

const (
	DomainCPU     Domain = "cpu"
	DomainIdle    Domain = "cpuidle"
	DomainNetwork Domain = "network"
	DomainDisk    Domain = "disk"
	DomainLatency Domain = "latency"
)

// MetricEvent is one derived telemetry result flowing through the bus.
type MetricEvent struct {
	// Event metadata
	Timestamp time.Time
	SessionID string
	NodeName  string

	Domain Domain

	// Data contains the derived result for the domain:
	// telemetry.CPUUtilizationSet, telemetry.IdleResidencyResult,
	// telemetry.NetRatesResult, telemetry.IoRates, or latency.Result.
	Data any
}

// Publisher defines the interface for emitting metrics events
type Publisher interface {
	// Publish emits a metrics event to all registered consumers
	Publish(event MetricEvent) error

	// PublishBatch emits multiple metrics events efficiently
	PublishBatch(events []MetricEvent) error
}
