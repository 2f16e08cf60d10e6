// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package telemetry implements the snapshot/delta engine used for
// real-time-readiness assessment: immutable captures of cumulative kernel
// counters, wraparound-safe deltas between two captures, normalized
// rate/percentage derivations, and an order-statistics engine for timing
// samples.
//
// The package performs no I/O. Collector code (see the collectors
// subpackage) supplies pre-read counter values; everything here is a pure,
// synchronous computation over value types.
package telemetry

// Bounded-collection maxima. Snapshots are fixed-shape aggregates with an
// explicit valid-count field so the capture path never allocates.
const (
	// MaxCPUs is the maximum number of per-core entries tracked in a CPU
	// snapshot, in addition to the aggregate "cpu" line.
	MaxCPUs = 1024

	// MaxIdleStates is the maximum number of cpuidle C-states per CPU.
	// Current hardware exposes at most ~10 (POLL plus C1..C10).
	MaxIdleStates = 16

	// MaxInterfaces is the maximum number of network interfaces tracked in
	// a single snapshot.
	MaxInterfaces = 32

	// MaxDisks is the maximum number of block devices tracked in a single
	// snapshot.
	MaxDisks = 64

	// MaxLatencySamples bounds the latency sampler's observation buffer.
	MaxLatencySamples = 8192
)

// CPUTimeCounters holds the cumulative CPU time fields of a /proc/stat cpu
// line, in USER_HZ units (jiffies). All fields are monotonically
// non-decreasing absent counter wraparound.
type CPUTimeCounters struct {
	User      uint64
	Nice      uint64
	System    uint64
	Idle      uint64
	IOWait    uint64
	IRQ       uint64
	SoftIRQ   uint64
	Steal     uint64
	Guest     uint64
	GuestNice uint64
}

// Total returns the sum of all ten time fields.
func (c CPUTimeCounters) Total() uint64 {
	return c.User + c.Nice + c.System + c.Idle + c.IOWait +
		c.IRQ + c.SoftIRQ + c.Steal + c.Guest + c.GuestNice
}

// CPUSnapshot is a point-in-time capture of CPU time counters: the
// aggregate line plus up to MaxCPUs per-core entries.
//
// TimestampNs is from CLOCK_MONOTONIC. A zero timestamp is the explicit
// "capture failed" sentinel; callers must check it before computing deltas.
type CPUSnapshot struct {
	TimestampNs int64
	Aggregate   CPUTimeCounters
	PerCPU      [MaxCPUs]CPUTimeCounters
	NumCPUs     int
}

// Valid reports whether the snapshot holds a real capture.
func (s *CPUSnapshot) Valid() bool { return s.TimestampNs != 0 }

// IdleStateCounters holds the cumulative counters of a single cpuidle
// C-state, read from /sys/devices/system/cpu/cpuN/cpuidle/stateM.
type IdleStateCounters struct {
	Name       string // e.g. "POLL", "C1", "C6"
	UsageCount uint64 // number of times the state was entered
	TimeUs     uint64 // cumulative microseconds spent in the state
	LatencyUs  uint64 // exit latency in microseconds (static property)
	Disabled   bool
}

// CPUIdleSnapshot captures the idle-state counters of one CPU.
type CPUIdleSnapshot struct {
	TimestampNs int64
	CPUIndex    int32
	States      [MaxIdleStates]IdleStateCounters
	NumStates   int
}

// Valid reports whether the snapshot holds a real capture.
func (s *CPUIdleSnapshot) Valid() bool { return s.TimestampNs != 0 }

// NetCounters holds the cumulative byte/packet/error counters of one
// network interface from /proc/net/dev.
type NetCounters struct {
	RxBytes     uint64
	TxBytes     uint64
	RxPackets   uint64
	TxPackets   uint64
	RxErrors    uint64
	TxErrors    uint64
	RxDropped   uint64
	TxDropped   uint64
	Collisions  uint64
	RxMulticast uint64
}

// InterfaceCounters pairs an interface name with its counters.
type InterfaceCounters struct {
	Name string
	NetCounters
}

// NetSnapshot captures the counters of up to MaxInterfaces interfaces.
type NetSnapshot struct {
	TimestampNs   int64
	Interfaces    [MaxInterfaces]InterfaceCounters
	NumInterfaces int
}

// Valid reports whether the snapshot holds a real capture.
func (s *NetSnapshot) Valid() bool { return s.TimestampNs != 0 }

// IoCounters holds the cumulative I/O counters of one block device from
// /sys/block/<dev>/stat. Older kernels expose only the first 11 fields;
// discard counters appeared in 4.18 and flush counters in 5.5. Missing
// trailing fields stay zero.
type IoCounters struct {
	ReadOps          uint64 // reads completed
	ReadMerged       uint64
	ReadSectors      uint64 // multiply by 512 for bytes
	ReadTimeMs       uint64
	WriteOps         uint64
	WriteMerged      uint64
	WriteSectors     uint64
	WriteTimeMs      uint64
	IOsInFlight      uint64 // instantaneous, not cumulative
	IOTimeMs         uint64 // time with I/O in flight
	WeightedIOTimeMs uint64
	DiscardOps       uint64
	DiscardMerged    uint64
	DiscardSectors   uint64
	DiscardTimeMs    uint64
	FlushOps         uint64
	FlushTimeMs      uint64
}

// IoSnapshot captures the I/O counters of a single block device.
type IoSnapshot struct {
	TimestampNs int64
	Device      string
	Counters    IoCounters
}

// Valid reports whether the snapshot holds a real capture.
func (s *IoSnapshot) Valid() bool { return s.TimestampNs != 0 }
