// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package telemetry

// minDeltaIntervalNs is the smallest interval between two snapshots that
// produces a usable delta. Anything shorter yields the zero result to keep
// rate denominators away from zero.
const minDeltaIntervalNs = int64(1_000_000) // 1ms

// counterDelta computes the per-field difference under the wrap policy:
// a counter observed lower than before is treated as having restarted from
// zero at the wrap point, so the delta is the raw after value. This is a
// deliberate approximation, not true wrap-distance arithmetic; the wrapped
// flag lets callers decide whether to trust the value.
func counterDelta(before, after uint64) (delta uint64, wrapped bool) {
	if after < before {
		return after, true
	}
	return after - before, false
}

// elapsedSeconds validates the interval between two snapshot timestamps.
// A zero timestamp on either side is the capture-failed sentinel; a
// non-increasing or sub-millisecond interval is "no measurable interval".
// All three cases report ok=false, never an error.
func elapsedSeconds(beforeNs, afterNs int64) (seconds float64, ok bool) {
	if beforeNs == 0 || afterNs == 0 {
		return 0, false
	}
	if afterNs <= beforeNs {
		return 0, false
	}
	d := afterNs - beforeNs
	if d < minDeltaIntervalNs {
		return 0, false
	}
	return float64(d) / 1e9, true
}

// CPUDelta is the difference between two CPU snapshots. Field values in
// Aggregate and PerCPU are deltas, not cumulative counters. Invalid
// intervals produce the zero value with Valid=false.
type CPUDelta struct {
	Valid            bool
	ElapsedSeconds   float64
	Aggregate        CPUTimeCounters
	AggregateWrapped bool
	PerCPU           [MaxCPUs]CPUTimeCounters
	PerCPUWrapped    [MaxCPUs]bool
	NumCPUs          int
}

// ComputeCPUDelta computes per-field deltas between two CPU snapshots.
// Neither snapshot is mutated or retained. Per-core deltas cover the
// overlap of the two captures; a core present on only one side is skipped.
func ComputeCPUDelta(before, after *CPUSnapshot) CPUDelta {
	var d CPUDelta
	seconds, ok := elapsedSeconds(before.TimestampNs, after.TimestampNs)
	if !ok {
		return d
	}

	d.Valid = true
	d.ElapsedSeconds = seconds
	d.Aggregate, d.AggregateWrapped = cpuTimeDelta(before.Aggregate, after.Aggregate)

	n := before.NumCPUs
	if after.NumCPUs < n {
		n = after.NumCPUs
	}
	d.NumCPUs = n
	for i := 0; i < n; i++ {
		d.PerCPU[i], d.PerCPUWrapped[i] = cpuTimeDelta(before.PerCPU[i], after.PerCPU[i])
	}
	return d
}

func cpuTimeDelta(before, after CPUTimeCounters) (CPUTimeCounters, bool) {
	var d CPUTimeCounters
	var wrapped, w bool
	d.User, w = counterDelta(before.User, after.User)
	wrapped = wrapped || w
	d.Nice, w = counterDelta(before.Nice, after.Nice)
	wrapped = wrapped || w
	d.System, w = counterDelta(before.System, after.System)
	wrapped = wrapped || w
	d.Idle, w = counterDelta(before.Idle, after.Idle)
	wrapped = wrapped || w
	d.IOWait, w = counterDelta(before.IOWait, after.IOWait)
	wrapped = wrapped || w
	d.IRQ, w = counterDelta(before.IRQ, after.IRQ)
	wrapped = wrapped || w
	d.SoftIRQ, w = counterDelta(before.SoftIRQ, after.SoftIRQ)
	wrapped = wrapped || w
	d.Steal, w = counterDelta(before.Steal, after.Steal)
	wrapped = wrapped || w
	d.Guest, w = counterDelta(before.Guest, after.Guest)
	wrapped = wrapped || w
	d.GuestNice, w = counterDelta(before.GuestNice, after.GuestNice)
	wrapped = wrapped || w
	return d, wrapped
}

// IdleStateDelta is the per-state difference of a cpuidle capture pair.
type IdleStateDelta struct {
	Name       string
	UsageCount uint64
	TimeUs     uint64
	Wrapped    bool
}

// IdleDelta is the difference between two idle-state snapshots of the same
// CPU. ElapsedNanos is kept alongside ElapsedSeconds because residency is
// derived against the interval in nanoseconds.
type IdleDelta struct {
	Valid          bool
	ElapsedSeconds float64
	ElapsedNanos   int64
	CPUIndex       int32
	States         [MaxIdleStates]IdleStateDelta
	NumStates      int
}

// ComputeIdleDelta computes per-state deltas between two idle snapshots.
// Snapshots for different CPUs produce the zero result; no partial
// computation is attempted. States are matched positionally and by name —
// the kernel's state ordering is stable, so a name mismatch indicates a
// topology change mid-measurement and skips that state.
func ComputeIdleDelta(before, after *CPUIdleSnapshot) IdleDelta {
	var d IdleDelta
	if before.CPUIndex != after.CPUIndex {
		return d
	}
	seconds, ok := elapsedSeconds(before.TimestampNs, after.TimestampNs)
	if !ok {
		return d
	}

	d.Valid = true
	d.ElapsedSeconds = seconds
	d.ElapsedNanos = after.TimestampNs - before.TimestampNs
	d.CPUIndex = after.CPUIndex

	n := before.NumStates
	if after.NumStates < n {
		n = after.NumStates
	}
	for i := 0; i < n; i++ {
		if before.States[i].Name != after.States[i].Name {
			continue
		}
		sd := &d.States[d.NumStates]
		sd.Name = after.States[i].Name
		var w1, w2 bool
		sd.UsageCount, w1 = counterDelta(before.States[i].UsageCount, after.States[i].UsageCount)
		sd.TimeUs, w2 = counterDelta(before.States[i].TimeUs, after.States[i].TimeUs)
		sd.Wrapped = w1 || w2
		d.NumStates++
	}
	return d
}

// InterfaceDelta is the per-interface difference of a network capture pair.
type InterfaceDelta struct {
	Name string
	NetCounters
	Wrapped bool
}

// NetDelta is the difference between two network snapshots. Only
// interfaces present in both snapshots appear in the result.
type NetDelta struct {
	Valid          bool
	ElapsedSeconds float64
	Interfaces     [MaxInterfaces]InterfaceDelta
	NumInterfaces  int
}

// ComputeNetDelta computes per-interface counter deltas between two
// network snapshots. Interfaces are matched by name; an interface that
// appeared or vanished between the captures is dropped from the result.
func ComputeNetDelta(before, after *NetSnapshot) NetDelta {
	var d NetDelta
	seconds, ok := elapsedSeconds(before.TimestampNs, after.TimestampNs)
	if !ok {
		return d
	}

	d.Valid = true
	d.ElapsedSeconds = seconds

	for i := 0; i < after.NumInterfaces; i++ {
		cur := &after.Interfaces[i]
		prev := findInterface(before, cur.Name)
		if prev == nil {
			continue
		}
		id := &d.Interfaces[d.NumInterfaces]
		id.Name = cur.Name
		var wrapped, w bool
		id.RxBytes, w = counterDelta(prev.RxBytes, cur.RxBytes)
		wrapped = wrapped || w
		id.TxBytes, w = counterDelta(prev.TxBytes, cur.TxBytes)
		wrapped = wrapped || w
		id.RxPackets, w = counterDelta(prev.RxPackets, cur.RxPackets)
		wrapped = wrapped || w
		id.TxPackets, w = counterDelta(prev.TxPackets, cur.TxPackets)
		wrapped = wrapped || w
		id.RxErrors, w = counterDelta(prev.RxErrors, cur.RxErrors)
		wrapped = wrapped || w
		id.TxErrors, w = counterDelta(prev.TxErrors, cur.TxErrors)
		wrapped = wrapped || w
		id.RxDropped, w = counterDelta(prev.RxDropped, cur.RxDropped)
		wrapped = wrapped || w
		id.TxDropped, w = counterDelta(prev.TxDropped, cur.TxDropped)
		wrapped = wrapped || w
		id.Collisions, w = counterDelta(prev.Collisions, cur.Collisions)
		wrapped = wrapped || w
		id.RxMulticast, w = counterDelta(prev.RxMulticast, cur.RxMulticast)
		wrapped = wrapped || w
		id.Wrapped = wrapped
		d.NumInterfaces++
	}
	return d
}

func findInterface(s *NetSnapshot, name string) *InterfaceCounters {
	for i := 0; i < s.NumInterfaces; i++ {
		if s.Interfaces[i].Name == name {
			return &s.Interfaces[i]
		}
	}
	return nil
}

// IoDelta is the difference between two I/O snapshots of the same block
// device. IOsInFlight carries the after-side instantaneous value instead
// of a delta.
type IoDelta struct {
	Valid          bool
	ElapsedSeconds float64
	Device         string
	Counters       IoCounters
	Wrapped        bool
}

// ComputeIoDelta computes per-field deltas between two I/O snapshots.
// Snapshots for different devices produce the zero result.
func ComputeIoDelta(before, after *IoSnapshot) IoDelta {
	var d IoDelta
	if before.Device != after.Device {
		return d
	}
	seconds, ok := elapsedSeconds(before.TimestampNs, after.TimestampNs)
	if !ok {
		return d
	}

	d.Valid = true
	d.ElapsedSeconds = seconds
	d.Device = after.Device

	var wrapped, w bool
	b, a := &before.Counters, &after.Counters
	c := &d.Counters
	c.ReadOps, w = counterDelta(b.ReadOps, a.ReadOps)
	wrapped = wrapped || w
	c.ReadMerged, w = counterDelta(b.ReadMerged, a.ReadMerged)
	wrapped = wrapped || w
	c.ReadSectors, w = counterDelta(b.ReadSectors, a.ReadSectors)
	wrapped = wrapped || w
	c.ReadTimeMs, w = counterDelta(b.ReadTimeMs, a.ReadTimeMs)
	wrapped = wrapped || w
	c.WriteOps, w = counterDelta(b.WriteOps, a.WriteOps)
	wrapped = wrapped || w
	c.WriteMerged, w = counterDelta(b.WriteMerged, a.WriteMerged)
	wrapped = wrapped || w
	c.WriteSectors, w = counterDelta(b.WriteSectors, a.WriteSectors)
	wrapped = wrapped || w
	c.WriteTimeMs, w = counterDelta(b.WriteTimeMs, a.WriteTimeMs)
	wrapped = wrapped || w
	c.IOTimeMs, w = counterDelta(b.IOTimeMs, a.IOTimeMs)
	wrapped = wrapped || w
	c.WeightedIOTimeMs, w = counterDelta(b.WeightedIOTimeMs, a.WeightedIOTimeMs)
	wrapped = wrapped || w
	c.DiscardOps, w = counterDelta(b.DiscardOps, a.DiscardOps)
	wrapped = wrapped || w
	c.DiscardMerged, w = counterDelta(b.DiscardMerged, a.DiscardMerged)
	wrapped = wrapped || w
	c.DiscardSectors, w = counterDelta(b.DiscardSectors, a.DiscardSectors)
	wrapped = wrapped || w
	c.DiscardTimeMs, w = counterDelta(b.DiscardTimeMs, a.DiscardTimeMs)
	wrapped = wrapped || w
	c.FlushOps, w = counterDelta(b.FlushOps, a.FlushOps)
	wrapped = wrapped || w
	c.FlushTimeMs, w = counterDelta(b.FlushTimeMs, a.FlushTimeMs)
	wrapped = wrapped || w

	// Queue depth is a gauge, not a counter.
	c.IOsInFlight = a.IOsInFlight
	d.Wrapped = wrapped
	return d
}
