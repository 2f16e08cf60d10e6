// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package telemetry

const (
	// sectorSize is the fixed sector unit of /sys/block stat fields,
	// independent of the device's logical block size.
	sectorSize = 512

	msPerSecond       = 1000
	percentMultiplier = 100
	bitsPerByte       = 8
)

// CPUUtilization is the percentage view of a CPU time delta. The ten
// component percentages sum to ~100 (within rounding) whenever the
// underlying delta had a non-zero total.
type CPUUtilization struct {
	UserPercent      float64
	NicePercent      float64
	SystemPercent    float64
	IdlePercent      float64
	IOWaitPercent    float64
	IRQPercent       float64
	SoftIRQPercent   float64
	StealPercent     float64
	GuestPercent     float64
	GuestNicePercent float64
	// ActivePercent is total minus idle minus iowait.
	ActivePercent float64
}

// CPUPercents derives utilization percentages from a single CPU time
// delta. A zero total yields the zero value rather than NaN.
func CPUPercents(delta CPUTimeCounters) CPUUtilization {
	var u CPUUtilization
	total := float64(delta.Total())
	if total <= 0 {
		return u
	}
	u.UserPercent = float64(delta.User) / total * percentMultiplier
	u.NicePercent = float64(delta.Nice) / total * percentMultiplier
	u.SystemPercent = float64(delta.System) / total * percentMultiplier
	u.IdlePercent = float64(delta.Idle) / total * percentMultiplier
	u.IOWaitPercent = float64(delta.IOWait) / total * percentMultiplier
	u.IRQPercent = float64(delta.IRQ) / total * percentMultiplier
	u.SoftIRQPercent = float64(delta.SoftIRQ) / total * percentMultiplier
	u.StealPercent = float64(delta.Steal) / total * percentMultiplier
	u.GuestPercent = float64(delta.Guest) / total * percentMultiplier
	u.GuestNicePercent = float64(delta.GuestNice) / total * percentMultiplier
	u.ActivePercent = percentMultiplier - u.IdlePercent - u.IOWaitPercent
	return u
}

// CPUUtilizationSet carries the derived aggregate and per-core views of a
// CPU delta.
type CPUUtilizationSet struct {
	Aggregate CPUUtilization
	PerCPU    [MaxCPUs]CPUUtilization
	NumCPUs   int
}

// DeriveCPUUtilization derives percentages for the aggregate and every
// per-core delta. An invalid delta yields the zero value.
func DeriveCPUUtilization(d *CPUDelta) CPUUtilizationSet {
	var set CPUUtilizationSet
	if !d.Valid {
		return set
	}
	set.Aggregate = CPUPercents(d.Aggregate)
	set.NumCPUs = d.NumCPUs
	for i := 0; i < d.NumCPUs; i++ {
		set.PerCPU[i] = CPUPercents(d.PerCPU[i])
	}
	return set
}

// IdleStateResidency is the derived view of one C-state over an interval.
type IdleStateResidency struct {
	Name string
	// ResidencyPercent is time-in-state as a percentage of the interval.
	// It may legitimately exceed 100 on multi-core or virtualized hosts
	// because the kernel accounts idle time per hardware thread against a
	// wall-clock interval; this is documented kernel behavior and is not
	// clamped here. Callers may cap for display.
	ResidencyPercent float64
	// EntriesPerSec is how often the state was entered per second.
	EntriesPerSec float64
	// AvgSojournUs is the mean time per entry in microseconds, zero when
	// the state was never entered during the interval.
	AvgSojournUs float64
}

// IdleResidencyResult carries per-state residency for one CPU.
type IdleResidencyResult struct {
	CPUIndex  int32
	States    [MaxIdleStates]IdleStateResidency
	NumStates int
}

// DeriveIdleResidency derives per-state residency percentages from an idle
// delta. An invalid delta yields the zero value.
func DeriveIdleResidency(d *IdleDelta) IdleResidencyResult {
	var r IdleResidencyResult
	if !d.Valid || d.ElapsedNanos <= 0 {
		return r
	}
	r.CPUIndex = d.CPUIndex
	r.NumStates = d.NumStates
	intervalNs := float64(d.ElapsedNanos)
	for i := 0; i < d.NumStates; i++ {
		sd := &d.States[i]
		res := &r.States[i]
		res.Name = sd.Name
		res.ResidencyPercent = float64(sd.TimeUs) * 1e3 / intervalNs * percentMultiplier
		res.EntriesPerSec = float64(sd.UsageCount) / d.ElapsedSeconds
		if sd.UsageCount > 0 {
			res.AvgSojournUs = float64(sd.TimeUs) / float64(sd.UsageCount)
		}
	}
	return r
}

// InterfaceRates is the derived per-second view of one interface.
type InterfaceRates struct {
	Name            string
	RxBytesPerSec   float64
	TxBytesPerSec   float64
	RxPacketsPerSec float64
	TxPacketsPerSec float64
	RxErrorsPerSec  float64
	TxErrorsPerSec  float64
	RxDropsPerSec   float64
	TxDropsPerSec   float64
	RxMbps          float64
	TxMbps          float64
}

// NetRatesResult carries per-interface rates for one delta.
type NetRatesResult struct {
	Interfaces    [MaxInterfaces]InterfaceRates
	NumInterfaces int
}

// DeriveNetRates derives per-second rates from a network delta. An
// interface whose counters regressed (flagged wrapped — typically an
// interface reset rather than a genuine 64-bit wrap) reports zero rates
// instead of a misleading spike.
func DeriveNetRates(d *NetDelta) NetRatesResult {
	var r NetRatesResult
	if !d.Valid || d.ElapsedSeconds <= 0 {
		return r
	}
	r.NumInterfaces = d.NumInterfaces
	for i := 0; i < d.NumInterfaces; i++ {
		id := &d.Interfaces[i]
		ir := &r.Interfaces[i]
		ir.Name = id.Name
		if id.Wrapped {
			continue
		}
		ir.RxBytesPerSec = float64(id.RxBytes) / d.ElapsedSeconds
		ir.TxBytesPerSec = float64(id.TxBytes) / d.ElapsedSeconds
		ir.RxPacketsPerSec = float64(id.RxPackets) / d.ElapsedSeconds
		ir.TxPacketsPerSec = float64(id.TxPackets) / d.ElapsedSeconds
		ir.RxErrorsPerSec = float64(id.RxErrors) / d.ElapsedSeconds
		ir.TxErrorsPerSec = float64(id.TxErrors) / d.ElapsedSeconds
		ir.RxDropsPerSec = float64(id.RxDropped) / d.ElapsedSeconds
		ir.TxDropsPerSec = float64(id.TxDropped) / d.ElapsedSeconds
		ir.RxMbps = ir.RxBytesPerSec * bitsPerByte / 1e6
		ir.TxMbps = ir.TxBytesPerSec * bitsPerByte / 1e6
	}
	return r
}

// IoRates is the derived view of a block device over an interval.
type IoRates struct {
	Device            string
	ReadIOPS          float64
	WriteIOPS         float64
	IOPS              float64 // read + write
	ReadBytesPerSec   float64
	WriteBytesPerSec  float64
	AvgReadLatencyMs  float64 // zero when no reads completed
	AvgWriteLatencyMs float64 // zero when no writes completed
	// UtilizationPercent is the fraction of the interval the device had
	// I/O in flight, capped at 100.
	UtilizationPercent float64
	// AvgQueueDepth can exceed 1 under deep queuing; it is not capped.
	AvgQueueDepth float64
}

// DeriveIoRates derives IOPS, throughput, latency, utilization, and queue
// depth from an I/O delta. All division hazards are guarded; an invalid
// delta yields the zero value.
func DeriveIoRates(d *IoDelta) IoRates {
	var r IoRates
	if !d.Valid || d.ElapsedSeconds <= 0 {
		return r
	}
	c := &d.Counters
	r.Device = d.Device
	r.ReadIOPS = float64(c.ReadOps) / d.ElapsedSeconds
	r.WriteIOPS = float64(c.WriteOps) / d.ElapsedSeconds
	r.IOPS = r.ReadIOPS + r.WriteIOPS
	r.ReadBytesPerSec = float64(c.ReadSectors) * sectorSize / d.ElapsedSeconds
	r.WriteBytesPerSec = float64(c.WriteSectors) * sectorSize / d.ElapsedSeconds
	if c.ReadOps > 0 {
		r.AvgReadLatencyMs = float64(c.ReadTimeMs) / float64(c.ReadOps)
	}
	if c.WriteOps > 0 {
		r.AvgWriteLatencyMs = float64(c.WriteTimeMs) / float64(c.WriteOps)
	}
	r.UtilizationPercent = float64(c.IOTimeMs) / (d.ElapsedSeconds * msPerSecond) * percentMultiplier
	if r.UtilizationPercent > percentMultiplier {
		r.UtilizationPercent = percentMultiplier
	}
	r.AvgQueueDepth = float64(c.WeightedIOTimeMs) / (d.ElapsedSeconds * msPerSecond)
	return r
}
