// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package otel

import (
	"context"
	"fmt"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/antimetal/rtscope/pkg/metrics"
	"github.com/antimetal/rtscope/pkg/telemetry"
	"github.com/antimetal/rtscope/pkg/telemetry/latency"
)

// transformer maps derived telemetry events onto OTel gauge instruments.
type transformer struct {
	cpuUtilization metric.Float64Gauge

	idleResidency metric.Float64Gauge
	idleEntries   metric.Float64Gauge
	idleSojourn   metric.Float64Gauge

	netThroughput metric.Float64Gauge
	netPackets    metric.Float64Gauge
	netErrors     metric.Float64Gauge
	netDrops      metric.Float64Gauge

	diskIOPS        metric.Float64Gauge
	diskThroughput  metric.Float64Gauge
	diskLatency     metric.Float64Gauge
	diskUtilization metric.Float64Gauge
	diskQueueDepth  metric.Float64Gauge

	latencyJitter metric.Float64Gauge
	latencyScore  metric.Int64Gauge
}

func newTransformer(meter metric.Meter) (*transformer, error) {
	t := &transformer{}
	var err error

	if t.cpuUtilization, err = meter.Float64Gauge("rtscope.cpu.utilization",
		metric.WithUnit("%"),
		metric.WithDescription("CPU time share per mode over the last interval")); err != nil {
		return nil, err
	}

	if t.idleResidency, err = meter.Float64Gauge("rtscope.cpuidle.residency",
		metric.WithUnit("%"),
		metric.WithDescription("Time spent in the C-state as a share of the interval")); err != nil {
		return nil, err
	}
	if t.idleEntries, err = meter.Float64Gauge("rtscope.cpuidle.entries",
		metric.WithUnit("{entry}/s"),
		metric.WithDescription("C-state entries per second")); err != nil {
		return nil, err
	}
	if t.idleSojourn, err = meter.Float64Gauge("rtscope.cpuidle.sojourn",
		metric.WithUnit("us"),
		metric.WithDescription("Mean time per C-state entry")); err != nil {
		return nil, err
	}

	if t.netThroughput, err = meter.Float64Gauge("rtscope.net.throughput",
		metric.WithUnit("By/s"),
		metric.WithDescription("Interface throughput per direction")); err != nil {
		return nil, err
	}
	if t.netPackets, err = meter.Float64Gauge("rtscope.net.packets",
		metric.WithUnit("{packet}/s"),
		metric.WithDescription("Interface packet rate per direction")); err != nil {
		return nil, err
	}
	if t.netErrors, err = meter.Float64Gauge("rtscope.net.errors",
		metric.WithUnit("{error}/s"),
		metric.WithDescription("Interface error rate per direction")); err != nil {
		return nil, err
	}
	if t.netDrops, err = meter.Float64Gauge("rtscope.net.drops",
		metric.WithUnit("{drop}/s"),
		metric.WithDescription("Interface drop rate per direction")); err != nil {
		return nil, err
	}

	if t.diskIOPS, err = meter.Float64Gauge("rtscope.disk.iops",
		metric.WithUnit("{operation}/s"),
		metric.WithDescription("Completed I/O operations per second")); err != nil {
		return nil, err
	}
	if t.diskThroughput, err = meter.Float64Gauge("rtscope.disk.throughput",
		metric.WithUnit("By/s"),
		metric.WithDescription("Device throughput per direction")); err != nil {
		return nil, err
	}
	if t.diskLatency, err = meter.Float64Gauge("rtscope.disk.latency",
		metric.WithUnit("ms"),
		metric.WithDescription("Mean completion latency per operation")); err != nil {
		return nil, err
	}
	if t.diskUtilization, err = meter.Float64Gauge("rtscope.disk.utilization",
		metric.WithUnit("%"),
		metric.WithDescription("Share of the interval the device had I/O in flight")); err != nil {
		return nil, err
	}
	if t.diskQueueDepth, err = meter.Float64Gauge("rtscope.disk.queue_depth",
		metric.WithDescription("Mean number of in-flight requests")); err != nil {
		return nil, err
	}

	if t.latencyJitter, err = meter.Float64Gauge("rtscope.latency.jitter",
		metric.WithUnit("ns"),
		metric.WithDescription("Wakeup jitter over the sampling run")); err != nil {
		return nil, err
	}
	if t.latencyScore, err = meter.Int64Gauge("rtscope.latency.score",
		metric.WithDescription("Real-time readiness score, 0 to 100")); err != nil {
		return nil, err
	}

	return t, nil
}

// record maps one event onto the instruments for its domain.
func (t *transformer) record(ctx context.Context, event metrics.MetricEvent) error {
	node := attribute.String("node", event.NodeName)

	switch data := event.Data.(type) {
	case telemetry.CPUUtilizationSet:
		t.recordCPU(ctx, node, &data)
	case *telemetry.CPUUtilizationSet:
		t.recordCPU(ctx, node, data)
	case telemetry.IdleResidencyResult:
		t.recordIdle(ctx, node, &data)
	case *telemetry.IdleResidencyResult:
		t.recordIdle(ctx, node, data)
	case telemetry.NetRatesResult:
		t.recordNet(ctx, node, &data)
	case *telemetry.NetRatesResult:
		t.recordNet(ctx, node, data)
	case telemetry.IoRates:
		t.recordDisk(ctx, node, &data)
	case *telemetry.IoRates:
		t.recordDisk(ctx, node, data)
	case latency.Result:
		t.recordLatency(ctx, node, &data)
	case *latency.Result:
		t.recordLatency(ctx, node, data)
	default:
		return fmt.Errorf("unsupported event data type for domain %s: %T", event.Domain, event.Data)
	}
	return nil
}

func (t *transformer) recordCPU(ctx context.Context, node attribute.KeyValue, set *telemetry.CPUUtilizationSet) {
	t.recordCPUModes(ctx, set.Aggregate, node, attribute.String("cpu", "aggregate"))
	for i := 0; i < set.NumCPUs; i++ {
		t.recordCPUModes(ctx, set.PerCPU[i], node, attribute.String("cpu", strconv.Itoa(i)))
	}
}

func (t *transformer) recordCPUModes(ctx context.Context, u telemetry.CPUUtilization, attrs ...attribute.KeyValue) {
	modes := []struct {
		name  string
		value float64
	}{
		{"user", u.UserPercent},
		{"nice", u.NicePercent},
		{"system", u.SystemPercent},
		{"idle", u.IdlePercent},
		{"iowait", u.IOWaitPercent},
		{"irq", u.IRQPercent},
		{"softirq", u.SoftIRQPercent},
		{"steal", u.StealPercent},
		{"guest", u.GuestPercent},
		{"guest_nice", u.GuestNicePercent},
		{"active", u.ActivePercent},
	}
	for _, m := range modes {
		t.cpuUtilization.Record(ctx, m.value,
			metric.WithAttributes(append(attrs, attribute.String("mode", m.name))...))
	}
}

func (t *transformer) recordIdle(ctx context.Context, node attribute.KeyValue, r *telemetry.IdleResidencyResult) {
	cpu := attribute.String("cpu", strconv.Itoa(int(r.CPUIndex)))
	for i := 0; i < r.NumStates; i++ {
		s := &r.States[i]
		attrs := metric.WithAttributes(node, cpu, attribute.String("state", s.Name))
		t.idleResidency.Record(ctx, s.ResidencyPercent, attrs)
		t.idleEntries.Record(ctx, s.EntriesPerSec, attrs)
		t.idleSojourn.Record(ctx, s.AvgSojournUs, attrs)
	}
}

func (t *transformer) recordNet(ctx context.Context, node attribute.KeyValue, r *telemetry.NetRatesResult) {
	for i := 0; i < r.NumInterfaces; i++ {
		iface := &r.Interfaces[i]
		name := attribute.String("interface", iface.Name)
		rx := metric.WithAttributes(node, name, attribute.String("direction", "rx"))
		tx := metric.WithAttributes(node, name, attribute.String("direction", "tx"))

		t.netThroughput.Record(ctx, iface.RxBytesPerSec, rx)
		t.netThroughput.Record(ctx, iface.TxBytesPerSec, tx)
		t.netPackets.Record(ctx, iface.RxPacketsPerSec, rx)
		t.netPackets.Record(ctx, iface.TxPacketsPerSec, tx)
		t.netErrors.Record(ctx, iface.RxErrorsPerSec, rx)
		t.netErrors.Record(ctx, iface.TxErrorsPerSec, tx)
		t.netDrops.Record(ctx, iface.RxDropsPerSec, rx)
		t.netDrops.Record(ctx, iface.TxDropsPerSec, tx)
	}
}

func (t *transformer) recordDisk(ctx context.Context, node attribute.KeyValue, r *telemetry.IoRates) {
	device := attribute.String("device", r.Device)
	read := metric.WithAttributes(node, device, attribute.String("operation", "read"))
	write := metric.WithAttributes(node, device, attribute.String("operation", "write"))
	all := metric.WithAttributes(node, device)

	t.diskIOPS.Record(ctx, r.ReadIOPS, read)
	t.diskIOPS.Record(ctx, r.WriteIOPS, write)
	t.diskThroughput.Record(ctx, r.ReadBytesPerSec, read)
	t.diskThroughput.Record(ctx, r.WriteBytesPerSec, write)
	t.diskLatency.Record(ctx, r.AvgReadLatencyMs, read)
	t.diskLatency.Record(ctx, r.AvgWriteLatencyMs, write)
	t.diskUtilization.Record(ctx, r.UtilizationPercent, all)
	t.diskQueueDepth.Record(ctx, r.AvgQueueDepth, all)
}

func (t *transformer) recordLatency(ctx context.Context, node attribute.KeyValue, r *latency.Result) {
	elevated := attribute.Bool("elevated", r.Elevated)

	t.latencyJitter.Record(ctx, r.P99JitterNs,
		metric.WithAttributes(node, elevated, attribute.String("stat", "p99")))
	t.latencyJitter.Record(ctx, r.MaxJitterNs,
		metric.WithAttributes(node, elevated, attribute.String("stat", "max")))
	t.latencyScore.Record(ctx, int64(r.Score), metric.WithAttributes(node, elevated))
}
