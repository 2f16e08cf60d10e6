// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package csvfile provides a consumer that appends derived telemetry to
// per-domain CSV files for offline analysis.
package csvfile

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"

	"github.com/antimetal/rtscope/pkg/metrics"
	"github.com/antimetal/rtscope/pkg/telemetry"
	"github.com/antimetal/rtscope/pkg/telemetry/latency"
)

const (
	consumerName = "csvfile"

	writeBufferSize = 8192
	flushInterval   = 5 * time.Second
)

// Config configures the CSV consumer.
type Config struct {
	// OutputDir is where the per-domain CSV files are created. One file
	// per domain: cpu.csv, cpuidle.csv, network.csv, disk.csv,
	// latency.csv.
	OutputDir string
}

func (c *Config) Validate() error {
	if c.OutputDir == "" {
		return fmt.Errorf("output directory is required")
	}
	return nil
}

// domainFile is one open CSV file with its buffered writer.
type domainFile struct {
	file      *os.File
	buf       *bufio.Writer
	csv       *csv.Writer
	hasHeader bool
}

type Consumer struct {
	config Config
	logger logr.Logger

	mu    sync.Mutex
	files map[metrics.Domain]*domainFile

	wg   sync.WaitGroup
	done chan struct{}

	eventsProcessed atomic.Uint64
	errorsCount     atomic.Uint64
	lastError       atomic.Pointer[error]
}

func NewConsumer(config Config, logger logr.Logger) (*Consumer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(config.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	return &Consumer{
		config: config,
		logger: logger.WithName("csv-consumer"),
		files:  make(map[metrics.Domain]*domainFile),
		done:   make(chan struct{}),
	}, nil
}

func (c *Consumer) Name() string {
	return consumerName
}

func (c *Consumer) Start(events <-chan metrics.MetricEvent) error {
	c.logger.Info("Starting CSV consumer", "output_dir", c.config.OutputDir)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		ticker := time.NewTicker(flushInterval)
		defer ticker.Stop()

		for {
			select {
			case event, ok := <-events:
				if !ok {
					return
				}
				if err := c.writeEvent(event); err != nil {
					c.logger.Error(err, "Failed to write event", "domain", event.Domain)
					c.errorsCount.Add(1)
					c.lastError.Store(&err)
				} else {
					c.eventsProcessed.Add(1)
				}
			case <-ticker.C:
				c.flushAll()
			case <-c.done:
				return
			}
		}
	}()
	return nil
}

func (c *Consumer) Stop() error {
	close(c.done)
	c.wg.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()

	for domain, df := range c.files {
		df.csv.Flush()
		if err := df.buf.Flush(); err != nil {
			c.logger.Error(err, "Failed to flush CSV file", "domain", domain)
		}
		if err := df.file.Close(); err != nil {
			c.logger.Error(err, "Failed to close CSV file", "domain", domain)
		}
	}
	c.files = make(map[metrics.Domain]*domainFile)

	c.logger.Info("CSV consumer stopped", "events_written", c.eventsProcessed.Load())
	return nil
}

func (c *Consumer) Health() metrics.ConsumerHealth {
	var lastErr error
	if errPtr := c.lastError.Load(); errPtr != nil {
		lastErr = *errPtr
	}
	return metrics.ConsumerHealth{
		Healthy:     true,
		LastError:   lastErr,
		EventsCount: c.eventsProcessed.Load(),
		ErrorsCount: c.errorsCount.Load(),
	}
}

func (c *Consumer) flushAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for domain, df := range c.files {
		df.csv.Flush()
		if err := df.buf.Flush(); err != nil {
			c.logger.Error(err, "Failed to flush CSV file", "domain", domain)
		}
	}
}

// open returns the CSV file for a domain, creating it on first use.
func (c *Consumer) open(domain metrics.Domain) (*domainFile, error) {
	if df, ok := c.files[domain]; ok {
		return df, nil
	}

	path := filepath.Join(c.config.OutputDir, string(domain)+".csv")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	buf := bufio.NewWriterSize(file, writeBufferSize)
	df := &domainFile{
		file:      file,
		buf:       buf,
		csv:       csv.NewWriter(buf),
		hasHeader: stat.Size() > 0, // appending to an existing file
	}
	c.files[domain] = df
	return df, nil
}

func (c *Consumer) writeEvent(event metrics.MetricEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	df, err := c.open(event.Domain)
	if err != nil {
		return err
	}

	header, rows := flatten(event)
	if rows == nil {
		return fmt.Errorf("unsupported event data type for domain %s: %T", event.Domain, event.Data)
	}

	if !df.hasHeader {
		if err := df.csv.Write(header); err != nil {
			return err
		}
		df.hasHeader = true
	}
	for _, row := range rows {
		if err := df.csv.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// flatten turns an event into CSV rows. Per-interface and per-device
// results produce one row each; CPU utilization writes the aggregate
// plus one row per core.
func flatten(event metrics.MetricEvent) (header []string, rows [][]string) {
	ts := event.Timestamp.Format(time.RFC3339)

	switch data := event.Data.(type) {
	case telemetry.CPUUtilizationSet:
		header = []string{"timestamp", "cpu", "user_pct", "nice_pct", "system_pct",
			"idle_pct", "iowait_pct", "irq_pct", "softirq_pct", "steal_pct", "active_pct"}
		rows = append(rows, cpuRow(ts, "aggregate", data.Aggregate))
		for i := 0; i < data.NumCPUs; i++ {
			rows = append(rows, cpuRow(ts, strconv.Itoa(i), data.PerCPU[i]))
		}

	case telemetry.IdleResidencyResult:
		header = []string{"timestamp", "cpu", "state", "residency_pct", "entries_per_sec", "avg_sojourn_us"}
		cpu := strconv.Itoa(int(data.CPUIndex))
		for i := 0; i < data.NumStates; i++ {
			s := &data.States[i]
			rows = append(rows, []string{ts, cpu, s.Name,
				f(s.ResidencyPercent), f(s.EntriesPerSec), f(s.AvgSojournUs)})
		}

	case telemetry.NetRatesResult:
		header = []string{"timestamp", "interface", "rx_bytes_per_sec", "tx_bytes_per_sec",
			"rx_packets_per_sec", "tx_packets_per_sec", "rx_errors_per_sec", "tx_errors_per_sec",
			"rx_drops_per_sec", "tx_drops_per_sec", "rx_mbps", "tx_mbps"}
		for i := 0; i < data.NumInterfaces; i++ {
			r := &data.Interfaces[i]
			rows = append(rows, []string{ts, r.Name,
				f(r.RxBytesPerSec), f(r.TxBytesPerSec),
				f(r.RxPacketsPerSec), f(r.TxPacketsPerSec),
				f(r.RxErrorsPerSec), f(r.TxErrorsPerSec),
				f(r.RxDropsPerSec), f(r.TxDropsPerSec),
				f(r.RxMbps), f(r.TxMbps)})
		}

	case telemetry.IoRates:
		header = []string{"timestamp", "device", "read_iops", "write_iops", "iops",
			"read_bytes_per_sec", "write_bytes_per_sec", "avg_read_latency_ms",
			"avg_write_latency_ms", "utilization_pct", "avg_queue_depth"}
		rows = append(rows, []string{ts, data.Device,
			f(data.ReadIOPS), f(data.WriteIOPS), f(data.IOPS),
			f(data.ReadBytesPerSec), f(data.WriteBytesPerSec),
			f(data.AvgReadLatencyMs), f(data.AvgWriteLatencyMs),
			f(data.UtilizationPercent), f(data.AvgQueueDepth)})

	case latency.Result:
		header = []string{"timestamp", "samples", "elevated", "target_ns",
			"min_ns", "mean_ns", "p99_ns", "max_ns", "p99_jitter_ns", "max_jitter_ns",
			"score", "rt_ready"}
		rows = append(rows, []string{ts,
			strconv.Itoa(data.Samples),
			strconv.FormatBool(data.Elevated),
			f(data.TargetNs),
			f(data.Stats.Min), f(data.Stats.Mean), f(data.Stats.P99), f(data.Stats.Max),
			f(data.P99JitterNs), f(data.MaxJitterNs),
			strconv.Itoa(data.Score),
			strconv.FormatBool(data.RTReady)})
	}

	return header, rows
}

func cpuRow(ts, cpu string, u telemetry.CPUUtilization) []string {
	return []string{ts, cpu,
		f(u.UserPercent), f(u.NicePercent), f(u.SystemPercent),
		f(u.IdlePercent), f(u.IOWaitPercent), f(u.IRQPercent),
		f(u.SoftIRQPercent), f(u.StealPercent), f(u.ActivePercent)}
}

func f(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

var _ metrics.Consumer = (*Consumer)(nil)
