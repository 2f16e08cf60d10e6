// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package csvfile_test

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antimetal/rtscope/pkg/metrics"
	"github.com/antimetal/rtscope/pkg/metrics/consumers/csvfile"
	"github.com/antimetal/rtscope/pkg/telemetry"
)

func TestNewConsumer_RequiresOutputDir(t *testing.T) {
	_, err := csvfile.NewConsumer(csvfile.Config{}, logr.Discard())
	assert.Error(t, err)
}

func TestConsumer_WritesDiskRates(t *testing.T) {
	dir := t.TempDir()

	consumer, err := csvfile.NewConsumer(csvfile.Config{OutputDir: dir}, logr.Discard())
	require.NoError(t, err)

	events := make(chan metrics.MetricEvent, 4)
	require.NoError(t, consumer.Start(events))

	events <- metrics.MetricEvent{
		Timestamp: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Domain:    metrics.DomainDisk,
		Data: telemetry.IoRates{
			Device:    "sda",
			ReadIOPS:  100,
			WriteIOPS: 50,
			IOPS:      150,
		},
	}
	close(events)

	require.NoError(t, consumer.Stop())

	file, err := os.Open(filepath.Join(dir, "disk.csv"))
	require.NoError(t, err)
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "timestamp", records[0][0])
	assert.Equal(t, "device", records[0][1])
	assert.Equal(t, "sda", records[1][1])
	assert.Equal(t, "100.000", records[1][2])
	assert.Equal(t, "150.000", records[1][4])
}

func TestConsumer_CPURowsPerCore(t *testing.T) {
	dir := t.TempDir()

	consumer, err := csvfile.NewConsumer(csvfile.Config{OutputDir: dir}, logr.Discard())
	require.NoError(t, err)

	events := make(chan metrics.MetricEvent, 1)
	require.NoError(t, consumer.Start(events))

	set := telemetry.CPUUtilizationSet{NumCPUs: 2}
	set.Aggregate.UserPercent = 50
	set.PerCPU[0].UserPercent = 40
	set.PerCPU[1].UserPercent = 60

	events <- metrics.MetricEvent{
		Timestamp: time.Now(),
		Domain:    metrics.DomainCPU,
		Data:      set,
	}
	close(events)

	require.NoError(t, consumer.Stop())

	file, err := os.Open(filepath.Join(dir, "cpu.csv"))
	require.NoError(t, err)
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)

	// Header plus aggregate plus two cores
	require.Len(t, records, 4)
	assert.Equal(t, "aggregate", records[1][1])
	assert.Equal(t, "0", records[2][1])
	assert.Equal(t, "1", records[3][1])
	assert.Equal(t, "40.000", records[2][2])
}
