// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package collectors

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-logr/logr"

	"github.com/antimetal/rtscope/pkg/telemetry"
)

// /proc/net/dev column offsets after the interface name. The file has a
// two-line header, then one line per interface:
//
//	iface: rx_bytes rx_packets rx_errs rx_drop rx_fifo rx_frame
//	       rx_compressed rx_multicast tx_bytes tx_packets tx_errs
//	       tx_drop tx_fifo tx_colls tx_carrier tx_compressed
const netDevFieldCount = 16

// NetworkCollector captures interface counters from /proc/net/dev.
type NetworkCollector struct {
	logger     logr.Logger
	netDevPath string
}

func NewNetworkCollector(logger logr.Logger, config Config) (*NetworkCollector, error) {
	if err := config.Validate(ValidateOptions{RequireHostProcPath: true}); err != nil {
		return nil, err
	}
	return &NetworkCollector{
		logger:     logger.WithName("network"),
		netDevPath: filepath.Join(config.HostProcPath, "net", "dev"),
	}, nil
}

// Capture reads /proc/net/dev and returns a network snapshot covering up
// to telemetry.MaxInterfaces interfaces. On any read failure it returns
// the sentinel snapshot.
func (c *NetworkCollector) Capture() telemetry.NetSnapshot {
	var snap telemetry.NetSnapshot

	file, err := os.Open(c.netDevPath)
	if err != nil {
		c.logger.V(1).Info("capture failed", "path", c.netDevPath, "error", err)
		return snap
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		if lineNum <= 2 {
			// Header lines.
			continue
		}
		line := scanner.Text()
		colon := strings.Index(line, ":")
		if colon < 0 {
			continue
		}
		name := strings.TrimSpace(line[:colon])
		fields := strings.Fields(line[colon+1:])
		if name == "" || len(fields) < netDevFieldCount {
			c.logger.V(2).Info("malformed interface line", "line", line)
			continue
		}
		if snap.NumInterfaces >= telemetry.MaxInterfaces {
			c.logger.V(1).Info("interface count beyond tracked maximum, truncating",
				"max", telemetry.MaxInterfaces)
			break
		}

		parse := func(i int) uint64 {
			v, err := strconv.ParseUint(fields[i], 10, 64)
			if err != nil {
				return 0
			}
			return v
		}

		ic := &snap.Interfaces[snap.NumInterfaces]
		ic.Name = name
		ic.RxBytes = parse(0)
		ic.RxPackets = parse(1)
		ic.RxErrors = parse(2)
		ic.RxDropped = parse(3)
		ic.RxMulticast = parse(7)
		ic.TxBytes = parse(8)
		ic.TxPackets = parse(9)
		ic.TxErrors = parse(10)
		ic.TxDropped = parse(11)
		ic.Collisions = parse(13)
		snap.NumInterfaces++
	}
	if err := scanner.Err(); err != nil {
		c.logger.V(1).Info("capture failed", "path", c.netDevPath, "error", err)
		return telemetry.NetSnapshot{}
	}
	if snap.NumInterfaces == 0 {
		c.logger.V(1).Info("no interfaces found", "path", c.netDevPath)
		return telemetry.NetSnapshot{}
	}

	snap.TimestampNs = MonotonicNow()
	return snap
}
