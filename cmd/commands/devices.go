// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/antimetal/rtscope/pkg/telemetry/collectors"
)

var devicesIncludeVirtual bool

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List block devices available for disk monitoring",
	RunE:  runDevices,
}

func init() {
	devicesCmd.Flags().BoolVar(&devicesIncludeVirtual, "include-virtual", false,
		"Include loop/ram/zram devices")
	rootCmd.AddCommand(devicesCmd)
}

func runDevices(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	disk, err := collectors.NewDiskCollector(logger, collectors.Config{
		HostProcPath: cfg.HostProcPath,
		HostSysPath:  cfg.HostSysPath,
	})
	if err != nil {
		return err
	}

	devices := disk.Devices(devicesIncludeVirtual)
	if len(devices) == 0 {
		fmt.Println("No block devices found.")
		return nil
	}

	for _, device := range devices {
		fmt.Println(device)
	}
	return nil
}
