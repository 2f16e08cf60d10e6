// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package collectors reads point-in-time counter snapshots from the Linux
// proc and sys filesystems for the telemetry engine.
//
// Capture contract: Capture methods never return an error. Any read or
// parse failure yields the sentinel snapshot (timestamp zero, zeroed
// counters) so downstream delta logic treats it uniformly as "no data".
// Failures are logged at V(1).
package collectors

import (
	"fmt"
	"path/filepath"
)

// Config holds the host filesystem roots the collectors read from.
// Non-standard roots matter when running in a container with the host
// /proc and /sys bind-mounted elsewhere.
type Config struct {
	HostProcPath string
	HostSysPath  string
}

// DefaultConfig returns the standard host paths.
func DefaultConfig() Config {
	return Config{
		HostProcPath: "/proc",
		HostSysPath:  "/sys",
	}
}

// ApplyDefaults fills in zero values with defaults.
func (c *Config) ApplyDefaults() {
	defaults := DefaultConfig()
	if c.HostProcPath == "" {
		c.HostProcPath = defaults.HostProcPath
	}
	if c.HostSysPath == "" {
		c.HostSysPath = defaults.HostSysPath
	}
}

// ValidateOptions specifies which paths a collector requires.
type ValidateOptions struct {
	RequireHostProcPath bool
	RequireHostSysPath  bool
}

// Validate ensures required paths are set and all set paths are absolute.
func (c *Config) Validate(opt ValidateOptions) error {
	if opt.RequireHostProcPath && c.HostProcPath == "" {
		return fmt.Errorf("HostProcPath is required but not provided")
	}
	if opt.RequireHostSysPath && c.HostSysPath == "" {
		return fmt.Errorf("HostSysPath is required but not provided")
	}
	if c.HostProcPath != "" && !filepath.IsAbs(c.HostProcPath) {
		return fmt.Errorf("HostProcPath must be an absolute path, got: %q", c.HostProcPath)
	}
	if c.HostSysPath != "" && !filepath.IsAbs(c.HostSysPath) {
		return fmt.Errorf("HostSysPath must be an absolute path, got: %q", c.HostSysPath)
	}
	return nil
}
