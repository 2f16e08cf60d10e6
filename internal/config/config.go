// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package config loads the rtscope configuration file and watches it for
// changes.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/antimetal/rtscope/pkg/metrics"
)

// Duration wraps time.Duration so YAML values like "5s" parse directly.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Config is the top level rtscope configuration.
type Config struct {
	// HostProcPath and HostSysPath let the monitor read a mounted host
	// filesystem from inside a container. Both default to the usual
	// mount points.
	HostProcPath string `yaml:"host_proc"`
	HostSysPath  string `yaml:"host_sys"`

	// NodeName stamps every published event. Falls back to the
	// environment when empty.
	NodeName string `yaml:"node_name"`

	Monitor   MonitorConfig   `yaml:"monitor"`
	Consumers ConsumersConfig `yaml:"consumers"`
	Latency   LatencyConfig   `yaml:"latency"`
}

// MonitorConfig configures the periodic capture loop.
type MonitorConfig struct {
	// Interval between capture cycles.
	Interval Duration `yaml:"interval"`

	// Devices restricts disk monitoring to the named block devices.
	// Empty means auto-discover.
	Devices []string `yaml:"devices"`

	// IncludeVirtual includes loop/ram/zram devices in auto-discovery.
	IncludeVirtual bool `yaml:"include_virtual"`

	// PerCPUIdle enables per-CPU C-state residency collection.
	PerCPUIdle bool `yaml:"per_cpu_idle"`

	// DropPolicy for the event bus when consumers fall behind.
	DropPolicy string `yaml:"drop_policy"`
}

// ConsumersConfig enables and configures event consumers.
type ConsumersConfig struct {
	// Debug logs every event.
	Debug bool `yaml:"debug"`

	// CSVDir enables the CSV consumer when non-empty.
	CSVDir string `yaml:"csv_dir"`

	OTel OTelConfig `yaml:"otel"`
}

// OTelConfig is the subset of OTLP settings exposed in the config file.
// Standard OTEL_* environment variables still take precedence.
type OTelConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
	Insecure bool   `yaml:"insecure"`
}

// LatencyConfig configures the wakeup latency sampler.
type LatencyConfig struct {
	Budget      Duration `yaml:"budget"`
	SleepTarget Duration `yaml:"sleep_target"`

	// Priority is the SCHED_FIFO priority to request, 0 disables
	// elevation.
	Priority int `yaml:"priority"`

	// Absolute uses absolute deadlines instead of relative sleeps.
	Absolute bool `yaml:"absolute"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		HostProcPath: "/proc",
		HostSysPath:  "/sys",
		Monitor: MonitorConfig{
			Interval:   Duration(5 * time.Second),
			DropPolicy: string(metrics.DropPolicyOldest),
		},
		Latency: LatencyConfig{
			Budget:      Duration(time.Second),
			SleepTarget: Duration(time.Millisecond),
		},
	}
}

// Load reads and validates a config file, filling unset fields with
// defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyDefaults fills zero values with defaults.
func (c *Config) ApplyDefaults() {
	defaults := Default()

	if c.HostProcPath == "" {
		c.HostProcPath = defaults.HostProcPath
	}
	if c.HostSysPath == "" {
		c.HostSysPath = defaults.HostSysPath
	}
	if c.Monitor.Interval <= 0 {
		c.Monitor.Interval = defaults.Monitor.Interval
	}
	if c.Monitor.DropPolicy == "" {
		c.Monitor.DropPolicy = defaults.Monitor.DropPolicy
	}
	if c.Latency.Budget <= 0 {
		c.Latency.Budget = defaults.Latency.Budget
	}
	if c.Latency.SleepTarget <= 0 {
		c.Latency.SleepTarget = defaults.Latency.SleepTarget
	}
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	switch metrics.DropPolicy(c.Monitor.DropPolicy) {
	case metrics.DropPolicyOldest, metrics.DropPolicyNewest, metrics.DropPolicyBlock:
	default:
		return fmt.Errorf("invalid drop policy: %q", c.Monitor.DropPolicy)
	}

	if c.Latency.Priority < 0 || c.Latency.Priority > 99 {
		return fmt.Errorf("latency priority must be between 0 and 99: %d", c.Latency.Priority)
	}

	if c.Consumers.OTel.Enabled && c.Consumers.OTel.Endpoint == "" {
		return fmt.Errorf("otel endpoint is required when otel consumer is enabled")
	}

	return nil
}
