// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package metrics

import (
	"fmt"
)

// Config configures the metrics pipeline
type Config struct {
	// Enabled determines if the metrics pipeline should be active
	Enabled bool

	// Bus configuration
	Bus BusConfig

	// NodeName stamped on every published event
	NodeName string
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() Config {
	return Config{
		Enabled: false,
		Bus:     DefaultBusConfig(),
	}
}

// ApplyDefaults fills in zero values with defaults
func (c *Config) ApplyDefaults() {
	defaults := DefaultConfig()

	if c.Bus.BufferSize == 0 {
		c.Bus.BufferSize = defaults.Bus.BufferSize
	}
	if c.Bus.FlushInterval == 0 {
		c.Bus.FlushInterval = defaults.Bus.FlushInterval
	}
	if c.Bus.MaxBatchSize == 0 {
		c.Bus.MaxBatchSize = defaults.Bus.MaxBatchSize
	}
	if c.Bus.DropPolicy == "" {
		c.Bus.DropPolicy = defaults.Bus.DropPolicy
	}
}

// Validate ensures the configuration is valid
func (c *Config) Validate() error {
	switch c.Bus.DropPolicy {
	case DropPolicyOldest, DropPolicyNewest, DropPolicyBlock:
	default:
		return fmt.Errorf("invalid drop policy: %q", c.Bus.DropPolicy)
	}
	if c.Bus.BufferSize < 0 {
		return fmt.Errorf("buffer size must be non-negative: %d", c.Bus.BufferSize)
	}
	return nil
}
