// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package commands implements the rtscope CLI.
package commands

import (
	"fmt"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/antimetal/rtscope/internal/config"
	"github.com/antimetal/rtscope/pkg/config/environment"
)

var (
	// Global persistent flags (shared by subcommands)
	configPath string
	logLevel   string
	logDevMode bool
)

var rootCmd = &cobra.Command{
	Use:   "rtscope",
	Short: "rtscope - kernel counter telemetry and real-time readiness probe",
	Long: `rtscope samples kernel counters (/proc and /sys), computes
wraparound-safe deltas across capture cycles, and derives CPU, C-state,
network, and disk rates. It can also measure scheduler wakeup jitter
under SCHED_FIFO to score a host's real-time readiness.

Use 'rtscope monitor' for the continuous pipeline or 'rtscope snapshot'
for a one-shot reading.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to the YAML config file (empty = built-in defaults)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logDevMode, "log-dev", false,
		"Use a human-friendly console log encoding")
}

// newLogger builds the logr.Logger shared by all commands.
func newLogger() (logr.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return logr.Logger{}, fmt.Errorf("invalid log level %q: %w", logLevel, err)
	}

	var cfg zap.Config
	if logDevMode {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	zapLog, err := cfg.Build()
	if err != nil {
		return logr.Logger{}, fmt.Errorf("failed to build logger: %w", err)
	}
	return zapr.NewLogger(zapLog), nil
}

// loadConfig resolves the effective configuration: the file when given,
// defaults otherwise, with host paths and node name from the environment
// filling any gaps.
func loadConfig() (config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}

	hostPaths := environment.GetHostPaths()
	if cfg.HostProcPath == "/proc" && hostPaths.Proc != "/proc" {
		cfg.HostProcPath = hostPaths.Proc
	}
	if cfg.HostSysPath == "/sys" && hostPaths.Sys != "/sys" {
		cfg.HostSysPath = hostPaths.Sys
	}

	if cfg.NodeName == "" {
		nodeName, err := environment.GetNodeName()
		if err != nil {
			return config.Config{}, fmt.Errorf("failed to resolve node name: %w", err)
		}
		cfg.NodeName = nodeName
	}

	return cfg, nil
}
