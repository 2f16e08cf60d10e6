// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"github.com/antimetal/rtscope/internal/config"
	"github.com/antimetal/rtscope/internal/monitor"
	"github.com/antimetal/rtscope/pkg/metrics"
	"github.com/antimetal/rtscope/pkg/metrics/consumers/csvfile"
	"github.com/antimetal/rtscope/pkg/metrics/consumers/debug"
	"github.com/antimetal/rtscope/pkg/metrics/consumers/otel"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Run the continuous capture pipeline",
	Long: `Run capture cycles on an interval, derive rates from counter
deltas, and fan the results out to the configured consumers. Edits to
the config file are picked up without restarting the process.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bus := metrics.NewBus(metrics.BusConfig{
		BufferSize:    metrics.DefaultBusConfig().BufferSize,
		FlushInterval: metrics.DefaultBusConfig().FlushInterval,
		MaxBatchSize:  metrics.DefaultBusConfig().MaxBatchSize,
		DropPolicy:    metrics.DropPolicy(cfg.Monitor.DropPolicy),
	}, logger)

	busDone := make(chan error, 1)
	go func() {
		busDone <- bus.Start(ctx)
	}()

	if err := registerConsumers(bus, cfg, logger); err != nil {
		stop()
		<-busDone
		return err
	}

	// Watch the config file so interval and device changes apply without a
	// process restart. Consumer wiring stays fixed for the life of the run.
	var updates <-chan config.Config
	if configPath != "" {
		watcher, err := config.NewWatcher(configPath, logger)
		if err != nil {
			stop()
			<-busDone
			return err
		}
		defer watcher.Close()
		updates = watcher.Subscribe()
	}

	for {
		m, err := monitor.New(logger, cfg, bus)
		if err != nil {
			stop()
			<-busDone
			return err
		}

		runCtx, cancelRun := context.WithCancel(ctx)
		monDone := make(chan error, 1)
		go func() {
			monDone <- m.Run(runCtx)
		}()

		select {
		case <-ctx.Done():
			cancelRun()
			<-monDone
			return <-busDone
		case newCfg, ok := <-updates:
			cancelRun()
			<-monDone
			if !ok {
				return <-busDone
			}
			logger.Info("Applying updated configuration")
			newCfg.NodeName = cfg.NodeName
			cfg = newCfg
		case err := <-monDone:
			cancelRun()
			stop()
			<-busDone
			return err
		}
	}
}

func registerConsumers(bus *metrics.Bus, cfg config.Config, logger logr.Logger) error {
	registered := 0

	if cfg.Consumers.Debug {
		if err := bus.RegisterConsumer(debug.NewConsumer(logger)); err != nil {
			return err
		}
		registered++
	}

	if cfg.Consumers.CSVDir != "" {
		consumer, err := csvfile.NewConsumer(csvfile.Config{OutputDir: cfg.Consumers.CSVDir}, logger)
		if err != nil {
			return err
		}
		if err := bus.RegisterConsumer(consumer); err != nil {
			return err
		}
		registered++
	}

	if cfg.Consumers.OTel.Enabled {
		otelCfg := otel.DefaultConfig()
		otelCfg.Enabled = true
		otelCfg.Endpoint = cfg.Consumers.OTel.Endpoint
		otelCfg.Insecure = cfg.Consumers.OTel.Insecure
		otelCfg.ApplyEnvironmentVariables()

		consumer, err := otel.NewConsumer(otelCfg, logger)
		if err != nil {
			return err
		}
		if consumer != nil {
			if err := bus.RegisterConsumer(consumer); err != nil {
				return err
			}
			registered++
		}
	}

	if registered == 0 {
		// No consumers means nothing observes the pipeline; default to the
		// debug consumer rather than silently discarding everything.
		if err := bus.RegisterConsumer(debug.NewConsumer(logger)); err != nil {
			return err
		}
		logger.Info("No consumers configured, using debug consumer")
	}

	logger.Info(fmt.Sprintf("Registered %d consumer(s)", max(registered, 1)))
	return nil
}
