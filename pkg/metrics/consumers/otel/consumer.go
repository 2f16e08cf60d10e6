// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package otel exports derived telemetry to an OTLP gRPC collector.
package otel

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	metricSDK "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/antimetal/rtscope/pkg/metrics"
)

const (
	consumerName = "opentelemetry"

	// heartbeatInterval is how many processed events pass between
	// heartbeat log lines.
	heartbeatInterval = 1000
)

type Consumer struct {
	config Config
	logger logr.Logger

	// OpenTelemetry components
	exporter    metricSDK.Exporter
	provider    *metricSDK.MeterProvider
	meter       metric.Meter
	transformer *transformer

	// Runtime state
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	healthy   atomic.Bool
	lastError atomic.Pointer[error]

	eventsProcessed atomic.Uint64
	errorsCount     atomic.Uint64
	startTime       time.Time
}

// NewConsumer creates a new OpenTelemetry metrics consumer. Returns nil
// when disabled so callers can register it conditionally.
func NewConsumer(config Config, logger logr.Logger) (*Consumer, error) {
	if !config.Enabled {
		return nil, nil
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	consumer := &Consumer{
		config:    config,
		logger:    logger.WithName("otel-consumer"),
		ctx:       ctx,
		cancel:    cancel,
		startTime: time.Now(),
	}

	if err := consumer.initOpenTelemetry(); err != nil {
		cancel()
		return nil, err
	}

	consumer.healthy.Store(true)
	return consumer, nil
}

// initOpenTelemetry initializes the OpenTelemetry components
func (c *Consumer) initOpenTelemetry() error {
	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(c.config.Endpoint),
		otlpmetricgrpc.WithTimeout(c.config.Timeout),
	}

	if c.config.Insecure {
		opts = append(opts, otlpmetricgrpc.WithTLSCredentials(insecure.NewCredentials()))
	}

	if len(c.config.Headers) > 0 {
		opts = append(opts, otlpmetricgrpc.WithHeaders(c.config.Headers))
	}

	if c.config.Compression == CompressionGZip {
		opts = append(opts, otlpmetricgrpc.WithCompressor(c.config.Compression.String()))
	}

	if c.config.RetryConfig.Enabled {
		maxElapsed := c.config.RetryConfig.MaxBackoff
		if n := c.config.RetryConfig.MaxRetries; n > 0 && n <= 100 {
			maxElapsed = time.Duration(n) * c.config.RetryConfig.MaxBackoff
		}
		opts = append(opts, otlpmetricgrpc.WithRetry(otlpmetricgrpc.RetryConfig{
			Enabled:         true,
			InitialInterval: c.config.RetryConfig.InitialBackoff,
			MaxInterval:     c.config.RetryConfig.MaxBackoff,
			MaxElapsedTime:  maxElapsed,
		}))
	}

	exporter, err := otlpmetricgrpc.New(c.ctx, opts...)
	if err != nil {
		return err
	}
	c.exporter = exporter

	res := resource.NewWithAttributes(
		"",
		semconv.ServiceName(c.config.ServiceName),
		semconv.ServiceVersion(c.config.ServiceVersion),
	)

	c.provider = metricSDK.NewMeterProvider(
		metricSDK.WithReader(metricSDK.NewPeriodicReader(
			exporter,
			metricSDK.WithInterval(c.config.ExportInterval),
		)),
		metricSDK.WithResource(res),
	)

	otel.SetMeterProvider(c.provider)

	c.meter = c.provider.Meter(
		"github.com/antimetal/rtscope",
		metric.WithInstrumentationVersion("1.0.0"),
	)

	c.transformer, err = newTransformer(c.meter)
	return err
}

// Name returns the consumer name identifier.
func (c *Consumer) Name() string {
	return consumerName
}

// Start begins processing metrics events from the provided channel.
// It launches a background goroutine to handle events and returns immediately.
func (c *Consumer) Start(events <-chan metrics.MetricEvent) error {
	c.logger.Info("Starting OpenTelemetry consumer",
		"endpoint", c.config.Endpoint,
		"service_name", c.config.ServiceName,
		"compression", c.config.Compression)

	c.wg.Add(1)
	go c.processEvents(events)

	return nil
}

// Stop gracefully shuts down the consumer and flushes the meter provider.
func (c *Consumer) Stop() error {
	c.logger.Info("Stopping OpenTelemetry consumer...")
	c.cancel()
	c.wg.Wait()

	if c.provider != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := c.provider.Shutdown(shutdownCtx); err != nil {
			c.logger.Error(err, "Error shutting down meter provider")
			return err
		}
	}

	c.logger.Info("OpenTelemetry consumer stopped",
		"events_processed", c.eventsProcessed.Load(),
		"errors", c.errorsCount.Load(),
		"uptime", time.Since(c.startTime))

	return nil
}

// Health returns the current health status of the consumer.
func (c *Consumer) Health() metrics.ConsumerHealth {
	var lastErr error
	if errPtr := c.lastError.Load(); errPtr != nil {
		lastErr = *errPtr
	}

	return metrics.ConsumerHealth{
		Healthy:     c.healthy.Load(),
		LastError:   lastErr,
		EventsCount: c.eventsProcessed.Load(),
		ErrorsCount: c.errorsCount.Load(),
	}
}

// processEvents is the main event processing loop
func (c *Consumer) processEvents(events <-chan metrics.MetricEvent) {
	defer c.wg.Done()

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error(nil, "OpenTelemetry consumer panic recovered", "panic", r)
			c.healthy.Store(false)
			if err, ok := r.(error); ok {
				c.lastError.Store(&err)
			}
		}
	}()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				c.logger.Info("Events channel closed, stopping consumer")
				return
			}

			if err := c.processEvent(event); err != nil {
				c.logger.Error(err, "Failed to process metrics event",
					"domain", event.Domain,
					"session", event.SessionID)
				c.errorsCount.Add(1)
				c.lastError.Store(&err)
			} else {
				c.eventsProcessed.Add(1)
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// processEvent processes a single metrics event
func (c *Consumer) processEvent(event metrics.MetricEvent) error {
	c.logger.V(2).Info("Processing metrics event",
		"domain", event.Domain,
		"node", event.NodeName,
		"timestamp", event.Timestamp)

	if err := c.transformer.record(c.ctx, event); err != nil {
		return err
	}

	if n := c.eventsProcessed.Load(); n > 0 && n%heartbeatInterval == 0 {
		c.logger.V(1).Info("OpenTelemetry consumer heartbeat",
			"events_processed", n,
			"errors", c.errorsCount.Load())
	}

	return nil
}

// Compile-time check that Consumer implements metrics.Consumer
var _ metrics.Consumer = (*Consumer)(nil)
