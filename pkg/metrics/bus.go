// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package metrics

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
)

// BusConfig configures the metrics event bus
type BusConfig struct {
	// BufferSize is the size of the internal event buffer
	BufferSize int

	// FlushInterval is how often to flush batched events
	FlushInterval time.Duration

	// MaxBatchSize is the maximum number of events to batch together
	MaxBatchSize int

	// DropPolicy determines what to do when buffer is full
	DropPolicy DropPolicy
}

// DropPolicy determines behavior when the event buffer is full
type DropPolicy string

const (
	DropPolicyOldest DropPolicy = "oldest" // Drop oldest events (default)
	DropPolicyNewest DropPolicy = "newest" // Drop newest events
	DropPolicyBlock  DropPolicy = "block"  // Block until space available
)

// ErrBusClosed is returned when attempting to publish to a closed bus
var ErrBusClosed = errors.New("metrics bus is closed")

// DefaultBusConfig returns a sensible default configuration
func DefaultBusConfig() BusConfig {
	return BusConfig{
		BufferSize:    4096,
		FlushInterval: time.Second,
		MaxBatchSize:  64,
		DropPolicy:    DropPolicyOldest,
	}
}

// Bus is an in-memory event bus that fans derived telemetry out to
// registered consumers. Each consumer gets its own buffered channel so a
// slow consumer cannot stall the others.
type Bus struct {
	config    BusConfig
	logger    logr.Logger
	mu        sync.RWMutex
	consumers map[string]consumerChannel
	events    chan MetricEvent
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closed    atomic.Bool

	totalEvents   atomic.Uint64
	droppedEvents atomic.Uint64
}

type consumerChannel struct {
	consumer Consumer
	channel  chan MetricEvent
}

// NewBus creates a new metrics bus
func NewBus(config BusConfig, logger logr.Logger) *Bus {
	ctx, cancel := context.WithCancel(context.Background())

	return &Bus{
		config:    config,
		logger:    logger.WithName("metrics-bus"),
		consumers: make(map[string]consumerChannel),
		events:    make(chan MetricEvent, config.BufferSize),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start begins event processing and blocks until ctx is cancelled, then
// shuts the bus and all consumers down.
func (b *Bus) Start(ctx context.Context) error {
	b.logger.Info("Starting metrics bus", "buffer_size", b.config.BufferSize)

	b.wg.Add(1)
	go b.eventLoop()

	<-ctx.Done()

	b.logger.Info("Shutting down metrics bus...")
	return b.stop()
}

func (b *Bus) stop() error {
	// Mark closed first so no new publishes land after drain
	b.closed.Store(true)

	b.cancel()
	b.wg.Wait()

	b.mu.Lock()
	defer b.mu.Unlock()

	for name, cc := range b.consumers {
		close(cc.channel)
		if err := cc.consumer.Stop(); err != nil {
			b.logger.Error(err, "Failed to stop consumer", "consumer", name)
		}
	}

	b.logger.Info("Metrics bus stopped")
	return nil
}

// RegisterConsumer adds a consumer to receive events
func (b *Bus) RegisterConsumer(consumer Consumer) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	name := consumer.Name()
	if _, exists := b.consumers[name]; exists {
		return fmt.Errorf("consumer %s already registered", name)
	}

	ch := make(chan MetricEvent, b.config.BufferSize/4)
	b.consumers[name] = consumerChannel{
		consumer: consumer,
		channel:  ch,
	}

	if err := consumer.Start(ch); err != nil {
		delete(b.consumers, name)
		close(ch)
		return fmt.Errorf("failed to start consumer %s: %w", name, err)
	}

	b.logger.Info("Consumer registered", "consumer", name)
	return nil
}

// UnregisterConsumer removes a consumer
func (b *Bus) UnregisterConsumer(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	cc, exists := b.consumers[name]
	if !exists {
		return fmt.Errorf("consumer %s not found", name)
	}

	close(cc.channel)
	if err := cc.consumer.Stop(); err != nil {
		b.logger.Error(err, "Failed to stop consumer during unregister", "consumer", name)
	}

	delete(b.consumers, name)
	b.logger.Info("Consumer unregistered", "consumer", name)
	return nil
}

// Publish emits a single metrics event
func (b *Bus) Publish(event MetricEvent) error {
	if b.closed.Load() {
		return ErrBusClosed
	}

	select {
	case b.events <- event:
		b.totalEvents.Add(1)
		return nil
	default:
	}

	// Buffer is full, apply drop policy
	switch b.config.DropPolicy {
	case DropPolicyOldest:
		// Drain one old event to make room for the new one
		select {
		case <-b.events:
			b.droppedEvents.Add(1)
		default:
		}
		select {
		case b.events <- event:
			b.totalEvents.Add(1)
			return nil
		default:
			b.droppedEvents.Add(1)
			return fmt.Errorf("event dropped: buffer full")
		}
	case DropPolicyBlock:
		select {
		case b.events <- event:
			b.totalEvents.Add(1)
			return nil
		case <-b.ctx.Done():
			return b.ctx.Err()
		}
	default: // DropPolicyNewest
		b.droppedEvents.Add(1)
		return fmt.Errorf("event dropped: buffer full")
	}
}

// PublishBatch emits multiple metrics events efficiently
func (b *Bus) PublishBatch(events []MetricEvent) error {
	for _, event := range events {
		if err := b.Publish(event); err != nil {
			return err
		}
	}
	return nil
}

// GetStats returns bus statistics
func (b *Bus) GetStats() BusStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	consumerStats := make(map[string]ConsumerHealth)
	for name, cc := range b.consumers {
		consumerStats[name] = cc.consumer.Health()
	}

	return BusStats{
		TotalEvents:   b.totalEvents.Load(),
		DroppedEvents: b.droppedEvents.Load(),
		BufferSize:    len(b.events),
		ConsumerCount: len(b.consumers),
		Consumers:     consumerStats,
	}
}

// BusStats contains metrics about the event bus
type BusStats struct {
	TotalEvents   uint64
	DroppedEvents uint64
	BufferSize    int
	ConsumerCount int
	Consumers     map[string]ConsumerHealth
}

func (b *Bus) eventLoop() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.config.FlushInterval)
	defer ticker.Stop()

	batch := make([]MetricEvent, 0, b.config.MaxBatchSize)

	for {
		select {
		case event := <-b.events:
			batch = append(batch, event)
			if len(batch) >= b.config.MaxBatchSize {
				b.deliverBatch(batch)
				batch = batch[:0]
			}

		case <-ticker.C:
			if len(batch) > 0 {
				b.deliverBatch(batch)
				batch = batch[:0]
			}

		case <-b.ctx.Done():
			// Drain whatever is already buffered before exiting
			for {
				select {
				case event := <-b.events:
					batch = append(batch, event)
				default:
					if len(batch) > 0 {
						b.deliverBatch(batch)
					}
					return
				}
			}
		}
	}
}

// deliverBatch sends events to all registered consumers
func (b *Bus) deliverBatch(events []MetricEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, event := range events {
		for name, cc := range b.consumers {
			select {
			case cc.channel <- event:
			default:
				b.logger.V(1).Info("Consumer channel full, dropping event",
					"consumer", name, "domain", event.Domain)
			}
		}
	}
}

// Compile-time check that Bus implements Publisher
var _ Publisher = (*Bus)(nil)
