// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package debug provides a consumer that logs every event. Useful when
// wiring up a new pipeline or chasing dropped events.
package debug

import (
	"sync"
	"sync/atomic"

	"github.com/go-logr/logr"

	"github.com/antimetal/rtscope/pkg/metrics"
)

const consumerName = "debug"

type Consumer struct {
	logger logr.Logger
	wg     sync.WaitGroup
	done   chan struct{}

	eventsProcessed atomic.Uint64
}

func NewConsumer(logger logr.Logger) *Consumer {
	return &Consumer{
		logger: logger.WithName("debug-consumer"),
		done:   make(chan struct{}),
	}
}

func (c *Consumer) Name() string {
	return consumerName
}

func (c *Consumer) Start(events <-chan metrics.MetricEvent) error {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case event, ok := <-events:
				if !ok {
					return
				}
				c.eventsProcessed.Add(1)
				c.logger.Info("metric event",
					"domain", event.Domain,
					"node", event.NodeName,
					"session", event.SessionID,
					"timestamp", event.Timestamp,
					"data", event.Data)
			case <-c.done:
				return
			}
		}
	}()
	return nil
}

func (c *Consumer) Stop() error {
	close(c.done)
	c.wg.Wait()
	return nil
}

func (c *Consumer) Health() metrics.ConsumerHealth {
	return metrics.ConsumerHealth{
		Healthy:     true,
		EventsCount: c.eventsProcessed.Load(),
	}
}

var _ metrics.Consumer = (*Consumer)(nil)
