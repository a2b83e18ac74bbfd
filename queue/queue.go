// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.
//
// The klaytn library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The klaytn library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the klaytn library. If not, see <http://www.gnu.org/licenses/>.

// Package queue is the request-envelope queue transport: a Kafka consumer
// group handing claimed records to a fixed-size worker pool, with a
// dead-letter topic for envelopes the handler rejects outright.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/Shopify/sarama"
	"github.com/pkg/errors"

	"github.com/norsh-org/ledger-worker/log"
)

var logger = log.NewModuleLogger(log.Queue)

// drainTimeout bounds how long Run waits for in-flight workers to finish
// after the context is cancelled, per §5.
const drainTimeout = 5 * time.Second

// Config is the queue transport's connection and pool sizing.
type Config struct {
	Brokers         []string
	RequestTopic    string
	DeadLetterTopic string
	ConsumerGroup   string
	ThreadPoolSize  int
}

// Handler processes one envelope's raw bytes. An error routes the
// envelope to the dead-letter topic instead of being retried in place —
// this package never re-delivers a record to the same handler twice
// itself; dispatch.Dispatcher already converts missing routes and handler
// failures into a persisted response rather than a Go error, so in
// practice this only fires for envelopes dispatch could not parse or whose
// response it could not write to the cache.
type Handler func(ctx context.Context, raw []byte) error

// Consumer runs the consumer group and worker pool.
type Consumer struct {
	cfg      Config
	handle   Handler
	group    sarama.ConsumerGroup
	producer sarama.SyncProducer
	work     chan workItem
	wg       sync.WaitGroup
}

type workItem struct {
	msg  *sarama.ConsumerMessage
	done chan struct{}
}

// New connects the consumer group and dead-letter producer and starts the
// worker pool. cfg.ThreadPoolSize <= 0 falls back to 20
// (config.Defaults.QueueConsumerThreadPool's documented default).
func New(cfg Config, handle Handler) (*Consumer, error) {
	scfg := sarama.NewConfig()
	scfg.Version = sarama.MaxVersion
	scfg.Consumer.Group.Session.Timeout = 6 * time.Second
	scfg.Consumer.Group.Heartbeat.Interval = 2 * time.Second
	scfg.Producer.Return.Successes = true

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.ConsumerGroup, scfg)
	if err != nil {
		return nil, errors.Wrap(err, "queue: creating consumer group")
	}

	producer, err := sarama.NewSyncProducer(cfg.Brokers, scfg)
	if err != nil {
		group.Close()
		return nil, errors.Wrap(err, "queue: creating dead-letter producer")
	}

	poolSize := cfg.ThreadPoolSize
	if poolSize <= 0 {
		poolSize = 20
	}

	c := &Consumer{
		cfg:      cfg,
		handle:   handle,
		group:    group,
		producer: producer,
		work:     make(chan workItem, poolSize*4),
	}

	for i := 0; i < poolSize; i++ {
		c.wg.Add(1)
		go c.worker()
	}

	return c, nil
}

func (c *Consumer) worker() {
	defer c.wg.Done()
	for item := range c.work {
		c.process(item.msg)
		close(item.done)
	}
}

func (c *Consumer) process(msg *sarama.ConsumerMessage) {
	if err := c.handle(context.Background(), msg.Value); err != nil {
		logger.Error("envelope rejected, routing to dead letter", "topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "err", err)
		if _, _, perr := c.producer.SendMessage(&sarama.ProducerMessage{
			Topic: c.cfg.DeadLetterTopic,
			Value: sarama.ByteEncoder(msg.Value),
		}); perr != nil {
			logger.Error("failed to publish to dead letter topic", "err", perr)
		}
	}
}

// Run blocks consuming cfg.RequestTopic until ctx is cancelled, then
// drains in-flight workers for up to drainTimeout before closing the
// consumer group and producer.
func (c *Consumer) Run(ctx context.Context) error {
	handler := &groupHandler{work: c.work}
	consumeDone := make(chan struct{})

	go func() {
		defer close(consumeDone)
		for {
			if err := c.group.Consume(ctx, []string{c.cfg.RequestTopic}, handler); err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Error("consumer group session error", "err", err)
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	<-ctx.Done()
	// Consume only returns once every ConsumeClaim goroutine it spawned has
	// returned, so waiting here guarantees nothing sends into c.work after
	// we close it below.
	<-consumeDone
	close(c.work)

	drained := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
	case <-time.After(drainTimeout):
		logger.Warn("forced shutdown: workers did not drain within the timeout")
	}

	if err := c.producer.Close(); err != nil {
		logger.Error("failed to close dead-letter producer", "err", err)
	}
	return c.group.Close()
}

// groupHandler implements sarama.ConsumerGroupHandler, handing each
// claimed message to the worker pool and waiting for it to finish before
// marking it, so a crash mid-processing leaves the offset uncommitted
// (at-least-once per §1's external-collaborator contract).
type groupHandler struct {
	work chan<- workItem
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		done := make(chan struct{})
		h.work <- workItem{msg: msg, done: done}
		<-done
		session.MarkMessage(msg, "")
	}
	return nil
}
