// Package kafkaconsumer consumes the upstream dataset-changed topic and
// evicts the matching region cache slot, the way the teacher's
// pkg/invalidation/kafka consumes version events against Redis — except
// the target here is a RegionCache.Evict/Reset call, not a TTL delete.
package kafkaconsumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"

	"github.com/civicgrid/regioncache/internal/core/observability"
	"github.com/civicgrid/regioncache/internal/invalidation"
)

// Consumer joins a Kafka consumer group and applies invalidation events
// to every registered cache.
type Consumer struct {
	cfg     Config
	caches  []Target
	metrics *observability.Metrics
	log     *zerolog.Logger
}

// Target is one named region cache the consumer can invalidate against.
type Target struct {
	Name   string
	Evict  func(invalidation.Event) bool
	Reset  func()
}

func New(cfg Config, caches []Target, metrics *observability.Metrics, log *zerolog.Logger) *Consumer {
	return &Consumer{cfg: cfg, caches: caches, metrics: metrics, log: log}
}

// Start joins the consumer group and processes messages until ctx is
// canceled. Transient group errors are logged and retried after a
// backoff, matching the teacher's runner loop.
func (c *Consumer) Start(ctx context.Context) error {
	if len(c.caches) == 0 {
		return errors.New("kafkaconsumer: no cache targets registered")
	}

	scfg := sarama.NewConfig()
	scfg.Version = sarama.V2_1_0_0
	scfg.Consumer.Group.Session.Timeout = c.cfg.SessionTimeout
	scfg.Consumer.Group.Heartbeat.Interval = c.cfg.Heartbeat
	scfg.Consumer.Group.Rebalance.Timeout = c.cfg.RebalanceTimeout
	if c.cfg.InitialOffsetOldest {
		scfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		scfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	scfg.Consumer.Offsets.AutoCommit.Enable = true

	group, err := sarama.NewConsumerGroup(c.cfg.Brokers, c.cfg.GroupID, scfg)
	if err != nil {
		return fmt.Errorf("create consumer group: %w", err)
	}
	defer func() { _ = group.Close() }()

	handler := &groupHandler{process: c.processMessage}

	c.logf().Info().
		Strs("brokers", c.cfg.Brokers).Str("topic", c.cfg.Topic).Str("group", c.cfg.GroupID).
		Msg("kafka invalidation consumer starting")

	for {
		select {
		case <-ctx.Done():
			c.logf().Info().Msg("kafka invalidation consumer shutting down")
			return nil
		default:
			if err := group.Consume(ctx, []string{c.cfg.Topic}, handler); err != nil {
				c.logf().Error().Err(err).Msg("kafka consumer group error")
				time.Sleep(2 * time.Second)
			}
		}
	}
}

func (c *Consumer) processMessage(_ context.Context, msg *sarama.ConsumerMessage) error {
	return c.Apply(msg.Value)
}

// Apply decodes body as an Event and applies it to every registered
// cache target. It's the part of message handling that doesn't need a
// live Sarama message, split out so it can be tested directly.
func (c *Consumer) Apply(body []byte) error {
	var ev invalidation.Event
	if err := json.Unmarshal(body, &ev); err != nil {
		c.incError("decode")
		return fmt.Errorf("kafkaconsumer: decode event: %w", err)
	}
	if err := ev.Validate(); err != nil {
		c.incError("validate")
		return fmt.Errorf("kafkaconsumer: invalid event: %w", err)
	}

	for _, t := range c.caches {
		switch ev.Op {
		case "reset":
			t.Reset()
		default:
			t.Evict(ev)
		}
	}

	c.logf().Info().
		Str("op", ev.Op).Str("resource", ev.Resource).Str("column", ev.Column).
		Msg("applied invalidation event")
	return nil
}

func (c *Consumer) incError(kind string) {
	if c.metrics != nil && c.metrics.InvalidationErrors != nil {
		c.metrics.InvalidationErrors.WithLabelValues(kind).Inc()
	}
}

func (c *Consumer) logf() *zerolog.Logger {
	if c.log != nil {
		return c.log
	}
	discard := zerolog.Nop()
	return &discard
}
