package kafkaconsumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/geoharvest/extentd/internal/invalidation"
	"github.com/geoharvest/extentd/internal/observability"
)

// Invalidator drops every cached extent of one source.
type Invalidator interface {
	Invalidate(ctx context.Context, source string) (int, error)
}

type Consumer struct {
	cfg    Config
	logger *slog.Logger
	store  Invalidator
	dedupe *eventDedupe
}

func New(cfg Config, logger *slog.Logger, store Invalidator) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		cfg:    cfg,
		logger: logger,
		store:  store,
		dedupe: newEventDedupe(4096),
	}
}

// Start consumes catalog-update events until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	if c.store == nil {
		return errors.New("kafkaconsumer: missing invalidator")
	}

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_1_0_0
	cfg.Consumer.Group.Session.Timeout = c.cfg.SessionTimeout
	cfg.Consumer.Group.Heartbeat.Interval = c.cfg.Heartbeat
	cfg.Consumer.Group.Rebalance.Timeout = c.cfg.RebalanceTimeout
	if c.cfg.InitialOffsetOldest {
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Offsets.AutoCommit.Enable = true

	group, err := sarama.NewConsumerGroup(c.cfg.Brokers, c.cfg.GroupID, cfg)
	if err != nil {
		return fmt.Errorf("create consumer group: %w", err)
	}
	defer func() { _ = group.Close() }()

	handler := &groupHandler{process: c.ProcessOne}

	c.logger.Info("kafka invalidation consumer starting",
		"brokers", c.cfg.Brokers, "topic", c.cfg.Topic, "group", c.cfg.GroupID)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("kafka invalidation consumer shutting down")
			return nil
		default:
			if err := group.Consume(ctx, []string{c.cfg.Topic}, handler); err != nil {
				c.logger.Error("consumer error", "err", err)
				time.Sleep(2 * time.Second)
			}
		}
	}
}

// ProcessOne handles a single catalog-update message.
func (c *Consumer) ProcessOne(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var ev invalidation.Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		observability.IncKafkaConsumerError("decode")
		c.logger.Error("kafka decode error",
			"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "err", err)
		return fmt.Errorf("json decode: %w", err)
	}
	if err := ev.Validate(); err != nil {
		// invalid payloads are dropped, not retried
		observability.IncKafkaConsumerError("validate")
		c.logger.Warn("dropping invalid invalidation event",
			"topic", msg.Topic, "offset", msg.Offset, "err", err)
		return nil
	}

	if !c.dedupe.shouldApply(ev.Source, uint64(ev.TS.UnixNano())) {
		c.logger.Debug("skipping stale invalidation event", "source", ev.Source, "ts", ev.TS)
		return nil
	}

	dropped, err := c.store.Invalidate(ctx, ev.Source)
	observability.ObserveInvalidation(ev.Op, dropped, err)
	if err != nil {
		observability.IncKafkaConsumerError("invalidate")
		c.logger.Error("invalidation failed", "source", ev.Source, "op", ev.Op, "err", err)
		return fmt.Errorf("invalidate source %q: %w", ev.Source, err)
	}

	c.logger.Debug("invalidated cached extents",
		"source", ev.Source, "op", ev.Op, "keys", dropped)
	return nil
}

// eventDedupe drops events older than the newest one already applied for a
// source, so replays and rebalances do not churn the cache.
type eventDedupe struct {
	mu  sync.Mutex
	lru *lru.Cache[string, uint64]
}

func newEventDedupe(size int) *eventDedupe {
	if size <= 0 {
		size = 4096
	}
	c, _ := lru.New[string, uint64](size)
	return &eventDedupe{lru: c}
}

// returns true if v is greater than last seen
func (d *eventDedupe) shouldApply(key string, v uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if last, ok := d.lru.Get(key); ok {
		if v <= last {
			return false
		}
	}
	d.lru.Add(key, v)
	return true
}
