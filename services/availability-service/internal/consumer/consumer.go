package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/slotengine/libs/kafkax"
	otelx "github.com/md-rashed-zaman/slotengine/libs/otel"
	"github.com/segmentio/kafka-go"
)

type Handler func(ctx context.Context, msg kafka.Message) error

// Inbox deduplicates deliveries by event id.
type Inbox interface {
	Record(ctx context.Context, eventID, eventType string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

// MessageReader is the subset of *kafka.Reader the loop needs. Offsets are committed
// explicitly, so a message is only skipped once it has been handled or deliberately dropped.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	reader       MessageReader
	logger       *slog.Logger
	inbox        Inbox
	handler      Handler
	retryWait    time.Duration
	maxRetryWait time.Duration
}

type Config struct {
	Brokers string
	GroupID string
	Topic   string
}

func New(logger *slog.Logger, inbox Inbox, cfg Config, handler Handler) *Consumer {
	reader := kafkax.NewReader(kafkax.ReaderConfig{
		Brokers: cfg.Brokers,
		GroupID: cfg.GroupID,
		Topic:   cfg.Topic,
	})
	return NewWithReader(logger, inbox, reader, handler)
}

func NewWithReader(logger *slog.Logger, inbox Inbox, reader MessageReader, handler Handler) *Consumer {
	return &Consumer{
		reader:       reader,
		logger:       logger,
		inbox:        inbox,
		handler:      handler,
		retryWait:    time.Second,
		maxRetryWait: 30 * time.Second,
	}
}

func (c *Consumer) Run(ctx context.Context) {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka read error", "err", err)
			if !c.sleep(ctx, c.retryWait) {
				return
			}
			continue
		}
		if !c.processWithRetry(ctx, msg) {
			return
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return
			}
			// The message is redelivered after a rebalance; the inbox absorbs the duplicate.
			c.logger.Error("kafka commit failed", "err", err, "topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset)
		}
	}
}

// processWithRetry blocks until msg is handled or recognized as a duplicate, backing off between
// attempts. It reports false only when ctx ends first; the offset must then stay uncommitted.
func (c *Consumer) processWithRetry(ctx context.Context, msg kafka.Message) bool {
	wait := c.retryWait
	for attempt := 1; ; attempt++ {
		err := c.process(ctx, msg)
		if err == nil {
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		c.logger.Warn("event processing failed, retrying",
			"err", err,
			"topic", msg.Topic,
			"offset", msg.Offset,
			"attempt", attempt,
			"retry_in", wait.String(),
		)
		if !c.sleep(ctx, wait) {
			return false
		}
		wait = min(wait*2, c.maxRetryWait)
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) error {
	ctxSpan, span := kafkax.StartConsumerSpan(ctx, msg)
	meta := kafkax.ExtractEventMeta(msg)

	ok, err := c.inbox.Record(ctxSpan, meta.EventID, meta.EventType)
	if err != nil {
		otelx.EndSpan(span, err)
		return fmt.Errorf("inbox record %s: %w", meta.EventID, err)
	}
	if !ok {
		c.logger.Info("duplicate event ignored", "event_id", meta.EventID, "event_type", meta.EventType)
		span.End()
		return nil
	}

	if err := c.handler(ctxSpan, msg); err != nil {
		// The inbox entry would otherwise turn the retry into a duplicate.
		if ferr := c.inbox.Forget(ctxSpan, meta.EventID); ferr != nil {
			c.logger.Error("inbox forget failed", "err", ferr, "event_id", meta.EventID)
		}
		otelx.EndSpan(span, err)
		return fmt.Errorf("handle %s (%s): %w", meta.EventID, meta.EventType, err)
	}
	span.End()
	return nil
}

func (c *Consumer) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
