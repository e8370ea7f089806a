package kafka

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	r     messageReader
	types map[string]struct{}

	handled atomic.Int64
	skipped atomic.Int64
}

// NewConsumer reads topic as member of groupID. A group without committed offsets
// starts from the oldest retained message.
func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	cfg := kafka.ReaderConfig{
		Brokers:           brokers,
		GroupID:           groupID,
		StartOffset:       kafka.FirstOffset,
		MaxWait:           time.Second,
		HeartbeatInterval: 3 * time.Second,
		SessionTimeout:    30 * time.Second,
	}
	if groupID != "" {
		cfg.GroupTopics = []string{topic}
	} else {
		cfg.Topic = topic
	}
	return newConsumerWithReader(kafka.NewReader(cfg))
}

func newConsumerWithReader(r messageReader) *Consumer {
	return &Consumer{r: r}
}

// WithTypes limits the handler to events whose type header is one of types.
// Other messages are committed without being handed over.
func (c *Consumer) WithTypes(types ...string) *Consumer {
	c.types = make(map[string]struct{}, len(types))
	for _, t := range types {
		c.types[t] = struct{}{}
	}
	return c
}

func (c *Consumer) Handled() int64 { return c.handled.Load() }
func (c *Consumer) Skipped() int64 { return c.skipped.Load() }

func (c *Consumer) Close() error {
	return c.r.Close()
}

// Consume hands messages to handler one at a time until ctx ends or handler fails.
// A message is committed only after handler succeeds, so a failed one is redelivered.
// Cancellation of ctx is returned as ctx.Err().
func (c *Consumer) Consume(ctx context.Context, handler func(ctx context.Context, key, value []byte) error) error {
	for {
		msg, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errors.Wrap(err, "fetch message")
		}

		if c.accepts(msg) {
			if err := handler(ctx, msg.Key, msg.Value); err != nil {
				return errors.Wrapf(err, "handle %s[%d]@%d", msg.Topic, msg.Partition, msg.Offset)
			}
			c.handled.Add(1)
		} else {
			c.skipped.Add(1)
		}

		if err := c.r.CommitMessages(ctx, msg); err != nil {
			return errors.Wrap(err, "commit message")
		}
	}
}

// accepts lets through everything when no filter is set, and messages without
// a type header so that older producers are not silently ignored.
func (c *Consumer) accepts(msg kafka.Message) bool {
	if len(c.types) == 0 {
		return true
	}
	t, ok := headerValue(msg.Headers, HeaderEventType)
	if !ok {
		return true
	}
	_, want := c.types[t]
	return want
}

func headerValue(hs []kafka.Header, key string) (string, bool) {
	for _, h := range hs {
		if h.Key == key {
			return string(h.Value), true
		}
	}
	return "", false
}
