package kafka

import (
	"context"
	stderrors "errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/turtacn/insurance-derivatives/internal/config"
	"github.com/turtacn/insurance-derivatives/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/insurance-derivatives/pkg/errors"
)

var ErrConsumerClosed = errors.New(errors.ErrCodeInternal, "consumer closed")

// ReaderInterface abstracts kafka.Reader for testing.
type ReaderInterface interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Event is a decoded envelope with its position in the log.
type Event struct {
	*EventEnvelope
	Topic     string
	Partition int
	Offset    int64
}

// Handler receives each decoded event. A returned error stops Consume.
type Handler func(ctx context.Context, ev Event) error

// ConsumerOptions select what a tail reads.
type ConsumerOptions struct {
	Topics []string
	// GroupID defaults to a throwaway group so every tail sees all events.
	GroupID       string
	FromBeginning bool
}

// Consumer reads ledger events through a consumer group.
type Consumer struct {
	reader ReaderInterface
	logger logging.Logger
	closed atomic.Bool

	consumed atomic.Int64
	skipped  atomic.Int64
}

// NewConsumer builds a group reader over opts.Topics.
func NewConsumer(cfg config.EventsConfig, opts ConsumerOptions, logger logging.Logger) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.NewValidation("brokers required")
	}
	if len(opts.Topics) == 0 {
		return nil, errors.NewValidation("at least one topic required")
	}
	if opts.GroupID == "" {
		opts.GroupID = "derivctl-tail-" + uuid.NewString()
	}

	dialer := &kafka.Dialer{Timeout: 10 * time.Second, DualStack: true}
	tlsConfig, err := buildTLS(cfg)
	if err != nil {
		return nil, err
	}
	dialer.TLS = tlsConfig
	mech, err := buildSASL(cfg)
	if err != nil {
		return nil, err
	}
	dialer.SASLMechanism = mech

	start := kafka.LastOffset
	if opts.FromBeginning {
		start = kafka.FirstOffset
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     opts.GroupID,
		GroupTopics: opts.Topics,
		StartOffset: start,
		MaxWait:     500 * time.Millisecond,
		Dialer:      dialer,
	})
	logger.Debug("Kafka consumer created", logging.String("group", opts.GroupID))
	return NewConsumerWithReader(reader, logger), nil
}

// NewConsumerWithReader wraps an existing reader.
func NewConsumerWithReader(r ReaderInterface, logger logging.Logger) *Consumer {
	return &Consumer{reader: r, logger: logger}
}

// Consume hands events to fn until limit events were handled (0 means no
// limit) or ctx ends. The end of ctx is a normal stop, not an error.
// Messages that are not ledger envelopes are committed and skipped.
func (c *Consumer) Consume(ctx context.Context, limit int, fn Handler) (int, error) {
	if c.closed.Load() {
		return 0, ErrConsumerClosed
	}
	handled := 0
	for limit <= 0 || handled < limit {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
				return handled, nil
			}
			return handled, errors.Wrap(err, errors.ErrCodeInternal, "failed to fetch event")
		}

		env, derr := DecodeEnvelope(m.Value)
		if derr != nil {
			c.skipped.Add(1)
			c.logger.Warn("skipping undecodable message",
				logging.String("topic", m.Topic),
				logging.Int64("offset", m.Offset),
				logging.Err(derr))
		} else {
			c.consumed.Add(1)
			if err := fn(ctx, Event{EventEnvelope: env, Topic: m.Topic, Partition: m.Partition, Offset: m.Offset}); err != nil {
				return handled, err
			}
			handled++
		}

		if err := c.reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
			c.logger.Warn("commit failed", logging.Int64("offset", m.Offset), logging.Err(err))
		}
	}
	return handled, nil
}

// Skipped reports how many messages could not be decoded.
func (c *Consumer) Skipped() int64 { return c.skipped.Load() }

// Close leaves the group and closes the reader. It is idempotent.
func (c *Consumer) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := c.reader.Close()
	c.logger.Debug("Kafka consumer closed", logging.Int64("consumed", c.consumed.Load()))
	return err
}
