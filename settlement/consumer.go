package settlement

import (
	"context"
	"errors"
	"time"

	"cashdesk/service"

	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"
)

// messageSource abstracts the kafka reader for tests
type messageSource interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer drives the settlement adapter off the bet-outcome topic. Offsets
// are committed only after the adapter has settled the event, so a crash
// mid-settlement results in redelivery, which the idempotency keys absorb.
type Consumer struct {
	reader  messageSource
	adapter *Adapter
}

// NewConsumer creates a new settlement consumer in the given consumer group
func NewConsumer(brokers []string, topic, groupID string, adapter *Adapter) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:        brokers,
			Topic:          topic,
			GroupID:        groupID,
			MinBytes:       1,
			MaxBytes:       1 << 20,
			CommitInterval: 0, // synchronous commits
		}),
		adapter: adapter,
	}
}

// isPermanent reports whether a settlement failure is a business-rule
// refusal that no amount of redelivery can resolve. Infrastructure faults
// (database down, timeouts) do not match and are retried.
func isPermanent(err error) bool {
	return errors.Is(err, service.ErrUnknownAccount) ||
		errors.Is(err, service.ErrAccountSuspended) ||
		errors.Is(err, service.ErrInsufficientFunds) ||
		errors.Is(err, service.ErrInvalidAmount) ||
		errors.Is(err, service.ErrInvalidTransfer)
}

// Run consumes until the context is cancelled
func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}

		// Retry transient settlement failures in place; the offset moves
		// only once the event is settled or known unprocessable.
		for {
			err := c.adapter.Handle(ctx, msg.Value)
			if err == nil {
				break
			}
			if IsMalformed(err) {
				log.WithFields(log.Fields{
					"topic":     msg.Topic,
					"partition": msg.Partition,
					"offset":    msg.Offset,
				}).WithError(err).Warn("Skipping malformed bet outcome event")
				break
			}
			if isPermanent(err) {
				// A business-rule refusal will refuse again on every retry;
				// skip past it so the partition keeps moving.
				log.WithFields(log.Fields{
					"topic":     msg.Topic,
					"partition": msg.Partition,
					"offset":    msg.Offset,
				}).WithError(err).Error("Skipping unsettleable bet outcome event")
				break
			}

			log.WithFields(log.Fields{
				"topic":     msg.Topic,
				"partition": msg.Partition,
				"offset":    msg.Offset,
			}).WithError(err).Error("Failed to settle bet outcome, retrying")

			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return nil
			}
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
	}
}
