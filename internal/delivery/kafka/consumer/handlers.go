package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/vogiaan1904/barberqueue/internal/delivery/kafka"
	"github.com/vogiaan1904/barberqueue/internal/service"
)

var (
	// ErrMalformedEvent marks payloads that can never be applied.
	ErrMalformedEvent = errors.New("malformed event")
	ErrMissingEntryID = fmt.Errorf("%w: no entry_id", ErrMalformedEvent)
)

func (c *Consumer) HandlePaymentCompleted(ctx context.Context, message *sarama.ConsumerMessage) error {
	var e kafka.PaymentCompletedEvent
	if err := json.Unmarshal(message.Value, &e); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if e.EntryID == "" {
		return ErrMissingEntryID
	}

	c.l.Infof(ctx, "payment %s completed for entry %s: amount=%v", e.PaymentID, e.EntryID, e.Amount)
	err := c.queueSvc.Complete(ctx, e.EntryID, e.Amount)
	return c.settle(ctx, "HandlePaymentCompleted", e.EntryID, err)
}

func (c *Consumer) HandleVisitCancelled(ctx context.Context, message *sarama.ConsumerMessage) error {
	var e kafka.VisitCancelledEvent
	if err := json.Unmarshal(message.Value, &e); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if e.EntryID == "" {
		return ErrMissingEntryID
	}

	c.l.Infof(ctx, "visit %s cancelled: %s", e.EntryID, e.Reason)
	err := c.queueSvc.Remove(ctx, e.EntryID)
	return c.settle(ctx, "HandleVisitCancelled", e.EntryID, err)
}

// settle decides whether a handler error should leave the message unmarked.
// Events for unknown or already finished entries are acknowledged so a
// replay cannot wedge the partition.
func (c *Consumer) settle(ctx context.Context, op, entryID string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, service.ErrEntryNotFound),
		errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrInvalidAmount):
		c.l.Warnf(ctx, "delivery.kafka.consumer.%s: skipping entry %s: %v", op, entryID, err)
		return nil
	default:
		c.l.Errorf(ctx, "delivery.kafka.consumer.%s: %v", op, err)
		return fmt.Errorf("%s %s: %w", op, entryID, err)
	}
}
