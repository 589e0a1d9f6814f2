package consumer

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	"github.com/vogiaan1904/barberqueue/internal/delivery/kafka"
	"github.com/vogiaan1904/barberqueue/internal/service"
	"github.com/vogiaan1904/barberqueue/pkg/logger"
	"github.com/vogiaan1904/barberqueue/pkg/util"
)

const rejoinBackoff = 2 * time.Second

type handlerFunc func(ctx context.Context, msg *sarama.ConsumerMessage) error

// Consumer applies payment and cancellation events to the queue. Offsets
// only move past a message once it is handled or known to be unusable.
type Consumer struct {
	consGr   sarama.ConsumerGroup
	queueSvc service.QueueService
	l        logger.Logger
	routes   map[string]handlerFunc
	stalled  atomic.Bool
	wg       sync.WaitGroup
}

func NewConsumer(
	consGr sarama.ConsumerGroup,
	queueSvc service.QueueService,
	l logger.Logger,
) *Consumer {
	c := &Consumer{
		consGr:   consGr,
		queueSvc: queueSvc,
		l:        l,
	}
	c.routes = map[string]handlerFunc{
		kafka.TopicPaymentCompleted: c.HandlePaymentCompleted,
		kafka.TopicVisitCancelled:   c.HandleVisitCancelled,
	}
	return c
}

// Topics returns the routed topics in a stable order.
func (c *Consumer) Topics() []string {
	topics := make([]string, 0, len(c.routes))
	for t := range c.routes {
		topics = append(topics, t)
	}
	sort.Strings(topics)
	return topics
}

func (c *Consumer) processMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	h, ok := c.routes[msg.Topic]
	if !ok {
		c.l.Warnf(ctx, "delivery.kafka.consumer.processMessage: unknown topic %s", msg.Topic)
		return nil
	}
	return h(ctx, msg)
}

// Start joins the group in the background. A claim that hits a failing
// handler ends its session; the group is rejoined after rejoinBackoff and
// resumes from the last marked offset.
func (c *Consumer) Start(ctx context.Context) error {
	topics := c.Topics()
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			err := c.consGr.Consume(ctx, topics, c)
			if ctx.Err() != nil {
				c.l.Infof(ctx, "delivery.kafka.consumer.Start: %v", ctx.Err())
				return
			}
			if err != nil {
				c.l.Errorf(ctx, "delivery.kafka.consumer.Start: %v", err)
			}
			stalled := c.stalled.Swap(false)
			if err == nil && !stalled {
				continue
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(rejoinBackoff):
			}
		}
	}()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for err := range c.consGr.Errors() {
			c.l.Errorf(ctx, "delivery.kafka.consumer.Start: %v", err)
		}
	}()

	c.l.Infof(ctx, "Consumer is consuming topics: %v", topics)
	return nil
}

func (c *Consumer) Close() error {
	if err := c.consGr.Close(); err != nil {
		return err
	}

	c.wg.Wait()
	return nil
}

func (c *Consumer) Setup(ss sarama.ConsumerGroupSession) error {
	c.l.Debugf(ss.Context(), "Consumer group session %d started: %v", ss.GenerationID(), ss.Claims())
	return nil
}

func (c *Consumer) Cleanup(ss sarama.ConsumerGroupSession) error {
	c.l.Debugf(ss.Context(), "Consumer group session %d ended", ss.GenerationID())
	return nil
}

// ConsumeClaim handles one partition in order. Malformed events are marked
// and dropped. Any other handler error stops the claim without marking, so
// later messages cannot commit past the failed one.
func (c *Consumer) ConsumeClaim(ss sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := ss.Context()
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}

			if at, ok := producedAt(msg); ok {
				c.l.Debugf(ctx, "delivery.kafka.consumer.ConsumeClaim: %s/%d@%d lag=%s",
					msg.Topic, msg.Partition, msg.Offset, time.Since(at).Round(time.Millisecond))
			}

			err := c.processMessage(ctx, msg)
			switch {
			case err == nil:
			case errors.Is(err, ErrMalformedEvent):
				c.l.Warnf(ctx, "delivery.kafka.consumer.ConsumeClaim: dropping %s/%d@%d: %v",
					msg.Topic, msg.Partition, msg.Offset, err)
			default:
				c.l.Errorf(ctx, "delivery.kafka.consumer.ConsumeClaim: %s/%d@%d will be redelivered: %v",
					msg.Topic, msg.Partition, msg.Offset, err)
				c.stalled.Store(true)
				return err
			}

			ss.MarkMessage(msg, "")

		case <-ctx.Done():
			return nil
		}
	}
}

// producedAt reads the producer's timestamp header.
func producedAt(msg *sarama.ConsumerMessage) (time.Time, bool) {
	for _, h := range msg.Headers {
		if h == nil || string(h.Key) != kafka.HeaderTimestamp {
			continue
		}
		t, err := util.ParseISO8601(string(h.Value))
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	return time.Time{}, false
}
