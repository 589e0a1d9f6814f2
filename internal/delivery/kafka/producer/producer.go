package producer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	kafka "github.com/vogiaan1904/barberqueue/internal/delivery/kafka"
	"github.com/vogiaan1904/barberqueue/internal/models"
	"github.com/vogiaan1904/barberqueue/internal/notify"
	"github.com/vogiaan1904/barberqueue/pkg/logger"
	"github.com/vogiaan1904/barberqueue/pkg/util"
)

// Producer publishes queue transitions, revenue entries and notification
// requests. It satisfies service.EventPublisher and notify.Sink.
type Producer interface {
	PublishQueueEvent(ctx context.Context, evt models.QueueEvent) error
	PublishRevenueLogged(ctx context.Context, log models.RevenueLog) error
	Notify(ctx context.Context, n notify.Notification) error
	Close() error
}

type implProducer struct {
	l     logger.Logger
	prod  sarama.SyncProducer
	clock util.Clock
}

func NewProducer(prod sarama.SyncProducer, clock util.Clock, l logger.Logger) Producer {
	return &implProducer{
		l:     l,
		prod:  prod,
		clock: clock,
	}
}

func (p *implProducer) PublishQueueEvent(ctx context.Context, evt models.QueueEvent) error {
	topic := kafka.QueueEventTopic(evt.Type)
	if topic == "" {
		return fmt.Errorf("unknown queue event type %q", evt.Type)
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = p.clock.Now()
	}

	// Keyed by entry so one visit's events stay in order.
	if err := p.send(topic, evt.EntryID, evt); err != nil {
		p.l.Errorf(ctx, "delivery.kafka.producer.PublishQueueEvent: %v", err)
		return err
	}
	return nil
}

func (p *implProducer) PublishRevenueLogged(ctx context.Context, log models.RevenueLog) error {
	event := kafka.RevenueLoggedEvent{
		ID:           log.ID,
		Amount:       log.Amount,
		ServiceType:  log.ServiceType,
		CustomerName: log.CustomerName,
		LoggedAt:     time.UnixMilli(log.Timestamp).UTC(),
		Timestamp:    p.clock.Now(),
	}
	if err := p.send(kafka.TopicRevenueLogged, log.ID, event); err != nil {
		p.l.Errorf(ctx, "delivery.kafka.producer.PublishRevenueLogged: %v", err)
		return err
	}
	return nil
}

func (p *implProducer) Notify(ctx context.Context, n notify.Notification) error {
	key := n.DeviceID
	if key == "" {
		key = string(n.Audience)
	}
	event := kafka.NotificationRequestedEvent{
		Notification: n,
		Timestamp:    p.clock.Now(),
	}
	if err := p.send(kafka.TopicNotificationRequested, key, event); err != nil {
		p.l.Errorf(ctx, "delivery.kafka.producer.Notify: %v", err)
		return err
	}
	return nil
}

func (p *implProducer) send(topic, key string, v any) error {
	val, err := json.Marshal(v)
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(val),
		Headers: []sarama.RecordHeader{
			{
				Key:   []byte(kafka.HeaderTimestamp),
				Value: []byte(util.TimeToISO8601Str(p.clock.Now())),
			},
		},
	}

	_, _, err = p.prod.SendMessage(msg)
	return err
}

func (p *implProducer) Close() error {
	if err := p.prod.Close(); err != nil {
		return err
	}

	return nil
}
