package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/smvora4u/restaurant-management/internal/guard"
)

// MessageWriter is the subset of *kafka.Writer used for publishing.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// NewKafkaWriter creates a writer that keys messages by order id so every
// status change for one order lands on one partition, in order.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
}

// StatusEvent is published after a status push is persisted.
type StatusEvent struct {
	PushID      string `json:"pushId"`
	OrderID     string `json:"orderId"`
	Status      string `json:"status"`
	Seq         int64  `json:"seq"`
	Origin      string `json:"origin"`
	Fingerprint string `json:"itemsFingerprint,omitempty"`
}

// PublishingPusher wraps a Pusher and announces every successful push on a
// Kafka topic. A failed publish fails the push; pushes are idempotent so
// the caller may retry both.
type PublishingPusher struct {
	next   guard.Pusher
	writer MessageWriter
	now    func() time.Time
}

// NewPublishingPusher decorates next.
func NewPublishingPusher(next guard.Pusher, writer MessageWriter) *PublishingPusher {
	return &PublishingPusher{next: next, writer: writer, now: time.Now}
}

// Push implements guard.Pusher.
func (p *PublishingPusher) Push(ctx context.Context, push guard.Push) error {
	if err := p.next.Push(ctx, push); err != nil {
		return err
	}

	data, err := json.Marshal(StatusEvent{
		PushID:      push.ID,
		OrderID:     push.OrderID,
		Status:      string(push.Status),
		Seq:         push.Seq,
		Origin:      string(push.Origin),
		Fingerprint: push.Fingerprint,
	})
	if err != nil {
		return fmt.Errorf("encode status event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(push.OrderID),
		Value: data,
		Time:  p.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("publish status event: %w", err)
	}
	return nil
}
