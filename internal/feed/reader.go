package feed

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/segmentio/kafka-go"

	"github.com/smvora4u/restaurant-management/internal/guard"
	"github.com/smvora4u/restaurant-management/internal/lineitem"
)

// Reader yields notifications. Next returns io.EOF when the stream ends.
// A *DecodeError skips one message; any other error ends the stream.
type Reader interface {
	Next(ctx context.Context) (Notification, error)
}

// Handler consumes notifications. *guard.Guard implements it.
type Handler interface {
	HandleNotification(ctx context.Context, orderID string, items []lineitem.Item) guard.Decision
}

// JSONLReader reads one notification per line. Blank lines are skipped.
type JSONLReader struct {
	scanner *bufio.Scanner
	line    int64
}

// NewJSONLReader reads from r.
func NewJSONLReader(r io.Reader) *JSONLReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	return &JSONLReader{scanner: sc}
}

// Next implements Reader.
func (r *JSONLReader) Next(ctx context.Context) (Notification, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Notification{}, err
		}
		if !r.scanner.Scan() {
			if err := r.scanner.Err(); err != nil {
				return Notification{}, fmt.Errorf("read line %d: %w", r.line+1, err)
			}
			return Notification{}, io.EOF
		}
		r.line++
		data := bytes.TrimSpace(r.scanner.Bytes())
		if len(data) == 0 {
			continue
		}
		n, err := Decode(data)
		if err != nil {
			return Notification{}, &DecodeError{Offset: r.line, Err: err}
		}
		return n, nil
	}
}

// ParseBrokers splits a comma-separated broker list, dropping blanks.
func ParseBrokers(csv string) []string {
	brokers := []string{}
	for _, b := range strings.Split(csv, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// KafkaConfig selects the topic a KafkaReader consumes.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// KafkaReader consumes notifications from a Kafka topic. The message key is
// the order id and is used when the payload omits it.
type KafkaReader struct {
	reader *kafka.Reader
}

// NewKafkaReader creates a consumer-group reader.
func NewKafkaReader(cfg KafkaConfig) (*KafkaReader, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: no brokers configured")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka: topic is required")
	}
	return &KafkaReader{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.Brokers,
			Topic:    cfg.Topic,
			GroupID:  cfg.GroupID,
			MinBytes: 1,
			MaxBytes: 10e6,
		}),
	}, nil
}

// Next implements Reader.
func (r *KafkaReader) Next(ctx context.Context) (Notification, error) {
	msg, err := r.reader.ReadMessage(ctx)
	if err != nil {
		return Notification{}, fmt.Errorf("kafka read: %w", err)
	}
	return decodeMessage(msg)
}

// Close closes the consumer.
func (r *KafkaReader) Close() error {
	return r.reader.Close()
}

func decodeMessage(msg kafka.Message) (Notification, error) {
	n, err := decode(msg.Value, string(msg.Key))
	if err != nil {
		return Notification{}, &DecodeError{Offset: msg.Offset, Err: err}
	}
	return n, nil
}

// Stats counts what Run did.
type Stats struct {
	Delivered int
	Skipped   int
}

// Run feeds every notification from r to h until r is exhausted, ctx is
// cancelled, or r fails. Malformed messages are logged and skipped.
// Reaching the end of the stream is not an error.
func Run(ctx context.Context, r Reader, h Handler, logger *slog.Logger) (Stats, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var stats Stats
	for {
		n, err := r.Next(ctx)
		switch {
		case errors.Is(err, io.EOF):
			return stats, nil
		case IsDecodeError(err):
			stats.Skipped++
			logger.Warn("skipping malformed notification", "error", err)
			continue
		case err != nil:
			return stats, err
		}

		d := h.HandleNotification(ctx, n.OrderID, n.Items)
		stats.Delivered++
		logger.Debug("notification delivered",
			"order_id", n.OrderID,
			"seq", d.Seq,
			"outcome", d.Outcome.String(),
		)
	}
}
