package feed

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smvora4u/restaurant-management/internal/guard"
	"github.com/smvora4u/restaurant-management/internal/lineitem"
	"github.com/smvora4u/restaurant-management/internal/status"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestDecode(t *testing.T) {
	n, err := Decode([]byte(`{"orderId":"o1","items":[
		{"menuItemId":"pizza","quantity":2,"unitPrice":"10.50","status":"ready","specialInstructions":"extra basil"},
		{"menuItemId":"tea","quantity":1,"unitPrice":3,"status":"served"}
	]}`))
	require.NoError(t, err)

	assert.Equal(t, "o1", n.OrderID)
	require.Len(t, n.Items, 2)
	assert.Equal(t, 2, n.Items[0].Quantity)
	assert.Equal(t, "10.5", n.Items[0].UnitPrice.String())
	assert.Equal(t, status.Ready, n.Items[0].Status)
	assert.Equal(t, "extra basil", n.Items[0].SpecialInstructions)
	assert.Equal(t, status.Served, n.Items[1].Status)
}

func TestDecode_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"not json", `{`, "unexpected end"},
		{"missing order", `{"items":[]}`, "orderId is required"},
		{"missing menu item", `{"orderId":"o1","items":[{"quantity":1,"status":"pending"}]}`, "menuItemId is required"},
		{"unknown status", `{"orderId":"o1","items":[{"menuItemId":"x","quantity":1,"status":"plated"}]}`, `unknown status "plated"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestJSONLReader(t *testing.T) {
	input := strings.Join([]string{
		`{"orderId":"o1","items":[{"menuItemId":"pizza","quantity":1,"unitPrice":"10","status":"ready"}]}`,
		``,
		`{"orderId":""}`,
		`{"orderId":"o2","items":[]}`,
	}, "\n")
	r := NewJSONLReader(strings.NewReader(input))
	ctx := context.Background()

	n, err := r.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "o1", n.OrderID)

	_, err = r.Next(ctx)
	require.True(t, IsDecodeError(err))
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, int64(3), de.Offset, "blank lines still count")

	n, err = r.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "o2", n.OrderID)

	_, err = r.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestJSONLReader_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewJSONLReader(strings.NewReader(`{"orderId":"o1"}`)).Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDecodeMessage_KeyFallback(t *testing.T) {
	n, err := decodeMessage(kafka.Message{
		Key:   []byte("o7"),
		Value: []byte(`{"items":[{"menuItemId":"tea","quantity":1,"unitPrice":"3","status":"pending"}]}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "o7", n.OrderID)

	n, err = decodeMessage(kafka.Message{Key: []byte("o7"), Value: []byte(`{"orderId":"o8","items":[]}`)})
	require.NoError(t, err)
	assert.Equal(t, "o8", n.OrderID, "payload wins over key")

	_, err = decodeMessage(kafka.Message{Offset: 42, Value: []byte(`nope`)})
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, int64(42), de.Offset)
}

func TestParseBrokers(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, ParseBrokers(" a:9092, ,b:9092,"))
	assert.Empty(t, ParseBrokers(""))
}

func TestNewKafkaReader_Validation(t *testing.T) {
	_, err := NewKafkaReader(KafkaConfig{Topic: "orders.items"})
	assert.Error(t, err)
	_, err = NewKafkaReader(KafkaConfig{Brokers: []string{"localhost:9092"}})
	assert.Error(t, err)
}

type recordingHandler struct {
	mu    sync.Mutex
	calls []Notification
}

func (h *recordingHandler) HandleNotification(_ context.Context, orderID string, items []lineitem.Item) guard.Decision {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, Notification{OrderID: orderID, Items: items})
	return guard.Decision{Seq: int64(len(h.calls)), OrderID: orderID, Outcome: guard.OutcomeScheduled}
}

func TestRun(t *testing.T) {
	input := `{"orderId":"o1","items":[]}
garbage
{"orderId":"o2","items":[]}
`
	h := &recordingHandler{}
	stats, err := Run(context.Background(), NewJSONLReader(strings.NewReader(input)), h, quiet)
	require.NoError(t, err)

	assert.Equal(t, Stats{Delivered: 2, Skipped: 1}, stats)
	require.Len(t, h.calls, 2)
	assert.Equal(t, "o2", h.calls[1].OrderID)
}

type failingReader struct{ err error }

func (r failingReader) Next(context.Context) (Notification, error) { return Notification{}, r.err }

func TestRun_ReaderError(t *testing.T) {
	boom := errors.New("broker gone")
	_, err := Run(context.Background(), failingReader{err: boom}, &recordingHandler{}, quiet)
	assert.ErrorIs(t, err, boom)
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func TestPublishingPusher(t *testing.T) {
	var pushed []guard.Push
	next := guard.PusherFunc(func(_ context.Context, p guard.Push) error {
		pushed = append(pushed, p)
		return nil
	})
	w := &fakeWriter{}
	p := NewPublishingPusher(next, w)
	p.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }

	push := guard.Push{ID: "abc", OrderID: "o1", Status: status.Ready, Seq: 3, Origin: guard.OriginAutomatic}
	require.NoError(t, p.Push(context.Background(), push))

	require.Len(t, pushed, 1)
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "o1", string(w.msgs[0].Key))

	var evt StatusEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &evt))
	assert.Equal(t, StatusEvent{PushID: "abc", OrderID: "o1", Status: "ready", Seq: 3, Origin: "automatic"}, evt)
}

func TestPublishingPusher_Errors(t *testing.T) {
	boom := errors.New("boom")

	w := &fakeWriter{}
	p := NewPublishingPusher(guard.PusherFunc(func(context.Context, guard.Push) error { return boom }), w)
	assert.ErrorIs(t, p.Push(context.Background(), guard.Push{OrderID: "o1"}), boom)
	assert.Empty(t, w.msgs, "nothing published when the write failed")

	p = NewPublishingPusher(guard.PusherFunc(func(context.Context, guard.Push) error { return nil }), &fakeWriter{err: boom})
	assert.ErrorIs(t, p.Push(context.Background(), guard.Push{OrderID: "o1"}), boom)
}
