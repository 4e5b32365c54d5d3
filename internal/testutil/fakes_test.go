package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smvora4u/restaurant-management/internal/guard"
	"github.com/smvora4u/restaurant-management/internal/order"
	"github.com/smvora4u/restaurant-management/internal/status"
)

func TestMemorySource_NotFound(t *testing.T) {
	src := NewMemorySource()
	_, err := src.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, guard.ErrOrderNotFound)
}

func TestRecordingPusher_WritesThroughToSource(t *testing.T) {
	src := NewMemorySource(order.Order{ID: "o1", Status: status.Pending})
	p := &RecordingPusher{Source: src}

	require.NoError(t, p.Push(context.Background(), guard.Push{OrderID: "o1", Status: status.Ready}))

	o, err := src.Get(context.Background(), "o1")
	require.NoError(t, err)
	assert.Equal(t, status.Ready, o.Status)
	assert.Equal(t, 1, p.Count())
}

func TestRecordingPusher_Fail(t *testing.T) {
	boom := errors.New("boom")
	p := &RecordingPusher{Fail: func(guard.Push) error { return boom }}

	err := p.Push(context.Background(), guard.Push{OrderID: "o1"})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, p.Pushes())
}
