package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smvora4u/restaurant-management/internal/canon"
	"github.com/smvora4u/restaurant-management/internal/guard"
	"github.com/smvora4u/restaurant-management/internal/lineitem"
	"github.com/smvora4u/restaurant-management/internal/order"
	"github.com/smvora4u/restaurant-management/internal/status"
)

func TestPutOrder_NormalizesAndTotals(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	err := s.PutOrder(ctx, order.Order{
		ID:     "o1",
		Status: status.Pending,
		Items: []lineitem.Item{
			testItem("pizza", 2, "10.25", status.Pending),
			testItem("tea", 0, "3", status.Pending),
			testItem("pizza", 1, "10.25", status.Pending),
		},
	})
	require.NoError(t, err)

	o, err := s.Get(ctx, "o1")
	require.NoError(t, err)
	require.Len(t, o.Items, 1)
	assert.Equal(t, 3, o.Items[0].Quantity)
	assert.Equal(t, "30.75", o.TotalAmount.String())
	assert.Equal(t, status.Pending, o.Status)
}

func TestPutOrder_Replaces(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutOrder(ctx, order.Order{ID: "o1", Status: status.Pending,
		Items: []lineitem.Item{testItem("pizza", 1, "10", status.Pending)}}))
	require.NoError(t, s.PutOrder(ctx, order.Order{ID: "o1", Status: status.Confirmed,
		Items: []lineitem.Item{testItem("tea", 2, "3", status.Confirmed)}}))

	o, err := s.Get(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, status.Confirmed, o.Status)
	require.Len(t, o.Items, 1)
	assert.Equal(t, "tea", o.Items[0].MenuItemID)
	assert.Equal(t, "6", o.TotalAmount.String())
}

func TestReplaceItems_KeepsStatus(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.PutOrder(ctx, order.Order{ID: "o1", Status: status.Pending,
		Items: []lineitem.Item{testItem("pizza", 1, "10", status.Pending)}}))

	o, err := s.ReplaceItems(ctx, "o1", []lineitem.Item{
		testItem("pizza", 1, "10", status.Ready),
		testItem("salad", 1, "7.5", status.Ready),
	})
	require.NoError(t, err)
	assert.Equal(t, status.Pending, o.Status, "status belongs to the guard")
	assert.Len(t, o.Items, 2)
	assert.Equal(t, "17.5", o.TotalAmount.String())
	assert.True(t, o.NeedsSync())
}

func TestReplaceItems_NotFound(t *testing.T) {
	s := createTestStore(t)
	_, err := s.ReplaceItems(context.Background(), "ghost", nil)
	assert.ErrorIs(t, err, guard.ErrOrderNotFound)
}

func TestDeleteOrder_Cascades(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.PutOrder(ctx, order.Order{ID: "o1", Status: status.Pending,
		Items: []lineitem.Item{testItem("pizza", 1, "10", status.Pending)}}))
	require.NoError(t, s.Push(ctx, guard.Push{ID: "p1", OrderID: "o1", Status: status.Confirmed, Seq: 1, Origin: guard.OriginUser}))

	require.NoError(t, s.DeleteOrder(ctx, "o1"))
	require.NoError(t, s.DeleteOrder(ctx, "o1"))

	var n int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM line_items`).Scan(&n))
	assert.Zero(t, n)
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM status_pushes`).Scan(&n))
	assert.Zero(t, n)
}

func TestPush_AppliesStatus(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.PutOrder(ctx, order.Order{ID: "o1", Status: status.Pending,
		Items: []lineitem.Item{testItem("pizza", 1, "10", status.Ready)}}))

	id, err := canon.PushID("o1", status.Ready, 7)
	require.NoError(t, err)
	push := guard.Push{ID: id, OrderID: "o1", Status: status.Ready, Seq: 7, Origin: guard.OriginAutomatic, Fingerprint: "fp"}
	require.NoError(t, s.Push(ctx, push))

	o, err := s.Get(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, status.Ready, o.Status)

	pushes, err := s.ReadPushes(ctx, "o1")
	require.NoError(t, err)
	require.Len(t, pushes, 1)
	assert.Equal(t, push, pushes[0])
}

func TestPush_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.PutOrder(ctx, order.Order{ID: "o1", Status: status.Pending}))

	push := guard.Push{ID: "p1", OrderID: "o1", Status: status.Confirmed, Seq: 1, Origin: guard.OriginUser}
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Push(ctx, push))
	}

	pushes, err := s.ReadPushes(ctx, "o1")
	require.NoError(t, err)
	assert.Len(t, pushes, 1)
}

func TestPush_StaleIsRecordedNotApplied(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.PutOrder(ctx, order.Order{ID: "o1", Status: status.Pending}))

	require.NoError(t, s.Push(ctx, guard.Push{ID: "new", OrderID: "o1", Status: status.Ready, Seq: 5, Origin: guard.OriginAutomatic}))
	require.NoError(t, s.Push(ctx, guard.Push{ID: "old", OrderID: "o1", Status: status.Confirmed, Seq: 3, Origin: guard.OriginAutomatic}))

	o, err := s.Get(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, status.Ready, o.Status)

	pushes, err := s.ReadPushes(ctx, "o1")
	require.NoError(t, err)
	require.Len(t, pushes, 2)
	assert.Equal(t, "old", pushes[0].ID, "ordered by seq")
}

func TestPush_UnknownOrder(t *testing.T) {
	s := createTestStore(t)
	err := s.Push(context.Background(), guard.Push{ID: "p", OrderID: "ghost", Status: status.Ready})
	assert.ErrorIs(t, err, guard.ErrOrderNotFound)
}
