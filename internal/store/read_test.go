package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smvora4u/restaurant-management/internal/guard"
	"github.com/smvora4u/restaurant-management/internal/lineitem"
	"github.com/smvora4u/restaurant-management/internal/order"
	"github.com/smvora4u/restaurant-management/internal/status"
)

func TestGet_NotFound(t *testing.T) {
	s := createTestStore(t)
	_, err := s.Get(context.Background(), "ghost")
	assert.ErrorIs(t, err, guard.ErrOrderNotFound)
}

func TestGet_EmptyItemsIsNotNil(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.PutOrder(ctx, order.Order{ID: "o1", Status: status.Pending}))

	o, err := s.Get(ctx, "o1")
	require.NoError(t, err)
	assert.NotNil(t, o.Items)
	assert.Empty(t, o.Items)
	assert.True(t, o.TotalAmount.IsZero())
}

func TestGet_PreservesInstructionsAndOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	noOnion := testItem("burger", 1, "12", status.Pending)
	noOnion.SpecialInstructions = "no onion"
	require.NoError(t, s.PutOrder(ctx, order.Order{ID: "o1", Status: status.Pending, Items: []lineitem.Item{
		testItem("tea", 1, "3", status.Served),
		noOnion,
		testItem("burger", 1, "12", status.Pending),
	}}))

	o, err := s.Get(ctx, "o1")
	require.NoError(t, err)
	require.Len(t, o.Items, 3)
	assert.Equal(t, "tea", o.Items[0].MenuItemID)
	assert.Equal(t, "no onion", o.Items[1].SpecialInstructions)
	assert.Equal(t, "", o.Items[2].SpecialInstructions)
	assert.Equal(t, "3", o.Items[0].UnitPrice.String())
}

func TestListOrders_SortedByID(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	for _, id := range []string{"b", "a", "B"} {
		require.NoError(t, s.PutOrder(ctx, order.Order{ID: id, Status: status.Pending}))
	}

	ids, err := s.ListOrderIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "a", "b"}, ids)

	orders, err := s.ListOrders(ctx)
	require.NoError(t, err)
	assert.Len(t, orders, 3)
}

func TestMaxSeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	seq, err := s.MaxSeq(ctx)
	require.NoError(t, err)
	assert.Zero(t, seq)

	require.NoError(t, s.PutOrder(ctx, order.Order{ID: "o1", Status: status.Pending}))
	require.NoError(t, s.Push(ctx, guard.Push{ID: "p1", OrderID: "o1", Status: status.Confirmed, Seq: 4}))
	require.NoError(t, s.Push(ctx, guard.Push{ID: "p2", OrderID: "o1", Status: status.Ready, Seq: 9}))

	seq, err = s.MaxSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(9), seq)
}
