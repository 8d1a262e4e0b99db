package models_test

import (
	"testing"

	"github.com/mmdatafocus/fulfillment_backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderHappyPath(t *testing.T) {
	ctx := setupLedger(t)
	receive(t, ctx, models.NewInventoryReceipt{ProductId: 1, LocationId: 1, Quantity: 10})
	receive(t, ctx, models.NewInventoryReceipt{ProductId: 2, LocationId: 1, Quantity: 5})
	order := createOrder(t, ctx,
		models.NewOrderLine{ProductId: 1, OrderedQty: 3},
		models.NewOrderLine{ProductId: 2, OrderedQty: 5},
	)

	result, err := models.ReserveOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusConfirmed, result.Status)
	assert.Equal(t, 8, result.TotalAllocated())

	for _, status := range []models.OrderStatus{models.OrderStatusPicking, models.OrderStatusPacked} {
		_, err := models.TransitionOrderStatus(ctx, order.ID, status, "")
		require.NoError(t, err)
	}

	shipped, err := models.ShipOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusShipped, shipped.Status)
	assert.NotNil(t, shipped.ShippedAt)
	assert.Equal(t, 3, shipped.Lines[0].PickedQty)
	assert.Equal(t, 5, shipped.Lines[1].PickedQty)

	records, err := models.ListInventory(ctx, 0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 7, records[0].OnHandQty)
	assert.Equal(t, 0, records[0].CommittedQty)
	assert.Equal(t, 0, records[1].OnHandQty)
	assert.Equal(t, 0, records[1].CommittedQty)

	reservations, err := models.GetOrderReservations(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, reservations, 2)
	for _, r := range reservations {
		assert.Equal(t, models.ReservationStatusFulfilled, r.Status)
		assert.NotNil(t, r.FulfilledAt)
	}

	delivered, err := models.TransitionOrderStatus(ctx, order.ID, models.OrderStatusDelivered, "")
	require.NoError(t, err)
	assert.NotNil(t, delivered.DeliveredAt)
}

func TestReserveOrderWithShortageAwaitsStock(t *testing.T) {
	ctx := setupLedger(t)
	receive(t, ctx, models.NewInventoryReceipt{ProductId: 1, LocationId: 1, Quantity: 2})
	order := createOrder(t, ctx, models.NewOrderLine{ProductId: 1, OrderedQty: 5})

	result, err := models.ReserveOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusAwaitingStock, result.Status)
	assert.Equal(t, 2, result.TotalAllocated())
	assert.Equal(t, 3, result.TotalShortage())

	receive(t, ctx, models.NewInventoryReceipt{ProductId: 1, LocationId: 1, Quantity: 3})
	result, err = models.ReserveOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusConfirmed, result.Status)
	assert.Equal(t, 0, result.TotalShortage())
	assert.Equal(t, 0, available(t, ctx, 1))
}

func TestFulfillOrderTwiceIsNoop(t *testing.T) {
	ctx := setupLedger(t)
	receive(t, ctx, models.NewInventoryReceipt{ProductId: 1, LocationId: 1, Quantity: 10})
	order := createOrder(t, ctx, models.NewOrderLine{ProductId: 1, OrderedQty: 4})
	_, err := models.AllocateOrder(ctx, order.ID)
	require.NoError(t, err)

	_, err = models.FulfillOrder(ctx, order.ID)
	require.NoError(t, err)
	again, err := models.FulfillOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, again.Lines[0].PickedQty)

	records, err := models.ListInventory(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 6, records[0].OnHandQty)
	assert.Equal(t, 0, records[0].CommittedQty)
}

func TestReleaseOrderLeavesOnHandAlone(t *testing.T) {
	ctx := setupLedger(t)
	receive(t, ctx, models.NewInventoryReceipt{ProductId: 1, LocationId: 1, Quantity: 10})
	order := createOrder(t, ctx, models.NewOrderLine{ProductId: 1, OrderedQty: 4})
	_, err := models.AllocateOrder(ctx, order.ID)
	require.NoError(t, err)

	released, err := models.ReleaseOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, released.Lines[0].CommittedQty)
	_, err = models.ReleaseOrder(ctx, order.ID)
	require.NoError(t, err)

	records, err := models.ListInventory(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 10, records[0].OnHandQty)
	assert.Equal(t, 0, records[0].CommittedQty)
	assert.Equal(t, models.OrderStatusNew, released.Status, "release does not change status")
}

func TestReleaseOrderKeepsFulfilledReservations(t *testing.T) {
	ctx := setupLedger(t)
	receive(t, ctx, models.NewInventoryReceipt{ProductId: 1, LocationId: 1, Quantity: 3})
	order := createOrder(t, ctx, models.NewOrderLine{ProductId: 1, OrderedQty: 5})
	_, err := models.AllocateOrder(ctx, order.ID)
	require.NoError(t, err)
	_, err = models.FulfillOrder(ctx, order.ID)
	require.NoError(t, err)

	receive(t, ctx, models.NewInventoryReceipt{ProductId: 1, LocationId: 1, Quantity: 5})
	_, err = models.AllocateOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, 3, available(t, ctx, 1))

	_, err = models.ReleaseOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, available(t, ctx, 1))

	reservations, err := models.GetOrderReservations(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, reservations, 1)
	assert.Equal(t, models.ReservationStatusFulfilled, reservations[0].Status)
	assert.Equal(t, 3, reservations[0].Quantity)
}

func TestShipOrderRules(t *testing.T) {
	ctx := setupLedger(t)
	receive(t, ctx, models.NewInventoryReceipt{ProductId: 1, LocationId: 1, Quantity: 5})

	unreserved := createOrder(t, ctx, models.NewOrderLine{ProductId: 1, OrderedQty: 1})
	_, err := models.ShipOrder(ctx, unreserved.ID)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	order := createOrder(t, ctx, models.NewOrderLine{ProductId: 1, OrderedQty: 2})
	_, err = models.ReserveOrder(ctx, order.ID)
	require.NoError(t, err)
	_, err = models.ShipOrder(ctx, order.ID)
	require.NoError(t, err)
	_, err = models.ShipOrder(ctx, order.ID)
	require.NoError(t, err, "shipping a shipped order is a no-op")
	assert.Equal(t, 3, available(t, ctx, 1))

	cancelled := createOrder(t, ctx, models.NewOrderLine{ProductId: 1, OrderedQty: 1})
	_, err = models.CancelOrder(ctx, cancelled.ID, "")
	require.NoError(t, err)
	_, err = models.ShipOrder(ctx, cancelled.ID)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}
