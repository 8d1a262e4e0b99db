package models_test

import (
	"testing"

	"github.com/mmdatafocus/fulfillment_backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionOrderStatusStampsTimestamps(t *testing.T) {
	ctx := setupLedger(t)
	order := createOrder(t, ctx, models.NewOrderLine{ProductId: 1, OrderedQty: 1})
	assert.Equal(t, models.OrderStatusNew, order.Status)

	steps := []models.OrderStatus{
		models.OrderStatusConfirmed, models.OrderStatusPicking, models.OrderStatusPacked,
		models.OrderStatusShipped, models.OrderStatusDelivered,
	}
	for _, status := range steps {
		updated, err := models.TransitionOrderStatus(ctx, order.ID, status, "")
		require.NoError(t, err)
		assert.Equal(t, status, updated.Status)
	}

	stored, err := models.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusDelivered, stored.Status)
	assert.NotNil(t, stored.ConfirmedAt)
	assert.NotNil(t, stored.PickedAt)
	assert.NotNil(t, stored.ShippedAt)
	assert.NotNil(t, stored.DeliveredAt)
	assert.Nil(t, stored.CancelledAt)

	history, err := models.GetOrderStatusHistory(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, history, len(steps))
	previous := models.OrderStatusNew
	for i, change := range history {
		assert.Equal(t, previous, change.OldStatus, "change %d", i)
		assert.Equal(t, steps[i], change.NewStatus, "change %d", i)
		assert.Equal(t, "tester", change.ChangedBy)
		previous = change.NewStatus
	}
}

func TestTransitionOrderStatusToCurrentIsNoop(t *testing.T) {
	ctx := setupLedger(t)
	order := createOrder(t, ctx, models.NewOrderLine{ProductId: 1, OrderedQty: 1})

	_, err := models.TransitionOrderStatus(ctx, order.ID, models.OrderStatusConfirmed, "")
	require.NoError(t, err)
	first, err := models.GetOrder(ctx, order.ID)
	require.NoError(t, err)

	_, err = models.TransitionOrderStatus(ctx, order.ID, models.OrderStatusConfirmed, "")
	require.NoError(t, err)
	second, err := models.GetOrder(ctx, order.ID)
	require.NoError(t, err)

	assert.True(t, first.ConfirmedAt.Equal(*second.ConfirmedAt))
	history, err := models.GetOrderStatusHistory(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestTransitionOrderStatusRejects(t *testing.T) {
	ctx := setupLedger(t)

	_, err := models.TransitionOrderStatus(ctx, 12345, models.OrderStatusConfirmed, "")
	assert.ErrorIs(t, err, models.ErrOrderNotFound)

	order := createOrder(t, ctx, models.NewOrderLine{ProductId: 1, OrderedQty: 1})
	_, err = models.TransitionOrderStatus(ctx, order.ID, models.OrderStatus("lost"), "")
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	for _, closed := range []models.OrderStatus{models.OrderStatusShipped, models.OrderStatusDelivered} {
		o := createOrder(t, ctx, models.NewOrderLine{ProductId: 1, OrderedQty: 1})
		_, err := models.TransitionOrderStatus(ctx, o.ID, closed, "")
		require.NoError(t, err)

		_, err = models.CancelOrder(ctx, o.ID, "too late")
		assert.ErrorIs(t, err, models.ErrInvalidTransition)

		stored, err := models.GetOrder(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, closed, stored.Status)
	}
}

func TestTransitionOrderStatusAllowsBackwardsMoves(t *testing.T) {
	ctx := setupLedger(t)
	order := createOrder(t, ctx, models.NewOrderLine{ProductId: 1, OrderedQty: 1})

	_, err := models.TransitionOrderStatus(ctx, order.ID, models.OrderStatusPacked, "")
	require.NoError(t, err)
	updated, err := models.TransitionOrderStatus(ctx, order.ID, models.OrderStatusPicking, "repack")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPicking, updated.Status)
}

func TestCancelOrderReleasesReservations(t *testing.T) {
	ctx := setupLedger(t)
	receive(t, ctx, models.NewInventoryReceipt{ProductId: 1, LocationId: 1, Quantity: 10})
	order := createOrder(t, ctx, models.NewOrderLine{ProductId: 1, OrderedQty: 4})
	_, err := models.ReserveOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, 6, available(t, ctx, 1))

	cancelled, err := models.CancelOrder(ctx, order.ID, "customer request")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, "customer request", cancelled.CancellationReason)
	assert.NotNil(t, cancelled.CancelledAt)
	assert.Equal(t, 10, available(t, ctx, 1))

	records, err := models.ListInventory(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 10, records[0].OnHandQty)
	assert.Equal(t, 0, records[0].CommittedQty)

	reservations, err := models.GetOrderReservations(ctx, order.ID)
	require.NoError(t, err)
	assert.Empty(t, reservations)

	again, err := models.CancelOrder(ctx, order.ID, "twice")
	require.NoError(t, err)
	assert.Equal(t, "customer request", again.CancellationReason, "cancelling a cancelled order is a no-op")

	history, err := models.GetOrderStatusHistory(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.OrderStatusNew, history[0].OldStatus)
	assert.Equal(t, models.OrderStatusConfirmed, history[0].NewStatus)
	assert.Equal(t, models.OrderStatusConfirmed, history[1].OldStatus)
	assert.Equal(t, models.OrderStatusCancelled, history[1].NewStatus)
	assert.Equal(t, "customer request", history[1].Reason)
}
