package models_test

import (
	"context"
	"testing"

	"github.com/mmdatafocus/fulfillment_backend/models"
	"github.com/mmdatafocus/fulfillment_backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReceiveInventoryMergesSameLot(t *testing.T) {
	ctx := setupLedger(t)

	first := receive(t, ctx, models.NewInventoryReceipt{ProductId: 1, LocationId: 1, Quantity: 5, LotNumber: lot("L1"), ReceivedAt: date("2026-01-01")})
	second := receive(t, ctx, models.NewInventoryReceipt{ProductId: 1, LocationId: 1, Quantity: 3, LotNumber: lot(" L1 "), ReceivedAt: date("2026-02-01")})

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 8, second.OnHandQty)
	assert.True(t, second.ReceivedAt.Equal(*date("2026-01-01")), "first receipt date is kept")
	assert.Equal(t, 8, available(t, ctx, 1))
}

func TestReceiveInventorySplitsByLotAndExpiry(t *testing.T) {
	ctx := setupLedger(t)

	receive(t, ctx, models.NewInventoryReceipt{ProductId: 1, LocationId: 1, Quantity: 1, LotNumber: lot("A")})
	receive(t, ctx, models.NewInventoryReceipt{ProductId: 1, LocationId: 1, Quantity: 2, LotNumber: lot("B")})
	receive(t, ctx, models.NewInventoryReceipt{ProductId: 1, LocationId: 1, Quantity: 3, ExpiryDate: date("2027-01-01")})
	receive(t, ctx, models.NewInventoryReceipt{ProductId: 1, LocationId: 1, Quantity: 4, ExpiryDate: date("2027-06-01")})
	receive(t, ctx, models.NewInventoryReceipt{ProductId: 1, LocationId: 1, Quantity: 5})
	receive(t, ctx, models.NewInventoryReceipt{ProductId: 1, LocationId: 1, Quantity: 6})
	receive(t, ctx, models.NewInventoryReceipt{ProductId: 1, LocationId: 2, Quantity: 7})

	records, err := models.ListInventory(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, records, 6)
	assert.Equal(t, 28, available(t, ctx, 1))
}

func TestReceiveInventoryRejectsNonPositiveQuantity(t *testing.T) {
	ctx := setupLedger(t)

	for _, qty := range []int{0, -3} {
		_, err := models.ReceiveInventory(ctx, &models.NewInventoryReceipt{ProductId: 1, LocationId: 1, Quantity: qty})
		assert.ErrorIs(t, err, models.ErrInvalidQuantity)
	}
	assert.Equal(t, 0, available(t, ctx, 1))
}

func TestInventoryRequiresTenant(t *testing.T) {
	setupLedger(t)

	_, err := models.ReceiveInventory(context.Background(), &models.NewInventoryReceipt{ProductId: 1, LocationId: 1, Quantity: 1})
	assert.ErrorIs(t, err, utils.ErrorTenantRequired)
	_, err = models.GetAvailableQuantity(context.Background(), 1)
	assert.ErrorIs(t, err, utils.ErrorTenantRequired)
}

func TestInventoryIsTenantScoped(t *testing.T) {
	ctx := setupLedger(t)
	other := utils.SetTenantIdInContext(context.Background(), "other-tenant")

	receive(t, ctx, models.NewInventoryReceipt{ProductId: 1, LocationId: 1, Quantity: 10})
	receive(t, other, models.NewInventoryReceipt{ProductId: 1, LocationId: 1, Quantity: 4})

	assert.Equal(t, 10, available(t, ctx, 1))
	assert.Equal(t, 4, available(t, other, 1))
}

func TestAvailableQuantitySubtractsCommitted(t *testing.T) {
	ctx := setupLedger(t)

	receive(t, ctx, models.NewInventoryReceipt{ProductId: 1, LocationId: 1, Quantity: 10})
	order := createOrder(t, ctx, models.NewOrderLine{ProductId: 1, OrderedQty: 4})
	_, err := models.AllocateOrder(ctx, order.ID)
	require.NoError(t, err)

	assert.Equal(t, 6, available(t, ctx, 1))
	assert.Equal(t, 0, available(t, ctx, 99), "unknown product has nothing available")
}
