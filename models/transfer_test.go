package models_test

import (
	"testing"

	"github.com/mmdatafocus/fulfillment_backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransferInventoryMovesLotToNewLocation(t *testing.T) {
	ctx := setupLedger(t)
	source := receive(t, ctx, models.NewInventoryReceipt{
		ProductId: 1, LocationId: 1, Quantity: 10,
		LotNumber: lot("L7"), ExpiryDate: date("2027-03-01"), ReceivedAt: date("2026-01-15"),
	})

	transfer, err := models.TransferInventory(ctx, &models.NewInventoryTransfer{
		ProductId: 1, SourceLocationId: 1, TargetLocationId: 2, Quantity: 4, LotNumber: lot("L7"),
	})
	require.NoError(t, err)
	assert.Equal(t, source.ID, transfer.SourceRecordId)
	assert.Equal(t, "tester", transfer.CreatedBy)

	src := recordById(t, ctx, 1, source.ID)
	dst := recordById(t, ctx, 1, transfer.TargetRecordId)
	assert.Equal(t, 6, src.OnHandQty)
	assert.Equal(t, 4, dst.OnHandQty)
	assert.Equal(t, 2, dst.LocationId)
	require.NotNil(t, dst.LotNumber)
	assert.Equal(t, "L7", *dst.LotNumber)
	require.NotNil(t, dst.ExpiryDate)
	assert.True(t, dst.ExpiryDate.Equal(*date("2027-03-01")))
	assert.True(t, dst.ReceivedAt.Equal(*date("2026-01-15")))
	assert.Equal(t, 10, available(t, ctx, 1), "transfers never change the product total")

	transfers, err := models.GetTransfers(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, transfers, 1)
}

func TestTransferInventoryAddsToExistingTarget(t *testing.T) {
	ctx := setupLedger(t)
	receive(t, ctx, models.NewInventoryReceipt{ProductId: 1, LocationId: 1, Quantity: 5})
	target := receive(t, ctx, models.NewInventoryReceipt{ProductId: 1, LocationId: 2, Quantity: 2})

	transfer, err := models.TransferInventory(ctx, &models.NewInventoryTransfer{
		ProductId: 1, SourceLocationId: 1, TargetLocationId: 2, Quantity: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, target.ID, transfer.TargetRecordId)
	assert.Equal(t, 7, recordById(t, ctx, 1, target.ID).OnHandQty)
	assert.Equal(t, 0, recordById(t, ctx, 1, transfer.SourceRecordId).OnHandQty)
}

func TestTransferInventoryErrors(t *testing.T) {
	ctx := setupLedger(t)
	receive(t, ctx, models.NewInventoryReceipt{ProductId: 1, LocationId: 1, Quantity: 5})
	order := createOrder(t, ctx, models.NewOrderLine{ProductId: 1, OrderedQty: 3})
	_, err := models.AllocateOrder(ctx, order.ID)
	require.NoError(t, err)

	cases := []struct {
		name  string
		input models.NewInventoryTransfer
		want  error
	}{
		{"zero quantity", models.NewInventoryTransfer{ProductId: 1, SourceLocationId: 1, TargetLocationId: 2, Quantity: 0}, models.ErrInvalidQuantity},
		{"same location", models.NewInventoryTransfer{ProductId: 1, SourceLocationId: 1, TargetLocationId: 1, Quantity: 1}, models.ErrSameLocation},
		{"missing source", models.NewInventoryTransfer{ProductId: 1, SourceLocationId: 9, TargetLocationId: 2, Quantity: 1}, models.ErrInsufficientOnHand},
		{"missing lot", models.NewInventoryTransfer{ProductId: 1, SourceLocationId: 1, TargetLocationId: 2, Quantity: 1, LotNumber: lot("nope")}, models.ErrInsufficientOnHand},
		{"more than on hand", models.NewInventoryTransfer{ProductId: 1, SourceLocationId: 1, TargetLocationId: 2, Quantity: 6}, models.ErrInsufficientOnHand},
		{"committed stock", models.NewInventoryTransfer{ProductId: 1, SourceLocationId: 1, TargetLocationId: 2, Quantity: 3}, models.ErrInsufficientAvailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := tc.input
			_, err := models.TransferInventory(ctx, &input)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	records, err := models.ListInventory(ctx, 1)
	require.NoError(t, err)
	require.Len(t, records, 1, "failed transfers leave no partial records")
	assert.Equal(t, 5, records[0].OnHandQty)
	assert.Equal(t, 3, records[0].CommittedQty)
}
