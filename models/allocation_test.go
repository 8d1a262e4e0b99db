package models_test

import (
	"sync"
	"testing"
	"time"

	"github.com/mmdatafocus/fulfillment_backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSortForAllocation(t *testing.T) {
	jan := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	feb := jan.AddDate(0, 1, 0)
	records := []*models.InventoryRecord{
		{ID: 1, ExpiryDate: nil, ReceivedAt: jan},
		{ID: 2, ExpiryDate: date("2027-05-01"), ReceivedAt: jan},
		{ID: 3, ExpiryDate: date("2027-01-01"), ReceivedAt: feb},
		{ID: 4, ExpiryDate: date("2027-01-01"), ReceivedAt: jan},
		{ID: 5, ExpiryDate: nil, ReceivedAt: jan},
		{ID: 6, ExpiryDate: nil, ReceivedAt: jan.Add(-time.Hour)},
	}

	models.SortForAllocation(records)

	ids := make([]int, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []int{4, 3, 2, 6, 1, 5}, ids)
}

func TestAllocateOrderFirstExpiryFirstOut(t *testing.T) {
	ctx := setupLedger(t)
	late := receive(t, ctx, models.NewInventoryReceipt{ProductId: 1, LocationId: 1, Quantity: 5, LotNumber: lot("LATE"), ExpiryDate: date("2027-12-01")})
	undated := receive(t, ctx, models.NewInventoryReceipt{ProductId: 1, LocationId: 1, Quantity: 5, ReceivedAt: date("2025-01-01")})
	early := receive(t, ctx, models.NewInventoryReceipt{ProductId: 1, LocationId: 2, Quantity: 5, LotNumber: lot("EARLY"), ExpiryDate: date("2027-02-01")})
	order := createOrder(t, ctx, models.NewOrderLine{ProductId: 1, OrderedQty: 12})

	result, err := models.AllocateOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, result.Lines, 1)
	line := result.Lines[0]
	assert.Equal(t, 12, line.Allocated)
	assert.Equal(t, 0, line.Shortage)

	require.Len(t, line.Reservations, 3)
	assert.Equal(t, early.ID, line.Reservations[0].InventoryRecordId)
	assert.Equal(t, 5, line.Reservations[0].Quantity)
	assert.Equal(t, 2, line.Reservations[0].LocationId)
	assert.Equal(t, late.ID, line.Reservations[1].InventoryRecordId)
	assert.Equal(t, 5, line.Reservations[1].Quantity)
	assert.Equal(t, undated.ID, line.Reservations[2].InventoryRecordId, "undated stock goes last even when oldest")
	assert.Equal(t, 2, line.Reservations[2].Quantity)

	assert.Equal(t, 3, available(t, ctx, 1))
	assert.Equal(t, 2, recordById(t, ctx, 1, undated.ID).CommittedQty)
}

func TestAllocateOrderFirstInFirstOutWithoutExpiry(t *testing.T) {
	ctx := setupLedger(t)
	newer := receive(t, ctx, models.NewInventoryReceipt{ProductId: 1, LocationId: 1, Quantity: 4, LotNumber: lot("B"), ReceivedAt: date("2026-03-01")})
	older := receive(t, ctx, models.NewInventoryReceipt{ProductId: 1, LocationId: 1, Quantity: 4, LotNumber: lot("A"), ReceivedAt: date("2026-01-01")})
	order := createOrder(t, ctx, models.NewOrderLine{ProductId: 1, OrderedQty: 5})

	result, err := models.AllocateOrder(ctx, order.ID)
	require.NoError(t, err)
	res := result.Lines[0].Reservations
	require.Len(t, res, 2)
	assert.Equal(t, older.ID, res[0].InventoryRecordId)
	assert.Equal(t, 4, res[0].Quantity)
	assert.Equal(t, newer.ID, res[1].InventoryRecordId)
	assert.Equal(t, 1, res[1].Quantity)
}

func TestAllocateOrderShortageIsNotAnError(t *testing.T) {
	ctx := setupLedger(t)
	receive(t, ctx, models.NewInventoryReceipt{ProductId: 1, LocationId: 1, Quantity: 3})
	order := createOrder(t, ctx,
		models.NewOrderLine{ProductId: 1, OrderedQty: 5},
		models.NewOrderLine{ProductId: 2, OrderedQty: 2},
	)

	result, err := models.AllocateOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, result.TotalAllocated())
	assert.Equal(t, 4, result.TotalShortage())
	assert.Equal(t, 2, result.Lines[0].Shortage)
	assert.Equal(t, 2, result.Lines[1].Shortage)
	assert.Empty(t, result.Lines[1].Reservations)

	stored, err := models.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, stored.HasShortage())
	assert.Equal(t, 3, stored.Lines[0].CommittedQty)
	assert.Equal(t, 2, stored.Lines[0].ShortageQty)
}

func TestAllocateOrderTopsUpAfterRestock(t *testing.T) {
	ctx := setupLedger(t)
	receive(t, ctx, models.NewInventoryReceipt{ProductId: 1, LocationId: 1, Quantity: 3})
	order := createOrder(t, ctx, models.NewOrderLine{ProductId: 1, OrderedQty: 5})
	_, err := models.AllocateOrder(ctx, order.ID)
	require.NoError(t, err)

	receive(t, ctx, models.NewInventoryReceipt{ProductId: 1, LocationId: 1, Quantity: 10})
	result, err := models.AllocateOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Lines[0].Allocated)
	assert.Equal(t, 5, result.Lines[0].Committed)
	assert.Equal(t, 0, result.Lines[0].Shortage)
	assert.Equal(t, 8, available(t, ctx, 1))

	again, err := models.AllocateOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, again.TotalAllocated(), "a fully committed order allocates nothing more")
}

func TestAllocateOrderIsDeterministic(t *testing.T) {
	pick := func() []int {
		ctx := setupLedger(t)
		receive(t, ctx, models.NewInventoryReceipt{ProductId: 1, LocationId: 3, Quantity: 2, ReceivedAt: date("2026-01-01")})
		receive(t, ctx, models.NewInventoryReceipt{ProductId: 1, LocationId: 1, Quantity: 2, ReceivedAt: date("2026-01-01")})
		receive(t, ctx, models.NewInventoryReceipt{ProductId: 1, LocationId: 2, Quantity: 2, ReceivedAt: date("2026-01-01")})
		order := createOrder(t, ctx, models.NewOrderLine{ProductId: 1, OrderedQty: 3})
		result, err := models.AllocateOrder(ctx, order.ID)
		require.NoError(t, err)
		var locations []int
		for _, r := range result.Lines[0].Reservations {
			locations = append(locations, r.LocationId)
		}
		return locations
	}
	assert.Equal(t, []int{3, 1}, pick())
	assert.Equal(t, []int{3, 1}, pick())
}

func TestAllocateOrderRejectsClosedOrder(t *testing.T) {
	ctx := setupLedger(t)
	receive(t, ctx, models.NewInventoryReceipt{ProductId: 1, LocationId: 1, Quantity: 3})
	order := createOrder(t, ctx, models.NewOrderLine{ProductId: 1, OrderedQty: 1})
	_, err := models.CancelOrder(ctx, order.ID, "customer request")
	require.NoError(t, err)

	_, err = models.AllocateOrder(ctx, order.ID)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
	assert.Equal(t, 3, available(t, ctx, 1))
}

func TestAllocateOrderNotFound(t *testing.T) {
	ctx := setupLedger(t)
	_, err := models.AllocateOrder(ctx, 404)
	assert.ErrorIs(t, err, models.ErrOrderNotFound)
}

func TestConcurrentAllocationsNeverOvercommit(t *testing.T) {
	ctx := setupLedger(t)
	receive(t, ctx, models.NewInventoryReceipt{ProductId: 1, LocationId: 1, Quantity: 10})
	first := createOrder(t, ctx, models.NewOrderLine{ProductId: 1, OrderedQty: 8})
	second := createOrder(t, ctx, models.NewOrderLine{ProductId: 1, OrderedQty: 8})

	var wg sync.WaitGroup
	results := make([]*models.AllocationResult, 2)
	errs := make([]error, 2)
	for i, id := range []int{first.ID, second.ID} {
		wg.Add(1)
		go func(i, id int) {
			defer wg.Done()
			errs[i] = models.RetryOnConflict(ctx, func() error {
				var err error
				results[i], err = models.AllocateOrder(ctx, id)
				return err
			})
		}(i, id)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	committed := []int{results[0].Lines[0].Committed, results[1].Lines[0].Committed}
	shortages := []int{results[0].Lines[0].Shortage, results[1].Lines[0].Shortage}
	assert.ElementsMatch(t, []int{8, 2}, committed)
	assert.ElementsMatch(t, []int{0, 6}, shortages)
	assert.Equal(t, 0, available(t, ctx, 1))

	records, err := models.ListInventory(ctx, 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 10, records[0].CommittedQty)
	assert.Equal(t, 10, records[0].OnHandQty)
}
