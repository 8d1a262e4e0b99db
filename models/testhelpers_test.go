package models_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/fulfillment_backend/config"
	"github.com/mmdatafocus/fulfillment_backend/models"
	"github.com/mmdatafocus/fulfillment_backend/utils"
	"github.com/stretchr/testify/require"
)

// setupLedger opens a private in-memory sqlite database, migrates it and
// returns a context scoped to a fresh tenant.
func setupLedger(t *testing.T) context.Context {
	t.Helper()
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_NAME", fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString()))
	t.Setenv("LEDGER_RETRY_BACKOFF_MS", "1")

	config.ConnectDatabaseWithRetry()
	require.NotNil(t, config.GetDB())
	t.Cleanup(func() { _ = config.CloseDatabase() })
	require.NoError(t, models.AutoMigrate())

	ctx := utils.SetTenantIdInContext(context.Background(), uuid.NewString())
	return utils.SetUserNameInContext(ctx, "tester")
}

func date(s string) *time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &d
}

func lot(s string) *string {
	return &s
}

func receive(t *testing.T, ctx context.Context, input models.NewInventoryReceipt) *models.InventoryRecord {
	t.Helper()
	record, err := models.ReceiveInventory(ctx, &input)
	require.NoError(t, err)
	return record
}

func createOrder(t *testing.T, ctx context.Context, lines ...models.NewOrderLine) *models.Order {
	t.Helper()
	order, err := models.CreateOrder(ctx, &models.NewOrder{Lines: lines})
	require.NoError(t, err)
	return order
}

func available(t *testing.T, ctx context.Context, productId int) int {
	t.Helper()
	qty, err := models.GetAvailableQuantity(ctx, productId)
	require.NoError(t, err)
	return qty
}

func recordById(t *testing.T, ctx context.Context, productId int, id int) *models.InventoryRecord {
	t.Helper()
	records, err := models.ListInventory(ctx, productId)
	require.NoError(t, err)
	for _, r := range records {
		if r.ID == id {
			return r
		}
	}
	t.Fatalf("inventory record %d not found", id)
	return nil
}
