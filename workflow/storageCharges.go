package workflow

import (
	"context"
	"time"

	"github.com/mmdatafocus/fulfillment_backend/config"
	"github.com/mmdatafocus/fulfillment_backend/models"
	"github.com/mmdatafocus/fulfillment_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type StorageChargeSummary struct {
	ChargeDate       time.Time       `json:"charge_date"`
	TenantsProcessed int             `json:"tenants_processed"`
	ChargesCreated   int             `json:"charges_created"`
	ChargesSkipped   int             `json:"charges_skipped"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
}

type productAvailability struct {
	ProductId int
	Available int
}

// CalculateDailyStorageCharges charges every tenant with a storage rate for the
// stock it holds on chargeDate: one row per product, amount = available x rate.
// Products retired in the directory are not charged. Running it twice for the
// same day creates nothing new.
func CalculateDailyStorageCharges(ctx context.Context, chargeDate time.Time) (*StorageChargeSummary, error) {
	logger := config.GetLogger()
	ctx = utils.SetSkipTenantScopeInContext(ctx, true)
	day := utils.StartOfDay(chargeDate)
	summary := &StorageChargeSummary{ChargeDate: day}

	var tariffs []*models.Tariff
	if err := config.GetDB().WithContext(ctx).Where("storage_rate > ?", 0).Order("id").Find(&tariffs).Error; err != nil {
		return nil, err
	}

	for _, tariff := range tariffs {
		lockName := "storageCharges:" + tariff.TenantId
		err := config.GetDB().WithContext(ctx).Connection(func(pinned *gorm.DB) error {
			// every statement below starts clean but stays on the pinned connection
			conn := pinned.Session(&gorm.Session{NewDB: true})
			if err := AcquireJobLock(conn, lockName); err != nil {
				return err
			}
			defer ReleaseJobLock(conn, lockName)
			return chargeTenantStorage(conn, tariff, day, summary)
		})
		if err != nil {
			config.LogError(logger, "StorageCharges", "CalculateDailyStorageCharges", "charge tenant storage", tariff.TenantId, err)
			return summary, err
		}
		summary.TenantsProcessed++
	}

	logger.WithFields(logrus.Fields{
		"field":   "CalculateDailyStorageCharges",
		"date":    day.Format("2006-01-02"),
		"tenants": summary.TenantsProcessed,
		"created": summary.ChargesCreated,
		"skipped": summary.ChargesSkipped,
	}).Info("storage charges calculated")
	return summary, nil
}

func chargeTenantStorage(db *gorm.DB, tariff *models.Tariff, day time.Time, summary *StorageChargeSummary) error {
	var rows []productAvailability
	err := db.Model(&models.InventoryRecord{}).
		Select("inventory_records.product_id, SUM(inventory_records.on_hand_qty - inventory_records.committed_qty) AS available").
		Joins("LEFT JOIN products ON products.id = inventory_records.product_id AND products.tenant_id = inventory_records.tenant_id").
		Where("inventory_records.tenant_id = ?", tariff.TenantId).
		Where("products.id IS NULL OR products.is_active = ?", true).
		Group("inventory_records.product_id").
		Having("SUM(inventory_records.on_hand_qty - inventory_records.committed_qty) > ?", 0).
		Order("inventory_records.product_id").
		Scan(&rows).Error
	if err != nil {
		return err
	}

	for _, row := range rows {
		charge := models.StorageCharge{
			TenantId:   tariff.TenantId,
			ChargeDate: day,
			ProductId:  row.ProductId,
			Quantity:   row.Available,
			Rate:       tariff.StorageRate,
			Amount:     tariff.StorageRate.Mul(decimal.NewFromInt(int64(row.Available))),
		}
		result := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&charge)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			summary.ChargesSkipped++
			continue
		}
		summary.ChargesCreated++
		summary.TotalAmount = summary.TotalAmount.Add(charge.Amount)
	}
	return nil
}
