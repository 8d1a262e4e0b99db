package models

import (
	"context"
	"fmt"
	"time"

	"github.com/mmdatafocus/fulfillment_backend/config"
	"github.com/mmdatafocus/fulfillment_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TransferRecord documents one location-to-location move.
type TransferRecord struct {
	ID               int       `gorm:"primary_key" json:"id"`
	TenantId         string    `gorm:"size:64;index;not null" json:"tenant_id"`
	ProductId        int       `gorm:"not null" json:"product_id"`
	SourceLocationId int       `gorm:"not null" json:"source_location_id"`
	TargetLocationId int       `gorm:"not null" json:"target_location_id"`
	SourceRecordId   int       `gorm:"not null" json:"source_record_id"`
	TargetRecordId   int       `gorm:"not null" json:"target_record_id"`
	LotNumber        *string   `gorm:"size:100;default:null" json:"lot_number"`
	Quantity         int       `gorm:"not null" json:"quantity"`
	CreatedBy        string    `gorm:"size:100" json:"created_by"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (TransferRecord) TableName() string {
	return "inventory_transfers"
}

type NewInventoryTransfer struct {
	ProductId        int        `json:"product_id" binding:"required"`
	SourceLocationId int        `json:"source_location_id" binding:"required"`
	TargetLocationId int        `json:"target_location_id" binding:"required"`
	Quantity         int        `json:"quantity"`
	LotNumber        *string    `json:"lot_number"`
	ExpiryDate       *time.Time `json:"expiry_date"`
}

// TransferInventory moves uncommitted on-hand stock of one lot between locations.
// The target record inherits lot, expiry and received_at from the source.
func TransferInventory(ctx context.Context, input *NewInventoryTransfer) (*TransferRecord, error) {
	tenantId, err := requireTenant(ctx)
	if err != nil {
		return nil, err
	}
	if input.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if input.SourceLocationId == input.TargetLocationId {
		return nil, ErrSameLocation
	}

	key := stockKey(normalizeLot(input.LotNumber), normalizeExpiry(input.ExpiryDate))

	var transfer *TransferRecord
	err = runLedgerTx(ctx, func(tx *gorm.DB) error {
		// both rows in id order
		var rows []*InventoryRecord
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("tenant_id = ? AND product_id = ? AND stock_key = ? AND location_id IN ?",
				tenantId, input.ProductId, key, []int{input.SourceLocationId, input.TargetLocationId}).
			Order("id").
			Find(&rows).Error
		if err != nil {
			return err
		}

		var source, target *InventoryRecord
		for _, r := range rows {
			if r.LocationId == input.SourceLocationId {
				source = r
			} else {
				target = r
			}
		}
		if source == nil || source.OnHandQty < input.Quantity {
			have := 0
			if source != nil {
				have = source.OnHandQty
			}
			return fmt.Errorf("%w: product %d at location %d has %d, need %d",
				ErrInsufficientOnHand, input.ProductId, input.SourceLocationId, have, input.Quantity)
		}
		if source.AvailableQty() < input.Quantity {
			return fmt.Errorf("%w: product %d at location %d has %d uncommitted, need %d",
				ErrInsufficientAvailable, input.ProductId, input.SourceLocationId, source.AvailableQty(), input.Quantity)
		}

		source.OnHandQty -= input.Quantity
		if err := saveRecordQuantities(tx, source); err != nil {
			return err
		}

		if target == nil {
			target = &InventoryRecord{
				TenantId:   tenantId,
				ProductId:  input.ProductId,
				LocationId: input.TargetLocationId,
				StockKey:   source.StockKey,
				LotNumber:  source.LotNumber,
				ExpiryDate: source.ExpiryDate,
				OnHandQty:  input.Quantity,
				ReceivedAt: source.ReceivedAt,
			}
			if err := tx.Create(target).Error; err != nil {
				return err
			}
		} else {
			target.OnHandQty += input.Quantity
			if err := saveRecordQuantities(tx, target); err != nil {
				return err
			}
		}

		transfer = &TransferRecord{
			TenantId:         tenantId,
			ProductId:        input.ProductId,
			SourceLocationId: input.SourceLocationId,
			TargetLocationId: input.TargetLocationId,
			SourceRecordId:   source.ID,
			TargetRecordId:   target.ID,
			LotNumber:        source.LotNumber,
			Quantity:         input.Quantity,
			CreatedBy:        utils.GetActorFromContext(ctx),
		}
		return tx.Create(transfer).Error
	})
	if err != nil {
		return nil, err
	}
	return transfer, nil
}

func GetTransfers(ctx context.Context, productId int) ([]*TransferRecord, error) {
	tenantId, err := requireTenant(ctx)
	if err != nil {
		return nil, err
	}
	dbCtx := config.GetDB().WithContext(ctx).Where("tenant_id = ?", tenantId)
	if productId > 0 {
		dbCtx = dbCtx.Where("product_id = ?", productId)
	}
	var transfers []*TransferRecord
	err = dbCtx.Order("id").Find(&transfers).Error
	return transfers, err
}
