package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/fulfillment_backend/config"
	"github.com/mmdatafocus/fulfillment_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InventoryRecord is one stock position: a product at a location, split by lot
// (or by expiry date for lot-less stock). Available = OnHandQty - CommittedQty.
type InventoryRecord struct {
	ID           int        `gorm:"primary_key" json:"id"`
	TenantId     string     `gorm:"size:64;not null;uniqueIndex:idx_inventory_identity,priority:1" json:"tenant_id"`
	ProductId    int        `gorm:"not null;uniqueIndex:idx_inventory_identity,priority:2;index" json:"product_id"`
	LocationId   int        `gorm:"not null;uniqueIndex:idx_inventory_identity,priority:3" json:"location_id"`
	StockKey     string     `gorm:"size:150;not null;uniqueIndex:idx_inventory_identity,priority:4" json:"-"`
	LotNumber    *string    `gorm:"size:100;default:null" json:"lot_number"`
	ExpiryDate   *time.Time `gorm:"type:date;default:null" json:"expiry_date"`
	OnHandQty    int        `gorm:"not null;default:0" json:"on_hand_qty"`
	CommittedQty int        `gorm:"not null;default:0" json:"committed_qty"`
	ReceivedAt   time.Time  `gorm:"not null" json:"received_at"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewInventoryReceipt struct {
	ProductId  int        `json:"product_id" binding:"required"`
	LocationId int        `json:"location_id" binding:"required"`
	Quantity   int        `json:"quantity"`
	LotNumber  *string    `json:"lot_number"`
	ExpiryDate *time.Time `json:"expiry_date"`
	ReceivedAt *time.Time `json:"received_at"`
}

func (r InventoryRecord) AvailableQty() int {
	return r.OnHandQty - r.CommittedQty
}

func (r *InventoryRecord) BeforeSave(tx *gorm.DB) error {
	if r.OnHandQty < 0 || r.CommittedQty < 0 || r.CommittedQty > r.OnHandQty {
		return fmt.Errorf("%w: record %d on_hand=%d committed=%d", ErrLedgerInvariant, r.ID, r.OnHandQty, r.CommittedQty)
	}
	return nil
}

// stockKey is the identity of a record within (tenant, product, location).
// A lot number wins over expiry; lot-less stock is split by expiry date.
func stockKey(lotNumber *string, expiryDate *time.Time) string {
	if lot := normalizeLot(lotNumber); lot != nil {
		return "lot:" + *lot
	}
	if expiryDate != nil {
		return "nolot:" + expiryDate.UTC().Format("2006-01-02")
	}
	return "nolot:none"
}

func normalizeLot(lotNumber *string) *string {
	if lotNumber == nil {
		return nil
	}
	lot := strings.TrimSpace(*lotNumber)
	if lot == "" {
		return nil
	}
	return &lot
}

func normalizeExpiry(expiryDate *time.Time) *time.Time {
	if expiryDate == nil {
		return nil
	}
	d := utils.StartOfDay(*expiryDate)
	return &d
}

func requireTenant(ctx context.Context) (string, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok {
		return "", utils.ErrorTenantRequired
	}
	return tenantId, nil
}

// saveRecordQuantities persists the in-memory quantities of a locked record.
// BeforeSave rejects any write that breaks 0 <= committed <= on_hand.
func saveRecordQuantities(tx *gorm.DB, r *InventoryRecord) error {
	return tx.Model(r).Updates(map[string]interface{}{
		"on_hand_qty":   r.OnHandQty,
		"committed_qty": r.CommittedQty,
	}).Error
}

func lockInventoryRecord(tx *gorm.DB, tenantId string, productId int, locationId int, key string) (*InventoryRecord, error) {
	var record InventoryRecord
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND product_id = ? AND location_id = ? AND stock_key = ?", tenantId, productId, locationId, key).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// ReceiveInventory adds stock to the matching record, creating it when absent,
// and documents it as a single-item receipt.
func ReceiveInventory(ctx context.Context, input *NewInventoryReceipt) (*InventoryRecord, error) {
	_, records, err := postReceipt(ctx, &NewReceipt{Items: []NewInventoryReceipt{*input}})
	if err != nil {
		return nil, err
	}
	return records[0], nil
}

// receiveTx posts one receipt item. An existing record keeps its first
// received_at so FIFO order is stable.
func receiveTx(tx *gorm.DB, tenantId string, input *NewInventoryReceipt, key string) (*InventoryRecord, error) {
	existing, err := lockInventoryRecord(tx, tenantId, input.ProductId, input.LocationId, key)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		existing.OnHandQty += input.Quantity
		return existing, saveRecordQuantities(tx, existing)
	}

	receivedAt := time.Now().UTC()
	if input.ReceivedAt != nil {
		receivedAt = input.ReceivedAt.UTC()
	}
	record := &InventoryRecord{
		TenantId:   tenantId,
		ProductId:  input.ProductId,
		LocationId: input.LocationId,
		StockKey:   key,
		LotNumber:  normalizeLot(input.LotNumber),
		ExpiryDate: normalizeExpiry(input.ExpiryDate),
		OnHandQty:  input.Quantity,
		ReceivedAt: receivedAt,
	}
	return record, tx.Create(record).Error
}

// GetAvailableQuantity sums on_hand - committed over every record of the product.
func GetAvailableQuantity(ctx context.Context, productId int) (int, error) {
	tenantId, err := requireTenant(ctx)
	if err != nil {
		return 0, err
	}
	return availableQuantity(config.GetDB().WithContext(ctx), tenantId, productId)
}

func availableQuantity(db *gorm.DB, tenantId string, productId int) (int, error) {
	var total int64
	err := db.Model(&InventoryRecord{}).
		Where("tenant_id = ? AND product_id = ?", tenantId, productId).
		Select("COALESCE(SUM(on_hand_qty - committed_qty), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return int(total), nil
}

// ListInventory returns the tenant's stock positions; productId 0 lists all products.
func ListInventory(ctx context.Context, productId int) ([]*InventoryRecord, error) {
	tenantId, err := requireTenant(ctx)
	if err != nil {
		return nil, err
	}
	dbCtx := config.GetDB().WithContext(ctx).Where("tenant_id = ?", tenantId)
	if productId > 0 {
		dbCtx = dbCtx.Where("product_id = ?", productId)
	}
	var records []*InventoryRecord
	if err := dbCtx.Order("product_id, location_id, id").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
