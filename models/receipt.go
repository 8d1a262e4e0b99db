package models

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/fulfillment_backend/config"
	"github.com/mmdatafocus/fulfillment_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Receipt documents one inbound delivery. Each item points at the inventory
// record it was posted to.
type Receipt struct {
	ID            int            `gorm:"primary_key" json:"id"`
	TenantId      string         `gorm:"size:64;not null;uniqueIndex:idx_receipt_number,priority:1" json:"tenant_id"`
	ReceiptNumber string         `gorm:"size:50;not null;uniqueIndex:idx_receipt_number,priority:2" json:"receipt_number"`
	Supplier      string         `gorm:"size:255" json:"supplier"`
	Notes         string         `gorm:"type:text" json:"notes"`
	CreatedBy     string         `gorm:"size:100" json:"created_by"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"created_at"`
	Items         []*ReceiptItem `gorm:"foreignKey:ReceiptId" json:"items"`
}

type ReceiptItem struct {
	ID                int        `gorm:"primary_key" json:"id"`
	ReceiptId         int        `gorm:"index;not null" json:"receipt_id"`
	ProductId         int        `gorm:"not null" json:"product_id"`
	LocationId        int        `gorm:"not null" json:"location_id"`
	InventoryRecordId int        `gorm:"not null" json:"inventory_record_id"`
	LotNumber         *string    `gorm:"size:100;default:null" json:"lot_number"`
	ExpiryDate        *time.Time `gorm:"type:date;default:null" json:"expiry_date"`
	Quantity          int        `gorm:"not null" json:"quantity"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

type NewReceipt struct {
	ReceiptNumber string                `json:"receipt_number" binding:"max=50"`
	Supplier      string                `json:"supplier"`
	Notes         string                `json:"notes"`
	Items         []NewInventoryReceipt `json:"items" binding:"required,min=1,dive"`
}

func generateReceiptNumber() string {
	return fmt.Sprintf("RCP-%s-%s", time.Now().UTC().Format("20060102"), strings.ToUpper(uuid.NewString()[:8]))
}

// CreateReceipt posts every item to the ledger and records the document, all
// in one transaction.
func CreateReceipt(ctx context.Context, input *NewReceipt) (*Receipt, error) {
	receipt, _, err := postReceipt(ctx, input)
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

func GetReceipt(ctx context.Context, id int) (*Receipt, error) {
	tenantId, err := requireTenant(ctx)
	if err != nil {
		return nil, err
	}
	var receipt Receipt
	err = config.GetDB().WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("receipt_items.id") }).
		Where("tenant_id = ? AND id = ?", tenantId, id).
		First(&receipt).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: receipt %d", utils.ErrorRecordNotFound, id)
		}
		return nil, err
	}
	return &receipt, nil
}

// postReceipt returns the receipt and the posted record of each item, in input order.
func postReceipt(ctx context.Context, input *NewReceipt) (*Receipt, []*InventoryRecord, error) {
	tenantId, err := requireTenant(ctx)
	if err != nil {
		return nil, nil, err
	}
	if len(input.Items) == 0 {
		return nil, nil, errors.New("receipt requires at least one item")
	}
	for _, item := range input.Items {
		if item.Quantity <= 0 {
			return nil, nil, fmt.Errorf("%w: product %d", ErrInvalidQuantity, item.ProductId)
		}
	}

	receipt := &Receipt{
		TenantId:      tenantId,
		ReceiptNumber: strings.TrimSpace(input.ReceiptNumber),
		Supplier:      input.Supplier,
		Notes:         input.Notes,
		CreatedBy:     utils.GetActorFromContext(ctx),
	}
	if receipt.ReceiptNumber == "" {
		receipt.ReceiptNumber = generateReceiptNumber()
	} else {
		var count int64
		err := config.GetDB().WithContext(ctx).Model(&Receipt{}).
			Where("tenant_id = ? AND receipt_number = ?", tenantId, receipt.ReceiptNumber).
			Count(&count).Error
		if err != nil {
			return nil, nil, err
		}
		if count > 0 {
			return nil, nil, fmt.Errorf("receipt number %q already exists", receipt.ReceiptNumber)
		}
	}

	// records are locked in identity order, whatever order the items came in
	postOrder := make([]int, len(input.Items))
	keys := make([]string, len(input.Items))
	for i, item := range input.Items {
		postOrder[i] = i
		keys[i] = stockKey(normalizeLot(item.LotNumber), normalizeExpiry(item.ExpiryDate))
	}
	sort.SliceStable(postOrder, func(a, b int) bool {
		x, y := input.Items[postOrder[a]], input.Items[postOrder[b]]
		if x.ProductId != y.ProductId {
			return x.ProductId < y.ProductId
		}
		if x.LocationId != y.LocationId {
			return x.LocationId < y.LocationId
		}
		return keys[postOrder[a]] < keys[postOrder[b]]
	})

	records := make([]*InventoryRecord, len(input.Items))
	err = runLedgerTx(ctx, func(tx *gorm.DB) error {
		receipt.ID, receipt.Items = 0, nil
		if err := tx.Create(receipt).Error; err != nil {
			return err
		}
		for _, i := range postOrder {
			record, err := receiveTx(tx, tenantId, &input.Items[i], keys[i])
			if err != nil {
				return err
			}
			records[i] = record
		}
		items := make([]*ReceiptItem, 0, len(input.Items))
		for i, item := range input.Items {
			items = append(items, &ReceiptItem{
				ReceiptId:         receipt.ID,
				ProductId:         item.ProductId,
				LocationId:        item.LocationId,
				InventoryRecordId: records[i].ID,
				LotNumber:         records[i].LotNumber,
				ExpiryDate:        records[i].ExpiryDate,
				Quantity:          item.Quantity,
			})
		}
		if err := tx.Create(&items).Error; err != nil {
			return err
		}
		receipt.Items = items
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	config.GetLogger().WithFields(logrus.Fields{
		"field":          "postReceipt",
		"tenant_id":      tenantId,
		"receipt_number": receipt.ReceiptNumber,
		"items":          len(receipt.Items),
	}).Info("receipt posted")
	return receipt, records, nil
}
