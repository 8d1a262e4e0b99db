package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/fulfillment_backend/config"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is the read-only product directory maintained by catalog sync.
// The ledger treats product ids as opaque; this table only feeds cost
// snapshots and low-stock thresholds.
type Product struct {
	ID            int             `gorm:"primary_key" json:"id"`
	TenantId      string          `gorm:"size:64;index;not null" json:"tenant_id"`
	Sku           string          `gorm:"size:100;not null" json:"sku"`
	Name          string          `gorm:"size:255;not null" json:"name"`
	CostPrice     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"cost_price"`
	MinStockLevel int             `gorm:"not null;default:0" json:"min_stock_level"`
	IsActive      *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func GetProduct(ctx context.Context, id int) (*Product, error) {
	tenantId, err := requireTenant(ctx)
	if err != nil {
		return nil, err
	}
	var product Product
	err = config.GetDB().WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantId, id).First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("product not found")
		}
		return nil, err
	}
	return &product, nil
}

// productCostPrices maps product id to cost price; unknown products are absent.
func productCostPrices(db *gorm.DB, tenantId string, productIds []int) (map[int]decimal.Decimal, error) {
	var products []Product
	err := db.Select("id", "cost_price").
		Where("tenant_id = ? AND id IN ?", tenantId, productIds).
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	costs := make(map[int]decimal.Decimal, len(products))
	for _, p := range products {
		costs[p.ID] = p.CostPrice
	}
	return costs, nil
}
