package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmdatafocus/fulfillment_backend/config"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const tariffCacheTTL = 5 * time.Minute

// Tariff holds a tenant's fulfillment rates. ProcessingRate and PackagingRate
// are charged per order; StorageRate per available unit per day.
type Tariff struct {
	ID             int             `gorm:"primary_key" json:"id"`
	TenantId       string          `gorm:"size:64;uniqueIndex;not null" json:"tenant_id"`
	ProcessingRate decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"processing_rate"`
	StorageRate    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"storage_rate"`
	PackagingRate  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"packaging_rate"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// Integration is a tenant's marketplace connection. Orders imported through it
// carry its id and pay its marketplace fee.
type Integration struct {
	ID          int       `gorm:"primary_key" json:"id"`
	TenantId    string    `gorm:"size:64;index;not null" json:"tenant_id"`
	Marketplace string    `gorm:"size:50;not null" json:"marketplace"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	IsActive    *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type MarketplaceFee struct {
	ID            int             `gorm:"primary_key" json:"id"`
	IntegrationId int             `gorm:"index;not null" json:"integration_id"`
	FeeType       FeeType         `gorm:"size:20;not null" json:"fee_type"`
	FeeValue      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"fee_value"`
	IsActive      *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// StorageCharge is one day of storage for one product. OrderId is set when the
// charge is attributed to an order; unattributed charges only show up in
// period reports.
type StorageCharge struct {
	ID         int             `gorm:"primary_key" json:"id"`
	TenantId   string          `gorm:"size:64;not null;uniqueIndex:idx_storage_charge_day,priority:1" json:"tenant_id"`
	ChargeDate time.Time       `gorm:"type:date;not null;uniqueIndex:idx_storage_charge_day,priority:2" json:"charge_date"`
	ProductId  int             `gorm:"not null;uniqueIndex:idx_storage_charge_day,priority:3" json:"product_id"`
	OrderId    *int            `gorm:"index;default:null" json:"order_id"`
	Quantity   int             `gorm:"not null" json:"quantity"`
	Rate       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"rate"`
	Amount     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// FeeRule is how a marketplace charges an order: PercentFee or FixedFee.
type FeeRule interface {
	Fee(revenue decimal.Decimal) decimal.Decimal
	feeRule()
}

// PercentFee charges Rate percent of revenue (Rate 15 means 15%).
type PercentFee struct {
	Rate decimal.Decimal
}

type FixedFee struct {
	Amount decimal.Decimal
}

func (f PercentFee) Fee(revenue decimal.Decimal) decimal.Decimal {
	return revenue.Mul(f.Rate).Div(decimal.NewFromInt(100)).Round(4)
}

func (f FixedFee) Fee(decimal.Decimal) decimal.Decimal {
	return f.Amount
}

func (PercentFee) feeRule() {}
func (FixedFee) feeRule()   {}

func (m MarketplaceFee) Rule() (FeeRule, error) {
	switch m.FeeType {
	case FeeTypePercent:
		return PercentFee{Rate: m.FeeValue}, nil
	case FeeTypeFixed:
		return FixedFee{Amount: m.FeeValue}, nil
	}
	return nil, fmt.Errorf("unknown marketplace fee type %q", m.FeeType)
}

func tariffCacheKey(tenantId string) string {
	return "tariff:" + tenantId
}

// GetTenantTariff returns nil without error when the tenant has no tariff.
func GetTenantTariff(ctx context.Context) (*Tariff, error) {
	tenantId, err := requireTenant(ctx)
	if err != nil {
		return nil, err
	}

	var tariff Tariff
	if exists, err := config.GetCachedObject(ctx, tariffCacheKey(tenantId), &tariff); err == nil && exists {
		return &tariff, nil
	}

	err = config.GetDB().WithContext(ctx).Where("tenant_id = ?", tenantId).First(&tariff).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if err := config.SetCachedObject(ctx, tariffCacheKey(tenantId), &tariff, tariffCacheTTL); err != nil {
		config.LogError(config.GetLogger(), "Finance", "GetTenantTariff", "cache tariff", tenantId, err)
	}
	return &tariff, nil
}

// GetActiveFeeRule returns the integration's active fee rule, or nil when it
// has none. Integrations of other tenants are treated as absent.
func GetActiveFeeRule(ctx context.Context, integrationId int) (FeeRule, error) {
	tenantId, err := requireTenant(ctx)
	if err != nil {
		return nil, err
	}
	db := config.GetDB().WithContext(ctx)

	var count int64
	if err := db.Model(&Integration{}).Where("tenant_id = ? AND id = ?", tenantId, integrationId).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}

	var fee MarketplaceFee
	err = db.Where("integration_id = ? AND is_active = ?", integrationId, true).Order("id DESC").First(&fee).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return fee.Rule()
}
