package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/fulfillment_backend/config"
)

// OrderStatusChange is the append-only audit trail of order transitions.
type OrderStatusChange struct {
	ID        int         `gorm:"primary_key" json:"id"`
	TenantId  string      `gorm:"size:64;index;not null" json:"tenant_id"`
	OrderId   int         `gorm:"index;not null" json:"order_id"`
	OldStatus OrderStatus `gorm:"size:20" json:"old_status"`
	NewStatus OrderStatus `gorm:"size:20;not null" json:"new_status"`
	Reason    string      `gorm:"size:255" json:"reason"`
	ChangedBy string      `gorm:"size:100" json:"changed_by"`
	ChangedAt time.Time   `gorm:"autoCreateTime" json:"changed_at"`
}

func GetOrderStatusHistory(ctx context.Context, orderId int) ([]*OrderStatusChange, error) {
	tenantId, err := requireTenant(ctx)
	if err != nil {
		return nil, err
	}
	db := config.GetDB().WithContext(ctx)
	if _, err := loadOrder(db, tenantId, orderId, false); err != nil {
		return nil, err
	}
	var changes []*OrderStatusChange
	err = db.Where("tenant_id = ? AND order_id = ?", tenantId, orderId).Order("id").Find(&changes).Error
	return changes, err
}
