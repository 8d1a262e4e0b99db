package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/fulfillment_backend/config"
)

// Reservation ties committed quantity of one inventory record to one order
// line. Release deletes it; fulfillment keeps it as a fulfilled row.
type Reservation struct {
	ID                int               `gorm:"primary_key" json:"id"`
	OrderId           int               `gorm:"index;not null" json:"order_id"`
	OrderLineId       int               `gorm:"index;not null" json:"order_line_id"`
	InventoryRecordId int               `gorm:"index;not null" json:"inventory_record_id"`
	ProductId         int               `gorm:"not null" json:"product_id"`
	LocationId        int               `gorm:"not null" json:"location_id"`
	Quantity          int               `gorm:"not null" json:"quantity"`
	Status            ReservationStatus `gorm:"size:20;not null;default:reserved;index" json:"status"`
	FulfilledAt       *time.Time        `json:"fulfilled_at"`
	CreatedAt         time.Time         `gorm:"autoCreateTime" json:"created_at"`
}

// GetOrderReservations lists reservations of an order in creation order.
func GetOrderReservations(ctx context.Context, orderId int) ([]*Reservation, error) {
	tenantId, err := requireTenant(ctx)
	if err != nil {
		return nil, err
	}
	db := config.GetDB().WithContext(ctx)
	if _, err := loadOrder(db, tenantId, orderId, false); err != nil {
		return nil, err
	}
	var reservations []*Reservation
	err = db.Where("order_id = ?", orderId).Order("id").Find(&reservations).Error
	return reservations, err
}
