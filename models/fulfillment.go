package models

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/mmdatafocus/fulfillment_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FulfillOrder consumes every outstanding reservation of the order: stock
// leaves on-hand and committed together and the lines record the pick.
func FulfillOrder(ctx context.Context, orderId int) (*Order, error) {
	return withLockedOrder(ctx, orderId, "FulfillOrder", fulfillOrderTx)
}

// ReleaseOrder returns every outstanding reservation of the order to
// available stock. On-hand is untouched; calling it twice is a no-op.
func ReleaseOrder(ctx context.Context, orderId int) (*Order, error) {
	return withLockedOrder(ctx, orderId, "ReleaseOrder", releaseOrderTx)
}

// ReserveOrder allocates stock and confirms the order, or parks it in
// awaiting_stock when any line is short.
func ReserveOrder(ctx context.Context, orderId int) (*AllocationResult, error) {
	var result *AllocationResult
	_, err := withLockedOrder(ctx, orderId, "ReserveOrder", func(tx *gorm.DB, order *Order) error {
		var err error
		result, err = allocateOrderTx(tx, order)
		if err != nil {
			return err
		}
		target := OrderStatusConfirmed
		if result.TotalShortage() > 0 {
			target = OrderStatusAwaitingStock
		}
		if err := transitionOrderTx(ctx, tx, order, target, ""); err != nil {
			return err
		}
		result.Status = order.Status
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ShipOrder fulfills the order's reservations and marks it shipped.
func ShipOrder(ctx context.Context, orderId int) (*Order, error) {
	return withLockedOrder(ctx, orderId, "ShipOrder", func(tx *gorm.DB, order *Order) error {
		if order.Status == OrderStatusShipped {
			return nil
		}
		if order.Status == OrderStatusCancelled || order.Status == OrderStatusDelivered {
			return fmt.Errorf("%w: %s order %d cannot be shipped", ErrInvalidTransition, order.Status, order.ID)
		}
		committed := 0
		for _, l := range order.Lines {
			committed += l.CommittedQty
		}
		if committed == 0 {
			return fmt.Errorf("%w: order %d has no committed stock to ship", ErrInvalidTransition, order.ID)
		}
		if err := fulfillOrderTx(tx, order); err != nil {
			return err
		}
		return transitionOrderTx(ctx, tx, order, OrderStatusShipped, "")
	})
}

func withLockedOrder(ctx context.Context, orderId int, funcName string, fn func(tx *gorm.DB, order *Order) error) (*Order, error) {
	tenantId, err := requireTenant(ctx)
	if err != nil {
		return nil, err
	}
	release, err := utils.OrderLock(ctx, tenantId, orderId, "Fulfillment", funcName)
	defer release()
	if err != nil {
		return nil, err
	}

	var order *Order
	err = runLedgerTx(ctx, func(tx *gorm.DB) error {
		order, err = loadOrder(tx, tenantId, orderId, true)
		if err != nil {
			return err
		}
		return fn(tx, order)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// outstandingReservations loads the order's reserved rows and locks their
// inventory records in id order.
func outstandingReservations(tx *gorm.DB, order *Order) ([]*Reservation, map[int]*InventoryRecord, error) {
	var reservations []*Reservation
	err := tx.Where("order_id = ? AND status = ?", order.ID, ReservationStatusReserved).
		Order("id").
		Find(&reservations).Error
	if err != nil || len(reservations) == 0 {
		return nil, nil, err
	}

	recordIds := make([]int, 0, len(reservations))
	for _, r := range reservations {
		recordIds = append(recordIds, r.InventoryRecordId)
	}
	var records []*InventoryRecord
	err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND id IN ?", order.TenantId, utils.UniqueSlice(recordIds)).
		Order("id").
		Find(&records).Error
	if err != nil {
		return nil, nil, err
	}
	byId := make(map[int]*InventoryRecord, len(records))
	for _, r := range records {
		byId[r.ID] = r
	}
	return reservations, byId, nil
}

func orderLinesById(order *Order) map[int]*OrderLine {
	lines := make(map[int]*OrderLine, len(order.Lines))
	for _, l := range order.Lines {
		lines[l.ID] = l
	}
	return lines
}

func fulfillOrderTx(tx *gorm.DB, order *Order) error {
	reservations, records, err := outstandingReservations(tx, order)
	if err != nil || len(reservations) == 0 {
		return err
	}
	lines := orderLinesById(order)

	now := time.Now().UTC()
	for _, res := range reservations {
		record, line := records[res.InventoryRecordId], lines[res.OrderLineId]
		if record == nil || line == nil {
			return fmt.Errorf("%w: reservation %d is orphaned", ErrLedgerInvariant, res.ID)
		}
		record.OnHandQty -= res.Quantity
		record.CommittedQty -= res.Quantity
		line.PickedQty += res.Quantity

		res.Status = ReservationStatusFulfilled
		res.FulfilledAt = &now
		err := tx.Model(res).Updates(map[string]interface{}{
			"status":       ReservationStatusFulfilled,
			"fulfilled_at": now,
		}).Error
		if err != nil {
			return err
		}
	}
	return saveTouched(tx, records, lines)
}

func releaseOrderTx(tx *gorm.DB, order *Order) error {
	reservations, records, err := outstandingReservations(tx, order)
	if err != nil || len(reservations) == 0 {
		return err
	}
	lines := orderLinesById(order)

	ids := make([]int, 0, len(reservations))
	for _, res := range reservations {
		record, line := records[res.InventoryRecordId], lines[res.OrderLineId]
		if record == nil || line == nil {
			return fmt.Errorf("%w: reservation %d is orphaned", ErrLedgerInvariant, res.ID)
		}
		record.CommittedQty -= res.Quantity
		line.CommittedQty -= res.Quantity
		ids = append(ids, res.ID)
	}
	if err := tx.Where("id IN ?", ids).Delete(&Reservation{}).Error; err != nil {
		return err
	}
	return saveTouched(tx, records, lines)
}

// saveTouched writes records in id order, then every line of the order.
func saveTouched(tx *gorm.DB, records map[int]*InventoryRecord, lines map[int]*OrderLine) error {
	recordIds := make([]int, 0, len(records))
	for id := range records {
		recordIds = append(recordIds, id)
	}
	sort.Ints(recordIds)
	for _, id := range recordIds {
		if err := saveRecordQuantities(tx, records[id]); err != nil {
			return err
		}
	}
	lineIds := make([]int, 0, len(lines))
	for id := range lines {
		lineIds = append(lineIds, id)
	}
	sort.Ints(lineIds)
	for _, id := range lineIds {
		if err := saveLineQuantities(tx, lines[id]); err != nil {
			return err
		}
	}
	return nil
}
