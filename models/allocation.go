package models

import (
	"context"
	"fmt"
	"sort"

	"github.com/mmdatafocus/fulfillment_backend/config"
	"github.com/mmdatafocus/fulfillment_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AllocationLine struct {
	OrderLineId  int            `json:"order_line_id"`
	ProductId    int            `json:"product_id"`
	Ordered      int            `json:"ordered"`
	Allocated    int            `json:"allocated"`
	Committed    int            `json:"committed"`
	Shortage     int            `json:"shortage"`
	Reservations []*Reservation `json:"reservations"`
}

// AllocationResult reports what one allocation pass committed. Shortage is a
// normal outcome, not an error.
type AllocationResult struct {
	OrderId int               `json:"order_id"`
	Status  OrderStatus       `json:"status"`
	Lines   []*AllocationLine `json:"lines"`
}

func (r *AllocationResult) TotalAllocated() int {
	total := 0
	for _, l := range r.Lines {
		total += l.Allocated
	}
	return total
}

func (r *AllocationResult) TotalShortage() int {
	total := 0
	for _, l := range r.Lines {
		total += l.Shortage
	}
	return total
}

// SortForAllocation orders records first-expiry-first-out with undated stock
// last, then first-in-first-out by received_at, then by id.
func SortForAllocation(records []*InventoryRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		switch {
		case a.ExpiryDate != nil && b.ExpiryDate == nil:
			return true
		case a.ExpiryDate == nil && b.ExpiryDate != nil:
			return false
		case a.ExpiryDate != nil && !a.ExpiryDate.Equal(*b.ExpiryDate):
			return a.ExpiryDate.Before(*b.ExpiryDate)
		}
		if !a.ReceivedAt.Equal(b.ReceivedAt) {
			return a.ReceivedAt.Before(b.ReceivedAt)
		}
		return a.ID < b.ID
	})
}

// AllocateOrder commits available stock to every line of the order.
func AllocateOrder(ctx context.Context, orderId int) (*AllocationResult, error) {
	tenantId, err := requireTenant(ctx)
	if err != nil {
		return nil, err
	}
	release, err := utils.OrderLock(ctx, tenantId, orderId, "Allocation", "AllocateOrder")
	defer release()
	if err != nil {
		return nil, err
	}

	var result *AllocationResult
	err = runLedgerTx(ctx, func(tx *gorm.DB) error {
		order, err := loadOrder(tx, tenantId, orderId, true)
		if err != nil {
			return err
		}
		result, err = allocateOrderTx(tx, order)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// allocateOrderTx walks each line's candidate records in allocation order,
// reserving min(available, remaining) from each until the line is covered.
// Lines already partly committed only allocate what is still missing.
func allocateOrderTx(tx *gorm.DB, order *Order) (*AllocationResult, error) {
	if order.Status.IsClosed() {
		return nil, fmt.Errorf("%w: cannot allocate stock to %s order %d", ErrInvalidTransition, order.Status, order.ID)
	}

	result := &AllocationResult{OrderId: order.ID, Status: order.Status}
	for _, line := range order.Lines {
		allocLine := &AllocationLine{
			OrderLineId: line.ID,
			ProductId:   line.ProductId,
			Ordered:     line.OrderedQty,
		}
		remaining := line.RemainingQty()

		if remaining > 0 {
			var candidates []*InventoryRecord
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("tenant_id = ? AND product_id = ? AND on_hand_qty > committed_qty", order.TenantId, line.ProductId).
				Order("id").
				Find(&candidates).Error
			if err != nil {
				return nil, err
			}
			SortForAllocation(candidates)

			for _, record := range candidates {
				if remaining == 0 {
					break
				}
				take := min(record.AvailableQty(), remaining)
				if take <= 0 {
					continue
				}
				record.CommittedQty += take
				if err := saveRecordQuantities(tx, record); err != nil {
					return nil, err
				}
				reservation := &Reservation{
					OrderId:           order.ID,
					OrderLineId:       line.ID,
					InventoryRecordId: record.ID,
					ProductId:         line.ProductId,
					LocationId:        record.LocationId,
					Quantity:          take,
					Status:            ReservationStatusReserved,
				}
				if err := tx.Create(reservation).Error; err != nil {
					return nil, err
				}
				allocLine.Reservations = append(allocLine.Reservations, reservation)
				allocLine.Allocated += take
				line.CommittedQty += take
				remaining -= take
			}
		}

		line.ShortageQty = remaining
		if err := saveLineQuantities(tx, line); err != nil {
			return nil, err
		}
		allocLine.Committed = line.CommittedQty
		allocLine.Shortage = line.ShortageQty
		result.Lines = append(result.Lines, allocLine)
	}

	config.GetLogger().WithFields(logrus.Fields{
		"field":     "allocateOrderTx",
		"tenant_id": order.TenantId,
		"order_id":  order.ID,
		"allocated": result.TotalAllocated(),
		"shortage":  result.TotalShortage(),
	}).Info("order allocated")
	return result, nil
}
