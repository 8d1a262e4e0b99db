package models

import (
	"context"
	"fmt"
	"time"

	"github.com/mmdatafocus/fulfillment_backend/config"
	"github.com/mmdatafocus/fulfillment_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TransitionOrderStatus moves an order to target. Moving to the current status
// is a no-op. Any move is allowed except cancelling a shipped or delivered
// order; cancelling releases all outstanding reservations.
func TransitionOrderStatus(ctx context.Context, orderId int, target OrderStatus, reason string) (*Order, error) {
	tenantId, err := requireTenant(ctx)
	if err != nil {
		return nil, err
	}
	if !target.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, target)
	}
	release, err := utils.OrderLock(ctx, tenantId, orderId, "OrderStatus", "TransitionOrderStatus")
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
		return transitionOrderTx(ctx, tx, order, target, reason)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// CancelOrder cancels the order and releases its reservations.
func CancelOrder(ctx context.Context, orderId int, reason string) (*Order, error) {
	return TransitionOrderStatus(ctx, orderId, OrderStatusCancelled, reason)
}

func transitionOrderTx(ctx context.Context, tx *gorm.DB, order *Order, target OrderStatus, reason string) error {
	if !target.IsValid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, target)
	}
	if order.Status == target {
		return nil
	}
	if target == OrderStatusCancelled && (order.Status == OrderStatusShipped || order.Status == OrderStatusDelivered) {
		return fmt.Errorf("%w: %s order %d cannot be cancelled", ErrInvalidTransition, order.Status, order.ID)
	}

	from := order.Status
	now := time.Now().UTC()
	updates := map[string]interface{}{"status": target}
	switch target {
	case OrderStatusConfirmed:
		order.ConfirmedAt = &now
		updates["confirmed_at"] = now
	case OrderStatusPicking:
		order.PickedAt = &now
		updates["picked_at"] = now
	case OrderStatusShipped:
		order.ShippedAt = &now
		updates["shipped_at"] = now
	case OrderStatusDelivered:
		order.DeliveredAt = &now
		updates["delivered_at"] = now
	case OrderStatusCancelled:
		if err := releaseOrderTx(tx, order); err != nil {
			return err
		}
		order.CancelledAt = &now
		order.CancellationReason = reason
		updates["cancelled_at"] = now
		updates["cancellation_reason"] = reason
	}

	if err := tx.Model(order).Omit(clause.Associations).Updates(updates).Error; err != nil {
		return err
	}
	change := OrderStatusChange{
		TenantId:  order.TenantId,
		OrderId:   order.ID,
		OldStatus: from,
		NewStatus: target,
		Reason:    reason,
		ChangedBy: utils.GetActorFromContext(ctx),
	}
	if err := tx.Create(&change).Error; err != nil {
		return err
	}

	config.GetLogger().WithFields(logrus.Fields{
		"field":     "transitionOrderTx",
		"tenant_id": order.TenantId,
		"order_id":  order.ID,
		"from":      from,
		"to":        target,
	}).Info("order status changed")
	order.Status = target
	return nil
}
