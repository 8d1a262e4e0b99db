package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/fulfillment_backend/config"
	"github.com/mmdatafocus/fulfillment_backend/utils"
	"github.com/sirupsen/logrus"
)

const lowStockAlertCooldown = 24 * time.Hour

// AlertPublisher delivers one low-stock alert and returns the message id.
type AlertPublisher func(ctx context.Context, msg config.LowStockAlertMessage) (string, error)

type LowStockSummary struct {
	Found      int `json:"found"`
	Published  int `json:"published"`
	Suppressed int `json:"suppressed"`
	Failed     int `json:"failed"`
}

type lowStockRow struct {
	TenantId      string
	ProductId     int
	Sku           string
	Name          string
	MinStockLevel int
	Available     int
}

// FindLowStockProducts lists active products whose available quantity across
// all locations is below their minimum stock level. An empty tenantId scans
// every tenant.
func FindLowStockProducts(ctx context.Context, tenantId string) ([]config.LowStockAlertMessage, error) {
	query := `
SELECT p.tenant_id, p.id AS product_id, p.sku, p.name, p.min_stock_level,
       COALESCE(SUM(i.on_hand_qty - i.committed_qty), 0) AS available
FROM products p
LEFT JOIN inventory_records i ON i.tenant_id = p.tenant_id AND i.product_id = p.id
WHERE p.is_active = ? AND p.min_stock_level > 0`
	args := []interface{}{true}
	if tenantId != "" {
		query += " AND p.tenant_id = ?"
		args = append(args, tenantId)
	}
	query += `
GROUP BY p.tenant_id, p.id, p.sku, p.name, p.min_stock_level
HAVING COALESCE(SUM(i.on_hand_qty - i.committed_qty), 0) < p.min_stock_level
ORDER BY p.tenant_id, p.id`

	var rows []lowStockRow
	if err := config.GetDB().WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	correlationId, ok := utils.GetCorrelationIdFromContext(ctx)
	if !ok || correlationId == "" {
		correlationId = uuid.NewString()
	}
	alerts := make([]config.LowStockAlertMessage, 0, len(rows))
	for _, r := range rows {
		alerts = append(alerts, config.LowStockAlertMessage{
			TenantId:      r.TenantId,
			ProductId:     r.ProductId,
			Sku:           r.Sku,
			ProductName:   r.Name,
			Available:     r.Available,
			MinStockLevel: r.MinStockLevel,
			CheckedAt:     now,
			CorrelationId: correlationId,
		})
	}
	return alerts, nil
}

func lowStockAlertKey(msg config.LowStockAlertMessage) string {
	return fmt.Sprintf("lowStockAlert:%s:%d", msg.TenantId, msg.ProductId)
}

// RunLowStockAlerts publishes one alert per low product. A product alerted in
// the last 24h is suppressed while redis is available.
func RunLowStockAlerts(ctx context.Context, tenantId string, publish AlertPublisher) (*LowStockSummary, error) {
	logger := config.GetLogger()
	if publish == nil {
		publish = config.PublishLowStockAlert
	}

	alerts, err := FindLowStockProducts(ctx, tenantId)
	if err != nil {
		return nil, err
	}
	summary := &LowStockSummary{Found: len(alerts)}

	for _, alert := range alerts {
		var last time.Time
		if seen, err := config.GetCachedObject(ctx, lowStockAlertKey(alert), &last); err == nil && seen {
			summary.Suppressed++
			continue
		}
		id, err := publish(ctx, alert)
		if err != nil {
			summary.Failed++
			config.LogError(logger, "LowStockAlerts", "RunLowStockAlerts", "publish alert", alert, err)
			continue
		}
		summary.Published++
		if err := config.SetCachedObject(ctx, lowStockAlertKey(alert), alert.CheckedAt, lowStockAlertCooldown); err != nil {
			config.LogError(logger, "LowStockAlerts", "RunLowStockAlerts", "remember alert", alert, err)
		}
		logger.WithFields(logrus.Fields{
			"field":      "RunLowStockAlerts",
			"tenant_id":  alert.TenantId,
			"product_id": alert.ProductId,
			"available":  alert.Available,
			"message_id": id,
		}).Info("low stock alert published")
	}
	return summary, nil
}
