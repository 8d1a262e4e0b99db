package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/fulfillment_backend/config"
	"github.com/mmdatafocus/fulfillment_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Order struct {
	ID                 int             `gorm:"primary_key" json:"id"`
	TenantId           string          `gorm:"size:64;not null;uniqueIndex:idx_order_number,priority:1;index:idx_order_tenant_created,priority:1" json:"tenant_id"`
	OrderNumber        string          `gorm:"size:100;not null;uniqueIndex:idx_order_number,priority:2" json:"order_number"`
	ExternalId         string          `gorm:"size:100" json:"external_id"`
	Source             OrderSource     `gorm:"size:20;not null;default:manual" json:"source"`
	IntegrationId      *int            `gorm:"default:null" json:"integration_id"`
	Status             OrderStatus     `gorm:"size:20;not null;default:new;index" json:"status"`
	CustomerName       string          `gorm:"size:255" json:"customer_name"`
	CustomerEmail      string          `gorm:"size:255" json:"customer_email"`
	ShippingAddress    string          `gorm:"type:text" json:"shipping_address"`
	TotalAmount        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
	CostOfGoods        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"cost_of_goods"`
	ShippingCost       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"shipping_cost"`
	OtherCosts         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"other_costs"`
	Notes              string          `gorm:"type:text" json:"notes"`
	ConfirmedAt        *time.Time      `json:"confirmed_at"`
	PickedAt           *time.Time      `json:"picked_at"`
	ShippedAt          *time.Time      `json:"shipped_at"`
	DeliveredAt        *time.Time      `json:"delivered_at"`
	CancelledAt        *time.Time      `json:"cancelled_at"`
	CancellationReason string          `gorm:"size:255" json:"cancellation_reason"`
	CreatedAt          time.Time       `gorm:"autoCreateTime;index:idx_order_tenant_created,priority:2" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	Lines              []*OrderLine    `gorm:"foreignKey:OrderId" json:"lines"`
}

// OrderLine tracks one product of an order. CommittedQty + ShortageQty never
// exceeds OrderedQty, and PickedQty never exceeds CommittedQty.
type OrderLine struct {
	ID           int             `gorm:"primary_key" json:"id"`
	OrderId      int             `gorm:"index;not null" json:"order_id"`
	ProductId    int             `gorm:"not null" json:"product_id"`
	OrderedQty   int             `gorm:"not null" json:"ordered_qty"`
	UnitPrice    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_price"`
	UnitCost     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_cost"`
	CommittedQty int             `gorm:"not null;default:0" json:"committed_qty"`
	PickedQty    int             `gorm:"not null;default:0" json:"picked_qty"`
	ShortageQty  int             `gorm:"not null;default:0" json:"shortage_qty"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewOrder struct {
	OrderNumber     string           `json:"order_number"`
	ExternalId      string           `json:"external_id"`
	Source          OrderSource      `json:"source"`
	IntegrationId   *int             `json:"integration_id"`
	CustomerName    string           `json:"customer_name"`
	CustomerEmail   string           `json:"customer_email" binding:"omitempty,email"`
	ShippingAddress string           `json:"shipping_address"`
	TotalAmount     *decimal.Decimal `json:"total_amount"`
	ShippingCost    decimal.Decimal  `json:"shipping_cost"`
	OtherCosts      decimal.Decimal  `json:"other_costs"`
	Notes           string           `json:"notes"`
	OrderedAt       *time.Time       `json:"ordered_at"`
	Lines           []NewOrderLine   `json:"lines" binding:"required,min=1,dive"`
}

type NewOrderLine struct {
	ProductId  int              `json:"product_id" binding:"required"`
	OrderedQty int              `json:"ordered_qty"`
	UnitPrice  decimal.Decimal  `json:"unit_price"`
	UnitCost   *decimal.Decimal `json:"unit_cost"`
}

func (l *OrderLine) BeforeSave(tx *gorm.DB) error {
	if l.CommittedQty < 0 || l.PickedQty < 0 || l.ShortageQty < 0 ||
		l.CommittedQty+l.ShortageQty > l.OrderedQty || l.PickedQty > l.CommittedQty {
		return fmt.Errorf("%w: line %d ordered=%d committed=%d shortage=%d picked=%d",
			ErrLedgerInvariant, l.ID, l.OrderedQty, l.CommittedQty, l.ShortageQty, l.PickedQty)
	}
	return nil
}

func (l OrderLine) RemainingQty() int {
	return l.OrderedQty - l.CommittedQty
}

func (o *Order) HasShortage() bool {
	for _, l := range o.Lines {
		if l.ShortageQty > 0 {
			return true
		}
	}
	return false
}

func generateOrderNumber() string {
	return fmt.Sprintf("ORD-%s-%s", time.Now().UTC().Format("20060102"), strings.ToUpper(uuid.NewString()[:8]))
}

func validateNewOrder(input *NewOrder) error {
	if len(input.Lines) == 0 {
		return errors.New("order requires at least one line")
	}
	seen := make(map[int]bool, len(input.Lines))
	for _, l := range input.Lines {
		if l.OrderedQty <= 0 {
			return fmt.Errorf("%w: product %d", ErrInvalidQuantity, l.ProductId)
		}
		if seen[l.ProductId] {
			return fmt.Errorf("%w: product %d", ErrDuplicateLine, l.ProductId)
		}
		seen[l.ProductId] = true
	}
	return nil
}

// CreateOrder stores a NEW order. Unit costs default to the product directory's
// cost price; revenue defaults to the sum of line totals.
func CreateOrder(ctx context.Context, input *NewOrder) (*Order, error) {
	tenantId, err := requireTenant(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateNewOrder(input); err != nil {
		return nil, err
	}
	if input.IntegrationId != nil {
		if err := utils.ValidateResourceId[Integration](ctx, *input.IntegrationId); err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				return nil, ErrIntegrationInvalid
			}
			return nil, err
		}
	}

	db := config.GetDB().WithContext(ctx)
	productIds := make([]int, 0, len(input.Lines))
	for _, l := range input.Lines {
		productIds = append(productIds, l.ProductId)
	}
	costs, err := productCostPrices(db, tenantId, productIds)
	if err != nil {
		return nil, err
	}

	order := Order{
		TenantId:        tenantId,
		OrderNumber:     strings.TrimSpace(input.OrderNumber),
		ExternalId:      input.ExternalId,
		Source:          input.Source,
		IntegrationId:   input.IntegrationId,
		Status:          OrderStatusNew,
		CustomerName:    input.CustomerName,
		CustomerEmail:   input.CustomerEmail,
		ShippingAddress: input.ShippingAddress,
		ShippingCost:    input.ShippingCost,
		OtherCosts:      input.OtherCosts,
		Notes:           input.Notes,
	}
	if order.OrderNumber == "" {
		order.OrderNumber = generateOrderNumber()
	}
	if input.OrderedAt != nil {
		order.CreatedAt = input.OrderedAt.UTC()
	}
	if order.Source == "" {
		order.Source = OrderSourceManual
	}

	lineTotal := decimal.Zero
	for _, l := range input.Lines {
		unitCost := costs[l.ProductId]
		if l.UnitCost != nil {
			unitCost = *l.UnitCost
		}
		qty := decimal.NewFromInt(int64(l.OrderedQty))
		lineTotal = lineTotal.Add(l.UnitPrice.Mul(qty))
		order.CostOfGoods = order.CostOfGoods.Add(unitCost.Mul(qty))
		order.Lines = append(order.Lines, &OrderLine{
			ProductId:  l.ProductId,
			OrderedQty: l.OrderedQty,
			UnitPrice:  l.UnitPrice,
			UnitCost:   unitCost,
		})
	}
	order.TotalAmount = lineTotal
	if input.TotalAmount != nil {
		order.TotalAmount = *input.TotalAmount
	}

	if err := db.Create(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("order number %q already exists", order.OrderNumber)
		}
		return nil, err
	}

	config.GetLogger().WithFields(logrus.Fields{
		"field":     "CreateOrder",
		"tenant_id": tenantId,
		"order_id":  order.ID,
	}).Info("order created")
	return &order, nil
}

func GetOrder(ctx context.Context, orderId int) (*Order, error) {
	tenantId, err := requireTenant(ctx)
	if err != nil {
		return nil, err
	}
	return loadOrder(config.GetDB().WithContext(ctx), tenantId, orderId, false)
}

// ListOrders returns the tenant's orders, newest first. An empty status lists
// every status.
func ListOrders(ctx context.Context, status OrderStatus) ([]*Order, error) {
	tenantId, err := requireTenant(ctx)
	if err != nil {
		return nil, err
	}
	if status != "" && !status.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, status)
	}
	dbCtx := config.GetDB().WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("order_lines.id") }).
		Where("tenant_id = ?", tenantId)
	if status != "" {
		dbCtx = dbCtx.Where("status = ?", status)
	}
	var orders []*Order
	if err := dbCtx.Order("created_at DESC, id DESC").Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// loadOrder fetches an order with its lines in id order. With forUpdate the
// order row is locked, which serializes every order-level operation.
func loadOrder(db *gorm.DB, tenantId string, orderId int, forUpdate bool) (*Order, error) {
	var order Order
	q := db.Preload("Lines", func(db *gorm.DB) *gorm.DB {
		return db.Order("order_lines.id")
	})
	if forUpdate {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	err := q.Where("tenant_id = ? AND id = ?", tenantId, orderId).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrOrderNotFound, orderId)
		}
		return nil, err
	}
	return &order, nil
}

func saveLineQuantities(tx *gorm.DB, l *OrderLine) error {
	return tx.Model(l).Updates(map[string]interface{}{
		"committed_qty": l.CommittedQty,
		"picked_qty":    l.PickedQty,
		"shortage_qty":  l.ShortageQty,
	}).Error
}
