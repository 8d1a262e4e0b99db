package reports

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/fulfillment_backend/config"
	"github.com/mmdatafocus/fulfillment_backend/models"
	"github.com/mmdatafocus/fulfillment_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type OrderPnL struct {
	OrderId        int                `json:"order_id"`
	OrderNumber    string             `json:"order_number"`
	Status         models.OrderStatus `json:"status"`
	CreatedAt      time.Time          `json:"created_at"`
	Revenue        decimal.Decimal    `json:"revenue"`
	CostOfGoods    decimal.Decimal    `json:"cost_of_goods"`
	ProcessingCost decimal.Decimal    `json:"processing_cost"`
	PackagingCost  decimal.Decimal    `json:"packaging_cost"`
	StorageCost    decimal.Decimal    `json:"storage_cost"`
	MarketplaceFee decimal.Decimal    `json:"marketplace_fee"`
	ShippingCost   decimal.Decimal    `json:"shipping_cost"`
	OtherCosts     decimal.Decimal    `json:"other_costs"`
	TotalExpenses  decimal.Decimal    `json:"total_expenses"`
	Margin         decimal.Decimal    `json:"margin"`
	MarginPercent  decimal.Decimal    `json:"margin_percent"`
}

type PeriodPnLReport struct {
	StartDate               time.Time       `json:"start_date"`
	EndDate                 time.Time       `json:"end_date"`
	OrderCount              int             `json:"order_count"`
	Revenue                 decimal.Decimal `json:"revenue"`
	CostOfGoods             decimal.Decimal `json:"cost_of_goods"`
	ProcessingCost          decimal.Decimal `json:"processing_cost"`
	PackagingCost           decimal.Decimal `json:"packaging_cost"`
	StorageCost             decimal.Decimal `json:"storage_cost"`
	UnattributedStorageCost decimal.Decimal `json:"unattributed_storage_cost"`
	MarketplaceFee          decimal.Decimal `json:"marketplace_fee"`
	ShippingCost            decimal.Decimal `json:"shipping_cost"`
	OtherCosts              decimal.Decimal `json:"other_costs"`
	TotalExpenses           decimal.Decimal `json:"total_expenses"`
	Margin                  decimal.Decimal `json:"margin"`
	MarginPercent           decimal.Decimal `json:"margin_percent"`
	NetMargin               decimal.Decimal `json:"net_margin"`
	NetMarginPercent        decimal.Decimal `json:"net_margin_percent"`
	Orders                  []*OrderPnL     `json:"orders"`
}

var hundred = decimal.NewFromInt(100)

func marginPercent(margin, revenue decimal.Decimal) decimal.Decimal {
	if revenue.IsZero() {
		return decimal.Zero
	}
	return margin.Div(revenue).Mul(hundred).Round(2)
}

// pnlContext caches per-tenant configuration across the orders of one report.
type pnlContext struct {
	ctx      context.Context
	tariff   *models.Tariff
	feeRules map[int]models.FeeRule
}

func newPnlContext(ctx context.Context) (*pnlContext, error) {
	tariff, err := models.GetTenantTariff(ctx)
	if err != nil {
		return nil, err
	}
	return &pnlContext{ctx: ctx, tariff: tariff, feeRules: make(map[int]models.FeeRule)}, nil
}

func (p *pnlContext) feeRule(integrationId *int) (models.FeeRule, error) {
	if integrationId == nil {
		return nil, nil
	}
	if rule, ok := p.feeRules[*integrationId]; ok {
		return rule, nil
	}
	rule, err := models.GetActiveFeeRule(p.ctx, *integrationId)
	if err != nil {
		return nil, err
	}
	p.feeRules[*integrationId] = rule
	return rule, nil
}

func (p *pnlContext) orderPnL(order *models.Order, storageCost decimal.Decimal) (*OrderPnL, error) {
	pnl := &OrderPnL{
		OrderId:      order.ID,
		OrderNumber:  order.OrderNumber,
		Status:       order.Status,
		CreatedAt:    order.CreatedAt,
		Revenue:      order.TotalAmount,
		StorageCost:  storageCost,
		ShippingCost: order.ShippingCost,
		OtherCosts:   order.OtherCosts,
	}
	for _, l := range order.Lines {
		pnl.CostOfGoods = pnl.CostOfGoods.Add(l.UnitCost.Mul(decimal.NewFromInt(int64(l.OrderedQty))))
	}
	if p.tariff != nil {
		pnl.ProcessingCost = p.tariff.ProcessingRate
		pnl.PackagingCost = p.tariff.PackagingRate
	}
	rule, err := p.feeRule(order.IntegrationId)
	if err != nil {
		return nil, err
	}
	if rule != nil {
		pnl.MarketplaceFee = rule.Fee(pnl.Revenue)
	}

	pnl.TotalExpenses = decimal.Sum(pnl.CostOfGoods, pnl.ProcessingCost, pnl.PackagingCost,
		pnl.StorageCost, pnl.MarketplaceFee, pnl.ShippingCost, pnl.OtherCosts)
	pnl.Margin = pnl.Revenue.Sub(pnl.TotalExpenses)
	pnl.MarginPercent = marginPercent(pnl.Margin, pnl.Revenue)
	return pnl, nil
}

// GetOrderPnL derives revenue, expenses and margin of one order.
func GetOrderPnL(ctx context.Context, orderId int) (*OrderPnL, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok {
		return nil, utils.ErrorTenantRequired
	}
	order, err := models.GetOrder(ctx, orderId)
	if err != nil {
		return nil, err
	}
	storage, err := attributedStorageCosts(config.GetDB().WithContext(ctx), tenantId, []int{order.ID})
	if err != nil {
		return nil, err
	}
	p, err := newPnlContext(ctx)
	if err != nil {
		return nil, err
	}
	return p.orderPnL(order, storage[order.ID])
}

// GetPeriodPnLReport aggregates the PnL of every non-cancelled order created
// on the UTC days from start through end. Totals and margin are the sums over
// those orders; storage charged in the window without an order is reported
// apart and only lowers NetMargin.
func GetPeriodPnLReport(ctx context.Context, start time.Time, end time.Time) (*PeriodPnLReport, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok {
		return nil, utils.ErrorTenantRequired
	}
	from, until := utils.DayWindow(start, end)
	if !until.After(from) {
		return nil, errors.New("end date must not be before start date")
	}
	db := config.GetDB().WithContext(ctx)

	var orders []*models.Order
	err := db.Preload("Lines").
		Where("tenant_id = ? AND status <> ? AND created_at >= ? AND created_at < ?",
			tenantId, models.OrderStatusCancelled, from, until).
		Order("created_at, id").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}

	orderIds := make([]int, 0, len(orders))
	for _, o := range orders {
		orderIds = append(orderIds, o.ID)
	}
	storage, err := attributedStorageCosts(db, tenantId, orderIds)
	if err != nil {
		return nil, err
	}
	unattributed, err := unattributedStorageCost(db, tenantId, from, until)
	if err != nil {
		return nil, err
	}
	p, err := newPnlContext(ctx)
	if err != nil {
		return nil, err
	}

	report := &PeriodPnLReport{
		StartDate:               from,
		EndDate:                 utils.StartOfDay(end),
		OrderCount:              len(orders),
		UnattributedStorageCost: unattributed,
		Orders:                  make([]*OrderPnL, 0, len(orders)),
	}
	for _, o := range orders {
		pnl, err := p.orderPnL(o, storage[o.ID])
		if err != nil {
			return nil, err
		}
		report.Orders = append(report.Orders, pnl)
		report.Revenue = report.Revenue.Add(pnl.Revenue)
		report.CostOfGoods = report.CostOfGoods.Add(pnl.CostOfGoods)
		report.ProcessingCost = report.ProcessingCost.Add(pnl.ProcessingCost)
		report.PackagingCost = report.PackagingCost.Add(pnl.PackagingCost)
		report.StorageCost = report.StorageCost.Add(pnl.StorageCost)
		report.MarketplaceFee = report.MarketplaceFee.Add(pnl.MarketplaceFee)
		report.ShippingCost = report.ShippingCost.Add(pnl.ShippingCost)
		report.OtherCosts = report.OtherCosts.Add(pnl.OtherCosts)
		report.TotalExpenses = report.TotalExpenses.Add(pnl.TotalExpenses)
	}
	report.Margin = report.Revenue.Sub(report.TotalExpenses)
	report.MarginPercent = marginPercent(report.Margin, report.Revenue)
	report.NetMargin = report.Margin.Sub(unattributed)
	report.NetMarginPercent = marginPercent(report.NetMargin, report.Revenue)
	return report, nil
}

type orderStorageCost struct {
	OrderId int
	Total   decimal.Decimal
}

func attributedStorageCosts(db *gorm.DB, tenantId string, orderIds []int) (map[int]decimal.Decimal, error) {
	costs := make(map[int]decimal.Decimal, len(orderIds))
	if len(orderIds) == 0 {
		return costs, nil
	}
	var rows []orderStorageCost
	err := db.Model(&models.StorageCharge{}).
		Select("order_id, COALESCE(SUM(amount), 0) AS total").
		Where("tenant_id = ? AND order_id IN ?", tenantId, orderIds).
		Group("order_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		costs[r.OrderId] = r.Total
	}
	return costs, nil
}

func unattributedStorageCost(db *gorm.DB, tenantId string, from time.Time, until time.Time) (decimal.Decimal, error) {
	var row struct {
		Total decimal.Decimal
	}
	err := db.Model(&models.StorageCharge{}).
		Select("COALESCE(SUM(amount), 0) AS total").
		Where("tenant_id = ? AND order_id IS NULL AND charge_date >= ? AND charge_date < ?",
			tenantId, from, until).
		Scan(&row).Error
	return row.Total, err
}
