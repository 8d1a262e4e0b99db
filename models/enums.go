package models

type OrderStatus string

const (
	OrderStatusNew           OrderStatus = "new"
	OrderStatusConfirmed     OrderStatus = "confirmed"
	OrderStatusAwaitingStock OrderStatus = "awaiting_stock"
	OrderStatusPicking       OrderStatus = "picking"
	OrderStatusPacked        OrderStatus = "packed"
	OrderStatusShipped       OrderStatus = "shipped"
	OrderStatusDelivered     OrderStatus = "delivered"
	OrderStatusCancelled     OrderStatus = "cancelled"
)

func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusNew, OrderStatusConfirmed, OrderStatusAwaitingStock, OrderStatusPicking,
		OrderStatusPacked, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// IsClosed reports statuses that no longer accept stock commitments.
func (s OrderStatus) IsClosed() bool {
	return s == OrderStatusShipped || s == OrderStatusDelivered || s == OrderStatusCancelled
}

type ReservationStatus string

const (
	ReservationStatusReserved  ReservationStatus = "reserved"
	ReservationStatusFulfilled ReservationStatus = "fulfilled"
)

type OrderSource string

const (
	OrderSourceManual      OrderSource = "manual"
	OrderSourceMarketplace OrderSource = "marketplace"
	OrderSourceImport      OrderSource = "import"
)

type FeeType string

const (
	FeeTypePercent FeeType = "percent"
	FeeTypeFixed   FeeType = "fixed"
)
