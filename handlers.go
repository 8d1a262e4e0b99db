package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/mmdatafocus/fulfillment_backend/config"
	"github.com/mmdatafocus/fulfillment_backend/models"
	"github.com/mmdatafocus/fulfillment_backend/models/reports"
	"github.com/mmdatafocus/fulfillment_backend/utils"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type cancelOrderRequest struct {
	Reason string `json:"reason" binding:"max=255"`
}

type orderStatusRequest struct {
	Status models.OrderStatus `json:"status" binding:"required"`
	Reason string             `json:"reason" binding:"max=255"`
}

func startSpan(c *gin.Context, name string) (context.Context, trace.Span) {
	tenantId, _ := utils.GetTenantIdFromContext(c.Request.Context())
	return tracer.Start(c.Request.Context(), name, trace.WithAttributes(
		attribute.String("tenant_id", tenantId),
		attribute.String("http.route", c.FullPath()),
	))
}

// writeError maps ledger and order errors onto HTTP statuses.
func writeError(c *gin.Context, span trace.Span, err error) {
	span.RecordError(err)
	switch {
	case errors.Is(err, models.ErrOrderNotFound), errors.Is(err, utils.ErrorRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrConflictRetry), errors.Is(err, utils.ErrorOrderLockFailed):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "retryable": true})
	case errors.Is(err, models.ErrInvalidQuantity), errors.Is(err, models.ErrSameLocation),
		errors.Is(err, models.ErrDuplicateLine), errors.Is(err, models.ErrIntegrationInvalid),
		errors.Is(err, utils.ErrorTenantRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrInsufficientAvailable), errors.Is(err, models.ErrInsufficientOnHand),
		errors.Is(err, models.ErrInvalidTransition):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		span.SetStatus(codes.Error, err.Error())
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func writeBindError(c *gin.Context, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "fields": utils.ProcessValidationErrors(err)})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
}

func paramId(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s must be a positive integer", name)})
		return 0, false
	}
	return id, true
}

// parseDateRange reads start and end (YYYY-MM-DD) query params; end is inclusive.
func parseDateRange(c *gin.Context) (time.Time, time.Time, bool) {
	start, err := time.Parse("2006-01-02", c.Query("start"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start must be YYYY-MM-DD"})
		return time.Time{}, time.Time{}, false
	}
	end, err := time.Parse("2006-01-02", c.Query("end"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end must be YYYY-MM-DD"})
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

func receiveInventoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := startSpan(c, "ReceiveInventory")
		defer span.End()

		var input models.NewInventoryReceipt
		if err := c.ShouldBindJSON(&input); err != nil {
			writeBindError(c, err)
			return
		}
		var record *models.InventoryRecord
		err := models.RetryOnConflict(ctx, func() error {
			var err error
			record, err = models.ReceiveInventory(ctx, &input)
			return err
		})
		if err != nil {
			writeError(c, span, err)
			return
		}
		c.JSON(http.StatusCreated, record)
	}
}

func createReceiptHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := startSpan(c, "CreateReceipt")
		defer span.End()

		var input models.NewReceipt
		if err := c.ShouldBindJSON(&input); err != nil {
			writeBindError(c, err)
			return
		}
		var receipt *models.Receipt
		err := models.RetryOnConflict(ctx, func() error {
			var err error
			receipt, err = models.CreateReceipt(ctx, &input)
			return err
		})
		if err != nil {
			writeError(c, span, err)
			return
		}
		c.JSON(http.StatusCreated, receipt)
	}
}

func getReceiptHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := startSpan(c, "GetReceipt")
		defer span.End()

		receiptId, ok := paramId(c, "id")
		if !ok {
			return
		}
		receipt, err := models.GetReceipt(ctx, receiptId)
		if err != nil {
			writeError(c, span, err)
			return
		}
		c.JSON(http.StatusOK, receipt)
	}
}

func transferInventoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := startSpan(c, "TransferInventory")
		defer span.End()

		var input models.NewInventoryTransfer
		if err := c.ShouldBindJSON(&input); err != nil {
			writeBindError(c, err)
			return
		}
		var transfer *models.TransferRecord
		err := models.RetryOnConflict(ctx, func() error {
			var err error
			transfer, err = models.TransferInventory(ctx, &input)
			return err
		})
		if err != nil {
			writeError(c, span, err)
			return
		}
		c.JSON(http.StatusCreated, transfer)
	}
}

func listInventoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := startSpan(c, "ListInventory")
		defer span.End()

		productId := 0
		if v := c.Query("product_id"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "product_id must be a positive integer"})
				return
			}
			productId = n
		}
		records, err := models.ListInventory(ctx, productId)
		if err != nil {
			writeError(c, span, err)
			return
		}
		c.JSON(http.StatusOK, records)
	}
}

func availableQuantityHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := startSpan(c, "GetAvailableQuantity")
		defer span.End()

		productId, ok := paramId(c, "productId")
		if !ok {
			return
		}
		available, err := models.GetAvailableQuantity(ctx, productId)
		if err != nil {
			writeError(c, span, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"product_id": productId, "available": available})
	}
}

func createOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := startSpan(c, "CreateOrder")
		defer span.End()

		var input models.NewOrder
		if err := c.ShouldBindJSON(&input); err != nil {
			writeBindError(c, err)
			return
		}
		order, err := models.CreateOrder(ctx, &input)
		if err != nil {
			writeError(c, span, err)
			return
		}
		c.JSON(http.StatusCreated, order)
	}
}

func listOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := startSpan(c, "ListOrders")
		defer span.End()

		status := models.OrderStatus(c.Query("status"))
		if status != "" && !status.IsValid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown status %q", status)})
			return
		}
		orders, err := models.ListOrders(ctx, status)
		if err != nil {
			writeError(c, span, err)
			return
		}
		c.JSON(http.StatusOK, orders)
	}
}

func getOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := startSpan(c, "GetOrder")
		defer span.End()

		orderId, ok := paramId(c, "id")
		if !ok {
			return
		}
		order, err := models.GetOrder(ctx, orderId)
		if err != nil {
			writeError(c, span, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

func orderHistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := startSpan(c, "GetOrderStatusHistory")
		defer span.End()

		orderId, ok := paramId(c, "id")
		if !ok {
			return
		}
		history, err := models.GetOrderStatusHistory(ctx, orderId)
		if err != nil {
			writeError(c, span, err)
			return
		}
		c.JSON(http.StatusOK, history)
	}
}

func orderReservationsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := startSpan(c, "GetOrderReservations")
		defer span.End()

		orderId, ok := paramId(c, "id")
		if !ok {
			return
		}
		reservations, err := models.GetOrderReservations(ctx, orderId)
		if err != nil {
			writeError(c, span, err)
			return
		}
		c.JSON(http.StatusOK, reservations)
	}
}

// orderOperation wraps an order-level ledger operation with conflict retry.
func orderOperation(name string, op func(ctx context.Context, orderId int) (interface{}, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := startSpan(c, name)
		defer span.End()

		orderId, ok := paramId(c, "id")
		if !ok {
			return
		}
		span.SetAttributes(attribute.Int("order_id", orderId))

		var result interface{}
		err := models.RetryOnConflict(ctx, func() error {
			var err error
			result, err = op(ctx, orderId)
			return err
		})
		if err != nil {
			writeError(c, span, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func allocateOrderHandler() gin.HandlerFunc {
	return orderOperation("AllocateOrder", func(ctx context.Context, orderId int) (interface{}, error) {
		return models.AllocateOrder(ctx, orderId)
	})
}

func reserveOrderHandler() gin.HandlerFunc {
	return orderOperation("ReserveOrder", func(ctx context.Context, orderId int) (interface{}, error) {
		return models.ReserveOrder(ctx, orderId)
	})
}

func fulfillOrderHandler() gin.HandlerFunc {
	return orderOperation("FulfillOrder", func(ctx context.Context, orderId int) (interface{}, error) {
		return models.FulfillOrder(ctx, orderId)
	})
}

func releaseOrderHandler() gin.HandlerFunc {
	return orderOperation("ReleaseOrder", func(ctx context.Context, orderId int) (interface{}, error) {
		return models.ReleaseOrder(ctx, orderId)
	})
}

func shipOrderHandler() gin.HandlerFunc {
	return orderOperation("ShipOrder", func(ctx context.Context, orderId int) (interface{}, error) {
		return models.ShipOrder(ctx, orderId)
	})
}

func cancelOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req cancelOrderRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				writeBindError(c, err)
				return
			}
		}
		orderOperation("CancelOrder", func(ctx context.Context, orderId int) (interface{}, error) {
			return models.CancelOrder(ctx, orderId, req.Reason)
		})(c)
	}
}

func orderStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req orderStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			writeBindError(c, err)
			return
		}
		orderOperation("TransitionOrderStatus", func(ctx context.Context, orderId int) (interface{}, error) {
			return models.TransitionOrderStatus(ctx, orderId, req.Status, req.Reason)
		})(c)
	}
}

func orderPnLHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := startSpan(c, "GetOrderPnL")
		defer span.End()

		orderId, ok := paramId(c, "id")
		if !ok {
			return
		}
		pnl, err := reports.GetOrderPnL(ctx, orderId)
		if err != nil {
			writeError(c, span, err)
			return
		}
		c.JSON(http.StatusOK, pnl)
	}
}

func periodPnLHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := startSpan(c, "GetPeriodPnLReport")
		defer span.End()

		start, end, ok := parseDateRange(c)
		if !ok {
			return
		}
		report, err := reports.GetPeriodPnLReport(ctx, start, end)
		if err != nil {
			writeError(c, span, err)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

func exportPeriodPnLHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := startSpan(c, "ExportPeriodPnLReport")
		defer span.End()

		start, end, ok := parseDateRange(c)
		if !ok {
			return
		}
		report, err := reports.GetPeriodPnLReport(ctx, start, end)
		if err != nil {
			writeError(c, span, err)
			return
		}

		filename := fmt.Sprintf("pnl_%s_%s.xlsx", start.Format("20060102"), end.Format("20060102"))
		c.Header("Content-Type", utils.XlsxContentType)
		c.Header("Content-Disposition", "attachment; filename="+filename)
		if err := reports.ExportPeriodPnLReport(report, c.Writer); err != nil {
			config.LogError(config.GetLogger(), "server", "exportPeriodPnLHandler", "write xlsx", filename, err)
			_ = c.Error(err)
		}
	}
}
