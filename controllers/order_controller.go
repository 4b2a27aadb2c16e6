package controllers

import (
	"net/http"
	"time"

	"checkout-service/apperrors"
	"checkout-service/middleware"
	"checkout-service/models"
	"checkout-service/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// IdempotencyKeyHeader lets clients retry create-order safely.
const IdempotencyKeyHeader = "Idempotency-Key"

// OrderController handles HTTP requests for checkout operations.
type OrderController struct {
	orderService services.OrderService
	logger       *zap.Logger
}

// NewOrderController creates a new OrderController.
func NewOrderController(svc services.OrderService, logger *zap.Logger) *OrderController {
	return &OrderController{orderService: svc, logger: logger}
}

// CreateOrder handles POST /api/create-order
func (oc *OrderController) CreateOrder(ctx *gin.Context) {
	ctx.Set(middleware.OperationKey, "create-order")
	var req models.CreateOrderRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		oc.badRequest(ctx, "create-order", err)
		return
	}
	req.IdempotencyKey = ctx.GetHeader(IdempotencyKeyHeader)

	res, err := oc.orderService.CreateOrder(ctx.Request.Context(), &req)
	if err != nil {
		oc.respondError(ctx, "create-order", "", err)
		return
	}

	body := gin.H{
		"success":         true,
		"razorpayOrderId": res.GatewayOrderID,
		"firebaseOrderId": res.LocalOrderID,
		"amount":          res.Amount,
		"currency":        res.Currency,
	}
	if res.ClientSecret != "" {
		body["clientSecret"] = res.ClientSecret
	}
	ctx.JSON(http.StatusOK, body)
}

// VerifyPayment handles POST /api/verify-payment
func (oc *OrderController) VerifyPayment(ctx *gin.Context) {
	ctx.Set(middleware.OperationKey, "verify-payment")
	var req models.VerifyPaymentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		oc.badRequest(ctx, "verify-payment", err)
		return
	}

	if err := oc.orderService.VerifyPayment(ctx.Request.Context(), &req); err != nil {
		oc.respondError(ctx, "verify-payment", req.LocalOrderID, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true, "message": "Payment verified successfully"})
}

// UpdateOrderStatus handles POST /api/update-order-status
func (oc *OrderController) UpdateOrderStatus(ctx *gin.Context) {
	ctx.Set(middleware.OperationKey, "update-order-status")
	var req models.UpdateOrderStatusRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		oc.badRequest(ctx, "update-order-status", err)
		return
	}

	if err := oc.orderService.UpdateOrderStatus(ctx.Request.Context(), &req); err != nil {
		oc.respondError(ctx, "update-order-status", req.LocalOrderID, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true, "message": "Order status updated successfully"})
}

// GetOrder handles GET /api/order/:orderId
func (oc *OrderController) GetOrder(ctx *gin.Context) {
	ctx.Set(middleware.OperationKey, "get-order")
	orderID := ctx.Param("orderId")

	order, err := oc.orderService.GetOrder(ctx.Request.Context(), orderID)
	if err != nil {
		oc.respondError(ctx, "get-order", orderID, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true, "order": order})
}

// ListOrders handles GET /api/orders/:userId
func (oc *OrderController) ListOrders(ctx *gin.Context) {
	ctx.Set(middleware.OperationKey, "list-orders")
	userID := ctx.Param("userId")

	orders, err := oc.orderService.ListOrdersForUser(ctx.Request.Context(), userID)
	if err != nil {
		oc.respondError(ctx, "list-orders", "", err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true, "orders": orders})
}

// Health handles GET /api/health
func (oc *OrderController) Health(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   "Server is running",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// NotFound answers every unmatched route.
func NotFound(ctx *gin.Context) {
	ctx.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Endpoint not found"})
}

func (oc *OrderController) badRequest(ctx *gin.Context, op string, err error) {
	ctx.Set(middleware.ErrorKindKey, string(apperrors.KindValidation))
	oc.logger.Warn("Invalid request body",
		zap.String("operation", op),
		zap.String("request_id", ctx.GetString(middleware.RequestIDKey)),
		zap.Error(err),
	)
	ctx.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request body"})
}

// respondError logs err and writes the failure envelope. A signature
// mismatch uses "message" instead of "error".
func (oc *OrderController) respondError(ctx *gin.Context, op, orderID string, err error) {
	appErr := apperrors.From(err)
	ctx.Set(middleware.ErrorKindKey, string(appErr.Kind))

	fields := []zap.Field{
		zap.String("operation", op),
		zap.String("kind", string(appErr.Kind)),
		zap.String("request_id", ctx.GetString(middleware.RequestIDKey)),
		zap.Error(err),
	}
	if orderID != "" {
		fields = append(fields, zap.String("order_id", orderID))
	}
	if appErr.Code >= http.StatusInternalServerError {
		oc.logger.Error("Request failed", fields...)
	} else {
		oc.logger.Warn("Request rejected", fields...)
	}

	if appErr.Kind == apperrors.KindVerification {
		ctx.JSON(appErr.Code, gin.H{"success": false, "message": appErr.Message})
		return
	}
	ctx.JSON(appErr.Code, gin.H{"success": false, "error": appErr.Message})
}
