package services

import (
	"context"
	"crypto/hmac"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"checkout-service/apperrors"
	"checkout-service/models"
	aws_pkg "checkout-service/pkg/aws"
	"checkout-service/providers"
	"checkout-service/repository"

	"go.uber.org/zap"
)

// OrderService defines the checkout business logic. Every error it returns
// is an *apperrors.Error.
type OrderService interface {
	CreateOrder(ctx context.Context, req *models.CreateOrderRequest) (*models.CreateOrderResult, error)
	VerifyPayment(ctx context.Context, req *models.VerifyPaymentRequest) error
	UpdateOrderStatus(ctx context.Context, req *models.UpdateOrderStatusRequest) error
	GetOrder(ctx context.Context, orderID string) (*models.Order, error)
	ListOrdersForUser(ctx context.Context, userID string) ([]models.Order, error)
}

// OrderServiceDeps are the collaborators of the order service. Idempotency,
// SNS and Metrics are optional.
type OrderServiceDeps struct {
	Repo        repository.OrderRepository
	Gateway     providers.PaymentGateway
	Idempotency repository.IdempotencyStore
	SNS         aws_pkg.SNSPublisher
	SNSTopicArn string
	Metrics     aws_pkg.MetricsRecorder
	Currency    string
	Logger      *zap.Logger
}

type orderServiceImpl struct {
	repo        repository.OrderRepository
	gateway     providers.PaymentGateway
	idem        repository.IdempotencyStore
	snsClient   aws_pkg.SNSPublisher
	snsTopicArn string
	metrics     aws_pkg.MetricsRecorder
	currency    string
	logger      *zap.Logger
}

// NewOrderService creates a new OrderService.
func NewOrderService(deps OrderServiceDeps) OrderService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &orderServiceImpl{
		repo:        deps.Repo,
		gateway:     deps.Gateway,
		idem:        deps.Idempotency,
		snsClient:   deps.SNS,
		snsTopicArn: deps.SNSTopicArn,
		metrics:     deps.Metrics,
		currency:    deps.Currency,
		logger:      logger,
	}
}

// CreateOrder creates the gateway order first and then the local pending
// order. If the local write fails the gateway order is left behind; a retry
// with the same Idempotency-Key reuses it.
func (s *orderServiceImpl) CreateOrder(ctx context.Context, req *models.CreateOrderRequest) (*models.CreateOrderResult, error) {
	if err := validateCreateOrder(req); err != nil {
		return nil, err
	}

	var remote *providers.RemoteOrder
	rec, err := s.loadIdempotency(ctx, req)
	if err != nil {
		return nil, err
	}
	if rec != nil {
		if rec.Result != nil {
			s.logger.Info("Replaying create-order result", zap.String("order_id", rec.Result.LocalOrderID))
			result := *rec.Result
			return &result, nil
		}
		if rec.GatewayOrderID != "" {
			remote = &providers.RemoteOrder{ID: rec.GatewayOrderID, Amount: rec.Amount, Currency: rec.Currency, ClientSecret: rec.ClientSecret}
			s.logger.Info("Reusing gateway order for retried request", zap.String("gateway_order_id", remote.ID))
		}
	}

	if remote == nil {
		notes := map[string]string{"userId": req.UserID, "userEmail": req.UserEmail}
		remote, err = s.gateway.CreateOrder(ctx, req.Amount, s.currency, req.UserID, notes)
		if err != nil {
			s.logger.Error("Gateway order creation failed", zap.String("user_id", req.UserID), zap.Error(err))
			return nil, apperrors.Gateway(gatewayMessage(err, "Failed to create payment order"), err)
		}
		if remote.Amount == 0 {
			remote.Amount = req.Amount
		}
		if remote.Currency == "" {
			remote.Currency = s.currency
		}
		s.saveIdempotency(ctx, req, &models.IdempotencyRecord{
			Amount:         req.Amount,
			Currency:       remote.Currency,
			GatewayOrderID: remote.ID,
			ClientSecret:   remote.ClientSecret,
		})
	}

	order := &models.Order{
		UserID:         req.UserID,
		UserEmail:      req.UserEmail,
		Items:          req.Items,
		TotalAmount:    req.TotalAmount,
		UserDetails:    req.UserDetails,
		PaymentMethod:  s.gateway.Name(),
		GatewayOrderID: remote.ID,
		Status:         models.OrderStatusPending,
	}
	orderID, err := s.repo.Create(ctx, order)
	if err != nil {
		s.logger.Error("Failed to save order after gateway order was created",
			zap.String("gateway_order_id", remote.ID),
			zap.String("user_id", req.UserID),
			zap.Error(err),
		)
		return nil, apperrors.Store("Failed to save order", err)
	}

	result := &models.CreateOrderResult{
		GatewayOrderID: remote.ID,
		LocalOrderID:   orderID,
		Amount:         remote.Amount,
		Currency:       remote.Currency,
		ClientSecret:   remote.ClientSecret,
	}
	s.saveIdempotency(ctx, req, &models.IdempotencyRecord{
		Amount:         req.Amount,
		Currency:       remote.Currency,
		GatewayOrderID: remote.ID,
		ClientSecret:   remote.ClientSecret,
		Result:         result,
	})

	s.logger.Info("Order created",
		zap.String("order_id", orderID),
		zap.String("gateway_order_id", remote.ID),
		zap.String("user_id", req.UserID),
	)
	s.recordCount(ctx, aws_pkg.MetricOrdersCreated)
	s.publishEvent(ctx, models.OrderEvent{
		Type:           models.EventOrderCreated,
		OrderID:        orderID,
		UserID:         req.UserID,
		GatewayOrderID: remote.ID,
		Status:         string(models.OrderStatusPending),
		Amount:         remote.Amount,
		Currency:       remote.Currency,
		Timestamp:      time.Now().UTC(),
	})

	return result, nil
}

// VerifyPayment asks the gateway whether the payment settled the order and
// records the outcome. Only a pending order is written: a rejected payment
// is stored as failed before the verification error is returned, an accepted
// one as paid. A callback for a different gateway order changes nothing.
func (s *orderServiceImpl) VerifyPayment(ctx context.Context, req *models.VerifyPaymentRequest) error {
	if err := validateVerifyPayment(req); err != nil {
		return err
	}

	order, err := s.repo.FindByID(ctx, req.LocalOrderID)
	if err != nil {
		return s.storeError("Failed to fetch order", req.LocalOrderID, err)
	}
	if order.GatewayOrderID != req.GatewayOrderID {
		s.logger.Warn("Payment callback for another gateway order",
			zap.String("order_id", req.LocalOrderID),
			zap.String("gateway_order_id", req.GatewayOrderID),
			zap.String("stored_gateway_order_id", order.GatewayOrderID),
		)
		s.recordCount(ctx, aws_pkg.MetricPaymentFailed)
		return apperrors.VerificationFailed("Payment verification failed")
	}
	if order.Status != models.OrderStatusPending {
		if isSameSettlement(order, req) {
			s.logger.Info("Payment already verified", zap.String("order_id", req.LocalOrderID))
			return nil
		}
		return settledError(order.Status)
	}

	ok, err := s.gateway.VerifyPayment(ctx, order.GatewayOrderID, req.GatewayPaymentID, req.Signature)
	if err != nil {
		s.logger.Error("Gateway payment verification failed", zap.String("order_id", req.LocalOrderID), zap.Error(err))
		return apperrors.Gateway(gatewayMessage(err, "Failed to verify payment"), err)
	}

	if !ok {
		err := s.repo.UpdateByIDIfStatus(ctx, req.LocalOrderID, models.OrderStatusPending, map[string]interface{}{
			models.FieldStatus: string(models.OrderStatusFailed),
		})
		if err != nil {
			return s.settleError(ctx, req.LocalOrderID, err)
		}

		s.logger.Warn("Payment signature mismatch",
			zap.String("order_id", req.LocalOrderID),
			zap.String("gateway_order_id", req.GatewayOrderID),
		)
		s.recordCount(ctx, aws_pkg.MetricPaymentFailed)
		s.publishEvent(ctx, models.OrderEvent{
			Type:             models.EventPaymentFailed,
			OrderID:          req.LocalOrderID,
			UserID:           order.UserID,
			GatewayOrderID:   req.GatewayOrderID,
			GatewayPaymentID: req.GatewayPaymentID,
			Status:           string(models.OrderStatusFailed),
			Timestamp:        time.Now().UTC(),
		})
		return apperrors.VerificationFailed("Payment verification failed")
	}

	err = s.repo.UpdateByIDIfStatus(ctx, req.LocalOrderID, models.OrderStatusPending, map[string]interface{}{
		models.FieldStatus:           string(models.OrderStatusPaid),
		models.FieldGatewayPaymentID: req.GatewayPaymentID,
		models.FieldGatewaySignature: req.Signature,
		models.FieldPaidAt:           repository.ServerTimestamp,
	})
	if err != nil {
		return s.settleError(ctx, req.LocalOrderID, err)
	}

	s.logger.Info("Payment verified",
		zap.String("order_id", req.LocalOrderID),
		zap.String("gateway_payment_id", req.GatewayPaymentID),
	)
	s.recordCount(ctx, aws_pkg.MetricPaymentSucceeded)
	s.publishEvent(ctx, models.OrderEvent{
		Type:             models.EventPaymentVerified,
		OrderID:          req.LocalOrderID,
		UserID:           order.UserID,
		GatewayOrderID:   req.GatewayOrderID,
		GatewayPaymentID: req.GatewayPaymentID,
		Status:           string(models.OrderStatusPaid),
		Timestamp:        time.Now().UTC(),
	})
	return nil
}

// UpdateOrderStatus merges status and payment details into the order
// without checking the status value or the transition. Keys the store owns
// (id, createdAt, updatedAt) are dropped.
func (s *orderServiceImpl) UpdateOrderStatus(ctx context.Context, req *models.UpdateOrderStatusRequest) error {
	if missing := missingFields(
		field{"firebaseOrderId", req.LocalOrderID == ""},
		field{"status", req.Status == ""},
	); missing != nil {
		return missing
	}

	fields := make(map[string]interface{}, len(req.PaymentDetails)+1)
	for k, v := range req.PaymentDetails {
		if isStoreManaged(k) {
			s.logger.Warn("Ignoring store-managed field in status update",
				zap.String("order_id", req.LocalOrderID),
				zap.String("field", k),
			)
			continue
		}
		fields[k] = v
	}
	fields[models.FieldStatus] = req.Status

	if err := s.repo.UpdateByID(ctx, req.LocalOrderID, fields); err != nil {
		return s.storeError("Failed to update order status", req.LocalOrderID, err)
	}

	s.logger.Info("Order status updated",
		zap.String("order_id", req.LocalOrderID),
		zap.String("status", req.Status),
	)
	s.publishEvent(ctx, models.OrderEvent{
		Type:      models.EventOrderStatusUpdated,
		OrderID:   req.LocalOrderID,
		Status:    req.Status,
		Timestamp: time.Now().UTC(),
	})
	return nil
}

func (s *orderServiceImpl) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	if orderID == "" {
		return nil, apperrors.Validation("Order ID is required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, s.storeError("Failed to fetch order", orderID, err)
	}
	return order, nil
}

// ListOrdersForUser returns the user's orders newest first. A user with no
// orders gets an empty, non-nil slice.
func (s *orderServiceImpl) ListOrdersForUser(ctx context.Context, userID string) ([]models.Order, error) {
	if userID == "" {
		return nil, apperrors.Validation("User ID is required")
	}
	orders, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		s.logger.Error("Failed to list orders", zap.String("user_id", userID), zap.Error(err))
		return nil, apperrors.Store("Failed to fetch orders", err)
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return orders, nil
}

// ---- validation ----

type field struct {
	name    string
	missing bool
}

func missingFields(fields ...field) *apperrors.Error {
	var names []string
	for _, f := range fields {
		if f.missing {
			names = append(names, f.name)
		}
	}
	if len(names) == 0 {
		return nil
	}
	return apperrors.Validation("Missing required fields: " + strings.Join(names, ", "))
}

func validateCreateOrder(req *models.CreateOrderRequest) error {
	if missing := missingFields(
		field{"userId", req.UserID == ""},
		field{"userEmail", req.UserEmail == ""},
		field{"items", len(req.Items) == 0},
		field{"totalAmount", req.TotalAmount == 0},
		field{"userDetails", req.UserDetails == nil},
		field{"amount", req.Amount == 0},
	); missing != nil {
		return missing
	}
	if req.Amount < 0 {
		return apperrors.Validation("amount must be a positive integer in the smallest currency unit")
	}
	return nil
}

func validateVerifyPayment(req *models.VerifyPaymentRequest) error {
	if missing := missingFields(
		field{"razorpay_order_id", req.GatewayOrderID == ""},
		field{"razorpay_payment_id", req.GatewayPaymentID == ""},
		field{"razorpay_signature", req.Signature == ""},
		field{"firebaseOrderId", req.LocalOrderID == ""},
	); missing != nil {
		return missing
	}
	return nil
}

func isStoreManaged(key string) bool {
	switch key {
	case models.FieldID, "_id", models.FieldCreatedAt, models.FieldUpdatedAt:
		return true
	}
	return false
}

// ---- helpers ----

func (s *orderServiceImpl) storeError(msg, orderID string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound("Order not found")
	}
	s.logger.Error(msg, zap.String("order_id", orderID), zap.Error(err))
	return apperrors.Store(msg, err)
}

// settleError maps a failed guarded write. A concurrent verification that
// settled the order first surfaces as a conflict.
func (s *orderServiceImpl) settleError(ctx context.Context, orderID string, err error) error {
	if errors.Is(err, repository.ErrStatusConflict) {
		order, findErr := s.repo.FindByID(ctx, orderID)
		if findErr != nil {
			return s.storeError("Failed to fetch order", orderID, findErr)
		}
		return settledError(order.Status)
	}
	return s.storeError("Failed to update order status", orderID, err)
}

func settledError(status models.OrderStatus) error {
	return apperrors.Conflict("Order is already " + string(status))
}

// isSameSettlement reports whether req repeats the callback that paid order.
func isSameSettlement(order *models.Order, req *models.VerifyPaymentRequest) bool {
	return order.Status == models.OrderStatusPaid &&
		order.GatewayPaymentID != nil && *order.GatewayPaymentID == req.GatewayPaymentID &&
		order.GatewaySignature != nil && hmac.Equal([]byte(*order.GatewaySignature), []byte(req.Signature))
}

func gatewayMessage(err error, fallback string) string {
	var gwErr *providers.GatewayError
	if errors.As(err, &gwErr) && gwErr.Message != "" {
		return gwErr.Message
	}
	return fallback
}

func (s *orderServiceImpl) loadIdempotency(ctx context.Context, req *models.CreateOrderRequest) (*models.IdempotencyRecord, error) {
	if s.idem == nil || req.IdempotencyKey == "" {
		return nil, nil
	}
	rec, err := s.idem.Get(ctx, req.UserID, req.IdempotencyKey)
	if err != nil {
		s.logger.Warn("Idempotency lookup failed", zap.String("user_id", req.UserID), zap.Error(err))
		return nil, nil
	}
	if rec != nil && rec.Amount != req.Amount {
		return nil, apperrors.Validation("Idempotency-Key was already used with a different amount")
	}
	return rec, nil
}

func (s *orderServiceImpl) saveIdempotency(ctx context.Context, req *models.CreateOrderRequest, rec *models.IdempotencyRecord) {
	if s.idem == nil || req.IdempotencyKey == "" {
		return
	}
	if err := s.idem.Save(ctx, req.UserID, req.IdempotencyKey, rec); err != nil {
		s.logger.Warn("Idempotency save failed", zap.String("user_id", req.UserID), zap.Error(err))
	}
}

func (s *orderServiceImpl) recordCount(ctx context.Context, metric string) {
	if s.metrics == nil || !s.metrics.IsEnabled() {
		return
	}
	dims := map[string]string{"Gateway": s.gateway.Name()}
	if err := s.metrics.RecordCount(ctx, metric, dims); err != nil {
		s.logger.Warn("Failed to record metric", zap.String("metric", metric), zap.Error(err))
	}
}

// publishEvent marshals an event and publishes it to SNS (non-fatal on error).
func (s *orderServiceImpl) publishEvent(ctx context.Context, event models.OrderEvent) {
	if s.snsClient == nil || s.snsTopicArn == "" {
		return
	}
	b, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("Failed to marshal SNS event", zap.Error(err))
		return
	}
	if err := s.snsClient.Publish(ctx, s.snsTopicArn, b); err != nil {
		s.logger.Error("Failed to publish SNS event", zap.String("event", event.Type), zap.Error(err))
		return
	}
	s.logger.Debug("Published SNS event", zap.String("event", event.Type), zap.String("order_id", event.OrderID))
}
