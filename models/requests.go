package models

// CreateOrderRequest is the payload for POST /api/create-order.
// Presence is checked by the order service so that every violation can be
// reported together.
type CreateOrderRequest struct {
	UserID      string                 `json:"userId"`
	UserEmail   string                 `json:"userEmail"`
	Items       []interface{}          `json:"items"`
	TotalAmount float64                `json:"totalAmount"`
	UserDetails map[string]interface{} `json:"userDetails"`
	Amount      int64                  `json:"amount"` // smallest currency unit (paise/cents)

	// IdempotencyKey is taken from the Idempotency-Key header, never the body.
	IdempotencyKey string `json:"-"`
}

// CreateOrderResult is returned after the gateway and local orders exist.
type CreateOrderResult struct {
	GatewayOrderID string `json:"razorpayOrderId"`
	LocalOrderID   string `json:"firebaseOrderId"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	ClientSecret   string `json:"clientSecret,omitempty"` // Stripe only
}

// VerifyPaymentRequest is the checkout callback payload for POST /api/verify-payment.
type VerifyPaymentRequest struct {
	GatewayOrderID   string `json:"razorpay_order_id"`
	GatewayPaymentID string `json:"razorpay_payment_id"`
	Signature        string `json:"razorpay_signature"`
	LocalOrderID     string `json:"firebaseOrderId"`
}

// UpdateOrderStatusRequest is the payload for POST /api/update-order-status.
type UpdateOrderStatusRequest struct {
	LocalOrderID   string                 `json:"firebaseOrderId"`
	Status         string                 `json:"status"`
	PaymentDetails map[string]interface{} `json:"paymentDetails,omitempty"`
}

// IdempotencyRecord is cached per (userId, Idempotency-Key). GatewayOrderID
// is set once the remote order exists; Result once the local order exists.
type IdempotencyRecord struct {
	Amount         int64              `json:"amount"`
	Currency       string             `json:"currency"`
	GatewayOrderID string             `json:"gatewayOrderId,omitempty"`
	ClientSecret   string             `json:"clientSecret,omitempty"`
	Result         *CreateOrderResult `json:"result,omitempty"`
}
