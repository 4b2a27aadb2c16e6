package models

import "time"

// Order event types published to SNS.
const (
	EventOrderCreated       = "order_created"
	EventPaymentVerified    = "payment_verified"
	EventPaymentFailed      = "payment_failed"
	EventOrderStatusUpdated = "order_status_updated"
)

// OrderEvent is published to SNS after an order mutation.
type OrderEvent struct {
	Type             string    `json:"type"`
	OrderID          string    `json:"order_id"`
	UserID           string    `json:"user_id,omitempty"`
	GatewayOrderID   string    `json:"gateway_order_id,omitempty"`
	GatewayPaymentID string    `json:"gateway_payment_id,omitempty"`
	Status           string    `json:"status"`
	Amount           int64     `json:"amount,omitempty"`   // smallest currency unit
	Currency         string    `json:"currency,omitempty"` // "INR"
	Timestamp        time.Time `json:"timestamp"`
}
