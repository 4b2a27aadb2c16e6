package models

import (
	"encoding/json"
	"time"
)

// OrderStatus is the lifecycle state of a local order.
type OrderStatus string

const (
	OrderStatusPending OrderStatus = "pending"
	OrderStatusPaid    OrderStatus = "paid"
	OrderStatusFailed  OrderStatus = "failed"
)

// Field names of the stored order document. Adapters persist orders under
// these names and partial updates are keyed by them.
const (
	FieldID               = "id"
	FieldUserID           = "userId"
	FieldUserEmail        = "userEmail"
	FieldItems            = "items"
	FieldTotalAmount      = "totalAmount"
	FieldUserDetails      = "userDetails"
	FieldPaymentMethod    = "paymentMethod"
	FieldGatewayOrderID   = "gatewayOrderId"
	FieldGatewayPaymentID = "gatewayPaymentId"
	FieldGatewaySignature = "gatewaySignature"
	FieldStatus           = "status"
	FieldCreatedAt        = "createdAt"
	FieldUpdatedAt        = "updatedAt"
	FieldPaidAt           = "paidAt"
)

// Order is the system-of-record document for one checkout attempt.
type Order struct {
	ID               string                 `json:"id"`
	UserID           string                 `json:"userId"`
	UserEmail        string                 `json:"userEmail"`
	Items            []interface{}          `json:"items"`
	TotalAmount      float64                `json:"totalAmount"`
	UserDetails      map[string]interface{} `json:"userDetails"`
	PaymentMethod    string                 `json:"paymentMethod"`
	GatewayOrderID   string                 `json:"gatewayOrderId,omitempty"`
	GatewayPaymentID *string                `json:"gatewayPaymentId"`
	GatewaySignature *string                `json:"gatewaySignature"`
	Status           OrderStatus            `json:"status"`
	CreatedAt        time.Time              `json:"createdAt"`
	UpdatedAt        time.Time              `json:"updatedAt"`
	PaidAt           *time.Time             `json:"paidAt,omitempty"`

	// Extra holds fields merged in by status updates that are not part of
	// the fixed schema (payment details supplied by an operator).
	Extra map[string]interface{} `json:"-"`
}

// MarshalJSON flattens Extra into the top-level object. Schema fields win
// over extra fields of the same name.
func (o Order) MarshalJSON() ([]byte, error) {
	type plain Order
	base, err := json.Marshal(plain(o))
	if err != nil || len(o.Extra) == 0 {
		return base, err
	}

	var fixed map[string]interface{}
	if err := json.Unmarshal(base, &fixed); err != nil {
		return nil, err
	}
	merged := make(map[string]interface{}, len(fixed)+len(o.Extra))
	for k, v := range o.Extra {
		merged[k] = v
	}
	for k, v := range fixed {
		merged[k] = v
	}
	return json.Marshal(merged)
}
