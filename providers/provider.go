package providers

import (
	"context"
	"fmt"
)

// PaymentGateway is implemented by every payment processor integration.
type PaymentGateway interface {
	// CreateOrder registers a remote order for amount (smallest currency
	// unit) and returns the gateway's identifier for it.
	CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (*RemoteOrder, error)

	// VerifyPayment reports whether paymentID settled the remote order.
	// signature is the proof the checkout client got back from the gateway.
	// A false result is a rejected payment; an error means the gateway could
	// not be asked.
	VerifyPayment(ctx context.Context, remoteOrderID, paymentID, signature string) (bool, error)

	// Name identifies the gateway; it is stored as the order's payment method.
	Name() string
}

// SignatureChecker validates an HMAC callback signature.
type SignatureChecker interface {
	Verify(orderRef, paymentRef, candidate string) bool
}

// RemoteOrder is the gateway's view of a created order. ClientSecret is set
// by gateways whose checkout widget needs it to confirm the payment.
type RemoteOrder struct {
	ID           string `json:"id"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	ClientSecret string `json:"clientSecret,omitempty"`
}

// GatewayError is returned when the remote payment API rejects a call or
// cannot be reached. Message carries the remote description when present.
type GatewayError struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *GatewayError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

func validateAmount(provider string, amount int64, currency string) error {
	if amount <= 0 {
		return &GatewayError{Provider: provider, Message: "amount must be a positive integer in the smallest currency unit"}
	}
	if currency == "" {
		return &GatewayError{Provider: provider, Message: "currency is required"}
	}
	return nil
}
