package providers

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/paymentintent"
)

const stripeName = "stripe"

// StripeGateway implements PaymentGateway with Stripe PaymentIntents. The
// intent id plays the role of the remote order id.
type StripeGateway struct {
	intents  *paymentintent.Client
	currency string
}

// NewStripeGateway creates a StripeGateway. An empty backendURL targets the
// live Stripe API.
func NewStripeGateway(apiKey, backendURL, defaultCurrency string, timeout time.Duration) *StripeGateway {
	cfg := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: timeout},
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelError},
	}
	if backendURL != "" {
		cfg.URL = stripe.String(backendURL)
	}

	return &StripeGateway{
		intents: &paymentintent.Client{
			B:   stripe.GetBackendWithConfig(stripe.APIBackend, cfg),
			Key: apiKey,
		},
		currency: defaultCurrency,
	}
}

func (s *StripeGateway) Name() string {
	return stripeName
}

// CreateOrder creates a PaymentIntent for the amount. Notes become metadata.
func (s *StripeGateway) CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (*RemoteOrder, error) {
	if currency == "" {
		currency = s.currency
	}
	if err := validateAmount(stripeName, amount, currency); err != nil {
		return nil, err
	}

	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(amount),
		Currency:    stripe.String(strings.ToLower(currency)),
		Description: stripe.String(receipt),
	}
	params.Context = ctx
	for k, v := range notes {
		params.AddMetadata(k, v)
	}

	pi, err := s.intents.New(params)
	if err != nil {
		return nil, stripeGatewayError(err)
	}

	return &RemoteOrder{
		ID:           pi.ID,
		Amount:       pi.Amount,
		Currency:     strings.ToUpper(string(pi.Currency)),
		ClientSecret: pi.ClientSecret,
	}, nil
}

// VerifyPayment fetches the PaymentIntent and accepts the payment only when
// the intent has succeeded, signature is its client secret, and paymentID is
// the intent or its latest charge.
func (s *StripeGateway) VerifyPayment(ctx context.Context, remoteOrderID, paymentID, signature string) (bool, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := s.intents.Get(remoteOrderID, params)
	if err != nil {
		var se *stripe.Error
		if errors.As(err, &se) && se.HTTPStatusCode == http.StatusNotFound {
			return false, nil
		}
		return false, stripeGatewayError(err)
	}

	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return false, nil
	}
	if subtle.ConstantTimeCompare([]byte(pi.ClientSecret), []byte(signature)) != 1 {
		return false, nil
	}
	return paymentID == pi.ID || (pi.LatestCharge != nil && pi.LatestCharge.ID == paymentID), nil
}

func stripeGatewayError(err error) *GatewayError {
	var se *stripe.Error
	if errors.As(err, &se) {
		return &GatewayError{
			Provider:   stripeName,
			StatusCode: se.HTTPStatusCode,
			Message:    se.Msg,
			Err:        err,
		}
	}
	return &GatewayError{Provider: stripeName, Message: "request failed", Err: err}
}
