package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const razorpayName = "razorpay"

// RazorpayGateway implements PaymentGateway using the Razorpay Orders API.
type RazorpayGateway struct {
	baseURL    string
	keyID      string
	keySecret  string
	currency   string
	signatures SignatureChecker
	httpClient *http.Client
}

// NewRazorpayGateway creates a RazorpayGateway. defaultCurrency is used when
// a caller passes an empty currency. signatures checks checkout callbacks.
func NewRazorpayGateway(baseURL, keyID, keySecret, defaultCurrency string, timeout time.Duration, signatures SignatureChecker) *RazorpayGateway {
	return &RazorpayGateway{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		keyID:      keyID,
		keySecret:  keySecret,
		currency:   defaultCurrency,
		signatures: signatures,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ---- Razorpay API request/response structs ----

type razorpayOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type razorpayOrderResponse struct {
	ID       string `json:"id"`
	Entity   string `json:"entity"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type razorpayErrorResponse struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// ---- PaymentGateway implementation ----

func (r *RazorpayGateway) Name() string {
	return razorpayName
}

// CreateOrder creates a Razorpay order. Failures are never retried.
func (r *RazorpayGateway) CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (*RemoteOrder, error) {
	if currency == "" {
		currency = r.currency
	}
	if err := validateAmount(razorpayName, amount, currency); err != nil {
		return nil, err
	}

	reqBody := razorpayOrderRequest{
		Amount:   amount,
		Currency: currency,
		Receipt:  receipt,
		Notes:    notes,
	}

	var resp razorpayOrderResponse
	if err := r.doRequest(ctx, http.MethodPost, "/orders", reqBody, &resp); err != nil {
		return nil, err
	}
	if resp.ID == "" {
		return nil, &GatewayError{Provider: razorpayName, Message: "response did not include an order id"}
	}

	return &RemoteOrder{
		ID:       resp.ID,
		Amount:   resp.Amount,
		Currency: resp.Currency,
	}, nil
}

// VerifyPayment checks the checkout callback signature over
// remoteOrderID|paymentID. No API call is made.
func (r *RazorpayGateway) VerifyPayment(_ context.Context, remoteOrderID, paymentID, signature string) (bool, error) {
	if r.signatures == nil {
		return false, &GatewayError{Provider: razorpayName, Message: "signature verification is not configured"}
	}
	return r.signatures.Verify(remoteOrderID, paymentID, signature), nil
}

// ---- HTTP helper ----

func (r *RazorpayGateway) doRequest(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return &GatewayError{Provider: razorpayName, Message: "marshal request", Err: err}
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, reqBody)
	if err != nil {
		return &GatewayError{Provider: razorpayName, Message: "create request", Err: err}
	}
	req.SetBasicAuth(r.keyID, r.keySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return &GatewayError{Provider: razorpayName, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return &GatewayError{Provider: razorpayName, Message: "read response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &GatewayError{
			Provider:   razorpayName,
			StatusCode: resp.StatusCode,
			Message:    razorpayErrorMessage(respBytes),
		}
	}

	if out != nil {
		if err := json.Unmarshal(respBytes, out); err != nil {
			return &GatewayError{Provider: razorpayName, Message: "decode response", Err: err}
		}
	}
	return nil
}

func razorpayErrorMessage(body []byte) string {
	var e razorpayErrorResponse
	if err := json.Unmarshal(body, &e); err == nil && e.Error.Description != "" {
		return e.Error.Description
	}
	if msg := strings.TrimSpace(string(body)); msg != "" {
		return msg
	}
	return fmt.Sprintf("empty %s error response", razorpayName)
}
