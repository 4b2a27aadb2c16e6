package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"checkout-service/apperrors"
	"checkout-service/controllers"
	"checkout-service/middleware"
	"checkout-service/models"
	"checkout-service/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// ---- mock service ----

type mockOrderService struct {
	createRes  *models.CreateOrderResult
	createErr  error
	createReq  *models.CreateOrderRequest
	verifyErr  error
	verifyReq  *models.VerifyPaymentRequest
	updateErr  error
	updateReq  *models.UpdateOrderStatusRequest
	order      *models.Order
	getErr     error
	orders     []models.Order
	listErr    error
	listUserID string
}

func (m *mockOrderService) CreateOrder(_ context.Context, req *models.CreateOrderRequest) (*models.CreateOrderResult, error) {
	m.createReq = req
	return m.createRes, m.createErr
}

func (m *mockOrderService) VerifyPayment(_ context.Context, req *models.VerifyPaymentRequest) error {
	m.verifyReq = req
	return m.verifyErr
}

func (m *mockOrderService) UpdateOrderStatus(_ context.Context, req *models.UpdateOrderStatusRequest) error {
	m.updateReq = req
	return m.updateErr
}

func (m *mockOrderService) GetOrder(_ context.Context, _ string) (*models.Order, error) {
	return m.order, m.getErr
}

func (m *mockOrderService) ListOrdersForUser(_ context.Context, userID string) ([]models.Order, error) {
	m.listUserID = userID
	return m.orders, m.listErr
}

var _ services.OrderService = (*mockOrderService)(nil)

// ---- helpers ----

func setupRouter(svc services.OrderService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	c := controllers.NewOrderController(svc, zap.NewNop())

	r.POST("/api/create-order", c.CreateOrder)
	r.POST("/api/verify-payment", c.VerifyPayment)
	r.POST("/api/update-order-status", c.UpdateOrderStatus)
	r.GET("/api/order/:orderId", c.GetOrder)
	r.GET("/api/orders/:userId", c.ListOrders)
	r.GET("/api/health", c.Health)
	r.NoRoute(controllers.NotFound)
	return r
}

func doJSON(r http.Handler, method, path, body string, headers ...string) (*httptest.ResponseRecorder, map[string]interface{}) {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

const createBody = `{"userId":"u1","userEmail":"a@b.com","items":[{"sku":"X","qty":1}],"totalAmount":100,"userDetails":{"name":"A"},"amount":10000}`

// ---- tests ----

func TestCreateOrder_Success(t *testing.T) {
	svc := &mockOrderService{createRes: &models.CreateOrderResult{
		GatewayOrderID: "order_abc", LocalOrderID: "ord_1", Amount: 10000, Currency: "INR",
	}}
	r := setupRouter(svc)

	w, resp := doJSON(r, http.MethodPost, "/api/create-order", createBody, "Idempotency-Key", "k-1")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]interface{}{
		"success":         true,
		"razorpayOrderId": "order_abc",
		"firebaseOrderId": "ord_1",
		"amount":          float64(10000),
		"currency":        "INR",
	}, resp)
	require.NotNil(t, svc.createReq)
	assert.Equal(t, "k-1", svc.createReq.IdempotencyKey)
	assert.Equal(t, int64(10000), svc.createReq.Amount)
	assert.Len(t, svc.createReq.Items, 1)
}

func TestCreateOrder_StripeClientSecret(t *testing.T) {
	r := setupRouter(&mockOrderService{createRes: &models.CreateOrderResult{
		GatewayOrderID: "pi_123", LocalOrderID: "ord_1", Amount: 10000, Currency: "INR", ClientSecret: "pi_123_secret_abc",
	}})

	w, resp := doJSON(r, http.MethodPost, "/api/create-order", createBody)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pi_123", resp["razorpayOrderId"])
	assert.Equal(t, "pi_123_secret_abc", resp["clientSecret"])
}

func TestCreateOrder_MalformedBody(t *testing.T) {
	svc := &mockOrderService{}
	r := setupRouter(svc)

	w, resp := doJSON(r, http.MethodPost, "/api/create-order", `{"userId":`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, false, resp["success"])
	assert.Equal(t, "Invalid request body", resp["error"])
	assert.Nil(t, svc.createReq)
}

func TestCreateOrder_ErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
		msg  string
	}{
		{"validation", apperrors.Validation("Missing required fields: userId"), http.StatusBadRequest, "Missing required fields: userId"},
		{"gateway", apperrors.Gateway("Authentication failed", nil), http.StatusInternalServerError, "Authentication failed"},
		{"store", apperrors.Store("Failed to save order", errors.New("io")), http.StatusInternalServerError, "Failed to save order"},
		{"unclassified", errors.New("nil pointer"), http.StatusInternalServerError, "Internal server error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := setupRouter(&mockOrderService{createErr: tc.err})

			w, resp := doJSON(r, http.MethodPost, "/api/create-order", createBody)

			assert.Equal(t, tc.code, w.Code)
			assert.Equal(t, false, resp["success"])
			assert.Equal(t, tc.msg, resp["error"])
		})
	}
}

func TestVerifyPayment_Success(t *testing.T) {
	svc := &mockOrderService{}
	r := setupRouter(svc)

	body := `{"razorpay_order_id":"order_abc","razorpay_payment_id":"pay_xyz","razorpay_signature":"sig","firebaseOrderId":"ord_1"}`
	w, resp := doJSON(r, http.MethodPost, "/api/verify-payment", body)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]interface{}{"success": true, "message": "Payment verified successfully"}, resp)
	assert.Equal(t, &models.VerifyPaymentRequest{
		GatewayOrderID: "order_abc", GatewayPaymentID: "pay_xyz", Signature: "sig", LocalOrderID: "ord_1",
	}, svc.verifyReq)
}

func TestVerifyPayment_MismatchUsesMessageField(t *testing.T) {
	r := setupRouter(&mockOrderService{verifyErr: apperrors.VerificationFailed("Payment verification failed")})

	body := `{"razorpay_order_id":"order_abc","razorpay_payment_id":"pay_xyz","razorpay_signature":"bad","firebaseOrderId":"ord_1"}`
	w, resp := doJSON(r, http.MethodPost, "/api/verify-payment", body)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, map[string]interface{}{"success": false, "message": "Payment verification failed"}, resp)
}

func TestVerifyPayment_StoreError(t *testing.T) {
	r := setupRouter(&mockOrderService{verifyErr: apperrors.Store("Failed to update order status", errors.New("down"))})

	w, resp := doJSON(r, http.MethodPost, "/api/verify-payment", `{"firebaseOrderId":"ord_1"}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Failed to update order status", resp["error"])
}

func TestVerifyPayment_SettledOrderIsConflict(t *testing.T) {
	r := setupRouter(&mockOrderService{verifyErr: apperrors.Conflict("Order is already paid")})

	body := `{"razorpay_order_id":"order_abc","razorpay_payment_id":"pay_xyz","razorpay_signature":"bad","firebaseOrderId":"ord_1"}`
	w, resp := doJSON(r, http.MethodPost, "/api/verify-payment", body)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, map[string]interface{}{"success": false, "error": "Order is already paid"}, resp)
}

func TestUpdateOrderStatus(t *testing.T) {
	svc := &mockOrderService{}
	r := setupRouter(svc)

	w, resp := doJSON(r, http.MethodPost, "/api/update-order-status",
		`{"firebaseOrderId":"ord_1","status":"shipped","paymentDetails":{"method":"upi"}}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, "Order status updated successfully", resp["message"])
	assert.Equal(t, "upi", svc.updateReq.PaymentDetails["method"])
}

func TestUpdateOrderStatus_NotFound(t *testing.T) {
	r := setupRouter(&mockOrderService{updateErr: apperrors.NotFound("Order not found")})

	w, resp := doJSON(r, http.MethodPost, "/api/update-order-status", `{"firebaseOrderId":"nope","status":"paid"}`)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Order not found", resp["error"])
}

func TestGetOrder(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := setupRouter(&mockOrderService{order: &models.Order{
		ID: "ord_1", UserID: "u1", Status: models.OrderStatusPending, CreatedAt: created, UpdatedAt: created,
	}})

	w, resp := doJSON(r, http.MethodGet, "/api/order/ord_1", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["success"])
	order := resp["order"].(map[string]interface{})
	assert.Equal(t, "ord_1", order["id"])
	assert.Equal(t, "pending", order["status"])
	assert.Nil(t, order["gatewayPaymentId"])
}

func TestGetOrder_NotFound(t *testing.T) {
	r := setupRouter(&mockOrderService{getErr: apperrors.NotFound("Order not found")})

	w, resp := doJSON(r, http.MethodGet, "/api/order/missing", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, map[string]interface{}{"success": false, "error": "Order not found"}, resp)
}

func TestListOrders_Empty(t *testing.T) {
	svc := &mockOrderService{orders: []models.Order{}}
	r := setupRouter(svc)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/orders/u1", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"orders":[]}`, w.Body.String())
	assert.Equal(t, "u1", svc.listUserID)
}

func TestHealth(t *testing.T) {
	r := setupRouter(&mockOrderService{})

	w, resp := doJSON(r, http.MethodGet, "/api/health", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, "Server is running", resp["message"])
	_, err := time.Parse(time.RFC3339, resp["timestamp"].(string))
	assert.NoError(t, err)
}

func TestUnknownRoute(t *testing.T) {
	r := setupRouter(&mockOrderService{})

	w, resp := doJSON(r, http.MethodGet, "/api/nope", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, map[string]interface{}{"success": false, "error": "Endpoint not found"}, resp)
}

func TestHandlers_TagOperationAndOutcome(t *testing.T) {
	tests := []struct {
		name     string
		svc      *mockOrderService
		method   string
		path     string
		body     string
		wantOp   string
		wantKind string
	}{
		{"created", &mockOrderService{createRes: &models.CreateOrderResult{GatewayOrderID: "order_1", LocalOrderID: "ord_1"}}, http.MethodPost, "/api/create-order", createBody, "create-order", ""},
		{"malformed body", &mockOrderService{}, http.MethodPost, "/api/create-order", `{`, "create-order", "validation"},
		{"settled order", &mockOrderService{verifyErr: apperrors.Conflict("Order is already paid")}, http.MethodPost, "/api/verify-payment", `{"firebaseOrderId":"ord_1"}`, "verify-payment", "conflict"},
		{"missing order", &mockOrderService{getErr: apperrors.NotFound("Order not found")}, http.MethodGet, "/api/order/ord_1", "", "get-order", "not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gin.SetMode(gin.TestMode)
			r := gin.New()
			var op, kind string
			r.Use(func(c *gin.Context) {
				c.Next()
				op = c.GetString(middleware.OperationKey)
				kind = c.GetString(middleware.ErrorKindKey)
			})
			c := controllers.NewOrderController(tt.svc, zap.NewNop())
			r.POST("/api/create-order", c.CreateOrder)
			r.POST("/api/verify-payment", c.VerifyPayment)
			r.GET("/api/order/:orderId", c.GetOrder)

			doJSON(r, tt.method, tt.path, tt.body)

			assert.Equal(t, tt.wantOp, op)
			assert.Equal(t, tt.wantKind, kind)
		})
	}
}
