package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"checkout-service/middleware"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func perform(r http.Handler, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequestID_GeneratesAndEchoes(t *testing.T) {
	r := gin.New()
	r.Use(middleware.RequestID())
	var seen string
	r.GET("/x", func(c *gin.Context) {
		seen = c.GetString(middleware.RequestIDKey)
		c.Status(http.StatusOK)
	})

	w := perform(r, http.MethodGet, "/x", nil)
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
	assert.Equal(t, seen, w.Header().Get(middleware.RequestIDHeader))

	w = perform(r, http.MethodGet, "/x", map[string]string{middleware.RequestIDHeader: "req-123"})
	assert.Equal(t, "req-123", w.Header().Get(middleware.RequestIDHeader))
	assert.Equal(t, "req-123", seen)
}

func TestRequestLogger_LevelFollowsStatus(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.RequestLogger(zap.New(core)))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/bad", func(c *gin.Context) { c.Status(http.StatusBadRequest) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	perform(r, http.MethodGet, "/ok", nil)
	perform(r, http.MethodGet, "/bad", nil)
	perform(r, http.MethodGet, "/boom", nil)

	entries := logs.FilterMessage("http_request").All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	assert.Equal(t, int64(500), entries[2].ContextMap()["status"])
	assert.NotEmpty(t, entries[0].ContextMap()["request_id"])
}

func TestSecurityHeaders(t *testing.T) {
	r := gin.New()
	r.Use(middleware.SecurityHeaders())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := perform(r, http.MethodGet, "/x", nil)
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestCORS_AllowList(t *testing.T) {
	r := gin.New()
	r.Use(middleware.CORS([]string{"https://shop.example.com"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := perform(r, http.MethodGet, "/x", map[string]string{"Origin": "https://shop.example.com"})
	assert.Equal(t, "https://shop.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	w = perform(r, http.MethodGet, "/x", map[string]string{"Origin": "https://evil.example.com"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCORS_Wildcard(t *testing.T) {
	r := gin.New()
	r.Use(middleware.CORS([]string{"*"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := perform(r, http.MethodGet, "/x", map[string]string{"Origin": "https://anywhere.example.com"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestTimeout_SetsDeadline(t *testing.T) {
	r := gin.New()
	r.Use(middleware.Timeout(2 * time.Second))
	var deadline time.Time
	var ok bool
	r.GET("/x", func(c *gin.Context) {
		deadline, ok = c.Request.Context().Deadline()
		c.Status(http.StatusOK)
	})

	perform(r, http.MethodGet, "/x", nil)
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(2*time.Second), deadline, time.Second)
}

type fakeRecorder struct {
	mu     sync.Mutex
	counts map[string]int
	paths  []string
	ops    []map[string]string
}

func (f *fakeRecorder) RecordCount(_ context.Context, name string, dims map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[name]++
	f.paths = append(f.paths, dims["Path"])
	if name == "CheckoutOperations" {
		f.ops = append(f.ops, dims)
	}
	return nil
}

func (f *fakeRecorder) RecordLatency(context.Context, string, time.Duration, map[string]string) error {
	return nil
}

func (f *fakeRecorder) IsEnabled() bool { return true }

func (f *fakeRecorder) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[name]
}

func TestMetrics_RecordsErrorsByClass(t *testing.T) {
	rec := &fakeRecorder{counts: map[string]int{}}
	r := gin.New()
	r.Use(middleware.Metrics(rec, "checkout-service", "razorpay"))
	r.GET("/api/order/:orderId", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	perform(r, http.MethodGet, "/api/order/abc", nil)

	assert.Eventually(t, func() bool { return rec.count("HTTP4xxErrors") == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, rec.count("HTTPRequests"))
	assert.Equal(t, 1, rec.count("HTTPErrors"))
	assert.Zero(t, rec.count("HTTP5xxErrors"))

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Contains(t, rec.paths, "/api/order/:orderId")
}

func TestMetrics_RecordsCheckoutOperationOutcome(t *testing.T) {
	rec := &fakeRecorder{counts: map[string]int{}}
	r := gin.New()
	r.Use(middleware.Metrics(rec, "checkout-service", "stripe"))
	r.POST("/api/verify-payment", func(c *gin.Context) {
		c.Set(middleware.OperationKey, "verify-payment")
		c.Set(middleware.ErrorKindKey, "verification_failed")
		c.Status(http.StatusBadRequest)
	})
	r.GET("/api/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	perform(r, http.MethodPost, "/api/verify-payment", nil)
	perform(r, http.MethodGet, "/api/health", nil)

	assert.Eventually(t, func() bool { return rec.count("HTTPRequests") == 2 }, time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return rec.count("CheckoutOperations") == 1 }, time.Second, 10*time.Millisecond)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, map[string]string{
		"Service":   "checkout-service",
		"Gateway":   "stripe",
		"Operation": "verify-payment",
		"Outcome":   "verification_failed",
	}, rec.ops[0])
}
