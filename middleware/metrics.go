package middleware

import (
	"context"
	"time"

	aws_pkg "checkout-service/pkg/aws"

	"github.com/gin-gonic/gin"
)

// Context keys a handler sets to attribute a request to a checkout operation.
// ErrorKindKey holds the apperrors kind of a failed request.
const (
	OperationKey = "checkout_operation"
	ErrorKindKey = "checkout_error_kind"
)

// Metrics records request count, latency and error counts for every request,
// plus a per-operation outcome for requests a handler tagged with
// OperationKey. Metrics are sent asynchronously so CloudWatch latency never
// delays a response.
func Metrics(recorder aws_pkg.MetricsRecorder, serviceName, gateway string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if recorder == nil || !recorder.IsEnabled() {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		duration := time.Since(start)
		statusCode := c.Writer.Status()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		dimensions := map[string]string{
			"Service": serviceName,
			"Method":  c.Request.Method,
			"Path":    path,
			"Status":  statusCodeToRange(statusCode),
		}

		var opDimensions map[string]string
		if op := c.GetString(OperationKey); op != "" {
			outcome := c.GetString(ErrorKindKey)
			if outcome == "" {
				outcome = "success"
			}
			opDimensions = map[string]string{
				"Service":   serviceName,
				"Gateway":   gateway,
				"Operation": op,
				"Outcome":   outcome,
			}
		}

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			_ = recorder.RecordCount(ctx, aws_pkg.MetricHTTPRequests, dimensions)
			_ = recorder.RecordLatency(ctx, aws_pkg.MetricHTTPLatency, duration, dimensions)

			if statusCode >= 400 {
				_ = recorder.RecordCount(ctx, aws_pkg.MetricHTTPErrors, dimensions)
				if statusCode >= 500 {
					_ = recorder.RecordCount(ctx, aws_pkg.MetricHTTP5xx, dimensions)
				} else {
					_ = recorder.RecordCount(ctx, aws_pkg.MetricHTTP4xx, dimensions)
				}
			}

			if opDimensions != nil {
				_ = recorder.RecordCount(ctx, aws_pkg.MetricCheckoutOperations, opDimensions)
				_ = recorder.RecordLatency(ctx, aws_pkg.MetricCheckoutLatency, duration, opDimensions)
			}
		}()
	}
}

// statusCodeToRange converts status code to a range string (2xx, 3xx, 4xx, 5xx)
func statusCodeToRange(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return "2xx"
	case statusCode >= 300 && statusCode < 400:
		return "3xx"
	case statusCode >= 400 && statusCode < 500:
		return "4xx"
	case statusCode >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
