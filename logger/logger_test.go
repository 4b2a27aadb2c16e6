package logger_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"checkout-service/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_WithoutSink(t *testing.T) {
	for _, env := range []string{"production", "development"} {
		log, err := logger.New(env, nil)
		require.NoError(t, err)
		assert.NotNil(t, log)
	}
}

func TestNew_TeesJSONToSink(t *testing.T) {
	var buf bytes.Buffer
	log, err := logger.New("production", &buf)
	require.NoError(t, err)

	log.Info("order created", zap.String("order_id", "ord_1"))
	_ = log.Sync()

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "order created", entry["msg"])
	assert.Equal(t, "ord_1", entry["order_id"])
	assert.Equal(t, "info", entry["level"])
	assert.Contains(t, entry, "timestamp")
}

func TestNew_ProductionDropsDebug(t *testing.T) {
	var buf bytes.Buffer
	log, err := logger.New("production", &buf)
	require.NoError(t, err)

	log.Debug("noise")
	assert.Zero(t, buf.Len())
}
