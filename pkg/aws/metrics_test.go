package aws

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCloudWatch struct {
	inputs []*cloudwatch.PutMetricDataInput
}

func (f *fakeCloudWatch) PutMetricData(_ context.Context, in *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	f.inputs = append(f.inputs, in)
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func TestMetricsClient_DisabledSendsNothing(t *testing.T) {
	api := &fakeCloudWatch{}
	m := &MetricsClient{client: api, namespace: "Checkout", enabled: false}

	require.NoError(t, m.RecordCount(context.Background(), MetricOrdersCreated, nil))
	assert.Empty(t, api.inputs)
	assert.False(t, m.IsEnabled())
}

func TestMetricsClient_RecordLatency(t *testing.T) {
	api := &fakeCloudWatch{}
	m := &MetricsClient{client: api, namespace: "Checkout", enabled: true}

	err := m.RecordLatency(context.Background(), MetricHTTPLatency, 250*time.Millisecond, map[string]string{"Path": "/api/health"})
	require.NoError(t, err)
	require.Len(t, api.inputs, 1)

	datum := api.inputs[0].MetricData[0]
	assert.Equal(t, "Checkout", *api.inputs[0].Namespace)
	assert.Equal(t, MetricHTTPLatency, *datum.MetricName)
	assert.Equal(t, float64(250), *datum.Value)
	assert.Equal(t, types.StandardUnitMilliseconds, datum.Unit)
	require.Len(t, datum.Dimensions, 1)
	assert.Equal(t, "Path", *datum.Dimensions[0].Name)
}
