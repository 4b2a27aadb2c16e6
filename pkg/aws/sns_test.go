package aws

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSNS struct {
	inputs []*sns.PublishInput
	err    error
}

func (f *fakeSNS) Publish(_ context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return &sns.PublishOutput{}, nil
}

func TestSNSClient_PublishSetsEventTypeAttribute(t *testing.T) {
	api := &fakeSNS{}
	c := &SNSClient{client: api}

	err := c.Publish(context.Background(), "arn:aws:sns:ap-south-1:000000000000:orders", []byte(`{"type":"payment_verified","order_id":"o1"}`))
	require.NoError(t, err)
	require.Len(t, api.inputs, 1)

	in := api.inputs[0]
	assert.Equal(t, "arn:aws:sns:ap-south-1:000000000000:orders", *in.TopicArn)
	attr, ok := in.MessageAttributes[EventTypeAttribute]
	require.True(t, ok)
	assert.Equal(t, "String", *attr.DataType)
	assert.Equal(t, "payment_verified", *attr.StringValue)
}

func TestSNSClient_PublishNonJSONHasNoAttributes(t *testing.T) {
	api := &fakeSNS{}
	c := &SNSClient{client: api}

	require.NoError(t, c.Publish(context.Background(), "arn:topic", []byte("plain text")))
	assert.Empty(t, api.inputs[0].MessageAttributes)
}

func TestSNSClient_PublishErrors(t *testing.T) {
	api := &fakeSNS{err: errors.New("throttled")}
	c := &SNSClient{client: api}

	assert.Error(t, c.Publish(context.Background(), "", []byte("{}")))
	assert.Empty(t, api.inputs)

	err := c.Publish(context.Background(), "arn:topic", []byte("{}"))
	assert.ErrorContains(t, err, "throttled")
}
