package kafka

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureWriter struct {
	msgs []kafka.Message
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func TestNewClient(t *testing.T) {
	assert.False(t, NewClient("").Enabled())
	assert.False(t, NewClient(" , ").Enabled())
	c := NewClient("k1:9092, k2:9092")
	assert.True(t, c.Enabled())
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Brokers)

	w := c.NewWriter("storefront.events")
	assert.Equal(t, "storefront.events", w.Topic)
}

func TestPublishJSON(t *testing.T) {
	w := &captureWriter{}
	require.NoError(t, PublishJSON(context.Background(), w, "order-1", map[string]string{"type": "order.created"}))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "order-1", string(w.msgs[0].Key))
	assert.JSONEq(t, `{"type":"order.created"}`, string(w.msgs[0].Value))
	assert.False(t, w.msgs[0].Time.IsZero())
}

func TestPublish_Disabled(t *testing.T) {
	err := Publish(context.Background(), nil, "k", []byte("v"))
	assert.ErrorIs(t, err, ErrDisabled)
}
