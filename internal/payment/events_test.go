package payment

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orna-ly/orna.ly-sub000/pkg/contracts"
)

type captureWriter struct {
	msgs []kafka.Message
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func TestBrokerSink_Emit(t *testing.T) {
	w := &captureWriter{}
	sink := BrokerSink{Writer: w}

	require.NoError(t, sink.Emit(context.Background(), contracts.Event{EventID: "e1", OrderID: "o1", Type: contracts.EventPaymentSucceeded}))
	require.NoError(t, sink.Emit(context.Background(), contracts.Event{EventID: "e2", Type: contracts.EventPaymentFailed}))

	require.Len(t, w.msgs, 2)
	assert.Equal(t, "o1", string(w.msgs[0].Key))
	assert.Equal(t, "e2", string(w.msgs[1].Key))

	var evt contracts.Event
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &evt))
	assert.Equal(t, contracts.EventPaymentSucceeded, evt.Type)
}

func TestChargeHandler_EmitsThroughBroker(t *testing.T) {
	w := &captureWriter{}
	h := NewChargeHandler(&stubGateway{id: "txn_1"}, BrokerSink{Writer: w}, fixedClock)
	_, err := h.Charge(context.Background(), validCharge())
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "o1", string(w.msgs[0].Key))
}
