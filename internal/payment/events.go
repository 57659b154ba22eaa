package payment

import (
	"context"

	"github.com/orna-ly/orna.ly-sub000/pkg/contracts"
	"github.com/orna-ly/orna.ly-sub000/pkg/kafka"
)

// BrokerSink publishes payment events keyed by order id.
type BrokerSink struct {
	Writer kafka.MessageWriter
}

func (s BrokerSink) Emit(ctx context.Context, evt contracts.Event) error {
	key := evt.OrderID
	if key == "" {
		key = evt.EventID
	}
	return kafka.PublishJSON(ctx, s.Writer, key, evt)
}
