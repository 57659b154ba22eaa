package contracts

import "time"

type Event struct {
	EventID   string         `json:"event_id"`
	OrderID   string         `json:"order_id,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload"`
}

const (
	EventOrderCreated      = "order.created"
	EventProductOutOfStock = "product.out_of_stock"
	EventPaymentSucceeded  = "payment.succeeded"
	EventPaymentFailed     = "payment.failed"
)

const (
	DefaultEventsTopic   = "storefront.events"
	DefaultPaymentsTopic = "storefront.payments"
)
