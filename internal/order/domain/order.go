package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderID string

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusConfirmed  OrderStatus = "CONFIRMED"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusPaid    PaymentStatus = "PAID"
	PaymentStatusFailed  PaymentStatus = "FAILED"
)

type ShippingAddress struct {
	Address string `json:"address" validate:"required,max=500"`
	City    string `json:"city" validate:"required,max=100"`
	State   string `json:"state,omitempty" validate:"max=100"`
}

// ProductRef is the product snapshot embedded in an order item. It is copied at
// creation time and never follows later catalog changes.
type ProductRef struct {
	ID   ProductID `json:"id"`
	Name string    `json:"name"`
}

type OrderItem struct {
	ID         string          `json:"id"`
	OrderID    OrderID         `json:"orderId"`
	Product    ProductRef      `json:"product"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
}

type Order struct {
	ID              OrderID         `json:"id"`
	OrderNumber     string          `json:"orderNumber"`
	CustomerName    string          `json:"customerName"`
	CustomerPhone   string          `json:"customerPhone"`
	CustomerEmail   string          `json:"customerEmail,omitempty"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	WrappingCost    decimal.Decimal `json:"wrappingCost"`
	NeedsWrapping   bool            `json:"needsWrapping"`
	PaymentMethod   string          `json:"paymentMethod,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	PaymentStatus   PaymentStatus   `json:"paymentStatus"`
	Status          OrderStatus     `json:"status"`
	IdempotencyKey  string          `json:"-"`
	Items           []OrderItem     `json:"items"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Quantity returns the number of units of productID across all items.
func (o Order) Quantity(productID ProductID) int {
	n := 0
	for _, it := range o.Items {
		if it.Product.ID == productID {
			n += it.Quantity
		}
	}
	return n
}
