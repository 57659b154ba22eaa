package domain

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/orna-ly/orna.ly-sub000/pkg/contracts"
)

// StockChange is what a successful conditional stock decrement returns.
// Price and Name are read under the same row lock as the decrement.
type StockChange struct {
	ProductID ProductID
	Name      string
	Price     decimal.Decimal
	Remaining int
	Status    ProductStatus
}

// OrderTx is the set of writes allowed inside a placement transaction.
type OrderTx interface {
	// DecrementStock subtracts qty from the product's stock only if the product
	// is ACTIVE and has at least qty units. Otherwise it returns an
	// INSUFFICIENT_STOCK BusinessRuleError and changes nothing.
	DecrementStock(ctx context.Context, id ProductID, qty int) (StockChange, error)
	// InsertOrder persists the order with all its items. It returns
	// ErrDuplicateIdempotencyKey when the key is already taken and
	// ErrDuplicateOrderNumber when the order number is.
	InsertOrder(ctx context.Context, order Order) error
	// AppendEvent records an event in the outbox of the same transaction.
	AppendEvent(ctx context.Context, evt contracts.Event) error
}

// ProductCatalog reads products.
type ProductCatalog interface {
	FindProducts(ctx context.Context, ids []ProductID) ([]Product, error)
}

// OrderStore is the persistence contract of the order core.
type OrderStore interface {
	ProductCatalog
	// RunInTransaction runs fn in one atomic unit. Any error from fn discards
	// every write fn made.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx OrderTx) error) error
	GetOrder(ctx context.Context, id OrderID) (Order, error)
	FindOrderByIdempotencyKey(ctx context.Context, key string) (Order, error)
	UpsertProducts(ctx context.Context, products []Product) error
	Close() error
}
