package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/orna-ly/orna.ly-sub000/internal/order/domain"
	"github.com/orna-ly/orna.ly-sub000/pkg/contracts"
)

// MemoryStore keeps the catalog and orders in process. A transaction holds the
// write lock for its whole duration and stages its writes, so transactions are
// serialized and a failed one leaves no trace.
type MemoryStore struct {
	mu       sync.RWMutex
	products map[domain.ProductID]domain.Product
	orders   map[domain.OrderID]domain.Order
	byKey    map[string]domain.OrderID
	numbers  map[string]domain.OrderID
	events   []contracts.Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products: make(map[domain.ProductID]domain.Product),
		orders:   make(map[domain.OrderID]domain.Order),
		byKey:    make(map[string]domain.OrderID),
		numbers:  make(map[string]domain.OrderID),
	}
}

func (s *MemoryStore) FindProducts(ctx context.Context, ids []domain.ProductID) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// Product returns a single catalog entry.
func (s *MemoryStore) Product(id domain.ProductID) (domain.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	return p, ok
}

func (s *MemoryStore) UpsertProducts(ctx context.Context, products []domain.Product) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, p := range products {
		if err := domain.ValidateProduct(p); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range products {
		s.products[p.ID] = p
	}
	return nil
}

func (s *MemoryStore) RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx domain.OrderTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryTx{store: s, products: make(map[domain.ProductID]domain.Product)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for id, p := range tx.products {
		s.products[id] = p
	}
	for _, o := range tx.orders {
		s.orders[o.ID] = o
		s.numbers[o.OrderNumber] = o.ID
		if o.IdempotencyKey != "" {
			s.byKey[o.IdempotencyKey] = o.ID
		}
	}
	s.events = append(s.events, tx.events...)
	return nil
}

func (s *MemoryStore) GetOrder(ctx context.Context, id domain.OrderID) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return domain.Order{}, domain.NewOrderNotFoundError(string(id))
	}
	return copyOrder(o), nil
}

func (s *MemoryStore) FindOrderByIdempotencyKey(ctx context.Context, key string) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byKey[key]
	if !ok {
		return domain.Order{}, domain.NewOrderNotFoundError(key)
	}
	return copyOrder(s.orders[id]), nil
}

// Orders returns every committed order.
func (s *MemoryStore) Orders() []domain.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, copyOrder(o))
	}
	return out
}

// Events returns the committed outbox events in commit order.
func (s *MemoryStore) Events() []contracts.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]contracts.Event(nil), s.events...)
}

func (s *MemoryStore) Close() error { return nil }

type memoryTx struct {
	store    *MemoryStore
	products map[domain.ProductID]domain.Product
	orders   []domain.Order
	events   []contracts.Event
}

func (tx *memoryTx) current(id domain.ProductID) (domain.Product, bool) {
	if p, ok := tx.products[id]; ok {
		return p, true
	}
	p, ok := tx.store.products[id]
	return p, ok
}

func (tx *memoryTx) DecrementStock(ctx context.Context, id domain.ProductID, qty int) (domain.StockChange, error) {
	if err := ctx.Err(); err != nil {
		return domain.StockChange{}, err
	}
	if qty <= 0 {
		return domain.StockChange{}, fmt.Errorf("decrement %s: quantity must be positive", id)
	}
	p, ok := tx.current(id)
	if !ok || !p.Purchasable() || p.StockQuantity < qty {
		return domain.StockChange{}, domain.NewInsufficientStockError(id)
	}
	p.StockQuantity -= qty
	if p.StockQuantity == 0 {
		p.Status = domain.ProductStatusOutOfStock
	}
	tx.products[id] = p
	return domain.StockChange{
		ProductID: id,
		Name:      p.Name,
		Price:     p.Price,
		Remaining: p.StockQuantity,
		Status:    p.Status,
	}, nil
}

func (tx *memoryTx) InsertOrder(ctx context.Context, order domain.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if order.ID == "" {
		return errors.New("insert order: empty id")
	}
	if _, ok := tx.store.orders[order.ID]; ok {
		return fmt.Errorf("insert order: id %s already exists", order.ID)
	}
	if _, ok := tx.store.numbers[order.OrderNumber]; ok {
		return domain.ErrDuplicateOrderNumber
	}
	if order.IdempotencyKey != "" {
		if _, ok := tx.store.byKey[order.IdempotencyKey]; ok {
			return domain.ErrDuplicateIdempotencyKey
		}
		for _, staged := range tx.orders {
			if staged.IdempotencyKey == order.IdempotencyKey {
				return domain.ErrDuplicateIdempotencyKey
			}
		}
	}
	tx.orders = append(tx.orders, copyOrder(order))
	return nil
}

func (tx *memoryTx) AppendEvent(ctx context.Context, evt contracts.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if evt.CreatedAt.IsZero() {
		evt.CreatedAt = time.Now().UTC()
	}
	tx.events = append(tx.events, evt)
	return nil
}

func copyOrder(o domain.Order) domain.Order {
	o.Items = append([]domain.OrderItem(nil), o.Items...)
	return o
}
