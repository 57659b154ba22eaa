// Package placement implements the order placement transaction: read-only
// validation of products, stock and prices followed by one atomic write of the
// order, its items, the stock decrements and the outbox event.
package placement

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/orna-ly/orna.ly-sub000/internal/order/domain"
	"github.com/orna-ly/orna.ly-sub000/pkg/contracts"
	"github.com/orna-ly/orna.ly-sub000/pkg/logging"
)

type Deps struct {
	Store       domain.OrderStore
	Clock       func() time.Time
	NewID       func() string
	NewNumber   func(time.Time) string
	ServiceName string
}

type Service struct {
	store     domain.OrderStore
	now       func() time.Time
	newID     func() string
	newNumber func(time.Time) string
	service   string
}

type Result struct {
	Order    domain.Order
	Replayed bool
}

func NewService(deps Deps) (*Service, error) {
	if deps.Store == nil {
		return nil, errors.New("placement: store is required")
	}
	s := &Service{
		store:     deps.Store,
		now:       deps.Clock,
		newID:     deps.NewID,
		newNumber: deps.NewNumber,
		service:   deps.ServiceName,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if s.newNumber == nil {
		s.newNumber = NewOrderNumber
	}
	if s.service == "" {
		s.service = "order-service"
	}
	return s, nil
}

// PlaceOrder validates req against the catalog and, if every check passes,
// creates the order and decrements stock atomically. A non-empty idemKey that
// already produced an order returns that order with Replayed set.
func (s *Service) PlaceOrder(ctx context.Context, req domain.OrderRequest, idemKey string) (Result, error) {
	start := s.now()
	if err := domain.ValidateOrderRequest(req); err != nil {
		return Result{}, err
	}

	if idemKey != "" {
		existing, err := s.store.FindOrderByIdempotencyKey(ctx, idemKey)
		switch {
		case err == nil:
			s.log(existing, "idempotent_replay", start, nil)
			return Result{Order: existing, Replayed: true}, nil
		case !domain.IsOrderNotFoundError(err):
			return Result{}, fmt.Errorf("lookup idempotency key: %w", err)
		}
	}

	ids, requested := req.RequestedQuantities()
	products, err := s.loadProducts(ctx, ids)
	if err != nil {
		return Result{}, err
	}
	if err := checkStock(ids, requested, products); err != nil {
		return Result{}, err
	}
	if err := checkPrices(req.Items, products); err != nil {
		return Result{}, err
	}

	order := s.buildOrder(req, products, idemKey)

	err = s.store.RunInTransaction(ctx, func(ctx context.Context, tx domain.OrderTx) error {
		return s.commit(ctx, tx, order, requested)
	})
	if errors.Is(err, domain.ErrDuplicateOrderNumber) {
		// the first attempt rolled back; retry once with a fresh number
		s.log(order, "order_number_collision", start, err)
		order.OrderNumber = s.newNumber(order.CreatedAt)
		err = s.store.RunInTransaction(ctx, func(ctx context.Context, tx domain.OrderTx) error {
			return s.commit(ctx, tx, order, requested)
		})
	}
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateIdempotencyKey) && idemKey != "" {
			existing, lerr := s.store.FindOrderByIdempotencyKey(ctx, idemKey)
			if lerr == nil {
				s.log(existing, "idempotent_replay", start, nil)
				return Result{Order: existing, Replayed: true}, nil
			}
		}
		if _, ok := domain.AsBusinessRuleError(err); ok {
			s.log(order, "rejected", start, err)
			return Result{}, err
		}
		s.log(order, "failed", start, err)
		return Result{}, fmt.Errorf("place order: %w", err)
	}

	s.log(order, "created", start, nil)
	return Result{Order: order}, nil
}

func (s *Service) GetOrder(ctx context.Context, id domain.OrderID) (domain.Order, error) {
	return s.store.GetOrder(ctx, id)
}

// loadProducts returns every requested product or INVALID_PRODUCTS naming the
// ids that are missing or not purchasable.
func (s *Service) loadProducts(ctx context.Context, ids []domain.ProductID) (map[domain.ProductID]domain.Product, error) {
	found, err := s.store.FindProducts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	byID := make(map[domain.ProductID]domain.Product, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}
	var invalid []domain.ProductID
	for _, id := range ids {
		p, ok := byID[id]
		if !ok || !p.Purchasable() {
			invalid = append(invalid, id)
		}
	}
	if len(invalid) > 0 {
		return nil, domain.NewInvalidProductsError(invalid...)
	}
	return byID, nil
}

func checkStock(ids []domain.ProductID, requested map[domain.ProductID]int, products map[domain.ProductID]domain.Product) error {
	var short []domain.ProductID
	for _, id := range ids {
		if requested[id] > products[id].StockQuantity {
			short = append(short, id)
		}
	}
	if len(short) > 0 {
		return domain.NewInsufficientStockError(short...)
	}
	return nil
}

func checkPrices(items []domain.LineItem, products map[domain.ProductID]domain.Product) error {
	var changed []domain.ProductID
	seen := make(map[domain.ProductID]bool)
	for _, it := range items {
		if !it.UnitPrice.Equal(products[it.ProductID].Price) && !seen[it.ProductID] {
			seen[it.ProductID] = true
			changed = append(changed, it.ProductID)
		}
	}
	if len(changed) > 0 {
		return domain.NewPriceMismatchError(changed...)
	}
	return nil
}

func (s *Service) buildOrder(req domain.OrderRequest, products map[domain.ProductID]domain.Product, idemKey string) domain.Order {
	now := s.now().UTC()
	order := domain.Order{
		ID:              domain.OrderID(s.newID()),
		OrderNumber:     s.newNumber(now),
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		CustomerEmail:   req.CustomerEmail,
		ShippingAddress: req.ShippingAddress,
		WrappingCost:    req.EffectiveWrappingCost(),
		NeedsWrapping:   req.NeedsWrapping,
		PaymentMethod:   req.PaymentMethod,
		Notes:           req.Notes,
		PaymentStatus:   domain.PaymentStatusPending,
		Status:          domain.OrderStatusPending,
		IdempotencyKey:  idemKey,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	total := order.WrappingCost
	for _, it := range req.Items {
		p := products[it.ProductID]
		line := p.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
		order.Items = append(order.Items, domain.OrderItem{
			ID:         s.newID(),
			OrderID:    order.ID,
			Product:    domain.ProductRef{ID: p.ID, Name: p.Name},
			Quantity:   it.Quantity,
			UnitPrice:  p.Price,
			TotalPrice: line,
		})
		total = total.Add(line)
	}
	order.TotalAmount = total
	return order
}

// commit runs inside the store transaction. Products are decremented in id
// order so concurrent placements lock rows in the same sequence.
func (s *Service) commit(ctx context.Context, tx domain.OrderTx, order domain.Order, requested map[domain.ProductID]int) error {
	ids := make([]domain.ProductID, 0, len(requested))
	for id := range requested {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var depleted []domain.ProductID
	for _, id := range ids {
		change, err := tx.DecrementStock(ctx, id, requested[id])
		if err != nil {
			return err
		}
		for _, it := range order.Items {
			if it.Product.ID == id && !it.UnitPrice.Equal(change.Price) {
				return domain.NewPriceMismatchError(id)
			}
		}
		if change.Remaining == 0 {
			depleted = append(depleted, id)
		}
	}

	if err := tx.InsertOrder(ctx, order); err != nil {
		return err
	}

	if err := tx.AppendEvent(ctx, orderCreatedEvent(order, s.newID())); err != nil {
		return fmt.Errorf("append %s: %w", contracts.EventOrderCreated, err)
	}
	for _, id := range depleted {
		evt := contracts.Event{
			EventID:   s.newID(),
			OrderID:   string(order.ID),
			CreatedAt: order.CreatedAt,
			Type:      contracts.EventProductOutOfStock,
			Payload:   map[string]any{"product_id": string(id)},
		}
		if err := tx.AppendEvent(ctx, evt); err != nil {
			return fmt.Errorf("append %s: %w", contracts.EventProductOutOfStock, err)
		}
	}
	return nil
}

func orderCreatedEvent(order domain.Order, eventID string) contracts.Event {
	items := make([]map[string]any, 0, len(order.Items))
	for _, it := range order.Items {
		items = append(items, map[string]any{
			"product_id":  string(it.Product.ID),
			"quantity":    it.Quantity,
			"unit_price":  it.UnitPrice.String(),
			"total_price": it.TotalPrice.String(),
		})
	}
	return contracts.Event{
		EventID:   eventID,
		OrderID:   string(order.ID),
		CreatedAt: order.CreatedAt,
		Type:      contracts.EventOrderCreated,
		Payload: map[string]any{
			"order_number": order.OrderNumber,
			"total_amount": order.TotalAmount.String(),
			"items":        items,
		},
	}
}

func (s *Service) log(order domain.Order, status string, start time.Time, err error) {
	fields := logging.Fields{
		Service:     s.service,
		OrderID:     string(order.ID),
		OrderNumber: order.OrderNumber,
		Step:        "place_order",
		Status:      status,
		DurationMS:  s.now().Sub(start).Milliseconds(),
	}
	if bre, ok := domain.AsBusinessRuleError(err); ok {
		fields.Message = bre.Detail()
	} else {
		fields.Err = err
	}
	logging.Log(fields)
}
