package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/orna-ly/orna.ly-sub000/internal/order/domain"
	"github.com/orna-ly/orna.ly-sub000/pkg/contracts"
	"github.com/orna-ly/orna.ly-sub000/pkg/outbox"
)

// PgxIface is the subset of *pgxpool.Pool the store uses. pgxmock satisfies it.
type PgxIface interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

const (
	idempotencyConstraint = "orders_idempotency_key_key"
	orderNumberConstraint = "orders_order_number_key"
)

type PostgresStore struct {
	db    PgxIface
	topic string
}

// NewPostgresStore opens a pool, pings it and returns the store.
func NewPostgresStore(ctx context.Context, connString, eventsTopic string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	config.MaxConns = 25
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return NewPostgresStoreWithDB(pool, eventsTopic), nil
}

func NewPostgresStoreWithDB(db PgxIface, eventsTopic string) *PostgresStore {
	if eventsTopic == "" {
		eventsTopic = contracts.DefaultEventsTopic
	}
	return &PostgresStore{db: db, topic: eventsTopic}
}

// DB exposes the connection for the outbox relay.
func (s *PostgresStore) DB() outbox.DB { return s.db }

func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'ACTIVE',
		price NUMERIC(12,2) NOT NULL CHECK (price >= 0),
		stock_quantity INTEGER NOT NULL CHECK (stock_quantity >= 0),
		gift_wrap_price NUMERIC(12,2),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		order_number TEXT NOT NULL,
		customer_name TEXT NOT NULL,
		customer_phone TEXT NOT NULL,
		customer_email TEXT,
		shipping_address TEXT NOT NULL,
		shipping_city TEXT NOT NULL,
		shipping_state TEXT,
		total_amount NUMERIC(12,2) NOT NULL,
		wrapping_cost NUMERIC(12,2) NOT NULL DEFAULT 0,
		needs_wrapping BOOLEAN NOT NULL DEFAULT false,
		payment_method TEXT,
		notes TEXT,
		payment_status TEXT NOT NULL,
		status TEXT NOT NULL,
		idempotency_key TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT ` + orderNumberConstraint + ` UNIQUE (order_number),
		CONSTRAINT ` + idempotencyConstraint + ` UNIQUE (idempotency_key)
	)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		position INTEGER NOT NULL DEFAULT 0,
		product_id TEXT NOT NULL REFERENCES products(id),
		product_name TEXT NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		unit_price NUMERIC(12,2) NOT NULL,
		total_price NUMERIC(12,2) NOT NULL
	)`,
	`ALTER TABLE order_items ADD COLUMN IF NOT EXISTS position INTEGER NOT NULL DEFAULT 0`,
	`CREATE INDEX IF NOT EXISTS idx_order_items_order_id ON order_items(order_id, position)`,
	outbox.Schema,
	`CREATE INDEX IF NOT EXISTS idx_outbox_pending ON outbox(id) WHERE sent_at IS NULL`,
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	for _, m := range migrations {
		if _, err := s.db.Exec(ctx, m); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}
	return nil
}

const selectProducts = `SELECT id, name, status, price, stock_quantity, gift_wrap_price FROM products WHERE id = ANY($1)`

func (s *PostgresStore) FindProducts(ctx context.Context, ids []domain.ProductID) ([]domain.Product, error) {
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, string(id))
	}
	rows, err := s.db.Query(ctx, selectProducts, keys)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var out []domain.Product
	for rows.Next() {
		var (
			id, name, status string
			price            decimal.Decimal
			stock            int
			wrap             decimal.NullDecimal
		)
		if err := rows.Scan(&id, &name, &status, &price, &stock, &wrap); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		p := domain.Product{
			ID:            domain.ProductID(id),
			Name:          name,
			Status:        domain.ProductStatus(status),
			Price:         price,
			StockQuantity: stock,
		}
		if wrap.Valid {
			w := wrap.Decimal
			p.GiftWrapPrice = &w
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

const upsertProduct = `INSERT INTO products (id, name, status, price, stock_quantity, gift_wrap_price)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	status = EXCLUDED.status,
	price = EXCLUDED.price,
	stock_quantity = EXCLUDED.stock_quantity,
	gift_wrap_price = EXCLUDED.gift_wrap_price,
	updated_at = now()`

func (s *PostgresStore) UpsertProducts(ctx context.Context, products []domain.Product) error {
	for _, p := range products {
		if err := domain.ValidateProduct(p); err != nil {
			return err
		}
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, p := range products {
		var wrap any
		if p.GiftWrapPrice != nil {
			wrap = p.GiftWrapPrice.String()
		}
		if _, err := tx.Exec(ctx, upsertProduct, string(p.ID), p.Name, string(p.Status), p.Price.String(), p.StockQuantity, wrap); err != nil {
			return fmt.Errorf("upsert product %s: %w", p.ID, err)
		}
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx domain.OrderTx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &postgresTx{tx: tx, topic: s.topic}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err, idempotencyConstraint) {
			return domain.ErrDuplicateIdempotencyKey
		}
		if isUniqueViolation(err, orderNumberConstraint) {
			return domain.ErrDuplicateOrderNumber
		}
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

const selectOrder = `SELECT id, order_number, customer_name, customer_phone, COALESCE(customer_email, ''),
	shipping_address, shipping_city, COALESCE(shipping_state, ''), total_amount, wrapping_cost, needs_wrapping,
	COALESCE(payment_method, ''), COALESCE(notes, ''), payment_status, status, COALESCE(idempotency_key, ''),
	created_at, updated_at
FROM orders WHERE `

const selectItems = `SELECT id, product_id, product_name, quantity, unit_price, total_price
FROM order_items WHERE order_id = $1 ORDER BY position, id`

func (s *PostgresStore) GetOrder(ctx context.Context, id domain.OrderID) (domain.Order, error) {
	return s.loadOrder(ctx, "id = $1", string(id))
}

func (s *PostgresStore) FindOrderByIdempotencyKey(ctx context.Context, key string) (domain.Order, error) {
	return s.loadOrder(ctx, "idempotency_key = $1", key)
}

func (s *PostgresStore) loadOrder(ctx context.Context, where, arg string) (domain.Order, error) {
	var (
		o                         domain.Order
		id, paymentStatus, status string
	)
	err := s.db.QueryRow(ctx, selectOrder+where, arg).Scan(
		&id, &o.OrderNumber, &o.CustomerName, &o.CustomerPhone, &o.CustomerEmail,
		&o.ShippingAddress.Address, &o.ShippingAddress.City, &o.ShippingAddress.State,
		&o.TotalAmount, &o.WrappingCost, &o.NeedsWrapping,
		&o.PaymentMethod, &o.Notes, &paymentStatus, &status, &o.IdempotencyKey,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, domain.NewOrderNotFoundError(arg)
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("query order: %w", err)
	}
	o.ID = domain.OrderID(id)
	o.PaymentStatus = domain.PaymentStatus(paymentStatus)
	o.Status = domain.OrderStatus(status)

	rows, err := s.db.Query(ctx, selectItems, id)
	if err != nil {
		return domain.Order{}, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			it                domain.OrderItem
			itemID, productID string
		)
		if err := rows.Scan(&itemID, &productID, &it.Product.Name, &it.Quantity, &it.UnitPrice, &it.TotalPrice); err != nil {
			return domain.Order{}, fmt.Errorf("scan order item: %w", err)
		}
		it.ID = itemID
		it.OrderID = o.ID
		it.Product.ID = domain.ProductID(productID)
		o.Items = append(o.Items, it)
	}
	return o, rows.Err()
}

type postgresTx struct {
	tx    pgx.Tx
	topic string
}

// decrementStock only touches the row while it is ACTIVE and has enough stock.
// The row lock it takes is held until commit, which pins the returned price.
const decrementStock = `UPDATE products
SET stock_quantity = stock_quantity - $2,
	status = CASE WHEN stock_quantity - $2 = 0 THEN 'OUT_OF_STOCK' ELSE status END,
	updated_at = now()
WHERE id = $1 AND status = 'ACTIVE' AND stock_quantity >= $2
RETURNING name, price, stock_quantity, status`

func (t *postgresTx) DecrementStock(ctx context.Context, id domain.ProductID, qty int) (domain.StockChange, error) {
	var (
		change domain.StockChange
		status string
	)
	err := t.tx.QueryRow(ctx, decrementStock, string(id), qty).Scan(&change.Name, &change.Price, &change.Remaining, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.StockChange{}, domain.NewInsufficientStockError(id)
	}
	if err != nil {
		return domain.StockChange{}, fmt.Errorf("decrement stock %s: %w", id, err)
	}
	change.ProductID = id
	change.Status = domain.ProductStatus(status)
	return change, nil
}

const insertOrder = `INSERT INTO orders (id, order_number, customer_name, customer_phone, customer_email,
	shipping_address, shipping_city, shipping_state, total_amount, wrapping_cost, needs_wrapping,
	payment_method, notes, payment_status, status, idempotency_key, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

const insertItem = `INSERT INTO order_items (id, order_id, position, product_id, product_name, quantity, unit_price, total_price)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

func (t *postgresTx) InsertOrder(ctx context.Context, o domain.Order) error {
	_, err := t.tx.Exec(ctx, insertOrder,
		string(o.ID), o.OrderNumber, o.CustomerName, o.CustomerPhone, nullIfEmpty(o.CustomerEmail),
		o.ShippingAddress.Address, o.ShippingAddress.City, nullIfEmpty(o.ShippingAddress.State),
		o.TotalAmount.String(), o.WrappingCost.String(), o.NeedsWrapping,
		nullIfEmpty(o.PaymentMethod), nullIfEmpty(o.Notes), string(o.PaymentStatus), string(o.Status),
		nullIfEmpty(o.IdempotencyKey), o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, idempotencyConstraint) {
			return domain.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("insert order: %w", err)
	}
	for i, it := range o.Items {
		if _, err := t.tx.Exec(ctx, insertItem,
			it.ID, string(o.ID), i, string(it.Product.ID), it.Product.Name, it.Quantity,
			it.UnitPrice.String(), it.TotalPrice.String(),
		); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return nil
}

func (t *postgresTx) AppendEvent(ctx context.Context, evt contracts.Event) error {
	return outbox.Insert(ctx, t.tx, evt.EventID, t.topic, evt.OrderID, evt)
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// isUniqueViolation reports a 23505 error, optionally limited to one constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != "23505" {
			return false
		}
		return constraint == "" || pgErr.ConstraintName == constraint
	}
	return strings.Contains(err.Error(), "SQLSTATE 23505") && strings.Contains(err.Error(), constraint)
}
