// Package cart keeps a shopping cart within known stock. The checks are
// advisory; order placement re-validates everything on the server.
package cart

import (
	"github.com/shopspring/decimal"

	"github.com/orna-ly/orna.ly-sub000/internal/order/domain"
)

// Signal tells the caller what the cart did with a request.
type Signal string

const (
	SignalNone              Signal = ""
	SignalSoldOut           Signal = "sold_out"
	SignalStockLimitReached Signal = "stock_limit_reached"
	SignalQuantityAdjusted  Signal = "quantity_adjusted"
	SignalRemoved           Signal = "removed"
	SignalNotInCart         Signal = "not_in_cart"
)

func (s Signal) Message() string {
	switch s {
	case SignalSoldOut:
		return "This item is sold out"
	case SignalStockLimitReached:
		return "You already have all available stock in your cart"
	case SignalQuantityAdjusted:
		return "Quantity adjusted to available stock"
	case SignalRemoved:
		return "Item removed from cart"
	case SignalNotInCart:
		return "Item is not in your cart"
	default:
		return ""
	}
}

// Line is a product snapshot plus the quantity in the cart.
type Line struct {
	Product  domain.Product `json:"product"`
	Quantity int            `json:"quantity"`
}

// Cart is treated as a value: every operation returns a new Cart and never
// mutates its argument.
type Cart struct {
	Lines []Line `json:"lines"`
}

func (c Cart) index(id domain.ProductID) int {
	for i, l := range c.Lines {
		if l.Product.ID == id {
			return i
		}
	}
	return -1
}

func (c Cart) clone() Cart {
	return Cart{Lines: append([]Line(nil), c.Lines...)}
}

// Quantity returns how many units of id the cart holds.
func (c Cart) Quantity(id domain.ProductID) int {
	if i := c.index(id); i >= 0 {
		return c.Lines[i].Quantity
	}
	return 0
}

func (c Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.Lines {
		total = total.Add(l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return total
}

// AddItem adds one unit of p, refreshing the stored snapshot. It refuses when
// p is sold out or when the cart already holds all of p's stock.
func AddItem(c Cart, p domain.Product) (Cart, Signal) {
	if p.StockQuantity <= 0 || p.Status == domain.ProductStatusOutOfStock {
		return c, SignalSoldOut
	}
	i := c.index(p.ID)
	current := 0
	if i >= 0 {
		current = c.Lines[i].Quantity
	}
	if current+1 > p.StockQuantity {
		return c, SignalStockLimitReached
	}

	next := c.clone()
	if i >= 0 {
		next.Lines[i] = Line{Product: p, Quantity: current + 1}
	} else {
		next.Lines = append(next.Lines, Line{Product: p, Quantity: 1})
	}
	return next, SignalNone
}

// UpdateQuantity sets the quantity for id, clamped to [1, stock]. Requests at
// or below zero, and products with no stock left, remove the line.
func UpdateQuantity(c Cart, id domain.ProductID, requested int) (Cart, Signal) {
	i := c.index(id)
	if i < 0 {
		return c, SignalNotInCart
	}
	line := c.Lines[i]
	stock := line.Product.StockQuantity
	if requested <= 0 || stock <= 0 {
		return RemoveItem(c, id), SignalRemoved
	}

	signal := SignalNone
	qty := requested
	if qty > stock {
		qty = stock
		signal = SignalQuantityAdjusted
	}

	next := c.clone()
	next.Lines[i] = Line{Product: line.Product, Quantity: qty}
	return next, signal
}

func RemoveItem(c Cart, id domain.ProductID) Cart {
	i := c.index(id)
	if i < 0 {
		return c
	}
	next := Cart{Lines: make([]Line, 0, len(c.Lines)-1)}
	next.Lines = append(next.Lines, c.Lines[:i]...)
	next.Lines = append(next.Lines, c.Lines[i+1:]...)
	return next
}

// LineItems converts the cart into order request lines at the snapshot prices.
func (c Cart) LineItems() []domain.LineItem {
	items := make([]domain.LineItem, 0, len(c.Lines))
	for _, l := range c.Lines {
		items = append(items, domain.LineItem{
			ProductID:  l.Product.ID,
			Quantity:   l.Quantity,
			UnitPrice:  l.Product.Price,
			TotalPrice: l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity))),
		})
	}
	return items
}
