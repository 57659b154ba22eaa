package domain

import "github.com/shopspring/decimal"

type ProductID string

type ProductStatus string

const (
	ProductStatusActive     ProductStatus = "ACTIVE"
	ProductStatusInactive   ProductStatus = "INACTIVE"
	ProductStatusOutOfStock ProductStatus = "OUT_OF_STOCK"
)

// Product is the catalog view the order core reads. Only the placement
// transaction mutates StockQuantity and, when it reaches zero, Status.
type Product struct {
	ID            ProductID        `json:"id"`
	Name          string           `json:"name"`
	Status        ProductStatus    `json:"status"`
	Price         decimal.Decimal  `json:"price"`
	StockQuantity int              `json:"stockQuantity"`
	GiftWrapPrice *decimal.Decimal `json:"giftWrapPrice,omitempty"`
}

// Purchasable reports whether the product may be sold at all. Stock is
// checked separately.
func (p Product) Purchasable() bool {
	return p.Status == ProductStatusActive
}

// ValidateProduct checks the catalog invariants for a product entering the store.
func ValidateProduct(p Product) error {
	if p.ID == "" {
		return NewInvalidProductError("id", "cannot be empty", p.ID)
	}
	if p.Name == "" {
		return NewInvalidProductError("name", "cannot be empty", p.Name)
	}
	if p.Price.IsNegative() {
		return NewInvalidProductError("price", "must be non-negative", p.Price.String())
	}
	if p.StockQuantity < 0 {
		return NewInvalidProductError("stockQuantity", "must be non-negative", p.StockQuantity)
	}
	switch p.Status {
	case ProductStatusActive, ProductStatusInactive, ProductStatusOutOfStock:
	default:
		return NewInvalidProductError("status", "unknown status", p.Status)
	}
	if p.GiftWrapPrice != nil && p.GiftWrapPrice.IsNegative() {
		return NewInvalidProductError("giftWrapPrice", "must be non-negative", p.GiftWrapPrice.String())
	}
	return nil
}
