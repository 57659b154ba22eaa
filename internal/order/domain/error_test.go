package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestBusinessRuleError_Messages(t *testing.T) {
	assert.Equal(t, "One or more products are not available", NewInvalidProductsError("x").Error())
	assert.Equal(t, "One or more products do not have enough stock", NewInsufficientStockError("x").Error())
	assert.Equal(t, "Product prices have changed. Please refresh and try again.", NewPriceMismatchError("x").Error())
}

func TestBusinessRuleError_Matching(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NewInsufficientStockError("ring-001", "necklace-001"))

	assert.True(t, IsInsufficientStock(err))
	assert.False(t, IsInvalidProducts(err))
	assert.False(t, IsPriceMismatch(err))
	assert.True(t, errors.Is(err, &BusinessRuleError{}))

	bre, ok := AsBusinessRuleError(err)
	assert.True(t, ok)
	assert.Equal(t, CodeInsufficientStock, bre.Code)
	assert.Equal(t, "INSUFFICIENT_STOCK: ring-001,necklace-001", bre.Detail())

	_, ok = AsBusinessRuleError(errors.New("other"))
	assert.False(t, ok)
}

func TestOrderNotFoundError(t *testing.T) {
	err := fmt.Errorf("get: %w", NewOrderNotFoundError("abc"))
	assert.True(t, IsOrderNotFoundError(err))
	assert.False(t, IsValidationError(err))
}

func TestValidateProduct(t *testing.T) {
	ok := Product{ID: "p", Name: "P", Status: ProductStatusActive, Price: decimal.NewFromInt(1)}
	assert.NoError(t, ValidateProduct(ok))

	neg := decimal.NewFromInt(-1)
	bad := []Product{
		{Name: "P", Status: ProductStatusActive},
		{ID: "p", Status: ProductStatusActive},
		{ID: "p", Name: "P", Status: ProductStatusActive, Price: neg},
		{ID: "p", Name: "P", Status: ProductStatusActive, StockQuantity: -1},
		{ID: "p", Name: "P", Status: "SOLD"},
		{ID: "p", Name: "P", Status: ProductStatusActive, GiftWrapPrice: &neg},
	}
	for _, p := range bad {
		assert.True(t, IsInvalidProductError(ValidateProduct(p)), "%+v", p)
	}
}

func TestOrderQuantity(t *testing.T) {
	o := Order{Items: []OrderItem{
		{Product: ProductRef{ID: "a"}, Quantity: 2},
		{Product: ProductRef{ID: "b"}, Quantity: 1},
		{Product: ProductRef{ID: "a"}, Quantity: 3},
	}}
	assert.Equal(t, 5, o.Quantity("a"))
	assert.Equal(t, 0, o.Quantity("c"))
}
