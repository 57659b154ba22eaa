// Package domain defines the order core's types, store contract and error types.
package domain

import (
	"errors"
	"fmt"
	"strings"
)

// RuleCode identifies a business-rule violation detected before any write.
type RuleCode string

const (
	CodeInvalidProducts   RuleCode = "INVALID_PRODUCTS"
	CodeInsufficientStock RuleCode = "INSUFFICIENT_STOCK"
	CodePriceMismatch     RuleCode = "PRICE_MISMATCH"
)

// Stable, user-displayable messages. Clients match on these strings.
const (
	MessageInvalidProducts   = "One or more products are not available"
	MessageInsufficientStock = "One or more products do not have enough stock"
	MessagePriceMismatch     = "Product prices have changed. Please refresh and try again."
)

// BusinessRuleError is returned when an order request violates product
// existence, stock or price rules.
type BusinessRuleError struct {
	Code       RuleCode
	ProductIDs []ProductID
}

// Error returns the stable message for the rule code.
func (e *BusinessRuleError) Error() string {
	return e.Message()
}

// Message returns the user-facing message for the rule code.
func (e *BusinessRuleError) Message() string {
	switch e.Code {
	case CodeInvalidProducts:
		return MessageInvalidProducts
	case CodeInsufficientStock:
		return MessageInsufficientStock
	case CodePriceMismatch:
		return MessagePriceMismatch
	default:
		return string(e.Code)
	}
}

// Is matches another BusinessRuleError with the same code, or any
// BusinessRuleError when the target has no code.
func (e *BusinessRuleError) Is(target error) bool {
	t, ok := target.(*BusinessRuleError)
	if !ok {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

func NewInvalidProductsError(ids ...ProductID) error {
	return &BusinessRuleError{Code: CodeInvalidProducts, ProductIDs: ids}
}

func NewInsufficientStockError(ids ...ProductID) error {
	return &BusinessRuleError{Code: CodeInsufficientStock, ProductIDs: ids}
}

func NewPriceMismatchError(ids ...ProductID) error {
	return &BusinessRuleError{Code: CodePriceMismatch, ProductIDs: ids}
}

// AsBusinessRuleError extracts a BusinessRuleError from err.
func AsBusinessRuleError(err error) (*BusinessRuleError, bool) {
	var bre *BusinessRuleError
	if errors.As(err, &bre) {
		return bre, true
	}
	return nil, false
}

func IsInvalidProducts(err error) bool {
	return errors.Is(err, &BusinessRuleError{Code: CodeInvalidProducts})
}

func IsInsufficientStock(err error) bool {
	return errors.Is(err, &BusinessRuleError{Code: CodeInsufficientStock})
}

func IsPriceMismatch(err error) bool {
	return errors.Is(err, &BusinessRuleError{Code: CodePriceMismatch})
}

// ValidationError is returned when an order request is malformed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid order request: field=%s, reason=%s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)
	return ok
}

func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// InvalidProductError is returned when a catalog product fails validation.
type InvalidProductError struct {
	Field  string
	Reason string
	Value  interface{}
}

func (e *InvalidProductError) Error() string {
	return fmt.Sprintf("invalid product: field=%s, reason=%s, value=%v", e.Field, e.Reason, e.Value)
}

func (e *InvalidProductError) Is(target error) bool {
	_, ok := target.(*InvalidProductError)
	return ok
}

func NewInvalidProductError(field, reason string, value interface{}) error {
	return &InvalidProductError{Field: field, Reason: reason, Value: value}
}

func IsInvalidProductError(err error) bool {
	var ipe *InvalidProductError
	return errors.As(err, &ipe)
}

// OrderNotFoundError is returned when an order lookup misses.
type OrderNotFoundError struct {
	Key string
}

func (e *OrderNotFoundError) Error() string {
	return fmt.Sprintf("order not found: %s", e.Key)
}

func (e *OrderNotFoundError) Is(target error) bool {
	_, ok := target.(*OrderNotFoundError)
	return ok
}

func NewOrderNotFoundError(key string) error {
	return &OrderNotFoundError{Key: key}
}

func IsOrderNotFoundError(err error) bool {
	var onf *OrderNotFoundError
	return errors.As(err, &onf)
}

// ErrDuplicateIdempotencyKey is returned by a store when another order already
// holds the idempotency key being inserted.
var ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

var ErrDuplicateOrderNumber = errors.New("duplicate order number")

func joinIDs(ids []ProductID) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, string(id))
	}
	return strings.Join(parts, ",")
}

// Detail renders the rule code with the offending product ids for logs.
func (e *BusinessRuleError) Detail() string {
	if len(e.ProductIDs) == 0 {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, joinIDs(e.ProductIDs))
}
