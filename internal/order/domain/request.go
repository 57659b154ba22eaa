package domain

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// LineItem is one requested product line as submitted by the client.
// UnitPrice is the price the client saw; it must still equal the catalog price.
type LineItem struct {
	ProductID  ProductID       `json:"productId" validate:"required,max=64"`
	Quantity   int             `json:"quantity" validate:"gt=0,lte=1000"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
}

// OrderRequest is the input to order placement.
type OrderRequest struct {
	CustomerName    string          `json:"customerName" validate:"required,max=200"`
	CustomerPhone   string          `json:"customerPhone" validate:"required,max=50"`
	CustomerEmail   string          `json:"customerEmail,omitempty" validate:"omitempty,email,max=254"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	WrappingCost    decimal.Decimal `json:"wrappingCost"`
	NeedsWrapping   bool            `json:"needsWrapping"`
	PaymentMethod   string          `json:"paymentMethod,omitempty" validate:"max=50"`
	Notes           string          `json:"notes,omitempty" validate:"max=2000"`
	Items           []LineItem      `json:"items" validate:"required,min=1,max=100,dive"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// ValidateOrderRequest checks the request shape and its internal arithmetic.
// It does not look at the catalog.
func ValidateOrderRequest(req OrderRequest) error {
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return NewValidationError(fieldPath(fe.Namespace()), describeTag(fe))
		}
		return NewValidationError("request", err.Error())
	}

	itemsTotal := decimal.Zero
	for i, it := range req.Items {
		if it.UnitPrice.IsNegative() {
			return NewValidationError(fmt.Sprintf("items[%d].unitPrice", i), "must be non-negative")
		}
		if !it.TotalPrice.Equal(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))) {
			return NewValidationError(fmt.Sprintf("items[%d].totalPrice", i), "must equal quantity * unitPrice")
		}
		itemsTotal = itemsTotal.Add(it.TotalPrice)
	}

	if req.WrappingCost.IsNegative() {
		return NewValidationError("wrappingCost", "must be non-negative")
	}
	expected := itemsTotal.Add(req.EffectiveWrappingCost())
	if !req.TotalAmount.Equal(expected) {
		return NewValidationError("totalAmount", "must equal the sum of item totals plus wrapping cost")
	}
	return nil
}

// EffectiveWrappingCost is the wrapping cost that counts toward the total.
func (r OrderRequest) EffectiveWrappingCost() decimal.Decimal {
	if !r.NeedsWrapping {
		return decimal.Zero
	}
	return r.WrappingCost
}

// RequestedQuantities sums quantities per product, preserving first-seen order.
func (r OrderRequest) RequestedQuantities() ([]ProductID, map[ProductID]int) {
	order := make([]ProductID, 0, len(r.Items))
	qty := make(map[ProductID]int, len(r.Items))
	for _, it := range r.Items {
		if _, seen := qty[it.ProductID]; !seen {
			order = append(order, it.ProductID)
		}
		qty[it.ProductID] += it.Quantity
	}
	return order, qty
}

// fieldPath drops the root struct name from a namespace such as
// "OrderRequest.items[0].productId".
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "gt":
		return "must be greater than " + fe.Param()
	case "min":
		return "must have at least " + fe.Param() + " entries"
	case "max", "lte":
		return "must be at most " + fe.Param()
	default:
		return "failed " + fe.Tag() + " check"
	}
}
