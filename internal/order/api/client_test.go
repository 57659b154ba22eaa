package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orna-ly/orna.ly-sub000/internal/order/domain"
)

func ringRequest(qty int) domain.OrderRequest {
	price := decimal.RequireFromString("100.00")
	total := price.Mul(decimal.NewFromInt(int64(qty)))
	return domain.OrderRequest{
		CustomerName:    "Layla",
		CustomerPhone:   "+971500000000",
		ShippingAddress: domain.ShippingAddress{Address: "12 Souk St", City: "Dubai"},
		TotalAmount:     total,
		Items:           []domain.LineItem{{ProductID: "ring-001", Quantity: qty, UnitPrice: price, TotalPrice: total}},
	}
}

func TestClient_PlaceOrder(t *testing.T) {
	f := newFixture(t, nil)
	srv := httptest.NewServer(f.router)
	defer srv.Close()
	c := NewClient(srv.URL+"/", time.Second)

	res, err := c.PlaceOrder(context.Background(), ringRequest(1), "cli-1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, res.Status)
	assert.False(t, res.Replayed)
	assert.Equal(t, 1, res.Order.Quantity("ring-001"))

	again, err := c.PlaceOrder(context.Background(), ringRequest(1), "cli-1")
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, res.Order.ID, again.Order.ID)
}

func TestClient_PlaceOrderRejected(t *testing.T) {
	f := newFixture(t, nil)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).PlaceOrder(context.Background(), ringRequest(9), "")
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, string(domain.CodeInsufficientStock), apiErr.Code)
	assert.Equal(t, domain.MessageInsufficientStock, apiErr.Message)
}

func TestClient_NonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).PlaceOrder(context.Background(), ringRequest(1), "")
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, "upstream down", apiErr.Message)
}
