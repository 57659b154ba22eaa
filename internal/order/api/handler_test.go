package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orna-ly/orna.ly-sub000/internal/order/domain"
	"github.com/orna-ly/orna.ly-sub000/internal/order/placement"
	"github.com/orna-ly/orna.ly-sub000/internal/order/store"
	"github.com/orna-ly/orna.ly-sub000/pkg/httpx"
	"github.com/orna-ly/orna.ly-sub000/pkg/idempotency"
	"github.com/orna-ly/orna.ly-sub000/pkg/metrics"
)

type fixture struct {
	store   *store.MemoryStore
	metrics *metrics.ServerMetrics
	router  chi.Router
}

func newFixture(t *testing.T, gate Gate) fixture {
	t.Helper()
	s := store.NewMemoryStore()
	require.NoError(t, s.UpsertProducts(context.Background(), []domain.Product{
		{ID: "ring-001", Name: "Gold Ring", Status: domain.ProductStatusActive, Price: decimal.RequireFromString("100.00"), StockQuantity: 5},
		{ID: "necklace-001", Name: "Pearl Necklace", Status: domain.ProductStatusActive, Price: decimal.RequireFromString("250.00"), StockQuantity: 2},
	}))
	return newFixtureWithStore(t, s, gate)
}

func newFixtureWithStore(t *testing.T, s *store.MemoryStore, gate Gate) fixture {
	t.Helper()
	svc, err := placement.NewService(placement.Deps{Store: s})
	require.NoError(t, err)
	m := metrics.NewServerMetrics(prometheus.NewRegistry(), "order-service")
	r := chi.NewRouter()
	NewHandler(svc, m, gate).Routes(r)
	return fixture{store: s, metrics: m, router: r}
}

const ringBody = `{
	"customerName": "Layla",
	"customerPhone": "+971500000000",
	"shippingAddress": {"address": "12 Souk St", "city": "Dubai"},
	"totalAmount": "200.00",
	"items": [{"productId": "ring-001", "quantity": 2, "unitPrice": "100.00", "totalPrice": "200.00"}]
}`

func post(t *testing.T, r http.Handler, body, key string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set(idempotency.Header, key)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func readError(t *testing.T, rec *httptest.ResponseRecorder) httpx.ErrorResponse {
	t.Helper()
	var er httpx.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &er))
	return er
}

func TestCreateOrder_Created(t *testing.T) {
	f := newFixture(t, nil)
	rec := post(t, f.router, ringBody, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var body struct {
		Data    domain.Order `json:"data"`
		Message string       `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, MessageOrderCreated, body.Message)
	assert.True(t, strings.HasPrefix(body.Data.OrderNumber, "ORN-"))
	assert.True(t, body.Data.TotalAmount.Equal(decimal.RequireFromString("200")))
	assert.NotContains(t, rec.Body.String(), "idempotencyKey")

	p, _ := f.store.Product("ring-001")
	assert.Equal(t, 3, p.StockQuantity)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Outcomes.WithLabelValues("place_order", "created")))
}

func TestCreateOrder_BusinessRules(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		code    string
		message string
	}{
		{
			name: "insufficient stock",
			body: `{"customerName":"A","customerPhone":"1","shippingAddress":{"address":"x","city":"y"},"totalAmount":"750.00",
				"items":[{"productId":"necklace-001","quantity":3,"unitPrice":"250.00","totalPrice":"750.00"}]}`,
			code:    "INSUFFICIENT_STOCK",
			message: "One or more products do not have enough stock",
		},
		{
			name: "price mismatch",
			body: `{"customerName":"A","customerPhone":"1","shippingAddress":{"address":"x","city":"y"},"totalAmount":"90.00",
				"items":[{"productId":"ring-001","quantity":1,"unitPrice":"90.00","totalPrice":"90.00"}]}`,
			code:    "PRICE_MISMATCH",
			message: "Product prices have changed. Please refresh and try again.",
		},
		{
			name: "unknown product",
			body: `{"customerName":"A","customerPhone":"1","shippingAddress":{"address":"x","city":"y"},"totalAmount":"1.00",
				"items":[{"productId":"ghost","quantity":1,"unitPrice":"1.00","totalPrice":"1.00"}]}`,
			code:    "INVALID_PRODUCTS",
			message: "One or more products are not available",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, nil)
			rec := post(t, f.router, tc.body, "")
			require.Equal(t, http.StatusBadRequest, rec.Code)
			er := readError(t, rec)
			assert.Equal(t, tc.code, er.Error)
			assert.Equal(t, tc.message, er.Message)
			assert.Empty(t, f.store.Orders())
		})
	}
}

func TestCreateOrder_InvalidInput(t *testing.T) {
	f := newFixture(t, nil)

	rec := post(t, f.router, `{"customerName":`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid request body", readError(t, rec).Message)

	rec = post(t, f.router, `{"unknown":1}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post(t, f.router, strings.Replace(ringBody, `"Layla"`, `""`, 1), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	er := readError(t, rec)
	assert.Equal(t, CodeInvalidRequest, er.Error)
	assert.Equal(t, "customerName is required", er.Message)

	rec = post(t, f.router, ringBody, "bad key with spaces")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, f.store.Orders())
}

func TestCreateOrder_IdempotentReplay(t *testing.T) {
	f := newFixture(t, nil)

	first := post(t, f.router, ringBody, "checkout-123")
	require.Equal(t, http.StatusCreated, first.Code)
	second := post(t, f.router, ringBody, "checkout-123")
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "true", second.Header().Get(idempotency.ReplayHeader))

	var a, b struct {
		Data domain.Order `json:"data"`
	}
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &a))
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &b))
	assert.Equal(t, a.Data.ID, b.Data.ID)

	p, _ := f.store.Product("ring-001")
	assert.Equal(t, 3, p.StockQuantity)
}

func TestCreateOrder_Gate(t *testing.T) {
	f := newFixture(t, func(*http.Request) bool { return false })
	rec := post(t, f.router, ringBody, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, CodeForbidden, readError(t, rec).Error)
}

func TestCreateOrder_RouteMiddleware(t *testing.T) {
	s := store.NewMemoryStore()
	svc, err := placement.NewService(placement.Deps{Store: s})
	require.NoError(t, err)
	r := chi.NewRouter()
	blocked := func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		})
	}
	NewHandler(svc, metrics.NewServerMetrics(prometheus.NewRegistry(), "order-service"), nil).Routes(r, blocked)

	assert.Equal(t, http.StatusTeapot, post(t, r, ringBody, "").Code)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/x", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetOrder(t *testing.T) {
	f := newFixture(t, nil)
	created := post(t, f.router, ringBody, "")
	require.Equal(t, http.StatusCreated, created.Code)
	var body struct {
		Data domain.Order `json:"data"`
	}
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &body))

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/"+string(body.Data.ID), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), body.Data.OrderNumber)

	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Order not found", readError(t, rec).Message)
}

type brokenStore struct{ *store.MemoryStore }

func (brokenStore) RunInTransaction(context.Context, func(context.Context, domain.OrderTx) error) error {
	return errors.New("connection reset")
}

func TestCreateOrder_InternalError(t *testing.T) {
	s := store.NewMemoryStore()
	require.NoError(t, s.UpsertProducts(context.Background(), []domain.Product{
		{ID: "ring-001", Name: "Gold Ring", Status: domain.ProductStatusActive, Price: decimal.RequireFromString("100.00"), StockQuantity: 5},
	}))
	svc, err := placement.NewService(placement.Deps{Store: brokenStore{s}})
	require.NoError(t, err)
	r := chi.NewRouter()
	NewHandler(svc, metrics.NewServerMetrics(prometheus.NewRegistry(), "order-service"), nil).Routes(r)

	rec := post(t, r, ringBody, "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	er := readError(t, rec)
	assert.Equal(t, CodeInternal, er.Error)
	assert.NotContains(t, er.Message, "connection reset")
}
