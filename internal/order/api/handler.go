// Package api exposes order placement over HTTP.
package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/orna-ly/orna.ly-sub000/internal/order/domain"
	"github.com/orna-ly/orna.ly-sub000/internal/order/placement"
	"github.com/orna-ly/orna.ly-sub000/pkg/httpx"
	"github.com/orna-ly/orna.ly-sub000/pkg/idempotency"
	"github.com/orna-ly/orna.ly-sub000/pkg/metrics"
)

const (
	CodeInvalidRequest = "invalid_request"
	CodeInternal       = "internal_error"
	CodeForbidden      = "forbidden"
	CodeNotFound       = "not_found"

	MessageOrderCreated = "Order created successfully"
)

// Gate decides whether a request may place orders. Deployments plug their
// auth in here; the default lets every request through.
type Gate func(r *http.Request) bool

func AllowAll(*http.Request) bool { return true }

type Handler struct {
	svc     *placement.Service
	metrics *metrics.ServerMetrics
	gate    Gate
}

func NewHandler(svc *placement.Service, m *metrics.ServerMetrics, gate Gate) *Handler {
	if gate == nil {
		gate = AllowAll
	}
	return &Handler{svc: svc, metrics: m, gate: gate}
}

// Routes mounts the order endpoints. createMW wraps only order creation,
// which is where rate limiting belongs.
func (h *Handler) Routes(r chi.Router, createMW ...func(http.Handler) http.Handler) {
	r.With(createMW...).Post("/orders", h.createOrder)
	r.Get("/orders/{id}", h.getOrder)
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	if !h.gate(r) {
		h.metrics.Outcome("place_order", CodeForbidden)
		httpx.WriteError(w, http.StatusForbidden, CodeForbidden, "Not allowed to place orders")
		return
	}

	key := idempotency.Key(r)
	if !idempotency.Valid(key) {
		h.metrics.Outcome("place_order", CodeInvalidRequest)
		httpx.WriteError(w, http.StatusBadRequest, CodeInvalidRequest, "Invalid "+idempotency.Header+" header")
		return
	}

	var req domain.OrderRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		h.metrics.Outcome("place_order", CodeInvalidRequest)
		httpx.WriteError(w, http.StatusBadRequest, CodeInvalidRequest, "Invalid request body")
		return
	}

	res, err := h.svc.PlaceOrder(r.Context(), req, key)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	if res.Replayed {
		h.metrics.Outcome("place_order", "replayed")
		w.Header().Set(idempotency.ReplayHeader, "true")
		httpx.WriteJSON(w, http.StatusOK, httpx.DataResponse{Data: res.Order, Message: MessageOrderCreated})
		return
	}
	h.metrics.Outcome("place_order", "created")
	httpx.WriteJSON(w, http.StatusCreated, httpx.DataResponse{Data: res.Order, Message: MessageOrderCreated})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		httpx.WriteError(w, http.StatusBadRequest, CodeInvalidRequest, "Order id is required")
		return
	}
	order, err := h.svc.GetOrder(r.Context(), domain.OrderID(id))
	if err != nil {
		if domain.IsOrderNotFoundError(err) {
			httpx.WriteError(w, http.StatusNotFound, CodeNotFound, "Order not found")
			return
		}
		httpx.WriteError(w, http.StatusInternalServerError, CodeInternal, "Internal server error")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, httpx.DataResponse{Data: order})
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	if bre, ok := domain.AsBusinessRuleError(err); ok {
		h.metrics.Outcome("place_order", string(bre.Code))
		httpx.WriteError(w, http.StatusBadRequest, string(bre.Code), bre.Message())
		return
	}
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		h.metrics.Outcome("place_order", CodeInvalidRequest)
		httpx.WriteError(w, http.StatusBadRequest, CodeInvalidRequest, ve.Field+" "+ve.Reason)
		return
	}
	h.metrics.Outcome("place_order", CodeInternal)
	httpx.WriteError(w, http.StatusInternalServerError, CodeInternal, "Internal server error")
}
