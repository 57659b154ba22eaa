package payment

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/orna-ly/orna.ly-sub000/pkg/httpx"
	"github.com/orna-ly/orna.ly-sub000/pkg/metrics"
)

const (
	MessagePaymentProcessed   = "Payment processed successfully"
	MessageInvalidBody        = "Invalid request body"
	MessageGatewayUnavailable = "Payment gateway unavailable"
)

type HTTPHandler struct {
	charges *ChargeHandler
	metrics *metrics.ServerMetrics
	now     func() time.Time
}

func NewHTTPHandler(charges *ChargeHandler, m *metrics.ServerMetrics, now func() time.Time) *HTTPHandler {
	if now == nil {
		now = time.Now
	}
	return &HTTPHandler{charges: charges, metrics: m, now: now}
}

func (h *HTTPHandler) Routes(r chi.Router, chargeMW ...func(http.Handler) http.Handler) {
	r.With(chargeMW...).Post("/payments/charge", h.charge)
	r.Post("/payments/validate-card", h.validateCard)
}

// validateCard runs the form checks in the caller's Accept-Language.
func (h *HTTPHandler) validateCard(w http.ResponseWriter, r *http.Request) {
	var form CardForm
	if err := httpx.DecodeJSON(w, r, &form); err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, httpx.ErrorResponse{Error: MessageInvalidBody})
		return
	}
	locale := ParseLocale(r.Header.Get("Accept-Language"))
	httpx.WriteJSON(w, http.StatusOK, ValidateCardForm(form, locale, h.now()))
}

// charge answers 201 with the transaction id, 400 with {error} for rejected
// input and 502 when the gateway fails.
func (h *HTTPHandler) charge(w http.ResponseWriter, r *http.Request) {
	var req ChargeRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		h.metrics.Outcome("charge", "invalid_body")
		httpx.WriteJSON(w, http.StatusBadRequest, httpx.ErrorResponse{Error: MessageInvalidBody})
		return
	}

	res, err := h.charges.Charge(r.Context(), req)
	if err != nil {
		var ce *ChargeError
		if errors.As(err, &ce) {
			h.metrics.Outcome("charge", "rejected")
			httpx.WriteJSON(w, http.StatusBadRequest, httpx.ErrorResponse{Error: ce.Reason})
			return
		}
		h.metrics.Outcome("charge", "gateway_error")
		httpx.WriteJSON(w, http.StatusBadGateway, httpx.ErrorResponse{Error: MessageGatewayUnavailable})
		return
	}

	h.metrics.Outcome("charge", StatusSucceeded)
	httpx.WriteJSON(w, http.StatusCreated, httpx.DataResponse{Data: res, Message: MessagePaymentProcessed})
}
