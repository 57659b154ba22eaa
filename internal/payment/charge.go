package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/orna-ly/orna.ly-sub000/pkg/contracts"
	"github.com/orna-ly/orna.ly-sub000/pkg/logging"
)

const (
	StatusSucceeded = "succeeded"

	ReasonInvalidCard   = "Invalid card number"
	ReasonInvalidExpiry = "Invalid expiry date"
	ReasonCardExpired   = "Card has expired"
	ReasonInvalidAmount = "Amount must be greater than zero"
	ReasonInvalidCurr   = "Invalid currency"

	DefaultCurrency = "USD"
)

type ChargeRequest struct {
	CardholderName string          `json:"cardholderName"`
	CardNumber     string          `json:"cardNumber"`
	Expiry         string          `json:"expiry,omitempty"`
	ExpiryMonth    ExpiryPart      `json:"expiryMonth,omitempty"`
	ExpiryYear     ExpiryPart      `json:"expiryYear,omitempty"`
	CVV            string          `json:"cvv"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	OrderID        string          `json:"orderId,omitempty"`
}

type ChargeResult struct {
	TransactionID string `json:"transactionId"`
	Status        string `json:"status"`
}

// ChargeError is a rejected charge request. Reason is safe to show the user.
type ChargeError struct {
	Reason string
}

func (e *ChargeError) Error() string { return e.Reason }

func IsChargeError(err error) bool {
	var ce *ChargeError
	return errors.As(err, &ce)
}

// GatewayError wraps a failure of the downstream gateway call.
type GatewayError struct {
	Err error
}

func (e *GatewayError) Error() string { return "payment gateway: " + e.Err.Error() }
func (e *GatewayError) Unwrap() error { return e.Err }

type GatewayRequest struct {
	CardNumber  string
	ExpiryMonth time.Month
	ExpiryYear  int
	Amount      decimal.Decimal
	Currency    string
}

// Gateway performs the actual charge and returns a transaction id.
type Gateway interface {
	Charge(ctx context.Context, req GatewayRequest) (string, error)
}

// EventSink receives payment events. Emit failures are logged, not returned.
type EventSink interface {
	Emit(ctx context.Context, evt contracts.Event) error
}

type ChargeHandler struct {
	gateway Gateway
	events  EventSink
	now     func() time.Time
	service string
}

func NewChargeHandler(gateway Gateway, events EventSink, now func() time.Time) *ChargeHandler {
	if now == nil {
		now = time.Now
	}
	return &ChargeHandler{gateway: gateway, events: events, now: now, service: "payment-service"}
}

// Charge re-validates the card and amount, then calls the gateway once.
func (h *ChargeHandler) Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	start := h.now()
	gwReq, err := h.validate(req)
	if err != nil {
		logging.Log(logging.Fields{Service: h.service, OrderID: req.OrderID, Step: "charge", Status: "rejected", Message: err.Error()})
		return ChargeResult{}, err
	}

	txID, err := h.gateway.Charge(ctx, gwReq)
	if err != nil {
		logging.Log(logging.Fields{Service: h.service, OrderID: req.OrderID, Step: "charge", Status: "gateway_error", Err: err})
		h.emit(ctx, contracts.EventPaymentFailed, req, "")
		return ChargeResult{}, &GatewayError{Err: err}
	}

	logging.Log(logging.Fields{
		Service:    h.service,
		OrderID:    req.OrderID,
		TxID:       txID,
		Step:       "charge",
		Status:     StatusSucceeded,
		DurationMS: h.now().Sub(start).Milliseconds(),
	})
	h.emit(ctx, contracts.EventPaymentSucceeded, req, txID)
	return ChargeResult{TransactionID: txID, Status: StatusSucceeded}, nil
}

func (h *ChargeHandler) validate(req ChargeRequest) (GatewayRequest, error) {
	number := StripCardNumber(req.CardNumber)
	if !LuhnValid(number) {
		return GatewayRequest{}, &ChargeError{Reason: ReasonInvalidCard}
	}
	month, year, err := ParseExpiry(req.expiry())
	if err != nil {
		return GatewayRequest{}, &ChargeError{Reason: ReasonInvalidExpiry}
	}
	if Expired(month, year, h.now()) {
		return GatewayRequest{}, &ChargeError{Reason: ReasonCardExpired}
	}
	if !req.Amount.IsPositive() {
		return GatewayRequest{}, &ChargeError{Reason: ReasonInvalidAmount}
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = DefaultCurrency
	}
	if len(currency) != 3 || !isLetters(currency) {
		return GatewayRequest{}, &ChargeError{Reason: ReasonInvalidCurr}
	}
	return GatewayRequest{
		CardNumber:  number,
		ExpiryMonth: month,
		ExpiryYear:  year,
		Amount:      req.Amount,
		Currency:    currency,
	}, nil
}

// expiry prefers the combined MM/YY field and otherwise joins the separate
// month and year fields.
func (r ChargeRequest) expiry() string {
	if r.Expiry != "" || (r.ExpiryMonth == "" && r.ExpiryYear == "") {
		return r.Expiry
	}
	if !allDigits(string(r.ExpiryMonth)) {
		return ""
	}
	month, err := strconv.Atoi(string(r.ExpiryMonth))
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%02d/%s", month, r.ExpiryYear)
}

// ExpiryPart is a month or year sent either as a JSON number or a string,
// so "01" and 1 both decode. The text is kept as sent and checked later.
type ExpiryPart string

func (p *ExpiryPart) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	switch {
	case raw == "null":
		return nil
	case strings.HasPrefix(raw, `"`):
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = ExpiryPart(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expiry part must be a number or a string: %w", err)
	}
	*p = ExpiryPart(n.String())
	return nil
}

func (h *ChargeHandler) emit(ctx context.Context, eventType string, req ChargeRequest, txID string) {
	if h.events == nil {
		return
	}
	evt := contracts.Event{
		EventID:   uuid.NewString(),
		OrderID:   req.OrderID,
		CreatedAt: h.now().UTC(),
		Type:      eventType,
		Payload: map[string]any{
			"transaction_id": txID,
			"amount":         req.Amount.String(),
			"currency":       req.Currency,
		},
	}
	if err := h.events.Emit(ctx, evt); err != nil {
		logging.Log(logging.Fields{Service: h.service, OrderID: req.OrderID, EventID: evt.EventID, Step: "emit_event", Status: "error", Err: err})
	}
}

func isLetters(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return false
		}
	}
	return true
}

// NewTransactionID returns "txn_" followed by 32 hex characters.
func NewTransactionID() string {
	return "txn_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// SimulatedGateway approves every well-formed charge after Delay.
type SimulatedGateway struct {
	Delay time.Duration
	NewID func() string
}

func (g *SimulatedGateway) Charge(ctx context.Context, req GatewayRequest) (string, error) {
	if g.Delay > 0 {
		timer := time.NewTimer(g.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("charge %s %s: %w", req.Amount, req.Currency, ctx.Err())
		case <-timer.C:
		}
	}
	if g.NewID != nil {
		return g.NewID(), nil
	}
	return NewTransactionID(), nil
}
