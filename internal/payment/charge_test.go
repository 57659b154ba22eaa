package payment

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/orna-ly/orna.ly-sub000/pkg/contracts"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingSink struct {
	mu     sync.Mutex
	events []contracts.Event
	err    error
}

func (s *recordingSink) Emit(_ context.Context, evt contracts.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
	return s.err
}

type stubGateway struct {
	calls int
	got   GatewayRequest
	id    string
	err   error
}

func (g *stubGateway) Charge(_ context.Context, req GatewayRequest) (string, error) {
	g.calls++
	g.got = req
	return g.id, g.err
}

func validCharge() ChargeRequest {
	return ChargeRequest{
		CardholderName: "Layla",
		CardNumber:     "4242 4242 4242 4242",
		Expiry:         "12/27",
		CVV:            "123",
		Amount:         decimal.RequireFromString("450.00"),
		Currency:       "usd",
		OrderID:        "o1",
	}
}

func fixedClock() time.Time { return testNow }

func TestCharge_Succeeds(t *testing.T) {
	gw := &stubGateway{id: "txn_abc"}
	sink := &recordingSink{}
	h := NewChargeHandler(gw, sink, fixedClock)

	res, err := h.Charge(context.Background(), validCharge())
	require.NoError(t, err)
	assert.Equal(t, ChargeResult{TransactionID: "txn_abc", Status: StatusSucceeded}, res)

	assert.Equal(t, 1, gw.calls)
	assert.Equal(t, "4242424242424242", gw.got.CardNumber)
	assert.Equal(t, "USD", gw.got.Currency)
	assert.Equal(t, time.December, gw.got.ExpiryMonth)
	assert.Equal(t, 2027, gw.got.ExpiryYear)

	require.Len(t, sink.events, 1)
	assert.Equal(t, contracts.EventPaymentSucceeded, sink.events[0].Type)
	assert.Equal(t, "o1", sink.events[0].OrderID)
	assert.Equal(t, "txn_abc", sink.events[0].Payload["transaction_id"])
}

func TestCharge_DefaultCurrency(t *testing.T) {
	gw := &stubGateway{id: "txn_abc"}
	req := validCharge()
	req.Currency = ""
	_, err := NewChargeHandler(gw, nil, fixedClock).Charge(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, DefaultCurrency, gw.got.Currency)
}

func TestCharge_Rejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*ChargeRequest)
		reason string
	}{
		{"bad luhn", func(r *ChargeRequest) { r.CardNumber = "4242424242424241" }, ReasonInvalidCard},
		{"short number", func(r *ChargeRequest) { r.CardNumber = "4242" }, ReasonInvalidCard},
		{"bad expiry", func(r *ChargeRequest) { r.Expiry = "2027-12" }, ReasonInvalidExpiry},
		{"expired", func(r *ChargeRequest) { r.Expiry = "09/26" }, ReasonCardExpired},
		{"expired split fields", func(r *ChargeRequest) {
			r.Expiry, r.ExpiryMonth, r.ExpiryYear = "", "9", "2026"
		}, ReasonCardExpired},
		{"bad split month", func(r *ChargeRequest) {
			r.Expiry, r.ExpiryMonth, r.ExpiryYear = "", "13", "2027"
		}, ReasonInvalidExpiry},
		{"zero amount", func(r *ChargeRequest) { r.Amount = decimal.Zero }, ReasonInvalidAmount},
		{"negative amount", func(r *ChargeRequest) { r.Amount = decimal.RequireFromString("-1") }, ReasonInvalidAmount},
		{"bad currency", func(r *ChargeRequest) { r.Currency = "US" }, ReasonInvalidCurr},
		{"digit currency", func(r *ChargeRequest) { r.Currency = "U5D" }, ReasonInvalidCurr},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gw := &stubGateway{id: "txn_abc"}
			sink := &recordingSink{}
			req := validCharge()
			tc.mutate(&req)

			_, err := NewChargeHandler(gw, sink, fixedClock).Charge(context.Background(), req)
			require.True(t, IsChargeError(err))
			assert.Equal(t, tc.reason, err.Error())
			assert.Zero(t, gw.calls)
			assert.Empty(t, sink.events)
		})
	}
}

func TestCharge_SplitExpiryFields(t *testing.T) {
	gw := &stubGateway{id: "txn_abc"}
	req := validCharge()
	req.Expiry, req.ExpiryMonth, req.ExpiryYear = "", "10", "26"

	_, err := NewChargeHandler(gw, nil, fixedClock).Charge(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, time.October, gw.got.ExpiryMonth)
	assert.Equal(t, 2026, gw.got.ExpiryYear)
}

func TestExpiryPart_UnmarshalJSON(t *testing.T) {
	cases := []struct {
		in   string
		want ExpiryPart
	}{
		{`"01"`, "01"},
		{`" 09 "`, "09"},
		{`9`, "9"},
		{`2027`, "2027"},
		{`null`, ""},
		{`"ab"`, "ab"},
	}
	for _, tc := range cases {
		var got ExpiryPart
		require.NoError(t, json.Unmarshal([]byte(tc.in), &got), tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}

	var got ExpiryPart
	assert.Error(t, json.Unmarshal([]byte(`true`), &got))
	assert.Error(t, json.Unmarshal([]byte(`{}`), &got))
}

func TestCharge_GatewayFailure(t *testing.T) {
	down := errors.New("connection refused")
	gw := &stubGateway{err: down}
	sink := &recordingSink{}

	_, err := NewChargeHandler(gw, sink, fixedClock).Charge(context.Background(), validCharge())
	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.ErrorIs(t, err, down)
	assert.False(t, IsChargeError(err))

	require.Len(t, sink.events, 1)
	assert.Equal(t, contracts.EventPaymentFailed, sink.events[0].Type)
}

func TestCharge_SinkErrorIgnored(t *testing.T) {
	sink := &recordingSink{err: errors.New("broker down")}
	res, err := NewChargeHandler(&stubGateway{id: "txn_1"}, sink, fixedClock).Charge(context.Background(), validCharge())
	require.NoError(t, err)
	assert.Equal(t, "txn_1", res.TransactionID)
}

func TestNewTransactionID(t *testing.T) {
	re := regexp.MustCompile(`^txn_[0-9a-f]{32}$`)
	a, b := NewTransactionID(), NewTransactionID()
	assert.Regexp(t, re, a)
	assert.Regexp(t, re, b)
	assert.NotEqual(t, a, b)
}

func TestSimulatedGateway(t *testing.T) {
	g := &SimulatedGateway{}
	id, err := g.Charge(context.Background(), GatewayRequest{})
	require.NoError(t, err)
	assert.Regexp(t, `^txn_[0-9a-f]{32}$`, id)

	g = &SimulatedGateway{Delay: time.Millisecond, NewID: func() string { return "txn_fixed" }}
	id, err = g.Charge(context.Background(), GatewayRequest{})
	require.NoError(t, err)
	assert.Equal(t, "txn_fixed", id)
}

func TestSimulatedGateway_Cancelled(t *testing.T) {
	g := &SimulatedGateway{Delay: time.Hour}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := NewChargeHandler(g, nil, time.Now).Charge(ctx, ChargeRequest{
		CardNumber: "4242424242424242",
		Expiry:     "12/99",
		Amount:     decimal.NewFromInt(10),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
