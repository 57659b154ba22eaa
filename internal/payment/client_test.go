package payment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Charge(t *testing.T) {
	r, _ := newRouter(t, &SimulatedGateway{NewID: func() string { return "txn_0123456789abcdef0123456789abcdef" }})
	srv := httptest.NewServer(r)
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, LocaleEN)
	c.HTTP = srv.Client()

	res, err := c.Charge(context.Background(), validCharge())
	require.NoError(t, err)
	assert.Equal(t, Result{Success: true, TransactionID: "txn_0123456789abcdef0123456789abcdef"}, res)

	bad := validCharge()
	bad.CardNumber = "4242424242424241"
	res, err = c.Charge(context.Background(), bad)
	require.NoError(t, err)
	assert.Equal(t, Result{ErrorMessage: ReasonInvalidCard}, res)
}

func TestClient_ChargeEmptyErrorUsesFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ar", r.Header.Get("Accept-Language"))
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, LocaleAR)
	c.HTTP = srv.Client()
	res, err := c.Charge(context.Background(), validCharge())
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, FallbackMessage(LocaleAR), res.ErrorMessage)
}

func TestClient_ChargeTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(url, time.Second, LocaleEN)
	res, err := c.Charge(context.Background(), validCharge())
	require.Error(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, FallbackMessage(LocaleEN), res.ErrorMessage)
}
