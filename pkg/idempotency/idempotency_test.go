package idempotency

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKey(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/orders", nil)
	assert.Empty(t, Key(r))
	r.Header.Set(Header, "  checkout-42 ")
	assert.Equal(t, "checkout-42", Key(r))
}

func TestValid(t *testing.T) {
	assert.True(t, Valid(""))
	assert.True(t, Valid("9f1c2a7e-5b1d-4f7e-9a51-2b0e0c4d1f00"))
	assert.True(t, Valid(strings.Repeat("k", MaxKeyLength)))
	assert.False(t, Valid(strings.Repeat("k", MaxKeyLength+1)))
	assert.False(t, Valid("has space"))
	assert.False(t, Valid("tab\tkey"))
	assert.False(t, Valid("ключ"))
}
