package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSign_KnownVector(t *testing.T) {
	// echo -n "order_1|pay_1" | openssl dgst -sha256 -hmac secret
	sig := Sign("secret", "order_1", "pay_1")
	assert.Equal(t, "52115a0d3400de9e86aade1f1b6eba9e8974604f4e267a9e9a16633a4c8dd2cb", sig)
	assert.NotEqual(t, sig, Sign("secret", "order_1", "pay_2"))
	assert.NotEqual(t, sig, Sign("other", "order_1", "pay_1"))
}

func TestVerifySignature(t *testing.T) {
	good := Sign("secret", "order_1", "pay_1")

	assert.True(t, VerifySignature("secret", "order_1", "pay_1", good))
	assert.False(t, VerifySignature("secret", "order_1", "pay_1", good[:63]+"0"))
	assert.False(t, VerifySignature("secret", "order_1", "pay_2", good))
	assert.False(t, VerifySignature("", "order_1", "pay_1", good))
	assert.False(t, VerifySignature("secret", "order_1", "pay_1", ""))
}

func TestMockGateway(t *testing.T) {
	g := NewMockGateway("secret")
	o, err := g.CreateOrder(context.Background(), 59900, "INR", "rcpt_1")
	require.NoError(t, err)
	assert.Equal(t, int64(59900), o.Amount)

	stored, ok := g.Order(o.ID)
	require.True(t, ok)
	assert.Equal(t, o, stored)

	assert.True(t, g.VerifySignature(o.ID, "pay_1", Sign("secret", o.ID, "pay_1")))
	assert.False(t, g.VerifySignature(o.ID, "pay_1", "forged"))
}

func TestRazorpayGateway_CreateOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "key", user)
		assert.Equal(t, "shh", pass)
		assert.Equal(t, "/orders", r.URL.Path)

		var req razorpayOrderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		_ = json.NewEncoder(w).Encode(razorpayOrder{ID: "order_abc", Amount: req.Amount, Currency: req.Currency, Receipt: req.Receipt, Status: "created"})
	}))
	defer srv.Close()

	g := NewRazorpayGateway("key", "shh").WithBaseURL(srv.URL)
	o, err := g.CreateOrder(context.Background(), 29900, "INR", "rcpt")
	require.NoError(t, err)
	assert.Equal(t, "order_abc", o.ID)
	assert.Equal(t, int64(29900), o.Amount)
	assert.Equal(t, "key", g.KeyID())
}

func TestRazorpayGateway_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"amount too small"}}`))
	}))
	defer srv.Close()

	_, err := NewRazorpayGateway("key", "shh").WithBaseURL(srv.URL).CreateOrder(context.Background(), 1, "INR", "r")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGateway)
	assert.Contains(t, err.Error(), "amount too small")
}
