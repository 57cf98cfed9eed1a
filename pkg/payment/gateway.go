package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// ErrGateway wraps failures reported by the payment provider.
var ErrGateway = errors.New("payment gateway error")

// Order is a checkout order created at the provider.
type Order struct {
	ID       string
	Amount   int64 // minor units
	Currency string
	Receipt  string
	Status   string
}

// Gateway defines the interface for payment providers.
type Gateway interface {
	// KeyID is the public key the client checkout needs.
	KeyID() string
	// CreateOrder opens an order for amount minor units.
	CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*Order, error)
	// VerifySignature checks the checkout callback signature.
	VerifySignature(orderID, paymentID, signature string) bool
}

// Sign computes the checkout signature: hex(HMAC-SHA256(secret, orderID|paymentID)).
func Sign(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature compares a provided signature with the expected one in
// constant time.
func VerifySignature(secret, orderID, paymentID, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	expected := Sign(secret, orderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Order status constants
const (
	StatusCreated = "created"
	StatusPaid    = "paid"
	StatusFailed  = "failed"
)
