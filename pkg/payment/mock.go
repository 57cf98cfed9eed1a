package payment

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MockGateway is an in-memory gateway for development and tests. Orders are
// accepted locally and signatures are checked against Secret.
type MockGateway struct {
	Secret string

	mu     sync.Mutex
	orders map[string]*Order
}

func NewMockGateway(secret string) *MockGateway {
	return &MockGateway{Secret: secret, orders: make(map[string]*Order)}
}

func (g *MockGateway) KeyID() string { return "rzp_test_mock" }

func (g *MockGateway) CreateOrder(_ context.Context, amount int64, currency, receipt string) (*Order, error) {
	o := &Order{
		ID:       "order_" + uuid.NewString()[:14],
		Amount:   amount,
		Currency: currency,
		Receipt:  receipt,
		Status:   StatusCreated,
	}
	g.mu.Lock()
	g.orders[o.ID] = o
	g.mu.Unlock()
	return o, nil
}

// Order returns a previously created order.
func (g *MockGateway) Order(id string) (*Order, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	o, ok := g.orders[id]
	return o, ok
}

func (g *MockGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return VerifySignature(g.Secret, orderID, paymentID, signature)
}
