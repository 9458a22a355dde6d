package payment

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// FakeGateway is an in-process processor for development and tests. It signs
// payments the same way the hosted gateway does.
type FakeGateway struct {
	secret string

	mu     sync.Mutex
	orders map[string]Order
	calls  int
}

func NewFakeGateway(secret string) *FakeGateway {
	return &FakeGateway{secret: secret, orders: make(map[string]Order)}
}

func (g *FakeGateway) KeyID() string {
	return "fake_key"
}

func (g *FakeGateway) CreateOrder(_ context.Context, req CreateOrderRequest) (Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++

	order := Order{
		ID:       "order_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14],
		Amount:   req.Amount,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Status:   "created",
	}
	g.orders[order.ID] = order
	return order, nil
}

func (g *FakeGateway) Verify(_ context.Context, proof Proof) (Status, error) {
	g.mu.Lock()
	_, known := g.orders[proof.OrderID]
	g.mu.Unlock()
	if !known {
		return StatusFailure, nil
	}
	return verifySignature(g.secret, proof), nil
}

// Pay simulates the shopper completing payment and returns the proof the
// widget would post back.
func (g *FakeGateway) Pay(orderID string) Proof {
	paymentID := "pay_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14]
	return Proof{OrderID: orderID, PaymentID: paymentID, Signature: Sign(g.secret, orderID, paymentID)}
}

// Calls reports how many gateway orders were created.
func (g *FakeGateway) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}
