// Package payment talks to the external payment processor: it creates
// gateway orders and verifies the signature of completed payments.
package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

type CreateOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

// Order is the gateway's handle for a pending charge. Amount is in minor
// units.
type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// Proof is what the payment widget hands back after the shopper paid.
type Proof struct {
	OrderID   string `json:"gatewayOrderId" binding:"required"`
	PaymentID string `json:"gatewayPaymentId" binding:"required"`
	Signature string `json:"gatewaySignature" binding:"required"`
}

type Gateway interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (Order, error)
	Verify(ctx context.Context, proof Proof) (Status, error)
	KeyID() string
}

// Sign computes the signature the gateway attaches to a completed payment.
func Sign(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func verifySignature(secret string, proof Proof) Status {
	expected := Sign(secret, proof.OrderID, proof.PaymentID)
	if hmac.Equal([]byte(expected), []byte(proof.Signature)) {
		return StatusSuccess
	}
	return StatusFailure
}
