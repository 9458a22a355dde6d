package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPlaced         OrderStatus = "placed"
	OrderStatusPacked         OrderStatus = "packed"
	OrderStatusShipped        OrderStatus = "shipped"
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCancelled      OrderStatus = "cancelled"
	OrderStatusReturned       OrderStatus = "returned"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPlaced:         {OrderStatusPacked, OrderStatusCancelled},
	OrderStatusPacked:         {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:        {OrderStatusOutForDelivery},
	OrderStatusOutForDelivery: {OrderStatusDelivered},
	OrderStatusDelivered:      {OrderStatusReturned},
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPlaced, OrderStatusPacked, OrderStatusShipped, OrderStatusOutForDelivery,
		OrderStatusDelivered, OrderStatusCancelled, OrderStatusReturned:
		return true
	}
	return false
}

// CanTransitionTo reports whether fulfillment may move an order from s to next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type PaymentMethod string

const (
	PaymentOnline PaymentMethod = "online"
	PaymentCOD    PaymentMethod = "cod"
)

// PendingPaymentID marks cash-on-delivery orders that have not been paid yet.
const PendingPaymentID = "PENDING"

func (m PaymentMethod) Valid() bool {
	return m == PaymentOnline || m == PaymentCOD
}

func (m PaymentMethod) Label() string {
	switch m {
	case PaymentOnline:
		return "Online Payment"
	case PaymentCOD:
		return "Cash on Delivery"
	}
	return string(m)
}

type Order struct {
	ID             string          `gorm:"primaryKey;type:varchar(64)" json:"id"`
	UserID         string          `gorm:"type:varchar(64);not null;index" json:"userId"`
	Items          []OrderItem     `gorm:"type:text;serializer:json" json:"items"`
	Subtotal       decimal.Decimal `gorm:"type:decimal(12,2)" json:"subtotal"`
	Shipping       decimal.Decimal `gorm:"type:decimal(12,2)" json:"shipping"`
	Discount       decimal.Decimal `gorm:"type:decimal(12,2)" json:"discount"`
	Total          decimal.Decimal `gorm:"type:decimal(12,2)" json:"total"`
	Coupon         string          `gorm:"type:varchar(32)" json:"coupon,omitempty"`
	Status         OrderStatus     `gorm:"type:varchar(24);default:'placed'" json:"status"`
	Address        Address         `gorm:"type:text;serializer:json" json:"address"`
	PaymentMethod  PaymentMethod   `gorm:"type:varchar(16)" json:"paymentMethod"`
	PaymentLabel   string          `gorm:"type:varchar(32)" json:"paymentLabel"`
	PaymentID      string          `gorm:"type:varchar(64)" json:"paymentId"`
	IdempotencyKey string          `gorm:"type:varchar(64);uniqueIndex" json:"-"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

func (Order) TableName() string {
	return "orders"
}

// Contains reports whether any line of the order is for productID.
func (o Order) Contains(productID string) bool {
	for _, item := range o.Items {
		if item.ProductID == productID {
			return true
		}
	}
	return false
}

// OrderItem is the price-at-purchase snapshot of one cart line.
type OrderItem struct {
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	Image       string          `json:"image,omitempty"`
	Size        string          `json:"size"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	LineTotal   decimal.Decimal `json:"lineTotal"`
}

func NewOrderItem(line CartItem) OrderItem {
	return OrderItem{
		ProductID:   line.Product.ID,
		ProductName: line.Product.Name,
		Image:       line.Product.Image,
		Size:        line.Size,
		Quantity:    line.Quantity,
		UnitPrice:   line.UnitPrice(),
		LineTotal:   line.LineTotal(),
	}
}
