package models

import "github.com/shopspring/decimal"

// LineKey identifies a cart line: the same product in another size is a
// different line.
type LineKey struct {
	ProductID string `json:"productId"`
	Size      string `json:"size"`
}

// CartItem is a product snapshot taken when it was put in the cart.
type CartItem struct {
	Product  Product `json:"product"`
	Size     string  `json:"size"`
	Quantity int     `json:"quantity"`
}

func (i CartItem) Key() LineKey {
	return LineKey{ProductID: i.Product.ID, Size: i.Size}
}

func (i CartItem) UnitPrice() decimal.Decimal {
	return i.Product.UnitPrice(i.Size)
}

func (i CartItem) LineTotal() decimal.Decimal {
	return i.UnitPrice().Mul(decimal.NewFromInt(int64(i.Quantity)))
}
