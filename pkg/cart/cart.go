// Package cart holds the line items of a single shopping session. A Cart is
// not safe for concurrent use; its owning session actor serializes access.
package cart

import (
	"github.com/example/rugstore/pkg/errs"
	"github.com/example/rugstore/pkg/models"
)

// Cart is an ordered set of lines keyed by product and size.
type Cart struct {
	items []models.CartItem
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{}
}

// Add puts quantity units of product in size into the cart. Adding a
// product and size already present increments that line.
func (c *Cart) Add(product models.Product, size string, quantity int) (models.CartItem, error) {
	const op = "cart.Add"
	if quantity < 1 {
		return models.CartItem{}, errs.Validationf(op, "quantity", "quantity must be at least 1")
	}
	if !product.InStock {
		return models.CartItem{}, errs.Validation(op, "productId", errs.ErrOutOfStock)
	}
	if !product.OffersSize(size) {
		return models.CartItem{}, errs.Validationf(op, "size", "size %q is not offered for %s", size, product.Name)
	}

	key := models.LineKey{ProductID: product.ID, Size: size}
	if i := c.index(key); i >= 0 {
		c.items[i].Quantity += quantity
		return c.items[i], nil
	}

	item := models.CartItem{Product: product.Clone(), Size: size, Quantity: quantity}
	c.items = append(c.items, item)
	return item, nil
}

// SetQuantity changes the quantity of a line. Values below 1 are ignored:
// removal goes through Remove.
func (c *Cart) SetQuantity(key models.LineKey, quantity int) error {
	i := c.index(key)
	if i < 0 {
		return errs.NotFoundf("cart.SetQuantity", "item %s (%s) is not in the cart", key.ProductID, key.Size)
	}
	if quantity < 1 {
		return nil
	}
	c.items[i].Quantity = quantity
	return nil
}

func (c *Cart) Remove(key models.LineKey) error {
	i := c.index(key)
	if i < 0 {
		return errs.NotFoundf("cart.Remove", "item %s (%s) is not in the cart", key.ProductID, key.Size)
	}
	c.items = append(c.items[:i], c.items[i+1:]...)
	return nil
}

// Take removes up to quantity units of a line, dropping the line when none
// remain. Keys not in the cart are ignored.
func (c *Cart) Take(key models.LineKey, quantity int) {
	i := c.index(key)
	if i < 0 || quantity < 1 {
		return
	}
	if c.items[i].Quantity > quantity {
		c.items[i].Quantity -= quantity
		return
	}
	c.items = append(c.items[:i], c.items[i+1:]...)
}

func (c *Cart) Clear() {
	c.items = nil
}

// Items returns a copy of the lines in insertion order.
func (c *Cart) Items() []models.CartItem {
	out := make([]models.CartItem, len(c.items))
	for i, item := range c.items {
		item.Product = item.Product.Clone()
		out[i] = item
	}
	return out
}

func (c *Cart) Len() int {
	return len(c.items)
}

// Count is the total number of units across lines.
func (c *Cart) Count() int {
	n := 0
	for _, item := range c.items {
		n += item.Quantity
	}
	return n
}

func (c *Cart) index(key models.LineKey) int {
	for i, item := range c.items {
		if item.Key() == key {
			return i
		}
	}
	return -1
}
