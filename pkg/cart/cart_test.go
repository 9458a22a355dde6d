package cart

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/rugstore/pkg/errs"
	"github.com/example/rugstore/pkg/models"
)

func rug() models.Product {
	return models.Product{
		ID:      "rug-a",
		Name:    "Kilim Runner",
		Price:   decimal.NewFromInt(18000),
		InStock: true,
		Sizes:   []string{"5x8", "8x10"},
	}
}

func TestCart_LineIdentity(t *testing.T) {
	c := New()

	_, err := c.Add(rug(), "5x8", 1)
	require.NoError(t, err)
	item, err := c.Add(rug(), "5x8", 2)
	require.NoError(t, err)
	assert.Equal(t, 3, item.Quantity)
	require.Equal(t, 1, c.Len())

	_, err = c.Add(rug(), "8x10", 1)
	require.NoError(t, err)
	require.Equal(t, 2, c.Len())

	items := c.Items()
	assert.Equal(t, models.LineKey{ProductID: "rug-a", Size: "5x8"}, items[0].Key())
	assert.Equal(t, 3, items[0].Quantity)
	assert.Equal(t, models.LineKey{ProductID: "rug-a", Size: "8x10"}, items[1].Key())
	assert.Equal(t, 4, c.Count())
}

func TestCart_AddValidation(t *testing.T) {
	tests := []struct {
		name    string
		product func() models.Product
		size    string
		qty     int
		field   string
	}{
		{"zero quantity", rug, "5x8", 0, "quantity"},
		{"unknown size", rug, "2x3", 1, "size"},
		{"out of stock", func() models.Product { p := rug(); p.InStock = false; return p }, "5x8", 1, "productId"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New()
			_, err := c.Add(tt.product(), tt.size, tt.qty)
			require.Error(t, err)
			assert.Equal(t, errs.KindValidation, errs.KindOf(err))
			assert.Equal(t, tt.field, errs.FieldOf(err))
			assert.Equal(t, 0, c.Len())
		})
	}
}

func TestCart_SetQuantityFloor(t *testing.T) {
	c := New()
	_, err := c.Add(rug(), "5x8", 2)
	require.NoError(t, err)
	key := models.LineKey{ProductID: "rug-a", Size: "5x8"}

	require.NoError(t, c.SetQuantity(key, 0))
	assert.Equal(t, 2, c.Items()[0].Quantity, "decrement below 1 is a no-op")

	require.NoError(t, c.SetQuantity(key, 5))
	assert.Equal(t, 5, c.Items()[0].Quantity)

	err = c.SetQuantity(models.LineKey{ProductID: "nope"}, 1)
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}

func TestCart_RemoveAndClear(t *testing.T) {
	c := New()
	_, _ = c.Add(rug(), "5x8", 1)
	_, _ = c.Add(rug(), "8x10", 1)

	require.NoError(t, c.Remove(models.LineKey{ProductID: "rug-a", Size: "5x8"}))
	require.Equal(t, 1, c.Len())
	assert.Equal(t, "8x10", c.Items()[0].Size)

	assert.Error(t, c.Remove(models.LineKey{ProductID: "rug-a", Size: "5x8"}))

	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestCart_SnapshotIsolation(t *testing.T) {
	c := New()
	p := rug()
	p.SizePrices = map[string]decimal.Decimal{"8x10": decimal.NewFromInt(30000)}
	_, err := c.Add(p, "8x10", 1)
	require.NoError(t, err)

	p.SizePrices["8x10"] = decimal.NewFromInt(1)
	items := c.Items()
	assert.True(t, items[0].UnitPrice().Equal(decimal.NewFromInt(30000)))

	items[0].Quantity = 99
	assert.Equal(t, 1, c.Items()[0].Quantity)
}

func TestCart_Take(t *testing.T) {
	c := New()
	_, _ = c.Add(rug(), "5x8", 3)
	_, _ = c.Add(rug(), "8x10", 1)

	c.Take(models.LineKey{ProductID: "rug-a", Size: "5x8"}, 2)
	c.Take(models.LineKey{ProductID: "rug-a", Size: "8x10"}, 5)
	c.Take(models.LineKey{ProductID: "missing"}, 1)

	require.Equal(t, 1, c.Len())
	assert.Equal(t, "5x8", c.Items()[0].Size)
	assert.Equal(t, 1, c.Items()[0].Quantity)
}
