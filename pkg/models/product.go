package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID                 string                     `json:"id"`
	Name               string                     `json:"name"`
	Description        string                     `json:"description,omitempty"`
	Image              string                     `json:"image,omitempty"`
	Price              decimal.Decimal            `json:"price"`
	SizePrices         map[string]decimal.Decimal `json:"sizePrices,omitempty"`
	SizeOriginalPrices map[string]decimal.Decimal `json:"sizeOriginalPrices,omitempty"`
	InStock            bool                       `json:"inStock"`
	Sizes              []string                   `json:"sizes,omitempty"`
	CreatedAt          time.Time                  `json:"createdAt"`
	UpdatedAt          time.Time                  `json:"updatedAt"`
}

// UnitPrice resolves the price of one unit in the given size. A size
// override wins over the base price.
func (p Product) UnitPrice(size string) decimal.Decimal {
	if price, ok := p.SizePrices[size]; ok {
		return price
	}
	return p.Price
}

// CanonicalSize is the first listed size; it drives the headline price.
func (p Product) CanonicalSize() string {
	if len(p.Sizes) == 0 {
		return ""
	}
	return p.Sizes[0]
}

func (p Product) HeadlinePrice() decimal.Decimal {
	return p.UnitPrice(p.CanonicalSize())
}

// HeadlineMRP returns the original price of the canonical size, if the
// product carries one.
func (p Product) HeadlineMRP() (decimal.Decimal, bool) {
	mrp, ok := p.SizeOriginalPrices[p.CanonicalSize()]
	return mrp, ok
}

// OffersSize reports whether size can be ordered. Products without a size
// list are ordered with an empty size.
func (p Product) OffersSize(size string) bool {
	if len(p.Sizes) == 0 {
		return size == ""
	}
	for _, s := range p.Sizes {
		if s == size {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so snapshots never share maps or slices with
// the catalog.
func (p Product) Clone() Product {
	c := p
	if p.SizePrices != nil {
		c.SizePrices = make(map[string]decimal.Decimal, len(p.SizePrices))
		for k, v := range p.SizePrices {
			c.SizePrices[k] = v
		}
	}
	if p.SizeOriginalPrices != nil {
		c.SizeOriginalPrices = make(map[string]decimal.Decimal, len(p.SizeOriginalPrices))
		for k, v := range p.SizeOriginalPrices {
			c.SizeOriginalPrices[k] = v
		}
	}
	if p.Sizes != nil {
		c.Sizes = append([]string(nil), p.Sizes...)
	}
	return c
}
