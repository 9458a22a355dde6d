// Package pricing turns cart lines into the amounts a shopper is charged.
package pricing

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/example/rugstore/pkg/errs"
	"github.com/example/rugstore/pkg/models"
)

// Rules are the store-wide pricing constants.
type Rules struct {
	Currency              string
	FreeShippingThreshold decimal.Decimal
	ShippingFee           decimal.Decimal
	CouponCode            string
	CouponPercent         decimal.Decimal
}

// Quote is the priced breakdown of a set of lines.
type Quote struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Shipping decimal.Decimal `json:"shipping"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
	Coupon   string          `json:"coupon,omitempty"`
	Currency string          `json:"currency"`
}

var hundred = decimal.NewFromInt(100)

// Subtotal sums unit price times quantity over all lines.
func Subtotal(lines []models.CartItem) decimal.Decimal {
	sum := decimal.Zero
	for _, line := range lines {
		sum = sum.Add(line.LineTotal())
	}
	return sum
}

// ShippingFor charges the flat fee below the threshold; reaching the
// threshold exactly ships free.
func (r Rules) ShippingFor(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.GreaterThanOrEqual(r.FreeShippingThreshold) {
		return decimal.Zero
	}
	return r.ShippingFee
}

// CheckCoupon reports whether code is the recognized coupon. An empty code
// is valid and means no coupon.
func (r Rules) CheckCoupon(code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil
	}
	if r.CouponCode == "" || !strings.EqualFold(code, r.CouponCode) {
		return errs.Validation("pricing.CheckCoupon", "coupon", errs.ErrInvalidCoupon)
	}
	return nil
}

// Quote prices lines under the rules. It has no side effects.
func (r Rules) Quote(lines []models.CartItem, coupon string) (Quote, error) {
	if err := r.CheckCoupon(coupon); err != nil {
		return Quote{}, err
	}

	subtotal := Subtotal(lines)
	shipping := r.ShippingFor(subtotal)
	discount := decimal.Zero
	code := strings.TrimSpace(coupon)
	if code != "" {
		discount = subtotal.Mul(r.CouponPercent).Div(hundred).Round(2)
		code = r.CouponCode
	}

	ceiling := subtotal.Add(shipping)
	if discount.GreaterThan(ceiling) {
		discount = ceiling
	}

	return Quote{
		Subtotal: subtotal.Round(2),
		Shipping: shipping.Round(2),
		Discount: discount,
		Total:    ceiling.Sub(discount).Round(2),
		Coupon:   code,
		Currency: r.Currency,
	}, nil
}

// MinorUnits converts an amount to the integer minor units payment gateways
// expect (paise for INR).
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
