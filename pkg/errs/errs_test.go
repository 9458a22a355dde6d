package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"plain error", errors.New("boom"), KindUnknown},
		{"validation", Validation("cart.Add", "quantity", errors.New("must be at least 1")), KindValidation},
		{"wrapped conflict", fmt.Errorf("place order: %w", Conflict("orders.Create", ErrDuplicate)), KindConflict},
		{"nil", nil, KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	err := fmt.Errorf("apply: %w", Validation("pricing.Quote", "coupon", ErrInvalidCoupon))

	assert.True(t, errors.Is(err, ErrInvalidCoupon))
	assert.Equal(t, "coupon", FieldOf(err))
	assert.Equal(t, "invalid coupon code", Message(err))
}

func TestError_Error(t *testing.T) {
	assert.Equal(t, "address.Add: pincode: is required",
		Validationf("address.Add", "pincode", "is required").Error())
	assert.Equal(t, "orders.Get: order not found",
		NotFoundf("orders.Get", "order not found").Error())
}
