package checkout

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/rugstore/pkg/errs"
	"github.com/example/rugstore/pkg/models"
	"github.com/example/rugstore/pkg/pricing"
)

func rules() pricing.Rules {
	return pricing.Rules{
		Currency:              "INR",
		FreeShippingThreshold: decimal.NewFromInt(50000),
		ShippingFee:           decimal.NewFromInt(2500),
		CouponCode:            "RUGLOVE10",
		CouponPercent:         decimal.NewFromInt(10),
	}
}

func product() models.Product {
	return models.Product{
		ID:      "rug-1",
		Name:    "Dhurrie",
		Price:   decimal.NewFromInt(30000),
		InStock: true,
		Sizes:   []string{"5x8"},
	}
}

func homeAddress() models.Address {
	return models.Address{
		FullName: "Meera Iyer",
		Line1:    "4 Lake View",
		City:     "Chennai",
		State:    "TN",
		Pincode:  "600001",
		Phone:    "9811111111",
	}
}

func sessionAtShipping(t *testing.T, profile models.UserProfile) *Session {
	t.Helper()
	s := NewSession()
	_, err := s.AddItem(product(), "5x8", 1)
	require.NoError(t, err)
	require.NoError(t, s.EnterShipping(profile))
	return s
}

func TestSession_EmptyCartCannotEnterShipping(t *testing.T) {
	s := NewSession()
	err := s.EnterShipping(models.UserProfile{})
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrEmptyCart)
	assert.Equal(t, StepCart, s.Flow().Step())
}

func TestFlow_PreselectsLastUsedAddress(t *testing.T) {
	saved := homeAddress()
	saved.ID = "addr-2"
	other := homeAddress()
	other.ID = "addr-1"
	s := sessionAtShipping(t, models.UserProfile{
		Addresses:         []models.Address{other, saved},
		LastUsedAddressID: "addr-2",
	})

	assert.Equal(t, SavedAddress{AddressID: "addr-2"}, s.Flow().Shipping())
}

func TestFlow_NoSavedAddressesStartsEmptyForm(t *testing.T) {
	s := sessionAtShipping(t, models.UserProfile{})
	assert.Equal(t, NewAddress{}, s.Flow().Shipping())

	err := s.EnterPayment()
	require.Error(t, err)
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
	assert.Equal(t, "fullName", errs.FieldOf(err))
	assert.Equal(t, StepShipping, s.Flow().Step())
}

func TestFlow_AddNewClearsForm(t *testing.T) {
	saved := homeAddress()
	saved.ID = "addr-1"
	s := sessionAtShipping(t, models.UserProfile{Addresses: []models.Address{saved}})

	require.NoError(t, s.AddNewAddress())
	assert.Equal(t, NewAddress{}, s.Flow().Shipping())
}

func TestFlow_SavedSelectionIsTrusted(t *testing.T) {
	stored := models.Address{ID: "addr-1", FullName: "Only Name"}
	s := sessionAtShipping(t, models.UserProfile{Addresses: []models.Address{stored}})

	require.NoError(t, s.EnterPayment())
	assert.Equal(t, StepPayment, s.Flow().Step())
}

func TestFlow_SelectUnknownSavedAddress(t *testing.T) {
	s := sessionAtShipping(t, models.UserProfile{})
	err := s.SelectSaved("missing")
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}

func TestFlow_BackNavigationPreservesEnteredAddress(t *testing.T) {
	s := sessionAtShipping(t, models.UserProfile{})
	entered := homeAddress()
	entered.Line2 = "Near the temple"

	require.NoError(t, s.EditNewAddress(entered, false))
	require.NoError(t, s.EnterPayment())
	require.NoError(t, s.ChoosePayment(models.PaymentCOD))

	require.NoError(t, s.Back())
	assert.Equal(t, StepShipping, s.Flow().Step())
	assert.Equal(t, NewAddress{Address: entered}, s.Flow().Shipping())

	require.NoError(t, s.Back())
	require.NoError(t, s.EnterShipping(models.UserProfile{}))
	assert.Equal(t, NewAddress{Address: entered}, s.Flow().Shipping())

	require.NoError(t, s.EnterPayment())
	assert.Equal(t, models.PaymentCOD, s.Flow().Method())
}

func TestFlow_BackFromCartIsRejected(t *testing.T) {
	s := NewSession()
	err := s.Back()
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrInvalidStep)
}

func TestFlow_ChoosePaymentRequiresPaymentStep(t *testing.T) {
	s := sessionAtShipping(t, models.UserProfile{})
	err := s.ChoosePayment(models.PaymentOnline)
	assert.ErrorIs(t, err, errs.ErrInvalidStep)
}

func TestFlow_UnknownPaymentMethod(t *testing.T) {
	s := sessionAtShipping(t, models.UserProfile{})
	require.NoError(t, s.EditNewAddress(homeAddress(), false))
	require.NoError(t, s.EnterPayment())

	err := s.ChoosePayment("barter")
	assert.Equal(t, "paymentMethod", errs.FieldOf(err))
}

func readyToPlace(t *testing.T, method models.PaymentMethod, save bool) *Session {
	t.Helper()
	s := sessionAtShipping(t, models.UserProfile{})
	require.NoError(t, s.EditNewAddress(homeAddress(), save))
	require.NoError(t, s.EnterPayment())
	require.NoError(t, s.ChoosePayment(method))
	return s
}

func TestSession_PlacementIsExclusive(t *testing.T) {
	s := readyToPlace(t, models.PaymentCOD, true)

	p, err := s.BeginPlacement()
	require.NoError(t, err)
	assert.Len(t, p.Lines, 1)
	assert.True(t, p.Save)
	assert.Equal(t, models.PaymentCOD, p.Method)

	_, err = s.BeginPlacement()
	assert.ErrorIs(t, err, errs.ErrCheckoutBusy)
	_, err = s.AddItem(product(), "5x8", 1)
	assert.ErrorIs(t, err, errs.ErrCheckoutBusy)

	s.Abort()
	_, err = s.BeginPlacement()
	assert.NoError(t, err)
}

func TestSession_PlacementNeedsPaymentMethod(t *testing.T) {
	s := sessionAtShipping(t, models.UserProfile{})
	require.NoError(t, s.EditNewAddress(homeAddress(), false))
	require.NoError(t, s.EnterPayment())

	_, err := s.BeginPlacement()
	assert.Equal(t, "paymentMethod", errs.FieldOf(err))
}

func TestSession_AddressSavedIsNotSavedTwice(t *testing.T) {
	s := readyToPlace(t, models.PaymentCOD, true)
	_, err := s.BeginPlacement()
	require.NoError(t, err)

	stored := homeAddress()
	stored.ID = "addr-new"
	s.AddressSaved(stored)
	s.Abort()

	p, err := s.BeginPlacement()
	require.NoError(t, err)
	assert.False(t, p.Save)
	assert.Equal(t, "addr-new", p.Address.ID)
}

func TestSession_CompleteClearsCart(t *testing.T) {
	s := readyToPlace(t, models.PaymentCOD, false)
	require.NoError(t, s.ApplyCoupon(rules(), "RUGLOVE10"))
	_, err := s.BeginPlacement()
	require.NoError(t, err)

	s.Complete("COD-1", false)

	v := s.View(rules())
	assert.Equal(t, StepPlaced, v.Step)
	assert.Empty(t, v.Items)
	assert.Equal(t, "COD-1", v.LastOrderID)
	assert.Empty(t, v.Quote.Coupon)

	_, err = s.AddItem(product(), "5x8", 1)
	require.NoError(t, err)
	assert.Equal(t, StepCart, s.Flow().Step(), "a placed checkout starts over")
}

func TestSession_BuyNowKeepsCart(t *testing.T) {
	s := NewSession()
	_, err := s.AddItem(product(), "5x8", 2)
	require.NoError(t, err)

	other := product()
	other.ID = "rug-2"
	require.NoError(t, s.StartBuyNow(other, "5x8", 1))
	require.Len(t, s.Lines(), 1)
	assert.Equal(t, "rug-2", s.Lines()[0].Product.ID)

	require.NoError(t, s.EnterShipping(models.UserProfile{}))
	require.NoError(t, s.EditNewAddress(homeAddress(), false))
	require.NoError(t, s.EnterPayment())
	require.NoError(t, s.ChoosePayment(models.PaymentCOD))
	p, err := s.BeginPlacement()
	require.NoError(t, err)
	assert.True(t, p.BuyNow)

	s.Complete("COD-2", p.BuyNow)
	v := s.View(rules())
	require.Len(t, v.Items, 1)
	assert.Equal(t, "rug-1", v.Items[0].Product.ID)
	assert.Equal(t, 2, v.Items[0].Quantity)
}

func TestSession_BackToCartAbandonsBuyNow(t *testing.T) {
	s := NewSession()
	require.NoError(t, s.StartBuyNow(product(), "5x8", 1))
	require.NoError(t, s.EnterShipping(models.UserProfile{}))
	require.NoError(t, s.Back())

	assert.Empty(t, s.Lines())
}

func TestSession_Coupon(t *testing.T) {
	s := NewSession()
	_, err := s.AddItem(product(), "5x8", 1)
	require.NoError(t, err)

	err = s.ApplyCoupon(rules(), "")
	assert.ErrorIs(t, err, errs.ErrEmptyCoupon)
	err = s.ApplyCoupon(rules(), "NOPE")
	assert.ErrorIs(t, err, errs.ErrInvalidCoupon)

	require.NoError(t, s.ApplyCoupon(rules(), "ruglove10"))
	q, err := s.Quote(rules())
	require.NoError(t, err)
	assert.True(t, q.Total.Equal(decimal.NewFromInt(29500)))

	require.NoError(t, s.RemoveCoupon())
	q, err = s.Quote(rules())
	require.NoError(t, err)
	assert.True(t, q.Total.Equal(decimal.NewFromInt(32500)))
}

func TestSession_Confirmation(t *testing.T) {
	s := readyToPlace(t, models.PaymentOnline, false)
	p, err := s.BeginPlacement()
	require.NoError(t, err)

	s.AwaitPayment(PendingPayment{
		IdempotencyKey: "key-1",
		GatewayOrderID: "order_abc",
		Amount:         decimal.NewFromInt(32500),
		Currency:       "INR",
		Lines:          p.Lines,
		Address:        p.Address,
	})

	_, err = s.BeginConfirmation("order_other")
	assert.Equal(t, errs.KindConflict, errs.KindOf(err))

	pending, err := s.BeginConfirmation("order_abc")
	require.NoError(t, err)
	assert.Equal(t, "key-1", pending.IdempotencyKey)
	assert.Len(t, pending.Lines, 1)

	s.Abort()
	v := s.View(rules())
	assert.Len(t, v.Items, 1, "a failed confirmation keeps the cart")
	require.NotNil(t, v.Pending)
}

func TestSession_ConfirmationTakesOnlyPaidLines(t *testing.T) {
	s := readyToPlace(t, models.PaymentOnline, false)
	p, err := s.BeginPlacement()
	require.NoError(t, err)
	s.AwaitPayment(PendingPayment{
		IdempotencyKey: "key-1",
		GatewayOrderID: "order_abc",
		Amount:         decimal.NewFromInt(32500),
		Currency:       "INR",
		Lines:          p.Lines,
		Address:        p.Address,
	})

	// the shopper keeps shopping while the payment widget is open
	other := product()
	other.ID = "rug-2"
	_, err = s.AddItem(other, "5x8", 2)
	require.NoError(t, err)
	require.NoError(t, s.SetQuantity(models.LineKey{ProductID: "rug-1", Size: "5x8"}, 3))

	pending, err := s.BeginConfirmation("order_abc")
	require.NoError(t, err)
	require.Len(t, pending.Lines, 1)
	assert.Equal(t, 1, pending.Lines[0].Quantity)

	s.Complete("order_abc", pending.BuyNow)

	v := s.View(rules())
	require.Len(t, v.Items, 2)
	assert.Equal(t, "rug-1", v.Items[0].Product.ID)
	assert.Equal(t, 2, v.Items[0].Quantity)
	assert.Equal(t, "rug-2", v.Items[1].Product.ID)
	assert.Equal(t, 2, v.Items[1].Quantity)
	assert.Nil(t, v.Pending)
}
