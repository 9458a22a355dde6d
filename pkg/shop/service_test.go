package shop

import (
	"context"
	"testing"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/rugstore/pkg/address"
	"github.com/example/rugstore/pkg/catalog"
	"github.com/example/rugstore/pkg/checkout"
	"github.com/example/rugstore/pkg/config"
	"github.com/example/rugstore/pkg/errs"
	"github.com/example/rugstore/pkg/models"
	"github.com/example/rugstore/pkg/order"
	"github.com/example/rugstore/pkg/payment"
	"github.com/example/rugstore/pkg/pricing"
	"github.com/example/rugstore/pkg/repository"
	"github.com/example/rugstore/pkg/session"
)

var rules = pricing.Rules{
	Currency:              "INR",
	FreeShippingThreshold: decimal.NewFromInt(50000),
	ShippingFee:           decimal.NewFromInt(2500),
	CouponCode:            "RUGLOVE10",
	CouponPercent:         decimal.NewFromInt(10),
}

type harness struct {
	svc     *Service
	users   *repository.MemoryUsers
	orders  *repository.MemoryOrders
	gateway *payment.FakeGateway
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := zap.NewNop()
	system := actor.NewActorSystem()
	t.Cleanup(system.Shutdown)

	products := repository.NewMemoryProducts(
		models.Product{ID: "tabriz", Name: "Tabriz", Price: decimal.NewFromInt(30000), Sizes: []string{"5x8", "8x10"},
			SizePrices: map[string]decimal.Decimal{"8x10": decimal.NewFromInt(48000)}, InStock: true},
		models.Product{ID: "dhurrie", Name: "Dhurrie", Price: decimal.NewFromInt(4000), InStock: true},
	)
	h := &harness{
		users:   repository.NewMemoryUsers(),
		orders:  repository.NewMemoryOrders(),
		gateway: payment.NewFakeGateway("secret"),
	}
	cat := catalog.New(products, nil, logger)
	asm := order.NewAssembler(products, rules, h.orders, repository.NewMemoryIntents(), h.gateway, order.Options{}, logger)
	sessions := session.NewManager(system, rules, config.SessionConfig{IdleTimeout: time.Minute, RequestTimeout: 2 * time.Second}, nil, logger)
	h.svc = NewService(sessions, cat, address.NewBook(h.users, logger), asm, logger)
	return h
}

func newAddress() models.Address {
	return models.Address{FullName: "Kabir Shah", Line1: "22 Park Street", City: "Kolkata", Pincode: "700016", Phone: "9830000000"}
}

// walk takes a fresh session from an empty cart to the payment step.
func (h *harness) walk(t *testing.T, sid string, save bool, method models.PaymentMethod) {
	t.Helper()
	ctx := context.Background()
	_, err := h.svc.AddToCart(ctx, sid, "tabriz", "5x8", 1)
	require.NoError(t, err)
	_, err = h.svc.StartCheckout(ctx, sid, "u1")
	require.NoError(t, err)
	_, err = h.svc.EditNewAddress(ctx, sid, newAddress(), save)
	require.NoError(t, err)
	_, err = h.svc.ProceedToPayment(ctx, sid)
	require.NoError(t, err)
	_, err = h.svc.ChoosePayment(ctx, sid, method)
	require.NoError(t, err)
}

func TestService_CashOnDelivery(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.walk(t, "s1", true, models.PaymentCOD)

	res, err := h.svc.Place(ctx, "s1", "u1", "idem-1", nil)
	require.NoError(t, err)
	require.NotNil(t, res.Order)
	assert.Nil(t, res.Payment)
	assert.True(t, res.Order.Total.Equal(decimal.NewFromInt(32500)))
	assert.Equal(t, checkout.StepPlaced, res.View.Step)
	assert.Empty(t, res.View.Items)

	profile, err := h.users.Load(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, profile.Addresses, 1)
	assert.Equal(t, profile.Addresses[0].ID, res.Order.Address.ID)
}

func TestService_OnlinePayment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.walk(t, "s1", false, models.PaymentOnline)

	res, err := h.svc.Place(ctx, "s1", "u1", "idem-1", nil)
	require.NoError(t, err)
	require.NotNil(t, res.Payment)
	assert.Nil(t, res.Order)
	require.NotNil(t, res.View.Pending)
	assert.Equal(t, res.Payment.GatewayOrderID, res.View.Pending.GatewayOrderID)
	assert.False(t, res.View.Placing)

	// the cart changes while the shopper is paying; the order keeps what was charged
	_, err = h.svc.AddToCart(ctx, "s1", "dhurrie", "", 1)
	require.NoError(t, err)

	done, err := h.svc.Confirm(ctx, "s1", "u1", "idem-1", h.gateway.Pay(res.Payment.GatewayOrderID))
	require.NoError(t, err)
	require.NotNil(t, done.Order)
	assert.Equal(t, res.Payment.GatewayOrderID, done.Order.ID)
	require.Len(t, done.Order.Items, 1)
	assert.True(t, done.Order.Total.Equal(decimal.NewFromInt(32500)))
	assert.Equal(t, checkout.StepPlaced, done.View.Step)

	profile, err := h.users.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, profile.Addresses, "address was not saved without consent")
}

func TestService_FailedVerificationKeepsCart(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.walk(t, "s1", false, models.PaymentOnline)

	res, err := h.svc.Place(ctx, "s1", "u1", "idem-1", nil)
	require.NoError(t, err)

	proof := h.gateway.Pay(res.Payment.GatewayOrderID)
	proof.Signature = "forged"
	failed, err := h.svc.Confirm(ctx, "s1", "u1", "idem-1", proof)
	assert.Equal(t, errs.KindPaymentVerification, errs.KindOf(err))
	assert.Nil(t, failed.Order)

	view, err := h.svc.View(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, checkout.StepPayment, view.Step)
	assert.Len(t, view.Items, 1)
	assert.False(t, view.Placing)

	orders, err := h.orders.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, orders)

	done, err := h.svc.Confirm(ctx, "s1", "u1", "idem-1", h.gateway.Pay(res.Payment.GatewayOrderID))
	require.NoError(t, err)
	assert.NotNil(t, done.Order)
}

func TestService_SaveAddressOnlyOnceAcrossRetries(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.walk(t, "s1", true, models.PaymentCOD)

	stale := decimal.NewFromInt(1)
	_, err := h.svc.Place(ctx, "s1", "u1", "idem-1", &stale)
	assert.ErrorIs(t, err, errs.ErrPriceChanged)

	_, err = h.svc.Place(ctx, "s1", "u1", "idem-1", nil)
	require.NoError(t, err)

	profile, err := h.users.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, profile.Addresses, 1)
}

func TestService_BuyNowKeepsCart(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.AddToCart(ctx, "s1", "dhurrie", "", 3)
	require.NoError(t, err)

	view, err := h.svc.BuyNow(ctx, "s1", "u1", "tabriz", "8x10", 1)
	require.NoError(t, err)
	assert.True(t, view.BuyNow)
	assert.Equal(t, checkout.StepShipping, view.Step)
	require.Len(t, view.Items, 1)
	assert.Equal(t, "tabriz", view.Items[0].Product.ID)

	_, err = h.svc.EditNewAddress(ctx, "s1", newAddress(), false)
	require.NoError(t, err)
	_, err = h.svc.ProceedToPayment(ctx, "s1")
	require.NoError(t, err)
	_, err = h.svc.ChoosePayment(ctx, "s1", models.PaymentCOD)
	require.NoError(t, err)

	res, err := h.svc.Place(ctx, "s1", "u1", "idem-1", nil)
	require.NoError(t, err)
	assert.True(t, res.Order.Subtotal.Equal(decimal.NewFromInt(48000)))

	assert.False(t, res.View.BuyNow)
	require.Len(t, res.View.Items, 1)
	assert.Equal(t, "dhurrie", res.View.Items[0].Product.ID)
	assert.Equal(t, 3, res.View.Items[0].Quantity)
}

func TestService_AddToCartUnknownProduct(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.AddToCart(context.Background(), "s1", "nope", "", 1)
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}

func TestService_PlaceRequiresPaymentStep(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.svc.AddToCart(ctx, "s1", "dhurrie", "", 1)
	require.NoError(t, err)

	_, err = h.svc.Place(ctx, "s1", "u1", "idem-1", nil)
	assert.ErrorIs(t, err, errs.ErrInvalidStep)

	view, err := h.svc.View(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, view.Placing)
}
