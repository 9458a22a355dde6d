package order_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/rugstore/pkg/errs"
	"github.com/example/rugstore/pkg/models"
	"github.com/example/rugstore/pkg/order"
	"github.com/example/rugstore/pkg/payment"
	"github.com/example/rugstore/pkg/pricing"
	"github.com/example/rugstore/pkg/repository"
)

type recordingPublisher struct {
	mu     sync.Mutex
	orders []models.Order
}

func (p *recordingPublisher) PublishOrderPlaced(_ context.Context, o models.Order) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.orders = append(p.orders, o)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.orders)
}

type failingOrders struct {
	*repository.MemoryOrders
}

func (failingOrders) Create(context.Context, *models.Order) error {
	return errs.Persistence("orders.Create", errors.New("connection reset"))
}

type fixture struct {
	asm       *order.Assembler
	products  *repository.MemoryProducts
	orders    *repository.MemoryOrders
	gateway   *payment.FakeGateway
	publisher *recordingPublisher
	audit     *repository.MemoryAudit
}

var testRules = pricing.Rules{
	Currency:              "INR",
	FreeShippingThreshold: decimal.NewFromInt(50000),
	ShippingFee:           decimal.NewFromInt(2500),
	CouponCode:            "RUGLOVE10",
	CouponPercent:         decimal.NewFromInt(10),
}

func heriz() models.Product {
	return models.Product{
		ID:         "heriz",
		Name:       "Heriz",
		Price:      decimal.NewFromInt(30000),
		Sizes:      []string{"5x8", "8x10"},
		SizePrices: map[string]decimal.Decimal{"8x10": decimal.NewFromInt(52000)},
		InStock:    true,
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		products:  repository.NewMemoryProducts(heriz()),
		orders:    repository.NewMemoryOrders(),
		gateway:   payment.NewFakeGateway("secret"),
		publisher: &recordingPublisher{},
		audit:     repository.NewMemoryAudit(),
	}
	f.asm = order.NewAssembler(f.products, testRules, f.orders, repository.NewMemoryIntents(), f.gateway,
		order.Options{Publisher: f.publisher, Auditor: f.audit}, zap.NewNop())
	return f
}

func address() models.Address {
	return models.Address{FullName: "Asha Rao", Line1: "12 MG Road", City: "Jaipur", Pincode: "302001", Phone: "9800000000"}
}

func request(method models.PaymentMethod, key string) order.Request {
	return order.Request{
		UserID:         "u1",
		Lines:          []models.CartItem{{Product: heriz(), Size: "5x8", Quantity: 1}},
		Address:        address(),
		Method:         method,
		IdempotencyKey: key,
	}
}

func TestAssembler_CashOnDelivery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := request(models.PaymentCOD, "key-1")
	req.Coupon = "ruglove10"
	o, err := f.asm.PlaceCashOnDelivery(ctx, req)
	require.NoError(t, err)

	assert.Regexp(t, `^COD-[0-9A-F]{12}$`, o.ID)
	assert.Equal(t, models.PendingPaymentID, o.PaymentID)
	assert.Equal(t, "Cash on Delivery", o.PaymentLabel)
	assert.Equal(t, models.OrderStatusPlaced, o.Status)
	assert.Equal(t, "32500", o.Subtotal.Add(o.Shipping).String())
	assert.True(t, o.Total.Equal(decimal.NewFromInt(29500)))
	assert.Equal(t, "RUGLOVE10", o.Coupon)

	assert.Eventually(t, func() bool { return f.publisher.count() == 1 && len(f.audit.Entries()) == 1 },
		time.Second, 10*time.Millisecond)
}

func TestAssembler_CashOnDeliveryReplayReturnsSameOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.asm.PlaceCashOnDelivery(ctx, request(models.PaymentCOD, "key-1"))
	require.NoError(t, err)
	second, err := f.asm.PlaceCashOnDelivery(ctx, request(models.PaymentCOD, "key-1"))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	history, err := f.asm.History(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, history, 1)

	other := request(models.PaymentCOD, "key-1")
	other.UserID = "u2"
	_, err = f.asm.PlaceCashOnDelivery(ctx, other)
	assert.Equal(t, errs.KindConflict, errs.KindOf(err))
}

func TestAssembler_OrderIsImmutableSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o, err := f.asm.PlaceCashOnDelivery(ctx, request(models.PaymentCOD, "key-1"))
	require.NoError(t, err)

	changed := heriz()
	changed.Price = decimal.NewFromInt(99999)
	require.NoError(t, f.products.Update(ctx, changed))

	stored, err := f.asm.Lookup(ctx, "u1", o.ID)
	require.NoError(t, err)
	assert.True(t, stored.Total.Equal(decimal.NewFromInt(32500)))
	assert.True(t, stored.Items[0].UnitPrice.Equal(decimal.NewFromInt(30000)))

	_, err = f.asm.Lookup(ctx, "u2", o.ID)
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}

func TestAssembler_RepricesFromCatalog(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := request(models.PaymentCOD, "key-1")
	req.Lines[0].Product.Price = decimal.NewFromInt(1)
	req.Lines[0].Size = "8x10"

	o, err := f.asm.PlaceCashOnDelivery(ctx, req)
	require.NoError(t, err)
	assert.True(t, o.Subtotal.Equal(decimal.NewFromInt(52000)))
	assert.True(t, o.Shipping.IsZero())
}

func TestAssembler_RejectsStaleCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := request(models.PaymentOnline, "key-1")
	req.Lines = append(req.Lines, models.CartItem{Product: models.Product{ID: "gone", Name: "Gone"}, Quantity: 1})
	_, err := f.asm.CreatePayment(ctx, req)
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))

	sold := heriz()
	sold.InStock = false
	require.NoError(t, f.products.Update(ctx, sold))
	_, err = f.asm.CreatePayment(ctx, request(models.PaymentOnline, "key-2"))
	assert.ErrorIs(t, err, errs.ErrOutOfStock)

	assert.Equal(t, 0, f.gateway.Calls())
}

func TestAssembler_ExpectedTotalMismatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := request(models.PaymentOnline, "key-1")
	shown := decimal.NewFromInt(30000)
	req.ExpectedTotal = &shown

	_, err := f.asm.CreatePayment(ctx, req)
	assert.Equal(t, errs.KindConflict, errs.KindOf(err))
	assert.ErrorIs(t, err, errs.ErrPriceChanged)
	assert.Equal(t, 0, f.gateway.Calls())

	shown = decimal.RequireFromString("32500.00")
	pay, err := f.asm.CreatePayment(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, int64(3250000), pay.AmountMinor)
}

func TestAssembler_CreatePaymentIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.asm.CreatePayment(ctx, request(models.PaymentOnline, "key-1"))
	require.NoError(t, err)
	second, err := f.asm.CreatePayment(ctx, request(models.PaymentOnline, "key-1"))
	require.NoError(t, err)

	assert.Equal(t, first.GatewayOrderID, second.GatewayOrderID)
	assert.Equal(t, 1, f.gateway.Calls())
	assert.Equal(t, "fake_key", first.KeyID)

	bigger := request(models.PaymentOnline, "key-1")
	bigger.Lines[0].Quantity = 2
	_, err = f.asm.CreatePayment(ctx, bigger)
	assert.Equal(t, errs.KindConflict, errs.KindOf(err))
}

func TestAssembler_ConfirmPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := request(models.PaymentOnline, "key-1")
	pay, err := f.asm.CreatePayment(ctx, req)
	require.NoError(t, err)

	req.Lines = pay.Lines
	proof := f.gateway.Pay(pay.GatewayOrderID)
	o, err := f.asm.ConfirmPayment(ctx, req, proof)
	require.NoError(t, err)

	assert.Equal(t, pay.GatewayOrderID, o.ID)
	assert.Equal(t, proof.PaymentID, o.PaymentID)
	assert.Equal(t, "Online Payment", o.PaymentLabel)
	assert.True(t, o.Total.Equal(decimal.NewFromInt(32500)))

	again, err := f.asm.ConfirmPayment(ctx, req, proof)
	require.NoError(t, err)
	assert.Equal(t, o.ID, again.ID)
}

func TestAssembler_ConfirmPaymentBadSignatureCreatesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := request(models.PaymentOnline, "key-1")
	pay, err := f.asm.CreatePayment(ctx, req)
	require.NoError(t, err)
	req.Lines = pay.Lines

	proof := f.gateway.Pay(pay.GatewayOrderID)
	proof.Signature = payment.Sign("wrong", proof.OrderID, proof.PaymentID)

	_, err = f.asm.ConfirmPayment(ctx, req, proof)
	assert.Equal(t, errs.KindPaymentVerification, errs.KindOf(err))

	history, err := f.asm.History(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestAssembler_ConfirmPaymentForeignGatewayOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := request(models.PaymentOnline, "key-1")
	pay, err := f.asm.CreatePayment(ctx, req)
	require.NoError(t, err)
	req.Lines = pay.Lines

	other, err := f.gateway.CreateOrder(ctx, payment.CreateOrderRequest{Amount: 1, Currency: "INR"})
	require.NoError(t, err)

	_, err = f.asm.ConfirmPayment(ctx, req, f.gateway.Pay(other.ID))
	assert.Equal(t, errs.KindConflict, errs.KindOf(err))

	_, err = f.asm.ConfirmPayment(ctx, request(models.PaymentOnline, "never-started"), f.gateway.Pay(pay.GatewayOrderID))
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}

func TestAssembler_OrderWriteFailureAfterPayment(t *testing.T) {
	f := newFixture(t)
	asm := order.NewAssembler(f.products, testRules, failingOrders{repository.NewMemoryOrders()},
		repository.NewMemoryIntents(), f.gateway, order.Options{}, zap.NewNop())
	ctx := context.Background()

	req := request(models.PaymentOnline, "key-1")
	pay, err := asm.CreatePayment(ctx, req)
	require.NoError(t, err)
	req.Lines = pay.Lines

	proof := f.gateway.Pay(pay.GatewayOrderID)
	_, err = asm.ConfirmPayment(ctx, req, proof)
	assert.Equal(t, errs.KindPersistence, errs.KindOf(err))
	assert.Contains(t, err.Error(), "contact support")
	assert.Contains(t, err.Error(), proof.PaymentID)
}

func TestAssembler_RequestValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	noKey := request(models.PaymentCOD, "")
	_, err := f.asm.PlaceCashOnDelivery(ctx, noKey)
	assert.Equal(t, "idempotencyKey", errs.FieldOf(err))

	anon := request(models.PaymentCOD, "k")
	anon.UserID = ""
	_, err = f.asm.PlaceCashOnDelivery(ctx, anon)
	assert.Equal(t, errs.KindUnauthorized, errs.KindOf(err))

	wrongMethod := request(models.PaymentOnline, "k")
	_, err = f.asm.PlaceCashOnDelivery(ctx, wrongMethod)
	assert.Equal(t, "paymentMethod", errs.FieldOf(err))

	empty := request(models.PaymentCOD, "k")
	empty.Lines = nil
	_, err = f.asm.PlaceCashOnDelivery(ctx, empty)
	assert.ErrorIs(t, err, errs.ErrEmptyCart)
}

func TestFulfillment_UpdateStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ful := order.NewFulfillment(f.orders, f.audit, zap.NewNop())

	o, err := f.asm.PlaceCashOnDelivery(ctx, request(models.PaymentCOD, "key-1"))
	require.NoError(t, err)

	packed, err := ful.UpdateStatus(ctx, o.ID, models.OrderStatusPacked)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPacked, packed.Status)
	assert.True(t, packed.Total.Equal(o.Total))

	_, err = ful.UpdateStatus(ctx, o.ID, models.OrderStatusDelivered)
	assert.Equal(t, errs.KindConflict, errs.KindOf(err))

	_, err = ful.UpdateStatus(ctx, o.ID, models.OrderStatus("lost"))
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))

	_, err = ful.UpdateStatus(ctx, "missing", models.OrderStatusPacked)
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}
