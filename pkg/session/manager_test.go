package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/rugstore/pkg/checkout"
	"github.com/example/rugstore/pkg/config"
	"github.com/example/rugstore/pkg/errs"
	"github.com/example/rugstore/pkg/models"
	"github.com/example/rugstore/pkg/pricing"
)

var rules = pricing.Rules{
	Currency:              "INR",
	FreeShippingThreshold: decimal.NewFromInt(50000),
	ShippingFee:           decimal.NewFromInt(2500),
	CouponCode:            "RUGLOVE10",
	CouponPercent:         decimal.NewFromInt(10),
}

var kilim = models.Product{ID: "kilim", Name: "Kilim", Price: decimal.NewFromInt(30000), InStock: true}

func newManager(t *testing.T, idle time.Duration) *Manager {
	t.Helper()
	system := actor.NewActorSystem()
	t.Cleanup(system.Shutdown)
	return NewManager(system, rules, config.SessionConfig{IdleTimeout: idle, RequestTimeout: 2 * time.Second}, nil, zap.NewNop())
}

func TestManager_SessionsAreIsolated(t *testing.T) {
	m := newManager(t, time.Minute)
	ctx := context.Background()

	_, err := m.Do(ctx, "a", &AddItem{Product: kilim, Quantity: 1})
	require.NoError(t, err)

	a, err := m.View(ctx, "a")
	require.NoError(t, err)
	b, err := m.View(ctx, "b")
	require.NoError(t, err)

	assert.Len(t, a.Items, 1)
	assert.Empty(t, b.Items)
	assert.True(t, a.Quote.Total.Equal(decimal.NewFromInt(32500)))
}

func TestManager_ReplyCarriesResultAndError(t *testing.T) {
	m := newManager(t, time.Minute)
	ctx := context.Background()

	reply, err := m.Do(ctx, "a", &AddItem{Product: kilim, Quantity: 2})
	require.NoError(t, err)
	item, ok := reply.Result.(models.CartItem)
	require.True(t, ok)
	assert.Equal(t, 2, item.Quantity)

	reply, err = m.Do(ctx, "a", &ApplyCoupon{Code: "FREE"})
	assert.ErrorIs(t, err, errs.ErrInvalidCoupon)
	assert.Len(t, reply.View.Items, 1, "view is returned with the error")
}

func TestManager_ConcurrentCommandsAreSerialized(t *testing.T) {
	m := newManager(t, time.Minute)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Do(ctx, "busy", &AddItem{Product: kilim, Quantity: 1})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	view, err := m.View(ctx, "busy")
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 50, view.Items[0].Quantity)
}

func TestManager_SinglePlacementAtATime(t *testing.T) {
	m := newManager(t, time.Minute)
	ctx := context.Background()

	steps := []Command{
		&AddItem{Product: kilim, Quantity: 1},
		&EnterShipping{},
		&EditNewAddress{Address: models.Address{FullName: "Asha", Line1: "1 Lane", City: "Agra", Pincode: "282001", Phone: "98"}},
		&EnterPayment{},
		&ChoosePayment{Method: models.PaymentCOD},
	}
	for _, c := range steps {
		_, err := m.Do(ctx, "s", c)
		require.NoError(t, err)
	}

	reply, err := m.Do(ctx, "s", &BeginPlacement{})
	require.NoError(t, err)
	_, ok := reply.Result.(checkout.Placement)
	require.True(t, ok)

	_, err = m.Do(ctx, "s", &BeginPlacement{})
	assert.ErrorIs(t, err, errs.ErrCheckoutBusy)

	_, err = m.Do(ctx, "s", &Complete{OrderID: "COD-1"})
	require.NoError(t, err)

	view, err := m.View(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, checkout.StepPlaced, view.Step)
	assert.Empty(t, view.Items)
	assert.Equal(t, "COD-1", view.LastOrderID)
}

func TestManager_IdleSessionIsDiscarded(t *testing.T) {
	m := newManager(t, 50*time.Millisecond)
	ctx := context.Background()

	_, err := m.Do(ctx, "idle", &AddItem{Product: kilim, Quantity: 1})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		view, err := m.View(ctx, "idle")
		return err == nil && len(view.Items) == 0
	}, 2*time.Second, 100*time.Millisecond)
}

func TestManager_Stop(t *testing.T) {
	m := newManager(t, time.Minute)
	ctx := context.Background()

	_, err := m.Do(ctx, "gone", &AddItem{Product: kilim, Quantity: 1})
	require.NoError(t, err)
	require.NoError(t, m.Stop("gone"))

	view, err := m.View(ctx, "gone")
	require.NoError(t, err)
	assert.Empty(t, view.Items)
}

func TestManager_RequiresSessionID(t *testing.T) {
	m := newManager(t, time.Minute)
	_, err := m.Do(context.Background(), "", &GetView{})
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
}

func TestManager_PendingPaymentOutlivesIdleTimeout(t *testing.T) {
	m := newManager(t, 100*time.Millisecond)
	ctx := context.Background()

	steps := []Command{
		&AddItem{Product: kilim, Quantity: 1},
		&EnterShipping{},
		&EditNewAddress{Address: models.Address{FullName: "Asha", Line1: "1 Lane", City: "Agra", Pincode: "282001", Phone: "98"}},
		&EnterPayment{},
		&ChoosePayment{Method: models.PaymentOnline},
	}
	for _, c := range steps {
		_, err := m.Do(ctx, "paying", c)
		require.NoError(t, err)
	}

	reply, err := m.Do(ctx, "paying", &BeginPlacement{})
	require.NoError(t, err)
	placement, ok := reply.Result.(checkout.Placement)
	require.True(t, ok)

	_, err = m.Do(ctx, "paying", &AwaitPayment{Pending: checkout.PendingPayment{
		IdempotencyKey: "key-1",
		GatewayOrderID: "order_1",
		Amount:         decimal.NewFromInt(32500),
		Currency:       "INR",
		Lines:          placement.Lines,
		Address:        placement.Address,
	}})
	require.NoError(t, err)

	// several idle periods pass while the shopper is in the gateway widget
	time.Sleep(600 * time.Millisecond)

	reply, err = m.Do(ctx, "paying", &BeginConfirmation{GatewayOrderID: "order_1"})
	require.NoError(t, err)
	pending, ok := reply.Result.(checkout.PendingPayment)
	require.True(t, ok)
	assert.Equal(t, "key-1", pending.IdempotencyKey)
	assert.Len(t, reply.View.Items, 1)
}
