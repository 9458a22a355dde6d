package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/example/rugstore/pkg/errs"
	"github.com/example/rugstore/pkg/metrics"
	"github.com/example/rugstore/pkg/models"
	"github.com/example/rugstore/pkg/payment"
	"github.com/example/rugstore/pkg/pricing"
)

// Repository stores placed orders. Create must reject a second order with
// the same id or idempotency key as a conflict.
type Repository interface {
	Create(ctx context.Context, o *models.Order) error
	Get(ctx context.Context, id string) (models.Order, error)
	GetByIdempotencyKey(ctx context.Context, key string) (models.Order, error)
	ListByUser(ctx context.Context, userID string) ([]models.Order, error)
	UpdateStatus(ctx context.Context, id string, from, to models.OrderStatus) (models.Order, error)
}

// Intent is the gateway order created for one idempotency key.
type Intent struct {
	GatewayOrderID string `json:"gatewayOrderId"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	UserID         string `json:"userId"`
}

// IntentStore remembers gateway orders by idempotency key. PutIfAbsent
// returns the stored intent and whether this call created it.
type IntentStore interface {
	Get(ctx context.Context, key string) (Intent, bool, error)
	PutIfAbsent(ctx context.Context, key string, intent Intent) (Intent, bool, error)
}

// ProductSource resolves current catalog entries for repricing.
type ProductSource interface {
	Get(ctx context.Context, id string) (models.Product, error)
}

type Publisher interface {
	PublishOrderPlaced(ctx context.Context, o models.Order) error
}

type Auditor interface {
	Record(ctx context.Context, action, entityID string, data map[string]any) error
}

// Request is one placement attempt.
type Request struct {
	UserID         string
	Lines          []models.CartItem
	Coupon         string
	Address        models.Address
	Method         models.PaymentMethod
	IdempotencyKey string
	// ExpectedTotal is the total the shopper was shown, if the client sent it.
	ExpectedTotal *decimal.Decimal
}

// Payment is a gateway order ready for the payment widget.
type Payment struct {
	GatewayOrderID string            `json:"gatewayOrderId"`
	KeyID          string            `json:"keyId"`
	Amount         decimal.Decimal   `json:"amount"`
	AmountMinor    int64             `json:"amountMinor"`
	Currency       string            `json:"currency"`
	Quote          pricing.Quote     `json:"quote"`
	Lines          []models.CartItem `json:"-"`
}

type Options struct {
	Publisher Publisher
	Auditor   Auditor
	Metrics   *metrics.Metrics
}

type Assembler struct {
	products  ProductSource
	rules     pricing.Rules
	orders    Repository
	intents   IntentStore
	gateway   payment.Gateway
	publisher Publisher
	auditor   Auditor
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time
	codID     func() string
}

func NewAssembler(products ProductSource, rules pricing.Rules, orders Repository, intents IntentStore,
	gateway payment.Gateway, opts Options, logger *zap.Logger) *Assembler {
	return &Assembler{
		products:  products,
		rules:     rules,
		orders:    orders,
		intents:   intents,
		gateway:   gateway,
		publisher: opts.Publisher,
		auditor:   opts.Auditor,
		metrics:   opts.Metrics,
		logger:    logger,
		now:       time.Now,
		codID:     newCODID,
	}
}

func newCODID() string {
	return "COD-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
}

// Reprice replaces every line's product snapshot with the current catalog
// entry and quotes the result.
func (a *Assembler) Reprice(ctx context.Context, lines []models.CartItem, coupon string) ([]models.CartItem, pricing.Quote, error) {
	const op = "order.Reprice"
	if len(lines) == 0 {
		return nil, pricing.Quote{}, errs.Validation(op, "items", errs.ErrEmptyCart)
	}

	repriced := make([]models.CartItem, 0, len(lines))
	for _, line := range lines {
		p, err := a.products.Get(ctx, line.Product.ID)
		if err != nil {
			if errs.Is(err, errs.KindNotFound) {
				return nil, pricing.Quote{}, errs.NotFound(op, fmt.Errorf("%s is no longer available", line.Product.Name))
			}
			return nil, pricing.Quote{}, err
		}
		if !p.InStock {
			return nil, pricing.Quote{}, errs.Validation(op, "productId", fmt.Errorf("%s: %w", p.Name, errs.ErrOutOfStock))
		}
		if !p.OffersSize(line.Size) {
			return nil, pricing.Quote{}, errs.Validationf(op, "size", "%s is no longer offered in size %q", p.Name, line.Size)
		}
		repriced = append(repriced, models.CartItem{Product: p.Clone(), Size: line.Size, Quantity: line.Quantity})
	}

	quote, err := a.rules.Quote(repriced, coupon)
	if err != nil {
		return nil, pricing.Quote{}, err
	}
	return repriced, quote, nil
}

func (a *Assembler) validate(op string, req Request, method models.PaymentMethod) error {
	if req.UserID == "" {
		return errs.E(op, errs.KindUnauthorized, errors.New("sign in to place an order"))
	}
	if strings.TrimSpace(req.IdempotencyKey) == "" {
		return errs.Validationf(op, "idempotencyKey", "idempotency key is required")
	}
	if req.Method != method {
		return errs.Validationf(op, "paymentMethod", "expected payment method %s, got %q", method, req.Method)
	}
	return req.Address.Validate()
}

func (a *Assembler) checkExpected(op string, req Request, quote pricing.Quote) error {
	if req.ExpectedTotal == nil {
		return nil
	}
	if !req.ExpectedTotal.Round(2).Equal(quote.Total) {
		a.logger.Info("Client total differs from server total",
			zap.String("user_id", req.UserID),
			zap.String("expected", req.ExpectedTotal.StringFixed(2)),
			zap.String("actual", quote.Total.StringFixed(2)))
		return errs.Conflict(op, errs.ErrPriceChanged)
	}
	return nil
}

// PlaceCashOnDelivery records a cash-on-delivery order at once. A replay of
// the same idempotency key returns the order placed the first time.
func (a *Assembler) PlaceCashOnDelivery(ctx context.Context, req Request) (models.Order, error) {
	const op = "order.PlaceCashOnDelivery"
	if err := a.validate(op, req, models.PaymentCOD); err != nil {
		return models.Order{}, err
	}

	if existing, ok, err := a.replay(ctx, op, req.IdempotencyKey, req.UserID); err != nil || ok {
		return existing, err
	}

	lines, quote, err := a.Reprice(ctx, req.Lines, req.Coupon)
	if err != nil {
		return models.Order{}, err
	}
	if err := a.checkExpected(op, req, quote); err != nil {
		return models.Order{}, err
	}

	o := a.build(a.codID(), req, lines, quote, models.PendingPaymentID)
	return a.persist(ctx, op, o)
}

// CreatePayment creates, or returns the already created, gateway order for
// the request's idempotency key.
func (a *Assembler) CreatePayment(ctx context.Context, req Request) (Payment, error) {
	const op = "order.CreatePayment"
	if err := a.validate(op, req, models.PaymentOnline); err != nil {
		return Payment{}, err
	}

	lines, quote, err := a.Reprice(ctx, req.Lines, req.Coupon)
	if err != nil {
		return Payment{}, err
	}
	if err := a.checkExpected(op, req, quote); err != nil {
		return Payment{}, err
	}

	amount := pricing.MinorUnits(quote.Total)
	if amount <= 0 {
		return Payment{}, errs.Validationf(op, "total", "nothing to pay online, choose cash on delivery")
	}

	pay := Payment{
		KeyID:       a.gateway.KeyID(),
		Amount:      quote.Total,
		AmountMinor: amount,
		Currency:    quote.Currency,
		Quote:       quote,
		Lines:       lines,
	}

	intent, found, err := a.intents.Get(ctx, req.IdempotencyKey)
	if err != nil {
		return Payment{}, errs.Unavailable(op, fmt.Errorf("failed to read payment intent: %w", err))
	}
	if found {
		if err := a.sameIntent(op, intent, req.UserID, amount); err != nil {
			return Payment{}, err
		}
		pay.GatewayOrderID = intent.GatewayOrderID
		return pay, nil
	}

	start := a.now()
	gwOrder, err := a.gateway.CreateOrder(ctx, payment.CreateOrderRequest{
		Amount:   amount,
		Currency: quote.Currency,
		Receipt:  req.IdempotencyKey,
		Notes:    map[string]string{"user_id": req.UserID},
	})
	a.metrics.ObserveGateway(a.now().Sub(start))
	if err != nil {
		a.logger.Error("Gateway order creation failed", zap.String("user_id", req.UserID), zap.Error(err))
		return Payment{}, errs.Unavailable(op, err)
	}

	stored, created, err := a.intents.PutIfAbsent(ctx, req.IdempotencyKey, Intent{
		GatewayOrderID: gwOrder.ID,
		Amount:         amount,
		Currency:       quote.Currency,
		UserID:         req.UserID,
	})
	if err != nil {
		return Payment{}, errs.Unavailable(op, fmt.Errorf("failed to store payment intent: %w", err))
	}
	if !created {
		if err := a.sameIntent(op, stored, req.UserID, amount); err != nil {
			return Payment{}, err
		}
		a.logger.Info("Concurrent payment creation resolved to earlier gateway order",
			zap.String("gateway_order_id", stored.GatewayOrderID),
			zap.String("discarded_gateway_order_id", gwOrder.ID))
	}

	pay.GatewayOrderID = stored.GatewayOrderID
	a.logger.Info("Gateway order created",
		zap.String("user_id", req.UserID),
		zap.String("gateway_order_id", pay.GatewayOrderID),
		zap.Int64("amount", amount))
	return pay, nil
}

func (a *Assembler) sameIntent(op string, intent Intent, userID string, amount int64) error {
	if intent.UserID != userID {
		return errs.Conflict(op, errors.New("idempotency key belongs to another checkout"))
	}
	if intent.Amount != amount {
		return errs.Conflict(op, fmt.Errorf("idempotency key was used for a different amount: %w", errs.ErrPriceChanged))
	}
	return nil
}

// ConfirmPayment verifies the gateway signature and only then records the
// order. req.Lines are the lines captured when the payment was created.
func (a *Assembler) ConfirmPayment(ctx context.Context, req Request, proof payment.Proof) (models.Order, error) {
	const op = "order.ConfirmPayment"
	if err := a.validate(op, req, models.PaymentOnline); err != nil {
		return models.Order{}, err
	}

	if existing, ok, err := a.replay(ctx, op, req.IdempotencyKey, req.UserID); err != nil || ok {
		return existing, err
	}

	intent, found, err := a.intents.Get(ctx, req.IdempotencyKey)
	if err != nil {
		return models.Order{}, errs.Unavailable(op, fmt.Errorf("failed to read payment intent: %w", err))
	}
	if !found {
		return models.Order{}, errs.NotFoundf(op, "no payment was started for this checkout")
	}
	if intent.UserID != req.UserID || intent.GatewayOrderID != proof.OrderID {
		return models.Order{}, errs.Conflict(op, errors.New("payment does not belong to this checkout"))
	}

	status, err := a.gateway.Verify(ctx, proof)
	if err != nil {
		return models.Order{}, errs.Unavailable(op, err)
	}
	if status != payment.StatusSuccess {
		a.metrics.PaymentVerificationFailed()
		a.logger.Warn("Payment verification failed",
			zap.String("user_id", req.UserID),
			zap.String("gateway_order_id", proof.OrderID),
			zap.String("payment_id", proof.PaymentID))
		return models.Order{}, errs.E(op, errs.KindPaymentVerification, errs.ErrSignatureInvalid)
	}

	quote, err := a.rules.Quote(req.Lines, req.Coupon)
	if err != nil {
		return models.Order{}, err
	}
	if pricing.MinorUnits(quote.Total) != intent.Amount {
		a.logger.Error("Captured amount does not match order lines",
			zap.String("gateway_order_id", proof.OrderID),
			zap.String("payment_id", proof.PaymentID),
			zap.Int64("captured", intent.Amount),
			zap.String("total", quote.Total.StringFixed(2)))
		return models.Order{}, errs.Conflict(op, errs.ErrPriceChanged)
	}

	o := a.build(proof.OrderID, req, req.Lines, quote, proof.PaymentID)
	return a.persist(ctx, op, o)
}

// replay returns the order already placed under key, if any.
func (a *Assembler) replay(ctx context.Context, op, key, userID string) (models.Order, bool, error) {
	existing, err := a.orders.GetByIdempotencyKey(ctx, key)
	switch {
	case err == nil:
		if existing.UserID != userID {
			return models.Order{}, false, errs.Conflict(op, errors.New("idempotency key belongs to another checkout"))
		}
		return existing, true, nil
	case errs.Is(err, errs.KindNotFound):
		return models.Order{}, false, nil
	default:
		return models.Order{}, false, err
	}
}

func (a *Assembler) build(id string, req Request, lines []models.CartItem, quote pricing.Quote, paymentID string) *models.Order {
	items := make([]models.OrderItem, len(lines))
	for i, line := range lines {
		items[i] = models.NewOrderItem(line)
	}
	now := a.now().UTC()
	addr := req.Address
	return &models.Order{
		ID:             id,
		UserID:         req.UserID,
		Items:          items,
		Subtotal:       quote.Subtotal,
		Shipping:       quote.Shipping,
		Discount:       quote.Discount,
		Total:          quote.Total,
		Coupon:         quote.Coupon,
		Status:         models.OrderStatusPlaced,
		Address:        addr,
		PaymentMethod:  req.Method,
		PaymentLabel:   req.Method.Label(),
		PaymentID:      paymentID,
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func (a *Assembler) persist(ctx context.Context, op string, o *models.Order) (models.Order, error) {
	if err := a.orders.Create(ctx, o); err != nil {
		if errs.Is(err, errs.KindConflict) {
			if existing, ok, rerr := a.replay(ctx, op, o.IdempotencyKey, o.UserID); rerr == nil && ok {
				return existing, nil
			}
			return models.Order{}, err
		}
		a.logger.Error("Order write failed after payment",
			zap.String("order_id", o.ID),
			zap.String("payment_id", o.PaymentID),
			zap.String("user_id", o.UserID),
			zap.Error(err))
		return models.Order{}, errs.Persistence(op,
			fmt.Errorf("your order could not be recorded, please contact support quoting payment reference %s", o.PaymentID))
	}

	a.metrics.OrderPlaced(string(o.PaymentMethod), a.rules.Currency, o.Total.InexactFloat64())
	a.logger.Info("Order placed",
		zap.String("order_id", o.ID),
		zap.String("user_id", o.UserID),
		zap.String("method", string(o.PaymentMethod)),
		zap.String("total", o.Total.StringFixed(2)))

	a.announce(*o)
	return *o, nil
}

// announce publishes the order and writes its audit entry without holding up
// the shopper.
func (a *Assembler) announce(o models.Order) {
	if a.publisher == nil && a.auditor == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if a.publisher != nil {
			if err := a.publisher.PublishOrderPlaced(ctx, o); err != nil {
				a.logger.Warn("Failed to publish order event", zap.String("order_id", o.ID), zap.Error(err))
			}
		}
		if a.auditor != nil {
			err := a.auditor.Record(ctx, "place_order", o.ID, map[string]any{
				"user_id":        o.UserID,
				"total":          o.Total.StringFixed(2),
				"payment_method": string(o.PaymentMethod),
				"payment_id":     o.PaymentID,
			})
			if err != nil {
				a.logger.Warn("Failed to write audit log", zap.String("order_id", o.ID), zap.Error(err))
			}
		}
	}()
}

// History lists the user's orders, newest first.
func (a *Assembler) History(ctx context.Context, userID string) ([]models.Order, error) {
	return a.orders.ListByUser(ctx, userID)
}

// Lookup returns one of the user's orders. Another user's order is reported
// as not found.
func (a *Assembler) Lookup(ctx context.Context, userID, orderID string) (models.Order, error) {
	o, err := a.orders.Get(ctx, orderID)
	if err != nil {
		return models.Order{}, err
	}
	if o.UserID != userID {
		return models.Order{}, errs.NotFoundf("order.Lookup", "order %s not found", orderID)
	}
	return o, nil
}
