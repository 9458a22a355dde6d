// Package shop drives a browser session through cart and checkout. It
// fetches what the session actor needs before sending it a command, and
// runs order placement between the actor's begin and complete steps.
package shop

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/example/rugstore/pkg/address"
	"github.com/example/rugstore/pkg/catalog"
	"github.com/example/rugstore/pkg/checkout"
	"github.com/example/rugstore/pkg/errs"
	"github.com/example/rugstore/pkg/models"
	"github.com/example/rugstore/pkg/order"
	"github.com/example/rugstore/pkg/payment"
	"github.com/example/rugstore/pkg/session"
)

type Service struct {
	sessions  *session.Manager
	catalog   *catalog.Catalog
	book      *address.Book
	assembler *order.Assembler
	logger    *zap.Logger
}

func NewService(sessions *session.Manager, cat *catalog.Catalog, book *address.Book, assembler *order.Assembler, logger *zap.Logger) *Service {
	return &Service{
		sessions:  sessions,
		catalog:   cat,
		book:      book,
		assembler: assembler,
		logger:    logger,
	}
}

// PlaceResult is either a placed order (cash on delivery) or a gateway
// payment the shopper still has to complete.
type PlaceResult struct {
	Order   *models.Order  `json:"order,omitempty"`
	Payment *order.Payment `json:"payment,omitempty"`
	View    checkout.View  `json:"checkout"`
}

func (s *Service) do(ctx context.Context, sid string, cmd session.Command) (checkout.View, error) {
	reply, err := s.sessions.Do(ctx, sid, cmd)
	return reply.View, err
}

func (s *Service) View(ctx context.Context, sid string) (checkout.View, error) {
	return s.sessions.View(ctx, sid)
}

func (s *Service) AddToCart(ctx context.Context, sid, productID, size string, quantity int) (checkout.View, error) {
	p, err := s.catalog.Get(ctx, productID)
	if err != nil {
		return checkout.View{}, err
	}
	return s.do(ctx, sid, &session.AddItem{Product: p, Size: size, Quantity: quantity})
}

func (s *Service) SetQuantity(ctx context.Context, sid string, key models.LineKey, quantity int) (checkout.View, error) {
	return s.do(ctx, sid, &session.SetQuantity{Key: key, Quantity: quantity})
}

func (s *Service) RemoveFromCart(ctx context.Context, sid string, key models.LineKey) (checkout.View, error) {
	return s.do(ctx, sid, &session.RemoveItem{Key: key})
}

func (s *Service) ApplyCoupon(ctx context.Context, sid, code string) (checkout.View, error) {
	return s.do(ctx, sid, &session.ApplyCoupon{Code: code})
}

func (s *Service) RemoveCoupon(ctx context.Context, sid string) (checkout.View, error) {
	return s.do(ctx, sid, &session.RemoveCoupon{})
}

// BuyNow starts a single-item checkout and moves straight to shipping.
func (s *Service) BuyNow(ctx context.Context, sid, userID, productID, size string, quantity int) (checkout.View, error) {
	p, err := s.catalog.Get(ctx, productID)
	if err != nil {
		return checkout.View{}, err
	}
	profile, err := s.book.Profile(ctx, userID)
	if err != nil {
		return checkout.View{}, err
	}
	if _, err := s.do(ctx, sid, &session.StartBuyNow{Product: p, Size: size, Quantity: quantity}); err != nil {
		return checkout.View{}, err
	}
	return s.do(ctx, sid, &session.EnterShipping{Profile: profile})
}

// StartCheckout leaves the cart for the shipping step with the user's saved
// addresses.
func (s *Service) StartCheckout(ctx context.Context, sid, userID string) (checkout.View, error) {
	profile, err := s.book.Profile(ctx, userID)
	if err != nil {
		return checkout.View{}, err
	}
	return s.do(ctx, sid, &session.EnterShipping{Profile: profile})
}

func (s *Service) SelectSavedAddress(ctx context.Context, sid, addressID string) (checkout.View, error) {
	return s.do(ctx, sid, &session.SelectSaved{AddressID: addressID})
}

func (s *Service) AddNewAddress(ctx context.Context, sid string) (checkout.View, error) {
	return s.do(ctx, sid, &session.AddNewAddress{})
}

func (s *Service) EditNewAddress(ctx context.Context, sid string, addr models.Address, save bool) (checkout.View, error) {
	return s.do(ctx, sid, &session.EditNewAddress{Address: addr, Save: save})
}

func (s *Service) ProceedToPayment(ctx context.Context, sid string) (checkout.View, error) {
	return s.do(ctx, sid, &session.EnterPayment{})
}

func (s *Service) ChoosePayment(ctx context.Context, sid string, method models.PaymentMethod) (checkout.View, error) {
	return s.do(ctx, sid, &session.ChoosePayment{Method: method})
}

func (s *Service) Back(ctx context.Context, sid string) (checkout.View, error) {
	return s.do(ctx, sid, &session.Back{})
}

// Place runs the placement for the session. Cash on delivery is recorded at
// once; an online payment leaves the session waiting for Confirm.
func (s *Service) Place(ctx context.Context, sid, userID, idempotencyKey string, expectedTotal *decimal.Decimal) (PlaceResult, error) {
	reply, err := s.sessions.Do(ctx, sid, &session.BeginPlacement{})
	if err != nil {
		return PlaceResult{}, err
	}
	placement, ok := reply.Result.(checkout.Placement)
	if !ok {
		s.abort(sid)
		return PlaceResult{}, errors.New("unexpected placement reply")
	}

	result, err := s.place(ctx, sid, userID, idempotencyKey, expectedTotal, placement)
	if err != nil {
		s.abort(sid)
		if view, verr := s.sessions.View(ctx, sid); verr == nil {
			result.View = view
		}
		return result, err
	}
	return result, nil
}

func (s *Service) place(ctx context.Context, sid, userID, key string, expectedTotal *decimal.Decimal, p checkout.Placement) (PlaceResult, error) {
	if p.Save {
		saved, err := s.book.Add(ctx, userID, p.Address)
		if err != nil {
			return PlaceResult{}, err
		}
		if _, err := s.do(ctx, sid, &session.AddressSaved{Address: saved}); err != nil {
			return PlaceResult{}, err
		}
		p.Address = saved
	}

	req := order.Request{
		UserID:         userID,
		Lines:          p.Lines,
		Coupon:         p.Coupon,
		Address:        p.Address,
		Method:         p.Method,
		IdempotencyKey: key,
		ExpectedTotal:  expectedTotal,
	}

	switch p.Method {
	case models.PaymentCOD:
		o, err := s.assembler.PlaceCashOnDelivery(ctx, req)
		if err != nil {
			return PlaceResult{}, err
		}
		view, err := s.do(ctx, sid, &session.Complete{OrderID: o.ID, BuyNow: p.BuyNow})
		if err != nil {
			s.logger.Error("Order placed but session not updated", zap.String("order_id", o.ID), zap.Error(err))
		}
		return PlaceResult{Order: &o, View: view}, nil

	case models.PaymentOnline:
		pay, err := s.assembler.CreatePayment(ctx, req)
		if err != nil {
			return PlaceResult{}, err
		}
		view, err := s.do(ctx, sid, &session.AwaitPayment{Pending: checkout.PendingPayment{
			IdempotencyKey: key,
			GatewayOrderID: pay.GatewayOrderID,
			Amount:         pay.Amount,
			Currency:       pay.Currency,
			Lines:          pay.Lines,
			Coupon:         p.Coupon,
			Address:        p.Address,
			BuyNow:         p.BuyNow,
		}})
		if err != nil {
			return PlaceResult{}, err
		}
		return PlaceResult{Payment: &pay, View: view}, nil

	default:
		return PlaceResult{}, errs.Validationf("shop.Place", "paymentMethod", "unknown payment method %q", p.Method)
	}
}

// Confirm verifies a completed online payment and records the order. A
// failed verification keeps the cart and the pending payment for a retry.
func (s *Service) Confirm(ctx context.Context, sid, userID, idempotencyKey string, proof payment.Proof) (PlaceResult, error) {
	reply, err := s.sessions.Do(ctx, sid, &session.BeginConfirmation{GatewayOrderID: proof.OrderID})
	if err != nil {
		return PlaceResult{View: reply.View}, err
	}
	pending, ok := reply.Result.(checkout.PendingPayment)
	if !ok {
		s.abort(sid)
		return PlaceResult{}, errors.New("unexpected confirmation reply")
	}
	if idempotencyKey != "" && pending.IdempotencyKey != idempotencyKey {
		s.abort(sid)
		return PlaceResult{View: reply.View}, errs.Conflict("shop.Confirm", errors.New("idempotency key does not match the pending payment"))
	}

	o, err := s.assembler.ConfirmPayment(ctx, order.Request{
		UserID:         userID,
		Lines:          pending.Lines,
		Coupon:         pending.Coupon,
		Address:        pending.Address,
		Method:         models.PaymentOnline,
		IdempotencyKey: pending.IdempotencyKey,
	}, proof)
	if err != nil {
		s.abort(sid)
		return PlaceResult{View: reply.View}, err
	}

	view, err := s.do(ctx, sid, &session.Complete{OrderID: o.ID, BuyNow: pending.BuyNow})
	if err != nil {
		s.logger.Error("Order placed but session not updated", zap.String("order_id", o.ID), zap.Error(err))
	}
	return PlaceResult{Order: &o, View: view}, nil
}

// abort releases the session's busy flag even when the request context is
// already done.
func (s *Service) abort(sid string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := s.sessions.Do(ctx, sid, &session.Abort{}); err != nil {
		s.logger.Warn("Failed to release checkout", zap.String("session_id", sid), zap.Error(err))
	}
}
