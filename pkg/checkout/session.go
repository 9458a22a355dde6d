package checkout

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/example/rugstore/pkg/cart"
	"github.com/example/rugstore/pkg/errs"
	"github.com/example/rugstore/pkg/models"
	"github.com/example/rugstore/pkg/pricing"
)

// PendingPayment is a gateway order created for this session and waiting
// for the shopper to pay. The order is assembled from the lines captured
// here, not from the cart as it is at confirmation time.
type PendingPayment struct {
	IdempotencyKey string            `json:"idempotencyKey"`
	GatewayOrderID string            `json:"gatewayOrderId"`
	Amount         decimal.Decimal   `json:"amount"`
	Currency       string            `json:"currency"`
	Lines          []models.CartItem `json:"-"`
	Coupon         string            `json:"-"`
	Address        models.Address    `json:"-"`
	BuyNow         bool              `json:"-"`
}

// Placement is everything the order assembler needs, captured when a
// placement starts.
type Placement struct {
	Lines   []models.CartItem
	Coupon  string
	Address models.Address
	Save    bool
	Method  models.PaymentMethod
	BuyNow  bool
	Pending *PendingPayment
}

// Session is the state of one browser session: its cart and the checkout in
// progress. It is not safe for concurrent use.
type Session struct {
	cart        *cart.Cart
	flow        *Flow
	coupon      string
	buyNow      *models.CartItem
	pending     *PendingPayment
	placing     bool
	ordered     []models.CartItem // lines of the placement in flight
	lastOrderID string
}

func NewSession() *Session {
	return &Session{cart: cart.New(), flow: NewFlow()}
}

func (s *Session) Flow() *Flow {
	return s.flow
}

func (s *Session) AddItem(product models.Product, size string, quantity int) (models.CartItem, error) {
	if err := s.mutable("session.AddItem"); err != nil {
		return models.CartItem{}, err
	}
	return s.cart.Add(product, size, quantity)
}

func (s *Session) SetQuantity(key models.LineKey, quantity int) error {
	if err := s.mutable("session.SetQuantity"); err != nil {
		return err
	}
	return s.cart.SetQuantity(key, quantity)
}

func (s *Session) RemoveItem(key models.LineKey) error {
	if err := s.mutable("session.RemoveItem"); err != nil {
		return err
	}
	return s.cart.Remove(key)
}

// ApplyCoupon records a coupon after checking it against the rules.
func (s *Session) ApplyCoupon(rules pricing.Rules, code string) error {
	const op = "session.ApplyCoupon"
	if err := s.mutable(op); err != nil {
		return err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return errs.Validation(op, "coupon", errs.ErrEmptyCoupon)
	}
	if err := rules.CheckCoupon(code); err != nil {
		return err
	}
	s.coupon = rules.CouponCode
	return nil
}

func (s *Session) RemoveCoupon() error {
	if err := s.mutable("session.RemoveCoupon"); err != nil {
		return err
	}
	s.coupon = ""
	return nil
}

// StartBuyNow begins a checkout for a single item that bypasses the cart.
func (s *Session) StartBuyNow(product models.Product, size string, quantity int) error {
	const op = "session.StartBuyNow"
	if err := s.mutable(op); err != nil {
		return err
	}
	single := cart.New()
	item, err := single.Add(product, size, quantity)
	if err != nil {
		return err
	}
	s.flow = NewFlow()
	s.buyNow = &item
	s.pending = nil
	return nil
}

// Lines are the items being checked out: the buy-now item when present,
// otherwise the cart.
func (s *Session) Lines() []models.CartItem {
	if s.buyNow != nil {
		item := *s.buyNow
		item.Product = item.Product.Clone()
		return []models.CartItem{item}
	}
	return s.cart.Items()
}

func (s *Session) Quote(rules pricing.Rules) (pricing.Quote, error) {
	return rules.Quote(s.Lines(), s.coupon)
}

// EnterShipping leaves the cart step. An empty checkout cannot proceed.
func (s *Session) EnterShipping(profile models.UserProfile) error {
	const op = "session.EnterShipping"
	if err := s.mutable(op); err != nil {
		return err
	}
	if len(s.Lines()) == 0 {
		return errs.Validation(op, "items", errs.ErrEmptyCart)
	}
	return s.flow.EnterShipping(profile)
}

func (s *Session) SelectSaved(addressID string) error {
	if err := s.idle("session.SelectSaved"); err != nil {
		return err
	}
	return s.flow.SelectSaved(addressID)
}

func (s *Session) AddNewAddress() error {
	if err := s.idle("session.AddNewAddress"); err != nil {
		return err
	}
	return s.flow.AddNew()
}

func (s *Session) EditNewAddress(addr models.Address, save bool) error {
	if err := s.idle("session.EditNewAddress"); err != nil {
		return err
	}
	return s.flow.EditNew(addr, save)
}

func (s *Session) EnterPayment() error {
	if err := s.idle("session.EnterPayment"); err != nil {
		return err
	}
	return s.flow.EnterPayment()
}

func (s *Session) ChoosePayment(method models.PaymentMethod) error {
	if err := s.idle("session.ChoosePayment"); err != nil {
		return err
	}
	return s.flow.ChoosePayment(method)
}

// Back steps the checkout back. Returning to the cart abandons a buy-now
// checkout.
func (s *Session) Back() error {
	if err := s.idle("session.Back"); err != nil {
		return err
	}
	if err := s.flow.Back(); err != nil {
		return err
	}
	if s.flow.Step() == StepCart {
		s.buyNow = nil
	}
	return nil
}

// BeginPlacement marks the session busy and captures the placement. Only one
// placement runs at a time per session.
func (s *Session) BeginPlacement() (Placement, error) {
	const op = "session.BeginPlacement"
	if err := s.idle(op); err != nil {
		return Placement{}, err
	}
	if err := s.flow.expect(op, StepPayment); err != nil {
		return Placement{}, err
	}
	if s.flow.Method() == "" {
		return Placement{}, errs.Validationf(op, "paymentMethod", "choose a payment method")
	}
	lines := s.Lines()
	if len(lines) == 0 {
		return Placement{}, errs.Validation(op, "items", errs.ErrEmptyCart)
	}
	addr, save, err := s.flow.Destination()
	if err != nil {
		return Placement{}, err
	}

	s.placing = true
	s.ordered = lines
	p := Placement{
		Lines:   lines,
		Coupon:  s.coupon,
		Address: addr,
		Save:    save,
		Method:  s.flow.Method(),
		BuyNow:  s.buyNow != nil,
	}
	p.Pending = s.Pending()
	return p, nil
}

// AddressSaved switches the shipping form to the stored copy of a newly
// saved address.
func (s *Session) AddressSaved(addr models.Address) {
	s.flow.adoptSaved(addr)
}

// AwaitPayment records the gateway order and releases the busy flag while
// the shopper pays.
func (s *Session) AwaitPayment(p PendingPayment) {
	s.pending = &p
	s.placing = false
}

// BeginConfirmation marks the session busy while a payment for the pending
// gateway order is verified.
func (s *Session) BeginConfirmation(gatewayOrderID string) (PendingPayment, error) {
	const op = "session.BeginConfirmation"
	if err := s.idle(op); err != nil {
		return PendingPayment{}, err
	}
	if s.pending == nil {
		return PendingPayment{}, errs.NotFoundf(op, "no payment is awaiting confirmation")
	}
	if s.pending.GatewayOrderID != gatewayOrderID {
		return PendingPayment{}, errs.Conflict(op,
			fmt.Errorf("payment is for gateway order %s, expected %s", gatewayOrderID, s.pending.GatewayOrderID))
	}
	s.placing = true
	pending := *s.Pending()
	s.ordered = pending.Lines
	return pending, nil
}

// Placing reports whether a placement or confirmation is in flight.
func (s *Session) Placing() bool {
	return s.placing
}

// AwaitingPayment reports whether a gateway order is waiting for the
// shopper to pay.
func (s *Session) AwaitingPayment() bool {
	return s.pending != nil
}

func (s *Session) Pending() *PendingPayment {
	if s.pending == nil {
		return nil
	}
	p := *s.pending
	p.Lines = append([]models.CartItem(nil), s.pending.Lines...)
	return &p
}

// Complete finishes a successful placement. Unless the order was a buy-now,
// the ordered quantities leave the cart; lines added or increased while the
// shopper was paying stay.
func (s *Session) Complete(orderID string, buyNow bool) {
	if !buyNow {
		for _, line := range s.ordered {
			s.cart.Take(line.Key(), line.Quantity)
		}
	}
	s.buyNow = nil
	s.coupon = ""
	s.pending = nil
	s.placing = false
	s.ordered = nil
	s.lastOrderID = orderID
	s.flow.markPlaced()
}

// Abort releases the busy flag after a failed placement. The cart and the
// entered data are kept for a retry.
func (s *Session) Abort() {
	s.placing = false
	s.ordered = nil
}

// mutable guards cart edits: refused while placing, and a placed checkout
// starts over.
func (s *Session) mutable(op string) error {
	if err := s.idle(op); err != nil {
		return err
	}
	if s.flow.Step() == StepPlaced {
		s.flow = NewFlow()
	}
	return nil
}

func (s *Session) idle(op string) error {
	if s.placing {
		return errs.Conflict(op, errs.ErrCheckoutBusy)
	}
	return nil
}

type ShippingView struct {
	Mode      string          `json:"mode"`
	AddressID string          `json:"addressId,omitempty"`
	Address   *models.Address `json:"address,omitempty"`
	Save      bool            `json:"save,omitempty"`
}

type View struct {
	Step           Step                 `json:"step"`
	Items          []models.CartItem    `json:"items"`
	BuyNow         bool                 `json:"buyNow"`
	Quote          pricing.Quote        `json:"quote"`
	Shipping       *ShippingView        `json:"shipping,omitempty"`
	SavedAddresses []models.Address     `json:"savedAddresses,omitempty"`
	PaymentMethod  models.PaymentMethod `json:"paymentMethod,omitempty"`
	Pending        *PendingPayment      `json:"pending,omitempty"`
	Placing        bool                 `json:"placing"`
	LastOrderID    string               `json:"lastOrderId,omitempty"`
}

// View is a copy of the session safe to hand outside the owning actor.
func (s *Session) View(rules pricing.Rules) View {
	quote, err := s.Quote(rules)
	if err != nil {
		quote, _ = rules.Quote(s.Lines(), "")
	}
	v := View{
		Step:          s.flow.Step(),
		Items:         s.Lines(),
		BuyNow:        s.buyNow != nil,
		Quote:         quote,
		PaymentMethod: s.flow.Method(),
		Pending:       s.Pending(),
		Placing:       s.placing,
		LastOrderID:   s.lastOrderID,
	}
	if saved := s.flow.Profile().Addresses; len(saved) > 0 {
		v.SavedAddresses = append([]models.Address(nil), saved...)
	}
	switch sh := s.flow.Shipping().(type) {
	case SavedAddress:
		v.Shipping = &ShippingView{Mode: "saved", AddressID: sh.AddressID}
	case NewAddress:
		addr := sh.Address
		v.Shipping = &ShippingView{Mode: "new", Address: &addr, Save: sh.Save}
	case nil:
	}
	return v
}
