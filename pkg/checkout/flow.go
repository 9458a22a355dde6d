// Package checkout sequences a shopping session from cart to placed order.
package checkout

import (
	"errors"
	"fmt"

	"github.com/example/rugstore/pkg/errs"
	"github.com/example/rugstore/pkg/models"
)

// Step is the checkout page a session is on.
type Step int

const (
	StepCart Step = iota
	StepShipping
	StepPayment
	StepPlaced
)

func (s Step) String() string {
	switch s {
	case StepCart:
		return "cart"
	case StepShipping:
		return "shipping"
	case StepPayment:
		return "payment"
	case StepPlaced:
		return "placed"
	}
	return fmt.Sprintf("step(%d)", int(s))
}

func (s Step) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Shipping is the shipping-step form. It is either SavedAddress or
// NewAddress.
type Shipping interface {
	isShipping()
}

// SavedAddress selects an address from the user's book.
type SavedAddress struct {
	AddressID string
}

// NewAddress is a typed-in address, optionally saved to the account when the
// order is placed.
type NewAddress struct {
	Address models.Address
	Save    bool
}

func (SavedAddress) isShipping() {}
func (NewAddress) isShipping()   {}

// Flow is the checkout state machine. Moving between steps never discards
// what was entered on another step.
type Flow struct {
	step     Step
	profile  models.UserProfile
	shipping Shipping
	method   models.PaymentMethod
}

func NewFlow() *Flow {
	return &Flow{step: StepCart}
}

func (f *Flow) Step() Step {
	return f.step
}

func (f *Flow) Shipping() Shipping {
	return f.shipping
}

func (f *Flow) Method() models.PaymentMethod {
	return f.method
}

func (f *Flow) Profile() models.UserProfile {
	return f.profile
}

// EnterShipping moves from the cart to the shipping step with the user's
// saved addresses. The first visit preselects the last used address.
func (f *Flow) EnterShipping(profile models.UserProfile) error {
	if err := f.expect("checkout.EnterShipping", StepCart); err != nil {
		return err
	}
	f.profile = profile

	switch s := f.shipping.(type) {
	case nil:
		f.shipping = f.preselect()
	case SavedAddress:
		if _, ok := profile.Find(s.AddressID); !ok {
			f.shipping = f.preselect()
		}
	case NewAddress:
	}

	f.step = StepShipping
	return nil
}

func (f *Flow) preselect() Shipping {
	if a, ok := f.profile.Preselect(); ok {
		return SavedAddress{AddressID: a.ID}
	}
	return NewAddress{}
}

func (f *Flow) SelectSaved(addressID string) error {
	const op = "checkout.SelectSaved"
	if err := f.expect(op, StepShipping); err != nil {
		return err
	}
	if _, ok := f.profile.Find(addressID); !ok {
		return errs.NotFoundf(op, "address %s is not in the address book", addressID)
	}
	f.shipping = SavedAddress{AddressID: addressID}
	return nil
}

// AddNew switches to an empty new-address form.
func (f *Flow) AddNew() error {
	if err := f.expect("checkout.AddNew", StepShipping); err != nil {
		return err
	}
	f.shipping = NewAddress{}
	return nil
}

// EditNew replaces the new-address form fields.
func (f *Flow) EditNew(addr models.Address, save bool) error {
	if err := f.expect("checkout.EditNew", StepShipping); err != nil {
		return err
	}
	addr.ID = ""
	f.shipping = NewAddress{Address: addr, Save: save}
	return nil
}

// EnterPayment validates the shipping form and moves to payment. A saved
// address is trusted as stored.
func (f *Flow) EnterPayment() error {
	if err := f.expect("checkout.EnterPayment", StepShipping); err != nil {
		return err
	}
	if _, _, err := f.Destination(); err != nil {
		return err
	}
	f.step = StepPayment
	return nil
}

func (f *Flow) ChoosePayment(method models.PaymentMethod) error {
	const op = "checkout.ChoosePayment"
	if err := f.expect(op, StepPayment); err != nil {
		return err
	}
	if !method.Valid() {
		return errs.Validationf(op, "paymentMethod", "unknown payment method %q", method)
	}
	f.method = method
	return nil
}

// Back steps one state back. It is allowed from shipping and payment.
func (f *Flow) Back() error {
	switch f.step {
	case StepPayment:
		f.step = StepShipping
	case StepShipping:
		f.step = StepCart
	default:
		return errs.E("checkout.Back", errs.KindConflict,
			fmt.Errorf("%w: cannot go back from %s", errs.ErrInvalidStep, f.step))
	}
	return nil
}

// Destination resolves the shipping form to an address. save reports whether
// a new address should be added to the user's book.
func (f *Flow) Destination() (addr models.Address, save bool, err error) {
	const op = "checkout.Destination"
	switch s := f.shipping.(type) {
	case SavedAddress:
		a, ok := f.profile.Find(s.AddressID)
		if !ok {
			return models.Address{}, false, errs.NotFoundf(op, "address %s is not in the address book", s.AddressID)
		}
		return a, false, nil
	case NewAddress:
		if err := s.Address.Validate(); err != nil {
			return models.Address{}, false, err
		}
		return s.Address, s.Save, nil
	case nil:
		return models.Address{}, false, errs.Validation(op, "shipping", errors.New("shipping address is required"))
	default:
		panic(fmt.Sprintf("checkout: unhandled shipping form %T", s))
	}
}

// adoptSaved records that the new address was saved as addr so that a retry
// refers to the stored copy instead of saving it again.
func (f *Flow) adoptSaved(addr models.Address) {
	f.profile.Addresses = append(f.profile.Addresses, addr)
	f.profile.LastUsedAddressID = addr.ID
	f.shipping = SavedAddress{AddressID: addr.ID}
}

func (f *Flow) markPlaced() {
	f.step = StepPlaced
}

func (f *Flow) expect(op string, step Step) error {
	if f.step != step {
		return errs.E(op, errs.KindConflict,
			fmt.Errorf("%w: at %s, need %s", errs.ErrInvalidStep, f.step, step))
	}
	return nil
}
