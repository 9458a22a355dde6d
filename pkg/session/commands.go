package session

import (
	"github.com/example/rugstore/pkg/checkout"
	"github.com/example/rugstore/pkg/models"
	"github.com/example/rugstore/pkg/pricing"
)

// Command is a message applied to the session inside its actor.
type Command interface {
	Apply(s *checkout.Session, rules pricing.Rules) (any, error)
}

// Reply carries a command's result, its error and the session as it looks
// afterwards.
type Reply struct {
	Result any
	View   checkout.View
	Err    error
}

type GetView struct{}

func (*GetView) Apply(*checkout.Session, pricing.Rules) (any, error) {
	return nil, nil
}

type AddItem struct {
	Product  models.Product
	Size     string
	Quantity int
}

func (c *AddItem) Apply(s *checkout.Session, _ pricing.Rules) (any, error) {
	return s.AddItem(c.Product, c.Size, c.Quantity)
}

type SetQuantity struct {
	Key      models.LineKey
	Quantity int
}

func (c *SetQuantity) Apply(s *checkout.Session, _ pricing.Rules) (any, error) {
	return nil, s.SetQuantity(c.Key, c.Quantity)
}

type RemoveItem struct {
	Key models.LineKey
}

func (c *RemoveItem) Apply(s *checkout.Session, _ pricing.Rules) (any, error) {
	return nil, s.RemoveItem(c.Key)
}

type ApplyCoupon struct {
	Code string
}

func (c *ApplyCoupon) Apply(s *checkout.Session, rules pricing.Rules) (any, error) {
	return nil, s.ApplyCoupon(rules, c.Code)
}

type RemoveCoupon struct{}

func (*RemoveCoupon) Apply(s *checkout.Session, _ pricing.Rules) (any, error) {
	return nil, s.RemoveCoupon()
}

type StartBuyNow struct {
	Product  models.Product
	Size     string
	Quantity int
}

func (c *StartBuyNow) Apply(s *checkout.Session, _ pricing.Rules) (any, error) {
	return nil, s.StartBuyNow(c.Product, c.Size, c.Quantity)
}

type EnterShipping struct {
	Profile models.UserProfile
}

func (c *EnterShipping) Apply(s *checkout.Session, _ pricing.Rules) (any, error) {
	return nil, s.EnterShipping(c.Profile)
}

type SelectSaved struct {
	AddressID string
}

func (c *SelectSaved) Apply(s *checkout.Session, _ pricing.Rules) (any, error) {
	return nil, s.SelectSaved(c.AddressID)
}

type AddNewAddress struct{}

func (*AddNewAddress) Apply(s *checkout.Session, _ pricing.Rules) (any, error) {
	return nil, s.AddNewAddress()
}

type EditNewAddress struct {
	Address models.Address
	Save    bool
}

func (c *EditNewAddress) Apply(s *checkout.Session, _ pricing.Rules) (any, error) {
	return nil, s.EditNewAddress(c.Address, c.Save)
}

type EnterPayment struct{}

func (*EnterPayment) Apply(s *checkout.Session, _ pricing.Rules) (any, error) {
	return nil, s.EnterPayment()
}

type ChoosePayment struct {
	Method models.PaymentMethod
}

func (c *ChoosePayment) Apply(s *checkout.Session, _ pricing.Rules) (any, error) {
	return nil, s.ChoosePayment(c.Method)
}

type Back struct{}

func (*Back) Apply(s *checkout.Session, _ pricing.Rules) (any, error) {
	return nil, s.Back()
}

// BeginPlacement replies with a checkout.Placement.
type BeginPlacement struct{}

func (*BeginPlacement) Apply(s *checkout.Session, _ pricing.Rules) (any, error) {
	return s.BeginPlacement()
}

type AddressSaved struct {
	Address models.Address
}

func (c *AddressSaved) Apply(s *checkout.Session, _ pricing.Rules) (any, error) {
	s.AddressSaved(c.Address)
	return nil, nil
}

type AwaitPayment struct {
	Pending checkout.PendingPayment
}

func (c *AwaitPayment) Apply(s *checkout.Session, _ pricing.Rules) (any, error) {
	s.AwaitPayment(c.Pending)
	return nil, nil
}

// BeginConfirmation replies with the checkout.PendingPayment being confirmed.
type BeginConfirmation struct {
	GatewayOrderID string
}

func (c *BeginConfirmation) Apply(s *checkout.Session, _ pricing.Rules) (any, error) {
	return s.BeginConfirmation(c.GatewayOrderID)
}

type Complete struct {
	OrderID string
	BuyNow  bool
}

func (c *Complete) Apply(s *checkout.Session, _ pricing.Rules) (any, error) {
	s.Complete(c.OrderID, c.BuyNow)
	return nil, nil
}

type Abort struct{}

func (*Abort) Apply(s *checkout.Session, _ pricing.Rules) (any, error) {
	s.Abort()
	return nil, nil
}
