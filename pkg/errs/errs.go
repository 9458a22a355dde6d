package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can react without string matching.
type Kind string

const (
	KindUnknown             Kind = "unknown"
	KindValidation          Kind = "validation"
	KindNotFound            Kind = "not_found"
	KindConflict            Kind = "conflict"
	KindIneligible          Kind = "ineligible"
	KindPaymentVerification Kind = "payment_verification"
	KindPersistence         Kind = "persistence"
	KindUnauthorized        Kind = "unauthorized"
	KindForbidden           Kind = "forbidden"
	KindUnavailable         Kind = "unavailable"
)

var (
	ErrEmptyCart        = errors.New("cart is empty")
	ErrInvalidCoupon    = errors.New("invalid coupon code")
	ErrEmptyCoupon      = errors.New("coupon code is required")
	ErrOutOfStock       = errors.New("product is out of stock")
	ErrInvalidStep      = errors.New("operation not allowed at this checkout step")
	ErrCheckoutBusy     = errors.New("checkout already in progress")
	ErrPriceChanged     = errors.New("cart total changed, please review your order")
	ErrDuplicate        = errors.New("duplicate record")
	ErrAlreadyReviewed  = errors.New("already reviewed")
	ErrNoPurchase       = errors.New("product not purchased")
	ErrSignatureInvalid = errors.New("payment signature verification failed")
)

// Error carries the operation, kind and optional offending field of a failure.
type Error struct {
	Op    string
	Kind  Kind
	Field string
	Err   error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Field != "":
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Field, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Field != "":
		return fmt.Sprintf("%s: %v", e.Field, e.Err)
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E builds an Error of the given kind.
func E(op string, kind Kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

func Validation(op, field string, err error) *Error {
	return &Error{Op: op, Kind: KindValidation, Field: field, Err: err}
}

func Validationf(op, field, format string, args ...any) *Error {
	return Validation(op, field, fmt.Errorf(format, args...))
}

func NotFound(op string, err error) *Error {
	return E(op, KindNotFound, err)
}

func NotFoundf(op, format string, args ...any) *Error {
	return E(op, KindNotFound, fmt.Errorf(format, args...))
}

func Conflict(op string, err error) *Error {
	return E(op, KindConflict, err)
}

func Persistence(op string, err error) *Error {
	return E(op, KindPersistence, err)
}

func Unavailable(op string, err error) *Error {
	return E(op, KindUnavailable, err)
}

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// FieldOf returns the offending field recorded in err's chain, if any.
func FieldOf(err error) string {
	var e *Error
	for err != nil {
		if errors.As(err, &e) {
			if e.Field != "" {
				return e.Field
			}
			err = e.Err
			continue
		}
		break
	}
	return ""
}

// Is reports whether err has the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Message returns the innermost human readable message of err.
func Message(err error) string {
	var e *Error
	for errors.As(err, &e) {
		err = e.Err
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
