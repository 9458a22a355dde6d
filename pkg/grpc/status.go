package grpc

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/example/rugstore/pkg/errs"
)

var kindCodes = map[errs.Kind]codes.Code{
	errs.KindValidation:   codes.InvalidArgument,
	errs.KindNotFound:     codes.NotFound,
	errs.KindConflict:     codes.FailedPrecondition,
	errs.KindUnauthorized: codes.Unauthenticated,
	errs.KindForbidden:    codes.PermissionDenied,
	errs.KindUnavailable:  codes.Unavailable,
	errs.KindPersistence:  codes.Internal,
}

func toStatus(err error) error {
	code, ok := kindCodes[errs.KindOf(err)]
	if !ok {
		code = codes.Internal
	}
	return status.Error(code, errs.Message(err))
}

// fromStatus turns an RPC error back into a kinded error.
func fromStatus(op string, err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return errs.Unavailable(op, err)
	}
	for kind, code := range kindCodes {
		if code == st.Code() && kind != errs.KindPersistence {
			return errs.E(op, kind, errors.New(st.Message()))
		}
	}
	switch st.Code() {
	case codes.DeadlineExceeded, codes.Canceled:
		return errs.Unavailable(op, errors.New(st.Message()))
	}
	return errs.E(op, errs.KindUnknown, errors.New(st.Message()))
}
