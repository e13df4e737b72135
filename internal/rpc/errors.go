package rpc

import (
	"errors"

	"connectrpc.com/connect"

	"github.com/mmynk/spending-diary/internal/auth"
	"github.com/mmynk/spending-diary/internal/ledger"
)

var errInternal = errors.New("something went wrong")

// toConnectError maps service errors onto Connect codes. Internal errors lose
// their detail; the services have already logged them.
func toConnectError(err error) *connect.Error {
	var verr *ledger.ValidationError
	switch {
	case errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrInvalidCredentials):
		return connect.NewError(connect.CodeUnauthenticated, err)
	case errors.As(err, &verr):
		return connect.NewError(connect.CodeInvalidArgument, errors.New(verr.Message))
	case errors.Is(err, ledger.ErrValidation),
		errors.Is(err, auth.ErrWeakPassword):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, ledger.ErrForbidden):
		return connect.NewError(connect.CodePermissionDenied, err)
	case ledger.IsNotFound(err):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, ledger.ErrConflict):
		return connect.NewError(connect.CodeAborted, ledger.ErrConflict)
	case errors.Is(err, auth.ErrPhoneExists):
		return connect.NewError(connect.CodeAlreadyExists, err)
	default:
		return connect.NewError(connect.CodeInternal, errInternal)
	}
}
