package service

import (
	"context"
	"errors"

	"connectrpc.com/connect"

	"github.com/kiumaa/kixikila-sub001/internal/auth"
	"github.com/kiumaa/kixikila-sub001/internal/cycle"
	"github.com/kiumaa/kixikila-sub001/internal/ledger"
	"github.com/kiumaa/kixikila-sub001/internal/middleware"
)

// ErrorReasonHeader carries the machine-readable error reason on failed calls.
const ErrorReasonHeader = middleware.ErrorReasonHeader

type errorClass struct {
	target error
	code   connect.Code
	reason string
}

// errorClasses is checked in order; the first match wins.
var errorClasses = []errorClass{
	{cycle.ErrInsufficientFunds, connect.CodeFailedPrecondition, "INSUFFICIENT_FUNDS"},
	{cycle.ErrAlreadyPaid, connect.CodeAlreadyExists, "ALREADY_PAID"},
	{cycle.ErrGroupFull, connect.CodeResourceExhausted, "GROUP_FULL"},
	{cycle.ErrAlreadyMember, connect.CodeAlreadyExists, "ALREADY_MEMBER"},
	{cycle.ErrNotEligibleForDraw, connect.CodeFailedPrecondition, "NOT_ELIGIBLE_FOR_DRAW"},
	{cycle.ErrPayoutFailed, connect.CodeUnavailable, "PAYOUT_FAILED"},
	{cycle.ErrGroupNotFound, connect.CodeNotFound, "GROUP_NOT_FOUND"},
	{cycle.ErrNotMember, connect.CodePermissionDenied, "NOT_MEMBER"},
	{cycle.ErrAmountMismatch, connect.CodeInvalidArgument, "AMOUNT_MISMATCH"},
	{cycle.ErrGroupNotActive, connect.CodeFailedPrecondition, "GROUP_NOT_ACTIVE"},
	{cycle.ErrInvalidGroup, connect.CodeInvalidArgument, "INVALID_GROUP"},
	{cycle.ErrNotAuthorized, connect.CodePermissionDenied, "NOT_AUTHORIZED"},
	{cycle.ErrInvalidTransition, connect.CodeFailedPrecondition, "INVALID_TRANSITION"},
	{cycle.ErrContributionLocked, connect.CodeFailedPrecondition, "CONTRIBUTION_LOCKED"},
	{ledger.ErrInvalidAmount, connect.CodeInvalidArgument, "INVALID_AMOUNT"},
	{ledger.ErrInsufficientFunds, connect.CodeFailedPrecondition, "INSUFFICIENT_FUNDS"},
	{auth.ErrEmailExists, connect.CodeAlreadyExists, "EMAIL_EXISTS"},
	{auth.ErrWeakPassword, connect.CodeInvalidArgument, "WEAK_PASSWORD"},
	{auth.ErrInvalidEmail, connect.CodeInvalidArgument, "INVALID_EMAIL"},
	{auth.ErrInvalidPhone, connect.CodeInvalidArgument, "INVALID_PHONE"},
	{auth.ErrDisplayNameMissing, connect.CodeInvalidArgument, "DISPLAY_NAME_REQUIRED"},
	{auth.ErrInvalidCredentials, connect.CodeUnauthenticated, "INVALID_CREDENTIALS"},
	{auth.ErrMissingToken, connect.CodeUnauthenticated, "UNAUTHENTICATED"},
	{context.DeadlineExceeded, connect.CodeDeadlineExceeded, "TIMEOUT"},
	{context.Canceled, connect.CodeCanceled, "CANCELED"},
}

// Classify maps a domain error to its Connect code and a stable reason string.
// Unknown errors are internal.
func Classify(err error) (connect.Code, string) {
	for _, c := range errorClasses {
		if errors.Is(err, c.target) {
			return c.code, c.reason
		}
	}
	return connect.CodeInternal, "INTERNAL_ERROR"
}

// connectError wraps err for the wire, tagging it with its reason.
func connectError(err error) *connect.Error {
	code, reason := Classify(err)
	cerr := connect.NewError(code, err)
	cerr.Meta().Set(ErrorReasonHeader, reason)
	return cerr
}

// Reason extracts the reason attached by connectError, if any.
func Reason(err error) string {
	var cerr *connect.Error
	if errors.As(err, &cerr) {
		return cerr.Meta().Get(ErrorReasonHeader)
	}
	return ""
}
