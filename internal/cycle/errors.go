package cycle

import "errors"

var (
	ErrInsufficientFunds  = errors.New("insufficient funds for contribution")
	ErrAlreadyPaid        = errors.New("contribution already recorded for this cycle")
	ErrGroupFull          = errors.New("group is full")
	ErrAlreadyMember      = errors.New("user is already a member of this group")
	ErrNotEligibleForDraw = errors.New("group is not eligible for a draw")
	ErrPayoutFailed       = errors.New("prize payout failed")

	ErrGroupNotFound      = errors.New("group not found")
	ErrNotMember          = errors.New("user is not an active member of this group")
	ErrAmountMismatch     = errors.New("amount does not match the group contribution")
	ErrGroupNotActive     = errors.New("group is not accepting this operation in its current status")
	ErrInvalidGroup       = errors.New("invalid group parameters")
	ErrNotAuthorized      = errors.New("not authorized to perform this action")
	ErrInvalidTransition  = errors.New("invalid status change")
	ErrContributionLocked = errors.New("contributions for the current cycle are still in the pool")
)
