// Package ledger defines the payment capability used to move contributions
// and prizes between users' wallets and a savings group.
package ledger

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrInsufficientFunds is returned by Charge when the wallet balance is too low.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrPayoutFailed is returned by Payout when funds could not be delivered.
	ErrPayoutFailed = errors.New("payout failed")
	// ErrInvalidAmount is returned for zero or negative amounts.
	ErrInvalidAmount = errors.New("amount must be positive")
)

// PaymentLedger charges and pays out users. Both calls return the ID of the
// ledger transaction they created.
type PaymentLedger interface {
	// Charge moves amount out of the user's wallet.
	Charge(ctx context.Context, userID string, amount decimal.Decimal) (string, error)

	// Payout moves amount into the user's wallet.
	Payout(ctx context.Context, userID string, amount decimal.Decimal) (string, error)
}

// Wallet is a PaymentLedger that also lets users fund and inspect their balance.
type Wallet interface {
	PaymentLedger

	Deposit(ctx context.Context, userID string, amount decimal.Decimal) (string, error)
	Balance(ctx context.Context, userID string) (decimal.Decimal, error)
}

// Kind classifies a ledger transaction.
type Kind string

const (
	KindDeposit Kind = "deposit"
	KindCharge  Kind = "charge"
	KindPayout  Kind = "payout"
)
