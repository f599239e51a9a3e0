package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type timeoutLedger struct {
	next    PaymentLedger
	timeout time.Duration
}

// WithTimeout bounds every Charge and Payout on next by d. A call that
// exceeds the deadline returns the context error. A non-positive d returns
// next unchanged.
func WithTimeout(next PaymentLedger, d time.Duration) PaymentLedger {
	if d <= 0 {
		return next
	}
	return &timeoutLedger{next: next, timeout: d}
}

func (l *timeoutLedger) Charge(ctx context.Context, userID string, amount decimal.Decimal) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	return l.next.Charge(ctx, userID, amount)
}

func (l *timeoutLedger) Payout(ctx context.Context, userID string, amount decimal.Decimal) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	return l.next.Payout(ctx, userID, amount)
}
