package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

// slowLedger blocks until its context is done or the delay elapses.
type slowLedger struct {
	delay time.Duration
}

func (s slowLedger) wait(ctx context.Context) (string, error) {
	select {
	case <-time.After(s.delay):
		return "tx", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s slowLedger) Charge(ctx context.Context, _ string, _ decimal.Decimal) (string, error) {
	return s.wait(ctx)
}

func (s slowLedger) Payout(ctx context.Context, _ string, _ decimal.Decimal) (string, error) {
	return s.wait(ctx)
}

func TestWithTimeout(t *testing.T) {
	tests := []struct {
		name    string
		delay   time.Duration
		timeout time.Duration
		wantErr error
	}{
		{name: "fast call", delay: time.Millisecond, timeout: time.Second},
		{name: "slow call", delay: time.Second, timeout: 10 * time.Millisecond, wantErr: context.DeadlineExceeded},
		{name: "disabled", delay: 5 * time.Millisecond, timeout: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := WithTimeout(slowLedger{delay: tt.delay}, tt.timeout)
			for _, call := range []func(context.Context, string, decimal.Decimal) (string, error){l.Charge, l.Payout} {
				_, err := call(context.Background(), "u", decimal.NewFromInt(1))
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("error = %v, want %v", err, tt.wantErr)
				}
			}
		})
	}
}

func TestWithTimeout_DisabledReturnsSameLedger(t *testing.T) {
	m := NewMemory()
	if got := WithTimeout(m, 0); got != PaymentLedger(m) {
		t.Error("WithTimeout with zero duration should return the wrapped ledger")
	}
}
