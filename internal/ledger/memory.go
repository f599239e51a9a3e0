package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Ensure Memory implements Wallet
var _ Wallet = (*Memory)(nil)

// Transaction is one recorded wallet movement.
type Transaction struct {
	ID     string
	UserID string
	Kind   Kind
	Amount decimal.Decimal
}

// Memory is an in-process wallet ledger. It is used in tests and for
// local development when no database-backed wallet is configured.
type Memory struct {
	mu           sync.Mutex
	balances     map[string]decimal.Decimal
	transactions []Transaction

	failPayouts bool
}

// NewMemory creates an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{balances: make(map[string]decimal.Decimal)}
}

// SetFailPayouts makes every subsequent Payout fail with ErrPayoutFailed.
func (m *Memory) SetFailPayouts(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failPayouts = fail
}

func (m *Memory) Deposit(ctx context.Context, userID string, amount decimal.Decimal) (string, error) {
	if !amount.IsPositive() {
		return "", ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[userID] = m.balances[userID].Add(amount)
	return m.record(userID, KindDeposit, amount), nil
}

func (m *Memory) Charge(ctx context.Context, userID string, amount decimal.Decimal) (string, error) {
	if !amount.IsPositive() {
		return "", ErrInvalidAmount
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	balance := m.balances[userID]
	if balance.LessThan(amount) {
		return "", fmt.Errorf("%w: balance %s, need %s", ErrInsufficientFunds, balance, amount)
	}
	m.balances[userID] = balance.Sub(amount)
	return m.record(userID, KindCharge, amount), nil
}

func (m *Memory) Payout(ctx context.Context, userID string, amount decimal.Decimal) (string, error) {
	if !amount.IsPositive() {
		return "", ErrInvalidAmount
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPayouts {
		return "", ErrPayoutFailed
	}
	m.balances[userID] = m.balances[userID].Add(amount)
	return m.record(userID, KindPayout, amount), nil
}

func (m *Memory) Balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[userID], nil
}

// Transactions returns a copy of every recorded transaction in order.
func (m *Memory) Transactions() []Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Transaction, len(m.transactions))
	copy(out, m.transactions)
	return out
}

// record must be called with mu held.
func (m *Memory) record(userID string, kind Kind, amount decimal.Decimal) string {
	tx := Transaction{
		ID:     uuid.New().String(),
		UserID: userID,
		Kind:   kind,
		Amount: amount,
	}
	m.transactions = append(m.transactions, tx)
	return tx.ID
}
