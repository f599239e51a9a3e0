package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kiumaa/kixikila-sub001/internal/ledger"
)

// Ensure SQLiteStore implements ledger.Wallet
var _ ledger.Wallet = (*SQLiteStore)(nil)

// Deposit credits a user's wallet.
func (s *SQLiteStore) Deposit(ctx context.Context, userID string, amount decimal.Decimal) (string, error) {
	return s.move(ctx, userID, ledger.KindDeposit, amount)
}

// Charge debits a user's wallet, failing with ledger.ErrInsufficientFunds
// when the balance does not cover amount.
func (s *SQLiteStore) Charge(ctx context.Context, userID string, amount decimal.Decimal) (string, error) {
	return s.move(ctx, userID, ledger.KindCharge, amount)
}

// Payout credits a user's wallet with a prize or refund.
func (s *SQLiteStore) Payout(ctx context.Context, userID string, amount decimal.Decimal) (string, error) {
	txID, err := s.move(ctx, userID, ledger.KindPayout, amount)
	if err != nil && !errors.Is(err, ledger.ErrInvalidAmount) {
		return "", fmt.Errorf("%w: %w", ledger.ErrPayoutFailed, err)
	}
	return txID, err
}

// Balance returns the user's wallet balance. Unknown users have a zero balance.
func (s *SQLiteStore) Balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	return walletBalance(ctx, s.db, userID)
}

// ListTransactions returns every ledger transaction of a user, oldest first.
func (s *SQLiteStore) ListTransactions(ctx context.Context, userID string) ([]ledger.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, kind, amount FROM ledger_transactions
		 WHERE user_id = ? ORDER BY created_at, rowid`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txs []ledger.Transaction
	for rows.Next() {
		var tx ledger.Transaction
		var kind string
		if err := rows.Scan(&tx.ID, &tx.UserID, &kind, &tx.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		tx.Kind = ledger.Kind(kind)
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	return txs, nil
}

// move applies one balance change and its transaction record atomically.
func (s *SQLiteStore) move(ctx context.Context, userID string, kind ledger.Kind, amount decimal.Decimal) (string, error) {
	if !amount.IsPositive() {
		return "", ledger.ErrInvalidAmount
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	balance, err := walletBalance(ctx, tx, userID)
	if err != nil {
		return "", err
	}

	switch kind {
	case ledger.KindCharge:
		if balance.LessThan(amount) {
			return "", fmt.Errorf("%w: balance %s, need %s", ledger.ErrInsufficientFunds, balance, amount)
		}
		balance = balance.Sub(amount)
	default:
		balance = balance.Add(amount)
	}

	now := time.Now().UnixMilli()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO wallets (user_id, balance, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET balance = excluded.balance, updated_at = excluded.updated_at`,
		userID, balance, now,
	)
	if err != nil {
		return "", fmt.Errorf("failed to update wallet: %w", err)
	}

	txID := uuid.New().String()
	_, err = tx.ExecContext(ctx,
		"INSERT INTO ledger_transactions (id, user_id, kind, amount, created_at) VALUES (?, ?, ?, ?, ?)",
		txID, userID, string(kind), amount, now,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert transaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}
	return txID, nil
}

func walletBalance(ctx context.Context, q queryer, userID string) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := q.QueryRowContext(ctx, "SELECT balance FROM wallets WHERE user_id = ?", userID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get wallet balance: %w", err)
	}
	return balance, nil
}
