package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/kiumaa/kixikila-sub001/internal/ledger"
)

var _ ledger.Wallet = (*Store)(nil)

func (s *Store) Deposit(ctx context.Context, userID string, amount decimal.Decimal) (string, error) {
	return s.move(ctx, userID, ledger.KindDeposit, amount)
}

func (s *Store) Charge(ctx context.Context, userID string, amount decimal.Decimal) (string, error) {
	return s.move(ctx, userID, ledger.KindCharge, amount)
}

func (s *Store) Payout(ctx context.Context, userID string, amount decimal.Decimal) (string, error) {
	txID, err := s.move(ctx, userID, ledger.KindPayout, amount)
	if err != nil && !errors.Is(err, ledger.ErrInvalidAmount) {
		return "", fmt.Errorf("%w: %w", ledger.ErrPayoutFailed, err)
	}
	return txID, err
}

func (s *Store) Balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	var balance string
	err := s.pool.QueryRow(ctx, `SELECT balance::text FROM wallets WHERE user_id = $1`, userID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("get wallet balance: %w", err)
	}
	return decimal.NewFromString(balance)
}

// move locks the wallet row, applies the change and records the transaction.
func (s *Store) move(ctx context.Context, userID string, kind ledger.Kind, amount decimal.Decimal) (string, error) {
	if !amount.IsPositive() {
		return "", ledger.ErrInvalidAmount
	}

	txID := uuid.New().String()
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		now := time.Now().UTC()
		if _, err := tx.Exec(ctx, `
			INSERT INTO wallets (user_id, balance, updated_at) VALUES ($1, 0, $2)
			ON CONFLICT (user_id) DO NOTHING
		`, userID, now); err != nil {
			return fmt.Errorf("ensure wallet: %w", err)
		}

		var raw string
		if err := tx.QueryRow(ctx, `SELECT balance::text FROM wallets WHERE user_id = $1 FOR UPDATE`, userID).Scan(&raw); err != nil {
			return fmt.Errorf("lock wallet: %w", err)
		}
		balance, err := decimal.NewFromString(raw)
		if err != nil {
			return fmt.Errorf("parse wallet balance: %w", err)
		}

		switch kind {
		case ledger.KindCharge:
			if balance.LessThan(amount) {
				return fmt.Errorf("%w: balance %s, need %s", ledger.ErrInsufficientFunds, balance, amount)
			}
			balance = balance.Sub(amount)
		default:
			balance = balance.Add(amount)
		}

		if _, err := tx.Exec(ctx,
			`UPDATE wallets SET balance = $2::text::numeric, updated_at = $3 WHERE user_id = $1`,
			userID, balance.String(), now,
		); err != nil {
			return fmt.Errorf("update wallet: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO ledger_transactions (id, user_id, kind, amount, created_at)
			VALUES ($1, $2, $3, $4::text::numeric, $5)
		`, txID, userID, string(kind), amount.String(), now); err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return txID, nil
}
