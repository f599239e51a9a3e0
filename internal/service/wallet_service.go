package service

import (
	"context"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/kiumaa/kixikila-sub001/internal/ledger"
	"github.com/kiumaa/kixikila-sub001/pkg/api"
)

// WalletService implements the Connect WalletService.
type WalletService struct {
	wallet ledger.Wallet
}

// NewWalletService creates a WalletService over the given wallet ledger.
func NewWalletService(wallet ledger.Wallet) *WalletService {
	return &WalletService{wallet: wallet}
}

// Deposit credits the caller's wallet.
func (s *WalletService) Deposit(ctx context.Context, req *connect.Request[api.DepositRequest]) (*connect.Response[api.DepositResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("Deposit request received", "user_id", userID, "amount", req.Msg.Amount.String())

	txID, err := s.wallet.Deposit(ctx, userID, req.Msg.Amount)
	if err != nil {
		slog.Error("Deposit failed", "user_id", userID, "error", err)
		return nil, connectError(err)
	}
	balance, err := s.wallet.Balance(ctx, userID)
	if err != nil {
		return nil, connectError(err)
	}

	return connect.NewResponse(&api.DepositResponse{TxID: txID, Balance: balance}), nil
}

// GetBalance returns the caller's wallet balance.
func (s *WalletService) GetBalance(ctx context.Context, req *connect.Request[api.GetBalanceRequest]) (*connect.Response[api.GetBalanceResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	balance, err := s.wallet.Balance(ctx, userID)
	if err != nil {
		slog.Error("GetBalance failed", "user_id", userID, "error", err)
		return nil, connectError(err)
	}
	return connect.NewResponse(&api.GetBalanceResponse{Balance: balance}), nil
}
