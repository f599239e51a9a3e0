package apiconnect

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/kiumaa/kixikila-sub001/pkg/api"
)

const WalletServiceName = "kixikila.v1.WalletService"

const (
	WalletServiceDepositProcedure    = "/kixikila.v1.WalletService/Deposit"
	WalletServiceGetBalanceProcedure = "/kixikila.v1.WalletService/GetBalance"
)

// WalletServiceHandler is implemented by the server side of kixikila.v1.WalletService.
type WalletServiceHandler interface {
	Deposit(context.Context, *connect.Request[api.DepositRequest]) (*connect.Response[api.DepositResponse], error)
	GetBalance(context.Context, *connect.Request[api.GetBalanceRequest]) (*connect.Response[api.GetBalanceResponse], error)
}

// NewWalletServiceHandler builds an HTTP handler from the service implementation.
func NewWalletServiceHandler(svc WalletServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{WithJSON()}, opts...)
	deposit := connect.NewUnaryHandler(WalletServiceDepositProcedure, svc.Deposit, opts...)
	getBalance := connect.NewUnaryHandler(WalletServiceGetBalanceProcedure, svc.GetBalance, opts...)
	return "/" + WalletServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case WalletServiceDepositProcedure:
			deposit.ServeHTTP(w, r)
		case WalletServiceGetBalanceProcedure:
			getBalance.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// WalletServiceClient is a client for kixikila.v1.WalletService.
type WalletServiceClient struct {
	deposit    *connect.Client[api.DepositRequest, api.DepositResponse]
	getBalance *connect.Client[api.GetBalanceRequest, api.GetBalanceResponse]
}

// NewWalletServiceClient constructs a client for the service at baseURL.
func NewWalletServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *WalletServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{WithJSON()}, opts...)
	return &WalletServiceClient{
		deposit:    connect.NewClient[api.DepositRequest, api.DepositResponse](httpClient, baseURL+WalletServiceDepositProcedure, opts...),
		getBalance: connect.NewClient[api.GetBalanceRequest, api.GetBalanceResponse](httpClient, baseURL+WalletServiceGetBalanceProcedure, opts...),
	}
}

func (c *WalletServiceClient) Deposit(ctx context.Context, req *connect.Request[api.DepositRequest]) (*connect.Response[api.DepositResponse], error) {
	return c.deposit.CallUnary(ctx, req)
}

func (c *WalletServiceClient) GetBalance(ctx context.Context, req *connect.Request[api.GetBalanceRequest]) (*connect.Response[api.GetBalanceResponse], error) {
	return c.getBalance.CallUnary(ctx, req)
}
