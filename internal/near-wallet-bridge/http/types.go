package http

import (
	"context"

	"github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/contract"
	"github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/hostenv"
	"github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/networks"
	"github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/provider"
	"github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/session"
	"github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/ui"
	"github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/wallet"
)

type apiResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	Data  any    `json:"data,omitempty"`
}

// UI is the UI service the API drives. *ui.Service implements it.
type UI interface {
	Snapshot() ui.State
	Refresh(ctx context.Context) ui.State
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context)
	SignAndSendTransaction(ctx context.Context, req wallet.TransactionRequest) (wallet.TransactionResult, error)
	Mint(ctx context.Context, m contract.MintMetadata) (contract.MintResult, error)
	SetNetwork(ctx context.Context, name string) error
}

// Bridge is the read-only view of the wallet bridge. *wallet.Bridge implements it.
type Bridge interface {
	GetStatus(ctx context.Context) session.Session
	State() wallet.State
	Environment() hostenv.Environment
}

type NetworkLister interface {
	List(ctx context.Context) ([]networks.NetworkConfig, error)
}

type NotificationSource interface {
	List(limit int) []ui.Notification
}

type PendingSource interface {
	Latest() (provider.PendingRequest, bool)
}

type statusResp struct {
	Connected   bool   `json:"connected"`
	AccountID   string `json:"accountId,omitempty"`
	State       string `json:"state"`
	Environment string `json:"environment"`
}

type setNetworkReq struct {
	Network string `json:"network"`
}

type mintResp struct {
	contract.MintResult
	DepositNEAR string `json:"depositNear"`
}
