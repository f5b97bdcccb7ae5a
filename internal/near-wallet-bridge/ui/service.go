// Package ui exposes the wallet session as observable UI state and reports
// outcomes as notifications.
package ui

import (
	"context"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/constants"
	"github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/contract"
	"github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/session"
	"github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/wallet"
	"github.com/quantumauth-io/quantum-go-utils/log"
)

var (
	ErrNetworkLocked  = errors.New("disconnect wallet before changing network")
	ErrUnknownNetwork = errors.New("unknown network")
)

// Wallet is the part of the bridge the UI drives.
type Wallet interface {
	Connect(ctx context.Context) (session.Session, error)
	Disconnect(ctx context.Context) error
	GetStatus(ctx context.Context) session.Session
	SignAndSendTransaction(ctx context.Context, req wallet.TransactionRequest) wallet.TransactionResult
}

// NetworkValidator reports whether a network name is selectable.
type NetworkValidator interface {
	Has(name string) bool
}

type builtinNetworks struct{}

func (builtinNetworks) Has(name string) bool {
	return name == constants.NetworkMainnet || name == constants.NetworkTestnet
}

type State struct {
	Connected  bool   `json:"isConnected"`
	Connecting bool   `json:"isConnecting"`
	AccountID  string `json:"accountId,omitempty"`
	WalletName string `json:"walletName"`
	Network    string `json:"network"`
}

type Option func(*Service)

func WithNetworks(v NetworkValidator) Option {
	return func(s *Service) {
		if v != nil {
			s.networks = v
		}
	}
}

func WithWalletName(name string) Option {
	return func(s *Service) {
		if name = strings.TrimSpace(name); name != "" {
			s.state.WalletName = name
		}
	}
}

func WithDefaultNetwork(name string) Option {
	return func(s *Service) {
		if name = strings.ToLower(strings.TrimSpace(name)); name != "" {
			s.state.Network = name
		}
	}
}

type Service struct {
	w        Wallet
	n        Notifier
	networks NetworkValidator

	mu    sync.RWMutex
	state State
}

// NewService seeds the state from the persisted session.
func NewService(ctx context.Context, w Wallet, n Notifier, opts ...Option) *Service {
	if n == nil {
		n = LogNotifier{}
	}
	s := &Service{
		w:        w,
		n:        n,
		networks: builtinNetworks{},
		state: State{
			WalletName: constants.WalletDisplayName,
			Network:    constants.DefaultNetwork,
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	s.Refresh(ctx)
	return s
}

// Refresh re-reads the persisted session so that a connection made or
// dropped by another process is reflected in the state.
func (s *Service) Refresh(ctx context.Context) State {
	sess := s.w.GetStatus(ctx)
	connected := sess.Connected && sess.AccountID != ""

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Connected = connected
	s.state.AccountID = ""
	if connected {
		s.state.AccountID = sess.AccountID
	}
	return s.state
}

func (s *Service) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Service) update(fn func(*State)) {
	s.mu.Lock()
	fn(&s.state)
	s.mu.Unlock()
}

func (s *Service) notify(title, description string, v Variant) {
	s.n.Notify(newNotification(title, description, v))
}

func (s *Service) Connect(ctx context.Context) error {
	s.update(func(st *State) { st.Connecting = true })
	defer s.update(func(st *State) { st.Connecting = false })

	sess, err := s.w.Connect(ctx)
	if err == nil && (!sess.Connected || sess.AccountID == "") {
		err = wallet.WithKind(wallet.ErrConnectFailed, errors.New("no account returned"))
	}
	if err != nil {
		log.Error("connection error", "error", err.Error())
		s.notify("Connection Failed", err.Error(), VariantDestructive)
		return err
	}

	s.update(func(st *State) {
		st.Connected = true
		st.AccountID = sess.AccountID
	})
	s.notify("Success", "Wallet connected successfully!", VariantDefault)
	return nil
}

// Disconnect always resets the state. A failed remote sign-out is only logged.
func (s *Service) Disconnect(ctx context.Context) {
	if err := s.w.Disconnect(ctx); err != nil {
		log.Warn("remote sign-out failed", "error", err.Error())
	}
	s.update(func(st *State) {
		st.Connected = false
		st.AccountID = ""
	})
	s.notify("Disconnected", "Wallet disconnected", VariantDefault)
}

func (s *Service) SignAndSendTransaction(ctx context.Context, req wallet.TransactionRequest) (wallet.TransactionResult, error) {
	res := s.signAndSend(ctx, req)
	if res.Success {
		return res, nil
	}
	if res.Err != nil {
		return res, res.Err
	}
	return res, errors.Newf("transaction failed: %s", res.Error)
}

// signAndSend refuses locally when no session is persisted and drops the
// connected state when the bridge reports that the session is gone.
func (s *Service) signAndSend(ctx context.Context, req wallet.TransactionRequest) wallet.TransactionResult {
	if !s.Refresh(ctx).Connected {
		return wallet.TransactionResult{Error: wallet.ErrNotConnected.Error(), Err: wallet.ErrNotConnected}
	}

	res := s.w.SignAndSendTransaction(ctx, req)
	if !res.Success {
		log.Error("transaction error", "error", res.Error)
		if errors.Is(res.Err, wallet.ErrNotConnected) {
			s.update(func(st *State) {
				st.Connected = false
				st.AccountID = ""
			})
		}
	}
	return res
}

type signer struct{ s *Service }

func (x signer) SignAndSendTransaction(ctx context.Context, req wallet.TransactionRequest) wallet.TransactionResult {
	return x.s.signAndSend(ctx, req)
}

func (s *Service) Mint(ctx context.Context, m contract.MintMetadata) (contract.MintResult, error) {
	out, err := contract.Mint(ctx, signer{s}, m)
	switch {
	case err == nil:
		s.notify("NFT Minted", "Token "+out.TokenID, VariantDefault)
	case errors.Is(err, contract.ErrTransactionCancelled):
		s.notify("Mint Cancelled", "Transaction was cancelled by user", VariantDestructive)
	default:
		s.notify("Mint Failed", err.Error(), VariantDestructive)
	}
	return out, err
}

// SetNetwork selects the network for the next connection. It is refused
// while a wallet is connected.
func (s *Service) SetNetwork(ctx context.Context, name string) error {
	name = strings.ToLower(strings.TrimSpace(name))

	if s.Refresh(ctx).Connected {
		s.notify("Warning", "Please disconnect wallet before changing network", VariantDestructive)
		return ErrNetworkLocked
	}
	if !s.networks.Has(name) {
		return errors.Wrapf(ErrUnknownNetwork, "%q", name)
	}

	s.update(func(st *State) { st.Network = name })
	log.Info("network selected", "network", name)
	return nil
}
