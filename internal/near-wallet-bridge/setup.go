// setup.go
package near_wallet_bridge

import (
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/quantumauth-io/near-wallet-bridge/cmd/near-wallet-bridge/config"
	"github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/dialect"
	"github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/hostenv"
	bridgehttp "github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/http"
	"github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/monitor"
	"github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/networks"
	"github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/provider"
	"github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/session"
	"github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/ui"
	"github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/wallet"
	"github.com/quantumauth-io/quantum-go-utils/log"
)

const shutdownTimeout = 5 * time.Second

type BuildInfo struct {
	Version   string
	Commit    string
	BuildDate string
}

type RuntimeOptions struct {
	// ApprovalOut receives a scannable QR code for every relayed request that
	// waits on the phone. Nil keeps approvals to the pending endpoint only.
	ApprovalOut io.Writer
	// NetworksPath overrides the default networks file.
	NetworksPath string
	Registry     *prometheus.Registry
}

// Runtime is every long-lived component of the bridge, wired together.
type Runtime struct {
	Config   *config.Config
	Store    *session.Store
	Bridge   *wallet.Bridge
	UI       *ui.Service
	Networks *networks.Manager
	Feed     *ui.Feed
	Pending  *provider.PendingLinks
	Metrics  *monitor.Metrics
	Registry *prometheus.Registry

	closers []io.Closer
}

func NewRuntime(ctx context.Context, cfg *config.Config, opts RuntimeOptions) (*Runtime, error) {
	if cfg == nil {
		return nil, errors.New("nil config")
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}

	rt := &Runtime{
		Config:   cfg,
		Pending:  provider.NewPendingLinks(),
		Feed:     ui.NewFeed(ui.DefaultFeedSize),
		Registry: opts.Registry,
	}
	if rt.Registry == nil {
		rt.Registry = prometheus.NewRegistry()
	}
	rt.Metrics = monitor.New(rt.Registry)

	// ---- Session storage
	kv, err := session.Open(ctx, *cfg.Session)
	if err != nil {
		return nil, errors.Wrap(err, "open session store")
	}
	rt.Store = session.NewStore(kv)
	rt.closers = append(rt.closers, rt.Store)

	// ---- Wallet providers
	host, sdk := rt.buildProviders(opts.ApprovalOut)
	log.Info("wallet host detected", "environment", hostenv.Detect(host).String())

	embedded, err := dialect.ByName(cfg.Providers.EmbeddedDialect)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}

	rt.Bridge = wallet.NewBridge(ctx, rt.Store,
		wallet.WithHost(host),
		wallet.WithSDK(sdk),
		wallet.WithDialects(dialect.DefaultTable().WithEmbedded(embedded)),
		wallet.WithSignInOptions(dialect.SignInOptions{
			ContractID:  cfg.Wallet.ContractID,
			MethodNames: cfg.Wallet.MethodNames,
		}),
		wallet.WithMetrics(rt.Metrics),
	)

	// ---- Networks
	if opts.NetworksPath != "" {
		rt.Networks = networks.NewManagerAt(opts.NetworksPath)
	} else {
		rt.Networks, err = networks.NewManager()
		if err != nil {
			_ = rt.Close()
			return nil, err
		}
	}
	if err := rt.Networks.EnsureFromConfig(ctx, cfg.Networks); err != nil {
		_ = rt.Close()
		return nil, errors.Wrap(err, "ensure networks")
	}

	// ---- UI state
	rt.UI = ui.NewService(ctx, rt.Bridge, ui.Notifiers{rt.Feed, ui.LogNotifier{}},
		ui.WithNetworks(rt.Networks),
		ui.WithWalletName(cfg.Wallet.WalletName),
		ui.WithDefaultNetwork(cfg.Wallet.DefaultNetwork),
	)

	return rt, nil
}

// buildProviders maps the configured transports onto host globals and the
// SDK handle. The embedded host relay doubles as the SDK transport; otherwise
// the SDK talks to the polling relay.
func (rt *Runtime) buildProviders(approvalOut io.Writer) (hostenv.Globals, any) {
	p := rt.Config.Providers
	origin := localOrigin(rt.Config)
	globals := hostenv.Globals{}

	if p.ExtensionURL != "" {
		timeout := time.Duration(p.RequestTimeoutSeconds) * time.Second
		globals[hostenv.ExtensionGlobal] = provider.NewExtensionClient(p.ExtensionURL, timeout)
	}

	var sdk any
	if p.EmbeddedHostURL != "" {
		relay := provider.NewHostRelay(p.EmbeddedHostURL, http.Header{"Origin": []string{origin}})
		globals[hostenv.EmbeddedHostGlobal] = relay
		rt.closers = append(rt.closers, relay)
		sdk = provider.NewSDK(relay, p.Injected)
	} else if p.RelayURL != "" {
		approvals := provider.ApprovalNotifiers{rt.Pending}
		if approvalOut != nil {
			approvals = append(approvals, provider.TerminalQR{W: approvalOut})
		}
		relay := provider.NewPollingRelay(p.RelayURL,
			provider.WithPollInterval(time.Duration(p.PollIntervalMillis)*time.Millisecond),
			provider.WithApprovalNotifier(approvals),
			provider.WithOrigin(origin),
		)
		sdk = provider.NewSDK(relay, p.Injected)
	}

	return globals, sdk
}

// Handler builds the local HTTP API over the runtime.
func (rt *Runtime) Handler() http.Handler {
	return bridgehttp.NewServer(bridgehttp.Deps{
		UI:            rt.UI,
		Bridge:        rt.Bridge,
		Networks:      rt.Networks,
		Notifications: rt.Feed,
		Pending:       rt.Pending,
		Metrics:       rt.Metrics,
		Gatherer:      rt.Registry,
	}, bridgehttp.Options{
		AllowedOrigins: allowedOrigins(rt.Config),
	})
}

// Close releases the session store and any open provider connections. It
// returns the first error seen.
func (rt *Runtime) Close() error {
	var first error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	rt.closers = nil
	return first
}

func Run(ctx context.Context, build BuildInfo) error {
	log.Info("near-wallet-bridge",
		"version", build.Version,
		"commit", build.Commit,
		"build_date", build.BuildDate,
	)

	// ---- Config
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	rt, err := NewRuntime(ctx, cfg, RuntimeOptions{ApprovalOut: os.Stderr})
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := rt.Close(); closeErr != nil {
			log.Error("runtime close failed", "error", closeErr)
		}
	}()

	return Serve(ctx, ListenAddr(cfg), rt.Handler())
}

// Serve runs handler on addr until ctx is cancelled, then shuts down
// gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "cannot bind %s", addr)
	}

	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", "addr", listener.Addr().String())
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Error("HTTP server error", "error", err)
			return err
		}
		return nil
	case <-ctx.Done():
	}
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", "error", err)
		return err
	}
	log.Info("HTTP server gracefully stopped")
	return nil
}

func ListenAddr(cfg *config.Config) string {
	return net.JoinHostPort(cfg.ClientSettings.LocalHost, cfg.ClientSettings.Port)
}

func localOrigin(cfg *config.Config) string {
	return "http://" + ListenAddr(cfg)
}

// allowedOrigins is the configured list plus the bridge's own origins.
func allowedOrigins(cfg *config.Config) []string {
	out := append([]string{}, cfg.ClientSettings.AllowedOrigins...)
	out = append(out,
		localOrigin(cfg),
		"http://localhost:"+cfg.ClientSettings.Port,
	)
	return out
}
