// Package wallet owns the connection to the HOT wallet: sign-in, sign-out and
// sign-and-send, with the session persisted through session.Store.
package wallet

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/dialect"
	"github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/hostenv"
	"github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/monitor"
	"github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/provider"
	"github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/session"
	"github.com/quantumauth-io/quantum-go-utils/log"
	"golang.org/x/sync/singleflight"
)

type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

type Option func(*Bridge)

// WithHost sets the ambient globals used for environment detection and the
// extension provider lookup.
func WithHost(h hostenv.Host) Option {
	return func(b *Bridge) { b.host = h }
}

// WithSDK sets the fallback provider handle.
func WithSDK(sdk any) Option {
	return func(b *Bridge) { b.sdk = sdk }
}

func WithDialects(t dialect.Table) Option {
	return func(b *Bridge) { b.dialects = t }
}

func WithSignInOptions(o dialect.SignInOptions) Option {
	return func(b *Bridge) { b.signIn = o }
}

func WithMetrics(m *monitor.Metrics) Option {
	return func(b *Bridge) { b.metrics = m }
}

type Bridge struct {
	store    *session.Store
	host     hostenv.Host
	sdk      any
	dialects dialect.Table
	signIn   dialect.SignInOptions
	metrics  *monitor.Metrics

	flight singleflight.Group
	// opMu serialises connect and disconnect.
	opMu sync.Mutex

	mu       sync.RWMutex
	state    State
	provider provider.Requester
}

// NewBridge trusts the persisted session: a stored connection starts the
// bridge in Connected without asking the wallet.
func NewBridge(ctx context.Context, store *session.Store, opts ...Option) *Bridge {
	b := &Bridge{
		store:    store,
		dialects: dialect.DefaultTable(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if store.Load(ctx).Connected {
		b.state = Connected
	}
	return b
}

func (b *Bridge) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

func (b *Bridge) setState(s State) {
	b.mu.Lock()
	b.state = s
	b.mu.Unlock()
}

// GetStatus returns the persisted session as stored.
func (b *Bridge) GetStatus(ctx context.Context) session.Session {
	return b.store.Load(ctx)
}

// Environment reports the host environment the next request will target.
func (b *Bridge) Environment() hostenv.Environment {
	return hostenv.Detect(b.host)
}

// resolveProvider caches the first handle found. While none is found it keeps
// resolving, so a provider that appears later is picked up.
func (b *Bridge) resolveProvider() provider.Requester {
	b.mu.RLock()
	p := b.provider
	b.mu.RUnlock()
	if p != nil {
		return p
	}

	p = provider.Resolve(b.host, b.sdk)
	if p == nil {
		return nil
	}

	b.mu.Lock()
	if b.provider == nil {
		b.provider = p
	}
	p = b.provider
	b.mu.Unlock()
	return p
}

// Connect signs in with the wallet. Concurrent calls share a single sign-in.
// When a session is already persisted it is returned without contacting the
// wallet.
//
// The shared sign-in does not inherit cancellation from any one caller. A
// caller whose ctx ends stops waiting and gets ctx.Err(), while the sign-in
// keeps going for the others and is persisted if the user approves it.
func (b *Bridge) Connect(ctx context.Context) (session.Session, error) {
	v, err := b.shared(ctx, "connect", func(ctx context.Context) (any, error) {
		return b.connect(ctx)
	})
	sess, _ := v.(session.Session)
	return sess, err
}

// shared runs fn once per key for all concurrent callers, serialized against
// the other shared operations.
func (b *Bridge) shared(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	runCtx := context.WithoutCancel(ctx)
	ch := b.flight.DoChan(key, func() (any, error) {
		b.opMu.Lock()
		defer b.opMu.Unlock()
		return fn(runCtx)
	})

	select {
	case r := <-ch:
		return r.Val, r.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *Bridge) connect(ctx context.Context) (session.Session, error) {
	if sess := b.store.Load(ctx); sess.Connected {
		b.setState(Connected)
		return sess, nil
	}

	p := b.resolveProvider()
	if p == nil {
		b.setState(Disconnected)
		b.metrics.ConnectResult(monitor.ResultUnavailable)
		log.Warn("wallet connect failed", "error", ErrProviderUnavailable.Error())
		return session.Session{}, ErrProviderUnavailable
	}

	b.setState(Connecting)

	env := hostenv.Detect(b.host)
	d := b.dialects.For(env)

	raw, err := p.Request(ctx, d.SignIn, d.SignInParams(b.signIn))
	if err != nil {
		logRemoteFailure("wallet sign-in failed", d.SignIn, env, err)
		return b.failConnect(errors.Wrap(err, d.SignIn))
	}

	accountID := dialect.AccountID(raw)
	if accountID == "" {
		log.Error("wallet sign-in returned no account",
			"method", d.SignIn,
			"environment", env.String(),
			"raw", string(raw),
		)
		return b.failConnect(errors.Newf("%s returned no account id", d.SignIn))
	}

	sess := session.Session{Connected: true, AccountID: accountID}
	if err := b.store.Save(ctx, sess); err != nil {
		log.Error("failed to persist wallet session", "error", err)
		return b.failConnect(err)
	}

	b.setState(Connected)
	b.metrics.ConnectResult(monitor.ResultSuccess)
	log.Info("wallet connected",
		"account_id", accountID,
		"environment", env.String(),
		"dialect", d.Name,
	)
	return sess, nil
}

func (b *Bridge) failConnect(cause error) (session.Session, error) {
	b.setState(Disconnected)
	b.metrics.ConnectResult(monitor.ResultFailure)
	return session.Session{}, WithKind(ErrConnectFailed, cause)
}

// Disconnect always clears the local session. The returned error only reports
// a failed remote sign-out and can be ignored.
func (b *Bridge) Disconnect(ctx context.Context) error {
	_, err := b.shared(ctx, "disconnect", func(ctx context.Context) (any, error) {
		return nil, b.disconnect(ctx)
	})
	return err
}

func (b *Bridge) disconnect(ctx context.Context) error {
	var remoteErr error
	remote := monitor.ResultUnavailable

	if p := b.resolveProvider(); p != nil {
		env := hostenv.Detect(b.host)
		d := b.dialects.For(env)
		if _, err := p.Request(ctx, d.SignOut, map[string]any{}); err != nil {
			logRemoteFailure("wallet sign-out failed, clearing local session anyway", d.SignOut, env, err)
			remoteErr = WithKind(ErrRemoteRequestFailed, errors.Wrap(err, d.SignOut))
			remote = monitor.ResultFailure
		} else {
			remote = monitor.ResultSuccess
		}
	}

	b.store.Clear(ctx)
	b.setState(Disconnected)
	b.metrics.DisconnectResult(remote)
	log.Info("wallet disconnected")
	return remoteErr
}

// SignAndSendTransaction submits one transaction for the wallet to sign and
// broadcast. It never issues a remote call without a persisted session.
func (b *Bridge) SignAndSendTransaction(ctx context.Context, req TransactionRequest) TransactionResult {
	if !b.store.Load(ctx).Connected {
		b.metrics.TransactionResult(monitor.ResultRejected)
		return failedResult(ErrNotConnected, "")
	}
	if err := req.Validate(); err != nil {
		b.metrics.TransactionResult(monitor.ResultFailure)
		return failedResult(err, "")
	}

	p := b.resolveProvider()
	if p == nil {
		b.metrics.TransactionResult(monitor.ResultUnavailable)
		return failedResult(ErrProviderUnavailable, "")
	}

	env := hostenv.Detect(b.host)
	d := b.dialects.For(env)

	params := d.SignAndSendParams(dialect.Transaction{ReceiverID: req.ReceiverID, Actions: req.Actions})
	raw, err := p.Request(ctx, d.SignAndSend, params)
	if err != nil {
		logRemoteFailure("sign and send failed", d.SignAndSend, env, err)
		b.metrics.TransactionResult(monitor.ResultFailure)

		msg := ""
		if rf, ok := provider.AsRequestFailed(err); ok && rf.Message != "" {
			msg = rf.Message
		}
		return failedResult(WithKind(ErrRemoteRequestFailed, errors.Wrap(err, d.SignAndSend)), msg)
	}

	out, err := d.Normalize(raw)
	if err != nil {
		log.Error("malformed transaction result",
			"method", d.SignAndSend,
			"environment", env.String(),
			"error", err.Error(),
			"raw", string(raw),
		)
		b.metrics.TransactionResult(monitor.ResultMalformed)
		res := failedResult(err, "")
		res.Raw = raw
		return res
	}

	b.metrics.TransactionResult(monitor.ResultSuccess)
	log.Info("transaction sent",
		"receiver_id", req.ReceiverID,
		"transaction_hash", out.Identifier(),
		"environment", env.String(),
	)
	return TransactionResult{
		Success:         true,
		TransactionHash: out.Identifier(),
		OutcomeID:       out.OutcomeID,
		Raw:             out.Raw,
	}
}

func logRemoteFailure(msg, method string, env hostenv.Environment, err error) {
	fields := []any{
		"method", method,
		"environment", env.String(),
		"error", err.Error(),
	}
	if rf, ok := provider.AsRequestFailed(err); ok {
		fields = append(fields, "code", rf.Code, "payload", string(rf.Payload))
	}
	log.Error(msg, fields...)
}
