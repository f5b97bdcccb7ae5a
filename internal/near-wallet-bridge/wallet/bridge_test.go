package wallet

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/dialect"
	"github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/hostenv"
	"github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/monitor"
	"github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/provider"
	"github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/session"
	"github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/session/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	Method string
	Params json.RawMessage
}

// fakeProvider answers by method name and records every request.
type fakeProvider struct {
	mu        sync.Mutex
	calls     []call
	responses map[string]json.RawMessage
	errs      map[string]error
	block     chan struct{}
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		responses: map[string]json.RawMessage{},
		errs:      map[string]error{},
	}
}

func (f *fakeProvider) Request(ctx context.Context, method string, params any) (json.RawMessage, error) {
	b, _ := json.Marshal(params)

	f.mu.Lock()
	f.calls = append(f.calls, call{Method: method, Params: b})
	block := f.block
	resp, err := f.responses[method], f.errs[method]
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return resp, err
}

func (f *fakeProvider) Calls() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

func (f *fakeProvider) methods() []string {
	var out []string
	for _, c := range f.Calls() {
		out = append(out, c.Method)
	}
	return out
}

func extensionHost(p provider.Requester) hostenv.Globals {
	return hostenv.Globals{hostenv.ExtensionGlobal: p}
}

func connectedStore(t *testing.T, accountID string) *session.Store {
	t.Helper()
	store := session.NewStore(memory.New())
	require.NoError(t, store.Save(context.Background(), session.Session{Connected: true, AccountID: accountID}))
	return store
}

func mintRequest() TransactionRequest {
	return TransactionRequest{
		ReceiverID: "easy-proxy.near",
		Actions: []Action{
			NewFunctionCall("nft_mint_proxy", map[string]any{"token_metadata": map[string]any{"title": "t"}}, "300000000000000", "0"),
		},
	}
}

func TestConnectSuccess(t *testing.T) {
	ctx := context.Background()
	p := newFakeProvider()
	p.responses["near:signIn"] = json.RawMessage(`{"accountId":"alice.testnet"}`)

	store := session.NewStore(memory.New())
	b := NewBridge(ctx, store, WithHost(extensionHost(p)))
	require.Equal(t, Disconnected, b.State())

	sess, err := b.Connect(ctx)
	require.NoError(t, err)
	assert.Equal(t, session.Session{Connected: true, AccountID: "alice.testnet"}, sess)
	assert.Equal(t, Connected, b.State())
	assert.Equal(t, sess, store.Load(ctx))
	assert.Equal(t, []string{"near:signIn"}, p.methods())
}

func TestConnectProviderUnavailable(t *testing.T) {
	ctx := context.Background()
	store := session.NewStore(memory.New())
	b := NewBridge(ctx, store)

	sess, err := b.Connect(ctx)
	require.ErrorIs(t, err, ErrProviderUnavailable)
	assert.Equal(t, session.Session{}, sess)
	assert.Equal(t, Disconnected, b.State())
	assert.Equal(t, session.Session{}, store.Load(ctx))
}

func TestConnectSDKWithoutTransportFails(t *testing.T) {
	ctx := context.Background()
	store := session.NewStore(memory.New())
	b := NewBridge(ctx, store, WithSDK(provider.NewSDK(nil, false)))

	_, err := b.Connect(ctx)
	require.ErrorIs(t, err, ErrConnectFailed)
	require.ErrorIs(t, err, provider.ErrNoTransport)
	assert.Equal(t, Disconnected, b.State())
}

func TestConnectRemoteRejection(t *testing.T) {
	ctx := context.Background()
	p := newFakeProvider()
	p.errs["near:signIn"] = &provider.RequestFailedError{
		Method:  "near:signIn",
		Message: "User rejected",
		Payload: json.RawMessage(`{"reason":"rejected"}`),
	}

	store := session.NewStore(memory.New())
	b := NewBridge(ctx, store, WithHost(extensionHost(p)))

	_, err := b.Connect(ctx)
	require.ErrorIs(t, err, ErrConnectFailed)

	rf, ok := provider.AsRequestFailed(err)
	require.True(t, ok)
	assert.Equal(t, "User rejected", rf.Message)
	assert.Equal(t, Disconnected, b.State())
	assert.Equal(t, session.Session{}, store.Load(ctx))
}

func TestConnectWithoutAccountID(t *testing.T) {
	ctx := context.Background()
	p := newFakeProvider()
	p.responses["near:signIn"] = json.RawMessage(`{"accountId":""}`)

	store := session.NewStore(memory.New())
	b := NewBridge(ctx, store, WithHost(extensionHost(p)))

	_, err := b.Connect(ctx)
	require.ErrorIs(t, err, ErrConnectFailed)
	assert.Equal(t, Disconnected, b.State())
	assert.Equal(t, session.Session{}, store.Load(ctx))
}

func TestConnectEmbeddedHostWithLegacyDialect(t *testing.T) {
	ctx := context.Background()
	p := newFakeProvider()
	p.responses["signIn"] = json.RawMessage(`{"accountId":"bob.near"}`)

	host := hostenv.Globals{
		hostenv.ExtensionGlobal:    p,
		hostenv.EmbeddedHostGlobal: struct{}{},
	}
	b := NewBridge(ctx, session.NewStore(memory.New()),
		WithHost(host),
		WithDialects(dialect.DefaultTable().WithEmbedded(dialect.Legacy)),
		WithSignInOptions(dialect.SignInOptions{ContractID: "easy-proxy.near"}),
	)

	sess, err := b.Connect(ctx)
	require.NoError(t, err)
	assert.Equal(t, "bob.near", sess.AccountID)

	calls := p.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "signIn", calls[0].Method)
	assert.JSONEq(t, `{"contractId":"easy-proxy.near","methodNames":[]}`, string(calls[0].Params))
}

func TestConnectEmbeddedHostDefaultsToNamespaced(t *testing.T) {
	ctx := context.Background()
	p := newFakeProvider()
	p.responses["near:signIn"] = json.RawMessage(`{"accountId":"bob.near"}`)

	host := hostenv.Globals{
		hostenv.ExtensionGlobal:    p,
		hostenv.EmbeddedHostGlobal: struct{}{},
	}
	b := NewBridge(ctx, session.NewStore(memory.New()), WithHost(host))
	require.Equal(t, hostenv.EmbeddedMessagingHost, b.Environment())

	sess, err := b.Connect(ctx)
	require.NoError(t, err)
	assert.Equal(t, "bob.near", sess.AccountID)

	calls := p.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "near:signIn", calls[0].Method)
}

func TestConnectWhenAlreadyConnected(t *testing.T) {
	ctx := context.Background()
	p := newFakeProvider()
	b := NewBridge(ctx, connectedStore(t, "alice.testnet"), WithHost(extensionHost(p)))
	require.Equal(t, Connected, b.State())

	sess, err := b.Connect(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alice.testnet", sess.AccountID)
	assert.Empty(t, p.Calls())
}

func TestConcurrentConnectSignsInOnce(t *testing.T) {
	ctx := context.Background()
	p := newFakeProvider()
	p.responses["near:signIn"] = json.RawMessage(`{"accountId":"alice.testnet"}`)
	p.block = make(chan struct{})

	b := NewBridge(ctx, session.NewStore(memory.New()), WithHost(extensionHost(p)))

	var wg sync.WaitGroup
	results := make([]session.Session, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sess, err := b.Connect(ctx)
			assert.NoError(t, err)
			results[i] = sess
		}(i)
	}

	require.Eventually(t, func() bool { return len(p.Calls()) == 1 }, testTimeout, testTick)
	close(p.block)
	wg.Wait()

	assert.Len(t, p.Calls(), 1)
	for _, r := range results {
		assert.Equal(t, "alice.testnet", r.AccountID)
	}
}

func TestConnectCallerCancelDoesNotAbortSharedSignIn(t *testing.T) {
	p := newFakeProvider()
	p.responses["near:signIn"] = json.RawMessage(`{"accountId":"alice.testnet"}`)
	p.block = make(chan struct{})

	store := session.NewStore(memory.New())
	b := NewBridge(context.Background(), store, WithHost(extensionHost(p)))

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := b.Connect(first)
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return len(p.Calls()) == 1 }, testTimeout, testTick)

	type outcome struct {
		sess session.Session
		err  error
	}
	second := make(chan outcome, 1)
	go func() {
		sess, err := b.Connect(context.Background())
		second <- outcome{sess, err}
	}()

	cancel()
	require.ErrorIs(t, <-firstErr, context.Canceled)

	close(p.block)
	got := <-second
	require.NoError(t, got.err)
	assert.Equal(t, "alice.testnet", got.sess.AccountID)
	assert.Equal(t, session.Session{Connected: true, AccountID: "alice.testnet"}, store.Load(context.Background()))
	assert.Len(t, p.Calls(), 1)
}

func TestDisconnectClearsSessionWhenSignOutFails(t *testing.T) {
	ctx := context.Background()
	p := newFakeProvider()
	p.errs["near:signOut"] = errors.New("network unreachable")

	store := connectedStore(t, "alice.testnet")
	b := NewBridge(ctx, store, WithHost(extensionHost(p)))
	require.Equal(t, Connected, b.State())

	err := b.Disconnect(ctx)
	require.ErrorIs(t, err, ErrRemoteRequestFailed)
	assert.Equal(t, Disconnected, b.State())
	assert.Equal(t, session.Session{}, store.Load(ctx))
	assert.Equal(t, []string{"near:signOut"}, p.methods())
}

func TestDisconnectWithoutProvider(t *testing.T) {
	ctx := context.Background()
	store := connectedStore(t, "alice.testnet")
	b := NewBridge(ctx, store)

	require.NoError(t, b.Disconnect(ctx))
	assert.Equal(t, Disconnected, b.State())
	assert.False(t, store.Load(ctx).Connected)

	// idempotent
	require.NoError(t, b.Disconnect(ctx))
}

func TestSignAndSendNotConnected(t *testing.T) {
	ctx := context.Background()
	p := newFakeProvider()
	b := NewBridge(ctx, session.NewStore(memory.New()), WithHost(extensionHost(p)))

	res := b.SignAndSendTransaction(ctx, mintRequest())
	assert.False(t, res.Success)
	require.ErrorIs(t, res.Err, ErrNotConnected)
	assert.Equal(t, "wallet not connected", res.Error)
	assert.Empty(t, p.Calls())
}

func TestSignAndSendNamespacedSuccess(t *testing.T) {
	ctx := context.Background()
	p := newFakeProvider()
	p.responses["near:signAndSendTransactions"] = json.RawMessage(
		`{"transactions":[{"transaction":{"hash":"0xabc"},"transaction_outcome":{"id":"outc1"}}]}`)

	b := NewBridge(ctx, connectedStore(t, "alice.testnet"), WithHost(extensionHost(p)))

	res := b.SignAndSendTransaction(ctx, mintRequest())
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "0xabc", res.TransactionHash)
	assert.Equal(t, "outc1", res.OutcomeID)
	assert.NoError(t, res.Err)

	calls := p.Calls()
	require.Len(t, calls, 1)
	assert.JSONEq(t, `{"transactions":[{"receiverId":"easy-proxy.near","actions":[{
		"type":"FunctionCall",
		"params":{"methodName":"nft_mint_proxy","args":{"token_metadata":{"title":"t"}},"gas":"300000000000000","deposit":"0"}
	}]}]}`, string(calls[0].Params))
}

func TestSignAndSendLegacyFallsBackToOutcomeID(t *testing.T) {
	ctx := context.Background()
	p := newFakeProvider()
	p.responses["signAndSendTransaction"] = json.RawMessage(`{"transaction_outcome":{"id":"outc2"}}`)

	host := hostenv.Globals{
		hostenv.ExtensionGlobal:    p,
		hostenv.EmbeddedHostGlobal: true,
	}
	b := NewBridge(ctx, connectedStore(t, "bob.near"),
		WithHost(host),
		WithDialects(dialect.DefaultTable().WithEmbedded(dialect.Legacy)),
	)

	res := b.SignAndSendTransaction(ctx, mintRequest())
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "outc2", res.TransactionHash)

	calls := p.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "signAndSendTransaction", calls[0].Method)
	assert.Contains(t, string(calls[0].Params), `"receiverId":"easy-proxy.near"`)
}

func TestSignAndSendMalformedResult(t *testing.T) {
	ctx := context.Background()
	p := newFakeProvider()
	p.responses["near:signAndSendTransactions"] = json.RawMessage(`{"transactions":[{"status":"ok"}]}`)

	b := NewBridge(ctx, connectedStore(t, "alice.testnet"), WithHost(extensionHost(p)))

	res := b.SignAndSendTransaction(ctx, mintRequest())
	assert.False(t, res.Success)
	assert.Empty(t, res.TransactionHash)
	require.ErrorIs(t, res.Err, ErrMalformedResult)
	assert.JSONEq(t, `{"transactions":[{"status":"ok"}]}`, string(res.Raw))
}

func TestSignAndSendRemoteFailure(t *testing.T) {
	ctx := context.Background()
	p := newFakeProvider()
	p.errs["near:signAndSendTransactions"] = &provider.RequestFailedError{Message: "User rejected the request"}

	b := NewBridge(ctx, connectedStore(t, "alice.testnet"), WithHost(extensionHost(p)))

	res := b.SignAndSendTransaction(ctx, mintRequest())
	assert.False(t, res.Success)
	require.ErrorIs(t, res.Err, ErrRemoteRequestFailed)
	assert.Equal(t, "User rejected the request", res.Error)
}

func TestSignAndSendInvalidRequest(t *testing.T) {
	ctx := context.Background()
	p := newFakeProvider()
	b := NewBridge(ctx, connectedStore(t, "alice.testnet"), WithHost(extensionHost(p)))

	res := b.SignAndSendTransaction(ctx, TransactionRequest{ReceiverID: "easy-proxy.near"})
	require.ErrorIs(t, res.Err, ErrInvalidTransaction)
	assert.Empty(t, p.Calls())
}

func TestSignAndSendProviderUnavailable(t *testing.T) {
	ctx := context.Background()
	b := NewBridge(ctx, connectedStore(t, "alice.testnet"))

	res := b.SignAndSendTransaction(ctx, mintRequest())
	require.ErrorIs(t, res.Err, ErrProviderUnavailable)
}

func TestProviderResolvedLazily(t *testing.T) {
	ctx := context.Background()
	host := hostenv.Globals{}
	b := NewBridge(ctx, session.NewStore(memory.New()), WithHost(host))

	_, err := b.Connect(ctx)
	require.ErrorIs(t, err, ErrProviderUnavailable)

	p := newFakeProvider()
	p.responses["near:signIn"] = json.RawMessage(`{"account_id":"late.near"}`)
	host[hostenv.ExtensionGlobal] = p

	sess, err := b.Connect(ctx)
	require.NoError(t, err)
	assert.Equal(t, "late.near", sess.AccountID)
}

func TestBridgeRecordsMetrics(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	m := monitor.New(reg)

	b := NewBridge(ctx, session.NewStore(memory.New()), WithMetrics(m))
	_, _ = b.Connect(ctx)
	_ = b.SignAndSendTransaction(ctx, mintRequest())

	families, err := reg.Gather()
	require.NoError(t, err)

	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "near_bridge_connect_total")
	assert.Contains(t, names, "near_bridge_transactions_total")
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "disconnected", Disconnected.String())
	assert.Equal(t, "connecting", Connecting.String())
	assert.Equal(t, "connected", Connected.String())
}
