package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/hostenv"
	"github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/monitor"
	"github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/networks"
	"github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/provider"
	"github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/session"
	"github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/ui"
	"github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/wallet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

type fakeWallet struct {
	sess       session.Session
	connectErr error
	result     wallet.TransactionResult
}

func (f *fakeWallet) Connect(context.Context) (session.Session, error) {
	if f.connectErr != nil {
		return session.Session{}, f.connectErr
	}
	f.sess = session.Session{Connected: true, AccountID: "alice.testnet"}
	return f.sess, nil
}

func (f *fakeWallet) Disconnect(context.Context) error {
	f.sess = session.Session{}
	return nil
}

func (f *fakeWallet) GetStatus(context.Context) session.Session { return f.sess }

func (f *fakeWallet) SignAndSendTransaction(context.Context, wallet.TransactionRequest) wallet.TransactionResult {
	return f.result
}

func (f *fakeWallet) State() wallet.State {
	if f.sess.Connected {
		return wallet.Connected
	}
	return wallet.Disconnected
}

func (f *fakeWallet) Environment() hostenv.Environment { return hostenv.StandaloneExtension }

type testEnv struct {
	srv     *Server
	wallet  *fakeWallet
	feed    *ui.Feed
	pending *provider.PendingLinks
	reg     *prometheus.Registry
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ctx := context.Background()
	w := &fakeWallet{}
	feed := ui.NewFeed(10)
	pending := provider.NewPendingLinks()
	reg := prometheus.NewRegistry()

	nets := networks.NewManagerAt(filepath.Join(t.TempDir(), "networks.json"))
	require.NoError(t, nets.EnsureFromConfig(ctx, networks.DefaultNetworks()))

	svc := ui.NewService(ctx, w, feed, ui.WithNetworks(nets))

	if opts.AllowedOrigins == nil {
		opts.AllowedOrigins = []string{"http://localhost:6137"}
	}
	srv := NewServer(Deps{
		UI:            svc,
		Bridge:        w,
		Networks:      nets,
		Notifications: feed,
		Pending:       pending,
		Metrics:       monitor.New(reg),
		Gatherer:      reg,
	}, opts)

	return &testEnv{srv: srv, wallet: w, feed: feed, pending: pending, reg: reg}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "127.0.0.1:51234"
	req.Host = "127.0.0.1:6137"
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	e.srv.ServeHTTP(w, req)

	var resp apiResponse
	if w.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func TestLocalGuards(t *testing.T) {
	e := newTestEnv(t, Options{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "10.0.0.5:4000"
	req.Host = "127.0.0.1:6137"
	w := httptest.NewRecorder()
	e.srv.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "127.0.0.1:4000"
	req.Host = "evil.example:6137"
	w = httptest.NewRecorder()
	e.srv.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = e.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestCORS(t *testing.T) {
	e := newTestEnv(t, Options{})

	req := httptest.NewRequest(http.MethodGet, "/api/wallet/state", nil)
	req.RemoteAddr = "127.0.0.1:4000"
	req.Host = "127.0.0.1:6137"
	req.Header.Set("Origin", "http://localhost:6137")
	w := httptest.NewRecorder()
	e.srv.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://localhost:6137", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/wallet/state", nil)
	req.RemoteAddr = "127.0.0.1:4000"
	req.Host = "127.0.0.1:6137"
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	e.srv.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestStateReflectsSessionPersistedElsewhere(t *testing.T) {
	e := newTestEnv(t, Options{})
	e.wallet.sess = session.Session{Connected: true, AccountID: "bob.testnet"}

	w, resp := e.do(t, http.MethodGet, "/api/wallet/state", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp.Data.(map[string]any)["isConnected"])
	assert.Equal(t, "bob.testnet", resp.Data.(map[string]any)["accountId"])

	e.wallet.result = wallet.TransactionResult{Success: true, TransactionHash: "0xabc", OutcomeID: "outc1"}
	w, resp = e.do(t, http.MethodPost, "/api/nft/mint", map[string]any{"title": "Sunrise"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "outc1", resp.Data.(map[string]any)["tokenId"])
}

func TestConnectFlow(t *testing.T) {
	e := newTestEnv(t, Options{})

	w, resp := e.do(t, http.MethodGet, "/api/wallet/state", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.OK)
	assert.Equal(t, false, resp.Data.(map[string]any)["isConnected"])
	assert.Equal(t, "HOT Wallet", resp.Data.(map[string]any)["walletName"])

	w, resp = e.do(t, http.MethodPost, "/api/wallet/connect", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice.testnet", resp.Data.(map[string]any)["accountId"])

	w, resp = e.do(t, http.MethodGet, "/api/wallet/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := resp.Data.(map[string]any)
	assert.Equal(t, true, data["connected"])
	assert.Equal(t, "connected", data["state"])
	assert.Equal(t, "standalone-extension", data["environment"])

	w, resp = e.do(t, http.MethodPost, "/api/wallet/network", setNetworkReq{Network: "mainnet"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.False(t, resp.OK)

	w, _ = e.do(t, http.MethodPost, "/api/wallet/disconnect", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, resp = e.do(t, http.MethodPost, "/api/wallet/network", setNetworkReq{Network: "mainnet"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "mainnet", resp.Data.(map[string]any)["network"])

	w, _ = e.do(t, http.MethodPost, "/api/wallet/network", setNetworkReq{Network: "betanet"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, resp = e.do(t, http.MethodGet, "/api/notifications?limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, resp.Data)
}

func TestConnectProviderUnavailable(t *testing.T) {
	e := newTestEnv(t, Options{})
	e.wallet.connectErr = wallet.ErrProviderUnavailable

	w, resp := e.do(t, http.MethodPost, "/api/wallet/connect", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "wallet provider unavailable", resp.Error)
}

func TestTransactionEndpoint(t *testing.T) {
	e := newTestEnv(t, Options{})

	body := map[string]any{
		"receiverId": "easy-proxy.near",
		"actions": []any{map[string]any{
			"type":   "FunctionCall",
			"params": map[string]any{"methodName": "nft_mint_proxy", "args": map[string]any{}, "gas": "1", "deposit": "0"},
		}},
	}

	w, resp := e.do(t, http.MethodPost, "/api/wallet/transactions", body)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "wallet not connected", resp.Error)

	_, _ = e.do(t, http.MethodPost, "/api/wallet/connect", nil)
	e.wallet.result = wallet.TransactionResult{Success: true, TransactionHash: "0xabc"}

	w, resp = e.do(t, http.MethodPost, "/api/wallet/transactions", body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0xabc", resp.Data.(map[string]any)["transactionHash"])

	w, _ = e.do(t, http.MethodPost, "/api/wallet/transactions", map[string]any{"receiverId": "x.near"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = e.do(t, http.MethodPost, "/api/wallet/transactions", map[string]any{"bogus": true})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMintEndpoint(t *testing.T) {
	e := newTestEnv(t, Options{})
	_, _ = e.do(t, http.MethodPost, "/api/wallet/connect", nil)
	e.wallet.result = wallet.TransactionResult{Success: true, TransactionHash: "0xabc", OutcomeID: "outc1"}

	w, resp := e.do(t, http.MethodPost, "/api/nft/mint", map[string]any{"title": "Sunset", "media": "https://x/a.png"})
	require.Equal(t, http.StatusOK, w.Code)
	data := resp.Data.(map[string]any)
	assert.Equal(t, "outc1", data["tokenId"])
	assert.Equal(t, "0.2", data["depositNear"])

	e.wallet.result = wallet.TransactionResult{Error: "User rejected", Err: wallet.ErrRemoteRequestFailed}
	w, _ = e.do(t, http.MethodPost, "/api/nft/mint", map[string]any{"title": "Sunset"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestPendingEndpoints(t *testing.T) {
	e := newTestEnv(t, Options{})

	w, _ := e.do(t, http.MethodGet, "/api/wallet/pending", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	e.pending.Pending(provider.PendingRequest{ID: "r1", Method: "near:signIn", Link: "https://t.me/herewalletbot/app?startapp=r1"})

	w, resp := e.do(t, http.MethodGet, "/api/wallet/pending", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "r1", resp.Data.(map[string]any)["id"])

	w, _ = e.do(t, http.MethodGet, "/api/wallet/pending/qr?size=128", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")))
}

func TestNetworksEndpoint(t *testing.T) {
	e := newTestEnv(t, Options{})

	w, resp := e.do(t, http.MethodGet, "/api/networks", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := resp.Data.(map[string]any)
	assert.Equal(t, "testnet", data["active"])
	assert.Len(t, data["networks"], 2)
}

func TestRateLimit(t *testing.T) {
	e := newTestEnv(t, Options{RateLimit: rate.Limit(0.001), RateBurst: 1})

	w, _ := e.do(t, http.MethodPost, "/api/wallet/disconnect", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, resp := e.do(t, http.MethodPost, "/api/wallet/disconnect", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "too many requests", resp.Error)

	// reads are not limited
	w, _ = e.do(t, http.MethodGet, "/api/wallet/state", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	e := newTestEnv(t, Options{})
	_, _ = e.do(t, http.MethodGet, "/api/wallet/state", nil)

	w, _ := e.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `near_bridge_http_requests_total{method="GET",path="/api/wallet/state",status="200"} 1`)
}
