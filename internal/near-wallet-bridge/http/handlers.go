package http

import (
	"net/http"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/contract"
	"github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/provider"
	"github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/wallet"
)

var (
	errNoPending     = errors.New("no pending wallet request")
	errNotConfigured = errors.New("not configured")
)

func (s *Server) handleHealth(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// GET /api/wallet/state
func (s *Server) handleState(c *gin.Context) {
	respondOK(c, s.deps.UI.Refresh(c.Request.Context()))
}

// GET /api/wallet/status
func (s *Server) handleStatus(c *gin.Context) {
	sess := s.deps.Bridge.GetStatus(c.Request.Context())
	respondOK(c, statusResp{
		Connected:   sess.Connected,
		AccountID:   sess.AccountID,
		State:       s.deps.Bridge.State().String(),
		Environment: s.deps.Bridge.Environment().String(),
	})
}

// POST /api/wallet/connect
func (s *Server) handleConnect(c *gin.Context) {
	if err := s.deps.UI.Connect(c.Request.Context()); err != nil {
		respondError(c, statusFor(err), err, s.deps.UI.Snapshot())
		return
	}
	respondOK(c, s.deps.UI.Snapshot())
}

// POST /api/wallet/disconnect
func (s *Server) handleDisconnect(c *gin.Context) {
	s.deps.UI.Disconnect(c.Request.Context())
	respondOK(c, s.deps.UI.Snapshot())
}

// POST /api/wallet/network
func (s *Server) handleSetNetwork(c *gin.Context) {
	var req setNetworkReq
	if err := readJSONBody(c.Request, &req); err != nil {
		respondError(c, http.StatusBadRequest, errors.Wrap(err, "invalid json"), nil)
		return
	}
	if err := s.deps.UI.SetNetwork(c.Request.Context(), req.Network); err != nil {
		respondError(c, statusFor(err), err, s.deps.UI.Snapshot())
		return
	}
	respondOK(c, s.deps.UI.Snapshot())
}

// POST /api/wallet/transactions
func (s *Server) handleTransaction(c *gin.Context) {
	var req wallet.TransactionRequest
	if err := readJSONBody(c.Request, &req); err != nil {
		respondError(c, http.StatusBadRequest, errors.Wrap(err, "invalid json"), nil)
		return
	}
	if err := req.Validate(); err != nil {
		respondError(c, http.StatusBadRequest, err, nil)
		return
	}

	res, err := s.deps.UI.SignAndSendTransaction(c.Request.Context(), req)
	if err != nil {
		respondError(c, statusFor(err), err, res)
		return
	}
	respondOK(c, res)
}

// POST /api/nft/mint
func (s *Server) handleMint(c *gin.Context) {
	var req contract.MintMetadata
	if err := readJSONBody(c.Request, &req); err != nil {
		respondError(c, http.StatusBadRequest, errors.Wrap(err, "invalid json"), nil)
		return
	}

	out, err := s.deps.UI.Mint(c.Request.Context(), req)
	if err != nil {
		respondError(c, statusFor(err), err, nil)
		return
	}
	respondOK(c, mintResp{MintResult: out, DepositNEAR: contract.DepositNEAR()})
}

// GET /api/notifications?limit=N
func (s *Server) handleNotifications(c *gin.Context) {
	if s.deps.Notifications == nil {
		respondOK(c, []any{})
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	respondOK(c, s.deps.Notifications.List(limit))
}

// GET /api/wallet/pending
func (s *Server) handlePending(c *gin.Context) {
	req, ok := s.latestPending()
	if !ok {
		respondError(c, http.StatusNotFound, errNoPending, nil)
		return
	}
	respondOK(c, req)
}

// GET /api/wallet/pending/qr?size=N
func (s *Server) handlePendingQR(c *gin.Context) {
	req, ok := s.latestPending()
	if !ok || req.Link == "" {
		respondError(c, http.StatusNotFound, errNoPending, nil)
		return
	}
	size, _ := strconv.Atoi(c.Query("size"))
	if size > 1024 {
		size = 1024
	}

	png, err := provider.QRCodePNG(req.Link, size)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err, nil)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func (s *Server) latestPending() (provider.PendingRequest, bool) {
	if s.deps.Pending == nil {
		return provider.PendingRequest{}, false
	}
	return s.deps.Pending.Latest()
}

// GET /api/networks
func (s *Server) handleNetworks(c *gin.Context) {
	if s.deps.Networks == nil {
		respondError(c, http.StatusNotFound, errors.Wrap(errNotConfigured, "networks"), nil)
		return
	}
	list, err := s.deps.Networks.List(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, err, nil)
		return
	}
	respondOK(c, gin.H{
		"networks": list,
		"active":   s.deps.UI.Snapshot().Network,
	})
}
