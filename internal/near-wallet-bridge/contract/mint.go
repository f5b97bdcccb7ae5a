// Package contract builds the NFT mint call and interprets its result.
package contract

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/wallet"
	"github.com/quantumauth-io/quantum-go-utils/log"
)

const (
	MintReceiverID = "easy-proxy.near"
	MintMethod     = "nft_mint_proxy"
	// MintGas is 300 TGas.
	MintGas = "300000000000000"
	// MintDeposit is 0.2 NEAR in yoctoNEAR.
	MintDeposit = "200000000000000000000000"
)

var ErrTransactionCancelled = errors.New("transaction was cancelled by user")

var cancelMarkers = []string{"user rejected", "user cancelled", "cancelled"}

// Signer submits a transaction to the wallet. *wallet.Bridge implements it.
type Signer interface {
	SignAndSendTransaction(ctx context.Context, req wallet.TransactionRequest) wallet.TransactionResult
}

type MintMetadata struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Media       string `json:"media"`
	Reference   string `json:"reference"`
}

func (m MintMetadata) trimmed() MintMetadata {
	return MintMetadata{
		Title:       strings.TrimSpace(m.Title),
		Description: strings.TrimSpace(m.Description),
		Media:       strings.TrimSpace(m.Media),
		Reference:   strings.TrimSpace(m.Reference),
	}
}

type MintResult struct {
	TokenID         string `json:"tokenId"`
	TransactionHash string `json:"transactionHash"`
}

// BuildMintTransaction returns the single function call that mints m through
// the proxy contract.
func BuildMintTransaction(m MintMetadata) wallet.TransactionRequest {
	m = m.trimmed()
	args := map[string]any{
		"token_metadata": map[string]any{
			"title":       m.Title,
			"description": m.Description,
			"media":       m.Media,
			"reference":   m.Reference,
		},
	}
	return wallet.TransactionRequest{
		ReceiverID: MintReceiverID,
		Actions: []wallet.Action{
			wallet.NewFunctionCall(MintMethod, args, MintGas, MintDeposit),
		},
	}
}

// ExtractResult turns a sign-and-send result into a mint result. The token id
// is the outcome id when present and the transaction hash otherwise.
func ExtractResult(res wallet.TransactionResult) (MintResult, error) {
	if !res.Success {
		if res.Err != nil {
			return MintResult{}, res.Err
		}
		return MintResult{}, errors.Newf("mint failed: %s", res.Error)
	}

	tokenID := res.OutcomeID
	if tokenID == "" {
		tokenID = res.TransactionHash
	}
	if tokenID == "" {
		return MintResult{}, errors.Wrap(wallet.ErrMalformedResult, "mint result has no identifier")
	}
	return MintResult{TokenID: tokenID, TransactionHash: res.TransactionHash}, nil
}

// Mint builds, signs and sends the mint call. A user cancellation is reported
// as ErrTransactionCancelled.
func Mint(ctx context.Context, signer Signer, m MintMetadata) (MintResult, error) {
	req := BuildMintTransaction(m)
	res := signer.SignAndSendTransaction(ctx, req)

	out, err := ExtractResult(res)
	if err != nil {
		if isCancellation(res.Error) || isCancellation(err.Error()) {
			log.Info("mint cancelled by user", "title", strings.TrimSpace(m.Title))
			return MintResult{}, wallet.WithKind(ErrTransactionCancelled, errors.Wrap(err, "mint"))
		}
		log.Error("mint failed", "error", err.Error())
		return MintResult{}, errors.Wrap(err, "mint")
	}

	log.Info("nft minted", "token_id", out.TokenID, "transaction_hash", out.TransactionHash)
	return out, nil
}

func isCancellation(msg string) bool {
	msg = strings.ToLower(msg)
	for _, marker := range cancelMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
