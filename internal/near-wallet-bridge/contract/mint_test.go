package contract

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/wallet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signerFunc func(ctx context.Context, req wallet.TransactionRequest) wallet.TransactionResult

func (f signerFunc) SignAndSendTransaction(ctx context.Context, req wallet.TransactionRequest) wallet.TransactionResult {
	return f(ctx, req)
}

func TestBuildMintTransaction(t *testing.T) {
	req := BuildMintTransaction(MintMetadata{
		Title:       " Sunset ",
		Description: "A photo",
		Media:       "  https://example.com/a.png\n",
		Reference:   " https://example.com/a.json ",
	})

	require.NoError(t, req.Validate())
	b, err := json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"receiverId": "easy-proxy.near",
		"actions": [{
			"type": "FunctionCall",
			"params": {
				"methodName": "nft_mint_proxy",
				"args": {"token_metadata": {
					"title": "Sunset",
					"description": "A photo",
					"media": "https://example.com/a.png",
					"reference": "https://example.com/a.json"
				}},
				"gas": "300000000000000",
				"deposit": "200000000000000000000000"
			}
		}]
	}`, string(b))
}

func TestExtractResult(t *testing.T) {
	out, err := ExtractResult(wallet.TransactionResult{Success: true, TransactionHash: "0xabc", OutcomeID: "outc1"})
	require.NoError(t, err)
	assert.Equal(t, MintResult{TokenID: "outc1", TransactionHash: "0xabc"}, out)

	out, err = ExtractResult(wallet.TransactionResult{Success: true, TransactionHash: "0xabc"})
	require.NoError(t, err)
	assert.Equal(t, "0xabc", out.TokenID)

	_, err = ExtractResult(wallet.TransactionResult{Success: true})
	require.ErrorIs(t, err, wallet.ErrMalformedResult)

	_, err = ExtractResult(wallet.TransactionResult{Success: false, Err: wallet.ErrNotConnected, Error: "wallet not connected"})
	require.ErrorIs(t, err, wallet.ErrNotConnected)
}

func TestMintSuccess(t *testing.T) {
	var got wallet.TransactionRequest
	signer := signerFunc(func(_ context.Context, req wallet.TransactionRequest) wallet.TransactionResult {
		got = req
		return wallet.TransactionResult{Success: true, TransactionHash: "0xabc", OutcomeID: "outc1"}
	})

	out, err := Mint(context.Background(), signer, MintMetadata{Title: "t"})
	require.NoError(t, err)
	assert.Equal(t, "outc1", out.TokenID)
	assert.Equal(t, MintReceiverID, got.ReceiverID)
}

func TestMintCancellation(t *testing.T) {
	for _, msg := range []string{"User rejected the request", "Transaction cancelled", "user cancelled"} {
		t.Run(msg, func(t *testing.T) {
			signer := signerFunc(func(context.Context, wallet.TransactionRequest) wallet.TransactionResult {
				return wallet.TransactionResult{
					Error: msg,
					Err:   wallet.WithKind(wallet.ErrRemoteRequestFailed, errors.New(msg)),
				}
			})

			_, err := Mint(context.Background(), signer, MintMetadata{Title: "t"})
			require.ErrorIs(t, err, ErrTransactionCancelled)
			require.ErrorIs(t, err, wallet.ErrRemoteRequestFailed)
		})
	}
}

func TestMintFailure(t *testing.T) {
	signer := signerFunc(func(context.Context, wallet.TransactionRequest) wallet.TransactionResult {
		return wallet.TransactionResult{Error: "wallet not connected", Err: wallet.ErrNotConnected}
	})

	_, err := Mint(context.Background(), signer, MintMetadata{Title: "t"})
	require.ErrorIs(t, err, wallet.ErrNotConnected)
	assert.False(t, errors.Is(err, ErrTransactionCancelled))
}
