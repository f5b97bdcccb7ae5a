package wallet

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/provider"
	"github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/session"
	"github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/session/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithKindVisibleToBothErrorPackages(t *testing.T) {
	cause := errors.New("socket closed")
	err := errors.Wrap(WithKind(ErrRemoteRequestFailed, cause), "near:signOut")

	assert.True(t, stderrors.Is(err, ErrRemoteRequestFailed))
	assert.True(t, stderrors.Is(err, cause))
	assert.True(t, errors.Is(err, ErrRemoteRequestFailed))
	assert.True(t, errors.Is(err, cause))
	assert.False(t, stderrors.Is(err, ErrConnectFailed))
	assert.Equal(t, "near:signOut: wallet request failed: socket closed", err.Error())

	assert.NoError(t, WithKind(ErrConnectFailed, nil))
}

func TestConnectFailureKindWithStdlibErrors(t *testing.T) {
	ctx := context.Background()
	p := newFakeProvider()
	p.errs["near:signIn"] = &provider.RequestFailedError{Method: "near:signIn", Code: 4001, Message: "User rejected"}

	b := NewBridge(ctx, session.NewStore(memory.New()), WithHost(extensionHost(p)))
	_, err := b.Connect(ctx)
	require.Error(t, err)

	assert.True(t, stderrors.Is(err, ErrConnectFailed))
	var rf *provider.RequestFailedError
	require.True(t, stderrors.As(err, &rf))
	assert.Equal(t, 4001, rf.Code)
}

func TestSignAndSendFailureKindWithStdlibErrors(t *testing.T) {
	ctx := context.Background()
	p := newFakeProvider()
	p.errs["near:signAndSendTransactions"] = errors.New("network down")
	p.responses["near:signAndSendTransactions"] = json.RawMessage(`{}`)

	b := NewBridge(ctx, connectedStore(t, "alice.testnet"), WithHost(extensionHost(p)))
	res := b.SignAndSendTransaction(ctx, mintRequest())

	assert.False(t, res.Success)
	assert.True(t, stderrors.Is(res.Err, ErrRemoteRequestFailed))
}
