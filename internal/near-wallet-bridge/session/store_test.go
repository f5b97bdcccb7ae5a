package session

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/constants"
	"github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/session/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingKV struct {
	getErr, putErr, delErr error
	deletes                int
}

func (f *failingKV) Get(context.Context, ...string) (map[string]string, error) {
	return nil, f.getErr
}

func (f *failingKV) Put(context.Context, map[string]string) error { return f.putErr }

func (f *failingKV) Delete(context.Context, ...string) error {
	f.deletes++
	return f.delErr
}

func (f *failingKV) Close() error { return nil }

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewStore(memory.New())

	assert.Equal(t, Session{}, store.Load(ctx))

	want := Session{Connected: true, AccountID: "alice.near"}
	require.NoError(t, store.Save(ctx, want))
	assert.Equal(t, want, store.Load(ctx))

	require.NoError(t, store.Save(ctx, Session{}))
	assert.Equal(t, Session{}, store.Load(ctx))
}

func TestStoreRejectsInvalidSession(t *testing.T) {
	ctx := context.Background()
	kv := memory.New()
	store := NewStore(kv)

	err := store.Save(ctx, Session{Connected: true})
	require.ErrorIs(t, err, ErrInvalidSession)

	err = store.Save(ctx, Session{AccountID: "alice.near"})
	require.ErrorIs(t, err, ErrInvalidSession)

	vals, err := kv.Get(ctx, constants.StorageKeyConnected, constants.StorageKeyAccountID)
	require.NoError(t, err)
	assert.Empty(t, vals, "invalid session must not write anything")
}

func TestStoreLoadIsFailSafe(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		entries map[string]string
	}{
		{name: "flag without account", entries: map[string]string{constants.StorageKeyConnected: "true"}},
		{name: "account without flag", entries: map[string]string{constants.StorageKeyAccountID: "alice.near"}},
		{name: "flag not true", entries: map[string]string{constants.StorageKeyConnected: "yes", constants.StorageKeyAccountID: "alice.near"}},
		{name: "empty account", entries: map[string]string{constants.StorageKeyConnected: "true", constants.StorageKeyAccountID: ""}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			kv := memory.New()
			require.NoError(t, kv.Put(ctx, tc.entries))
			assert.Equal(t, Session{}, NewStore(kv).Load(ctx))
		})
	}

	t.Run("backend error", func(t *testing.T) {
		store := NewStore(&failingKV{getErr: errors.New("disk on fire")})
		assert.Equal(t, Session{}, store.Load(ctx))
	})
}

func TestStoreClearIsIdempotentAndNeverFails(t *testing.T) {
	ctx := context.Background()
	store := NewStore(memory.New())

	store.Clear(ctx)
	require.NoError(t, store.Save(ctx, Session{Connected: true, AccountID: "bob.near"}))
	store.Clear(ctx)
	store.Clear(ctx)
	assert.Equal(t, Session{}, store.Load(ctx))

	broken := &failingKV{delErr: errors.New("read-only filesystem")}
	NewStore(broken).Clear(ctx)
	assert.Equal(t, 1, broken.deletes)
}

func TestStoreSavePropagatesBackendError(t *testing.T) {
	store := NewStore(&failingKV{putErr: errors.New("quota exceeded")})
	err := store.Save(context.Background(), Session{Connected: true, AccountID: "alice.near"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestOpenBackends(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	for _, cfg := range []Config{
		{Backend: BackendMemory},
		{Backend: BackendFile, Path: filepath.Join(dir, "session.json")},
		{Backend: "", Path: filepath.Join(dir, "default.json")},
		{Backend: "Badger", Path: filepath.Join(dir, "session.db")},
	} {
		t.Run(cfg.Backend, func(t *testing.T) {
			kv, err := Open(ctx, cfg)
			require.NoError(t, err)
			defer func() { require.NoError(t, kv.Close()) }()

			store := NewStore(kv)
			require.NoError(t, store.Save(ctx, Session{Connected: true, AccountID: "dave.near"}))
			assert.Equal(t, Session{Connected: true, AccountID: "dave.near"}, store.Load(ctx))
		})
	}

	_, err := Open(ctx, Config{Backend: "etcd"})
	require.ErrorIs(t, err, ErrUnknownBackend)
}
