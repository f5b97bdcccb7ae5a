// Package session persists whether a wallet is connected and which account
// it is connected as.
//
// The persisted form is exactly two string entries. Both are written or
// removed together, and anything unexpected reads back as "not connected".
package session

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/constants"
	"github.com/quantumauth-io/quantum-go-utils/log"
)

var ErrInvalidSession = errors.New("connected session requires an account id")

var sessionKeys = []string{constants.StorageKeyConnected, constants.StorageKeyAccountID}

type Session struct {
	Connected bool   `json:"connected"`
	AccountID string `json:"accountId,omitempty"`
}

// Valid reports whether Connected and a non-empty AccountID agree.
func (s Session) Valid() bool {
	return s.Connected == (s.AccountID != "")
}

// KV is a string key-value backend. Put and Delete apply to all given keys
// atomically. Get omits keys that are absent.
type KV interface {
	Get(ctx context.Context, keys ...string) (map[string]string, error)
	Put(ctx context.Context, entries map[string]string) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

type Store struct {
	kv KV
}

func NewStore(kv KV) *Store {
	return &Store{kv: kv}
}

// Load returns the persisted session. It never fails: backend errors and
// partial or malformed records all read as the empty session.
func (s *Store) Load(ctx context.Context) Session {
	vals, err := s.kv.Get(ctx, sessionKeys...)
	if err != nil {
		log.Warn("session load failed, treating as disconnected", "error", err.Error())
		return Session{}
	}

	connected := vals[constants.StorageKeyConnected]
	accountID := vals[constants.StorageKeyAccountID]

	if connected != constants.StorageConnected || accountID == "" {
		if connected != "" || accountID != "" {
			log.Warn("ignoring inconsistent session record",
				"connected", connected,
				"has_account", accountID != "",
			)
		}
		return Session{}
	}
	return Session{Connected: true, AccountID: accountID}
}

// Save persists sess. Saving a disconnected session removes the record.
func (s *Store) Save(ctx context.Context, sess Session) error {
	if !sess.Valid() {
		return ErrInvalidSession
	}
	if !sess.Connected {
		return errors.Wrap(s.kv.Delete(ctx, sessionKeys...), "clear session")
	}
	err := s.kv.Put(ctx, map[string]string{
		constants.StorageKeyConnected: constants.StorageConnected,
		constants.StorageKeyAccountID: sess.AccountID,
	})
	return errors.Wrap(err, "save session")
}

// Clear removes the record. It is idempotent and reports backend failures
// only through the log.
func (s *Store) Clear(ctx context.Context) {
	if err := s.kv.Delete(ctx, sessionKeys...); err != nil {
		log.Error("session clear failed", "error", err)
	}
}

func (s *Store) Close() error {
	return s.kv.Close()
}
