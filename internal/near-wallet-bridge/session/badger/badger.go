// Package badger stores session entries in an embedded Badger database.
// Multi-key writes run in a single transaction.
package badger

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/errors"
	badgerdb "github.com/dgraph-io/badger/v3"
	"github.com/quantumauth-io/quantum-go-utils/log"
)

const (
	keyPrefix            = "session:"
	keySchemaVersion     = "metadata:schema_version"
	currentSchemaVersion = "v1"
)

var ErrClosed = errors.New("badger store is closed")

type Config struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path     string
	InMemory bool
}

type KV struct {
	db     *badgerdb.DB
	mu     sync.RWMutex
	closed bool
}

func Open(cfg Config) (*KV, error) {
	var opts badgerdb.Options
	if cfg.InMemory {
		opts = badgerdb.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("badger path is empty")
		}
		absPath, err := filepath.Abs(cfg.Path)
		if err != nil {
			return nil, errors.Wrap(err, "resolve badger path")
		}
		opts = badgerdb.DefaultOptions(absPath)
		opts.SyncWrites = true
	}
	opts.Logger = &badgerLoggerAdapter{}
	opts.NumVersionsToKeep = 1

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "open badger database at %q", cfg.Path)
	}

	kv := &KV{db: db}
	if err := kv.initSchema(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "initialize schema")
	}

	log.Info("badger session store opened", "path", cfg.Path, "in_memory", cfg.InMemory)
	return kv, nil
}

func (b *KV) initSchema() error {
	return b.db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(keySchemaVersion))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return txn.Set([]byte(keySchemaVersion), []byte(currentSchemaVersion))
		}
		if err != nil {
			return errors.Wrap(err, "read schema version")
		}

		existing, err := item.ValueCopy(nil)
		if err != nil {
			return errors.Wrap(err, "read schema version value")
		}
		if string(existing) != currentSchemaVersion {
			return errors.Newf("unsupported schema version: %s (expected: %s)", existing, currentSchemaVersion)
		}
		return nil
	})
}

func (b *KV) Get(_ context.Context, keys ...string) (map[string]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, ErrClosed
	}

	out := make(map[string]string, len(keys))
	err := b.db.View(func(txn *badgerdb.Txn) error {
		for _, k := range keys {
			item, err := txn.Get([]byte(keyPrefix + k))
			if errors.Is(err, badgerdb.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return errors.Wrapf(err, "get %s", k)
			}
			val, err := item.ValueCopy(nil)
			if err != nil {
				return errors.Wrapf(err, "read %s", k)
			}
			out[k] = string(val)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (b *KV) Put(_ context.Context, entries map[string]string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrClosed
	}
	return b.db.Update(func(txn *badgerdb.Txn) error {
		for k, v := range entries {
			if err := txn.Set([]byte(keyPrefix+k), []byte(v)); err != nil {
				return errors.Wrapf(err, "set %s", k)
			}
		}
		return nil
	})
}

func (b *KV) Delete(_ context.Context, keys ...string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrClosed
	}
	return b.db.Update(func(txn *badgerdb.Txn) error {
		for _, k := range keys {
			if err := txn.Delete([]byte(keyPrefix + k)); err != nil {
				return errors.Wrapf(err, "delete %s", k)
			}
		}
		return nil
	})
}

func (b *KV) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	return b.db.Close()
}
