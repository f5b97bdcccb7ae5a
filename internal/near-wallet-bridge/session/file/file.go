// Package file stores session entries as one small JSON document that is
// replaced atomically on every write.
package file

import (
	"context"
	"os"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/constants"
	"github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/securefile"
	"github.com/quantumauth-io/quantum-go-utils/log"
)

var ErrClosed = errors.New("file store is closed")

type document struct {
	Schema  int               `json:"schema"`
	Entries map[string]string `json:"entries"`
}

type KV struct {
	path   string
	mu     sync.Mutex
	closed bool
}

// Open returns a store backed by path. The file is created on first write.
func Open(path string) (*KV, error) {
	if path == "" {
		return nil, errors.New("session file path is empty")
	}
	return &KV{path: path}, nil
}

func (f *KV) Path() string { return f.path }

func (f *KV) Get(_ context.Context, keys ...string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, ErrClosed
	}
	entries, err := f.read()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := entries[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (f *KV) Put(_ context.Context, entries map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrClosed
	}
	current := f.readForWrite()
	for k, v := range entries {
		current[k] = v
	}
	return f.write(current)
}

func (f *KV) Delete(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrClosed
	}
	if !securefile.Exists(f.path) {
		return nil
	}
	current := f.readForWrite()
	for _, k := range keys {
		delete(current, k)
	}
	return f.write(current)
}

func (f *KV) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// read treats a missing file as empty.
func (f *KV) read() (map[string]string, error) {
	doc, err := securefile.ReadJSON[document](f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, errors.Wrapf(err, "read session file %s", f.path)
	}
	if doc.Entries == nil {
		doc.Entries = map[string]string{}
	}
	return doc.Entries, nil
}

// readForWrite replaces an unreadable document instead of failing the write.
func (f *KV) readForWrite() map[string]string {
	entries, err := f.read()
	if err != nil {
		log.Warn("replacing unreadable session file", "path", f.path, "error", err.Error())
		return map[string]string{}
	}
	return entries
}

func (f *KV) write(entries map[string]string) error {
	doc := document{Schema: constants.SchemaV1, Entries: entries}
	if err := securefile.WriteJSON(f.path, doc, constants.FilePerm, constants.DirectoryPerm); err != nil {
		return errors.Wrapf(err, "write session file %s", f.path)
	}
	return nil
}
