package memory

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
)

var ErrClosed = errors.New("memory store is closed")

// KV keeps entries in process memory. Useful for tests and for hosts with
// no durable storage.
type KV struct {
	mu     sync.RWMutex
	data   map[string]string
	closed bool
}

func New() *KV {
	return &KV{data: make(map[string]string)}
}

func (m *KV) Get(_ context.Context, keys ...string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := m.data[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (m *KV) Put(_ context.Context, entries map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	for k, v := range entries {
		m.data[k] = v
	}
	return nil
}

func (m *KV) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *KV) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
