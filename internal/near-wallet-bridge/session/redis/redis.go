// Package redis stores session entries in Redis. Multi-key writes run inside
// MULTI/EXEC so readers never observe half a session.
package redis

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/quantumauth-io/quantum-go-utils/log"
	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "nwb:session:"

var ErrClosed = errors.New("redis store is closed")

type Config struct {
	Address  string
	Password string
	DB       int
	// KeyPrefix namespaces every key. Defaults to "nwb:session:".
	KeyPrefix string
}

type KV struct {
	client    *redis.Client
	keyPrefix string
	mu        sync.RWMutex
	closed    bool
}

func Open(ctx context.Context, cfg Config) (*KV, error) {
	if cfg.Address == "" {
		return nil, errors.New("redis address cannot be empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "connect to redis at %s", cfg.Address)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}

	log.Info("redis session store opened", "address", cfg.Address, "db", cfg.DB, "key_prefix", prefix)
	return &KV{client: client, keyPrefix: prefix}, nil
}

func (r *KV) prefixKey(key string) string {
	return r.keyPrefix + key
}

func (r *KV) Get(ctx context.Context, keys ...string) (map[string]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, ErrClosed
	}
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = r.prefixKey(k)
	}
	values, err := r.client.MGet(ctx, prefixed...).Result()
	if err != nil {
		return nil, errors.Wrap(err, "mget session keys")
	}
	for i, v := range values {
		// MGET yields nil for absent keys.
		if s, ok := v.(string); ok {
			out[keys[i]] = s
		}
	}
	return out, nil
}

func (r *KV) Put(ctx context.Context, entries map[string]string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return ErrClosed
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for k, v := range entries {
			pipe.Set(ctx, r.prefixKey(k), v, 0)
		}
		return nil
	})
	return errors.Wrap(err, "write session keys")
}

func (r *KV) Delete(ctx context.Context, keys ...string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return ErrClosed
	}
	if len(keys) == 0 {
		return nil
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, k := range keys {
			pipe.Del(ctx, r.prefixKey(k))
		}
		return nil
	})
	return errors.Wrap(err, "delete session keys")
}

func (r *KV) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	return r.client.Close()
}
