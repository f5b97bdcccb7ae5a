package session

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/constants"
	"github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/securefile"
	sessionbadger "github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/session/badger"
	sessionfile "github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/session/file"
	"github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/session/memory"
	sessionredis "github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/session/redis"
)

const (
	BackendFile   = "file"
	BackendBadger = "badger"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

var ErrUnknownBackend = errors.New("unknown session backend")

type RedisConfig struct {
	Address   string
	Password  string
	DB        int
	KeyPrefix string
}

type Config struct {
	Backend string
	// Path is the session file (file backend) or database directory (badger).
	// Empty selects the default location under the user config directory.
	Path  string
	Redis RedisConfig
}

// Open builds the KV backend named by cfg.Backend. An empty name selects the
// file backend.
func Open(ctx context.Context, cfg Config) (KV, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if backend == "" {
		backend = BackendFile
	}

	switch backend {
	case BackendMemory:
		return memory.New(), nil

	case BackendFile:
		path, err := defaultPath(cfg.Path, constants.SessionFile)
		if err != nil {
			return nil, err
		}
		kv, err := sessionfile.Open(path)
		if err != nil {
			return nil, err
		}
		return kv, nil

	case BackendBadger:
		path, err := defaultPath(cfg.Path, constants.SessionDB)
		if err != nil {
			return nil, err
		}
		kv, err := sessionbadger.Open(sessionbadger.Config{Path: path})
		if err != nil {
			return nil, err
		}
		return kv, nil

	case BackendRedis:
		kv, err := sessionredis.Open(ctx, sessionredis.Config{
			Address:   cfg.Redis.Address,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return nil, err
		}
		return kv, nil

	default:
		return nil, errors.Wrapf(ErrUnknownBackend, "%q", cfg.Backend)
	}
}

func defaultPath(configured, name string) (string, error) {
	if p := strings.TrimSpace(configured); p != "" {
		return filepath.Clean(p), nil
	}
	return securefile.ResolvePath(constants.AppName, name)
}
