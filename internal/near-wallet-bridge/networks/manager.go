// Package networks keeps the registry of selectable NEAR networks on disk.
package networks

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/constants"
	"github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/securefile"
	"github.com/quantumauth-io/quantum-go-utils/log"
)

var ErrNetworkExists = errors.New("network already exists")

type Manager struct {
	path string

	mu    sync.Mutex
	store Store
}

func NewManager() (*Manager, error) {
	path, err := securefile.ResolvePath(constants.AppName, constants.NetworksFile)
	if err != nil {
		return nil, err
	}
	return NewManagerAt(path), nil
}

// NewManagerAt uses path as the registry file.
func NewManagerAt(path string) *Manager {
	return &Manager{path: path, store: NewEmptyStore()}
}

func (m *Manager) Path() string { return m.path }

// AddNetwork fails on a duplicate name or network id.
func (m *Manager) AddNetwork(ctx context.Context, n NetworkConfig) (NetworkConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureLoadedIfExists(ctx); err != nil {
		return NetworkConfig{}, err
	}

	normalized, err := normalizeNetworkConfig(n)
	if err != nil {
		return NetworkConfig{}, err
	}

	if _, exists := m.store.Networks[normalized.Name]; exists {
		return NetworkConfig{}, errors.Wrapf(ErrNetworkExists, "name %s", normalized.Name)
	}
	if key, ok := m.findKeyByNetworkID(normalized.NetworkID); ok {
		return NetworkConfig{}, errors.Wrapf(ErrNetworkExists, "network id %s (name: %s)", normalized.NetworkID, key)
	}

	m.store.Networks[normalized.Name] = normalized
	if err := m.persist(ctx); err != nil {
		return NetworkConfig{}, err
	}
	return normalized, nil
}

func (m *Manager) RemoveNetwork(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureLoadedIfExists(ctx); err != nil {
		return err
	}
	key := normalizeNetworkKey(name)
	if _, ok := m.store.Networks[key]; !ok {
		return nil // idempotent
	}
	delete(m.store.Networks, key)
	return m.persist(ctx)
}

func (m *Manager) Load(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.load(ctx)
}

func (m *Manager) load(_ context.Context) error {
	s, err := securefile.ReadJSON[Store](m.path)
	if err != nil {
		return errors.Wrap(err, "read networks file")
	}
	if s.Schema == 0 {
		s.Schema = constants.SchemaV1
	}

	norm := NewEmptyStore()
	norm.Schema = s.Schema

	for key, n := range s.Networks {
		if strings.TrimSpace(n.Name) == "" {
			n.Name = key
		}
		normalized, err := normalizeNetworkConfig(n)
		if err != nil {
			log.Warn("skipping invalid network entry", "key", key, "error", err.Error())
			continue
		}
		norm.Networks[normalized.Name] = normalized
	}

	m.store = norm
	return nil
}

func (m *Manager) ensureLoadedIfExists(ctx context.Context) error {
	if len(m.store.Networks) > 0 {
		return nil
	}
	if securefile.Exists(m.path) {
		return m.load(ctx)
	}
	m.store = NewEmptyStore()
	return nil
}

func (m *Manager) persist(_ context.Context) error {
	if m.store.Schema == 0 {
		m.store.Schema = constants.SchemaV1
	}
	return errors.Wrap(
		securefile.WriteJSON(m.path, m.store, constants.FilePerm, constants.DirectoryPerm),
		"write networks file",
	)
}

// EnsureFromConfig merges defaults into the registry. Missing networks are
// added and blank fields are filled. Values already on disk are never
// overwritten.
func (m *Manager) EnsureFromConfig(ctx context.Context, defaults map[string]NetworkConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureLoadedIfExists(ctx); err != nil {
		return err
	}

	changed := !securefile.Exists(m.path)

	byNetworkID := map[string]string{}
	for key, n := range m.store.Networks {
		byNetworkID[n.NetworkID] = key
	}

	for nameKey, dn := range defaults {
		if strings.TrimSpace(dn.Name) == "" {
			dn.Name = nameKey
		}
		dnNorm, err := normalizeNetworkConfig(dn)
		if err != nil {
			log.Warn("skipping invalid configured network", "key", nameKey, "error", err.Error())
			continue
		}

		key, ok := dnNorm.Name, false
		if _, ok = m.store.Networks[key]; !ok {
			key, ok = byNetworkID[dnNorm.NetworkID]
		}
		if !ok {
			m.store.Networks[dnNorm.Name] = dnNorm
			byNetworkID[dnNorm.NetworkID] = dnNorm.Name
			changed = true
			continue
		}

		updated, filled := fillBlanks(m.store.Networks[key], dnNorm)
		if filled {
			m.store.Networks[key] = updated
			changed = true
		}
	}

	if changed {
		return m.persist(ctx)
	}
	return nil
}

func fillBlanks(existing, defaults NetworkConfig) (NetworkConfig, bool) {
	changed := false
	if existing.Explorer == "" && defaults.Explorer != "" {
		existing.Explorer = defaults.Explorer
		changed = true
	}
	if existing.WalletURL == "" && defaults.WalletURL != "" {
		existing.WalletURL = defaults.WalletURL
		changed = true
	}
	if len(existing.RPCs) == 0 && len(defaults.RPCs) > 0 {
		existing.RPCs = defaults.RPCs
		changed = true
	}
	return existing, changed
}

func (m *Manager) List(ctx context.Context) ([]NetworkConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureLoadedIfExists(ctx); err != nil {
		return nil, err
	}

	out := make([]NetworkConfig, 0, len(m.store.Networks))
	for _, n := range m.store.Networks {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (m *Manager) Find(ctx context.Context, name string) (NetworkConfig, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureLoadedIfExists(ctx); err != nil {
		return NetworkConfig{}, false, err
	}
	n, ok := m.store.Networks[normalizeNetworkKey(name)]
	return n, ok, nil
}

// Has reports whether name is registered. Registry read errors count as
// absent.
func (m *Manager) Has(name string) bool {
	_, ok, err := m.Find(context.Background(), name)
	if err != nil {
		log.Warn("network lookup failed", "name", name, "error", err.Error())
		return false
	}
	return ok
}

func (m *Manager) findKeyByNetworkID(networkID string) (string, bool) {
	id := normalizeNetworkKey(networkID)
	if id == "" {
		return "", false
	}
	for k, n := range m.store.Networks {
		if n.NetworkID == id {
			return k, true
		}
	}
	return "", false
}

func normalizeNetworkKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func normalizeRPCs(in []RPC) []RPC {
	out := make([]RPC, 0, len(in))
	seen := map[string]struct{}{} // by url
	for _, r := range in {
		url := strings.TrimSpace(r.URL)
		if url == "" {
			continue
		}
		key := strings.ToLower(url)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, RPC{Name: strings.TrimSpace(r.Name), URL: url})
	}
	return out
}

func normalizeNetworkConfig(n NetworkConfig) (NetworkConfig, error) {
	n.Name = normalizeNetworkKey(n.Name)
	n.NetworkID = normalizeNetworkKey(n.NetworkID)
	n.Explorer = strings.TrimSpace(n.Explorer)
	n.WalletURL = strings.TrimSpace(n.WalletURL)
	n.RPCs = normalizeRPCs(n.RPCs)

	if n.Name == "" {
		return NetworkConfig{}, errors.New("network.name is required")
	}
	if n.NetworkID == "" {
		n.NetworkID = n.Name
	}
	return n, nil
}
