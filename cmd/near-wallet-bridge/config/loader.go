package config

import (
	_ "embed"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/constants"
	"github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/dialect"
	"github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/networks"
	"github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/session"
	utilsconfig "github.com/quantumauth-io/quantum-go-utils/config"
)

//go:embed config.yaml
var EmbeddedConfigYAML []byte

type ClientSettings struct {
	LocalHost      string
	Port           string
	AllowedOrigins []string
}

type WalletSettings struct {
	ContractID     string
	MethodNames    []string
	WalletName     string
	DefaultNetwork string
}

// ProviderSettings configures how the wallet is reached. An empty URL leaves
// that transport out.
type ProviderSettings struct {
	ExtensionURL          string
	EmbeddedHostURL       string
	RelayURL              string
	Injected              bool
	PollIntervalMillis    int
	RequestTimeoutSeconds int

	// EmbeddedDialect names the request vocabulary used inside an embedded
	// host: "namespaced" (default) or "legacy".
	EmbeddedDialect string
}

type Config struct {
	ClientSettings *ClientSettings
	Wallet         *WalletSettings
	Providers      *ProviderSettings
	Session        *session.Config
	Networks       map[string]networks.NetworkConfig
}

func Load() (*Config, error) {
	home, _ := os.UserHomeDir()
	paths := []string{
		filepath.Join(home, ".config", constants.AppName),
		filepath.Join(home, "config"),
		".",
	}

	cfg, err := utilsconfig.ParseConfigWithEmbedded[Config](paths, EmbeddedConfigYAML)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides lets the environment replace provider endpoints and the
// session backend.
func (c *Config) ApplyEnvOverrides() error {
	c.ensureSections()

	raw := strings.TrimSpace(os.Getenv(constants.EnvFolderVar))
	switch strings.ToLower(raw) {
	case "", "prod", "production", "local", "dev", "develop", "development":
	default:
		return errors.Newf("invalid %s %q (allowed: local, develop, empty)", constants.EnvFolderVar, raw)
	}

	if v, ok := lookupEnv("NWB_EXTENSION_URL"); ok {
		c.Providers.ExtensionURL = v
	}
	if v, ok := lookupEnv("NWB_EMBEDDED_HOST_URL"); ok {
		c.Providers.EmbeddedHostURL = v
	}
	if v, ok := lookupEnv("NWB_RELAY_URL"); ok {
		c.Providers.RelayURL = v
	}
	if v, ok := lookupEnv("NWB_EMBEDDED_DIALECT"); ok {
		c.Providers.EmbeddedDialect = v
	}
	if v, ok := lookupEnv("NWB_SESSION_BACKEND"); ok {
		c.Session.Backend = v
	}
	if v, ok := lookupEnv("NWB_REDIS_ADDR"); ok {
		c.Session.Redis.Address = v
	}
	if v, ok := lookupEnv("NWB_PORT"); ok {
		if _, err := strconv.Atoi(v); err != nil {
			return errors.Newf("invalid NWB_PORT %q", v)
		}
		c.ClientSettings.Port = v
	}
	return nil
}

func lookupEnv(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func (c *Config) ensureSections() {
	if c.ClientSettings == nil {
		c.ClientSettings = &ClientSettings{}
	}
	if c.Wallet == nil {
		c.Wallet = &WalletSettings{}
	}
	if c.Providers == nil {
		c.Providers = &ProviderSettings{}
	}
	if c.Session == nil {
		c.Session = &session.Config{}
	}
}

// Normalize trims and validates every section and fills defaults.
func (c *Config) Normalize() error {
	c.ensureSections()

	c.NormalizeClientSettings()
	c.NormalizeWallet()
	if err := c.NormalizeProviders(); err != nil {
		return err
	}
	if err := c.NormalizeSession(); err != nil {
		return err
	}
	c.NormalizeNetworks()

	if _, ok := c.Networks[c.Wallet.DefaultNetwork]; !ok {
		return errors.Newf("Wallet.DefaultNetwork %q is not a configured network", c.Wallet.DefaultNetwork)
	}
	return nil
}

func (c *Config) NormalizeClientSettings() {
	cs := c.ClientSettings
	cs.LocalHost = strings.TrimSpace(cs.LocalHost)
	if cs.LocalHost == "" {
		cs.LocalHost = "127.0.0.1"
	}
	cs.Port = strings.TrimSpace(cs.Port)
	if cs.Port == "" {
		cs.Port = "6137"
	}

	origins := make([]string, 0, len(cs.AllowedOrigins))
	for _, o := range cs.AllowedOrigins {
		origins = append(origins, strings.TrimRight(strings.ToLower(strings.TrimSpace(o)), "/"))
	}
	cs.AllowedOrigins = uniqueStrings(origins)
}

func (c *Config) NormalizeWallet() {
	w := c.Wallet
	w.ContractID = strings.ToLower(strings.TrimSpace(w.ContractID))
	w.MethodNames = uniqueStrings(w.MethodNames)
	w.WalletName = strings.TrimSpace(w.WalletName)
	if w.WalletName == "" {
		w.WalletName = constants.WalletDisplayName
	}
	w.DefaultNetwork = strings.ToLower(strings.TrimSpace(w.DefaultNetwork))
	if w.DefaultNetwork == "" {
		w.DefaultNetwork = constants.DefaultNetwork
	}
}

func (c *Config) NormalizeProviders() error {
	p := c.Providers
	p.ExtensionURL = strings.TrimSpace(p.ExtensionURL)
	p.EmbeddedHostURL = strings.TrimSpace(p.EmbeddedHostURL)
	p.RelayURL = strings.TrimSpace(p.RelayURL)

	p.EmbeddedDialect = strings.ToLower(strings.TrimSpace(p.EmbeddedDialect))
	d, err := dialect.ByName(p.EmbeddedDialect)
	if err != nil {
		return errors.Wrap(err, "Providers.EmbeddedDialect")
	}
	p.EmbeddedDialect = d.Name

	if p.PollIntervalMillis <= 0 {
		p.PollIntervalMillis = 1500
	}
	if p.RequestTimeoutSeconds <= 0 {
		p.RequestTimeoutSeconds = 120
	}
	return nil
}

func (c *Config) NormalizeSession() error {
	s := c.Session
	s.Backend = strings.ToLower(strings.TrimSpace(s.Backend))
	if s.Backend == "" {
		s.Backend = session.BackendFile
	}
	switch s.Backend {
	case session.BackendFile, session.BackendBadger, session.BackendMemory:
	case session.BackendRedis:
		if strings.TrimSpace(s.Redis.Address) == "" {
			return errors.New("Session.Redis.Address is required for the redis backend")
		}
	default:
		return errors.Wrapf(session.ErrUnknownBackend, "%q", s.Backend)
	}
	s.Path = strings.TrimSpace(s.Path)
	return nil
}

// NormalizeNetworks lower-cases network keys and always keeps the public
// NEAR networks available.
func (c *Config) NormalizeNetworks() {
	out := networks.DefaultNetworks()
	for key, n := range c.Networks {
		k := strings.ToLower(strings.TrimSpace(key))
		if k == "" {
			continue
		}
		if strings.TrimSpace(n.Name) == "" {
			n.Name = k
		}
		out[k] = n
	}
	c.Networks = out
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		ss := strings.TrimSpace(s)
		if ss == "" {
			continue
		}
		if _, ok := seen[ss]; ok {
			continue
		}
		seen[ss] = struct{}{}
		out = append(out, ss)
	}
	return out
}
