package networks

import (
	"encoding/json"

	"github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/constants"
)

type RPC struct {
	Name string `json:"name" mapstructure:"name"`
	URL  string `json:"url" mapstructure:"url"`
}

// NetworkConfig describes one NEAR network. NetworkID is the chain id the
// RPC reports from "status", for example "mainnet".
type NetworkConfig struct {
	Name      string `json:"name" mapstructure:"name"`
	NetworkID string `json:"networkId" mapstructure:"networkid"`
	RPCs      []RPC  `json:"rpcs" mapstructure:"rpcs"`
	Explorer  string `json:"explorer" mapstructure:"explorer"`
	WalletURL string `json:"walletUrl,omitempty" mapstructure:"walleturl"`
}

type AllNetworksConfig struct {
	Networks      map[string]NetworkConfig `json:"networks" mapstructure:"networks"`
	ActiveNetwork string                   `json:"activeNetwork" mapstructure:"activenetwork"`
}

type Store struct {
	Schema   int                      `json:"schema"`
	Networks map[string]NetworkConfig `json:"networks"` // key = normalized name
}

// NodeStatus is what a NEAR RPC node reports about itself.
type NodeStatus struct {
	RPCURL            string `json:"rpcUrl"`
	ChainID           string `json:"chainId"`
	LatestBlockHeight uint64 `json:"latestBlockHeight"`
	Version           string `json:"version,omitempty"`
}

type rpcReq struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type rpcResp struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *struct {
		Code    int             `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data,omitempty"`
	} `json:"error,omitempty"`
}

type statusResult struct {
	ChainID  string `json:"chain_id"`
	SyncInfo struct {
		LatestBlockHeight uint64 `json:"latest_block_height"`
	} `json:"sync_info"`
	Version struct {
		Version string `json:"version"`
	} `json:"version"`
}

func NewEmptyStore() Store {
	return Store{
		Schema:   constants.SchemaV1,
		Networks: map[string]NetworkConfig{},
	}
}

// DefaultNetworks returns the public NEAR networks.
func DefaultNetworks() map[string]NetworkConfig {
	return map[string]NetworkConfig{
		constants.NetworkMainnet: {
			Name:      constants.NetworkMainnet,
			NetworkID: "mainnet",
			RPCs:      []RPC{{Name: "NEAR", URL: "https://rpc.mainnet.near.org"}},
			Explorer:  "https://nearblocks.io",
		},
		constants.NetworkTestnet: {
			Name:      constants.NetworkTestnet,
			NetworkID: "testnet",
			RPCs:      []RPC{{Name: "NEAR", URL: "https://rpc.testnet.near.org"}},
			Explorer:  "https://testnet.nearblocks.io",
		},
	}
}
