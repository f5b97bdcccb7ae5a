package constants

const (
	AppName      = "near-wallet-bridge"
	SessionFile  = "session.json"
	SessionDB    = "session.db"
	NetworksFile = "networks.json"

	SchemaV1      = 1
	FilePerm      = 0o600
	DirectoryPerm = 0o700

	// Session keys. A session is exactly these two entries.
	StorageKeyConnected = "wallet_connected"
	StorageKeyAccountID = "wallet_account_id"
	StorageConnected    = "true"

	WalletDisplayName = "HOT Wallet"

	NetworkMainnet = "mainnet"
	NetworkTestnet = "testnet"
	DefaultNetwork = NetworkTestnet

	EnvFolderVar = "NWB_ENV"
)
