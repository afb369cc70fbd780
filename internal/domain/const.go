package domain

const (
	// Gateway constants
	DEFAULT_IPFS_GATEWAY = "https://ipfs.io"
	DEFAULT_PINNING_API  = "https://api.pinata.cloud"

	// Blockchain constants
	ETHEREUM_ZERO_ADDRESS = "0x0000000000000000000000000000000000000000"

	// DEFAULT_DEVNET_CONTRACT is where the ledger node deploys the contract at genesis
	DEFAULT_DEVNET_CONTRACT = "0x5FbDB2315678afecb367f032d93F642f64180aa3"

	// Ledger constants
	LEDGER_CONTRACT_NAME = "BatchLedger"
	FIRST_BATCH_ID       = 1

	// Metadata constants
	METADATA_VERSION = "1.0"
)
