package client

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/feral-file/batch-ledger/internal/adapter"
	"github.com/feral-file/batch-ledger/internal/contract"
	"github.com/feral-file/batch-ledger/internal/domain"
	"github.com/feral-file/batch-ledger/internal/logger"
	"github.com/feral-file/batch-ledger/internal/metadata"
	ethprovider "github.com/feral-file/batch-ledger/internal/providers/ethereum"
	"github.com/feral-file/batch-ledger/internal/registry"
)

const (
	defaultCallTimeout         = 15 * time.Second
	defaultTxTimeout           = 2 * time.Minute
	defaultGasMarginPercent    = 20
	defaultScanConcurrency     = 8
	defaultReceiptPollInterval = 500 * time.Millisecond
)

// Config holds the configuration of the client
type Config struct {
	// CallTimeout bounds a single read
	CallTimeout time.Duration

	// TxTimeout bounds submission and confirmation of a transaction
	TxTimeout time.Duration

	// GasMarginPercent is added on top of the gas estimate
	GasMarginPercent uint64

	// ScanConcurrency bounds the parallel reads of an owned batches scan
	ScanConcurrency int

	// ReceiptPollInterval is the initial interval between receipt polls
	ReceiptPollInterval time.Duration
}

func (c *Config) setDefaults() {
	if c.CallTimeout <= 0 {
		c.CallTimeout = defaultCallTimeout
	}
	if c.TxTimeout <= 0 {
		c.TxTimeout = defaultTxTimeout
	}
	if c.GasMarginPercent == 0 {
		c.GasMarginPercent = defaultGasMarginPercent
	}
	if c.ScanConcurrency <= 0 {
		c.ScanConcurrency = defaultScanConcurrency
	}
	if c.ReceiptPollInterval <= 0 {
		c.ReceiptPollInterval = defaultReceiptPollInterval
	}
}

// MetadataIndex records the metadata reference of created batches off chain
//
//go:generate mockgen -source=client.go -destination=../mocks/metadata_index.go -package=mocks -mock_names=MetadataIndex=MockMetadataIndex
type MetadataIndex interface {
	// SaveMetadataRef records the metadata reference of a batch
	SaveMetadataRef(ctx context.Context, chain domain.Chain, contractAddress string, batchID uint64, metadataRef string, txHash string) error

	// GetMetadataRef returns the recorded metadata reference of a batch, empty when unknown
	GetMetadataRef(ctx context.Context, chain domain.Chain, contractAddress string, batchID uint64) (string, error)
}

// Deps holds the collaborators of the client. Signer, Metadata and Index are optional.
type Deps struct {
	EthClient adapter.EthClient
	Registry  registry.DeploymentRegistry
	Signer    Signer
	Metadata  metadata.Store
	Index     MetadataIndex
	Clock     adapter.Clock
}

// Client is the access layer of the batch ledger contract
type Client struct {
	cfg      Config
	eth      adapter.EthClient
	registry registry.DeploymentRegistry
	signer   Signer
	metadata metadata.Store
	index    MetadataIndex
	clock    adapter.Clock

	mu       sync.Mutex
	bindings map[domain.Chain]*binding
}

// binding is a ledger deployment resolved for the connected chain
type binding struct {
	chain      domain.Chain
	chainID    *big.Int
	deployment *registry.Deployment
	events     ethprovider.EthereumClient
}

func (b *binding) address() common.Address {
	return b.deployment.ContractAddress
}

func (b *binding) codec() *contract.Codec {
	return b.deployment.Codec
}

// New creates a client
func New(cfg Config, deps Deps) *Client {
	cfg.setDefaults()
	return &Client{
		cfg:      cfg,
		eth:      deps.EthClient,
		registry: deps.Registry,
		signer:   deps.Signer,
		metadata: deps.Metadata,
		index:    deps.Index,
		clock:    deps.Clock,
		bindings: make(map[domain.Chain]*binding),
	}
}

// Account returns the signing account, the zero address for a read only client
func (c *Client) Account() common.Address {
	if c.signer == nil {
		return common.Address{}
	}
	return c.signer.Address()
}

// Chain resolves the deployment of the connected chain
func (c *Client) Chain(ctx context.Context) (*registry.Deployment, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()

	b, err := c.resolve(ctx, "resolveNetwork")
	if err != nil {
		return nil, err
	}
	return b.deployment, nil
}

// resolve maps the connected chain to its ledger deployment.
// Runs before every contract interaction so a network switch is picked up.
func (c *Client) resolve(ctx context.Context, op string) (*binding, error) {
	chainID, err := c.eth.ChainID(ctx)
	if err != nil {
		return nil, classify(op, nil, err)
	}
	chain := domain.ChainFromID(chainID)

	c.mu.Lock()
	defer c.mu.Unlock()

	if b, ok := c.bindings[chain]; ok {
		return b, nil
	}

	deployment, err := c.registry.Lookup(chain)
	if err != nil {
		logger.WarnCtx(ctx, "No ledger deployment for connected chain", zap.String("chain", string(chain)))
		return nil, &domain.LedgerError{Kind: domain.ErrUnsupportedNetwork, Op: op, Chain: chain, Err: err}
	}

	b := &binding{
		chain:      chain,
		chainID:    chainID,
		deployment: deployment,
		events:     ethprovider.NewClient(chain, deployment.ContractAddress, deployment.Codec, c.eth, c.clock),
	}
	c.bindings[chain] = b

	logger.InfoCtx(ctx, "Resolved ledger deployment",
		zap.String("chain", string(chain)),
		zap.String("contract", deployment.ContractAddress.Hex()))
	return b, nil
}
