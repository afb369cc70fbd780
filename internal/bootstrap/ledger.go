// Package bootstrap assembles the client access layer from service configuration.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/feral-file/batch-ledger/internal/adapter"
	"github.com/feral-file/batch-ledger/internal/cache"
	"github.com/feral-file/batch-ledger/internal/client"
	"github.com/feral-file/batch-ledger/internal/config"
	"github.com/feral-file/batch-ledger/internal/domain"
	"github.com/feral-file/batch-ledger/internal/ipfs"
	"github.com/feral-file/batch-ledger/internal/logger"
	"github.com/feral-file/batch-ledger/internal/metadata"
	"github.com/feral-file/batch-ledger/internal/registry"
	"github.com/feral-file/batch-ledger/internal/store"
	"github.com/feral-file/batch-ledger/internal/uri"
)

const (
	IPFS_PROVIDER_PINATA = "pinata"
	IPFS_PROVIDER_LOCAL  = "local"
)

// Options selects the configuration sections a ledger client is built from
type Options struct {
	Chain  config.ChainConfig
	IPFS   config.IPFSConfig
	Cache  config.CacheConfig
	Signer config.SignerConfig
	Client config.ClientConfig

	// Database enables the metadata side index when its host is set
	Database *config.DatabaseConfig

	// Confirm is asked before every signature when set
	Confirm client.ConfirmFunc
}

// Ledger is a wired client access layer and the resources it holds
type Ledger struct {
	Client   *client.Client
	Registry registry.DeploymentRegistry
	Store    store.Store         // nil without a database
	Redis    adapter.RedisClient // nil without a Redis cache

	closers []func()
}

// Close releases every connection opened by NewLedger
func (l *Ledger) Close() {
	for i := len(l.closers) - 1; i >= 0; i-- {
		l.closers[i]()
	}
	l.closers = nil
}

// NewLedger dials the node and builds the client with its collaborators
func NewLedger(ctx context.Context, opts Options) (*Ledger, error) {
	fs := adapter.NewFileSystem()
	jsonAdapter := adapter.NewJSON()
	clock := adapter.NewClock()
	l := &Ledger{}

	reg, err := registry.NewDeploymentRegistryLoader(fs, jsonAdapter).Load(opts.Chain.DeploymentsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load deployments: %w", err)
	}
	l.Registry = reg

	ethClient, err := dialNode(ctx, opts.Chain)
	if err != nil {
		return nil, err
	}
	l.closers = append(l.closers, ethClient.Close)

	metadataCache, err := newCache(ctx, opts.Cache, l)
	if err != nil {
		l.Close()
		return nil, err
	}

	metadataStore := metadata.NewStore(newIPFSStore(opts.IPFS, metadataCache, jsonAdapter), jsonAdapter, adapter.NewJCS())

	signer, err := newSigner(fs, opts.Signer, opts.Confirm)
	if err != nil {
		l.Close()
		return nil, err
	}

	var index client.MetadataIndex
	if opts.Database != nil && opts.Database.Host != "" {
		dataStore, err := openStore(*opts.Database, l)
		if err != nil {
			l.Close()
			return nil, err
		}
		l.Store = dataStore
		index = dataStore
	}

	l.Client = client.New(client.Config{
		CallTimeout:         opts.Client.CallTimeout,
		TxTimeout:           opts.Client.TxTimeout,
		GasMarginPercent:    opts.Client.GasMarginPercent,
		ScanConcurrency:     opts.Client.ScanConcurrency,
		ReceiptPollInterval: opts.Client.ReceiptPollInterval,
	}, client.Deps{
		EthClient: ethClient,
		Registry:  reg,
		Signer:    signer,
		Metadata:  metadataStore,
		Index:     index,
		Clock:     clock,
	})

	return l, nil
}

// dialNode connects to the node, preferring HTTP for request/response traffic
func dialNode(ctx context.Context, cfg config.ChainConfig) (adapter.EthClient, error) {
	endpoint := cfg.RPCURL
	if endpoint == "" {
		endpoint = cfg.WebSocketURL
	}

	ethClient, err := adapter.NewEthClientDialer().Dial(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to dial node %s: %w", endpoint, err)
	}

	if err := CheckChain(ctx, ethClient, cfg.ChainID); err != nil {
		ethClient.Close()
		return nil, err
	}

	logger.InfoCtx(ctx, "Connected to ledger node", zap.String("endpoint", endpoint))
	return ethClient, nil
}

// CheckChain verifies the node serves the expected chain, an empty expectation accepts any chain
func CheckChain(ctx context.Context, ethClient adapter.EthClient, expected domain.Chain) error {
	if expected == "" {
		return nil
	}

	chainID, err := ethClient.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("failed to read chain id: %w", err)
	}
	if actual := domain.ChainFromID(chainID); actual != expected {
		return &domain.LedgerError{
			Kind:  domain.ErrUnsupportedNetwork,
			Op:    "checkChain",
			Chain: actual,
			Err:   fmt.Errorf("node serves %s, expected %s", actual, expected),
		}
	}
	return nil
}

func newCache(ctx context.Context, cfg config.CacheConfig, l *Ledger) (cache.Cache, error) {
	if cfg.RedisAddr == "" {
		return cache.NewMemoryCache(cfg.MemoryEntries), nil
	}

	redisClient := adapter.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err := redisClient.Ping(ctx); err != nil {
		_ = redisClient.Close()
		return nil, fmt.Errorf("failed to connect to redis %s: %w", cfg.RedisAddr, err)
	}
	l.closers = append(l.closers, func() { _ = redisClient.Close() })
	l.Redis = redisClient

	logger.InfoCtx(ctx, "Connected to redis", zap.String("addr", cfg.RedisAddr))
	return cache.NewRedisCache(redisClient, cfg.Prefix, cfg.TTL), nil
}

func newIPFSStore(cfg config.IPFSConfig, c cache.Cache, jsonAdapter adapter.JSON) ipfs.Store {
	if cfg.Provider == IPFS_PROVIDER_LOCAL {
		return ipfs.NewLocalStore(c)
	}

	httpClient := adapter.NewHTTPClientWithRetry(cfg.HTTPTimeout, cfg.RetryFor)
	resolver := uri.NewResolver(httpClient, &uri.Config{
		IPFSGateways: cfg.Gateways,
		Probe:        cfg.ProbeGateways,
	})
	pinata := ipfs.NewPinataStore(ipfs.PinataConfig{
		APIURL: cfg.PinningAPIURL,
		JWT:    cfg.PinningJWT,
	}, httpClient, jsonAdapter, resolver)
	return ipfs.NewCachedStore(pinata, c)
}

func newSigner(fs adapter.FileSystem, cfg config.SignerConfig, confirm client.ConfirmFunc) (client.Signer, error) {
	var signer client.Signer
	var err error

	switch {
	case cfg.PrivateKey != "" && cfg.KeystorePath != "":
		return nil, errors.New("signer.private_key and signer.keystore_path are mutually exclusive")
	case cfg.PrivateKey != "":
		signer, err = client.NewHexKeySigner(cfg.PrivateKey)
	case cfg.KeystorePath != "":
		signer, err = client.LoadKeystoreSigner(fs, cfg.KeystorePath, cfg.KeystorePassphrase)
	default:
		// read only
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load signer: %w", err)
	}

	if confirm != nil {
		signer = client.NewConfirmingSigner(signer, confirm)
	}
	return signer, nil
}

// OpenStore connects to postgres with the configured pool
func OpenStore(cfg config.DatabaseConfig) (store.Store, func(), error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := store.ConfigureConnectionPool(db, store.PoolConfig{
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}); err != nil {
		return nil, nil, err
	}

	closeFn := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return store.NewPGStore(db), closeFn, nil
}

func openStore(cfg config.DatabaseConfig, l *Ledger) (store.Store, error) {
	dataStore, closeFn, err := OpenStore(cfg)
	if err != nil {
		return nil, err
	}
	l.closers = append(l.closers, closeFn)
	return dataStore, nil
}
