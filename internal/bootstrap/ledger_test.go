package bootstrap_test

import (
	"context"
	"errors"
	"math/big"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/batch-ledger/internal/adapter"
	"github.com/feral-file/batch-ledger/internal/bootstrap"
	"github.com/feral-file/batch-ledger/internal/client"
	"github.com/feral-file/batch-ledger/internal/config"
	"github.com/feral-file/batch-ledger/internal/contract"
	"github.com/feral-file/batch-ledger/internal/devchain"
	"github.com/feral-file/batch-ledger/internal/domain"
	"github.com/feral-file/batch-ledger/internal/ledger"
	"github.com/feral-file/batch-ledger/internal/logger"
	"github.com/feral-file/batch-ledger/internal/metadata"
	"github.com/feral-file/batch-ledger/internal/mocks"
)

const creatorKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

var (
	creator      = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	contractAddr = common.HexToAddress(domain.DEFAULT_DEVNET_CONTRACT)
)

func TestMain(m *testing.M) {
	if err := logger.Initialize(logger.Config{Debug: false}); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// serveDevChain runs a ledger node over HTTP and returns its URL
func serveDevChain(t *testing.T) string {
	t.Helper()

	dispatcher := contract.NewDispatcher(contractAddr, contract.MustDefaultCodec(), ledger.New())
	chain := devchain.New(devchain.Config{ChainID: big.NewInt(31337), ContractAddress: contractAddr}, dispatcher, adapter.NewClock())
	srv, err := devchain.NewRPCServer(chain)
	require.NoError(t, err)
	t.Cleanup(srv.Stop)

	ts := httptest.NewServer(devchain.Handler(srv, []string{"*"}))
	t.Cleanup(ts.Close)
	return ts.URL
}

func writeDeployments(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "deployments.json")
	content := `{"version":1,"deployments":[{"chain":"eip155:31337","address":"` + contractAddr.Hex() + `","start_block":0}]}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func localOptions(t *testing.T, rpcURL string) bootstrap.Options {
	return bootstrap.Options{
		Chain: config.ChainConfig{
			RPCURL:          rpcURL,
			ChainID:         domain.ChainLocalDevnet,
			DeploymentsPath: writeDeployments(t),
		},
		IPFS:   config.IPFSConfig{Provider: bootstrap.IPFS_PROVIDER_LOCAL},
		Cache:  config.CacheConfig{MemoryEntries: 16},
		Signer: config.SignerConfig{PrivateKey: creatorKey},
	}
}

func TestNewLedger_EndToEnd(t *testing.T) {
	ctx := context.Background()

	l, err := bootstrap.NewLedger(ctx, localOptions(t, serveDevChain(t)))
	require.NoError(t, err)
	defer l.Close()

	assert.Nil(t, l.Store)
	assert.Equal(t, creator, l.Client.Account())

	created, err := l.Client.CreateBatchWithMetadata(ctx, client.CreateBatchInput{
		Input: metadata.Input{Name: "Coffee Lot 7", Description: "Washed arabica"},
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), created.BatchID)

	batch, err := l.Client.GetBatchInfoWithMetadata(ctx, created.BatchID)
	require.NoError(t, err)
	assert.Equal(t, creator, batch.CurrentOwner)
	require.NotNil(t, batch.Metadata)
	assert.Equal(t, "Coffee Lot 7", batch.Metadata.Name)
}

func TestNewLedger_ReadOnly(t *testing.T) {
	ctx := context.Background()
	opts := localOptions(t, serveDevChain(t))
	opts.Signer = config.SignerConfig{}

	l, err := bootstrap.NewLedger(ctx, opts)
	require.NoError(t, err)
	defer l.Close()

	total, err := l.Client.GetTotalBatches(ctx)
	require.NoError(t, err)
	assert.Zero(t, total)

	_, err = l.Client.CreateBatch(ctx, "")
	assert.ErrorIs(t, err, domain.ErrTransactionRejected)
}

func TestNewLedger_Errors(t *testing.T) {
	ctx := context.Background()
	rpcURL := serveDevChain(t)

	tests := []struct {
		name    string
		mutate  func(opts *bootstrap.Options)
		wantErr string
	}{
		{
			name:    "missing deployments file",
			mutate:  func(opts *bootstrap.Options) { opts.Chain.DeploymentsPath = filepath.Join(t.TempDir(), "missing.json") },
			wantErr: "failed to load deployments",
		},
		{
			name:    "unexpected chain",
			mutate:  func(opts *bootstrap.Options) { opts.Chain.ChainID = domain.ChainEthereumSepolia },
			wantErr: "unsupported network",
		},
		{
			name:    "malformed private key",
			mutate:  func(opts *bootstrap.Options) { opts.Signer.PrivateKey = "0x1234" },
			wantErr: "failed to load signer",
		},
		{
			name: "conflicting signer sources",
			mutate: func(opts *bootstrap.Options) {
				opts.Signer.KeystorePath = "/secrets/keystore.json"
			},
			wantErr: "mutually exclusive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := localOptions(t, rpcURL)
			tt.mutate(&opts)

			l, err := bootstrap.NewLedger(ctx, opts)
			require.Error(t, err)
			assert.Nil(t, l)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCheckChain(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	ctx := context.Background()
	ethClient := mocks.NewMockEthClient(ctrl)

	t.Run("no expectation", func(t *testing.T) {
		assert.NoError(t, bootstrap.CheckChain(ctx, ethClient, ""))
	})

	t.Run("matching chain", func(t *testing.T) {
		ethClient.EXPECT().ChainID(ctx).Return(big.NewInt(11155111), nil)
		assert.NoError(t, bootstrap.CheckChain(ctx, ethClient, domain.ChainEthereumSepolia))
	})

	t.Run("other chain", func(t *testing.T) {
		ethClient.EXPECT().ChainID(ctx).Return(big.NewInt(1), nil)
		err := bootstrap.CheckChain(ctx, ethClient, domain.ChainEthereumSepolia)
		assert.ErrorIs(t, err, domain.ErrUnsupportedNetwork)
	})

	t.Run("node unreachable", func(t *testing.T) {
		ethClient.EXPECT().ChainID(ctx).Return(nil, errors.New("connection refused"))
		err := bootstrap.CheckChain(ctx, ethClient, domain.ChainEthereumSepolia)
		assert.ErrorContains(t, err, "failed to read chain id")
	})
}
