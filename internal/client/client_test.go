package client_test

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/batch-ledger/internal/adapter"
	"github.com/feral-file/batch-ledger/internal/cache"
	"github.com/feral-file/batch-ledger/internal/client"
	"github.com/feral-file/batch-ledger/internal/contract"
	"github.com/feral-file/batch-ledger/internal/devchain"
	"github.com/feral-file/batch-ledger/internal/domain"
	"github.com/feral-file/batch-ledger/internal/ipfs"
	"github.com/feral-file/batch-ledger/internal/ledger"
	"github.com/feral-file/batch-ledger/internal/logger"
	"github.com/feral-file/batch-ledger/internal/metadata"
	"github.com/feral-file/batch-ledger/internal/mocks"
	"github.com/feral-file/batch-ledger/internal/registry"
)

var (
	chainID      = big.NewInt(31337)
	contractAddr = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	creatorKey   = mustKey("ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80")
	aliceKey     = mustKey("59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d")
	creator      = crypto.PubkeyToAddress(creatorKey.PublicKey)
	alice        = crypto.PubkeyToAddress(aliceKey.PublicKey)
	bob          = common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")
	codec        = contract.MustDefaultCodec()
	pngHeader    = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00\x1f\x15\xc4\x89")
)

func TestMain(m *testing.M) {
	if err := logger.Initialize(logger.Config{Debug: false}); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func mustKey(hex string) *ecdsa.PrivateKey {
	key, err := crypto.HexToECDSA(hex)
	if err != nil {
		panic(err)
	}
	return key
}

// memoryIndex is an in-memory metadata side index
type memoryIndex struct {
	mu   sync.Mutex
	refs map[uint64]string
	err  error
}

func newMemoryIndex() *memoryIndex {
	return &memoryIndex{refs: make(map[uint64]string)}
}

func (i *memoryIndex) SaveMetadataRef(ctx context.Context, chain domain.Chain, contractAddress string, batchID uint64, metadataRef string, txHash string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.err != nil {
		return i.err
	}
	i.refs[batchID] = metadataRef
	return nil
}

func (i *memoryIndex) GetMetadataRef(ctx context.Context, chain domain.Chain, contractAddress string, batchID uint64) (string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.err != nil {
		return "", i.err
	}
	return i.refs[batchID], nil
}

// fixedGasChain skips gas estimation so failing transactions get mined
type fixedGasChain struct {
	*devchain.Chain
	gas uint64

	mu         sync.Mutex
	callBlocks []*big.Int
}

func (c *fixedGasChain) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return c.gas, nil
}

func (c *fixedGasChain) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	c.mu.Lock()
	c.callBlocks = append(c.callBlocks, blockNumber)
	c.mu.Unlock()
	return c.Chain.CallContract(ctx, msg, blockNumber)
}

func (c *fixedGasChain) lastCallBlock() *big.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.callBlocks) == 0 {
		return nil
	}
	return c.callBlocks[len(c.callBlocks)-1]
}

type fixture struct {
	chain    *devchain.Chain
	registry registry.DeploymentRegistry
	metadata metadata.Store
	index    *memoryIndex
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithCodec(t, codec)
}

// newFixtureWithCodec deploys the ledger behind a specific ABI
func newFixtureWithCodec(t *testing.T, c *contract.Codec) *fixture {
	t.Helper()
	dispatcher := contract.NewDispatcher(contractAddr, c, ledger.New())
	return &fixture{
		chain: devchain.New(devchain.Config{ChainID: chainID, ContractAddress: contractAddr}, dispatcher, adapter.NewClock()),
		registry: registry.NewDeploymentRegistry(&registry.Deployment{
			Chain:   domain.ChainLocalDevnet,
			Name:    domain.LEDGER_CONTRACT_NAME,
			Address: contractAddr.Hex(),
			Codec:   c,
		}),
		metadata: metadata.NewStore(ipfs.NewLocalStore(cache.NewMemoryCache(0)), adapter.NewJSON(), adapter.NewJCS()),
		index:    newMemoryIndex(),
	}
}

func (f *fixture) client(signer client.Signer) *client.Client {
	return f.clientWith(f.chain, signer)
}

func (f *fixture) clientWith(eth adapter.EthClient, signer client.Signer) *client.Client {
	return client.New(client.Config{ReceiptPollInterval: 5 * time.Millisecond}, client.Deps{
		EthClient: eth,
		Registry:  f.registry,
		Signer:    signer,
		Metadata:  f.metadata,
		Index:     f.index,
		Clock:     adapter.NewClock(),
	})
}

// codecWithoutMetadataField parses the ledger ABI with getBatchInfo lacking the metadata reference
func codecWithoutMetadataField(t *testing.T) *contract.Codec {
	t.Helper()
	legacyABI := strings.Replace(contract.DefaultABI(),
		`{"name":"lastTransferAt","type":"uint256"},{"name":"metadataRef","type":"string"}]`,
		`{"name":"lastTransferAt","type":"uint256"}]`, 1)
	parsed, err := contract.ParseABI(strings.NewReader(legacyABI))
	require.NoError(t, err)
	c := contract.NewCodec(parsed)
	require.False(t, c.HasMetadataField())
	return c
}

func ledgerError(t *testing.T, err error) *domain.LedgerError {
	t.Helper()
	var le *domain.LedgerError
	require.ErrorAs(t, err, &le)
	return le
}

func TestClient_EndToEnd(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	creatorClient := f.client(client.NewKeySigner(creatorKey))
	aliceClient := f.client(client.NewKeySigner(aliceKey))

	// sequential ids from 1
	first, err := creatorClient.CreateBatch(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), first.BatchID)
	assert.NotEqual(t, common.Hash{}, first.TxHash)

	second, err := creatorClient.CreateBatch(ctx, "QmSecond")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), second.BatchID)

	total, err := creatorClient.GetTotalBatches(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), total)

	info, err := creatorClient.GetBatchInfo(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, creator, info.CurrentOwner)
	assert.Equal(t, uint64(1), info.OwnerCount)
	assert.Equal(t, info.CreatedAt, info.LastTransferAt)

	// transfer to alice
	_, err = creatorClient.TransferBatch(ctx, 1, alice.Hex())
	require.NoError(t, err)

	owner, err := creatorClient.GetCurrentOwner(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, alice, owner)

	history, err := creatorClient.GetOwnerHistory(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []common.Address{creator, alice}, history)

	count, err := creatorClient.GetOwnerCount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)

	was, err := creatorClient.WasOwner(ctx, 1, creator.Hex())
	require.NoError(t, err)
	assert.True(t, was)
	was, err = creatorClient.WasOwner(ctx, 1, bob.Hex())
	require.NoError(t, err)
	assert.False(t, was)

	// the previous owner can no longer transfer
	_, err = creatorClient.TransferBatch(ctx, 1, bob.Hex())
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	le := ledgerError(t, err)
	assert.Equal(t, alice.Hex(), le.Owner)
	assert.Contains(t, domain.UserMessage(err), alice.Hex())

	after, err := creatorClient.GetOwnerHistory(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, history, after)

	// alice hands it back, history keeps growing
	_, err = aliceClient.TransferBatch(ctx, 1, creator.Hex())
	require.NoError(t, err)
	history, err = aliceClient.GetOwnerHistory(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []common.Address{creator, alice, creator}, history)

	// metadata update by the owner only
	_, err = aliceClient.UpdateMetadata(ctx, 2, "QmAlice")
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	updated, err := creatorClient.UpdateMetadata(ctx, 2, "QmUpdated")
	require.NoError(t, err)
	assert.Equal(t, "QmUpdated", updated.MetadataRef)

	info, err = creatorClient.GetBatchInfo(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "QmUpdated", info.MetadataRef)

	// provenance from events
	events, err := creatorClient.GetBatchHistoryEvents(ctx, 1)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, domain.EventTypeBatchCreated, events[0].EventType)
	assert.Equal(t, domain.EventTypeBatchTransferred, events[1].EventType)
	assert.Equal(t, alice.Hex(), *events[1].ToAddress)
	assert.Equal(t, domain.EventTypeBatchTransferred, events[2].EventType)
	assert.Equal(t, creator.Hex(), *events[2].ToAddress)

	events, err = creatorClient.GetBatchHistoryEvents(ctx, 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventTypeMetadataUpdated, events[1].EventType)
	assert.Equal(t, "QmSecond", *events[1].OldMetadataRef)
	assert.Equal(t, "QmUpdated", *events[1].MetadataRef)
}

func TestClient_NotFound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := f.client(client.NewKeySigner(creatorKey))

	_, err := c.CreateBatch(ctx, "")
	require.NoError(t, err)

	calls := map[string]func(id uint64) error{
		"GetCurrentOwner": func(id uint64) error { _, err := c.GetCurrentOwner(ctx, id); return err },
		"GetOwnerHistory": func(id uint64) error { _, err := c.GetOwnerHistory(ctx, id); return err },
		"GetBatchInfo":    func(id uint64) error { _, err := c.GetBatchInfo(ctx, id); return err },
		"GetOwnerCount":   func(id uint64) error { _, err := c.GetOwnerCount(ctx, id); return err },
		"WasOwner":        func(id uint64) error { _, err := c.WasOwner(ctx, id, creator.Hex()); return err },
		"TransferBatch":   func(id uint64) error { _, err := c.TransferBatch(ctx, id, alice.Hex()); return err },
		"UpdateMetadata":  func(id uint64) error { _, err := c.UpdateMetadata(ctx, id, "Qm"); return err },
		"GetBatchHistoryEvents": func(id uint64) error {
			_, err := c.GetBatchHistoryEvents(ctx, id)
			return err
		},
	}

	for name, call := range calls {
		for _, id := range []uint64{0, 2, 1 << 40} {
			err := call(id)
			require.Error(t, err, "%s(%d)", name, id)
			assert.ErrorIs(t, err, domain.ErrNotFound, "%s(%d)", name, id)
		}
	}

	exists, err := c.BatchExists(ctx, 2)
	require.NoError(t, err)
	assert.False(t, exists)
	exists, err = c.BatchExists(ctx, 1)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestClient_TransferValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := f.client(client.NewKeySigner(creatorKey))

	_, err := c.CreateBatch(ctx, "")
	require.NoError(t, err)

	tests := []struct {
		name     string
		newOwner string
		wantErr  error
	}{
		{name: "malformed address", newOwner: "0x1234", wantErr: domain.ErrInvalidArgument},
		{name: "not hex", newOwner: "alice", wantErr: domain.ErrInvalidArgument},
		{name: "zero address", newOwner: domain.ETHEREUM_ZERO_ADDRESS, wantErr: domain.ErrInvalidArgument},
		{name: "self transfer", newOwner: creator.Hex(), wantErr: domain.ErrInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nonce, err := f.chain.PendingNonceAt(ctx, creator)
			require.NoError(t, err)

			_, err = c.TransferBatch(ctx, 1, tt.newOwner)
			require.ErrorIs(t, err, tt.wantErr)

			after, err := f.chain.PendingNonceAt(ctx, creator)
			require.NoError(t, err)
			assert.Equal(t, nonce, after, "no transaction may be sent")

			owner, err := c.GetCurrentOwner(ctx, 1)
			require.NoError(t, err)
			assert.Equal(t, creator, owner)
		})
	}
}

func TestClient_TransferCheckOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	creatorClient := f.client(client.NewKeySigner(creatorKey))
	aliceClient := f.client(client.NewKeySigner(aliceKey))

	_, err := creatorClient.CreateBatch(ctx, "")
	require.NoError(t, err)

	tests := []struct {
		name    string
		client  *client.Client
		batchID uint64
		wantErr error
	}{
		{name: "missing batch wins over zero owner", client: creatorClient, batchID: 7, wantErr: domain.ErrNotFound},
		{name: "non owner wins over zero owner", client: aliceClient, batchID: 1, wantErr: domain.ErrUnauthorized},
		{name: "owner sending to zero owner", client: creatorClient, batchID: 1, wantErr: domain.ErrInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.client.TransferBatch(ctx, tt.batchID, domain.ETHEREUM_ZERO_ADDRESS)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestClient_CreateBatchWithMetadata(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := f.client(client.NewKeySigner(creatorKey))

	input := client.CreateBatchInput{
		Input: metadata.Input{
			Name:        "Coffee Lot 7",
			Description: "Washed arabica",
			Attributes:  []metadata.Attribute{{TraitType: "Process", Value: "washed"}},
			BatchProperties: &metadata.BatchProperties{
				Origin:      "Huila",
				HarvestDate: "2026-03-01",
			},
		},
		Image:     pngHeader,
		ImageName: "lot-7",
	}

	result, err := c.CreateBatchWithMetadata(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), result.BatchID)
	assert.NotEmpty(t, result.MetadataRef)
	assert.Equal(t, result.MetadataRef, f.index.refs[1])

	enriched, err := c.GetBatchInfoWithMetadata(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, enriched.Metadata)
	assert.Equal(t, result.MetadataRef, enriched.MetadataRef)
	assert.Equal(t, input.Name, enriched.Metadata.Name)
	assert.Equal(t, input.Description, enriched.Metadata.Description)
	assert.Equal(t, input.Attributes, enriched.Metadata.Attributes)
	assert.Equal(t, input.BatchProperties, enriched.Metadata.BatchProperties)
	assert.Equal(t, "ipfs://"+ipfs.ComputeCID(pngHeader), enriched.Metadata.Image)
	assert.Equal(t, domain.METADATA_VERSION, enriched.Metadata.Version)
}

func TestClient_CreateBatchWithMetadata_OffChainFailuresSendNothing(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		input   client.CreateBatchInput
		wantErr error
	}{
		{
			name:    "invalid document",
			input:   client.CreateBatchInput{Input: metadata.Input{Name: "no description"}},
			wantErr: domain.ErrInvalidArgument,
		},
		{
			name: "not an image",
			input: client.CreateBatchInput{
				Input: metadata.Input{Name: "n", Description: "d"},
				Image: []byte("plain text"),
			},
			wantErr: domain.ErrInvalidArgument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			c := f.client(client.NewKeySigner(creatorKey))

			_, err := c.CreateBatchWithMetadata(ctx, tt.input)
			require.ErrorIs(t, err, tt.wantErr)

			total, err := c.GetTotalBatches(ctx)
			require.NoError(t, err)
			assert.Zero(t, total)
		})
	}
}

func TestClient_CreateBatchWithMetadata_InvalidFieldsPinNothing(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx := context.Background()
	f := newFixture(t)
	// no PinImage or Pin call is expected
	store := mocks.NewMockMetadataStore(ctrl)

	c := client.New(client.Config{}, client.Deps{
		EthClient: f.chain,
		Registry:  f.registry,
		Signer:    client.NewKeySigner(creatorKey),
		Metadata:  store,
		Clock:     adapter.NewClock(),
	})

	_, err := c.CreateBatchWithMetadata(ctx, client.CreateBatchInput{
		Input: metadata.Input{
			Name:            "Lot",
			Description:     "Expires before harvest",
			BatchProperties: &metadata.BatchProperties{HarvestDate: "2026-03-01", ExpiryDate: "2026-01-01"},
		},
		Image:     pngHeader,
		ImageName: "lot",
	})
	require.ErrorIs(t, err, domain.ErrInvalidArgument)

	total, err := c.GetTotalBatches(ctx)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestClient_CreateBatchWithMetadata_PinFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx := context.Background()
	f := newFixture(t)
	store := mocks.NewMockMetadataStore(ctrl)
	store.EXPECT().Pin(gomock.Any(), gomock.Any()).Return("", domain.NewLedgerError(domain.ErrOffChainStorageFailure, "pinJSON", errors.New("gateway down")))

	c := client.New(client.Config{}, client.Deps{
		EthClient: f.chain,
		Registry:  f.registry,
		Signer:    client.NewKeySigner(creatorKey),
		Metadata:  store,
		Clock:     adapter.NewClock(),
	})

	_, err := c.CreateBatchWithMetadata(ctx, client.CreateBatchInput{Input: metadata.Input{Name: "n", Description: "d"}})
	require.ErrorIs(t, err, domain.ErrOffChainStorageFailure)

	total, err := c.GetTotalBatches(ctx)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestClient_CreateBatchWithMetadata_SideIndexFailureIsLogged(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.index.err = errors.New("database unavailable")
	c := f.client(client.NewKeySigner(creatorKey))

	result, err := c.CreateBatchWithMetadata(ctx, client.CreateBatchInput{Input: metadata.Input{Name: "n", Description: "d"}})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), result.BatchID)
}

func TestClient_GetBatchInfoWithMetadata(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := f.client(client.NewKeySigner(creatorKey))

	doc, err := metadata.Build(metadata.Input{Name: "Lot", Description: "Side indexed"}, "", time.Now())
	require.NoError(t, err)
	pinned, err := f.metadata.Pin(ctx, doc)
	require.NoError(t, err)

	// unreachable document
	missing := ipfs.ComputeCID([]byte("never pinned"))
	_, err = c.CreateBatch(ctx, missing)
	require.NoError(t, err)

	// empty on-chain ref with a stale side index entry
	_, err = c.CreateBatch(ctx, "")
	require.NoError(t, err)
	f.index.refs[2] = pinned

	// no metadata at all
	_, err = c.CreateBatch(ctx, "")
	require.NoError(t, err)

	degraded, err := c.GetBatchInfoWithMetadata(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, degraded.Metadata)
	assert.NotEmpty(t, degraded.MetadataError)
	assert.Equal(t, missing, degraded.MetadataRef)

	// the on-chain reference is authoritative
	stale, err := c.GetBatchInfoWithMetadata(ctx, 2)
	require.NoError(t, err)
	assert.Nil(t, stale.Metadata)
	assert.Empty(t, stale.MetadataRef)
	assert.Empty(t, stale.IndexedMetadataRef)

	bare, err := c.GetBatchInfoWithMetadata(ctx, 3)
	require.NoError(t, err)
	assert.Nil(t, bare.Metadata)
	assert.Empty(t, bare.MetadataError)

	_, err = c.GetBatchInfoWithMetadata(ctx, 4)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestClient_GetBatchInfoWithMetadata_ClearedRef(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := f.client(client.NewKeySigner(creatorKey))

	created, err := c.CreateBatchWithMetadata(ctx, client.CreateBatchInput{Input: metadata.Input{Name: "Lot", Description: "old"}})
	require.NoError(t, err)
	require.NotEmpty(t, created.MetadataRef)

	_, err = c.UpdateMetadata(ctx, 1, "")
	require.NoError(t, err)
	assert.Empty(t, f.index.refs[1])

	info, err := c.GetBatchInfo(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, info.MetadataRef)

	enriched, err := c.GetBatchInfoWithMetadata(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, enriched.MetadataRef)
	assert.Nil(t, enriched.Metadata)
	assert.Empty(t, enriched.MetadataError)

	// a stale index entry is ignored as well
	f.index.refs[1] = created.MetadataRef
	enriched, err = c.GetBatchInfoWithMetadata(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, enriched.MetadataRef)
	assert.Nil(t, enriched.Metadata)
}

func TestClient_GetBatchInfoWithMetadata_SideIndexDeployment(t *testing.T) {
	ctx := context.Background()
	f := newFixtureWithCodec(t, codecWithoutMetadataField(t))
	c := f.client(client.NewKeySigner(creatorKey))

	created, err := c.CreateBatchWithMetadata(ctx, client.CreateBatchInput{Input: metadata.Input{Name: "Lot", Description: "indexed"}})
	require.NoError(t, err)
	assert.Equal(t, created.MetadataRef, f.index.refs[1])

	enriched, err := c.GetBatchInfoWithMetadata(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, enriched.MetadataRef)
	assert.Equal(t, created.MetadataRef, enriched.IndexedMetadataRef)
	require.NotNil(t, enriched.Metadata)
	assert.Equal(t, "indexed", enriched.Metadata.Description)

	_, err = c.UpdateMetadata(ctx, 1, "")
	require.NoError(t, err)
	enriched, err = c.GetBatchInfoWithMetadata(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, enriched.IndexedMetadataRef)
	assert.Nil(t, enriched.Metadata)
}

func TestClient_UpdateMetadataDocument(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	creatorClient := f.client(client.NewKeySigner(creatorKey))
	aliceClient := f.client(client.NewKeySigner(aliceKey))

	_, err := creatorClient.CreateBatch(ctx, "")
	require.NoError(t, err)

	doc, err := metadata.Build(metadata.Input{Name: "Lot", Description: "Updated"}, "", time.Now())
	require.NoError(t, err)

	_, err = aliceClient.UpdateMetadataDocument(ctx, 1, doc)
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	result, err := creatorClient.UpdateMetadataDocument(ctx, 1, doc)
	require.NoError(t, err)
	assert.Equal(t, result.MetadataRef, f.index.refs[1])

	enriched, err := creatorClient.GetBatchInfoWithMetadata(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, enriched.Metadata)
	assert.Equal(t, "Updated", enriched.Metadata.Description)
}

func TestClient_GetUserOwnedBatches(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := f.client(client.NewKeySigner(creatorKey))

	empty, err := c.GetUserOwnedBatches(ctx, creator.Hex())
	require.NoError(t, err)
	assert.Empty(t, empty)

	for i := 0; i < 5; i++ {
		_, err := c.CreateBatch(ctx, "")
		require.NoError(t, err)
	}
	_, err = c.TransferBatch(ctx, 2, alice.Hex())
	require.NoError(t, err)
	_, err = c.TransferBatch(ctx, 4, alice.Hex())
	require.NoError(t, err)

	owned, err := c.GetUserOwnedBatches(ctx, creator.Hex())
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 3, 5}, owned)

	owned, err = c.GetUserOwnedBatches(ctx, alice.Hex())
	require.NoError(t, err)
	assert.Equal(t, []uint64{2, 4}, owned)

	owned, err = c.GetUserOwnedBatches(ctx, bob.Hex())
	require.NoError(t, err)
	assert.NotNil(t, owned)
	assert.Empty(t, owned)

	_, err = c.GetUserOwnedBatches(ctx, "bob")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestClient_UnsupportedNetwork(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	eth := mocks.NewMockEthClient(ctrl)
	eth.EXPECT().ChainID(gomock.Any()).Return(big.NewInt(1), nil).AnyTimes()

	f := newFixture(t)
	c := f.clientWith(eth, client.NewKeySigner(creatorKey))

	_, err := c.GetTotalBatches(context.Background())
	require.ErrorIs(t, err, domain.ErrUnsupportedNetwork)
	assert.Equal(t, domain.ChainEthereumMainnet, ledgerError(t, err).Chain)

	_, err = c.CreateBatch(context.Background(), "")
	require.ErrorIs(t, err, domain.ErrUnsupportedNetwork)

	_, err = c.CreateBatchWithMetadata(context.Background(), client.CreateBatchInput{Input: metadata.Input{Name: "n", Description: "d"}})
	require.ErrorIs(t, err, domain.ErrUnsupportedNetwork)
}

func TestClient_NetworkFailureIsTransient(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	eth := mocks.NewMockEthClient(ctrl)
	eth.EXPECT().ChainID(gomock.Any()).Return(nil, errors.New("dial tcp 127.0.0.1:8545: connect: connection refused"))

	f := newFixture(t)
	c := f.clientWith(eth, nil)

	_, err := c.GetCurrentOwner(context.Background(), 1)
	require.ErrorIs(t, err, domain.ErrTransientNetworkFailure)
	assert.True(t, domain.IsRetryable(err))
}

func TestClient_ReadOnlyClientCannotWrite(t *testing.T) {
	f := newFixture(t)
	c := f.client(nil)

	_, err := c.CreateBatch(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrTransactionRejected)

	_, err = c.TransferBatch(context.Background(), 1, alice.Hex())
	assert.ErrorIs(t, err, domain.ErrTransactionRejected)
}

func TestClient_SignatureDeclined(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	var asked int
	signer := client.NewConfirmingSigner(client.NewKeySigner(creatorKey), func(ctx context.Context, tx *types.Transaction) (bool, error) {
		asked++
		return false, nil
	})
	c := f.client(signer)

	_, err := c.CreateBatch(ctx, "")
	require.ErrorIs(t, err, domain.ErrTransactionRejected)
	assert.Equal(t, 1, asked)
	assert.Equal(t, "The transaction was cancelled.", domain.UserMessage(err))

	nonce, err := f.chain.PendingNonceAt(ctx, creator)
	require.NoError(t, err)
	assert.Zero(t, nonce)

	approving := client.NewConfirmingSigner(client.NewKeySigner(creatorKey), func(ctx context.Context, tx *types.Transaction) (bool, error) {
		return true, nil
	})
	result, err := f.client(approving).CreateBatch(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), result.BatchID)
}

func TestClient_MinedRevertIsClassified(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	eth := &fixedGasChain{Chain: f.chain, gas: 200_000}
	c := f.clientWith(eth, client.NewKeySigner(creatorKey))
	_, err := c.UpdateMetadata(ctx, 9, "Qm")
	require.ErrorIs(t, err, domain.ErrNotFound)
	le := ledgerError(t, err)
	assert.NotEmpty(t, le.TxHash)

	// replayed at the block that mined the failed transaction
	receipt, err := f.chain.TransactionReceipt(ctx, common.HexToHash(le.TxHash))
	require.NoError(t, err)
	require.NotNil(t, eth.lastCallBlock())
	assert.Zero(t, receipt.BlockNumber.Cmp(eth.lastCallBlock()))

	// the failed transaction consumed its nonce
	nonce, err := f.chain.PendingNonceAt(ctx, creator)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), nonce)
}

func TestClient_OutOfGasIsTransient(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	c := f.clientWith(&fixedGasChain{Chain: f.chain, gas: 21_000}, client.NewKeySigner(creatorKey))
	_, err := c.CreateBatch(ctx, "")
	require.ErrorIs(t, err, domain.ErrTransientNetworkFailure)
	assert.NotEmpty(t, ledgerError(t, err).TxHash)
}

func TestClient_ReceiptTimeout(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	eth := mocks.NewMockEthClient(ctrl)
	eth.EXPECT().ChainID(gomock.Any()).Return(chainID, nil).AnyTimes()
	eth.EXPECT().EstimateGas(gomock.Any(), gomock.Any()).Return(uint64(60_000), nil)
	eth.EXPECT().PendingNonceAt(gomock.Any(), creator).Return(uint64(0), nil)
	eth.EXPECT().HeaderByNumber(gomock.Any(), gomock.Nil()).Return(&types.Header{Number: big.NewInt(1), BaseFee: big.NewInt(1_000_000_000)}, nil)
	eth.EXPECT().SuggestGasTipCap(gomock.Any()).Return(big.NewInt(1_000_000_000), nil)
	eth.EXPECT().SendTransaction(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, tx *types.Transaction) error {
		assert.Equal(t, uint64(72_000), tx.Gas())
		assert.Equal(t, big.NewInt(3_000_000_000), tx.GasFeeCap())
		return nil
	})
	eth.EXPECT().TransactionReceipt(gomock.Any(), gomock.Any()).Return(nil, ethereum.NotFound).MinTimes(1)

	f := newFixture(t)
	c := client.New(client.Config{TxTimeout: 100 * time.Millisecond, ReceiptPollInterval: 5 * time.Millisecond}, client.Deps{
		EthClient: eth,
		Registry:  f.registry,
		Signer:    client.NewKeySigner(creatorKey),
		Clock:     adapter.NewClock(),
	})

	_, err := c.CreateBatch(context.Background(), "")
	require.ErrorIs(t, err, domain.ErrTransientNetworkFailure)
	le := ledgerError(t, err)
	assert.NotEmpty(t, le.TxHash)
	assert.Contains(t, domain.UserMessage(err), le.TxHash)
}
