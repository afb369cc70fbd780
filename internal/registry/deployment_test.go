package registry_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/batch-ledger/internal/contract"
	"github.com/feral-file/batch-ledger/internal/domain"
	"github.com/feral-file/batch-ledger/internal/mocks"
	"github.com/feral-file/batch-ledger/internal/registry"
)

const ledgerAddress = "0x5FbDB2315678afecb367f032d93F642f64180aa3"

func unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func TestDeploymentRegistryLoader_Load(t *testing.T) {
	tests := []struct {
		name         string
		setupMocks   func(*mocks.MockFileSystem, *mocks.MockJSON)
		expectedErr  string
		validateFunc func(t *testing.T, reg registry.DeploymentRegistry)
	}{
		{
			name: "successful load with embedded ABI",
			setupMocks: func(mockFS *mocks.MockFileSystem, mockJSON *mocks.MockJSON) {
				mockFS.
					EXPECT().
					ReadFile("config/deployments.json").
					Return([]byte(`{
					"version": 1,
					"deployments": [
						{"chain": "eip155:31337", "address": "`+ledgerAddress+`", "start_block": 0},
						{"chain": "EIP155:80002", "name": "BatchLedgerV2", "address": "0x0000000000000000000000000000000000000abc", "start_block": 1200}
					]
				}`), nil)
				mockJSON.EXPECT().Unmarshal(gomock.Any(), gomock.Any()).DoAndReturn(unmarshal)
			},
			validateFunc: func(t *testing.T, reg registry.DeploymentRegistry) {
				d, err := reg.Lookup(domain.ChainLocalDevnet)
				require.NoError(t, err)
				assert.Equal(t, common.HexToAddress(ledgerAddress), d.ContractAddress)
				assert.Equal(t, domain.LEDGER_CONTRACT_NAME, d.Name)
				assert.NotNil(t, d.Codec)

				d, err = reg.Lookup(domain.ChainPolygonAmoy)
				require.NoError(t, err)
				assert.Equal(t, "BatchLedgerV2", d.Name)
				assert.Equal(t, uint64(1200), d.StartBlock)

				assert.Equal(t, []domain.Chain{domain.ChainLocalDevnet, domain.ChainPolygonAmoy}, reg.Chains())
			},
		},
		{
			name: "ABI path resolved relative to the registry file",
			setupMocks: func(mockFS *mocks.MockFileSystem, mockJSON *mocks.MockJSON) {
				mockFS.
					EXPECT().
					ReadFile("config/deployments.json").
					Return([]byte(`{"version": 1, "deployments": [{"chain": "eip155:31337", "address": "`+ledgerAddress+`", "abi_path": "abi/ledger.json"}]}`), nil)
				mockJSON.EXPECT().Unmarshal(gomock.Any(), gomock.Any()).DoAndReturn(unmarshal)
				mockFS.
					EXPECT().
					ReadFile("config/abi/ledger.json").
					Return([]byte(contract.DefaultABI()), nil)
			},
			validateFunc: func(t *testing.T, reg registry.DeploymentRegistry) {
				d, err := reg.Lookup(domain.ChainLocalDevnet)
				require.NoError(t, err)
				assert.Equal(t, "abi/ledger.json", d.ABIPath)
				_, ok := d.Codec.ABI().Methods[contract.MethodCreateBatch]
				assert.True(t, ok)
			},
		},
		{
			name: "ABI missing ledger methods",
			setupMocks: func(mockFS *mocks.MockFileSystem, mockJSON *mocks.MockJSON) {
				mockFS.
					EXPECT().
					ReadFile("config/deployments.json").
					Return([]byte(`{"version": 1, "deployments": [{"chain": "eip155:31337", "address": "`+ledgerAddress+`", "abi_path": "erc20.json"}]}`), nil)
				mockJSON.EXPECT().Unmarshal(gomock.Any(), gomock.Any()).DoAndReturn(unmarshal)
				mockFS.
					EXPECT().
					ReadFile("config/erc20.json").
					Return([]byte(`[{"type":"function","name":"totalSupply","inputs":[],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"}]`), nil)
			},
			expectedErr: "deployment 0",
		},
		{
			name: "file read error",
			setupMocks: func(mockFS *mocks.MockFileSystem, mockJSON *mocks.MockJSON) {
				mockFS.EXPECT().ReadFile("config/deployments.json").Return(nil, errors.New("file not found"))
			},
			expectedErr: "failed to read registry file: file not found",
		},
		{
			name: "invalid JSON",
			setupMocks: func(mockFS *mocks.MockFileSystem, mockJSON *mocks.MockJSON) {
				mockFS.EXPECT().ReadFile("config/deployments.json").Return([]byte(`{`), nil)
				mockJSON.EXPECT().Unmarshal(gomock.Any(), gomock.Any()).DoAndReturn(unmarshal)
			},
			expectedErr: "failed to parse registry JSON",
		},
		{
			name: "malformed address",
			setupMocks: func(mockFS *mocks.MockFileSystem, mockJSON *mocks.MockJSON) {
				mockFS.
					EXPECT().
					ReadFile("config/deployments.json").
					Return([]byte(`{"version": 1, "deployments": [{"chain": "eip155:31337", "address": "0x123"}]}`), nil)
				mockJSON.EXPECT().Unmarshal(gomock.Any(), gomock.Any()).DoAndReturn(unmarshal)
			},
			expectedErr: "malformed address",
		},
		{
			name: "zero address",
			setupMocks: func(mockFS *mocks.MockFileSystem, mockJSON *mocks.MockJSON) {
				mockFS.
					EXPECT().
					ReadFile("config/deployments.json").
					Return([]byte(`{"version": 1, "deployments": [{"chain": "eip155:31337", "address": "`+domain.ETHEREUM_ZERO_ADDRESS+`"}]}`), nil)
				mockJSON.EXPECT().Unmarshal(gomock.Any(), gomock.Any()).DoAndReturn(unmarshal)
			},
			expectedErr: "zero address",
		},
		{
			name: "non eip155 chain",
			setupMocks: func(mockFS *mocks.MockFileSystem, mockJSON *mocks.MockJSON) {
				mockFS.
					EXPECT().
					ReadFile("config/deployments.json").
					Return([]byte(`{"version": 1, "deployments": [{"chain": "tezos:mainnet", "address": "`+ledgerAddress+`"}]}`), nil)
				mockJSON.EXPECT().Unmarshal(gomock.Any(), gomock.Any()).DoAndReturn(unmarshal)
			},
			expectedErr: "unsupported chain",
		},
		{
			name: "duplicate chain",
			setupMocks: func(mockFS *mocks.MockFileSystem, mockJSON *mocks.MockJSON) {
				mockFS.
					EXPECT().
					ReadFile("config/deployments.json").
					Return([]byte(`{"version": 1, "deployments": [
						{"chain": "eip155:31337", "address": "`+ledgerAddress+`"},
						{"chain": "eip155:31337", "address": "`+ledgerAddress+`"}
					]}`), nil)
				mockJSON.EXPECT().Unmarshal(gomock.Any(), gomock.Any()).DoAndReturn(unmarshal)
			},
			expectedErr: "duplicate chain",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			mockFS := mocks.NewMockFileSystem(ctrl)
			mockJSON := mocks.NewMockJSON(ctrl)
			tt.setupMocks(mockFS, mockJSON)

			loader := registry.NewDeploymentRegistryLoader(mockFS, mockJSON)
			reg, err := loader.Load("config/deployments.json")

			if tt.expectedErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedErr)
				assert.Nil(t, reg)
				return
			}
			require.NoError(t, err)
			tt.validateFunc(t, reg)
		})
	}
}

func TestDeploymentRegistry_LookupUnknownChain(t *testing.T) {
	reg := registry.NewDeploymentRegistry(&registry.Deployment{Chain: domain.ChainLocalDevnet, Address: ledgerAddress})

	d, err := reg.Lookup(domain.ChainLocalDevnet)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(ledgerAddress), d.ContractAddress)

	_, err = reg.Lookup(domain.ChainEthereumMainnet)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnsupportedNetwork)
	assert.Equal(t, domain.ErrUnsupportedNetwork, domain.KindOf(err))
}
