package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeConfig writes a config file into a temporary directory and returns its path
func writeConfig(t *testing.T, content string) string {
	t.Helper()

	configFile := filepath.Join(t.TempDir(), "config.yaml")
	err := os.WriteFile(configFile, []byte(content), 0600)
	require.NoError(t, err)
	return configFile
}

func TestLoadNodeConfig(t *testing.T) {
	tests := []struct {
		name        string
		configFile  string
		expectError bool
		validate    func(*testing.T, *NodeConfig)
	}{
		{
			name: "valid config file",
			configFile: `
debug: true
server:
  host: 0.0.0.0
  port: 9545
  allowed_origins: ["https://app.example.com"]
devchain:
  chain_id: 1337
  contract_address: "0x00000000000000000000000000000000000000aa"
  base_fee_gwei: 2
  snapshot_path: "/var/lib/ledger/state.json"
  snapshot_interval: "1m"
`,
			validate: func(t *testing.T, cfg *NodeConfig) {
				assert.True(t, cfg.Debug)
				assert.Equal(t, "0.0.0.0:9545", cfg.Server.Addr())
				assert.Equal(t, []string{"https://app.example.com"}, cfg.Server.AllowedOrigins)
				assert.Equal(t, uint64(1337), cfg.DevChain.ChainID)
				assert.Equal(t, "0x00000000000000000000000000000000000000aa", cfg.DevChain.ContractAddress)
				assert.Equal(t, uint64(2), cfg.DevChain.BaseFeeGwei)
				assert.Equal(t, uint64(1), cfg.DevChain.GasTipCapGwei)
				assert.Equal(t, "/var/lib/ledger/state.json", cfg.DevChain.SnapshotPath)
				assert.Equal(t, time.Minute, cfg.DevChain.SnapshotInterval)
			},
		},
		{
			name:       "config with defaults",
			configFile: "debug: false\n",
			validate: func(t *testing.T, cfg *NodeConfig) {
				assert.Equal(t, "127.0.0.1:8545", cfg.Server.Addr())
				assert.Equal(t, uint64(31337), cfg.DevChain.ChainID)
				assert.Equal(t, "0x5FbDB2315678afecb367f032d93F642f64180aa3", cfg.DevChain.ContractAddress)
				assert.Equal(t, 30*time.Second, cfg.DevChain.SnapshotInterval)
				assert.Empty(t, cfg.DevChain.SnapshotPath)
			},
		},
		{
			name: "zero chain id",
			configFile: `
devchain:
  chain_id: 0
`,
			expectError: true,
		},
		{
			name: "invalid yaml",
			configFile: `
devchain:
  chain_id: [not, a, number]
`,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadNodeConfig(writeConfig(t, tt.configFile), "")

			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, cfg)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)
			tt.validate(t, cfg)
		})
	}
}

func TestLoadAPIConfig(t *testing.T) {
	tests := []struct {
		name        string
		configFile  string
		expectError bool
		validate    func(*testing.T, *APIConfig)
	}{
		{
			name: "valid config file",
			configFile: `
debug: true
sentry_dsn: "https://sentry.example.com"
server:
  port: 9090
database:
  host: localhost
  user: testuser
  password: testpass
  dbname: testdb
chain:
  rpc_url: "https://sepolia.example.com"
  chain_id: "eip155:11155111"
  deployments_path: "config/deployments.json"
ipfs:
  provider: pinata
  pinning_jwt: "jwt-token"
  gateways: ["https://gateway.example.com", "https://ipfs.io"]
  probe_gateways: true
cache:
  redis_addr: "localhost:6379"
  ttl: "24h"
signer:
  keystore_path: "/secrets/keystore.json"
  keystore_passphrase: "secret"
client:
  tx_timeout: "5m"
  scan_concurrency: 4
auth:
  api_keys: ["key-1", "key-2"]
`,
			validate: func(t *testing.T, cfg *APIConfig) {
				assert.True(t, cfg.Debug)
				assert.Equal(t, "https://sentry.example.com", cfg.SentryDSN)
				assert.Equal(t, 9090, cfg.Server.Port)
				assert.Equal(t, "localhost", cfg.Database.Host)
				assert.Equal(t, 5432, cfg.Database.Port)
				assert.Equal(t, "https://sepolia.example.com", cfg.Chain.RPCURL)
				assert.Equal(t, "eip155:11155111", string(cfg.Chain.ChainID))
				assert.Equal(t, "jwt-token", cfg.IPFS.PinningJWT)
				assert.Equal(t, []string{"https://gateway.example.com", "https://ipfs.io"}, cfg.IPFS.Gateways)
				assert.True(t, cfg.IPFS.ProbeGateways)
				assert.Equal(t, "localhost:6379", cfg.Cache.RedisAddr)
				assert.Equal(t, 24*time.Hour, cfg.Cache.TTL)
				assert.True(t, cfg.Signer.Configured())
				assert.Equal(t, 5*time.Minute, cfg.Client.TxTimeout)
				assert.Equal(t, 4, cfg.Client.ScanConcurrency)
				assert.Equal(t, []string{"key-1", "key-2"}, cfg.Auth.APIKeys)
			},
		},
		{
			name: "config with defaults",
			configFile: `
chain:
  rpc_url: "http://127.0.0.1:8545"
`,
			validate: func(t *testing.T, cfg *APIConfig) {
				assert.False(t, cfg.Debug)
				assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
				assert.Equal(t, 180, cfg.Server.WriteTimeout)
				assert.Equal(t, "config/deployments.json", cfg.Chain.DeploymentsPath)
				assert.Equal(t, "pinata", cfg.IPFS.Provider)
				assert.Equal(t, "https://api.pinata.cloud", cfg.IPFS.PinningAPIURL)
				assert.Equal(t, []string{"https://ipfs.io"}, cfg.IPFS.Gateways)
				assert.Equal(t, 30*time.Second, cfg.IPFS.HTTPTimeout)
				assert.Equal(t, 1024, cfg.Cache.MemoryEntries)
				assert.Equal(t, 15*time.Second, cfg.Client.CallTimeout)
				assert.Equal(t, 2*time.Minute, cfg.Client.TxTimeout)
				assert.Equal(t, uint64(20), cfg.Client.GasMarginPercent)
				assert.Equal(t, 500*time.Millisecond, cfg.Client.ReceiptPollInterval)
				assert.False(t, cfg.Signer.Configured())
				assert.Empty(t, cfg.Database.Host)
				assert.Equal(t, 2, cfg.RateLimit.RequestsPerSecond)
				assert.Equal(t, 5, cfg.RateLimit.Burst)
			},
		},
		{
			name: "invalid chain id",
			configFile: `
chain:
  chain_id: "tezos:mainnet"
`,
			expectError: true,
		},
		{
			name: "invalid yaml",
			configFile: `
server:
  port: invalid
`,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadAPIConfig(writeConfig(t, tt.configFile), "")

			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, cfg)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)
			tt.validate(t, cfg)
		})
	}
}

func TestLoadEmitterConfig(t *testing.T) {
	tests := []struct {
		name        string
		configFile  string
		expectError string
		validate    func(*testing.T, *EmitterConfig)
	}{
		{
			name: "valid config file",
			configFile: `
database:
  host: localhost
  user: testuser
  password: testpass
  dbname: testdb
  sslmode: require
nats:
  url: "nats://localhost:4222"
  stream_name: "TEST_STREAM"
  max_reconnects: 5
  reconnect_wait: "5s"
chain:
  websocket_url: "ws://localhost:8545"
  chain_id: "eip155:31337"
start_block: 1000
cursor_save_freq: 50
`,
			validate: func(t *testing.T, cfg *EmitterConfig) {
				assert.Equal(t, "require", cfg.Database.SSLMode)
				assert.Equal(t, "TEST_STREAM", cfg.NATS.StreamName)
				assert.Equal(t, 5, cfg.NATS.MaxReconnects)
				assert.Equal(t, 5*time.Second, cfg.NATS.ReconnectWait)
				assert.Equal(t, "ws://localhost:8545", cfg.Chain.WebSocketURL)
				require.NotNil(t, cfg.StartBlock)
				assert.Equal(t, uint64(1000), *cfg.StartBlock)
				assert.Equal(t, uint64(50), cfg.CursorSaveFreq)
				assert.Equal(t, 5*time.Second, cfg.CursorSaveDelay)
			},
		},
		{
			name: "config with defaults",
			configFile: `
database:
  host: localhost
nats:
  url: "nats://localhost:4222"
chain:
  websocket_url: "ws://localhost:8545"
`,
			validate: func(t *testing.T, cfg *EmitterConfig) {
				assert.Equal(t, 5432, cfg.Database.Port)
				assert.Equal(t, "disable", cfg.Database.SSLMode)
				assert.Equal(t, 10, cfg.NATS.MaxReconnects)
				assert.Equal(t, "2s", cfg.NATS.ReconnectWait.String())
				assert.Equal(t, "LEDGER_EVENTS", cfg.NATS.StreamName)
				assert.Equal(t, 2*time.Minute, cfg.NATS.DuplicateWindow)
				assert.True(t, cfg.NATS.EnsureStream)
				assert.Nil(t, cfg.StartBlock)
				assert.Equal(t, uint64(10), cfg.CursorSaveFreq)
			},
		},
		{
			name: "missing websocket url",
			configFile: `
database:
  host: localhost
nats:
  url: "nats://localhost:4222"
`,
			expectError: "chain.websocket_url is required",
		},
		{
			name: "missing database host",
			configFile: `
nats:
  url: "nats://localhost:4222"
chain:
  websocket_url: "ws://localhost:8545"
`,
			expectError: "database.host is required",
		},
		{
			name: "missing nats url",
			configFile: `
database:
  host: localhost
chain:
  websocket_url: "ws://localhost:8545"
`,
			expectError: "nats.url is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadEmitterConfig(writeConfig(t, tt.configFile), "")

			if tt.expectError != "" {
				assert.EqualError(t, err, tt.expectError)
				assert.Nil(t, cfg)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)
			tt.validate(t, cfg)
		})
	}
}

func TestLoadNotifierConfig(t *testing.T) {
	tests := []struct {
		name        string
		configFile  string
		expectError string
		validate    func(*testing.T, *NotifierConfig)
	}{
		{
			name: "valid config file",
			configFile: `
nats:
  url: "nats://localhost:4222"
endpoints:
  - url: "https://hooks.example.com/ledger"
    secret: "s3cret"
    event_types: ["batch.transferred"]
  - url: "https://audit.example.com/ledger"
    secret: "other"
http_timeout: "3s"
`,
			validate: func(t *testing.T, cfg *NotifierConfig) {
				require.Len(t, cfg.Endpoints, 2)
				assert.Equal(t, "https://hooks.example.com/ledger", cfg.Endpoints[0].URL)
				assert.Equal(t, []string{"batch.transferred"}, cfg.Endpoints[0].EventTypes)
				assert.Empty(t, cfg.Endpoints[1].EventTypes)
				assert.Equal(t, 3*time.Second, cfg.HTTPTimeout)
				assert.Equal(t, time.Minute, cfg.RetryTimeout)
				assert.Equal(t, "webhook-notifier", cfg.NATS.ConsumerName)
				assert.Equal(t, 5, cfg.NATS.MaxDeliver)
				assert.Equal(t, 2*time.Minute, cfg.NATS.AckWait)
			},
		},
		{
			name: "missing nats url",
			configFile: `
endpoints:
  - url: "https://hooks.example.com/ledger"
    secret: "s3cret"
`,
			expectError: "nats.url is required",
		},
		{
			name: "no endpoints",
			configFile: `
nats:
  url: "nats://localhost:4222"
`,
			expectError: "at least one endpoint is required",
		},
		{
			name: "endpoint without secret",
			configFile: `
nats:
  url: "nats://localhost:4222"
endpoints:
  - url: "https://hooks.example.com/ledger"
`,
			expectError: "endpoints[0].secret is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadNotifierConfig(writeConfig(t, tt.configFile), "")

			if tt.expectError != "" {
				assert.EqualError(t, err, tt.expectError)
				assert.Nil(t, cfg)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)
			tt.validate(t, cfg)
		})
	}
}

func TestLoadCLIConfig(t *testing.T) {
	cfg, err := LoadCLIConfig(writeConfig(t, `
chain:
  rpc_url: "http://127.0.0.1:8545"
  deployments_path: "/etc/batch-ledger/deployments.json"
ipfs:
  provider: local
signer:
  private_key: "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
`), "")
	require.NoError(t, err)

	assert.Equal(t, "/etc/batch-ledger/deployments.json", cfg.Chain.DeploymentsPath)
	assert.Equal(t, "local", cfg.IPFS.Provider)
	assert.True(t, cfg.Signer.Configured())
	assert.Equal(t, "LEDGER_EVENTS", cfg.NATS.StreamName)
	assert.Equal(t, "batchctl", cfg.NATS.ConnectionName)
	assert.Equal(t, 8, cfg.Client.ScanConcurrency)
	assert.Empty(t, cfg.Database.Host)
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	cfg, err := LoadCLIConfig(filepath.Join(t.TempDir(), "nonexistent.yaml"), "")
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	tests := []struct {
		name     string
		config   DatabaseConfig
		expected string
	}{
		{
			name: "complete config",
			config: DatabaseConfig{
				Host:     "localhost",
				Port:     5432,
				User:     "testuser",
				Password: "testpass",
				DBName:   "testdb",
				SSLMode:  "require",
			},
			expected: "host=localhost port=5432 user=testuser password=testpass dbname=testdb sslmode=require",
		},
		{
			name: "with special characters in password",
			config: DatabaseConfig{
				Host:     "localhost",
				Port:     5432,
				User:     "testuser",
				Password: "p@ssw0rd!",
				DBName:   "testdb",
				SSLMode:  "disable",
			},
			expected: "host=localhost port=5432 user=testuser password=p@ssw0rd! dbname=testdb sslmode=disable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dsn := tt.config.DSN()
			assert.Equal(t, tt.expected, dsn)
		})
	}
}

func TestConfigWithEnvironmentVariables(t *testing.T) {
	tmpDir := t.TempDir()

	// Create temporary directory for env files
	envDir := filepath.Join(tmpDir, "env")
	err := os.MkdirAll(envDir, 0750)
	require.NoError(t, err)

	// godotenv sets process variables, register them so they are restored after the test
	for _, key := range []string{
		"BATCH_LEDGER_DEBUG",
		"BATCH_LEDGER_DATABASE_HOST",
		"BATCH_LEDGER_DATABASE_PORT",
		"BATCH_LEDGER_CHAIN_RPC_URL",
		"BATCH_LEDGER_SIGNER_PRIVATE_KEY",
	} {
		t.Setenv(key, "")
	}

	envFile := filepath.Join(envDir, ".env")
	envContent := `BATCH_LEDGER_DEBUG=true
BATCH_LEDGER_DATABASE_HOST=env-host
BATCH_LEDGER_DATABASE_PORT=6432
BATCH_LEDGER_CHAIN_RPC_URL=http://env-node:8545
`
	err = os.WriteFile(envFile, []byte(envContent), 0600)
	require.NoError(t, err)

	// per-service file overrides the shared one
	serviceEnvFile := filepath.Join(envDir, ".env.api.local")
	err = os.WriteFile(serviceEnvFile, []byte("BATCH_LEDGER_SIGNER_PRIVATE_KEY=0xabc\n"), 0600)
	require.NoError(t, err)

	configPath := writeConfig(t, `
debug: false
database:
  host: file-host
  port: 5432
chain:
  rpc_url: "http://file-node:8545"
`)

	cfg, err := LoadAPIConfig(configPath, envDir)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.True(t, cfg.Debug)
	assert.Equal(t, "env-host", cfg.Database.Host)
	assert.Equal(t, 6432, cfg.Database.Port)
	assert.Equal(t, "http://env-node:8545", cfg.Chain.RPCURL)
	assert.Equal(t, "0xabc", cfg.Signer.PrivateKey)
}
