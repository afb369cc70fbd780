package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/feral-file/batch-ledger/internal/domain"
)

// BaseConfig holds base configuration
type BaseConfig struct {
	Debug     bool   `mapstructure:"debug"`
	SentryDSN string `mapstructure:"sentry_dsn"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`     // Maximum number of open connections to the database
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`     // Maximum number of idle connections in the pool
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`  // Maximum amount of time a connection may be reused (e.g., "5m", "1h")
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"` // Maximum amount of time a connection may be idle (e.g., "10m", "30m")
}

// NATSConfig holds NATS JetStream configuration
type NATSConfig struct {
	URL             string        `mapstructure:"url"`
	StreamName      string        `mapstructure:"stream_name"`
	ConsumerName    string        `mapstructure:"consumer_name"`
	MaxReconnects   int           `mapstructure:"max_reconnects"`
	ReconnectWait   time.Duration `mapstructure:"reconnect_wait"`
	ConnectionName  string        `mapstructure:"connection_name"`
	AckWait         time.Duration `mapstructure:"ack_wait"`
	MaxDeliver      int           `mapstructure:"max_deliver"`
	DuplicateWindow time.Duration `mapstructure:"duplicate_window"`
	EnsureStream    bool          `mapstructure:"ensure_stream"`
}

// ChainConfig holds the connection to the ledger network
type ChainConfig struct {
	RPCURL       string `mapstructure:"rpc_url"`
	WebSocketURL string `mapstructure:"websocket_url"`
	// ChainID is the expected network, checked against the node when set
	ChainID         domain.Chain `mapstructure:"chain_id"`
	DeploymentsPath string       `mapstructure:"deployments_path"`
}

// IPFSConfig holds the metadata store configuration
type IPFSConfig struct {
	// Provider is either "pinata" or "local"
	Provider      string        `mapstructure:"provider"`
	PinningAPIURL string        `mapstructure:"pinning_api_url"`
	PinningJWT    string        `mapstructure:"pinning_jwt"`
	Gateways      []string      `mapstructure:"gateways"`
	ProbeGateways bool          `mapstructure:"probe_gateways"`
	HTTPTimeout   time.Duration `mapstructure:"http_timeout"`
	RetryFor      time.Duration `mapstructure:"retry_for"`
}

// CacheConfig holds the metadata cache configuration, Redis is used when an address is set
type CacheConfig struct {
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	Prefix        string        `mapstructure:"prefix"`
	TTL           time.Duration `mapstructure:"ttl"`
	MemoryEntries int           `mapstructure:"memory_entries"`
}

// SignerConfig holds the account used for state-changing calls
type SignerConfig struct {
	PrivateKey         string `mapstructure:"private_key"`
	KeystorePath       string `mapstructure:"keystore_path"`
	KeystorePassphrase string `mapstructure:"keystore_passphrase"`
}

// Configured reports whether a signing account is configured
func (c SignerConfig) Configured() bool {
	return c.PrivateKey != "" || c.KeystorePath != ""
}

// ClientConfig holds the client access layer tunables
type ClientConfig struct {
	CallTimeout         time.Duration `mapstructure:"call_timeout"`
	TxTimeout           time.Duration `mapstructure:"tx_timeout"`
	GasMarginPercent    uint64        `mapstructure:"gas_margin_percent"`
	ScanConcurrency     int           `mapstructure:"scan_concurrency"`
	ReceiptPollInterval time.Duration `mapstructure:"receipt_poll_interval"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	ReadTimeout    int      `mapstructure:"read_timeout"`  // in seconds
	WriteTimeout   int      `mapstructure:"write_timeout"` // in seconds
	IdleTimeout    int      `mapstructure:"idle_timeout"`  // in seconds
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Addr returns the listen address
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTPublicKey string   `mapstructure:"jwt_public_key"`
	APIKeys      []string `mapstructure:"api_keys"`
}

// RateLimitConfig limits write requests per caller, disabled when RequestsPerSecond is 0
type RateLimitConfig struct {
	RequestsPerSecond int    `mapstructure:"requests_per_second"`
	Burst             int    `mapstructure:"burst"`
	KeyPrefix         string `mapstructure:"key_prefix"`
}

// DevChainConfig holds the in-process chain settings of the ledger node
type DevChainConfig struct {
	ChainID          uint64        `mapstructure:"chain_id"`
	ContractAddress  string        `mapstructure:"contract_address"`
	BaseFeeGwei      uint64        `mapstructure:"base_fee_gwei"`
	GasTipCapGwei    uint64        `mapstructure:"gas_tip_cap_gwei"`
	SnapshotPath     string        `mapstructure:"snapshot_path"`
	SnapshotInterval time.Duration `mapstructure:"snapshot_interval"`
}

// NodeConfig holds configuration for ledger-node
type NodeConfig struct {
	BaseConfig `mapstructure:",squash"`
	Server     ServerConfig   `mapstructure:"server"`
	DevChain   DevChainConfig `mapstructure:"devchain"`
}

// APIConfig holds configuration for API server
type APIConfig struct {
	BaseConfig `mapstructure:",squash"`
	Server     ServerConfig    `mapstructure:"server"`
	Database   DatabaseConfig  `mapstructure:"database"`
	Chain      ChainConfig     `mapstructure:"chain"`
	IPFS       IPFSConfig      `mapstructure:"ipfs"`
	Cache      CacheConfig     `mapstructure:"cache"`
	Signer     SignerConfig    `mapstructure:"signer"`
	Client     ClientConfig    `mapstructure:"client"`
	Auth       AuthConfig      `mapstructure:"auth"`
	RateLimit  RateLimitConfig `mapstructure:"rate_limit"`
}

// EmitterConfig holds configuration for event-emitter
type EmitterConfig struct {
	BaseConfig      `mapstructure:",squash"`
	Database        DatabaseConfig `mapstructure:"database"`
	NATS            NATSConfig     `mapstructure:"nats"`
	Chain           ChainConfig    `mapstructure:"chain"`
	StartBlock      *uint64        `mapstructure:"start_block"` // overrides the deployment start block
	CursorSaveFreq  uint64         `mapstructure:"cursor_save_freq"`
	CursorSaveDelay time.Duration  `mapstructure:"cursor_save_delay"`
}

// CLIConfig holds configuration for batchctl
type CLIConfig struct {
	BaseConfig `mapstructure:",squash"`
	Database   DatabaseConfig `mapstructure:"database"` // optional, enables the metadata side index
	NATS       NATSConfig     `mapstructure:"nats"`
	Chain      ChainConfig    `mapstructure:"chain"`
	IPFS       IPFSConfig     `mapstructure:"ipfs"`
	Cache      CacheConfig    `mapstructure:"cache"`
	Signer     SignerConfig   `mapstructure:"signer"`
	Client     ClientConfig   `mapstructure:"client"`
}

// WebhookEndpoint is a receiver of signed ledger event notifications
type WebhookEndpoint struct {
	URL    string `mapstructure:"url"`
	Secret string `mapstructure:"secret"`
	// EventTypes filters deliveries, empty or "*" means every event
	EventTypes []string `mapstructure:"event_types"`
}

// NotifierConfig holds configuration for webhook-notifier
type NotifierConfig struct {
	BaseConfig   `mapstructure:",squash"`
	NATS         NATSConfig        `mapstructure:"nats"`
	Endpoints    []WebhookEndpoint `mapstructure:"endpoints"`
	HTTPTimeout  time.Duration     `mapstructure:"http_timeout"`
	RetryTimeout time.Duration     `mapstructure:"retry_timeout"`
}

// LoadNodeConfig loads configuration for ledger-node
func LoadNodeConfig(configFile string, envPath string) (*NodeConfig, error) {
	v := configureViper("ledger-node", configFile, envPath)

	// Set defaults
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8545)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("devchain.chain_id", 31337)
	v.SetDefault("devchain.contract_address", domain.DEFAULT_DEVNET_CONTRACT)
	v.SetDefault("devchain.base_fee_gwei", 1)
	v.SetDefault("devchain.gas_tip_cap_gwei", 1)
	v.SetDefault("devchain.snapshot_interval", "30s")

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg NodeConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.DevChain.ChainID == 0 {
		return nil, errors.New("devchain.chain_id is required")
	}

	return &cfg, nil
}

// LoadAPIConfig loads configuration for API server
func LoadAPIConfig(configFile string, envPath string) (*APIConfig, error) {
	v := configureViper("api", configFile, envPath)

	// Set defaults
	v.SetDefault("debug", false)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 180)
	v.SetDefault("server.idle_timeout", 120)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("rate_limit.requests_per_second", 2)
	v.SetDefault("rate_limit.burst", 5)
	v.SetDefault("rate_limit.key_prefix", "batch-ledger:ratelimit:")
	setDatabaseDefaults(v)
	setChainDefaults(v)
	setIPFSDefaults(v)
	setCacheDefaults(v)
	setClientDefaults(v)

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg APIConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Chain.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadEmitterConfig loads configuration for event-emitter
func LoadEmitterConfig(configFile string, envPath string) (*EmitterConfig, error) {
	v := configureViper("event-emitter", configFile, envPath)

	// Set defaults
	setDatabaseDefaults(v)
	setChainDefaults(v)
	v.SetDefault("nats.max_reconnects", 10)
	v.SetDefault("nats.reconnect_wait", "2s")
	v.SetDefault("nats.stream_name", "LEDGER_EVENTS")
	v.SetDefault("nats.connection_name", "event-emitter")
	v.SetDefault("nats.duplicate_window", "2m")
	v.SetDefault("nats.ensure_stream", true)
	v.SetDefault("cursor_save_freq", 10)
	v.SetDefault("cursor_save_delay", "5s")

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg EmitterConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Chain.validate(); err != nil {
		return nil, err
	}
	if cfg.Chain.WebSocketURL == "" {
		return nil, errors.New("chain.websocket_url is required")
	}
	if cfg.Database.Host == "" {
		return nil, errors.New("database.host is required")
	}
	if cfg.NATS.URL == "" {
		return nil, errors.New("nats.url is required")
	}

	return &cfg, nil
}

// LoadNotifierConfig loads configuration for webhook-notifier
func LoadNotifierConfig(configFile string, envPath string) (*NotifierConfig, error) {
	v := configureViper("webhook-notifier", configFile, envPath)

	// Set defaults
	v.SetDefault("nats.max_reconnects", 10)
	v.SetDefault("nats.reconnect_wait", "2s")
	v.SetDefault("nats.stream_name", "LEDGER_EVENTS")
	v.SetDefault("nats.consumer_name", "webhook-notifier")
	v.SetDefault("nats.connection_name", "webhook-notifier")
	v.SetDefault("nats.ack_wait", "2m")
	v.SetDefault("nats.max_deliver", 5)
	v.SetDefault("http_timeout", "10s")
	v.SetDefault("retry_timeout", "1m")

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg NotifierConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.NATS.URL == "" {
		return nil, errors.New("nats.url is required")
	}
	if len(cfg.Endpoints) == 0 {
		return nil, errors.New("at least one endpoint is required")
	}
	for i, e := range cfg.Endpoints {
		if e.URL == "" {
			return nil, fmt.Errorf("endpoints[%d].url is required", i)
		}
		if e.Secret == "" {
			return nil, fmt.Errorf("endpoints[%d].secret is required", i)
		}
	}

	return &cfg, nil
}

// LoadCLIConfig loads configuration for batchctl
func LoadCLIConfig(configFile string, envPath string) (*CLIConfig, error) {
	v := configureViper("batchctl", configFile, envPath)

	// Set defaults
	setDatabaseDefaults(v)
	setChainDefaults(v)
	setIPFSDefaults(v)
	setCacheDefaults(v)
	setClientDefaults(v)
	v.SetDefault("nats.stream_name", "LEDGER_EVENTS")
	v.SetDefault("nats.connection_name", "batchctl")
	v.SetDefault("nats.max_reconnects", 3)
	v.SetDefault("nats.reconnect_wait", "1s")

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg CLIConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Chain.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDatabaseDefaults(v *viper.Viper) {
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.conn_max_idle_time", "10m")
}

func setChainDefaults(v *viper.Viper) {
	v.SetDefault("chain.rpc_url", "http://127.0.0.1:8545")
	v.SetDefault("chain.deployments_path", "config/deployments.json")
}

func setIPFSDefaults(v *viper.Viper) {
	v.SetDefault("ipfs.provider", "pinata")
	v.SetDefault("ipfs.pinning_api_url", domain.DEFAULT_PINNING_API)
	v.SetDefault("ipfs.gateways", []string{domain.DEFAULT_IPFS_GATEWAY})
	v.SetDefault("ipfs.http_timeout", "30s")
	v.SetDefault("ipfs.retry_for", "1m")
}

func setCacheDefaults(v *viper.Viper) {
	v.SetDefault("cache.prefix", "batch-ledger:metadata:")
	v.SetDefault("cache.memory_entries", 1024)
}

func setClientDefaults(v *viper.Viper) {
	v.SetDefault("client.call_timeout", "15s")
	v.SetDefault("client.tx_timeout", "2m")
	v.SetDefault("client.gas_margin_percent", 20)
	v.SetDefault("client.scan_concurrency", 8)
	v.SetDefault("client.receipt_poll_interval", "500ms")
}

func (c ChainConfig) validate() error {
	if c.RPCURL == "" && c.WebSocketURL == "" {
		return errors.New("chain.rpc_url or chain.websocket_url is required")
	}
	if c.DeploymentsPath == "" {
		return errors.New("chain.deployments_path is required")
	}
	if c.ChainID != "" && !domain.IsValidChain(c.ChainID) {
		return fmt.Errorf("chain.chain_id %q is not a valid eip155 chain", c.ChainID)
	}
	return nil
}

// readConfig reads the config file, a missing file leaves environment variables and defaults
func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	return nil
}

// configureViper returns a viper instance with the config file and environment variables set
func configureViper(service string, configFile string, envPath string) *viper.Viper {
	v := viper.New()

	// Load environment variables
	loadEnv(envPath, service)

	// Set config file
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		// Search for config.yaml in multiple locations:
		// 1. Current directory
		v.AddConfigPath(".")
		// 2. Service-specific directory (e.g., cmd/api/, cmd/event-emitter/)
		v.AddConfigPath(fmt.Sprintf("cmd/%s/", service))
		// 3. Config directory
		v.AddConfigPath("config/")
	}

	// Set environment variables
	v.SetEnvPrefix("BATCH_LEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicitly bind all environment variables
	bindAllEnvVars(v)
	return v
}

// bindAllEnvVars explicitly binds all possible environment variables
// This is required for viper to map env vars to config struct fields when no config file exists
func bindAllEnvVars(v *viper.Viper) {
	commonKeys := []string{
		"debug",
		"sentry_dsn",
		// Database
		"database.host",
		"database.port",
		"database.user",
		"database.password",
		"database.dbname",
		"database.sslmode",
		"database.max_open_conns",
		"database.max_idle_conns",
		"database.conn_max_lifetime",
		"database.conn_max_idle_time",
		// NATS
		"nats.url",
		"nats.stream_name",
		"nats.consumer_name",
		"nats.max_reconnects",
		"nats.reconnect_wait",
		"nats.connection_name",
		"nats.ack_wait",
		"nats.max_deliver",
		"nats.duplicate_window",
		"nats.ensure_stream",
		// Chain
		"chain.rpc_url",
		"chain.websocket_url",
		"chain.chain_id",
		"chain.deployments_path",
		// IPFS
		"ipfs.provider",
		"ipfs.pinning_api_url",
		"ipfs.pinning_jwt",
		"ipfs.gateways",
		"ipfs.probe_gateways",
		"ipfs.http_timeout",
		"ipfs.retry_for",
		// Cache
		"cache.redis_addr",
		"cache.redis_password",
		"cache.redis_db",
		"cache.prefix",
		"cache.ttl",
		"cache.memory_entries",
		// Signer
		"signer.private_key",
		"signer.keystore_path",
		"signer.keystore_passphrase",
		// Client
		"client.call_timeout",
		"client.tx_timeout",
		"client.gas_margin_percent",
		"client.scan_concurrency",
		"client.receipt_poll_interval",
		// Server
		"server.host",
		"server.port",
		"server.read_timeout",
		"server.write_timeout",
		"server.idle_timeout",
		"server.allowed_origins",
		// Auth
		"auth.jwt_public_key",
		"auth.api_keys",
		// Dev chain
		"devchain.chain_id",
		"devchain.contract_address",
		"devchain.base_fee_gwei",
		"devchain.gas_tip_cap_gwei",
		"devchain.snapshot_path",
		"devchain.snapshot_interval",
		// Emitter specific
		"start_block",
		"cursor_save_freq",
		"cursor_save_delay",
	}

	for _, key := range commonKeys {
		_ = v.BindEnv(key)
	}
}

// loadEnv loads environment variables from the config directory
func loadEnv(envPath string, service string) {
	// Always try shared base first, then local, then optional per-service local.
	envFiles := []string{".env", ".env.local"}
	if service != "" {
		envFiles = append(envFiles, ".env."+service+".local")
	}

	// Default to config directory
	if envPath == "" {
		envPath = "config/"
	}

	for _, envFile := range envFiles {
		candidate := filepath.Join(envPath, envFile)
		_ = godotenv.Overload(candidate) // Overload lets later files override earlier ones
	}
}

// ChdirRepoRoot changes the current working directory to the repository root
func ChdirRepoRoot() {
	cwd, _ := os.Getwd()
	for range 5 {
		if _, err := os.Stat(filepath.Join(cwd, "config")); err == nil {
			_ = os.Chdir(cwd)
			return
		}
		cwd = filepath.Dir(cwd)
	}
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}
