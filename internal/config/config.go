package config

import (
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gftj/tipjar-go/internal/constants"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the tip jar engine
type Config struct {
	RPC      RPCConfig      `yaml:"rpc"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Feed     FeedConfig     `yaml:"feed"`
	Retry    RetryConfig    `yaml:"retry"`
	Contract ContractConfig `yaml:"contract"`
	Wallet   WalletConfig   `yaml:"wallet"`
	Oracle   OracleConfig   `yaml:"oracle"`
	Identity IdentityConfig `yaml:"identity"`
	API      APIConfig      `yaml:"api"`
}

// RPCConfig holds RPC client configuration
type RPCConfig struct {
	Endpoint string        `yaml:"endpoint"`
	Timeout  time.Duration `yaml:"timeout"`
	// RateLimit is the client-side request rate in req/s; 0 disables throttling
	RateLimit float64 `yaml:"rate_limit"`
	ChainID   uint64  `yaml:"chain_id"`
	ChainName string  `yaml:"chain_name"`
}

// DatabaseConfig holds local store configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// FeedConfig holds event feed scanner configuration
type FeedConfig struct {
	// Window is the initial block range per log query
	Window uint64 `yaml:"window"`
	// MaxChunks bounds range queries per scan
	MaxChunks int `yaml:"max_chunks"`
	// Cap is the maximum number of tips a scan returns
	Cap int `yaml:"cap"`
	// RefreshInterval drives the background poller
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

// RetryConfig holds the shared retry policy for RPC calls
type RetryConfig struct {
	Attempts   int           `yaml:"attempts"`
	Delay      time.Duration `yaml:"delay"`
	BackoffCap time.Duration `yaml:"backoff_cap"`
}

// ContractConfig holds the deployed contract addresses
type ContractConfig struct {
	// FactoryAddress is the jar factory contract; empty means creation is unavailable
	FactoryAddress string `yaml:"factory_address"`
}

// WalletConfig holds signing configuration.
// The private key is only ever read from the environment, never from file.
type WalletConfig struct {
	PrivateKey string `yaml:"-"`
	// SpendCapWei aborts jar creation when the estimated total cost exceeds it; "0" disables
	SpendCapWei string `yaml:"spend_cap_wei"`
	// MaxGasPriceWei is the cap baked into newly created jars
	MaxGasPriceWei string `yaml:"max_gas_price_wei"`
}

// OracleConfig holds price and gas oracle configuration
type OracleConfig struct {
	PriceURL             string        `yaml:"price_url"`
	PriceRefreshInterval time.Duration `yaml:"price_refresh_interval"`
	GasRefreshInterval   time.Duration `yaml:"gas_refresh_interval"`
}

// IdentityConfig holds name resolution configuration
type IdentityConfig struct {
	// Endpoint is the mainnet RPC used for reverse name lookups; empty disables resolution
	Endpoint string `yaml:"endpoint"`
	Workers  int    `yaml:"workers"`
	// BatchLimit caps unique addresses resolved per feed refresh
	BatchLimit int `yaml:"batch_limit"`
}

// APIConfig holds API server configuration
type APIConfig struct {
	Enabled         bool     `yaml:"enabled"`
	Host            string   `yaml:"host"`
	Port            int      `yaml:"port"`
	EnableGraphQL   bool     `yaml:"enable_graphql"`
	EnableWebSocket bool     `yaml:"enable_websocket"`
	EnableCORS      bool     `yaml:"enable_cors"`
	AllowedOrigins  []string `yaml:"allowed_origins"`
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults sets default values for the configuration
func (c *Config) SetDefaults() {
	if c.RPC.Timeout == 0 {
		c.RPC.Timeout = constants.DefaultRPCTimeout
	}
	if c.RPC.RateLimit == 0 {
		c.RPC.RateLimit = constants.DefaultRPCRateLimit
	}
	if c.RPC.ChainID == 0 {
		c.RPC.ChainID = constants.DefaultChainID
	}
	if c.RPC.ChainName == "" {
		c.RPC.ChainName = constants.DefaultChainName
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}

	if c.Feed.Window == 0 {
		c.Feed.Window = constants.DefaultScanWindow
	}
	if c.Feed.MaxChunks == 0 {
		c.Feed.MaxChunks = constants.DefaultMaxChunks
	}
	if c.Feed.Cap == 0 {
		c.Feed.Cap = constants.DefaultFeedCap
	}
	if c.Feed.RefreshInterval == 0 {
		c.Feed.RefreshInterval = constants.DefaultFeedRefreshInterval
	}

	if c.Retry.Attempts == 0 {
		c.Retry.Attempts = constants.DefaultRetryAttempts
	}
	if c.Retry.Delay == 0 {
		c.Retry.Delay = constants.DefaultRetryDelay
	}
	if c.Retry.BackoffCap == 0 {
		c.Retry.BackoffCap = constants.DefaultBackoffCap
	}

	if c.Oracle.PriceURL == "" {
		c.Oracle.PriceURL = constants.DefaultPriceURL
	}
	if c.Oracle.PriceRefreshInterval == 0 {
		c.Oracle.PriceRefreshInterval = constants.DefaultPriceRefreshInterval
	}
	if c.Oracle.GasRefreshInterval == 0 {
		c.Oracle.GasRefreshInterval = constants.DefaultGasRefreshInterval
	}

	if c.Identity.Workers == 0 {
		c.Identity.Workers = constants.DefaultResolverWorkers
	}
	if c.Identity.BatchLimit == 0 {
		c.Identity.BatchLimit = constants.DefaultResolverBatch
	}

	if c.API.Host == "" {
		c.API.Host = constants.DefaultAPIHost
	}
	if c.API.Port == 0 {
		c.API.Port = constants.DefaultAPIPort
	}
	if c.API.AllowedOrigins == nil {
		c.API.AllowedOrigins = []string{"*"}
	}
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables take precedence over file configuration.
func (c *Config) LoadFromEnv() error {
	if endpoint := os.Getenv("TIPJAR_RPC_ENDPOINT"); endpoint != "" {
		c.RPC.Endpoint = endpoint
	}
	if timeout := os.Getenv("TIPJAR_RPC_TIMEOUT"); timeout != "" {
		duration, err := time.ParseDuration(timeout)
		if err != nil {
			return fmt.Errorf("invalid TIPJAR_RPC_TIMEOUT: %w", err)
		}
		c.RPC.Timeout = duration
	}
	if rateLimit := os.Getenv("TIPJAR_RPC_RATE_LIMIT"); rateLimit != "" {
		val, err := strconv.ParseFloat(rateLimit, 64)
		if err != nil {
			return fmt.Errorf("invalid TIPJAR_RPC_RATE_LIMIT: %w", err)
		}
		c.RPC.RateLimit = val
	}
	if chainID := os.Getenv("TIPJAR_CHAIN_ID"); chainID != "" {
		val, err := strconv.ParseUint(chainID, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid TIPJAR_CHAIN_ID: %w", err)
		}
		c.RPC.ChainID = val
	}
	if chainName := os.Getenv("TIPJAR_CHAIN_NAME"); chainName != "" {
		c.RPC.ChainName = chainName
	}

	if path := os.Getenv("TIPJAR_DB_PATH"); path != "" {
		c.Database.Path = path
	}

	if level := os.Getenv("TIPJAR_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	if format := os.Getenv("TIPJAR_LOG_FORMAT"); format != "" {
		c.Log.Format = format
	}

	if window := os.Getenv("TIPJAR_FEED_WINDOW"); window != "" {
		val, err := strconv.ParseUint(window, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid TIPJAR_FEED_WINDOW: %w", err)
		}
		c.Feed.Window = val
	}
	if maxChunks := os.Getenv("TIPJAR_FEED_MAX_CHUNKS"); maxChunks != "" {
		val, err := strconv.Atoi(maxChunks)
		if err != nil {
			return fmt.Errorf("invalid TIPJAR_FEED_MAX_CHUNKS: %w", err)
		}
		c.Feed.MaxChunks = val
	}
	if feedCap := os.Getenv("TIPJAR_FEED_CAP"); feedCap != "" {
		val, err := strconv.Atoi(feedCap)
		if err != nil {
			return fmt.Errorf("invalid TIPJAR_FEED_CAP: %w", err)
		}
		c.Feed.Cap = val
	}
	if refresh := os.Getenv("TIPJAR_FEED_REFRESH_INTERVAL"); refresh != "" {
		duration, err := time.ParseDuration(refresh)
		if err != nil {
			return fmt.Errorf("invalid TIPJAR_FEED_REFRESH_INTERVAL: %w", err)
		}
		c.Feed.RefreshInterval = duration
	}

	if factory := os.Getenv("TIPJAR_FACTORY_ADDRESS"); factory != "" {
		c.Contract.FactoryAddress = factory
	}

	// Signing key comes from the environment only
	if key := os.Getenv("TIPJAR_PRIVATE_KEY"); key != "" {
		c.Wallet.PrivateKey = key
	}
	if spendCap := os.Getenv("TIPJAR_SPEND_CAP_WEI"); spendCap != "" {
		c.Wallet.SpendCapWei = spendCap
	}
	if maxGas := os.Getenv("TIPJAR_MAX_GAS_PRICE_WEI"); maxGas != "" {
		c.Wallet.MaxGasPriceWei = maxGas
	}

	if priceURL := os.Getenv("TIPJAR_PRICE_URL"); priceURL != "" {
		c.Oracle.PriceURL = priceURL
	}

	if ensEndpoint := os.Getenv("TIPJAR_ENS_ENDPOINT"); ensEndpoint != "" {
		c.Identity.Endpoint = ensEndpoint
	}

	if enabled := os.Getenv("TIPJAR_API_ENABLED"); enabled != "" {
		val, err := strconv.ParseBool(enabled)
		if err != nil {
			return fmt.Errorf("invalid TIPJAR_API_ENABLED: %w", err)
		}
		c.API.Enabled = val
	}
	if host := os.Getenv("TIPJAR_API_HOST"); host != "" {
		c.API.Host = host
	}
	if port := os.Getenv("TIPJAR_API_PORT"); port != "" {
		val, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid TIPJAR_API_PORT: %w", err)
		}
		c.API.Port = val
	}
	if enableGraphQL := os.Getenv("TIPJAR_API_GRAPHQL"); enableGraphQL != "" {
		val, err := strconv.ParseBool(enableGraphQL)
		if err != nil {
			return fmt.Errorf("invalid TIPJAR_API_GRAPHQL: %w", err)
		}
		c.API.EnableGraphQL = val
	}
	if enableWebSocket := os.Getenv("TIPJAR_API_WEBSOCKET"); enableWebSocket != "" {
		val, err := strconv.ParseBool(enableWebSocket)
		if err != nil {
			return fmt.Errorf("invalid TIPJAR_API_WEBSOCKET: %w", err)
		}
		c.API.EnableWebSocket = val
	}
	if enableCORS := os.Getenv("TIPJAR_API_CORS_ENABLED"); enableCORS != "" {
		val, err := strconv.ParseBool(enableCORS)
		if err != nil {
			return fmt.Errorf("invalid TIPJAR_API_CORS_ENABLED: %w", err)
		}
		c.API.EnableCORS = val
	}
	if allowedOrigins := os.Getenv("TIPJAR_API_CORS_ALLOWED_ORIGINS"); allowedOrigins != "" {
		origins := make([]string, 0)
		for _, origin := range strings.Split(allowedOrigins, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				origins = append(origins, origin)
			}
		}
		if len(origins) == 0 {
			origins = []string{"*"}
		}
		c.API.AllowedOrigins = origins
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.RPC.Endpoint == "" {
		return fmt.Errorf("RPC endpoint is required")
	}
	if c.RPC.Timeout <= 0 {
		return fmt.Errorf("RPC timeout must be positive")
	}
	if c.RPC.ChainID == 0 {
		return fmt.Errorf("chain ID is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.Log.Level] {
		return fmt.Errorf("invalid log level %q, must be one of: debug, info, warn, error", c.Log.Level)
	}

	validLogFormats := map[string]bool{
		"json":    true,
		"console": true,
	}
	if !validLogFormats[c.Log.Format] {
		return fmt.Errorf("invalid log format %q, must be one of: json, console", c.Log.Format)
	}

	if c.Feed.Window == 0 {
		return fmt.Errorf("feed window must be positive")
	}
	if c.Feed.MaxChunks <= 0 {
		return fmt.Errorf("feed max chunks must be positive")
	}
	if c.Feed.Cap <= 0 {
		return fmt.Errorf("feed cap must be positive")
	}

	if c.Retry.Attempts <= 0 {
		return fmt.Errorf("retry attempts must be positive")
	}
	if c.Retry.Delay <= 0 {
		return fmt.Errorf("retry delay must be positive")
	}

	if c.Contract.FactoryAddress != "" && !isHexAddress(c.Contract.FactoryAddress) {
		return fmt.Errorf("invalid factory address %q", c.Contract.FactoryAddress)
	}

	if c.Wallet.SpendCapWei != "" {
		if _, ok := new(big.Int).SetString(c.Wallet.SpendCapWei, 10); !ok {
			return fmt.Errorf("invalid spend cap %q, must be a decimal wei amount", c.Wallet.SpendCapWei)
		}
	}
	if c.Wallet.MaxGasPriceWei != "" {
		if _, ok := new(big.Int).SetString(c.Wallet.MaxGasPriceWei, 10); !ok {
			return fmt.Errorf("invalid max gas price %q, must be a decimal wei amount", c.Wallet.MaxGasPriceWei)
		}
	}

	if c.Identity.Workers <= 0 {
		return fmt.Errorf("identity workers must be positive")
	}
	if c.Identity.BatchLimit <= 0 {
		return fmt.Errorf("identity batch limit must be positive")
	}

	return nil
}

// SpendCap returns the configured spend cap as a big.Int, or nil when disabled
func (c *Config) SpendCap() *big.Int {
	if c.Wallet.SpendCapWei == "" || c.Wallet.SpendCapWei == "0" {
		return nil
	}
	cap, _ := new(big.Int).SetString(c.Wallet.SpendCapWei, 10)
	return cap
}

// MaxGasPrice returns the configured jar gas price cap as a big.Int, or nil when unset
func (c *Config) MaxGasPrice() *big.Int {
	if c.Wallet.MaxGasPriceWei == "" {
		return nil
	}
	price, _ := new(big.Int).SetString(c.Wallet.MaxGasPriceWei, 10)
	return price
}

func isHexAddress(s string) bool {
	if !strings.HasPrefix(s, "0x") || len(s) != 42 {
		return false
	}
	for _, r := range s[2:] {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

// Load is a convenience method that loads configuration in the following order:
// 1. Load from file (if provided)
// 2. Load from environment variables (override file)
// 3. Set defaults for any missing values
// 4. Validate
func Load(configFile string) (*Config, error) {
	cfg := &Config{}

	if configFile != "" {
		if err := cfg.LoadFromFile(configFile); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
