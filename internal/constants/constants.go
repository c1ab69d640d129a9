package constants

import "time"

// API Server Constants
const (
	// DefaultAPIHost is the default API server host
	DefaultAPIHost = "localhost"

	// DefaultAPIPort is the default API server port
	DefaultAPIPort = 8080

	// DefaultReadTimeout is the default HTTP read timeout
	DefaultReadTimeout = 15 * time.Second

	// DefaultWriteTimeout is the default HTTP write timeout
	DefaultWriteTimeout = 15 * time.Second

	// DefaultIdleTimeout is the default HTTP idle timeout
	DefaultIdleTimeout = 60 * time.Second

	// DefaultShutdownTimeout is the default graceful shutdown timeout
	DefaultShutdownTimeout = 30 * time.Second

	// DefaultMaxHeaderBytes is the default maximum request header size (1 MB)
	DefaultMaxHeaderBytes = 1 << 20 // 1 MB
)

// API Paths
const (
	// DefaultGraphQLPath is the default GraphQL endpoint path
	DefaultGraphQLPath = "/graphql"

	// DefaultWebSocketPath is the default WebSocket endpoint path
	DefaultWebSocketPath = "/ws"
)

// Feed Scanner Constants
const (
	// DefaultScanWindow is the initial block window for one log query.
	// Large enough to find activity on a quiet jar, small enough to stay
	// under free-tier provider limits.
	DefaultScanWindow uint64 = 15_000

	// MinScanWindow is the floor the window shrinks to under rate limiting
	MinScanWindow uint64 = 1

	// DefaultMaxChunks bounds the number of range queries per scan
	DefaultMaxChunks = 6

	// DefaultFeedCap is the maximum number of tip records a scan returns
	DefaultFeedCap = 20

	// DefaultFeedRefreshInterval is the background feed refresh interval
	DefaultFeedRefreshInterval = 30 * time.Second

	// MaxTipMessageRunes caps sanitized tip messages
	MaxTipMessageRunes = 240
)

// Retry and Backoff Constants
const (
	// DefaultRetryAttempts is the default number of attempts for a fallible RPC call
	DefaultRetryAttempts = 3

	// DefaultRetryDelay is the base delay between linear retries
	DefaultRetryDelay = 500 * time.Millisecond

	// DefaultBackoffCap is the ceiling for exponential backoff sleeps
	DefaultBackoffCap = 3 * time.Second
)

// Orchestrator Constants
const (
	// NetworkSwitchAttempts is how many times to poll the wallet after
	// requesting a network switch
	NetworkSwitchAttempts = 6

	// NetworkSwitchInterval is the poll interval while waiting for a switch
	NetworkSwitchInterval = 250 * time.Millisecond

	// ReceiptPollInterval is the poll interval while waiting for a receipt
	ReceiptPollInterval = 2 * time.Second

	// ReceiptPollAttempts bounds receipt polling per transaction
	ReceiptPollAttempts = 60

	// OwnerCacheTTL is how long a cached jar owner read stays valid
	OwnerCacheTTL = 5 * time.Minute
)

// Oracle Constants
const (
	// DefaultPriceRefreshInterval is how often the reference price is fetched
	DefaultPriceRefreshInterval = 60 * time.Second

	// DefaultGasRefreshInterval is how often the safe gas price is fetched
	DefaultGasRefreshInterval = 20 * time.Second

	// FallbackGasPriceWei is the conservative floor substituted when the
	// provider reports a zero or failing gas price (1.5 gwei)
	FallbackGasPriceWei = 1_500_000_000

	// DefaultPriceURL is the default reference price endpoint
	DefaultPriceURL = "https://api.coingecko.com/api/v3/simple/price?ids=ethereum&vs_currencies=usd"
)

// Identity Resolver Constants
const (
	// DefaultResolverWorkers is the fixed worker pool size for name resolution
	DefaultResolverWorkers = 3

	// DefaultResolverBatch caps unique addresses resolved per feed refresh
	DefaultResolverBatch = 25
)

// Chain Constants
const (
	// DefaultChainID is Base mainnet
	DefaultChainID uint64 = 8453

	// DefaultChainName labels the default chain in user-facing messages
	DefaultChainName = "Base Mainnet"

	// DefaultRPCTimeout is the per-call RPC timeout
	DefaultRPCTimeout = 30 * time.Second

	// DefaultRPCRateLimit is the client-side RPC request rate (req/s); 0 disables
	DefaultRPCRateLimit = 10

	// WeiPerGwei converts gwei to wei
	WeiPerGwei = 1_000_000_000
)
