package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/gftj/tipjar-go/api"
	"github.com/gftj/tipjar-go/client"
	"github.com/gftj/tipjar-go/feed"
	"github.com/gftj/tipjar-go/identity"
	"github.com/gftj/tipjar-go/internal/config"
	"github.com/gftj/tipjar-go/internal/logger"
	"github.com/gftj/tipjar-go/jars"
	"github.com/gftj/tipjar-go/oracle"
	"github.com/gftj/tipjar-go/retry"
	"github.com/gftj/tipjar-go/storage"
	"github.com/gftj/tipjar-go/wallet"
)

var (
	// Version information (injected at build time)
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	var (
		configFile  = flag.String("config", "", "Path to configuration file (YAML)")
		showVersion = flag.Bool("version", false, "Show version information and exit")
		rpcEndpoint = flag.String("rpc", "", "Ethereum RPC endpoint URL")
		dbPath      = flag.String("db", "", "Database path")
		factoryAddr = flag.String("factory", "", "Jar factory contract address")
		logLevel    = flag.String("log-level", "", "Log level (debug, info, warn, error)")
		logFormat   = flag.String("log-format", "", "Log format (json, console)")

		enableAPI       = flag.Bool("api", false, "Enable API server")
		apiHost         = flag.String("api-host", "", "API server host")
		apiPort         = flag.Int("api-port", 0, "API server port")
		enableGraphQL   = flag.Bool("graphql", false, "Enable GraphQL API")
		enableWebSocket = flag.Bool("websocket", false, "Enable WebSocket API")
	)

	flag.Parse()

	if *showVersion {
		fmt.Printf("tipjar-go version %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", buildTime)
		os.Exit(0)
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	applyFlags(cfg, *rpcEndpoint, *dbPath, *factoryAddr, *logLevel, *logFormat)
	applyAPIFlags(cfg, *enableAPI, *apiHost, *apiPort, *enableGraphQL, *enableWebSocket)

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting tipjar engine",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("build_time", buildTime),
		zap.String("rpc_endpoint", cfg.RPC.Endpoint),
		zap.String("db_path", cfg.Database.Path),
		zap.Uint64("chain_id", cfg.RPC.ChainID),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	ethClient, err := client.NewClient(&client.Config{
		Endpoint:  cfg.RPC.Endpoint,
		Timeout:   cfg.RPC.Timeout,
		RateLimit: cfg.RPC.RateLimit,
		Logger:    log,
	})
	if err != nil {
		log.Fatal("Failed to create Ethereum client", zap.Error(err))
	}
	defer ethClient.Close()

	chainID, err := ethClient.ChainID(ctx)
	if err != nil {
		log.Fatal("Failed to get chain ID", zap.Error(err))
	}
	if chainID.Uint64() != cfg.RPC.ChainID {
		log.Fatal("RPC endpoint is on the wrong chain",
			zap.Uint64("expected", cfg.RPC.ChainID),
			zap.String("actual", chainID.String()),
		)
	}
	log.Info("Connected to chain",
		zap.String("chain_id", chainID.String()),
		zap.String("chain_name", cfg.RPC.ChainName),
	)

	store, err := storage.NewPebbleStore(cfg.Database.Path)
	if err != nil {
		log.Fatal("Failed to open storage", zap.Error(err))
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("Failed to close storage", zap.Error(err))
		}
	}()
	log.Info("Storage initialized", zap.String("path", cfg.Database.Path))

	registry, err := jars.NewRegistry(store)
	if err != nil {
		log.Fatal("Failed to create jar registry", zap.Error(err))
	}

	if cfg.Wallet.PrivateKey == "" {
		log.Fatal("Signing key is required (set TIPJAR_PRIVATE_KEY)")
	}
	signer, err := wallet.NewKeyWallet(cfg.Wallet.PrivateKey, ethClient, log)
	if err != nil {
		log.Fatal("Failed to create wallet", zap.Error(err))
	}
	log.Info("Wallet ready", zap.String("address", signer.Address().Hex()))

	jarService, err := jars.NewService(jars.Config{
		ChainID:     cfg.RPC.ChainID,
		ChainName:   cfg.RPC.ChainName,
		Factory:     common.HexToAddress(cfg.Contract.FactoryAddress),
		SpendCap:    cfg.SpendCap(),
		MaxGasPrice: cfg.MaxGasPrice(),
		Retry:       retryPolicy(cfg, log),
		Logger:      log,
	}, ethClient, signer, store, registry)
	if err != nil {
		log.Fatal("Failed to create jar service", zap.Error(err))
	}

	feedManager, err := feed.NewManager(feed.ManagerConfig{
		Window:          cfg.Feed.Window,
		MaxChunks:       cfg.Feed.MaxChunks,
		Cap:             cfg.Feed.Cap,
		RefreshInterval: cfg.Feed.RefreshInterval,
		Retry:           retryPolicy(cfg, log),
		Logger:          log,
		Metrics:         feed.NewMetrics(prometheus.DefaultRegisterer),
	}, ethClient)
	if err != nil {
		log.Fatal("Failed to create feed manager", zap.Error(err))
	}
	defer feedManager.Stop()

	priceFeed := oracle.NewPriceFeed(oracle.PriceConfig{
		URL:             cfg.Oracle.PriceURL,
		RefreshInterval: cfg.Oracle.PriceRefreshInterval,
		Logger:          log,
	}, store)
	go priceFeed.Run(ctx)

	gasFeed := oracle.NewGasFeed(oracle.GasConfig{
		RefreshInterval: cfg.Oracle.GasRefreshInterval,
		Logger:          log,
	}, ethClient)
	go gasFeed.Run(ctx)

	resolver := buildResolver(cfg, store, log)

	var apiServer *api.Server
	if cfg.API.Enabled {
		apiConfig := &api.Config{
			Host:            cfg.API.Host,
			Port:            cfg.API.Port,
			EnableGraphQL:   cfg.API.EnableGraphQL,
			EnableWebSocket: cfg.API.EnableWebSocket,
			EnableCORS:      cfg.API.EnableCORS,
			AllowedOrigins:  cfg.API.AllowedOrigins,
		}

		apiServer, err = api.NewServer(apiConfig, log, api.Deps{
			Feed:     feedManager,
			Jars:     jarService,
			Registry: registry,
			Price:    priceFeed,
			Gas:      gasFeed,
			Identity: resolver,
		})
		if err != nil {
			log.Fatal("Failed to create API server", zap.Error(err))
		}

		go func() {
			if err := apiServer.Start(); err != nil {
				log.Error("API server failed", zap.Error(err))
			}
		}()
	}

	sig := <-sigChan
	log.Info("Received shutdown signal", zap.String("signal", sig.String()))
	cancel()

	log.Info("Shutting down gracefully...")

	if apiServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := apiServer.Stop(shutdownCtx); err != nil {
			log.Error("Failed to stop API server gracefully", zap.Error(err))
		}
	}

	log.Info("Tipjar engine stopped")
}

// loadConfig loads configuration from file and environment variables
func loadConfig(configFile string) (*config.Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}

// loadDotEnv loads environment variables from a .env file if it exists.
func loadDotEnv() error {
	info, err := os.Stat(".env")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to stat .env: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf(".env exists but is a directory")
	}
	if err := godotenv.Load(".env"); err != nil {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// applyFlags applies command-line flags to configuration
func applyFlags(cfg *config.Config, rpcEndpoint, dbPath, factoryAddr, logLevel, logFormat string) {
	if rpcEndpoint != "" {
		cfg.RPC.Endpoint = rpcEndpoint
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}
	if factoryAddr != "" {
		cfg.Contract.FactoryAddress = factoryAddr
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
}

// applyAPIFlags applies API-related command-line flags to configuration
func applyAPIFlags(cfg *config.Config, enableAPI bool, apiHost string, apiPort int, enableGraphQL, enableWebSocket bool) {
	if enableAPI {
		cfg.API.Enabled = true
	}
	if apiHost != "" {
		cfg.API.Host = apiHost
	}
	if apiPort > 0 {
		cfg.API.Port = apiPort
	}
	if enableGraphQL {
		cfg.API.EnableGraphQL = true
	}
	if enableWebSocket {
		cfg.API.EnableWebSocket = true
	}
}

func retryPolicy(cfg *config.Config, log *zap.Logger) retry.Policy {
	return retry.Policy{
		Attempts:   cfg.Retry.Attempts,
		Delay:      cfg.Retry.Delay,
		BackoffCap: cfg.Retry.BackoffCap,
		Logger:     log,
	}
}

// buildResolver wires the optional name resolver. It needs a separate
// mainnet connection; the tipping chain has no name registry.
func buildResolver(cfg *config.Config, store storage.Store, log *zap.Logger) *identity.Resolver {
	if cfg.Identity.Endpoint == "" {
		log.Info("Name resolution disabled, no mainnet endpoint configured")
		return nil
	}

	mainnetClient, err := client.NewClient(&client.Config{
		Endpoint:  cfg.Identity.Endpoint,
		Timeout:   cfg.RPC.Timeout,
		RateLimit: cfg.RPC.RateLimit,
		Logger:    log,
	})
	if err != nil {
		log.Warn("Name resolution disabled, mainnet endpoint unreachable", zap.Error(err))
		return nil
	}

	svc, err := identity.NewENSService(mainnetClient, log)
	if err != nil {
		log.Warn("Name resolution disabled", zap.Error(err))
		return nil
	}

	resolver, err := identity.NewResolver(svc, store, identity.Config{
		Workers:    cfg.Identity.Workers,
		BatchLimit: cfg.Identity.BatchLimit,
		Logger:     log,
	})
	if err != nil {
		log.Warn("Name resolution disabled", zap.Error(err))
		return nil
	}

	log.Info("Name resolution enabled",
		zap.Int("workers", cfg.Identity.Workers),
		zap.Int("batch_limit", cfg.Identity.BatchLimit),
	)
	return resolver
}
