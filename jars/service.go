// Package jars orchestrates jar transactions end to end: network
// checks, simulation, gas estimation, submission and confirmation.
// Every failure that leaves this package is classified; raw provider
// text never reaches a user.
package jars

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/gftj/tipjar-go/contracts"
	"github.com/gftj/tipjar-go/errs"
	"github.com/gftj/tipjar-go/internal/constants"
	"github.com/gftj/tipjar-go/retry"
	"github.com/gftj/tipjar-go/storage"
	"github.com/gftj/tipjar-go/wallet"
)

// Client is the chain access the orchestrator needs
type Client interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	BalanceAt(ctx context.Context, account common.Address) (*big.Int, error)
}

// Config holds orchestrator configuration
type Config struct {
	// ChainID is the chain every write must land on
	ChainID uint64
	// ChainName labels the chain in user-facing messages
	ChainName string
	// Factory is the jar factory; zero address disables creation
	Factory common.Address
	// SpendCap aborts creation when the estimated network cost exceeds
	// it; nil disables the check
	SpendCap *big.Int
	// MaxGasPrice is the gas price cap baked into created jars
	MaxGasPrice *big.Int
	// Retry is the policy for read calls
	Retry retry.Policy
	// SwitchAttempts/SwitchInterval bound the wait after a network
	// switch request
	SwitchAttempts int
	SwitchInterval time.Duration
	// ReceiptAttempts/ReceiptInterval bound confirmation polling
	ReceiptAttempts int
	ReceiptInterval time.Duration
	// OwnerTTL bounds the owner read cache
	OwnerTTL time.Duration
	// Logger defaults to a no-op logger
	Logger *zap.Logger
}

// Service runs jar operations for a single wallet
type Service struct {
	cfg      Config
	client   Client
	wallet   wallet.Wallet
	store    storage.Store
	registry *Registry
	logger   *zap.Logger
}

// CreateResult is the outcome of a successful jar creation
type CreateResult struct {
	// TxHash is the creation transaction
	TxHash common.Hash `json:"txHash"`
	// JarAddress is the new jar, zero when unknown
	JarAddress common.Address `json:"jarAddress"`
	// AddressKnown is false when neither the receipt event nor the
	// simulation yielded an address; the creation still succeeded
	AddressKnown bool `json:"addressKnown"`
	// EstimatedCostWei is gas limit times max fee at submission time
	EstimatedCostWei *big.Int `json:"estimatedCostWei"`
}

// TxResult is the outcome of a confirmed transaction
type TxResult struct {
	TxHash      common.Hash `json:"txHash"`
	BlockNumber uint64      `json:"blockNumber"`
}

// ownerCacheEntry is the persisted form of an owner read
type ownerCacheEntry struct {
	Owner    common.Address `json:"owner"`
	CachedAt time.Time      `json:"cachedAt"`
}

// NewService creates an orchestrator. Store and registry may be nil.
func NewService(cfg Config, client Client, w wallet.Wallet, store storage.Store, registry *Registry) (*Service, error) {
	if client == nil {
		return nil, fmt.Errorf("client cannot be nil")
	}
	if w == nil {
		return nil, fmt.Errorf("wallet cannot be nil")
	}
	if cfg.ChainID == 0 {
		return nil, fmt.Errorf("chain ID is required")
	}
	if cfg.ChainName == "" {
		cfg.ChainName = fmt.Sprintf("chain %d", cfg.ChainID)
	}
	if cfg.Retry.Attempts == 0 {
		cfg.Retry = retry.Default()
	}
	if cfg.SwitchAttempts <= 0 {
		cfg.SwitchAttempts = constants.NetworkSwitchAttempts
	}
	if cfg.SwitchInterval <= 0 {
		cfg.SwitchInterval = constants.NetworkSwitchInterval
	}
	if cfg.ReceiptAttempts <= 0 {
		cfg.ReceiptAttempts = constants.ReceiptPollAttempts
	}
	if cfg.ReceiptInterval <= 0 {
		cfg.ReceiptInterval = constants.ReceiptPollInterval
	}
	if cfg.OwnerTTL <= 0 {
		cfg.OwnerTTL = constants.OwnerCacheTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Service{
		cfg:      cfg,
		client:   client,
		wallet:   w,
		store:    store,
		registry: registry,
		logger:   cfg.Logger,
	}, nil
}

// Create deploys a new jar through the factory. The exact calldata
// that passed simulation is what gets submitted.
func (s *Service) Create(ctx context.Context, name string) (*CreateResult, error) {
	if s.cfg.Factory == (common.Address{}) {
		return nil, errs.New(errs.NotConfigured, "Jar creation is not configured.")
	}

	if err := s.ensureNetwork(ctx); err != nil {
		return nil, err
	}

	data, err := contracts.PackCreateJar(s.cfg.MaxGasPrice)
	if err != nil {
		return nil, err
	}

	from := s.wallet.Address()
	factory := s.cfg.Factory
	msg := ethereum.CallMsg{From: from, To: &factory, Data: data}

	// simulation predicts the jar address and catches reverts before
	// any value moves
	var predicted common.Address
	err = s.cfg.Retry.Do(ctx, "simulate_create", func(ctx context.Context) error {
		ret, err := s.client.CallContract(ctx, msg, nil)
		if err != nil {
			return err
		}
		if addr, err := contracts.UnpackJarAddress(ret); err == nil {
			predicted = addr
		}
		return nil
	})
	if err != nil {
		return nil, errs.Classify(err)
	}

	gas, feeCap, tipCap, err := s.estimateFees(ctx, msg)
	if err != nil {
		return nil, errs.Classify(err)
	}

	estimatedCost := new(big.Int).Mul(new(big.Int).SetUint64(gas), feeCap)
	if s.cfg.SpendCap != nil && estimatedCost.Cmp(s.cfg.SpendCap) > 0 {
		return nil, errs.New(errs.InsufficientFunds,
			"Estimated network cost exceeds the configured spending cap.")
	}

	txHash, err := s.submit(ctx, wallet.TxRequest{
		To:        &factory,
		Data:      data,
		Gas:       gas,
		GasFeeCap: feeCap,
		GasTipCap: tipCap,
	})
	if err != nil {
		return nil, err
	}

	receipt, err := s.waitReceipt(ctx, txHash)
	if err != nil {
		return nil, err
	}

	result := &CreateResult{
		TxHash:           txHash,
		EstimatedCostWei: estimatedCost,
	}

	for _, lg := range receipt.Logs {
		if ev, err := contracts.DecodeJarCreated(*lg); err == nil {
			result.JarAddress = ev.JarAddress
			result.AddressKnown = true
			break
		}
	}
	if !result.AddressKnown && predicted != (common.Address{}) {
		// the event was absent or undecodable; the simulated return
		// value is the next best answer
		result.JarAddress = predicted
		result.AddressKnown = true
	}

	s.recordCreation(result, name, from)

	s.logger.Info("jar created",
		zap.String("tx_hash", txHash.Hex()),
		zap.String("jar", result.JarAddress.Hex()),
		zap.Bool("address_known", result.AddressKnown))

	return result, nil
}

// Tip sends value with a message to a jar
func (s *Service) Tip(ctx context.Context, jar common.Address, amount *big.Int, message string) (*TxResult, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, errs.New(errs.Unknown, "Tip amount must be greater than zero.")
	}

	if err := s.ensureNetwork(ctx); err != nil {
		return nil, err
	}

	data, err := contracts.PackTip(message)
	if err != nil {
		return nil, err
	}

	msg := ethereum.CallMsg{From: s.wallet.Address(), To: &jar, Value: amount, Data: data}
	err = s.cfg.Retry.Do(ctx, "simulate_tip", func(ctx context.Context) error {
		_, err := s.client.CallContract(ctx, msg, nil)
		return err
	})
	if err != nil {
		return nil, errs.Classify(err)
	}

	gas, feeCap, tipCap, err := s.estimateFees(ctx, msg)
	if err != nil {
		return nil, errs.Classify(err)
	}

	txHash, err := s.submit(ctx, wallet.TxRequest{
		To:        &jar,
		Value:     amount,
		Data:      data,
		Gas:       gas,
		GasFeeCap: feeCap,
		GasTipCap: tipCap,
	})
	if err != nil {
		return nil, err
	}

	receipt, err := s.waitReceipt(ctx, txHash)
	if err != nil {
		return nil, err
	}

	s.logger.Info("tip confirmed",
		zap.String("tx_hash", txHash.Hex()),
		zap.String("jar", jar.Hex()),
		zap.String("amount_wei", amount.String()))

	return &TxResult{TxHash: txHash, BlockNumber: receipt.BlockNumber.Uint64()}, nil
}

// Withdraw drains a jar to its owner. Simulation catches callers that
// are not the owner before anything is signed.
func (s *Service) Withdraw(ctx context.Context, jar common.Address) (*TxResult, error) {
	if err := s.ensureNetwork(ctx); err != nil {
		return nil, err
	}

	data, err := contracts.PackWithdraw()
	if err != nil {
		return nil, err
	}

	msg := ethereum.CallMsg{From: s.wallet.Address(), To: &jar, Data: data}
	err = s.cfg.Retry.Do(ctx, "simulate_withdraw", func(ctx context.Context) error {
		_, err := s.client.CallContract(ctx, msg, nil)
		return err
	})
	if err != nil {
		return nil, errs.Classify(err)
	}

	gas, feeCap, tipCap, err := s.estimateFees(ctx, msg)
	if err != nil {
		return nil, errs.Classify(err)
	}

	txHash, err := s.submit(ctx, wallet.TxRequest{
		To:        &jar,
		Data:      data,
		Gas:       gas,
		GasFeeCap: feeCap,
		GasTipCap: tipCap,
	})
	if err != nil {
		return nil, err
	}

	receipt, err := s.waitReceipt(ctx, txHash)
	if err != nil {
		return nil, err
	}

	return &TxResult{TxHash: txHash, BlockNumber: receipt.BlockNumber.Uint64()}, nil
}

// Owner returns a jar's owner through a TTL read cache
func (s *Service) Owner(ctx context.Context, jar common.Address) (common.Address, error) {
	if s.store != nil {
		if raw, err := s.store.Get(storage.OwnerKey(jar.Hex())); err == nil {
			var entry ownerCacheEntry
			if err := json.Unmarshal(raw, &entry); err == nil &&
				time.Since(entry.CachedAt) < s.cfg.OwnerTTL {
				return entry.Owner, nil
			}
		}
	}

	data, err := contracts.PackOwner()
	if err != nil {
		return common.Address{}, err
	}

	var owner common.Address
	err = s.cfg.Retry.Do(ctx, "owner", func(ctx context.Context) error {
		ret, err := s.client.CallContract(ctx, ethereum.CallMsg{To: &jar, Data: data}, nil)
		if err != nil {
			return err
		}
		owner, err = contracts.UnpackOwner(ret)
		return err
	})
	if err != nil {
		return common.Address{}, errs.Classify(err)
	}

	s.cacheOwner(jar, owner)
	return owner, nil
}

// Balance returns a jar's current balance
func (s *Service) Balance(ctx context.Context, jar common.Address) (*big.Int, error) {
	var balance *big.Int
	err := s.cfg.Retry.Do(ctx, "balance", func(ctx context.Context) error {
		var err error
		balance, err = s.client.BalanceAt(ctx, jar)
		return err
	})
	if err != nil {
		return nil, errs.Classify(err)
	}
	return balance, nil
}

// LastJar returns the most recently created jar address, if any
func (s *Service) LastJar() (common.Address, bool) {
	if s.store == nil {
		return common.Address{}, false
	}
	raw, err := s.store.Get(storage.LastJarKey())
	if err != nil {
		return common.Address{}, false
	}
	return common.HexToAddress(string(raw)), true
}

// ensureNetwork verifies the wallet is on the target chain, asking it
// to switch and polling a bounded number of times before giving up
func (s *Service) ensureNetwork(ctx context.Context) error {
	current, err := s.wallet.ChainID(ctx)
	if err != nil {
		return errs.Classify(err)
	}
	if current == s.cfg.ChainID {
		return nil
	}

	if err := s.wallet.SwitchChain(ctx, s.cfg.ChainID); err != nil {
		return errs.Classify(err)
	}

	for i := 0; i < s.cfg.SwitchAttempts; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.cfg.SwitchInterval):
		}
		current, err = s.wallet.ChainID(ctx)
		if err == nil && current == s.cfg.ChainID {
			return nil
		}
	}

	return errs.New(errs.WrongNetwork,
		fmt.Sprintf("Please switch your wallet to %s (%d) and try again.", s.cfg.ChainName, s.cfg.ChainID))
}

// estimateFees estimates gas and fee caps fresh for a submission
func (s *Service) estimateFees(ctx context.Context, msg ethereum.CallMsg) (uint64, *big.Int, *big.Int, error) {
	var gas uint64
	err := s.cfg.Retry.Do(ctx, "estimate_gas", func(ctx context.Context) error {
		var err error
		gas, err = s.client.EstimateGas(ctx, msg)
		return err
	})
	if err != nil {
		return 0, nil, nil, err
	}

	var tipCap *big.Int
	err = s.cfg.Retry.Do(ctx, "gas_tip_cap", func(ctx context.Context) error {
		var err error
		tipCap, err = s.client.SuggestGasTipCap(ctx)
		return err
	})
	if err != nil {
		return 0, nil, nil, err
	}

	var head *types.Header
	err = s.cfg.Retry.Do(ctx, "head", func(ctx context.Context) error {
		var err error
		head, err = s.client.HeaderByNumber(ctx, nil)
		return err
	})
	if err != nil {
		return 0, nil, nil, err
	}

	// maxFee = 2*baseFee + tip keeps the tx valid across base fee swings
	feeCap := new(big.Int).Add(
		new(big.Int).Mul(head.BaseFee, big.NewInt(2)),
		tipCap,
	)
	return gas, feeCap, tipCap, nil
}

// submit signs and broadcasts, retrying exactly once after a post-hoc
// chain mismatch (the wallet moved between the check and the send)
func (s *Service) submit(ctx context.Context, req wallet.TxRequest) (common.Hash, error) {
	txHash, err := s.wallet.SignAndSend(ctx, req)
	if err == nil {
		return txHash, nil
	}

	classified := errs.Classify(err)
	if classified.Kind != errs.WrongNetwork {
		return common.Hash{}, classified
	}

	s.logger.Warn("chain mismatch at submission, re-checking network", zap.Error(err))
	if err := s.ensureNetwork(ctx); err != nil {
		return common.Hash{}, err
	}

	txHash, err = s.wallet.SignAndSend(ctx, req)
	if err != nil {
		return common.Hash{}, errs.Classify(err)
	}
	return txHash, nil
}

// waitReceipt polls for a receipt until confirmed or attempts run out
func (s *Service) waitReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	for i := 0; i < s.cfg.ReceiptAttempts; i++ {
		receipt, err := s.client.TransactionReceipt(ctx, txHash)
		if err == nil {
			if receipt.Status != types.ReceiptStatusSuccessful {
				return nil, errs.New(errs.Reverted,
					"The transaction was mined but reverted. No funds moved.")
			}
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) && !errs.IsTransient(err) {
			return nil, errs.Classify(err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.cfg.ReceiptInterval):
		}
	}

	return nil, errs.New(errs.Timeout,
		"The transaction was sent but confirmation timed out. Check the explorer before retrying.")
}

func (s *Service) recordCreation(result *CreateResult, name string, owner common.Address) {
	if s.store != nil && result.AddressKnown {
		if err := s.store.Set(storage.LastJarKey(), []byte(result.JarAddress.Hex())); err != nil {
			s.logger.Warn("failed to persist last jar", zap.Error(err))
		}
		s.cacheOwner(result.JarAddress, owner)
	}
	if s.registry != nil && result.AddressKnown {
		if err := s.registry.Upsert(result.JarAddress.Hex(), name); err != nil {
			s.logger.Warn("failed to register jar", zap.Error(err))
		}
	}
}

func (s *Service) cacheOwner(jar, owner common.Address) {
	if s.store == nil {
		return
	}
	raw, err := json.Marshal(ownerCacheEntry{Owner: owner, CachedAt: time.Now().UTC()})
	if err != nil {
		return
	}
	if err := s.store.Set(storage.OwnerKey(jar.Hex()), raw); err != nil {
		s.logger.Warn("failed to cache owner", zap.Error(err))
	}
}
