package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/gftj/tipjar-go/errs"
)

// Client is the chain access a key wallet needs
type Client interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// KeyWallet signs locally with an ECDSA key and broadcasts through a
// fixed RPC connection. It cannot switch chains; the connection
// decides the chain.
type KeyWallet struct {
	key     *ecdsa.PrivateKey
	address common.Address
	client  Client
	logger  *zap.Logger

	mu      sync.Mutex
	chainID *big.Int
}

// NewKeyWallet creates a wallet from a hex-encoded private key
func NewKeyWallet(hexKey string, client Client, logger *zap.Logger) (*KeyWallet, error) {
	if client == nil {
		return nil, fmt.Errorf("client cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	return &KeyWallet{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		client:  client,
		logger:  logger,
	}, nil
}

// Address returns the account derived from the key
func (w *KeyWallet) Address() common.Address {
	return w.address
}

// ChainID returns the connected chain, cached after the first lookup
func (w *KeyWallet) ChainID(ctx context.Context) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.chainID == nil {
		id, err := w.client.ChainID(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to resolve wallet chain: %w", err)
		}
		w.chainID = id
	}
	return w.chainID.Uint64(), nil
}

// SwitchChain succeeds only when the connection already targets the
// requested chain; a key wallet cannot move its RPC endpoint.
func (w *KeyWallet) SwitchChain(ctx context.Context, chainID uint64) error {
	current, err := w.ChainID(ctx)
	if err != nil {
		return err
	}
	if current != chainID {
		return errs.New(errs.WrongNetwork,
			fmt.Sprintf("Wallet is connected to chain %d, expected %d.", current, chainID))
	}
	return nil
}

// SignAndSend signs a dynamic fee transaction and broadcasts it
func (w *KeyWallet) SignAndSend(ctx context.Context, req TxRequest) (common.Hash, error) {
	chainID, err := w.ChainID(ctx)
	if err != nil {
		return common.Hash{}, err
	}

	nonce, err := w.client.PendingNonceAt(ctx, w.address)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get nonce: %w", err)
	}

	value := req.Value
	if value == nil {
		value = big.NewInt(0)
	}

	signer := types.LatestSignerForChainID(new(big.Int).SetUint64(chainID))
	tx, err := types.SignNewTx(w.key, signer, &types.DynamicFeeTx{
		ChainID:   new(big.Int).SetUint64(chainID),
		Nonce:     nonce,
		To:        req.To,
		Value:     value,
		Data:      req.Data,
		Gas:       req.Gas,
		GasFeeCap: req.GasFeeCap,
		GasTipCap: req.GasTipCap,
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := w.client.SendTransaction(ctx, tx); err != nil {
		return common.Hash{}, err
	}

	w.logger.Info("transaction sent",
		zap.String("tx_hash", tx.Hash().Hex()),
		zap.Uint64("nonce", nonce))

	return tx.Hash(), nil
}
