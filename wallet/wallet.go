// Package wallet is the signing boundary. The engine never assumes a
// particular wallet; anything that can report its address and chain,
// switch chains and sign-and-send satisfies Wallet.
package wallet

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TxRequest describes a transaction to sign and broadcast
type TxRequest struct {
	// To is the target contract; nil deploys
	To *common.Address
	// Value is the attached wei amount
	Value *big.Int
	// Data is the packed calldata
	Data []byte
	// Gas is the gas limit
	Gas uint64
	// GasFeeCap is the maximum total fee per gas
	GasFeeCap *big.Int
	// GasTipCap is the maximum priority fee per gas
	GasTipCap *big.Int
}

// Wallet is the provider boundary for signing
type Wallet interface {
	// Address returns the account the wallet signs for
	Address() common.Address
	// ChainID returns the chain the wallet is currently connected to
	ChainID(ctx context.Context) (uint64, error)
	// SwitchChain asks the wallet to move to the given chain. Wallets
	// that cannot switch return a classified error.
	SwitchChain(ctx context.Context, chainID uint64) error
	// SignAndSend signs the request and broadcasts it, returning the
	// transaction hash. A declined signature surfaces as a classified
	// user rejection.
	SignAndSend(ctx context.Context, req TxRequest) (common.Hash, error)
}
