package feed

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TipRecord is one decoded tip, ready for display
type TipRecord struct {
	// From is the tipper address
	From common.Address `json:"from"`
	// FromDisplay is the resolved primary name, empty when none exists
	FromDisplay string `json:"fromDisplay,omitempty"`
	// Amount is the tipped value in wei
	Amount *big.Int `json:"amount"`
	// Message is the sanitized tip message
	Message string `json:"message"`
	// BlockNumber is where the tip landed
	BlockNumber uint64 `json:"blockNumber"`
	// TxHash identifies the tip transaction
	TxHash common.Hash `json:"txHash"`
	// LogIndex orders tips within a block
	LogIndex uint `json:"logIndex"`
}

// Result is the outcome of one scan
type Result struct {
	// Tips is newest-first, at most the configured cap
	Tips []TipRecord `json:"tips"`
	// FromBlock and ToBlock bound the range actually covered
	FromBlock uint64 `json:"fromBlock"`
	ToBlock   uint64 `json:"toBlock"`
	// ChunksUsed is how many range queries the scan spent
	ChunksUsed int `json:"chunksUsed"`
}
