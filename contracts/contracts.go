// Package contracts holds the fixed on-chain surface: the jar factory
// and the jar contract ABIs, their event topics, and pack/unpack helpers.
package contracts

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

const factoryABIJSON = `[
  {
    "type": "function",
    "name": "createJar",
    "stateMutability": "nonpayable",
    "inputs": [{"name": "_maxGasPriceWei", "type": "uint256"}],
    "outputs": [{"name": "", "type": "address"}]
  },
  {
    "type": "event",
    "name": "JarCreated",
    "inputs": [
      {"name": "recipient", "type": "address", "indexed": true},
      {"name": "jarAddress", "type": "address", "indexed": false},
      {"name": "maxGasPriceWei", "type": "uint256", "indexed": false}
    ]
  }
]`

const jarABIJSON = `[
  {
    "type": "function",
    "name": "tip",
    "stateMutability": "payable",
    "inputs": [{"name": "message", "type": "string"}],
    "outputs": []
  },
  {
    "type": "function",
    "name": "withdraw",
    "stateMutability": "nonpayable",
    "inputs": [],
    "outputs": []
  },
  {
    "type": "function",
    "name": "owner",
    "stateMutability": "view",
    "inputs": [],
    "outputs": [{"name": "", "type": "address"}]
  },
  {
    "type": "event",
    "name": "Tipped",
    "inputs": [
      {"name": "from", "type": "address", "indexed": true},
      {"name": "amount", "type": "uint256", "indexed": false},
      {"name": "message", "type": "string", "indexed": false}
    ]
  }
]`

var (
	// FactoryABI is the parsed jar factory interface
	FactoryABI abi.ABI

	// JarABI is the parsed jar interface
	JarABI abi.ABI

	// JarCreatedTopic is the topic hash of JarCreated(address,address,uint256)
	JarCreatedTopic common.Hash

	// TippedTopic is the topic hash of Tipped(address,uint256,string)
	TippedTopic common.Hash
)

func init() {
	var err error
	FactoryABI, err = abi.JSON(strings.NewReader(factoryABIJSON))
	if err != nil {
		panic(fmt.Sprintf("invalid factory ABI: %v", err))
	}
	JarABI, err = abi.JSON(strings.NewReader(jarABIJSON))
	if err != nil {
		panic(fmt.Sprintf("invalid jar ABI: %v", err))
	}
	JarCreatedTopic = FactoryABI.Events["JarCreated"].ID
	TippedTopic = JarABI.Events["Tipped"].ID
}

// TippedEvent is a decoded Tipped log
type TippedEvent struct {
	From    common.Address
	Amount  *big.Int
	Message string
}

// JarCreatedEvent is a decoded JarCreated log
type JarCreatedEvent struct {
	Recipient      common.Address
	JarAddress     common.Address
	MaxGasPriceWei *big.Int
}

// PackCreateJar encodes a createJar call
func PackCreateJar(maxGasPriceWei *big.Int) ([]byte, error) {
	if maxGasPriceWei == nil {
		maxGasPriceWei = big.NewInt(0)
	}
	data, err := FactoryABI.Pack("createJar", maxGasPriceWei)
	if err != nil {
		return nil, fmt.Errorf("failed to pack createJar: %w", err)
	}
	return data, nil
}

// PackTip encodes a tip call
func PackTip(message string) ([]byte, error) {
	data, err := JarABI.Pack("tip", message)
	if err != nil {
		return nil, fmt.Errorf("failed to pack tip: %w", err)
	}
	return data, nil
}

// PackWithdraw encodes a withdraw call
func PackWithdraw() ([]byte, error) {
	data, err := JarABI.Pack("withdraw")
	if err != nil {
		return nil, fmt.Errorf("failed to pack withdraw: %w", err)
	}
	return data, nil
}

// PackOwner encodes an owner call
func PackOwner() ([]byte, error) {
	data, err := JarABI.Pack("owner")
	if err != nil {
		return nil, fmt.Errorf("failed to pack owner: %w", err)
	}
	return data, nil
}

// UnpackJarAddress decodes the address returned by a simulated createJar call
func UnpackJarAddress(data []byte) (common.Address, error) {
	out, err := FactoryABI.Unpack("createJar", data)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to unpack createJar result: %w", err)
	}
	addr, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("unexpected createJar result type %T", out[0])
	}
	return addr, nil
}

// UnpackOwner decodes the address returned by an owner call
func UnpackOwner(data []byte) (common.Address, error) {
	out, err := JarABI.Unpack("owner", data)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to unpack owner result: %w", err)
	}
	addr, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("unexpected owner result type %T", out[0])
	}
	return addr, nil
}

// DecodeTipped decodes a Tipped log
func DecodeTipped(log types.Log) (*TippedEvent, error) {
	if len(log.Topics) < 2 || log.Topics[0] != TippedTopic {
		return nil, fmt.Errorf("log is not a Tipped event")
	}

	out, err := JarABI.Events["Tipped"].Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack Tipped data: %w", err)
	}

	amount, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected Tipped amount type %T", out[0])
	}
	message, ok := out[1].(string)
	if !ok {
		return nil, fmt.Errorf("unexpected Tipped message type %T", out[1])
	}

	return &TippedEvent{
		From:    common.BytesToAddress(log.Topics[1].Bytes()),
		Amount:  amount,
		Message: message,
	}, nil
}

// DecodeJarCreated decodes a JarCreated log
func DecodeJarCreated(log types.Log) (*JarCreatedEvent, error) {
	if len(log.Topics) < 2 || log.Topics[0] != JarCreatedTopic {
		return nil, fmt.Errorf("log is not a JarCreated event")
	}

	out, err := FactoryABI.Events["JarCreated"].Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack JarCreated data: %w", err)
	}

	jarAddr, ok := out[0].(common.Address)
	if !ok {
		return nil, fmt.Errorf("unexpected JarCreated address type %T", out[0])
	}
	maxGas, ok := out[1].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected JarCreated gas cap type %T", out[1])
	}

	return &JarCreatedEvent{
		Recipient:      common.BytesToAddress(log.Topics[1].Bytes()),
		JarAddress:     jarAddr,
		MaxGasPriceWei: maxGas,
	}, nil
}
