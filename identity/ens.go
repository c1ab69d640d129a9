package identity

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

// ENSRegistryAddress is the canonical mainnet ENS registry
var ENSRegistryAddress = common.HexToAddress("0x00000000000C2E074eC69A0dFb2997BA6C7d2e1e")

const registryABIJSON = `[
  {
    "type": "function",
    "name": "resolver",
    "stateMutability": "view",
    "inputs": [{"name": "node", "type": "bytes32"}],
    "outputs": [{"name": "", "type": "address"}]
  }
]`

const resolverABIJSON = `[
  {
    "type": "function",
    "name": "name",
    "stateMutability": "view",
    "inputs": [{"name": "node", "type": "bytes32"}],
    "outputs": [{"name": "", "type": "string"}]
  },
  {
    "type": "function",
    "name": "addr",
    "stateMutability": "view",
    "inputs": [{"name": "node", "type": "bytes32"}],
    "outputs": [{"name": "", "type": "address"}]
  },
  {
    "type": "function",
    "name": "text",
    "stateMutability": "view",
    "inputs": [
      {"name": "node", "type": "bytes32"},
      {"name": "key", "type": "string"}
    ],
    "outputs": [{"name": "", "type": "string"}]
  }
]`

var (
	registryABI abi.ABI
	resolverABI abi.ABI
)

func init() {
	var err error
	registryABI, err = abi.JSON(strings.NewReader(registryABIJSON))
	if err != nil {
		panic(fmt.Sprintf("invalid ENS registry ABI: %v", err))
	}
	resolverABI, err = abi.JSON(strings.NewReader(resolverABIJSON))
	if err != nil {
		panic(fmt.Sprintf("invalid ENS resolver ABI: %v", err))
	}
}

// CallClient is the read-only chain access ENS resolution needs
type CallClient interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// ENSService resolves primary names through the on-chain ENS registry.
// Reverse records are verified forward before being trusted.
type ENSService struct {
	client   CallClient
	registry common.Address
	logger   *zap.Logger
}

// NewENSService creates an ENS name service over a mainnet client
func NewENSService(client CallClient, logger *zap.Logger) (*ENSService, error) {
	if client == nil {
		return nil, fmt.Errorf("client cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ENSService{
		client:   client,
		registry: ENSRegistryAddress,
		logger:   logger,
	}, nil
}

// ResolveName returns the verified primary name for an address, or ""
// when the address has no reverse record or the record fails the
// forward check
func (s *ENSService) ResolveName(ctx context.Context, addr common.Address) (string, error) {
	reverseNode := Namehash(strings.ToLower(strings.TrimPrefix(addr.Hex(), "0x")) + ".addr.reverse")

	resolver, err := s.resolverFor(ctx, reverseNode)
	if err != nil {
		return "", err
	}
	if resolver == (common.Address{}) {
		return "", nil
	}

	name, err := s.lookupName(ctx, resolver, reverseNode)
	if err != nil || name == "" {
		return "", err
	}

	forward, err := s.resolveAddress(ctx, name)
	if err != nil {
		return "", err
	}
	if forward != addr {
		s.logger.Debug("reverse record failed forward check",
			zap.String("address", addr.Hex()),
			zap.String("name", name))
		return "", nil
	}
	return name, nil
}

// ResolveAvatar returns the avatar text record for a name, or ""
func (s *ENSService) ResolveAvatar(ctx context.Context, name string) (string, error) {
	node := Namehash(name)

	resolver, err := s.resolverFor(ctx, node)
	if err != nil {
		return "", err
	}
	if resolver == (common.Address{}) {
		return "", nil
	}

	data, err := resolverABI.Pack("text", node, "avatar")
	if err != nil {
		return "", fmt.Errorf("failed to pack text call: %w", err)
	}
	ret, err := s.client.CallContract(ctx, ethereum.CallMsg{To: &resolver, Data: data}, nil)
	if err != nil {
		return "", fmt.Errorf("text call failed: %w", err)
	}
	out, err := resolverABI.Unpack("text", ret)
	if err != nil {
		return "", fmt.Errorf("failed to unpack text result: %w", err)
	}
	avatar, _ := out[0].(string)
	return avatar, nil
}

func (s *ENSService) resolverFor(ctx context.Context, node common.Hash) (common.Address, error) {
	data, err := registryABI.Pack("resolver", node)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to pack resolver call: %w", err)
	}
	ret, err := s.client.CallContract(ctx, ethereum.CallMsg{To: &s.registry, Data: data}, nil)
	if err != nil {
		return common.Address{}, fmt.Errorf("resolver lookup failed: %w", err)
	}
	out, err := registryABI.Unpack("resolver", ret)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to unpack resolver result: %w", err)
	}
	addr, _ := out[0].(common.Address)
	return addr, nil
}

func (s *ENSService) lookupName(ctx context.Context, resolver common.Address, node common.Hash) (string, error) {
	data, err := resolverABI.Pack("name", node)
	if err != nil {
		return "", fmt.Errorf("failed to pack name call: %w", err)
	}
	ret, err := s.client.CallContract(ctx, ethereum.CallMsg{To: &resolver, Data: data}, nil)
	if err != nil {
		return "", fmt.Errorf("name call failed: %w", err)
	}
	out, err := resolverABI.Unpack("name", ret)
	if err != nil {
		return "", fmt.Errorf("failed to unpack name result: %w", err)
	}
	name, _ := out[0].(string)
	return name, nil
}

func (s *ENSService) resolveAddress(ctx context.Context, name string) (common.Address, error) {
	node := Namehash(name)

	resolver, err := s.resolverFor(ctx, node)
	if err != nil {
		return common.Address{}, err
	}
	if resolver == (common.Address{}) {
		return common.Address{}, nil
	}

	data, err := resolverABI.Pack("addr", node)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to pack addr call: %w", err)
	}
	ret, err := s.client.CallContract(ctx, ethereum.CallMsg{To: &resolver, Data: data}, nil)
	if err != nil {
		return common.Address{}, fmt.Errorf("addr call failed: %w", err)
	}
	out, err := resolverABI.Unpack("addr", ret)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to unpack addr result: %w", err)
	}
	addr, _ := out[0].(common.Address)
	return addr, nil
}

// Namehash implements the ENS name hashing algorithm
func Namehash(name string) common.Hash {
	node := common.Hash{}
	if name == "" {
		return node
	}

	labels := strings.Split(name, ".")
	for i := len(labels) - 1; i >= 0; i-- {
		labelHash := crypto.Keccak256([]byte(labels[i]))
		node = crypto.Keccak256Hash(node.Bytes(), labelHash)
	}
	return node
}
