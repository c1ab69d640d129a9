package wallet

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gftj/tipjar-go/errs"
)

// well-known throwaway test key
const testKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

type mockChain struct {
	chainID    *big.Int
	chainCalls int
	nonce      uint64
	sent       []*types.Transaction
}

func (m *mockChain) ChainID(ctx context.Context) (*big.Int, error) {
	m.chainCalls++
	return m.chainID, nil
}

func (m *mockChain) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return m.nonce, nil
}

func (m *mockChain) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	m.sent = append(m.sent, tx)
	return nil
}

func TestNewKeyWalletDerivesAddress(t *testing.T) {
	w, err := NewKeyWallet(testKey, &mockChain{chainID: big.NewInt(8453)}, nil)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"), w.Address())

	// 0x prefix accepted
	w2, err := NewKeyWallet("0x"+testKey, &mockChain{chainID: big.NewInt(8453)}, nil)
	require.NoError(t, err)
	assert.Equal(t, w.Address(), w2.Address())

	_, err = NewKeyWallet("nothex", &mockChain{chainID: big.NewInt(8453)}, nil)
	assert.Error(t, err)
}

func TestChainIDIsCached(t *testing.T) {
	chain := &mockChain{chainID: big.NewInt(8453)}
	w, err := NewKeyWallet(testKey, chain, nil)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		id, err := w.ChainID(context.Background())
		require.NoError(t, err)
		assert.Equal(t, uint64(8453), id)
	}
	assert.Equal(t, 1, chain.chainCalls)
}

func TestSwitchChain(t *testing.T) {
	w, err := NewKeyWallet(testKey, &mockChain{chainID: big.NewInt(8453)}, nil)
	require.NoError(t, err)

	assert.NoError(t, w.SwitchChain(context.Background(), 8453))

	err = w.SwitchChain(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, errs.WrongNetwork, errs.KindOf(err))
}

func TestSignAndSend(t *testing.T) {
	chain := &mockChain{chainID: big.NewInt(8453), nonce: 7}
	w, err := NewKeyWallet(testKey, chain, nil)
	require.NoError(t, err)

	to := common.HexToAddress("0x1111111111111111111111111111111111111111")
	hash, err := w.SignAndSend(context.Background(), TxRequest{
		To:        &to,
		Value:     big.NewInt(1_000_000),
		Data:      []byte{0xde, 0xad},
		Gas:       50_000,
		GasFeeCap: big.NewInt(2_000_000_000),
		GasTipCap: big.NewInt(1_000_000_000),
	})
	require.NoError(t, err)

	require.Len(t, chain.sent, 1)
	tx := chain.sent[0]
	assert.Equal(t, hash, tx.Hash())
	assert.Equal(t, uint64(7), tx.Nonce())
	assert.Equal(t, to, *tx.To())
	assert.Equal(t, uint8(types.DynamicFeeTxType), tx.Type())

	sender, err := types.Sender(types.LatestSignerForChainID(big.NewInt(8453)), tx)
	require.NoError(t, err)
	assert.Equal(t, w.Address(), sender)
}

func TestSignAndSendNilValue(t *testing.T) {
	chain := &mockChain{chainID: big.NewInt(8453)}
	w, err := NewKeyWallet(testKey, chain, nil)
	require.NoError(t, err)

	to := common.HexToAddress("0x1111111111111111111111111111111111111111")
	_, err = w.SignAndSend(context.Background(), TxRequest{
		To:        &to,
		Gas:       21_000,
		GasFeeCap: big.NewInt(1),
		GasTipCap: big.NewInt(1),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), chain.sent[0].Value().Int64())
}
