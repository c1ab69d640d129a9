package contracts

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopicsAreStable(t *testing.T) {
	assert.Equal(t, TippedTopic, JarABI.Events["Tipped"].ID)
	assert.Equal(t, JarCreatedTopic, FactoryABI.Events["JarCreated"].ID)
	assert.NotEqual(t, TippedTopic, JarCreatedTopic)
}

func TestDecodeTipped(t *testing.T) {
	from := common.HexToAddress("0x1111111111111111111111111111111111111111")
	amount := big.NewInt(42_000_000_000_000_000)

	data, err := JarABI.Events["Tipped"].Inputs.NonIndexed().Pack(amount, "thanks for the set!")
	require.NoError(t, err)

	log := types.Log{
		Topics: []common.Hash{TippedTopic, common.BytesToHash(from.Bytes())},
		Data:   data,
	}

	ev, err := DecodeTipped(log)
	require.NoError(t, err)
	assert.Equal(t, from, ev.From)
	assert.Equal(t, amount, ev.Amount)
	assert.Equal(t, "thanks for the set!", ev.Message)
}

func TestDecodeTippedRejectsForeignLog(t *testing.T) {
	log := types.Log{
		Topics: []common.Hash{JarCreatedTopic, {}},
	}
	_, err := DecodeTipped(log)
	assert.Error(t, err)
}

func TestDecodeJarCreated(t *testing.T) {
	recipient := common.HexToAddress("0x2222222222222222222222222222222222222222")
	jar := common.HexToAddress("0x3333333333333333333333333333333333333333")
	maxGas := big.NewInt(2_000_000_000)

	data, err := FactoryABI.Events["JarCreated"].Inputs.NonIndexed().Pack(jar, maxGas)
	require.NoError(t, err)

	log := types.Log{
		Topics: []common.Hash{JarCreatedTopic, common.BytesToHash(recipient.Bytes())},
		Data:   data,
	}

	ev, err := DecodeJarCreated(log)
	require.NoError(t, err)
	assert.Equal(t, recipient, ev.Recipient)
	assert.Equal(t, jar, ev.JarAddress)
	assert.Equal(t, maxGas, ev.MaxGasPriceWei)
}

func TestPackAndUnpackRoundTrips(t *testing.T) {
	data, err := PackCreateJar(big.NewInt(1_500_000_000))
	require.NoError(t, err)
	assert.Equal(t, FactoryABI.Methods["createJar"].ID, data[:4])

	tipData, err := PackTip("gm")
	require.NoError(t, err)
	assert.Equal(t, JarABI.Methods["tip"].ID, tipData[:4])

	withdrawData, err := PackWithdraw()
	require.NoError(t, err)
	assert.Equal(t, JarABI.Methods["withdraw"].ID, withdrawData)

	ownerData, err := PackOwner()
	require.NoError(t, err)
	assert.Equal(t, JarABI.Methods["owner"].ID, ownerData)

	owner := common.HexToAddress("0x4444444444444444444444444444444444444444")
	ret, err := JarABI.Methods["owner"].Outputs.Pack(owner)
	require.NoError(t, err)

	got, err := UnpackOwner(ret)
	require.NoError(t, err)
	assert.Equal(t, owner, got)

	jarRet, err := FactoryABI.Methods["createJar"].Outputs.Pack(owner)
	require.NoError(t, err)
	gotJar, err := UnpackJarAddress(jarRet)
	require.NoError(t, err)
	assert.Equal(t, owner, gotJar)
}
