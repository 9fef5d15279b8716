package chain

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type callBackend struct {
	Backend
	lastCall ethereum.CallMsg
	result   []byte
}

func (b *callBackend) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	b.lastCall = msg
	return b.result, nil
}

func TestPackTransfer(t *testing.T) {
	to := common.HexToAddress("0x742d35Cc6634C0532925a3b844Bc454e4438f44e")
	data, err := PackTransfer(to, big.NewInt(1_000_000))
	require.NoError(t, err)

	require.Len(t, data, 4+32+32)
	assert.Equal(t, "0xa9059cbb", hexutil.Encode(data[:4]))
	assert.Equal(t, to.Bytes(), data[4+12:4+32])
	assert.Equal(t, int64(1_000_000), new(big.Int).SetBytes(data[36:]).Int64())
}

func TestTokenBalance(t *testing.T) {
	token := common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	owner := common.HexToAddress("0x00000000000000000000000000000000000000aa")

	encoded := common.LeftPadBytes(big.NewInt(2_500_000).Bytes(), 32)
	backend := &callBackend{result: encoded}

	balance, err := TokenBalance(context.Background(), backend, token, owner)
	require.NoError(t, err)
	assert.Equal(t, int64(2_500_000), balance.Int64())

	require.NotNil(t, backend.lastCall.To)
	assert.Equal(t, token, *backend.lastCall.To)
	assert.Equal(t, "0x70a08231", hexutil.Encode(backend.lastCall.Data[:4]))
}

func TestToBaseUnits(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		decimals int32
		want     string
	}{
		{"eth", "0.06", 18, "60000000000000000"},
		{"usdc", "12.5", 6, "12500000"},
		{"rounds up", "0.0000001", 6, "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToBaseUnits(decimal.RequireFromString(tt.amount), tt.decimals)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}

	_, err := ToBaseUnits(decimal.Zero, 18)
	assert.Error(t, err)
	_, err = ToBaseUnits(decimal.NewFromInt(-1), 18)
	assert.Error(t, err)
}

func TestFromBaseUnits(t *testing.T) {
	got := FromBaseUnits(big.NewInt(1_500_000), 6)
	assert.True(t, got.Equal(decimal.RequireFromString("1.5")))
	assert.True(t, FromBaseUnits(nil, 6).IsZero())
}
