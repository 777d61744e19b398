package venue

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web3guy0/positioncore/types"
)

func TestDryRunExecuteProducesReceipt(t *testing.T) {
	exec, err := NewOnChainExecutor(DefaultConfig())
	require.NoError(t, err)

	req := ReversingRequest{
		SafeAddress: "0x000000000000000000000000000000000000dEaD",
		NetworkKey:  "polygon",
		TokenSymbol: "ETH",
		Side:        types.SideSell,
		Amount:      decimal.NewFromFloat(0.1),
	}

	receipt, ok := exec.Execute(context.Background(), req, decimal.NewFromFloat(2505))
	require.True(t, ok)
	assert.True(t, receipt.FillPrice.Equal(decimal.NewFromFloat(2505)))
	assert.NotEmpty(t, receipt.TxHash)
}

func TestExecuteRejectsMalformedSafeAddress(t *testing.T) {
	exec, err := NewOnChainExecutor(DefaultConfig())
	require.NoError(t, err)

	req := ReversingRequest{
		SafeAddress: "not-an-address",
		TokenSymbol: "ETH",
		Side:        types.SideSell,
		Amount:      decimal.NewFromFloat(0.1),
	}

	_, ok := exec.Execute(context.Background(), req, decimal.NewFromFloat(2505))
	assert.False(t, ok)
}

func TestNewOnChainExecutorRejectsInvalidKey(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PrivateKey = "not-hex"
	_, err := NewOnChainExecutor(cfg)
	assert.Error(t, err)
}
