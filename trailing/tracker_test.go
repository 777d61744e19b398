package trailing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/web3guy0/positioncore/types"
)

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func TestInitialStopBuy(t *testing.T) {
	stop := InitialStop(types.SideBuy, dec("2400"), DefaultEpsilon)
	assert.True(t, stop.Equal(dec("2376")))
}

func TestInitialStopSell(t *testing.T) {
	stop := InitialStop(types.SideSell, dec("100"), DefaultEpsilon)
	assert.True(t, stop.Equal(dec("101")))
}

func TestUpdateMonotonicBuy(t *testing.T) {
	p := &types.MonitoredPosition{Side: types.SideBuy, HighestFavorablePrice: dec("2400")}

	moved := Update(p, dec("2480"), DefaultEpsilon)
	assert.True(t, moved)
	assert.True(t, p.HighestFavorablePrice.Equal(dec("2480")))
	assert.True(t, p.TrailingStopPrice.Equal(dec("2455.2")))

	moved = Update(p, dec("2495"), DefaultEpsilon)
	assert.True(t, moved)
	assert.True(t, p.TrailingStopPrice.Equal(dec("2470.05")))

	// A pullback never loosens the trail.
	moved = Update(p, dec("2479"), DefaultEpsilon)
	assert.False(t, moved)
	assert.True(t, p.HighestFavorablePrice.Equal(dec("2495")))
	assert.True(t, p.TrailingStopPrice.Equal(dec("2470.05")))
}

func TestUpdateMonotonicSell(t *testing.T) {
	p := &types.MonitoredPosition{Side: types.SideSell, HighestFavorablePrice: dec("100")}

	moved := Update(p, dec("95"), DefaultEpsilon)
	assert.True(t, moved)
	assert.True(t, p.HighestFavorablePrice.Equal(dec("95")))

	moved = Update(p, dec("97"), DefaultEpsilon)
	assert.False(t, moved, "a rally against a sell position must not loosen the trail")
}

func TestTriggeredBuy(t *testing.T) {
	p := &types.MonitoredPosition{Side: types.SideBuy, TrailingStopPrice: dec("2470.05")}
	assert.False(t, Triggered(p, dec("2479")))
	assert.True(t, Triggered(p, dec("2469")))
}

func TestTriggeredSell(t *testing.T) {
	p := &types.MonitoredPosition{Side: types.SideSell, TrailingStopPrice: dec("101")}
	assert.False(t, Triggered(p, dec("100")))
	assert.True(t, Triggered(p, dec("102")))
}
