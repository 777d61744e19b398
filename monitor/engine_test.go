package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web3guy0/positioncore/events"
	"github.com/web3guy0/positioncore/registry"
	"github.com/web3guy0/positioncore/store"
	"github.com/web3guy0/positioncore/types"
)

// TestRegisterPositionRejectsNonPositiveFields covers error taxonomy point 5
// (invariant violation rejected at registration).
func TestRegisterPositionRejectsNonPositiveFields(t *testing.T) {
	e, _, _, _ := newTestEngine()

	req := buildRequest(types.SideBuy,
		decimal.Zero, decimal.NewFromFloat(0.1),
		decimal.NewFromFloat(2500), decimal.NewFromFloat(2600), decimal.NewFromFloat(2350),
		time.Now().Add(time.Hour))

	_, err := e.RegisterPosition(req)
	assert.Error(t, err)
}

// TestRegisterPositionStoreFailureLeavesRegistryUntouched covers error
// taxonomy point 3.
func TestRegisterPositionStoreFailureLeavesRegistryUntouched(t *testing.T) {
	e, _, _, st := newTestEngine()
	st.failIns = true

	req := buildRequest(types.SideBuy,
		decimal.NewFromFloat(2400), decimal.NewFromFloat(0.1),
		decimal.NewFromFloat(2500), decimal.NewFromFloat(2600), decimal.NewFromFloat(2350),
		time.Now().Add(time.Hour))

	_, err := e.RegisterPosition(req)
	require.Error(t, err)
	assert.Equal(t, 0, e.registry.Len())
}

// TestAtMostOnceExit races two concurrent callers against the same
// already-triggering position and asserts the executor is invoked exactly
// once - Registry.Remove's atomicity is the sole exclusion primitive.
func TestAtMostOnceExit(t *testing.T) {
	e, _, executor, _ := newTestEngine()

	req := buildRequest(types.SideBuy,
		decimal.NewFromFloat(2400), decimal.NewFromFloat(0.1),
		decimal.NewFromFloat(2500), decimal.NewFromFloat(2600), decimal.NewFromFloat(2350),
		time.Now().Add(time.Hour))
	_, err := e.RegisterPosition(req)
	require.NoError(t, err)
	p, ok := e.registry.FindByTradeId(req.TradeID)
	require.True(t, ok)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.driveExit(context.Background(), p, types.ExitTP1, decimal.NewFromFloat(2505), time.Now())
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, executor.callCount())
}

// TestNoLeakageOnStop: after Stop returns, the Registry is empty.
func TestNoLeakageOnStop(t *testing.T) {
	e, _, _, _ := newTestEngine()

	req := buildRequest(types.SideBuy,
		decimal.NewFromFloat(2400), decimal.NewFromFloat(0.1),
		decimal.NewFromFloat(2500), decimal.NewFromFloat(2600), decimal.NewFromFloat(2350),
		time.Now().Add(time.Hour))
	_, err := e.RegisterPosition(req)
	require.NoError(t, err)

	require.NoError(t, e.Start(context.Background()))
	assert.Equal(t, 1, e.registry.Len())

	e.Stop()
	assert.Equal(t, 0, e.registry.Len())
}

// TestRehydrateIdempotence: running Start twice against the same store
// (with Stop in between) yields the same Registry contents as once.
func TestRehydrateIdempotence(t *testing.T) {
	oracle := newFakeOracle(decimal.Zero)
	executor := newFakeExecutor()
	st := newFakeStore()

	active := &types.MonitoredPosition{
		TradeID:               "rehydrate-trade",
		TokenSymbol:           "ETH",
		Side:                  types.SideBuy,
		EntryPrice:            decimal.NewFromFloat(2400),
		EntryAmount:           decimal.NewFromFloat(0.1),
		TP1:                   decimal.NewFromFloat(2500),
		TP2:                   decimal.NewFromFloat(2600),
		SL:                    decimal.NewFromFloat(2350),
		MaxExitTime:           time.Now().Add(time.Hour),
		Status:                types.StatusActive,
		HighestFavorablePrice: decimal.NewFromFloat(2400),
		TrailingStopPrice:     decimal.NewFromFloat(2376),
		TrailingStopEnabled:   true,
	}
	st.directInsert(active)

	e := New(testConfig(), registry.New(), st, oracle, executor, events.NewBus(), nil)

	require.NoError(t, e.Start(context.Background()))
	firstLen := e.registry.Len()
	e.Stop()

	require.NoError(t, e.Start(context.Background()))
	secondLen := e.registry.Len()
	e.Stop()

	assert.Equal(t, 1, firstLen)
	assert.Equal(t, firstLen, secondLen)
}

// TestPnLRoundTrip: an entry at price p immediately followed by an exit at
// price p with the same entryAmount yields profitLoss == 0, for both sides.
func TestPnLRoundTrip(t *testing.T) {
	for _, side := range []types.Side{types.SideBuy, types.SideSell} {
		e, oracle, _, st := newTestEngine()

		req := buildRequest(side,
			decimal.NewFromFloat(100), decimal.NewFromFloat(2),
			decimal.NewFromFloat(101), decimal.NewFromFloat(102), decimal.NewFromFloat(90),
			time.Now().Add(time.Hour))
		if side == types.SideSell {
			req = buildRequest(side,
				decimal.NewFromFloat(100), decimal.NewFromFloat(2),
				decimal.NewFromFloat(99), decimal.NewFromFloat(98), decimal.NewFromFloat(110),
				time.Now().Add(time.Hour))
		}

		_, err := e.RegisterPosition(req)
		require.NoError(t, err)
		p, ok := e.registry.FindByTradeId(req.TradeID)
		require.True(t, ok)

		oracle.set(decimal.NewFromFloat(100))
		e.driveExit(context.Background(), p, types.ExitManual, decimal.NewFromFloat(100), time.Now())

		hist, err := st.GetHistory(store.HistoryFilter{})
		require.NoError(t, err)
		require.Len(t, hist, 1)
		assert.True(t, hist[0].Exit.ProfitLoss.IsZero(), "side %s: got %s", side, hist[0].Exit.ProfitLoss)
	}
}

// TestManualExitRecordsDistinctKind: a manual exit is recorded with kind
// "manual", never aliased to "tp1".
func TestManualExitRecordsDistinctKind(t *testing.T) {
	e, _, _, st := newTestEngine()

	req := buildRequest(types.SideBuy,
		decimal.NewFromFloat(2400), decimal.NewFromFloat(0.1),
		decimal.NewFromFloat(2500), decimal.NewFromFloat(2600), decimal.NewFromFloat(2350),
		time.Now().Add(time.Hour))
	_, err := e.RegisterPosition(req)
	require.NoError(t, err)

	ok := e.ManualExit(req.TradeID, "operator requested close")
	assert.True(t, ok)

	hist, err := st.GetHistory(store.HistoryFilter{})
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, types.ExitManual, hist[0].Exit.ExitKind)
}

// TestManualExitUnknownTradeReturnsFalse: an unrecognized tradeId is a
// no-op that reports false.
func TestManualExitUnknownTradeReturnsFalse(t *testing.T) {
	e, _, _, _ := newTestEngine()
	assert.False(t, e.ManualExit("nonexistent", "whatever"))
}

// TestExitExecutorFailureRoutesToFailedNotReinserted covers error taxonomy
// point 2: a failed exit is terminal and never returned to the Registry.
func TestExitExecutorFailureRoutesToFailedNotReinserted(t *testing.T) {
	e, oracle, executor, st := newTestEngine()
	executor.ok = false

	req := buildRequest(types.SideBuy,
		decimal.NewFromFloat(2400), decimal.NewFromFloat(0.1),
		decimal.NewFromFloat(2500), decimal.NewFromFloat(2600), decimal.NewFromFloat(2350),
		time.Now().Add(time.Hour))
	id, err := e.RegisterPosition(req)
	require.NoError(t, err)
	p, ok := e.registry.FindByTradeId(req.TradeID)
	require.True(t, ok)

	feedAndTick(t, e, oracle, p, decimal.NewFromFloat(2505))

	assert.False(t, e.registry.Contains(id))

	hist, err := st.GetHistory(store.HistoryFilter{})
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, types.StatusFailed, hist[0].Status)
	assert.NotEmpty(t, hist[0].Exit.Error)
}

// TestPriceFetchFailureLeavesStateUnchanged covers error taxonomy point 1:
// a transient oracle failure skips the tick with no state mutation.
func TestPriceFetchFailureLeavesStateUnchanged(t *testing.T) {
	e, oracle, executor, _ := newTestEngine()

	req := buildRequest(types.SideBuy,
		decimal.NewFromFloat(2400), decimal.NewFromFloat(0.1),
		decimal.NewFromFloat(2500), decimal.NewFromFloat(2600), decimal.NewFromFloat(2350),
		time.Now().Add(time.Hour))
	_, err := e.RegisterPosition(req)
	require.NoError(t, err)
	p, ok := e.registry.FindByTradeId(req.TradeID)
	require.True(t, ok)

	countBefore := p.PriceCheckCount
	oracle.failNext()
	e.checkPosition(context.Background(), p)

	assert.Equal(t, countBefore, p.PriceCheckCount)
	assert.Equal(t, 0, executor.callCount())
	assert.True(t, e.registry.Contains(p.ID))
}

