package monitor

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/positioncore/store"
	"github.com/web3guy0/positioncore/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// OPERATOR SURFACE - read-only status queries
// ═══════════════════════════════════════════════════════════════════════════════

// PositionStatus is one entry of GetStatus's positions list.
type PositionStatus struct {
	TradeID               string
	TokenSymbol            string
	CurrentPrice           decimal.Decimal
	EntryPrice             decimal.Decimal
	TP1                    decimal.Decimal
	TP2                    decimal.Decimal
	SL                     decimal.Decimal
	TrailingStopPrice      decimal.Decimal
	HighestFavorablePrice  decimal.Decimal
	TimeRemaining          time.Duration
	PriceCheckCount        int
}

// Status is the engine-wide operator snapshot.
type Status struct {
	IsRunning      bool
	MonitoredCount int
	PriceTickMs    int64
	SyncTickMs     int64
	Positions      []PositionStatus
}

// GetStatus returns a point-in-time snapshot of the engine and every
// currently monitored position.
func (e *Engine) GetStatus() Status {
	e.mu.Lock()
	running := e.running
	e.mu.Unlock()

	snapshot := e.registry.Snapshot()
	now := e.clock()

	positions := make([]PositionStatus, 0, len(snapshot))
	for _, p := range snapshot {
		positions = append(positions, PositionStatus{
			TradeID:               p.TradeID,
			TokenSymbol:           p.TokenSymbol,
			CurrentPrice:          p.CurrentPrice,
			EntryPrice:            p.EntryPrice,
			TP1:                   p.TP1,
			TP2:                   p.TP2,
			SL:                    p.SL,
			TrailingStopPrice:     p.TrailingStopPrice,
			HighestFavorablePrice: p.HighestFavorablePrice,
			TimeRemaining:         p.TimeRemaining(now),
			PriceCheckCount:       p.PriceCheckCount,
		})
	}

	return Status{
		IsRunning:      running,
		MonitoredCount: len(snapshot),
		PriceTickMs:    e.cfg.PriceTick.Milliseconds(),
		SyncTickMs:     e.cfg.SyncTick.Milliseconds(),
		Positions:      positions,
	}
}

// GetActive returns the currently monitored positions.
func (e *Engine) GetActive() []*types.MonitoredPosition {
	return e.registry.Snapshot()
}

// GetHistory returns terminal records matching filter.
func (e *Engine) GetHistory(filter store.HistoryFilter) ([]*types.MonitoredPosition, error) {
	return e.store.GetHistory(filter)
}

// GetPositionStatus returns the monitored position for tradeID, if any.
func (e *Engine) GetPositionStatus(tradeID string) (*types.MonitoredPosition, bool) {
	return e.registry.FindByTradeId(tradeID)
}
