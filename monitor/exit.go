package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/positioncore/events"
	"github.com/web3guy0/positioncore/types"
	"github.com/web3guy0/positioncore/venue"
)

// ═══════════════════════════════════════════════════════════════════════════════
// EXIT STATE MACHINE - active -> exiting -> exited | failed
// ═══════════════════════════════════════════════════════════════════════════════
//
// Grounded on core/engine.go's exitPosition (PnL law, order dispatch,
// lifecycle notification) and execution/executor.go's ClosePosition for the
// reversing-request construction pattern, generalized to the full
// exited/failed error routing: a failed exit is terminal and never
// re-inserted into the Registry.
//
// Registry.Remove is the sole active->exiting linearization point. Every
// caller of driveExit - a price-check tick or a manual exit - races the same
// Remove; exactly one observes ok==true and proceeds past this point for any
// given position id.
//
// ═══════════════════════════════════════════════════════════════════════════════

// driveExit removes p from the Registry (the sole exclusion point), calls
// the Swap Executor, computes P&L on success, and records the terminal
// status. A caller that loses the Remove race (another path already took
// this position) returns immediately with no side effect.
func (e *Engine) driveExit(ctx context.Context, p *types.MonitoredPosition, kind types.ExitKind, price decimal.Decimal, now time.Time) {
	taken, ok := e.registry.Remove(p.ID)
	if !ok {
		return
	}

	// Past Remove, the exit runs to completion even if Stop cancels ctx, so
	// the executor call and the terminal store write are not cut short.
	ctx = context.WithoutCancel(ctx)

	req := venue.ReversingRequest{
		UserID:      taken.UserID,
		SafeAddress: taken.SafeAddress,
		NetworkKey:  taken.NetworkKey,
		TokenSymbol: taken.TokenSymbol,
		Side:        taken.Side.Opposite(),
		Amount:      taken.EntryAmount,
	}

	receipt, ok := e.executor.Execute(ctx, req, price)
	if !ok {
		e.failExit(taken, fmt.Errorf("swap execution failed for trade %s", taken.TradeID), now)
		return
	}

	entryValue := taken.EntryAmount.Mul(taken.EntryPrice)
	exitValue := taken.EntryAmount.Mul(receipt.FillPrice)

	var pnl decimal.Decimal
	if taken.Side == types.SideBuy {
		pnl = exitValue.Sub(entryValue)
	} else {
		pnl = entryValue.Sub(exitValue)
	}

	exit := &types.ExitRecord{
		ExitKind:   kind,
		ExitPrice:  receipt.FillPrice,
		ExitAmount: taken.EntryAmount,
		ProfitLoss: pnl,
		ExitedAt:   now,
	}

	// A store failure here is logged and accepted: the swap has already
	// happened on-venue, so a future reconciliation tick or operator
	// correction is the recovery path, not a retry of this write.
	if err := e.store.UpdateStatus(taken.ID, types.StatusExited, exit); err != nil {
		log.Error().Err(err).Str("id", taken.ID).Msg("terminal store update failed after successful exit")
	}

	taken.Status = types.StatusExited
	taken.Exit = exit

	if e.metrics != nil {
		e.metrics.Exits.WithLabelValues(string(kind), string(taken.Side)).Inc()
		e.reportMonitoredGauge()
	}

	e.bus.PublishExited(events.PositionExited{Position: taken, Exit: *exit})

	log.Info().
		Str("trade_id", taken.TradeID).
		Str("kind", string(kind)).
		Str("exit_price", receipt.FillPrice.String()).
		Str("pnl", pnl.String()).
		Msg("📊 position closed")
}

// failExit records the terminal failed state. p is not re-inserted into the
// Registry; operator intervention is required to resolve a persistently
// failing venue.
func (e *Engine) failExit(p *types.MonitoredPosition, err error, now time.Time) {
	exit := &types.ExitRecord{Error: err.Error(), FailedAt: now}

	if upErr := e.store.UpdateStatus(p.ID, types.StatusFailed, exit); upErr != nil {
		log.Error().Err(upErr).Str("id", p.ID).Msg("terminal store update failed after exit failure")
	}

	p.Status = types.StatusFailed
	p.Exit = exit

	if e.metrics != nil {
		e.metrics.ExitFailures.WithLabelValues(string(p.Side)).Inc()
		e.reportMonitoredGauge()
	}

	e.bus.PublishExitFailed(events.PositionExitFailed{Position: p, Err: err})

	log.Error().
		Str("trade_id", p.TradeID).
		Err(err).
		Msg("🚨 exit failed, position requires operator intervention")
}
