package monitor

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/positioncore/events"
	"github.com/web3guy0/positioncore/trailing"
	"github.com/web3guy0/positioncore/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// PRICE-CHECK TICK - per-position evaluation, fixed priority order
// ═══════════════════════════════════════════════════════════════════════════════
//
// Grounded on core/engine.go's checkPositions/checkPosition (snapshot then
// iterate, one goroutine of work per position), generalized from a single
// TP/SL check to the full five-step algorithm and priority table: a slow or
// failing position never blocks another, since each runs as its own
// goroutine tracked by the engine's WaitGroup.
//
// ═══════════════════════════════════════════════════════════════════════════════

func (e *Engine) priceTickLoop(ctx context.Context) {
	defer e.wg.Done()

	e.runPriceTick(ctx)

	ticker := time.NewTicker(e.cfg.PriceTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.runPriceTick(ctx)
		}
	}
}

func (e *Engine) runPriceTick(ctx context.Context) {
	snapshot := e.registry.Snapshot()
	for _, p := range snapshot {
		p := p
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.checkPosition(ctx, p)
		}()
	}
}

// checkPosition runs the five-step per-position algorithm: fetch price,
// update monitoring counters, advance the trailing-stop extremum, evaluate
// exit conditions in priority order, and drive an exit if one fires.
func (e *Engine) checkPosition(ctx context.Context, p *types.MonitoredPosition) {
	fetchCtx, cancel := context.WithTimeout(ctx, e.cfg.PriceFetchTimeout)
	defer cancel()

	price, ok := e.oracle.Get(fetchCtx, p.TokenSymbol)
	if !ok || price.IsZero() {
		if e.metrics != nil {
			e.metrics.PriceFetchFails.Inc()
		}
		log.Debug().Str("token", p.TokenSymbol).Msg("price fetch failed, skipping tick")
		return
	}

	now := e.clock()
	p.CurrentPrice = price
	p.LastPriceCheck = &now
	p.PriceCheckCount++

	trailing.Update(p, price, e.cfg.Epsilon)

	kind, fire := evaluateExit(p, price, now)
	if !fire {
		return
	}

	e.driveExit(ctx, p, kind, price, now)
}

// evaluateExit is a pure function of (position, price, now): it never
// mutates p and never performs I/O, so priority determinism is a property
// of this function alone.
func evaluateExit(p *types.MonitoredPosition, price decimal.Decimal, now time.Time) (types.ExitKind, bool) {
	if !now.Before(p.MaxExitTime) {
		return types.ExitMaxTime, true
	}
	if p.TrailingStopEnabled && trailing.Triggered(p, price) {
		return types.ExitTrailingStop, true
	}
	if slTriggered(p, price) {
		return types.ExitStopLoss, true
	}
	if tp2Triggered(p, price) {
		return types.ExitTP2, true
	}
	if tp1Triggered(p, price) {
		return types.ExitTP1, true
	}
	return "", false
}

func slTriggered(p *types.MonitoredPosition, price decimal.Decimal) bool {
	if p.Side == types.SideBuy {
		return price.LessThanOrEqual(p.SL)
	}
	return price.GreaterThanOrEqual(p.SL)
}

func tp2Triggered(p *types.MonitoredPosition, price decimal.Decimal) bool {
	if p.Side == types.SideBuy {
		return price.GreaterThanOrEqual(p.TP2)
	}
	return price.LessThanOrEqual(p.TP2)
}

func tp1Triggered(p *types.MonitoredPosition, price decimal.Decimal) bool {
	if p.Side == types.SideBuy {
		return price.GreaterThanOrEqual(p.TP1)
	}
	return price.LessThanOrEqual(p.TP1)
}

// ═══════════════════════════════════════════════════════════════════════════════
// RECONCILIATION TICK
// ═══════════════════════════════════════════════════════════════════════════════
//
// Grounded on execution/reconciler.go's RecoverPositions, generalized to run
// both once at Start and on a recurring ticker: both call the same
// rehydrateAll/reconcile logic against ListActive, diffing against the
// Registry's current membership rather than unconditionally reloading.
//
// ═══════════════════════════════════════════════════════════════════════════════

func (e *Engine) syncTickLoop(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.SyncTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.reconcile()
		}
	}
}

func (e *Engine) rehydrateAll(source string) error {
	active, err := e.store.ListActive()
	if err != nil {
		return err
	}

	for _, p := range active {
		if e.registry.Contains(p.ID) {
			continue
		}
		rehydrate(p, e.cfg)
		e.registry.Insert(p)
		e.bus.PublishAdded(events.PositionAdded{Position: p, Source: source})
	}

	e.reportMonitoredGauge()
	return nil
}

func (e *Engine) reconcile() {
	active, err := e.store.ListActive()
	if err != nil {
		log.Error().Err(err).Msg("🔁 reconciliation tick failed to list active positions")
		return
	}

	adopted := 0
	for _, p := range active {
		if e.registry.Contains(p.ID) {
			continue
		}
		rehydrate(p, e.cfg)
		e.registry.Insert(p)
		adopted++
		e.bus.PublishAdded(events.PositionAdded{Position: p, Source: "reconcile"})
	}

	if adopted > 0 {
		log.Info().Int("adopted", adopted).Msg("🔁 reconciliation adopted orphaned positions")
	}
	e.reportMonitoredGauge()
}

// rehydrate fills in trailing-stop extrema for a position whose record
// predates any price check (highestFavorablePrice still its zero value) -
// this is the only state a position adopted straight from the store, never
// touched by RegisterPosition, can be in.
func rehydrate(p *types.MonitoredPosition, cfg Config) {
	if !p.HighestFavorablePrice.IsZero() {
		return
	}
	p.HighestFavorablePrice = p.EntryPrice
	p.TrailingStopPrice = trailing.InitialStop(p.Side, p.EntryPrice, cfg.Epsilon)
	p.TrailingStopEnabled = cfg.TrailingEnabledByDefault
}
