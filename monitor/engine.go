package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/positioncore/events"
	"github.com/web3guy0/positioncore/metrics"
	"github.com/web3guy0/positioncore/oracle"
	"github.com/web3guy0/positioncore/registry"
	"github.com/web3guy0/positioncore/store"
	"github.com/web3guy0/positioncore/trailing"
	"github.com/web3guy0/positioncore/types"
	"github.com/web3guy0/positioncore/venue"
)

// ═══════════════════════════════════════════════════════════════════════════════
// MONITOR ENGINE - owns the two periodic ticks and the exit state machine
// ═══════════════════════════════════════════════════════════════════════════════
//
// Grounded on core/engine.go's mainLoop/positionMonitorLoop dual-goroutine-
// with-ticker pattern, generalized from one fixed interval to two
// independently configured ticks, and on execution/reconciler.go's
// RecoverPositions for the Start-time rehydrate and the periodic
// reconciliation tick. Stop uses a context.Context + sync.WaitGroup bounded
// grace period rather than a bare close(stopCh), since in-flight
// per-position work must be allowed to finish, not merely signaled.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Clock is the time source the engine reads "now" from; overridable in
// tests so max-exit-time and trailing scenarios don't need a real sleep.
type Clock func() time.Time

// Config controls the engine's tick periods and trailing-stop parameters.
type Config struct {
	PriceTick                time.Duration
	SyncTick                 time.Duration
	PriceFetchTimeout        time.Duration
	Epsilon                  decimal.Decimal
	TrailingEnabledByDefault bool
	StopGracePeriod          time.Duration
}

// Engine is the Monitor Engine: ties the Registry, Durable Store Adapter,
// Price Oracle Adapter and Swap Executor Adapter together and drives the
// per-position exit state machine on a schedule.
type Engine struct {
	cfg      Config
	registry *registry.Registry
	store    store.Store
	oracle   oracle.Oracle
	executor venue.Executor
	bus      *events.Bus
	metrics  *metrics.Registry
	clock    Clock

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New constructs an Engine. metrics may be nil if Prometheus export is not
// wanted.
func New(cfg Config, reg *registry.Registry, st store.Store, orc oracle.Oracle, exec venue.Executor, bus *events.Bus, mtr *metrics.Registry) *Engine {
	return &Engine{
		cfg:      cfg,
		registry: reg,
		store:    st,
		oracle:   orc,
		executor: exec,
		bus:      bus,
		metrics:  mtr,
		clock:    time.Now,
	}
}

// SetClock overrides the engine's time source. Intended for tests.
func (e *Engine) SetClock(clock Clock) {
	e.clock = clock
}

// Start rehydrates the Registry from the Durable Store's active set and
// launches the price-check and reconciliation ticks. Calling Start while
// already running is a no-op. The first price-check tick is launched in the
// background immediately, without waiting one PriceTick period; Start does not
// wait for it to finish.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil
	}

	if err := e.rehydrateAll("rehydrate"); err != nil {
		e.mu.Unlock()
		return fmt.Errorf("start monitor engine: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.running = true
	e.mu.Unlock()

	e.wg.Add(2)
	go e.priceTickLoop(runCtx)
	go e.syncTickLoop(runCtx)

	log.Info().Int("monitored", e.registry.Len()).Msg("⚡ monitor engine started")
	return nil
}

// Stop cancels both ticks and waits up to cfg.StopGracePeriod for in-flight
// per-position work to finish, then clears the Registry. Work that has
// already passed the Registry.Remove linearization point is allowed to
// finish so the store reflects reality; work that has not is abandoned.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	cancel := e.cancel
	e.running = false
	e.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	grace := e.cfg.StopGracePeriod
	if grace <= 0 {
		grace = 5 * time.Second
	}

	select {
	case <-done:
	case <-time.After(grace):
		log.Warn().Msg("⏱ stop grace period exceeded, abandoning in-flight per-position work")
	}

	e.registry.Clear()
	log.Info().Msg("🛑 monitor engine stopped")
}

// RegisterPosition is called by the intake collaborator after its entry
// trade has been confirmed. It persists the new position then publishes it
// into the Registry; a store failure leaves the Registry untouched.
func (e *Engine) RegisterPosition(req types.RegisterRequest) (string, error) {
	if req.EntryPrice.LessThanOrEqual(decimal.Zero) ||
		req.EntryAmount.LessThanOrEqual(decimal.Zero) ||
		req.TP1.LessThanOrEqual(decimal.Zero) ||
		req.TP2.LessThanOrEqual(decimal.Zero) ||
		req.SL.LessThanOrEqual(decimal.Zero) {
		return "", fmt.Errorf("register position: entryPrice, entryAmount, tp1, tp2, sl must be positive")
	}

	now := e.clock()
	p := &types.MonitoredPosition{
		TradeID:               req.TradeID,
		UserID:                req.UserID,
		SafeAddress:           req.SafeAddress,
		NetworkKey:            req.NetworkKey,
		TokenSymbol:           req.TokenSymbol,
		Side:                  req.Side,
		EntryPrice:            req.EntryPrice,
		EntryAmount:           req.EntryAmount,
		TP1:                   req.TP1,
		TP2:                   req.TP2,
		SL:                    req.SL,
		MaxExitTime:           req.MaxExitTime,
		Status:                types.StatusActive,
		HighestFavorablePrice: req.EntryPrice,
		TrailingStopPrice:     trailing.InitialStop(req.Side, req.EntryPrice, e.cfg.Epsilon),
		TrailingStopEnabled:   e.cfg.TrailingEnabledByDefault,
		ExecutedAt:            now,
	}

	id, err := e.store.Insert(p)
	if err != nil {
		return "", fmt.Errorf("register position: %w", err)
	}
	p.ID = id

	e.registry.Insert(p)
	e.bus.PublishAdded(events.PositionAdded{Position: p, Source: "register"})
	e.reportMonitoredGauge()

	log.Info().
		Str("trade_id", p.TradeID).
		Str("token", p.TokenSymbol).
		Str("side", string(p.Side)).
		Msg("📥 position registered")

	return id, nil
}

// ManualExit looks up tradeId in the Registry and, if present, drives the
// exit state machine with kind "manual". It returns false if no active
// position is found for tradeId; reason is logged but not stored.
func (e *Engine) ManualExit(tradeID string, reason string) bool {
	p, ok := e.registry.FindByTradeId(tradeID)
	if !ok {
		return false
	}

	price := p.CurrentPrice
	if price.IsZero() {
		price = p.EntryPrice
	}

	log.Info().Str("trade_id", tradeID).Str("reason", reason).Msg("✋ manual exit requested")
	e.driveExit(context.Background(), p, types.ExitManual, price, e.clock())
	return true
}

func (e *Engine) reportMonitoredGauge() {
	if e.metrics != nil {
		e.metrics.Monitored.Set(float64(e.registry.Len()))
	}
}
