package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════════
// SHARED TYPES - Avoid import cycles between registry, monitor, store, venue
// ═══════════════════════════════════════════════════════════════════════════════

// Side is the direction of the entry trade. The exit trade always takes the
// opposite side.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Opposite returns the reversing side for an exit trade.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Status is the one-way lifecycle state of a MonitoredPosition.
type Status string

const (
	StatusActive Status = "active"
	StatusExited Status = "exited"
	StatusFailed Status = "failed"
)

// ExitKind identifies which exit condition fired, in priority order.
type ExitKind string

const (
	ExitMaxTime      ExitKind = "max_exit_time"
	ExitTrailingStop ExitKind = "trailing_stop"
	ExitStopLoss     ExitKind = "stop_loss"
	ExitTP2          ExitKind = "tp2"
	ExitTP1          ExitKind = "tp1"
	ExitManual       ExitKind = "manual"
)

// RegisterRequest is the intake collaborator's payload to RegisterPosition.
// Every field except EntryTxHash is copied unchanged into the resulting
// MonitoredPosition; MonitoredPosition has no field for the entry tx hash.
type RegisterRequest struct {
	TradeID     string
	UserID      string
	SafeAddress string
	NetworkKey  string
	TokenSymbol string
	Side        Side
	EntryPrice  decimal.Decimal
	EntryAmount decimal.Decimal
	TP1         decimal.Decimal
	TP2         decimal.Decimal
	SL          decimal.Decimal
	MaxExitTime time.Time
	EntryTxHash string
}

// MonitoredPosition is one open position under watch.
type MonitoredPosition struct {
	ID          string
	TradeID     string
	UserID      string
	SafeAddress string
	NetworkKey  string
	TokenSymbol string
	Side        Side

	EntryPrice  decimal.Decimal
	EntryAmount decimal.Decimal
	TP1         decimal.Decimal
	TP2         decimal.Decimal
	SL          decimal.Decimal
	MaxExitTime time.Time

	Status Status

	HighestFavorablePrice decimal.Decimal
	TrailingStopPrice     decimal.Decimal
	TrailingStopEnabled   bool

	CurrentPrice   decimal.Decimal
	PriceCheckCount int
	LastPriceCheck  *time.Time

	ExecutedAt time.Time

	Exit *ExitRecord
}

// ExitRecord is appended on the terminal active->exited or active->failed
// transition.
type ExitRecord struct {
	ExitKind    ExitKind
	ExitPrice   decimal.Decimal
	ExitAmount  decimal.Decimal
	ProfitLoss  decimal.Decimal
	ExitedAt    time.Time

	Error    string
	FailedAt time.Time
}

// TimeRemaining is the wall-clock duration until MaxExitTime, clamped at zero.
func (p *MonitoredPosition) TimeRemaining(now time.Time) time.Duration {
	d := p.MaxExitTime.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Clone returns a shallow copy safe to hand to a caller outside the registry
// lock (Exit is copied by pointer only after the position is terminal, so
// no concurrent writer can race it).
func (p *MonitoredPosition) Clone() *MonitoredPosition {
	cp := *p
	return &cp
}
