package venue

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/positioncore/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// SWAP EXECUTOR ADAPTER - contract
// ═══════════════════════════════════════════════════════════════════════════════
//
// Execute is NOT assumed idempotent. The engine guarantees at most one call
// per position via the Registry's Remove gate - this
// adapter must not retry a call whose outcome is unknown (e.g. after a
// network timeout on submission), since a retry could double-swap.
//
// ═══════════════════════════════════════════════════════════════════════════════

// ReversingRequest is the exit-side order the engine asks the venue to fill.
// side is always the opposite of the entry trade's side.
type ReversingRequest struct {
	UserID      string
	SafeAddress string
	NetworkKey  string
	TokenSymbol string
	Side        types.Side
	Amount      decimal.Decimal
}

// Receipt is the venue's confirmation of a completed reversing trade.
type Receipt struct {
	TxHash    string
	FillPrice decimal.Decimal
	FilledAt  time.Time
}

// Executor performs the on-venue swap for a reversing trade.
type Executor interface {
	Execute(ctx context.Context, req ReversingRequest, price decimal.Decimal) (Receipt, bool)
}
