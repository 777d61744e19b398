package oracle

import (
	"context"

	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════════
// PRICE ORACLE ADAPTER - contract
// ═══════════════════════════════════════════════════════════════════════════════
//
// Get is idempotent and may fail transiently; a transient failure must never
// be treated as a price of zero. Implementations are expected to honor ctx's
// deadline (priceFetchTimeoutMs).
//
// ═══════════════════════════════════════════════════════════════════════════════

// Oracle resolves a token symbol to a current spot price.
type Oracle interface {
	Get(ctx context.Context, symbol string) (price decimal.Decimal, ok bool)
}
