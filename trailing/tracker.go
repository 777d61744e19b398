package trailing

import (
	"github.com/shopspring/decimal"

	"github.com/web3guy0/positioncore/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// TRAILING STOP TRACKER - per-position adaptive stop level
// ═══════════════════════════════════════════════════════════════════════════════
//
// Adapted from a percent-profit-gated trailing stop that only starts
// trailing after a configured profit threshold. This core arms the trail
// from the moment a position is registered - no such gate applies here, and
// an implicit one would be an invariant violation: highestFavorablePrice
// must be monotonic from entry onward.
//
// ═══════════════════════════════════════════════════════════════════════════════

// DefaultEpsilon is the default trailing-stop band width (0.01). Nothing in
// this package falls back to it; callers pass epsilon explicitly.
var DefaultEpsilon = decimal.NewFromFloat(0.01)

// InitialStop computes trailingStopPrice at registration time:
// entryPrice * (1 - epsilon) for buy, entryPrice * (1 + epsilon) for sell.
func InitialStop(side types.Side, entryPrice, epsilon decimal.Decimal) decimal.Decimal {
	one := decimal.NewFromInt(1)
	if side == types.SideBuy {
		return entryPrice.Mul(one.Sub(epsilon))
	}
	return entryPrice.Mul(one.Add(epsilon))
}

// Update advances the trailing extremum and stop price for a new price
// observation, in place on p. It reports whether the extremum moved.
//
// For buy: highestFavorablePrice is non-decreasing; a new high tightens
// trailingStopPrice to price*(1-epsilon).
// For sell: highestFavorablePrice (the most-favorable, i.e. lowest, price)
// is non-increasing; a new low tightens trailingStopPrice to
// price*(1+epsilon).
func Update(p *types.MonitoredPosition, price, epsilon decimal.Decimal) bool {
	one := decimal.NewFromInt(1)

	if p.Side == types.SideBuy {
		if price.GreaterThan(p.HighestFavorablePrice) {
			p.HighestFavorablePrice = price
			p.TrailingStopPrice = price.Mul(one.Sub(epsilon))
			return true
		}
		return false
	}

	if price.LessThan(p.HighestFavorablePrice) {
		p.HighestFavorablePrice = price
		p.TrailingStopPrice = price.Mul(one.Add(epsilon))
		return true
	}
	return false
}

// Triggered reports whether the trailing stop fires at the given price.
func Triggered(p *types.MonitoredPosition, price decimal.Decimal) bool {
	if p.Side == types.SideBuy {
		return price.LessThanOrEqual(p.TrailingStopPrice)
	}
	return price.GreaterThanOrEqual(p.TrailingStopPrice)
}
