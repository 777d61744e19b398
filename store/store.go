package store

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/positioncore/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// DURABLE STORE ADAPTER - contract
// ═══════════════════════════════════════════════════════════════════════════════
//
// Insert must be durable before returning. ListActive callers tolerate
// duplicates across calls (idempotent rehydrate). UpdateStatus need not be a
// conditional write - the Registry's Remove is the exclusion primitive - but
// repeated terminal writes for the same id must be safe no-ops or
// last-writer-wins.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Store is the Durable Store Adapter contract.
type Store interface {
	Insert(p *types.MonitoredPosition) (string, error)
	ListActive() ([]*types.MonitoredPosition, error)
	UpdateStatus(id string, status types.Status, exit *types.ExitRecord) error
	GetHistory(filter HistoryFilter) ([]*types.MonitoredPosition, error)
}

// HistoryFilter narrows GetHistory to terminal records matching the given
// fields; zero values are wildcards.
type HistoryFilter struct {
	TokenSymbol string
	Status      types.Status
	Since       time.Time
	Limit       int
}

// decimalString/parseDecimal are small helpers shared by store backends
// that persist decimal.Decimal as a string column.
func decimalString(d decimal.Decimal) string {
	return d.String()
}

func parseDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
