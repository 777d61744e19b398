package registry

import (
	"sync"

	"github.com/web3guy0/positioncore/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// POSITION REGISTRY - concurrency-safe in-memory view of open positions
// ═══════════════════════════════════════════════════════════════════════════════
//
// Remove is the single linearization point for the active->exiting transition:
// two overlapping ticks racing the same position will see Remove succeed
// exactly once, so at most one caller ever drives the exit state machine for
// a given id. Everything else (Insert, Snapshot, FindByTradeId) is a simple
// guarded map operation.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Registry is a concurrency-safe map of positionId -> MonitoredPosition.
type Registry struct {
	mu        sync.RWMutex
	positions map[string]*types.MonitoredPosition
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		positions: make(map[string]*types.MonitoredPosition),
	}
}

// Insert adds p if absent. Idempotent: a second Insert for the same id is a
// no-op and does not overwrite the first.
func (r *Registry) Insert(p *types.MonitoredPosition) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.positions[p.ID]; exists {
		return
	}
	r.positions[p.ID] = p
}

// Remove atomically takes the position out of the registry and returns it.
// The second return value is false if the id was not present. This is the
// exclusion primitive: only the caller that observes ok==true may proceed
// to drive an exit.
func (r *Registry) Remove(id string) (*types.MonitoredPosition, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.positions[id]
	if !ok {
		return nil, false
	}
	delete(r.positions, id)
	return p, true
}

// Snapshot returns a copy of the currently-held positions for iteration
// without holding the registry lock across the caller's per-position work.
func (r *Registry) Snapshot() []*types.MonitoredPosition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*types.MonitoredPosition, 0, len(r.positions))
	for _, p := range r.positions {
		out = append(out, p)
	}
	return out
}

// FindByTradeId is a linear scan used only by operator-initiated manual
// exit; the registry is not expected to be large enough for this to matter.
func (r *Registry) FindByTradeId(tradeID string) (*types.MonitoredPosition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.positions {
		if p.TradeID == tradeID {
			return p, true
		}
	}
	return nil, false
}

// Contains reports whether id is currently present, used by the
// reconciliation tick to decide which store records are orphans.
func (r *Registry) Contains(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.positions[id]
	return ok
}

// Len returns the number of positions currently monitored.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.positions)
}

// Clear empties the registry. Used by Engine.Stop once all in-flight
// per-position work has finished or been abandoned.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.positions = make(map[string]*types.MonitoredPosition)
}
